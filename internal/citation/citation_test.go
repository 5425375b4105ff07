package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testBands() Bands {
	return Bands{
		StatutePrimaryLow:     81000,
		StatutePrimaryHigh:    91014,
		StatuteConflictsLow:   1090,
		StatuteConflictsHigh:  1099,
		RegulationLow:         18110,
		RegulationHigh:        18997,
	}
}

func TestExtractStatutes_GovCodeAndBareForms(t *testing.T) {
	text := "Government Code Section 87100 prohibits participation. See also Gov. Code § 87103(a)."
	refs := Extract(text, testBands())
	assert.Equal(t, []string{"87100", "87103"}, refs.Statutes)
}

func TestExtractStatutes_OutsideBandsIgnored(t *testing.T) {
	text := "Section 100 of the municipal code applies, not section 87100."
	refs := Extract(text, testBands())
	assert.Equal(t, []string{"87100"}, refs.Statutes)
}

func TestExtractStatutes_DisclaimerSuppressesConflictsNumber(t *testing.T) {
	text := "This office is not providing advice under Section 1090."
	refs := Extract(text, testBands())
	assert.Empty(t, refs.Statutes)
}

func TestExtractStatutes_ConflictsNumberKeptWhenNotFullyDisclaimed(t *testing.T) {
	text := "Section 1090 generally bars this arrangement. " +
		"We are not providing advice under Section 1090 as to any other contract."
	refs := Extract(text, testBands())
	assert.Equal(t, []string{"1090"}, refs.Statutes)
}

func TestExtractRegulations_WithinBand(t *testing.T) {
	text := "2 Cal. Code Regs. § 18730 requires disclosure of this interest."
	refs := Extract(text, testBands())
	assert.Equal(t, []string{"18730"}, refs.Regulations)
}

func TestExtractRegulations_OutsideBandIgnored(t *testing.T) {
	text := "Regulation 99999 does not exist in this band."
	refs := Extract(text, testBands())
	assert.Empty(t, refs.Regulations)
}

func TestExtractPriorOpinions_ModernForm(t *testing.T) {
	refs := Extract("See Opinion A-15-003 for guidance on this question.", testBands())
	assert.Contains(t, refs.PriorOpinions, "A-15-003")
}

func TestExtractPriorOpinions_MisreadPrefixRepaired(t *testing.T) {
	refs := Extract("Reference 4-15-003 addresses a similar arrangement.", testBands())
	assert.Contains(t, refs.PriorOpinions, "A-15-003")
}

func TestExtractPriorOpinions_OldDigitForm(t *testing.T) {
	refs := Extract("Reference 83A195 remains on file.", testBands())
	assert.Contains(t, refs.PriorOpinions, "A-83-195")
}

func TestExtractExternalRefs_ReporterCitations(t *testing.T) {
	refs := Extract("See 45 Cal. App. 4th 123 and 123 U.S. 456.", testBands())
	assert.Equal(t, []string{"123 U.S. 456", "45 Cal. App. 4th 123"}, refs.ExternalRefs)
}

func TestNormalizeLetterID_ModernFormPassesThrough(t *testing.T) {
	assert.Equal(t, "A-15-003", NormalizeLetterID("a-15-003"))
}

func TestNormalizeLetterID_OldDigitFormCanonicalized(t *testing.T) {
	assert.Equal(t, "A-83-195", NormalizeLetterID("83A195"))
}

func TestNormalizeLetterID_MisreadPrefixRepaired(t *testing.T) {
	assert.Equal(t, "A-15-003", NormalizeLetterID("4-15-003"))
}

func TestNormalizeLetterID_NoMatchReturnsUppercased(t *testing.T) {
	assert.Equal(t, "GARBAGE", NormalizeLetterID("garbage"))
}

func TestSelfCitationVariants_DerivesShortAndCompactForms(t *testing.T) {
	variants := SelfCitationVariants("A-15-003")
	assert.Contains(t, variants, "A-15-003")
	assert.Contains(t, variants, "A15003")
	assert.Contains(t, variants, "a15003")
	assert.Contains(t, variants, "15-003")
	assert.Contains(t, variants, "15003")
	assert.Contains(t, variants, "15A003")
}

func TestSelfCitationVariants_EmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, SelfCitationVariants(""))
}

func TestFilterSelfCitations_DropsSelfAndKeepsOthers(t *testing.T) {
	out := FilterSelfCitations([]string{"A-15-003", "A-99-010"}, "A-15-003")
	assert.Equal(t, []string{"A-99-010"}, out)
}

func TestFilterSelfCitations_CaseAndCompactVariantDropped(t *testing.T) {
	out := FilterSelfCitations([]string{"a-15-003", "A-99-010"}, "A-15-003")
	assert.Equal(t, []string{"A-99-010"}, out)
}

func TestFilterSelfCitations_NoLetterIDReturnsInputUnchanged(t *testing.T) {
	in := []string{"A-15-003"}
	out := FilterSelfCitations(in, "")
	assert.Equal(t, in, out)
}
