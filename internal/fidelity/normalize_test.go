package fidelity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeForComparison_LowercasesStripsPunctuationCollapsesWhitespace(t *testing.T) {
	got := normalizeForComparison("  Hello,  World!  Section 87100(a).  ")
	assert.Equal(t, "hello world section 87100 a", got)
}

func TestTokenizeWords_SplitsOnWhitespace(t *testing.T) {
	got := tokenizeWords(normalizeForComparison("Hello, World!"))
	assert.Equal(t, []string{"hello", "world"}, got)
}

func TestDetectDescriptionMode_MatchesKnownPhrases(t *testing.T) {
	assert.True(t, detectDescriptionMode("The image shows a letter on government letterhead."))
	assert.True(t, detectDescriptionMode("This appears to be a scanned document with a signature."))
}

func TestDetectDescriptionMode_FalseForVerbatimTranscription(t *testing.T) {
	assert.False(t, detectDescriptionMode("Dear Ms. Smith: This letter responds to your request for advice."))
}

func TestDetectDescriptionMode_OnlyChecksFirst500Chars(t *testing.T) {
	long := ""
	for len(long) < 600 {
		long += "word "
	}
	long += "The image shows a scanned page."
	assert.False(t, detectDescriptionMode(long), "the marker phrase appears after the first 500 characters")
}

func TestFirstNWords_TruncatesAndRejoins(t *testing.T) {
	assert.Equal(t, "a b c", firstNWords("a b c d e", 3))
}

func TestFirstNWords_ShorterThanNReturnsWholeText(t *testing.T) {
	assert.Equal(t, "a b", firstNWords("a b", 5))
}

func TestClassifyRiskTier_DescriptionModeForcesCritical(t *testing.T) {
	assert.Equal(t, "critical", classifyRiskTier(0.99, true, 0.30, 0.50, 0.70))
}

func TestClassifyRiskTier_BucketsByScoreBands(t *testing.T) {
	assert.Equal(t, "critical", classifyRiskTier(0.10, false, 0.30, 0.50, 0.70))
	assert.Equal(t, "high", classifyRiskTier(0.40, false, 0.30, 0.50, 0.70))
	assert.Equal(t, "medium", classifyRiskTier(0.60, false, 0.30, 0.50, 0.70))
	assert.Equal(t, "low", classifyRiskTier(0.95, false, 0.30, 0.50, 0.70))
}
