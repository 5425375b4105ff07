package section

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const modernLetter = `Dear Ms. Smith:

QUESTION

May your client participate in the decision described above?

CONCLUSION

Your client may not participate because the financial effect is
reasonably foreseeable.

FACTS

Your client owns property near the proposed project site.

ANALYSIS

Section 87100 prohibits a public official from participating in a
governmental decision affecting a financial interest.

Sincerely,

Fair Political Practices Commission
`

const olderLetter = `Dear Sir:

QUESTIONS PRESENTED

Is the proposed transaction permissible?

SHORT ANSWER

Yes, subject to the limitations described below.

BACKGROUND

The requestor operates a consulting firm.

DISCUSSION

The Act governs this transaction as follows.

Very truly yours,
`

func TestParse_ModernFormat(t *testing.T) {
	s := Parse(modernLetter, 1)
	assert.Contains(t, s.Question, "May your client participate")
	assert.Contains(t, s.Conclusion, "may not participate")
	assert.Contains(t, s.Facts, "owns property")
	assert.Contains(t, s.Analysis, "Section 87100")
	assert.True(t, s.HasStandardFormat)
	assert.NotContains(t, s.Analysis, "Fair Political Practices Commission")
	assert.Greater(t, s.Confidence, 0.8)
}

func TestParse_OlderFormat(t *testing.T) {
	s := Parse(olderLetter, 1)
	assert.Contains(t, s.Question, "proposed transaction")
	assert.Contains(t, s.Conclusion, "Yes, subject to")
	assert.True(t, s.HasStandardFormat)
}

func TestParse_NoSectionsFound(t *testing.T) {
	s := Parse("This document has no recognizable section headers at all.", 1)
	assert.False(t, s.HasStandardFormat)
	assert.Equal(t, 0.0, s.Confidence)
	assert.Empty(t, s.Question)
}

func TestParse_BelowMinWordsDropped(t *testing.T) {
	text := "QUESTION\n\nOne\n\nCONCLUSION\n\nYes because of the reasoning stated in detail below spanning several words.\n"
	s := Parse(text, 5)
	assert.Empty(t, s.Question)
	assert.NotEmpty(t, s.Conclusion)
	assert.Contains(t, s.Notes[0], "question section below minimum word threshold")
}

func TestParse_EndMarkerDoesNotTruncateEmbeddedQuote(t *testing.T) {
	text := "FACTS\n\nThe letter closed with the phrase \"very respectfully submitted\" quoted inside a prior filing.\n\nANALYSIS\n\nThis section follows.\n"
	s := Parse(text, 1)
	assert.Contains(t, s.Facts, "quoted inside a prior filing")
}
