package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleAdviceLetter = `Dear Ms. Smith:

This letter responds to your request for advice regarding the application
of the Political Reform Act to a proposed contract. You have asked about
the conflict of interest rules that apply to your client.

Question

May your client participate in the decision described above?

Conclusion

Based on the facts presented, your client may not participate in the
decision because the financial effect on the client's economic interest
is reasonably foreseeable and distinguishable from its effect on the
public generally.

Facts

Your client is a real estate developer who owns property near the
proposed project site. The Fair Political Practices Commission has
previously advised on similar matters.

Analysis

Section 87100 prohibits a public official from making, participating in
making, or otherwise using an official position to influence a
governmental decision in which the official has a financial interest.
Date of this letter: 01/15/2018.
`

func TestScore_WellFormedAdviceLetterScoresHigh(t *testing.T) {
	m := Score(sampleAdviceLetter, 1)
	assert.Greater(t, m.Score, 0.6)
	assert.NotContains(t, m.Flags, "density-gated")
}

func TestScore_EmptyTextScoresZero(t *testing.T) {
	m := Score("", 1)
	assert.Equal(t, 0.0, m.Score)
}

func TestScore_GarbageTextScoresLow(t *testing.T) {
	garbage := strings.Repeat("xqz kzpw vvvv jjjjjj ", 2)
	m := Score(garbage, 1)
	assert.Less(t, m.Score, 0.3)
	assert.Contains(t, m.Flags, "density-gated")
}

func TestScore_LowDensityTriggersGateFlag(t *testing.T) {
	// Five tokens over one page is far below the density floor (20 wpp).
	m := Score("advice letter question conclusion facts", 1)
	assert.Contains(t, m.Flags, "density-gated")
}

func TestScore_IsPure(t *testing.T) {
	a := Score(sampleAdviceLetter, 2)
	b := Score(sampleAdviceLetter, 2)
	assert.Equal(t, a, b)
}

func TestShouldUseOCR_LegacyYearAlwaysTrue(t *testing.T) {
	d := Decision{LegacyYearCutoff: 1990, ScoreThreshold: 0.5, MinWordsPerPage: 50, MinAlphaRatio: 0.5, MaxGarbageTokens: 100}
	m := Score(sampleAdviceLetter, 1)
	assert.True(t, ShouldUseOCR(d, 1985, m))
}

func TestShouldUseOCR_GoodScoreRecentYearFalse(t *testing.T) {
	d := Decision{LegacyYearCutoff: 1990, ScoreThreshold: 0.1, MinWordsPerPage: 10, MinAlphaRatio: 0.1, MaxGarbageTokens: 1000}
	m := Score(sampleAdviceLetter, 1)
	assert.False(t, ShouldUseOCR(d, 2018, m))
}

func TestShouldUseOCR_BelowScoreThresholdTrue(t *testing.T) {
	d := Decision{LegacyYearCutoff: 1990, ScoreThreshold: 0.99, MinWordsPerPage: 0, MinAlphaRatio: 0, MaxGarbageTokens: 1000}
	m := Score(sampleAdviceLetter, 1)
	assert.True(t, ShouldUseOCR(d, 2018, m))
}

func TestDictionaryHitScore_KnownWordsScoreHigherThanNonsense(t *testing.T) {
	known := dictionaryHitScore(tokenize("advice letter commission conclusion analysis facts question"))
	nonsense := dictionaryHitScore(tokenize("zzqx vvpj kqwl mnbv xzqp"))
	assert.Greater(t, known, nonsense)
}
