package fidelity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
)

func TestCompareTexts_IdenticalTextsScoreOne(t *testing.T) {
	assert.Equal(t, 1.0, compareTexts("Hello, World!", "hello world"))
}

func TestCompareTexts_CompletelyDifferentTextsScoreLow(t *testing.T) {
	got := compareTexts("apple banana cherry", "xylophone zebra quartz")
	assert.Less(t, got, 0.3)
}

func TestJoinPages_InsertsBlankLineBetweenPages(t *testing.T) {
	assert.Equal(t, "page one\n\npage two", joinPages([]string{"page one", "page two"}))
}

func TestJoinPages_SinglePageIsUnchanged(t *testing.T) {
	assert.Equal(t, "only page", joinPages([]string{"only page"}))
}

func TestJoinPages_EmptyInputReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", joinPages(nil))
}

func TestJoinWords_SpaceSeparates(t *testing.T) {
	assert.Equal(t, "a b c", joinWords([]string{"a", "b", "c"}))
}

func TestSplitParagraphs_SplitsOnBlankLine(t *testing.T) {
	chunks := splitParagraphs("first paragraph\n\nsecond paragraph")
	assert.Equal(t, []string{"first paragraph", "second paragraph"}, chunks)
}

func TestSplitParagraphs_NoBlankLineReturnsSingleChunk(t *testing.T) {
	chunks := splitParagraphs("just one paragraph")
	assert.Equal(t, []string{"just one paragraph"}, chunks)
}

func TestRound4_RoundsToFourDecimalPlaces(t *testing.T) {
	assert.Equal(t, 0.1235, round4(0.12346))
	assert.Equal(t, 0.1, round4(0.1))
}

func TestPerPageScores_SinglePageUsesFallback(t *testing.T) {
	scores := perPageScores([]string{"only page"}, "only page", 0.87654)
	assert.Equal(t, []float64{0.8765}, scores)
}

func TestPerPageScores_EmptyVisionTextUsesFallbackForEveryPage(t *testing.T) {
	scores := perPageScores([]string{"page one", "page two"}, "", 0.5)
	assert.Equal(t, []float64{0.5, 0.5}, scores)
}

func TestPerPageScores_DividesVisionWordsProportionally(t *testing.T) {
	classical := []string{"alpha beta", "gamma delta"}
	vision := "alpha beta gamma delta"
	scores := perPageScores(classical, vision, 0)
	assert.Len(t, scores, 2)
	assert.Equal(t, 1.0, scores[0])
	assert.Equal(t, 1.0, scores[1])
}

func TestCanaryScanner_RunNoVisionOCRDocumentsReturnsZeroSummary(t *testing.T) {
	repo := newFidelityTestRepo(t)
	log := observability.NewLogger(observability.LogConfig{})
	s := NewCanaryScanner(config.FidelityConfig{}, repo, log)

	summary, err := s.Run(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)
	assert.Empty(t, summary.Results)
}
