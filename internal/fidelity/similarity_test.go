package fidelity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceRatio_IdenticalSequences(t *testing.T) {
	a := []string{"the", "commission", "finds", "that", "the", "conduct", "violates", "section", "87100"}
	assert.Equal(t, 1.0, SequenceRatio(a, a))
}

func TestSequenceRatio_BothEmpty(t *testing.T) {
	assert.Equal(t, 1.0, SequenceRatio(nil, nil))
}

func TestSequenceRatio_OneEmpty(t *testing.T) {
	assert.Equal(t, 0.0, SequenceRatio([]string{"a"}, nil))
	assert.Equal(t, 0.0, SequenceRatio(nil, []string{"a"}))
}

func TestSequenceRatio_PartialOverlap(t *testing.T) {
	a := []string{"a", "b", "c", "d"}
	b := []string{"a", "b", "x", "d"}
	// matches: "a b" (2) + "d" (1) = 3; T = 8; ratio = 6/8 = 0.75
	assert.InDelta(t, 0.75, SequenceRatio(a, b), 1e-9)
}

func TestSequenceRatio_NoOverlap(t *testing.T) {
	a := []string{"alpha", "beta"}
	b := []string{"gamma", "delta"}
	assert.Equal(t, 0.0, SequenceRatio(a, b))
}

func TestSequenceRatio_Autojunk_PopularTokenIgnored(t *testing.T) {
	// b has 260 tokens: "the" repeated 60 times (> 260/100+1=3), "filler"
	// repeated 199 times, plus one rare shared token "opinion".
	b := make([]string, 0, 260)
	for i := 0; i < 60; i++ {
		b = append(b, "the")
	}
	for i := 0; i < 199; i++ {
		b = append(b, "filler")
	}
	b = append(b, "opinion")

	a := []string{"the", "opinion"}
	// "the" is popular in b (appears 60 > threshold) and is dropped from the
	// index, so only "opinion" can match: M=1, T=2+260=262, ratio=2/262.
	got := SequenceRatio(a, b)
	assert.InDelta(t, 2.0/float64(len(a)+len(b)), got, 1e-9)
}

func TestNormalizeForComparison(t *testing.T) {
	in := "The Commission, finds--that\n\nthe CONDUCT violates Section 87100."
	got := normalizeForComparison(in)
	assert.Equal(t, "the commission finds that the conduct violates section 87100", got)
}

func TestDetectDescriptionMode(t *testing.T) {
	assert.True(t, detectDescriptionMode("The image shows a scanned letter addressed to the Commission."))
	assert.True(t, detectDescriptionMode("This appears to be a scanned legal document with letterhead."))
	assert.False(t, detectDescriptionMode("Dear Ms. Smith: Thank you for your request for advice."))
}

func TestClassifyRiskTier(t *testing.T) {
	cases := []struct {
		score            float64
		descriptionMode  bool
		want             string
	}{
		{0.95, false, "low"},
		{0.70, false, "low"},
		{0.69, false, "medium"},
		{0.50, false, "medium"},
		{0.49, false, "high"},
		{0.30, false, "high"},
		{0.29, false, "critical"},
		{0.99, true, "critical"},
	}
	for _, c := range cases {
		got := classifyRiskTier(c.score, c.descriptionMode, 0.30, 0.50, 0.70)
		assert.Equal(t, c.want, got, "score=%v description=%v", c.score, c.descriptionMode)
	}
}
