package fidelity

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

func TestEstimateVisionCostUSD_ComputesBlendedRate(t *testing.T) {
	got := estimateVisionCostUSD(1_000_000, 1_000_000)
	assert.InDelta(t, 0.80+4.00, got, 1e-9)
}

func TestEstimateVisionCostUSD_ZeroTokensIsFree(t *testing.T) {
	assert.Equal(t, 0.0, estimateVisionCostUSD(0, 0))
}

func TestShuffleSubset_ReturnsRequestedCountWithoutDuplicates(t *testing.T) {
	docs := []*store.Document{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	rng := rand.New(rand.NewSource(42))

	sample := shuffleSubset(docs, 3, rng)

	require.Len(t, sample, 3)
	seen := map[int64]bool{}
	for _, d := range sample {
		assert.False(t, seen[d.ID], "document drawn twice")
		seen[d.ID] = true
	}
}

func TestShuffleSubset_CapsAtAvailableDocuments(t *testing.T) {
	docs := []*store.Document{{ID: 1}, {ID: 2}}
	sample := shuffleSubset(docs, 10, rand.New(rand.NewSource(1)))
	assert.Len(t, sample, 2)
}

func TestShuffleSubset_DeterministicWithSeededRand(t *testing.T) {
	docs := []*store.Document{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	a := shuffleSubset(docs, 3, rand.New(rand.NewSource(7)))
	b := shuffleSubset(docs, 3, rand.New(rand.NewSource(7)))
	assert.Equal(t, a, b)
}

func TestShuffleSubset_DoesNotMutateInput(t *testing.T) {
	docs := []*store.Document{{ID: 1}, {ID: 2}, {ID: 3}}
	_ = shuffleSubset(docs, 2, rand.New(rand.NewSource(3)))
	assert.Equal(t, int64(1), docs[0].ID)
	assert.Equal(t, int64(2), docs[1].ID)
	assert.Equal(t, int64(3), docs[2].ID)
}

func TestSampleMediumRisk_EmptyTierAcceptsWithoutAdjudication(t *testing.T) {
	repo := newFidelityTestRepo(t)
	log := observability.NewLogger(observability.LogConfig{})
	adj := NewAdjudicator(config.FidelityConfig{}, repo, log, nil)

	decision, err := SampleMediumRisk(context.Background(), adj, repo, 0.1, 5, 0.05, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.True(t, decision.Accepted)
	assert.Equal(t, 0, decision.TierSize)
	assert.Equal(t, 0, decision.SampleSize)
}

func TestRunHighRisk_NoHighRiskDocumentsReturnsZeroSummary(t *testing.T) {
	repo := newFidelityTestRepo(t)
	log := observability.NewLogger(observability.LogConfig{})
	adj := NewAdjudicator(config.FidelityConfig{}, repo, log, nil)

	summary, err := adj.RunHighRisk(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, 0.0, summary.CostUSD)
}
