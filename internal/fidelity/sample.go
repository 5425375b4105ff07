package fidelity

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/nomindnick/fppc-corpus/internal/store"
)

// SampleDecision is phase 3's verdict over the whole medium-risk tier.
type SampleDecision struct {
	TierSize      int
	SampleSize    int
	Checked       int
	Hallucinated  int
	ErrorRate     float64
	Accepted      bool // true: whole tier upgraded to low; false: recommend full adjudication
	CostUSD       float64
}

// SampleMediumRisk draws a random sample of the medium-risk tier (at least
// cfg.SampleMinimum, or cfg.SampleFraction of the tier if larger), runs
// phase-2-style adjudication on each sampled Document, and either upgrades
// the whole tier to low (error rate below cfg.AcceptanceThreshold) or
// leaves it as-is with a recommendation to run full adjudication. Grounded
// on original_source/scripts/sample_medium_risk.py's
// "error rate < 5% -> medium tier is acceptable" decision rule.
//
// rng is injected so tests can supply a deterministic source; callers pass
// rand.New(rand.NewSource(time.Now().UnixNano())) in production, since
// package-level math/rand state is not itself resumable or seedable per
// call the way this workflow needs.
func SampleMediumRisk(ctx context.Context, adj *Adjudicator, repo *store.Repository, sampleFraction float64, sampleMinimum int, acceptanceThreshold float64, rng *rand.Rand) (*SampleDecision, error) {
	tier, err := repo.ByFidelityRisk(ctx, store.RiskMedium, 1_000_000)
	if err != nil {
		return nil, fmt.Errorf("list medium-risk documents: %w", err)
	}

	decision := &SampleDecision{TierSize: len(tier)}
	if len(tier) == 0 {
		decision.Accepted = true
		return decision, nil
	}

	sampleSize := int(float64(len(tier)) * sampleFraction)
	if sampleSize < sampleMinimum {
		sampleSize = sampleMinimum
	}
	if sampleSize > len(tier) {
		sampleSize = len(tier)
	}
	decision.SampleSize = sampleSize

	sample := shuffleSubset(tier, sampleSize, rng)

	for _, d := range sample {
		select {
		case <-ctx.Done():
			return decision, ctx.Err()
		default:
		}

		outcome := adj.adjudicateOne(ctx, d)
		decision.CostUSD += outcome.CostUSD
		if outcome.Err != nil {
			continue
		}
		decision.Checked++
		if outcome.IsHallucinated && !outcome.Repaired {
			decision.Hallucinated++
		}
	}

	if decision.Checked == 0 {
		// Every sampled adjudication errored out; there is no basis to
		// accept the tier, so leave it unreviewed rather than read a
		// vacuous 0% error rate as a pass.
		return decision, nil
	}
	decision.ErrorRate = float64(decision.Hallucinated) / float64(decision.Checked)
	decision.Accepted = decision.ErrorRate < acceptanceThreshold

	if decision.Accepted {
		for _, d := range tier {
			if err := repo.UpdateFidelity(ctx, d.ID, 1-decision.ErrorRate, store.FidelityMethodStatisticalAcceptance, store.RiskLow); err != nil {
				return decision, fmt.Errorf("accept medium tier: update fidelity for document %d: %w", d.ID, err)
			}
		}
	}
	return decision, nil
}

// shuffleSubset returns n documents drawn without replacement from docs,
// via a Fisher-Yates partial shuffle so every document has equal selection
// probability, matching random.sample's guarantee in the original script.
func shuffleSubset(docs []*store.Document, n int, rng *rand.Rand) []*store.Document {
	pool := make([]*store.Document, len(docs))
	copy(pool, docs)
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
