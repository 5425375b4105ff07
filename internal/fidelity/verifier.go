package fidelity

import (
	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

// Verifier composes the four Fidelity Verifier phases behind one type.
// cmd/fppc-corpus's verify subcommand and pkg/corpus do not use it; they
// build each phase with its own constructor.
type Verifier struct {
	Canary        *CanaryScanner
	Adjudicator   *Adjudicator
	Retranscriber *Retranscriber
}

// New builds a Verifier with the vision client shared across phases 2-4,
// matching SPEC_FULL.md's decision to reuse one visionocr.Client for every
// vision-LLM role in C7 rather than a separate adjudication client.
func New(extractionCfg config.ExtractionConfig, fidelityCfg config.FidelityConfig, repo *store.Repository, log *observability.Logger, vision VisionClient) *Verifier {
	return &Verifier{
		Canary:        NewCanaryScanner(fidelityCfg, repo, log),
		Adjudicator:   NewAdjudicator(fidelityCfg, repo, log, vision),
		Retranscriber: NewRetranscriber(extractionCfg, fidelityCfg, repo, log, vision),
	}
}

// Report summarises one verification run across every tier. Nothing in
// the module builds one: the verify subcommand writes each phase's own
// summary through internal/reports, and cmd/fppc-report-server serves
// those report files.
type Report struct {
	Stats     store.FidelityStats `json:"stats"`
	Canary    *CanaryRunSummary   `json:"canary,omitempty"`
	Adjudication *AdjudicationRunSummary `json:"adjudication,omitempty"`
	Sample    *SampleDecision     `json:"sample,omitempty"`
	Retranscription *RetranscribeRunSummary `json:"retranscription,omitempty"`
}
