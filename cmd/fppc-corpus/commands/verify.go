package commands

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/nomindnick/fppc-corpus/internal/cliui"
	"github.com/nomindnick/fppc-corpus/internal/errkind"
	"github.com/nomindnick/fppc-corpus/internal/fidelity"
	"github.com/nomindnick/fppc-corpus/internal/reports"
	"github.com/nomindnick/fppc-corpus/internal/visionocr"
	"github.com/spf13/cobra"
)

var (
	verifyPhase    string
	verifyLimit    int
	verifyMaxCost  float64
	verifyCheckpoint string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the fidelity verifier (canary, adjudicate, sample, or retranscribe)",
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPhase, "phase", "canary", "phase to run: canary, adjudicate, sample, retranscribe")
	verifyCmd.Flags().IntVar(&verifyLimit, "limit", 0, "maximum documents to process (0 = no limit)")
	verifyCmd.Flags().Float64Var(&verifyMaxCost, "max-cost-usd", 0, "halt once cumulative vision-LLM spend reaches this (0 = no ceiling)")
	verifyCmd.Flags().StringVar(&verifyCheckpoint, "checkpoint", "", "checkpoint file path for the canary phase (defaults to config reports_dir)")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cliui.Init(noColor, verbose)
	defer cliui.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, p, err := loadPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	cliui.Section(fmt.Sprintf("Fidelity Verifier: %s", verifyPhase))

	switch verifyPhase {
	case "canary":
		return runVerifyCanary(ctx, p)
	case "adjudicate":
		return runVerifyAdjudicate(ctx, p)
	case "sample":
		return runVerifySample(ctx, p)
	case "retranscribe":
		return runVerifyRetranscribe(ctx, p)
	default:
		return fmt.Errorf("unknown verify phase %q (want canary, adjudicate, sample, or retranscribe)", verifyPhase)
	}
}

func newVisionClient(p *pipeline) (fidelity.VisionClient, error) {
	if !p.cfg.VisionOCR.Enabled {
		return nil, fmt.Errorf("vision_ocr is disabled in config; adjudication and re-transcription need it enabled with %s set", p.cfg.VisionOCR.APIKeyEnv)
	}
	return visionocr.New(
		p.cfg.VisionOCR.BaseURL,
		os.Getenv(p.cfg.VisionOCR.APIKeyEnv),
		p.cfg.VisionOCR.Model,
		p.cfg.VisionOCR.Timeout,
		p.cfg.VisionOCR.MaxRetries,
	), nil
}

func runVerifyCanary(ctx context.Context, p *pipeline) error {
	checkpointPath := verifyCheckpoint
	if checkpointPath == "" && p.cfg.Fidelity.ReportsDir != "" {
		checkpointPath = p.cfg.Fidelity.ReportsDir + "/canary_checkpoint.json"
	}

	scanner := fidelity.NewCanaryScanner(p.cfg.Fidelity, p.repo, p.log)
	summary, err := scanner.Run(ctx, checkpointPath, verifyLimit)
	if err != nil {
		return fmt.Errorf("canary scan: %w", err)
	}

	cliui.KeyValue("attempted", summary.Attempted)
	cliui.KeyValue("critical", summary.Critical)
	cliui.KeyValue("high", summary.High)
	cliui.KeyValue("medium", summary.Medium)
	cliui.KeyValue("low", summary.Low)
	cliui.KeyValue("errored", summary.Errored)

	if err := reports.Write(p.cfg.Fidelity.ReportsDir, reports.CanaryScan, summary, []reports.KV{
		{Key: "attempted", Value: fmt.Sprintf("%d", summary.Attempted)},
		{Key: "critical", Value: fmt.Sprintf("%d", summary.Critical)},
		{Key: "high", Value: fmt.Sprintf("%d", summary.High)},
		{Key: "medium", Value: fmt.Sprintf("%d", summary.Medium)},
		{Key: "low", Value: fmt.Sprintf("%d", summary.Low)},
		{Key: "errored", Value: fmt.Sprintf("%d", summary.Errored)},
	}); err != nil {
		return fmt.Errorf("write canary report: %w", err)
	}

	cliui.Success("canary scan complete")
	return nil
}

func runVerifyAdjudicate(ctx context.Context, p *pipeline) error {
	vision, err := newVisionClient(p)
	if err != nil {
		return err
	}
	adj := fidelity.NewAdjudicator(p.cfg.Fidelity, p.repo, p.log, vision)

	summary, err := adj.RunHighRisk(ctx, verifyLimit, verifyMaxCost)
	partial := false
	if kind, ok := errkind.KindOf(err); ok && kind == errkind.CostCeilingHit {
		cliui.Warning("cost ceiling reached, run halted early")
		partial = true
	} else if err != nil {
		return fmt.Errorf("adjudicate: %w", err)
	}

	cliui.KeyValue("attempted", summary.Attempted)
	cliui.KeyValue("verified_ok", summary.VerifiedOK)
	cliui.KeyValue("hallucinated", summary.Hallucinated)
	cliui.KeyValue("repaired", summary.Repaired)
	cliui.KeyValue("unreadable", summary.Unreadable)
	cliui.KeyValue("errored", summary.Errored)
	cliui.KeyValue("cost_usd", fmt.Sprintf("%.4f", summary.CostUSD))

	if werr := reports.Write(p.cfg.Fidelity.ReportsDir, reports.HighRiskVerification, summary, []reports.KV{
		{Key: "attempted", Value: fmt.Sprintf("%d", summary.Attempted)},
		{Key: "verified_ok", Value: fmt.Sprintf("%d", summary.VerifiedOK)},
		{Key: "hallucinated", Value: fmt.Sprintf("%d", summary.Hallucinated)},
		{Key: "repaired", Value: fmt.Sprintf("%d", summary.Repaired)},
		{Key: "unreadable", Value: fmt.Sprintf("%d", summary.Unreadable)},
		{Key: "errored", Value: fmt.Sprintf("%d", summary.Errored)},
		{Key: "cost_usd", Value: fmt.Sprintf("%.4f", summary.CostUSD)},
	}); werr != nil {
		return fmt.Errorf("write adjudication report: %w", werr)
	}

	cliui.Success("adjudication complete")
	if partial {
		return errkind.ErrPartialCompletion
	}
	return nil
}

func runVerifySample(ctx context.Context, p *pipeline) error {
	vision, err := newVisionClient(p)
	if err != nil {
		return err
	}
	adj := fidelity.NewAdjudicator(p.cfg.Fidelity, p.repo, p.log, vision)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	decision, err := fidelity.SampleMediumRisk(ctx, adj, p.repo, p.cfg.Fidelity.SampleFraction, p.cfg.Fidelity.SampleMinimum, p.cfg.Fidelity.AcceptanceThreshold, rng)
	if err != nil {
		return fmt.Errorf("sample medium risk: %w", err)
	}

	cliui.KeyValue("tier_size", decision.TierSize)
	cliui.KeyValue("sample_size", decision.SampleSize)
	cliui.KeyValue("checked", decision.Checked)
	cliui.KeyValue("hallucinated", decision.Hallucinated)
	cliui.KeyValue("error_rate", fmt.Sprintf("%.4f", decision.ErrorRate))
	cliui.KeyValue("cost_usd", fmt.Sprintf("%.4f", decision.CostUSD))

	if err := reports.Write(p.cfg.Fidelity.ReportsDir, reports.MediumRiskSampling, decision, []reports.KV{
		{Key: "tier_size", Value: fmt.Sprintf("%d", decision.TierSize)},
		{Key: "sample_size", Value: fmt.Sprintf("%d", decision.SampleSize)},
		{Key: "checked", Value: fmt.Sprintf("%d", decision.Checked)},
		{Key: "hallucinated", Value: fmt.Sprintf("%d", decision.Hallucinated)},
		{Key: "error_rate", Value: fmt.Sprintf("%.4f", decision.ErrorRate)},
		{Key: "cost_usd", Value: fmt.Sprintf("%.4f", decision.CostUSD)},
		{Key: "accepted", Value: fmt.Sprintf("%t", decision.Accepted)},
	}); err != nil {
		return fmt.Errorf("write sampling report: %w", err)
	}

	if decision.Accepted {
		cliui.Success("medium-risk tier accepted, upgraded to low")
	} else {
		cliui.Warning("medium-risk tier rejected, recommend full adjudication")
	}
	return nil
}

func runVerifyRetranscribe(ctx context.Context, p *pipeline) error {
	vision, err := newVisionClient(p)
	if err != nil {
		return err
	}
	retr := fidelity.NewRetranscriber(p.cfg.Extraction, p.cfg.Fidelity, p.repo, p.log, vision)

	summary, err := retr.RunCritical(ctx, verifyLimit, verifyMaxCost)
	partial := false
	if kind, ok := errkind.KindOf(err); ok && kind == errkind.CostCeilingHit {
		cliui.Warning("cost ceiling reached, run halted early")
		partial = true
	} else if err != nil {
		return fmt.Errorf("retranscribe: %w", err)
	}

	cliui.KeyValue("attempted", summary.Attempted)
	cliui.KeyValue("succeeded", summary.Succeeded)
	cliui.KeyValue("errored", summary.Errored)
	cliui.KeyValue("cost_usd", fmt.Sprintf("%.4f", summary.CostUSD))

	if werr := reports.Write(p.cfg.Fidelity.ReportsDir, reports.FidelityReport, summary, []reports.KV{
		{Key: "attempted", Value: fmt.Sprintf("%d", summary.Attempted)},
		{Key: "succeeded", Value: fmt.Sprintf("%d", summary.Succeeded)},
		{Key: "errored", Value: fmt.Sprintf("%d", summary.Errored)},
		{Key: "cost_usd", Value: fmt.Sprintf("%.4f", summary.CostUSD)},
	}); werr != nil {
		return fmt.Errorf("write retranscription report: %w", werr)
	}

	cliui.Success("full re-transcription complete")
	if partial {
		return errkind.ErrPartialCompletion
	}
	return nil
}
