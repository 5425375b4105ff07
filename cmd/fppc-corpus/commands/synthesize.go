package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/nomindnick/fppc-corpus/internal/cache"
	"github.com/nomindnick/fppc-corpus/internal/cliui"
	"github.com/nomindnick/fppc-corpus/internal/errkind"
	"github.com/nomindnick/fppc-corpus/internal/llmsynth"
	"github.com/spf13/cobra"
)

var (
	synthLimit   int
	synthDryRun  bool
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Fill low-confidence sections with LLM synthesis",
	RunE:  runSynthesize,
}

func init() {
	synthesizeCmd.Flags().IntVar(&synthLimit, "limit", 0, "maximum documents to synthesize (0 = no limit)")
	synthesizeCmd.Flags().BoolVar(&synthDryRun, "dry-run", false, "project token/USD cost over the pending set without calling the API")
	rootCmd.AddCommand(synthesizeCmd)
}

func runSynthesize(cmd *cobra.Command, args []string) error {
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

	if synthDryRun {
		cliui.Section("LLM Section Synthesiser: cost estimate")
		proj, err := llmsynth.EstimateCost(ctx, p.cfg.LLMSynth, p.repo)
		if err != nil {
			return fmt.Errorf("estimate synthesis cost: %w", err)
		}
		cliui.KeyValue("pending_documents", proj.DocumentCount)
		cliui.KeyValue("estimated_input_tokens", proj.EstimatedInputTokens)
		cliui.KeyValue("estimated_output_tokens", proj.EstimatedOutputTokens)
		cliui.KeyValue("estimated_cost_usd", fmt.Sprintf("%.4f", proj.EstimatedUSD))
		return nil
	}

	if !p.cfg.LLMSynth.Enabled {
		return fmt.Errorf("llm_synth is disabled in config; set llm_synth.enabled: true and %s", p.cfg.LLMSynth.APIKeyEnv)
	}

	cliui.Section("LLM Section Synthesiser")

	raw := llmsynth.NewClient(
		p.cfg.LLMSynth.BaseURL,
		os.Getenv(p.cfg.LLMSynth.APIKeyEnv),
		p.cfg.LLMSynth.Model,
		p.cfg.LLMSynth.Timeout,
		p.cfg.LLMSynth.MaxRetries,
	)
	respCache, err := cache.New(p.cfg.Cache)
	if err != nil {
		return fmt.Errorf("open response cache: %w", err)
	}
	defer respCache.Close()
	client := llmsynth.NewCachedClient(raw, respCache, p.cfg.LLMSynth.Model, p.cfg.Cache.TTL)
	s := llmsynth.New(p.cfg.LLMSynth, p.repo, p.log, client)

	summary, err := s.ProcessPending(ctx, synthLimit)
	partial := false
	if kind, ok := errkind.KindOf(err); ok && kind == errkind.CostCeilingHit {
		cliui.Warning("cost ceiling reached, run halted early")
		partial = true
	} else if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	cliui.KeyValue("attempted", summary.Attempted)
	cliui.KeyValue("synthesized", summary.Synthesized)
	cliui.KeyValue("failed", summary.Failed)
	cliui.KeyValue("cost_usd", fmt.Sprintf("%.4f", summary.CostUSD))
	cliui.Success("synthesis complete")
	if partial {
		return errkind.ErrPartialCompletion
	}
	return nil
}
