package commands

import (
	"context"
	"fmt"

	"github.com/nomindnick/fppc-corpus/internal/cliui"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print corpus-wide download, extraction, and fidelity statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	dl, err := p.repo.DownloadStats(ctx)
	if err != nil {
		return fmt.Errorf("download stats: %w", err)
	}
	ex, err := p.repo.ExtractionStats(ctx)
	if err != nil {
		return fmt.Errorf("extraction stats: %w", err)
	}
	fi, err := p.repo.FidelityStats(ctx)
	if err != nil {
		return fmt.Errorf("fidelity stats: %w", err)
	}

	cliui.Section("Binary Fetcher")
	cliui.Table([]string{"total", "pending", "downloaded", "failed"}, [][]string{{
		fmt.Sprintf("%d", dl.Total), fmt.Sprintf("%d", dl.Pending),
		fmt.Sprintf("%d", dl.Downloaded), fmt.Sprintf("%d", dl.Failed),
	}})

	cliui.Section("Text Extractor")
	cliui.Table([]string{"total", "pending", "extracted", "errored", "needing_llm", "llm_synthesized"}, [][]string{{
		fmt.Sprintf("%d", ex.Total), fmt.Sprintf("%d", ex.Pending), fmt.Sprintf("%d", ex.Extracted),
		fmt.Sprintf("%d", ex.Errored), fmt.Sprintf("%d", ex.NeedingLLM), fmt.Sprintf("%d", ex.LLMSynthesized),
	}})

	cliui.Section("Fidelity Verifier")
	cliui.Table([]string{"unassessed", "verified", "low", "medium", "high", "critical"}, [][]string{{
		fmt.Sprintf("%d", fi.Unassessed), fmt.Sprintf("%d", fi.Verified), fmt.Sprintf("%d", fi.Low),
		fmt.Sprintf("%d", fi.Medium), fmt.Sprintf("%d", fi.High), fmt.Sprintf("%d", fi.Critical),
	}})
	return nil
}
