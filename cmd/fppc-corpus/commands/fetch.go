package commands

import (
	"context"
	"fmt"

	"github.com/nomindnick/fppc-corpus/internal/cliui"
	"github.com/nomindnick/fppc-corpus/internal/fetcher"
	"github.com/spf13/cobra"
)

var fetchLimit int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download pending PDFs",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "maximum documents to fetch (0 = no limit)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
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

	cliui.Section("Binary Fetcher")

	f := fetcher.New(p.cfg.Fetcher, p.cfg.Extraction.RawDir, p.repo, p.log)
	summary, err := f.FetchPending(ctx, fetchLimit)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	cliui.KeyValue("attempted", summary.Attempted)
	cliui.KeyValue("downloaded", summary.Downloaded)
	cliui.KeyValue("adopted", summary.Adopted)
	cliui.KeyValue("failed", summary.Failed)
	cliui.Success("fetch complete")
	return nil
}
