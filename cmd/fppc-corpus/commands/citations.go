package commands

import (
	"context"
	"fmt"

	"github.com/nomindnick/fppc-corpus/internal/cliui"
	"github.com/nomindnick/fppc-corpus/internal/citationgraph"
	"github.com/spf13/cobra"
)

var citationsShowGaps int

var citationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "Build the derived citation graph and report dangling references",
	RunE:  runCitations,
}

func init() {
	citationsCmd.Flags().IntVar(&citationsShowGaps, "show-gaps", 10, "number of top dangling-citation targets to print")
	rootCmd.AddCommand(citationsCmd)
}

func runCitations(cmd *cobra.Command, args []string) error {
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

	cliui.Section("Citation Graph")

	report, err := citationgraph.Build(ctx, p.repo)
	if err != nil {
		return fmt.Errorf("build citation graph: %w", err)
	}

	cliui.KeyValue("total_documents", report.TotalDocuments)
	cliui.KeyValue("total_edges", report.TotalEdges)
	cliui.KeyValue("total_resolved", report.TotalResolved)
	cliui.KeyValue("total_dangling", report.TotalDangling)
	cliui.KeyValue("docs_updated", report.DocsUpdated)
	cliui.KeyValue("docs_unchanged", report.DocsUnchanged)

	n := citationsShowGaps
	if n > len(report.Gaps) {
		n = len(report.Gaps)
	}
	if n > 0 {
		rows := make([][]string, 0, n)
		for _, g := range report.Gaps[:n] {
			rows = append(rows, []string{g.ID, fmt.Sprintf("%d", g.CitedByCount)})
		}
		cliui.Section("Top dangling citation targets")
		cliui.Table([]string{"id", "cited_by_count"}, rows)
	}

	cliui.Success("citation graph built")
	return nil
}
