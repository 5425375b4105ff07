package commands

import (
	"context"
	"fmt"

	"github.com/nomindnick/fppc-corpus/internal/cliui"
	"github.com/nomindnick/fppc-corpus/internal/crawler"
	"github.com/spf13/cobra"
)

var (
	crawlStartYear int
	crawlEndYear   int
	crawlResume    bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Enumerate the advice-letter catalog and record discovered documents",
	RunE:  runCrawl,
}

func init() {
	crawlCmd.Flags().IntVar(&crawlStartYear, "start-year", 0, "first year to crawl (defaults to config)")
	crawlCmd.Flags().IntVar(&crawlEndYear, "end-year", 0, "last year to crawl (defaults to config)")
	crawlCmd.Flags().BoolVar(&crawlResume, "resume", true, "resume from the crawl checkpoint if present")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
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

	startYear := p.cfg.Crawler.StartYear
	if crawlStartYear != 0 {
		startYear = crawlStartYear
	}
	endYear := p.cfg.Crawler.EndYear
	if crawlEndYear != 0 {
		endYear = crawlEndYear
	}

	cliui.Section("Catalog Crawler")
	cliui.Info("crawling years %d-%d (resume=%v)", startYear, endYear, crawlResume)

	var years []int
	if crawlStartYear != 0 || crawlEndYear != 0 {
		years = []int{startYear, endYear}
	}

	c := crawler.New(p.cfg.Crawler, p.repo, p.log)
	summary, err := c.CrawlAll(ctx, years, crawlResume)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	rows := make([][]string, 0, len(summary.Years))
	totalFound, totalInserted, totalDup := 0, 0, 0
	for _, ys := range summary.Years {
		rows = append(rows, []string{
			fmt.Sprintf("%d", ys.Year),
			fmt.Sprintf("%d", ys.Pages),
			fmt.Sprintf("%d", ys.Found),
			fmt.Sprintf("%d", ys.Inserted),
			fmt.Sprintf("%d", ys.Duplicate),
		})
		totalFound += ys.Found
		totalInserted += ys.Inserted
		totalDup += ys.Duplicate
	}
	cliui.Table([]string{"year", "pages", "found", "inserted", "duplicate"}, rows)
	cliui.Success("crawl complete: %d found, %d inserted, %d duplicate", totalFound, totalInserted, totalDup)
	return nil
}
