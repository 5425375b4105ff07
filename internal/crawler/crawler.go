// Package crawler implements the Catalog Crawler (C1): it enumerates the
// remote catalog by year and page, parses search-result HTML, and records
// one row per discovered document in the State Store. Grounded on
// scraper/crawler.py in original_source/ (crawl_year, crawl_all,
// build_year_url, the checkpoint file shape) and generalised from argparse
// script to a resumable library operation per spec §4.1.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nomindnick/fppc-corpus/internal/checkpoint"
	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/errkind"
	"github.com/nomindnick/fppc-corpus/internal/httpfetch"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
	"github.com/nomindnick/fppc-corpus/internal/titleparse"
)

// YearSummary reports one year's crawl outcome.
type YearSummary struct {
	Year      int
	Pages     int
	Found     int
	Inserted  int
	Duplicate int
	FirstPageFailed bool
}

// RunSummary aggregates every year crawled in one invocation.
type RunSummary struct {
	Years []YearSummary
}

// Crawler drives the year/page state machine described in spec §4.1.
type Crawler struct {
	cfg    config.CrawlerConfig
	http   *httpfetch.Client
	repo   *store.Repository
	log    *observability.Logger
}

func New(cfg config.CrawlerConfig, repo *store.Repository, log *observability.Logger) *Crawler {
	return &Crawler{
		cfg:  cfg,
		http: httpfetch.New(cfg.RequestTimeout, cfg.MaxRetries, cfg.RetryBackoffBase),
		repo: repo,
		log:  log.WithStage("crawl"),
	}
}

// BuildYearURL templates the catalog search URL for a given year/page,
// matching scraper/crawler.py:build_year_url and spec §6's "Catalog HTTP".
func (c *Crawler) BuildYearURL(year, page int) string {
	q := url.Values{}
	q.Set("SearchTerm", "")
	q.Set("tag1", strconv.Itoa(year))
	q.Set("tagCount", "1")
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return c.cfg.BaseURL + "?" + q.Encode()
}

// CrawlAll crawls every year in the configured range, resuming from the
// checkpoint file when resumeFromCheckpoint is true. An explicit
// two-element yearRange [start, end] overrides the configured range and the
// checkpoint is ignored for that invocation, matching scraper/crawler.py's
// --year / --start-year / --all argument precedence; a yearRange of any
// other length is ignored.
func (c *Crawler) CrawlAll(ctx context.Context, yearRange []int, resumeFromCheckpoint bool) (*RunSummary, error) {
	startYear, endYear := c.cfg.StartYear, c.cfg.EndYear
	if len(yearRange) == 2 {
		startYear, endYear = yearRange[0], yearRange[1]
		resumeFromCheckpoint = false
	}

	if resumeFromCheckpoint {
		cp, err := checkpoint.Load[checkpoint.CrawlCheckpoint](c.cfg.CheckpointPath)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if cp != nil && cp.LastCompletedYear >= startYear {
			startYear = cp.LastCompletedYear + 1
			c.log.Info().Int("resume_from_year", startYear).Msg("resuming from checkpoint")
		}
	}

	summary := &RunSummary{}
	checkpointHeld := false
	for year := startYear; year <= endYear; year++ {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		ys, err := c.CrawlYear(ctx, year)
		if err != nil {
			c.log.Warn().Int("year", year).Err(err).Msg("year crawl failed, continuing to next year")
		}
		summary.Years = append(summary.Years, ys)

		if ys.FirstPageFailed {
			checkpointHeld = true
		}
		if !checkpointHeld {
			if err := checkpoint.Save(c.cfg.CheckpointPath, checkpoint.CrawlCheckpoint{
				LastCompletedYear: year,
				LastCompletedPage: ys.Pages,
				Timestamp:         time.Now().UTC(),
			}); err != nil {
				return summary, fmt.Errorf("save checkpoint: %w", err)
			}
		}
	}
	return summary, nil
}

// CrawlYear pages through one year's results, inserting one row per
// discovered document. Fatal on the first page (B1): the year is skipped
// and the checkpoint is not advanced past it.
func (c *Crawler) CrawlYear(ctx context.Context, year int) (YearSummary, error) {
	summary := YearSummary{Year: year}

	firstPage, status, err := c.http.GetBody(ctx, c.BuildYearURL(year, 1))
	if err != nil {
		summary.FirstPageFailed = true
		return summary, errkind.TransientNetworkError(fmt.Sprintf("year %d page 1 fetch failed (status %d)", year, status), err)
	}

	pageCount, _ := PageCount(string(firstPage))
	summary.Pages = pageCount

	if err := c.processPage(ctx, year, 1, firstPage, &summary); err != nil {
		c.log.Warn().Int("year", year).Int("page", 1).Err(err).Msg("page parse failed, skipping page")
	}

	for page := 2; page <= pageCount; page++ {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		case <-time.After(c.cfg.PoliteDelay):
		}

		body, _, err := c.http.GetBody(ctx, c.BuildYearURL(year, page))
		if err != nil {
			c.log.Warn().Int("year", year).Int("page", page).Err(err).Msg("page fetch failed, skipping page")
			continue
		}
		if err := c.processPage(ctx, year, page, body, &summary); err != nil {
			c.log.Warn().Int("year", year).Int("page", page).Err(err).Msg("page parse failed, skipping page")
		}
	}

	return summary, nil
}

func (c *Crawler) processPage(ctx context.Context, year, page int, body []byte, summary *YearSummary) error {
	results := ParseResults(string(body))
	if results == nil {
		return errkind.ParseFailedError(fmt.Sprintf("no result entries found on year %d page %d", year, page), nil)
	}

	for _, r := range results {
		summary.Found++

		resolvedYear := year
		if y, ok := titleparse.YearFromTags(r.Tags); ok {
			resolvedYear = y
		} else if y, ok := titleparse.YearFromURL(r.BinaryURL); ok {
			resolvedYear = y
		}

		meta := titleparse.Parse(r.Title)

		doc := &store.Document{
			PDFURL:        r.BinaryURL,
			TitleText:     r.Title,
			YearTag:       resolvedYear,
			Tags:          r.Tags,
			SourcePageURL: c.BuildYearURL(year, page),
			RequestorName: meta.RequestorName,
			LetterID:      meta.LetterID,
			LetterDate:    meta.LetterDate,
			City:          meta.City,
		}

		inserted, err := c.repo.InsertDiscovered(ctx, doc)
		if err != nil {
			return fmt.Errorf("insert discovered document: %w", err)
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Duplicate++
		}
	}
	return nil
}
