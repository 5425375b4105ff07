// Package corpus is a small public facade over the pipeline stages,
// re-exporting each stage's entrypoint and summary type the way
// pkg/extractor/extractor.go re-exports the pdf-extractor module's
// domain/extract types for callers outside the monorepo. Unlike that
// single streaming Process call, THE CORE here is a batch pipeline with
// one operation per stage, so Client exposes one method per stage instead
// of one Process method.
package corpus

import (
	"context"
	"fmt"
	"os"

	"github.com/nomindnick/fppc-corpus/internal/cache"
	"github.com/nomindnick/fppc-corpus/internal/citationgraph"
	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/crawler"
	"github.com/nomindnick/fppc-corpus/internal/extractor"
	"github.com/nomindnick/fppc-corpus/internal/fetcher"
	"github.com/nomindnick/fppc-corpus/internal/fidelity"
	"github.com/nomindnick/fppc-corpus/internal/llmsynth"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
	"github.com/nomindnick/fppc-corpus/internal/visionocr"
)

// Re-exported summary types, so a caller of this package never needs to
// import the internal stage packages directly.
type (
	CrawlSummary       = crawler.RunSummary
	FetchSummary       = fetcher.RunSummary
	ExtractSummary     = extractor.RunSummary
	SynthesizeSummary  = llmsynth.RunSummary
	CanarySummary      = fidelity.CanaryRunSummary
	AdjudicateSummary  = fidelity.AdjudicationRunSummary
	RetranscribeSummary = fidelity.RetranscribeRunSummary
	CitationGraphReport = citationgraph.Report
	Document           = store.Document
)

// Client bundles the config, logger, and State Store handle every stage
// needs, mirroring the teacher's pkg/extractor.Client wrapping a
// converter+service pair behind one type with one constructor.
type Client struct {
	cfg  *config.Config
	log  *observability.Logger
	repo *store.Repository
	db   interface{ Close() error }
}

// NewClient loads configuration (from configPath, or defaults plus
// environment overrides if empty), opens the State Store, and returns a
// ready-to-use Client. Like the teacher's NewClient, it loads .env first so
// API keys set there are visible to config validation.
func NewClient(ctx context.Context, configPath string) (*Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "fppc-corpus",
	})

	db, err := store.Open(ctx, cfg.Store.Driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	return &Client{
		cfg:  cfg,
		log:  log,
		repo: store.NewRepository(db, cfg.Store.Driver),
		db:   db,
	}, nil
}

// Close releases the State Store handle.
func (c *Client) Close() error {
	return c.db.Close()
}

// Repository exposes the underlying State Store repository for callers
// that need read-only access (e.g. a report server) without driving a
// pipeline stage.
func (c *Client) Repository() *store.Repository {
	return c.repo
}

// Crawl runs the Catalog Crawler (C1) across years.
func (c *Client) Crawl(ctx context.Context, years []int, resume bool) (*CrawlSummary, error) {
	cr := crawler.New(c.cfg.Crawler, c.repo, c.log)
	return cr.CrawlAll(ctx, years, resume)
}

// Fetch runs the Binary Fetcher (C2) over up to limit pending Documents.
func (c *Client) Fetch(ctx context.Context, limit int) (*FetchSummary, error) {
	f := fetcher.New(c.cfg.Fetcher, c.cfg.Extraction.RawDir, c.repo, c.log)
	return f.FetchPending(ctx, limit)
}

// Extract runs the Text Extractor (C4) over up to limit downloaded
// Documents. The vision-OCR client is constructed here only if enabled,
// the same conditional the extract subcommand applies.
func (c *Client) Extract(ctx context.Context, limit int) (*ExtractSummary, error) {
	var vision extractor.VisionOCRClient
	if c.cfg.VisionOCR.Enabled {
		raw := visionocr.New(
			c.cfg.VisionOCR.BaseURL, os.Getenv(c.cfg.VisionOCR.APIKeyEnv),
			c.cfg.VisionOCR.Model, c.cfg.VisionOCR.Timeout, c.cfg.VisionOCR.MaxRetries,
		)
		respCache, err := cache.New(c.cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("open response cache: %w", err)
		}
		defer respCache.Close()
		vision = visionocr.NewCachedClient(raw, respCache, c.cfg.VisionOCR.Model, c.cfg.Cache.TTL)
	}
	e := extractor.New(
		c.cfg.Extraction, c.cfg.Quality, c.cfg.Citation, c.cfg.VisionOCR, c.cfg.Section.MinWords,
		c.cfg.Extraction.RawDir, c.cfg.Extraction.ExtractedDir, c.repo, c.log, vision,
	)
	return e.ProcessPending(ctx, limit)
}

// Synthesize runs the LLM Section Synthesiser (C6) over up to limit
// flagged Documents.
func (c *Client) Synthesize(ctx context.Context, limit int) (*SynthesizeSummary, error) {
	if !c.cfg.LLMSynth.Enabled {
		return nil, fmt.Errorf("llm_synth is disabled in config")
	}
	raw := llmsynth.NewClient(
		c.cfg.LLMSynth.BaseURL, os.Getenv(c.cfg.LLMSynth.APIKeyEnv),
		c.cfg.LLMSynth.Model, c.cfg.LLMSynth.Timeout, c.cfg.LLMSynth.MaxRetries,
	)
	respCache, err := cache.New(c.cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open response cache: %w", err)
	}
	defer respCache.Close()
	client := llmsynth.NewCachedClient(raw, respCache, c.cfg.LLMSynth.Model, c.cfg.Cache.TTL)
	s := llmsynth.New(c.cfg.LLMSynth, c.repo, c.log, client)
	return s.ProcessPending(ctx, limit)
}

// EstimateSynthesisCost walks the pending set and projects a USD cost
// without calling the API, per spec §4.6's mandatory dry-run mode.
func (c *Client) EstimateSynthesisCost(ctx context.Context) (llmsynth.ProjectedCost, error) {
	return llmsynth.EstimateCost(ctx, c.cfg.LLMSynth, c.repo)
}

// VerifyCanary runs Fidelity Verifier Phase 1 (canary scan).
func (c *Client) VerifyCanary(ctx context.Context, checkpointPath string, limit int) (*CanarySummary, error) {
	scanner := fidelity.NewCanaryScanner(c.cfg.Fidelity, c.repo, c.log)
	return scanner.Run(ctx, checkpointPath, limit)
}

// VerifyAdjudicateHighRisk runs Fidelity Verifier Phase 2 over high-risk
// Documents, up to limit and maxCostUSD (0 = no ceiling).
func (c *Client) VerifyAdjudicateHighRisk(ctx context.Context, limit int, maxCostUSD float64) (*AdjudicateSummary, error) {
	vision, err := c.visionClient()
	if err != nil {
		return nil, err
	}
	adj := fidelity.NewAdjudicator(c.cfg.Fidelity, c.repo, c.log, vision)
	return adj.RunHighRisk(ctx, limit, maxCostUSD)
}

// VerifyRetranscribe runs Fidelity Verifier Phase 4 over critical-risk
// Documents, up to limit and maxCostUSD.
func (c *Client) VerifyRetranscribe(ctx context.Context, limit int, maxCostUSD float64) (*RetranscribeSummary, error) {
	vision, err := c.visionClient()
	if err != nil {
		return nil, err
	}
	retr := fidelity.NewRetranscriber(c.cfg.Extraction, c.cfg.Fidelity, c.repo, c.log, vision)
	return retr.RunCritical(ctx, limit, maxCostUSD)
}

// CitationGraph runs the derived Citation Graph post-pass over every
// extracted Document.
func (c *Client) CitationGraph(ctx context.Context) (CitationGraphReport, error) {
	return citationgraph.Build(ctx, c.repo)
}

// Stats returns the download/extraction/fidelity summary statistics the
// stats subcommand and fppc-report-server both render.
func (c *Client) Stats(ctx context.Context) (store.DownloadStats, store.ExtractionStats, store.FidelityStats, error) {
	dl, err := c.repo.DownloadStats(ctx)
	if err != nil {
		return dl, store.ExtractionStats{}, store.FidelityStats{}, err
	}
	ex, err := c.repo.ExtractionStats(ctx)
	if err != nil {
		return dl, ex, store.FidelityStats{}, err
	}
	fi, err := c.repo.FidelityStats(ctx)
	return dl, ex, fi, err
}

func (c *Client) visionClient() (fidelity.VisionClient, error) {
	if !c.cfg.VisionOCR.Enabled {
		return nil, fmt.Errorf("vision_ocr is disabled in config")
	}
	return visionocr.New(
		c.cfg.VisionOCR.BaseURL, os.Getenv(c.cfg.VisionOCR.APIKeyEnv),
		c.cfg.VisionOCR.Model, c.cfg.VisionOCR.Timeout, c.cfg.VisionOCR.MaxRetries,
	), nil
}
