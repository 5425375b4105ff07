package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/nomindnick/fppc-corpus/internal/cache"
	"github.com/nomindnick/fppc-corpus/internal/cliui"
	"github.com/nomindnick/fppc-corpus/internal/extractor"
	"github.com/nomindnick/fppc-corpus/internal/visionocr"
	"github.com/spf13/cobra"
)

var extractLimit int

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured records from downloaded PDFs",
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().IntVar(&extractLimit, "limit", 0, "maximum documents to extract (0 = no limit)")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
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

	cliui.Section("Text Extractor")

	var vision extractor.VisionOCRClient
	if p.cfg.VisionOCR.Enabled {
		raw := visionocr.New(
			p.cfg.VisionOCR.BaseURL,
			os.Getenv(p.cfg.VisionOCR.APIKeyEnv),
			p.cfg.VisionOCR.Model,
			p.cfg.VisionOCR.Timeout,
			p.cfg.VisionOCR.MaxRetries,
		)
		respCache, err := cache.New(p.cfg.Cache)
		if err != nil {
			return fmt.Errorf("open response cache: %w", err)
		}
		defer respCache.Close()
		vision = visionocr.NewCachedClient(raw, respCache, p.cfg.VisionOCR.Model, p.cfg.Cache.TTL)
		cliui.Info("vision OCR fallback enabled (%s)", p.cfg.VisionOCR.Model)
	} else {
		cliui.Info("vision OCR fallback disabled; low-confidence pages are left for manual review")
	}

	e := extractor.New(
		p.cfg.Extraction,
		p.cfg.Quality,
		p.cfg.Citation,
		p.cfg.VisionOCR,
		p.cfg.Section.MinWords,
		p.cfg.Extraction.RawDir,
		p.cfg.Extraction.ExtractedDir,
		p.repo,
		p.log,
		vision,
	)

	summary, err := e.ProcessPending(ctx, extractLimit)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	cliui.KeyValue("attempted", summary.Attempted)
	cliui.KeyValue("extracted", summary.Extracted)
	cliui.KeyValue("errored", summary.Errored)
	cliui.KeyValue("ocr_fallback_used", summary.OCRFallbackUsed)
	cliui.KeyValue("needs_llm", summary.NeedsLLM)

	backfilled, err := p.repo.BackfillNativeFidelity(ctx)
	if err != nil {
		return fmt.Errorf("backfill native fidelity: %w", err)
	}
	cliui.KeyValue("native_fidelity_backfilled", backfilled)

	cliui.Success("extraction complete")
	return nil
}
