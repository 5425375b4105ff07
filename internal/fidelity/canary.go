// Package fidelity implements the Fidelity Verifier (C7): four phases that
// detect and repair vision-OCR hallucination by cross-checking against a
// classical OCR engine that never fabricates content, per spec §4.7.
// Grounded on original_source/scripts/run_tesseract_canary.py (phase 1),
// verify_high_risk.py (phase 2), sample_medium_risk.py (phase 3), and
// fix_critical_fidelity.py (phase 4), reworked from one-shot CLI scripts
// against a SQLite table into resumable batch phases over the State Store,
// in the same processOne/ProcessPending shape internal/extractor and
// internal/llmsynth already use.
package fidelity

import (
	"context"
	"fmt"

	"github.com/nomindnick/fppc-corpus/internal/checkpoint"
	"github.com/nomindnick/fppc-corpus/internal/classicalocr"
	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/pdfdoc"
	"github.com/nomindnick/fppc-corpus/internal/record"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

// CanaryResult is one Document's phase-1 outcome.
type CanaryResult struct {
	DocumentID         int64
	LetterID           string
	CanaryScore        float64
	PageScores         []float64
	IsDescriptionMode  bool
	DescriptionPages   []int
	ClassicalWordCount int
	VisionWordCount    int
	RiskTier           string
	Err                error
}

// CanaryCheckpoint records phase-1 progress, resumable across runs.
type CanaryCheckpoint struct {
	LastDocumentID int64 `json:"last_document_id"`
	Processed      int   `json:"processed"`
}

// CanaryScanner drives phase 1: every vision-OCR Document is re-read at a
// higher DPI through the classical OCR engine, and the two transcripts are
// compared via SequenceRatio to produce a canary score and risk tier.
type CanaryScanner struct {
	cfg  config.FidelityConfig
	repo *store.Repository
	log  *observability.Logger
	ocr  *classicalocr.Engine
}

func NewCanaryScanner(cfg config.FidelityConfig, repo *store.Repository, log *observability.Logger) *CanaryScanner {
	return &CanaryScanner{
		cfg:  cfg,
		repo: repo,
		log:  log.WithStage("fidelity-canary"),
		ocr:  classicalocr.New(cfg.ClassicalOCRBinary, cfg.ClassicalOCRLang),
	}
}

// CanaryRunSummary aggregates one phase-1 batch's outcome.
type CanaryRunSummary struct {
	Attempted int
	Critical  int
	High      int
	Medium    int
	Low       int
	Errored   int
	Results   []CanaryResult
}

// Run scans up to limit vision-OCR Documents, checkpointing every
// cfg.CheckpointEvery documents so an interrupted scan resumes past what it
// already scored rather than re-paying for Tesseract passes.
func (s *CanaryScanner) Run(ctx context.Context, checkpointPath string, limit int) (*CanaryRunSummary, error) {
	docs, err := s.repo.ByExtractionMethod(ctx, store.MethodVisionOCR, limit)
	if err != nil {
		return nil, fmt.Errorf("list vision-ocr documents: %w", err)
	}

	cp, err := checkpoint.Load[CanaryCheckpoint](checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("load canary checkpoint: %w", err)
	}
	resumeFrom := int64(0)
	if cp != nil {
		resumeFrom = cp.LastDocumentID
	}

	summary := &CanaryRunSummary{}
	sinceCheckpoint := 0
	for _, d := range docs {
		if d.ID <= resumeFrom {
			continue
		}
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		summary.Attempted++
		result := s.scanOne(ctx, d)
		summary.Results = append(summary.Results, result)
		if result.Err != nil {
			summary.Errored++
			s.log.Warn().Int64("document_id", d.ID).Err(result.Err).Msg("canary scan failed")
		} else {
			switch result.RiskTier {
			case "critical":
				summary.Critical++
			case "high":
				summary.High++
			case "medium":
				summary.Medium++
			default:
				summary.Low++
			}
			if err := s.repo.UpdateFidelity(ctx, d.ID, result.CanaryScore, store.FidelityMethodCanary, store.FidelityRisk(result.RiskTier)); err != nil {
				return summary, fmt.Errorf("update fidelity for document %d: %w", d.ID, err)
			}
		}

		sinceCheckpoint++
		if checkpointPath != "" && sinceCheckpoint >= s.cfg.CheckpointEvery {
			if err := checkpoint.Save(checkpointPath, CanaryCheckpoint{LastDocumentID: d.ID, Processed: summary.Attempted}); err != nil {
				return summary, fmt.Errorf("save canary checkpoint: %w", err)
			}
			sinceCheckpoint = 0
		}
	}

	if checkpointPath != "" && len(docs) > 0 {
		checkpoint.Clear(checkpointPath)
	}
	return summary, nil
}

func (s *CanaryScanner) scanOne(ctx context.Context, d *store.Document) CanaryResult {
	result := CanaryResult{DocumentID: d.ID, LetterID: d.LetterID}

	rec, err := record.Load(d.JSONPath)
	if err != nil {
		result.Err = fmt.Errorf("load structured record: %w", err)
		return result
	}
	visionText := rec.Content.FullText
	if visionText == "" {
		result.RiskTier = "high"
		result.Err = fmt.Errorf("vision-ocr text is empty")
		return result
	}

	pdf, err := pdfdoc.Open(rec.Identity.LocalPDFPath)
	if err != nil {
		result.Err = fmt.Errorf("open pdf: %w", err)
		return result
	}
	defer pdf.Close()

	pagesToCheck := pdf.PageCount()
	if s.cfg.CanaryPageCap > 0 && pagesToCheck > s.cfg.CanaryPageCap {
		pagesToCheck = s.cfg.CanaryPageCap
	}
	if pagesToCheck < 1 {
		pagesToCheck = 1
	}

	quality := pdfdoc.QualityForDPI(s.cfg.ClassicalOCRDPI)
	classicalPages := make([]string, 0, pagesToCheck)
	for p := 1; p <= pagesToCheck; p++ {
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		default:
		}
		img, err := pdf.RenderPage(ctx, p, quality)
		if err != nil {
			result.Err = fmt.Errorf("render page %d: %w", p, err)
			return result
		}
		text, err := s.ocr.RecognizePage(ctx, img.JPEGBytes)
		if err != nil {
			result.Err = fmt.Errorf("classical ocr page %d: %w", p, err)
			return result
		}
		classicalPages = append(classicalPages, text)
	}

	fullClassicalText := joinPages(classicalPages)
	result.ClassicalWordCount = len(tokenizeWords(fullClassicalText))
	result.VisionWordCount = len(tokenizeWords(visionText))

	canaryScore := compareTexts(fullClassicalText, visionText)
	result.CanaryScore = canaryScore
	result.PageScores = perPageScores(classicalPages, visionText, canaryScore)

	result.IsDescriptionMode = detectDescriptionMode(visionText)
	for i, chunk := range splitParagraphs(visionText) {
		if detectDescriptionMode(chunk) {
			result.DescriptionPages = append(result.DescriptionPages, i)
		}
	}

	result.RiskTier = classifyRiskTier(canaryScore, result.IsDescriptionMode, s.cfg.CriticalScoreBelow, s.cfg.HighScoreBelow, s.cfg.MediumScoreBelow)
	return result
}

// compareTexts normalizes both texts to word sequences and runs
// SequenceRatio, matching compare_texts in the original canary script.
func compareTexts(a, b string) float64 {
	aWords := tokenizeWords(normalizeForComparison(a))
	bWords := tokenizeWords(normalizeForComparison(b))
	return SequenceRatio(aWords, bWords)
}

// perPageScores compares each classical-OCR page against a proportional
// slice of the vision-OCR text, for diagnostics only; the overall
// canary score (not these) drives the risk tier.
func perPageScores(classicalPages []string, visionText string, fallback float64) []float64 {
	n := len(classicalPages)
	if n <= 1 {
		return []float64{round4(fallback)}
	}
	visionWords := tokenizeWords(visionText)
	total := len(visionWords)
	if total == 0 {
		scores := make([]float64, n)
		for i := range scores {
			scores[i] = round4(fallback)
		}
		return scores
	}

	perPage := total / n
	scores := make([]float64, 0, n)
	for i, page := range classicalPages {
		start := i * perPage
		end := start + perPage
		if i == n-1 {
			end = total
		}
		if start > total {
			start = total
		}
		if end > total {
			end = total
		}
		slice := ""
		if start < end {
			var words []string
			words = append(words, visionWords[start:end]...)
			slice = joinWords(words)
		}
		scores = append(scores, round4(compareTexts(page, slice)))
	}
	return scores
}

func joinPages(pages []string) string {
	out := ""
	for i, p := range pages {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

func splitParagraphs(text string) []string {
	var chunks []string
	chunk := ""
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if i+1 < len(runes) && runes[i] == '\n' && runes[i+1] == '\n' {
			chunks = append(chunks, chunk)
			chunk = ""
			i++
			continue
		}
		chunk += string(runes[i])
	}
	chunks = append(chunks, chunk)
	return chunks
}

func round4(f float64) float64 {
	return float64(int(f*10000+0.5)) / 10000
}
