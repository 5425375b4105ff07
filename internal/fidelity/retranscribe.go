package fidelity

import (
	"context"
	"fmt"

	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/pdfdoc"
	"github.com/nomindnick/fppc-corpus/internal/quality"
	"github.com/nomindnick/fppc-corpus/internal/record"
	"github.com/nomindnick/fppc-corpus/internal/store"
	"github.com/nomindnick/fppc-corpus/internal/visionocr"
)

// Retranscriber drives phase 4: every page of a critical-risk Document (up
// to the configured cap) is re-transcribed by the vision LLM from scratch,
// rescored, and written back over both the Structured Record and the State
// Store row. This is the most expensive and most thorough phase, reserved
// for documents phases 1-3 could not clear. Grounded on
// original_source/scripts/fix_critical_fidelity.py's "re-extract, then
// rescore, then overwrite" repair shape, generalised from its
// olmOCR-retry-then-Tesseract-fallback sequence to a vision-LLM
// re-transcription per spec §4.7 phase 4's redesigned behaviour.
type Retranscriber struct {
	extractionCfg config.ExtractionConfig
	fidelityCfg   config.FidelityConfig
	repo          *store.Repository
	log           *observability.Logger
	vision        VisionClient
}

func NewRetranscriber(extractionCfg config.ExtractionConfig, fidelityCfg config.FidelityConfig, repo *store.Repository, log *observability.Logger, vision VisionClient) *Retranscriber {
	return &Retranscriber{
		extractionCfg: extractionCfg,
		fidelityCfg:   fidelityCfg,
		repo:          repo,
		log:           log.WithStage("fidelity-retranscribe"),
		vision:        vision,
	}
}

// RetranscribeResult is one Document's phase-4 outcome.
type RetranscribeResult struct {
	DocumentID int64
	CostUSD    float64
	NewScore   float64
	Err        error
}

// RetranscribeRunSummary aggregates one phase-4 batch's outcome.
type RetranscribeRunSummary struct {
	Attempted int
	Succeeded int
	Errored   int
	CostUSD   float64
}

// RunCritical re-transcribes every critical-risk Document up to limit,
// halting once cumulative cost reaches maxCostUSD.
func (r *Retranscriber) RunCritical(ctx context.Context, limit int, maxCostUSD float64) (*RetranscribeRunSummary, error) {
	docs, err := r.repo.ByFidelityRisk(ctx, store.RiskCritical, limit)
	if err != nil {
		return nil, fmt.Errorf("list critical-risk documents: %w", err)
	}

	summary := &RetranscribeRunSummary{}
	for _, d := range docs {
		if maxCostUSD > 0 && summary.CostUSD >= maxCostUSD {
			return summary, costCeilingErr("full re-transcription cost ceiling reached")
		}
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		summary.Attempted++
		res := r.retranscribeOne(ctx, d)
		summary.CostUSD += res.CostUSD
		if res.Err != nil {
			summary.Errored++
			r.log.Warn().Int64("document_id", d.ID).Err(res.Err).Msg("full re-transcription failed")
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}

func (r *Retranscriber) retranscribeOne(ctx context.Context, d *store.Document) RetranscribeResult {
	result := RetranscribeResult{DocumentID: d.ID}

	rec, err := record.Load(d.JSONPath)
	if err != nil {
		result.Err = fmt.Errorf("load structured record: %w", err)
		return result
	}

	pdf, err := pdfdoc.Open(rec.Identity.LocalPDFPath)
	if err != nil {
		result.Err = fmt.Errorf("open pdf: %w", err)
		return result
	}
	defer pdf.Close()

	pages := pdf.PageCount()
	if r.extractionCfg.MaxOCRPages > 0 && pages > r.extractionCfg.MaxOCRPages {
		pages = r.extractionCfg.MaxOCRPages
	}
	jpegQuality := pdfdoc.QualityForDPI(r.extractionCfg.OCRPageDPI)

	var texts []string
	for p := 1; p <= pages; p++ {
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		default:
		}

		img, err := pdf.RenderPage(ctx, p, jpegQuality)
		if err != nil {
			result.Err = fmt.Errorf("render page %d: %w", p, err)
			return result
		}

		res, err := r.vision.TranscribePage(ctx, img.JPEGBytes, visionocr.TranscriptionPrompt)
		if err != nil {
			result.Err = fmt.Errorf("vision transcription page %d: %w", p, err)
			return result
		}
		result.CostUSD += estimateVisionCostUSD(res.PromptTokens, res.CompletionTokens)
		texts = append(texts, res.Text)
	}

	fullText := joinPages(texts)
	metrics := quality.Score(fullText, pages)
	result.NewScore = metrics.Score

	rec.Content.FullText = fullText
	rec.Content.Formatted = ""
	rec.Extraction.Method = string(store.MethodVisionLLM)
	rec.Extraction.QualityScore = metrics.Score
	rec.Extraction.WordCount = len(tokenizeWords(fullText))
	rec.Extraction.CharCount = len(fullText)
	rec.Extraction.APICostUSD += result.CostUSD
	rec.Embedding = record.BuildEmbedding(rec.Sections, fullText, rec.Embedding.Summary)

	if _, err := record.Save(extractedDirOf(d.JSONPath), rec); err != nil {
		result.Err = fmt.Errorf("save re-transcribed record: %w", err)
		return result
	}
	if err := r.repo.UpdateRepairedExtraction(ctx, d.ID, store.MethodVisionLLM, metrics.Score, rec.Extraction.WordCount); err != nil {
		result.Err = fmt.Errorf("update repaired extraction: %w", err)
		return result
	}
	// retranscribedFidelityScore is a fixed constant, not metrics.Score: Phase
	// 4 re-transcription is the verifier's last resort and always resolves to
	// risk tier verified with a high recorded score, the way
	// fix_critical_fidelity.py's update_fidelity(doc_id, 0.8, "olmocr_retry",
	// ...) hardcodes the score rather than reusing the raw quality metric.
	const retranscribedFidelityScore = 0.9
	if err := r.repo.UpdateFidelity(ctx, d.ID, retranscribedFidelityScore, store.FidelityMethodVisionLLM, store.RiskVerified); err != nil {
		result.Err = fmt.Errorf("update fidelity: %w", err)
		return result
	}
	return result
}
