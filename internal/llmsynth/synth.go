package llmsynth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/errkind"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/record"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

// Envelope is the strict-JSON response shape demanded of the text LLM,
// per spec §4.6.
type Envelope struct {
	DocumentType          string `json:"document_type"`
	IsResponse            bool   `json:"is_response"`
	Question              string `json:"question"`
	QuestionSynthetic     string `json:"question_synthetic"`
	Conclusion             string `json:"conclusion"`
	ConclusionSynthetic   string `json:"conclusion_synthetic"`
	Summary               string `json:"summary"`
	ExtractionConfidence  float64 `json:"extraction_confidence"`
	Notes                 string `json:"notes"`
}

// documentTypeMap refines the LLM's free-text document_type guess onto the
// fixed enum the rest of the pipeline uses, per spec §4.6's "fixed
// string->enum map" instruction.
var documentTypeMap = map[string]string{
	"advice letter":         "advice-letter",
	"advice-letter":         "advice-letter",
	"informal advice":       "informal-advice",
	"informal-advice":       "informal-advice",
	"informal assistance":   "informal-assistance",
	"informal-assistance":   "informal-assistance",
	"formal opinion":        "formal-opinion",
	"formal-opinion":        "formal-opinion",
	"opinion":               "opinion",
	"withdrawal":            "withdrawal",
	"correspondence":        "correspondence",
	"other":                 "correspondence",
}

// RunSummary aggregates one synthesis batch's outcome.
type RunSummary struct {
	Attempted  int
	Synthesized int
	Failed     int
	CostUSD    float64
}

// CompletionClient is the subset of *Client the Synthesiser needs.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (Result, error)
}

// Synthesiser drives Documents flagged needs_llm_extraction through C6.
type Synthesiser struct {
	cfg    config.LLMSynthConfig
	repo   *store.Repository
	log    *observability.Logger
	client CompletionClient
}

func New(cfg config.LLMSynthConfig, repo *store.Repository, log *observability.Logger, client CompletionClient) *Synthesiser {
	return &Synthesiser{cfg: cfg, repo: repo, log: log.WithStage("synthesize"), client: client}
}

// ProcessPending drives up to limit flagged Documents through synthesis,
// halting cleanly and returning a partial summary if cumulative spend
// reaches cfg.MaxCostUSD (cost-ceiling-hit, spec §7).
func (s *Synthesiser) ProcessPending(ctx context.Context, limit int) (*RunSummary, error) {
	docs, err := s.repo.NeedingLLMSynthesis(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents needing llm synthesis: %w", err)
	}

	summary := &RunSummary{}
	for _, d := range docs {
		if s.cfg.MaxCostUSD > 0 && summary.CostUSD >= s.cfg.MaxCostUSD {
			s.log.Warn().Float64("cost_usd", summary.CostUSD).Msg("cost ceiling reached, halting synthesis")
			return summary, errkind.CostCeilingError("llm synthesis cost ceiling reached")
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		summary.Attempted++
		cost, err := s.processOne(ctx, d)
		summary.CostUSD += cost
		if err != nil {
			s.log.Warn().Int64("document_id", d.ID).Err(err).Msg("llm synthesis failed")
			summary.Failed++
			continue
		}
		summary.Synthesized++
	}
	return summary, nil
}

func (s *Synthesiser) processOne(ctx context.Context, d *store.Document) (float64, error) {
	rec, err := record.Load(d.JSONPath)
	if err != nil {
		return 0, fmt.Errorf("load structured record: %w", err)
	}

	userPrompt := buildUserPrompt(rec, s.cfg.MaxInputChars)

	// Up to 2 attempts total (one call plus one retry after a client error
	// or an unparseable envelope), separate from the client's own
	// transient-network/rate-limit retries.
	var env Envelope
	var cost float64
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.client.Complete(ctx, SystemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			continue
		}
		cost += estimateCostUSD(s.cfg, res.PromptTokens, res.CompletionTokens)

		env, err = parseEnvelope(res.Text)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
	}
	if lastErr != nil {
		return cost, fmt.Errorf("synthesize: %w", lastErr)
	}

	applyWriteBack(&rec, env)

	if _, err := record.Save(extractedDirOf(d.JSONPath), rec); err != nil {
		return cost, fmt.Errorf("save synthesized record: %w", err)
	}

	if err := s.repo.MarkLLMSynthesized(ctx, d.ID, env.ExtractionConfidence); err != nil {
		return cost, fmt.Errorf("mark llm synthesized: %w", err)
	}
	return cost, nil
}

// extractedDirOf recovers the <extracted-dir>/<year> parent two levels up
// from a record's json_path so record.Save recomputes the same canonical
// path it was first written to.
func extractedDirOf(jsonPath string) string {
	// jsonPath is <root>/<year>/<safe-id>.json; root is two levels up.
	idx := strings.LastIndex(jsonPath, "/")
	if idx < 0 {
		return "."
	}
	yearDir := jsonPath[:idx]
	idx2 := strings.LastIndex(yearDir, "/")
	if idx2 < 0 {
		return "."
	}
	return yearDir[:idx2]
}

func buildUserPrompt(rec record.Record, maxChars int) string {
	text := rec.Content.FullText
	if maxChars > 0 && len(text) > maxChars {
		// truncate at a word boundary, per spec §4.6 input description.
		truncated := text[:maxChars]
		if idx := strings.LastIndexByte(truncated, ' '); idx > 0 {
			truncated = truncated[:idx]
		}
		text = truncated
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Letter ID: %s\nYear: %d\nCurrent document_type: %s\n\n", rec.Identity.LetterID, rec.Identity.Year, rec.TitleMetadata.DocumentType)
	sb.WriteString(text)
	return sb.String()
}

// parseEnvelope decodes raw JSON-only first; if that fails it strips code
// fences/surrounding prose and re-parses the largest {...} region (B5).
func parseEnvelope(raw string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil {
		return env, nil
	}

	stripped := stripFences(raw)
	start := strings.IndexByte(stripped, '{')
	end := strings.LastIndexByte(stripped, '}')
	if start < 0 || end <= start {
		return env, errkind.ParseFailedError("llm-synth envelope", fmt.Errorf("no JSON object found in response"))
	}
	candidate := stripped[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return env, errkind.ParseFailedError("llm-synth envelope", err)
	}
	return env, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return s
}

// applyWriteBack implements spec §4.6's write-back policy: synthetic
// fields always overwrite; extracted fields are only filled if absent;
// notes are appended; the embedding payload is rebuilt.
func applyWriteBack(rec *record.Record, env Envelope) {
	rec.Sections.QuestionSynthetic = env.QuestionSynthetic
	rec.Sections.ConclusionSynthetic = env.ConclusionSynthetic

	if rec.Sections.Question == "" {
		rec.Sections.Question = env.Question
	}
	if rec.Sections.Conclusion == "" {
		rec.Sections.Conclusion = env.Conclusion
	}

	// is_response=false: no synthetic Q/C (spec Scenario S5).
	if !env.IsResponse {
		rec.Sections.QuestionSynthetic = ""
		rec.Sections.ConclusionSynthetic = ""
	}

	if env.Notes != "" {
		rec.Sections.Notes = append(rec.Sections.Notes, env.Notes)
	}

	rec.Sections.Confidence = env.ExtractionConfidence

	if refined, ok := documentTypeMap[strings.ToLower(strings.TrimSpace(env.DocumentType))]; ok {
		rec.TitleMetadata.DocumentType = refined
	}

	rec.Embedding = record.BuildEmbedding(rec.Sections, rec.Content.FullText, env.Summary)
}

func estimateCostUSD(cfg config.LLMSynthConfig, promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1_000_000*cfg.CostPerMInputUSD + float64(completionTokens)/1_000_000*cfg.CostPerMOutputUSD
}

// EstimateCost is the cost-estimation dry run (spec §4.6): it walks the
// pending set and projects total token/USD cost without any API calls, by
// estimating prompt tokens as len(truncatedText)/4 (a conservative
// characters-per-token heuristic) and completion tokens as a fixed
// estimate for the envelope shape.
func EstimateCost(ctx context.Context, cfg config.LLMSynthConfig, repo *store.Repository) (ProjectedCost, error) {
	const estimatedCompletionTokens = 400
	const charsPerToken = 4

	docs, err := repo.NeedingLLMSynthesis(ctx, 1_000_000)
	if err != nil {
		return ProjectedCost{}, fmt.Errorf("list documents needing llm synthesis: %w", err)
	}

	var proj ProjectedCost
	for _, d := range docs {
		rec, err := record.Load(d.JSONPath)
		if err != nil {
			continue
		}
		text := rec.Content.FullText
		if cfg.MaxInputChars > 0 && len(text) > cfg.MaxInputChars {
			text = text[:cfg.MaxInputChars]
		}
		promptTokens := len(text) / charsPerToken
		proj.DocumentCount++
		proj.EstimatedInputTokens += promptTokens
		proj.EstimatedOutputTokens += estimatedCompletionTokens
		proj.EstimatedUSD += estimateCostUSD(cfg, promptTokens, estimatedCompletionTokens)
	}
	return proj, nil
}

// ProjectedCost is EstimateCost's dry-run projection.
type ProjectedCost struct {
	DocumentCount         int
	EstimatedInputTokens  int
	EstimatedOutputTokens int
	EstimatedUSD          float64
}
