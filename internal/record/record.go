// Package record implements the Structured Record: the canonical nested
// document persisted to disk per extracted Document, per spec §3/§6.
// Grounded on scraper/schema.py's docstring (original_source/, truncated by
// retrieval but explicit about the nested shape) and on the pdf-extractor
// module's domain.Result JSON marshalling style (one flat struct tree,
// json tags, written via json.MarshalIndent).
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Record is the Structured Record's full on-disk shape.
type Record struct {
	Identity      Identity      `json:"identity"`
	Catalog       Catalog       `json:"catalog"`
	Extraction    Extraction    `json:"extraction"`
	Content       Content       `json:"content"`
	TitleMetadata TitleMetadata `json:"title_metadata"`
	Sections      Sections      `json:"sections"`
	Citations     Citations     `json:"citations"`
	Classification Classification `json:"classification"`
	Embedding     Embedding     `json:"embedding"`
}

type Identity struct {
	LetterID     string `json:"letter_id"`
	Year         int    `json:"year"`
	RemoteURL    string `json:"remote_url"`
	ContentHash  string `json:"content_hash"`
	LocalPDFPath string `json:"local_pdf_path"`
}

type Catalog struct {
	TitleText     string `json:"title_text"`
	Tags          string `json:"tags"`
	SourcePageURL string `json:"source_page_url"`
}

type Extraction struct {
	Method           string  `json:"method"`
	ExtractedAt      string  `json:"extracted_at"`
	LLMExtractedAt   string  `json:"llm_extracted_at,omitempty"`
	QualityScore     float64 `json:"quality_score"`
	PageCount        int     `json:"page_count"`
	WordCount        int     `json:"word_count"`
	CharCount        int     `json:"char_count"`
	APICostUSD       float64 `json:"api_cost_usd,omitempty"`
}

type Content struct {
	FullText   string `json:"full_text"`
	Formatted  string `json:"formatted,omitempty"`
}

type TitleMetadata struct {
	DateISO       string `json:"date_iso,omitempty"`
	DateAsWritten string `json:"date_as_written,omitempty"`
	RequestorName string `json:"requestor_name,omitempty"`
	RequestorTitle string `json:"requestor_title,omitempty"`
	City          string `json:"city,omitempty"`
	DocumentType  string `json:"document_type,omitempty"`
}

type Sections struct {
	Question             string   `json:"question,omitempty"`
	Conclusion            string   `json:"conclusion,omitempty"`
	Facts                 string   `json:"facts,omitempty"`
	Analysis              string   `json:"analysis,omitempty"`
	QuestionSynthetic     string   `json:"question_synthetic,omitempty"`
	ConclusionSynthetic   string   `json:"conclusion_synthetic,omitempty"`
	ParseMethod           string   `json:"parse_method"`
	Confidence            float64  `json:"confidence"`
	HasStandardFormat     bool     `json:"has_standard_format"`
	Notes                 []string `json:"notes,omitempty"`
}

type Citations struct {
	StatuteReferences    []string `json:"statute_references"`
	RegulationReferences []string `json:"regulation_references"`
	PriorOpinions        []string `json:"prior_opinions"`
	ExternalReferences   []string `json:"external_references"`
	CitedBy              []string `json:"cited_by"`
}

type Classification struct {
	PrimaryTopic   string   `json:"primary_topic"`
	SecondaryTopic string   `json:"secondary_topic,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Confidence     float64  `json:"confidence"`
	Method         string   `json:"method"`
}

type Embedding struct {
	QAText     string `json:"qa_text"`
	Provenance string `json:"provenance"` // extracted | synthetic | mixed
	Fallback   string `json:"fallback"`
	Summary    string `json:"summary,omitempty"`
}

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FilesystemSafeID derives a filesystem-safe filename stem from a letter
// identifier: every character outside [A-Za-z0-9_.-] is replaced with "_",
// per spec §6's file-layout rule.
func FilesystemSafeID(letterID string) string {
	s := unsafeFilenameRe.ReplaceAllString(strings.TrimSpace(letterID), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "untitled"
	}
	return s
}

// Path returns the canonical, year-partitioned on-disk path for a
// Structured Record.
func Path(root string, year int, letterID string) string {
	return filepath.Join(root, fmt.Sprintf("%d", year), FilesystemSafeID(letterID)+".json")
}

// Save serialises r to its canonical path, losslessly round-tripping every
// field (P8), writing via a temp-file-then-rename so a crash mid-write
// never leaves a truncated record (same discipline as internal/checkpoint).
func Save(root string, r Record) (string, error) {
	path := Path(root, r.Identity.Year, r.Identity.LetterID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create record directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal structured record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp record file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp record file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp record file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename temp record file: %w", err)
	}
	return path, nil
}

// Load reads and deserialises a Structured Record from path.
func Load(path string) (Record, error) {
	var r Record
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read structured record %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("unmarshal structured record %s: %w", path, err)
	}
	return r, nil
}

// Delete removes a Structured Record's file, paired with the State Store
// row deletion the caller performs, per spec §3's no-orphans rule.
func Delete(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// BuildEmbedding derives the embedding payload, preferring extracted
// Q/Conclusion and falling back to synthetic ones, with provenance set
// accordingly, per spec §4.6's write-back policy.
func BuildEmbedding(s Sections, fallbackText string, summary string) Embedding {
	q, c := s.Question, s.Conclusion
	var provenance string
	switch {
	case q != "" && c != "":
		provenance = "extracted"
	case (q != "" || c != "") && (s.QuestionSynthetic != "" || s.ConclusionSynthetic != ""):
		provenance = "mixed"
	case s.QuestionSynthetic != "" || s.ConclusionSynthetic != "":
		provenance = "synthetic"
	default:
		provenance = "extracted"
	}

	if q == "" {
		q = s.QuestionSynthetic
	}
	if c == "" {
		c = s.ConclusionSynthetic
	}

	var qa strings.Builder
	if q != "" {
		qa.WriteString("Question: ")
		qa.WriteString(q)
		qa.WriteString("\n")
	}
	if c != "" {
		qa.WriteString("Conclusion: ")
		qa.WriteString(c)
	}

	return Embedding{
		QAText:     strings.TrimSpace(qa.String()),
		Provenance: provenance,
		Fallback:   firstNWords(fallbackText, 200),
		Summary:    summary,
	}
}

func firstNWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
