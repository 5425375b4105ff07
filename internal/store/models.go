// Package store implements the State Store: the single shared mutable
// relational resource that every pipeline stage reads from and writes back
// to, keyed on the three orthogonal status columns described in spec §3/§6.
package store

import "time"

// DownloadStatus is the Binary Fetcher's (C2) status column.
type DownloadStatus string

const (
	DownloadPending    DownloadStatus = "pending"
	DownloadDownloaded DownloadStatus = "downloaded"
	DownloadFailed     DownloadStatus = "failed"
)

// ExtractionStatus is the Text Extractor's (C4) status column.
type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionExtracted ExtractionStatus = "extracted"
	ExtractionError     ExtractionStatus = "error"
)

// ExtractionMethod records which engine ultimately produced a Document's
// text. "composite" is retained exactly as the source names it even though
// it is not a true composite extraction — see SPEC_FULL.md Open Question 1.
type ExtractionMethod string

const (
	MethodEmbedded            ExtractionMethod = "embedded"
	MethodVisionOCR           ExtractionMethod = "vision-ocr"
	MethodClassicalOCR        ExtractionMethod = "classical-ocr"
	MethodVisionLLM           ExtractionMethod = "vision-llm"
	MethodComposite           ExtractionMethod = "composite"
	MethodClassicalOCRFallback ExtractionMethod = "classical-ocr-fallback"
)

// FidelityRisk is the Fidelity Verifier's (C7) risk-tier column.
type FidelityRisk string

const (
	RiskUnassessed FidelityRisk = "unassessed"
	RiskVerified   FidelityRisk = "verified"
	RiskLow        FidelityRisk = "low"
	RiskMedium     FidelityRisk = "medium"
	RiskHigh       FidelityRisk = "high"
	RiskCritical   FidelityRisk = "critical"
)

// FidelityMethod records how a Document's fidelity was established.
const (
	FidelityMethodNativeTrusted       = "native-trusted"
	FidelityMethodCanary              = "canary"
	FidelityMethodAdjudication        = "adjudication"
	FidelityMethodStatisticalAcceptance = "statistical-acceptance"
	FidelityMethodVisionLLM           = "vision-llm"
)

// Document is the State Store's single table row: one per discovered
// advice letter, carrying the catalog, title-parsed, binary, extraction,
// and fidelity facets described in spec §3.
type Document struct {
	ID int64

	// Catalog facet.
	PDFURL        string
	TitleText     string
	YearTag       int
	Tags          string
	SourcePageURL string

	// Title-parsed facet (best-effort, any field may be empty).
	RequestorName string
	LetterID      string
	LetterDate    string
	City          string

	// Binary facet.
	DownloadStatus DownloadStatus
	DownloadedAt   *time.Time
	PDFSizeBytes   *int64
	PDFSHA256      string

	// Extraction facet.
	ExtractionStatus   ExtractionStatus
	ExtractionMethod   ExtractionMethod
	ExtractionQuality  *float64
	PageCount          *int
	WordCount          *int
	ExtractedAt        *time.Time
	SectionConfidence  *float64
	JSONPath           string
	NeedsLLMExtraction bool
	LLMExtractedAt     *time.Time

	// Fidelity facet.
	FidelityScore  *float64
	FidelityMethod string
	FidelityRisk   FidelityRisk

	ScrapedAt time.Time
	UpdatedAt time.Time
}

// DownloadStats summarises C2 progress, grounded on scraper/downloader.py's
// print_download_stats.
type DownloadStats struct {
	Total      int
	Pending    int
	Downloaded int
	Failed     int
}

// ExtractionStats summarises C4/C6 progress, grounded on scraper/db.py's
// get_download_stats-style aggregate queries.
type ExtractionStats struct {
	Total              int
	Pending            int
	Extracted          int
	Errored            int
	NeedingLLM         int
	LLMSynthesized     int
}

// FidelityStats summarises C7 progress across risk tiers.
type FidelityStats struct {
	Unassessed int
	Verified   int
	Low        int
	Medium     int
	High       int
	Critical   int
}
