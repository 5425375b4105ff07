package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors, matching the orchestrator's repository convention.
var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document conflict")
)

// DB is the minimal surface this package needs from *sql.DB, so tests can
// substitute an in-memory sqlite handle without depending on the concrete
// driver.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository is the single repository over the documents table. The
// pipeline has exactly one table, so unlike the orchestrator's per-entity
// repositories this package exposes one Repository with one method group
// per pipeline stage.
type Repository struct {
	db     DB
	driver string
}

// NewRepository builds a Repository over db. All query text in this file
// is written with sqlite/MySQL-style "?" placeholders; when driver is
// "postgres" every query is rebound to "$1".."$N" form before execution,
// so the optional Postgres backend (DOMAIN STACK) shares the same SQL
// text as the default sqlite one instead of forking the queries.
func NewRepository(db DB, driver ...string) *Repository {
	d := "sqlite"
	if len(driver) > 0 && driver[0] != "" {
		d = driver[0]
	}
	return &Repository{db: db, driver: d}
}

// rebind rewrites "?" placeholders to "$1".."$N" for the postgres driver,
// mirroring sqlx.Rebind without taking the dependency: the pipeline's
// query surface is small and fixed, so a direct translation is simpler
// than wiring a binding-aware SQL builder for one driver difference.
func (r *Repository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (r *Repository) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(query), args...)
}

// --- C1 Catalog Crawler -----------------------------------------------

// InsertDiscovered inserts one row per crawled result. A duplicate pdf_url
// (I1) is a benign no-op: inserted=false, err=nil, matching scraper/db.py's
// insert_document IntegrityError-swallowing behaviour.
func (r *Repository) InsertDiscovered(ctx context.Context, d *Document) (inserted bool, err error) {
	now := time.Now().UTC()
	_, err = r.exec(ctx, `
		INSERT INTO documents (
			pdf_url, title_text, year_tag, tags, source_page_url,
			requestor_name, letter_id, letter_date, city,
			download_status, extraction_status, fidelity_risk,
			needs_llm_extraction, scraped_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.PDFURL, d.TitleText, d.YearTag, d.Tags, d.SourcePageURL,
		d.RequestorName, d.LetterID, d.LetterDate, d.City,
		DownloadPending, ExtractionPending, RiskUnassessed,
		0, now, now,
	)
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, fmt.Errorf("insert discovered document: %w", err)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// --- C2 Binary Fetcher --------------------------------------------------

// PendingDownloads returns rows with download_status=pending, ordered by
// year then surrogate key, per the ordering guarantee in spec §5.
func (r *Repository) PendingDownloads(ctx context.Context, limit int) ([]*Document, error) {
	return r.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE download_status = ?
		ORDER BY year_tag ASC, id ASC
		LIMIT ?`, DownloadPending, limit)
}

// UpdateDownloadStatus transitions a row after a fetch attempt. On success,
// sha256/size are set and downloaded_at stamped; on failure they are left
// untouched.
func (r *Repository) UpdateDownloadStatus(ctx context.Context, id int64, status DownloadStatus, sha256 string, size int64) error {
	now := time.Now().UTC()
	if status == DownloadDownloaded {
		_, err := r.exec(ctx, `
			UPDATE documents SET download_status = ?, pdf_sha256 = ?, pdf_size_bytes = ?,
				downloaded_at = ?, updated_at = ? WHERE id = ?`,
			status, sha256, size, now, now, id)
		return err
	}
	_, err := r.exec(ctx, `
		UPDATE documents SET download_status = ?, updated_at = ? WHERE id = ?`,
		status, now, id)
	return err
}

// DownloadStats mirrors scraper/downloader.py's print_download_stats.
func (r *Repository) DownloadStats(ctx context.Context) (DownloadStats, error) {
	var s DownloadStats
	row := r.queryRow(ctx, `
		SELECT COUNT(*),
			SUM(CASE WHEN download_status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN download_status = 'downloaded' THEN 1 ELSE 0 END),
			SUM(CASE WHEN download_status = 'failed' THEN 1 ELSE 0 END)
		FROM documents`)
	var pending, downloaded, failed sql.NullInt64
	if err := row.Scan(&s.Total, &pending, &downloaded, &failed); err != nil {
		return s, err
	}
	s.Pending = int(pending.Int64)
	s.Downloaded = int(downloaded.Int64)
	s.Failed = int(failed.Int64)
	return s, nil
}

// CheckDuplicates reports pdf_url values with more than one row. The
// unique index makes this structurally impossible; the check is kept as a
// cheap integrity assertion, as scraper/db.py:check_duplicates does.
func (r *Repository) CheckDuplicates(ctx context.Context) ([]string, error) {
	rows, err := r.query(ctx, `
		SELECT pdf_url FROM documents GROUP BY pdf_url HAVING COUNT(*) > 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		out = append(out, url)
	}
	return out, rows.Err()
}

// --- C4 Text Extractor ----------------------------------------------------

// PendingExtractions returns downloaded rows awaiting extraction (I2).
func (r *Repository) PendingExtractions(ctx context.Context, limit int) ([]*Document, error) {
	return r.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE download_status = ? AND extraction_status = ?
		ORDER BY year_tag ASC, id ASC
		LIMIT ?`, DownloadDownloaded, ExtractionPending, limit)
}

// ExtractionUpdate carries the fields UpdateExtraction writes; a nil
// pointer field leaves the corresponding column unchanged, mirroring
// scraper/db.py's update_extraction_status COALESCE(?, column) pattern.
type ExtractionUpdate struct {
	Status             ExtractionStatus
	Method             *ExtractionMethod
	Quality            *float64
	PageCount          *int
	WordCount          *int
	SectionConfidence  *float64
	JSONPath           *string
	NeedsLLMExtraction *bool
	LetterID           *string
	LetterDate         *string
	RequestorName      *string
	City               *string
}

func (r *Repository) UpdateExtraction(ctx context.Context, id int64, u ExtractionUpdate) error {
	now := time.Now().UTC()
	_, err := r.exec(ctx, `
		UPDATE documents SET
			extraction_status = ?,
			extraction_method = COALESCE(?, extraction_method),
			extraction_quality = COALESCE(?, extraction_quality),
			page_count = COALESCE(?, page_count),
			word_count = COALESCE(?, word_count),
			section_confidence = COALESCE(?, section_confidence),
			json_path = COALESCE(?, json_path),
			needs_llm_extraction = COALESCE(?, needs_llm_extraction),
			letter_id = COALESCE(?, letter_id),
			letter_date = COALESCE(?, letter_date),
			requestor_name = COALESCE(?, requestor_name),
			city = COALESCE(?, city),
			extracted_at = ?,
			updated_at = ?
		WHERE id = ?`,
		u.Status, u.Method, u.Quality, u.PageCount, u.WordCount,
		u.SectionConfidence, u.JSONPath, nullableBoolToInt(u.NeedsLLMExtraction),
		u.LetterID, u.LetterDate, u.RequestorName, u.City,
		now, now, id)
	return err
}

func nullableBoolToInt(b *bool) interface{} {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

// MarkExtractionError transitions a row to extraction_status=error,
// leaving the Structured Record file, if any, untouched (I2 is never
// violated by an error transition).
func (r *Repository) MarkExtractionError(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := r.exec(ctx, `
		UPDATE documents SET extraction_status = ?, updated_at = ? WHERE id = ?`,
		ExtractionError, now, id)
	return err
}

// BackfillNativeFidelity applies invariant I4: every embedded-method
// Document is a-priori trusted and never needs a Verifier run, mirroring
// scraper/db.py's backfill_native_fidelity.
func (r *Repository) BackfillNativeFidelity(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := r.exec(ctx, `
		UPDATE documents SET
			fidelity_score = 1.0,
			fidelity_method = ?,
			fidelity_risk = ?,
			updated_at = ?
		WHERE extraction_method = ? AND fidelity_risk = ?`,
		FidelityMethodNativeTrusted, RiskVerified, now, MethodEmbedded, RiskUnassessed)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- C6 LLM Section Synthesiser ------------------------------------------

// NeedingLLMSynthesis returns extracted rows flagged needs_llm_extraction
// that have not yet been synthesised.
func (r *Repository) NeedingLLMSynthesis(ctx context.Context, limit int) ([]*Document, error) {
	return r.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE extraction_status = ? AND needs_llm_extraction = 1 AND llm_extracted_at IS NULL
		ORDER BY year_tag ASC, id ASC
		LIMIT ?`, ExtractionExtracted, limit)
}

func (r *Repository) MarkLLMSynthesized(ctx context.Context, id int64, sectionConfidence float64) error {
	now := time.Now().UTC()
	_, err := r.exec(ctx, `
		UPDATE documents SET
			needs_llm_extraction = 0,
			llm_extracted_at = ?,
			section_confidence = ?,
			updated_at = ?
		WHERE id = ?`, now, sectionConfidence, now, id)
	return err
}

// AllExtracted returns every Document with a Structured Record on disk,
// regardless of extraction method, used by the citation graph post-pass to
// walk the whole corpus rather than one method at a time.
func (r *Repository) AllExtracted(ctx context.Context, limit int) ([]*Document, error) {
	return r.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE extraction_status = ? AND json_path IS NOT NULL
		ORDER BY year_tag ASC, id ASC
		LIMIT ?`, ExtractionExtracted, limit)
}

// --- C7 Fidelity Verifier -------------------------------------------------

// ByExtractionMethod returns rows with the given extraction method, used by
// Phase 1 to find every vision-OCR record.
func (r *Repository) ByExtractionMethod(ctx context.Context, method ExtractionMethod, limit int) ([]*Document, error) {
	return r.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE extraction_method = ?
		ORDER BY year_tag ASC, id ASC
		LIMIT ?`, method, limit)
}

// ByFidelityRisk returns rows in the given risk tier.
func (r *Repository) ByFidelityRisk(ctx context.Context, risk FidelityRisk, limit int) ([]*Document, error) {
	return r.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE fidelity_risk = ?
		ORDER BY year_tag ASC, id ASC
		LIMIT ?`, risk, limit)
}

func (r *Repository) UpdateFidelity(ctx context.Context, id int64, score float64, method string, risk FidelityRisk) error {
	now := time.Now().UTC()
	_, err := r.exec(ctx, `
		UPDATE documents SET fidelity_score = ?, fidelity_method = ?, fidelity_risk = ?, updated_at = ?
		WHERE id = ?`, score, method, risk, now, id)
	return err
}

// UpdateRepairedExtraction overwrites the text-bearing columns after a
// Phase 2/4 repair replaces the Structured Record in place.
func (r *Repository) UpdateRepairedExtraction(ctx context.Context, id int64, method ExtractionMethod, quality float64, wordCount int) error {
	now := time.Now().UTC()
	_, err := r.exec(ctx, `
		UPDATE documents SET extraction_method = ?, extraction_quality = ?, word_count = ?, updated_at = ?
		WHERE id = ?`, method, quality, wordCount, now, id)
	return err
}

// --- Shared ---------------------------------------------------------------

func (r *Repository) GetByID(ctx context.Context, id int64) (*Document, error) {
	row := r.queryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ExtractionStats aggregates C4/C6 progress.
func (r *Repository) ExtractionStats(ctx context.Context) (ExtractionStats, error) {
	var s ExtractionStats
	row := r.queryRow(ctx, `
		SELECT COUNT(*),
			SUM(CASE WHEN extraction_status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN extraction_status = 'extracted' THEN 1 ELSE 0 END),
			SUM(CASE WHEN extraction_status = 'error' THEN 1 ELSE 0 END),
			SUM(CASE WHEN needs_llm_extraction = 1 AND llm_extracted_at IS NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN llm_extracted_at IS NOT NULL THEN 1 ELSE 0 END)
		FROM documents`)
	var pending, extracted, errored, needingLLM, synthesized sql.NullInt64
	if err := row.Scan(&s.Total, &pending, &extracted, &errored, &needingLLM, &synthesized); err != nil {
		return s, err
	}
	s.Pending = int(pending.Int64)
	s.Extracted = int(extracted.Int64)
	s.Errored = int(errored.Int64)
	s.NeedingLLM = int(needingLLM.Int64)
	s.LLMSynthesized = int(synthesized.Int64)
	return s, nil
}

func (r *Repository) FidelityStats(ctx context.Context) (FidelityStats, error) {
	var s FidelityStats
	row := r.queryRow(ctx, `
		SELECT
			SUM(CASE WHEN fidelity_risk = 'unassessed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN fidelity_risk = 'verified' THEN 1 ELSE 0 END),
			SUM(CASE WHEN fidelity_risk = 'low' THEN 1 ELSE 0 END),
			SUM(CASE WHEN fidelity_risk = 'medium' THEN 1 ELSE 0 END),
			SUM(CASE WHEN fidelity_risk = 'high' THEN 1 ELSE 0 END),
			SUM(CASE WHEN fidelity_risk = 'critical' THEN 1 ELSE 0 END)
		FROM documents`)
	var un, ver, low, med, high, crit sql.NullInt64
	if err := row.Scan(&un, &ver, &low, &med, &high, &crit); err != nil {
		return s, err
	}
	s.Unassessed, s.Verified, s.Low, s.Medium, s.High, s.Critical =
		int(un.Int64), int(ver.Int64), int(low.Int64), int(med.Int64), int(high.Int64), int(crit.Int64)
	return s, nil
}

const documentColumns = `
	id, pdf_url, title_text, year_tag, tags, source_page_url,
	requestor_name, letter_id, letter_date, city,
	download_status, downloaded_at, pdf_size_bytes, pdf_sha256,
	extraction_status, extraction_method, extraction_quality, page_count, word_count,
	extracted_at, section_confidence, json_path,
	needs_llm_extraction, llm_extracted_at,
	fidelity_score, fidelity_method, fidelity_risk,
	scraped_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var (
		downloadedAt, extractedAt, llmExtractedAt sql.NullTime
		pdfSize                                   sql.NullInt64
		extractionQuality, sectionConfidence, fid sql.NullFloat64
		pageCount, wordCount                      sql.NullInt64
		fidelityMethod                            sql.NullString
		pdfSHA, extractionMethod, jsonPath        sql.NullString
		needsLLM                                  int
	)
	err := row.Scan(
		&d.ID, &d.PDFURL, &d.TitleText, &d.YearTag, &d.Tags, &d.SourcePageURL,
		&d.RequestorName, &d.LetterID, &d.LetterDate, &d.City,
		&d.DownloadStatus, &downloadedAt, &pdfSize, &pdfSHA,
		&d.ExtractionStatus, &extractionMethod, &extractionQuality, &pageCount, &wordCount,
		&extractedAt, &sectionConfidence, &jsonPath,
		&needsLLM, &llmExtractedAt,
		&fid, &fidelityMethod, &d.FidelityRisk,
		&d.ScrapedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if downloadedAt.Valid {
		d.DownloadedAt = &downloadedAt.Time
	}
	if extractedAt.Valid {
		d.ExtractedAt = &extractedAt.Time
	}
	if llmExtractedAt.Valid {
		d.LLMExtractedAt = &llmExtractedAt.Time
	}
	if pdfSize.Valid {
		v := pdfSize.Int64
		d.PDFSizeBytes = &v
	}
	if extractionQuality.Valid {
		v := extractionQuality.Float64
		d.ExtractionQuality = &v
	}
	if sectionConfidence.Valid {
		v := sectionConfidence.Float64
		d.SectionConfidence = &v
	}
	if fid.Valid {
		v := fid.Float64
		d.FidelityScore = &v
	}
	if pageCount.Valid {
		v := int(pageCount.Int64)
		d.PageCount = &v
	}
	if wordCount.Valid {
		v := int(wordCount.Int64)
		d.WordCount = &v
	}
	d.FidelityMethod = fidelityMethod.String
	d.PDFSHA256 = pdfSHA.String
	d.ExtractionMethod = ExtractionMethod(extractionMethod.String)
	d.JSONPath = jsonPath.String
	d.NeedsLLMExtraction = needsLLM != 0
	return &d, nil
}

func (r *Repository) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]*Document, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
