package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestInsertDiscovered_InsertsNewRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "https://fppc.ca.gov/a.pdf", YearTag: 1998})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestInsertDiscovered_DuplicateURLIsBenignNoOp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	doc := &Document{PDFURL: "https://fppc.ca.gov/dup.pdf", YearTag: 1998}

	inserted, err := repo.InsertDiscovered(ctx, doc)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = repo.InsertDiscovered(ctx, doc)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestPendingDownloads_ReturnsOnlyPendingOrderedByYear(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u2", YearTag: 2005})
	require.NoError(t, err)
	_, err = repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 1990})
	require.NoError(t, err)

	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1990, docs[0].YearTag)
	assert.Equal(t, 2005, docs[1].YearTag)
}

func TestUpdateDownloadStatus_SuccessSetsShaAndSize(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)

	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	id := docs[0].ID

	require.NoError(t, repo.UpdateDownloadStatus(ctx, id, DownloadDownloaded, "abc123", 4096))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DownloadDownloaded, got.DownloadStatus)
	assert.Equal(t, "abc123", got.PDFSHA256)
	require.NotNil(t, got.PDFSizeBytes)
	assert.Equal(t, int64(4096), *got.PDFSizeBytes)
	assert.NotNil(t, got.DownloadedAt)
}

func TestUpdateDownloadStatus_FailureLeavesShaUnset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	id := docs[0].ID

	require.NoError(t, repo.UpdateDownloadStatus(ctx, id, DownloadFailed, "", 0))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DownloadFailed, got.DownloadStatus)
	assert.Empty(t, got.PDFSHA256)
}

func TestDownloadStats_CountsByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	_, err = repo.InsertDiscovered(ctx, &Document{PDFURL: "u2", YearTag: 2000})
	require.NoError(t, err)

	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateDownloadStatus(ctx, docs[0].ID, DownloadDownloaded, "x", 1))

	stats, err := repo.DownloadStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 1, stats.Pending)
}

func TestGetByID_MissingRowReturnsErrNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetByID(context.Background(), 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateExtraction_PartialUpdateLeavesOtherColumnsUnchanged(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000, LetterID: "A-00-001"})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	id := docs[0].ID
	require.NoError(t, repo.UpdateDownloadStatus(ctx, id, DownloadDownloaded, "x", 1))

	method := MethodEmbedded
	quality := 0.9
	words := 500
	require.NoError(t, repo.UpdateExtraction(ctx, id, ExtractionUpdate{
		Status:    ExtractionExtracted,
		Method:    &method,
		Quality:   &quality,
		WordCount: &words,
	}))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ExtractionExtracted, got.ExtractionStatus)
	assert.Equal(t, MethodEmbedded, got.ExtractionMethod)
	require.NotNil(t, got.ExtractionQuality)
	assert.Equal(t, 0.9, *got.ExtractionQuality)
	assert.Equal(t, "A-00-001", got.LetterID, "unset LetterID field in the update should not clear the existing value")
}

func TestMarkExtractionError_SetsErrorStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	id := docs[0].ID

	require.NoError(t, repo.MarkExtractionError(ctx, id))
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ExtractionError, got.ExtractionStatus)
}

func TestBackfillNativeFidelity_VerifiesEmbeddedDocumentsOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	id := docs[0].ID
	require.NoError(t, repo.UpdateDownloadStatus(ctx, id, DownloadDownloaded, "x", 1))

	method := MethodEmbedded
	require.NoError(t, repo.UpdateExtraction(ctx, id, ExtractionUpdate{Status: ExtractionExtracted, Method: &method}))

	n, err := repo.BackfillNativeFidelity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RiskVerified, got.FidelityRisk)
	require.NotNil(t, got.FidelityScore)
	assert.Equal(t, 1.0, *got.FidelityScore)
}

func TestByFidelityRisk_FiltersByTier(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	id := docs[0].ID

	require.NoError(t, repo.UpdateFidelity(ctx, id, 0.4, "canary", RiskHigh))

	high, err := repo.ByFidelityRisk(ctx, RiskHigh, 10)
	require.NoError(t, err)
	assert.Len(t, high, 1)

	low, err := repo.ByFidelityRisk(ctx, RiskLow, 10)
	require.NoError(t, err)
	assert.Empty(t, low)
}

func TestFidelityStats_CountsByTier(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateFidelity(ctx, docs[0].ID, 0.9, "canary", RiskVerified))

	stats, err := repo.FidelityStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Verified)
	assert.Equal(t, 0, stats.Critical)
}

func TestNeedingLLMSynthesisAndMarkLLMSynthesized(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	id := docs[0].ID
	require.NoError(t, repo.UpdateDownloadStatus(ctx, id, DownloadDownloaded, "x", 1))

	needsLLM := true
	require.NoError(t, repo.UpdateExtraction(ctx, id, ExtractionUpdate{Status: ExtractionExtracted, NeedsLLMExtraction: &needsLLM}))

	pending, err := repo.NeedingLLMSynthesis(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, repo.MarkLLMSynthesized(ctx, id, 0.8))

	pending, err = repo.NeedingLLMSynthesis(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.NeedsLLMExtraction)
	assert.NotNil(t, got.LLMExtractedAt)
}

func TestAllExtracted_RequiresJSONPath(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	id := docs[0].ID
	require.NoError(t, repo.UpdateDownloadStatus(ctx, id, DownloadDownloaded, "x", 1))

	out, err := repo.AllExtracted(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, out, "extraction_status is still pending and json_path is unset")

	path := "/data/extracted/2000/u1.json"
	require.NoError(t, repo.UpdateExtraction(ctx, id, ExtractionUpdate{Status: ExtractionExtracted, JSONPath: &path}))

	out, err = repo.AllExtracted(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, path, out[0].JSONPath)
}

func TestByExtractionMethod_FiltersByMethod(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	docs, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	id := docs[0].ID
	require.NoError(t, repo.UpdateDownloadStatus(ctx, id, DownloadDownloaded, "x", 1))
	method := MethodVisionOCR
	require.NoError(t, repo.UpdateExtraction(ctx, id, ExtractionUpdate{Status: ExtractionExtracted, Method: &method}))

	out, err := repo.ByExtractionMethod(ctx, MethodVisionOCR, 10)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	out, err = repo.ByExtractionMethod(ctx, MethodEmbedded, 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCheckDuplicates_UniqueIndexPreventsDuplicates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)
	_, err = repo.InsertDiscovered(ctx, &Document{PDFURL: "u1", YearTag: 2000})
	require.NoError(t, err)

	dups, err := repo.CheckDuplicates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dups, "the unique index rejects the second insert, so no row ever has a duplicate pdf_url")
}
