//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nomindnick/fppc-corpus/internal/store"
)

// TestPostgresRepository_FullLifecycle runs the same Repository surface
// internal/store/repository_test.go exercises against sqlite, but against
// a real Postgres container, proving the "?"-to-"$N" rebind done for the
// optional Postgres backend (DOMAIN STACK) actually round-trips. Grounded
// on tests/integration/testcontainers_test.go's postgres.Run +
// wait.ForLog("database system is ready to accept connections") setup;
// trimmed of that file's pgvector/tenant-specific scaffolding, which this
// single-table State Store has no use for.
func TestPostgresRepository_FullLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	pg, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fppc_corpus_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() { _ = pg.Terminate(ctx) }()

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := store.Open(ctx, "postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	repo := store.NewRepository(db, "postgres")

	inserted, err := repo.InsertDiscovered(ctx, &store.Document{
		PDFURL:    "https://example.test/letters/A-24-001.pdf",
		TitleText: "Jane Doe - A-24-001 - January 1, 2024 - Sacramento",
		YearTag:   2024,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = repo.InsertDiscovered(ctx, &store.Document{
		PDFURL:  "https://example.test/letters/A-24-001.pdf",
		YearTag: 2024,
	})
	require.NoError(t, err)
	require.False(t, inserted, "duplicate pdf_url must be a benign no-op (I1)")

	pending, err := repo.PendingDownloads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.UpdateDownloadStatus(ctx, pending[0].ID, store.DownloadDownloaded, "deadbeef", 1024))

	stats, err := repo.DownloadStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Downloaded)

	got, err := repo.GetByID(ctx, pending[0].ID)
	require.NoError(t, err)
	require.Equal(t, store.DownloadDownloaded, got.DownloadStatus)
	require.Equal(t, "deadbeef", got.PDFSHA256)
}
