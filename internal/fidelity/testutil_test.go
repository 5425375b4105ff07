package fidelity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nomindnick/fppc-corpus/internal/store"
)

func newFidelityTestRepo(t *testing.T) *store.Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := store.Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewRepository(db)
}
