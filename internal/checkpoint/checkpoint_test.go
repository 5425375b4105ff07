package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsNilWithoutError(t *testing.T) {
	v, err := Load[CrawlCheckpoint](filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint.json")
	want := CrawlCheckpoint{LastCompletedYear: 1998, LastCompletedPage: 3, Timestamp: time.Unix(1000, 0).UTC()}

	require.NoError(t, Save(path, want))
	got, err := Load[CrawlCheckpoint](path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.LastCompletedYear, got.LastCompletedYear)
	assert.Equal(t, want.LastCompletedPage, got.LastCompletedPage)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
}

func TestSave_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c.json")
	require.NoError(t, Save(path, CrawlCheckpoint{LastCompletedYear: 2020}))
	assert.FileExists(t, path)
}

func TestSave_OverwritesExistingCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, Save(path, CrawlCheckpoint{LastCompletedYear: 1}))
	require.NoError(t, Save(path, CrawlCheckpoint{LastCompletedYear: 2}))

	got, err := Load[CrawlCheckpoint](path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LastCompletedYear)
}

func TestClear_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, Save(path, CrawlCheckpoint{LastCompletedYear: 1}))
	require.NoError(t, Clear(path))
	assert.NoFileExists(t, path)
}

func TestClear_MissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, Clear(filepath.Join(t.TempDir(), "missing.json")))
}
