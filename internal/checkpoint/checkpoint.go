// Package checkpoint implements atomic write-temp-then-rename checkpoint
// files, used by the Catalog Crawler and the Fidelity Verifier phases to
// make long-running stages resumable (spec §5, §9).
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// CrawlCheckpoint records the Catalog Crawler's progress, matching
// scraper/crawler.py's load_checkpoint/save_checkpoint JSON shape.
type CrawlCheckpoint struct {
	LastCompletedYear int       `json:"last_completed_year"`
	LastCompletedPage int       `json:"last_completed_page"`
	Timestamp         time.Time `json:"timestamp"`
}

// Load reads a checkpoint file, returning (nil, nil) if it does not exist.
func Load[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Save writes v to path via write-temp-then-rename, so a crash mid-write
// never leaves a corrupt or partial checkpoint behind.
func Save[T any](path string, v T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// Clear removes a checkpoint file; a missing file is not an error.
func Clear(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
