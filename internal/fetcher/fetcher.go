// Package fetcher implements the Binary Fetcher (C2): for each pending
// Document it retrieves the original binary, computes its content hash
// incrementally, and transitions the row to downloaded. Grounded on
// scraper/downloader.py (original_source/): download_pdf's streaming
// SHA-256 + retry-with-cleanup, get_pdf_path, download_pending's
// adopt-existing-file logic.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/errkind"
	"github.com/nomindnick/fppc-corpus/internal/httpfetch"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

// RunSummary aggregates the outcome of one Fetch invocation.
type RunSummary struct {
	Attempted int
	Downloaded int
	Adopted    int
	Failed     int
}

// Fetcher drives Documents from download_status=pending to downloaded/failed.
type Fetcher struct {
	cfg  config.FetcherConfig
	http *httpfetch.Client
	repo *store.Repository
	log  *observability.Logger

	rawDir string
}

func New(cfg config.FetcherConfig, rawDir string, repo *store.Repository, log *observability.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		http:   httpfetch.New(cfg.RequestTimeout, cfg.MaxRetries, cfg.RetryBackoffBase),
		repo:   repo,
		log:    log.WithStage("fetch"),
		rawDir: rawDir,
	}
}

// LocalPath returns the year-partitioned local path for a Document's
// binary, matching scraper/downloader.py:get_pdf_path.
func (f *Fetcher) LocalPath(yearTag int, pdfURL string) string {
	return filepath.Join(f.rawDir, fmt.Sprintf("%d", yearTag), filenameFromURL(pdfURL))
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	name := rawURL
	if err == nil {
		name = u.Path
	}
	name = filepath.Base(name)
	if name == "" || name == "." || name == "/" {
		name = "document.pdf"
	}
	return name
}

// FetchPending downloads up to limit pending Documents, one at a time with
// a politeness delay between requests, per spec §5.
func (f *Fetcher) FetchPending(ctx context.Context, limit int) (*RunSummary, error) {
	docs, err := f.repo.PendingDownloads(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending downloads: %w", err)
	}

	summary := &RunSummary{}
	for i, d := range docs {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if i > 0 {
			time.Sleep(f.cfg.PoliteDelay)
		}

		summary.Attempted++
		if err := f.fetchOne(ctx, d, summary); err != nil {
			f.log.Warn().Int64("document_id", d.ID).Err(err).Msg("fetch failed")
		}
	}
	return summary, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, d *store.Document, summary *RunSummary) error {
	path := f.LocalPath(d.YearTag, d.PDFURL)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		sum, size, err := hashExistingFile(path)
		if err != nil {
			return fmt.Errorf("hash existing file: %w", err)
		}
		if err := f.repo.UpdateDownloadStatus(ctx, d.ID, store.DownloadDownloaded, sum, size); err != nil {
			return fmt.Errorf("update download status: %w", err)
		}
		summary.Adopted++
		f.log.Info().Int64("document_id", d.ID).Str("path", path).Msg("adopted existing file")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create year directory: %w", err)
	}

	sum, size, err := f.download(ctx, d.PDFURL, path)
	if err != nil {
		_ = f.repo.UpdateDownloadStatus(ctx, d.ID, store.DownloadFailed, "", 0)
		summary.Failed++
		return err
	}

	if err := f.repo.UpdateDownloadStatus(ctx, d.ID, store.DownloadDownloaded, sum, size); err != nil {
		return fmt.Errorf("update download status: %w", err)
	}
	summary.Downloaded++
	return nil
}

// download streams the binary to destPath while incrementally computing
// its SHA-256, cleaning up any partial file on failure, matching
// scraper/downloader.py:download_pdf.
func (f *Fetcher) download(ctx context.Context, pdfURL, destPath string) (sha256Hex string, size int64, err error) {
	resp, err := f.http.Get(ctx, pdfURL)
	if err != nil {
		return "", 0, errkind.TransientNetworkError("download binary", err)
	}
	defer resp.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return "", 0, fmt.Errorf("create local file: %w", err)
	}

	h := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(out, h), resp.Body)
	closeErr := out.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(destPath)
		if copyErr != nil {
			return "", 0, errkind.TransientNetworkError("stream binary to disk", copyErr)
		}
		return "", 0, fmt.Errorf("close local file: %w", closeErr)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func hashExistingFile(path string) (sha256Hex string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ValidatePath guards against path traversal from a hostile catalog
// response before any file operation touches disk.
func ValidatePath(rawDir, candidate string) error {
	rel, err := filepath.Rel(rawDir, candidate)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("resolved path %q escapes raw directory %q", candidate, rawDir)
	}
	return nil
}
