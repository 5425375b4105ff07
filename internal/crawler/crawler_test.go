package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

func newTestCrawler(t *testing.T, baseURL string) (*Crawler, *store.Repository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := store.Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := store.NewRepository(db)

	cfg := config.CrawlerConfig{
		BaseURL:          baseURL,
		StartYear:        2015,
		EndYear:          2015,
		PoliteDelay:      time.Millisecond,
		RequestTimeout:   5 * time.Second,
		MaxRetries:       1,
		RetryBackoffBase: time.Millisecond,
		CheckpointPath:   filepath.Join(t.TempDir(), "crawl_checkpoint.json"),
	}
	log := observability.NewLogger(observability.LogConfig{})
	return New(cfg, repo, log), repo
}

func TestBuildYearURL_OmitsPageParamOnFirstPage(t *testing.T) {
	c, _ := newTestCrawler(t, "https://fppc.ca.gov/search")
	u := c.BuildYearURL(2015, 1)
	assert.Equal(t, "https://fppc.ca.gov/search?SearchTerm=&tag1=2015&tagCount=1", u)
}

func TestBuildYearURL_IncludesPageParamAfterFirstPage(t *testing.T) {
	c, _ := newTestCrawler(t, "https://fppc.ca.gov/search")
	u := c.BuildYearURL(2015, 3)
	assert.Equal(t, "https://fppc.ca.gov/search?SearchTerm=&tag1=2015&tagCount=1&page=3", u)
}

func TestCrawlYear_SinglePageInsertsDiscoveredDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hitFixture))
	}))
	defer srv.Close()

	c, repo := newTestCrawler(t, srv.URL)
	summary, err := c.CrawlYear(context.Background(), 2015)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 0, summary.Duplicate)
	assert.False(t, summary.FirstPageFailed)

	stats, err := repo.DownloadStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestCrawlYear_DuplicateAcrossRunsIsNotReinserted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hitFixture))
	}))
	defer srv.Close()

	c, _ := newTestCrawler(t, srv.URL)
	_, err := c.CrawlYear(context.Background(), 2015)
	require.NoError(t, err)

	summary, err := c.CrawlYear(context.Background(), 2015)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 1, summary.Duplicate)
}

func TestCrawlYear_FirstPageFetchFailureReturnsFirstPageFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := newTestCrawler(t, srv.URL)
	summary, err := c.CrawlYear(context.Background(), 2015)
	require.Error(t, err)
	assert.True(t, summary.FirstPageFailed)
}

func TestCrawlAll_SavesCheckpointAfterSuccessfulYear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hitFixture))
	}))
	defer srv.Close()

	c, _ := newTestCrawler(t, srv.URL)
	summary, err := c.CrawlAll(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, summary.Years, 1)
	assert.Equal(t, 2015, summary.Years[0].Year)
	assert.FileExists(t, c.cfg.CheckpointPath)
}

func TestCrawlAll_ExplicitYearRangeOverridesConfiguredRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hitFixture))
	}))
	defer srv.Close()

	c, _ := newTestCrawler(t, srv.URL)
	summary, err := c.CrawlAll(context.Background(), []int{2010, 2011}, false)
	require.NoError(t, err)
	require.Len(t, summary.Years, 2)
	assert.Equal(t, 2010, summary.Years[0].Year)
	assert.Equal(t, 2011, summary.Years[1].Year)
}
