package visionocr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomindnick/fppc-corpus/internal/cache"
)

type fakeTranscriber struct {
	calls int
	result Result
	err    error
}

func (f *fakeTranscriber) TranscribePage(ctx context.Context, jpegBytes []byte, prompt string) (Result, error) {
	f.calls++
	return f.result, f.err
}

func TestCachedClient_MissCallsBackendAndCaches(t *testing.T) {
	backend := &fakeTranscriber{result: Result{Text: "hello", PromptTokens: 1, CompletionTokens: 2}}
	c := NewCachedClient(backend, cache.NewMemoryClient(0), "gpt-4o", time.Minute)

	res, err := c.TranscribePage(context.Background(), []byte("page-bytes"), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 1, backend.calls)
}

func TestCachedClient_HitSkipsBackend(t *testing.T) {
	backend := &fakeTranscriber{result: Result{Text: "hello"}}
	c := NewCachedClient(backend, cache.NewMemoryClient(0), "gpt-4o", time.Minute)
	ctx := context.Background()
	page := []byte("page-bytes")

	_, err := c.TranscribePage(ctx, page, "prompt")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls)

	res2, err := c.TranscribePage(ctx, page, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", res2.Text)
	assert.Equal(t, 1, backend.calls, "second call should be served from cache")
}

func TestCachedClient_DifferentPagesDoNotShareCacheEntry(t *testing.T) {
	backend := &fakeTranscriber{result: Result{Text: "hello"}}
	c := NewCachedClient(backend, cache.NewMemoryClient(0), "gpt-4o", time.Minute)
	ctx := context.Background()

	_, err := c.TranscribePage(ctx, []byte("page-one"), "prompt")
	require.NoError(t, err)
	_, err = c.TranscribePage(ctx, []byte("page-two"), "prompt")
	require.NoError(t, err)

	assert.Equal(t, 2, backend.calls)
}

func TestCachedClient_BackendErrorNotCached(t *testing.T) {
	backend := &fakeTranscriber{err: assert.AnError}
	c := NewCachedClient(backend, cache.NewMemoryClient(0), "gpt-4o", time.Minute)
	ctx := context.Background()
	page := []byte("page-bytes")

	_, err := c.TranscribePage(ctx, page, "prompt")
	assert.Error(t, err)

	_, err = c.TranscribePage(ctx, page, "prompt")
	assert.Error(t, err)
	assert.Equal(t, 2, backend.calls, "errors should not be cached")
}
