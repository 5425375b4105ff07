package visionocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/nomindnick/fppc-corpus/internal/cache"
)

// Transcriber is the subset of Client that CachedClient wraps, so tests can
// substitute a fake backend.
type Transcriber interface {
	TranscribePage(ctx context.Context, jpegBytes []byte, prompt string) (Result, error)
}

// CachedClient decorates a Transcriber with an optional response cache,
// keyed on page content hash + model (internal/cache.TranscriptionKey), so a
// resumed run does not re-pay for pages already transcribed. Grounded on the
// teacher's cache-in-front-of-a-remote-client pattern; unlike the teacher's
// retrieval router, there is only one cacheable call here, so the decorator
// wraps TranscribePage directly rather than introducing a router type.
type CachedClient struct {
	backend Transcriber
	cache   cache.Client
	model   string
	ttl     time.Duration
}

// NewCachedClient wraps backend with cache, keying entries under model and
// expiring them after ttl.
func NewCachedClient(backend Transcriber, c cache.Client, model string, ttl time.Duration) *CachedClient {
	return &CachedClient{backend: backend, cache: c, model: model, ttl: ttl}
}

// TranscribePage returns a cached transcription for this exact page image
// and model if present, otherwise calls through to backend and caches the
// result.
func (c *CachedClient) TranscribePage(ctx context.Context, jpegBytes []byte, prompt string) (Result, error) {
	key := cache.TranscriptionKey(contentHash(jpegBytes), 0, c.model)

	if cached, err := c.cache.Get(ctx, key); err == nil {
		var res Result
		if jsonErr := json.Unmarshal(cached, &res); jsonErr == nil {
			return res, nil
		}
	}

	res, err := c.backend.TranscribePage(ctx, jpegBytes, prompt)
	if err != nil {
		return Result{}, err
	}

	if encoded, err := json.Marshal(res); err == nil {
		_ = c.cache.Set(ctx, key, encoded, c.ttl)
	}
	return res, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
