package llmsynth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/nomindnick/fppc-corpus/internal/cache"
)

// CachedClient decorates a CompletionClient with an optional response
// cache, keyed on the combined prompt's content hash plus model
// (internal/cache.SynthesisKey), so re-running synthesis over a document
// already synthesised in this run does not re-pay the API. Mirrors
// internal/visionocr.CachedClient's shape.
type CachedClient struct {
	backend CompletionClient
	cache   cache.Client
	model   string
	ttl     time.Duration
}

// NewCachedClient wraps backend with cache, keying entries under model and
// expiring them after ttl.
func NewCachedClient(backend CompletionClient, c cache.Client, model string, ttl time.Duration) *CachedClient {
	return &CachedClient{backend: backend, cache: c, model: model, ttl: ttl}
}

// Complete returns a cached result for this exact prompt pair and model if
// present, otherwise calls through to backend and caches the result.
func (c *CachedClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (Result, error) {
	key := cache.SynthesisKey(contentHash(systemPrompt+"\x00"+userPrompt), c.model)

	if cached, err := c.cache.Get(ctx, key); err == nil {
		var res Result
		if jsonErr := json.Unmarshal(cached, &res); jsonErr == nil {
			return res, nil
		}
	}

	res, err := c.backend.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return Result{}, err
	}

	if encoded, err := json.Marshal(res); err == nil {
		_ = c.cache.Set(ctx, key, encoded, c.ttl)
	}
	return res, nil
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
