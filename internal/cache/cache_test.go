package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomindnick/fppc-corpus/internal/config"
)

func TestMemoryClient_SetThenGetRoundTrips(t *testing.T) {
	c := NewMemoryClient(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryClient_GetMissingKeyReturnsCacheMiss(t *testing.T) {
	c := NewMemoryClient(0)
	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_ExpiredEntryReturnsCacheMiss(t *testing.T) {
	c := NewMemoryClient(0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), -time.Second))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_DeleteRemovesEntry(t *testing.T) {
	c := NewMemoryClient(0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_EvictsOldestWhenAtCapacity(t *testing.T) {
	c := NewMemoryClient(2)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Millisecond))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))

	assert.LessOrEqual(t, len(c.data), 2)
	_, stillCached := c.data["a"]
	assert.False(t, stillCached, "the entry with the earliest expiry is evicted")
}

func TestTranscriptionKey_IncludesAllComponents(t *testing.T) {
	k := TranscriptionKey("abc123", 4, "gpt-4o")
	assert.Equal(t, "transcribe:abc123:4:gpt-4o", k)
}

func TestSynthesisKey_IncludesAllComponents(t *testing.T) {
	k := SynthesisKey("abc123", "gpt-4o")
	assert.Equal(t, "synthesize:abc123:gpt-4o", k)
}

func TestNew_DefaultsToMemoryClientWhenDriverNotRedis(t *testing.T) {
	c, err := New(config.CacheConfig{Driver: "memory"})
	require.NoError(t, err)
	defer c.Close()
	_, ok := c.(*MemoryClient)
	assert.True(t, ok)
}

func TestNew_EmptyDriverDefaultsToMemoryClient(t *testing.T) {
	c, err := New(config.CacheConfig{})
	require.NoError(t, err)
	defer c.Close()
	_, ok := c.(*MemoryClient)
	assert.True(t, ok)
}
