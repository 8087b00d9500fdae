package cache_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/storage/cache/memstore"
)

func newTestCache(t *testing.T, enabled bool) *cache.Cache {
	store, err := memstore.New(memstore.Options{MaxEntries: 100})
	require.NoError(t, err)
	return cache.New(store, cache.Options{
		Enabled:    enabled,
		DefaultTTL: time.Hour,
		MaxEntries: 100,
		MaxSizeMB:  1,
	}, core.NopLogger{})
}

func TestCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, true)
	key := cache.Key(cache.KeyParams{Question: "What is gravity?"})
	meta := cache.Meta{Type: "general", Provider: "groq", Model: "llama3-8b-8192"}

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	assert.True(t, c.Set(ctx, key, []byte(`{"content":"pull"}`), meta, 10, 200))
	data, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.JSONEq(t, `{"content":"pull"}`, string(data))
	_, ok = c.Get(ctx, key)
	assert.True(t, ok)

	st := c.Stats(ctx)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(3), st.TotalRequests)
	assert.Equal(t, 66.67, st.HitRatePercent)
	assert.Equal(t, 1, st.TotalEntries)
	assert.Equal(t, "memory", st.Backend)
	assert.Equal(t, 3600, st.DefaultTTLSeconds)
	assert.Equal(t, cache.DefaultCompressionThreshold, st.CompressionThresholdBytes)

	keys, err := c.Keys(ctx, 0)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key[:16]+"...", keys[0].Key)
	assert.Equal(t, 3, keys[0].AccessCount)
	assert.Equal(t, 3600, keys[0].TTLSeconds)
	assert.False(t, keys[0].Compressed)
	assert.False(t, keys[0].Expired)
}

func TestCache_Compression(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, true)

	big := []byte(`{"content":"` + strings.Repeat("photosynthesis ", 200) + `"}`)
	require.True(t, c.Set(ctx, "big", big, cache.Meta{Type: "general"}, 10, 10))

	keys, err := c.Keys(ctx, 10)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].Compressed)
	assert.Less(t, keys[0].SizeBytes, len(big))

	data, ok := c.Get(ctx, "big")
	require.True(t, ok)
	assert.Equal(t, big, data)
}

func TestCache_SetTooLarge(t *testing.T) {
	ctx := context.Background()
	store, err := memstore.New(memstore.Options{MaxSizeBytes: 100})
	require.NoError(t, err)
	c := cache.New(store, cache.Options{Enabled: true, DefaultTTL: time.Hour}, core.NopLogger{})

	require.True(t, c.Set(ctx, "small", []byte(`{"content":"ok"}`), cache.Meta{Type: "general"}, 1, 1))
	assert.False(t, c.Set(ctx, "large", []byte(strings.Repeat("x", 90)), cache.Meta{Type: "general"}, 1, 1))

	_, ok := c.Get(ctx, "large")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "small")
	assert.True(t, ok)
}

func TestCache_Disabled(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, false)

	assert.False(t, c.Set(ctx, "k", []byte("v"), cache.Meta{}, 0, 0))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	st := c.Stats(ctx)
	assert.False(t, st.Enabled)
	assert.Zero(t, st.TotalRequests)
}

func TestCache_ClearResetsStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, true)

	c.Set(ctx, "k", []byte("v"), cache.Meta{}, 0, 0)
	c.Get(ctx, "k")
	c.Get(ctx, "missing")

	require.NoError(t, c.Clear(ctx))
	st := c.Stats(ctx)
	assert.Zero(t, st.TotalEntries)
	assert.Zero(t, st.Hits)
	assert.Zero(t, st.Misses)
	assert.Zero(t, st.HitRatePercent)
}

func TestCache_Export(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, true)
	c.Set(ctx, "k1", []byte(`{"content":"a"}`), cache.Meta{Type: "quiz_generation", Provider: "anthropic"}, 5, 5)
	c.Set(ctx, "k2", []byte("plain text"), cache.Meta{Type: "general"}, 5, 5)

	path := filepath.Join(t.TempDir(), "nested", "dir", "backup.json")
	n, err := c.Export(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Stats   cache.Stats `json:"stats"`
		Entries map[string]struct {
			Response json.RawMessage `json:"response"`
			Metadata struct {
				Type       string `json:"type"`
				TTLSeconds int    `json:"ttl_seconds"`
			} `json:"metadata"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, 2, doc.Stats.TotalEntries)
	require.Contains(t, doc.Entries, "k1")
	assert.JSONEq(t, `{"content":"a"}`, string(doc.Entries["k1"].Response))
	assert.Equal(t, "quiz_generation", doc.Entries["k1"].Metadata.Type)
	assert.Equal(t, 1800, doc.Entries["k1"].Metadata.TTLSeconds)
	assert.JSONEq(t, `"plain text"`, string(doc.Entries["k2"].Response))
}

func TestCache_RunStopsOnCancel(t *testing.T) {
	store, err := memstore.New(memstore.Options{})
	require.NoError(t, err)
	c := cache.New(store, cache.Options{Enabled: true, CleanupInterval: time.Millisecond}, core.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, true)
	now := time.Now()
	cache.SetClock(c, func() time.Time { return now })

	// study suggestions live 15 minutes
	c.Set(ctx, "k", []byte("v"), cache.Meta{Type: "study_suggestions"}, 0, 0)
	now = now.Add(14 * time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	// age counts from creation, the hit above does not extend it
	now = now.Add(2 * time.Minute)
	keys, _ := c.Keys(ctx, 0)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].Expired)

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	st := c.Stats(ctx)
	assert.Zero(t, st.TotalEntries)
	assert.Equal(t, int64(1), st.Misses)

	c.Set(ctx, "k2", []byte("v"), cache.Meta{}, 0, 0)
	now = now.Add(2 * time.Hour)
	n, err := c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
