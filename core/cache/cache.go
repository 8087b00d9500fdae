// Package cache implements the LLM response cache: key derivation, TTL policy,
// compression, statistics and maintenance on top of a pluggable Store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core"
)

const (
	DefaultKeysLimit       = 100
	DefaultCleanupInterval = 5 * time.Minute
)

type Options struct {
	Enabled              bool
	DefaultTTL           time.Duration
	CompressionThreshold int
	MaxEntries           int // informative, limits are enforced by the store
	MaxSizeMB            int // informative, limits are enforced by the store
	CleanupInterval      time.Duration
}

// Stats is a snapshot of the cache usage. Counters are local to this process.
type Stats struct {
	Enabled                   bool    `json:"enabled"`
	Backend                   string  `json:"backend"`
	TotalEntries              int     `json:"total_entries"`
	MaxEntries                int     `json:"max_entries"`
	SizeMB                    float64 `json:"size_mb"`
	MaxSizeMB                 int     `json:"max_size_mb"`
	HitRatePercent            float64 `json:"hit_rate_percent"`
	TotalRequests             int64   `json:"total_requests"`
	Hits                      int64   `json:"hits"`
	Misses                    int64   `json:"misses"`
	Evictions                 int64   `json:"evictions"`
	CompressionThresholdBytes int     `json:"compression_threshold_bytes"`
	DefaultTTLSeconds         int     `json:"default_ttl_seconds"`
}

// KeyInfo describes one entry for debugging.
type KeyInfo struct {
	Key         string    `json:"key"`
	CreatedAt   time.Time `json:"created_at"`
	AccessedAt  time.Time `json:"accessed_at"`
	AccessCount int       `json:"access_count"`
	TTLSeconds  int       `json:"ttl_seconds"`
	SizeBytes   int       `json:"size_bytes"`
	Compressed  bool      `json:"compressed"`
	Expired     bool      `json:"expired"`
	Type        string    `json:"type"`
	Provider    string    `json:"provider"`
}

type Cache struct {
	store  Store
	opts   Options
	logger core.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	now func() time.Time // mockable
}

func New(store Store, opts Options, logger core.Logger) *Cache {
	if opts.CompressionThreshold <= 0 {
		opts.CompressionThreshold = DefaultCompressionThreshold
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Cache{store: store, opts: opts, logger: logger, now: time.Now}
}

func (c *Cache) Enabled() bool   { return c.opts.Enabled }
func (c *Cache) Backend() string { return c.store.Name() }

// Get returns the uncompressed value stored under key.
// Lookups on a disabled cache are not counted.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.opts.Enabled {
		return nil, false
	}

	e, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn(fmt.Sprintf("cache get %s: %v", short(key), err), err)
		}
		c.misses.Add(1)
		return nil, false
	}

	now := c.now()
	if e.Expired(now) {
		if err = c.store.Delete(ctx, key); err != nil {
			c.logger.Warn(fmt.Sprintf("cache delete %s: %v", short(key), err), err)
		}
		c.misses.Add(1)
		return nil, false
	}

	data, err := Decode(e)
	if err != nil {
		c.logger.Error(fmt.Sprintf("cache decode %s: %v", short(key), err), err)
		_ = c.store.Delete(ctx, key)
		c.misses.Add(1)
		return nil, false
	}

	e.AccessedAt = now
	e.AccessCount++
	if err = c.store.Touch(ctx, e); err != nil && !errors.Is(err, ErrMiss) {
		c.logger.Warn(fmt.Sprintf("cache touch %s: %v", short(key), err), err)
	}

	c.hits.Add(1)
	c.logger.Debug(fmt.Sprintf("cache hit for key: %s", short(key)))
	return data, true
}

// Set stores value under key with a TTL derived from the response characteristics.
// It reports whether the value was stored.
func (c *Cache) Set(ctx context.Context, key string, value []byte, meta Meta, tokensUsed int, responseTimeMS int64) bool {
	if !c.opts.Enabled {
		return false
	}

	ttl := TTL(c.opts.DefaultTTL, meta.Type, tokensUsed, responseTimeMS)
	stored, compressed := value, false
	if len(value) > c.opts.CompressionThreshold {
		data, err := compress(value)
		if err != nil {
			c.logger.Error(fmt.Sprintf("cache compress %s: %v", short(key), err), err)
			return false
		}
		stored, compressed = data, true
	}

	now := c.now()
	e := &Entry{
		Key:         key,
		Value:       stored,
		CreatedAt:   now,
		AccessedAt:  now,
		AccessCount: 1,
		TTLSeconds:  int(ttl / time.Second),
		Compressed:  compressed,
		SizeBytes:   len(stored),
		Meta:        meta,
	}

	evicted, err := c.store.Set(ctx, e)
	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		c.logger.Info(fmt.Sprintf("evicted %d cache entries", evicted))
	}
	if err != nil {
		c.logger.Error(fmt.Sprintf("cache set %s: %v", short(key), err), err)
		return false
	}
	c.logger.Debug(fmt.Sprintf("cached response for key: %s (TTL: %s)", short(key), ttl))
	return true
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Clear removes every entry and resets the counters.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "clearing cache store")
	}
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.logger.Info("cache cleared")
	return nil
}

func (c *Cache) Stats(ctx context.Context) Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = round2(float64(hits) / float64(total) * 100)
	}

	st := Stats{
		Enabled:                   c.opts.Enabled,
		Backend:                   c.store.Name(),
		MaxEntries:                c.opts.MaxEntries,
		MaxSizeMB:                 c.opts.MaxSizeMB,
		HitRatePercent:            hitRate,
		TotalRequests:             total,
		Hits:                      hits,
		Misses:                    misses,
		Evictions:                 c.evictions.Load(),
		CompressionThresholdBytes: c.opts.CompressionThreshold,
		DefaultTTLSeconds:         int(c.opts.DefaultTTL / time.Second),
	}
	sum, err := c.store.Summary(ctx)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("cache summary: %v", err), err)
		return st
	}
	st.TotalEntries = sum.Entries
	st.SizeMB = round2(float64(sum.SizeBytes) / (1024 * 1024))
	return st
}

// Keys lists up to limit entries (DefaultKeysLimit when limit <= 0) with their metadata.
// Keys are shortened to 16 characters.
func (c *Cache) Keys(ctx context.Context, limit int) ([]KeyInfo, error) {
	if limit <= 0 {
		limit = DefaultKeysLimit
	}
	entries, err := c.store.Entries(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing cache entries")
	}
	now := c.now()
	infos := make([]KeyInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, KeyInfo{
			Key:         e.Key[:min(16, len(e.Key))] + "...",
			CreatedAt:   e.CreatedAt,
			AccessedAt:  e.AccessedAt,
			AccessCount: e.AccessCount,
			TTLSeconds:  e.TTLSeconds,
			SizeBytes:   e.SizeBytes,
			Compressed:  e.Compressed,
			Expired:     e.Expired(now),
			Type:        e.Meta.Type,
			Provider:    e.Meta.Provider,
		})
	}
	return infos, nil
}

type (
	exportEntryMeta struct {
		CreatedAt   time.Time `json:"created_at"`
		AccessedAt  time.Time `json:"accessed_at"`
		AccessCount int       `json:"access_count"`
		TTLSeconds  int       `json:"ttl_seconds"`
		Compressed  bool      `json:"compressed"`
		SizeBytes   int       `json:"size_bytes"`
		Type        string    `json:"type"`
		Provider    string    `json:"provider"`
		Model       string    `json:"model"`
	}

	exportEntry struct {
		Response interface{}     `json:"response"`
		Metadata exportEntryMeta `json:"metadata"`
	}

	// Export is the JSON document written by Cache.Export.
	Export struct {
		ExportedAt time.Time              `json:"exported_at"`
		Stats      Stats                  `json:"stats"`
		Entries    map[string]exportEntry `json:"entries"`
	}
)

// Export writes a JSON backup of every entry to path, creating parent directories.
func (c *Cache) Export(ctx context.Context, path string) (int, error) {
	entries, err := c.store.Entries(ctx, 0)
	if err != nil {
		return 0, errors.Wrap(err, "listing cache entries")
	}

	doc := Export{
		ExportedAt: c.now().UTC(),
		Stats:      c.Stats(ctx),
		Entries:    make(map[string]exportEntry, len(entries)),
	}
	for _, e := range entries {
		data, err := Decode(e)
		if err != nil {
			c.logger.Warn(fmt.Sprintf("cache export: skipping %s: %v", short(e.Key), err), err)
			continue
		}
		var resp interface{} = string(data)
		if json.Valid(data) {
			resp = json.RawMessage(data)
		}
		doc.Entries[e.Key] = exportEntry{
			Response: resp,
			Metadata: exportEntryMeta{
				CreatedAt:   e.CreatedAt,
				AccessedAt:  e.AccessedAt,
				AccessCount: e.AccessCount,
				TTLSeconds:  e.TTLSeconds,
				Compressed:  e.Compressed,
				SizeBytes:   e.SizeBytes,
				Type:        e.Meta.Type,
				Provider:    e.Meta.Provider,
				Model:       e.Meta.Model,
			},
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, errors.Wrap(err, "encoding cache export")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return 0, errors.Wrap(err, "creating export directory")
		}
	}
	if err = os.WriteFile(path, out, 0o644); err != nil {
		return 0, errors.Wrap(err, "writing cache export")
	}
	c.logger.Info(fmt.Sprintf("cache exported to %s (%d entries)", path, len(doc.Entries)))
	return len(doc.Entries), nil
}

// Sweep removes expired entries.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	n, err := c.store.DeleteExpired(ctx, c.now())
	if err != nil {
		return n, errors.Wrap(err, "deleting expired entries")
	}
	if n > 0 {
		c.logger.Debug(fmt.Sprintf("removed %d expired cache entries", n))
	}
	return n, nil
}

// Run sweeps expired entries every CleanupInterval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	if !c.opts.Enabled {
		return
	}
	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Sweep(ctx); err != nil {
				c.logger.Error(fmt.Sprintf("cache maintenance: %v", err), err)
				continue
			}
			st := c.Stats(ctx)
			c.logger.Debug(fmt.Sprintf(
				"cache stats: entries=%d size=%.2fMB hits=%d misses=%d evictions=%d",
				st.TotalEntries, st.SizeMB, st.Hits, st.Misses, st.Evictions,
			))
		}
	}
}

func (c *Cache) Ping(ctx context.Context) error { return c.store.Ping(ctx) }
func (c *Cache) Close() error                   { return c.store.Close() }

func short(key string) string {
	if len(key) > 8 {
		return key[:8] + "..."
	}
	return key
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
