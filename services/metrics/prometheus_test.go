package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/storage/cache/memstore"
)

func TestPrometheus(t *testing.T) {
	p := NewPrometheus()

	p.CacheLookup(true)
	p.CacheLookup(false)
	p.CacheLookup(false)
	p.ProviderRequest(llm.ProviderGroq, llm.OutcomeSuccess, 300*time.Millisecond)
	p.ProviderRequest(llm.ProviderGroq, llm.OutcomeError, time.Second)
	p.ProviderRequest(llm.ProviderOpenAI, llm.OutcomeRateLimited, 0)
	p.Fallback(llm.ProviderGroq, llm.ProviderOpenAI)
	p.CircuitOpened(llm.ProviderGroq)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.providerRequests.WithLabelValues("groq", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.providerRequests.WithLabelValues("openai", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.fallbacks.WithLabelValues("groq", "openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.circuitsOpened.WithLabelValues("groq")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.providerLatency), "only attempted calls are timed")

	store, err := memstore.New(memstore.Options{MaxEntries: 10})
	require.NoError(t, err)
	c := cache.New(store, cache.Options{Enabled: true}, core.NopLogger{})
	c.Set(context.Background(), "k", []byte("v"), cache.Meta{}, 1, 1)
	p.WatchCache(c)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "sciencegpt_cache_entries 1")
	assert.Contains(t, string(body), `sciencegpt_llm_provider_requests_total{outcome="success",provider="groq"} 1`)
}
