package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm"
)

const namespace = "sciencegpt"

// Prometheus records the gateway metrics in its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	fallbacks        *prometheus.CounterVec
	circuitsOpened   *prometheus.CounterVec
}

var _ llm.Recorder = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result (hit or miss).",
		}, []string{"result"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "provider_requests_total",
			Help:      "Provider attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of the provider attempts, retries included.",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "fallbacks_total",
			Help:      "Fallbacks from a failed provider to the next one.",
		}, []string{"from", "to"}),
		circuitsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "circuit_opened_total",
			Help:      "Times the circuit breaker of a provider opened.",
		}, []string{"provider"}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.cacheLookups,
		p.providerRequests,
		p.providerLatency,
		p.fallbacks,
		p.circuitsOpened,
	)
	return p
}

// WatchCache exports the entry count and the size of c on every scrape.
func (p *Prometheus) WatchCache(c *cache.Cache) {
	stats := func() cache.Stats {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return c.Stats(ctx)
	}
	p.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries in the response cache.",
		}, func() float64 { return float64(stats().TotalEntries) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "size_megabytes",
			Help:      "Stored size of the response cache.",
		}, func() float64 { return stats().SizeMB }),
	)
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *Prometheus) ProviderRequest(provider llm.Provider, outcome string, d time.Duration) {
	p.providerRequests.WithLabelValues(string(provider), outcome).Inc()
	if outcome == llm.OutcomeSuccess || outcome == llm.OutcomeError {
		p.providerLatency.WithLabelValues(string(provider)).Observe(d.Seconds())
	}
}

func (p *Prometheus) Fallback(from, to llm.Provider) {
	p.fallbacks.WithLabelValues(string(from), string(to)).Inc()
}

func (p *Prometheus) CircuitOpened(provider llm.Provider) {
	p.circuitsOpened.WithLabelValues(string(provider)).Inc()
}
