package llm

import (
	"context"

	"github.com/trezcool/sciencegpt/core/cache"
)

type RateLimitStatus struct {
	CanRequest bool   `json:"can_request"`
	Message    string `json:"message,omitempty"`
}

type ProviderStatus struct {
	Available           bool            `json:"available"`
	Config              ProviderConfig  `json:"config"`
	RecentRequests      int             `json:"recent_requests"`
	RateLimit           RateLimitStatus `json:"rate_limit"`
	Circuit             BreakerState    `json:"circuit"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
}

// ProviderStatus reports the state of every provider, configured or not.
func (g *Gateway) ProviderStatus() map[Provider]ProviderStatus {
	status := make(map[Provider]ProviderStatus, len(Providers))
	for _, p := range Providers {
		rl := RateLimitStatus{CanRequest: true}
		if ok, wait := g.limiter.Allow(p); !ok {
			rl = RateLimitStatus{Message: (&RateLimitError{Provider: p, RetryAfter: wait}).Error()}
		}
		snap := g.breakers[p].snapshot()
		status[p] = ProviderStatus{
			Available:           g.HasProvider(p),
			Config:              g.configs[p],
			RecentRequests:      g.limiter.Count(p),
			RateLimit:           rl,
			Circuit:             snap.State,
			ConsecutiveFailures: snap.Failures,
		}
	}
	return status
}

type ProviderUsage struct {
	RecentRequests int     `json:"recent_requests"`
	Successes      int64   `json:"successes"`
	Failures       int64   `json:"failures"`
	TokensUsed     int64   `json:"tokens_used"`
	EstimatedCost  float64 `json:"estimated_cost"`
}

type UsageStats struct {
	TotalRequests        int                        `json:"total_requests"`
	CacheStats           *cache.Stats               `json:"cache_stats"`
	ProviderDistribution map[Provider]int           `json:"provider_distribution"`
	Providers            map[Provider]ProviderUsage `json:"providers"`
	Successes            int64                      `json:"successes"`
	Failures             int64                      `json:"failures"`
	EstimatedCost        float64                    `json:"estimated_cost"`
}

// UsageStats reports the requests of the current rate limit windows and the lifetime counters.
func (g *Gateway) UsageStats(ctx context.Context) UsageStats {
	st := UsageStats{
		ProviderDistribution: make(map[Provider]int, len(Providers)),
		Providers:            make(map[Provider]ProviderUsage, len(Providers)),
	}

	g.usageMu.Lock()
	defer g.usageMu.Unlock()
	for _, p := range Providers {
		n := g.limiter.Count(p)
		u := g.usage[p]
		cost := float64(u.tokens) * g.configs[p].CostPerToken
		st.TotalRequests += n
		st.ProviderDistribution[p] = n
		st.Providers[p] = ProviderUsage{
			RecentRequests: n,
			Successes:      u.successes,
			Failures:       u.failures,
			TokensUsed:     u.tokens,
			EstimatedCost:  cost,
		}
		st.Successes += u.successes
		st.Failures += u.failures
		st.EstimatedCost += cost
	}
	if g.cache != nil {
		cs := g.cache.Stats(ctx)
		st.CacheStats = &cs
	}
	return st
}
