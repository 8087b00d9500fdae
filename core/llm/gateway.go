// Package llm routes tutoring questions to the LLM providers with caching,
// rate limiting, retries, circuit breaking and fallback.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm/prompt"
)

const (
	DefaultMaxConcurrent = 50
	DefaultMaxRetries    = 2
)

// Request outcomes reported to the Recorder
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeCircuitOpen = "circuit_open"
)

// ResponseCache stores serialized responses. *cache.Cache implements it.
type ResponseCache interface {
	Enabled() bool
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, meta cache.Meta, tokensUsed int, responseTimeMS int64) bool
	Clear(ctx context.Context) error
	Stats(ctx context.Context) cache.Stats
}

// Recorder receives the gateway metrics.
type Recorder interface {
	CacheLookup(hit bool)
	ProviderRequest(p Provider, outcome string, d time.Duration)
	Fallback(from, to Provider)
	CircuitOpened(p Provider)
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(bool)                                {}
func (nopRecorder) ProviderRequest(Provider, string, time.Duration) {}
func (nopRecorder) Fallback(Provider, Provider)                     {}
func (nopRecorder) CircuitOpened(Provider)                          {}

type usage struct {
	successes int64
	failures  int64
	tokens    int64
}

type Gateway struct {
	clients   map[Provider]Client
	available []Provider // canonical order
	configs   map[Provider]ProviderConfig
	breakers  map[Provider]*breaker
	limiter   *RateLimiter

	cache    ResponseCache
	logger   core.Logger
	recorder Recorder
	alerter  Alerter

	maxConcurrent int
	sem           *semaphore.Weighted
	flights       singleflight.Group
	maxRetries    int
	newBackOff    func() backoff.BackOff
	breakerCfg    BreakerConfig
	now           func() time.Time

	usageMu sync.Mutex
	usage   map[Provider]*usage
}

type Option func(*Gateway)

func WithCache(c ResponseCache) Option    { return func(g *Gateway) { g.cache = c } }
func WithLogger(l core.Logger) Option     { return func(g *Gateway) { g.logger = l } }
func WithRecorder(r Recorder) Option      { return func(g *Gateway) { g.recorder = r } }
func WithAlerter(a Alerter) Option        { return func(g *Gateway) { g.alerter = a } }
func WithMaxConcurrent(n int) Option      { return func(g *Gateway) { g.maxConcurrent = n } }
func WithMaxRetries(n int) Option         { return func(g *Gateway) { g.maxRetries = n } }
func WithBreaker(cfg BreakerConfig) Option { return func(g *Gateway) { g.breakerCfg = cfg } }

// WithBackOff sets the delay policy between retries of a provider call.
func WithBackOff(fn func() backoff.BackOff) Option { return func(g *Gateway) { g.newBackOff = fn } }

// WithProviderConfig overrides the default configuration of cfg.Provider.
func WithProviderConfig(cfg ProviderConfig) Option {
	return func(g *Gateway) { g.configs[cfg.Provider] = cfg }
}

// WithTimeout sets the call timeout of every provider.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		for p, cfg := range g.configs {
			cfg.Timeout = d
			g.configs[p] = cfg
		}
	}
}

func defaultBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(0),
	)
}

// NewGateway registers the providers that have a client. nil clients are ignored.
func NewGateway(clients map[Provider]Client, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		clients:       make(map[Provider]Client),
		configs:       DefaultProviderConfigs(),
		breakers:      make(map[Provider]*breaker),
		logger:        core.NopLogger{},
		recorder:      nopRecorder{},
		maxConcurrent: DefaultMaxConcurrent,
		maxRetries:    DefaultMaxRetries,
		newBackOff:    defaultBackOff,
		breakerCfg:    DefaultBreakerConfig,
		now:           time.Now,
		usage:         make(map[Provider]*usage),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, p := range Providers {
		if c, ok := clients[p]; ok && c != nil {
			g.clients[p] = c
			g.available = append(g.available, p)
			g.logger.Info(fmt.Sprintf("%s provider initialized", p))
		}
	}
	if len(g.available) == 0 {
		return nil, ErrNoProviders
	}

	limits := make(map[Provider]int, len(g.configs))
	for _, p := range Providers {
		limits[p] = g.configs[p].RequestsPerMinute
		g.breakers[p] = newBreaker(g.breakerCfg)
		g.usage[p] = new(usage)
	}
	g.limiter = NewRateLimiter(limits)
	g.limiter.now = func() time.Time { return g.now() }

	if g.maxConcurrent <= 0 {
		g.maxConcurrent = DefaultMaxConcurrent
	}
	if g.maxRetries < 0 {
		g.maxRetries = 0
	}
	g.sem = semaphore.NewWeighted(int64(g.maxConcurrent))
	return g, nil
}

// Available lists the configured providers in canonical order.
func (g *Gateway) Available() []Provider {
	return append([]Provider(nil), g.available...)
}

func (g *Gateway) HasProvider(p Provider) bool {
	_, ok := g.clients[p]
	return ok
}

func (g *Gateway) Config(p Provider) ProviderConfig { return g.configs[p] }

// SelectProvider returns the first available provider in the preference order of rt.
func (g *Gateway) SelectProvider(rt RequestType) Provider {
	for _, p := range PreferenceOrder(rt) {
		if g.HasProvider(p) {
			return p
		}
	}
	return g.available[0]
}

// attemptOrder is the selected provider followed by the other available ones in canonical order.
func (g *Gateway) attemptOrder(rt RequestType) []Provider {
	selected := g.SelectProvider(rt)
	order := make([]Provider, 0, len(g.available))
	order = append(order, selected)
	for _, p := range g.available {
		if p != selected {
			order = append(order, p)
		}
	}
	return order
}

func (g *Gateway) cachingEnabled() bool {
	return g.cache != nil && g.cache.Enabled()
}

// Generate answers question, from the cache when possible, otherwise from the providers
// in fallback order. Concurrent identical questions share one upstream call.
func (g *Gateway) Generate(ctx context.Context, question string, c Context, rt RequestType, useCache bool) (Response, error) {
	q := SanitizeQuestion(question)
	if err := ValidateQuestion(q); err != nil {
		return Response{}, err
	}
	useCache = useCache && g.cachingEnabled()
	key := c.CacheKey(q)

	if useCache {
		if resp, ok := g.cached(ctx, key); ok {
			return resp, nil
		}
	}

	flight, err := flightKey(q, c, rt, key, useCache)
	if err != nil {
		return Response{}, err
	}
	ch := g.flights.DoChan(flight, func() (interface{}, error) {
		return g.generate(context.WithoutCancel(ctx), q, c, rt, key, useCache)
	})
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		return res.Val.(Response), nil
	}
}

// flightKey groups identical concurrent requests. Cached requests share the cache key;
// uncached ones may carry context the cache key ignores, so they are keyed on the rendered prompts.
func flightKey(q string, c Context, rt RequestType, key string, useCache bool) (string, error) {
	if useCache {
		return fmt.Sprintf("cache:%s:%s", key, rt), nil
	}
	params := c.promptParams()
	system, err := prompt.System(params)
	if err != nil {
		return "", err
	}
	user, err := prompt.User(q, params)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(system + "\x00" + user))
	return fmt.Sprintf("prompt:%s:%s", hex.EncodeToString(sum[:]), rt), nil
}

func (g *Gateway) cached(ctx context.Context, key string) (Response, bool) {
	var resp Response
	data, ok := g.cache.Get(ctx, key)
	if ok {
		if err := json.Unmarshal(data, &resp); err != nil {
			g.logger.Error(fmt.Sprintf("decoding cached response: %v", err), err)
			ok = false
		}
	}
	g.recorder.CacheLookup(ok)
	if !ok {
		return Response{}, false
	}
	resp.Cached = true
	return resp, true
}

func (g *Gateway) generate(ctx context.Context, q string, c Context, rt RequestType, key string, useCache bool) (Response, error) {
	order := g.attemptOrder(rt)
	failed := make([]*ProviderError, 0, len(order))

	for i, p := range order {
		if i > 0 {
			g.recorder.Fallback(order[i-1], p)
		}
		resp, err := g.attempt(ctx, p, q, c)
		if err == nil {
			if useCache {
				g.store(ctx, key, c, resp)
			}
			return resp, nil
		}
		g.logger.Warn(fmt.Sprintf("Provider %s failed: %v", p, err))
		failed = append(failed, &ProviderError{Provider: p, Err: err})
	}
	return Response{}, &AllFailedError{Errors: failed}
}

func (g *Gateway) store(ctx context.Context, key string, c Context, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		g.logger.Error(fmt.Sprintf("encoding response: %v", err), err)
		return
	}
	meta := cache.Meta{Type: c.contentType(), Provider: string(resp.Provider), Model: resp.Model}
	g.cache.Set(ctx, key, data, meta, resp.TokensUsed, resp.ResponseTimeMS)
}

// attempt calls provider p, retrying transient errors.
func (g *Gateway) attempt(ctx context.Context, p Provider, q string, c Context) (Response, error) {
	b := g.breakers[p]
	if !b.allow(g.now()) {
		g.recorder.ProviderRequest(p, OutcomeCircuitOpen, 0)
		return Response{}, ErrCircuitOpen
	}

	params := c.promptParams()
	system, err := prompt.System(params)
	if err != nil {
		b.release()
		return Response{}, err
	}
	user, err := prompt.User(q, params)
	if err != nil {
		b.release()
		return Response{}, err
	}

	if err = g.sem.Acquire(ctx, 1); err != nil {
		b.release()
		return Response{}, errors.Wrap(err, "waiting for a request slot")
	}
	defer g.sem.Release(1)

	cfg := g.configs[p]
	client := g.clients[p]
	var (
		calls   int
		callErr error
	)
	op := func() (Completion, error) {
		if err := g.limiter.Reserve(p); err != nil {
			return Completion{}, backoff.Permanent(err)
		}
		calls++
		callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		comp, err := client.Complete(callCtx, cfg, system, user)
		if err != nil {
			callErr = err
			if !Retryable(err) {
				return Completion{}, backoff.Permanent(err)
			}
		}
		return comp, err
	}
	notify := func(err error, d time.Duration) {
		g.logger.Debug(fmt.Sprintf("retrying %s in %s: %v", p, d, err))
	}

	start := g.now()
	bo := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), uint64(g.maxRetries)), ctx)
	comp, err := backoff.RetryNotifyWithData(op, bo, notify)
	elapsed := g.now().Sub(start)

	if err != nil {
		if calls == 0 {
			// rejected before reaching the provider
			b.release()
			g.recorder.ProviderRequest(p, OutcomeRateLimited, 0)
			return Response{}, err
		}
		g.recorder.ProviderRequest(p, OutcomeError, elapsed)
		g.addUsage(p, false, 0)
		if b.failure(g.now(), callErr) {
			g.circuitOpened(p)
		}
		return Response{}, err
	}

	b.success()
	g.recorder.ProviderRequest(p, OutcomeSuccess, elapsed)
	g.addUsage(p, true, comp.TokensUsed)
	return Response{
		Content:        comp.Content,
		Provider:       p,
		Model:          cfg.Model,
		TokensUsed:     comp.TokensUsed,
		ResponseTimeMS: elapsed.Milliseconds(),
		Timestamp:      g.now().UTC(),
		Metadata:       comp.Metadata,
	}, nil
}

func (g *Gateway) addUsage(p Provider, ok bool, tokens int) {
	g.usageMu.Lock()
	defer g.usageMu.Unlock()
	u := g.usage[p]
	if ok {
		u.successes++
		u.tokens += int64(tokens)
	} else {
		u.failures++
	}
}

func (g *Gateway) circuitOpened(p Provider) {
	snap := g.breakers[p].snapshot()
	var lastErr string
	if snap.LastErr != nil {
		lastErr = snap.LastErr.Error()
	}
	g.logger.Error(fmt.Sprintf("circuit opened for provider %s after %d failures: %s", p, snap.Failures, lastErr))
	g.recorder.CircuitOpened(p)
	if g.alerter != nil {
		g.alerter.ProviderDown(OutageInfo{
			Provider:        p,
			Failures:        snap.Failures,
			OpenedAt:        snap.OpenedAt,
			LastError:       lastErr,
			RecoveryTimeout: g.breakers[p].cfg.RecoveryTimeout,
		})
	}
}

// ClearCache empties the response cache and reports whether it succeeded.
func (g *Gateway) ClearCache(ctx context.Context) bool {
	if g.cache == nil {
		return true
	}
	if err := g.cache.Clear(ctx); err != nil {
		g.logger.Error(fmt.Sprintf("Failed to clear cache: %v", err), err)
		return false
	}
	return true
}
