package llm

import (
	"sync"
	"time"
)

const (
	rateWindow       = time.Minute
	defaultRateLimit = 30
)

// RateLimiter keeps a sliding one minute window of request times per provider.
type RateLimiter struct {
	mu       sync.Mutex
	limits   map[Provider]int
	requests map[Provider][]time.Time
	now      func() time.Time
}

func NewRateLimiter(limits map[Provider]int) *RateLimiter {
	l := make(map[Provider]int, len(limits))
	for p, n := range limits {
		l[p] = n
	}
	return &RateLimiter{
		limits:   l,
		requests: make(map[Provider][]time.Time),
		now:      time.Now,
	}
}

func (rl *RateLimiter) limit(p Provider) int {
	if n, ok := rl.limits[p]; ok && n > 0 {
		return n
	}
	return defaultRateLimit
}

// prune drops the requests older than the window. rl.mu must be held.
func (rl *RateLimiter) prune(p Provider, now time.Time) []time.Time {
	reqs := rl.requests[p]
	i := 0
	for i < len(reqs) && now.Sub(reqs[i]) >= rateWindow {
		i++
	}
	if i > 0 {
		reqs = append(reqs[:0:0], reqs[i:]...)
		rl.requests[p] = reqs
	}
	return reqs
}

// Allow reports whether a request to p can be made now.
// When it cannot, it also returns the time until the oldest request leaves the window.
func (rl *RateLimiter) Allow(p Provider) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.allow(p, rl.now())
}

func (rl *RateLimiter) allow(p Provider, now time.Time) (bool, time.Duration) {
	reqs := rl.prune(p, now)
	if len(reqs) < rl.limit(p) {
		return true, 0
	}
	return false, rateWindow - now.Sub(reqs[0])
}

// Record adds a request to p's window.
func (rl *RateLimiter) Record(p Provider) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requests[p] = append(rl.requests[p], rl.now())
}

// Reserve records a request to p if the window has room, otherwise it returns a *RateLimitError.
func (rl *RateLimiter) Reserve(p Provider) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if ok, wait := rl.allow(p, now); !ok {
		return &RateLimitError{Provider: p, RetryAfter: wait}
	}
	rl.requests[p] = append(rl.requests[p], now)
	return nil
}

// Count returns the number of requests to p in the current window.
func (rl *RateLimiter) Count(p Provider) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.prune(p, rl.now()))
}
