package llm

import (
	"sync"
	"time"
)

type BreakerState string

// Breaker states
const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the circuit
	RecoveryTimeout  time.Duration // before an open circuit lets a probe through
}

var DefaultBreakerConfig = BreakerConfig{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second}

type breaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
	lastErr  error
}

func newBreaker(cfg BreakerConfig) *breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig.RecoveryTimeout
	}
	return &breaker{cfg: cfg, state: BreakerClosed}
}

// allow reports whether a call may go through. In half-open state only one probe is let through.
func (b *breaker) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if now.Sub(b.openedAt) < b.cfg.RecoveryTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return true
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// release gives back a probe slot that was not used.
func (b *breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
	b.lastErr = nil
}

// failure records a failed call and reports whether it opened the circuit.
func (b *breaker) failure(now time.Time, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastErr = err
	b.probing = false
	if b.state == BreakerHalfOpen || (b.state == BreakerClosed && b.failures >= b.cfg.FailureThreshold) {
		b.state = BreakerOpen
		b.openedAt = now
		return true
	}
	return false
}

type breakerSnapshot struct {
	State    BreakerState
	Failures int
	OpenedAt time.Time
	LastErr  error
}

func (b *breaker) snapshot() breakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return breakerSnapshot{State: b.state, Failures: b.failures, OpenedAt: b.openedAt, LastErr: b.lastErr}
}
