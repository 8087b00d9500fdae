package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidInput       = errors.New("invalid input question")
	ErrNoProviders        = errors.New("no LLM providers available, please configure API keys")
	ErrAllProvidersFailed = errors.New("all LLM providers failed")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrCircuitOpen        = errors.New("provider circuit is open")
)

// RateLimitError is returned when a provider window is full.
type RateLimitError struct {
	Provider   Provider
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded. Try again in %d seconds.", int(e.RetryAfter/time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// APIError is a non-2xx answer of a provider API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ProviderError wraps the failure of one provider.
type ProviderError struct {
	Provider Provider
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllFailedError is returned by Gateway.Generate when no provider could answer.
// errors.Is(err, ErrAllProvidersFailed) holds.
type AllFailedError struct {
	Errors []*ProviderError
}

func (e *AllFailedError) Error() string {
	if len(e.Errors) == 0 {
		return ErrAllProvidersFailed.Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		msgs = append(msgs, pe.Error())
	}
	return ErrAllProvidersFailed.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *AllFailedError) Is(target error) bool { return target == ErrAllProvidersFailed }

func (e *AllFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, pe := range e.Errors {
		errs = append(errs, pe)
	}
	return errs
}

// Retryable reports whether err is transient: a timeout, a network error, a 429 or a 5xx.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
