// Package board defines the contract shared by the job board provider
// adapters (greenhouse, ashby, lever) and the plumbing they share: the HTTP
// client, the provider error type and request pacing.
package board

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/aliceyli/job-board-finder/internal/model"
)

const (
	// DefaultTimeout bounds every single provider HTTP call.
	DefaultTimeout = 15 * time.Second
	userAgent      = "job-board-finder/1.0"
)

// Provider fetches and normalises one board's postings for a candidate slug.
//
// Fetch returns (nil, nil) when the provider reports that no such board
// exists; that is a soft miss and the caller moves on. Any returned error is
// a hard error: unexpected status, malformed payload, transport failure or
// provider-reported query errors.
type Provider interface {
	Name() model.Board
	Fetch(ctx context.Context, candidate string) (*model.BoardResult, error)
}

// ProviderError records a hard failure of one provider for one candidate.
type ProviderError struct {
	Provider  model.Board
	Candidate string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Provider, e.Candidate, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StatusError is returned for a non-2xx, non-404 provider response.
type StatusError struct {
	Provider model.Board
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with %d", e.Provider, e.Status)
}

// NewHTTPClient returns the resty client used by all adapters. Each request
// is cancelled after timeout, which surfaces as a hard error.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
}

// Throttle paces outgoing calls. *rate.Limiter satisfies it.
type Throttle interface {
	Wait(ctx context.Context) error
}

// NewFixedInterval allows one call immediately, then one call per interval.
func NewFixedInterval(interval time.Duration) Throttle {
	if interval <= 0 {
		return Unthrottled()
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// ThrottlePolicy builds a fresh Throttle for one fetch, so pacing never
// spans concurrent resolutions.
type ThrottlePolicy func() Throttle

// FixedInterval returns a policy handing out NewFixedInterval(interval).
func FixedInterval(interval time.Duration) ThrottlePolicy {
	return func() Throttle { return NewFixedInterval(interval) }
}

// Unthrottled never waits.
func Unthrottled() Throttle {
	return rate.NewLimiter(rate.Inf, 1)
}
