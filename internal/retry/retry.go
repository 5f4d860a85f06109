// Package retry provides the exponential-backoff retry loop shared by the
// LLM provider adapters. It is grounded on the teacher's runtime/a2a/retry
// and runtime/mcp/retry packages, trimmed to the single Do loop the agent
// primitive's turn() needs for ProviderRetryable errors (spec §4.E).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/AnthusAI/Tactus/tactuserr"
)

// Policy configures retry behavior for a provider adapter.
type Policy struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Zero or one means no retries.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which the delay grows after each
	// retry; 2.0 gives classic exponential backoff.
	BackoffMultiplier float64
	// Jitter adds up to this fraction of random noise to each backoff.
	Jitter float64
}

// DefaultPolicy returns a conservative default suitable for LLM provider
// calls: three attempts, starting at 500ms, capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// ExhaustedError is returned when every retry attempt has failed.
type ExhaustedError struct {
	Attempts      int
	TotalDuration time.Duration
	LastErr       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts over %v: %v", e.Attempts, e.TotalDuration, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Do runs fn, retrying while fn returns a *tactuserr.Error of kind
// ProviderRetryable, up to policy.MaxAttempts. A ProviderFatal or any other
// error returns immediately. On exhaustion it returns an ExhaustedError
// wrapping the final ProviderRetryable error.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		var te *tactuserr.Error
		if !errors.As(err, &te) || te.Kind != tactuserr.KindProviderRetryable {
			return err
		}
		if attempt >= policy.MaxAttempts {
			break
		}
		wait := backoff(policy, attempt)
		select {
		case <-ctx.Done():
			return tactuserr.Wrap(tactuserr.KindCancelled, ctx.Err(), "retry loop cancelled")
		case <-time.After(wait):
		}
	}
	return &ExhaustedError{Attempts: policy.MaxAttempts, TotalDuration: time.Since(start), LastErr: lastErr}
}

func backoff(p Policy, attempt int) time.Duration {
	d := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	}
	return time.Duration(d)
}
