// Package retry provides a named retry policy shared by components that call out over the network
// (ledger writes and reads, event publishing). It wraps cenkalti/backoff with a per-attempt timeout.
package retry

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default policy values, used by the ledger client unless overridden in config.
const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 500 * time.Millisecond
	DefaultMultiplier     = 2.0
	DefaultMaxDelay       = 8 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
	DefaultJitter         = 0.2
)

// Policy describes a bounded exponential retry: at most MaxAttempts calls, sleeping BaseDelay
// between the first and second attempt and multiplying by Multiplier after each failure, capped at
// MaxDelay. Each attempt runs under its own context bounded by AttemptTimeout (0 disables it).
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	// Jitter is the randomization factor applied to each delay (0 disables jitter).
	Jitter float64
}

// DefaultPolicy returns the reference policy: 3 attempts, 500ms doubling to 8s, 30s per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		Multiplier:     DefaultMultiplier,
		MaxDelay:       DefaultMaxDelay,
		AttemptTimeout: DefaultAttemptTimeout,
		Jitter:         DefaultJitter,
	}
}

// normalized fills zero or invalid fields with defaults.
func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	return p
}

// BackOff returns a fresh exponential backoff configured from p. Callers get a new instance per
// retry loop because backoff state is not safe to share.
func (p Policy) BackOff() *backoff.ExponentialBackOff {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}

// Permanent wraps err so Do stops retrying and returns err unchanged.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a Permanent error, the policy's attempts are exhausted, or
// ctx is done. The last error is returned on failure. name is used only for log lines.
func Do[T any](ctx context.Context, name string, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	attempt := 0
	operation := func() (T, error) {
		attempt++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		defer cancel()
		return op(attemptCtx)
	}
	notify := func(err error, next time.Duration) {
		log.Printf("retry: %s attempt %d/%d failed: %v (next in %s)", name, attempt, p.MaxAttempts, err, next)
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.BackOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithNotify(notify),
	)
}
