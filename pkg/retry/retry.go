// Package retry runs an operation a bounded number of times with a fixed delay.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy configures Do.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error)
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Policy.
type Option func(*Policy)

// New builds a policy with the given attempt budget and delay.
func New(maxAttempts int, delay time.Duration, opts ...Option) Policy {
	p := Policy{MaxAttempts: maxAttempts, Delay: delay}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithRetryable sets the retry predicate.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) { p.Retryable = fn }
}

// WithOnRetry sets a hook invoked before every retry.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// WithSleep replaces the wait function.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) { p.Sleep = fn }
}

// Permanent wraps err so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Do calls fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned wrapped with the attempt count.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var zero T
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return zero, fmt.Errorf("retry interrupted after %d attempts: %w", attempt, err)
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, err)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
