package cache

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when a remote backend cannot be reached.
var ErrUnavailable = errors.New("cache unavailable")

// RetryableError marks a backend failure as transient.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so [Backoff.Do] tries again. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was wrapped with [Retryable].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff retries an operation with a doubling delay between attempts.
type Backoff struct {
	Attempts int
	Delay    time.Duration
}

// DefaultBackoff is used by the remote cache backends.
var DefaultBackoff = Backoff{Attempts: 3, Delay: 100 * time.Millisecond}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	delay := b.Delay
	var err error
	for i := range max(b.Attempts, 1) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

// RetryWithBackoff runs fn under [DefaultBackoff].
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Do(ctx, fn)
}

// classify marks transient network failures as retryable.
func classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retryable(err)
	}
	return err
}
