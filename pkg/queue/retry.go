package queue

import (
	"context"
	"errors"
	"time"
)

// RetryConfig holds local retry settings for failed delivery handlers.
// These retries happen after the delivery was acknowledged, so the sender
// will not redeliver.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// permanentError marks a handler error that must not be retried
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker pool gives up on it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ShouldRetry determines if a handler failure should be retried given how
// many retries already happened
func (c RetryConfig) ShouldRetry(retries int, err error) bool {
	if err == nil || retries >= c.MaxRetries {
		return false
	}
	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Backoff calculates the wait before the given retry (1-based) using
// exponential backoff capped at MaxBackoff
func (c RetryConfig) Backoff(retry int) time.Duration {
	backoff := float64(c.InitialBackoff)

	for i := 1; i < retry; i++ {
		backoff *= c.BackoffMultiplier
	}

	duration := time.Duration(backoff)

	if duration > c.MaxBackoff {
		duration = c.MaxBackoff
	}

	return duration
}

// BackoffDurations returns the backoff durations for each retry attempt
func (c RetryConfig) BackoffDurations() []time.Duration {
	durations := make([]time.Duration, c.MaxRetries)
	for i := 0; i < c.MaxRetries; i++ {
		durations[i] = c.Backoff(i + 1)
	}
	return durations
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
