package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryConfig_ShouldRetry(t *testing.T) {
	config := RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		name      string
		retries   int
		err       error
		wantRetry bool
	}{
		{
			name:      "first failure",
			retries:   0,
			err:       errors.New("connection refused"),
			wantRetry: true,
		},
		{
			name:      "max retries not exceeded",
			retries:   2,
			err:       errors.New("network error"),
			wantRetry: true,
		},
		{
			name:      "max retries exceeded",
			retries:   3,
			err:       errors.New("timeout"),
			wantRetry: false,
		},
		{
			name:      "permanent error",
			retries:   0,
			err:       Permanent(errors.New("malformed payload")),
			wantRetry: false,
		},
		{
			name:      "wrapped permanent error",
			retries:   0,
			err:       fmt.Errorf("handler: %w", Permanent(errors.New("bad event"))),
			wantRetry: false,
		},
		{
			name:      "cancelled",
			retries:   0,
			err:       fmt.Errorf("handler: %w", context.Canceled),
			wantRetry: false,
		},
		{
			name:      "success",
			retries:   0,
			err:       nil,
			wantRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantRetry, config.ShouldRetry(tt.retries, tt.err))
		})
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	config := RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second, // capped
	}

	assert.Equal(t, want, config.BackoffDurations())
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("bad")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "bad", err.Error())
	assert.False(t, IsPermanent(base))
}
