package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisee/polisee/internal/service"
)

func fastRetry() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}
}

func TestWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &RetryableError{Err: errors.New("transient"), Retryable: true}
		}
		return nil
	}, fastRetry())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnTerminalError(t *testing.T) {
	attempts := 0
	terminal := &RetryableError{Err: errors.New("bad request"), Retryable: false}

	err := WithRetry(context.Background(), func() error {
		attempts++
		return terminal
	}, fastRetry())

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var retryableErr *RetryableError
	require.True(t, errors.As(err, &retryableErr))
	assert.False(t, retryableErr.Retryable)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return &RetryableError{Err: errors.New("still down"), Retryable: true}
	}, fastRetry())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := WithRetry(ctx, func() error {
		attempts++
		cancel()
		return &RetryableError{Err: errors.New("transient"), Retryable: true}
	}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1.0})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestUserErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := NewUserError("Something went wrong", inner)

	assert.ErrorIs(t, err, inner)

	var userErr *UserError
	require.True(t, errors.As(err, &userErr))
	assert.Equal(t, "Something went wrong", userErr.UserMessage)
	assert.Contains(t, err.Error(), "boom")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", ErrRateLimit, true},
		{"connection failure", ErrAPIConnection, true},
		{"deadline", context.DeadlineExceeded, true},
		{"retryable wrapper", &RetryableError{Err: errors.New("x"), Retryable: true}, true},
		{"terminal wrapper", &RetryableError{Err: errors.New("x"), Retryable: false}, false},
		{"plain error", errors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
