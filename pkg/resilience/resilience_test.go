package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_RetriesUntilSuccess(t *testing.T) {
	b := NewBreaker("test-retry", Options{MaxAttempts: 3, Backoff: time.Millisecond, FailureThreshold: 5})

	calls := 0
	err := b.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, CircuitBreakerClosed, b.State())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test-open", Options{MaxAttempts: 1, FailureThreshold: 2, Cooldown: time.Hour})
	failing := func(ctx context.Context) error { return errors.New("down") }

	assert.Error(t, b.Execute(context.Background(), "op", failing))
	assert.Equal(t, CircuitBreakerClosed, b.State())
	assert.Error(t, b.Execute(context.Background(), "op", failing))
	assert.Equal(t, CircuitBreakerOpen, b.State())

	called := false
	err := b.Execute(context.Background(), "op", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker("test-half-open", Options{MaxAttempts: 1, FailureThreshold: 1, Cooldown: time.Minute})
	now := time.Now()
	b.now = func() time.Time { return now }

	assert.Error(t, b.Execute(context.Background(), "op", func(ctx context.Context) error { return errors.New("down") }))
	assert.Equal(t, CircuitBreakerOpen, b.State())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, CircuitBreakerHalfOpen, b.State())

	assert.NoError(t, b.Execute(context.Background(), "op", func(ctx context.Context) error { return nil }))
	assert.Equal(t, CircuitBreakerClosed, b.State())
}
