package cockroach

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"talkbridge-backend/internal/domain"
)

func restartError() error {
	return fmt.Errorf("failed to update call: %w", &pgconn.PgError{Code: serializationFailure, Message: "restart transaction"})
}

func TestRetryOnContention_SucceedsAfterRestart(t *testing.T) {
	calls := 0
	err := retryOnContention(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return restartError()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOnContention_GivesUp(t *testing.T) {
	calls := 0
	err := retryOnContention(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return restartError()
	})

	assert.ErrorIs(t, err, domain.ErrContention)
	assert.Equal(t, 3, calls)
}

func TestRetryOnContention_OtherErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", domain.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: uniqueViolation}},
		{"plain", errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryOnContention(context.Background(), 3, time.Millisecond, func() error {
				calls++
				return tt.err
			})
			assert.Equal(t, tt.err, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestRetryOnContention_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryOnContention(ctx, 3, time.Hour, func() error {
		calls++
		cancel()
		return restartError()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
