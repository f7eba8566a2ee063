package cockroach

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/pkg/constants"
	"talkbridge-backend/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates missing tables and indexes
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	// No arguments, so pgx sends this through the simple protocol as one multi-statement query
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

// withTx runs fn in a transaction, committing only when fn succeeds.
// fn may run more than once, so it must not keep state between attempts.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	return retryOnContention(ctx, constants.TxRetryAttempts, constants.TxRetryBackoff, func() error {
		return runTx(ctx, pool, fn)
	})
}

// retryOnContention restarts attempt after serialization failures, backing off linearly
func retryOnContention(ctx context.Context, attempts int, backoff time.Duration, attempt func() error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		err = attempt()
		if !isSerializationFailure(err) {
			return err
		}
		logger.FromContext(ctx).Debug("Transaction restarted after serialization failure", zap.Int("attempt", i))

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * backoff):
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrContention, err)
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
