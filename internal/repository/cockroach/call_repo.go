package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkbridge-backend/internal/domain"
)

const callColumns = `call_id, caller_id, receiver_id, status, mode, started_at, ended_at`

// CallRepository handles call data operations.
// Every mutation locks the call row and both participants' user rows.
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

func scanCall(row pgx.Row) (*domain.Call, error) {
	call := &domain.Call{}
	err := row.Scan(
		&call.CallID,
		&call.CallerID,
		&call.ReceiverID,
		&call.Status,
		&call.Mode,
		&call.StartedAt,
		&call.EndedAt,
	)
	return call, err
}

// Create locks both participants, lets fn validate and mutate them, then inserts call
func (r *CallRepository) Create(ctx context.Context, call *domain.Call, fn func(state *domain.CallState) error) (*domain.CallState, error) {
	var state *domain.CallState

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		users, err := lockUsers(ctx, tx, call.CallerID, call.ReceiverID)
		if err != nil {
			return err
		}

		state = &domain.CallState{Call: call, Caller: users[call.CallerID], Receiver: users[call.ReceiverID]}
		if state.ReceiverLive, err = hasLiveCall(ctx, tx, call.ReceiverID); err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}

		query := `
			INSERT INTO calls (` + callColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err = tx.Exec(ctx, query,
			call.CallID,
			call.CallerID,
			call.ReceiverID,
			call.Status,
			call.Mode,
			call.StartedAt,
			call.EndedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create call: %w", err)
		}

		return saveInCall(ctx, tx, state.Caller, state.Receiver)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// hasLiveCall reports whether a RINGING or ACCEPTED call names userID.
// Callers must hold userID's row lock: every call insert and transition takes it,
// so the answer cannot change before commit. Call rows are not locked here
// because Update takes them before the user rows.
func hasLiveCall(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	query := `
		SELECT call_id FROM calls
		WHERE (caller_id = $1 OR receiver_id = $1) AND status IN ($2, $3)
		LIMIT 1
	`
	var callID uuid.UUID
	err := tx.QueryRow(ctx, query, userID, domain.CallStatusRinging, domain.CallStatusAccepted).Scan(&callID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check live calls: %w", err)
	}
	return true, nil
}

// Update loads the call and its participants under row locks, applies fn and saves the result
func (r *CallRepository) Update(ctx context.Context, callID uuid.UUID, fn func(state *domain.CallState) error) (*domain.CallState, error) {
	var state *domain.CallState

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1 FOR UPDATE`
		call, err := scanCall(tx.QueryRow(ctx, query, callID))
		if err != nil {
			return notFound(err, "call")
		}

		users, err := lockUsers(ctx, tx, call.CallerID, call.ReceiverID)
		if err != nil {
			return err
		}

		state = &domain.CallState{Call: call, Caller: users[call.CallerID], Receiver: users[call.ReceiverID]}
		if err := fn(state); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE calls SET status = $2, ended_at = $3 WHERE call_id = $1`,
			call.CallID, call.Status, call.EndedAt)
		if err != nil {
			return fmt.Errorf("failed to update call: %w", err)
		}

		return saveInCall(ctx, tx, state.Caller, state.Receiver)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetByID retrieves a call with both participants, without locking
func (r *CallRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.CallState, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`

	call, err := scanCall(r.pool.QueryRow(ctx, query, callID))
	if err != nil {
		return nil, notFound(err, "call")
	}

	states, err := r.attachUsers(ctx, []*domain.Call{call})
	if err != nil {
		return nil, err
	}
	return states[0], nil
}

// ListByUser returns one page of calls where userID is caller or receiver, newest first, and the total count
func (r *CallRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.CallState, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM calls WHERE caller_id = $1 OR receiver_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count calls: %w", err)
	}

	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user calls: %w", err)
	}
	defer rows.Close()

	calls := make([]*domain.Call, 0, limit)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate calls: %w", err)
	}

	states, err := r.attachUsers(ctx, calls)
	if err != nil {
		return nil, 0, err
	}
	return states, total, nil
}

func (r *CallRepository) attachUsers(ctx context.Context, calls []*domain.Call) ([]*domain.CallState, error) {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0, len(calls)*2)
	for _, c := range calls {
		for _, id := range []uuid.UUID{c.CallerID, c.ReceiverID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	users, err := NewUserRepository(r.pool).GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		byID[u.UserID] = u
	}

	states := make([]*domain.CallState, 0, len(calls))
	for _, c := range calls {
		states = append(states, &domain.CallState{Call: c, Caller: byID[c.CallerID], Receiver: byID[c.ReceiverID]})
	}
	return states, nil
}
