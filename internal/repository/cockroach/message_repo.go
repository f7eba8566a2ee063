package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkbridge-backend/internal/domain"
)

// MessageRepository handles call-scoped chat messages
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// CreateInCall share-locks the call so its status cannot change until the
// message built by fn is inserted.
func (r *MessageRepository) CreateInCall(ctx context.Context, callID uuid.UUID, fn func(state *domain.CallState) (*domain.Message, error)) (*domain.CallState, *domain.Message, error) {
	var (
		state *domain.CallState
		msg   *domain.Message
	)

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1 FOR SHARE`
		call, err := scanCall(tx.QueryRow(ctx, query, callID))
		if err != nil {
			return notFound(err, "call")
		}

		rows, err := tx.Query(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ANY($1)`,
			[]uuid.UUID{call.CallerID, call.ReceiverID})
		if err != nil {
			return fmt.Errorf("failed to get call participants: %w", err)
		}
		users, err := collectUsers(rows)
		if err != nil {
			return err
		}

		state = &domain.CallState{Call: call}
		for _, u := range users {
			switch u.UserID {
			case call.CallerID:
				state.Caller = u
			case call.ReceiverID:
				state.Receiver = u
			}
		}

		msg, err = fn(state)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO messages (message_id, call_id, sender_id, receiver_id, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, msg.MessageID, msg.CallID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return state, msg, nil
}

// ListByCall returns the messages of a call in the order they were sent
func (r *MessageRepository) ListByCall(ctx context.Context, callID uuid.UUID) ([]*domain.Message, error) {
	query := `
		SELECT message_id, call_id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE call_id = $1
		ORDER BY created_at ASC, message_id ASC
	`

	rows, err := r.pool.Query(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(&m.MessageID, &m.CallID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
