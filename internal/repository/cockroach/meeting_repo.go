package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkbridge-backend/internal/domain"
)

// MeetingRepository persists the meeting aggregate with its membership sets
type MeetingRepository struct {
	pool *pgxpool.Pool
}

// NewMeetingRepository creates a new MeetingRepository
func NewMeetingRepository(pool *pgxpool.Pool) *MeetingRepository {
	return &MeetingRepository{pool: pool}
}

// Create inserts a new meeting. A taken code yields domain.ErrDuplicate.
func (r *MeetingRepository) Create(ctx context.Context, m *domain.Meeting) error {
	query := `
		INSERT INTO meetings (meeting_id, meeting_code, created_by, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, m.MeetingID, m.MeetingCode, m.CreatedBy, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

// Exists reports whether a meeting with code exists
func (r *MeetingRepository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM meetings WHERE meeting_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check meeting: %w", err)
	}
	return exists, nil
}

// GetByCode loads the meeting with its membership sets, without locking
func (r *MeetingRepository) GetByCode(ctx context.Context, code string) (*domain.Meeting, error) {
	var m *domain.Meeting
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		m, err = loadMeeting(ctx, tx, code, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Update locks the meeting, applies fn to the aggregate and writes back the membership changes
func (r *MeetingRepository) Update(ctx context.Context, code string, fn func(m *domain.Meeting) error) (*domain.Meeting, error) {
	var m *domain.Meeting

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		m, err = loadMeeting(ctx, tx, code, true)
		if err != nil {
			return err
		}

		if err := fn(m); err != nil {
			return err
		}

		return saveChanges(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	m.ClearChanges()
	return m, nil
}

func loadMeeting(ctx context.Context, tx pgx.Tx, code string, forUpdate bool) (*domain.Meeting, error) {
	query := `SELECT meeting_id, meeting_code, created_by, created_at FROM meetings WHERE meeting_code = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var head domain.Meeting
	err := tx.QueryRow(ctx, query, code).Scan(&head.MeetingID, &head.MeetingCode, &head.CreatedBy, &head.CreatedAt)
	if err != nil {
		return nil, notFound(err, "meeting")
	}

	rows, err := tx.Query(ctx, `
		SELECT participant_id, meeting_id, user_id, joined_at, left_at, muted
		FROM meeting_participants
		WHERE meeting_id = $1
	`, head.MeetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	participants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.MeetingParticipant, error) {
		p := &domain.MeetingParticipant{}
		err := row.Scan(&p.ParticipantID, &p.MeetingID, &p.UserID, &p.JoinedAt, &p.LeftAt, &p.Muted)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan participants: %w", err)
	}

	allowed, err := loadUserIDs(ctx, tx, `SELECT user_id FROM meeting_allowed_users WHERE meeting_id = $1`, head.MeetingID)
	if err != nil {
		return nil, err
	}
	waiting, err := loadUserIDs(ctx, tx, `SELECT user_id FROM meeting_waiting_users WHERE meeting_id = $1`, head.MeetingID)
	if err != nil {
		return nil, err
	}

	return domain.RestoreMeeting(head, participants, allowed, waiting), nil
}

func loadUserIDs(ctx context.Context, tx pgx.Tx, query string, meetingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting members: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan meeting members: %w", err)
	}
	return ids, nil
}

func saveChanges(ctx context.Context, tx pgx.Tx, m *domain.Meeting) error {
	changes := m.Changes()
	if changes.Empty() {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range changes.Left {
		batch.Queue(`DELETE FROM meeting_participants WHERE participant_id = $1`, p.ParticipantID)
	}
	for _, p := range changes.Joined {
		batch.Queue(`
			INSERT INTO meeting_participants (participant_id, meeting_id, user_id, joined_at, left_at, muted)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ParticipantID, p.MeetingID, p.UserID, p.JoinedAt, p.LeftAt, p.Muted)
	}
	for _, id := range changes.WaitingRemoved {
		batch.Queue(`DELETE FROM meeting_waiting_users WHERE meeting_id = $1 AND user_id = $2`, m.MeetingID, id)
	}
	for _, id := range changes.WaitingAdded {
		batch.Queue(`
			INSERT INTO meeting_waiting_users (meeting_id, user_id) VALUES ($1, $2)
			ON CONFLICT (meeting_id, user_id) DO NOTHING
		`, m.MeetingID, id)
	}
	for _, id := range changes.AllowedAdded {
		batch.Queue(`
			INSERT INTO meeting_allowed_users (meeting_id, user_id) VALUES ($1, $2)
			ON CONFLICT (meeting_id, user_id) DO NOTHING
		`, m.MeetingID, id)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save meeting membership: %w", err)
	}
	return nil
}
