package cockroach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkbridge-backend/internal/domain"
)

const userColumns = `user_id, email, full_name, phone, birth_date, google_id, role, enabled, in_call,
	profile_public_id, profile_url, account_completed, created_at, updated_at`

// UserRepository handles user data operations in CockroachDB
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	var publicID, url *string
	err := row.Scan(
		&user.UserID,
		&user.Email,
		&user.FullName,
		&user.Phone,
		&user.BirthDate,
		&user.GoogleID,
		&user.Role,
		&user.Enabled,
		&user.InCall,
		&publicID,
		&url,
		&user.AccountCompleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if publicID != nil && url != nil {
		user.ProfileImage = &domain.ProfileImage{PublicID: *publicID, URL: *url}
	}
	return user, nil
}

func collectUsers(rows pgx.Rows) ([]*domain.User, error) {
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// GetByIDs retrieves the users that exist among userIDs; unknown ids are skipped
func (r *UserRepository) GetByIDs(ctx context.Context, userIDs []uuid.UUID) ([]*domain.User, error) {
	if len(userIDs) == 0 {
		return []*domain.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return collectUsers(rows)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// UpsertGoogleUser creates the user for a verified Google identity or refreshes the stored one.
// A completed account keeps the name its owner chose.
func (r *UserRepository) UpsertGoogleUser(ctx context.Context, identity *domain.ExternalIdentity) (*domain.User, error) {
	query := `
		INSERT INTO users (user_id, email, full_name, google_id, role, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, $6, $6)
		ON CONFLICT (google_id) DO UPDATE SET
			email = excluded.email,
			full_name = CASE WHEN users.account_completed THEN users.full_name ELSE excluded.full_name END,
			updated_at = excluded.updated_at
		RETURNING ` + userColumns

	now := time.Now().UTC()
	user, err := scanUser(r.pool.QueryRow(ctx, query,
		uuid.New(),
		identity.Email,
		identity.Name,
		identity.Subject,
		domain.RoleUser,
		now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// UpdateProfile saves the account-completion fields
func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET full_name = $2,
		    phone = $3,
		    birth_date = $4,
		    profile_public_id = $5,
		    profile_url = $6,
		    account_completed = $7,
		    updated_at = now()
		WHERE user_id = $1
	`

	var publicID, url *string
	if user.ProfileImage != nil {
		publicID, url = &user.ProfileImage.PublicID, &user.ProfileImage.URL
	}

	tag, err := r.pool.Exec(ctx, query,
		user.UserID,
		user.FullName,
		user.Phone,
		user.BirthDate,
		publicID,
		url,
		user.AccountCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Search matches name, phone or email case-insensitively. pattern must already be LIKE-escaped.
func (r *UserRepository) Search(ctx context.Context, excludeID uuid.UUID, pattern string, limit int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE user_id <> $1
		  AND enabled
		  AND (full_name ILIKE $2 ESCAPE '\' OR phone ILIKE $2 ESCAPE '\' OR email ILIKE $2 ESCAPE '\')
		ORDER BY full_name, email
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, excludeID, "%"+pattern+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return collectUsers(rows)
}

// Random returns up to limit enabled users other than excludeID in random order
func (r *UserRepository) Random(ctx context.Context, excludeID uuid.UUID, limit int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE user_id <> $1 AND enabled
		ORDER BY random()
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get random users: %w", err)
	}
	return collectUsers(rows)
}

// CallPartners returns distinct users userID has called or been called by, most recent first
func (r *UserRepository) CallPartners(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		JOIN (
			SELECT CASE WHEN caller_id = $1 THEN receiver_id ELSE caller_id END AS partner_id,
			       MAX(started_at) AS last_call
			FROM calls
			WHERE caller_id = $1 OR receiver_id = $1
			GROUP BY 1
		) partners ON partners.partner_id = users.user_id
		ORDER BY partners.last_call DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get call partners: %w", err)
	}
	return collectUsers(rows)
}

// lockUsers loads and row-locks users inside tx, in id order so concurrent
// transactions acquire locks in the same sequence.
func lockUsers(ctx context.Context, tx pgx.Tx, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ANY($1) ORDER BY user_id FOR UPDATE`

	rows, err := tx.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		byID[u.UserID] = u
	}
	for _, id := range userIDs {
		if byID[id] == nil {
			return nil, domain.ErrNotFound
		}
	}
	return byID, nil
}

func saveInCall(ctx context.Context, tx pgx.Tx, users ...*domain.User) error {
	for _, u := range users {
		_, err := tx.Exec(ctx, `UPDATE users SET in_call = $2, updated_at = now() WHERE user_id = $1`, u.UserID, u.InCall)
		if err != nil {
			return fmt.Errorf("failed to update presence: %w", err)
		}
	}
	return nil
}
