package postgres

import (
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetUserByEmail retrieves a user by their email address.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, hashed_password, email_confirmed_at, confirmation_token, created_at, updated_at
		FROM users
		WHERE email = $1`

	user := &models.User{}
	err := s.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.EmailConfirmedAt,
		&user.ConfirmationToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetUserByEmail: Failed to query/scan user for email %s: %v", email, err)
		return nil, fmt.Errorf("database error fetching user by email: %w", err)
	}
	return user, nil
}

// CreateUserWithProfile inserts the user and its profile in one transaction.
func (s *PostgresStore) CreateUserWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error {
	log.Printf("[PostgresStore] CreateUserWithProfile called for: %s (UserID: %s)", user.Email, user.ID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, hashed_password, confirmation_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		user.ID, user.Email, user.HashedPassword, user.ConfirmationToken, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		log.Printf("ERROR [PostgresStore] CreateUserWithProfile: Failed to insert user %s: %v", user.Email, err)
		return fmt.Errorf("database error creating user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)`,
		profile.ID, profile.Name, profile.CreatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateUserWithProfile: Failed to insert profile for %s: %v", user.ID, err)
		return fmt.Errorf("database error creating profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("database error committing user: %w", err)
	}
	log.Printf("[PostgresStore] CreateUserWithProfile: Successfully inserted user ID %s", user.ID)
	return nil
}

const confirmUserEmail = `-- name: ConfirmUserEmail :one
UPDATE users
SET email_confirmed_at = $2, confirmation_token = NULL, updated_at = $2
WHERE confirmation_token = $1
RETURNING id, email, hashed_password, email_confirmed_at, confirmation_token, created_at, updated_at;
`

// ConfirmUserEmail consumes a confirmation token.
func (s *PostgresStore) ConfirmUserEmail(ctx context.Context, token string, at time.Time) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx, confirmUserEmail, token, at).Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.EmailConfirmedAt,
		&user.ConfirmationToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error confirming email: %w", err)
	}
	return user, nil
}

const getProfile = `-- name: GetProfile :one
SELECT id, name, created_at, updated_at
FROM profiles
WHERE id = $1;
`

func (s *PostgresStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p := &models.Profile{}
	err := s.db.QueryRow(ctx, getProfile, userID).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning profile: %w", err)
	}
	return p, nil
}

const revokeToken = `-- name: RevokeToken :exec
INSERT INTO revoked_tokens (jti, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (jti) DO NOTHING;
`

func (s *PostgresStore) RevokeToken(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	if _, err := s.db.Exec(ctx, revokeToken, jti, userID, expiresAt); err != nil {
		return fmt.Errorf("error revoking token: %w", err)
	}
	return nil
}

const isTokenRevoked = `-- name: IsTokenRevoked :one
SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1);
`

func (s *PostgresStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	if err := s.db.QueryRow(ctx, isTokenRevoked, jti).Scan(&revoked); err != nil {
		return false, fmt.Errorf("error checking revoked token: %w", err)
	}
	return revoked, nil
}
