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
)

// --- Conversation Methods ---

const listConversations = `-- name: ListConversations :many
SELECT id, user_id, title, created_at, updated_at
FROM conversations
WHERE user_id = $1
ORDER BY updated_at DESC
LIMIT $2;
`

func (s *PostgresStore) ListConversations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx, listConversations, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	items := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation row: %w", err)
		}
		items = append(items, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	return items, nil
}

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (id, user_id, title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING id, user_id, title, created_at, updated_at;
`

const insertMessage = `-- name: InsertMessage :one
INSERT INTO messages (id, conversation_id, role, content, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, conversation_id, role, content, created_at;
`

// CreateConversation inserts the conversation and its first user message atomically,
// so a conversation row never exists without the message that created it.
func (s *PostgresStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, *models.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("database error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var c models.Conversation
	err = tx.QueryRow(ctx, createConversation, arg.ID, arg.UserID, arg.Title, arg.Now).Scan(
		&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateConversation: insert conversation for user %s failed: %v", arg.UserID, err)
		return nil, nil, fmt.Errorf("error creating conversation: %w", err)
	}

	var m models.Message
	err = tx.QueryRow(ctx, insertMessage, uuid.New(), c.ID, models.RoleUser, arg.FirstMessage, arg.Now).Scan(
		&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateConversation: insert first message for %s failed: %v", c.ID, err)
		return nil, nil, fmt.Errorf("error creating first message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("database error committing conversation: %w", err)
	}
	return &c, &m, nil
}

const deleteConversation = `-- name: DeleteConversation :exec
DELETE FROM conversations
WHERE id = $1 AND user_id = $2;
`

// DeleteConversation removes the conversation; messages go with it via ON DELETE CASCADE.
// Deleting a missing conversation is not an error.
func (s *PostgresStore) DeleteConversation(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteConversation, id, userID)
	if err != nil {
		return fmt.Errorf("error executing delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("[PostgresStore] DeleteConversation: %s not present for user %s, nothing to do", id, userID)
	}
	return nil
}

const touchConversation = `-- name: TouchConversation :exec
UPDATE conversations
SET updated_at = GREATEST(updated_at, $3)
WHERE id = $1 AND user_id = $2;
`

func (s *PostgresStore) TouchConversation(ctx context.Context, id uuid.UUID, userID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, touchConversation, id, userID, at)
	if err != nil {
		return fmt.Errorf("error touching conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Message Methods ---

const conversationOwned = `-- name: ConversationOwned :one
SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND user_id = $2);
`

func (s *PostgresStore) conversationOwned(ctx context.Context, id, userID uuid.UUID) error {
	var ok bool
	if err := s.db.QueryRow(ctx, conversationOwned, id, userID).Scan(&ok); err != nil {
		return fmt.Errorf("error checking conversation owner: %w", err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

const listMessages = `-- name: ListMessages :many
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC, seq ASC;
`

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID) ([]models.Message, error) {
	if err := s.conversationOwned(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, listMessages, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	items := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		items = append(items, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, arg store.InsertMessageParams) (*models.Message, error) {
	if err := s.conversationOwned(ctx, arg.ConversationID, arg.UserID); err != nil {
		return nil, err
	}

	var m models.Message
	err := s.db.QueryRow(ctx, insertMessage, arg.ID, arg.ConversationID, arg.Role, arg.Content, arg.CreatedAt).Scan(
		&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error inserting message: %w", err)
	}
	return &m, nil
}
