package store

import (
	"askpaul-backend/internal/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a specific record is not found or is not
	// owned by the requesting user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("record already exists")
)

// CreateConversationParams contains parameters for creating a conversation
// together with its first user message.
type CreateConversationParams struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Title        string
	FirstMessage string
	Now          time.Time
}

// InsertMessageParams contains parameters for appending a message.
type InsertMessageParams struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	UserID         uuid.UUID // owner check
	Role           models.Role
	Content        string
	CreatedAt      time.Time
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	// User operations
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUserWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error
	ConfirmUserEmail(ctx context.Context, token string, at time.Time) (*models.User, error)

	// Profile operations
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)

	// Session token operations
	RevokeToken(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)

	// Conversation operations
	ListConversations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, arg CreateConversationParams) (*models.Conversation, *models.Message, error)
	DeleteConversation(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	TouchConversation(ctx context.Context, id uuid.UUID, userID uuid.UUID, at time.Time) error

	// Message operations
	ListMessages(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID) ([]models.Message, error)
	InsertMessage(ctx context.Context, arg InsertMessageParams) (*models.Message, error)
}
