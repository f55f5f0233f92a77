package services

import (
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// ConversationPageSize bounds ListConversations to the most recent N.
	ConversationPageSize = 50
	// TitleMaxLength is the number of characters kept from the first message.
	TitleMaxLength = 50
	titleEllipsis  = "..."
)

var (
	ErrEmptyMessage = errors.New("message content cannot be empty")
	ErrInvalidRole  = errors.New("role must be user or assistant")
)

// DeriveTitle builds a conversation title from the first user message.
func DeriveTitle(seed string) string {
	seed = strings.TrimSpace(seed)
	if utf8.RuneCountInString(seed) <= TitleMaxLength {
		return seed
	}
	return string([]rune(seed)[:TitleMaxLength]) + titleEllipsis
}

// ConversationService handles conversation-related business logic.
// Every operation is scoped to ownerID; uuid.Nil yields an empty result.
type ConversationService struct {
	store store.Store
	now   func() time.Time
}

// NewConversationService creates a new ConversationService.
func NewConversationService(s store.Store) *ConversationService {
	return &ConversationService{store: s, now: time.Now}
}

// ListConversations returns the owner's most recently updated conversations.
func (s *ConversationService) ListConversations(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	if ownerID == uuid.Nil {
		return []models.Conversation{}, nil
	}
	items, err := s.store.ListConversations(ctx, ownerID, ConversationPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations from store: %w", err)
	}
	return items, nil
}

// CreateConversation creates a conversation titled from firstMessage and
// stores firstMessage as its first user message.
func (s *ConversationService) CreateConversation(ctx context.Context, ownerID uuid.UUID, firstMessage string) (*models.Conversation, error) {
	if ownerID == uuid.Nil {
		return nil, nil
	}
	if strings.TrimSpace(firstMessage) == "" {
		return nil, ErrEmptyMessage
	}

	params := store.CreateConversationParams{
		ID:           uuid.New(),
		UserID:       ownerID,
		Title:        DeriveTitle(firstMessage),
		FirstMessage: firstMessage,
		Now:          s.now().UTC(),
	}
	conv, _, err := s.store.CreateConversation(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation in store: %w", err)
	}
	log.Printf("[ConversationService] Created conversation %s for user %s", conv.ID, ownerID)
	return conv, nil
}

// DeleteConversation removes the conversation and its messages. Idempotent.
func (s *ConversationService) DeleteConversation(ctx context.Context, ownerID, id uuid.UUID) error {
	if ownerID == uuid.Nil {
		return nil
	}
	if err := s.store.DeleteConversation(ctx, id, ownerID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// ListMessages returns the conversation's messages oldest first.
func (s *ConversationService) ListMessages(ctx context.Context, ownerID, conversationID uuid.UUID) ([]models.Message, error) {
	if ownerID == uuid.Nil {
		return []models.Message{}, nil
	}
	msgs, err := s.store.ListMessages(ctx, conversationID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// AppendMessage inserts one message then touches the conversation's updated_at.
// A failed touch is logged only: the message is already durable and
// updated_at is advisory for list ordering.
func (s *ConversationService) AppendMessage(ctx context.Context, ownerID, conversationID uuid.UUID, role models.Role, content string) (*models.Message, error) {
	if ownerID == uuid.Nil {
		return nil, nil
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	now := s.now().UTC()
	msg, err := s.store.InsertMessage(ctx, store.InsertMessageParams{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         ownerID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add %s message to conversation: %w", role, err)
	}

	if err := s.store.TouchConversation(ctx, conversationID, ownerID, msg.CreatedAt); err != nil {
		log.Printf("WARN [ConversationService] Touch of conversation %s failed after insert of %s: %v", conversationID, msg.ID, err)
	}
	return msg, nil
}
