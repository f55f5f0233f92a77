package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// --- Relay DTOs ---

// ChatRequest defines the body for POST /chat.
// Messages is kept raw so the handler can tell "missing" and "not an array" apart.
type ChatRequest struct {
	Messages json.RawMessage `json:"messages"`
	UserName *string         `json:"userName,omitempty"`
}

// ChatResponse is the successful reply of POST /chat.
type ChatResponse struct {
	Message string `json:"message"`
}

// --- Auth DTOs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupResponse tells the client that confirmation is pending.
type SignupResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message"`
}

// UserResponse defines the user information returned by the API.
// Avoid returning sensitive info like HashedPassword.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// ProfileResponse is the public form of a Profile.
type ProfileResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
	User        UserResponse     `json:"user"`
	Profile     *ProfileResponse `json:"profile,omitempty"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries a human readable status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// --- Conversation DTOs ---

// CreateConversationRequest defines the payload for creating a conversation.
// FirstMessage seeds the title and is stored as the first user message.
type CreateConversationRequest struct {
	FirstMessage string `json:"first_message"`
}

// ConversationResponse defines the representation of a conversation in API responses.
type ConversationResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListConversationsResponse defines the response structure for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// AppendMessageRequest defines the payload for appending a message.
type AppendMessageRequest struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MessageRowResponse defines the representation of a stored message.
type MessageRowResponse struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListMessagesResponse defines the response structure for listing messages.
type ListMessagesResponse struct {
	Messages []MessageRowResponse `json:"messages"`
}

// NewConversationResponse maps a db conversation to its API form.
func NewConversationResponse(c Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewMessageRowResponse maps a db message to its API form.
func NewMessageRowResponse(m Message) MessageRowResponse {
	return MessageRowResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// Conversation converts the API form back into the domain type.
func (c ConversationResponse) Conversation() Conversation {
	return Conversation{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Message converts the API form back into the domain type.
func (m MessageRowResponse) Message() Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
