package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the database.
type User struct {
	ID                uuid.UUID  `db:"id"`
	Email             string     `db:"email"`
	HashedPassword    string     `db:"hashed_password"`
	EmailConfirmedAt  *time.Time `db:"email_confirmed_at"` // nil until the confirmation link is used
	ConfirmationToken *string    `db:"confirmation_token"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Confirmed reports whether the user has confirmed their email address.
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Profile holds the display data for a user. ID equals the user ID.
type Profile struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Conversation is a persisted chat owned by a single user.
// Title is derived once from the first user turn and never recomputed.
type Conversation struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"` // touched on every appended message
}

// Message is the persisted form of a Turn. Messages are append-only.
type Message struct {
	ID             uuid.UUID `db:"id"`
	ConversationID uuid.UUID `db:"conversation_id"`
	Role           Role      `db:"role"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
}

// Turn converts the persisted message back into a relay turn.
func (m Message) Turn() Turn {
	return Turn{Role: m.Role, Content: m.Content}
}
