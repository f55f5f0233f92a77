package models

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles accepted by the relay.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one role-tagged message unit, as sent to and received from the LLM provider.
// Ordering of a []Turn is chronological, oldest first.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
