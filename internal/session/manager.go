// Package session owns the state of one interactive chat session: the current
// conversation, its turns, and whether a send is in flight. It mediates between
// the completion relay and the conversation store so that in-memory state stays
// consistent when either of them fails.
package session

import (
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/relay"
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	ConnectivityFallback = "I'm having trouble connecting. Please check your connection and try again."
	GenericFallback      = "I'm having trouble responding right now. Please try again in a moment."
)

var (
	ErrBlankTurn = errors.New("message is blank")
	ErrBusy      = errors.New("a reply is still in progress")
	// ErrSuperseded is returned by SwitchConversation when a later switch,
	// NewConversation or Logout made its result obsolete.
	ErrSuperseded = errors.New("switch superseded by a later request")
)

// Completer produces the assistant reply for a turn history.
type Completer interface {
	Complete(ctx context.Context, turns []models.Turn, p relay.Personalization) (relay.Completion, error)
}

// ConversationStore persists conversations for the signed-in user.
// Implementations return empty results and nil errors when nobody is signed in.
type ConversationStore interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, firstMessage string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	ListMessages(ctx context.Context, id uuid.UUID) ([]models.Message, error)
	AppendMessage(ctx context.Context, id uuid.UUID, role models.Role, content string) (*models.Message, error)
	GetProfile(ctx context.Context) (*models.Profile, error)
}

// Authenticator reports and ends the external auth session.
type Authenticator interface {
	Authenticated() bool
	Logout(ctx context.Context) error
}

type State int

const (
	Idle State = iota
	Sending
)

func (s State) String() string {
	if s == Sending {
		return "sending"
	}
	return "idle"
}

// Snapshot is a copy of the session state, safe to read without locking.
type Snapshot struct {
	State          State
	ConversationID uuid.UUID // uuid.Nil when no conversation is current
	Turns          []models.Turn
	Profile        *models.Profile
	Conversations  []models.Conversation
	Switching      bool
}

// Manager is the session state machine. All methods are safe for concurrent use.
type Manager struct {
	relay Completer
	store ConversationStore
	auth  Authenticator

	mu            sync.Mutex
	state         State
	currentID     uuid.UUID
	turns         []models.Turn
	profile       *models.Profile
	conversations []models.Conversation

	switchSeq uint64 // id of the latest requested switch
	switching bool
	deleting  bool // the current conversation is being deleted
	epoch     uint64 // bumped by Logout; late results from an older epoch are dropped
}

func NewManager(c Completer, s ConversationStore, a Authenticator) *Manager {
	return &Manager{relay: c, store: s, auth: a}
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:          m.state,
		ConversationID: m.currentID,
		Turns:          append([]models.Turn(nil), m.turns...),
		Conversations:  append([]models.Conversation(nil), m.conversations...),
		Switching:      m.switching,
	}
	if m.profile != nil {
		p := *m.profile
		snap.Profile = &p
	}
	return snap
}

// Start loads the profile and the conversation list for a signed-in user.
// Either load failing leaves the other in place.
func (m *Manager) Start(ctx context.Context) error {
	if !m.auth.Authenticated() {
		return nil
	}
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	var (
		profile    *models.Profile
		profileErr error
		convs      []models.Conversation
		g          errgroup.Group
	)
	g.Go(func() error {
		profile, profileErr = m.store.GetProfile(ctx)
		if profileErr != nil {
			log.Printf("WARN [Session] Profile load failed: %v", profileErr)
		}
		return nil
	})
	g.Go(func() error {
		list, err := m.store.ListConversations(ctx)
		if err != nil {
			return err
		}
		convs = list
		return nil
	})
	err := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch {
		return nil
	}
	if profileErr == nil {
		m.profile = profile
	}
	if err != nil {
		log.Printf("WARN [Session] Conversation list load failed: %v", err)
		return err
	}
	m.conversations = convs
	return nil
}

// RefreshConversations reloads the conversation list.
func (m *Manager) RefreshConversations(ctx context.Context) error {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	convs, err := m.store.ListConversations(ctx)
	if err != nil {
		log.Printf("WARN [Session] Conversation list refresh failed: %v", err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch == m.epoch {
		m.conversations = convs
	}
	return nil
}

// NewConversation clears the current conversation. It is a no-op returning
// ErrBusy while a send is in flight.
func (m *Manager) NewConversation() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Sending {
		return ErrBusy
	}
	m.resetConversationLocked()
	return nil
}

func (m *Manager) resetConversationLocked() {
	m.turns = nil
	m.currentID = uuid.Nil
	m.switchSeq++
	m.switching = false
}

// SwitchConversation replaces the turns with the stored messages of id.
// When switches overlap, the latest request wins and earlier loads are dropped.
func (m *Manager) SwitchConversation(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	if m.state == Sending || m.deleting {
		m.mu.Unlock()
		return ErrBusy
	}
	m.switchSeq++
	seq, epoch := m.switchSeq, m.epoch
	m.switching = true
	m.mu.Unlock()

	msgs, err := m.store.ListMessages(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.switchSeq || epoch != m.epoch {
		return ErrSuperseded
	}
	m.switching = false
	if err != nil {
		log.Printf("WARN [Session] Loading conversation %s failed: %v", id, err)
		return err
	}

	turns := make([]models.Turn, 0, len(msgs))
	for _, msg := range msgs {
		turns = append(turns, msg.Turn())
	}
	m.turns = turns
	m.currentID = id
	return nil
}

// DeleteConversation deletes id from the store. Deleting the current
// conversation also starts a new one, and is rejected while a send is in flight.
// Sends and switches are rejected until the delete of the current one returns.
func (m *Manager) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	current := id != uuid.Nil && id == m.currentID
	if current && (m.state == Sending || m.deleting) {
		m.mu.Unlock()
		return ErrBusy
	}
	if current {
		m.deleting = true
		defer func() {
			m.mu.Lock()
			m.deleting = false
			m.mu.Unlock()
		}()
	}
	m.mu.Unlock()

	if err := m.store.DeleteConversation(ctx, id); err != nil {
		log.Printf("WARN [Session] Deleting conversation %s failed: %v", id, err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.conversations[:0]
	for _, c := range m.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	m.conversations = kept
	if id == m.currentID {
		m.resetConversationLocked()
	}
	return nil
}

// Logout clears all session state and ends the auth session. A reply that
// lands after Logout is discarded.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.epoch++
	m.resetConversationLocked()
	m.profile = nil
	m.conversations = nil
	m.mu.Unlock()

	return m.auth.Logout(ctx)
}

// SendTurn appends text as a user turn, relays the full history and appends
// the reply. Relay failures become a fallback assistant turn that is never
// persisted; persistence failures are logged and never block the turn.
// Only ErrBlankTurn and ErrBusy are returned, and both leave state unchanged.
func (m *Manager) SendTurn(ctx context.Context, text string) (models.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Turn{}, ErrBlankTurn
	}

	m.mu.Lock()
	if m.state == Sending || m.switching || m.deleting {
		m.mu.Unlock()
		return models.Turn{}, ErrBusy
	}
	m.state = Sending
	m.turns = append(m.turns, models.Turn{Role: models.RoleUser, Content: text})
	history := append([]models.Turn(nil), m.turns...)
	convID, epoch := m.currentID, m.epoch
	var name string
	if m.profile != nil {
		name = m.profile.Name
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.state = Idle
		m.mu.Unlock()
	}()

	authed := m.auth.Authenticated()
	created := false
	if authed && convID == uuid.Nil {
		conv, err := m.store.CreateConversation(ctx, text)
		switch {
		case err != nil:
			log.Printf("WARN [Session] Creating conversation failed, continuing unsaved: %v", err)
		case conv != nil:
			convID, created = conv.ID, true
			m.mu.Lock()
			if epoch == m.epoch {
				m.currentID = conv.ID
				m.conversations = append([]models.Conversation{*conv}, m.conversations...)
			}
			m.mu.Unlock()
		}
	}

	var (
		completion relay.Completion
		relayErr   error
		g          errgroup.Group
	)
	if authed && convID != uuid.Nil && !created {
		g.Go(func() error {
			_, err := m.store.AppendMessage(ctx, convID, models.RoleUser, text)
			return err
		})
	}
	g.Go(func() error {
		completion, relayErr = m.relay.Complete(ctx, history, relay.Personalization{Name: name})
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Printf("WARN [Session] Saving user message to %s failed: %v", convID, err)
	}

	reply := models.Turn{Role: models.RoleAssistant, Content: completion.Text}
	if relayErr != nil {
		reply.Content = GenericFallback
		if errors.Is(relayErr, relay.ErrTransport) {
			reply.Content = ConnectivityFallback
		}
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		log.Printf("[Session] Discarding reply that arrived after logout")
		return reply, nil
	}
	m.turns = append(m.turns, reply)
	m.mu.Unlock()

	if relayErr == nil && authed && convID != uuid.Nil {
		msg, err := m.store.AppendMessage(ctx, convID, models.RoleAssistant, reply.Content)
		if err != nil {
			log.Printf("WARN [Session] Saving assistant message to %s failed: %v", convID, err)
		} else if msg != nil {
			m.markUpdated(convID, msg)
		}
	}
	return reply, nil
}

// markUpdated moves the conversation to the top of the cached list.
func (m *Manager) markUpdated(id uuid.UUID, msg *models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.conversations {
		if c.ID != id {
			continue
		}
		if msg.CreatedAt.After(c.UpdatedAt) {
			c.UpdatedAt = msg.CreatedAt
		}
		copy(m.conversations[1:i+1], m.conversations[:i])
		m.conversations[0] = c
		return
	}
}
