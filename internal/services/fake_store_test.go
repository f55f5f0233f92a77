package services

import (
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/store"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeStore is an in-memory store.Store for service tests.
type fakeStore struct {
	mu            sync.Mutex
	users         map[string]*models.User
	profiles      map[uuid.UUID]*models.Profile
	revoked       map[string]time.Time
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]models.Message

	touchErr  error
	insertErr error
	touches   int
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]*models.User{},
		profiles:      map[uuid.UUID]*models.Profile{},
		revoked:       map[string]time.Time{},
		conversations: map[uuid.UUID]*models.Conversation{},
		messages:      map[uuid.UUID][]models.Message{},
	}
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateUserWithProfile(_ context.Context, user *models.User, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Email]; ok {
		return store.ErrDuplicate
	}
	u := *user
	p := *profile
	f.users[user.Email] = &u
	f.profiles[profile.ID] = &p
	return nil
}

func (f *fakeStore) ConfirmUserEmail(_ context.Context, token string, at time.Time) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ConfirmationToken != nil && *u.ConfirmationToken == token {
			u.ConfirmationToken = nil
			u.EmailConfirmedAt = &at
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetProfile(_ context.Context, userID uuid.UUID) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) RevokeToken(_ context.Context, jti string, _ uuid.UUID, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = expiresAt
	return nil
}

func (f *fakeStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

func (f *fakeStore) ListConversations(_ context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []models.Conversation{}
	for _, c := range f.conversations {
		if c.UserID == userID {
			items = append(items, *c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeStore) CreateConversation(_ context.Context, arg store.CreateConversationParams) (*models.Conversation, *models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Conversation{ID: arg.ID, UserID: arg.UserID, Title: arg.Title, CreatedAt: arg.Now, UpdatedAt: arg.Now}
	m := models.Message{ID: uuid.New(), ConversationID: arg.ID, Role: models.RoleUser, Content: arg.FirstMessage, CreatedAt: arg.Now}
	f.conversations[c.ID] = c
	f.messages[c.ID] = []models.Message{m}
	cp := *c
	return &cp, &m, nil
}

func (f *fakeStore) DeleteConversation(_ context.Context, id uuid.UUID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.conversations[id]; ok && c.UserID == userID {
		delete(f.conversations, id)
		delete(f.messages, id)
	}
	return nil
}

func (f *fakeStore) TouchConversation(_ context.Context, id uuid.UUID, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	if f.touchErr != nil {
		return f.touchErr
	}
	c, ok := f.conversations[id]
	if !ok || c.UserID != userID {
		return store.ErrNotFound
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID uuid.UUID, userID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	return append([]models.Message{}, f.messages[conversationID]...), nil
}

func (f *fakeStore) InsertMessage(_ context.Context, arg store.InsertMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	c, ok := f.conversations[arg.ConversationID]
	if !ok || c.UserID != arg.UserID {
		return nil, store.ErrNotFound
	}
	m := models.Message{ID: arg.ID, ConversationID: arg.ConversationID, Role: arg.Role, Content: arg.Content, CreatedAt: arg.CreatedAt}
	f.messages[arg.ConversationID] = append(f.messages[arg.ConversationID], m)
	return &m, nil
}

var errBoom = errors.New("boom")
