package session

import (
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/relay"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeCompleter struct {
	mu       sync.Mutex
	calls    [][]models.Turn
	names    []string
	reply    relay.Completion
	err      error
	entered  chan struct{} // signalled when Complete starts, if non-nil
	release  chan struct{} // Complete waits on it, if non-nil
	onCalled func()
}

func (f *fakeCompleter) Complete(_ context.Context, turns []models.Turn, p relay.Personalization) (relay.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]models.Turn(nil), turns...))
	f.names = append(f.names, p.Name)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.onCalled != nil {
		f.onCalled()
	}
	return f.reply, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAuth struct {
	mu        sync.Mutex
	signedIn  bool
	logouts   int
	logoutErr error
}

func (a *fakeAuth) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signedIn
}

func (a *fakeAuth) Logout(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signedIn = false
	a.logouts++
	return a.logoutErr
}

type fakeStore struct {
	mu       sync.Mutex
	auth     *fakeAuth
	profile  *models.Profile
	convs    map[uuid.UUID]*models.Conversation
	messages map[uuid.UUID][]models.Message
	clock    time.Time

	createErr error
	appendErr error
	listErr   error
	appends   int

	// per-conversation gates for ListMessages
	listEntered chan uuid.UUID
	listGates   map[uuid.UUID]chan struct{}

	deleteEntered chan uuid.UUID
	deleteGate    chan struct{}
	profileDelay  time.Duration
}

func newFakeStore(a *fakeAuth) *fakeStore {
	return &fakeStore{
		auth:     a,
		convs:    map[uuid.UUID]*models.Conversation{},
		messages: map[uuid.UUID][]models.Message{},
		clock:    time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) ListConversations(context.Context) ([]models.Conversation, error) {
	if !s.auth.Authenticated() {
		return []models.Conversation{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Conversation{}
	for _, c := range s.convs {
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeStore) CreateConversation(_ context.Context, first string) (*models.Conversation, error) {
	if !s.auth.Authenticated() {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	now := s.tick()
	c := &models.Conversation{ID: uuid.New(), Title: first, CreatedAt: now, UpdatedAt: now}
	s.convs[c.ID] = c
	s.messages[c.ID] = []models.Message{{ID: uuid.New(), ConversationID: c.ID, Role: models.RoleUser, Content: first, CreatedAt: now}}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) DeleteConversation(_ context.Context, id uuid.UUID) error {
	if s.deleteEntered != nil {
		s.deleteEntered <- id
	}
	if s.deleteGate != nil {
		<-s.deleteGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	delete(s.messages, id)
	return nil
}

func (s *fakeStore) ListMessages(_ context.Context, id uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	gate := s.listGates[id]
	entered := s.listEntered
	s.mu.Unlock()
	if entered != nil {
		entered <- id
	}
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.Message(nil), s.messages[id]...), nil
}

func (s *fakeStore) AppendMessage(_ context.Context, id uuid.UUID, role models.Role, content string) (*models.Message, error) {
	if !s.auth.Authenticated() {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	c, ok := s.convs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	now := s.tick()
	m := models.Message{ID: uuid.New(), ConversationID: id, Role: role, Content: content, CreatedAt: now}
	s.messages[id] = append(s.messages[id], m)
	c.UpdatedAt = now
	return &m, nil
}

func (s *fakeStore) GetProfile(ctx context.Context) (*models.Profile, error) {
	if !s.auth.Authenticated() {
		return nil, nil
	}
	if s.profileDelay > 0 {
		select {
		case <-time.After(s.profileDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, nil
}

func (s *fakeStore) rows(id uuid.UUID) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages[id]...)
}

func (s *fakeStore) seed(title string, contents ...string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	c := &models.Conversation{ID: uuid.New(), Title: title, CreatedAt: now, UpdatedAt: now}
	s.convs[c.ID] = c
	for i, text := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		s.messages[c.ID] = append(s.messages[c.ID], models.Message{ID: uuid.New(), ConversationID: c.ID, Role: role, Content: text, CreatedAt: now})
	}
	return c.ID
}

type netErr struct{}

func (netErr) Error() string { return "dial tcp: connection refused" }

func newTestManager(signedIn bool) (*Manager, *fakeCompleter, *fakeStore, *fakeAuth) {
	a := &fakeAuth{signedIn: signedIn}
	s := newFakeStore(a)
	c := &fakeCompleter{reply: relay.Completion{Text: "Peace be with you."}}
	return NewManager(c, s, a), c, s, a
}

// startBlockedSend starts a SendTurn whose relay call blocks until the returned
// release func is called.
func startBlockedSend(t *testing.T, m *Manager, c *fakeCompleter, text string) (release func() models.Turn) {
	t.Helper()
	c.entered = make(chan struct{}, 1)
	c.release = make(chan struct{})
	done := make(chan models.Turn, 1)
	go func() {
		turn, err := m.SendTurn(context.Background(), text)
		assert.NoError(t, err)
		done <- turn
	}()
	select {
	case <-c.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("relay was never called")
	}
	return func() models.Turn {
		close(c.release)
		select {
		case turn := <-done:
			return turn
		case <-time.After(2 * time.Second):
			t.Fatal("SendTurn did not return")
			return models.Turn{}
		}
	}
}

// --- tests ---

func TestSendTurn_AnonymousIsNeverPersisted(t *testing.T) {
	m, c, s, _ := newTestManager(false)

	reply, err := m.SendTurn(context.Background(), "I feel anxious about work")
	require.NoError(t, err)
	assert.Equal(t, "Peace be with you.", reply.Content)

	require.Equal(t, 1, c.callCount())
	assert.Equal(t, []models.Turn{{Role: models.RoleUser, Content: "I feel anxious about work"}}, c.calls[0])
	assert.Equal(t, "", c.names[0])

	snap := m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	require.Len(t, snap.Turns, 2)
	assert.Equal(t, models.RoleAssistant, snap.Turns[1].Role)
	assert.Equal(t, uuid.Nil, snap.ConversationID)
	assert.Empty(t, s.convs)
	assert.Equal(t, 0, s.appends)
}

func TestSendTurn_AuthenticatedCreatesConversation(t *testing.T) {
	m, c, s, _ := newTestManager(true)

	var rowsDuringRelay int
	c.onCalled = func() {
		for id := range s.convs {
			rowsDuringRelay = len(s.rows(id))
		}
	}

	_, err := m.SendTurn(context.Background(), "Pray for me")
	require.NoError(t, err)

	snap := m.Snapshot()
	require.NotEqual(t, uuid.Nil, snap.ConversationID)
	conv := s.convs[snap.ConversationID]
	require.NotNil(t, conv)
	assert.Equal(t, "Pray for me", conv.Title)
	assert.Equal(t, 1, rowsDuringRelay)

	rows := s.rows(snap.ConversationID)
	require.Len(t, rows, 2)
	assert.Equal(t, models.RoleUser, rows[0].Role)
	assert.Equal(t, models.RoleAssistant, rows[1].Role)
	assert.Equal(t, rows[1].CreatedAt, conv.UpdatedAt)
	assert.True(t, rows[1].CreatedAt.After(rows[0].CreatedAt))

	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, snap.ConversationID, snap.Conversations[0].ID)
}

func TestSendTurn_SecondTurnAppendsAndSendsFullHistory(t *testing.T) {
	m, c, s, _ := newTestManager(true)
	ctx := context.Background()

	_, err := m.SendTurn(ctx, "first")
	require.NoError(t, err)
	_, err = m.SendTurn(ctx, "second")
	require.NoError(t, err)

	snap := m.Snapshot()
	rows := s.rows(snap.ConversationID)
	require.Len(t, rows, 4)
	assert.Equal(t, "second", rows[2].Content)
	assert.Len(t, s.convs, 1)

	require.Equal(t, 2, c.callCount())
	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "Peace be with you."},
		{Role: models.RoleUser, Content: "second"},
	}, c.calls[1])
}

func TestSendTurn_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"network", &relay.ProviderError{Err: netErr{}, Transport: true}, ConnectivityFallback},
		{"provider", &relay.ProviderError{Err: errors.New("overloaded")}, GenericFallback},
		{"anything else", errors.New("weird"), GenericFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, c, s, _ := newTestManager(true)
			c.err = tt.err

			reply, err := m.SendTurn(context.Background(), "hello")
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Content)

			snap := m.Snapshot()
			assert.Equal(t, Idle, snap.State)
			require.Len(t, snap.Turns, 2)
			assert.Equal(t, models.Turn{Role: models.RoleAssistant, Content: tt.want}, snap.Turns[1])

			rows := s.rows(snap.ConversationID)
			require.Len(t, rows, 1)
			assert.Equal(t, models.RoleUser, rows[0].Role)
		})
	}
}

func TestSendTurn_EmptyResponseIsEmptyTurn(t *testing.T) {
	m, c, _, _ := newTestManager(false)
	c.reply = relay.Completion{Empty: true}

	reply, err := m.SendTurn(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, models.Turn{Role: models.RoleAssistant, Content: ""}, reply)
	assert.Len(t, m.Snapshot().Turns, 2)
}

func TestSendTurn_BlankIsIgnored(t *testing.T) {
	m, c, _, _ := newTestManager(true)

	_, err := m.SendTurn(context.Background(), "  \n\t")
	assert.ErrorIs(t, err, ErrBlankTurn)
	assert.Equal(t, 0, c.callCount())
	assert.Empty(t, m.Snapshot().Turns)
}

func TestSendTurn_PersistenceFailuresNeverBlock(t *testing.T) {
	m, c, s, _ := newTestManager(true)
	s.createErr = errors.New("db down")

	_, err := m.SendTurn(context.Background(), "first")
	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Len(t, snap.Turns, 2)
	assert.Equal(t, uuid.Nil, snap.ConversationID)
	assert.Equal(t, 1, c.callCount())

	s.createErr = nil
	_, err = m.SendTurn(context.Background(), "second")
	require.NoError(t, err)
	convID := m.Snapshot().ConversationID
	require.NotEqual(t, uuid.Nil, convID)

	s.appendErr = errors.New("db down again")
	_, err = m.SendTurn(context.Background(), "third")
	require.NoError(t, err)
	snap = m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Len(t, snap.Turns, 6)
	assert.Equal(t, convID, snap.ConversationID)
}

func TestSendTurn_RejectedWhileSending(t *testing.T) {
	m, c, s, _ := newTestManager(true)
	other := s.seed("other", "hi", "hello")

	release := startBlockedSend(t, m, c, "first")

	before := m.Snapshot()
	assert.Equal(t, Sending, before.State)
	require.Len(t, before.Turns, 1)

	_, err := m.SendTurn(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, m.NewConversation(), ErrBusy)
	assert.ErrorIs(t, m.SwitchConversation(context.Background(), other), ErrBusy)
	assert.ErrorIs(t, m.DeleteConversation(context.Background(), before.ConversationID), ErrBusy)

	during := m.Snapshot()
	assert.Equal(t, before.Turns, during.Turns)
	assert.Equal(t, before.ConversationID, during.ConversationID)

	release()
	after := m.Snapshot()
	assert.Equal(t, Idle, after.State)
	assert.Len(t, after.Turns, 2)
	assert.Equal(t, 1, c.callCount())
}

func TestSwitchConversation_ReplacesTurns(t *testing.T) {
	m, _, s, _ := newTestManager(true)
	ctx := context.Background()
	id := s.seed("old", "q1", "a1", "q2")

	_, err := m.SendTurn(ctx, "something else")
	require.NoError(t, err)

	require.NoError(t, m.SwitchConversation(ctx, id))
	snap := m.Snapshot()
	assert.Equal(t, id, snap.ConversationID)
	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	}, snap.Turns)
}

func TestSwitchConversation_LatestRequestWins(t *testing.T) {
	for _, firstLands := range []bool{true, false} {
		m, _, s, _ := newTestManager(true)
		id1 := s.seed("one", "from one")
		id2 := s.seed("two", "from two", "reply two")
		s.listEntered = make(chan uuid.UUID, 2)
		s.listGates = map[uuid.UUID]chan struct{}{id1: make(chan struct{}), id2: make(chan struct{})}

		errs := make(chan error, 2)
		go func() { errs <- m.SwitchConversation(context.Background(), id1) }()
		require.Equal(t, id1, <-s.listEntered)
		go func() { errs <- m.SwitchConversation(context.Background(), id2) }()
		require.Equal(t, id2, <-s.listEntered)

		assert.True(t, m.Snapshot().Switching)
		_, err := m.SendTurn(context.Background(), "not now")
		assert.ErrorIs(t, err, ErrBusy)

		if firstLands {
			close(s.listGates[id1])
			assert.ErrorIs(t, <-errs, ErrSuperseded)
			close(s.listGates[id2])
			assert.NoError(t, <-errs)
		} else {
			close(s.listGates[id2])
			assert.NoError(t, <-errs)
			close(s.listGates[id1])
			assert.ErrorIs(t, <-errs, ErrSuperseded)
		}

		snap := m.Snapshot()
		assert.False(t, snap.Switching)
		assert.Equal(t, id2, snap.ConversationID)
		assert.Equal(t, []models.Turn{
			{Role: models.RoleUser, Content: "from two"},
			{Role: models.RoleAssistant, Content: "reply two"},
		}, snap.Turns)
	}
}

func TestSwitchConversation_LoadFailureKeepsState(t *testing.T) {
	m, _, s, _ := newTestManager(true)
	ctx := context.Background()
	id := s.seed("x", "hello")

	_, err := m.SendTurn(ctx, "current")
	require.NoError(t, err)
	before := m.Snapshot()

	s.listErr = errors.New("timeout")
	assert.Error(t, m.SwitchConversation(ctx, id))

	after := m.Snapshot()
	assert.Equal(t, before.ConversationID, after.ConversationID)
	assert.Equal(t, before.Turns, after.Turns)
	assert.False(t, after.Switching)
}

func TestNewConversation_Clears(t *testing.T) {
	m, _, _, _ := newTestManager(true)
	_, err := m.SendTurn(context.Background(), "hello")
	require.NoError(t, err)

	require.NoError(t, m.NewConversation())
	snap := m.Snapshot()
	assert.Empty(t, snap.Turns)
	assert.Equal(t, uuid.Nil, snap.ConversationID)
	assert.Len(t, snap.Conversations, 1)
}

func TestDeleteConversation(t *testing.T) {
	m, _, s, _ := newTestManager(true)
	ctx := context.Background()
	other := s.seed("other", "hi")
	require.NoError(t, m.Start(ctx))

	_, err := m.SendTurn(ctx, "current one")
	require.NoError(t, err)
	current := m.Snapshot().ConversationID

	require.NoError(t, m.DeleteConversation(ctx, other))
	snap := m.Snapshot()
	assert.Equal(t, current, snap.ConversationID)
	assert.Len(t, snap.Turns, 2)
	assert.Len(t, snap.Conversations, 1)

	require.NoError(t, m.DeleteConversation(ctx, current))
	snap = m.Snapshot()
	assert.Equal(t, uuid.Nil, snap.ConversationID)
	assert.Empty(t, snap.Turns)
	assert.Empty(t, snap.Conversations)
	assert.Empty(t, s.convs)
}

func TestDeleteConversation_OtherWhileSending(t *testing.T) {
	m, c, s, _ := newTestManager(true)
	other := s.seed("other", "hi")

	release := startBlockedSend(t, m, c, "first")
	assert.NoError(t, m.DeleteConversation(context.Background(), other))
	release()

	assert.Len(t, m.Snapshot().Turns, 2)
}

func TestDeleteConversation_CurrentBlocksSendsUntilDone(t *testing.T) {
	m, c, s, _ := newTestManager(true)
	ctx := context.Background()
	_, err := m.SendTurn(ctx, "first")
	require.NoError(t, err)
	current := m.Snapshot().ConversationID
	other := s.seed("other", "hi")

	s.deleteEntered = make(chan uuid.UUID, 1)
	s.deleteGate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- m.DeleteConversation(ctx, current) }()
	select {
	case <-s.deleteEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("store delete was never called")
	}

	_, err = m.SendTurn(ctx, "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, m.SwitchConversation(ctx, other), ErrBusy)
	assert.ErrorIs(t, m.DeleteConversation(ctx, current), ErrBusy)
	assert.Equal(t, 1, c.callCount())

	close(s.deleteGate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("DeleteConversation did not return")
	}
	s.deleteEntered, s.deleteGate = nil, nil

	snap := m.Snapshot()
	assert.Equal(t, uuid.Nil, snap.ConversationID)
	assert.Empty(t, snap.Turns)

	_, err = m.SendTurn(ctx, "second")
	require.NoError(t, err)
	next := m.Snapshot().ConversationID
	assert.NotEqual(t, current, next)
	assert.Len(t, s.rows(next), 2)
}

func TestLogout_ClearsStateAndDropsLateReply(t *testing.T) {
	m, c, s, a := newTestManager(true)
	s.profile = &models.Profile{Name: "Sam"}
	require.NoError(t, m.Start(context.Background()))
	require.NotNil(t, m.Snapshot().Profile)

	release := startBlockedSend(t, m, c, "are you there?")
	require.NoError(t, m.Logout(context.Background()))

	snap := m.Snapshot()
	assert.Empty(t, snap.Turns)
	assert.Nil(t, snap.Profile)
	assert.Empty(t, snap.Conversations)
	assert.Equal(t, uuid.Nil, snap.ConversationID)
	assert.Equal(t, 1, a.logouts)

	release()
	snap = m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.Turns)
	assert.Equal(t, uuid.Nil, snap.ConversationID)
}

func TestStart_LoadsProfileAndListAndPersonalizes(t *testing.T) {
	m, c, s, _ := newTestManager(true)
	s.profile = &models.Profile{Name: "Sam"}
	s.seed("earlier", "hi")

	require.NoError(t, m.Start(context.Background()))
	snap := m.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Sam", snap.Profile.Name)
	assert.Len(t, snap.Conversations, 1)

	_, err := m.SendTurn(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Sam", c.names[0])
}

func TestStart_AnonymousIsNoop(t *testing.T) {
	m, _, s, _ := newTestManager(false)
	s.profile = &models.Profile{Name: "Sam"}
	require.NoError(t, m.Start(context.Background()))
	assert.Nil(t, m.Snapshot().Profile)
}

func TestStart_ListFailureKeepsProfile(t *testing.T) {
	m, c, s, _ := newTestManager(true)
	s.profile = &models.Profile{Name: "Sam"}
	s.profileDelay = 20 * time.Millisecond
	s.listErr = errors.New("unavailable")

	assert.Error(t, m.Start(context.Background()))
	require.NotNil(t, m.Snapshot().Profile)

	s.listErr = nil
	_, err := m.SendTurn(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Sam", c.names[0])
}

func TestStart_MissingProfileReplacesPrevious(t *testing.T) {
	m, c, s, _ := newTestManager(true)
	s.profile = &models.Profile{Name: "Sam"}
	require.NoError(t, m.Start(context.Background()))
	require.NotNil(t, m.Snapshot().Profile)

	s.profile = nil
	require.NoError(t, m.Start(context.Background()))
	assert.Nil(t, m.Snapshot().Profile)

	_, err := m.SendTurn(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "", c.names[0])
}

func TestRefreshConversations(t *testing.T) {
	m, _, s, _ := newTestManager(true)
	require.NoError(t, m.RefreshConversations(context.Background()))
	assert.Empty(t, m.Snapshot().Conversations)

	s.seed("new", "hi")
	require.NoError(t, m.RefreshConversations(context.Background()))
	assert.Len(t, m.Snapshot().Conversations, 1)
}
