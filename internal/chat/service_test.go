package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/backend/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	chats    map[uuid.UUID]*models.Chat
	messages map[uuid.UUID][]models.Message
}

func newMemStore() *memStore {
	return &memStore{chats: map[uuid.UUID]*models.Chat{}, messages: map[uuid.UUID][]models.Message{}}
}

func (m *memStore) FindDirect(_ context.Context, a, b uuid.UUID) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if !c.IsGroupChat && c.HasMember(a) && c.HasMember(b) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Create(_ context.Context, name string, isGroup bool, adminID *uuid.UUID, userIDs []uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Chat{ID: uuid.New(), ChatName: name, IsGroupChat: isGroup, GroupAdminID: adminID, CreatedAt: time.Now()}
	for _, u := range userIDs {
		c.Users = append(c.Users, models.UserSummary{ID: u})
	}
	m.chats[c.ID] = c
	return c.ID, nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Users = append([]models.UserSummary(nil), c.Users...)
	return &cp, nil
}

func (m *memStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.Chat{}
	for _, c := range m.chats {
		if c.HasMember(userID) {
			list = append(list, *c)
		}
	}
	return list, nil
}

func (m *memStore) Rename(_ context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return ErrNotFound
	}
	c.ChatName = name
	return nil
}

func (m *memStore) AddUser(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chats[id]
	if !c.HasMember(userID) {
		c.Users = append(c.Users, models.UserSummary{ID: userID})
	}
	return nil
}

func (m *memStore) RemoveUser(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chats[id]
	kept := c.Users[:0]
	for _, u := range c.Users {
		if u.ID != userID {
			kept = append(kept, u)
		}
	}
	c.Users = kept
	return nil
}

func (m *memStore) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], *msg)
	latest := *msg
	m.chats[msg.ChatID].LatestMessage = &latest
	return nil
}

func (m *memStore) Messages(_ context.Context, chatID uuid.UUID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message{}, m.messages[chatID]...), nil
}

type emitted struct {
	users []uuid.UUID
	event string
}

type recordingEmitter struct {
	calls []emitted
}

func (r *recordingEmitter) EmitToUsers(userIDs []uuid.UUID, event string, _ interface{}) {
	r.calls = append(r.calls, emitted{users: userIDs, event: event})
}

func TestService_AccessReusesDirectChat(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	first, err := svc.Access(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, first.IsGroupChat)
	assert.Equal(t, "sender", first.ChatName)

	second, err := svc.Access(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.Access(ctx, a, a)
	assert.ErrorIs(t, err, ErrSelfChat)
}

func TestService_CreateGroup(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil)
	ctx := context.Background()
	caller, u1, u2 := uuid.New(), uuid.New(), uuid.New()

	_, err := svc.CreateGroup(ctx, caller, "Club", []uuid.UUID{u1, caller})
	assert.ErrorIs(t, err, ErrGroupTooSmall)

	g, err := svc.CreateGroup(ctx, caller, " Club ", []uuid.UUID{u1, u2, u1})
	require.NoError(t, err)
	assert.True(t, g.IsGroupChat)
	assert.Equal(t, "Club", g.ChatName)
	assert.Len(t, g.Users, 3)
	assert.True(t, g.HasMember(caller))
	require.NotNil(t, g.GroupAdminID)
	assert.Equal(t, caller, *g.GroupAdminID)
}

func TestService_GroupEditsRequireAdmin(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil)
	ctx := context.Background()
	admin, u1, u2, u3 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	g, err := svc.CreateGroup(ctx, admin, "Club", []uuid.UUID{u1, u2})
	require.NoError(t, err)

	_, err = svc.Rename(ctx, u1, g.ID, "Mine")
	assert.ErrorIs(t, err, ErrNotAdmin)
	_, err = svc.AddUser(ctx, u1, g.ID, u3)
	assert.ErrorIs(t, err, ErrNotAdmin)

	renamed, err := svc.Rename(ctx, admin, g.ID, "Robotics")
	require.NoError(t, err)
	assert.Equal(t, "Robotics", renamed.ChatName)

	added, err := svc.AddUser(ctx, admin, g.ID, u3)
	require.NoError(t, err)
	assert.True(t, added.HasMember(u3))

	removed, err := svc.RemoveUser(ctx, admin, g.ID, u1)
	require.NoError(t, err)
	assert.False(t, removed.HasMember(u1))

	_, err = svc.Rename(ctx, admin, uuid.New(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SendDeliversToOtherMembers(t *testing.T) {
	store := newMemStore()
	emitter := &recordingEmitter{}
	svc := NewService(store, emitter, nil)
	ctx := context.Background()
	admin, u1, u2 := uuid.New(), uuid.New(), uuid.New()
	g, err := svc.CreateGroup(ctx, admin, "Club", []uuid.UUID{u1, u2})
	require.NoError(t, err)

	msg, err := svc.Send(ctx, u1, g.ID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	require.NotNil(t, msg.Chat)
	assert.Equal(t, g.ID, msg.Chat.ID)

	require.Len(t, emitter.calls, 1)
	assert.Equal(t, EventMessageReceived, emitter.calls[0].event)
	assert.ElementsMatch(t, []uuid.UUID{admin, u2}, emitter.calls[0].users)

	stored, err := store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LatestMessage)
	assert.Equal(t, msg.ID, stored.LatestMessage.ID)
}

func TestService_SendRules(t *testing.T) {
	emitter := &recordingEmitter{}
	svc := NewService(newMemStore(), emitter, nil)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	direct, err := svc.Access(ctx, a, b)
	require.NoError(t, err)

	_, err = svc.Send(ctx, a, direct.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = svc.Send(ctx, uuid.New(), direct.ID, "hi")
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = svc.Send(ctx, a, uuid.New(), "hi")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, emitter.calls)
}

func TestService_MessagesMembersOnly(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	direct, err := svc.Access(ctx, a, b)
	require.NoError(t, err)
	_, err = svc.Send(ctx, a, direct.ID, "one")
	require.NoError(t, err)
	_, err = svc.Send(ctx, b, direct.ID, "two")
	require.NoError(t, err)

	list, err := svc.Messages(ctx, b, direct.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Content)

	_, err = svc.Messages(ctx, uuid.New(), direct.ID)
	assert.ErrorIs(t, err, ErrNotMember)
}
