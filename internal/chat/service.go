package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/models"
)

// EventMessageReceived is the realtime event carrying a new chat message.
const EventMessageReceived = "message recieved"

var (
	ErrNotMember     = errors.New("not a member of this chat")
	ErrNotAdmin      = errors.New("only the group admin can change this group")
	ErrEmptyMessage  = errors.New("message content is required")
	ErrSelfChat      = errors.New("cannot start a chat with yourself")
	ErrGroupTooSmall = errors.New("more than 2 users are required to form a group chat")
)

// Emitter delivers realtime events to users' personal rooms.
type Emitter interface {
	EmitToUsers(userIDs []uuid.UUID, event string, payload interface{})
}

// Service implements chat operations shared by the HTTP and socket paths.
type Service struct {
	store   Store
	emitter Emitter
	logger  *zap.Logger
}

// NewService creates a chat service. A nil emitter disables realtime delivery.
func NewService(store Store, emitter Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, emitter: emitter, logger: logger}
}

// Access returns the direct chat between caller and other, creating it when missing.
func (s *Service) Access(ctx context.Context, caller, other uuid.UUID) (*models.Chat, error) {
	if caller == other {
		return nil, ErrSelfChat
	}
	c, err := s.store.FindDirect(ctx, caller, other)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	id, err := s.store.Create(ctx, "sender", false, nil, []uuid.UUID{caller, other})
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// List returns the caller's chats.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	return s.store.ListForUser(ctx, userID)
}

// CreateGroup creates a group chat administered by caller. At least two other users are required.
func (s *Service) CreateGroup(ctx context.Context, caller uuid.UUID, name string, users []uuid.UUID) (*models.Chat, error) {
	members := []uuid.UUID{}
	seen := map[uuid.UUID]struct{}{caller: {}}
	for _, u := range users {
		if _, dup := seen[u]; dup || u == uuid.Nil {
			continue
		}
		seen[u] = struct{}{}
		members = append(members, u)
	}
	if len(members) < 2 {
		return nil, ErrGroupTooSmall
	}
	members = append(members, caller)
	id, err := s.store.Create(ctx, strings.TrimSpace(name), true, &caller, members)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// adminOf loads a group chat and checks caller administers it.
func (s *Service) adminOf(ctx context.Context, chatID, caller uuid.UUID) error {
	c, err := s.store.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if !c.IsGroupChat || c.GroupAdminID == nil || *c.GroupAdminID != caller {
		return ErrNotAdmin
	}
	return nil
}

// Rename changes a group's name.
func (s *Service) Rename(ctx context.Context, caller, chatID uuid.UUID, name string) (*models.Chat, error) {
	if err := s.adminOf(ctx, chatID, caller); err != nil {
		return nil, err
	}
	if err := s.store.Rename(ctx, chatID, strings.TrimSpace(name)); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, chatID)
}

// AddUser adds userID to a group.
func (s *Service) AddUser(ctx context.Context, caller, chatID, userID uuid.UUID) (*models.Chat, error) {
	if err := s.adminOf(ctx, chatID, caller); err != nil {
		return nil, err
	}
	if err := s.store.AddUser(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, chatID)
}

// RemoveUser removes userID from a group.
func (s *Service) RemoveUser(ctx context.Context, caller, chatID, userID uuid.UUID) (*models.Chat, error) {
	if err := s.adminOf(ctx, chatID, caller); err != nil {
		return nil, err
	}
	if err := s.store.RemoveUser(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, chatID)
}

// IsMember reports whether userID belongs to the chat.
func (s *Service) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	c, err := s.store.Get(ctx, chatID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.HasMember(userID), nil
}

// Send stores a message from sender and delivers it to every other member.
func (s *Service) Send(ctx context.Context, sender, chatID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	c, err := s.store.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.HasMember(sender) {
		return nil, ErrNotMember
	}
	m := &models.Message{ChatID: chatID, SenderID: sender, Content: content}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	for i := range c.Users {
		if c.Users[i].ID == sender {
			u := c.Users[i]
			m.Sender = &u
		}
	}
	c.LatestMessage = nil
	m.Chat = c

	if s.emitter != nil {
		var others []uuid.UUID
		for _, id := range c.MemberIDs() {
			if id != sender {
				others = append(others, id)
			}
		}
		if len(others) > 0 {
			s.emitter.EmitToUsers(others, EventMessageReceived, m)
		}
	}
	return m, nil
}

// Messages returns a chat's history for a member.
func (s *Service) Messages(ctx context.Context, caller, chatID uuid.UUID) ([]models.Message, error) {
	ok, err := s.IsMember(ctx, chatID, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return s.store.Messages(ctx, chatID)
}
