package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/models"
)

// EventReceive is the realtime event name carrying a notification payload.
const EventReceive = "receive_notification"

var (
	ErrNotFound  = errors.New("notification not found")
	ErrForbidden = errors.New("no access to this notification")
)

// ValidationError reports invalid input; its message is safe to return to clients.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func invalid(msg string) error { return &ValidationError{msg: msg} }

// Dispatcher emits realtime events to connected clients.
type Dispatcher interface {
	EmitToAll(event string, payload interface{})
	EmitToUsers(userIDs []uuid.UUID, event string, payload interface{})
}

// Store is the notification persistence used by the service.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, int, error)
	ListAll(ctx context.Context, f Filter, limit, offset int) ([]models.Notification, int, error)
	Update(ctx context.Context, n *models.Notification) error
	Delete(ctx context.Context, id uuid.UUID) error
	Hide(ctx context.Context, id, userID uuid.UUID) error
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

// Filter narrows the admin listing.
type Filter struct {
	Category models.NotificationCategory
	Scope    models.NotificationScope
}

// CreateInput is a new notification and its audience.
type CreateInput struct {
	Title       string                      `json:"title"`
	Message     string                      `json:"message"`
	Category    models.NotificationCategory `json:"category"`
	Scope       models.NotificationScope    `json:"scope"`
	Data        models.NotificationData     `json:"data"`
	RecipientID *uuid.UUID                  `json:"recipientId"`
	UserIDs     []uuid.UUID                 `json:"userIds"`
}

// DataPatch holds redirect metadata fields to merge into an existing notification.
type DataPatch struct {
	EventID      *uuid.UUID `json:"eventId"`
	ExternalLink *string    `json:"externalLink"`
	Action       *string    `json:"action"`
}

// UpdateInput is a partial admin edit. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string                      `json:"title"`
	Message     *string                      `json:"message"`
	Category    *models.NotificationCategory `json:"category"`
	Scope       *models.NotificationScope    `json:"scope"`
	Data        *DataPatch                   `json:"data"`
	RecipientID *uuid.UUID                   `json:"recipientId"`
	UserIDs     []uuid.UUID                  `json:"userIds"`
}

// Payload is the denormalized form pushed to realtime clients.
type Payload struct {
	ID        string                      `json:"_id"`
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	Category  models.NotificationCategory `json:"category"`
	Scope     models.NotificationScope    `json:"scope"`
	Data      PayloadData                 `json:"data"`
	CreatedAt string                      `json:"createdAt"`
}

// PayloadData is the stringified redirect metadata of a Payload.
type PayloadData struct {
	EventID      string `json:"eventId,omitempty"`
	ExternalLink string `json:"externalLink,omitempty"`
	Action       string `json:"action,omitempty"`
}

// TimestampLayout renders UTC timestamps with millisecond precision, e.g. 2026-10-18T09:00:00.000Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NewPayload builds the realtime payload for n.
func NewPayload(n *models.Notification) Payload {
	p := Payload{
		ID:        n.ID.String(),
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		Scope:     n.Scope,
		CreatedAt: n.CreatedAt.UTC().Format(TimestampLayout),
		Data: PayloadData{
			ExternalLink: n.Data.ExternalLink,
			Action:       n.Data.Action,
		},
	}
	if n.Data.EventID != nil {
		p.Data.EventID = n.Data.EventID.String()
	}
	return p
}

// Service creates notifications, fans them out and enforces per-user visibility.
type Service struct {
	store      Store
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewService creates a notification service. A nil dispatcher disables realtime delivery.
func NewService(store Store, dispatcher Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, dispatcher: dispatcher, logger: logger}
}

// validate checks scope-specific audience data and normalizes n in place.
func validate(n *models.Notification) error {
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	if n.Title == "" || n.Message == "" || n.Category == "" || n.Scope == "" {
		return invalid("Title, message, category and scope are required")
	}
	if !n.Category.Valid() {
		return invalid("Category must be one of: NEW_EVENT, EVENT_REMINDER, EVENT_UPDATED, SYSTEM")
	}
	if !n.Scope.Valid() {
		return invalid("Scope must be one of: BROADCAST, TARGETED, PERSONALIZED")
	}
	switch n.Scope {
	case models.ScopeBroadcast:
		n.RecipientID = nil
		n.AllowedUsers = nil
	case models.ScopeTargeted:
		if n.RecipientID == nil || *n.RecipientID == uuid.Nil {
			return invalid("recipientId is required for TARGETED scope")
		}
		n.AllowedUsers = nil
	case models.ScopePersonalized:
		n.AllowedUsers = dedupe(n.AllowedUsers)
		if len(n.AllowedUsers) == 0 {
			return invalid("userIds (non-empty array) is required for PERSONALIZED scope")
		}
		n.RecipientID = nil
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Create validates, persists and fans out a notification.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Notification, error) {
	n := &models.Notification{
		Title:        in.Title,
		Message:      in.Message,
		Category:     in.Category,
		Scope:        in.Scope,
		Data:         in.Data,
		RecipientID:  in.RecipientID,
		AllowedUsers: in.UserIDs,
	}
	if err := validate(n); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}
	s.fanOut(n)
	return n, nil
}

func (s *Service) fanOut(n *models.Notification) {
	if s.dispatcher == nil {
		s.logger.Debug("realtime dispatcher not available, skip emit", zap.String("notification_id", n.ID.String()))
		return
	}
	payload := NewPayload(n)
	switch n.Scope {
	case models.ScopeBroadcast:
		s.dispatcher.EmitToAll(EventReceive, payload)
	case models.ScopeTargeted:
		s.dispatcher.EmitToUsers([]uuid.UUID{*n.RecipientID}, EventReceive, payload)
	case models.ScopePersonalized:
		s.dispatcher.EmitToUsers(n.AllowedUsers, EventReceive, payload)
	}
	s.logger.Info("notification emitted", zap.String("notification_id", n.ID.String()), zap.String("scope", string(n.Scope)))
}

// ListMine returns the caller's visible notifications, newest first, with read flags.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	return s.store.ListForUser(ctx, userID, unreadOnly, limit, offset)
}

// ListAll returns every notification for admins.
func (s *Service) ListAll(ctx context.Context, f Filter, limit, offset int) ([]models.Notification, int, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, 0, invalid("invalid category filter")
	}
	if f.Scope != "" && !f.Scope.Valid() {
		return nil, 0, invalid("invalid scope filter")
	}
	return s.store.ListAll(ctx, f, limit, offset)
}

// Get returns a notification the caller may see. Admins see everything. Users outside the
// audience get ErrForbidden and users who hid it get ErrNotFound.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID, role models.Role) (*models.Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin {
		if !n.Addresses(userID) {
			return nil, ErrForbidden
		}
		if n.HiddenFor(userID) {
			return nil, ErrNotFound
		}
	}
	n.Read = n.ReadByUser(userID)
	return n, nil
}

// Update applies a partial admin edit; data fields are merged.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		n.Title = *in.Title
	}
	if in.Message != nil {
		n.Message = *in.Message
	}
	if in.Category != nil {
		n.Category = *in.Category
	}
	if in.Scope != nil {
		n.Scope = *in.Scope
	}
	if in.RecipientID != nil {
		n.RecipientID = in.RecipientID
	}
	if in.UserIDs != nil {
		n.AllowedUsers = in.UserIDs
	}
	if in.Data != nil {
		if in.Data.EventID != nil {
			n.Data.EventID = in.Data.EventID
		}
		if in.Data.ExternalLink != nil {
			n.Data.ExternalLink = *in.Data.ExternalLink
		}
		if in.Data.Action != nil {
			n.Data.Action = *in.Data.Action
		}
	}
	if err := validate(n); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Delete hard-deletes for admins and hides the notification for audience members.
// It reports whether the delete was a hard delete.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID, role models.Role) (bool, error) {
	if role == models.RoleAdmin {
		return true, s.store.Delete(ctx, id)
	}
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !n.Addresses(userID) {
		return false, ErrForbidden
	}
	return false, s.store.Hide(ctx, id, userID)
}

// MarkRead records that userID read the notification. Repeating it has no effect.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID, role models.Role) (*models.Notification, error) {
	n, err := s.Get(ctx, id, userID, role)
	if err != nil {
		return nil, err
	}
	if !n.Read {
		if err := s.store.MarkRead(ctx, id, userID); err != nil {
			return nil, err
		}
		n.ReadBy = append(n.ReadBy, userID)
		n.Read = true
	}
	return n, nil
}
