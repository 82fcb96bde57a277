package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationCategory classifies a notification.
type NotificationCategory string

const (
	NotifyNewEvent      NotificationCategory = "NEW_EVENT"
	NotifyEventReminder NotificationCategory = "EVENT_REMINDER"
	NotifyEventUpdated  NotificationCategory = "EVENT_UPDATED"
	NotifySystem        NotificationCategory = "SYSTEM"
)

// Valid reports whether c is a known category.
func (c NotificationCategory) Valid() bool {
	switch c {
	case NotifyNewEvent, NotifyEventReminder, NotifyEventUpdated, NotifySystem:
		return true
	}
	return false
}

// NotificationScope selects the audience of a notification.
type NotificationScope string

const (
	ScopeBroadcast    NotificationScope = "BROADCAST"
	ScopeTargeted     NotificationScope = "TARGETED"
	ScopePersonalized NotificationScope = "PERSONALIZED"
)

// Valid reports whether s is a known scope.
func (s NotificationScope) Valid() bool {
	switch s {
	case ScopeBroadcast, ScopeTargeted, ScopePersonalized:
		return true
	}
	return false
}

// NotificationData is redirect metadata attached to a notification.
type NotificationData struct {
	EventID      *uuid.UUID `json:"eventId,omitempty"`
	ExternalLink string     `json:"externalLink,omitempty"`
	Action       string     `json:"action,omitempty"`
}

// Notification is a persisted message with a delivery scope and per-user read/hide markers.
type Notification struct {
	ID           uuid.UUID            `json:"_id"`
	Title        string               `json:"title"`
	Message      string               `json:"message"`
	Category     NotificationCategory `json:"category"`
	Scope        NotificationScope    `json:"scope"`
	Data         NotificationData     `json:"data"`
	RecipientID  *uuid.UUID           `json:"recipient,omitempty"`
	AllowedUsers []uuid.UUID          `json:"allowedUsers,omitempty"`
	ReadBy       []uuid.UUID          `json:"readBy,omitempty"`
	DeletedBy    []uuid.UUID          `json:"deletedBy,omitempty"`
	Read         bool                 `json:"read"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// Addresses reports whether the notification's audience includes userID.
func (n *Notification) Addresses(userID uuid.UUID) bool {
	switch n.Scope {
	case ScopeBroadcast:
		return true
	case ScopeTargeted:
		return n.RecipientID != nil && *n.RecipientID == userID
	case ScopePersonalized:
		return containsID(n.AllowedUsers, userID)
	}
	return false
}

// HiddenFor reports whether userID soft-deleted the notification.
func (n *Notification) HiddenFor(userID uuid.UUID) bool {
	return containsID(n.DeletedBy, userID)
}

// ReadByUser reports whether userID marked the notification read.
func (n *Notification) ReadByUser(userID uuid.UUID) bool {
	return containsID(n.ReadBy, userID)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
