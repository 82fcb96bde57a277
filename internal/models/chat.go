package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat is a direct or group conversation.
type Chat struct {
	ID            uuid.UUID     `json:"_id"`
	ChatName      string        `json:"chatName"`
	IsGroupChat   bool          `json:"isGroupChat"`
	Users         []UserSummary `json:"users"`
	GroupAdminID  *uuid.UUID    `json:"-"`
	GroupAdmin    *UserSummary  `json:"groupAdmin,omitempty"`
	LatestMessage *Message      `json:"latestMessage,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// HasMember reports whether userID participates in the chat.
func (c *Chat) HasMember(userID uuid.UUID) bool {
	for _, u := range c.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Message is a chat message. Chat is populated when the message is delivered in realtime.
type Message struct {
	ID        uuid.UUID    `json:"_id"`
	ChatID    uuid.UUID    `json:"chatId"`
	Chat      *Chat        `json:"chat,omitempty"`
	SenderID  uuid.UUID    `json:"-"`
	Sender    *UserSummary `json:"sender,omitempty"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
}

// MemberIDs returns the ids of the chat's users.
func (c *Chat) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.Users))
	for i, u := range c.Users {
		ids[i] = u.ID
	}
	return ids
}
