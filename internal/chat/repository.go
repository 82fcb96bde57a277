package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/database"
)

var (
	ErrNotFound     = errors.New("chat not found")
	ErrUserNotFound = errors.New("user not found")
)

// Store is the chat persistence used by the service.
type Store interface {
	FindDirect(ctx context.Context, a, b uuid.UUID) (*models.Chat, error)
	Create(ctx context.Context, name string, isGroup bool, adminID *uuid.UUID, userIDs []uuid.UUID) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	AddUser(ctx context.Context, id, userID uuid.UUID) error
	RemoveUser(ctx context.Context, id, userID uuid.UUID) error
	CreateMessage(ctx context.Context, m *models.Message) error
	Messages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
}

// Repository handles chat and message persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a chat repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const chatSelect = `SELECT c.id, c.chat_name, c.is_group_chat, c.group_admin_id, c.created_at, c.updated_at,
	m.id, m.sender_id, su.name, su.email, su.profile_pic, m.content, m.created_at
	FROM chats c
	LEFT JOIN messages m ON m.id = c.latest_message_id
	LEFT JOIN users su ON su.id = m.sender_id`

func scanChat(row pgx.Row) (*models.Chat, error) {
	var c models.Chat
	var msgID, senderID *uuid.UUID
	var senderName, senderEmail, content *string
	var senderPic *string
	var msgAt *time.Time
	err := row.Scan(&c.ID, &c.ChatName, &c.IsGroupChat, &c.GroupAdminID, &c.CreatedAt, &c.UpdatedAt,
		&msgID, &senderID, &senderName, &senderEmail, &senderPic, &content, &msgAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if msgID != nil && senderID != nil {
		m := &models.Message{ID: *msgID, ChatID: c.ID, SenderID: *senderID}
		m.Sender = &models.UserSummary{ID: *senderID, ProfilePic: senderPic}
		if senderName != nil {
			m.Sender.Name = *senderName
		}
		if senderEmail != nil {
			m.Sender.Email = *senderEmail
		}
		if content != nil {
			m.Content = *content
		}
		if msgAt != nil {
			m.CreatedAt = *msgAt
		}
		c.LatestMessage = m
	}
	c.Users = []models.UserSummary{}
	return &c, nil
}

// attachMembers loads members for every chat in list and resolves the group admin.
func (r *Repository) attachMembers(ctx context.Context, where string, arg interface{}, list []*models.Chat) error {
	rows, err := r.db.Query(ctx, `SELECT cu.chat_id, u.id, u.name, u.email, u.profile_pic
		FROM chat_users cu JOIN users u ON u.id = cu.user_id WHERE `+where+` ORDER BY u.name`, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	byID := make(map[uuid.UUID]*models.Chat, len(list))
	for _, c := range list {
		byID[c.ID] = c
	}
	for rows.Next() {
		var chatID uuid.UUID
		var u models.UserSummary
		if err := rows.Scan(&chatID, &u.ID, &u.Name, &u.Email, &u.ProfilePic); err != nil {
			return err
		}
		c, ok := byID[chatID]
		if !ok {
			continue
		}
		c.Users = append(c.Users, u)
		if c.GroupAdminID != nil && *c.GroupAdminID == u.ID {
			admin := u
			c.GroupAdmin = &admin
		}
	}
	return rows.Err()
}

// FindDirect returns the one-to-one chat between a and b.
func (r *Repository) FindDirect(ctx context.Context, a, b uuid.UUID) (*models.Chat, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT c.id FROM chats c
		WHERE c.is_group_chat = FALSE
		AND EXISTS (SELECT 1 FROM chat_users WHERE chat_id = c.id AND user_id = $1)
		AND EXISTS (SELECT 1 FROM chat_users WHERE chat_id = c.id AND user_id = $2)
		ORDER BY c.created_at LIMIT 1`, a, b).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Create inserts a chat and its members in one transaction.
func (r *Repository) Create(ctx context.Context, name string, isGroup bool, adminID *uuid.UUID, userIDs []uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO chats (chat_name, is_group_chat, group_admin_id) VALUES ($1, $2, $3) RETURNING id`,
			name, isGroup, adminID).Scan(&id); err != nil {
			return translate(err)
		}
		for _, u := range userIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO chat_users (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, u); err != nil {
				return translate(err)
			}
		}
		return nil
	})
	return id, err
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrUserNotFound
	}
	return err
}

// Get returns a chat with members, admin and latest message populated.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx, chatSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachMembers(ctx, "cu.chat_id = $1", id, []*models.Chat{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListForUser returns the user's chats, most recently active first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	const memberOf = `c.id IN (SELECT chat_id FROM chat_users WHERE user_id = $1)`
	rows, err := r.db.Query(ctx, chatSelect+` WHERE `+memberOf+` ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	var ptrs []*models.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ptrs) > 0 {
		if err := r.attachMembers(ctx, "cu.chat_id IN (SELECT chat_id FROM chat_users WHERE user_id = $1)", userID, ptrs); err != nil {
			return nil, err
		}
	}
	list := make([]models.Chat, len(ptrs))
	for i, c := range ptrs {
		list[i] = *c
	}
	return list, nil
}

func (r *Repository) execOne(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Rename sets a chat's display name.
func (r *Repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return r.execOne(ctx, `UPDATE chats SET chat_name = $2, updated_at = NOW() WHERE id = $1`, id, name)
}

// AddUser adds a member; adding an existing member is a no-op.
func (r *Repository) AddUser(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `INSERT INTO chat_users (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, userID)
	if err != nil {
		return translate(err)
	}
	_, err = r.db.Exec(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

// RemoveUser removes a member; removing a non-member is a no-op.
func (r *Repository) RemoveUser(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM chat_users WHERE chat_id = $1 AND user_id = $2`, id, userID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

// CreateMessage stores a message and makes it the chat's latest message.
func (r *Repository) CreateMessage(ctx context.Context, m *models.Message) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`,
			m.ChatID, m.SenderID, m.Content).Scan(&m.ID, &m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		_, err := tx.Exec(ctx, `UPDATE chats SET latest_message_id = $2, updated_at = NOW() WHERE id = $1`, m.ChatID, m.ID)
		return err
	})
}

// Messages returns a chat's messages, oldest first, with senders populated.
func (r *Repository) Messages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	rows, err := r.db.Query(ctx, `SELECT m.id, m.chat_id, m.sender_id, u.name, u.email, u.profile_pic, m.content, m.created_at
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1 ORDER BY m.created_at`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Message{}
	for rows.Next() {
		var m models.Message
		var s models.UserSummary
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &s.Name, &s.Email, &s.ProfilePic, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		s.ID = m.SenderID
		m.Sender = &s
		list = append(list, m)
	}
	return list, rows.Err()
}
