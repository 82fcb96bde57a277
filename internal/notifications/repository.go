package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/database"
)

// Repository handles notification persistence. Audience, read and hide markers live in join tables.
type Repository struct {
	db database.DB
}

// NewRepository creates a notification repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const baseColumns = `n.id, n.title, n.message, n.category, n.scope, n.event_id, n.external_link, n.action, n.recipient_id, n.created_at`

const fullColumns = baseColumns + `,
	ARRAY(SELECT user_id::text FROM notification_users WHERE notification_id = n.id),
	ARRAY(SELECT user_id::text FROM notification_reads WHERE notification_id = n.id),
	ARRAY(SELECT user_id::text FROM notification_hides WHERE notification_id = n.id)`

// audienceClause matches notifications addressed to $1 and not hidden by them.
const audienceClause = `(n.scope = 'BROADCAST' OR n.recipient_id = $1
		OR EXISTS (SELECT 1 FROM notification_users nu WHERE nu.notification_id = n.id AND nu.user_id = $1))
	AND NOT EXISTS (SELECT 1 FROM notification_hides nh WHERE nh.notification_id = n.id AND nh.user_id = $1)
	AND (NOT $2 OR NOT EXISTS (SELECT 1 FROM notification_reads nr WHERE nr.notification_id = n.id AND nr.user_id = $1))`

func parseIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse user id %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func scanFull(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	var allowed, readBy, hiddenBy []string
	err := row.Scan(&n.ID, &n.Title, &n.Message, &n.Category, &n.Scope, &n.Data.EventID, &n.Data.ExternalLink,
		&n.Data.Action, &n.RecipientID, &n.CreatedAt, &allowed, &readBy, &hiddenBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.AllowedUsers, err = parseIDs(allowed); err != nil {
		return nil, err
	}
	if n.ReadBy, err = parseIDs(readBy); err != nil {
		return nil, err
	}
	if n.DeletedBy, err = parseIDs(hiddenBy); err != nil {
		return nil, err
	}
	return &n, nil
}

func replaceAudience(ctx context.Context, tx pgx.Tx, n *models.Notification) error {
	if _, err := tx.Exec(ctx, `DELETE FROM notification_users WHERE notification_id = $1`, n.ID); err != nil {
		return err
	}
	if len(n.AllowedUsers) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `INSERT INTO notification_users (notification_id, user_id)
		SELECT $1, u::uuid FROM unnest($2::text[]) AS u ON CONFLICT DO NOTHING`, n.ID, idStrings(n.AllowedUsers))
	return err
}

// Create inserts the notification and its audience in one transaction.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO notifications (title, message, category, scope, event_id, external_link, action, recipient_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
			n.Title, n.Message, string(n.Category), string(n.Scope), n.Data.EventID, n.Data.ExternalLink, n.Data.Action, n.RecipientID).
			Scan(&n.ID, &n.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		return replaceAudience(ctx, tx, n)
	})
}

// Get returns a notification with its audience and markers.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	return scanFull(r.db.QueryRow(ctx, `SELECT `+fullColumns+` FROM notifications n WHERE n.id = $1`, id))
}

// ListForUser returns notifications visible to userID with a per-user read flag.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications n WHERE `+audienceClause, userID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+baseColumns+`,
		EXISTS (SELECT 1 FROM notification_reads nr WHERE nr.notification_id = n.id AND nr.user_id = $1)
		FROM notifications n WHERE `+audienceClause+`
		ORDER BY n.created_at DESC LIMIT $3 OFFSET $4`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Category, &n.Scope, &n.Data.EventID, &n.Data.ExternalLink,
			&n.Data.Action, &n.RecipientID, &n.CreatedAt, &n.Read); err != nil {
			return nil, 0, err
		}
		list = append(list, n)
	}
	return list, total, rows.Err()
}

// ListAll returns notifications matching f, newest first, with audience and markers.
func (r *Repository) ListAll(ctx context.Context, f Filter, limit, offset int) ([]models.Notification, int, error) {
	const where = `($1 = '' OR n.category = $1) AND ($2 = '' OR n.scope = $2)`
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications n WHERE `+where,
		string(f.Category), string(f.Scope)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+fullColumns+` FROM notifications n WHERE `+where+`
		ORDER BY n.created_at DESC LIMIT $3 OFFSET $4`, string(f.Category), string(f.Scope), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []models.Notification{}
	for rows.Next() {
		n, err := scanFull(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *n)
	}
	return list, total, rows.Err()
}

// Update overwrites the editable fields and the audience.
func (r *Repository) Update(ctx context.Context, n *models.Notification) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE notifications SET title = $2, message = $3, category = $4, scope = $5,
			event_id = $6, external_link = $7, action = $8, recipient_id = $9 WHERE id = $1`,
			n.ID, n.Title, n.Message, string(n.Category), string(n.Scope), n.Data.EventID, n.Data.ExternalLink, n.Data.Action, n.RecipientID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return replaceAudience(ctx, tx, n)
	})
}

// Delete removes a notification and its markers.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Hide soft-deletes the notification for one user.
func (r *Repository) Hide(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `INSERT INTO notification_hides (notification_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, id, userID)
	return err
}

// MarkRead records a read marker; repeated calls are no-ops.
func (r *Repository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `INSERT INTO notification_reads (notification_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, id, userID)
	return err
}
