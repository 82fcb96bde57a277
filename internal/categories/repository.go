package categories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/database"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrNameTaken = errors.New("category already exists")
	ErrInUse     = errors.New("category is used by events")
)

// Store is the category persistence used by the handler.
type Store interface {
	List(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, name, description string) (*models.Category, error)
	Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository handles category persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a category repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrNameTaken
		case "23503":
			return ErrInUse
		}
	}
	return err
}

// List returns all categories ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Get returns a category by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return scanCategory(r.db.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM categories WHERE id = $1`, id))
}

// Create inserts a category.
func (r *Repository) Create(ctx context.Context, name, description string) (*models.Category, error) {
	return scanCategory(r.db.QueryRow(ctx, `INSERT INTO categories (name, description) VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`, name, description))
}

// Update changes the provided fields only.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Category, error) {
	return scanCategory(r.db.QueryRow(ctx, `UPDATE categories SET name = COALESCE($2, name),
		description = COALESCE($3, description), updated_at = NOW() WHERE id = $1
		RETURNING id, name, description, created_at, updated_at`, id, name, description))
}

// Delete removes a category that no event references.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
