package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/database"
)

var (
	ErrUserNotFound = middleware.ErrUserNotFound
	ErrEmailTaken   = errors.New("user already exists")
)

// Store is the user persistence used by the handler.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationCode(ctx context.Context, code string) (*models.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) (*models.User, error)
	RecordLogin(ctx context.Context, id uuid.UUID, clearFirstTime bool) (*models.User, error)
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	UpdateProfilePic(ctx context.Context, id uuid.UUID, url, key string) (*models.User, error)
	Search(ctx context.Context, term string, exclude uuid.UUID) ([]models.UserSummary, error)
}

// Repository handles user persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an auth repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, name, role, is_verified, first_time_login, auth_provider,
	profile_pic, profile_pic_key, last_login, verification_token, verification_token_expires_at,
	reset_password_token, reset_password_expires_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsVerified, &u.FirstTimeLogin, &u.AuthProvider,
		&u.ProfilePic, &u.ProfilePicKey, &u.LastLogin, &u.VerificationToken, &u.VerificationTokenExpiresAt,
		&u.ResetPasswordToken, &u.ResetPasswordExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user and fills generated columns.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	q := `INSERT INTO users (email, password_hash, name, role, is_verified, auth_provider, profile_pic,
		verification_token, verification_token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns
	created, err := scanUser(r.db.QueryRow(ctx, q, u.Email, u.PasswordHash, u.Name, string(u.Role), u.IsVerified,
		string(u.AuthProvider), u.ProfilePic, u.VerificationToken, u.VerificationTokenExpiresAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	*u = *created
	return nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// CurrentRole returns the role stored for a user.
func (r *Repository) CurrentRole(ctx context.Context, id uuid.UUID) (models.Role, error) {
	var role models.Role
	err := r.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return role, err
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// GetByVerificationCode returns the user owning an unexpired verification code.
func (r *Repository) GetByVerificationCode(ctx context.Context, code string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users
		WHERE verification_token = $1 AND verification_token_expires_at > NOW()`, code))
}

// MarkVerified sets is_verified and clears the verification code.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `UPDATE users SET is_verified = TRUE, verification_token = NULL,
		verification_token_expires_at = NULL, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id))
}

// RecordLogin updates last_login and optionally clears first_time_login.
func (r *Repository) RecordLogin(ctx context.Context, id uuid.UUID, clearFirstTime bool) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `UPDATE users SET last_login = NOW(),
		first_time_login = CASE WHEN $2 THEN FALSE ELSE first_time_login END, updated_at = NOW()
		WHERE id = $1 RETURNING `+userColumns, id, clearFirstTime))
}

// SetResetToken stores a password reset token.
func (r *Repository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET reset_password_token = $2, reset_password_expires_at = $3, updated_at = NOW()
		WHERE id = $1`, id, token, expiresAt)
	return err
}

// GetByResetToken returns the user owning an unexpired reset token.
func (r *Repository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users
		WHERE reset_password_token = $1 AND reset_password_expires_at > NOW()`, token))
}

// UpdatePassword replaces the password hash and clears any reset token.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, reset_password_token = NULL,
		reset_password_expires_at = NULL, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}

// UpdateProfilePic stores the new picture URL and storage key.
func (r *Repository) UpdateProfilePic(ctx context.Context, id uuid.UUID, url, key string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `UPDATE users SET profile_pic = $2, profile_pic_key = $3, updated_at = NOW()
		WHERE id = $1 RETURNING `+userColumns, id, url, key))
}

// Search returns users whose name or email contains term, excluding one user. An empty term matches everyone.
func (r *Repository) Search(ctx context.Context, term string, exclude uuid.UUID) ([]models.UserSummary, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, email, profile_pic FROM users
		WHERE id <> $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
		ORDER BY name, email LIMIT 50`, exclude, term)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.ProfilePic); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
