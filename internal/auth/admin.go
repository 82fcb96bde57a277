package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/utils"
)

// EnsureDefaultAdmin creates the bootstrap admin account when no user owns email.
func EnsureDefaultAdmin(ctx context.Context, store Store, email, password string, logger *zap.Logger) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := store.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Event management admin user",
		Role:         models.RoleAdmin,
		IsVerified:   true,
		AuthProvider: models.ProviderLocal,
	}
	if err := store.Create(ctx, admin); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("default admin user created", zap.String("email", email))
	return nil
}
