package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campus-hub/backend/internal/auth/token"
	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// CookieName is the HTTP-only session cookie carrying the JWT.
	CookieName = "token"
)

// ErrUserNotFound is returned by a RoleLookup when the token's user no longer exists.
var ErrUserNotFound = errors.New("user not found")

// RoleLookup returns a user's current role.
type RoleLookup interface {
	CurrentRole(ctx context.Context, id uuid.UUID) (models.Role, error)
}

// TokenFromRequest returns the session token from the cookie, falling back to a Bearer header.
func TokenFromRequest(c *gin.Context) string {
	if v, err := c.Cookie(CookieName); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// JWT returns a middleware that validates the session token and sets user claims in context.
// When roles is set the role comes from it rather than the token, so demotions apply immediately.
func JWT(jwtService *token.JWTService, roles RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TokenFromRequest(c)
		if raw == "" {
			response.Unauthorized(c, "Unauthorized - no token provided")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(raw)
		if err != nil {
			response.Unauthorized(c, "Unauthorized - invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		role := claims.Role
		if roles != nil {
			current, err := roles.CurrentRole(c.Request.Context(), claims.UserID)
			if errors.Is(err, ErrUserNotFound) {
				response.Unauthorized(c, "Unauthorized - user not found")
				c.Abort()
				return
			}
			if err != nil {
				response.Internal(c, "failed to load user")
				c.Abort()
				return
			}
			role = string(current)
		}
		c.Set(ContextUserRole, role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// UserID returns the authenticated user's id. Only valid behind JWT.
func UserID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextUserID).(uuid.UUID)
}

// UserRole returns the authenticated user's role, empty when unauthenticated.
func UserRole(c *gin.Context) models.Role {
	v, _ := c.Get(ContextUserRole)
	s, _ := v.(string)
	return models.Role(s)
}
