package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// AuthProvider records how an account signs in.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

// User represents a platform user.
type User struct {
	ID                         uuid.UUID    `json:"_id"`
	Email                      string       `json:"email"`
	PasswordHash               string       `json:"-"`
	Name                       string       `json:"name"`
	Role                       Role         `json:"role"`
	IsVerified                 bool         `json:"isVerified"`
	FirstTimeLogin             bool         `json:"firstTimeLogin"`
	AuthProvider               AuthProvider `json:"authProvider"`
	ProfilePic                 *string      `json:"profilePic,omitempty"`
	ProfilePicKey              *string      `json:"-"`
	LastLogin                  time.Time    `json:"lastLogin"`
	VerificationToken          *string      `json:"-"`
	VerificationTokenExpiresAt *time.Time   `json:"-"`
	ResetPasswordToken         *string      `json:"-"`
	ResetPasswordExpiresAt     *time.Time   `json:"-"`
	CreatedAt                  time.Time    `json:"createdAt"`
	UpdatedAt                  time.Time    `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// UserSummary is the populated form of a user reference.
type UserSummary struct {
	ID         uuid.UUID `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	ProfilePic *string   `json:"profilePic,omitempty"`
}

// Summary converts User to UserSummary.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, ProfilePic: u.ProfilePic}
}
