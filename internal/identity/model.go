package identity

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a registered account. PasswordHash never leaves this
// package; externally visible data flows through Summary.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the public-safe projection of a User.
type Summary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Summary returns the projection handed to transport and event payloads.
func (u User) Summary() Summary {
	return Summary{ID: u.ID, Email: u.Email, Role: u.Role}
}

// Profile holds the mutable descriptive data attached one-to-one to a User.
type Profile struct {
	UserID      string         `json:"userId"`
	Name        *string        `json:"name"`
	Phone       *string        `json:"phone"`
	Preferences map[string]any `json:"preferences"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NormalizeEmail trims and lowercases an email address. Every lookup and
// write goes through this before touching the store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
