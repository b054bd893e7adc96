package domain

import (
	"errors"
	"time"
)

// Role is the closed set of privilege levels an account can hold.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// Valid reports whether the role is one of the enumerated values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Duplicate-credential signals surfaced by the store when a uniqueness
// constraint rejects an insert. The orchestrator maps them to field-specific
// conflict errors.
var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
)

// User is the sole persistent entity: an account with salted credentials.
// PasswordHash and Salt are opaque blobs produced only by the credential
// hasher; no code path mutates them after creation.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Salt         string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
