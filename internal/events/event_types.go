package events

import (
	"time"

	"github.com/spec-kit/safevault/internal/domain"
)

// EventType enumerates supported security audit event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
	EventUserStatusToggled EventType = "user_status_toggled"
	EventUserRoleChanged   EventType = "user_role_changed"
)

// Event represents a security-relevant occurrence emitted by services.
// Payloads never carry passwords, hashes or salts.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
}

// LoginSucceededPayload payload.
type LoginSucceededPayload struct {
	Username string `json:"username"`
}

// LoginFailedPayload payload. Identifier is the sanitized login input; it
// does not distinguish unknown accounts from wrong passwords.
type LoginFailedPayload struct {
	Identifier string `json:"identifier"`
}

// UserStatusToggledPayload payload.
type UserStatusToggledPayload struct {
	IsActive bool `json:"is_active"`
}

// UserRoleChangedPayload payload.
type UserRoleChangedPayload struct {
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}
