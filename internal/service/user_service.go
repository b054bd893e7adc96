package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/safevault/internal/domain"
	"github.com/spec-kit/safevault/internal/events"
	"github.com/spec-kit/safevault/internal/repository"
	apperrors "github.com/spec-kit/safevault/pkg/util"
)

// UserService provides the admin directory operations: listing accounts,
// toggling their active flag and reassigning roles. Deactivation is the
// deletion substitute; accounts are never physically removed.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *UserService {
	return &UserService{users: users, dispatcher: dispatcher, logger: logger}
}

// ListUsers returns all accounts ordered by username.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	return users, nil
}

// GetUser returns a single account by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageFailure(err)
	}
	return user, nil
}

// ToggleUserStatus flips the account's active flag. A deactivated account
// can no longer authenticate.
func (s *UserService) ToggleUserStatus(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	newActive := !user.IsActive
	if err := s.users.SetActive(ctx, id, newActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageFailure(err)
	}

	user.IsActive = newActive
	now := time.Now()
	user.UpdatedAt = &now

	s.publish(ctx, events.Event{
		Type:    events.EventUserStatusToggled,
		UserID:  user.ID,
		Payload: events.UserStatusToggledPayload{IsActive: newActive},
	})
	s.logger.Info("user status toggled",
		zap.String("user_id", id),
		zap.Bool("is_active", newActive),
	)
	return user, nil
}

// UpdateUserRole assigns one of the enumerated roles to the account.
func (s *UserService) UpdateUserRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role specified",
			map[string]any{"field": "role"})
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	oldRole := user.Role

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageFailure(err)
	}

	user.Role = role
	now := time.Now()
	user.UpdatedAt = &now

	s.publish(ctx, events.Event{
		Type:    events.EventUserRoleChanged,
		UserID:  user.ID,
		Payload: events.UserRoleChangedPayload{OldRole: oldRole, NewRole: role},
	})
	s.logger.Info("user role updated",
		zap.String("user_id", id),
		zap.String("role", string(role)),
	)
	return user, nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit publish failed", zap.Error(err))
	}
}
