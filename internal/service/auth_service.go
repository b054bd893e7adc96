package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/safevault/internal/auth"
	"github.com/spec-kit/safevault/internal/config"
	"github.com/spec-kit/safevault/internal/domain"
	"github.com/spec-kit/safevault/internal/events"
	"github.com/spec-kit/safevault/internal/observability"
	"github.com/spec-kit/safevault/internal/repository"
	"github.com/spec-kit/safevault/internal/validation"
	apperrors "github.com/spec-kit/safevault/pkg/util"
)

// RegisterInput carries the raw registration fields. Any role field a client
// may have submitted alongside these never reaches this type; the created
// account is always a regular user.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// AuthService coordinates registration and login flows: input gate, field
// rules, credential hashing and the store. It holds no mutable state; every
// operation is safe to run concurrently.
type AuthService struct {
	users      repository.UserRepository
	gate       *validation.Gate
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	throttle   *LoginThrottle
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Gate       *validation.Gate
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Throttle   *LoginThrottle
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		gate:       deps.Gate,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		throttle:   deps.Throttle,
		logger:     deps.Logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a new account. The pre-check for existing credentials is
// a UX shortcut only; the authoritative uniqueness decision is the store's
// constraint, whose violation is re-mapped here when two registrations race.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := s.validateRegistration(in); err != nil {
		s.metrics.RecordAuthOutcome("register", "validation_failed")
		return nil, err
	}

	username := s.gate.Sanitize(in.Username)
	email := s.gate.Sanitize(in.Email)

	if err := s.checkAvailability(ctx, username, email); err != nil {
		s.metrics.RecordAuthOutcome("register", "duplicate")
		return nil, err
	}

	salt, err := auth.GenerateSalt()
	if err != nil {
		s.logger.Error("salt generation failed", zap.Error(err))
		return nil, apperrors.NewCryptoFailure(err)
	}
	digest, err := auth.HashPassword(in.Password, salt, s.bcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return nil, apperrors.NewCryptoFailure(err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		Salt:         salt,
		Role:         domain.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			s.metrics.RecordAuthOutcome("register", "duplicate")
			return nil, apperrors.NewDuplicateCredential("username", "username is already taken")
		case errors.Is(err, domain.ErrDuplicateEmail):
			s.metrics.RecordAuthOutcome("register", "duplicate")
			return nil, apperrors.NewDuplicateCredential("email", "email is already registered")
		default:
			s.logger.Error("user insert failed", zap.Error(err))
			return nil, apperrors.NewStorageFailure(err)
		}
	}

	s.metrics.RecordAuthOutcome("register", "success")
	s.publish(ctx, events.Event{
		Type:   events.EventUserRegistered,
		UserID: user.ID,
		Payload: events.UserRegisteredPayload{
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		},
	})
	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return user, nil
}

// Login authenticates an account by username or email. A missing account and
// a wrong password both return (nil, nil): the caller cannot distinguish the
// two, which resists enumeration.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*domain.User, error) {
	if err := s.gate.Validate(usernameOrEmail); err != nil {
		return nil, apperrors.NewValidationError("invalid input detected", nil)
	}
	if password == "" {
		return nil, apperrors.NewValidationError("password is required", nil)
	}
	identifier := s.gate.Sanitize(usernameOrEmail)

	if !s.throttle.Allow(ctx, identifier) {
		s.metrics.RecordAuthOutcome("login", "throttled")
		return nil, apperrors.NewTooManyAttempts()
	}

	user, err := s.users.GetActiveByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.recordLoginFailure(ctx, identifier)
			return nil, nil
		}
		s.logger.Error("login lookup failed", zap.Error(err))
		return nil, apperrors.NewStorageFailure(err)
	}

	if !auth.VerifyPassword(password, user.Salt, user.PasswordHash) {
		s.recordLoginFailure(ctx, identifier)
		return nil, nil
	}

	s.throttle.Reset(ctx, identifier)
	s.metrics.RecordAuthOutcome("login", "success")
	s.publish(ctx, events.Event{
		Type:    events.EventLoginSucceeded,
		UserID:  user.ID,
		Payload: events.LoginSucceededPayload{Username: user.Username},
	})
	return user, nil
}

// IsUsernameAvailable reports whether no account holds the username.
func (s *AuthService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	if err := s.gate.Validate(username); err != nil {
		return false, apperrors.NewValidationError("invalid input detected", nil)
	}
	exists, err := s.users.UsernameExists(ctx, s.gate.Sanitize(username))
	if err != nil {
		return false, apperrors.NewStorageFailure(err)
	}
	return !exists, nil
}

// IsEmailAvailable reports whether no account holds the email.
func (s *AuthService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	if err := s.gate.Validate(email); err != nil {
		return false, apperrors.NewValidationError("invalid input detected", nil)
	}
	exists, err := s.users.EmailExists(ctx, s.gate.Sanitize(email))
	if err != nil {
		return false, apperrors.NewStorageFailure(err)
	}
	return !exists, nil
}

func (s *AuthService) validateRegistration(in RegisterInput) error {
	if err := validation.ValidateUsername(in.Username); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "username"})
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "email"})
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "password"})
	}
	if in.Password != in.ConfirmPassword {
		return apperrors.NewValidationError(validation.ErrPasswordMismatch.Error(),
			map[string]any{"field": "confirmPassword"})
	}

	// The deny-list gate runs on every field, the password included; the
	// password is gated but never sanitized, since sanitization would alter
	// its semantics.
	gated := []struct {
		field string
		value string
	}{
		{"username", in.Username},
		{"email", in.Email},
		{"password", in.Password},
	}
	for _, g := range gated {
		if err := s.gate.Validate(g.value); err != nil {
			return apperrors.NewValidationError("invalid input detected",
				map[string]any{"field": g.field})
		}
	}
	return nil
}

// checkAvailability is the friendly duplicate pre-check. It is inherently
// racy (check-then-insert); Create's constraint mapping is the source of
// truth.
func (s *AuthService) checkAvailability(ctx context.Context, username, email string) error {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return apperrors.NewDuplicateCredential("username", "username is already taken")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewStorageFailure(err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return apperrors.NewDuplicateCredential("email", "email is already registered")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewStorageFailure(err)
	}
	return nil
}

func (s *AuthService) recordLoginFailure(ctx context.Context, identifier string) {
	s.throttle.RecordFailure(ctx, identifier)
	s.metrics.RecordAuthOutcome("login", "failure")
	s.publish(ctx, events.Event{
		Type:    events.EventLoginFailed,
		Payload: events.LoginFailedPayload{Identifier: identifier},
	})
	s.logger.Warn("failed login attempt", zap.String("identifier", identifier))
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit publish failed", zap.Error(err))
	}
}
