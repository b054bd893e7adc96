package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/safevault/internal/auth"
	"github.com/spec-kit/safevault/internal/config"
	"github.com/spec-kit/safevault/internal/domain"
	"github.com/spec-kit/safevault/internal/events"
	"github.com/spec-kit/safevault/internal/observability"
	"github.com/spec-kit/safevault/internal/validation"
	apperrors "github.com/spec-kit/safevault/pkg/util"
)

// fakeUserRepo is an in-memory store enforcing the same uniqueness rules the
// database constraints provide.
type fakeUserRepo struct {
	users  map[string]*domain.User
	nextID int

	// createErr, when set, simulates a concurrent insert winning the race
	// after the pre-check passed.
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Username == user.Username {
			return domain.ErrDuplicateUsername
		}
		if existing.Email == user.Email {
			return domain.ErrDuplicateEmail
		}
	}
	f.nextID++
	user.ID = strconv.Itoa(f.nextID)
	user.CreatedAt = time.Now()
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := f.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, user := range f.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, user := range f.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) GetActiveByUsernameOrEmail(_ context.Context, identifier string) (*domain.User, error) {
	for _, user := range f.users {
		if (user.Username == identifier || user.Email == identifier) && user.IsActive {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) List(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(f.users))
	for _, user := range f.users {
		clone := *user
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeUserRepo) SetActive(_ context.Context, id string, active bool) error {
	user, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsActive = active
	now := time.Now()
	user.UpdatedAt = &now
	return nil
}

func (f *fakeUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	user, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Role = role
	now := time.Now()
	user.UpdatedAt = &now
	return nil
}

func (f *fakeUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	_, err := f.GetByUsername(context.Background(), username)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUserRepo) EmailExists(_ context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(context.Background(), email)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()
	gate, err := validation.NewGate()
	require.NoError(t, err)

	return NewAuthService(config.AuthConfig{BcryptCost: 4}, AuthDependencies{
		UserRepo:   repo,
		Gate:       gate,
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
		Throttle:   NewLoginThrottle(nil, config.AuthConfig{}, zap.NewNop()),
		Logger:     zap.NewNop(),
	})
}

func validInput() RegisterInput {
	return RegisterInput{
		Username:        "alice_92",
		Email:           "alice@example.com",
		Password:        "SecureP@ss123",
		ConfirmPassword: "SecureP@ss123",
	}
}

func registerUser(t *testing.T, svc *AuthService, in RegisterInput) *domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestRegisterCreatesActiveUserWithForcedRole(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	user := registerUser(t, svc, validInput())

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice_92", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEmpty(t, user.Salt)
	assert.NotEqual(t, "SecureP@ss123", user.PasswordHash)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestRegisterNeverStoresPlaintextOrClientRole(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	// RegisterInput has no role field at all; whatever a client submits, the
	// stored record is a regular user.
	user := registerUser(t, svc, validInput())

	stored := repo.users[user.ID]
	require.NotNil(t, stored)
	assert.Equal(t, domain.RoleUser, stored.Role)
	assert.True(t, auth.VerifyPassword("SecureP@ss123", stored.Salt, stored.PasswordHash))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	registerUser(t, svc, validInput())

	in := validInput()
	in.Email = "other@example.com"
	_, err := svc.Register(context.Background(), in)
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "DUPLICATE_CREDENTIAL", domainErr.Code)
	assert.Equal(t, "username", domainErr.Details["field"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	registerUser(t, svc, validInput())

	in := validInput()
	in.Username = "bob_17"
	_, err := svc.Register(context.Background(), in)
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "DUPLICATE_CREDENTIAL", domainErr.Code)
	assert.Equal(t, "email", domainErr.Details["field"])
}

func TestRegisterMapsInsertRaceToDuplicate(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	// The pre-check sees no collision, but the insert hits the constraint:
	// a concurrent registration won the race.
	repo.createErr = domain.ErrDuplicateUsername

	_, err := svc.Register(context.Background(), validInput())
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "DUPLICATE_CREDENTIAL", domainErr.Code)
	assert.Equal(t, "username", domainErr.Details["field"])
}

func TestRegisterValidationFailures(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"short username", func(in *RegisterInput) { in.Username = "ab" }, "username"},
		{"bad username chars", func(in *RegisterInput) { in.Username = "user@name!" }, "username"},
		{"bad email", func(in *RegisterInput) { in.Email = "invalid-email" }, "email"},
		{"weak password", func(in *RegisterInput) {
			in.Password = "simplepass"
			in.ConfirmPassword = "simplepass"
		}, "password"},
		{"mismatched confirmation", func(in *RegisterInput) { in.ConfirmPassword = "DifferentP@ss123" }, "confirmPassword"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			require.Error(t, err)

			var domainErr *apperrors.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
			assert.Equal(t, tc.field, domainErr.Details["field"])
		})
	}
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	registerUser(t, svc, validInput())

	byUsername, err := svc.Login(context.Background(), "alice_92", "SecureP@ss123")
	require.NoError(t, err)
	require.NotNil(t, byUsername)

	byEmail, err := svc.Login(context.Background(), "alice@example.com", "SecureP@ss123")
	require.NoError(t, err)
	require.NotNil(t, byEmail)

	assert.Equal(t, byUsername.ID, byEmail.ID)
}

func TestLoginDoesNotRevealWhyItFailed(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	registerUser(t, svc, validInput())

	// wrong password for an existing account
	wrongPw, errWrongPw := svc.Login(context.Background(), "alice_92", "WrongP@ss123")
	// nonexistent account
	noUser, errNoUser := svc.Login(context.Background(), "mallory_1", "WrongP@ss123")

	assert.Nil(t, wrongPw)
	assert.Nil(t, noUser)
	assert.NoError(t, errWrongPw)
	assert.NoError(t, errNoUser)
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	user := registerUser(t, svc, validInput())

	require.NoError(t, repo.SetActive(context.Background(), user.ID, false))

	got, err := svc.Login(context.Background(), "alice_92", "SecureP@ss123")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoginRejectsMaliciousIdentifier(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), "' OR '1'='1", "SecureP@ss123")
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestAvailabilityChecks(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	registerUser(t, svc, validInput())

	taken, err := svc.IsUsernameAvailable(context.Background(), "alice_92")
	require.NoError(t, err)
	assert.False(t, taken)

	free, err := svc.IsUsernameAvailable(context.Background(), "bob_17")
	require.NoError(t, err)
	assert.True(t, free)

	emailTaken, err := svc.IsEmailAvailable(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.False(t, emailTaken)

	emailFree, err := svc.IsEmailAvailable(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.True(t, emailFree)
}
