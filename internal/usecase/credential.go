package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/security"
	"github.com/arklim/access-gateway/internal/repository"
)

const (
	defaultUsernameMinLength = 5
	defaultUsernameMaxLength = 20
	defaultPasswordMinLength = 5
	defaultPasswordMaxLength = 20
	maxEmailLength           = 254

	decoyPassword = "decoy-password-for-timing-9"
)

// CredentialService owns user records, credential policy and password hashing.
type CredentialService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	policy PolicySource
	logger *zap.Logger
	now    func() time.Time

	decoyOnce sync.Once
	decoy     string
	decoyErr  error
}

// NewCredentialService wires the service.
func NewCredentialService(users port.UserRepository, hasher port.PasswordHasher, policy PolicySource, logger *zap.Logger) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{users: users, hasher: hasher, policy: policy, logger: logger, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *CredentialService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ValidateUsername applies the username policy.
func (s *CredentialService) ValidateUsername(ctx context.Context, username string) error {
	bounds := s.bounds(ctx, domain.ConfigUsernameMinLength, domain.ConfigUsernameMaxLength, defaultUsernameMinLength, defaultUsernameMaxLength)
	return security.UsernameValidator(bounds).Validate(username)
}

// ValidatePassword applies the password policy. userInputs feed the strength estimator.
func (s *CredentialService) ValidatePassword(ctx context.Context, password string, userInputs ...string) error {
	bounds := s.bounds(ctx, domain.ConfigPasswordMinLength, domain.ConfigPasswordMaxLength, defaultPasswordMinLength, defaultPasswordMaxLength)
	minStrength := s.policy.Int(ctx, domain.ConfigPasswordMinStrength, 0)
	return security.PasswordValidator(bounds, minStrength, userInputs...).Validate(password)
}

// ValidateEmail accepts an empty value; otherwise it must be a bare address.
func (s *CredentialService) ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > maxEmailLength {
		return &security.CredentialValidationError{
			Field:   security.FieldEmail,
			Code:    "format",
			Message: "email address is not valid",
		}
	}
	return nil
}

// Hash produces a digest for password.
func (s *CredentialService) Hash(ctx context.Context, password string) (string, error) {
	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return digest, nil
}

// Verify checks password against digest.
func (s *CredentialService) Verify(ctx context.Context, password, digest string) (bool, error) {
	ok, err := s.hasher.Verify(ctx, password, digest)
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return ok, nil
}

// VerifyDecoy spends the same hashing effort as a real verification without matching anything.
func (s *CredentialService) VerifyDecoy(ctx context.Context, password string) {
	s.decoyOnce.Do(func() {
		s.decoy, s.decoyErr = s.hasher.Hash(context.WithoutCancel(ctx), decoyPassword)
	})
	if s.decoyErr != nil {
		s.logger.Warn("decoy digest unavailable", zap.Error(s.decoyErr))
		return
	}
	_, _ = s.hasher.Verify(ctx, password, s.decoy)
}

// FindByIdentifier looks a user up by username or email.
func (s *CredentialService) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// GetByID loads a user by id.
func (s *CredentialService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Create inserts an active user. Duplicates detected by the store surface as ErrAlreadyExists.
func (s *CredentialService) Create(ctx context.Context, username, email, passwordHash, nickname string) (*domain.User, error) {
	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Nickname:     nickname,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.Nickname == "" {
		user.Nickname = username
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// RecordLogin stamps a successful login.
func (s *CredentialService) RecordLogin(ctx context.Context, id, ip string) error {
	if err := s.users.RecordLogin(ctx, id, ip, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// UpdatePassword stores a new digest.
func (s *CredentialService) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if err := s.users.UpdatePassword(ctx, id, passwordHash, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ChangePassword verifies current, validates next and stores its digest.
func (s *CredentialService) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.Verify(ctx, current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.ValidatePassword(ctx, next, user.Username, user.Email); err != nil {
		return err
	}
	if err := security.RequireDifferentFrom(current).Validate(next); err != nil {
		return err
	}

	digest, err := s.Hash(ctx, next)
	if err != nil {
		return err
	}
	return s.UpdatePassword(ctx, id, digest)
}

// SetStatus enables or disables an account.
func (s *CredentialService) SetStatus(ctx context.Context, id string, status domain.UserStatus) error {
	if status != domain.UserStatusActive && status != domain.UserStatusDisabled {
		return invalidInput("unknown status %q", status)
	}
	if err := s.users.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (s *CredentialService) bounds(ctx context.Context, minKey, maxKey string, minDef, maxDef int) security.LengthBounds {
	minLen := s.policy.Int(ctx, minKey, minDef)
	maxLen := s.policy.Int(ctx, maxKey, maxDef)
	if minLen <= 0 {
		minLen = minDef
	}
	if maxLen < minLen {
		maxLen = maxDef
		if maxLen < minLen {
			maxLen = minLen
		}
	}
	return security.LengthBounds{Min: minLen, Max: maxLen}
}
