package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/security"
)

const (
	captchaCodeLength         = 4
	defaultCaptchaExpiryMins  = 2
	defaultCaptchaMaxAttempts = 5
)

// CaptchaService issues and verifies single-use numeric challenges.
type CaptchaService struct {
	store   port.ChallengeStore
	policy  PolicySource
	metrics port.AuthMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewCaptchaService wires the challenge store with policy.
func NewCaptchaService(store port.ChallengeStore, policy PolicySource, metrics port.AuthMetrics, logger *zap.Logger) *CaptchaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}
	return &CaptchaService{store: store, policy: policy, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *CaptchaService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Required reports whether login and registration must present a captcha. Unreadable policy
// requires one.
func (s *CaptchaService) Required(ctx context.Context) bool {
	return s.policy.Bool(ctx, domain.ConfigCaptchaEnabled, true)
}

// Issue creates and stores a fresh challenge.
func (s *CaptchaService) Issue(ctx context.Context) (domain.CaptchaChallenge, error) {
	code, err := security.GenerateNumericCode(captchaCodeLength)
	if err != nil {
		return domain.CaptchaChallenge{}, fmt.Errorf("generate captcha code: %w", err)
	}

	minutes := s.policy.Int(ctx, domain.ConfigCaptchaExpiry, defaultCaptchaExpiryMins)
	if minutes <= 0 {
		minutes = defaultCaptchaExpiryMins
	}

	now := s.now()
	challenge := domain.CaptchaChallenge{
		ID:        uuid.NewString(),
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(minutes) * time.Minute),
	}
	if err := s.store.Save(ctx, challenge); err != nil {
		return domain.CaptchaChallenge{}, fmt.Errorf("store captcha: %w", err)
	}
	return challenge, nil
}

// Check consumes the challenge and reports the raw outcome.
func (s *CaptchaService) Check(ctx context.Context, id, code string) (domain.CaptchaResult, error) {
	id = strings.TrimSpace(id)
	code = strings.TrimSpace(code)
	if id == "" || code == "" {
		s.metrics.CaptchaVerified(string(domain.CaptchaNotFound))
		return domain.CaptchaNotFound, nil
	}

	maxAttempts := s.policy.Int(ctx, domain.ConfigCaptchaMaxAttempts, defaultCaptchaMaxAttempts)
	result, err := s.store.Consume(ctx, id, code, s.now(), maxAttempts)
	if err != nil {
		return "", fmt.Errorf("consume captcha: %w", err)
	}
	s.metrics.CaptchaVerified(string(result))
	return result, nil
}

// Verify returns nil for a valid answer and a *CaptchaError otherwise.
func (s *CaptchaService) Verify(ctx context.Context, id, code string) error {
	result, err := s.Check(ctx, id, code)
	if err != nil {
		return err
	}
	if result != domain.CaptchaValid {
		s.logger.Debug("captcha rejected", zap.String("captcha_id", id), zap.String("reason", string(result)))
		return &CaptchaError{Reason: result}
	}
	return nil
}
