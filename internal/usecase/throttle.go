package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/security"
)

const (
	defaultLoginMaxRetry = 5
	defaultLoginLockTime = 600
)

// LoginThrottle locks an account out after login.password.maxRetry failures inside
// login.password.lockTime seconds. Store failures never block a login.
type LoginThrottle struct {
	store  port.RateLimitStore
	policy PolicySource
	logger *zap.Logger
	now    func() time.Time
}

// NewLoginThrottle returns a throttle; a nil store disables it.
func NewLoginThrottle(store port.RateLimitStore, policy PolicySource, logger *zap.Logger) *LoginThrottle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginThrottle{store: store, policy: policy, logger: logger, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (t *LoginThrottle) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// Blocked reports whether subject has exhausted its failures for the current window.
func (t *LoginThrottle) Blocked(ctx context.Context, subject string) bool {
	maxRetry, window, ok := t.limits(ctx)
	if !ok {
		return false
	}

	id := throttleKey(subject)
	now := t.now()
	if err := t.store.TrimWindow(ctx, id, window, now); err != nil {
		t.logger.Warn("login throttle trim failed", zap.Error(err))
		return false
	}
	count, err := t.store.CountAttempts(ctx, id, window, now)
	if err != nil {
		t.logger.Warn("login throttle count failed", zap.Error(err))
		return false
	}
	return count >= maxRetry
}

// RecordFailure counts one failed attempt against subject.
func (t *LoginThrottle) RecordFailure(ctx context.Context, subject string) {
	if _, _, ok := t.limits(ctx); !ok {
		return
	}
	if err := t.store.RecordAttempt(ctx, throttleKey(subject), t.now()); err != nil {
		t.logger.Warn("login throttle record failed", zap.Error(err))
	}
}

// Reset clears the failure history after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, subject string) {
	if t == nil || t.store == nil {
		return
	}
	if err := t.store.Clear(ctx, throttleKey(subject)); err != nil {
		t.logger.Warn("login throttle reset failed", zap.Error(err))
	}
}

func (t *LoginThrottle) limits(ctx context.Context) (int, time.Duration, bool) {
	if t == nil || t.store == nil {
		return 0, 0, false
	}
	maxRetry := t.policy.Int(ctx, domain.ConfigLoginMaxRetry, defaultLoginMaxRetry)
	if maxRetry <= 0 {
		return 0, 0, false
	}
	lockSeconds := t.policy.Int(ctx, domain.ConfigLoginLockTime, defaultLoginLockTime)
	if lockSeconds <= 0 {
		lockSeconds = defaultLoginLockTime
	}
	return maxRetry, time.Duration(lockSeconds) * time.Second, true
}

// throttleSubject names the account a login attempt counts against. A resolved user is
// always counted under its own username, whichever identifier the caller typed.
func throttleSubject(user *domain.User, identifier string) string {
	if user != nil {
		return user.Username
	}
	return identifier
}

// throttleKey keeps raw usernames out of the rate-limit store.
func throttleKey(subject string) string {
	return security.HashToken(strings.ToLower(strings.TrimSpace(subject)))
}
