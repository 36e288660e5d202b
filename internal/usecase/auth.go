package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/logger"
	"github.com/arklim/access-gateway/internal/infra/security"
)

const tracerName = "github.com/arklim/access-gateway/internal/usecase"

// SessionIssuer signs and parses session tokens.
type SessionIssuer interface {
	Issue(userID, username string) (string, time.Time, error)
	Parse(raw string) (*security.SessionClaims, error)
}

// LoginRequest carries the caller-supplied login fields plus request metadata.
type LoginRequest struct {
	Username    string
	Password    string
	CaptchaID   string
	CaptchaCode string
	IPAddress   string
	UserAgent   string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   domain.UserProfile
}

// RegisterRequest carries the registration form plus request metadata.
type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	Nickname    string
	CaptchaID   string
	CaptchaCode string
	IPAddress   string
	UserAgent   string
}

// AuthDependencies groups the collaborators of AuthService.
type AuthDependencies struct {
	Guard       *AccessGuard
	Policy      PolicySource
	Captcha     *CaptchaService
	Throttle    *LoginThrottle
	Credentials *CredentialService
	Audit       *AuditLog
	Sessions    SessionIssuer
	Events      port.EventPublisher
	Metrics     port.AuthMetrics
	Logger      *zap.Logger
}

// AuthService runs the login and registration flows.
type AuthService struct {
	guard       *AccessGuard
	policy      PolicySource
	captcha     *CaptchaService
	throttle    *LoginThrottle
	credentials *CredentialService
	audit       *AuditLog
	sessions    SessionIssuer
	events      port.EventPublisher
	metrics     port.AuthMetrics
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAuthService validates and stores the dependencies.
func NewAuthService(deps AuthDependencies) (*AuthService, error) {
	switch {
	case deps.Guard == nil:
		return nil, fmt.Errorf("access guard is required")
	case deps.Policy == nil:
		return nil, fmt.Errorf("policy source is required")
	case deps.Captcha == nil:
		return nil, fmt.Errorf("captcha service is required")
	case deps.Credentials == nil:
		return nil, fmt.Errorf("credential service is required")
	case deps.Audit == nil:
		return nil, fmt.Errorf("audit log is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session issuer is required")
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}

	return &AuthService{
		guard:       deps.Guard,
		policy:      deps.Policy,
		captcha:     deps.Captcha,
		throttle:    deps.Throttle,
		credentials: deps.Credentials,
		audit:       deps.Audit,
		sessions:    deps.Sessions,
		events:      deps.Events,
		metrics:     metrics,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login authenticates the caller and issues a session token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer func() {
		endSpan(span, err)
	}()

	if s.guard.IsBlacklisted(ctx, req.IPAddress) {
		s.logger.Warn("login from blacklisted address", zap.String("ip", logger.MaskIP(req.IPAddress)))
		return nil, ErrIPBlocked
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, invalidInput("username and password are required")
	}
	if err := s.checkCaptcha(ctx, req.CaptchaID, req.CaptchaCode); err != nil {
		return nil, err
	}

	user, err := s.credentials.FindByIdentifier(ctx, username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	subject := throttleSubject(user, username)
	if s.throttle.Blocked(ctx, subject) {
		var userID *string
		if user != nil {
			userID = &user.ID
		}
		return nil, s.reject(ctx, req, userID, domain.FailureReasonTooManyAttempts, ErrTooManyAttempts)
	}

	if user == nil {
		s.credentials.VerifyDecoy(ctx, req.Password)
		s.throttle.RecordFailure(ctx, subject)
		return nil, s.reject(ctx, req, nil, domain.FailureReasonUnknownUser, ErrInvalidCredentials)
	}

	ok, err := s.credentials.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.throttle.RecordFailure(ctx, subject)
		return nil, s.reject(ctx, req, &user.ID, domain.FailureReasonBadPassword, ErrInvalidCredentials)
	}

	if user.Status != domain.UserStatusActive {
		return nil, s.reject(ctx, req, &user.ID, domain.FailureReasonAccountDisabled, ErrAccountDisabled)
	}

	// The audit row lands before the login counter moves.
	now := s.now().UTC()
	if err := s.audit.Record(ctx, s.attempt(req, &user.ID, domain.LoginOutcomeSuccess, "", now)); err != nil {
		return nil, err
	}
	if err := s.credentials.RecordLogin(ctx, user.ID, req.IPAddress); err != nil {
		return nil, err
	}
	s.throttle.Reset(ctx, subject)

	token, expiresAt, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	ip := req.IPAddress
	user.LastLoginTime = &now
	user.LastLoginIP = &ip
	user.LoginCount++

	s.logger.Info("login succeeded",
		zap.String("user_id", user.ID),
		zap.String("ip", logger.MaskIP(req.IPAddress)),
	)
	span.SetAttributes(attribute.String("auth.user_id", user.ID))

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Profile: user.Profile()}, nil
}

// Register creates an account when policy allows it.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (profile *domain.UserProfile, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer func() {
		endSpan(span, err)
	}()

	if s.guard.IsBlacklisted(ctx, req.IPAddress) {
		s.logger.Warn("registration from blacklisted address", zap.String("ip", logger.MaskIP(req.IPAddress)))
		return nil, ErrIPBlocked
	}
	if !s.policy.Bool(ctx, domain.ConfigRegisterEnabled, false) {
		return nil, ErrRegistrationDisabled
	}
	if err := s.checkCaptcha(ctx, req.CaptchaID, req.CaptchaCode); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	nickname := strings.TrimSpace(req.Nickname)

	if err := s.credentials.ValidateUsername(ctx, username); err != nil {
		return nil, err
	}
	if err := s.credentials.ValidatePassword(ctx, req.Password, username, email); err != nil {
		return nil, err
	}
	if err := s.credentials.ValidateEmail(email); err != nil {
		return nil, err
	}

	digest, err := s.credentials.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.credentials.Create(ctx, username, email, digest, nickname)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.metrics.Registration("conflict")
		}
		return nil, err
	}
	s.metrics.Registration("success")

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(email)),
		zap.String("ip", logger.MaskIP(req.IPAddress)),
	)
	s.publishRegistered(ctx, *user, req.IPAddress)

	result := user.Profile()
	return &result, nil
}

// Profile returns the sanitized view of the user.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	user, err := s.credentials.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// ChangePassword replaces the password of an authenticated user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return invalidInput("current and new password are required")
	}
	if err := s.credentials.ChangePassword(ctx, userID, current, next); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// SetUserStatus enables or disables userID on behalf of actorID. Operators cannot change their own status.
func (s *AuthService) SetUserStatus(ctx context.Context, actorID, userID string, status domain.UserStatus) (*domain.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidInput("user id is required")
	}
	if userID == actorID {
		return nil, invalidInput("cannot change the status of your own account")
	}
	if err := s.credentials.SetStatus(ctx, userID, status); err != nil {
		return nil, err
	}
	s.logger.Info("user status changed",
		zap.String("user_id", userID),
		zap.String("status", string(status)),
		zap.String("actor", actorID),
	)
	return s.Profile(ctx, userID)
}

// ParseSessionToken validates a bearer token.
func (s *AuthService) ParseSessionToken(raw string) (*security.SessionClaims, error) {
	return s.sessions.Parse(raw)
}

func (s *AuthService) checkCaptcha(ctx context.Context, captchaID, captchaCode string) error {
	if !s.captcha.Required(ctx) {
		return nil
	}
	if strings.TrimSpace(captchaID) == "" || strings.TrimSpace(captchaCode) == "" {
		return ErrCaptchaRequired
	}
	return s.captcha.Verify(ctx, captchaID, captchaCode)
}

// reject audits a failed login and returns cause, or the audit failure when the write did not land.
func (s *AuthService) reject(ctx context.Context, req LoginRequest, userID *string, reason string, cause error) error {
	s.logger.Info("login rejected",
		zap.String("username", req.Username),
		zap.String("reason", reason),
		zap.String("ip", logger.MaskIP(req.IPAddress)),
	)
	if err := s.audit.Record(ctx, s.attempt(req, userID, domain.LoginOutcomeFailure, reason, s.now().UTC())); err != nil {
		return err
	}
	return cause
}

func (s *AuthService) attempt(req LoginRequest, userID *string, outcome domain.LoginOutcome, reason string, at time.Time) domain.LoginAttempt {
	return domain.LoginAttempt{
		ID:            uuid.NewString(),
		UserID:        userID,
		Username:      strings.TrimSpace(req.Username),
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		Outcome:       outcome,
		FailureReason: reason,
		CreatedAt:     at,
	}
}

func (s *AuthService) publishRegistered(ctx context.Context, user domain.User, ip string) {
	if s.events == nil {
		return
	}
	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Username:     user.Username,
		RegisteredAt: user.CreatedAt,
		IPAddress:    ip,
	}
	if user.Email != "" {
		email := user.Email
		event.Email = &email
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered event failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
