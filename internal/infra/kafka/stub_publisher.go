package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/logger"
)

// StubPublisher logs events instead of sending them. Used when kafka.enabled is false.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	base := []zap.Field{zap.String("event_type", eventType), zap.Time("timestamp", at.UTC())}
	p.logger.Debug("event not published, kafka disabled", append(base, fields...)...)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	email := ""
	if event.Email != nil {
		email = *event.Email
	}
	p.logEvent(EventUserRegistered, event.RegisteredAt,
		zap.String("user_id", event.UserID),
		zap.String("email", logger.MaskEmail(email)),
	)
	return nil
}

func (p *StubPublisher) PublishLoginAttempted(_ context.Context, event domain.LoginAttemptedEvent) error {
	p.logEvent(EventLoginAttempted, event.AttemptedAt,
		zap.String("outcome", string(event.Outcome)),
		zap.String("reason", event.FailureReason),
		zap.String("ip", logger.MaskIP(event.IPAddress)),
	)
	return nil
}

func (p *StubPublisher) PublishConfigChanged(_ context.Context, event domain.ConfigChangedEvent) error {
	p.logEvent(EventConfigChanged, event.ChangedAt,
		zap.String("key", event.Key),
		zap.String("action", event.Action),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
