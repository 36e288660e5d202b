package usecase

import (
	"context"
	"fmt"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/logger"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditLog records login attempts durably and mirrors them onto the event bus.
type AuditLog struct {
	repo    port.LoginAttemptRepository
	events  port.EventPublisher
	metrics port.AuthMetrics
	logger  *zap.Logger
}

// NewAuditLog constructs the audit service. events and metrics are optional.
func NewAuditLog(repo port.LoginAttemptRepository, events port.EventPublisher, metrics port.AuthMetrics, log *zap.Logger) *AuditLog {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}
	return &AuditLog{repo: repo, events: events, metrics: metrics, logger: log}
}

// Record appends attempt. A failed write is returned to the caller; event publishing is best effort.
func (a *AuditLog) Record(ctx context.Context, attempt domain.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}

	if err := a.repo.Append(ctx, attempt); err != nil {
		a.logger.Error("login audit write failed",
			zap.String("username", attempt.Username),
			zap.String("ip", logger.MaskIP(attempt.IPAddress)),
			zap.Error(err),
		)
		return fmt.Errorf("append login attempt: %w", err)
	}
	a.metrics.LoginAttempt(string(attempt.Outcome), attempt.FailureReason)

	if a.events != nil {
		event := domain.LoginAttemptedEvent{
			EventID:       attempt.ID,
			UserID:        attempt.UserID,
			Username:      attempt.Username,
			IPAddress:     attempt.IPAddress,
			Outcome:       attempt.Outcome,
			FailureReason: attempt.FailureReason,
			AttemptedAt:   attempt.CreatedAt,
		}
		if err := a.events.PublishLoginAttempted(ctx, event); err != nil {
			a.logger.Warn("publish login attempted event failed", zap.String("attempt_id", attempt.ID), zap.Error(err))
		}
	}
	return nil
}

// List returns a page of attempts with the total number of matches.
func (a *AuditLog) List(ctx context.Context, filter port.LoginAttemptFilter) ([]domain.LoginAttempt, int, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultAuditPageSize
	case filter.Limit > maxAuditPageSize:
		filter.Limit = maxAuditPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	attempts, err := a.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list login attempts: %w", err)
	}
	total, err := a.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count login attempts: %w", err)
	}
	return attempts, total, nil
}
