package port

import (
	"context"

	"github.com/arklim/access-gateway/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishLoginAttempted(ctx context.Context, event domain.LoginAttemptedEvent) error
	PublishConfigChanged(ctx context.Context, event domain.ConfigChangedEvent) error
}
