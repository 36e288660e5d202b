package port

import (
	"context"
	"time"

	"github.com/arklim/access-gateway/internal/core/domain"
)

// LoginAttemptFilter narrows audit queries.
type LoginAttemptFilter struct {
	UserID   string
	Username string
	Outcome  domain.LoginOutcome
	Since    *time.Time
	Limit    int
	Offset   int
}

// LoginAttemptRepository is the append-only audit log store.
type LoginAttemptRepository interface {
	Append(ctx context.Context, attempt domain.LoginAttempt) error
	List(ctx context.Context, filter LoginAttemptFilter) ([]domain.LoginAttempt, error)
	Count(ctx context.Context, filter LoginAttemptFilter) (int, error)
}
