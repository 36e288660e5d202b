package port

import (
	"context"
	"time"

	"github.com/arklim/access-gateway/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
// Create must rely on storage-level unique constraints and report duplicates as repository.ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	RecordLogin(ctx context.Context, id string, ip string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error
}
