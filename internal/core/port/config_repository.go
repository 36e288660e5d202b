package port

import (
	"context"

	"github.com/arklim/access-gateway/internal/core/domain"
)

// ConfigRepository persists policy entries in sys_config.
type ConfigRepository interface {
	ListAll(ctx context.Context) ([]domain.ConfigEntry, error)
	UpdateValue(ctx context.Context, key, value string) (*domain.ConfigEntry, error)
	Insert(ctx context.Context, entry domain.ConfigEntry) (*domain.ConfigEntry, error)
}
