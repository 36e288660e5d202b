package usecase

import "context"

// PolicySource is the typed view of runtime policy consumed by the access core.
type PolicySource interface {
	Bool(ctx context.Context, key string, onError bool) bool
	Int(ctx context.Context, key string, def int) int
	String(ctx context.Context, key string) (string, error)
}

var _ PolicySource = (*ConfigStore)(nil)
