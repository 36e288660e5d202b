package port

import (
	"context"
	"time"

	"github.com/arklim/access-gateway/internal/core/domain"
)

// ChallengeStore keeps captcha challenges until they are consumed or expire.
// Consume must be atomic per challenge id: of concurrent consumers presenting the correct code exactly one
// observes domain.CaptchaValid.
type ChallengeStore interface {
	Save(ctx context.Context, challenge domain.CaptchaChallenge) error
	Consume(ctx context.Context, id, code string, now time.Time, maxAttempts int) (domain.CaptchaResult, error)
	Close() error
}
