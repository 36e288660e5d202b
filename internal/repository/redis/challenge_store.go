package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
)

const (
	defaultChallengePrefix = "captcha"
	defaultExpiryGrace     = 30 * time.Second

	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// consumeScript returns 0 not found, 1 valid, 2 expired, 3 mismatch.
var consumeScript = red.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'code', 'expires_at', 'attempts')
if not v[1] then
  return 0
end
local now = tonumber(ARGV[2])
if now > tonumber(v[2]) then
  redis.call('DEL', KEYS[1])
  return 2
end
if string.lower(v[1]) ~= string.lower(ARGV[1]) then
  local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  local max = tonumber(ARGV[3])
  if max > 0 and attempts >= max then
    redis.call('DEL', KEYS[1])
  end
  return 3
end
redis.call('DEL', KEYS[1])
return 1
`)

// ChallengeStore keeps captcha challenges in Redis hashes. The key outlives the challenge by a grace
// period so expiry is reported as Expired rather than NotFound.
type ChallengeStore struct {
	client *red.Client
	prefix string
	grace  time.Duration
}

// NewChallengeStore constructs a Redis-backed challenge store.
func NewChallengeStore(client *red.Client, keyPrefix string, grace time.Duration) *ChallengeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	if grace <= 0 {
		grace = defaultExpiryGrace
	}
	return &ChallengeStore{client: client, prefix: prefix, grace: grace}
}

// Save persists the challenge with a TTL derived from its expiry.
func (s *ChallengeStore) Save(ctx context.Context, challenge domain.CaptchaChallenge) error {
	switch {
	case strings.TrimSpace(challenge.ID) == "":
		return errors.New("challenge id is required")
	case strings.TrimSpace(challenge.Code) == "":
		return errors.New("challenge code is required")
	}

	ttl := challenge.ExpiresAt.Sub(challenge.CreatedAt) + s.grace
	if ttl <= s.grace {
		return errors.New("challenge expiry must follow creation")
	}

	key := s.key(challenge.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      challenge.Code,
		fieldCreatedAt: strconv.FormatInt(challenge.CreatedAt.UnixMilli(), 10),
		fieldExpiresAt: strconv.FormatInt(challenge.ExpiresAt.UnixMilli(), 10),
		fieldAttempts:  strconv.Itoa(challenge.Attempts),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store captcha: %w", err)
	}
	return nil
}

// Consume checks the code and deletes the challenge in one server-side step.
func (s *ChallengeStore) Consume(ctx context.Context, id, code string, now time.Time, maxAttempts int) (domain.CaptchaResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.CaptchaNotFound, nil
	}

	outcome, err := consumeScript.Run(ctx, s.client, []string{s.key(id)}, strings.TrimSpace(code), now.UnixMilli(), maxAttempts).Int()
	if err != nil {
		return "", fmt.Errorf("redis consume captcha: %w", err)
	}

	switch outcome {
	case 1:
		return domain.CaptchaValid, nil
	case 2:
		return domain.CaptchaExpired, nil
	case 3:
		return domain.CaptchaMismatch, nil
	default:
		return domain.CaptchaNotFound, nil
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *ChallengeStore) Close() error {
	return nil
}

func (s *ChallengeStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

var _ port.ChallengeStore = (*ChallengeStore)(nil)
