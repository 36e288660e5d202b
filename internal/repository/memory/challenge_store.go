package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
)

const defaultSweepInterval = 30 * time.Second

// ChallengeStore keeps captcha challenges in process memory. A single background sweeper evicts
// expired entries; Consume is a compare-and-delete under the store mutex.
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]domain.CaptchaChallenge
	now        func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewChallengeStore starts a store whose sweeper runs every interval.
func NewChallengeStore(interval time.Duration) *ChallengeStore {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	s := &ChallengeStore{
		challenges: make(map[string]domain.CaptchaChallenge),
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.sweepLoop(interval)
	return s
}

// WithClock overrides the internal clock, used in tests.
func (s *ChallengeStore) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	s.mu.Lock()
	s.now = clock
	s.mu.Unlock()
}

// Save stores the challenge, replacing any entry with the same id.
func (s *ChallengeStore) Save(_ context.Context, challenge domain.CaptchaChallenge) error {
	if strings.TrimSpace(challenge.ID) == "" {
		return errors.New("challenge id is required")
	}
	s.mu.Lock()
	s.challenges[challenge.ID] = challenge
	s.mu.Unlock()
	return nil
}

// Consume verifies code against the stored challenge. Valid and Expired remove the entry; Mismatch
// counts an attempt and removes the entry once maxAttempts is reached.
func (s *ChallengeStore) Consume(_ context.Context, id, code string, now time.Time, maxAttempts int) (domain.CaptchaResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return domain.CaptchaNotFound, nil
	}
	if now.After(challenge.ExpiresAt) {
		delete(s.challenges, id)
		return domain.CaptchaExpired, nil
	}
	if !strings.EqualFold(challenge.Code, strings.TrimSpace(code)) {
		challenge.Attempts++
		if maxAttempts > 0 && challenge.Attempts >= maxAttempts {
			delete(s.challenges, id)
		} else {
			s.challenges[id] = challenge
		}
		return domain.CaptchaMismatch, nil
	}

	delete(s.challenges, id)
	return domain.CaptchaValid, nil
}

// Len reports how many challenges are held.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// Sweep removes every challenge that expired before the store clock's current time.
func (s *ChallengeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, challenge := range s.challenges {
		if now.After(challenge.ExpiresAt) {
			delete(s.challenges, id)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper and waits for it to exit.
func (s *ChallengeStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return nil
}

func (s *ChallengeStore) sweepLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

var _ port.ChallengeStore = (*ChallengeStore)(nil)
