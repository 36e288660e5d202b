package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/repository"
)

type fakeConfigRepo struct {
	mu      sync.Mutex
	entries map[string]domain.ConfigEntry
	loads   int
	listErr error
	gate    chan struct{}

	// beforeUpdate runs ahead of the write inside UpdateValue.
	beforeUpdate func()
}

func newFakeConfigRepo(values map[string]string) *fakeConfigRepo {
	repo := &fakeConfigRepo{entries: make(map[string]domain.ConfigEntry)}
	for k, v := range values {
		repo.entries[k] = domain.ConfigEntry{Key: k, Value: v, Module: strings.SplitN(k, ".", 2)[0], ValueType: "string", Editable: true}
	}
	return repo
}

func (r *fakeConfigRepo) ListAll(ctx context.Context) ([]domain.ConfigEntry, error) {
	r.mu.Lock()
	r.loads++
	gate := r.gate
	err := r.listErr
	entries := make([]domain.ConfigEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *fakeConfigRepo) UpdateValue(_ context.Context, key, value string) (*domain.ConfigEntry, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	entry.Value = value
	entry.UpdatedAt = time.Now()
	r.entries[key] = entry
	return &entry, nil
}

func (r *fakeConfigRepo) Insert(_ context.Context, entry domain.ConfigEntry) (*domain.ConfigEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.Key]; ok {
		return nil, repository.ErrConflict
	}
	r.entries[entry.Key] = entry
	return &entry, nil
}

func (r *fakeConfigRepo) set(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[key]
	entry.Key = key
	entry.Value = value
	entry.Editable = true
	r.entries[key] = entry
}

func (r *fakeConfigRepo) loadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// fakeUserRepo enforces unique usernames and emails the way the database constraints do.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
	err   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.users {
		if existing.Username == user.Username || (user.Email != "" && existing.Email == user.Email) {
			return repository.ErrConflict
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, user := range r.users {
		if user.Username == identifier || (user.Email != "" && user.Email == identifier) {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) RecordLogin(_ context.Context, id string, ip string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLoginTime = &at
	user.LastLoginIP = &ip
	user.LoginCount++
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id string, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = hash
	user.UpdatedAt = at
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) UpdateStatus(_ context.Context, id string, status domain.UserStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Status = status
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
	err      error
}

func (r *fakeAttemptRepo) Append(_ context.Context, attempt domain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *fakeAttemptRepo) List(_ context.Context, filter port.LoginAttemptFilter) ([]domain.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := r.filter(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if filter.Offset >= len(matched) {
		return []domain.LoginAttempt{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *fakeAttemptRepo) Count(_ context.Context, filter port.LoginAttemptFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.filter(filter)), nil
}

func (r *fakeAttemptRepo) filter(filter port.LoginAttemptFilter) []domain.LoginAttempt {
	matched := make([]domain.LoginAttempt, 0)
	for _, a := range r.attempts {
		if filter.Username != "" && a.Username != filter.Username {
			continue
		}
		if filter.Outcome != "" && a.Outcome != filter.Outcome {
			continue
		}
		if filter.UserID != "" && (a.UserID == nil || *a.UserID != filter.UserID) {
			continue
		}
		matched = append(matched, a)
	}
	return matched
}

func (r *fakeAttemptRepo) all() []domain.LoginAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LoginAttempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

type fakeEvents struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	attempted  []domain.LoginAttemptedEvent
	changed    []domain.ConfigChangedEvent
	err        error
}

func (e *fakeEvents) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, event)
	return e.err
}

func (e *fakeEvents) PublishLoginAttempted(_ context.Context, event domain.LoginAttemptedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempted = append(e.attempted, event)
	return e.err
}

func (e *fakeEvents) PublishConfigChanged(_ context.Context, event domain.ConfigChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changed = append(e.changed, event)
	return e.err
}

// fakeHasher is a reversible stand-in so tests do not pay for Argon2.
type fakeHasher struct {
	mu       sync.Mutex
	verifies int
}

func (h *fakeHasher) Hash(_ context.Context, password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(_ context.Context, password, encoded string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, errors.New("malformed digest")
	}
	return encoded == "hashed:"+password, nil
}

func (h *fakeHasher) verifyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

type fakeRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	err      error
}

func newFakeRateLimitStore() *fakeRateLimitStore {
	return &fakeRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *fakeRateLimitStore) TrimWindow(_ context.Context, id string, window time.Duration, ref time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	kept := s.attempts[id][:0]
	for _, at := range s.attempts[id] {
		if at.After(ref.Add(-window)) {
			kept = append(kept, at)
		}
	}
	s.attempts[id] = kept
	return nil
}

func (s *fakeRateLimitStore) CountAttempts(_ context.Context, id string, window time.Duration, ref time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	count := 0
	for _, at := range s.attempts[id] {
		if at.After(ref.Add(-window)) && !at.After(ref) {
			count++
		}
	}
	return count, nil
}

func (s *fakeRateLimitStore) RecordAttempt(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.attempts[id] = append(s.attempts[id], at)
	return nil
}

func (s *fakeRateLimitStore) OldestAttempt(_ context.Context, id string, window time.Duration, ref time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, at := range s.attempts[id] {
		if at.After(ref.Add(-window)) {
			return at, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (s *fakeRateLimitStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, id)
	return nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(start time.Time) *fixedClock {
	return &fixedClock{now: start}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
