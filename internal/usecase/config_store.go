package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/repository"
)

const (
	configActionUpdated = "updated"
	configActionCreated = "created"
)

type configSnapshot struct {
	entries    map[string]domain.ConfigEntry
	generation uint64
}

func newConfigSnapshot(entries []domain.ConfigEntry, generation uint64) *configSnapshot {
	snap := &configSnapshot{
		entries:    make(map[string]domain.ConfigEntry, len(entries)),
		generation: generation,
	}
	for _, entry := range entries {
		snap.entries[entry.Key] = entry
	}
	return snap
}

func (s *configSnapshot) with(entry domain.ConfigEntry) *configSnapshot {
	next := &configSnapshot{
		entries:    make(map[string]domain.ConfigEntry, len(s.entries)+1),
		generation: s.generation,
	}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	next.entries[entry.Key] = entry
	return next
}

// ConfigStore serves runtime policy from an immutable in-memory snapshot of sys_config.
// Readers never block on writers; writers persist first and then publish a fresh copy.
type ConfigStore struct {
	repo    port.ConfigRepository
	events  port.EventPublisher
	metrics port.AuthMetrics
	logger  *zap.Logger

	snapshot   atomic.Pointer[configSnapshot]
	generation atomic.Uint64
	loads      singleflight.Group
	writeMu    sync.Mutex
}

// NewConfigStore constructs a store over repo. events and metrics are optional.
func NewConfigStore(repo port.ConfigRepository, events port.EventPublisher, metrics port.AuthMetrics, logger *zap.Logger) *ConfigStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}
	return &ConfigStore{repo: repo, events: events, metrics: metrics, logger: logger}
}

// Init warms the cache so the first request does not pay for the load.
func (s *ConfigStore) Init(ctx context.Context) error {
	if _, err := s.current(ctx); err != nil {
		return fmt.Errorf("warm config cache: %w", err)
	}
	return nil
}

// Shutdown drops the cached snapshot.
func (s *ConfigStore) Shutdown() {
	s.Invalidate()
}

// Invalidate discards the snapshot; the next read reloads from storage. Loads already in flight
// will not install their result.
func (s *ConfigStore) Invalidate() {
	s.writeMu.Lock()
	s.generation.Add(1)
	s.snapshot.Store(nil)
	s.writeMu.Unlock()
}

// Get returns the value stored under key.
func (s *ConfigStore) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return "", false, err
	}
	entry, ok := snap.entries[key]
	if !ok {
		return "", false, nil
	}
	return entry.Value, true, nil
}

// GetAll returns every key and value.
func (s *ConfigStore) GetAll(ctx context.Context) (map[string]string, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(snap.entries))
	for key, entry := range snap.entries {
		values[key] = entry.Value
	}
	return values, nil
}

// GetByModule returns the keys and values belonging to module.
func (s *ConfigStore) GetByModule(ctx context.Context, module string) (map[string]string, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for key, entry := range snap.entries {
		if entry.Module == module {
			values[key] = entry.Value
		}
	}
	return values, nil
}

// Entries lists every entry with metadata, ordered by module then key.
func (s *ConfigStore) Entries(ctx context.Context) ([]domain.ConfigEntry, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.ConfigEntry, 0, len(snap.entries))
	for _, entry := range snap.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Module != entries[j].Module {
			return entries[i].Module < entries[j].Module
		}
		return entries[i].Key < entries[j].Key
	})
	return entries, nil
}

// Update writes value for an existing editable key.
func (s *ConfigStore) Update(ctx context.Context, key, value, actor string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalidInput("config key is required")
	}

	snap, err := s.current(ctx)
	if err != nil {
		return err
	}
	if entry, ok := snap.entries[key]; ok && !entry.Editable {
		return ErrConfigReadOnly
	}

	stored, err := s.repo.UpdateValue(ctx, key, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("update config %s: %w", key, err)
	}

	s.publish(*stored)
	s.announce(ctx, *stored, configActionUpdated, actor)
	return nil
}

// Add inserts a new key.
func (s *ConfigStore) Add(ctx context.Context, entry domain.ConfigEntry, actor string) error {
	entry.Key = strings.TrimSpace(entry.Key)
	if entry.Key == "" {
		return invalidInput("config key is required")
	}
	if entry.ValueType == "" {
		entry.ValueType = "string"
	}

	stored, err := s.repo.Insert(ctx, entry)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConfigConflict
		}
		return fmt.Errorf("insert config %s: %w", entry.Key, err)
	}

	s.publish(*stored)
	s.announce(ctx, *stored, configActionCreated, actor)
	return nil
}

// Bool reads key as the literal "true". Storage failures return onError.
func (s *ConfigStore) Bool(ctx context.Context, key string, onError bool) bool {
	value, _, err := s.Get(ctx, key)
	if err != nil {
		s.logger.Warn("config unavailable, failing closed",
			zap.String("key", key),
			zap.Bool("assumed", onError),
			zap.Error(err),
		)
		return onError
	}
	return value == "true"
}

// Int reads key as a decimal integer, falling back to def when missing, unparsable or unavailable.
func (s *ConfigStore) Int(ctx context.Context, key string, def int) int {
	value, ok, err := s.Get(ctx, key)
	if err != nil {
		s.logger.Warn("config unavailable, using default",
			zap.String("key", key),
			zap.Int("default", def),
			zap.Error(err),
		)
		return def
	}
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return n
}

// String reads key, returning "" when missing.
func (s *ConfigStore) String(ctx context.Context, key string) (string, error) {
	value, _, err := s.Get(ctx, key)
	return value, err
}

func (s *ConfigStore) current(ctx context.Context) (*configSnapshot, error) {
	if snap := s.snapshot.Load(); snap != nil {
		return snap, nil
	}

	generation := s.generation.Load()
	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := s.loads.Do(strconv.FormatUint(generation, 10), func() (any, error) {
		if snap := s.snapshot.Load(); snap != nil && snap.generation == generation {
			return snap, nil
		}
		entries, err := s.repo.ListAll(loadCtx)
		if err != nil {
			s.metrics.ConfigLoad("error")
			return nil, err
		}
		s.metrics.ConfigLoad("ok")

		snap := newConfigSnapshot(entries, generation)
		s.writeMu.Lock()
		if s.generation.Load() == generation && s.snapshot.Load() == nil {
			s.snapshot.Store(snap)
		}
		s.writeMu.Unlock()
		return snap, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load config: %w", repository.ErrUnavailable, err)
	}
	return result.(*configSnapshot), nil
}

// publish installs entry into the live snapshot when that snapshot is still current.
// With no snapshot a reload may already be reading rows older than entry, so its
// generation is retired and the next read loads again.
func (s *ConfigStore) publish(entry domain.ConfigEntry) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap := s.snapshot.Load()
	if snap == nil {
		s.generation.Add(1)
		return
	}
	if snap.generation != s.generation.Load() {
		return
	}
	s.snapshot.Store(snap.with(entry))
}

func (s *ConfigStore) announce(ctx context.Context, entry domain.ConfigEntry, action, actor string) {
	s.logger.Info("config changed",
		zap.String("key", entry.Key),
		zap.String("action", action),
		zap.String("actor", actor),
	)
	if s.events == nil {
		return
	}
	event := domain.ConfigChangedEvent{
		EventID:   uuid.NewString(),
		Key:       entry.Key,
		Value:     entry.Value,
		Action:    action,
		ChangedBy: actor,
		ChangedAt: time.Now().UTC(),
	}
	if err := s.events.PublishConfigChanged(ctx, event); err != nil {
		s.logger.Warn("publish config changed event failed", zap.String("key", entry.Key), zap.Error(err))
	}
}
