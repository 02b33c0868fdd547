// Package snapshot persists the installed forecast in Redis so a restarted
// scheduler can retrain without waiting for the next upstream fetch.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JamesWheadon/Carbon-Intensity/config"
	"github.com/JamesWheadon/Carbon-Intensity/core/forecast"
	"github.com/JamesWheadon/Carbon-Intensity/core/logger"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// DefaultKey holds the snapshot when no key is configured.
const DefaultKey = "carbon:scheduler:forecast"

// RedisStore implements forecast.SnapshotStore. After a Redis error it
// disables itself and behaves as an empty store.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	log    logger.Logger

	mu       sync.RWMutex
	disabled bool
}

var _ forecast.SnapshotStore = (*RedisStore)(nil)

// NewRedisStore connects to cfg.RedisAddr. An unreachable server yields a
// disabled store rather than an error.
func NewRedisStore(cfg config.SnapshotConfig, log logger.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	s := NewRedisStoreWithClient(client, cfg.Key, time.Duration(cfg.TTLHours)*time.Hour, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		s.log.Warnf("redis snapshot unavailable, running without snapshots: %v", err)
		s.disabled = true
		return s
	}
	s.log.Infof("redis snapshot store at %s", cfg.RedisAddr)
	return s
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, key string, ttl time.Duration, log logger.Logger) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &RedisStore{client: client, key: key, ttl: ttl, log: log}
}

// Available reports whether Redis is still in use.
func (s *RedisStore) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled
}

func (s *RedisStore) fail(err error, op string) {
	s.log.Warnf("redis snapshot %s failed, disabling: %v", op, err)
	s.mu.Lock()
	s.disabled = true
	s.mu.Unlock()
}

// Save stores in under the configured key.
func (s *RedisStore) Save(ctx context.Context, in model.Intensities) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(in.Payload())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		s.fail(err, "set")
		return err
	}
	return nil
}

// Load returns the stored forecast or forecast.ErrNotFound.
func (s *RedisStore) Load(ctx context.Context) (model.Intensities, error) {
	if !s.Available() {
		return model.Intensities{}, forecast.ErrNotFound
	}
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Intensities{}, forecast.ErrNotFound
	}
	if err != nil {
		s.fail(err, "get")
		return model.Intensities{}, err
	}
	var p model.IntensitiesPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Warnf("discarding unreadable snapshot: %v", err)
		return model.Intensities{}, forecast.ErrNotFound
	}
	return p.ToIntensities(), nil
}

// Delete removes the stored forecast.
func (s *RedisStore) Delete(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.fail(err, "delete")
		return err
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// New builds the store selected by cfg.Backend. It returns nil when
// snapshots are disabled.
func New(cfg config.SnapshotConfig, log logger.Logger) forecast.SnapshotStore {
	switch cfg.Backend {
	case "redis":
		return NewRedisStore(cfg, log)
	case "memory":
		return forecast.NewMemoryStore()
	default:
		return nil
	}
}
