package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"options-scalper-bot/internal/lifecycle"
)

const (
	activeOrderKey = "scalper:active_order"
	lastExitKey    = "scalper:last_exit"
	// Positions close within minutes; the long TTL is only a safety net
	// against orphaned keys.
	activeOrderTTL = 24 * time.Hour
	// Cooldowns span at most one 1h candle; the exit record only has to
	// outlive that.
	lastExitTTL = 2 * time.Hour
)

// RedisStateStore mirrors the active-order snapshot to Redis so a restarted
// process can see what was open. When Redis is unreachable it falls back to
// an in-memory copy; trading never blocks on Redis.
type RedisStateStore struct {
	client *redis.Client
	logger zerolog.Logger

	mu       sync.RWMutex
	fallback *lifecycle.Order
	lastExit *lastExitRecord
}

// lastExitRecord is the persisted form of the exit that armed the cooldown.
type lastExitRecord struct {
	Reason   lifecycle.ExitReason `json:"reason"`
	ExitedAt time.Time            `json:"exited_at"`
}

// NewRedisStateStore connects to Redis. A failed ping is logged, not fatal;
// the store starts in fallback mode.
func NewRedisStateStore(addr, password string, db int, logger zerolog.Logger) *RedisStateStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	store := &RedisStateStore{
		client: client,
		logger: logger.With().Str("component", "RedisStateStore").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		store.logger.Warn().Err(err).Msg("Redis unavailable, using in-memory fallback")
	}
	return store
}

// SaveActiveOrder writes the snapshot.
func (s *RedisStateStore) SaveActiveOrder(ctx context.Context, order *lifecycle.Order) error {
	s.mu.Lock()
	s.fallback = order.Clone()
	s.mu.Unlock()

	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order snapshot: %w", err)
	}
	if err := s.client.Set(ctx, activeOrderKey, payload, activeOrderTTL).Err(); err != nil {
		return fmt.Errorf("failed to write order snapshot to redis: %w", err)
	}
	return nil
}

// ClearActiveOrder removes the snapshot.
func (s *RedisStateStore) ClearActiveOrder(ctx context.Context) error {
	s.mu.Lock()
	s.fallback = nil
	s.mu.Unlock()

	if err := s.client.Del(ctx, activeOrderKey).Err(); err != nil {
		return fmt.Errorf("failed to clear order snapshot in redis: %w", err)
	}
	return nil
}

// LoadActiveOrder returns the stored snapshot, preferring Redis and falling
// back to the in-memory copy. Returns nil when nothing is stored.
func (s *RedisStateStore) LoadActiveOrder(ctx context.Context) (*lifecycle.Order, error) {
	payload, err := s.client.Get(ctx, activeOrderKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.fallback != nil {
			s.logger.Warn().Err(err).Msg("Redis read failed, serving in-memory snapshot")
			return s.fallback.Clone(), nil
		}
		return nil, fmt.Errorf("failed to read order snapshot: %w", err)
	}

	var order lifecycle.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order snapshot: %w", err)
	}
	return &order, nil
}

// SaveLastExit records the exit that armed the cooldown so re-entry stays
// blocked across a restart.
func (s *RedisStateStore) SaveLastExit(ctx context.Context, reason lifecycle.ExitReason, exitedAt time.Time) error {
	record := lastExitRecord{Reason: reason, ExitedAt: exitedAt}

	s.mu.Lock()
	s.lastExit = &record
	s.mu.Unlock()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal exit record: %w", err)
	}
	if err := s.client.Set(ctx, lastExitKey, payload, lastExitTTL).Err(); err != nil {
		return fmt.Errorf("failed to write exit record to redis: %w", err)
	}
	return nil
}

// LoadLastExit returns the stored exit record, preferring Redis and falling
// back to the in-memory copy. Zero values when nothing is stored.
func (s *RedisStateStore) LoadLastExit(ctx context.Context) (lifecycle.ExitReason, time.Time, error) {
	payload, err := s.client.Get(ctx, lastExitKey).Bytes()
	if err == redis.Nil {
		return "", time.Time{}, nil
	}
	if err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.lastExit != nil {
			s.logger.Warn().Err(err).Msg("Redis read failed, serving in-memory exit record")
			return s.lastExit.Reason, s.lastExit.ExitedAt, nil
		}
		return "", time.Time{}, fmt.Errorf("failed to read exit record: %w", err)
	}

	var record lastExitRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to unmarshal exit record: %w", err)
	}
	return record.Reason, record.ExitedAt, nil
}

// Close releases the Redis client.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
