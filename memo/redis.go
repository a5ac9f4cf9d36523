// SPDX-License-Identifier: MIT

package memo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jmoldow/lazykit/internal/log"
)

// RedisStore is a Redis-backed implementation of Store.
//
// Redis errors degrade to misses so a flaky connection slows callers down
// instead of failing them.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
	stats  counters
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(cfg RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis store")

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

// Get retrieves a value from Redis.
func (s *RedisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.stats.misses.Add(1)
		return nil, false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldKey, key).Msg("redis get failed")
		s.stats.misses.Add(1)
		return nil, false
	}

	s.stats.hits.Add(1)
	return val, true
}

// Set stores a value in Redis with TTL.
// A non-positive ttl stores the value without expiry.
func (s *RedisStore) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldKey, key).Msg("redis set failed")
		return
	}

	s.stats.sets.Add(1)
}

// Delete removes a value from Redis.
func (s *RedisStore) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldKey, key).Msg("redis delete failed")
	}
}

// Clear removes all values from the store (flushes current DB).
func (s *RedisStore) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.client.FlushDB(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("redis flush failed")
	}
}

// Stats returns store statistics.
func (s *RedisStore) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("redis dbsize failed")
		size = 0
	}

	return Stats{
		Hits:        s.stats.hits.Load(),
		Misses:      s.stats.misses.Load(),
		Sets:        s.stats.sets.Load(),
		Evictions:   s.stats.evictions.Load(),
		CurrentSize: int(size),
	}
}

// Name identifies the store in spans and logs.
func (s *RedisStore) Name() string { return "redis" }

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// HealthCheck checks if Redis is available.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
