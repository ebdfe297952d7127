// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

const redisKeyPrefix = "restream:session:"

// RedisConfig holds Redis connection settings for the session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps sessions in Redis so several daemons behind one proxy
// share logins. Expiry is enforced by key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	s := newRedisStore(client, cfg.TTL)
	s.logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis session store")
	return s, nil
}

func newRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl, logger: xglog.WithComponent("auth")}
}

func (s *RedisStore) Create(ctx context.Context, user string) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+token, user, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return Session{Token: token, User: user, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

func (s *RedisStore) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	user, err := s.client.Get(ctx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return user, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
