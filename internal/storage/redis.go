package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisRegistryConfig configures the Redis-backed signature registry.
type RedisRegistryConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	Logger       *slog.Logger
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

type redisRegistry struct {
	client    *redis.Client
	keyPrefix string
	logger    *slog.Logger
}

// NewRedisRegistry initialises a registry backed by Redis. Reservations use
// SET NX so that a signature can only ever be claimed once while its key is
// live.
func NewRedisRegistry(ctx context.Context, cfg RedisRegistryConfig) (SignatureRegistry, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "clipflow:signature"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	registry := &redisRegistry{
		client:    client,
		keyPrefix: prefix,
		logger:    cfg.Logger,
	}
	if registry.logger == nil {
		registry.logger = slog.Default()
	}
	return registry, nil
}

func (r *redisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisRegistry) Reserve(ctx context.Context, signature string, ttl time.Duration) error {
	if signature == "" {
		return fmt.Errorf("signature is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	key := r.keyPrefix + ":" + signature
	ok, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve signature: %w", err)
	}
	if !ok {
		return ErrSignatureReplayed
	}
	return nil
}

func (r *redisRegistry) Close() {
	if err := r.client.Close(); err != nil {
		r.logger.Warn("redis registry close failed", "error", err)
	}
}
