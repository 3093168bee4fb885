package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storekit/config-hub/pkg/core"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisStore persists one JSON document per shop key. Configuration has no
// TTL; a shop's document lives until the next write replaces it.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "confighub:shop:"
	}

	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

func (r *RedisStore) key(shop string) string {
	return r.keyPrefix + shop
}

func (r *RedisStore) Get(ctx context.Context, shop string) (*core.Document, error) {
	data, err := r.client.Get(ctx, r.key(shop)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: shop=%s", core.ErrConfigNotFound, shop)
		}
		return nil, err
	}
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &doc, nil
}

func (r *RedisStore) Put(ctx context.Context, shop string, doc *core.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return r.client.Set(ctx, r.key(shop), data, 0).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
