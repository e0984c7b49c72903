// Package rediscache stores Auth Center answers in Redis so that replicas of a
// service share them.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/bionicotaku/lingo-utils-authx"
)

const (
	defaultAddr   = "localhost:6379"
	defaultPrefix = "authx:perm:"
)

// Config for the Redis-backed cache. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB,default=0"`
	// KeyPrefix for all keys. ENV: AUTHX_CACHE_PREFIX
	KeyPrefix string `env:"AUTHX_CACHE_PREFIX,default=authx:perm:"`
}

// Cache implements authx.PermissionCache.
type Cache struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ authx.PermissionCache = (*Cache)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = defaultAddr
	}
	cl := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(cl, cfg.KeyPrefix), nil
}

// NewFromEnv builds a Cache using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Cache, error) {
	var cfg Config
	_ = envdecode.Decode(&cfg)
	return New(ctx, cfg)
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Cache {
	if keyPrefix == "" {
		keyPrefix = defaultPrefix
	}
	return &Cache{client: client, keyPrefix: keyPrefix}
}

// Close closes the Redis client.
func (c *Cache) Close() error { return c.client.Close() }

func (c *Cache) key(k string) string { return c.keyPrefix + k }

// Get returns the cached answer for key.
func (c *Cache) Get(ctx context.Context, key string) (bool, bool, error) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	switch v {
	case "1":
		return true, true, nil
	case "0":
		return false, true, nil
	}
	return false, false, fmt.Errorf("unexpected cached value %q", v)
}

// Set stores an answer for ttl.
func (c *Cache) Set(ctx context.Context, key string, allowed bool, ttl time.Duration) error {
	v := "0"
	if allowed {
		v = "1"
	}
	return c.client.Set(ctx, c.key(key), v, ttl).Err()
}

// Invalidate drops every cached answer for the prefix.
func (c *Cache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
