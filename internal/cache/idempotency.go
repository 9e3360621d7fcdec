// Package cache содержит кэш повторов оформления заказа в Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss возвращается, если ключ идемпотентности отсутствует в кэше.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "checkout:idem:"

// IdempotencyCache хранит соответствие ключа идемпотентности и идентификатора заказа.
type IdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyCache создаёт кэш поверх клиента Redis.
func NewIdempotencyCache(client *redis.Client, ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyCache{client: client, ttl: ttl}
}

// GetOrderID возвращает идентификатор заказа, сохранённый для ключа.
func (c *IdempotencyCache) GetOrderID(ctx context.Context, key string) (string, error) {
	id, err := c.client.Get(ctx, cacheKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return id, nil
}

// SetOrderID запоминает идентификатор заказа для ключа. Существующее значение не перезаписывается.
func (c *IdempotencyCache) SetOrderID(ctx context.Context, key, orderID string) error {
	if err := c.client.SetNX(ctx, cacheKey(key), orderID, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (c *IdempotencyCache) Close() error {
	return c.client.Close()
}

func cacheKey(key string) string {
	return keyPrefix + key
}
