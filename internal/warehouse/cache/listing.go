// Package cache keeps the public in-stock listing in Redis between mutations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abgdnv/warehouse/internal/platform/config"
	"github.com/abgdnv/warehouse/internal/warehouse/store"
	"github.com/redis/go-redis/v9"
)

// InStockKey holds the JSON encoded in-stock listing.
const InStockKey = "warehouse:products:in-stock"

type entry struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	InStockQuantity  int64  `json:"inStockQuantity"`
	ReservedQuantity int64  `json:"reservedQuantity"`
}

// RedisListingCache stores the in-stock listing under InStockKey with a TTL.
type RedisListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisListingCache(client *redis.Client, ttl time.Duration) *RedisListingCache {
	return &RedisListingCache{client: client, ttl: ttl}
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Get returns the cached listing. The boolean is false on a cache miss.
func (c *RedisListingCache) Get(ctx context.Context) ([]store.Product, bool, error) {
	raw, err := c.client.Get(ctx, InStockKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read listing cache: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("failed to decode listing cache: %w", err)
	}
	products := make([]store.Product, len(entries))
	for i, e := range entries {
		products[i] = store.Product{
			ID:               e.ID,
			Name:             e.Name,
			InStockQuantity:  e.InStockQuantity,
			ReservedQuantity: e.ReservedQuantity,
		}
	}
	return products, true, nil
}

// Set replaces the cached listing.
func (c *RedisListingCache) Set(ctx context.Context, products []store.Product) error {
	payload, err := encode(products)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, InStockKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write listing cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached listing.
func (c *RedisListingCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, InStockKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate listing cache: %w", err)
	}
	return nil
}

func encode(products []store.Product) (string, error) {
	entries := make([]entry, len(products))
	for i, p := range products {
		entries[i] = entry{
			ID:               p.ID,
			Name:             p.Name,
			InStockQuantity:  p.InStockQuantity,
			ReservedQuantity: p.ReservedQuantity,
		}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode listing: %w", err)
	}
	return string(payload), nil
}
