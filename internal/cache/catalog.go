package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/opsdash/internal/config"
	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultCatalogKey = "catalog:snapshot"

// CatalogSnapshotCache holds the full list of canonical products as one value.
type CatalogSnapshotCache interface {
	GetSnapshot(ctx context.Context) ([]domain.CanonicalProduct, bool, error)
	SetSnapshot(ctx context.Context, products []domain.CanonicalProduct) error
	Invalidate(ctx context.Context) error
}

type redisCatalogCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

type noopCatalogCache struct{}

// NewCatalogSnapshotCache returns a Redis-backed snapshot cache, or a no-op
// cache when caching is disabled.
func NewCatalogSnapshotCache(cfg config.CacheConfig) (CatalogSnapshotCache, error) {
	if !cfg.Enabled {
		return &noopCatalogCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisCatalogCache{
		client: client,
		key:    snapshotKey(cfg),
		ttl:    ttl,
	}, nil
}

func NewNoopCatalogSnapshotCache() CatalogSnapshotCache {
	return &noopCatalogCache{}
}

func snapshotKey(cfg config.CacheConfig) string {
	if cfg.CatalogSnapshotKey == "" {
		return defaultCatalogKey
	}
	return cfg.CatalogSnapshotKey
}

func (c *redisCatalogCache) GetSnapshot(ctx context.Context) ([]domain.CanonicalProduct, bool, error) {
	payload, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	products, err := decodeSnapshot(payload)
	if err != nil {
		return nil, false, err
	}
	return products, true, nil
}

func (c *redisCatalogCache) SetSnapshot(ctx context.Context, products []domain.CanonicalProduct) error {
	payload, err := encodeSnapshot(products)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisCatalogCache) Invalidate(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, c.key)
}

func (n *noopCatalogCache) GetSnapshot(ctx context.Context) ([]domain.CanonicalProduct, bool, error) {
	return nil, false, nil
}

func (n *noopCatalogCache) SetSnapshot(ctx context.Context, products []domain.CanonicalProduct) error {
	return nil
}

func (n *noopCatalogCache) Invalidate(ctx context.Context) error {
	return nil
}

func encodeSnapshot(products []domain.CanonicalProduct) ([]byte, error) {
	payload, err := json.Marshal(products)
	if err != nil {
		return nil, fmt.Errorf("encode catalog snapshot: %w", err)
	}
	return payload, nil
}

func decodeSnapshot(payload []byte) ([]domain.CanonicalProduct, error) {
	var products []domain.CanonicalProduct
	if err := json.Unmarshal(payload, &products); err != nil {
		return nil, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	return products, nil
}
