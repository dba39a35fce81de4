package catalog

import (
	"context"
	"fmt"

	"github.com/andresuchdata/opsdash/internal/cache"
	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/rs/zerolog/log"
)

// ProductCache is an immutable sku → product snapshot. A nil cache behaves
// as an empty one.
type ProductCache struct {
	bySKU   map[string]domain.CanonicalProduct
	loadErr error
}

// NewProductCache indexes products by SKU. The first product seen for a SKU
// wins; products without a SKU are not indexed.
func NewProductCache(products []domain.CanonicalProduct) *ProductCache {
	bySKU := make(map[string]domain.CanonicalProduct, len(products))
	for _, p := range products {
		if p.SKU == "" {
			continue
		}
		if _, dup := bySKU[p.SKU]; dup {
			continue
		}
		bySKU[p.SKU] = p
	}
	return &ProductCache{bySKU: bySKU}
}

func emptyCache(err error) *ProductCache {
	return &ProductCache{bySKU: map[string]domain.CanonicalProduct{}, loadErr: err}
}

// Get returns a copy of the product stored under sku.
func (c *ProductCache) Get(sku string) (domain.CanonicalProduct, bool) {
	if c == nil {
		return domain.CanonicalProduct{}, false
	}
	p, ok := c.bySKU[sku]
	return p, ok
}

func (c *ProductCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.bySKU)
}

// LoadErr reports why the cache came up empty, if it did.
func (c *ProductCache) LoadErr() error {
	if c == nil {
		return nil
	}
	return c.loadErr
}

// Loader builds product caches from the snapshot cache, falling back to the
// catalog store.
type Loader struct {
	repo     repository.CatalogRepository
	snapshot cache.CatalogSnapshotCache
}

func NewLoader(repo repository.CatalogRepository, snapshot cache.CatalogSnapshotCache) *Loader {
	if snapshot == nil {
		snapshot = cache.NewNoopCatalogSnapshotCache()
	}
	return &Loader{repo: repo, snapshot: snapshot}
}

// Load never fails: a store read failure yields an empty cache carrying the
// error so the caller can surface it.
func (l *Loader) Load(ctx context.Context) *ProductCache {
	products, ok, err := l.snapshot.GetSnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("catalog: snapshot cache read failed")
	}
	if ok {
		log.Debug().Int("count", len(products)).Msg("catalog: product cache served from snapshot")
		return NewProductCache(products)
	}

	products, err = l.repo.ListProducts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("catalog: product cache load failed, continuing with empty cache")
		return emptyCache(fmt.Errorf("load product cache: %w", err))
	}

	if err := l.snapshot.SetSnapshot(ctx, products); err != nil {
		log.Warn().Err(err).Msg("catalog: snapshot cache write failed")
	}

	log.Info().Int("count", len(products)).Msg("catalog: product cache loaded")
	return NewProductCache(products)
}
