package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductCacheFirstSKUWins(t *testing.T) {
	c := NewProductCache([]domain.CanonicalProduct{
		{SKU: "A", Name: "first"},
		{SKU: "A", Name: "second"},
		{SKU: "", Name: "no sku"},
		{SKU: "B", Name: "b"},
	})

	assert.Equal(t, 2, c.Len())
	p, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, "first", p.Name)

	_, ok = c.Get("")
	assert.False(t, ok)
	assert.NoError(t, c.LoadErr())
}

func TestNilProductCacheIsEmpty(t *testing.T) {
	var c *ProductCache
	_, ok := c.Get("A")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
	assert.NoError(t, c.LoadErr())
}

func TestLoaderReadsStoreAndFillsSnapshot(t *testing.T) {
	repo := newFakeCatalogRepo()
	repo.addRawDoc("a", `{"sku":"316-12-350x2","name":"Roll","active":true,"category":"bubble_wrap","bubble_size":"3/16"}`)
	snapshot := &fakeSnapshotCache{}

	c := NewLoader(repo, snapshot).Load(context.Background())
	require.Equal(t, 1, c.Len())
	p, ok := c.Get("316-12-350x2")
	require.True(t, ok)
	assert.Equal(t, "3/16", p.BubbleWrap().BubbleSize)
	assert.Equal(t, 1, snapshot.sets)
	assert.Len(t, snapshot.products, 1)
}

func TestLoaderPrefersSnapshot(t *testing.T) {
	repo := newFakeCatalogRepo()
	snapshot := &fakeSnapshotCache{hit: true, products: []domain.CanonicalProduct{{SKU: "CACHED"}}}

	c := NewLoader(repo, snapshot).Load(context.Background())
	_, ok := c.Get("CACHED")
	assert.True(t, ok)
	assert.Zero(t, repo.listCalls)
}

func TestLoaderFallsBackWhenSnapshotFails(t *testing.T) {
	repo := newFakeCatalogRepo(domain.RawProductRecord{ID: "a", SKU: "A", Name: "a"})
	snapshot := &fakeSnapshotCache{getErr: errors.New("redis down")}

	c := NewLoader(repo, snapshot).Load(context.Background())
	assert.Equal(t, 1, c.Len())
	assert.NoError(t, c.LoadErr())
}

func TestLoaderDegradesToEmptyCache(t *testing.T) {
	repo := newFakeCatalogRepo()
	repo.listErr = errors.New("store offline")

	c := NewLoader(repo, nil).Load(context.Background())
	require.NotNil(t, c)
	assert.Zero(t, c.Len())
	assert.ErrorContains(t, c.LoadErr(), "store offline")
}
