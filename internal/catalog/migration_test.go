package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 23, 8, 30, 0, 0, time.UTC) }

func seedRepo() *fakeCatalogRepo {
	repo := newFakeCatalogRepo(
		domain.RawProductRecord{ID: "a", SKU: "316-12-350x2", Name: "3/16 12 Double", Category: "bubbleWrap"},
		domain.RawProductRecord{ID: "b", SKU: "INSTA-15x50", Name: "Instapak foam", Category: "instapak"},
		domain.RawProductRecord{ID: "c", SKU: "", Name: "Nameless", Category: "leica"},
		domain.RawProductRecord{ID: "d", SKU: "MG2-48", Name: "Tape", Category: "mg2"},
	)
	repo.addRawDoc("e", `{"sku": 12`)
	return repo
}

func TestJobRunIsolatesRecordFailures(t *testing.T) {
	repo := seedRepo()
	repo.upsertErrs["d"] = errors.New("write timeout")
	snapshot := &fakeSnapshotCache{invalidateErr: errors.New("redis unavailable")}

	result, err := NewJob(repo, WithSnapshotCache(snapshot)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 3, result.ErrorCount)
	require.Len(t, result.Failures, 3)
	assert.Equal(t, "c", result.Failures[0].ID)
	assert.Equal(t, ErrMissingSKU.Error(), result.Failures[0].Error)
	assert.Equal(t, "d", result.Failures[1].ID)
	assert.Equal(t, "MG2-48", result.Failures[1].SKU)
	assert.Equal(t, "e", result.Failures[2].ID)

	assert.Equal(t, []string{"a", "b"}, repo.writes)
	assert.Equal(t, 1, snapshot.invalidated)

	var stored domain.CanonicalProduct
	require.NoError(t, json.Unmarshal(repo.doc("a"), &stored))
	assert.Equal(t, domain.CategoryBubbleWrap, stored.Category)
	require.NotNil(t, stored.BubbleWrap())
	assert.Equal(t, "double", stored.BubbleWrap().RollType)
}

func TestJobRunTwiceIsStable(t *testing.T) {
	repo := seedRepo()
	job := NewJob(repo)

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	first := map[string]string{"a": string(repo.doc("a")), "b": string(repo.doc("b"))}

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.SuccessCount)

	assert.JSONEq(t, first["a"], string(repo.doc("a")))
	assert.JSONEq(t, first["b"], string(repo.doc("b")))
}

func TestJobRunBacksUpBeforeWriting(t *testing.T) {
	repo := seedRepo()
	repo.docs = repo.docs[:4]
	store := &fakeObjectStorage{repo: repo}

	result, err := NewJob(repo, WithBackup(store, "backups"), withClock(fixedNow)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "backups/catalog-20250623T083000Z.json", result.BackupKey)
	require.Contains(t, store.uploads, result.BackupKey)
	assert.Equal(t, 0, store.writesAtUpload)

	var backedUp []map[string]any
	require.NoError(t, json.Unmarshal(store.uploads[result.BackupKey], &backedUp))
	assert.Len(t, backedUp, 4)
	assert.Equal(t, "a", backedUp[0]["id"])
}

func TestJobRunAbortsWhenBackupFails(t *testing.T) {
	repo := seedRepo()
	repo.docs = repo.docs[:4]
	store := &fakeObjectStorage{uploadErr: errors.New("bucket missing")}

	result, err := NewJob(repo, WithBackup(store, "backups")).Run(context.Background())
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "bucket missing")
	assert.Empty(t, repo.writes)
}

func TestJobRunReadFailure(t *testing.T) {
	repo := newFakeCatalogRepo()
	repo.listErr = errors.New("store offline")

	_, err := NewJob(repo).Run(context.Background())
	assert.ErrorContains(t, err, "store offline")
}

func TestJobRunStopsOnCancellation(t *testing.T) {
	repo := seedRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewJob(repo, WithWriteDelay(time.Hour)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, []string{"a"}, repo.writes)
}

func TestJobRunPausesBetweenWrites(t *testing.T) {
	repo := newFakeCatalogRepo(
		domain.RawProductRecord{ID: "a", SKU: "A"},
		domain.RawProductRecord{ID: "b", SKU: "B"},
		domain.RawProductRecord{ID: "c", SKU: "C"},
	)

	start := time.Now()
	result, err := NewJob(repo, WithWriteDelay(10*time.Millisecond)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.SuccessCount)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestJobVerify(t *testing.T) {
	repo := seedRepo()
	job := NewJob(repo)

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	repo.addRawDoc("f", `{"sku":"OLD-1","name":"Not migrated","category":"Bubble Wrap"}`)

	report, err := job.Verify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 1, report.Distribution[domain.CategoryBubbleWrap])
	assert.Equal(t, 1, report.Distribution[domain.CategoryInstapak])
	assert.Equal(t, 1, report.Distribution[domain.CategoryTape])
	assert.Equal(t, 1, report.Distribution[domain.CategoryLeica])
	assert.Equal(t, 1, report.Unrecognized)
	assert.Equal(t, Completeness{Total: 1, Complete: 1, Ratio: 1}, report.Completeness[domain.CategoryBubbleWrap])
	assert.Equal(t, Completeness{Total: 1, Complete: 1, Ratio: 1}, report.Completeness[domain.CategoryInstapak])
}

func TestBuildVerifyReportCompleteness(t *testing.T) {
	width := 12
	density, pack := 15, 50
	products := []domain.CanonicalProduct{
		{Category: domain.CategoryBubbleWrap, Attrs: &domain.BubbleWrapAttrs{BubbleSize: "3/16", Width: &width, RollType: "single"}},
		{Category: domain.CategoryBubbleWrap, Attrs: &domain.BubbleWrapAttrs{BubbleSize: "3/16"}},
		{Category: domain.CategoryBubbleWrap},
		{Category: domain.CategoryInstapak, Attrs: &domain.InstapakAttrs{Density: &density, PackSize: &pack}},
		{Category: domain.CategoryLeica},
	}

	report := BuildVerifyReport(products)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 3, report.Distribution[domain.CategoryBubbleWrap])
	bw := report.Completeness[domain.CategoryBubbleWrap]
	assert.Equal(t, 3, bw.Total)
	assert.Equal(t, 1, bw.Complete)
	assert.InDelta(t, 1.0/3.0, bw.Ratio, 1e-9)
	assert.Equal(t, 1.0, report.Completeness[domain.CategoryInstapak].Ratio)
	assert.NotContains(t, report.Completeness, domain.CategoryLeica)
}

func TestPreview(t *testing.T) {
	records := []domain.RawProductRecord{
		{ID: "a", SKU: "316-12-350x2", Name: "3/16 12 Double"},
		{ID: "b", SKU: "18-24-350x1", Name: "1/8 24 Single"},
		{ID: "c", SKU: "DISTO-X3", Name: "Disto", Category: "leica", Subcategory: "disto"},
	}

	report := Preview(records)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, 2, report.Distribution[domain.CategoryBubbleWrap])
	assert.Equal(t, "a", report.Examples[domain.CategoryBubbleWrap].ID)
	assert.Equal(t, "disto", report.Entries[2].Original.SubCategory)
	assert.Equal(t, "distance_meter", report.Entries[2].Normalized.Subcategory)
}

func TestPreviewStoreDoesNotWrite(t *testing.T) {
	repo := seedRepo()
	report, err := NewJob(repo).PreviewStore(context.Background(), 2)
	require.NoError(t, err)

	assert.Len(t, report.Entries, 2)
	assert.Empty(t, repo.writes)
	assert.True(t, strings.HasPrefix(report.Entries[1].Original.SKU, "INSTA"))
}
