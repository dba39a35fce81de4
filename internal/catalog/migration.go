// Package catalog migrates the product catalog to its canonical taxonomy and
// serves read-only product snapshots to the dashboard.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/andresuchdata/opsdash/internal/cache"
	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/andresuchdata/opsdash/internal/storage"
	"github.com/andresuchdata/opsdash/internal/taxonomy"
	"github.com/rs/zerolog/log"
)

// ErrMissingSKU marks a catalog document that has no SKU to key on.
var ErrMissingSKU = errors.New("record has no sku")

// Failure describes one record the migration could not write.
type Failure struct {
	ID    string `json:"id"`
	SKU   string `json:"sku,omitempty"`
	Error string `json:"error"`
}

// Result summarizes a migration run.
type Result struct {
	SuccessCount int       `json:"successCount"`
	ErrorCount   int       `json:"errorCount"`
	Failures     []Failure `json:"failures,omitempty"`
	BackupKey    string    `json:"backupKey,omitempty"`
}

func (r *Result) fail(id, sku string, err error) {
	r.ErrorCount++
	r.Failures = append(r.Failures, Failure{ID: id, SKU: sku, Error: err.Error()})
}

// Job normalizes every catalog document and writes it back in place.
type Job struct {
	repo         repository.CatalogRepository
	backup       storage.ObjectStorage
	backupPrefix string
	snapshot     cache.CatalogSnapshotCache
	delay        time.Duration
	now          func() time.Time
}

type Option func(*Job)

// WithBackup uploads the untouched documents under prefix before any write.
func WithBackup(store storage.ObjectStorage, prefix string) Option {
	return func(j *Job) {
		j.backup = store
		j.backupPrefix = prefix
	}
}

// WithSnapshotCache invalidates the product snapshot after a run.
func WithSnapshotCache(c cache.CatalogSnapshotCache) Option {
	return func(j *Job) { j.snapshot = c }
}

// WithWriteDelay pauses between consecutive writes.
func WithWriteDelay(d time.Duration) Option {
	return func(j *Job) { j.delay = d }
}

func withClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

func NewJob(repo repository.CatalogRepository, opts ...Option) *Job {
	j := &Job{
		repo:     repo,
		snapshot: cache.NewNoopCatalogSnapshotCache(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run migrates every document sequentially. Per-record failures are counted
// and logged; only a failed read, a failed backup or cancellation stops the run.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	docs, err := j.repo.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	result := &Result{}
	if j.backup != nil {
		key, err := j.backupDocuments(ctx, docs)
		if err != nil {
			return nil, err
		}
		result.BackupKey = key
	}

	log.Info().Int("count", len(docs)).Msg("catalog: migration started")

	for i, d := range docs {
		if i > 0 {
			if err := j.pause(ctx); err != nil {
				j.invalidateSnapshot(ctx)
				return result, err
			}
		}

		raw, err := decodeRaw(d)
		if err != nil {
			log.Warn().Err(err).Str("id", d.ID).Msg("catalog: skipping undecodable document")
			result.fail(d.ID, "", err)
			continue
		}
		if strings.TrimSpace(raw.SKU) == "" {
			log.Warn().Str("id", d.ID).Msg("catalog: skipping document without sku")
			result.fail(d.ID, "", ErrMissingSKU)
			continue
		}

		product := taxonomy.Normalize(raw)
		if err := j.repo.UpsertProduct(ctx, d.ID, product); err != nil {
			log.Warn().Err(err).Str("id", d.ID).Str("sku", raw.SKU).Msg("catalog: product write failed")
			result.fail(d.ID, raw.SKU, err)
			continue
		}
		result.SuccessCount++
	}

	j.invalidateSnapshot(ctx)

	log.Info().
		Int("success", result.SuccessCount).
		Int("errors", result.ErrorCount).
		Msg("catalog: migration finished")

	return result, nil
}

func (j *Job) pause(ctx context.Context) error {
	if j.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(j.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (j *Job) backupDocuments(ctx context.Context, docs []repository.Document) (string, error) {
	payload, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("encode catalog backup: %w", err)
	}

	key := path.Join(j.backupPrefix, fmt.Sprintf("catalog-%s.json", j.now().UTC().Format("20060102T150405Z")))
	if err := j.backup.UploadObject(ctx, key, payload); err != nil {
		return "", fmt.Errorf("backup catalog: %w", err)
	}

	log.Info().Str("key", key).Int("count", len(docs)).Msg("catalog: backup uploaded")
	return key, nil
}

func (j *Job) invalidateSnapshot(ctx context.Context) {
	if err := j.snapshot.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("catalog: snapshot invalidation failed")
	}
}

func decodeRaw(d repository.Document) (domain.RawProductRecord, error) {
	var raw domain.RawProductRecord
	if err := json.Unmarshal(d.Doc, &raw); err != nil {
		return raw, fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	raw.ID = d.ID
	return raw, nil
}
