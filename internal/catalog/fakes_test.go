package catalog

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/andresuchdata/opsdash/internal/storage"
)

type fakeCatalogRepo struct {
	mu         sync.Mutex
	docs       []repository.Document
	listErr    error
	upsertErrs map[string]error
	writes     []string
	imported   []domain.RawProductRecord
	listCalls  int
}

func newFakeCatalogRepo(records ...domain.RawProductRecord) *fakeCatalogRepo {
	r := &fakeCatalogRepo{upsertErrs: map[string]error{}}
	for _, rec := range records {
		payload, _ := json.Marshal(rec)
		r.docs = append(r.docs, repository.Document{ID: rec.ID, Doc: payload})
	}
	return r
}

func (r *fakeCatalogRepo) addRawDoc(id, doc string) {
	r.docs = append(r.docs, repository.Document{ID: id, Doc: json.RawMessage(doc)})
}

func (r *fakeCatalogRepo) ListDocuments(ctx context.Context) ([]repository.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]repository.Document, len(r.docs))
	copy(out, r.docs)
	return out, nil
}

func (r *fakeCatalogRepo) ListProducts(ctx context.Context) ([]domain.CanonicalProduct, error) {
	docs, err := r.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var products []domain.CanonicalProduct
	for _, d := range docs {
		var p domain.CanonicalProduct
		if err := json.Unmarshal(d.Doc, &p); err != nil {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (r *fakeCatalogRepo) UpsertProduct(ctx context.Context, id string, product domain.CanonicalProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.upsertErrs[id]; err != nil {
		return err
	}
	payload, err := json.Marshal(product)
	if err != nil {
		return err
	}
	r.writes = append(r.writes, id)
	for i := range r.docs {
		if r.docs[i].ID == id {
			r.docs[i].Doc = payload
			return nil
		}
	}
	r.docs = append(r.docs, repository.Document{ID: id, Doc: payload})
	return nil
}

func (r *fakeCatalogRepo) ImportRecords(ctx context.Context, records []domain.RawProductRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imported = append(r.imported, records...)
	return nil
}

func (r *fakeCatalogRepo) doc(id string) json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID == id {
			return d.Doc
		}
	}
	return nil
}

type fakeObjectStorage struct {
	uploads        map[string][]byte
	uploadErr      error
	repo           *fakeCatalogRepo
	writesAtUpload int
}

func (s *fakeObjectStorage) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for k, v := range s.uploads {
		out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
	}
	return out, nil
}

func (s *fakeObjectStorage) UploadObject(ctx context.Context, key string, data []byte) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	if s.uploads == nil {
		s.uploads = map[string][]byte{}
	}
	s.uploads[key] = data
	if s.repo != nil {
		s.writesAtUpload = len(s.repo.writes)
	}
	return nil
}

type fakeSnapshotCache struct {
	products      []domain.CanonicalProduct
	hit           bool
	getErr        error
	sets          int
	invalidated   int
	invalidateErr error
}

func (c *fakeSnapshotCache) GetSnapshot(ctx context.Context) ([]domain.CanonicalProduct, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.products, c.hit, nil
}

func (c *fakeSnapshotCache) SetSnapshot(ctx context.Context, products []domain.CanonicalProduct) error {
	c.sets++
	c.products = products
	return nil
}

func (c *fakeSnapshotCache) Invalidate(ctx context.Context) error {
	c.invalidated++
	c.hit = false
	return c.invalidateErr
}
