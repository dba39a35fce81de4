package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/andresuchdata/opsdash/internal/domain"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

// Document is a catalog document as stored, keyed by its stable id.
type Document struct {
	ID  string          `json:"id" db:"id"`
	Doc json.RawMessage `json:"doc" db:"doc"`
}

// CatalogRepository is the catalog collection of the document store.
type CatalogRepository interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	ListProducts(ctx context.Context) ([]domain.CanonicalProduct, error)
	UpsertProduct(ctx context.Context, id string, product domain.CanonicalProduct) error
	ImportRecords(ctx context.Context, records []domain.RawProductRecord) error
}

// OrderFilter selects orders in [Start, End) epoch millis. Location scopes to
// one site; otherwise LocationPrefix matches every recognized site.
type OrderFilter struct {
	Start          int64
	End            int64
	Location       string
	LocationPrefix string
	Limit          int
}

// OrderRepository is the orders collection of the document store.
type OrderRepository interface {
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.OrderRecord, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.OrderRecord, error)
}
