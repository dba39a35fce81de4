package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type catalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

var _ repository.CatalogRepository = (*catalogRepository)(nil)

type documentRow struct {
	ID  string `db:"id"`
	Doc []byte `db:"doc"`
}

const upsertProductQuery = `
	INSERT INTO products (id, doc, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (id)
	DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
`

func (r *catalogRepository) ListDocuments(ctx context.Context) ([]repository.Document, error) {
	var rows []documentRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT id, doc FROM products ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list catalog documents: %w", err)
	}

	docs := make([]repository.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, repository.Document{ID: row.ID, Doc: json.RawMessage(row.Doc)})
	}
	return docs, nil
}

// ListProducts decodes every document as a canonical product. Undecodable
// documents are skipped.
func (r *catalogRepository) ListProducts(ctx context.Context) ([]domain.CanonicalProduct, error) {
	docs, err := r.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	products := make([]domain.CanonicalProduct, 0, len(docs))
	for _, d := range docs {
		var p domain.CanonicalProduct
		if err := json.Unmarshal(d.Doc, &p); err != nil {
			log.Warn().Err(err).Str("id", d.ID).Msg("postgres: skipping undecodable product document")
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// UpsertProduct overwrites the full document stored under id.
func (r *catalogRepository) UpsertProduct(ctx context.Context, id string, product domain.CanonicalProduct) error {
	payload, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to encode product %s: %w", id, err)
	}
	if err := r.db.execGated(ctx, upsertProductQuery, id, payload); err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", id, err)
	}
	return nil
}

// ImportRecords stores raw records in one transaction.
func (r *catalogRepository) ImportRecords(ctx context.Context, records []domain.RawProductRecord) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, upsertProductQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, rec.ID, payload); err != nil {
				return fmt.Errorf("failed to import record %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}
