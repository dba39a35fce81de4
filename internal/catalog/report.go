package catalog

import (
	"context"
	"fmt"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/taxonomy"
	"github.com/rs/zerolog/log"
)

// requiredAttributes lists, per attribute family, the checks a product must
// pass to count as complete.
var requiredAttributes = map[domain.Category]func(p domain.CanonicalProduct) bool{
	domain.CategoryBubbleWrap: func(p domain.CanonicalProduct) bool {
		a := p.BubbleWrap()
		return a != nil && a.BubbleSize != "" && a.Width != nil && a.RollType != ""
	},
	domain.CategoryInstapak: func(p domain.CanonicalProduct) bool {
		a := p.Instapak()
		return a != nil && a.Density != nil && a.PackSize != nil
	},
}

// Completeness is the share of products in a family with every expected
// attribute present.
type Completeness struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Ratio    float64 `json:"ratio"`
}

// VerifyReport describes the stored catalog after a migration.
type VerifyReport struct {
	Total        int                              `json:"total"`
	Distribution map[domain.Category]int          `json:"distribution"`
	Completeness map[domain.Category]Completeness `json:"completeness"`
	// Unrecognized counts documents whose category is not canonical, i.e.
	// documents the migration has not touched yet.
	Unrecognized int `json:"unrecognized"`
}

// Verify re-reads the catalog and reports distribution and completeness. It
// performs no writes.
func (j *Job) Verify(ctx context.Context) (*VerifyReport, error) {
	products, err := j.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	report := BuildVerifyReport(products)

	log.Info().
		Int("total", report.Total).
		Int("unrecognized", report.Unrecognized).
		Msg("catalog: verification finished")
	return report, nil
}

func BuildVerifyReport(products []domain.CanonicalProduct) *VerifyReport {
	report := &VerifyReport{
		Total:        len(products),
		Distribution: make(map[domain.Category]int),
		Completeness: make(map[domain.Category]Completeness),
	}
	for family := range requiredAttributes {
		report.Completeness[family] = Completeness{}
	}

	for _, p := range products {
		if !p.Category.Valid() {
			report.Unrecognized++
			continue
		}
		report.Distribution[p.Category]++

		check, ok := requiredAttributes[p.Category]
		if !ok {
			continue
		}
		c := report.Completeness[p.Category]
		c.Total++
		if check(p) {
			c.Complete++
		}
		report.Completeness[p.Category] = c
	}

	for family, c := range report.Completeness {
		if c.Total > 0 {
			c.Ratio = float64(c.Complete) / float64(c.Total)
		}
		report.Completeness[family] = c
	}
	return report
}

// RawSummary is the part of a raw record an operator needs to judge a preview.
type RawSummary struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	SubCategory string `json:"subCategory,omitempty"`
}

type PreviewEntry struct {
	ID         string                  `json:"id,omitempty"`
	Original   RawSummary              `json:"original"`
	Normalized domain.CanonicalProduct `json:"normalized"`
}

// PreviewReport is a dry run of the migration over a set of raw records.
type PreviewReport struct {
	Entries      []PreviewEntry                   `json:"entries"`
	Examples     map[domain.Category]PreviewEntry `json:"examples"`
	Distribution map[domain.Category]int          `json:"distribution"`
}

// Preview normalizes records without writing anything. Examples hold the
// first entry seen for each category.
func Preview(records []domain.RawProductRecord) *PreviewReport {
	report := &PreviewReport{
		Entries:      make([]PreviewEntry, 0, len(records)),
		Examples:     make(map[domain.Category]PreviewEntry),
		Distribution: make(map[domain.Category]int),
	}

	for _, raw := range records {
		sub := raw.SubCategory
		if sub == "" {
			sub = raw.Subcategory
		}
		entry := PreviewEntry{
			ID: raw.ID,
			Original: RawSummary{
				SKU:         raw.SKU,
				Name:        raw.Name,
				Category:    raw.Category,
				SubCategory: sub,
			},
			Normalized: taxonomy.Normalize(raw),
		}

		report.Entries = append(report.Entries, entry)
		report.Distribution[entry.Normalized.Category]++
		if _, seen := report.Examples[entry.Normalized.Category]; !seen {
			report.Examples[entry.Normalized.Category] = entry
		}
	}
	return report
}

// PreviewStore previews up to limit documents from the store; limit <= 0
// previews all of them.
func (j *Job) PreviewStore(ctx context.Context, limit int) (*PreviewReport, error) {
	docs, err := j.repo.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	records := make([]domain.RawProductRecord, 0, len(docs))
	for _, d := range docs {
		raw, err := decodeRaw(d)
		if err != nil {
			log.Warn().Err(err).Str("id", d.ID).Msg("catalog: preview skipping undecodable document")
			continue
		}
		records = append(records, raw)
	}
	return Preview(records), nil
}
