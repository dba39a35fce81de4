// Package shipment joins order lines to the product catalog and pivots them
// into per-category shipment matrices.
package shipment

import (
	"strings"

	"github.com/andresuchdata/opsdash/internal/domain"
)

const (
	UnknownProductName = "Unknown Product"
	UnknownSKU         = "Unknown SKU"
)

// ProductLookup resolves a SKU to a canonical product.
type ProductLookup interface {
	Get(sku string) (domain.CanonicalProduct, bool)
}

// Enrich flattens order lines and attaches the cached product of each SKU.
// A cache miss leaves Product nil. products may be nil.
func Enrich(orders []domain.OrderRecord, products ProductLookup) []domain.EnrichedLineItem {
	var items []domain.EnrichedLineItem
	for _, o := range orders {
		for _, line := range o.Items {
			item := domain.EnrichedLineItem{
				Name:        line.Name,
				SKU:         strings.TrimSpace(line.SKU),
				UPC:         line.UPC,
				Quantity:    1,
				OrderNumber: o.OrderNumber,
				OrderID:     o.ID,
				Priority:    o.Priority,
				TimeStamp:   o.TimeStamp,
			}
			if item.Name == "" {
				item.Name = UnknownProductName
			}
			if item.SKU == "" {
				item.SKU = UnknownSKU
			}
			if line.Quantity != nil {
				item.Quantity = *line.Quantity
			}

			if products != nil {
				if p, ok := products.Get(item.SKU); ok {
					item.Product = &p
				}
			}
			items = append(items, item)
		}
	}
	return items
}

// Unmatched counts items with no catalog product.
func Unmatched(items []domain.EnrichedLineItem) int {
	n := 0
	for _, it := range items {
		if it.Product == nil {
			n++
		}
	}
	return n
}

// FilterByCategory keeps the items shipped under category.
func FilterByCategory(items []domain.EnrichedLineItem, category domain.Category) []domain.EnrichedLineItem {
	out := make([]domain.EnrichedLineItem, 0)
	for _, it := range items {
		if it.CategoryOf() == category {
			out = append(out, it)
		}
	}
	return out
}
