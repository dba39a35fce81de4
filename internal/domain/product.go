package domain

import (
	"encoding/json"
	"fmt"
)

// Category is the closed set of canonical product families.
type Category string

const (
	CategoryBubbleWrap Category = "bubble_wrap"
	CategoryInstapak   Category = "instapak"
	CategoryLeica      Category = "leica"
	CategoryTape       Category = "tape"
	CategoryOther      Category = "other"
)

// Categories lists every canonical category in display order.
var Categories = []Category{
	CategoryBubbleWrap,
	CategoryInstapak,
	CategoryLeica,
	CategoryTape,
	CategoryOther,
}

// Valid reports whether c is one of the canonical categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Grade is the closed set of product grades. The empty grade means absent.
type Grade string

const (
	GradeNone         Grade = ""
	GradeClassic      Grade = "classic"
	GradeRecycled     Grade = "recycled"
	GradeLimited      Grade = "limited"
	GradeMultiPurpose Grade = "multi_purpose"
)

// ParseGrade returns the grade for a canonical grade token.
func ParseGrade(s string) (Grade, bool) {
	switch Grade(s) {
	case GradeClassic, GradeRecycled, GradeLimited, GradeMultiPurpose:
		return Grade(s), true
	}
	return GradeNone, false
}

// RawProductRecord is an unnormalized catalog document as it sits in the store.
// Grade carries the grade of a previously normalized document so that
// re-normalizing canonical output is stable.
type RawProductRecord struct {
	ID          string   `json:"-"`
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	SubCategory string   `json:"subCategory,omitempty"`
	Grade       string   `json:"grade,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	UPC         string   `json:"upc,omitempty"`
	ImageURL    string   `json:"imageURL,omitempty"`
}

// Attributes is the category-specific attribute bag of a canonical product.
// Implementations: *BubbleWrapAttrs, *InstapakAttrs.
type Attributes interface {
	Family() Category
	Empty() bool
}

// BubbleWrapAttrs are the attributes extracted for bubble wrap rolls.
type BubbleWrapAttrs struct {
	BubbleSize   string `json:"bubble_size,omitempty"`
	Width        *int   `json:"width,omitempty"`
	Length       *int   `json:"length,omitempty"`
	RollType     string `json:"roll_type,omitempty"`
	RollsPerPack *int   `json:"rolls_per_pack,omitempty"`
}

func (a *BubbleWrapAttrs) Family() Category { return CategoryBubbleWrap }

func (a *BubbleWrapAttrs) Empty() bool {
	return a == nil || (a.BubbleSize == "" && a.Width == nil && a.Length == nil && a.RollType == "" && a.RollsPerPack == nil)
}

// InstapakAttrs are the attributes extracted for Instapak foam bags.
type InstapakAttrs struct {
	Density        *int   `json:"density,omitempty"`
	DensityDisplay string `json:"density_display,omitempty"`
	PackSize       *int   `json:"pack_size,omitempty"`
	PackUnit       string `json:"pack_unit,omitempty"`
	FoamType       string `json:"foam_type,omitempty"`
}

func (a *InstapakAttrs) Family() Category { return CategoryInstapak }

func (a *InstapakAttrs) Empty() bool {
	return a == nil || (a.Density == nil && a.DensityDisplay == "" && a.PackSize == nil && a.PackUnit == "" && a.FoamType == "")
}

// CanonicalProduct is a normalized catalog record. Attrs is nil unless the
// category has an attribute family, and its family always equals Category.
type CanonicalProduct struct {
	SKU         string
	Name        string
	UPC         string
	ImageURL    string
	Weight      *float64
	Active      bool
	Category    Category
	Subcategory string
	Grade       Grade
	Attrs       Attributes
}

// BubbleWrap returns the bubble wrap attributes, or nil.
func (p CanonicalProduct) BubbleWrap() *BubbleWrapAttrs {
	a, _ := p.Attrs.(*BubbleWrapAttrs)
	return a
}

// Instapak returns the Instapak attributes, or nil.
func (p CanonicalProduct) Instapak() *InstapakAttrs {
	a, _ := p.Attrs.(*InstapakAttrs)
	return a
}

// Record converts the canonical product back into a raw record.
func (p CanonicalProduct) Record() RawProductRecord {
	return RawProductRecord{
		SKU:         p.SKU,
		Name:        p.Name,
		Category:    string(p.Category),
		Subcategory: p.Subcategory,
		Grade:       string(p.Grade),
		Weight:      p.Weight,
		UPC:         p.UPC,
		ImageURL:    p.ImageURL,
	}
}

type productDoc struct {
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	UPC         string   `json:"upc,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	ImageURL    string   `json:"imageURL,omitempty"`
	Active      bool     `json:"active"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Grade       Grade    `json:"grade,omitempty"`

	BubbleWrapAttrs
	InstapakAttrs
}

// MarshalJSON writes the product as one flat document, the attribute bag
// inlined next to the core fields.
func (p CanonicalProduct) MarshalJSON() ([]byte, error) {
	doc := productDoc{
		SKU:         p.SKU,
		Name:        p.Name,
		UPC:         p.UPC,
		Weight:      p.Weight,
		ImageURL:    p.ImageURL,
		Active:      p.Active,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Grade:       p.Grade,
	}
	switch a := p.Attrs.(type) {
	case nil:
	case *BubbleWrapAttrs:
		doc.BubbleWrapAttrs = *a
	case *InstapakAttrs:
		doc.InstapakAttrs = *a
	default:
		return nil, fmt.Errorf("unsupported attribute family %T", p.Attrs)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads a flat document. Only the attribute family matching
// the category is kept.
func (p *CanonicalProduct) UnmarshalJSON(data []byte) error {
	var doc productDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*p = CanonicalProduct{
		SKU:         doc.SKU,
		Name:        doc.Name,
		UPC:         doc.UPC,
		Weight:      doc.Weight,
		ImageURL:    doc.ImageURL,
		Active:      doc.Active,
		Category:    doc.Category,
		Subcategory: doc.Subcategory,
		Grade:       doc.Grade,
	}
	switch doc.Category {
	case CategoryBubbleWrap:
		if a := doc.BubbleWrapAttrs; !a.Empty() {
			p.Attrs = &a
		}
	case CategoryInstapak:
		if a := doc.InstapakAttrs; !a.Empty() {
			p.Attrs = &a
		}
	}
	return nil
}
