// Package taxonomy turns free-text catalog records into canonical products.
package taxonomy

import (
	"strings"

	"github.com/andresuchdata/opsdash/internal/domain"
)

var categorySynonyms = map[string]domain.Category{
	"bubblewrap":  domain.CategoryBubbleWrap,
	"bubble":      domain.CategoryBubbleWrap,
	"recycled":    domain.CategoryBubbleWrap,
	"bubble_wrap": domain.CategoryBubbleWrap,
	"instapak":    domain.CategoryInstapak,
	"leica":       domain.CategoryLeica,
	"mg2":         domain.CategoryTape,
	"tape":        domain.CategoryTape,
	"other":       domain.CategoryOther,
}

// Sniffers run in order when the category token is not a known synonym.
var categorySniffers = []struct {
	category domain.Category
	match    func(sku, name string) bool
}{
	{
		category: domain.CategoryBubbleWrap,
		match: func(sku, name string) bool {
			return strings.Contains(strings.ToLower(name), "bubble") ||
				strings.Contains(sku, "18-") ||
				strings.Contains(sku, "316-")
		},
	},
	{
		category: domain.CategoryInstapak,
		match: func(sku, name string) bool {
			return strings.Contains(strings.ToLower(name), "instapak") ||
				strings.HasPrefix(strings.ToUpper(sku), "INSTA-")
		},
	},
}

// ClassifyCategory maps a raw category token to a canonical category,
// sniffing the SKU and name when the token is unknown.
func ClassifyCategory(token, sku, name string) domain.Category {
	if c, ok := categorySynonyms[strings.ToLower(strings.TrimSpace(token))]; ok {
		return c
	}
	for _, s := range categorySniffers {
		if s.match(sku, name) {
			return s.category
		}
	}
	return domain.CategoryOther
}

const subcategoryGeneral = "general"

var subcategoryTables = map[domain.Category]map[string]string{
	domain.CategoryLeica: {
		"disto":          "distance_meter",
		"lino":           "laser_level",
		"accessory":      "accessory",
		"distance_meter": "distance_meter",
		"laser_level":    "laser_level",
	},
}

var fixedSubcategories = map[domain.Category]string{
	domain.CategoryBubbleWrap: "packaging",
	domain.CategoryInstapak:   "void_fill",
	domain.CategoryTape:       "packaging",
}

// ClassifySubcategory returns the canonical subcategory for a category.
func ClassifySubcategory(category domain.Category, hints ...string) string {
	if sub, ok := fixedSubcategories[category]; ok {
		return sub
	}
	table, ok := subcategoryTables[category]
	if !ok {
		return subcategoryGeneral
	}
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if sub, ok := table[h]; ok {
			return sub
		}
		break
	}
	return subcategoryGeneral
}

var gradedCategories = map[domain.Category]bool{
	domain.CategoryBubbleWrap: true,
}

var gradeTokens = map[string]domain.Grade{
	"recycled":      domain.GradeRecycled,
	"limitedgrade":  domain.GradeLimited,
	"limited":       domain.GradeLimited,
	"multipurpose":  domain.GradeMultiPurpose,
	"multi_purpose": domain.GradeMultiPurpose,
}

// ClassifyGrade derives the grade of a graded category. Recycled signals in
// the name, SKU or category token win over subcategory tokens, which win over
// a previously assigned grade.
func ClassifyGrade(category domain.Category, raw domain.RawProductRecord) domain.Grade {
	if !gradedCategories[category] {
		return domain.GradeNone
	}

	sub := strings.ToLower(strings.TrimSpace(raw.SubCategory))
	if sub == "" {
		sub = strings.ToLower(strings.TrimSpace(raw.Subcategory))
	}

	if sub == "recycled" || isRecycled(raw) {
		return domain.GradeRecycled
	}
	if g, ok := gradeTokens[sub]; ok {
		return g
	}
	if g, ok := domain.ParseGrade(strings.TrimSpace(raw.Grade)); ok {
		return g
	}
	return domain.GradeClassic
}

func isRecycled(raw domain.RawProductRecord) bool {
	if strings.Contains(strings.ToLower(raw.Name), "recycled") {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(raw.Category), "recycled") {
		return true
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(raw.SKU)), recycledSKUPrefix)
}

// Normalize converts a raw catalog record into its canonical form. It is
// deterministic and Normalize(Normalize(r).Record()) equals Normalize(r).
func Normalize(raw domain.RawProductRecord) domain.CanonicalProduct {
	category := ClassifyCategory(raw.Category, raw.SKU, raw.Name)

	p := domain.CanonicalProduct{
		SKU:         raw.SKU,
		Name:        raw.Name,
		UPC:         strings.TrimSpace(raw.UPC),
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		Active:      true,
		Category:    category,
		Subcategory: ClassifySubcategory(category, raw.Subcategory, raw.SubCategory),
		Grade:       ClassifyGrade(category, raw),
		Attrs:       ParseAttributes(category, raw.SKU, raw.Name),
	}
	if raw.Weight != nil && *raw.Weight != 0 {
		w := *raw.Weight
		p.Weight = &w
	}

	return p
}
