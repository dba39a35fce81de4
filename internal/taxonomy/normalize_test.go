package taxonomy

import (
	"encoding/json"
	"testing"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weight(w float64) *float64 { return &w }

// corpus covers every classification path at least once.
var corpus = []domain.RawProductRecord{
	{ID: "p1", SKU: "316-12-350x2", Name: "3/16 12 Double", Category: "bubbleWrap", Weight: weight(8.5)},
	{ID: "p2", SKU: "RECYCL90-316-12-350x1", Name: "Recycled Bubble 3/16 12", Category: "recycled"},
	{ID: "p3", SKU: "12-24-175x4", Name: "1/2 24 Quad", Category: "bubble", SubCategory: "limitedGrade"},
	{ID: "p4", SKU: "18-48-350x3", Name: "1/8 48 Triple", Category: "Bubble", SubCategory: "multiPurpose"},
	{ID: "p5", SKU: "BW-CUSTOM", Name: "Bubble assortment", Category: ""},
	{ID: "p6", SKU: "INSTA-15x50", Name: "Instapak #15", Category: "instapak"},
	{ID: "p7", SKU: "IP-QUICK", Name: "Instapak Quick RT #20 (Qty 36)", Category: ""},
	{ID: "p8", SKU: "DISTO-X3", Name: "Leica DISTO X3", Category: "leica", SubCategory: "disto", Weight: weight(0.4)},
	{ID: "p9", SKU: "LINO-L2", Name: "Leica Lino L2", Category: "Leica", Subcategory: "lino"},
	{ID: "p10", SKU: "LEICA-CASE", Name: "Carry case", Category: "leica", SubCategory: "case"},
	{ID: "p11", SKU: "MG2-TAPE-48", Name: "Packing tape 48mm", Category: "mg2", Weight: weight(0)},
	{ID: "p12", SKU: "GIFT-CARD", Name: "Gift card", Category: "misc", UPC: " 0123 "},
	{ID: "p13", SKU: "", Name: "", Category: ""},
}

func TestNormalizeExampleScenarios(t *testing.T) {
	t.Run("standard bubble sku", func(t *testing.T) {
		p := Normalize(domain.RawProductRecord{SKU: "316-12-350x2", Name: "3/16 12 Double"})

		require.Equal(t, domain.CategoryBubbleWrap, p.Category)
		assert.Equal(t, domain.GradeClassic, p.Grade)
		bw := p.BubbleWrap()
		require.NotNil(t, bw)
		assert.Equal(t, "3/16", bw.BubbleSize)
		assert.Equal(t, 12, *bw.Width)
		assert.Equal(t, "double", bw.RollType)
		assert.Equal(t, 2, *bw.RollsPerPack)
	})

	t.Run("recycled bubble sku", func(t *testing.T) {
		p := Normalize(domain.RawProductRecord{SKU: "RECYCL90-316-12-350x1", Name: "Bubble 3/16 12"})

		require.Equal(t, domain.CategoryBubbleWrap, p.Category)
		assert.Equal(t, domain.GradeRecycled, p.Grade)
		bw := p.BubbleWrap()
		require.NotNil(t, bw)
		assert.Equal(t, "3/16", bw.BubbleSize)
		assert.Equal(t, 12, *bw.Width)
		assert.Equal(t, "single", bw.RollType)
	})

	t.Run("instapak sku", func(t *testing.T) {
		p := Normalize(domain.RawProductRecord{SKU: "INSTA-15x50", Name: "Foam"})

		require.Equal(t, domain.CategoryInstapak, p.Category)
		ip := p.Instapak()
		require.NotNil(t, ip)
		assert.Equal(t, 15, *ip.Density)
		assert.Equal(t, "#15", ip.DensityDisplay)
		assert.Equal(t, 50, *ip.PackSize)
	})

	t.Run("mg2 token is tape", func(t *testing.T) {
		p := Normalize(domain.RawProductRecord{SKU: "MG2-1", Name: "Tape", Category: "mg2"})
		assert.Equal(t, domain.CategoryTape, p.Category)
		assert.Equal(t, "packaging", p.Subcategory)
	})
}

func TestClassifyCategory(t *testing.T) {
	assert.Equal(t, domain.CategoryBubbleWrap, ClassifyCategory("BubbleWrap", "", ""))
	assert.Equal(t, domain.CategoryBubbleWrap, ClassifyCategory("recycled", "", ""))
	assert.Equal(t, domain.CategoryInstapak, ClassifyCategory(" Instapak ", "", ""))
	assert.Equal(t, domain.CategoryLeica, ClassifyCategory("leica", "", ""))
	assert.Equal(t, domain.CategoryTape, ClassifyCategory("MG2", "", ""))
	assert.Equal(t, domain.CategoryBubbleWrap, ClassifyCategory("misc", "X-18-1", ""))
	assert.Equal(t, domain.CategoryBubbleWrap, ClassifyCategory("", "", "Small bubble mailer"))
	assert.Equal(t, domain.CategoryInstapak, ClassifyCategory("", "insta-4x10", ""))
	assert.Equal(t, domain.CategoryOther, ClassifyCategory("misc", "GIFT", "Gift card"))
	assert.Equal(t, domain.CategoryOther, ClassifyCategory("", "", ""))
}

func TestClassifySubcategory(t *testing.T) {
	assert.Equal(t, "distance_meter", ClassifySubcategory(domain.CategoryLeica, "", "Disto"))
	assert.Equal(t, "laser_level", ClassifySubcategory(domain.CategoryLeica, "lino", ""))
	assert.Equal(t, "accessory", ClassifySubcategory(domain.CategoryLeica, "accessory"))
	assert.Equal(t, "general", ClassifySubcategory(domain.CategoryLeica, "case"))
	assert.Equal(t, "packaging", ClassifySubcategory(domain.CategoryBubbleWrap, "whatever"))
	assert.Equal(t, "void_fill", ClassifySubcategory(domain.CategoryInstapak))
	assert.Equal(t, "general", ClassifySubcategory(domain.CategoryOther, "disto"))
}

func TestClassifyGrade(t *testing.T) {
	bw := domain.CategoryBubbleWrap
	assert.Equal(t, domain.GradeRecycled, ClassifyGrade(bw, domain.RawProductRecord{SubCategory: "recycled"}))
	assert.Equal(t, domain.GradeRecycled, ClassifyGrade(bw, domain.RawProductRecord{Name: "RECYCLED bubble", SubCategory: "limitedGrade"}))
	assert.Equal(t, domain.GradeLimited, ClassifyGrade(bw, domain.RawProductRecord{SubCategory: "limitedGrade"}))
	assert.Equal(t, domain.GradeMultiPurpose, ClassifyGrade(bw, domain.RawProductRecord{Subcategory: "multiPurpose"}))
	assert.Equal(t, domain.GradeLimited, ClassifyGrade(bw, domain.RawProductRecord{Grade: "limited"}))
	assert.Equal(t, domain.GradeClassic, ClassifyGrade(bw, domain.RawProductRecord{Grade: "platinum"}))
	assert.Equal(t, domain.GradeNone, ClassifyGrade(domain.CategoryLeica, domain.RawProductRecord{SubCategory: "recycled"}))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, raw := range corpus {
		t.Run(raw.ID, func(t *testing.T) {
			once := Normalize(raw)
			twice := Normalize(once.Record())
			assert.Equal(t, once, twice)
		})
	}
}

func TestNormalizeIsIdempotentThroughStoredDocument(t *testing.T) {
	for _, raw := range corpus {
		t.Run(raw.ID, func(t *testing.T) {
			once := Normalize(raw)
			doc, err := json.Marshal(once)
			require.NoError(t, err)

			var stored domain.RawProductRecord
			require.NoError(t, json.Unmarshal(doc, &stored))
			assert.Equal(t, once, Normalize(stored))
		})
	}
}

func TestNormalizeAttributeExclusivity(t *testing.T) {
	bubbleKeys := []string{"bubble_size", "width", "length", "roll_type", "rolls_per_pack"}
	instapakKeys := []string{"density", "density_display", "pack_size", "pack_unit", "foam_type"}

	for _, raw := range corpus {
		t.Run(raw.ID, func(t *testing.T) {
			p := Normalize(raw)
			doc := marshalDoc(t, p)

			if p.Category != domain.CategoryBubbleWrap {
				assert.Nil(t, p.BubbleWrap())
				for _, k := range bubbleKeys {
					assert.NotContains(t, doc, k)
				}
			}
			if p.Category != domain.CategoryInstapak {
				assert.Nil(t, p.Instapak())
				for _, k := range instapakKeys {
					assert.NotContains(t, doc, k)
				}
			}
			if p.Attrs != nil {
				assert.Equal(t, p.Category, p.Attrs.Family())
			}
		})
	}
}

func TestNormalizeNoNullLeakage(t *testing.T) {
	for _, raw := range corpus {
		t.Run(raw.ID, func(t *testing.T) {
			doc := marshalDoc(t, Normalize(raw))
			for k, v := range doc {
				assert.NotNil(t, v, "field %s is null", k)
				if s, ok := v.(string); ok && k != "sku" && k != "name" {
					assert.NotEmpty(t, s, "field %s is empty", k)
				}
			}
		})
	}
}

func TestNormalizePrunesZeroWeightAndTrimsUPC(t *testing.T) {
	tape := Normalize(corpus[10])
	assert.Nil(t, tape.Weight)

	other := Normalize(corpus[11])
	assert.Equal(t, "0123", other.UPC)
	assert.Equal(t, domain.CategoryOther, other.Category)
	assert.Equal(t, "general", other.Subcategory)
	assert.Equal(t, domain.GradeNone, other.Grade)
	assert.True(t, other.Active)
}

func marshalDoc(t *testing.T, p domain.CanonicalProduct) map[string]any {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}
