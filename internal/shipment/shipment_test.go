package shipment

import (
	"sort"
	"testing"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLookup map[string]domain.CanonicalProduct

func (m mapLookup) Get(sku string) (domain.CanonicalProduct, bool) {
	p, ok := m[sku]
	return p, ok
}

func intPtr(v int) *int { return &v }

func bubble(sku, size string, width int, roll string) domain.CanonicalProduct {
	return domain.CanonicalProduct{
		SKU:      sku,
		Category: domain.CategoryBubbleWrap,
		Attrs:    &domain.BubbleWrapAttrs{BubbleSize: size, Width: intPtr(width), RollType: roll},
	}
}

func catalogFixture() mapLookup {
	return mapLookup{
		"BW-316-12-S": bubble("BW-316-12-S", "3/16", 12, "single"),
		"BW-316-12-D": bubble("BW-316-12-D", "3/16", 12, "double"),
		"BW-12-24-S":  bubble("BW-12-24-S", "1/2", 24, "single"),
		"BW-316-6-S":  bubble("BW-316-6-S", "3/16", 6, "single"),
		"BW-NOSIZE": {
			SKU:      "BW-NOSIZE",
			Category: domain.CategoryBubbleWrap,
			Attrs:    &domain.BubbleWrapAttrs{Width: intPtr(12)},
		},
		"IP-15": {
			SKU:      "IP-15",
			Category: domain.CategoryInstapak,
			Attrs:    &domain.InstapakAttrs{Density: intPtr(15), DensityDisplay: "#15"},
		},
		"IP-8": {
			SKU:      "IP-8",
			Category: domain.CategoryInstapak,
			Attrs:    &domain.InstapakAttrs{Density: intPtr(8), DensityDisplay: "#8"},
		},
		"LC-1": {SKU: "LC-1", Category: domain.CategoryLeica, Subcategory: "lens"},
		"TP-2": {SKU: "TP-2", Category: domain.CategoryTape},
	}
}

func line(sku string, qty int) domain.OrderLineItem {
	return domain.OrderLineItem{Name: sku, SKU: sku, Quantity: intPtr(qty)}
}

func fixtureOrders() []domain.OrderRecord {
	return []domain.OrderRecord{
		{ID: "o1", OrderNumber: "1001", Priority: 1, TimeStamp: 30, Items: []domain.OrderLineItem{
			line("BW-316-12-S", 2), line("IP-15", 1), line("NOT-IN-CATALOG", 1),
		}},
		{ID: "o2", OrderNumber: "1002", Priority: 6, TimeStamp: 20, Items: []domain.OrderLineItem{
			line("BW-316-12-S", 1), line("BW-316-12-D", 1), line("IP-8", 3), line("LC-1", 1),
		}},
		{ID: "o3", OrderNumber: "1003", Priority: 3, TimeStamp: 10, Items: []domain.OrderLineItem{
			line("BW-12-24-S", 1), line("BW-316-6-S", 1), line("BW-NOSIZE", 1), line("TP-2", 4),
			{},
		}},
	}
}

func TestPriorityLevelOf(t *testing.T) {
	cases := map[int]PriorityLevel{0: PriorityLow, 2: PriorityLow, 3: PriorityMedium, 5: PriorityMedium, 6: PriorityHigh, 10: PriorityHigh}
	for p, want := range cases {
		assert.Equal(t, want, PriorityLevelOf(p), "priority %d", p)
	}
}

func TestEnrichCarriesOrderFields(t *testing.T) {
	items := Enrich(fixtureOrders(), catalogFixture())
	require.Len(t, items, 12)

	first := items[0]
	assert.Equal(t, "1001", first.OrderNumber)
	assert.Equal(t, "o1", first.OrderID)
	assert.Equal(t, 1, first.Priority)
	assert.Equal(t, int64(30), first.TimeStamp)
	assert.Equal(t, 2, first.Quantity)
	require.NotNil(t, first.Product)
	assert.Equal(t, domain.CategoryBubbleWrap, first.Product.Category)
}

func TestEnrichJoinMissIsNotAnError(t *testing.T) {
	items := Enrich(fixtureOrders(), catalogFixture())

	miss := items[2]
	assert.Equal(t, "NOT-IN-CATALOG", miss.SKU)
	assert.Nil(t, miss.Product)
	assert.Equal(t, domain.CategoryOther, miss.CategoryOf())
	assert.Equal(t, 2, Unmatched(items))
}

func TestEnrichLineDefaults(t *testing.T) {
	items := Enrich([]domain.OrderRecord{{OrderNumber: "9", Items: []domain.OrderLineItem{{SKU: "  "}}}}, nil)
	require.Len(t, items, 1)
	assert.Equal(t, UnknownProductName, items[0].Name)
	assert.Equal(t, UnknownSKU, items[0].SKU)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Nil(t, items[0].Product)
}

func TestFilterByCategory(t *testing.T) {
	items := Enrich(fixtureOrders(), catalogFixture())
	assert.Len(t, FilterByCategory(items, domain.CategoryBubbleWrap), 6)
	assert.Len(t, FilterByCategory(items, domain.CategoryInstapak), 2)
	assert.Len(t, FilterByCategory(items, domain.CategoryOther), 2)
	assert.Empty(t, FilterByCategory(nil, domain.CategoryTape))
}

func TestBubbleWrapMatrix(t *testing.T) {
	items := Enrich(fixtureOrders(), catalogFixture())
	m := BuildMatrix(domain.CategoryBubbleWrap, items)

	require.Len(t, m.Axes, 3)
	assert.Equal(t, "bubble_size", m.Axes[0].Name)
	assert.Equal(t, []string{"3/16", "1/2"}, m.Axes[0].Values)
	assert.Equal(t, []string{"6", "12", "24"}, m.Axes[1].Values)
	assert.Equal(t, []string{"single", "double"}, m.Axes[2].Values)

	cell, ok := m.Lookup("3/16", "12", "single")
	require.True(t, ok)
	assert.Equal(t, 2, cell.Count)
	assert.Equal(t, 3, cell.Units)
	assert.Equal(t, PriorityHigh, cell.Priority)
	assert.Equal(t, []string{"1001", "1002"}, cell.OrderNumbers)

	cell, ok = m.Lookup("1/2", "24", "single")
	require.True(t, ok)
	assert.Equal(t, PriorityMedium, cell.Priority)

	_, ok = m.Lookup("1/2", "12", "single")
	assert.False(t, ok)

	assert.Equal(t, 1, m.Incomplete.Count)
	assert.Equal(t, []string{"1003"}, m.Incomplete.OrderNumbers)

	assert.Equal(t, 6, m.TotalItems)
	assert.Equal(t, 3, m.DistinctOrders)
	assert.Equal(t, 2, m.HighPriority)

	keys := make([][]string, len(m.Cells))
	for i, c := range m.Cells {
		keys[i] = c.Key
	}
	assert.Equal(t, [][]string{
		{"3/16", "6", "single"},
		{"3/16", "12", "single"},
		{"3/16", "12", "double"},
		{"1/2", "24", "single"},
	}, keys)
}

func TestInstapakHistogram(t *testing.T) {
	m := BuildMatrix(domain.CategoryInstapak, Enrich(fixtureOrders(), catalogFixture()))

	require.Len(t, m.Axes, 1)
	assert.Equal(t, []string{"#8", "#15"}, m.Axes[0].Values)

	cell, ok := m.Lookup("#8")
	require.True(t, ok)
	assert.Equal(t, 1, cell.Count)
	assert.Equal(t, 3, cell.Units)
	assert.Equal(t, PriorityHigh, cell.Priority)
}

func TestUnmatchedItemLandsInOtherIncomplete(t *testing.T) {
	m := BuildMatrix(domain.CategoryOther, Enrich(fixtureOrders(), catalogFixture()))

	assert.Equal(t, 2, m.TotalItems)
	assert.Empty(t, m.Cells)
	assert.Equal(t, 2, m.Incomplete.Count)
	assert.Equal(t, []string{"1001", "1003"}, m.Incomplete.OrderNumbers)
}

func TestMatrixCompleteness(t *testing.T) {
	items := Enrich(fixtureOrders(), catalogFixture())
	total := 0
	for _, m := range BuildAll(items) {
		sum := m.Incomplete.Count
		for _, c := range m.Cells {
			sum += c.Count
		}
		assert.Equal(t, m.TotalItems, sum, "category %s", m.Category)
		total += m.TotalItems
	}
	assert.Equal(t, len(items), total)
}

func TestAxesFollowData(t *testing.T) {
	lookup := catalogFixture()
	lookup["BW-NEW"] = bubble("BW-NEW", "5/16", 48, "quad")
	orders := []domain.OrderRecord{{OrderNumber: "1", Items: []domain.OrderLineItem{line("BW-NEW", 1)}}}

	m := BuildMatrix(domain.CategoryBubbleWrap, Enrich(orders, lookup))
	assert.Equal(t, []string{"5/16"}, m.Axes[0].Values)
	assert.Equal(t, []string{"48"}, m.Axes[1].Values)
	assert.Equal(t, []string{"quad"}, m.Axes[2].Values)
}

func TestEmptyMatrix(t *testing.T) {
	m := BuildMatrix(domain.CategoryLeica, nil)
	assert.Zero(t, m.TotalItems)
	assert.Empty(t, m.Cells)
	assert.Equal(t, PriorityLow, m.Incomplete.Priority)
}

func TestNumericLess(t *testing.T) {
	assert.True(t, numericLess("3/16", "1/2"))
	assert.True(t, numericLess("6", "12"))
	assert.True(t, numericLess("#8", "#15"))
	assert.True(t, numericLess("12", "abc"))
	assert.True(t, numericLess("abc", "abd"))
	assert.False(t, numericLess("1/0", "1"))
}

func TestParseNumericRejectsNonFinite(t *testing.T) {
	for _, s := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity", "0x1p3", "0X10", "1e400", "1/NaN", "Inf/2"} {
		_, ok := parseNumeric(s)
		assert.False(t, ok, s)
	}
	f, ok := parseNumeric("1e2")
	require.True(t, ok)
	assert.Equal(t, 100.0, f)
}

func TestNumericLessOrdersNonFiniteAsText(t *testing.T) {
	assert.True(t, numericLess("12", "NaN"))
	assert.False(t, numericLess("NaN", "12"))
	assert.True(t, numericLess("0x1p3", "NaN"))

	values := []string{"NaN", "Inf", "12", "0x1p3", "3/16", "NaN"}
	for i := 0; i < 5; i++ {
		got := append([]string(nil), values...)
		sort.SliceStable(got, func(a, b int) bool { return numericLess(got[a], got[b]) })
		assert.Equal(t, []string{"3/16", "12", "0x1p3", "Inf", "NaN", "NaN"}, got)
	}
}
