package shipment

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/taxonomy"
)

type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
)

var priorityRank = map[PriorityLevel]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
}

// PriorityLevelOf buckets a numeric order priority.
func PriorityLevelOf(priority int) PriorityLevel {
	switch {
	case priority > 5:
		return PriorityHigh
	case priority > 2:
		return PriorityMedium
	}
	return PriorityLow
}

func worse(a, b PriorityLevel) PriorityLevel {
	if priorityRank[b] > priorityRank[a] {
		return b
	}
	return a
}

// Cell aggregates the items sharing one combination of axis values.
type Cell struct {
	Key          []string      `json:"key"`
	Count        int           `json:"count"`
	Units        int           `json:"units"`
	Priority     PriorityLevel `json:"priority"`
	OrderNumbers []string      `json:"orderNumbers"`

	orders map[string]struct{}
}

func newCell(key []string) *Cell {
	return &Cell{Key: key, Priority: PriorityLow, OrderNumbers: []string{}, orders: map[string]struct{}{}}
}

func (c *Cell) add(it domain.EnrichedLineItem) {
	c.Count++
	c.Units += it.Quantity
	c.Priority = worse(c.Priority, PriorityLevelOf(it.Priority))
	if _, seen := c.orders[it.OrderNumber]; !seen {
		c.orders[it.OrderNumber] = struct{}{}
		c.OrderNumbers = append(c.OrderNumbers, it.OrderNumber)
	}
}

// Axis is one pivot dimension with the sorted values present in the data.
type Axis struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Matrix is the shipment pivot of one category.
type Matrix struct {
	Category       domain.Category `json:"category"`
	Axes           []Axis          `json:"axes"`
	Cells          []Cell          `json:"cells"`
	Incomplete     Cell            `json:"incomplete"`
	TotalItems     int             `json:"totalItems"`
	TotalUnits     int             `json:"totalUnits"`
	DistinctOrders int             `json:"distinctOrders"`
	HighPriority   int             `json:"highPriority"`
}

// Lookup returns the cell at the given axis values.
func (m Matrix) Lookup(values ...string) (Cell, bool) {
	for _, c := range m.Cells {
		if equalKeys(c.Key, values) {
			return c, true
		}
	}
	return Cell{}, false
}

type axisDef struct {
	name  string
	value func(it domain.EnrichedLineItem) string
	less  func(a, b string) bool
}

var (
	bubbleSizeAxis = axisDef{name: "bubble_size", less: numericLess, value: func(it domain.EnrichedLineItem) string {
		if a := it.Product.BubbleWrap(); a != nil {
			return a.BubbleSize
		}
		return ""
	}}
	widthAxis = axisDef{name: "width", less: numericLess, value: func(it domain.EnrichedLineItem) string {
		if a := it.Product.BubbleWrap(); a != nil && a.Width != nil {
			return strconv.Itoa(*a.Width)
		}
		return ""
	}}
	rollTypeAxis = axisDef{name: "roll_type", less: rollTypeLess, value: func(it domain.EnrichedLineItem) string {
		if a := it.Product.BubbleWrap(); a != nil {
			return a.RollType
		}
		return ""
	}}
	densityAxis = axisDef{name: "density", less: numericLess, value: func(it domain.EnrichedLineItem) string {
		if a := it.Product.Instapak(); a != nil {
			return a.DensityDisplay
		}
		return ""
	}}
	subcategoryAxis = axisDef{name: "subcategory", less: numericLess, value: func(it domain.EnrichedLineItem) string {
		return it.Product.Subcategory
	}}
	skuAxis = axisDef{name: "sku", less: numericLess, value: func(it domain.EnrichedLineItem) string {
		return it.SKU
	}}
)

// categoryAxes dispatches a category to its pivot dimensions. Bubble wrap is
// size × width with roll type as the inner grouping.
var categoryAxes = map[domain.Category][]axisDef{
	domain.CategoryBubbleWrap: {bubbleSizeAxis, widthAxis, rollTypeAxis},
	domain.CategoryInstapak:   {densityAxis},
	domain.CategoryLeica:      {subcategoryAxis},
	domain.CategoryTape:       {skuAxis},
	domain.CategoryOther:      {skuAxis},
}

// BuildMatrix pivots the items shipped under category; other items are
// ignored. Items without a product, or missing an axis value, land in the
// incomplete bucket, so the cell counts plus the incomplete count always equal
// TotalItems.
func BuildMatrix(category domain.Category, items []domain.EnrichedLineItem) Matrix {
	axes := categoryAxes[category]
	m := Matrix{Category: category, Axes: make([]Axis, len(axes))}
	incomplete := newCell(nil)
	cells := map[string]*Cell{}
	present := make([]map[string]struct{}, len(axes))
	for i := range present {
		present[i] = map[string]struct{}{}
	}
	orders := map[string]struct{}{}

	for _, it := range items {
		if it.CategoryOf() != category {
			continue
		}
		m.TotalItems++
		m.TotalUnits += it.Quantity
		orders[it.OrderNumber] = struct{}{}
		if PriorityLevelOf(it.Priority) == PriorityHigh {
			m.HighPriority++
		}

		key, ok := cellKey(axes, it)
		if !ok {
			incomplete.add(it)
			continue
		}
		for i, v := range key {
			present[i][v] = struct{}{}
		}
		id := strings.Join(key, "\x00")
		c, exists := cells[id]
		if !exists {
			c = newCell(key)
			cells[id] = c
		}
		c.add(it)
	}
	m.DistinctOrders = len(orders)

	for i, ax := range axes {
		m.Axes[i] = Axis{Name: ax.name, Values: sortedValues(present[i], ax.less)}
	}

	m.Cells = make([]Cell, 0, len(cells))
	for _, c := range cells {
		sort.Strings(c.OrderNumbers)
		m.Cells = append(m.Cells, *c)
	}
	sort.Slice(m.Cells, func(i, j int) bool {
		return keyLess(axes, m.Cells[i].Key, m.Cells[j].Key)
	})

	sort.Strings(incomplete.OrderNumbers)
	m.Incomplete = *incomplete
	m.Incomplete.Key = []string{}
	return m
}

// BuildAll returns one matrix per canonical category, in display order.
func BuildAll(items []domain.EnrichedLineItem) []Matrix {
	out := make([]Matrix, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		out = append(out, BuildMatrix(c, items))
	}
	return out
}

func cellKey(axes []axisDef, it domain.EnrichedLineItem) ([]string, bool) {
	if it.Product == nil {
		return nil, false
	}
	key := make([]string, len(axes))
	for i, ax := range axes {
		v := ax.value(it)
		if v == "" {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}

func sortedValues(set map[string]struct{}, less func(a, b string) bool) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return less(values[i], values[j]) })
	return values
}

func keyLess(axes []axisDef, a, b []string) bool {
	for i, ax := range axes {
		if a[i] == b[i] {
			continue
		}
		return ax.less(a[i], b[i])
	}
	return false
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// numericLess orders numbers and fractions by value ahead of any text, and
// text lexically.
func numericLess(a, b string) bool {
	fa, okA := parseNumeric(a)
	fb, okB := parseNumeric(b)
	switch {
	case okA && okB:
		if fa != fb {
			return fa < fb
		}
		return a < b
	case okA:
		return true
	case okB:
		return false
	}
	return a < b
}

// parseNumeric reads "12", "#15" and "3/16". Hex, NaN and infinities are text.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, ok1 := parseFinite(num)
		d, ok2 := parseFinite(den)
		if !ok1 || !ok2 || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	return parseFinite(s)
}

func parseFinite(s string) (float64, bool) {
	if strings.ContainsAny(s, "xX") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rollTypeLess(a, b string) bool {
	ra, rb := rollRank(a), rollRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func rollRank(label string) int {
	for i, l := range taxonomy.RollTypes {
		if l == label {
			return i
		}
	}
	return len(taxonomy.RollTypes)
}
