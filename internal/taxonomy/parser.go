package taxonomy

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/andresuchdata/opsdash/internal/domain"
)

// Variant distinguishes recycled bubble wrap SKUs from standard ones.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantRecycled Variant = "recycled"
)

// BubbleSKU is the result of matching a bubble wrap SKU pattern.
type BubbleSKU struct {
	Variant  Variant
	SizeCode string
	Width    int
	Length   *int
	Rolls    int
}

const recycledSKUPrefix = "RECYCL"

type bubbleSKUPattern struct {
	re      *regexp.Regexp
	extract func(m []string) BubbleSKU
}

// Evaluated in order, first match wins.
var bubbleSKUPatterns = []bubbleSKUPattern{
	{
		// RECYCL90-316-12-350x1
		re: regexp.MustCompile(`(?i)^RECYCL[A-Z]*\d*-(\d{2,3})-(\d{1,2})(?:IN|INCH)?-(\d+)x(\d+)$`),
		extract: func(m []string) BubbleSKU {
			return BubbleSKU{Variant: VariantRecycled, SizeCode: m[1], Width: atoi(m[2]), Length: intPtr(atoi(m[3])), Rolls: atoi(m[4])}
		},
	},
	{
		// 316-12-350x2, 316-12inch-350x2
		re: regexp.MustCompile(`(?i)^(\d{2,3})-(\d{1,2})(?:IN|INCH)?-(\d+)x(\d+)$`),
		extract: func(m []string) BubbleSKU {
			return BubbleSKU{Variant: VariantStandard, SizeCode: m[1], Width: atoi(m[2]), Length: intPtr(atoi(m[3])), Rolls: atoi(m[4])}
		},
	},
	{
		// RECYCL-18-24x3
		re: regexp.MustCompile(`(?i)^RECYCL[A-Z]*\d*-(\d{2,3})-(\d{1,2})(?:IN|INCH)?x(\d+)$`),
		extract: func(m []string) BubbleSKU {
			return BubbleSKU{Variant: VariantRecycled, SizeCode: m[1], Width: atoi(m[2]), Rolls: atoi(m[3])}
		},
	},
	{
		// 316-12x2
		re: regexp.MustCompile(`(?i)^(\d{2,3})-(\d{1,2})(?:IN|INCH)?x(\d+)$`),
		extract: func(m []string) BubbleSKU {
			return BubbleSKU{Variant: VariantStandard, SizeCode: m[1], Width: atoi(m[2]), Rolls: atoi(m[3])}
		},
	},
}

// MatchBubbleSKU runs the bubble wrap SKU patterns against sku.
func MatchBubbleSKU(sku string) (BubbleSKU, bool) {
	sku = strings.TrimSpace(sku)
	for _, p := range bubbleSKUPatterns {
		if m := p.re.FindStringSubmatch(sku); m != nil {
			return p.extract(m), true
		}
	}
	return BubbleSKU{}, false
}

type bubbleSize struct {
	code  string
	label string
}

// Order matters for the substring fallback.
var bubbleSizes = []bubbleSize{
	{code: "18", label: "1/8"},
	{code: "316", label: "3/16"},
	{code: "516", label: "5/16"},
	{code: "12", label: "1/2"},
}

// SizeLabel maps a SKU size code to its fractional inch label. Unknown codes
// pass through unchanged.
func SizeLabel(code string) string {
	for _, s := range bubbleSizes {
		if s.code == code {
			return s.label
		}
	}
	return code
}

var rollTypes = map[int]string{
	1: "single",
	2: "double",
	3: "triple",
	4: "quad",
}

// RollTypes lists the roll-type labels in pack-size order.
var RollTypes = []string{"single", "double", "triple", "quad"}

// RollTypeFor maps a roll count to its label, defaulting to single.
func RollTypeFor(rolls int) string {
	if label, ok := rollTypes[rolls]; ok {
		return label
	}
	return "single"
}

var widthSKUTokens = []struct {
	tokens []string
	width  int
}{
	{tokens: []string{"-12inch-", "-12-"}, width: 12},
	{tokens: []string{"-24inch-", "-24-"}, width: 24},
	{tokens: []string{"-48inch-", "-48-"}, width: 48},
}

var knownLengths = []string{"350", "175", "90", "65"}

var (
	nameWidthRe  = regexp.MustCompile(`(?i)(?:^|[^\d/])(\d{1,3})\s*(?:"|”|inch(?:es)?\b|in\b)`)
	nameLengthRe = regexp.MustCompile(`(?i)(\d+)\s*(?:'|’|ft\b|feet\b)`)
	skuLengthRe  = regexp.MustCompile(`-(\d+)x\d+$`)
	skuCountRe   = regexp.MustCompile(`(?i)x(\d+)$`)
	nameRollsRe  = regexp.MustCompile(`(?i)\((\d+)\s*rolls?\)`)
)

// ParseBubbleWrap extracts bubble wrap attributes from a SKU and name.
// Fields that cannot be extracted are left unset.
func ParseBubbleWrap(sku, name string) *domain.BubbleWrapAttrs {
	attrs := &domain.BubbleWrapAttrs{}

	if m, ok := MatchBubbleSKU(sku); ok {
		attrs.BubbleSize = SizeLabel(m.SizeCode)
		attrs.Width = intPtr(m.Width)
		attrs.Length = m.Length
		attrs.RollsPerPack = intPtr(m.Rolls)
		attrs.RollType = RollTypeFor(m.Rolls)
		return attrs
	}

	attrs.BubbleSize = fallbackBubbleSize(sku, name)
	attrs.Width = fallbackWidth(sku, name)
	attrs.Length = fallbackLength(sku, name)

	if m := skuCountRe.FindStringSubmatch(sku); m != nil {
		attrs.RollsPerPack = intPtr(atoi(m[1]))
	} else if m := nameRollsRe.FindStringSubmatch(name); m != nil {
		attrs.RollsPerPack = intPtr(atoi(m[1]))
	}

	if kw := rollKeyword(name); kw != "" {
		attrs.RollType = kw
	} else if attrs.RollsPerPack != nil {
		attrs.RollType = RollTypeFor(*attrs.RollsPerPack)
	}

	return attrs
}

func fallbackBubbleSize(sku, name string) string {
	for _, s := range bubbleSizes {
		if strings.Contains(sku, s.code+"-") || strings.Contains(name, s.label) {
			return s.label
		}
	}
	return ""
}

func fallbackWidth(sku, name string) *int {
	lower := strings.ToLower(sku)
	for _, w := range widthSKUTokens {
		for _, token := range w.tokens {
			if strings.Contains(lower, token) {
				return intPtr(w.width)
			}
		}
	}
	if m := nameWidthRe.FindStringSubmatch(name); m != nil {
		return intPtr(atoi(m[1]))
	}
	return nil
}

func fallbackLength(sku, name string) *int {
	if m := skuLengthRe.FindStringSubmatch(sku); m != nil {
		return intPtr(atoi(m[1]))
	}
	if m := nameLengthRe.FindStringSubmatch(name); m != nil {
		return intPtr(atoi(m[1]))
	}
	for _, l := range knownLengths {
		if strings.Contains(name, l) {
			return intPtr(atoi(l))
		}
	}
	return nil
}

func rollKeyword(name string) string {
	lower := strings.ToLower(name)
	for _, label := range RollTypes {
		if strings.Contains(lower, label) {
			return label
		}
	}
	return ""
}

var (
	instaFullRe      = regexp.MustCompile(`(?i)^INSTA-(\d+)x(\d+)$`)
	instaSKUDensRe   = regexp.MustCompile(`(?i)INSTA-(\d+)x`)
	instaNameDensRe  = regexp.MustCompile(`#(\d+)`)
	instaNameQtyRe   = regexp.MustCompile(`(?i)\(Qty\s*(\d+)\)`)
	quickFoamKeyword = "quick"
)

const (
	FoamStandard = "standard"
	FoamQuickRT  = "quick_rt"
	PackUnitBags = "bags"
)

// DensityDisplay formats a foam density for display.
func DensityDisplay(density int) string {
	return "#" + strconv.Itoa(density)
}

// ParseInstapak extracts Instapak attributes from a SKU and name.
func ParseInstapak(sku, name string) *domain.InstapakAttrs {
	attrs := &domain.InstapakAttrs{FoamType: FoamStandard}
	sku = strings.TrimSpace(sku)

	if m := instaFullRe.FindStringSubmatch(sku); m != nil {
		attrs.Density = intPtr(atoi(m[1]))
		attrs.PackSize = intPtr(atoi(m[2]))
	} else {
		if m := instaSKUDensRe.FindStringSubmatch(sku); m != nil {
			attrs.Density = intPtr(atoi(m[1]))
		} else if m := instaNameDensRe.FindStringSubmatch(name); m != nil {
			attrs.Density = intPtr(atoi(m[1]))
		}

		if m := skuCountRe.FindStringSubmatch(sku); m != nil {
			attrs.PackSize = intPtr(atoi(m[1]))
		} else if m := instaNameQtyRe.FindStringSubmatch(name); m != nil {
			attrs.PackSize = intPtr(atoi(m[1]))
		}
	}

	if attrs.Density != nil {
		attrs.DensityDisplay = DensityDisplay(*attrs.Density)
	}
	if attrs.PackSize != nil {
		attrs.PackUnit = PackUnitBags
	}
	if strings.Contains(strings.ToLower(name), quickFoamKeyword) {
		attrs.FoamType = FoamQuickRT
	}

	return attrs
}

// attributeParsers dispatches a category to its attribute extractor.
var attributeParsers = map[domain.Category]func(sku, name string) domain.Attributes{
	domain.CategoryBubbleWrap: func(sku, name string) domain.Attributes { return ParseBubbleWrap(sku, name) },
	domain.CategoryInstapak:   func(sku, name string) domain.Attributes { return ParseInstapak(sku, name) },
}

// ParseAttributes returns the attribute bag for the category, or nil when the
// category has no attribute family or nothing could be extracted.
func ParseAttributes(category domain.Category, sku, name string) domain.Attributes {
	parse, ok := attributeParsers[category]
	if !ok {
		return nil
	}
	attrs := parse(sku, name)
	if attrs.Empty() {
		return nil
	}
	return attrs
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func intPtr(n int) *int {
	return &n
}
