package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRe matches dollar amounts like "$100k", "$0.75", "$110,000",
// "$1.2m". The optional suffix scales by a thousand or a million.
var priceRe = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*([kKmM])?`)

// rangeRe matches "between $X and $Y" with the same amount grammar.
var rangeRe = regexp.MustCompile(`between\s+\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*([kKmM])?\s+and\s+\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*([kKmM])?`)

// ParsePrice extracts the first dollar amount from a title. The
// second return value is false when no parseable amount is present;
// callers degrade to a neutral probability rather than erroring.
func ParsePrice(title string) (float64, bool) {
	m := priceRe.FindStringSubmatch(strings.ToLower(title))
	if m == nil {
		return 0, false
	}
	return scaledAmount(m[1], m[2])
}

// ParseRange extracts the two bounds of a "between $X and $Y" title,
// normalized so min <= max. ok is false when the title has no
// parseable range.
func ParseRange(title string) (min, max float64, ok bool) {
	m := rangeRe.FindStringSubmatch(strings.ToLower(title))
	if m == nil {
		return 0, 0, false
	}
	lo, okLo := scaledAmount(m[1], m[2])
	hi, okHi := scaledAmount(m[3], m[4])
	if !okLo || !okHi {
		return 0, 0, false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

func scaledAmount(num, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v, true
}

// assetRule pairs an asset identifier with its title keywords.
type assetRule struct {
	name     string
	keywords []string
}

var assetRules = []assetRule{
	{"bitcoin", []string{"bitcoin", "btc"}},
	{"ethereum", []string{"ethereum", "eth"}},
	{"solana", []string{"solana", "sol"}},
	{"xrp", []string{"xrp", "ripple"}},
	{"dogecoin", []string{"dogecoin", "doge"}},
	{"cardano", []string{"cardano", "ada"}},
}

// DetectAsset identifies which asset a title refers to, for reference
// price lookups and the market-cap weight factor. Returns "" when no
// known asset keyword appears.
func DetectAsset(title string) string {
	t := strings.ToLower(title)
	for _, rule := range assetRules {
		for _, kw := range rule.keywords {
			if containsKeyword(t, kw) {
				return rule.name
			}
		}
	}
	return ""
}

// KnownAssets returns the asset identifiers in detection order.
func KnownAssets() []string {
	names := make([]string, len(assetRules))
	for i, rule := range assetRules {
		names[i] = rule.name
	}
	return names
}
