// Package classify maps free-text market titles to categories, market
// types, and the numeric context (prices, ranges, assets) embedded in
// them. Everything here is a pure function of the title text so the
// string heuristics stay independently testable.
package classify

import (
	"strings"
	"unicode"

	"github.com/arkodell/cpmi/internal/models"
)

// Uncategorized is returned when no category keyword matches. Markets
// in this bucket are excluded from aggregation rather than defaulted
// into a category.
const Uncategorized = ""

// categoryRule pairs a category name with its keyword list. Rules are
// checked in order; the first match wins.
type categoryRule struct {
	name     string
	keywords []string
}

// Regulation and adoption are checked before the asset price
// categories so "Will the SEC approve a Bitcoin ETF?" lands in
// regulation instead of bitcoin-price.
var categoryRules = []categoryRule{
	{"regulation", []string{"sec", "etf", "regulation", "regulatory", "regulator", "ban", "legislation", "lawsuit", "cftc"}},
	{"adoption", []string{"adoption", "adopt", "legal tender", "institutional", "strategic reserve", "treasury", "accept bitcoin", "accept crypto"}},
	{"bitcoin-price", []string{"bitcoin", "btc"}},
	{"ethereum-price", []string{"ethereum", "eth"}},
	{"solana-price", []string{"solana", "sol"}},
}

// Category assigns the first matching category from the ordered rule
// table, testing the title and both slugs. Returns Uncategorized when
// nothing matches.
func Category(title, slug, eventSlug string) string {
	haystacks := []string{
		strings.ToLower(title),
		strings.ToLower(slug),
		strings.ToLower(eventSlug),
	}
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			for _, h := range haystacks {
				if containsKeyword(h, kw) {
					return rule.name
				}
			}
		}
	}
	return Uncategorized
}

// Categories returns the category names from the rule table in match
// order.
func Categories() []string {
	names := make([]string, len(categoryRules))
	for i, rule := range categoryRules {
		names[i] = rule.name
	}
	return names
}

// TypeOf tags a title with a market type. Rules are ordered by
// specificity; sentiment is the universal fallback, so every title
// maps to exactly one type.
func TypeOf(title string) models.MarketType {
	t := strings.ToLower(title)

	switch {
	case isRange(t):
		return models.TypeRange
	case isPriceTarget(t):
		return models.TypePriceTarget
	case isDirectional(t):
		return models.TypeDirectional
	case isBinary(t):
		return models.TypeBinary
	default:
		return models.TypeSentiment
	}
}

func isRange(t string) bool {
	return strings.Contains(t, "between") &&
		strings.Contains(t, "and") &&
		(strings.Contains(t, "$") || strings.Contains(t, "price"))
}

var priceTargetVerbs = []string{"reach", "hit", "above", "below", "dip to", "drop to"}

func isPriceTarget(t string) bool {
	if !strings.Contains(t, "$") && !strings.Contains(t, "price") {
		return false
	}
	for _, verb := range priceTargetVerbs {
		if strings.Contains(t, verb) {
			return true
		}
	}
	return false
}

func isDirectional(t string) bool {
	return strings.Contains(t, "up or down") ||
		strings.Contains(t, "bullish") ||
		strings.Contains(t, "bearish")
}

var binaryCues = []string{"?", "happen", "pass", "win", "say"}

func isBinary(t string) bool {
	if !strings.Contains(t, "will") {
		return false
	}
	for _, cue := range binaryCues {
		if strings.Contains(t, cue) {
			return true
		}
	}
	return false
}

// containsKeyword matches kw against s. Short tickers ("btc", "eth",
// "sec") match only on word boundaries so that "whether" does not
// trigger the ethereum rule; longer keywords use plain substring
// containment.
func containsKeyword(s, kw string) bool {
	if len(kw) > 4 {
		return strings.Contains(s, kw)
	}
	for i := 0; ; {
		j := strings.Index(s[i:], kw)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(kw)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		i = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordChar(rune(s[i-1]))
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isWordChar(rune(s[i]))
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
