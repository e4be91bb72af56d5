package index

import (
	"strings"

	"github.com/arkodell/cpmi/internal/classify"
	"github.com/arkodell/cpmi/internal/models"
)

// Neutral is the probability returned when a title's numeric context
// cannot be parsed: without a direction there is no information to
// lean on.
const Neutral = 50.0

// PriceTable supplies reference spot prices keyed by asset identifier
// ("bitcoin", "ethereum", ...). A zero or missing entry means no
// reference price is available.
type PriceTable map[string]float64

var bullishKeywords = []string{"up", "higher", "rise", "increase", "bull", "positive", "yes", "above", "reach"}
var bearishKeywords = []string{"down", "lower", "fall", "decrease", "bear", "negative", "no", "below", "crash"}

// ExtractProbability produces the bullish probability in [0,100] for
// one market, using the market-type branch selected by the classifier.
// Every branch clamps its output; unparseable numeric context yields
// Neutral rather than an error.
func ExtractProbability(m *models.MarketSummary, prices PriceTable) float64 {
	switch m.MarketType {
	case models.TypeBinary:
		return binaryProbability(m)
	case models.TypePriceTarget:
		return priceTargetProbability(m, prices)
	case models.TypeRange:
		return rangeProbability(m, prices)
	case models.TypeDirectional:
		return directionalProbability(m)
	default:
		return sentimentProbability(m)
	}
}

// binaryProbability reads avgPrice as the market-implied probability
// of the literal resolution condition. When the condition itself
// describes the bearish case, the bullish probability is its
// complement.
func binaryProbability(m *models.MarketSummary) float64 {
	if outcomeIsBullish(m.Title) {
		return clamp100(m.AvgPrice * 100)
	}
	return clamp100((1 - m.AvgPrice) * 100)
}

func priceTargetProbability(m *models.MarketSummary, prices PriceTable) float64 {
	target, ok := classify.ParsePrice(m.Title)
	if !ok {
		return Neutral
	}
	current := prices[classify.DetectAsset(m.Title)]
	if current <= 0 {
		return Neutral
	}
	// Target above spot: the market resolves YES on an upward move,
	// so its implied probability is directly bullish.
	if target > current {
		return clamp100(m.AvgPrice * 100)
	}
	return clamp100((1 - m.AvgPrice) * 100)
}

func rangeProbability(m *models.MarketSummary, prices PriceTable) float64 {
	if _, _, ok := classify.ParseRange(m.Title); !ok {
		return Neutral
	}
	current := prices[classify.DetectAsset(m.Title)]
	if current <= 0 {
		return Neutral
	}
	// Whether spot sits inside or outside the stated range, the
	// implied probability is read the same way. Inverting the outside
	// case needs a product decision first.
	return clamp100(m.AvgPrice * 100)
}

var directionalBullish = []string{"up", "higher", "rise"}

func directionalProbability(m *models.MarketSummary) float64 {
	t := strings.ToLower(m.Title)
	for _, kw := range directionalBullish {
		if strings.Contains(t, kw) {
			return clamp100(m.AvgPrice * 100)
		}
	}
	return clamp100((1 - m.AvgPrice) * 100)
}

// sentimentProbability is the fallback when the title carries no
// usable structure: blend the buy-trade ratio with the buy-volume
// ratio, weighted toward trade count.
func sentimentProbability(m *models.MarketSummary) float64 {
	buyTradeRatio := safeRatio(float64(m.BuyTrades), float64(m.BuyTrades+m.SellTrades))
	buyVolumeRatio := safeRatio(m.BuyVolume, m.BuyVolume+m.SellVolume)
	sentiment := 0.6*buyTradeRatio + 0.4*buyVolumeRatio
	return clamp100(sentiment * 100)
}

// outcomeIsBullish decides the directional polarity of the outcome a
// title describes by counting bullish vs bearish keyword occurrences.
func outcomeIsBullish(title string) bool {
	t := strings.ToLower(title)
	bullish, bearish := 0, 0
	for _, kw := range bullishKeywords {
		bullish += strings.Count(t, kw)
	}
	for _, kw := range bearishKeywords {
		bearish += strings.Count(t, kw)
	}
	return bullish > bearish
}

// safeRatio returns num/den, or 0.5 (neutral) when the denominator is
// zero.
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0.5
	}
	return num / den
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
