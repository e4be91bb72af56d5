package index

import (
	"time"

	"github.com/arkodell/cpmi/internal/classify"
	"github.com/arkodell/cpmi/internal/models"
)

// Weight factor names used in the sensitivity configuration.
const (
	FactorVolume     = "volume"
	FactorRecency    = "recency"
	FactorImpact     = "impact"
	FactorMarketCap  = "market_cap"
	FactorVolatility = "volatility"
)

// Sensitivity scales each weight factor's contribution as an integer
// in [0,10], applied as factor * (sensitivity/10).
type Sensitivity map[string]int

// DefaultSensitivity returns the stock factor sensitivities.
func DefaultSensitivity() Sensitivity {
	return Sensitivity{
		FactorVolume:     8,
		FactorRecency:    6,
		FactorImpact:     7,
		FactorMarketCap:  5,
		FactorVolatility: 4,
	}
}

const (
	// volumeScale is the volume at which the volume factor saturates.
	volumeScale = 1000.0
	// maxTradeAge is the age at which the recency factor reaches zero.
	maxTradeAge = 24 * time.Hour
)

// Per-category impact constants, decreasing by category importance.
var impactFactors = map[string]float64{
	"bitcoin-price":  1.0,
	"ethereum-price": 0.8,
	"solana-price":   0.6,
	"regulation":     0.7,
	"adoption":       0.5,
}

const defaultImpactFactor = 0.1

// Per-asset market-cap proxy constants from a fixed ranking.
var marketCapFactors = map[string]float64{
	"bitcoin":  1.0,
	"ethereum": 0.9,
	"solana":   0.7,
	"xrp":      0.6,
	"dogecoin": 0.5,
	"cardano":  0.4,
}

const defaultMarketCapFactor = 0.2

// Weigher computes composite market weights. It owns the per-market
// probability-volatility trackers, which are the only state carried
// across cycles.
type Weigher struct {
	sensitivity Sensitivity
	volatility  *VolatilityTracker
	now         func() time.Time
}

// NewWeigher builds a Weigher with the given sensitivities. Factors
// absent from the map contribute nothing.
func NewWeigher(sensitivity Sensitivity, volatility *VolatilityTracker) *Weigher {
	return &Weigher{
		sensitivity: sensitivity,
		volatility:  volatility,
		now:         time.Now,
	}
}

// Weight combines the five factors via the sensitivity-scaled linear
// blend, clamped to [0,1] so no single market can dominate its
// category.
func (w *Weigher) Weight(m *models.MarketSummary) float64 {
	total := 0.0
	total += volumeFactor(m) * w.scale(FactorVolume)
	total += w.timeFactor(m) * w.scale(FactorRecency)
	total += impactFactor(m.Category) * w.scale(FactorImpact)
	total += marketCapFactor(m.Title) * w.scale(FactorMarketCap)
	if w.volatility != nil {
		total += w.volatility.Factor(m) * w.scale(FactorVolatility)
	}
	return clamp01(total)
}

func (w *Weigher) scale(factor string) float64 {
	s := w.sensitivity[factor]
	if s < 0 {
		s = 0
	}
	if s > 10 {
		s = 10
	}
	return float64(s) / 10
}

func volumeFactor(m *models.MarketSummary) float64 {
	f := m.TotalVolume / volumeScale
	if f > 1 {
		return 1
	}
	return f
}

func (w *Weigher) timeFactor(m *models.MarketSummary) float64 {
	last := m.LastTradeTime()
	if last.IsZero() {
		return 0
	}
	age := w.now().Sub(last)
	if age < 0 {
		age = 0
	}
	f := 1 - age.Seconds()/maxTradeAge.Seconds()
	if f < 0 {
		return 0
	}
	return f
}

func impactFactor(category string) float64 {
	if f, ok := impactFactors[category]; ok {
		return f
	}
	return defaultImpactFactor
}

func marketCapFactor(title string) float64 {
	if f, ok := marketCapFactors[classify.DetectAsset(title)]; ok {
		return f
	}
	return defaultMarketCapFactor
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
