package index

import (
	"math"

	"github.com/arkodell/cpmi/internal/models"
)

const (
	// ewmaLambda is the RiskMetrics decay for the squared-log-return
	// EWMA on daily closes.
	ewmaLambda = 0.94
	// deltaWindow bounds the per-market probability delta buffer.
	deltaWindow = 12
	// probVolScale maps a probability-delta stddev into [0,1]; a 0.1
	// stddev of successive implied-probability moves saturates.
	probVolScale = 10.0
)

// marketVolState carries one market's probability history across
// cycles: the last observed avgPrice and a ring buffer of successive
// deltas.
type marketVolState struct {
	hasLast   bool
	lastPrice float64
	deltas    []float64
	idx       int
}

// VolatilityTracker blends externally-supplied asset price volatility
// with internally-tracked probability-change volatility per market.
// It is owned by the engine and mutated only inside a tick.
type VolatilityTracker struct {
	assetVol map[string]float64
	markets  map[string]*marketVolState
	detect   func(title string) string
}

// NewVolatilityTracker builds an empty tracker. detect maps a market
// title to its asset identifier for the asset-volatility lookup.
func NewVolatilityTracker(detect func(title string) string) *VolatilityTracker {
	return &VolatilityTracker{
		assetVol: make(map[string]float64),
		markets:  make(map[string]*marketVolState),
		detect:   detect,
	}
}

// SetAssetVolatility records an annualized volatility for an asset,
// typically from UpdateFromCloses or an external feed.
func (v *VolatilityTracker) SetAssetVolatility(asset string, vol float64) {
	v.assetVol[asset] = clamp01(vol)
}

// UpdateFromCloses computes an annualized EWMA volatility from a daily
// close series and records it for the asset. Series shorter than two
// points are ignored.
func (v *VolatilityTracker) UpdateFromCloses(asset string, closes []float64) {
	if len(closes) < 2 {
		return
	}
	variance := 0.0
	seeded := false
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		r := math.Log(closes[i] / closes[i-1])
		if !seeded {
			variance = r * r
			seeded = true
			continue
		}
		variance = ewmaLambda*variance + (1-ewmaLambda)*r*r
	}
	if !seeded {
		return
	}
	annualized := math.Sqrt(variance) * math.Sqrt(365)
	v.SetAssetVolatility(asset, annualized)
}

// Observe feeds one cycle's avgPrice into the market's delta buffer.
// Call once per market per tick, after aggregation.
func (v *VolatilityTracker) Observe(conditionID string, avgPrice float64) {
	state, ok := v.markets[conditionID]
	if !ok {
		state = &marketVolState{}
		v.markets[conditionID] = state
	}
	if state.hasLast {
		delta := avgPrice - state.lastPrice
		if len(state.deltas) < deltaWindow {
			state.deltas = append(state.deltas, delta)
		} else {
			state.deltas[state.idx] = delta
		}
		state.idx = (state.idx + 1) % deltaWindow
	}
	state.hasLast = true
	state.lastPrice = avgPrice
}

// Factor returns the volatility weight factor for a market:
// 1 - combined volatility, where combined blends the asset's price
// volatility with the market's own probability-change volatility.
func (v *VolatilityTracker) Factor(m *models.MarketSummary) float64 {
	asset := 0.0
	if v.detect != nil {
		asset = v.assetVol[v.detect(m.Title)]
	}
	prob := clamp01(v.probStddev(m.ConditionID) * probVolScale)
	combined := clamp01(0.6*asset + 0.4*prob)
	return 1 - combined
}

// Prune drops tracker state for markets absent from the given set,
// bounding memory across long runs.
func (v *VolatilityTracker) Prune(active map[string]*models.MarketSummary) {
	for id := range v.markets {
		if _, ok := active[id]; !ok {
			delete(v.markets, id)
		}
	}
}

func (v *VolatilityTracker) probStddev(conditionID string) float64 {
	state, ok := v.markets[conditionID]
	if !ok || len(state.deltas) < 2 {
		return 0
	}
	mean := 0.0
	for _, d := range state.deltas {
		mean += d
	}
	mean /= float64(len(state.deltas))
	m2 := 0.0
	for _, d := range state.deltas {
		m2 += (d - mean) * (d - mean)
	}
	return math.Sqrt(m2 / float64(len(state.deltas)-1))
}
