package models

import "time"

// Sentiment interpretation labels exposed by the API.
const (
	InterpretationBullish = "Bullish"
	InterpretationBearish = "Bearish"
	InterpretationNeutral = "Neutral"
)

// IndexHistoryEntry is one computed tick inside the smoothing window.
type IndexHistoryEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Value       float64   `json:"value"`
	Probability float64   `json:"probability"`
}

// CategoryBreakdown describes one category's contribution to the index
// for the latest cycle. Index is nil when the category had no
// qualifying markets this cycle.
type CategoryBreakdown struct {
	Index          *float64 `json:"index"`
	Weight         float64  `json:"weight"`
	Interpretation string   `json:"interpretation"`
	Deviation      float64  `json:"deviation"`
}

// IndexStatistics summarizes the current history buffer.
type IndexStatistics struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Average    float64 `json:"average"`
	Volatility float64 `json:"volatility"`
	DataPoints int     `json:"dataPoints"`
	TimeRange  string  `json:"timeRange"`
}

// CurrentIndex is the primary read surface for the API layer.
type CurrentIndex struct {
	Value          float64                      `json:"value"`
	Interpretation string                       `json:"interpretation"`
	LastUpdate     *time.Time                   `json:"lastUpdate"`
	Categories     map[string]CategoryBreakdown `json:"categories"`
	HistoryTail    []IndexHistoryEntry          `json:"historyTail"`
}

// MarketDiagnostic is the per-market detail included in full exports.
type MarketDiagnostic struct {
	ConditionID        string     `json:"condition_id"`
	Title              string     `json:"title"`
	Category           string     `json:"category"`
	MarketType         MarketType `json:"market_type"`
	TotalVolume        float64    `json:"total_volume"`
	TradeCount         int        `json:"trade_count"`
	AvgPrice           float64    `json:"avg_price"`
	BullishProbability float64    `json:"bullish_probability"`
	Weight             float64    `json:"weight"`
}

// IndexSnapshot is the full export payload: the index, its breakdown,
// buffer statistics, effective configuration, and raw per-market
// diagnostics from the latest cycle.
type IndexSnapshot struct {
	ID              string                       `json:"id"`
	Timestamp       time.Time                    `json:"timestamp"`
	Value           float64                      `json:"value"`
	RawValue        float64                      `json:"raw_value"`
	Probability     float64                      `json:"probability"`
	Interpretation  string                       `json:"interpretation"`
	Categories      map[string]CategoryBreakdown `json:"categories"`
	Statistics      *IndexStatistics             `json:"statistics"`
	CategoryWeights map[string]float64           `json:"category_weights"`
	Baseline        float64                      `json:"baseline"`
	SmoothingWindow string                       `json:"smoothing_window"`
	Markets         []MarketDiagnostic           `json:"markets"`
}

// Interpret maps an index value on the 100 baseline to a sentiment
// label: above baseline is bullish, below is bearish.
func Interpret(value, baseline float64) string {
	switch {
	case value > baseline:
		return InterpretationBullish
	case value < baseline:
		return InterpretationBearish
	default:
		return InterpretationNeutral
	}
}
