package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkodell/cpmi/internal/classify"
	"github.com/arkodell/cpmi/internal/logger"
	"github.com/arkodell/cpmi/internal/models"
)

// Config holds the engine's aggregation parameters. Validation errors
// here are operator misconfiguration and surface eagerly; everything
// downstream degrades instead of failing.
type Config struct {
	CategoryWeights map[string]float64
	Sensitivity     Sensitivity
	Baseline        float64
	SmoothingWindow time.Duration
	FetchLimit      int
	HistoryTail     int
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		CategoryWeights: map[string]float64{
			"bitcoin-price":  0.40,
			"ethereum-price": 0.30,
			"solana-price":   0.10,
			"regulation":     0.10,
			"adoption":       0.10,
		},
		Sensitivity:     DefaultSensitivity(),
		Baseline:        100,
		SmoothingWindow: time.Hour,
		FetchLimit:      500,
		HistoryTail:     20,
	}
}

const weightSumTolerance = 1e-9

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if len(c.CategoryWeights) == 0 {
		return fmt.Errorf("category weights must not be empty")
	}
	sum := 0.0
	for category, w := range c.CategoryWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("weight for category %q must be between 0.0 and 1.0", category)
		}
		sum += w
	}
	if sum > 1+weightSumTolerance {
		return fmt.Errorf("category weights sum to %.4f, must not exceed 1.0", sum)
	}
	for factor, s := range c.Sensitivity {
		if s < 0 || s > 10 {
			return fmt.Errorf("sensitivity for factor %q must be between 0 and 10", factor)
		}
	}
	if c.Baseline <= 0 {
		return fmt.Errorf("baseline must be positive")
	}
	if c.SmoothingWindow <= 0 {
		return fmt.Errorf("smoothing window must be positive")
	}
	if c.FetchLimit < 1 {
		return fmt.Errorf("fetch limit must be at least 1")
	}
	return nil
}

// TradeSource supplies one cycle's batch of trade records. A returned
// error aborts the tick without any state mutation.
type TradeSource interface {
	Trades(ctx context.Context, limit int) ([]models.TradeRecord, error)
}

// Engine owns all index state: the smoothed value, the rolling history
// buffer, the latest category indices, and the cross-cycle volatility
// trackers. Engines are independent instances with no package-level
// state, so tests can run several side by side.
type Engine struct {
	mu sync.RWMutex

	cfg        Config
	source     TradeSource
	prices     PriceTable
	volatility *VolatilityTracker
	weigher    *Weigher
	now        func() time.Time

	currentValue float64
	history      []models.IndexHistoryEntry
	categories   map[string]*float64
	lastUpdate   *time.Time
	lastMarkets  []models.MarketDiagnostic
	lastRaw      float64
	lastProb     float64
}

// New builds an Engine. The config must validate.
func New(cfg Config, source TradeSource) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	vol := NewVolatilityTracker(classify.DetectAsset)
	return &Engine{
		cfg:          cfg,
		source:       source,
		prices:       make(PriceTable),
		volatility:   vol,
		weigher:      NewWeigher(cfg.Sensitivity, vol),
		now:          time.Now,
		currentValue: cfg.Baseline,
		categories:   make(map[string]*float64),
	}, nil
}

// UpdatePrices replaces the reference price table used by the
// probability extractor and records asset volatilities from the
// supplied daily close series.
func (e *Engine) UpdatePrices(prices map[string]float64, closes map[string][]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for asset, p := range prices {
		if p > 0 {
			e.prices[asset] = p
		}
	}
	for asset, series := range closes {
		e.volatility.UpdateFromCloses(asset, series)
	}
}

// Tick runs one full aggregation cycle: fetch, aggregate, classify,
// extract, weigh, and fold into the smoothed index. The fetch is the
// single atomic failure point; on error the engine state is untouched.
// A nil snapshot with nil error means the cycle produced no usable
// market data and the previous index value stands.
func (e *Engine) Tick(ctx context.Context) (*models.IndexSnapshot, error) {
	trades, err := e.source.Trades(ctx, e.cfg.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	markets := AggregateTrades(trades)
	for _, m := range markets {
		m.Category = classify.Category(m.Title, m.Slug, m.EventSlug)
		m.MarketType = classify.TypeOf(m.Title)
		e.volatility.Observe(m.ConditionID, m.AvgPrice)
		m.BullishProbability = ExtractProbability(m, e.prices)
		m.Weight = e.weigher.Weight(m)
	}
	e.volatility.Prune(markets)

	categoryProbs := make(map[string]*float64, len(e.cfg.CategoryWeights))
	activeWeight := 0.0
	weightedSum := 0.0
	for category, catWeight := range e.cfg.CategoryWeights {
		prob := aggregateCategory(markets, category)
		categoryProbs[category] = prob
		if prob == nil {
			continue
		}
		// Renormalize against active weight only: an absent category
		// must not dilute the ones that have data.
		activeWeight += catWeight
		weightedSum += *prob * catWeight
	}

	if activeWeight == 0 {
		logger.Warn("No qualifying markets in any category; keeping index at %.2f", e.currentValue)
		return nil, nil
	}

	now := e.now()
	overall := weightedSum / activeWeight
	raw := e.cfg.Baseline + (overall - 50)

	e.history = append(e.history, models.IndexHistoryEntry{
		Timestamp:   now,
		Value:       raw,
		Probability: overall,
	})
	e.pruneHistory(now)

	sum := 0.0
	for _, entry := range e.history {
		sum += entry.Value
	}
	e.currentValue = sum / float64(len(e.history))
	e.categories = categoryProbs
	e.lastUpdate = &now
	e.lastRaw = raw
	e.lastProb = overall
	e.lastMarkets = diagnostics(markets)

	logger.Debug("Tick complete: %d markets, overall probability %.2f, raw %.2f, smoothed %.2f (%d points in window)",
		len(markets), overall, raw, e.currentValue, len(e.history))

	return e.snapshotLocked(now), nil
}

// aggregateCategory computes the weighted mean bullish probability of
// a category's qualifying markets, or nil when none qualify.
// Uncategorized markets never qualify for any category.
func aggregateCategory(markets map[string]*models.MarketSummary, category string) *float64 {
	weightSum := 0.0
	probSum := 0.0
	for _, m := range markets {
		if m.Category != category || m.Weight <= 0 {
			continue
		}
		weightSum += m.Weight
		probSum += m.BullishProbability * m.Weight
	}
	if weightSum == 0 {
		return nil
	}
	p := probSum / weightSum
	return &p
}

func (e *Engine) pruneHistory(now time.Time) {
	cutoff := now.Add(-e.cfg.SmoothingWindow)
	kept := e.history[:0]
	for _, entry := range e.history {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	e.history = kept
}

func diagnostics(markets map[string]*models.MarketSummary) []models.MarketDiagnostic {
	out := make([]models.MarketDiagnostic, 0, len(markets))
	for _, m := range markets {
		out = append(out, models.MarketDiagnostic{
			ConditionID:        m.ConditionID,
			Title:              m.Title,
			Category:           m.Category,
			MarketType:         m.MarketType,
			TotalVolume:        m.TotalVolume,
			TradeCount:         len(m.Trades),
			AvgPrice:           m.AvgPrice,
			BullishProbability: m.BullishProbability,
			Weight:             m.Weight,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// CurrentIndex returns the latest smoothed index with its category
// breakdown and a short history tail. It never errors: after a failed
// tick it keeps serving the last good value, with LastUpdate revealing
// staleness.
func (e *Engine) CurrentIndex() models.CurrentIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tail := e.history
	if n := e.cfg.HistoryTail; len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	tailCopy := make([]models.IndexHistoryEntry, len(tail))
	copy(tailCopy, tail)

	return models.CurrentIndex{
		Value:          e.currentValue,
		Interpretation: models.Interpret(e.currentValue, e.cfg.Baseline),
		LastUpdate:     e.lastUpdate,
		Categories:     e.breakdownLocked(),
		HistoryTail:    tailCopy,
	}
}

// CategoryBreakdown returns the latest per-category indices keyed by
// category name. Categories without data this cycle have a nil index.
func (e *Engine) CategoryBreakdown() map[string]models.CategoryBreakdown {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.breakdownLocked()
}

func (e *Engine) breakdownLocked() map[string]models.CategoryBreakdown {
	out := make(map[string]models.CategoryBreakdown, len(e.cfg.CategoryWeights))
	for category, weight := range e.cfg.CategoryWeights {
		b := models.CategoryBreakdown{Weight: weight}
		if prob, ok := e.categories[category]; ok && prob != nil {
			v := *prob
			b.Index = &v
			b.Interpretation = models.Interpret(v, 50)
			b.Deviation = v - 50
		}
		out[category] = b
	}
	return out
}

// History returns a copy of the current smoothing window buffer.
func (e *Engine) History() []models.IndexHistoryEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.IndexHistoryEntry, len(e.history))
	copy(out, e.history)
	return out
}

// Statistics summarizes the history buffer, or returns nil when the
// buffer is empty.
func (e *Engine) Statistics() *models.IndexStatistics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.statisticsLocked()
}

func (e *Engine) statisticsLocked() *models.IndexStatistics {
	if len(e.history) == 0 {
		return nil
	}
	min, max := e.history[0].Value, e.history[0].Value
	sum := 0.0
	for _, entry := range e.history {
		if entry.Value < min {
			min = entry.Value
		}
		if entry.Value > max {
			max = entry.Value
		}
		sum += entry.Value
	}
	mean := sum / float64(len(e.history))
	variance := 0.0
	for _, entry := range e.history {
		variance += (entry.Value - mean) * (entry.Value - mean)
	}
	variance /= float64(len(e.history))
	return &models.IndexStatistics{
		Min:        min,
		Max:        max,
		Average:    mean,
		Volatility: math.Sqrt(variance),
		DataPoints: len(e.history),
		TimeRange:  e.history[len(e.history)-1].Timestamp.Sub(e.history[0].Timestamp).String(),
	}
}

// Export assembles the full snapshot: index, breakdown, statistics,
// configuration, and the latest cycle's per-market diagnostics.
func (e *Engine) Export() models.IndexSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.snapshotLocked(e.now())
}

func (e *Engine) snapshotLocked(now time.Time) *models.IndexSnapshot {
	weights := make(map[string]float64, len(e.cfg.CategoryWeights))
	for category, w := range e.cfg.CategoryWeights {
		weights[category] = w
	}
	diags := make([]models.MarketDiagnostic, len(e.lastMarkets))
	copy(diags, e.lastMarkets)

	return &models.IndexSnapshot{
		ID:              uuid.New().String(),
		Timestamp:       now,
		Value:           e.currentValue,
		RawValue:        e.lastRaw,
		Probability:     e.lastProb,
		Interpretation:  models.Interpret(e.currentValue, e.cfg.Baseline),
		Categories:      e.breakdownLocked(),
		Statistics:      e.statisticsLocked(),
		CategoryWeights: weights,
		Baseline:        e.cfg.Baseline,
		SmoothingWindow: e.cfg.SmoothingWindow.String(),
		Markets:         diags,
	}
}
