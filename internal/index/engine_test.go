package index

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/arkodell/cpmi/internal/models"
)

type stubSource struct {
	trades []models.TradeRecord
	err    error
}

func (s *stubSource) Trades(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	return s.trades, s.err
}

func newTestEngine(t *testing.T, cfg Config, source TradeSource) *Engine {
	t.Helper()
	e, err := New(cfg, source)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"empty weights", func(c *Config) { c.CategoryWeights = nil }, true},
		{"weights exceed one", func(c *Config) { c.CategoryWeights["bitcoin-price"] = 0.9 }, true},
		{"negative weight", func(c *Config) { c.CategoryWeights["bitcoin-price"] = -0.1 }, true},
		{"sensitivity out of range", func(c *Config) { c.Sensitivity[FactorVolume] = 11 }, true},
		{"zero baseline", func(c *Config) { c.Baseline = 0 }, true},
		{"zero window", func(c *Config) { c.SmoothingWindow = 0 }, true},
		{"weights below one are allowed", func(c *Config) { delete(c.CategoryWeights, "adoption") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// Worked scenario: two trades at 0.6 for "Will Bitcoin reach $100k?"
// give avgPrice 0.6, bullish probability 60, overall 60, raw index
// 110, and a first-tick smoothed value of 110.
func TestTickSingleMarketScenario(t *testing.T) {
	now := time.Now()
	source := &stubSource{trades: []models.TradeRecord{
		{ConditionID: "btc-100k", Title: "Will Bitcoin reach $100k?", Side: models.SideBuy, Size: 10, Price: 0.6, Timestamp: now.Unix()},
		{ConditionID: "btc-100k", Title: "Will Bitcoin reach $100k?", Side: models.SideSell, Size: 5, Price: 0.6, Timestamp: now.Unix()},
	}}
	e := newTestEngine(t, DefaultConfig(), source)
	e.UpdatePrices(map[string]float64{"bitcoin": 95_000}, nil)

	snap, err := e.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if math.Abs(snap.Probability-60) > 1e-9 {
		t.Errorf("overall probability = %v, want 60", snap.Probability)
	}
	if math.Abs(snap.RawValue-110) > 1e-9 {
		t.Errorf("raw index = %v, want 110", snap.RawValue)
	}

	current := e.CurrentIndex()
	if math.Abs(current.Value-110) > 1e-9 {
		t.Errorf("smoothed index = %v, want 110", current.Value)
	}
	if current.Interpretation != models.InterpretationBullish {
		t.Errorf("interpretation = %q, want Bullish", current.Interpretation)
	}
	if current.LastUpdate == nil {
		t.Error("LastUpdate not set")
	}
}

// Worked scenario: categories weighted 0.4/0.6 with probabilities
// 70/50 give overall 58 and raw index 108.
func TestTickTwoCategoryScenario(t *testing.T) {
	now := time.Now()
	source := &stubSource{trades: []models.TradeRecord{
		{ConditionID: "btc", Title: "Will Bitcoin reach $100k?", Side: models.SideBuy, Size: 100, Price: 0.7, Timestamp: now.Unix()},
		{ConditionID: "eth", Title: "Will ETH hit $5k?", Side: models.SideBuy, Size: 100, Price: 0.5, Timestamp: now.Unix()},
	}}

	cfg := DefaultConfig()
	cfg.CategoryWeights = map[string]float64{
		"bitcoin-price":  0.4,
		"ethereum-price": 0.6,
	}
	e := newTestEngine(t, cfg, source)
	e.UpdatePrices(map[string]float64{"bitcoin": 95_000, "ethereum": 3_000}, nil)

	snap, err := e.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if math.Abs(snap.Probability-58) > 1e-9 {
		t.Errorf("overall probability = %v, want 58", snap.Probability)
	}
	if math.Abs(snap.RawValue-108) > 1e-9 {
		t.Errorf("raw index = %v, want 108", snap.RawValue)
	}

	breakdown := e.CategoryBreakdown()
	btc := breakdown["bitcoin-price"]
	if btc.Index == nil || math.Abs(*btc.Index-70) > 1e-9 {
		t.Errorf("bitcoin-price index = %v, want 70", btc.Index)
	}
	if btc.Interpretation != models.InterpretationBullish {
		t.Errorf("bitcoin-price interpretation = %q, want Bullish", btc.Interpretation)
	}
	if math.Abs(btc.Deviation-20) > 1e-9 {
		t.Errorf("bitcoin-price deviation = %v, want 20", btc.Deviation)
	}
}

// Active-weight renormalization: with one of two configured categories
// empty, the index must equal what it would be with that category
// removed from the configuration entirely.
func TestTickActiveWeightRenormalization(t *testing.T) {
	now := time.Now()
	trades := []models.TradeRecord{
		{ConditionID: "btc", Title: "Will Bitcoin reach $100k?", Side: models.SideBuy, Size: 100, Price: 0.7, Timestamp: now.Unix()},
	}
	prices := map[string]float64{"bitcoin": 95_000}

	twoCat := DefaultConfig()
	twoCat.CategoryWeights = map[string]float64{
		"bitcoin-price":  0.4,
		"ethereum-price": 0.6, // no qualifying markets this cycle
	}
	e1 := newTestEngine(t, twoCat, &stubSource{trades: trades})
	e1.UpdatePrices(prices, nil)

	oneCat := DefaultConfig()
	oneCat.CategoryWeights = map[string]float64{"bitcoin-price": 0.4}
	e2 := newTestEngine(t, oneCat, &stubSource{trades: trades})
	e2.UpdatePrices(prices, nil)

	s1, err := e1.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick e1: %v", err)
	}
	s2, err := e2.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick e2: %v", err)
	}
	if math.Abs(s1.Probability-s2.Probability) > 1e-9 {
		t.Errorf("phantom weight dilution: %v vs %v", s1.Probability, s2.Probability)
	}
	if math.Abs(s1.Probability-70) > 1e-9 {
		t.Errorf("overall probability = %v, want 70", s1.Probability)
	}
}

// Equal weights reduce the category aggregation to the unweighted
// arithmetic mean.
func TestAggregateCategoryEqualWeightMean(t *testing.T) {
	markets := map[string]*models.MarketSummary{
		"a": {ConditionID: "a", Category: "bitcoin-price", BullishProbability: 40, Weight: 0.5},
		"b": {ConditionID: "b", Category: "bitcoin-price", BullishProbability: 60, Weight: 0.5},
		"c": {ConditionID: "c", Category: "bitcoin-price", BullishProbability: 80, Weight: 0.5},
	}
	got := aggregateCategory(markets, "bitcoin-price")
	if got == nil {
		t.Fatal("expected a probability")
	}
	if math.Abs(*got-60) > 1e-9 {
		t.Errorf("category probability = %v, want 60", *got)
	}
}

func TestAggregateCategoryExclusions(t *testing.T) {
	markets := map[string]*models.MarketSummary{
		"zero-weight":   {ConditionID: "zero-weight", Category: "bitcoin-price", BullishProbability: 90, Weight: 0},
		"uncategorized": {ConditionID: "uncategorized", Category: "", BullishProbability: 90, Weight: 1},
	}
	if got := aggregateCategory(markets, "bitcoin-price"); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
}

// Smoothing window boundary: an entry just older than the window is
// dropped from the mean; one just inside remains.
func TestTickSmoothingWindowBoundary(t *testing.T) {
	now := time.Now()
	source := &stubSource{trades: []models.TradeRecord{
		{ConditionID: "btc", Title: "Will Bitcoin reach $100k?", Side: models.SideBuy, Size: 100, Price: 0.6, Timestamp: now.Unix()},
	}}
	e := newTestEngine(t, DefaultConfig(), source)
	e.UpdatePrices(map[string]float64{"bitcoin": 95_000}, nil)
	e.now = func() time.Time { return now }

	window := e.cfg.SmoothingWindow
	e.history = []models.IndexHistoryEntry{
		{Timestamp: now.Add(-window - time.Second), Value: 999, Probability: 99}, // must be excluded
		{Timestamp: now.Add(-window + time.Second), Value: 90, Probability: 40},  // must be included
	}

	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	history := e.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	// (90 + 110) / 2
	if got := e.CurrentIndex().Value; math.Abs(got-100) > 1e-9 {
		t.Errorf("smoothed index = %v, want 100", got)
	}
}

// A fetch failure aborts the tick without any state mutation.
func TestTickFetchFailure(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}
	e := newTestEngine(t, DefaultConfig(), source)

	if _, err := e.Tick(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	current := e.CurrentIndex()
	if current.Value != e.cfg.Baseline {
		t.Errorf("index mutated on fetch failure: %v", current.Value)
	}
	if current.LastUpdate != nil {
		t.Error("LastUpdate set on fetch failure")
	}
	if len(e.History()) != 0 {
		t.Error("history mutated on fetch failure")
	}
}

// With no qualifying markets the tick is a no-op: the previous
// smoothed value stands and nothing is appended to history.
func TestTickNoQualifyingMarkets(t *testing.T) {
	now := time.Now()
	good := []models.TradeRecord{
		{ConditionID: "btc", Title: "Will Bitcoin reach $100k?", Side: models.SideBuy, Size: 100, Price: 0.8, Timestamp: now.Unix()},
	}
	source := &stubSource{trades: good}
	e := newTestEngine(t, DefaultConfig(), source)
	e.UpdatePrices(map[string]float64{"bitcoin": 95_000}, nil)

	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	before := e.CurrentIndex().Value

	source.trades = []models.TradeRecord{
		{ConditionID: "nfl", Title: "Will the Chiefs win the Super Bowl?", Side: models.SideBuy, Size: 50, Price: 0.5, Timestamp: now.Unix()},
	}
	snap, err := e.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if snap != nil {
		t.Error("expected nil snapshot for an empty cycle")
	}
	if got := e.CurrentIndex().Value; got != before {
		t.Errorf("index changed on empty cycle: %v -> %v", before, got)
	}
	if len(e.History()) != 1 {
		t.Errorf("history length = %d, want 1", len(e.History()))
	}
}

func TestStatistics(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), &stubSource{})
	if got := e.Statistics(); got != nil {
		t.Errorf("empty buffer statistics = %+v, want nil", got)
	}

	base := time.Now()
	e.history = []models.IndexHistoryEntry{
		{Timestamp: base.Add(-2 * time.Minute), Value: 95},
		{Timestamp: base.Add(-1 * time.Minute), Value: 105},
		{Timestamp: base, Value: 100},
	}
	stats := e.Statistics()
	if stats == nil {
		t.Fatal("expected statistics")
	}
	if stats.Min != 95 || stats.Max != 105 {
		t.Errorf("min/max = %v/%v, want 95/105", stats.Min, stats.Max)
	}
	if math.Abs(stats.Average-100) > 1e-9 {
		t.Errorf("average = %v, want 100", stats.Average)
	}
	if stats.DataPoints != 3 {
		t.Errorf("dataPoints = %d, want 3", stats.DataPoints)
	}
	// Population stddev of {95, 105, 100}.
	want := math.Sqrt(50.0 / 3.0)
	if math.Abs(stats.Volatility-want) > 1e-9 {
		t.Errorf("volatility = %v, want %v", stats.Volatility, want)
	}
}

func TestExportSnapshot(t *testing.T) {
	now := time.Now()
	source := &stubSource{trades: []models.TradeRecord{
		{ConditionID: "btc", Title: "Will Bitcoin reach $100k?", Side: models.SideBuy, Size: 100, Price: 0.6, Timestamp: now.Unix()},
	}}
	e := newTestEngine(t, DefaultConfig(), source)
	e.UpdatePrices(map[string]float64{"bitcoin": 95_000}, nil)
	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	snap := e.Export()
	if snap.ID == "" {
		t.Error("snapshot ID empty")
	}
	if len(snap.Markets) != 1 {
		t.Errorf("diagnostics = %d markets, want 1", len(snap.Markets))
	}
	if snap.Markets[0].Category != "bitcoin-price" {
		t.Errorf("diagnostic category = %q", snap.Markets[0].Category)
	}
	if snap.Statistics == nil {
		t.Error("snapshot statistics missing")
	}
	if snap.Baseline != 100 {
		t.Errorf("baseline = %v", snap.Baseline)
	}
}
