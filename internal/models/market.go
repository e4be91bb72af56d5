package models

import (
	"errors"
	"math"
	"time"
)

// MarketType classifies how a market's title phrases its resolution
// condition, which drives probability extraction.
type MarketType string

const (
	TypeBinary      MarketType = "binary"
	TypeDirectional MarketType = "directional"
	TypePriceTarget MarketType = "price-target"
	TypeRange       MarketType = "range"
	TypeSentiment   MarketType = "sentiment"
)

// MarketSummary aggregates one cycle's trades for a single market
// (unique conditionId). Built fresh every cycle; only the
// probability-volatility trackers outlive it, keyed by ConditionID.
type MarketSummary struct {
	ConditionID string        `json:"condition_id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	EventSlug   string        `json:"event_slug"`
	Trades      []TradeRecord `json:"-"`

	TotalVolume float64 `json:"total_volume"`
	TotalValue  float64 `json:"total_value"`
	BuyVolume   float64 `json:"buy_volume"`
	SellVolume  float64 `json:"sell_volume"`
	BuyTrades   int     `json:"buy_trades"`
	SellTrades  int     `json:"sell_trades"`

	// AvgPrice is TotalValue/TotalVolume, the volume-weighted mean
	// fill price in [0,1]; 0 when TotalVolume is 0.
	AvgPrice  float64     `json:"avg_price"`
	LastTrade *TradeRecord `json:"-"`

	Category   string     `json:"category"`
	MarketType MarketType `json:"market_type"`

	BullishProbability float64 `json:"bullish_probability"`
	Weight             float64 `json:"weight"`
}

const volumeTolerance = 1e-6

// Validate checks the aggregation invariants.
func (m *MarketSummary) Validate() error {
	if m.ConditionID == "" {
		return errors.New("condition ID must not be empty")
	}
	if m.TotalVolume < 0 {
		return errors.New("total volume must not be negative")
	}
	if math.Abs(m.BuyVolume+m.SellVolume-m.TotalVolume) > volumeTolerance {
		return errors.New("buy + sell volume must equal total volume")
	}
	if m.BuyTrades+m.SellTrades != len(m.Trades) {
		return errors.New("buy + sell trade counts must equal trade count")
	}
	if m.AvgPrice < 0 || m.AvgPrice > 1 {
		return errors.New("average price must be between 0.0 and 1.0")
	}
	if m.BullishProbability < 0 || m.BullishProbability > 100 {
		return errors.New("bullish probability must be between 0 and 100")
	}
	if m.Weight < 0 {
		return errors.New("weight must not be negative")
	}
	return nil
}

// LastTradeTime returns the timestamp of the most recent trade, or the
// zero time if the summary has no trades.
func (m *MarketSummary) LastTradeTime() time.Time {
	if m.LastTrade == nil {
		return time.Time{}
	}
	return m.LastTrade.Time()
}
