// Package index implements the CPMI computation engine: trade
// aggregation, probability extraction, market weighting, category and
// overall index aggregation, and rolling-window smoothing.
package index

import (
	"github.com/arkodell/cpmi/internal/models"
)

// AggregateTrades groups a flat batch of trade records by market and
// accumulates per-market volume, value, and side splits in a single
// pass. Records without a condition ID are dropped.
func AggregateTrades(trades []models.TradeRecord) map[string]*models.MarketSummary {
	markets := make(map[string]*models.MarketSummary)

	for _, trade := range trades {
		if trade.ConditionID == "" {
			continue
		}

		m, ok := markets[trade.ConditionID]
		if !ok {
			m = &models.MarketSummary{
				ConditionID: trade.ConditionID,
				Title:       trade.Title,
				Slug:        trade.Slug,
				EventSlug:   trade.EventSlug,
			}
			markets[trade.ConditionID] = m
		}
		if m.Title == "" {
			m.Title = trade.Title
		}

		m.Trades = append(m.Trades, trade)
		m.TotalVolume += trade.Size
		m.TotalValue += trade.Size * trade.Price
		if trade.IsBuy() {
			m.BuyVolume += trade.Size
			m.BuyTrades++
		} else {
			m.SellVolume += trade.Size
			m.SellTrades++
		}

		if m.LastTrade == nil || trade.Timestamp > m.LastTrade.Timestamp {
			last := trade
			m.LastTrade = &last
		}
	}

	for _, m := range markets {
		if m.TotalVolume > 0 {
			m.AvgPrice = m.TotalValue / m.TotalVolume
		}
	}

	return markets
}
