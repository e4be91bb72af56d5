// Package models defines the core domain entities: trades, market
// summaries, and index snapshots.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Trade sides as reported by the Polymarket data API.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// TradeRecord is a single fill reported by the Polymarket data API
// /trades endpoint. Records are immutable once ingested and live for
// one aggregation cycle.
type TradeRecord struct {
	ConditionID string  `json:"conditionId"`
	Title       string  `json:"title"`
	Slug        string  `json:"slug"`
	EventSlug   string  `json:"eventSlug"`
	Side        string  `json:"side"`
	Size        float64 `json:"size"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"`
}

// UnmarshalJSON tolerates the API's loose typing: size, price, and
// timestamp arrive either as numbers or as quoted strings, and missing
// numeric fields default to zero rather than failing the whole batch.
func (t *TradeRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ConditionID string          `json:"conditionId"`
		Title       string          `json:"title"`
		Slug        string          `json:"slug"`
		EventSlug   string          `json:"eventSlug"`
		Side        string          `json:"side"`
		Size        json.RawMessage `json:"size"`
		Price       json.RawMessage `json:"price"`
		Timestamp   json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.ConditionID = raw.ConditionID
	t.Title = raw.Title
	t.Slug = raw.Slug
	t.EventSlug = raw.EventSlug
	t.Side = strings.ToUpper(strings.TrimSpace(raw.Side))
	t.Size = coerceFloat(raw.Size)
	t.Price = coerceFloat(raw.Price)
	t.Timestamp = int64(coerceFloat(raw.Timestamp))
	return nil
}

// IsBuy reports whether the trade is a taker buy.
func (t *TradeRecord) IsBuy() bool {
	return t.Side == SideBuy
}

// Time returns the trade timestamp as a time.Time.
func (t *TradeRecord) Time() time.Time {
	return time.Unix(t.Timestamp, 0)
}

// coerceFloat parses a JSON value that may be a number, a quoted
// number, or absent. Anything unparseable is 0.
func coerceFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
