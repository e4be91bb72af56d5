package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"bitcoin":{"usd":95000},"ethereum":{"usd":3200},"broken":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	prices, err := c.Prices(context.Background(), []string{"bitcoin", "ethereum", "broken"})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if prices["bitcoin"] != 95000 {
		t.Errorf("bitcoin = %v, want 95000", prices["bitcoin"])
	}
	if prices["ethereum"] != 3200 {
		t.Errorf("ethereum = %v, want 3200", prices["ethereum"])
	}
	if _, ok := prices["broken"]; ok {
		t.Error("asset with no usd quote should be absent")
	}
}

func TestCloseHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("days"); got != "30" {
			t.Errorf("days = %q, want 30", got)
		}
		w.Write([]byte(`{"prices":[[1700000000000,94000],[1700086400000,95000],[1700172800000,96000]]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	closes, err := c.CloseHistory(context.Background(), "bitcoin", 30)
	if err != nil {
		t.Fatalf("CloseHistory: %v", err)
	}
	want := []float64{94000, 95000, 96000}
	if len(closes) != len(want) {
		t.Fatalf("got %d closes, want %d", len(closes), len(want))
	}
	for i := range want {
		if closes[i] != want[i] {
			t.Errorf("closes[%d] = %v, want %v", i, closes[i], want[i])
		}
	}
}

func TestPricesErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Prices(context.Background(), []string{"bitcoin"})
	if !errors.Is(err, ErrFetch) {
		t.Errorf("error %v is not ErrFetch", err)
	}
}
