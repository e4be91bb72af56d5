// Package exchange fetches reference spot prices and daily close
// history from a CoinGecko-compatible API. The engine uses prices to
// orient price-target and range markets and close history for the
// asset volatility factor.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrFetch marks a failed price or history request. Price data is an
// optional input: callers log and fall back to static prices.
var ErrFetch = errors.New("price fetch failed")

// Client queries a CoinGecko-compatible REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an exchange client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Prices fetches current USD spot prices for the given asset ids
// (CoinGecko ids: "bitcoin", "ethereum", ...). Assets missing from
// the response are absent from the result, not zeroed.
func (c *Client) Prices(ctx context.Context, assets []string) (map[string]float64, error) {
	u, err := url.Parse(c.baseURL + "/simple/price")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrFetch, err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(assets, ","))
	q.Set("vs_currencies", "usd")
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode prices: %v", ErrFetch, err)
	}

	prices := make(map[string]float64, len(raw))
	for asset, quotes := range raw {
		if usd, ok := quotes["usd"]; ok && usd > 0 {
			prices[asset] = usd
		}
	}
	return prices, nil
}

// CloseHistory fetches the last days of daily close prices for one
// asset, oldest first.
func (c *Client) CloseHistory(ctx context.Context, asset string, days int) ([]float64, error) {
	u, err := url.Parse(c.baseURL + "/coins/" + url.PathEscape(asset) + "/market_chart")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrFetch, err)
	}
	q := u.Query()
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	// Response shape: {"prices": [[timestampMs, price], ...]}.
	var raw struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode market chart: %v", ErrFetch, err)
	}

	closes := make([]float64, 0, len(raw.Prices))
	for _, point := range raw.Prices {
		closes = append(closes, point[1])
	}
	return closes, nil
}

func (c *Client) get(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	return buf, nil
}
