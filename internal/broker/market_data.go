package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"options-scalper-bot/internal/indicator"
)

// MarketDataClient fetches the precomputed indicator snapshot and recent
// candles from the market-data collaborator service. Indicator math (EMA,
// RSI, VWAP, ATR) lives in that service, not here.
type MarketDataClient struct {
	baseURL string
	symbol  string
	creds   *Credentials
	client  *http.Client
}

// NewMarketDataClient creates a client for the market-data service.
func NewMarketDataClient(baseURL, symbol string, creds *Credentials) *MarketDataClient {
	return &MarketDataClient{
		baseURL: baseURL,
		symbol:  symbol,
		creds:   creds,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type snapshotResponse struct {
	Snapshot *indicator.Snapshot `json:"snapshot"`
	Candles  []indicator.Candle  `json:"candles"`
}

// Snapshot returns the indicator bundle for the tick's symbol.
func (m *MarketDataClient) Snapshot(ctx context.Context, tick indicator.Tick) (*indicator.Snapshot, []indicator.Candle, error) {
	endpoint := fmt.Sprintf("%s/snapshot?symbol=%s", m.baseURL, url.QueryEscape(m.symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, err
	}
	if m.creds != nil && m.creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.creds.AccessToken)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("snapshot request: unexpected status %d", resp.StatusCode)
	}

	var payload snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("snapshot decode: %w", err)
	}
	if payload.Snapshot == nil {
		return nil, nil, fmt.Errorf("market data service returned no snapshot for %s", m.symbol)
	}
	return payload.Snapshot, payload.Candles, nil
}
