package broker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"options-scalper-bot/internal/lifecycle"
	"options-scalper-bot/internal/scenario"
)

// PricingClient implements lifecycle.PricingOracle against the pricing
// collaborator service, which owns strike selection and premium math.
type PricingClient struct {
	baseURL string
	symbol  string
	creds   *Credentials
	client  *http.Client
}

// NewPricingClient creates a client for the pricing service.
func NewPricingClient(baseURL, symbol string, creds *Credentials) *PricingClient {
	return &PricingClient{
		baseURL: baseURL,
		symbol:  symbol,
		creds:   creds,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type entryPricingResponse struct {
	TradingSymbol   string  `json:"trading_symbol"`
	InstrumentToken string  `json:"instrument_token"`
	EntryPrice      float64 `json:"entry_price"`
	IndexPrice      float64 `json:"index_price"`
}

// GetEntryPricing asks the pricing service to select a contract for the
// given direction and quote its premium.
func (p *PricingClient) GetEntryPricing(direction scenario.Direction) (*lifecycle.EntryPricing, error) {
	endpoint := fmt.Sprintf("%s/entry-pricing?symbol=%s&direction=%s",
		p.baseURL, url.QueryEscape(p.symbol), url.QueryEscape(string(direction)))

	var resp entryPricingResponse
	if err := p.getJSON(endpoint, &resp); err != nil {
		return nil, fmt.Errorf("entry pricing request: %w", err)
	}
	if resp.EntryPrice <= 0 || resp.InstrumentToken == "" {
		return nil, fmt.Errorf("pricing service returned unusable entry pricing for %s", direction)
	}

	return &lifecycle.EntryPricing{
		TradingSymbol:   resp.TradingSymbol,
		InstrumentToken: resp.InstrumentToken,
		EntryPrice:      resp.EntryPrice,
		IndexPrice:      resp.IndexPrice,
	}, nil
}

type ltpResponse struct {
	Price float64 `json:"price"`
}

// GetCurrentPrice returns the option LTP for an instrument.
func (p *PricingClient) GetCurrentPrice(instrumentToken string) (float64, error) {
	endpoint := fmt.Sprintf("%s/ltp?instrument_token=%s", p.baseURL, url.QueryEscape(instrumentToken))

	var resp ltpResponse
	if err := p.getJSON(endpoint, &resp); err != nil {
		return 0, fmt.Errorf("ltp request: %w", err)
	}
	if resp.Price <= 0 {
		return 0, fmt.Errorf("pricing service returned non-positive ltp for %s", instrumentToken)
	}
	return resp.Price, nil
}

func (p *PricingClient) getJSON(endpoint string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if p.creds != nil && p.creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.creds.AccessToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
