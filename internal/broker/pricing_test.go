package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"options-scalper-bot/internal/indicator"
	"options-scalper-bot/internal/lifecycle"
	"options-scalper-bot/internal/scenario"
)

func pricingTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/entry-pricing", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("direction") == "" {
			http.Error(w, "missing direction", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"trading_symbol":   "NIFTY2630224500CE",
			"instrument_token": "token-1",
			"entry_price":      104.5,
			"index_price":      24512.0,
		})
	})
	mux.HandleFunc("/ltp", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]float64{"price": 108.25})
	})
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"snapshot": map[string]interface{}{
				"symbol":                  "NIFTY",
				"volume_surge_multiplier": 2.1,
			},
			"candles": []map[string]float64{
				{"open": 24500, "close": 24512, "high": 24514, "low": 24498},
			},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGetEntryPricing(t *testing.T) {
	server := pricingTestServer(t)
	client := NewPricingClient(server.URL, "NIFTY", &Credentials{AccessToken: "tok"})

	pricing, err := client.GetEntryPricing(scenario.DirectionCall)
	if err != nil {
		t.Fatalf("GetEntryPricing: %v", err)
	}
	if pricing.EntryPrice != 104.5 || pricing.InstrumentToken != "token-1" {
		t.Fatalf("pricing = %+v", pricing)
	}
}

func TestGetEntryPricingRejectsUnusableResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]float64{"entry_price": 0})
	}))
	defer server.Close()

	client := NewPricingClient(server.URL, "NIFTY", nil)
	if _, err := client.GetEntryPricing(scenario.DirectionCall); err == nil {
		t.Fatal("unusable pricing accepted")
	}
}

func TestGetCurrentPrice(t *testing.T) {
	server := pricingTestServer(t)
	client := NewPricingClient(server.URL, "NIFTY", nil)

	price, err := client.GetCurrentPrice("token-1")
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if price != 108.25 {
		t.Fatalf("price = %.2f", price)
	}
}

func TestGetCurrentPriceSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewPricingClient(server.URL, "NIFTY", nil)
	if _, err := client.GetCurrentPrice("token-1"); err == nil {
		t.Fatal("server error swallowed")
	}
}

func TestMarketDataSnapshot(t *testing.T) {
	server := pricingTestServer(t)
	client := NewMarketDataClient(server.URL, "NIFTY", nil)

	snapshot, candles, err := client.Snapshot(context.Background(), indicator.Tick{Symbol: "NIFTY"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Symbol != "NIFTY" || snapshot.VolumeSurgeMultiplier != 2.1 {
		t.Fatalf("snapshot = %+v", snapshot)
	}
	if len(candles) != 1 || candles[0].Close != 24512 {
		t.Fatalf("candles = %+v", candles)
	}
}

func TestMarketDataSnapshotRequiresSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candles": []interface{}{}})
	}))
	defer server.Close()

	client := NewMarketDataClient(server.URL, "NIFTY", nil)
	if _, _, err := client.Snapshot(context.Background(), indicator.Tick{}); err == nil {
		t.Fatal("missing snapshot accepted")
	}
}

type countingOracle struct {
	calls int
}

func (c *countingOracle) GetEntryPricing(_ scenario.Direction) (*lifecycle.EntryPricing, error) {
	return nil, nil
}

func (c *countingOracle) GetCurrentPrice(_ string) (float64, error) {
	c.calls++
	return 100 + float64(c.calls), nil
}

func TestCachedOracleCachesLTP(t *testing.T) {
	inner := &countingOracle{}
	oracle := NewCachedOracle(inner, time.Minute)

	first, err := oracle.GetCurrentPrice("token-1")
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	second, _ := oracle.GetCurrentPrice("token-1")

	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if first != second {
		t.Fatalf("cached price changed: %.2f vs %.2f", first, second)
	}

	// A different instrument misses the cache.
	oracle.GetCurrentPrice("token-2")
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
}

func TestPercentSizer(t *testing.T) {
	sizer := PercentSizer{StopPercent: 0.08, Reward: 2.5}

	stop := sizer.StopLossPoints(25000)
	if !almostEq(stop, 20) {
		t.Fatalf("stop = %.2f, want 20", stop)
	}
	if target := sizer.TargetPoints(stop); !almostEq(target, 50) {
		t.Fatalf("target = %.2f, want 50", target)
	}
	if sizer.StopLossPoints(0) != 0 || sizer.TargetPoints(-1) != 0 {
		t.Fatal("invalid inputs must yield zero distances")
	}
}

func almostEq(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
