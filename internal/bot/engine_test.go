package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"options-scalper-bot/config"
	"options-scalper-bot/internal/indicator"
	"options-scalper-bot/internal/lifecycle"
	"options-scalper-bot/internal/regime"
	"options-scalper-bot/internal/scenario"
)

type fakeProvider struct {
	snapshot *indicator.Snapshot
	candles  []indicator.Candle
	err      error
}

func (f *fakeProvider) Snapshot(_ context.Context, _ indicator.Tick) (*indicator.Snapshot, []indicator.Candle, error) {
	return f.snapshot, f.candles, f.err
}

type fakeScorer struct {
	quality   float64
	direction scenario.Direction
	err       error
	panics    bool
}

func (f *fakeScorer) Score(_ context.Context, _ *indicator.Snapshot) (float64, scenario.CategoryScoresByDirection, scenario.Direction, error) {
	if f.panics {
		panic("scorer exploded")
	}
	return f.quality, scenario.CategoryScoresByDirection{}, f.direction, f.err
}

type fakeRecorder struct {
	decisions []scenario.EntryDecision
}

func (f *fakeRecorder) SaveEntryDecision(_ context.Context, decision scenario.EntryDecision, _ time.Time) error {
	f.decisions = append(f.decisions, decision)
	return nil
}

type fakeOracle struct{}

func (fakeOracle) GetEntryPricing(_ scenario.Direction) (*lifecycle.EntryPricing, error) {
	return &lifecycle.EntryPricing{
		TradingSymbol:   "NIFTY2630224500CE",
		InstrumentToken: "token-1",
		EntryPrice:      100,
		IndexPrice:      24500,
	}, nil
}

func (fakeOracle) GetCurrentPrice(_ string) (float64, error) { return 100, nil }

type fakeSizer struct{}

func (fakeSizer) StopLossPoints(_ float64) float64 { return 20 }
func (fakeSizer) TargetPoints(_ float64) float64   { return 50 }

func testConfig() *config.Config {
	return &config.Config{
		TradingConfig: config.TradingConfig{Enabled: true, Quantity: 75},
		RegimeConfig: config.RegimeConfig{
			MinDirectionalStrength:     0.35,
			VeryLowDirectionalStrength: 0.20,
			LowVolatility:              0.30,
			VeryLowVolatility:          0.15,
			MinATR:                     4.0,
			MinRange:                   10.0,
			MinBodyRatio:               0.5,
			MaxConsecutiveDoji:         2,
			MaxConsecutiveSpinningTop:  2,
			MaxConsecutiveSmallCandles: 3,
			MinVolumeSurgeMultiplier:   1.2,
			MinEMAAlignmentScore:       0.5,
			MinVolumeConsistencyScore:  0.4,
			MinPriceActionScore:        0.4,
			MinOverallScore:            0.45,
			LookbackCandles:            10,
		},
		EntryFilterConfig: config.EntryFilterConfig{
			MinCandleHeight:     8.0,
			MinVolumeMultiplier: 2.0,
			MinBodyRatio:        0.6,
		},
		ScenarioConfig: config.ScenarioConfig{
			DefaultMinQualityScore: 7.0,
			Entries:                []config.ScenarioEntry{{Name: "momentum-breakout"}},
		},
		LifecycleConfig: config.LifecycleConfig{
			MilestoneStepPoints:   10,
			StopLossTargetEnabled: true,
			TradingTimeZone:       "Asia/Kolkata",
		},
	}
}

func strongSnapshot() *indicator.Snapshot {
	signals := make(map[indicator.Timeframe]indicator.TimeframeSignals)
	for _, tf := range indicator.Timeframes {
		signals[tf] = indicator.TimeframeSignals{
			EMAFastAboveSlow:      true,
			RSIAboveBullThreshold: true,
			PriceAboveVWAP:        true,
			VolumeSurge:           true,
			PriceAboveResistance:  true,
			ATR:                   6.0,
		}
	}
	return &indicator.Snapshot{
		Symbol:                "NIFTY",
		Signals:               signals,
		VolumeSurgeMultiplier: 2.4,
		Future:                indicator.FutureSignal{AllTimeframesBullish: true},
	}
}

func strongCandles(n int) []indicator.Candle {
	candles := make([]indicator.Candle, n)
	for i := range candles {
		open := 24400.0 + float64(i)*10
		candles[i] = indicator.Candle{Open: open, Close: open + 12, High: open + 14, Low: open - 2}
	}
	return candles
}

type engineFixture struct {
	engine   *Engine
	manager  *lifecycle.Manager
	provider *fakeProvider
	scorer   *fakeScorer
	recorder *fakeRecorder
}

func newEngineFixture(t *testing.T, cfg *config.Config) *engineFixture {
	t.Helper()

	manager, err := lifecycle.NewManager(lifecycle.ManagerParams{
		Lifecycle: cfg.LifecycleConfig,
		Quantity:  cfg.TradingConfig.Quantity,
		Pricing:   fakeOracle{},
		Sizer:     fakeSizer{},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	classifier := regime.NewClassifier(cfg.RegimeConfig, cfg.EntryFilterConfig, zerolog.Nop())
	evaluator, err := scenario.NewEvaluator(cfg.ScenarioConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	provider := &fakeProvider{snapshot: strongSnapshot(), candles: strongCandles(10)}
	scorer := &fakeScorer{quality: 9.0, direction: scenario.DirectionCall}
	recorder := &fakeRecorder{}

	engine := NewEngine(cfg, classifier, evaluator, manager, provider, scorer, recorder, zerolog.Nop())
	return &engineFixture{engine: engine, manager: manager, provider: provider, scorer: scorer, recorder: recorder}
}

func TestProcessTickOpensOrderOnFullPass(t *testing.T) {
	f := newEngineFixture(t, testConfig())

	f.engine.processTick(context.Background(), indicator.Tick{Symbol: "NIFTY", Price: 24500})

	if !f.manager.HasActiveOrder() {
		t.Fatal("passing pipeline did not open an order")
	}
	if len(f.recorder.decisions) != 1 || !f.recorder.decisions[0].ShouldEntry {
		t.Fatalf("recorded decisions = %+v", f.recorder.decisions)
	}

	status := f.engine.Status()
	if !status.LastDecision.ShouldEntry || status.LastRegime.IsFlatMarket {
		t.Fatalf("status = %+v", status)
	}
}

func TestProcessTickSkipsOnSnapshotFailure(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	f.provider.err = errors.New("market data down")

	f.engine.processTick(context.Background(), indicator.Tick{Price: 24500})

	if f.manager.HasActiveOrder() {
		t.Fatal("order opened without a snapshot")
	}
	if len(f.recorder.decisions) != 0 {
		t.Fatal("decision recorded for a skipped tick")
	}
}

func TestProcessTickDryRunSuppressesEntry(t *testing.T) {
	cfg := testConfig()
	cfg.TradingConfig.DryRun = true
	f := newEngineFixture(t, cfg)

	f.engine.processTick(context.Background(), indicator.Tick{Price: 24500})

	if f.manager.HasActiveOrder() {
		t.Fatal("dry run opened an order")
	}
	if len(f.recorder.decisions) != 1 || !f.recorder.decisions[0].ShouldEntry {
		t.Fatal("dry run must still evaluate and record the decision")
	}
}

func TestProcessTickConfinesPanicToTick(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	f.scorer.panics = true

	f.engine.processTick(context.Background(), indicator.Tick{Price: 24500})

	if f.manager.HasActiveOrder() {
		t.Fatal("order opened despite scorer panic")
	}

	// The next tick starts clean.
	f.scorer.panics = false
	f.engine.processTick(context.Background(), indicator.Tick{Price: 24500})
	if !f.manager.HasActiveOrder() {
		t.Fatal("engine did not recover on the following tick")
	}
}

func TestProcessTickRecordsRegimeRejection(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	f.provider.snapshot = &indicator.Snapshot{} // directionless tape

	f.engine.processTick(context.Background(), indicator.Tick{Price: 24500})

	if f.manager.HasActiveOrder() {
		t.Fatal("order opened in an unsuitable regime")
	}
	if len(f.recorder.decisions) != 1 {
		t.Fatalf("decisions recorded = %d, want 1", len(f.recorder.decisions))
	}
	if f.recorder.decisions[0].ShouldEntry || f.recorder.decisions[0].Reason == "" {
		t.Fatalf("decision = %+v", f.recorder.decisions[0])
	}
}
