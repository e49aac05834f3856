package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	BrokerConfig       BrokerConfig       `json:"broker"`
	TradingConfig      TradingConfig      `json:"trading"`
	RegimeConfig       RegimeConfig       `json:"regime"`
	EntryFilterConfig  EntryFilterConfig  `json:"entry_filter"`
	ScenarioConfig     ScenarioConfig     `json:"scenarios"`
	LifecycleConfig    LifecycleConfig    `json:"lifecycle"`
	CooldownConfig     CooldownConfig     `json:"cooldown"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	ServerConfig       ServerConfig       `json:"server"`
	NotificationConfig NotificationConfig `json:"notification"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	VaultConfig        VaultConfig        `json:"vault"`
}

// BrokerConfig holds broker connectivity settings. Credentials may be
// overridden from Vault when VaultConfig.Enabled is true.
type BrokerConfig struct {
	APIKey            string `json:"api_key"`
	AccessToken       string `json:"access_token"`
	TickFeedURL       string `json:"tick_feed_url"`
	PricingServiceURL string `json:"pricing_service_url"`
	IndexSymbol       string `json:"index_symbol"`
}

type TradingConfig struct {
	Enabled  bool `json:"enabled"`
	Quantity int  `json:"quantity"` // contracts per order (lot size multiple)
	DryRun   bool `json:"dry_run"`  // evaluate but never open orders
}

// RegimeConfig holds thresholds for the market regime classifier.
type RegimeConfig struct {
	MinDirectionalStrength     float64 `json:"min_directional_strength"`      // flat-market floor
	VeryLowDirectionalStrength float64 `json:"very_low_directional_strength"` // stricter red flag
	LowVolatility              float64 `json:"low_volatility"`
	VeryLowVolatility          float64 `json:"very_low_volatility"`
	MinATR                     float64 `json:"min_atr"`    // index points
	MinRange                   float64 `json:"min_range"`  // recent high-low, index points
	MinBodyRatio               float64 `json:"min_body_ratio"`
	MaxConsecutiveDoji         int     `json:"max_consecutive_doji"`
	MaxConsecutiveSpinningTop  int     `json:"max_consecutive_spinning_top"`
	MaxConsecutiveSmallCandles int     `json:"max_consecutive_small_candles"`
	MinVolumeSurgeMultiplier   float64 `json:"min_volume_surge_multiplier"`
	// Comprehensive suitability gate (independent of the flat-market veto)
	MinEMAAlignmentScore      float64 `json:"min_ema_alignment_score"`
	MinVolumeConsistencyScore float64 `json:"min_volume_consistency_score"`
	MinPriceActionScore       float64 `json:"min_price_action_score"`
	MinOverallScore           float64 `json:"min_overall_score"`
	LookbackCandles           int     `json:"lookback_candles"`
}

// EntryFilterConfig holds the stricter pre-scenario gate. All three
// conditions must hold simultaneously for a scenario evaluation to run.
type EntryFilterConfig struct {
	MinCandleHeight     float64 `json:"min_candle_height"`     // index points
	MinVolumeMultiplier float64 `json:"min_volume_multiplier"` // surge vs average
	MinBodyRatio        float64 `json:"min_body_ratio"`
}

// ScenarioRequirements holds per-category minimum scores. A nil field means
// the category is not required by the scenario.
type ScenarioRequirements struct {
	EMAMinScore             *int `json:"ema_min_score,omitempty"`
	FutureAndVolumeMinScore *int `json:"future_and_volume_min_score,omitempty"`
	CandlestickMinScore     *int `json:"candlestick_min_score,omitempty"`
	MomentumMinScore        *int `json:"momentum_min_score,omitempty"`
}

// ScenarioEntry is one configured entry scenario. Order in the list matters:
// ties between passing scenarios resolve to the first listed.
type ScenarioEntry struct {
	Name            string               `json:"name"`
	MinQualityScore *float64             `json:"min_quality_score,omitempty"`
	Requirements    ScenarioRequirements `json:"requirements"`
}

type ScenarioConfig struct {
	DefaultMinQualityScore float64         `json:"default_min_quality_score"`
	Entries                []ScenarioEntry `json:"entries"`
}

// LifecycleConfig controls order management and the exit cascade. Each exit
// check is an independent switch; disabling one removes it from the cascade.
type LifecycleConfig struct {
	MilestoneStepPoints      float64 `json:"milestone_step_points"`
	StopLossPercent          float64 `json:"stop_loss_percent"` // of reference index price
	RewardRatio              float64 `json:"reward_ratio"`      // target points per stop point
	StopLossTargetEnabled    bool    `json:"stop_loss_target_enabled"`
	StrategyExitEnabled      bool    `json:"strategy_exit_enabled"`
	PriceMovementExitEnabled bool    `json:"price_movement_exit_enabled"`
	TimeBasedExitEnabled     bool    `json:"time_based_exit_enabled"`
	MaxHoldingMinutes        int     `json:"max_holding_minutes"`
	TradingTimeZone          string  `json:"trading_time_zone"` // e.g. Asia/Kolkata
}

// CooldownConfig gates re-entry after a blocking exit until the candle open
// at exit time has closed.
type CooldownConfig struct {
	Enabled         bool     `json:"enabled"`
	Timeframe       string   `json:"timeframe"` // candle interval, e.g. "5m"
	BlockingReasons []string `json:"blocking_reasons"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	MaxConns int32  `json:"max_conns"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ServerConfig struct {
	Enabled   bool   `json:"enabled"`
	Port      int    `json:"port"`
	JWTSecret string `json:"jwt_secret"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON vs console writer
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	SecretPath string `json:"secret_path"`
}

// Load reads the config file (CONFIG_FILE env or config.json), fills
// defaults for anything missing and applies environment overrides.
func Load() (*Config, error) {
	path := getEnvOrDefault("CONFIG_FILE", "config.json")

	cfg, err := loadFromFile(path)
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate fails fast on malformed configuration so errors surface at
// startup rather than mid-evaluation.
func (c *Config) Validate() error {
	if c.TradingConfig.Quantity <= 0 {
		return fmt.Errorf("trading.quantity must be positive, got %d", c.TradingConfig.Quantity)
	}
	if c.LifecycleConfig.MilestoneStepPoints <= 0 {
		return fmt.Errorf("lifecycle.milestone_step_points must be positive, got %.2f", c.LifecycleConfig.MilestoneStepPoints)
	}
	if c.LifecycleConfig.TimeBasedExitEnabled && c.LifecycleConfig.MaxHoldingMinutes <= 0 {
		return fmt.Errorf("lifecycle.max_holding_minutes must be positive when time based exit is enabled")
	}
	if !validTimeframe(c.CooldownConfig.Timeframe) {
		return fmt.Errorf("cooldown.timeframe %q is not a supported interval", c.CooldownConfig.Timeframe)
	}
	seen := make(map[string]bool)
	for i, sc := range c.ScenarioConfig.Entries {
		if sc.Name == "" {
			return fmt.Errorf("scenarios.entries[%d]: name is required", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("scenarios.entries[%d]: duplicate scenario name %q", i, sc.Name)
		}
		seen[sc.Name] = true
		if sc.MinQualityScore != nil && (*sc.MinQualityScore < 0 || *sc.MinQualityScore > 10) {
			return fmt.Errorf("scenario %q: min_quality_score %.2f out of range [0,10]", sc.Name, *sc.MinQualityScore)
		}
		for name, v := range map[string]*int{
			"ema_min_score":               sc.Requirements.EMAMinScore,
			"future_and_volume_min_score": sc.Requirements.FutureAndVolumeMinScore,
			"candlestick_min_score":       sc.Requirements.CandlestickMinScore,
			"momentum_min_score":          sc.Requirements.MomentumMinScore,
		} {
			if v != nil && *v < 0 {
				return fmt.Errorf("scenario %q: %s must not be negative", sc.Name, name)
			}
		}
	}
	return nil
}

func validTimeframe(tf string) bool {
	switch tf {
	case "1m", "3m", "5m", "10m", "15m", "30m", "1h":
		return true
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.TradingConfig.Quantity == 0 {
		cfg.TradingConfig.Quantity = 75
	}

	r := &cfg.RegimeConfig
	if r.MinDirectionalStrength == 0 {
		r.MinDirectionalStrength = 0.35
	}
	if r.VeryLowDirectionalStrength == 0 {
		r.VeryLowDirectionalStrength = 0.20
	}
	if r.LowVolatility == 0 {
		r.LowVolatility = 0.30
	}
	if r.VeryLowVolatility == 0 {
		r.VeryLowVolatility = 0.15
	}
	if r.MinATR == 0 {
		r.MinATR = 4.0
	}
	if r.MinRange == 0 {
		r.MinRange = 10.0
	}
	if r.MinBodyRatio == 0 {
		r.MinBodyRatio = 0.5
	}
	if r.MaxConsecutiveDoji == 0 {
		r.MaxConsecutiveDoji = 2
	}
	if r.MaxConsecutiveSpinningTop == 0 {
		r.MaxConsecutiveSpinningTop = 2
	}
	if r.MaxConsecutiveSmallCandles == 0 {
		r.MaxConsecutiveSmallCandles = 3
	}
	if r.MinVolumeSurgeMultiplier == 0 {
		r.MinVolumeSurgeMultiplier = 1.2
	}
	if r.MinEMAAlignmentScore == 0 {
		r.MinEMAAlignmentScore = 0.5
	}
	if r.MinVolumeConsistencyScore == 0 {
		r.MinVolumeConsistencyScore = 0.4
	}
	if r.MinPriceActionScore == 0 {
		r.MinPriceActionScore = 0.4
	}
	if r.MinOverallScore == 0 {
		r.MinOverallScore = 0.45
	}
	if r.LookbackCandles == 0 {
		r.LookbackCandles = 10
	}

	f := &cfg.EntryFilterConfig
	if f.MinCandleHeight == 0 {
		f.MinCandleHeight = 8.0
	}
	if f.MinVolumeMultiplier == 0 {
		f.MinVolumeMultiplier = 2.0
	}
	if f.MinBodyRatio == 0 {
		f.MinBodyRatio = 0.6
	}

	if cfg.ScenarioConfig.DefaultMinQualityScore == 0 {
		cfg.ScenarioConfig.DefaultMinQualityScore = 7.0
	}

	l := &cfg.LifecycleConfig
	if l.MilestoneStepPoints == 0 {
		l.MilestoneStepPoints = 10.0
	}
	if l.StopLossPercent == 0 {
		l.StopLossPercent = 0.08
	}
	if l.RewardRatio == 0 {
		l.RewardRatio = 2.5
	}
	if l.MaxHoldingMinutes == 0 {
		l.MaxHoldingMinutes = 15
	}
	if l.TradingTimeZone == "" {
		l.TradingTimeZone = "Asia/Kolkata"
	}

	if cfg.CooldownConfig.Timeframe == "" {
		cfg.CooldownConfig.Timeframe = "5m"
	}
	if len(cfg.CooldownConfig.BlockingReasons) == 0 {
		cfg.CooldownConfig.BlockingReasons = []string{"STOPLOSS_HIT", "TRAILING_STOPLOSS_HIT", "FORCE_EXIT"}
	}

	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.DatabaseConfig.MaxConns == 0 {
		cfg.DatabaseConfig.MaxConns = 10
	}
	if cfg.RedisConfig.Addr == "" {
		cfg.RedisConfig.Addr = "localhost:6379"
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.BrokerConfig.IndexSymbol == "" {
		cfg.BrokerConfig.IndexSymbol = "NIFTY"
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.BrokerConfig.APIKey = getEnvOrDefault("BROKER_API_KEY", cfg.BrokerConfig.APIKey)
	cfg.BrokerConfig.AccessToken = getEnvOrDefault("BROKER_ACCESS_TOKEN", cfg.BrokerConfig.AccessToken)
	cfg.BrokerConfig.TickFeedURL = getEnvOrDefault("BROKER_TICK_FEED_URL", cfg.BrokerConfig.TickFeedURL)
	cfg.BrokerConfig.IndexSymbol = getEnvOrDefault("BROKER_INDEX_SYMBOL", cfg.BrokerConfig.IndexSymbol)

	if v := os.Getenv("TRADING_ENABLED"); v != "" {
		cfg.TradingConfig.Enabled = v == "true"
	}
	if v := os.Getenv("TRADING_DRY_RUN"); v != "" {
		cfg.TradingConfig.DryRun = v == "true"
	}
	if v := os.Getenv("TRADING_QUANTITY"); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			cfg.TradingConfig.Quantity = q
		}
	}

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.DBName = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.DBName)
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.DatabaseConfig.Port = p
		}
	}

	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}

	cfg.ServerConfig.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.ServerConfig.JWTSecret)
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ServerConfig.Port = p
		}
	}

	if v := os.Getenv("NOTIFICATIONS_ENABLED"); v != "" {
		cfg.NotificationConfig.Enabled = v == "true"
	}
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	if v := os.Getenv("TELEGRAM_ENABLED"); v != "" {
		cfg.NotificationConfig.Telegram.Enabled = v == "true"
	}

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LoggingConfig.JSONFormat = v == "true"
	}

	if v := os.Getenv("VAULT_ENABLED"); v != "" {
		cfg.VaultConfig.Enabled = v == "true"
	}
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
