package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.CooldownConfig.Timeframe = "5m"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestValidateRejectsBadQuantity(t *testing.T) {
	cfg := validConfig()
	cfg.TradingConfig.Quantity = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative quantity accepted")
	}
}

func TestValidateRejectsUnknownCooldownTimeframe(t *testing.T) {
	cfg := validConfig()
	cfg.CooldownConfig.Timeframe = "7m"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("unsupported timeframe accepted")
	}
	if !strings.Contains(err.Error(), "7m") {
		t.Fatalf("error %q does not name the timeframe", err)
	}
}

func TestValidateRejectsDuplicateScenarioNames(t *testing.T) {
	cfg := validConfig()
	cfg.ScenarioConfig.Entries = []ScenarioEntry{
		{Name: "breakout"},
		{Name: "breakout"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("duplicate scenario names accepted")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("error = %q", err)
	}
}

func TestValidateRejectsMalformedScenario(t *testing.T) {
	minQuality := 12.0
	negative := -1

	tests := []struct {
		name  string
		entry ScenarioEntry
	}{
		{"missing name", ScenarioEntry{}},
		{"quality out of range", ScenarioEntry{Name: "s", MinQualityScore: &minQuality}},
		{"negative category minimum", ScenarioEntry{
			Name:         "s",
			Requirements: ScenarioRequirements{EMAMinScore: &negative},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ScenarioConfig.Entries = []ScenarioEntry{tt.entry}
			if err := cfg.Validate(); err == nil {
				t.Fatal("malformed scenario accepted")
			}
		})
	}
}

func TestValidateRequiresHoldingTimeWhenTimeExitEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.LifecycleConfig.TimeBasedExitEnabled = true
	cfg.LifecycleConfig.MaxHoldingMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("time based exit without max holding accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRADING_ENABLED", "true")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")

	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if !cfg.TradingConfig.Enabled {
		t.Error("TRADING_ENABLED not applied")
	}
	if cfg.ServerConfig.JWTSecret != "s3cret" {
		t.Error("JWT_SECRET not applied")
	}
	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("SERVER_PORT not applied, port = %d", cfg.ServerConfig.Port)
	}
}
