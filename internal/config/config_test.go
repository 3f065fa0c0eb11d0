package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	yamlContent := []byte(`
server:
  host: "0.0.0.0"
  port: 9000
storage:
  sqlite_path: "/tmp/pricewatch/state.db"
providers:
  coingecko:
    base_url: "https://api.coingecko.com"
    rate_limit_per_min: 25
  finnhub:
    base_url: "https://finnhub.io"
    token: "test-token"
    rate_limit_per_min: 50
poll:
  interval_seconds: 15
  range_days: 30
  series_cap: 400
logging:
  level: "debug"
  format: "json"
`)

	tmpFile, err := os.CreateTemp("", "pricewatch-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	// Clear any environment overrides that might interfere.
	os.Unsetenv("FINNHUB_TOKEN")
	os.Unsetenv("SQLITE_PATH")
	os.Unsetenv("POLL_INTERVAL_SECONDS")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Storage.SQLitePath != "/tmp/pricewatch/state.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/pricewatch/state.db")
	}
	if cfg.Providers.CoinGecko.RateLimitPerMin != 25 {
		t.Errorf("Providers.CoinGecko.RateLimitPerMin = %d, want %d", cfg.Providers.CoinGecko.RateLimitPerMin, 25)
	}
	if cfg.Providers.Finnhub.Token != "test-token" {
		t.Errorf("Providers.Finnhub.Token = %q, want %q", cfg.Providers.Finnhub.Token, "test-token")
	}
	if cfg.Poll.IntervalSeconds != 15 {
		t.Errorf("Poll.IntervalSeconds = %d, want %d", cfg.Poll.IntervalSeconds, 15)
	}
	if cfg.Poll.RangeDays != 30 {
		t.Errorf("Poll.RangeDays = %d, want %d", cfg.Poll.RangeDays, 30)
	}
	if cfg.Poll.SeriesCap != 400 {
		t.Errorf("Poll.SeriesCap = %d, want %d", cfg.Poll.SeriesCap, 400)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaultFillsEverything(t *testing.T) {
	os.Unsetenv("FINNHUB_TOKEN")
	os.Unsetenv("SQLITE_PATH")
	os.Unsetenv("POLL_INTERVAL_SECONDS")
	os.Unsetenv("LOG_LEVEL")

	cfg := Default()

	if cfg.Providers.CoinGecko.BaseURL == "" {
		t.Error("Default() left CoinGecko.BaseURL empty")
	}
	if cfg.Providers.Finnhub.BaseURL == "" {
		t.Error("Default() left Finnhub.BaseURL empty")
	}
	if cfg.Poll.IntervalSeconds <= 0 {
		t.Errorf("Default() Poll.IntervalSeconds = %d, want > 0", cfg.Poll.IntervalSeconds)
	}
	if cfg.Poll.SeriesCap < 400 || cfg.Poll.SeriesCap > 500 {
		t.Errorf("Default() Poll.SeriesCap = %d, want within [400, 500]", cfg.Poll.SeriesCap)
	}
	// Token has no default; stocks are opt-in.
	if cfg.Providers.Finnhub.Token != "" {
		t.Errorf("Default() Finnhub.Token = %q, want empty", cfg.Providers.Finnhub.Token)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	yamlContent := []byte(`
providers:
  finnhub:
    token: "yaml-token"
storage:
  sqlite_path: "/original/state.db"
`)

	tmpFile, err := os.CreateTemp("", "pricewatch-config-env-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	os.Setenv("FINNHUB_TOKEN", "env-token")
	os.Setenv("SQLITE_PATH", "/env/state.db")
	defer os.Unsetenv("FINNHUB_TOKEN")
	defer os.Unsetenv("SQLITE_PATH")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Providers.Finnhub.Token != "env-token" {
		t.Errorf("Providers.Finnhub.Token = %q, want %q (env override)", cfg.Providers.Finnhub.Token, "env-token")
	}
	if cfg.Storage.SQLitePath != "/env/state.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q (env override)", cfg.Storage.SQLitePath, "/env/state.db")
	}
}
