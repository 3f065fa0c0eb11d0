package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the pricewatch server.
type Config struct {
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Providers Providers `yaml:"providers"`
	Poll      Poll      `yaml:"poll"`
	Logging   Logging   `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Storage holds the path for state persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Providers holds upstream price API configuration.
type Providers struct {
	CoinGecko CoinGecko `yaml:"coingecko"`
	Finnhub   Finnhub   `yaml:"finnhub"`
}

// CoinGecko configures the crypto market-data provider. No credential is
// required; the free tier is rate limited.
type CoinGecko struct {
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Finnhub configures the equities quote provider. Token may be left empty,
// in which case stock assets fail fast with a missing-credential error.
type Finnhub struct {
	BaseURL         string `yaml:"base_url"`
	Token           string `yaml:"token"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Poll controls the background polling cycle and chart buffer.
type Poll struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	RangeDays       int `yaml:"range_days"`
	SeriesCap       int `yaml:"series_cap"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills unset fields with defaults, and then applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued fields with working defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "pricewatch.db"
	}
	if cfg.Providers.CoinGecko.BaseURL == "" {
		cfg.Providers.CoinGecko.BaseURL = "https://api.coingecko.com"
	}
	if cfg.Providers.CoinGecko.RateLimitPerMin == 0 {
		cfg.Providers.CoinGecko.RateLimitPerMin = 30
	}
	if cfg.Providers.Finnhub.BaseURL == "" {
		cfg.Providers.Finnhub.BaseURL = "https://finnhub.io"
	}
	if cfg.Providers.Finnhub.RateLimitPerMin == 0 {
		cfg.Providers.Finnhub.RateLimitPerMin = 60
	}
	if cfg.Poll.IntervalSeconds == 0 {
		cfg.Poll.IntervalSeconds = 30
	}
	if cfg.Poll.RangeDays == 0 {
		cfg.Poll.RangeDays = 7
	}
	if cfg.Poll.SeriesCap == 0 {
		cfg.Poll.SeriesCap = 480
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.Providers.CoinGecko.BaseURL = v
	}

	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Providers.Finnhub.BaseURL = v
	}

	if v := os.Getenv("FINNHUB_TOKEN"); v != "" {
		cfg.Providers.Finnhub.Token = v
	}

	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Poll.IntervalSeconds = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
