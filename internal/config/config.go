// Package config loads the per-fund configuration file. One process serves
// one fund; concurrent writers against the same fund are not supported and
// must be serialized externally.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete fund configuration.
type Config struct {
	Fund       FundConfig       `yaml:"fund"`
	Stores     StoresConfig     `yaml:"stores"`
	MarketData MarketDataConfig `yaml:"market_data"`
}

// FundConfig identifies the fund and its trading session parameters.
type FundConfig struct {
	Name         string `yaml:"name"`
	BaseCurrency string `yaml:"base_currency"`
	Timezone     string `yaml:"timezone"`
	CloseHour    int    `yaml:"close_hour"`
	CloseMinute  int    `yaml:"close_minute"`
}

// StoresConfig holds the two backend locations: the flat-file data directory
// (primary) and the Postgres DSN (secondary, optional).
type StoresConfig struct {
	DataDir     string `yaml:"data_dir"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// MarketDataConfig tunes price resolution: the local price table, fetch
// concurrency, provider rate limit and cache behavior.
type MarketDataConfig struct {
	PriceFile         string   `yaml:"price_file"`
	Workers           int      `yaml:"workers"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	CacheTTL          Duration `yaml:"cache_ttl"`
	RedisAddr         string   `yaml:"redis_addr,omitempty"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "1h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads and validates a YAML config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration defaults: a Toronto-based fund with a
// 16:00 close, five fetch workers and a one-hour price cache.
func Default() *Config {
	return &Config{
		Fund: FundConfig{
			Name:         "default",
			BaseCurrency: "CAD",
			Timezone:     "America/Toronto",
			CloseHour:    16,
			CloseMinute:  0,
		},
		Stores: StoresConfig{
			DataDir: "data",
		},
		MarketData: MarketDataConfig{
			Workers:           5,
			RequestsPerSecond: 2,
			CacheTTL:          Duration(time.Hour),
		},
	}
}

func (c *Config) Validate() error {
	if c.Fund.Name == "" {
		return fmt.Errorf("fund name is required")
	}
	if c.Fund.BaseCurrency == "" {
		return fmt.Errorf("fund base currency is required")
	}
	if _, err := time.LoadLocation(c.Fund.Timezone); err != nil {
		return fmt.Errorf("invalid fund timezone %q: %w", c.Fund.Timezone, err)
	}
	if c.Fund.CloseHour < 0 || c.Fund.CloseHour > 23 || c.Fund.CloseMinute < 0 || c.Fund.CloseMinute > 59 {
		return fmt.Errorf("invalid close time %02d:%02d", c.Fund.CloseHour, c.Fund.CloseMinute)
	}
	if c.Stores.DataDir == "" {
		return fmt.Errorf("stores data_dir is required")
	}
	if c.MarketData.Workers <= 0 {
		return fmt.Errorf("market_data workers must be positive")
	}
	return nil
}

// Location resolves the fund's trading timezone. Validate has already checked
// that it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Fund.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
