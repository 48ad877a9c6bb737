package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"contentchain/storage"
)

// Config captures runtime configuration for channeld.
type Config struct {
	Env       string          `toml:"env" yaml:"env" json:"env"`
	Listen    string          `toml:"listen" yaml:"listen" json:"listen"`
	DataDir   string          `toml:"data_dir" yaml:"data_dir" json:"data_dir"`
	State     StateConfig     `toml:"state" yaml:"state" json:"state"`
	EventLog  EventLogConfig  `toml:"eventlog" yaml:"eventlog" json:"eventlog"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry" yaml:"telemetry" json:"telemetry"`
	Auth      AuthConfig      `toml:"auth" yaml:"auth" json:"auth"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	Keeper    KeeperConfig    `toml:"keeper" yaml:"keeper" json:"keeper"`
	Registry  RegistryConfig  `toml:"registry" yaml:"registry" json:"registry"`
	Tokens    []TokenConfig   `toml:"tokens" yaml:"tokens" json:"tokens"`
	Channels  []ChannelConfig `toml:"channels" yaml:"channels" json:"channels"`
	Paused    []string        `toml:"paused" yaml:"paused" json:"paused"`
}

// StateConfig selects the state database backend.
type StateConfig struct {
	Backend string `toml:"backend" yaml:"backend" json:"backend"`
}

// EventLogConfig controls the append-only event store.
type EventLogConfig struct {
	Driver    string `toml:"driver" yaml:"driver" json:"driver"`
	DSN       string `toml:"dsn" yaml:"dsn" json:"dsn"`
	ExportDir string `toml:"export_dir" yaml:"export_dir" json:"export_dir"`
}

// LoggingConfig tunes log level and optional file rotation.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level" json:"level"`
	File       string `toml:"file" yaml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress" json:"compress"`
}

// TelemetryConfig wires OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string  `toml:"endpoint" yaml:"endpoint" json:"endpoint"`
	Insecure    bool    `toml:"insecure" yaml:"insecure" json:"insecure"`
	Traces      bool    `toml:"traces" yaml:"traces" json:"traces"`
	Metrics     bool    `toml:"metrics" yaml:"metrics" json:"metrics"`
	SampleRatio float64 `toml:"sample_ratio" yaml:"sample_ratio" json:"sample_ratio"`
}

// AuthConfig configures bearer token verification on write endpoints.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret" yaml:"jwt_secret" json:"jwt_secret"`
	Issuer    string `toml:"issuer" yaml:"issuer" json:"issuer"`
}

// RateLimitConfig bounds request throughput per client.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"rps" yaml:"rps" json:"rps"`
	Burst             int     `toml:"burst" yaml:"burst" json:"burst"`
}

// KeeperConfig controls the emission keeper loop.
type KeeperConfig struct {
	Interval Duration `toml:"interval" yaml:"interval" json:"interval"`
}

// RegistryConfig holds the launch policy.
type RegistryConfig struct {
	Address           string `toml:"address" yaml:"address" json:"address"`
	QuoteToken        string `toml:"quote_token" yaml:"quote_token" json:"quote_token"`
	Protocol          string `toml:"protocol" yaml:"protocol" json:"protocol"`
	MinQuoteForLaunch string `toml:"min_quote_for_launch" yaml:"min_quote_for_launch" json:"min_quote_for_launch"`
}

// TokenConfig registers a fungible token at first boot and optionally seeds
// balances, keyed by account address.
type TokenConfig struct {
	Address       string            `toml:"address" yaml:"address" json:"address"`
	Name          string            `toml:"name" yaml:"name" json:"name"`
	Symbol        string            `toml:"symbol" yaml:"symbol" json:"symbol"`
	Decimals      uint8             `toml:"decimals" yaml:"decimals" json:"decimals"`
	MintAuthority string            `toml:"mint_authority" yaml:"mint_authority" json:"mint_authority"`
	Balances      map[string]string `toml:"balances" yaml:"balances" json:"balances"`
}

// ChannelConfig launches a channel at first boot.
type ChannelConfig struct {
	Launcher               string   `toml:"launcher" yaml:"launcher" json:"launcher"`
	Name                   string   `toml:"name" yaml:"name" json:"name"`
	Symbol                 string   `toml:"symbol" yaml:"symbol" json:"symbol"`
	URI                    string   `toml:"uri" yaml:"uri" json:"uri"`
	QuoteAmount            string   `toml:"quote_amount" yaml:"quote_amount" json:"quote_amount"`
	UnitAmount             string   `toml:"unit_amount" yaml:"unit_amount" json:"unit_amount"`
	InitialRate            string   `toml:"initial_rate" yaml:"initial_rate" json:"initial_rate"`
	FloorRate              string   `toml:"floor_rate" yaml:"floor_rate" json:"floor_rate"`
	HalvingPeriod          Duration `toml:"halving_period" yaml:"halving_period" json:"halving_period"`
	FloorPrice             string   `toml:"floor_price" yaml:"floor_price" json:"floor_price"`
	EpochPeriod            Duration `toml:"epoch_period" yaml:"epoch_period" json:"epoch_period"`
	Moderated              bool     `toml:"moderated" yaml:"moderated" json:"moderated"`
	AuctionInitPrice       string   `toml:"auction_init_price" yaml:"auction_init_price" json:"auction_init_price"`
	AuctionEpochPeriod     Duration `toml:"auction_epoch_period" yaml:"auction_epoch_period" json:"auction_epoch_period"`
	AuctionPriceMultiplier string   `toml:"auction_price_multiplier" yaml:"auction_price_multiplier" json:"auction_price_multiplier"`
	AuctionMinInitPrice    string   `toml:"auction_min_init_price" yaml:"auction_min_init_price" json:"auction_min_init_price"`
}

// Load reads configuration from path, choosing the decoder from the file
// extension. Unknown keys are rejected by every decoder.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("decode config: unknown key %q", undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns a configuration suitable for a local in-memory node.
func Default() Config {
	cfg := Config{}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv("CHANNELD_ENV")); env != "" {
		cfg.Env = env
	}
	if secret := strings.TrimSpace(os.Getenv("CHANNELD_JWT_SECRET")); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "local"
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8645"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./channeld-data"
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = storage.BackendMemory
	}
	if cfg.EventLog.Driver == "" {
		cfg.EventLog.Driver = "sqlite"
	}
	if cfg.EventLog.DSN == "" && cfg.EventLog.Driver == "sqlite" {
		cfg.EventLog.DSN = "file::memory:?cache=shared"
		if cfg.State.Backend != storage.BackendMemory {
			cfg.EventLog.DSN = filepath.Join(cfg.DataDir, "events.sqlite")
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File != "" && cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 40
	}
	if cfg.Keeper.Interval.Duration == 0 {
		cfg.Keeper.Interval.Duration = time.Minute
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "channeld"
	}
	if cfg.Registry.Address == "" {
		cfg.Registry.Address = "0x000000000000000000000000000000000000c0de"
	}
	if cfg.Registry.MinQuoteForLaunch == "" {
		cfg.Registry.MinQuoteForLaunch = "0"
	}
}

func validate(cfg Config) error {
	switch cfg.State.Backend {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt:
	default:
		return fmt.Errorf("state.backend: unsupported backend %q", cfg.State.Backend)
	}
	switch cfg.EventLog.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("eventlog.driver: unsupported driver %q", cfg.EventLog.Driver)
	}
	if cfg.EventLog.DSN == "" {
		return fmt.Errorf("eventlog.dsn required for driver %q", cfg.EventLog.Driver)
	}
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1]")
	}
	if _, err := ParseAddress(cfg.Registry.Address); err != nil {
		return fmt.Errorf("registry.address: %w", err)
	}
	if cfg.Registry.QuoteToken != "" {
		if _, err := ParseAddress(cfg.Registry.QuoteToken); err != nil {
			return fmt.Errorf("registry.quote_token: %w", err)
		}
	}
	if _, err := ParseAmount(cfg.Registry.MinQuoteForLaunch); err != nil {
		return fmt.Errorf("registry.min_quote_for_launch: %w", err)
	}
	for i, tok := range cfg.Tokens {
		if _, err := ParseAddress(tok.Address); err != nil {
			return fmt.Errorf("tokens[%d].address: %w", i, err)
		}
		for account, amount := range tok.Balances {
			if _, err := ParseAddress(account); err != nil {
				return fmt.Errorf("tokens[%d].balances: %w", i, err)
			}
			if _, err := ParseAmount(amount); err != nil {
				return fmt.Errorf("tokens[%d].balances[%s]: %w", i, account, err)
			}
		}
	}
	if len(cfg.Channels) > 0 && cfg.Registry.QuoteToken == "" {
		return fmt.Errorf("registry.quote_token required to launch channels")
	}
	return nil
}

var (
	errInvalidAddress = errors.New("invalid hex address")
	errInvalidAmount  = errors.New("invalid base-10 amount")
)

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q", errInvalidAddress, raw)
	}
	return common.HexToAddress(raw), nil
}

// ParseAmount parses a non-negative base-10 integer. Empty strings parse as
// nil so optional amounts can be left out.
func ParseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", ""))
	if raw == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", errInvalidAmount, raw)
	}
	return value, nil
}
