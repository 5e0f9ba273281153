// Package config defines the top-level configuration for the settlement
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KEKTECH_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Fees       FeesConfig       `toml:"fees"`
	Market     MarketConfig     `toml:"market"`
	Resolution ResolutionConfig `toml:"resolution"`
	Payee      PayeeConfig      `toml:"payee"`
	Access     AccessConfig     `toml:"access"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds cold-storage export parameters for settled markets.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// FeesConfig holds the fee schedule. Token amounts are whole tokens; rates
// are basis points.
type FeesConfig struct {
	MinBondTokens        float64 `toml:"min_bond_tokens"`
	MaxBondTokens        float64 `toml:"max_bond_tokens"`
	MinBondFeeBps        int64   `toml:"min_bond_fee_bps"`
	MaxBondFeeBps        int64   `toml:"max_bond_fee_bps"`
	MaxVoluntaryTokens   float64 `toml:"max_voluntary_tokens"`
	MaxVoluntaryBonusBps int64   `toml:"max_voluntary_bonus_bps"`
	MaxTradingFeeBps     int64   `toml:"max_trading_fee_bps"`
	VoluntaryTaxBps      int64   `toml:"voluntary_tax_bps"`
}

// MarketConfig holds betting-pool parameters.
type MarketConfig struct {
	WhaleCapBps      int64   `toml:"whale_cap_bps"`
	MinimumBetTokens float64 `toml:"minimum_bet_tokens"`
	MaximumBetTokens float64 `toml:"maximum_bet_tokens"`
}

// ResolutionConfig holds dispute and recovery parameters.
type ResolutionConfig struct {
	DisputeWindow        duration `toml:"dispute_window"`
	MinDisputeBondTokens float64  `toml:"min_dispute_bond_tokens"`
	EmergencyDelay       duration `toml:"emergency_delay"`
	ClaimTimeout         duration `toml:"claim_timeout"`
}

// PayeeConfig holds the external fee-payee endpoint and its HMAC credential.
// The secret is given either as plaintext (key_secret) or as a file encrypted
// with EncryptSecret plus the password to decrypt it.
type PayeeConfig struct {
	URL               string   `toml:"url"`
	KeyID             string   `toml:"key_id"`
	KeySecret         string   `toml:"key_secret"`
	KeySecretFile     string   `toml:"key_secret_file"`
	KeySecretPassword string   `toml:"key_secret_password"`
	Timeout           duration `toml:"timeout"`
}

// AccessConfig assigns role membership to accounts.
type AccessConfig struct {
	Admins    []string `toml:"admins"`
	Resolvers []string `toml:"resolvers"`
	Backends  []string `toml:"backends"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "48h", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "48h" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled       bool     `toml:"enabled"`
	Port          int      `toml:"port"`
	APIKey        string   `toml:"api_key"`
	CORSOrigins   []string `toml:"cors_origins"`
	RatePerMinute int      `toml:"rate_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "kektech",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "kektech-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Fees: FeesConfig{
			MinBondTokens:        10,
			MaxBondTokens:        1000,
			MinBondFeeBps:        50,
			MaxBondFeeBps:        200,
			MaxVoluntaryTokens:   1000,
			MaxVoluntaryBonusBps: 800,
			MaxTradingFeeBps:     1000,
			VoluntaryTaxBps:      1000,
		},
		Market: MarketConfig{
			WhaleCapBps:      2000,
			MinimumBetTokens: 0.01,
			MaximumBetTokens: 100,
		},
		Resolution: ResolutionConfig{
			DisputeWindow:        duration{48 * time.Hour},
			MinDisputeBondTokens: 0.1,
			EmergencyDelay:       duration{90 * 24 * time.Hour},
			ClaimTimeout:         duration{5 * time.Second},
		},
		Payee: PayeeConfig{
			Timeout: duration{10 * time.Second},
		},
		Server: ServerConfig{
			Enabled:       true,
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			RatePerMinute: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"dispute", "fee_forward_failed", "emergency_withdraw", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Archive / S3
	if c.Archive.Enabled || strings.ToLower(c.Mode) == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Fees
	if c.Fees.MinBondTokens <= 0 {
		errs = append(errs, "fees: min_bond_tokens must be > 0")
	}
	if c.Fees.MaxBondTokens < c.Fees.MinBondTokens {
		errs = append(errs, "fees: max_bond_tokens must be >= min_bond_tokens")
	}
	if c.Fees.MinBondFeeBps < 0 || c.Fees.MaxBondFeeBps < c.Fees.MinBondFeeBps {
		errs = append(errs, "fees: bond fee bounds must satisfy 0 <= min <= max")
	}
	if c.Fees.MaxTradingFeeBps <= 0 || c.Fees.MaxTradingFeeBps > 10000 {
		errs = append(errs, fmt.Sprintf("fees: max_trading_fee_bps must be 1-10000, got %d", c.Fees.MaxTradingFeeBps))
	}
	if c.Fees.VoluntaryTaxBps < 0 || c.Fees.VoluntaryTaxBps > 10000 {
		errs = append(errs, fmt.Sprintf("fees: voluntary_tax_bps must be 0-10000, got %d", c.Fees.VoluntaryTaxBps))
	}

	// Market
	if c.Market.WhaleCapBps <= 0 || c.Market.WhaleCapBps > 10000 {
		errs = append(errs, fmt.Sprintf("market: whale_cap_bps must be 1-10000, got %d", c.Market.WhaleCapBps))
	}
	if c.Market.MinimumBetTokens <= 0 {
		errs = append(errs, "market: minimum_bet_tokens must be > 0")
	}
	if c.Market.MaximumBetTokens < c.Market.MinimumBetTokens {
		errs = append(errs, "market: maximum_bet_tokens must be >= minimum_bet_tokens")
	}

	// Resolution
	if c.Resolution.DisputeWindow.Duration <= 0 {
		errs = append(errs, "resolution: dispute_window must be > 0")
	}
	if c.Resolution.EmergencyDelay.Duration <= 0 {
		errs = append(errs, "resolution: emergency_delay must be > 0")
	}
	if c.Resolution.MinDisputeBondTokens <= 0 {
		errs = append(errs, "resolution: min_dispute_bond_tokens must be > 0")
	}

	// Payee — key id and a secret source must be set together with the URL.
	if c.Payee.URL != "" {
		if c.Payee.KeyID == "" {
			errs = append(errs, "payee: key_id is required when url is set")
		}
		if c.Payee.KeySecret == "" && c.Payee.KeySecretFile == "" {
			errs = append(errs, "payee: key_secret or key_secret_file is required when url is set")
		}
		if c.Payee.KeySecretFile != "" && c.Payee.KeySecretPassword == "" {
			errs = append(errs, "payee: key_secret_password is required with key_secret_file")
		}
	}

	// Access
	if len(c.Access.Admins) == 0 {
		errs = append(errs, "access: at least one admin account is required")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RatePerMinute < 0 {
			errs = append(errs, "server: rate_per_minute must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
