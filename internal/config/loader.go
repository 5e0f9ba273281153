package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KEKTECH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KEKTECH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "KEKTECH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "KEKTECH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KEKTECH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KEKTECH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KEKTECH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KEKTECH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KEKTECH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KEKTECH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KEKTECH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KEKTECH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "KEKTECH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "KEKTECH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KEKTECH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KEKTECH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KEKTECH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KEKTECH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KEKTECH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "KEKTECH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KEKTECH_S3_REGION")
	setStr(&cfg.S3.Bucket, "KEKTECH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KEKTECH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KEKTECH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KEKTECH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KEKTECH_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "KEKTECH_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "KEKTECH_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "KEKTECH_ARCHIVE_INTERVAL")

	// ── Fees ──
	setFloat64(&cfg.Fees.MinBondTokens, "KEKTECH_FEES_MIN_BOND_TOKENS")
	setFloat64(&cfg.Fees.MaxBondTokens, "KEKTECH_FEES_MAX_BOND_TOKENS")
	setInt64(&cfg.Fees.MinBondFeeBps, "KEKTECH_FEES_MIN_BOND_FEE_BPS")
	setInt64(&cfg.Fees.MaxBondFeeBps, "KEKTECH_FEES_MAX_BOND_FEE_BPS")
	setFloat64(&cfg.Fees.MaxVoluntaryTokens, "KEKTECH_FEES_MAX_VOLUNTARY_TOKENS")
	setInt64(&cfg.Fees.MaxVoluntaryBonusBps, "KEKTECH_FEES_MAX_VOLUNTARY_BONUS_BPS")
	setInt64(&cfg.Fees.MaxTradingFeeBps, "KEKTECH_FEES_MAX_TRADING_FEE_BPS")
	setInt64(&cfg.Fees.VoluntaryTaxBps, "KEKTECH_FEES_VOLUNTARY_TAX_BPS")

	// ── Market ──
	setInt64(&cfg.Market.WhaleCapBps, "KEKTECH_MARKET_WHALE_CAP_BPS")
	setFloat64(&cfg.Market.MinimumBetTokens, "KEKTECH_MARKET_MINIMUM_BET_TOKENS")
	setFloat64(&cfg.Market.MaximumBetTokens, "KEKTECH_MARKET_MAXIMUM_BET_TOKENS")

	// ── Resolution ──
	setDuration(&cfg.Resolution.DisputeWindow, "KEKTECH_RESOLUTION_DISPUTE_WINDOW")
	setFloat64(&cfg.Resolution.MinDisputeBondTokens, "KEKTECH_RESOLUTION_MIN_DISPUTE_BOND_TOKENS")
	setDuration(&cfg.Resolution.EmergencyDelay, "KEKTECH_RESOLUTION_EMERGENCY_DELAY")
	setDuration(&cfg.Resolution.ClaimTimeout, "KEKTECH_RESOLUTION_CLAIM_TIMEOUT")

	// ── Payee ──
	setStr(&cfg.Payee.URL, "KEKTECH_PAYEE_URL")
	setStr(&cfg.Payee.KeyID, "KEKTECH_PAYEE_KEY_ID")
	setStr(&cfg.Payee.KeySecret, "KEKTECH_PAYEE_KEY_SECRET")
	setStr(&cfg.Payee.KeySecretFile, "KEKTECH_PAYEE_KEY_SECRET_FILE")
	setStr(&cfg.Payee.KeySecretPassword, "KEKTECH_PAYEE_KEY_SECRET_PASSWORD")
	setDuration(&cfg.Payee.Timeout, "KEKTECH_PAYEE_TIMEOUT")

	// ── Access ──
	setStringSlice(&cfg.Access.Admins, "KEKTECH_ACCESS_ADMINS")
	setStringSlice(&cfg.Access.Resolvers, "KEKTECH_ACCESS_RESOLVERS")
	setStringSlice(&cfg.Access.Backends, "KEKTECH_ACCESS_BACKENDS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "KEKTECH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "KEKTECH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "KEKTECH_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "KEKTECH_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RatePerMinute, "KEKTECH_SERVER_RATE_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KEKTECH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KEKTECH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KEKTECH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KEKTECH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "KEKTECH_MODE")
	setStr(&cfg.LogLevel, "KEKTECH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
