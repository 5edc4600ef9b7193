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
// built-in defaults, applies SWAPBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SWAPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "SWAPBOT_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WSURL, "SWAPBOT_SOLANA_WS_URL")
	setStr(&cfg.Solana.Commitment, "SWAPBOT_SOLANA_COMMITMENT")
	setStr(&cfg.Solana.ExplorerHost, "SWAPBOT_SOLANA_EXPLORER_HOST")
	setDuration(&cfg.Solana.RequestTimeout, "SWAPBOT_SOLANA_REQUEST_TIMEOUT")
	setInt(&cfg.Solana.SubmitAttempts, "SWAPBOT_SOLANA_SUBMIT_ATTEMPTS")
	setInt(&cfg.Solana.BlockhashAttempts, "SWAPBOT_SOLANA_BLOCKHASH_ATTEMPTS")
	setInt(&cfg.Solana.ConfirmAttempts, "SWAPBOT_SOLANA_CONFIRM_ATTEMPTS")
	setDuration(&cfg.Solana.ConfirmInterval, "SWAPBOT_SOLANA_CONFIRM_INTERVAL")

	// ── Jupiter ──
	setStr(&cfg.Jupiter.BaseURL, "SWAPBOT_JUPITER_BASE_URL")
	setStr(&cfg.Jupiter.PriceURL, "SWAPBOT_JUPITER_PRICE_URL")
	setStr(&cfg.Jupiter.ApiKey, "SWAPBOT_JUPITER_API_KEY")
	setInt(&cfg.Jupiter.PlatformFeeBps, "SWAPBOT_JUPITER_PLATFORM_FEE_BPS")
	setStr(&cfg.Jupiter.PlatformFeeAccount, "SWAPBOT_JUPITER_PLATFORM_FEE_ACCOUNT")
	setDuration(&cfg.Jupiter.RequestTimeout, "SWAPBOT_JUPITER_REQUEST_TIMEOUT")

	// ── Vault ──
	setStr(&cfg.Vault.Passphrase, "SWAPBOT_VAULT_PASSPHRASE")

	// ── Swap ──
	setFloat64(&cfg.Swap.DefaultSlippagePct, "SWAPBOT_SWAP_DEFAULT_SLIPPAGE_PCT")
	setFloat64(&cfg.Swap.SellBuffer, "SWAPBOT_SWAP_SELL_BUFFER")
	setInt(&cfg.Swap.MaxAttempts, "SWAPBOT_SWAP_MAX_ATTEMPTS")

	// ── Price ──
	setDuration(&cfg.Price.CacheTTL, "SWAPBOT_PRICE_CACHE_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SWAPBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SWAPBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SWAPBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SWAPBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SWAPBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SWAPBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SWAPBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SWAPBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SWAPBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SWAPBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SWAPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWAPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWAPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SWAPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SWAPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SWAPBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SWAPBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SWAPBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SWAPBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SWAPBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SWAPBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SWAPBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SWAPBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SWAPBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "SWAPBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "SWAPBOT_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SWAPBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SWAPBOT_SERVER_PORT")
	setStr(&cfg.Server.APIToken, "SWAPBOT_SERVER_API_TOKEN")
	setStringSlice(&cfg.Server.CORSOrigins, "SWAPBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SWAPBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SWAPBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "SWAPBOT_NOTIFY_DISCORD_WEBHOOK")
	setStringSlice(&cfg.Notify.Events, "SWAPBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SWAPBOT_MODE")
	setStr(&cfg.LogLevel, "SWAPBOT_LOG_LEVEL")
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
