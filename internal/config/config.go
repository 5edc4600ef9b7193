// Package config defines the top-level configuration for the swap bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SWAPBOT_* environment variables.
type Config struct {
	Solana   SolanaConfig   `toml:"solana"`
	Jupiter  JupiterConfig  `toml:"jupiter"`
	Vault    VaultConfig    `toml:"vault"`
	Swap     SwapConfig     `toml:"swap"`
	Price    PriceConfig    `toml:"price"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	// Assets maps upper-case token symbols to mint addresses so chat
	// commands can say "BONK" instead of a 44-character mint.
	Assets   map[string]string `toml:"assets"`
	Mode     string            `toml:"mode"`
	LogLevel string            `toml:"log_level"`
}

// SolanaConfig holds RPC endpoints and chain parameters.
type SolanaConfig struct {
	RPCURL            string   `toml:"rpc_url"`
	WSURL             string   `toml:"ws_url"`
	Commitment        string   `toml:"commitment"`
	ExplorerHost      string   `toml:"explorer_host"`
	RequestTimeout    duration `toml:"request_timeout"`
	SubmitAttempts    int      `toml:"submit_attempts"`
	BlockhashAttempts int      `toml:"blockhash_attempts"`
	ConfirmAttempts   int      `toml:"confirm_attempts"`
	ConfirmInterval   duration `toml:"confirm_interval"`
}

// JupiterConfig holds aggregator API parameters and the integrator fee.
type JupiterConfig struct {
	BaseURL            string   `toml:"base_url"`
	PriceURL           string   `toml:"price_url"`
	ApiKey             string   `toml:"api_key"`
	PlatformFeeBps     int      `toml:"platform_fee_bps"`
	PlatformFeeAccount string   `toml:"platform_fee_account"`
	RequestTimeout     duration `toml:"request_timeout"`
}

// VaultConfig holds key-encryption parameters.
type VaultConfig struct {
	Passphrase string `toml:"passphrase"`
}

// SwapConfig holds swap execution policy.
type SwapConfig struct {
	DefaultSlippagePct float64            `toml:"default_slippage_pct"`
	SlippageOverrides  map[string]float64 `toml:"slippage_overrides"`
	SellBuffer         float64            `toml:"sell_buffer"`
	MaxAttempts        int                `toml:"max_attempts"`
}

// PriceConfig holds price lookup parameters.
type PriceConfig struct {
	CacheTTL duration `toml:"cache_ttl"`
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

// ArchiveConfig holds ledger cold-storage parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
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
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIToken    string   `toml:"api_token"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	Events         []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL:            "https://api.mainnet-beta.solana.com",
			WSURL:             "wss://api.mainnet-beta.solana.com",
			Commitment:        "confirmed",
			ExplorerHost:      "solscan.io",
			RequestTimeout:    duration{30 * time.Second},
			SubmitAttempts:    3,
			BlockhashAttempts: 3,
			ConfirmAttempts:   3,
			ConfirmInterval:   duration{2 * time.Second},
		},
		Jupiter: JupiterConfig{
			BaseURL:        "https://lite-api.jup.ag/swap/v1",
			PriceURL:       "https://lite-api.jup.ag/price/v3",
			RequestTimeout: duration{30 * time.Second},
		},
		Swap: SwapConfig{
			DefaultSlippagePct: 1.0,
			SlippageOverrides: map[string]float64{
				// BONK trades thin; a tight tolerance fails almost every fill.
				"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": 10.0,
			},
			SellBuffer:  0.01,
			MaxAttempts: 3,
		},
		Price: PriceConfig{
			CacheTTL: duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "swapbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "swapbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"swap_succeeded", "swap_failed", "transfer_succeeded", "transfer_failed", "unconfirmed", "error"},
		},
		Assets: map[string]string{
			"SOL":  "So11111111111111111111111111111111111111112",
			"USDC": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"USDT": "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
			"BONK": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
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

// validCommitments enumerates the accepted Solana commitment levels.
var validCommitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Solana
	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}
	if !validCommitments[c.Solana.Commitment] {
		errs = append(errs, fmt.Sprintf("solana: commitment must be processed, confirmed, or finalized, got %q", c.Solana.Commitment))
	}
	if c.Solana.ConfirmAttempts < 1 {
		errs = append(errs, "solana: confirm_attempts must be >= 1")
	}

	// Jupiter
	if c.Jupiter.BaseURL == "" {
		errs = append(errs, "jupiter: base_url must not be empty")
	}
	if c.Jupiter.PlatformFeeBps < 0 || c.Jupiter.PlatformFeeBps > 255 {
		errs = append(errs, fmt.Sprintf("jupiter: platform_fee_bps must be 0-255, got %d", c.Jupiter.PlatformFeeBps))
	}
	if c.Jupiter.PlatformFeeBps > 0 && c.Jupiter.PlatformFeeAccount == "" {
		errs = append(errs, "jupiter: platform_fee_account is required when platform_fee_bps is set")
	}

	// Swap. The bounds mirror what the aggregator client accepts so a
	// bad config fails at startup, not on the first trade.
	if c.Swap.DefaultSlippagePct < 0.1 || c.Swap.DefaultSlippagePct > 10 {
		errs = append(errs, fmt.Sprintf("swap: default_slippage_pct must be in [0.1, 10], got %v", c.Swap.DefaultSlippagePct))
	}
	for mint, pct := range c.Swap.SlippageOverrides {
		if pct < 0.1 || pct > 10 {
			errs = append(errs, fmt.Sprintf("swap: slippage override for %s must be in [0.1, 10], got %v", mint, pct))
		}
	}
	if c.Swap.SellBuffer < 0 {
		errs = append(errs, "swap: sell_buffer must be >= 0")
	}
	if c.Swap.MaxAttempts < 1 {
		errs = append(errs, "swap: max_attempts must be >= 1")
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
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Telegram token and chat ID must be set together.
	nt := c.Notify.TelegramToken != ""
	nc := c.Notify.TelegramChatID != ""
	if nt != nc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
