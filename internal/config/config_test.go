package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestDefaultNotifyEventsCoverUnconfirmed(t *testing.T) {
	// Ambiguous outcomes are the ones an operator most needs to hear about.
	if !slices.Contains(Defaults().Notify.Events, "unconfirmed") {
		t.Fatal("default notify events must include unconfirmed")
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "yolo" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"empty rpc url", func(c *Config) { c.Solana.RPCURL = "" }, "rpc_url"},
		{"bad commitment", func(c *Config) { c.Solana.Commitment = "instant" }, "commitment"},
		{"fee without account", func(c *Config) { c.Jupiter.PlatformFeeBps = 90; c.Jupiter.PlatformFeeAccount = "" }, "platform_fee_account"},
		{"excess slippage", func(c *Config) { c.Swap.DefaultSlippagePct = 60 }, "default_slippage_pct"},
		{"bad slippage override", func(c *Config) { c.Swap.SlippageOverrides = map[string]float64{"mint": -1} }, "slippage override"},
		{"token without chat", func(c *Config) { c.Notify.TelegramToken = "t" }, "set together"},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true; c.S3.Bucket = "" }, "bucket"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "serve"
log_level = "debug"

[solana]
rpc_url = "https://rpc.example.com"
confirm_interval = "5s"

[swap]
default_slippage_pct = 2.5

[swap.slippage_overrides]
"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263" = 8.0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SWAPBOT_SOLANA_RPC_URL", "https://rpc.override.example.com")
	t.Setenv("SWAPBOT_VAULT_PASSPHRASE", "hunter2")
	t.Setenv("SWAPBOT_SWAP_MAX_ATTEMPTS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "serve" || cfg.LogLevel != "debug" {
		t.Fatalf("mode/log_level = %q/%q", cfg.Mode, cfg.LogLevel)
	}
	// Env wins over file.
	if cfg.Solana.RPCURL != "https://rpc.override.example.com" {
		t.Fatalf("rpc_url = %q", cfg.Solana.RPCURL)
	}
	if cfg.Vault.Passphrase != "hunter2" {
		t.Fatalf("vault passphrase not applied from env")
	}
	if cfg.Swap.MaxAttempts != 5 {
		t.Fatalf("max_attempts = %d", cfg.Swap.MaxAttempts)
	}
	// File wins over defaults.
	if cfg.Solana.ConfirmInterval.Duration != 5*time.Second {
		t.Fatalf("confirm_interval = %v", cfg.Solana.ConfirmInterval)
	}
	if cfg.Swap.DefaultSlippagePct != 2.5 {
		t.Fatalf("default_slippage_pct = %v", cfg.Swap.DefaultSlippagePct)
	}
	if cfg.Swap.SlippageOverrides["DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"] != 8.0 {
		t.Fatalf("slippage override not loaded")
	}
	// Untouched defaults survive.
	if cfg.Jupiter.BaseURL == "" {
		t.Fatal("jupiter defaults were lost")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Vault.Passphrase = "secret"
	cfg.Jupiter.ApiKey = "key"
	cfg.Postgres.Password = "pw"
	cfg.Notify.TelegramToken = "token"

	red := RedactedConfig(&cfg)
	if red.Vault.Passphrase != "***" || red.Jupiter.ApiKey != "***" || red.Postgres.Password != "***" || red.Notify.TelegramToken != "***" {
		t.Fatal("secrets were not redacted")
	}
	if cfg.Vault.Passphrase != "secret" {
		t.Fatal("original config must not be mutated")
	}
	if red.Solana.RPCURL != cfg.Solana.RPCURL {
		t.Fatal("non-secret fields must be preserved")
	}
}
