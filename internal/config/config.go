// Package config defines the top-level configuration for liqguard and
// provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LIQGUARD_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	API      APIConfig      `toml:"api"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Wizard   WizardConfig   `toml:"wizard"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig locates the optional server-side signing key. Without one,
// sign-in is completed by the browser wallet.
type WalletConfig struct {
	PrivateKey    string `toml:"private_key"`
	SealedKeyPath string `toml:"sealed_key_path"`
	KeyPassword   string `toml:"key_password"`
}

// Configured reports whether a signing key source is set.
func (w WalletConfig) Configured() bool {
	return w.PrivateKey != "" || w.SealedKeyPath != ""
}

// APIConfig describes the insurance backend.
type APIConfig struct {
	BaseURL           string   `toml:"base_url"`
	PartnerKey        string   `toml:"partner_key"`
	PartnerSecret     string   `toml:"partner_secret"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
}

// CatalogConfig configures the market and SKU catalogs. An empty
// MarketsFile uses the built-in markets.
type CatalogConfig struct {
	MarketsFile    string   `toml:"markets_file"`
	Watch          bool     `toml:"watch"`
	SKUCacheTTL    duration `toml:"sku_cache_ttl"`
	SKURefresh     duration `toml:"sku_refresh_interval"`
}

// WizardConfig holds per-session limits. ServerSignIn lets API wizards sign
// in with the configured wallet; verify mode always does.
type WizardConfig struct {
	SessionTTL      duration `toml:"session_ttl"`
	SubmitLimit     int      `toml:"submit_limit"`
	SubmitWindow    duration `toml:"submit_window"`
	SubmitLockTTL   duration `toml:"submit_lock_ttl"`
	Language        string   `toml:"language"`
	MaxUploadBytes  int64    `toml:"max_upload_bytes"`
	PersistSessions bool     `toml:"persist_sessions"`
	ServerSignIn    bool     `toml:"server_signin"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters. Storage
// is disabled unless Enabled is set.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds Redis connection parameters. Without Redis the server
// falls back to in-process rate limiting and signalling.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters for the evidence
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramAPIBase   string   `toml:"telegram_api_base"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// Duration wraps d for use in Config literals.
func Duration(d time.Duration) duration {
	return duration{d}
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "https://api.liqguard.io",
			Timeout:           duration{30 * time.Second},
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Catalog: CatalogConfig{
			Watch:       true,
			SKUCacheTTL: duration{10 * time.Minute},
			SKURefresh:  duration{15 * time.Minute},
		},
		Wizard: WizardConfig{
			SessionTTL:     duration{30 * time.Minute},
			SubmitLimit:    5,
			SubmitWindow:   duration{time.Minute},
			SubmitLockTTL:  duration{30 * time.Second},
			Language:       "en",
			MaxUploadBytes: 2 << 20,
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "liqguard",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "liqguard-evidence",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Notify: NotifyConfig{
			TelegramAPIBase: "https://api.telegram.org",
			Events:          []string{"verification_eligible", "verification_ineligible", "verification_error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"verify": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validEvents = map[string]bool{
	"verification_eligible":   true,
	"verification_ineligible": true,
	"verification_error":      true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !validModes[c.Mode] {
		add("mode %q is invalid (want server or verify)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("log_level %q is invalid", c.LogLevel)
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("api.base_url %q must be an absolute URL", c.API.BaseURL)
	}
	if (c.API.PartnerKey == "") != (c.API.PartnerSecret == "") {
		add("api.partner_key and api.partner_secret must be set together")
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second must not be negative")
	}

	if c.Wallet.PrivateKey != "" && c.Wallet.SealedKeyPath != "" {
		add("wallet.private_key and wallet.sealed_key_path are mutually exclusive")
	}
	if c.Wallet.SealedKeyPath != "" && c.Wallet.KeyPassword == "" {
		add("wallet.key_password is required with wallet.sealed_key_path")
	}

	if c.Wizard.SessionTTL.Duration <= 0 {
		add("wizard.session_ttl must be positive")
	}
	if c.Wizard.SubmitLimit < 0 {
		add("wizard.submit_limit must not be negative")
	}
	if c.Wizard.MaxUploadBytes <= 0 {
		add("wizard.max_upload_bytes must be positive")
	}
	if c.Wizard.PersistSessions && !c.Redis.Enabled {
		add("wizard.persist_sessions requires redis.enabled")
	}

	if c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port %d is out of range", c.Server.Port)
		}
		if c.Server.RateLimit < 0 {
			add("server.rate_limit must not be negative")
		}
	}

	if c.Supabase.Enabled && c.Supabase.DSN == "" && c.Supabase.Host == "" {
		add("supabase.dsn or supabase.host is required when supabase is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis.addr is required when redis is enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		add("s3.bucket is required when s3 is enabled")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify.telegram_token and notify.telegram_chat_id must be set together")
	}
	for _, ev := range c.Notify.Events {
		if !validEvents[ev] {
			add("notify.events: unknown event %q", ev)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
