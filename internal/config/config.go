package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	APIBaseURL     string        `mapstructure:"API_BASE_URL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SessionFile    string        `mapstructure:"SESSION_FILE"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	LogFile        string        `mapstructure:"LOG_FILE"`
	LogMaxSizeMB   int           `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups  int           `mapstructure:"LOG_MAX_BACKUPS"`

	// Sandbox backend.
	SandboxPort       string        `mapstructure:"SANDBOX_PORT"`
	SandboxSigningKey string        `mapstructure:"SANDBOX_SIGNING_KEY"`
	SandboxTokenTTL   time.Duration `mapstructure:"SANDBOX_TOKEN_TTL"`
	SandboxSeed       int64         `mapstructure:"SANDBOX_SEED"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema          string        `mapstructure:"DB_SCHEMA"`
	// Optional endpoint registered at start for outcome events.
	SandboxWebhookURL    string `mapstructure:"SANDBOX_WEBHOOK_URL"`
	SandboxWebhookSecret string `mapstructure:"SANDBOX_WEBHOOK_SECRET"`
}

var envKeys = []string{
	"ENV",
	"API_BASE_URL",
	"REQUEST_TIMEOUT",
	"SESSION_FILE",
	"LOG_LEVEL",
	"LOG_FILE",
	"LOG_MAX_SIZE_MB",
	"LOG_MAX_BACKUPS",
	"SANDBOX_PORT",
	"SANDBOX_SIGNING_KEY",
	"SANDBOX_TOKEN_TTL",
	"SANDBOX_SEED",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"DB_SCHEMA",
	"SANDBOX_WEBHOOK_URL",
	"SANDBOX_WEBHOOK_SECRET",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "production")
	v.SetDefault("API_BASE_URL", "http://localhost:8000/api")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SESSION_FILE", defaultSessionFile())
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 10)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("SANDBOX_PORT", "8000")
	v.SetDefault("SANDBOX_SIGNING_KEY", "sandbox-signing-key-change-me")
	v.SetDefault("SANDBOX_TOKEN_TTL", "12h")
	v.SetDefault("SANDBOX_SEED", 42)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("DB_SCHEMA", "screening")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the values the client cannot run without. Sandbox-only
// settings are checked by the sandbox command itself.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL scheme must be http or https, got %q", u.Scheme)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.SessionFile == "" {
		return fmt.Errorf("SESSION_FILE is required")
	}
	return nil
}

// ValidateSandbox checks the settings used by `sandbox serve`.
func (c *Config) ValidateSandbox() error {
	if len(c.SandboxSigningKey) < 16 {
		return fmt.Errorf("SANDBOX_SIGNING_KEY must be at least 16 characters")
	}
	if c.SandboxTokenTTL <= 0 {
		return fmt.Errorf("SANDBOX_TOKEN_TTL must be positive, got %s", c.SandboxTokenTTL)
	}
	if c.DatabaseURL != "" && c.DBSchema == "" {
		return fmt.Errorf("DB_SCHEMA is required when DATABASE_URL is set")
	}
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".screening-session.json"
	}
	return filepath.Join(dir, "screening", "session.json")
}
