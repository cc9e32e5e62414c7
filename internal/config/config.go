package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName          string        `mapstructure:"app_name"`
	Env              string        `mapstructure:"app_env"`
	LogLevel         string        `mapstructure:"log_level"`
	APIBaseURL       string        `mapstructure:"api_base_url"`
	RequestTimeoutMS int64         `mapstructure:"request_timeout_ms"`
	RequestTimeout   time.Duration `mapstructure:"-"`
	StrictEnvelope   bool          `mapstructure:"strict_envelope"`

	TokenStore           string        `mapstructure:"token_store"`
	TokenDBPath          string        `mapstructure:"token_db_path"`
	TokenKey             string        `mapstructure:"token_key"`
	TokenTTLSeconds      int64         `mapstructure:"token_ttl_seconds"`
	TokenCleanupSeconds  int64         `mapstructure:"token_cleanup_interval_seconds"`
	TokenTTL             time.Duration `mapstructure:"-"`
	TokenCleanupInterval time.Duration `mapstructure:"-"`

	NotifiersFile string `mapstructure:"notifiers_file"`
	DownloadDir   string `mapstructure:"download_dir"`
}

// DefaultRequestTimeoutMS is the fixed per-request timeout applied to every call.
const DefaultRequestTimeoutMS = 8000

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("app_name", "samvad-request-client")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("api_base_url", "")
	v.SetDefault("request_timeout_ms", DefaultRequestTimeoutMS)
	v.SetDefault("strict_envelope", false)
	v.SetDefault("token_store", "bbolt")
	v.SetDefault("token_db_path", "./data/token.db")
	v.SetDefault("token_key", "token")
	v.SetDefault("token_ttl_seconds", 0) // never expires
	v.SetDefault("token_cleanup_interval_seconds", int64(time.Hour/time.Second))
	v.SetDefault("notifiers_file", "")
	v.SetDefault("download_dir", "./downloads")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	cfg.TokenKey = strings.TrimSpace(cfg.TokenKey)

	if cfg.RequestTimeoutMS <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_ms (must be positive milliseconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMS) * time.Millisecond

	if cfg.TokenKey == "" {
		return nil, fmt.Errorf("token_key must not be empty")
	}
	if cfg.TokenTTLSeconds < 0 {
		return nil, fmt.Errorf("invalid token_ttl_seconds (must be zero or positive seconds)")
	}
	if cfg.TokenCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid token_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.TokenTTL = time.Duration(cfg.TokenTTLSeconds) * time.Second
	cfg.TokenCleanupInterval = time.Duration(cfg.TokenCleanupSeconds) * time.Second

	return &cfg, nil
}
