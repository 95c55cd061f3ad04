package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Remote   RemoteConfig
	Extract  ExtractConfig
	Database DatabaseConfig
	Undo     UndoConfig
	Log      LogConfig
}

// RemoteConfig points at the bill persistence backend.
type RemoteConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	AuthTokenEnv string `mapstructure:"auth_token_env"`
}

// ExtractConfig points at the email extraction service and holds the
// auto-create policy.
type ExtractConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	AuthTokenEnv  string  `mapstructure:"auth_token_env"`
	AutoThreshold float64 `mapstructure:"auto_threshold"`
	MaxResults    int     `mapstructure:"max_results"`
	DaysBack      int     `mapstructure:"days_back"`
}

// DatabaseConfig holds the local sqlite path (review queue, dismissals).
type DatabaseConfig struct {
	Path string
}

// UndoConfig controls the undo toast window.
type UndoConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
}

// LogConfig controls the debug log file. The TUI owns stdout, so logs
// always go to a file.
type LogConfig struct {
	Path  string
	Level string
}

// Load reads configuration from file and env. Env var overrides use prefix
// BILLDECK_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("remote.base_url", "http://localhost:8787/api")
	v.SetDefault("remote.auth_token_env", "BILLDECK_API_TOKEN")
	v.SetDefault("extract.base_url", "http://localhost:8788/extract")
	v.SetDefault("extract.auth_token_env", "BILLDECK_EXTRACT_TOKEN")
	v.SetDefault("extract.auto_threshold", 0.85)
	v.SetDefault("extract.max_results", 50)
	v.SetDefault("extract.days_back", 30)
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "billdeck", "billdeck.db"))
	v.SetDefault("undo.window_seconds", 10)
	v.SetDefault("log.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "billdeck", "billdeck.log"))
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BILLDECK_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "billdeck"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BILLDECK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Validate rejects configurations the app cannot run with.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.Remote,
		validation.Field(&c.Remote.BaseURL, validation.Required, is.URL),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Extract,
		validation.Field(&c.Extract.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Extract.AutoThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Extract.MaxResults, validation.Min(1), validation.Max(500)),
		validation.Field(&c.Extract.DaysBack, validation.Min(1), validation.Max(365)),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Path, validation.Required),
	)
}

// RemoteToken resolves the backend auth token from the configured env var.
func (c Config) RemoteToken() string {
	return os.Getenv(c.Remote.AuthTokenEnv)
}

// ExtractToken resolves the extraction service token.
func (c Config) ExtractToken() string {
	return os.Getenv(c.Extract.AuthTokenEnv)
}
