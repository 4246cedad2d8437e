package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/tgcloud/internal/bytesize"
)

// Config represents the tgcloud configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TGCLOUD_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Database configures the metadata store (MongoDB or embedded Badger)
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Telegram configures the Bot API endpoint and destination chat
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`

	// Bots is the bot roster. Each entry is registered into the metadata
	// store at startup; counters of already-known bots survive.
	// Can also be supplied as a JSON array via TGCLOUD_BOTS.
	Bots []BotConfig `mapstructure:"bots" yaml:"bots"`

	// Transfer contains the transfer engine tunables
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`

	// Web contains the HTTP frontend configuration
	Web WebConfig `mapstructure:"web" yaml:"web"`

	// Metrics controls Prometheus instrumentation
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// DatabaseConfig configures the metadata store.
type DatabaseConfig struct {
	// Driver selects the backend
	// Valid values: mongo, badger
	Driver string `mapstructure:"driver" validate:"required,oneof=mongo badger" yaml:"driver"`

	// URI is the MongoDB connection string (mongo driver only)
	// Override: TGCLOUD_MONGO_URI
	URI string `mapstructure:"uri" validate:"required_if=Driver mongo" yaml:"uri,omitempty"`

	// Name is the MongoDB database name (mongo driver only)
	// Default: tgcloud
	Name string `mapstructure:"name" yaml:"name,omitempty"`

	// Path is the Badger data directory (badger driver only)
	Path string `mapstructure:"path" validate:"required_if=Driver badger" yaml:"path,omitempty"`
}

// TelegramConfig configures the Bot API endpoint.
type TelegramConfig struct {
	// APIURL is the Bot API base URL. Point this at a self-hosted
	// telegram-bot-api server to lift the 50 MB upload ceiling.
	// Default: https://api.telegram.org
	// Override: TGCLOUD_TELEGRAM_API_URL
	APIURL string `mapstructure:"api_url" validate:"required,url" yaml:"api_url"`

	// ChatID is the destination chat for every chunk of every file
	// Override: TGCLOUD_TELEGRAM_CHAT_ID
	ChatID string `mapstructure:"chat_id" validate:"required" yaml:"chat_id"`
}

// BotConfig is one bot roster entry.
type BotConfig struct {
	// ID is the stable bot identifier used in chunk placement records
	ID string `json:"id" mapstructure:"id" validate:"required" yaml:"id"`

	// Token is the bot's API token
	Token string `json:"token" mapstructure:"token" validate:"required" yaml:"token"`
}

// TransferConfig contains the transfer engine tunables.
type TransferConfig struct {
	// ChunkSize is the per-chunk byte ceiling
	// Supports human-readable formats: "256Mi", "1GiB", "100MB"
	// Default: 256Mi
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`

	// MaxGlobalConcurrency bounds in-flight chunk operations across all bots
	// Default: 12
	MaxGlobalConcurrency int `mapstructure:"max_global_concurrency" validate:"omitempty,min=1" yaml:"max_global_concurrency"`

	// MaxPerBotConcurrency bounds in-flight chunk operations per bot
	// Default: 3
	MaxPerBotConcurrency int `mapstructure:"max_per_bot_concurrency" validate:"omitempty,min=1" yaml:"max_per_bot_concurrency"`
}

// WebConfig configures the HTTP frontend started by `tgcloud serve`.
type WebConfig struct {
	// Port is the HTTP listen port
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the HTTP server read timeout
	// Default: 30s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP server write timeout. Kept generous because
	// download responses stream multi-GiB bodies.
	// Default: 0 (unbounded)
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// MetricsConfig controls Prometheus instrumentation.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed at
	// the web frontend's /metrics endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := loadBotsFromEnv(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use TGCLOUD_ prefix and underscores
	// Example: TGCLOUD_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("TGCLOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat aliases for the most common settings, so TGCLOUD_MONGO_URI works
	// alongside the nested TGCLOUD_DATABASE_URI form.
	v.RegisterAlias("mongo_uri", "database.uri")
	v.RegisterAlias("telegram_api_url", "telegram.api_url")
	v.RegisterAlias("telegram_chat_id", "telegram.chat_id")
	v.RegisterAlias("chunk_size", "transfer.chunk_size")
	v.RegisterAlias("max_global_concurrency", "transfer.max_global_concurrency")
	v.RegisterAlias("max_per_bot_concurrency", "transfer.max_per_bot_concurrency")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file is
// acceptable; defaults and environment variables take over.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// loadBotsFromEnv fills the bot roster from TGCLOUD_BOTS when the config file
// has none. The value is a JSON array: [{"id":"bot1","token":"..."}].
func loadBotsFromEnv(cfg *Config) error {
	if len(cfg.Bots) > 0 {
		return nil
	}
	raw := os.Getenv("TGCLOUD_BOTS")
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg.Bots); err != nil {
		return fmt.Errorf("failed to parse TGCLOUD_BOTS: %w", err)
	}
	return nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize, so
// config files can say "256Mi" or "100MB" instead of raw byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tgcloud")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "tgcloud")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
