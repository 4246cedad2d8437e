package config

import (
	"strings"
	"time"

	"github.com/marmos91/tgcloud/internal/bytesize"
)

// Default values for unspecified configuration fields.
const (
	DefaultTelegramAPIURL = "https://api.telegram.org"
	DefaultDatabaseName   = "tgcloud"
	DefaultChunkSize      = 256 * bytesize.MiB
	DefaultWebPort        = 8080
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyDatabaseDefaults(&cfg.Database)
	applyTelegramDefaults(&cfg.Telegram)
	applyTransferDefaults(&cfg.Transfer)
	applyWebDefaults(&cfg.Web)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Driver == "" {
		cfg.Driver = "mongo"
	}
	if cfg.Name == "" {
		cfg.Name = DefaultDatabaseName
	}
}

func applyTelegramDefaults(cfg *TelegramConfig) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultTelegramAPIURL
	}
}

func applyTransferDefaults(cfg *TransferConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxGlobalConcurrency == 0 {
		cfg.MaxGlobalConcurrency = 12
	}
	if cfg.MaxPerBotConcurrency == 0 {
		cfg.MaxPerBotConcurrency = 3
	}
}

func applyWebDefaults(cfg *WebConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultWebPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	// WriteTimeout stays 0 by default: download responses stream bodies of
	// arbitrary size.
}

// GetDefaultConfig returns a configuration with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
