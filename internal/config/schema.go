// Package config handles YAML configuration loading, environment variable
// expansion, and validation for tgrelay.
package config

import (
	"time"

	"github.com/flemzord/tgrelay/internal/dedup"
	"github.com/flemzord/tgrelay/internal/gateway"
	"github.com/flemzord/tgrelay/internal/replies"
	"github.com/flemzord/tgrelay/internal/telemetry"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Only "1" is supported; empty
	// is accepted so that a relay can run from environment alone.
	Version string `yaml:"version"`

	Server   gateway.Config   `yaml:"server"`
	Telegram TelegramConfig   `yaml:"telegram"`
	Dedup    dedup.Config     `yaml:"dedup"`
	Replies  replies.Table    `yaml:"replies"`
	Log      LogConfig        `yaml:"log"`
	Audit    AuditConfig      `yaml:"audit"`
	Tracing  telemetry.Config `yaml:"tracing"`
}

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// AuditConfig configures the JSONL audit trail of webhook registrations.
type AuditConfig struct {
	// Path is the file to append to. Empty disables the audit log.
	Path string `yaml:"path"`
}

// Defaults fills every zero value, including nested sections.
func (c *Config) Defaults() {
	c.Server.Defaults()
	c.Dedup.Defaults()
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Telegram.Timeout <= 0 {
		c.Telegram.Timeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
