package config

import (
	"strings"
	"testing"
	"time"

	"github.com/flemzord/tgrelay/internal/dedup"
	"github.com/flemzord/tgrelay/internal/replies"
)

func validConfig() *Config {
	cfg := &Config{Version: "1"}
	cfg.Defaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unsupported version", func(c *Config) { c.Version = "2" }, "unsupported version"},
		{"bad bind", func(c *Config) { c.Server.Bind = "nope" }, "invalid bind address"},
		{"empty prefix segment", func(c *Config) { c.Server.SetPrefix("a//b") }, "empty segment"},
		{"relative public url", func(c *Config) { c.Server.PublicURL = "relay.example.com" }, "public_url"},
		{"metrics path", func(c *Config) { c.Server.Metrics.Path = "metrics" }, "metrics path"},
		{"dedup backend", func(c *Config) { c.Dedup.Backend = "redis" }, "unknown backend"},
		{"sqlite path", func(c *Config) { c.Dedup.Backend = dedup.BackendSQLite }, "path is required"},
		{"prune schedule", func(c *Config) { c.Dedup.PruneSchedule = "every minute" }, "prune_schedule"},
		{"dedup ttl", func(c *Config) { c.Dedup.TTL = time.Millisecond }, "ttl"},
		{"api url", func(c *Config) { c.Telegram.APIURL = "ftp://x" }, "api_url"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "unknown level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "unknown format"},
		{"keyword without triggers", func(c *Config) {
			c.Replies.Keywords = []replies.Rule{{Reply: "x"}}
		}, "no triggers"},
		{"keyword without reply", func(c *Config) {
			c.Replies.Keywords = []replies.Rule{{Triggers: []string{"x"}}}
		}, "empty reply"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Version = "9"
	cfg.Log.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "unsupported version") || !strings.Contains(msg, "unknown level") {
		t.Errorf("expected both errors, got: %v", err)
	}
}

func TestValidate_MissingSecretIsWarningOnly(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Server.Secret = ""

	if err := Validate(cfg); err != nil {
		t.Fatalf("missing secret must not fail validation: %v", err)
	}
	warnings := Warnings(cfg)
	if len(warnings) == 0 || !strings.Contains(warnings[0], "SECRET_TOKEN") {
		t.Errorf("warnings = %v", warnings)
	}

	cfg.Server.Secret = "Abcdefgh12345678"
	cfg.Server.PublicURL = "https://relay.example.com"
	if w := Warnings(cfg); len(w) != 0 {
		t.Errorf("unexpected warnings: %v", w)
	}
}
