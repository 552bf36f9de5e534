package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/flemzord/tgrelay/internal/cron"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks a loaded Config and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version != "" && cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if err := cfg.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: server: %w", err))
	}
	if err := cfg.Dedup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if err := cron.ParseSchedule(cfg.Dedup.PruneSchedule); err != nil {
		errs = append(errs, fmt.Errorf("config: dedup: invalid prune_schedule %q: %w", cfg.Dedup.PruneSchedule, err))
	}

	if u, err := url.Parse(cfg.Telegram.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: telegram: api_url %q must be an absolute http(s) URL", cfg.Telegram.APIURL))
	}

	if !slices.Contains(logLevels, strings.ToLower(cfg.Log.Level)) {
		errs = append(errs, fmt.Errorf("config: log: unknown level %q", cfg.Log.Level))
	}
	if !slices.Contains(logFormats, strings.ToLower(cfg.Log.Format)) {
		errs = append(errs, fmt.Errorf("config: log: unknown format %q (must be text or json)", cfg.Log.Format))
	}

	if err := cfg.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	for i, rule := range cfg.Replies.Keywords {
		if len(rule.Triggers) == 0 {
			errs = append(errs, fmt.Errorf("config: replies: keywords[%d] has no triggers", i))
		}
		if strings.TrimSpace(rule.Reply) == "" {
			errs = append(errs, fmt.Errorf("config: replies: keywords[%d] has an empty reply", i))
		}
	}

	return errors.Join(errs...)
}

// Warnings returns non-fatal problems worth reporting at startup.
func Warnings(cfg *Config) []string {
	var out []string
	if cfg.Server.Secret == "" {
		out = append(out, "SECRET_TOKEN is not configured: every relay route will answer 500")
	}
	if cfg.Server.PublicURL == "" {
		out = append(out, "public_url is not set: webhook URLs are derived from request headers")
	}
	return out
}
