package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// DefaultPrefix is the route prefix used when none is configured.
const DefaultPrefix = "telegram-bot"

// Config holds HTTP gateway configuration.
type Config struct {
	Bind string `yaml:"bind"`
	// Prefix is the first path segment of every relay route. Nil selects
	// DefaultPrefix; an explicit empty string mounts the routes at root.
	Prefix *string `yaml:"prefix"`
	// Secret is the shared value Telegram presents in
	// X-Telegram-Bot-Api-Secret-Token.
	Secret string `yaml:"secret"`
	// PublicURL overrides the scheme and host derived from install
	// requests when building webhook URLs.
	PublicURL       string        `yaml:"public_url"`
	MaxBodyBytes    int           `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Metrics         MetricsConfig `yaml:"metrics"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsEnabled defaults to true.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.Prefix == nil {
		p := DefaultPrefix
		c.Prefix = &p
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// RoutePrefix returns the prefix without surrounding slashes.
func (c *Config) RoutePrefix() string {
	if c.Prefix == nil {
		return DefaultPrefix
	}
	return strings.Trim(*c.Prefix, "/")
}

// SetPrefix overrides the prefix.
func (c *Config) SetPrefix(p string) {
	c.Prefix = &p
}

// Validate checks the gateway settings. A missing secret is not an
// error here: the relay routes answer 500 until it is configured.
func (c *Config) Validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(c.Bind); err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q: %w", c.Bind, err))
	}
	if p := c.RoutePrefix(); strings.Contains(p, "//") {
		errs = append(errs, fmt.Errorf("gateway: prefix %q contains an empty segment", p))
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("gateway: public_url %q must be an absolute http(s) URL", c.PublicURL))
		}
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("gateway: max_body_bytes must not be negative"))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("gateway: metrics path %q must start with /", c.Metrics.Path))
	}
	return errors.Join(errs...)
}
