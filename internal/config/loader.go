package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Environment variables overlaid on the file configuration.
const (
	EnvPrefix      = "PREFIX"
	EnvSecretToken = "SECRET_TOKEN"
	EnvPort        = "PORT"
	EnvPublicURL   = "PUBLIC_URL"
)

// Load reads a YAML configuration file, expands environment variables,
// overlays the relay environment variables, and fills defaults. An empty
// path skips the file and builds the configuration from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}

		expanded, err := expandEnv(raw)
		if err != nil {
			return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
		}

		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.Defaults()
	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped and existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: loading %s: %w", p, err)
		}
	}
	return nil
}

// applyEnv overlays PREFIX, SECRET_TOKEN, PORT and PUBLIC_URL. PORT
// keeps the configured bind host, or listens on all interfaces when
// none is configured.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvPrefix); ok {
		cfg.Server.SetPrefix(v)
	}
	if v, ok := os.LookupEnv(EnvSecretToken); ok && v != "" {
		cfg.Server.Secret = v
	}
	if v, ok := os.LookupEnv(EnvPublicURL); ok && v != "" {
		cfg.Server.PublicURL = v
	}
	if v, ok := os.LookupEnv(EnvPort); ok && v != "" {
		host := ""
		if cfg.Server.Bind != "" {
			if h, _, err := net.SplitHostPort(cfg.Server.Bind); err == nil {
				host = h
			}
		}
		cfg.Server.Bind = net.JoinHostPort(host, v)
	}
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if subs[2] != nil {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
