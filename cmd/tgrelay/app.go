package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemzord/tgrelay/internal/config"
	"github.com/flemzord/tgrelay/internal/metrics"
	"github.com/flemzord/tgrelay/internal/registration"
	"github.com/flemzord/tgrelay/internal/relay"
	"github.com/flemzord/tgrelay/internal/security"
	"github.com/flemzord/tgrelay/internal/telegram"
	"github.com/flemzord/tgrelay/internal/telemetry"
)

// app holds the process-wide collaborators shared by every command.
type app struct {
	cfg *config.Config
	// cfgPath is the file cfg was loaded from, or "" when it came from
	// the environment alone.
	cfgPath string
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *security.AuditLogger
	http    *http.Client

	closers []io.Closer
}

// loadConfig loads the dotenv file and the configuration named by the
// persistent flags, then validates it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath returns the --config flag or the first file found in the
// standard locations.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return resolveConfigPath()
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	redactor := security.NewRedactor(cfg.Server.Secret)
	logger, err := newLogger(logOut, cfg.Log, redactor)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		http:    &http.Client{Timeout: cfg.Telegram.Timeout},
	}

	auditCfg := security.AuditLoggerConfig{Redactor: redactor}
	if cfg.Audit.Path != "" {
		f, err := openAuditFile(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f)
		auditCfg.Writer = f
	}
	a.audit = security.NewAuditLogger(auditCfg)

	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// botClient returns a Bot API client for token sharing the app's HTTP
// client, metrics and tracer.
func (a *app) botClient(token string) *telegram.Client {
	return telegram.NewClient(token, a.cfg.Telegram.APIURL,
		telegram.WithHTTPClient(a.http),
		telegram.WithObserver(a.metrics.TelegramObserver()),
		telegram.WithTracer(telemetry.Tracer()),
	)
}

func (a *app) bots() relay.BotFactory {
	return func(token string) relay.Bot { return a.botClient(token) }
}

func (a *app) registrar() *registration.Manager {
	return registration.NewManager(
		func(token string) registration.Webhooks { return a.botClient(token) },
		a.audit, a.metrics, a.logger,
	)
}

// newLogger builds the process logger. Every record passes through the
// redactor so that bot tokens and the webhook secret never reach output.
func newLogger(w io.Writer, cfg config.LogConfig, redactor *security.Redactor) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		inner = slog.NewJSONHandler(w, opts)
	default:
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

func openAuditFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("audit: creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}
	return f, nil
}
