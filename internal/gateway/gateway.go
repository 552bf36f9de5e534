// Package gateway is the HTTP surface of the relay: webhook delivery,
// install and uninstall routes under a configurable prefix, plus health
// and metrics endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/tgrelay/internal/registration"
	"github.com/flemzord/tgrelay/internal/relay"
	"github.com/flemzord/tgrelay/internal/security"
	"github.com/flemzord/tgrelay/internal/telegram"
)

// UpdateHandler routes one webhook update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, owner, token string, update telegram.Update) (relay.Route, error)
}

// Registrar installs and removes webhooks.
type Registrar interface {
	Install(ctx context.Context, req registration.InstallRequest) (string, error)
	Uninstall(ctx context.Context, botToken, secret, requestID string) (string, error)
}

// Deps are the collaborators the gateway dispatches to.
type Deps struct {
	Relay     UpdateHandler
	Registrar Registrar
	// Metrics is served on the metrics path when non-nil and enabled.
	Metrics http.Handler
	Audit   *security.AuditLogger
	Logger  *slog.Logger
	// Version is reported by the health endpoint.
	Version string
}

// Gateway is the HTTP server.
type Gateway struct {
	config    Config
	relay     UpdateHandler
	registrar Registrar
	metrics   http.Handler
	audit     *security.AuditLogger
	logger    *slog.Logger
	version   string
	server    *http.Server
	startedAt time.Time
}

// New creates a Gateway. Defaults are applied to cfg.
func New(cfg Config, deps Deps) *Gateway {
	cfg.Defaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:    cfg,
		relay:     deps.Relay,
		registrar: deps.Registrar,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		logger:    logger.With("component", "gateway"),
		version:   deps.Version,
		startedAt: time.Now(),
	}
}

// Handler returns the fully wired router.
func (g *Gateway) Handler() http.Handler {
	return g.buildRouter()
}

// Start binds the listen address and serves in the background.
func (g *Gateway) Start() error {
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	if g.config.Secret == "" {
		g.logger.Warn("SECRET_TOKEN is not configured, relay routes will answer 500")
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String(), "prefix", "/"+g.config.RoutePrefix())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
