package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sync"

	"github.com/flemzord/tgrelay/internal/config"
	"github.com/flemzord/tgrelay/internal/replies"
)

// Target receives a new reply table.
type Target interface {
	SetReplies(*replies.Resolver)
}

// Handler reloads the configuration file and applies what can change
// without a restart.
type Handler struct {
	path   string
	target Target
	logger *slog.Logger

	mu      sync.Mutex
	current *config.Config
}

// NewHandler creates a handler for path. current is the configuration the
// process started with and is used to detect changes needing a restart.
func NewHandler(path string, target Target, current *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		path:    path,
		target:  target,
		current: current,
		logger:  logger.With("component", "reload"),
	}
}

// Reload loads and validates the file, then swaps the reply table. An
// invalid file leaves the running configuration untouched.
func (h *Handler) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	cfg, err := config.Load(h.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if pending := RestartRequired(h.current, cfg); len(pending) > 0 {
		h.logger.Warn("configuration changes need a restart", "sections", pending)
	}
	h.target.SetReplies(replies.NewResolver(cfg.Replies))
	h.current.Replies = cfg.Replies
	h.logger.Info("reply table reloaded", "keywords", len(cfg.Replies.Keywords))
	return nil
}

// Run reloads on every watcher event or signal until ctx is done.
// Failures are logged and the previous configuration stays active.
func (h *Handler) Run(ctx context.Context, events <-chan Event, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
		case <-signals:
		}
		if err := h.Reload(ctx); err != nil {
			h.logger.Error("configuration reload failed", "error", err)
		}
	}
}

// RestartRequired names the sections of next that differ from prev and
// are only read at startup.
func RestartRequired(prev, next *config.Config) []string {
	sections := []struct {
		name string
		a, b any
	}{
		{"server", prev.Server, next.Server},
		{"telegram", prev.Telegram, next.Telegram},
		{"dedup", prev.Dedup, next.Dedup},
		{"log", prev.Log, next.Log},
		{"audit", prev.Audit, next.Audit},
		{"tracing", prev.Tracing, next.Tracing},
	}
	var out []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.a, s.b) {
			out = append(out, s.name)
		}
	}
	return out
}
