// Package dedup provides the idempotency store that suppresses repeated
// webhook deliveries of the same Telegram message.
//
// Telegram redelivers an update when the webhook does not answer in time,
// so the relay records every handled message under a key and skips keys it
// has already seen within a TTL.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Store is the idempotency capability injected into the relay.
// Implementations are safe for concurrent use.
type Store interface {
	// Seen reports whether key was recorded and has not expired.
	Seen(ctx context.Context, key string) (bool, error)

	// MarkSeen records key. It returns true when the key was newly
	// recorded and false when a live record already existed, which lets
	// callers close the gap between Seen and MarkSeen.
	MarkSeen(ctx context.Context, key string) (bool, error)

	// Forget removes key so that a redelivery is processed again. A
	// missing key is not an error.
	Forget(ctx context.Context, key string) error

	// Prune removes expired records and returns how many were dropped.
	Prune(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

const (
	defaultTTL        = 10 * time.Minute
	defaultMaxEntries = 10000
	defaultSchedule   = "*/5 * * * *"
)

// Config holds the dedup store configuration.
type Config struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Path       string        `yaml:"path"`
	DSN        string        `yaml:"dsn"`
	// PruneSchedule is a 5-field cron expression for expiring records.
	PruneSchedule string `yaml:"prune_schedule"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = defaultMaxEntries
	}
	if c.PruneSchedule == "" {
		c.PruneSchedule = defaultSchedule
	}
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Path == "" {
			return errors.New("dedup: path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DSN == "" {
			return errors.New("dedup: dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("dedup: unknown backend %q (must be memory, sqlite or postgres)", c.Backend)
	}
	if c.TTL < time.Second {
		return fmt.Errorf("dedup: ttl must be at least 1s, got %s", c.TTL)
	}
	return nil
}

// Open creates the store selected by cfg. Defaults are applied to a copy.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.Path, cfg.TTL)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN, cfg.TTL)
	default:
		return NewMemoryStore(cfg.TTL, cfg.MaxEntries), nil
	}
}

// Key builds the record key for one message. Telegram message ids are
// only unique per chat, and one deployment can serve several bots, so the
// key combines all three. botID is the numeric token prefix, never the
// token itself.
func Key(botID string, chatID int64, messageID int) string {
	return botID + ":" + strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}
