package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

const sqliteBusyTimeout = 5000

// dialect holds the statements that differ between SQLite and Postgres.
type dialect struct {
	name   string
	schema []string
	seen   string
	mark   string
	forget string
	prune  string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS dedup_keys (
			key     TEXT    PRIMARY KEY,
			seen_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dedup_keys_seen_at ON dedup_keys(seen_at)`,
	},
	seen: `SELECT COUNT(*) FROM dedup_keys WHERE key = ? AND seen_at > ?`,
	mark: `INSERT INTO dedup_keys (key, seen_at) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET seen_at = excluded.seen_at
		WHERE dedup_keys.seen_at <= ?`,
	forget: `DELETE FROM dedup_keys WHERE key = ?`,
	prune: `DELETE FROM dedup_keys WHERE seen_at <= ?`,
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tgrelay_dedup_keys (
			key     TEXT   PRIMARY KEY,
			seen_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tgrelay_dedup_keys_seen_at ON tgrelay_dedup_keys(seen_at)`,
	},
	seen: `SELECT COUNT(*) FROM tgrelay_dedup_keys WHERE key = $1 AND seen_at > $2`,
	mark: `INSERT INTO tgrelay_dedup_keys (key, seen_at) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET seen_at = EXCLUDED.seen_at
		WHERE tgrelay_dedup_keys.seen_at <= $3`,
	forget: `DELETE FROM tgrelay_dedup_keys WHERE key = $1`,
	prune: `DELETE FROM tgrelay_dedup_keys WHERE seen_at <= $1`,
}

// SQLStore keeps records in a SQL table. Timestamps are Unix
// milliseconds. The upsert only touches an existing row when it has
// expired, so RowsAffected tells whether the key was newly recorded.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	ttl     time.Duration

	now func() time.Time
}

var _ Store = (*SQLStore)(nil)

// OpenSQLite opens (creating if needed) a SQLite database at path.
// It uses WAL mode, a 5 s busy timeout, and a single connection.
func OpenSQLite(ctx context.Context, path string, ttl time.Duration) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("dedup: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dedup: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", sqliteBusyTimeout),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("dedup: %s: %w", p, err)
		}
	}

	return newSQLStore(ctx, db, sqliteDialect, ttl)
}

// OpenPostgres connects to Postgres through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string, ttl time.Duration) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("dedup: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dedup: ping postgres: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect, ttl)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, ttl time.Duration) (*SQLStore, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("dedup: %s migrate: %w", d.name, err)
		}
	}
	return &SQLStore{db: db, dialect: d, ttl: ttl, now: time.Now}, nil
}

func (s *SQLStore) cutoff(now time.Time) int64 {
	return now.Add(-s.ttl).UnixMilli()
}

// Seen implements Store.
func (s *SQLStore) Seen(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.seen, key, s.cutoff(s.now())).Scan(&n); err != nil {
		return false, fmt.Errorf("dedup: %s seen: %w", s.dialect.name, err)
	}
	return n > 0, nil
}

// MarkSeen implements Store.
func (s *SQLStore) MarkSeen(ctx context.Context, key string) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, s.dialect.mark, key, now.UnixMilli(), s.cutoff(now))
	if err != nil {
		return false, fmt.Errorf("dedup: %s mark: %w", s.dialect.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup: %s rows affected: %w", s.dialect.name, err)
	}
	return n > 0, nil
}

// Forget implements Store.
func (s *SQLStore) Forget(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.forget, key); err != nil {
		return fmt.Errorf("dedup: %s forget: %w", s.dialect.name, err)
	}
	return nil
}

// Prune implements Store.
func (s *SQLStore) Prune(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.prune, s.cutoff(s.now()))
	if err != nil {
		return 0, fmt.Errorf("dedup: %s prune: %w", s.dialect.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dedup: %s rows affected: %w", s.dialect.name, err)
	}
	return int(n), nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
