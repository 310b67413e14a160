// Package store is the durable store: token history, identities, vibe and
// transfer records, following edges and the acknowledgement ledger.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const opTimeout = 5 * time.Second

// DB wraps a SQLite or PostgreSQL database.
type DB struct {
	sql    *sql.DB
	driver string
}

// Open connects to driver ("sqlite" or "postgres") and applies the schema.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	d, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one connection keeps ":memory:" databases shared and serializes writers
		d.SetMaxOpenConns(1)
		if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;`); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	db := &DB{sql: d, driver: driver}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenSQLite is shorthand for Open("sqlite", path).
func OpenSQLite(path string) (*DB, error) { return Open("sqlite", path) }

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	autoID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.driver == "postgres" {
		autoID = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS access_tokens (
		  id ` + autoID + `,
		  token TEXT NOT NULL,
		  created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_tokens_created ON access_tokens(created_at)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
		  id ` + autoID + `,
		  token TEXT NOT NULL,
		  created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_created ON refresh_tokens(created_at)`,
		`CREATE TABLE IF NOT EXISTS users (
		  id TEXT PRIMARY KEY,
		  username TEXT NOT NULL,
		  username_key TEXT NOT NULL,
		  name TEXT NOT NULL,
		  created_at BIGINT NOT NULL,
		  follower_count BIGINT,
		  updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username_key ON users(username_key)`,
		`CREATE TABLE IF NOT EXISTS good_vibes (
		  tweet_id TEXT PRIMARY KEY,
		  emitter_id TEXT NOT NULL,
		  sensor_id TEXT NOT NULL,
		  created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_good_vibes_pair ON good_vibes(emitter_id, sensor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_good_vibes_sensor ON good_vibes(sensor_id)`,
		`CREATE TABLE IF NOT EXISTS megajoules (
		  tweet_id TEXT PRIMARY KEY,
		  sender_id TEXT NOT NULL,
		  receiver_id TEXT NOT NULL,
		  amount BIGINT NOT NULL CHECK (amount > 0),
		  created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS following (
		  follower_id TEXT NOT NULL,
		  followed_id TEXT NOT NULL,
		  updated_at BIGINT NOT NULL,
		  PRIMARY KEY (follower_id, followed_id)
		)`,
		`CREATE TABLE IF NOT EXISTS acknowledgements (
		  message_id TEXT PRIMARY KEY,
		  kind TEXT NOT NULL,
		  created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS actions (
		  id ` + autoID + `,
		  ts BIGINT NOT NULL,
		  type TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_ts ON actions(type, ts)`,
		`CREATE TABLE IF NOT EXISTS cursors (
		  key TEXT PRIMARY KEY,
		  value TEXT NOT NULL
		)`,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, s := range stmts {
		if _, err := d.sql.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// rebind turns "?" placeholders into "$n" for postgres.
func (d *DB) rebind(q string) string {
	if d.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := withRetry(ctx, func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		var err error
		res, err = d.sql.ExecContext(opCtx, d.rebind(q), args...)
		return err
	})
	return res, err
}

// queryRow scans a single row; found is false on sql.ErrNoRows.
func (d *DB) queryRow(ctx context.Context, q string, args []any, dest ...any) (found bool, err error) {
	err = withRetry(ctx, func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		switch err := d.sql.QueryRowContext(opCtx, d.rebind(q), args...).Scan(dest...); err {
		case nil:
			found = true
			return nil
		case sql.ErrNoRows:
			found = false
			return nil
		default:
			return err
		}
	})
	return found, err
}

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }
