// Package sqlite is a single-file backend implementing every store interface.
// It backs local runs of the CLI when no Postgres or ClickHouse DSN is configured.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database holding bars, profiles and run outputs.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	for _, pragma := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA foreign_keys=ON`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	d := &DB{db: db}
	if err := d.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return d, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol      TEXT NOT NULL,
			resolution  TEXT NOT NULL,
			ts          INTEGER NOT NULL,
			open        REAL NOT NULL,
			high        REAL NOT NULL,
			low         REAL NOT NULL,
			close       REAL NOT NULL,
			volume      INTEGER NOT NULL,
			PRIMARY KEY (symbol, resolution, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS symbol_profiles (
			symbol        TEXT PRIMARY KEY,
			float_shares  INTEGER,
			updated_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id       TEXT PRIMARY KEY,
			strategy_id  TEXT NOT NULL,
			config_json  TEXT NOT NULL,
			symbols      TEXT NOT NULL,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			trade_count  INTEGER NOT NULL,
			total_pnl    REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id       TEXT PRIMARY KEY,
			position_id    TEXT NOT NULL,
			run_id         TEXT NOT NULL REFERENCES runs(run_id),
			strategy_id    TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			entry_time     INTEGER NOT NULL,
			entry_price    REAL NOT NULL,
			exit_time      INTEGER NOT NULL,
			exit_price     REAL NOT NULL,
			shares         INTEGER NOT NULL,
			pnl_abs        REAL NOT NULL,
			pnl_pct        REAL NOT NULL,
			exit_reason    TEXT NOT NULL,
			partial        INTEGER NOT NULL,
			outcome_class  TEXT NOT NULL,
			seq            INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol, exit_time)`,
		`CREATE TABLE IF NOT EXISTS eligibility_days (
			run_id           TEXT NOT NULL REFERENCES runs(run_id),
			symbol           TEXT NOT NULL,
			session_date     INTEGER NOT NULL,
			eligible         INTEGER NOT NULL,
			close            REAL NOT NULL,
			volume           INTEGER NOT NULL,
			avg_volume       REAL,
			relative_volume  REAL,
			reason           TEXT NOT NULL,
			PRIMARY KEY (run_id, symbol, session_date)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}

func unixNano(t time.Time) int64 { return t.UnixNano() }

func fromNano(n int64) time.Time { return time.Unix(0, n).UTC() }
