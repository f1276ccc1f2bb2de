package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteDB wraps the warm/cold tier database connection.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// NewSQLiteDB opens (creating if needed) the SQLite database backing the
// warm and cold tiers, orders, positions, and cooldown state.
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sqliteDB := &SQLiteDB{db: db, path: dbPath}

	if err := sqliteDB.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("SQLite database initialized")
	return sqliteDB, nil
}

func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) migrate() error {
	migrations := []string{
		// Warm tier: raw bars, one row per (symbol, timeframe, timestamp).
		`CREATE TABLE IF NOT EXISTS bars_warm (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			PRIMARY KEY (symbol, timeframe, timestamp_ms)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_warm_time
		 ON bars_warm(symbol, timeframe, timestamp_ms DESC)`,

		// Cold tier: downsampled bars, carrying provenance of the source
		// timeframe and how many source bars folded into each row.
		`CREATE TABLE IF NOT EXISTS bars_cold (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			source_timeframe TEXT NOT NULL,
			aggregation_count INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			PRIMARY KEY (symbol, timeframe, timestamp_ms)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_cold_time
		 ON bars_cold(symbol, timeframe, timestamp_ms DESC)`,

		// Positions, one row reflecting the current (single) mirrored position.
		`CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			side TEXT NOT NULL,
			amount REAL NOT NULL,
			entry_price REAL NOT NULL,
			unrealized_pnl REAL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Orders ledger — append-only record of create/cancel activity for
		// idempotency bookkeeping (client_order_id is the de-dup key).
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_order_id TEXT UNIQUE NOT NULL,
			order_id TEXT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			type TEXT NOT NULL,
			requested_amount REAL NOT NULL,
			price REAL,
			stop_price REAL,
			status TEXT NOT NULL DEFAULT 'pending',
			filled_amount REAL DEFAULT 0,
			average_price REAL DEFAULT 0,
			error_message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol_status
		 ON orders(symbol, status)`,

		// Cooldown state: last_fire[symbol][side], surviving restarts.
		`CREATE TABLE IF NOT EXISTS cooldown_state (
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			last_fire_ms INTEGER NOT NULL,
			PRIMARY KEY (symbol, side)
		)`,

		// Generic single-row-per-key config store (GetConfig/SetConfig).
		`CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	log.Debug().Msg("Database migrations completed")
	return nil
}

func (s *SQLiteDB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

func (s *SQLiteDB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

func (s *SQLiteDB) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(query, args...)
}

func (s *SQLiteDB) Begin() (*sql.Tx, error) {
	return s.db.Begin()
}

// Checkpoint forces a WAL checkpoint.
func (s *SQLiteDB) Checkpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// GetConfig retrieves a config value, returning "" if absent.
func (s *SQLiteDB) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig upserts a config value.
func (s *SQLiteDB) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// LastFire returns the persisted cooldown timestamp for (symbol, side), or
// zero if none is recorded.
func (s *SQLiteDB) LastFire(symbol, side string) (int64, error) {
	var ms int64
	err := s.db.QueryRow(
		"SELECT last_fire_ms FROM cooldown_state WHERE symbol = ? AND side = ?",
		symbol, side,
	).Scan(&ms)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return ms, err
}

// SetLastFire upserts the cooldown timestamp for (symbol, side).
func (s *SQLiteDB) SetLastFire(symbol, side string, ms int64) error {
	_, err := s.db.Exec(`
		INSERT INTO cooldown_state (symbol, side, last_fire_ms) VALUES (?, ?, ?)
		ON CONFLICT(symbol, side) DO UPDATE SET last_fire_ms = excluded.last_fire_ms
	`, symbol, side, ms)
	return err
}
