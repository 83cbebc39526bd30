// Package sqlite implements the durable history datastore on SQLite.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bobmcallan/marketd/internal/common"
)

// Store manages the SQLite connection and schema.
type Store struct {
	db     *sql.DB
	logger *common.Logger
}

// NewStore opens the database at path, enables WAL mode, and applies the
// schema. The path's directory must exist.
func NewStore(path string, logger *common.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	logger.Info().Str("path", path).Msg("History datastore opened")

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS history_bars (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		adj_close REAL NOT NULL DEFAULT 0,
		volume INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, date)
	);

	CREATE INDEX IF NOT EXISTS idx_history_bars_symbol_date
		ON history_bars(symbol, date DESC);

	CREATE TABLE IF NOT EXISTS symbols (
		symbol TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		exchange TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return err
	}
	return nil
}
