// Package storage persists display-only continuity state: the last uploaded
// policy name and cached chat transcripts. Nothing here is authoritative; the
// backend owns the data.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polisee/polisee/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// KeyLastPolicyName is the settings key for the last uploaded policy's
// display name.
const KeyLastPolicyName = "last_policy_name"

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements the Store interface.
var _ service.Store = (*SQLiteStore)(nil)
