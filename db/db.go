// Package db stores form submissions for the local development source.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const dbDriver = "sqlite3"

// DefaultPath is where the development store keeps its data.
const DefaultPath = "./data/devsource.db"

// ErrNotFound is returned when no submission has the requested id.
var ErrNotFound = errors.New("submission not found")

// Store is a SQLite-backed submission store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and creates tables if they don't exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	conn, err := sql.Open(dbDriver, path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer at a time.
	conn.SetMaxOpenConns(1)

	// createTables is defined in migrate.go
	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{db: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
