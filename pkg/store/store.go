// Package store keeps users, saved programs and the run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/antibyte/minipl/pkg/logger"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
)

// Store is a wrapper around the SQLite database connection.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path and makes sure
// every table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.CreateTables(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info(logger.AreaDatabase, "opened database %s", path)
	return s, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTables ensures all required tables exist in the database.
func (s *Store) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			is_admin INTEGER DEFAULT 0,
			last_login INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS programs (
			name TEXT NOT NULL,
			owner TEXT NOT NULL,
			source TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (owner, name)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			username TEXT,
			source TEXT NOT NULL,
			stdin TEXT,
			stdout TEXT,
			result TEXT,
			globals TEXT,
			error_kind TEXT,
			error_message TEXT,
			duration_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Healthy reports whether the database answers.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}
