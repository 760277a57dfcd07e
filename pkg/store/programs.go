package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Program is a named source text saved by a user.
type Program struct {
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveProgram inserts or replaces the program owner/name.
func (s *Store) SaveProgram(owner, name, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO programs (name, owner, source, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET source = excluded.source, updated_at = excluded.updated_at
	`, name, owner, source, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save program %s: %w", name, err)
	}
	return nil
}

// GetProgram loads a saved program.
func (s *Store) GetProgram(owner, name string) (*Program, error) {
	p := &Program{Name: name, Owner: owner}
	var updated int64
	err := s.db.QueryRow(`
		SELECT source, updated_at FROM programs WHERE owner = ? AND name = ?
	`, owner, name).Scan(&p.Source, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load program %s: %w", name, err)
	}
	p.UpdatedAt = time.Unix(updated, 0)
	return p, nil
}

// ListPrograms returns the names of owner's programs in alphabetical order.
func (s *Store) ListPrograms(owner string) ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM programs WHERE owner = ? ORDER BY name", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
