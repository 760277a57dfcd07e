package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one recorded program execution.
type Run struct {
	ID           string         `json:"id"`
	Username     string         `json:"username,omitempty"`
	Source       string         `json:"source"`
	Stdin        string         `json:"stdin,omitempty"`
	Stdout       string         `json:"stdout"`
	Result       string         `json:"result"`
	Globals      map[string]any `json:"globals"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Duration     time.Duration  `json:"duration"`
	CreatedAt    time.Time      `json:"created_at"`
}

// RecordRun stores r and returns its id. A missing id or creation time is
// filled in.
func (s *Store) RecordRun(r *Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	globals, err := json.Marshal(r.Globals)
	if err != nil {
		return "", fmt.Errorf("failed to encode globals: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, username, source, stdin, stdout, result, globals, error_kind, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Username, r.Source, r.Stdin, r.Stdout, r.Result, string(globals),
		r.ErrorKind, r.ErrorMessage, r.Duration.Milliseconds(), r.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return r.ID, nil
}

const runColumns = `id, username, source, stdin, stdout, result, globals, error_kind, error_message, duration_ms, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var username, stdin, stdout, result, globals, kind, message sql.NullString
	var durationMS, created int64

	err := row.Scan(&r.ID, &username, &r.Source, &stdin, &stdout, &result, &globals,
		&kind, &message, &durationMS, &created)
	if err != nil {
		return nil, err
	}

	r.Username = username.String
	r.Stdin = stdin.String
	r.Stdout = stdout.String
	r.Result = result.String
	r.ErrorKind = kind.String
	r.ErrorMessage = message.String
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.CreatedAt = time.UnixMilli(created)

	if globals.Valid && globals.String != "" {
		r.Globals, err = decodeGlobals(globals.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decode globals of run %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

// decodeGlobals turns whole JSON numbers back into int64.
func decodeGlobals(text string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				raw[k] = i
			} else {
				raw[k] = n.String()
			}
		}
	}
	return raw, nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns the most recent runs of every user first. A limit of
// zero or less returns at most 50.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryRuns("SELECT "+runColumns+" FROM runs ORDER BY created_at DESC LIMIT ?", limit)
}

// ListRunsByUser is ListRuns restricted to the runs recorded for username.
func (s *Store) ListRunsByUser(username string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryRuns("SELECT "+runColumns+" FROM runs WHERE username = ? ORDER BY created_at DESC LIMIT ?",
		username, limit)
}

func (s *Store) queryRuns(query string, args ...any) ([]*Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
