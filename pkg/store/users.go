package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/antibyte/minipl/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// User is an account allowed to use the playground.
type User struct {
	Username  string
	IsAdmin   bool
	LastLogin time.Time
	CreatedAt time.Time
}

// CreateUser stores a new account with a bcrypt hash of password.
func (s *Store) CreateUser(username, password string, admin bool) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password must not be empty")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count); err != nil {
		return fmt.Errorf("failed to check for user %s: %w", username, err)
	}
	if count > 0 {
		return ErrUserExists
	}

	_, err = s.db.Exec(`
		INSERT INTO users (username, password, is_admin, last_login, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, username, string(hashed), boolToInt(admin), 0, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return nil
}

// EnsureAdmin creates the admin account if it does not exist yet. An
// empty password leaves the database untouched.
func (s *Store) EnsureAdmin(username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	err := s.CreateUser(username, password, true)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	if err == nil {
		logger.Info(logger.AreaDatabase, "created default admin user %s", username)
	}
	return err
}

// Authenticate checks password against the stored hash and records the
// login time.
func (s *Store) Authenticate(username, password string) (*User, error) {
	var hashed string
	var admin, lastLogin, created int64
	err := s.db.QueryRow(`
		SELECT password, is_admin, last_login, created_at FROM users WHERE username = ?
	`, username).Scan(&hashed, &admin, &lastLogin, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		logger.SecurityWarn("failed login for user %s", username)
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if _, err := s.db.Exec("UPDATE users SET last_login = ? WHERE username = ?", now.Unix(), username); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	return &User{
		Username:  username,
		IsAdmin:   admin != 0,
		LastLogin: now,
		CreatedAt: time.Unix(created, 0),
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
