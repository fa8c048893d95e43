// Package store keeps the current login in a local SQLite database so
// separate fintrack invocations share one session. Financial records are
// never stored here; they always come from the API.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store is the local session database.
type Store struct {
	db *sql.DB
}

// LoginAttempt is one row of the login audit.
type LoginAttempt struct {
	Email   string
	APIURL  string
	Outcome string
	At      time.Time
}

// Open opens or creates the database at dbPath and applies migrations.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	if err := migrateUp(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession replaces the stored login.
func (s *Store) SaveSession(apiURL string, u model.UserRecord) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO auth_session
		(id, api_url, token, name, email, balance, logged_in_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)`,
		apiURL, u.Token, u.Name, u.Email, u.Balance.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// LoadSession returns the stored login for apiURL. A login made against a
// different API is not returned.
func (s *Store) LoadSession(apiURL string) (model.UserRecord, bool, error) {
	var (
		u         model.UserRecord
		storedURL string
		balance   string
	)
	err := s.db.QueryRow(`SELECT api_url, token, name, email, balance FROM auth_session WHERE id = 1`).
		Scan(&storedURL, &u.Token, &u.Name, &u.Email, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserRecord{}, false, nil
	}
	if err != nil {
		return model.UserRecord{}, false, fmt.Errorf("loading session: %w", err)
	}
	if storedURL != apiURL {
		return model.UserRecord{}, false, nil
	}

	if d, err := decimal.NewFromString(balance); err == nil {
		u.Balance = d
	}
	return u, true, nil
}

// ClearSession removes the stored login. Clearing an empty store is not an error.
func (s *Store) ClearSession() error {
	if _, err := s.db.Exec(`DELETE FROM auth_session`); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// RecordLogin appends to the login audit.
func (s *Store) RecordLogin(email, apiURL, outcome string) error {
	_, err := s.db.Exec(`INSERT INTO login_history (email, api_url, outcome, at) VALUES (?, ?, ?, ?)`,
		email, apiURL, outcome, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return nil
}

// RecentLogins returns up to limit audit rows, newest first.
func (s *Store) RecentLogins(limit int) ([]LoginAttempt, error) {
	rows, err := s.db.Query(`SELECT email, api_url, outcome, at FROM login_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying logins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []LoginAttempt
	for rows.Next() {
		var a LoginAttempt
		var at string
		if err := rows.Scan(&a.Email, &a.APIURL, &a.Outcome, &at); err != nil {
			return nil, err
		}
		a.At, _ = time.Parse(time.RFC3339Nano, at)
		result = append(result, a)
	}
	return result, rows.Err()
}
