package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Settings is a small key/value table for app preferences.
type Settings struct {
	db *DB
}

func NewSettings(db *DB) *Settings {
	return &Settings{db: db}
}

// Get returns the stored value and whether the key exists.
func (s *Settings) Get(key string) (string, bool, error) {
	var v string
	err := s.db.conn.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Settings) Set(key, value string) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// GetString returns the value for key or def when missing.
func (s *Settings) GetString(key, def string) string {
	v, ok, err := s.Get(key)
	if err != nil || !ok || v == "" {
		return def
	}
	return v
}

// GetInt returns the integer value for key or def when missing or malformed.
func (s *Settings) GetInt(key string, def int) int {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
