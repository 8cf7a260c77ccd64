package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"galleries/internal/domain"
)

var ErrNotFound = errors.New("not found")

// SessionStore implements domain.SessionStore using SQLite.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// SaveSession inserts a session or replaces its concept, domain and design
// space if it already exists.
func (s *SessionStore) SaveSession(sess *domain.Session) error {
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	spaceJSON, err := marshalSpace(sess.DesignSpace)
	if err != nil {
		return err
	}
	_, err = s.db.conn.Exec(
		`INSERT INTO sessions (id, concept, domain, design_space_json, selected_item, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			concept = excluded.concept,
			domain = excluded.domain,
			design_space_json = excluded.design_space_json,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Concept, sess.Domain, spaceJSON, sess.SelectedItem, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSession(id string) (*domain.Session, error) {
	row := s.db.conn.QueryRow(
		`SELECT id, concept, domain, design_space_json, selected_item, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) ListSessions() ([]domain.Session, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, concept, domain, design_space_json, selected_item, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// UpdateDesignSpace stores the session's current design space and bumps
// updated_at, which is what the session watcher fingerprints.
func (s *SessionStore) UpdateDesignSpace(id string, space domain.DesignSpace) error {
	spaceJSON, err := marshalSpace(space)
	if err != nil {
		return err
	}
	res, err := s.db.conn.Exec(
		`UPDATE sessions SET design_space_json = ?, updated_at = ? WHERE id = ?`,
		spaceJSON, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update design space: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update design space %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SessionStore) SetSelectedItem(id, item string) error {
	_, err := s.db.conn.Exec(`UPDATE sessions SET selected_item = ? WHERE id = ?`, item, id)
	return err
}

// DeleteSession removes a session with its history, feedback and undo data.
func (s *SessionStore) DeleteSession(id string) error {
	_, _ = s.db.conn.Exec(`DELETE FROM history_entries WHERE session_id = ?`, id)
	_, _ = s.db.conn.Exec(`DELETE FROM feedback WHERE session_id = ?`, id)
	_, _ = s.db.conn.Exec(`DELETE FROM undo_state WHERE session_id = ?`, id)
	_, _ = s.db.conn.Exec(`DELETE FROM undo_nodes WHERE session_id = ?`, id)
	_, err := s.db.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// Fingerprint returns a value that changes whenever the session row is
// written. Used to notice edits made by another process.
func (s *SessionStore) Fingerprint(id string) (string, error) {
	var updated string
	err := s.db.conn.QueryRow(`SELECT COALESCE(updated_at, '') FROM sessions WHERE id = ?`, id).Scan(&updated)
	if err != nil {
		return "", err
	}
	return updated, nil
}

// HistoryFingerprint changes whenever an entry is appended to or pruned
// from a session's history.
func (s *SessionStore) HistoryFingerprint(sessionID string) (string, error) {
	var count int
	var latest string
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(created_at), '') FROM history_entries WHERE session_id = ?`, sessionID,
	).Scan(&count, &latest)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%s", count, latest), nil
}

// ── History ────────────────────────────────────────────────

func (s *SessionStore) AppendHistory(e *domain.HistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	spaceJSON, err := marshalSpace(e.DesignSpace)
	if err != nil {
		return err
	}
	gens := e.Generations
	if gens == nil {
		gens = []domain.Generation{}
	}
	gensJSON, err := json.Marshal(gens)
	if err != nil {
		return fmt.Errorf("marshal generations: %w", err)
	}
	_, err = s.db.conn.Exec(
		`INSERT INTO history_entries (id, session_id, design_space_json, generations_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, spaceJSON, string(gensJSON), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns a session's entries oldest first.
func (s *SessionStore) ListHistory(sessionID string) ([]domain.HistoryEntry, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, session_id, design_space_json, generations_json, created_at
		 FROM history_entries WHERE session_id = ? ORDER BY created_at ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var spaceJSON, gensJSON string
		if err := rows.Scan(&e.ID, &e.SessionID, &spaceJSON, &gensJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(spaceJSON), &e.DesignSpace); err != nil {
			return nil, fmt.Errorf("history %s design space: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(gensJSON), &e.Generations); err != nil {
			return nil, fmt.Errorf("history %s generations: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneHistory deletes entries created before the cutoff.
func (s *SessionStore) PruneHistory(before time.Time) (int64, error) {
	res, err := s.db.conn.Exec(`DELETE FROM history_entries WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var spaceJSON string
	if err := r.Scan(&sess.ID, &sess.Concept, &sess.Domain, &spaceJSON, &sess.SelectedItem, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(spaceJSON), &sess.DesignSpace); err != nil {
		return nil, fmt.Errorf("session %s design space: %w", sess.ID, err)
	}
	return &sess, nil
}

func marshalSpace(space domain.DesignSpace) (string, error) {
	if space.Axes == nil {
		space.Axes = []domain.Axis{}
	}
	data, err := json.Marshal(space)
	if err != nil {
		return "", fmt.Errorf("marshal design space: %w", err)
	}
	return string(data), nil
}
