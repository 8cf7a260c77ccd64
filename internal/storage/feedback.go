package storage

import (
	"fmt"
	"time"

	"galleries/internal/domain"
)

// FeedbackStore mirrors feedback posted to the backend so history replay
// and offline sessions still show it.
type FeedbackStore struct {
	db *DB
}

func NewFeedbackStore(db *DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

func (s *FeedbackStore) AddFeedback(r *domain.FeedbackRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO feedback (id, session_id, item, feedback, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Item, r.Feedback, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

func (s *FeedbackStore) ListFeedback(item string) ([]domain.FeedbackRecord, error) {
	return s.query(`SELECT id, session_id, item, feedback, created_at FROM feedback
		WHERE item = ? ORDER BY created_at ASC`, item)
}

func (s *FeedbackStore) ListSessionFeedback(sessionID string) ([]domain.FeedbackRecord, error) {
	return s.query(`SELECT id, session_id, item, feedback, created_at FROM feedback
		WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
}

func (s *FeedbackStore) query(q string, arg string) ([]domain.FeedbackRecord, error) {
	rows, err := s.db.conn.Query(q, arg)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []domain.FeedbackRecord
	for rows.Next() {
		var r domain.FeedbackRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Item, &r.Feedback, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
