package domain

import "time"

type Session struct {
	ID          string      `json:"id"`
	Concept     string      `json:"concept"`
	Domain      string      `json:"domain"`
	DesignSpace DesignSpace `json:"designSpace"`
	// SelectedItem is the item last marked with select.
	SelectedItem string    `json:"selectedItem"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type SessionStore interface {
	SaveSession(s *Session) error
	GetSession(id string) (*Session, error)
	ListSessions() ([]Session, error)
	UpdateDesignSpace(id string, space DesignSpace) error
	SetSelectedItem(id, item string) error
	DeleteSession(id string) error

	AppendHistory(e *HistoryEntry) error
	ListHistory(sessionID string) ([]HistoryEntry, error)
	PruneHistory(before time.Time) (int64, error)
}
