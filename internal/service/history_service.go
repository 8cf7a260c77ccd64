package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"galleries/internal/domain"
	"galleries/internal/presenter"
)

// ─────────────────────────────────────────────────────────────
// History Service — regeneration history and replay
// ─────────────────────────────────────────────────────────────

// ReplayView is one history entry rendered for the replay viewer.
type ReplayView struct {
	SessionID   string             `json:"sessionId"`
	Index       int                `json:"index"`
	Total       int                `json:"total"`
	EntryID     string             `json:"entryId"`
	CreatedAt   time.Time          `json:"createdAt"`
	DesignSpace domain.DesignSpace `json:"designSpace"`
	Grid        presenter.GridView `json:"grid"`
}

// HistoryService lists and replays recorded regenerations. Replay renders
// stored entries and never touches the live controller.
type HistoryService struct {
	store     domain.SessionStore
	grid      *presenter.Presenter
	feedback  *FeedbackService
	exportDir string

	mu      sync.Mutex
	cursors map[string]int
}

// NewHistoryService creates a HistoryService. Exports are written under
// exportDir.
func NewHistoryService(store domain.SessionStore, grid *presenter.Presenter, feedback *FeedbackService, exportDir string) *HistoryService {
	return &HistoryService{
		store:     store,
		grid:      grid,
		feedback:  feedback,
		exportDir: exportDir,
		cursors:   make(map[string]int),
	}
}

func (s *HistoryService) List(sessionID string) ([]domain.HistoryEntry, error) {
	return s.store.ListHistory(sessionID)
}

// Replay renders entry index of a session and moves the cursor there.
// Out-of-range indexes are clamped.
func (s *HistoryService) Replay(ctx context.Context, sessionID string, index int) (*ReplayView, error) {
	entries, err := s.store.ListHistory(sessionID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("replay %s: no history", sessionID)
	}
	index = max(0, min(index, len(entries)-1))

	s.mu.Lock()
	s.cursors[sessionID] = index
	s.mu.Unlock()

	e := entries[index]
	in := presenter.Input{
		SessionID:   sessionID,
		Domain:      s.sessionDomain(sessionID, e.DesignSpace),
		Space:       e.DesignSpace,
		Generations: e.Generations,
	}
	if s.feedback != nil {
		in.Feedback = s.feedback.Local(sessionID)
	}
	grid, err := s.grid.Present(ctx, in)
	if err != nil {
		return nil, err
	}
	return &ReplayView{
		SessionID:   sessionID,
		Index:       index,
		Total:       len(entries),
		EntryID:     e.ID,
		CreatedAt:   e.CreatedAt,
		DesignSpace: e.DesignSpace,
		Grid:        grid,
	}, nil
}

func (s *HistoryService) First(ctx context.Context, sessionID string) (*ReplayView, error) {
	return s.Replay(ctx, sessionID, 0)
}

func (s *HistoryService) Next(ctx context.Context, sessionID string) (*ReplayView, error) {
	return s.Replay(ctx, sessionID, s.cursor(sessionID)+1)
}

func (s *HistoryService) Prev(ctx context.Context, sessionID string) (*ReplayView, error) {
	return s.Replay(ctx, sessionID, s.cursor(sessionID)-1)
}

func (s *HistoryService) cursor(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[sessionID]
}

func (s *HistoryService) sessionDomain(sessionID string, space domain.DesignSpace) string {
	if sess, err := s.store.GetSession(sessionID); err == nil && sess.Domain != "" {
		return sess.Domain
	}
	return space.Domain
}

// Entry returns one history entry of a session.
func (s *HistoryService) Entry(sessionID, entryID string) (*domain.HistoryEntry, error) {
	entries, err := s.store.ListHistory(sessionID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == entryID {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("history entry %s not found", entryID)
}

type historyExport struct {
	Session    *domain.Session       `json:"session"`
	ExportedAt time.Time             `json:"exportedAt"`
	Entries    []domain.HistoryEntry `json:"entries"`
	Feedback   map[string][]string   `json:"feedback,omitempty"`
}

// Export writes a session's history as indented JSON and returns the path.
func (s *HistoryService) Export(sessionID string) (string, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	entries, err := s.store.ListHistory(sessionID)
	if err != nil {
		return "", err
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	out := historyExport{Session: sess, ExportedAt: time.Now(), Entries: entries}
	if s.feedback != nil {
		out.Feedback = s.feedback.Local(sessionID)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(s.exportDir, fmt.Sprintf("%s_%d.json", sessionID, out.ExportedAt.Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	log.Printf("[HISTORY] exported %d entries of %s to %s", len(entries), sessionID, path)
	return path, nil
}
