package app

// ─────────────────────────────────────────────────────────────
// Feedback, selection and history handlers
// ─────────────────────────────────────────────────────────────

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"galleries/internal/backend"
	"galleries/internal/domain"
	"galleries/internal/service"
)

// ── Feedback ───────────────────────────────────────────────

func (a *App) SubmitFeedback(item, feedback string) error {
	sess, _, err := a.sessions.Current()
	if err != nil {
		return err
	}
	return a.feedback.Submit(a.ctx, sess.ID, domain.FeedbackEntry{Item: item, Feedback: feedback})
}

func (a *App) GetFeedback(item string) ([]string, error) {
	return a.feedback.Get(a.ctx, item)
}

// LoadFeedback fetches feedback for every item in parallel.
func (a *App) LoadFeedback(items []string) (map[string][]string, error) {
	return a.feedback.Load(a.ctx, items)
}

// ── Selection ──────────────────────────────────────────────

func (a *App) SelectItem(item string) error {
	sess, _, err := a.sessions.Current()
	if err != nil {
		return err
	}
	return a.feedback.Select(a.ctx, sess.ID, item)
}

func (a *App) SaveSelected() (*backend.SaveResult, error) {
	res, err := a.feedback.SaveSelected(a.ctx)
	if err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[FEEDBACK] save selected: %v", err)
		return nil, err
	}
	return res, nil
}

// ── History ────────────────────────────────────────────────

func (a *App) ListHistory(sessionID string) ([]domain.HistoryEntry, error) {
	return a.history.List(sessionID)
}

func (a *App) ReplayHistory(sessionID string, index int) (*service.ReplayView, error) {
	return a.history.Replay(a.ctx, sessionID, index)
}

func (a *App) ReplayFirst(sessionID string) (*service.ReplayView, error) {
	return a.history.First(a.ctx, sessionID)
}

func (a *App) ReplayNext(sessionID string) (*service.ReplayView, error) {
	return a.history.Next(a.ctx, sessionID)
}

func (a *App) ReplayPrev(sessionID string) (*service.ReplayView, error) {
	return a.history.Prev(a.ctx, sessionID)
}

// RestoreHistoryEntry makes a recorded design space the live one.
func (a *App) RestoreHistoryEntry(sessionID, entryID string) error {
	e, err := a.history.Entry(sessionID, entryID)
	if err != nil {
		return err
	}
	return a.sessions.RestoreHistoryEntry(a.ctx, e)
}

// ExportHistory writes the session's history to the exports directory
// and returns the file path.
func (a *App) ExportHistory(sessionID string) (string, error) {
	path, err := a.history.Export(sessionID)
	if err != nil {
		return "", err
	}
	wailsRuntime.LogInfof(a.ctx, "[HISTORY] exported %s to %s", sessionID, path)
	return path, nil
}
