package app

// ─────────────────────────────────────────────────────────────
// Session + Design Space Handlers — thin delegates to SessionService
// ─────────────────────────────────────────────────────────────

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"galleries/internal/domain"
	"galleries/internal/service"
	"galleries/internal/storage"
)

// ── Sessions ───────────────────────────────────────────────

func (a *App) ListDomains() ([]domain.DomainInfo, error) {
	return a.sessions.ListDomains(a.ctx)
}

func (a *App) ListSessions() ([]domain.Session, error) {
	return a.sessions.ListSessions()
}

// CreateSession starts a new session on the backend. axes may be empty,
// in which case the backend proposes the design space.
func (a *App) CreateSession(concept, domainName string, axes []domain.Axis) (*service.SessionView, error) {
	var space *domain.DesignSpace
	if len(axes) > 0 {
		space = &domain.DesignSpace{Concept: concept, Domain: domainName, Axes: axes}
	}
	view, err := a.sessions.CreateSession(a.ctx, concept, domainName, space)
	if err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[SESSION] create %q: %v", concept, err)
		return nil, err
	}
	a.opened(view)
	return view, nil
}

func (a *App) OpenSession(id string) (*service.SessionView, error) {
	wailsRuntime.LogInfof(a.ctx, "[SESSION] opening %s", id)
	view, err := a.sessions.Open(a.ctx, id)
	if err != nil {
		return nil, err
	}
	a.opened(view)
	return view, nil
}

func (a *App) opened(view *service.SessionView) {
	if err := a.settings.SetLastSession(view.Session.ID); err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[SESSION] remember %s: %v", view.Session.ID, err)
	}
	if a.watcher != nil {
		a.watcher.SetSession(view.Session.ID)
	}
}

func (a *App) CloseSession() {
	a.sessions.Close()
	if a.watcher != nil {
		a.watcher.SetSession("")
	}
	a.settings.SetLastSession("")
}

func (a *App) DeleteSession(id string) error {
	if a.watcher != nil && a.watcher.Session() == id {
		a.watcher.SetSession("")
		a.settings.SetLastSession("")
	}
	return a.sessions.DeleteSession(id)
}

// GetSessionView returns the open session rendered for the grid.
func (a *App) GetSessionView() (*service.SessionView, error) {
	return a.sessions.View(a.ctx)
}

// ── Design space ───────────────────────────────────────────

func (a *App) SetAxisStatus(name, value, status string) (bool, error) {
	return a.sessions.SetAxisStatus(a.ctx, name, value, domain.AxisStatus(status))
}

func (a *App) PromoteAxis(name string) (bool, error) {
	return a.sessions.PromoteAxis(a.ctx, name)
}

func (a *App) EditAxisValue(name, value string) (bool, error) {
	return a.sessions.EditAxisValue(a.ctx, name, value)
}

func (a *App) AddAxis(name string) error {
	return a.sessions.AddAxis(a.ctx, name)
}

func (a *App) RemoveAxis(name string) (bool, error) {
	return a.sessions.RemoveAxis(a.ctx, name)
}

// ClickTag constrains the tag's axis to its value and records the click
// as feedback on item.
func (a *App) ClickTag(item, dimension, value string) error {
	return a.sessions.TagClicked(a.ctx, item, domain.Tag{Dimension: dimension, Value: value})
}

func (a *App) Regenerate() (*service.SessionView, error) {
	view, err := a.sessions.Regenerate(a.ctx)
	if a.watcher != nil {
		a.watcher.Resync()
	}
	if err != nil {
		wailsRuntime.LogDebugf(a.ctx, "[SESSION] regenerate: %v", err)
		return nil, err
	}
	return view, nil
}

func (a *App) ReloadSession() (*service.SessionView, error) {
	return a.sessions.Reload(a.ctx)
}

// ── Undo tree ──────────────────────────────────────────────

func (a *App) LoadUndoTree() (*storage.UndoTree, error) {
	return a.sessions.UndoTree()
}

func (a *App) Undo() (bool, error) {
	return a.sessions.Undo(a.ctx)
}

func (a *App) Redo() (bool, error) {
	return a.sessions.Redo(a.ctx)
}

func (a *App) GoToUndoNode(nodeID string) (bool, error) {
	return a.sessions.GoToUndoNode(a.ctx, nodeID)
}
