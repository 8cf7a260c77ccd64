package app

import (
	"context"
	"sync"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"galleries/internal/service"
	"galleries/internal/storage"
)

// sessionWatcher polls the database for changes to the open session,
// detecting external modifications (e.g. from the standalone MCP process)
// and surfacing pending MCP approvals to the frontend.
type sessionWatcher struct {
	ctx context.Context
	app *App
	mu  sync.Mutex

	sessionID   string
	lastSpace   string // sessions.updated_at fingerprint
	lastHistory string // history count + newest entry
	stopCh      chan struct{}
	// Track emitted approval IDs to avoid re-emission
	emittedApprovals map[string]bool
}

func newSessionWatcher(ctx context.Context, app *App) *sessionWatcher {
	return &sessionWatcher{ctx: ctx, app: app, emittedApprovals: map[string]bool{}}
}

// SetSession updates the watched session. Called whenever the user opens one.
func (w *sessionWatcher) SetSession(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessionID = id
	w.lastSpace = ""
	w.lastHistory = ""
}

// Resync drops the stored fingerprints so changes this process just made
// are taken as the new baseline.
func (w *sessionWatcher) Resync() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSpace = ""
	w.lastHistory = ""
}

func (w *sessionWatcher) Session() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// Start begins the polling loop. Should be called once on app startup.
func (w *sessionWatcher) Start() {
	w.stopCh = make(chan struct{})
	go w.pollLoop()
}

// Stop terminates the polling loop.
func (w *sessionWatcher) Stop() {
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *sessionWatcher) pollLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	stop := w.stopCh
	for {
		select {
		case <-ticker.C:
			w.check()
		case <-stop:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *sessionWatcher) check() {
	w.checkSession()
	w.checkApprovals()
}

func (w *sessionWatcher) checkSession() {
	w.mu.Lock()
	id := w.sessionID
	w.mu.Unlock()
	if id == "" {
		return
	}

	space, err := w.app.sessionStore.Fingerprint(id)
	if err != nil {
		return
	}
	history, err := w.app.sessionStore.HistoryFingerprint(id)
	if err != nil {
		return
	}

	w.mu.Lock()
	if w.sessionID != id {
		w.mu.Unlock()
		return
	}
	spaceChanged := w.lastSpace != "" && w.lastSpace != space
	historyChanged := w.lastHistory != "" && w.lastHistory != history
	w.lastSpace = space
	w.lastHistory = history
	w.mu.Unlock()

	// A new history entry means another process regenerated; fetch the
	// new batch from the backend.
	if historyChanged {
		if _, err := w.app.sessions.Reload(w.ctx); err != nil {
			wailsRuntime.LogErrorf(w.ctx, "[WATCH] reload %s: %v", id, err)
		}
		return
	}
	if spaceChanged {
		if _, err := w.app.sessions.ApplyExternalChange(w.ctx); err != nil {
			wailsRuntime.LogErrorf(w.ctx, "[WATCH] apply external change %s: %v", id, err)
		}
	}
}

// checkApprovals forwards approvals requested by the standalone MCP
// process (cross-process IPC through mcp_approvals).
func (w *sessionWatcher) checkApprovals() {
	pending, err := w.app.approvals.ListPending()
	if err != nil {
		return
	}

	live := make(map[string]bool, len(pending))
	for _, p := range pending {
		live[p.ID] = true
		w.mu.Lock()
		alreadySent := w.emittedApprovals[p.ID]
		w.emittedApprovals[p.ID] = true
		w.mu.Unlock()
		if alreadySent {
			continue
		}
		wailsRuntime.EventsEmit(w.ctx, service.EventApprovalRequested, map[string]string{
			"id":          p.ID,
			"tool":        p.Tool,
			"description": p.Description,
			"createdAt":   p.CreatedAt.UTC().Format(time.RFC3339),
			"metadata":    p.Metadata,
		})
	}

	// Forget resolved or deleted approvals
	w.mu.Lock()
	for id := range w.emittedApprovals {
		if !live[id] {
			delete(w.emittedApprovals, id)
		}
	}
	w.mu.Unlock()
}

// ── Approvals ──────────────────────────────────────────────

// ApproveMCPAction lets a pending destructive MCP tool call proceed.
func (a *App) ApproveMCPAction(id string) error {
	return a.resolveApproval(id, true)
}

// RejectMCPAction refuses a pending destructive MCP tool call.
func (a *App) RejectMCPAction(id string) error {
	return a.resolveApproval(id, false)
}

func (a *App) resolveApproval(id string, approved bool) error {
	if err := a.approvals.Resolve(id, approved); err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[MCP] resolve approval %s: %v", id, err)
		return err
	}
	return nil
}

// ListPendingApprovals returns approvals still waiting for a decision.
func (a *App) ListPendingApprovals() ([]storage.Approval, error) {
	return a.approvals.ListPending()
}
