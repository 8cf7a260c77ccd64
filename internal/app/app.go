package app

import (
	"context"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"galleries/internal/service"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx context.Context
	*core

	watcher *sessionWatcher
}

// New creates a new App.
func New() *App {
	return &App{}
}

// wailsEmitter forwards service events to the frontend.
type wailsEmitter struct {
	app *App
}

func (e wailsEmitter) Emit(_ context.Context, event string, data any) {
	// Services emit with their own contexts; the runtime needs the one
	// Wails handed to Startup.
	if e.app.ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(e.app.ctx, event, data)
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	c, err := newCore(wailsEmitter{app: a})
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to start: %v", err)
		return
	}
	a.core = c
	wailsRuntime.LogInfof(ctx, "[APP] data dir %s, backend %s", c.dataDir, c.backend.BaseURL())

	if size := c.settings.LoadWindowSize(); size.Width > 0 && size.Height > 0 {
		wailsRuntime.WindowSetSize(ctx, size.Width, size.Height)
	}

	if err := c.maintenance.Start(ctx); err != nil {
		wailsRuntime.LogErrorf(ctx, "[MAINT] schedule: %v", err)
	}

	a.watcher = newSessionWatcher(ctx, a)
	a.watcher.Start()
}

// DomReady restores the last open session once the frontend can receive events.
func (a *App) DomReady(ctx context.Context) {
	if a.core == nil {
		return
	}
	if _, err := a.resumeLastSession(ctx); err != nil {
		wailsRuntime.LogErrorf(ctx, "[SESSION] resume: %v", err)
	}
}

// BeforeClose remembers the window size.
func (a *App) BeforeClose(ctx context.Context) bool {
	if a.core != nil {
		w, h := wailsRuntime.WindowGetSize(ctx)
		if err := a.settings.SaveWindowSize(w, h); err != nil {
			wailsRuntime.LogErrorf(ctx, "[APP] save window size: %v", err)
		}
	}
	return false
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.core != nil {
		a.core.close()
	}
}

// ── Settings ───────────────────────────────────────────────

func (a *App) GetSettings() service.Settings {
	return a.settings.Load()
}

// SaveSettings validates and stores settings, then applies the backend
// address and maintenance schedule right away.
func (a *App) SaveSettings(in service.Settings) error {
	if err := a.settings.Save(in); err != nil {
		return err
	}
	a.backend.SetBaseURL(a.settings.BackendURL())
	if err := a.maintenance.Start(a.ctx); err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[MAINT] reschedule: %v", err)
		return err
	}
	wailsRuntime.LogInfof(a.ctx, "[APP] settings saved, backend %s", a.backend.BaseURL())
	return nil
}

func (a *App) GetMaintenanceStatus() service.MaintenanceStatus {
	return a.maintenance.Status()
}

// PruneHistoryNow runs the retention job immediately.
func (a *App) PruneHistoryNow() (int64, error) {
	return a.maintenance.PruneNow(a.ctx)
}

// ListRenderDomains returns the content domains the grid can render.
func (a *App) ListRenderDomains() []string {
	return a.registry.Domains()
}
