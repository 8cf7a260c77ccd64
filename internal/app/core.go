package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"galleries/internal/backend"
	"galleries/internal/plugins"
	"galleries/internal/presenter"
	"galleries/internal/render"
	"galleries/internal/secret"
	"galleries/internal/service"
	"galleries/internal/storage"
)

const (
	renderCacheTTL = 10 * time.Minute
	shutdownGrace  = 5 * time.Second
)

// core holds the storage and services shared by the desktop app and the
// standalone MCP server.
type core struct {
	dataDir string
	db      *storage.DB

	sessionStore *storage.SessionStore
	approvals    *storage.Approvals
	backend      *backend.Client
	registry     *render.Registry

	settings    *service.SettingsService
	sessions    *service.SessionService
	feedback    *service.FeedbackService
	history     *service.HistoryService
	folders     *service.FolderService
	maintenance *service.MaintenanceService
}

// newCore opens the database under the data directory and wires every
// service to emitter.
func newCore(emitter service.EventEmitter) (*core, error) {
	dataDir := service.ResolveDataDir()
	db, err := storage.New(filepath.Join(dataDir, "galleries.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	settings := service.NewSettingsService(storage.NewSettings(db))
	cfg := settings.Load()

	client := backend.New(settings.BackendURL(),
		backend.WithToken(secret.TokenSource(secret.Default(), secret.BackendTokenKey)),
	)

	registry := render.NewRegistry(render.NewCache(renderCacheTTL))
	plugins.RegisterAll(registry)
	grid := presenter.New(registry, cfg.RenderConcurrency)

	sessionStore := storage.NewSessionStore(db)
	feedbackStore := storage.NewFeedbackStore(db)

	feedback := service.NewFeedbackService(client, feedbackStore, sessionStore, emitter)
	c := &core{
		dataDir:      dataDir,
		db:           db,
		sessionStore: sessionStore,
		approvals:    storage.NewApprovals(db),
		backend:      client,
		registry:     registry,
		settings:     settings,
		feedback:     feedback,
		sessions:     service.NewSessionService(client, sessionStore, storage.NewUndoStore(db), grid, feedback, emitter),
		history:      service.NewHistoryService(sessionStore, grid, feedback, filepath.Join(dataDir, "exports")),
		folders:      service.NewFolderService(feedbackStore, grid, emitter),
		maintenance:  service.NewMaintenanceService(sessionStore, settings, emitter),
	}
	return c, nil
}

// resumeLastSession reopens the session that was open when the app last ran.
func (c *core) resumeLastSession(ctx context.Context) (*service.SessionView, error) {
	id := c.settings.LastSession()
	if id == "" {
		return nil, nil
	}
	return c.sessions.Open(ctx, id)
}

func (c *core) close() {
	c.maintenance.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := c.maintenance.WaitRunning(ctx); err != nil {
		log.Printf("[MAINT] shutdown with prune still running: %v", err)
	}
	c.folders.Close()
	c.sessions.Close()
	c.db.Close()
}
