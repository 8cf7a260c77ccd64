package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"galleries/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Maintenance Service — scheduled history retention
// ─────────────────────────────────────────────────────────────

const pruneJobID = "prune-history"

// MaintenanceService prunes old history entries on a cron schedule.
type MaintenanceService struct {
	store    domain.SessionStore
	settings *SettingsService
	emitter  EventEmitter
	now      func() time.Time

	mu         sync.Mutex
	cronSched  *cron.Cron
	spec       string
	lastRun    time.Time
	lastPruned int64
	jobs       jobGuard
}

// MaintenanceStatus is shown in the settings panel.
type MaintenanceStatus struct {
	Schedule   string    `json:"schedule"`
	Scheduled  bool      `json:"scheduled"`
	LastRun    time.Time `json:"lastRun"`
	LastPruned int64     `json:"lastPruned"`
	Running    []string  `json:"running"`
}

// NewMaintenanceService creates a MaintenanceService.
func NewMaintenanceService(store domain.SessionStore, settings *SettingsService, emitter EventEmitter) *MaintenanceService {
	return &MaintenanceService{store: store, settings: settings, emitter: emitter, now: time.Now}
}

// Start (re)schedules the prune job with the configured spec.
func (s *MaintenanceService) Start(ctx context.Context) error {
	s.Stop()

	spec := s.settings.Load().MaintenanceSpec
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.PruneNow(ctx)
		if err != nil {
			log.Printf("[MAINT] scheduled prune failed: %v", err)
			return
		}
		if n > 0 && s.emitter != nil {
			s.emitter.Emit(ctx, EventStatusMessage, StatusMessage{
				Level: "info",
				Text:  fmt.Sprintf("Removed %d old history entries", n),
			})
		}
	})
	if err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", spec, err)
	}
	c.Start()

	s.mu.Lock()
	s.cronSched = c
	s.spec = spec
	s.mu.Unlock()
	log.Printf("[MAINT] history pruning scheduled (%s)", spec)
	return nil
}

// PruneNow deletes history older than the retention window. A prune that
// is already running makes this call a no-op.
func (s *MaintenanceService) PruneNow(ctx context.Context) (int64, error) {
	if !s.jobs.Begin(pruneJobID, s.now()) {
		return 0, nil
	}
	defer s.jobs.End(pruneJobID)

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	days := s.settings.Load().RetentionDays
	cutoff := s.now().AddDate(0, 0, -days)
	n, err := s.store.PruneHistory(cutoff)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.lastRun = s.now()
	s.lastPruned = n
	s.mu.Unlock()
	log.Printf("[MAINT] pruned %d history entries older than %s", n, cutoff.Format(time.DateOnly))
	return n, nil
}

// Stop halts the scheduler. Running jobs are not interrupted.
func (s *MaintenanceService) Stop() {
	s.mu.Lock()
	c := s.cronSched
	s.cronSched = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// WaitRunning blocks until a running prune finishes or ctx is cancelled.
// Used for graceful shutdown.
func (s *MaintenanceService) WaitRunning(ctx context.Context) error {
	return s.jobs.Wait(ctx)
}

// Status reports the schedule and the outcome of the last prune.
func (s *MaintenanceService) Status() MaintenanceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MaintenanceStatus{
		Schedule:   s.spec,
		Scheduled:  s.cronSched != nil,
		LastRun:    s.lastRun,
		LastPruned: s.lastPruned,
		Running:    s.jobs.Running(),
	}
}
