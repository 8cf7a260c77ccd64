package service_test

import (
	"context"
	"testing"
	"time"

	"galleries/internal/domain"
	"galleries/internal/service"
	"galleries/internal/storage"
)

func TestMaintenance_PruneNow(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	settings := service.NewSettingsService(storage.NewSettings(e.db))
	settings.Save(service.Settings{BackendURL: "http://localhost:8000", RetentionDays: 7, MaintenanceSpec: "@daily", RenderConcurrency: 4})

	e.sessions.SaveSession(&domain.Session{ID: "s1"})
	e.sessions.AppendHistory(&domain.HistoryEntry{ID: "old", SessionID: "s1", CreatedAt: time.Now().AddDate(0, 0, -10)})
	e.sessions.AppendHistory(&domain.HistoryEntry{ID: "new", SessionID: "s1"})

	m := service.NewMaintenanceService(e.sessions, settings, e.emitter)
	n, err := m.PruneNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}
	hist, _ := e.sessions.ListHistory("s1")
	if len(hist) != 1 || hist[0].ID != "new" {
		t.Errorf("unexpected remaining history: %+v", hist)
	}

	st := m.Status()
	if st.LastPruned != 1 || st.LastRun.IsZero() || len(st.Running) != 0 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestMaintenance_StartStop(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	settings := service.NewSettingsService(storage.NewSettings(e.db))
	m := service.NewMaintenanceService(e.sessions, settings, e.emitter)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Restarting replaces the scheduler.
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := m.Status(); !st.Scheduled || st.Schedule != service.DefaultMaintenanceSpec {
		t.Errorf("unexpected status %+v", st)
	}
	m.Stop()
	m.Stop()
	if m.Status().Scheduled {
		t.Error("expected scheduler to be stopped")
	}
	if err := m.WaitRunning(context.Background()); err != nil {
		t.Errorf("WaitRunning: %v", err)
	}
}

func TestMaintenance_InvalidSchedule(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	kv := storage.NewSettings(e.db)
	kv.Set("maintenance_schedule", "not a schedule")
	m := service.NewMaintenanceService(e.sessions, service.NewSettingsService(kv), e.emitter)

	if err := m.Start(context.Background()); err == nil {
		m.Stop()
		t.Fatal("expected error for invalid schedule")
	}
}
