package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"galleries/internal/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-cache stops its janitor from a finalizer.
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

// ─────────────────────────────────────────────────────────────
// Job guard
// ─────────────────────────────────────────────────────────────

func TestJobGuard_OneRunPerName(t *testing.T) {
	var g service.ExportedJobGuard
	now := time.Now()

	if !g.Begin("prune-history", now) {
		t.Fatal("first Begin should succeed")
	}
	if g.Begin("prune-history", now) {
		t.Fatal("second Begin for a running job should fail")
	}
	if !g.Begin("export", now) {
		t.Fatal("a different job should start")
	}
	if diff := cmp.Diff([]string{"export", "prune-history"}, g.Running()); diff != "" {
		t.Errorf("running mismatch:\n%s", diff)
	}

	g.End("prune-history")
	g.End("prune-history") // ending twice is harmless
	g.End("export")
	if len(g.Running()) != 0 {
		t.Errorf("expected nothing running, got %v", g.Running())
	}
	if !g.Begin("prune-history", now) {
		t.Fatal("Begin should succeed after End")
	}
	g.End("prune-history")
}

func TestJobGuard_Wait(t *testing.T) {
	var g service.ExportedJobGuard
	g.Begin("prune-history", time.Now())

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.End("prune-history")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestJobGuard_WaitCancelled(t *testing.T) {
	var g service.ExportedJobGuard
	g.Begin("prune-history", time.Now())
	defer g.End("prune-history")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); err == nil {
		t.Fatal("expected Wait to give up when ctx expires")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsInOrder(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, service.EventDesignSpaceChanged, nil)
	m.Emit(ctx, service.EventGenerationsLoading, true)

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != service.EventDesignSpaceChanged || m.Events[1].Data != true {
		t.Errorf("unexpected events: %+v", m.Events)
	}
}

func TestMockEmitter_Named(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, service.EventStatusMessage, service.StatusMessage{Level: "info", Text: "one"})
	m.Emit(ctx, "other", nil)
	m.Emit(ctx, service.EventStatusMessage, service.StatusMessage{Level: "error", Text: "two"})

	got := m.Named(service.EventStatusMessage)
	if len(got) != 2 {
		t.Fatalf("expected 2 status events, got %d", len(got))
	}
	if msg := got[1].Data.(service.StatusMessage); msg.Text != "two" {
		t.Errorf("unexpected order: %+v", got)
	}
}
