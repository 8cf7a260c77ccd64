package service_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"galleries/internal/domain"
	"galleries/internal/service"
)

func seedHistory(t *testing.T, e *env, n int) {
	t.Helper()
	e.sessions.SaveSession(&domain.Session{ID: "s1", Concept: "chair", Domain: "svg"})
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		err := e.sessions.AppendHistory(&domain.HistoryEntry{
			ID:          "h" + string(rune('a'+i)),
			SessionID:   "s1",
			DesignSpace: domain.DesignSpace{Axes: []domain.Axis{axis("color", domain.AxisExploring, "")}},
			Generations: []domain.Generation{svg("red"), svg("blue")}[:i%2+1],
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestHistory_ReplayCursor(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	seedHistory(t, e, 3)
	h := service.NewHistoryService(e.sessions, e.grid, e.feedback, t.TempDir())
	ctx := context.Background()

	v, err := h.First(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if v.Index != 0 || v.Total != 3 || v.EntryID != "ha" || len(v.Grid.Items) != 1 {
		t.Errorf("unexpected first view: %+v", v)
	}

	v, _ = h.Next(ctx, "s1")
	if v.Index != 1 || len(v.Grid.Items) != 2 {
		t.Errorf("unexpected next view: index=%d items=%d", v.Index, len(v.Grid.Items))
	}
	h.Next(ctx, "s1")
	v, _ = h.Next(ctx, "s1")
	if v.Index != 2 {
		t.Errorf("expected cursor clamped at 2, got %d", v.Index)
	}
	v, _ = h.Prev(ctx, "s1")
	if v.Index != 1 {
		t.Errorf("expected prev to move to 1, got %d", v.Index)
	}
	for _, item := range v.Grid.Items {
		if item.Error != "" {
			t.Errorf("replayed tile failed: %s", item.Error)
		}
	}
}

func TestHistory_ReplayEmpty(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	h := service.NewHistoryService(e.sessions, e.grid, nil, t.TempDir())
	if _, err := h.First(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for empty history")
	}
}

func TestHistory_Export(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	seedHistory(t, e, 2)
	dir := filepath.Join(t.TempDir(), "exports")
	h := service.NewHistoryService(e.sessions, e.grid, e.feedback, dir)

	path, err := h.Export("s1")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("export written outside export dir: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Session domain.Session        `json:"session"`
		Entries []domain.HistoryEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Session.Concept != "chair" || len(out.Entries) != 2 {
		t.Errorf("unexpected export: %+v", out)
	}
}

func TestHistory_RestoreEntry(t *testing.T) {
	e := newEnv(t, newFakeBackend(axis("color", domain.AxisExploring, "")))
	e.open(t)
	ctx := context.Background()

	entry := &domain.HistoryEntry{ID: "old", SessionID: "s1", DesignSpace: domain.DesignSpace{Axes: []domain.Axis{
		axis("color", domain.AxisConstrained, "red"),
		axis("mood", domain.AxisExploring, ""),
	}}}
	if err := e.svc.RestoreHistoryEntry(ctx, entry); err != nil {
		t.Fatal(err)
	}
	_, st, _ := e.svc.Current()
	if got := st.DesignSpace.Exploring(); len(got) != 1 || got[0] != "mood" {
		t.Errorf("expected mood exploring, got %v", got)
	}

	entry.SessionID = "other"
	if err := e.svc.RestoreHistoryEntry(ctx, entry); err == nil {
		t.Error("expected error for entry of another session")
	}
}
