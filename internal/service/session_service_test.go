package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"galleries/internal/designspace"
	"galleries/internal/domain"
	"galleries/internal/render"
	"galleries/internal/service"
)

// ─────────────────────────────────────────────────────────────
// Open / create
// ─────────────────────────────────────────────────────────────

func TestSessionService_NoSession(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	if _, err := e.svc.PromoteAxis(context.Background(), "color"); !errors.Is(err, service.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := e.svc.Regenerate(context.Background()); !errors.Is(err, service.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSessionService_CreateOpensAndRenders(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisExploring, ""), axis("legs", domain.AxisConstrained, "three"))
	e := newEnv(t, b)

	view := e.open(t)
	if view.Session.ID != "s1" || view.Session.Concept != "chair" {
		t.Errorf("unexpected session: %+v", view.Session)
	}
	if len(view.Grid.Items) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(view.Grid.Items))
	}
	for _, item := range view.Grid.Items {
		if item.Error != "" {
			t.Errorf("tile %s failed: %s", item.ContainerID, item.Error)
		}
	}

	stored, err := e.sessions.GetSession("s1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(b.space.Axes, stored.DesignSpace.Axes); diff != "" {
		t.Errorf("stored axes mismatch:\n%s", diff)
	}
	if tree, _ := e.undo.LoadTree("s1"); tree == nil || len(tree.Nodes) != 1 {
		t.Errorf("expected an undo root, got %+v", tree)
	}
	if len(e.emitter.Named(service.EventGenerationsUpdated)) != 1 {
		t.Errorf("expected one generations:updated event")
	}
}

func TestSessionService_CreateRequiresConcept(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	if _, err := e.svc.CreateSession(context.Background(), "   ", "svg", nil); err == nil {
		t.Fatal("expected error for blank concept")
	}
}

// ─────────────────────────────────────────────────────────────
// Edits, persistence and undo
// ─────────────────────────────────────────────────────────────

func TestSessionService_PromotePersistsAndUndoes(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisExploring, ""), axis("shape", domain.AxisUnconstrained, ""))
	e := newEnv(t, b)
	e.open(t)
	ctx := context.Background()

	ok, err := e.svc.PromoteAxis(ctx, "shape")
	if err != nil || !ok {
		t.Fatalf("promote: %v %v", ok, err)
	}
	stored, _ := e.sessions.GetSession("s1")
	if got := stored.DesignSpace.Exploring(); len(got) != 1 || got[0] != "shape" {
		t.Fatalf("expected shape exploring in store, got %v", got)
	}
	if len(e.emitter.Named(service.EventDesignSpaceChanged)) == 0 {
		t.Error("expected designspace:changed event")
	}

	if ok, err := e.svc.Undo(ctx); err != nil || !ok {
		t.Fatalf("undo: %v %v", ok, err)
	}
	_, st, _ := e.svc.Current()
	if got := st.DesignSpace.Exploring(); len(got) != 1 || got[0] != "color" {
		t.Errorf("expected color exploring after undo, got %v", got)
	}

	if ok, err := e.svc.Redo(ctx); err != nil || !ok {
		t.Fatalf("redo: %v %v", ok, err)
	}
	_, st, _ = e.svc.Current()
	if got := st.DesignSpace.Exploring(); got[0] != "shape" {
		t.Errorf("expected shape exploring after redo, got %v", got)
	}
	if ok, _ := e.svc.Redo(ctx); ok {
		t.Error("expected nothing left to redo")
	}
}

func TestSessionService_NoopEditsDoNotPushUndo(t *testing.T) {
	e := newEnv(t, newFakeBackend(axis("color", domain.AxisExploring, "")))
	e.open(t)
	ctx := context.Background()

	if ok, _ := e.svc.RemoveAxis(ctx, "missing"); ok {
		t.Error("removing an absent axis should report false")
	}
	if ok, _ := e.svc.PromoteAxis(ctx, "color"); !ok {
		t.Error("promoting an existing axis should report true")
	}
	tree, _ := e.undo.LoadTree("s1")
	if len(tree.Nodes) != 1 {
		t.Errorf("expected unchanged space to add no undo node, got %d nodes", len(tree.Nodes))
	}
}

func TestSessionService_AddDuplicateWarns(t *testing.T) {
	e := newEnv(t, newFakeBackend(axis("color", domain.AxisExploring, "")))
	e.open(t)

	err := e.svc.AddAxis(context.Background(), "color")
	if !errors.Is(err, designspace.ErrDuplicateAxis) {
		t.Fatalf("expected ErrDuplicateAxis, got %v", err)
	}
	if len(e.emitter.Named(service.EventStatusMessage)) == 0 {
		t.Error("expected a status message")
	}
}

func TestSessionService_TagClicked(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisExploring, ""), axis("legs", domain.AxisUnconstrained, ""))
	e := newEnv(t, b)
	e.open(t)

	if err := e.svc.TagClicked(context.Background(), "preview-0", domain.Tag{Dimension: "color", Value: "red"}); err != nil {
		t.Fatal(err)
	}
	_, st, _ := e.svc.Current()
	a := st.DesignSpace.Axis("color")
	if a.Status != domain.AxisConstrained || a.Value != "red" {
		t.Errorf("expected color constrained to red, got %+v", a)
	}
	if diff := cmp.Diff([]string{"color: red"}, b.feedback["preview-0"]); diff != "" {
		t.Errorf("feedback mismatch:\n%s", diff)
	}
}

func TestSessionService_TagClickedMarksP5Chip(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisExploring, ""))
	e := newEnv(t, b)
	ctx := context.Background()
	view, err := e.svc.CreateSession(ctx, "chair", "p5", nil)
	if err != nil {
		t.Fatal(err)
	}
	item := view.Grid.Items[0].ItemID

	if err := e.svc.TagClicked(ctx, item, domain.Tag{Dimension: "color", Value: "red"}); err != nil {
		t.Fatal(err)
	}
	view, err = e.svc.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := render.TagChip{Dimension: "color", Value: "red", Selected: true, HasFeedback: true}
	if diff := cmp.Diff([]render.TagChip{want}, view.Grid.Items[0].Tags); diff != "" {
		t.Errorf("chip mismatch (-want +got):\n%s", diff)
	}
	if view.Grid.Items[1].Tags[0].HasFeedback {
		t.Error("feedback leaked onto another tile")
	}
}

// ─────────────────────────────────────────────────────────────
// Regeneration
// ─────────────────────────────────────────────────────────────

func TestSessionService_RegenerateWithoutExploring(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisConstrained, "red"))
	e := newEnv(t, b)
	e.open(t)

	_, err := e.svc.Regenerate(context.Background())
	var verr *designspace.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if b.regenCalls != 0 {
		t.Errorf("expected no backend call, got %d", b.regenCalls)
	}
	msgs := e.emitter.Named(service.EventStatusMessage)
	if len(msgs) == 0 || msgs[len(msgs)-1].Data.(service.StatusMessage).Text != "Please select an axis to explore" {
		t.Errorf("unexpected status messages: %+v", msgs)
	}
}

func TestSessionService_RegenerateRecordsHistory(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisExploring, ""), axis("legs", domain.AxisConstrained, "three"))
	e := newEnv(t, b)
	e.open(t)

	view, err := e.svc.Regenerate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Grid.Items) != 1 || view.Grid.Loading {
		t.Errorf("unexpected grid: %+v", view.Grid)
	}
	want := []domain.Axis{axis("color", domain.AxisExploring, ""), axis("legs", domain.AxisConstrained, "three")}
	if diff := cmp.Diff(want, b.lastSent.Axes); diff != "" {
		t.Errorf("full design space not sent:\n%s", diff)
	}

	hist, _ := e.sessions.ListHistory("s1")
	if len(hist) != 1 || len(hist[0].Generations) != 1 {
		t.Fatalf("expected one history entry, got %+v", hist)
	}

	loading := e.emitter.Named(service.EventGenerationsLoading)
	if len(loading) < 2 || loading[0].Data != true || loading[len(loading)-1].Data != false {
		t.Errorf("expected loading true then false, got %+v", loading)
	}
}

func TestSessionService_FeedbackStaysWithItsBatch(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisExploring, ""))
	e := newEnv(t, b)
	ctx := context.Background()
	view := e.open(t)

	first := view.Grid.Items[0]
	if err := e.feedback.Submit(ctx, "s1", domain.FeedbackEntry{Item: first.ItemID, Feedback: "too busy"}); err != nil {
		t.Fatal(err)
	}
	view, err := e.svc.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if view.Grid.Items[0].FeedbackCount != 1 || view.Grid.Items[1].FeedbackCount != 0 {
		t.Fatalf("unexpected counts %d, %d", view.Grid.Items[0].FeedbackCount, view.Grid.Items[1].FeedbackCount)
	}

	view, err = e.svc.Regenerate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	next := view.Grid.Items[0]
	if next.ContainerID != first.ContainerID {
		t.Fatalf("expected the same tile slot, got %s", next.ContainerID)
	}
	if next.ItemID == first.ItemID {
		t.Errorf("new batch reused item id %s", next.ItemID)
	}
	if next.FeedbackCount != 0 {
		t.Errorf("feedback from the previous batch shown on %s: %d", next.ItemID, next.FeedbackCount)
	}
}

func TestSessionService_RegenerateAfterSwitchNotPublished(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisExploring, ""))
	b.started = make(chan struct{})
	b.release = make(chan struct{})
	e := newEnv(t, b)
	ctx := context.Background()
	e.open(t)

	done := make(chan error, 1)
	go func() {
		_, err := e.svc.Regenerate(ctx)
		done <- err
	}()
	<-b.started

	if _, err := e.svc.Open(ctx, "s2"); err != nil {
		t.Fatal(err)
	}
	before := len(e.emitter.Named(service.EventGenerationsUpdated))
	close(b.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if got := len(e.emitter.Named(service.EventGenerationsUpdated)); got != before {
		t.Errorf("stale regeneration published %d grid updates", got-before)
	}
	sess, _, _ := e.svc.Current()
	if sess.ID != "s2" {
		t.Errorf("expected s2 to stay open, got %s", sess.ID)
	}
	if hist, _ := e.sessions.ListHistory("s1"); len(hist) != 1 {
		t.Errorf("the finished regeneration still belongs in s1's history, got %d entries", len(hist))
	}
}

func TestSessionService_RegenerateFailureRestores(t *testing.T) {
	b := newFakeBackend(axis("color", domain.AxisExploring, ""))
	e := newEnv(t, b)
	e.open(t)
	b.regenErr = errors.New("connection refused")

	if _, err := e.svc.Regenerate(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	_, st, _ := e.svc.Current()
	if len(st.Generations) != 2 || st.Loading {
		t.Errorf("expected prior generations restored, got %+v", st)
	}
	msgs := e.emitter.Named(service.EventStatusMessage)
	if len(msgs) == 0 || msgs[len(msgs)-1].Data.(service.StatusMessage).Level != "error" {
		t.Errorf("expected error status, got %+v", msgs)
	}
	if hist, _ := e.sessions.ListHistory("s1"); len(hist) != 0 {
		t.Errorf("failed regeneration must not be recorded, got %d entries", len(hist))
	}
}

// ─────────────────────────────────────────────────────────────
// External changes
// ─────────────────────────────────────────────────────────────

func TestSessionService_ApplyExternalChange(t *testing.T) {
	e := newEnv(t, newFakeBackend(axis("color", domain.AxisExploring, "")))
	e.open(t)
	ctx := context.Background()

	if changed, _ := e.svc.ApplyExternalChange(ctx); changed {
		t.Error("nothing changed yet")
	}

	edited := domain.DesignSpace{Concept: "chair", Domain: "svg", Axes: []domain.Axis{
		axis("color", domain.AxisConstrained, "teal"),
		axis("material", domain.AxisExploring, ""),
	}}
	if err := e.sessions.UpdateDesignSpace("s1", edited); err != nil {
		t.Fatal(err)
	}

	changed, err := e.svc.ApplyExternalChange(ctx)
	if err != nil || !changed {
		t.Fatalf("expected change picked up: %v %v", changed, err)
	}
	_, st, _ := e.svc.Current()
	if diff := cmp.Diff(edited.Axes, st.DesignSpace.Axes); diff != "" {
		t.Errorf("axes mismatch:\n%s", diff)
	}
}
