package designspace_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"galleries/internal/designspace"
	"galleries/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ─────────────────────────────────────────────────────────────
// fakeBackend
// ─────────────────────────────────────────────────────────────

type fakeBackend struct {
	mu       sync.Mutex
	calls    int
	sent     []domain.DesignSpace
	respond  func(call int, space domain.DesignSpace) (*domain.GenerationState, error)
	fetch    *domain.GenerationState
	fetchErr error
}

func (f *fakeBackend) FetchGeneration(_ context.Context, _ string) (*domain.GenerationState, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.fetch, nil
}

func (f *fakeBackend) Regenerate(_ context.Context, _ string, space domain.DesignSpace) (*domain.GenerationState, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.sent = append(f.sent, space)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return &domain.GenerationState{}, nil
	}
	return respond(call, space)
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func gen(content string) domain.Generation {
	raw, _ := json.Marshal(content)
	return domain.Generation{Content: raw, Prompt: "p-" + content}
}

func newLoaded(t *testing.T, b *fakeBackend, axes ...domain.Axis) *designspace.Controller {
	t.Helper()
	c := designspace.NewController("sess-1", b)
	if err := c.Restore(domain.DesignSpace{Concept: "chair", Domain: "svg", Axes: axes}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return c
}

func countExploring(axes []domain.Axis) int {
	n := 0
	for _, a := range axes {
		if a.Status == domain.AxisExploring {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────
// Axis transitions
// ─────────────────────────────────────────────────────────────

func TestPromoteToExploring_Scenario(t *testing.T) {
	c := newLoaded(t, &fakeBackend{},
		domain.Axis{Name: "concept", Status: domain.AxisUnconstrained, Value: "modern"},
		domain.Axis{Name: "color", Status: domain.AxisExploring, Value: "blue"},
	)

	if !c.PromoteToExploring("concept") {
		t.Fatal("expected concept to be found")
	}

	want := []domain.Axis{
		{Name: "concept", Status: domain.AxisExploring, Value: "modern"},
		{Name: "color", Status: domain.AxisUnconstrained, Value: "blue"},
	}
	if diff := cmp.Diff(want, c.DesignSpace().Axes); diff != "" {
		t.Errorf("axes mismatch (-want +got):\n%s", diff)
	}
}

func TestPromoteToExploring_AtMostOneExploring(t *testing.T) {
	statuses := []domain.AxisStatus{domain.AxisExploring, domain.AxisConstrained, domain.AxisUnconstrained}
	// Every combination of three axes, promoting each of them in turn.
	for _, s1 := range statuses {
		for _, s2 := range statuses {
			for _, s3 := range statuses {
				for _, target := range []string{"a", "b", "c", "missing"} {
					c := designspace.NewController("s", &fakeBackend{})
					for _, n := range []string{"a", "b", "c"} {
						if err := c.AddAxis(n); err != nil {
							t.Fatal(err)
						}
					}
					for n, s := range map[string]domain.AxisStatus{"a": s1, "b": s2, "c": s3} {
						if _, err := c.SetAxisStatus(n, "", s); err != nil {
							t.Fatal(err)
						}
					}
					c.PromoteToExploring(target)
					axes := c.DesignSpace().Axes
					if n := countExploring(axes); n > 1 {
						t.Fatalf("start=%v,%v,%v promote %s: %d exploring axes", s1, s2, s3, target, n)
					}
					if target != "missing" {
						if a := findAxis(axes, target); a.Status != domain.AxisExploring {
							t.Fatalf("promote %s: status %s", target, a.Status)
						}
					}
				}
			}
		}
	}
}

func findAxis(axes []domain.Axis, name string) domain.Axis {
	for _, a := range axes {
		if a.Name == name {
			return a
		}
	}
	return domain.Axis{}
}

func TestSetAxisStatus_AbsentIsNoop(t *testing.T) {
	c := newLoaded(t, &fakeBackend{}, domain.Axis{Name: "color", Status: domain.AxisExploring, Value: "blue"})
	before := c.DesignSpace()

	found, err := c.SetAxisStatus("texture", "rough", domain.AxisConstrained)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected not found")
	}
	if diff := cmp.Diff(before, c.DesignSpace()); diff != "" {
		t.Errorf("design space changed:\n%s", diff)
	}
}

func TestSetAxisStatus_ExploringDemotesOthers(t *testing.T) {
	c := newLoaded(t, &fakeBackend{},
		domain.Axis{Name: "color", Status: domain.AxisExploring},
		domain.Axis{Name: "shape", Status: domain.AxisConstrained, Value: "round"},
	)
	if _, err := c.SetAxisStatus("shape", "square", domain.AxisExploring); err != nil {
		t.Fatal(err)
	}
	axes := c.DesignSpace().Axes
	if countExploring(axes) != 1 || findAxis(axes, "shape").Status != domain.AxisExploring {
		t.Errorf("unexpected axes: %+v", axes)
	}
	if findAxis(axes, "shape").Value != "square" {
		t.Errorf("value not set: %+v", axes)
	}
}

func TestSetAxisStatus_InvalidStatus(t *testing.T) {
	c := newLoaded(t, &fakeBackend{}, domain.Axis{Name: "color", Status: domain.AxisExploring})
	if _, err := c.SetAxisStatus("color", "", "frozen"); !errors.Is(err, designspace.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestEditAxisValue_CommitsAxis(t *testing.T) {
	c := newLoaded(t, &fakeBackend{},
		domain.Axis{Name: "color", Status: domain.AxisUnconstrained, Value: "blue"},
		domain.Axis{Name: "mood", Status: domain.AxisExploring},
	)
	if !c.EditAxisValue("color", "red") {
		t.Fatal("expected color to be found")
	}
	if got := findAxis(c.DesignSpace().Axes, "color"); got.Status != domain.AxisConstrained || got.Value != "red" {
		t.Errorf("got %+v, want constrained/red", got)
	}

	c.EditAxisValue("mood", "calm")
	if got := findAxis(c.DesignSpace().Axes, "mood"); got.Status != domain.AxisConstrained {
		t.Errorf("exploring axis not committed: %+v", got)
	}
}

func TestAddAxis_BlankIsNoop(t *testing.T) {
	c := newLoaded(t, &fakeBackend{}, domain.Axis{Name: "color", Status: domain.AxisExploring})

	for _, name := range []string{"", "   ", "\t\n"} {
		if err := c.AddAxis(name); !errors.Is(err, designspace.ErrEmptyAxisName) {
			t.Errorf("AddAxis(%q): expected ErrEmptyAxisName, got %v", name, err)
		}
	}
	if n := len(c.DesignSpace().Axes); n != 1 {
		t.Errorf("expected 1 axis, got %d", n)
	}
}

func TestAddAxis_RejectsDuplicate(t *testing.T) {
	c := newLoaded(t, &fakeBackend{}, domain.Axis{Name: "color", Status: domain.AxisConstrained, Value: "red"})

	if err := c.AddAxis("  color "); !errors.Is(err, designspace.ErrDuplicateAxis) {
		t.Fatalf("expected ErrDuplicateAxis, got %v", err)
	}
	want := []domain.Axis{{Name: "color", Status: domain.AxisConstrained, Value: "red"}}
	if diff := cmp.Diff(want, c.DesignSpace().Axes); diff != "" {
		t.Errorf("axes changed:\n%s", diff)
	}
}

func TestAddAxis_NewAxisExploring(t *testing.T) {
	c := newLoaded(t, &fakeBackend{}, domain.Axis{Name: "color", Status: domain.AxisExploring, Value: "blue"})

	if err := c.AddAxis(" material "); err != nil {
		t.Fatal(err)
	}
	want := []domain.Axis{
		{Name: "color", Status: domain.AxisUnconstrained, Value: "blue"},
		{Name: "material", Status: domain.AxisExploring, Value: ""},
	}
	if diff := cmp.Diff(want, c.DesignSpace().Axes); diff != "" {
		t.Errorf("axes mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveAxis_Idempotent(t *testing.T) {
	c := newLoaded(t, &fakeBackend{},
		domain.Axis{Name: "color", Status: domain.AxisExploring},
		domain.Axis{Name: "shape", Status: domain.AxisConstrained, Value: "round"},
	)
	before := c.DesignSpace()

	if c.RemoveAxis("texture") {
		t.Error("expected absent axis to report false")
	}
	if diff := cmp.Diff(before, c.DesignSpace()); diff != "" {
		t.Errorf("design space changed:\n%s", diff)
	}

	if !c.RemoveAxis("color") {
		t.Fatal("expected color to be removed")
	}
	c.RemoveAxis("color")
	want := []domain.Axis{{Name: "shape", Status: domain.AxisConstrained, Value: "round"}}
	if diff := cmp.Diff(want, c.DesignSpace().Axes); diff != "" {
		t.Errorf("axes mismatch (-want +got):\n%s", diff)
	}
}

func TestOnChange_ReceivesSnapshots(t *testing.T) {
	c := newLoaded(t, &fakeBackend{}, domain.Axis{Name: "color", Status: domain.AxisUnconstrained})
	var kinds []designspace.ChangeKind
	c.OnChange(func(k designspace.ChangeKind, st designspace.State) {
		kinds = append(kinds, k)
		if st.SessionID != "sess-1" {
			t.Errorf("unexpected session %q", st.SessionID)
		}
	})
	c.PromoteToExploring("color")
	c.RemoveAxis("nope")

	if diff := cmp.Diff([]designspace.ChangeKind{designspace.ChangeAxes}, kinds); diff != "" {
		t.Errorf("kinds mismatch:\n%s", diff)
	}
}

// ─────────────────────────────────────────────────────────────
// Regeneration
// ─────────────────────────────────────────────────────────────

func TestRequestRegeneration_NoExploringAxis(t *testing.T) {
	b := &fakeBackend{}
	c := designspace.NewController("sess-1", b)

	_, err := c.RequestRegeneration(context.Background())
	var verr *designspace.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, designspace.ErrNoExploringAxis) {
		t.Errorf("expected ErrNoExploringAxis, got %v", err)
	}
	if b.Calls() != 0 {
		t.Errorf("expected no network call, got %d", b.Calls())
	}

	c2 := newLoaded(t, b, domain.Axis{Name: "color", Status: domain.AxisConstrained, Value: "red"})
	if _, err := c2.RequestRegeneration(context.Background()); !errors.Is(err, designspace.ErrNoExploringAxis) {
		t.Errorf("expected ErrNoExploringAxis, got %v", err)
	}
	if b.Calls() != 0 {
		t.Errorf("expected no network call, got %d", b.Calls())
	}
}

func TestRequestRegeneration_SendsFullSpaceAndApplies(t *testing.T) {
	b := &fakeBackend{
		respond: func(_ int, space domain.DesignSpace) (*domain.GenerationState, error) {
			revised := domain.DesignSpace{Axes: []domain.Axis{
				{Name: "color", Status: domain.AxisExploring, Value: "green"},
				{Name: "style", Status: domain.AxisUnconstrained, Value: "bauhaus"},
			}}
			return &domain.GenerationState{
				DesignSpace: &revised,
				Generations: []domain.Generation{gen("a"), gen("b")},
			}, nil
		},
	}
	c := newLoaded(t, b,
		domain.Axis{Name: "concept", Status: domain.AxisConstrained, Value: "chair"},
		domain.Axis{Name: "color", Status: domain.AxisExploring, Value: "blue"},
	)

	var sawLoading bool
	c.OnChange(func(k designspace.ChangeKind, st designspace.State) {
		if k == designspace.ChangeGenerations && st.Loading && len(st.Generations) == 0 {
			sawLoading = true
		}
	})

	st, err := c.RequestRegeneration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !sawLoading {
		t.Error("expected a cleared, loading state before the response")
	}
	if len(b.sent) != 1 || len(b.sent[0].Axes) != 2 || b.sent[0].Concept != "chair" {
		t.Errorf("unexpected request body: %+v", b.sent)
	}
	if len(st.Generations) != 2 || st.Loading {
		t.Errorf("unexpected state: %+v", st)
	}

	// "concept" was not mentioned by the backend and must survive.
	want := []domain.Axis{
		{Name: "color", Status: domain.AxisExploring, Value: "green"},
		{Name: "style", Status: domain.AxisUnconstrained, Value: "bauhaus"},
		{Name: "concept", Status: domain.AxisConstrained, Value: "chair"},
	}
	if diff := cmp.Diff(want, st.DesignSpace.Axes); diff != "" {
		t.Errorf("axes mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestRegeneration_OmittedDesignSpaceKeepsAxes(t *testing.T) {
	b := &fakeBackend{
		respond: func(int, domain.DesignSpace) (*domain.GenerationState, error) {
			return &domain.GenerationState{Generations: []domain.Generation{gen("x")}}, nil
		},
	}
	c := newLoaded(t, b, domain.Axis{Name: "color", Status: domain.AxisExploring, Value: "blue"})
	before := c.DesignSpace()

	st, err := c.RequestRegeneration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, st.DesignSpace); diff != "" {
		t.Errorf("design space changed:\n%s", diff)
	}
}

func TestRequestRegeneration_FailureRestoresState(t *testing.T) {
	boom := errors.New("connection refused")
	b := &fakeBackend{}
	b.respond = func(call int, _ domain.DesignSpace) (*domain.GenerationState, error) {
		if call == 1 {
			return &domain.GenerationState{Generations: []domain.Generation{gen("one")}}, nil
		}
		return nil, boom
	}
	c := newLoaded(t, b, domain.Axis{Name: "color", Status: domain.AxisExploring, Value: "blue"})
	if _, err := c.RequestRegeneration(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := c.Snapshot()

	if _, err := c.RequestRegeneration(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
		t.Errorf("state changed after failure:\n%s", diff)
	}
}

func TestRequestRegeneration_MalformedPayload(t *testing.T) {
	b := &fakeBackend{
		respond: func(int, domain.DesignSpace) (*domain.GenerationState, error) {
			bad := domain.DesignSpace{Axes: []domain.Axis{{Name: "", Status: domain.AxisExploring}}}
			return &domain.GenerationState{DesignSpace: &bad}, nil
		},
	}
	c := newLoaded(t, b, domain.Axis{Name: "color", Status: domain.AxisExploring})
	before := c.Snapshot()

	_, err := c.RequestRegeneration(context.Background())
	var perr *designspace.PayloadError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PayloadError, got %v", err)
	}
	if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
		t.Errorf("state changed after malformed payload:\n%s", diff)
	}
}

func TestRequestRegeneration_StaleResponseDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{
		respond: func(call int, _ domain.DesignSpace) (*domain.GenerationState, error) {
			if call == 1 {
				close(started)
				<-release
				return &domain.GenerationState{Generations: []domain.Generation{gen("old")}}, nil
			}
			return &domain.GenerationState{Generations: []domain.Generation{gen("new")}}, nil
		},
	}
	c := newLoaded(t, b, domain.Axis{Name: "color", Status: domain.AxisExploring})

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.RequestRegeneration(context.Background())
		firstErr <- err
	}()
	<-started

	if _, err := c.RequestRegeneration(context.Background()); err != nil {
		t.Fatalf("second request: %v", err)
	}
	close(release)

	if err := <-firstErr; !errors.Is(err, designspace.ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", err)
	}
	gens := c.Snapshot().Generations
	if len(gens) != 1 || string(gens[0].Content) != `"new"` {
		t.Errorf("expected the newest response to win, got %+v", gens)
	}
}

func TestLoad_AppliesBackendState(t *testing.T) {
	space := domain.DesignSpace{Concept: "lamp", Domain: "image", Axes: []domain.Axis{
		{Name: "color", Status: domain.AxisExploring, Value: "amber"},
	}}
	b := &fakeBackend{fetch: &domain.GenerationState{DesignSpace: &space, Generations: []domain.Generation{gen("g")}}}
	c := designspace.NewController("sess-9", b)

	st, err := c.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(space, st.DesignSpace); diff != "" {
		t.Errorf("design space mismatch:\n%s", diff)
	}
	if len(st.Generations) != 1 {
		t.Errorf("expected 1 generation, got %d", len(st.Generations))
	}
}

func TestLoad_FailureAfterOvertakingRegeneration(t *testing.T) {
	space := domain.DesignSpace{Concept: "lamp", Domain: "svg", Axes: []domain.Axis{
		{Name: "color", Status: domain.AxisExploring},
	}}
	started := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{
		fetch: &domain.GenerationState{DesignSpace: &space, Generations: []domain.Generation{gen("a"), gen("b")}},
		respond: func(int, domain.DesignSpace) (*domain.GenerationState, error) {
			close(started)
			<-release
			return &domain.GenerationState{Generations: []domain.Generation{gen("late")}}, nil
		},
	}
	c := designspace.NewController("sess-3", b)
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	regenErr := make(chan error, 1)
	go func() {
		_, err := c.RequestRegeneration(context.Background())
		regenErr <- err
	}()
	<-started
	if !c.Snapshot().Loading {
		t.Fatal("expected loading while the regeneration is in flight")
	}

	b.fetchErr = errors.New("backend down")
	if _, err := c.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	close(release)
	if err := <-regenErr; !errors.Is(err, designspace.ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", err)
	}

	st := c.Snapshot()
	if st.Loading {
		t.Error("controller left in loading state")
	}
	if len(st.Generations) != 2 || string(st.Generations[0].Content) != `"a"` {
		t.Errorf("expected the committed generations back, got %+v", st.Generations)
	}
}

// ─────────────────────────────────────────────────────────────
// Reconcile
// ─────────────────────────────────────────────────────────────

func TestReconcile_SingleExploringKept(t *testing.T) {
	current := domain.DesignSpace{Axes: []domain.Axis{{Name: "a", Status: domain.AxisConstrained}}}
	revised := &domain.DesignSpace{Axes: []domain.Axis{
		{Name: "b", Status: domain.AxisExploring},
		{Name: "c", Status: domain.AxisExploring},
	}}
	got := designspace.Reconcile(current, revised)
	want := []domain.Axis{
		{Name: "b", Status: domain.AxisExploring},
		{Name: "c", Status: domain.AxisUnconstrained},
		{Name: "a", Status: domain.AxisConstrained},
	}
	if diff := cmp.Diff(want, got.Axes); diff != "" {
		t.Errorf("axes mismatch (-want +got):\n%s", diff)
	}
}

func TestDesignSpace_DecodesBareArray(t *testing.T) {
	var st domain.GenerationState
	body := `{"design_space":[{"name":"color","status":"exploring","value":""}],"generations":[]}`
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatal(err)
	}
	if st.DesignSpace == nil || len(st.DesignSpace.Axes) != 1 || st.DesignSpace.Axes[0].Name != "color" {
		t.Errorf("unexpected design space: %+v", st.DesignSpace)
	}
}
