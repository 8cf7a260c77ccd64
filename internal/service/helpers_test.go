package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"galleries/internal/backend"
	"galleries/internal/domain"
	"galleries/internal/plugins"
	"galleries/internal/presenter"
	"galleries/internal/render"
	"galleries/internal/service"
	"galleries/internal/storage"
)

// fakeBackend is an in-memory generation backend. Regenerate echoes the
// design space it was sent and produces one svg generation per call.
type fakeBackend struct {
	mu          sync.Mutex
	space       domain.DesignSpace
	generations []domain.Generation
	regenErr    error
	regenCalls  int
	lastSent    domain.DesignSpace

	feedback map[string][]string
	selected string
	fbErr    error

	// When set, Regenerate signals started and waits for release.
	started chan struct{}
	release chan struct{}
}

func newFakeBackend(axes ...domain.Axis) *fakeBackend {
	return &fakeBackend{
		space:       domain.DesignSpace{Concept: "chair", Domain: "svg", Axes: axes},
		generations: []domain.Generation{svg("red"), svg("blue")},
		feedback:    map[string][]string{},
	}
}

func svg(fill string) domain.Generation {
	content, _ := json.Marshal(fmt.Sprintf(`<svg viewBox="0 0 10 10"><rect width="10" height="10" fill="%s"/></svg>`, fill))
	return domain.Generation{Content: content, Prompt: fill, Tags: []domain.Tag{{Dimension: "color", Value: fill}}}
}

func (f *fakeBackend) ListDomains(context.Context) ([]domain.DomainInfo, error) {
	return []domain.DomainInfo{{Name: "svg", DisplayName: "SVG"}}, nil
}

func (f *fakeBackend) StartSession(_ context.Context, concept, domainName string, space *domain.DesignSpace) (*domain.GenerationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.space.Concept = concept
	f.space.Domain = domainName
	if space != nil {
		f.space.Axes = space.Clone().Axes
	}
	sp := f.space.Clone()
	return &domain.GenerationState{SessionID: "s1", DesignSpace: &sp, Generations: f.generations}, nil
}

func (f *fakeBackend) FetchGeneration(context.Context, string) (*domain.GenerationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp := f.space.Clone()
	return &domain.GenerationState{DesignSpace: &sp, Generations: f.generations}, nil
}

func (f *fakeBackend) Regenerate(_ context.Context, _ string, space domain.DesignSpace) (*domain.GenerationState, error) {
	if f.release != nil {
		close(f.started)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regenCalls++
	f.lastSent = space.Clone()
	if f.regenErr != nil {
		return nil, f.regenErr
	}
	f.space = space.Clone()
	f.generations = []domain.Generation{svg(fmt.Sprintf("#%06d", f.regenCalls))}
	sp := f.space.Clone()
	return &domain.GenerationState{DesignSpace: &sp, Generations: f.generations}, nil
}

func (f *fakeBackend) PostFeedback(_ context.Context, e domain.FeedbackEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fbErr != nil {
		return f.fbErr
	}
	f.feedback[e.Item] = append(f.feedback[e.Item], e.Feedback)
	return nil
}

func (f *fakeBackend) GetFeedback(_ context.Context, item string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fbErr != nil {
		return nil, f.fbErr
	}
	return append([]string{}, f.feedback[item]...), nil
}

func (f *fakeBackend) AllFeedback(context.Context) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fbErr != nil {
		return nil, f.fbErr
	}
	out := map[string][]string{}
	for k, v := range f.feedback {
		out[k] = append([]string{}, v...)
	}
	return out, nil
}

func (f *fakeBackend) Select(_ context.Context, item string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = item
	return nil
}

func (f *fakeBackend) SaveSelected(context.Context) (*backend.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected == "" {
		return nil, &backend.StatusError{Method: "POST", Path: "/api/save-selected", Code: 400, Body: "No file selected"}
	}
	return &backend.SaveResult{Success: true, Path: "/out/" + f.selected}, nil
}

type env struct {
	db       *storage.DB
	backend  *fakeBackend
	emitter  *service.MockEmitter
	sessions *storage.SessionStore
	undo     *storage.UndoStore
	fbStore  *storage.FeedbackStore
	grid     *presenter.Presenter
	feedback *service.FeedbackService
	svc      *service.SessionService
}

func newEnv(t *testing.T, b *fakeBackend) *env {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "galleries.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	reg := render.NewRegistry(nil)
	plugins.RegisterAll(reg)

	e := &env{
		db:       db,
		backend:  b,
		emitter:  &service.MockEmitter{},
		sessions: storage.NewSessionStore(db),
		undo:     storage.NewUndoStore(db),
		fbStore:  storage.NewFeedbackStore(db),
		grid:     presenter.New(reg, 2),
	}
	e.feedback = service.NewFeedbackService(b, e.fbStore, e.sessions, e.emitter)
	e.svc = service.NewSessionService(b, e.sessions, e.undo, e.grid, e.feedback, e.emitter)
	return e
}

// open creates session s1 on the fake backend and opens it.
func (e *env) open(t *testing.T) *service.SessionView {
	t.Helper()
	view, err := e.svc.CreateSession(context.Background(), "chair", "svg", nil)
	if err != nil {
		t.Fatal(err)
	}
	return view
}

func axis(name string, status domain.AxisStatus, value string) domain.Axis {
	return domain.Axis{Name: name, Status: status, Value: value}
}
