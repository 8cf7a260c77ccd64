package service

import (
	"context"
	"slices"
	"sync"
	"time"
)

// ExportedJobGuard is an exported alias so _test packages can test the guard.
type ExportedJobGuard = jobGuard

// ─────────────────────────────────────────────────────────────
// jobGuard — one run per named maintenance job
// ─────────────────────────────────────────────────────────────

// jobGuard lets at most one run of each named job be in flight and
// remembers when it started.
type jobGuard struct {
	mu      sync.Mutex
	running map[string]time.Time
	wg      sync.WaitGroup
}

// Begin marks name as running since at. It returns false, and changes
// nothing, if name is already running.
func (g *jobGuard) Begin(name string, at time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]time.Time)
	}
	if _, busy := g.running[name]; busy {
		return false
	}
	g.running[name] = at
	g.wg.Add(1)
	return true
}

// End marks name finished. Only call it after Begin returned true.
func (g *jobGuard) End(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[name]; !busy {
		return
	}
	delete(g.running, name)
	g.wg.Done()
}

// Running returns the names of jobs in flight, sorted.
func (g *jobGuard) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.running))
	for name := range g.running {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Wait blocks until every running job has ended. It returns ctx.Err() if
// ctx is done first.
func (g *jobGuard) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
