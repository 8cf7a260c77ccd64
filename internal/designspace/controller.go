package designspace

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"galleries/internal/domain"
)

// Backend is the part of the generation backend the controller needs.
type Backend interface {
	FetchGeneration(ctx context.Context, sessionID string) (*domain.GenerationState, error)
	Regenerate(ctx context.Context, sessionID string, space domain.DesignSpace) (*domain.GenerationState, error)
}

// ChangeKind tells a listener which part of the state moved.
type ChangeKind string

const (
	ChangeAxes        ChangeKind = "axes"
	ChangeGenerations ChangeKind = "generations"
)

// State is a copy of the controller's state at one point in time.
type State struct {
	SessionID   string              `json:"sessionId"`
	DesignSpace domain.DesignSpace  `json:"designSpace"`
	Generations []domain.Generation `json:"generations"`
	Loading     bool                `json:"loading"`
}

// Controller owns the design space of one session and the generations
// produced from it. All axis transitions go through its methods so the
// single-exploring-axis rule holds after every call.
type Controller struct {
	mu        sync.Mutex
	sessionID string
	backend   Backend

	space       domain.DesignSpace
	generations []domain.Generation
	// committed is the last generation list that came back from the backend;
	// a failed regeneration restores it.
	committed []domain.Generation
	loading   bool
	seq       uint64

	listener func(ChangeKind, State)
}

// NewController creates a controller for sessionID with an empty design space.
func NewController(sessionID string, backend Backend) *Controller {
	return &Controller{sessionID: sessionID, backend: backend}
}

// SessionID returns the session this controller belongs to.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// OnChange registers fn to be called after every state change. fn runs
// outside the controller lock.
func (c *Controller) OnChange(fn func(ChangeKind, State)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// DesignSpace returns a copy of the current design space.
func (c *Controller) DesignSpace() domain.DesignSpace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.space.Clone()
}

func (c *Controller) stateLocked() State {
	gens := make([]domain.Generation, len(c.generations))
	copy(gens, c.generations)
	return State{
		SessionID:   c.sessionID,
		DesignSpace: c.space.Clone(),
		Generations: gens,
		Loading:     c.loading,
	}
}

func (c *Controller) notify(kind ChangeKind) {
	c.mu.Lock()
	fn := c.listener
	st := c.stateLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(kind, st)
	}
}

// ── Axis transitions ───────────────────────────────────────

// SetAxisStatus sets value and status of the named axis. It reports false
// when no such axis exists. Setting exploring demotes every other exploring
// axis.
func (c *Controller) SetAxisStatus(name, value string, status domain.AxisStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	c.mu.Lock()
	a := c.space.Axis(name)
	if a == nil {
		c.mu.Unlock()
		return false, nil
	}
	a.Value = value
	if status == domain.AxisExploring {
		c.promoteLocked(name)
	} else {
		a.Status = status
	}
	c.mu.Unlock()

	c.notify(ChangeAxes)
	return true, nil
}

// PromoteToExploring makes name the only exploring axis. Every other
// exploring axis becomes unconstrained. Reports false when name is absent.
func (c *Controller) PromoteToExploring(name string) bool {
	c.mu.Lock()
	if c.space.Axis(name) == nil {
		c.mu.Unlock()
		return false
	}
	c.promoteLocked(name)
	c.mu.Unlock()

	c.notify(ChangeAxes)
	return true
}

func (c *Controller) promoteLocked(name string) {
	for i := range c.space.Axes {
		a := &c.space.Axes[i]
		if a.Name == name {
			a.Status = domain.AxisExploring
		} else if a.Status == domain.AxisExploring {
			a.Status = domain.AxisUnconstrained
		}
	}
}

// EditAxisValue records a value typed by the user. An unconstrained or
// exploring axis is committed to constrained.
func (c *Controller) EditAxisValue(name, value string) bool {
	c.mu.Lock()
	a := c.space.Axis(name)
	if a == nil {
		c.mu.Unlock()
		return false
	}
	a.Value = value
	a.Status = domain.AxisConstrained
	c.mu.Unlock()

	c.notify(ChangeAxes)
	return true
}

// AddAxis appends a new exploring axis with an empty value. Blank and
// duplicate names are rejected and leave the collection unchanged.
func (c *Controller) AddAxis(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyAxisName
	}
	c.mu.Lock()
	if c.space.Axis(name) != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateAxis, name)
	}
	c.space.Axes = append(c.space.Axes, domain.Axis{Name: name, Status: domain.AxisExploring})
	c.promoteLocked(name)
	c.mu.Unlock()

	c.notify(ChangeAxes)
	return nil
}

// RemoveAxis drops the named axis. Removing an absent name is a no-op and
// reports false.
func (c *Controller) RemoveAxis(name string) bool {
	c.mu.Lock()
	idx := -1
	for i, a := range c.space.Axes {
		if a.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	c.space.Axes = append(c.space.Axes[:idx:idx], c.space.Axes[idx+1:]...)
	c.mu.Unlock()

	c.notify(ChangeAxes)
	return true
}

// Restore replaces the design space, e.g. from an undo snapshot or a change
// made by another process. Generations are left alone.
func (c *Controller) Restore(space domain.DesignSpace) error {
	if err := validateAxes(space.Axes); err != nil {
		return err
	}
	c.mu.Lock()
	c.space = space.Clone()
	c.space.Axes = normalizeExploring(c.space.Axes)
	c.mu.Unlock()

	c.notify(ChangeAxes)
	return nil
}

// ── Backend round-trips ────────────────────────────────────

// Load fetches the session's current design space and generations. It
// supersedes any regeneration still in flight.
func (c *Controller) Load(ctx context.Context) (State, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	state, err := c.backend.FetchGeneration(ctx, c.sessionID)
	if err == nil {
		err = ValidateState(state)
	}
	if err != nil {
		c.rollback(seq)
		return State{}, fmt.Errorf("load generation %s: %w", c.sessionID, err)
	}
	return c.apply(seq, state)
}

// RequestRegeneration sends the full design space to the backend and
// replaces the generations with the response. It fails with a
// ValidationError, without any network call, when no axis is exploring.
//
// Requests are numbered; a response that arrives after a newer request was
// issued is dropped and ErrSuperseded is returned. On failure the
// generations from before the call are restored.
func (c *Controller) RequestRegeneration(ctx context.Context) (State, error) {
	c.mu.Lock()
	if len(c.space.Exploring()) == 0 {
		c.mu.Unlock()
		return State{}, &ValidationError{Err: ErrNoExploringAxis, Message: "Please select an axis to explore"}
	}
	c.seq++
	seq := c.seq
	body := c.space.Clone()
	c.generations = nil
	c.loading = true
	c.mu.Unlock()
	c.notify(ChangeGenerations)

	state, err := c.backend.Regenerate(ctx, c.sessionID, body)
	if err == nil {
		err = ValidateState(state)
	}
	if err != nil {
		if !c.rollback(seq) {
			return State{}, ErrSuperseded
		}
		return State{}, fmt.Errorf("regenerate %s: %w", c.sessionID, err)
	}
	return c.apply(seq, state)
}

// rollback puts back the last committed generations and clears the loading
// flag after request seq failed. It reports false when a newer request has
// been issued since, which then owns the state.
func (c *Controller) rollback(seq uint64) bool {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return false
	}
	c.generations = c.committed
	c.loading = false
	c.mu.Unlock()
	c.notify(ChangeGenerations)
	return true
}

func (c *Controller) apply(seq uint64, state *domain.GenerationState) (State, error) {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return State{}, ErrSuperseded
	}
	c.space = Reconcile(c.space, state.DesignSpace)
	gens := make([]domain.Generation, len(state.Generations))
	copy(gens, state.Generations)
	c.generations = gens
	c.committed = gens
	c.loading = false
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(ChangeAxes)
	c.notify(ChangeGenerations)
	return st, nil
}
