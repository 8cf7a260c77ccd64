package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"galleries/internal/designspace"
	"galleries/internal/domain"
	"galleries/internal/presenter"
	"galleries/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Session Service — owns the open session's Design Space Controller
// ─────────────────────────────────────────────────────────────

var ErrNoSession = errors.New("no session open")

// SessionBackend is the part of the backend client SessionService uses.
type SessionBackend interface {
	designspace.Backend
	ListDomains(ctx context.Context) ([]domain.DomainInfo, error)
	StartSession(ctx context.Context, concept, domainName string, space *domain.DesignSpace) (*domain.GenerationState, error)
}

// SessionView is the full picture of the open session handed to the
// frontend after open and regenerate.
type SessionView struct {
	Session domain.Session     `json:"session"`
	State   designspace.State  `json:"state"`
	Grid    presenter.GridView `json:"grid"`
}

// SessionService routes every design-space edit through one controller,
// persists the result and records undo snapshots.
type SessionService struct {
	backend  SessionBackend
	store    domain.SessionStore
	undo     *storage.UndoStore
	grid     *presenter.Presenter
	feedback *FeedbackService
	emitter  EventEmitter

	mu      sync.Mutex
	session *domain.Session
	ctrl    *designspace.Controller
}

// NewSessionService creates a SessionService. feedback may be nil, in which
// case tiles show no feedback counts.
func NewSessionService(
	b SessionBackend,
	store domain.SessionStore,
	undo *storage.UndoStore,
	grid *presenter.Presenter,
	feedback *FeedbackService,
	emitter EventEmitter,
) *SessionService {
	return &SessionService{
		backend:  b,
		store:    store,
		undo:     undo,
		grid:     grid,
		feedback: feedback,
		emitter:  emitter,
	}
}

// ── Sessions ───────────────────────────────────────────────

func (s *SessionService) ListDomains(ctx context.Context) ([]domain.DomainInfo, error) {
	return s.backend.ListDomains(ctx)
}

func (s *SessionService) ListSessions() ([]domain.Session, error) {
	return s.store.ListSessions()
}

// CreateSession starts a new session on the backend and opens it. space
// may be nil to let the backend propose the axes.
func (s *SessionService) CreateSession(ctx context.Context, concept, domainName string, space *domain.DesignSpace) (*SessionView, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return nil, fmt.Errorf("create session: concept is required")
	}
	st, err := s.backend.StartSession(ctx, concept, domainName, space)
	if err != nil {
		emitStatus(ctx, s.emitter, "error", "Error starting session: "+err.Error())
		return nil, fmt.Errorf("start session: %w", err)
	}
	if st.SessionID == "" {
		return nil, fmt.Errorf("start session: backend returned no session id")
	}

	sess := &domain.Session{ID: st.SessionID, Concept: concept, Domain: domainName}
	if st.DesignSpace != nil {
		sess.DesignSpace = st.DesignSpace.Clone()
	} else if space != nil {
		sess.DesignSpace = space.Clone()
	}
	if err := s.store.SaveSession(sess); err != nil {
		return nil, err
	}
	log.Printf("[SESSION] created %s for %q (%s)", sess.ID, concept, domainName)
	return s.Open(ctx, sess.ID)
}

// Open loads a session from the backend and makes it the current one. A
// session unknown to the local store is recorded on first open.
func (s *SessionService) Open(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.store.GetSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		sess = &domain.Session{ID: id}
	} else if err != nil {
		return nil, err
	}

	ctrl := designspace.NewController(id, s.backend)
	if len(sess.DesignSpace.Axes) > 0 {
		if err := ctrl.Restore(sess.DesignSpace); err != nil {
			log.Printf("[SESSION] stored design space for %s ignored: %v", id, err)
		}
	}
	st, err := ctrl.Load(ctx)
	if err != nil {
		emitStatus(ctx, s.emitter, "error", "Error loading session: "+err.Error())
		return nil, err
	}
	ctrl.OnChange(func(kind designspace.ChangeKind, st designspace.State) {
		if s.isOpen(ctrl) {
			s.onChange(kind, st)
		}
	})

	sess.DesignSpace = st.DesignSpace
	if sess.Concept == "" {
		sess.Concept = st.DesignSpace.Concept
	}
	if sess.Domain == "" {
		sess.Domain = st.DesignSpace.Domain
	}
	if err := s.store.SaveSession(sess); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.session = sess
	s.ctrl = ctrl
	s.mu.Unlock()

	if tree, err := s.undo.LoadTree(id); err == nil && tree == nil {
		s.pushUndo(ctx, id, st.DesignSpace, "Open session")
	}

	log.Printf("[SESSION] opened %s (%d axes, %d generations)", id, len(st.DesignSpace.Axes), len(st.Generations))
	s.emit(ctx, EventDesignSpaceChanged, st)
	return s.publish(ctx, ctrl, *sess, st), nil
}

// Close forgets the current session.
func (s *SessionService) Close() {
	s.mu.Lock()
	s.session = nil
	s.ctrl = nil
	s.mu.Unlock()
}

// DeleteSession removes a session and everything recorded for it.
func (s *SessionService) DeleteSession(id string) error {
	s.mu.Lock()
	if s.session != nil && s.session.ID == id {
		s.session = nil
		s.ctrl = nil
	}
	s.mu.Unlock()
	return s.store.DeleteSession(id)
}

// Current returns the open session and its controller state.
func (s *SessionService) Current() (*domain.Session, designspace.State, error) {
	sess, ctrl, err := s.current()
	if err != nil {
		return nil, designspace.State{}, err
	}
	return sess, ctrl.Snapshot(), nil
}

func (s *SessionService) current() (*domain.Session, *designspace.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return nil, nil, ErrNoSession
	}
	cp := *s.session
	return &cp, s.ctrl, nil
}

// View renders the current generations.
func (s *SessionService) View(ctx context.Context) (*SessionView, error) {
	sess, ctrl, err := s.current()
	if err != nil {
		return nil, err
	}
	st := ctrl.Snapshot()
	sess.DesignSpace = st.DesignSpace
	return &SessionView{Session: *sess, State: st, Grid: s.render(ctx, *sess, st)}, nil
}

// ── Design-space edits ─────────────────────────────────────

func (s *SessionService) SetAxisStatus(ctx context.Context, name, value string, status domain.AxisStatus) (bool, error) {
	return s.mutate(ctx, fmt.Sprintf("Set %s to %s", name, status), func(c *designspace.Controller) (bool, error) {
		return c.SetAxisStatus(name, value, status)
	})
}

func (s *SessionService) PromoteAxis(ctx context.Context, name string) (bool, error) {
	return s.mutate(ctx, "Explore "+name, func(c *designspace.Controller) (bool, error) {
		return c.PromoteToExploring(name), nil
	})
}

func (s *SessionService) EditAxisValue(ctx context.Context, name, value string) (bool, error) {
	return s.mutate(ctx, "Edit "+name, func(c *designspace.Controller) (bool, error) {
		return c.EditAxisValue(name, value), nil
	})
}

func (s *SessionService) AddAxis(ctx context.Context, name string) error {
	_, err := s.mutate(ctx, "Add "+strings.TrimSpace(name), func(c *designspace.Controller) (bool, error) {
		if err := c.AddAxis(name); err != nil {
			return false, err
		}
		return true, nil
	})
	if errors.Is(err, designspace.ErrDuplicateAxis) || errors.Is(err, designspace.ErrEmptyAxisName) {
		emitStatus(ctx, s.emitter, "warning", err.Error())
	}
	return err
}

func (s *SessionService) RemoveAxis(ctx context.Context, name string) (bool, error) {
	return s.mutate(ctx, "Remove "+name, func(c *designspace.Controller) (bool, error) {
		return c.RemoveAxis(name), nil
	})
}

// TagClicked commits the tag's axis to the tag's value and records the
// choice as feedback on item.
func (s *SessionService) TagClicked(ctx context.Context, item string, tag domain.Tag) error {
	ok, err := s.SetAxisStatus(ctx, tag.Dimension, tag.Value, domain.AxisConstrained)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("[SESSION] tag %s=%s has no matching axis", tag.Dimension, tag.Value)
	}
	if s.feedback == nil {
		return nil
	}
	sess, _, err := s.current()
	if err != nil {
		return err
	}
	return s.feedback.Submit(ctx, sess.ID, domain.FeedbackEntry{
		Item:     item,
		Feedback: domain.TagFeedback(tag),
	})
}

func (s *SessionService) mutate(ctx context.Context, label string, fn func(*designspace.Controller) (bool, error)) (bool, error) {
	sess, ctrl, err := s.current()
	if err != nil {
		return false, err
	}
	changed, err := fn(ctrl)
	if err != nil || !changed {
		return changed, err
	}
	s.commit(ctx, sess.ID, ctrl.DesignSpace(), label)
	return true, nil
}

// commit persists the design space and records an undo snapshot. Storage
// failures are logged; the in-memory edit stands.
func (s *SessionService) commit(ctx context.Context, sessionID string, space domain.DesignSpace, label string) {
	if err := s.store.UpdateDesignSpace(sessionID, space); err != nil {
		log.Printf("[SESSION] persist design space %s: %v", sessionID, err)
	}
	s.pushUndo(ctx, sessionID, space, label)
}

// ── Regeneration ───────────────────────────────────────────

// Regenerate asks the backend for a new batch from the current design
// space. Validation problems and backend failures are also reported as
// status messages.
func (s *SessionService) Regenerate(ctx context.Context) (*SessionView, error) {
	sess, ctrl, err := s.current()
	if err != nil {
		return nil, err
	}

	st, err := ctrl.RequestRegeneration(ctx)
	var verr *designspace.ValidationError
	switch {
	case errors.As(err, &verr):
		emitStatus(ctx, s.emitter, "warning", verr.Message)
		return nil, err
	case errors.Is(err, designspace.ErrSuperseded):
		log.Printf("[SESSION] regeneration for %s superseded", sess.ID)
		return nil, err
	case err != nil:
		log.Printf("[SESSION] regenerate %s: %v", sess.ID, err)
		emitStatus(ctx, s.emitter, "error", "Error regenerating designs: "+err.Error())
		s.publish(ctx, ctrl, *sess, ctrl.Snapshot())
		return nil, err
	}

	s.commit(ctx, sess.ID, st.DesignSpace, "Regenerate")
	entry := &domain.HistoryEntry{
		ID:          uuid.New().String(),
		SessionID:   sess.ID,
		DesignSpace: st.DesignSpace,
		Generations: st.Generations,
	}
	if err := s.store.AppendHistory(entry); err != nil {
		log.Printf("[HISTORY] append %s: %v", sess.ID, err)
	} else {
		s.emit(ctx, EventHistoryAppended, map[string]string{"sessionId": sess.ID, "entryId": entry.ID})
	}

	sess.DesignSpace = st.DesignSpace
	log.Printf("[SESSION] regenerated %s: %d generations", sess.ID, len(st.Generations))
	return s.publish(ctx, ctrl, *sess, st), nil
}

// Reload fetches the session state from the backend again.
func (s *SessionService) Reload(ctx context.Context) (*SessionView, error) {
	sess, ctrl, err := s.current()
	if err != nil {
		return nil, err
	}
	st, err := ctrl.Load(ctx)
	if err != nil {
		emitStatus(ctx, s.emitter, "error", "Error loading session: "+err.Error())
		return nil, err
	}
	sess.DesignSpace = st.DesignSpace
	return s.publish(ctx, ctrl, *sess, st), nil
}

// RestoreHistoryEntry makes a recorded design space the live one again.
// Generations are left alone until the next regeneration.
func (s *SessionService) RestoreHistoryEntry(ctx context.Context, e *domain.HistoryEntry) error {
	sess, ctrl, err := s.current()
	if err != nil {
		return err
	}
	if e.SessionID != sess.ID {
		return fmt.Errorf("history entry %s belongs to session %s", e.ID, e.SessionID)
	}
	if err := ctrl.Restore(e.DesignSpace); err != nil {
		return err
	}
	s.commit(ctx, sess.ID, ctrl.DesignSpace(), "Restore from history")
	return nil
}

// ── Undo / redo ────────────────────────────────────────────

func (s *SessionService) UndoTree() (*storage.UndoTree, error) {
	sess, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.undo.LoadTree(sess.ID)
}

// Undo restores the design space of the current node's parent.
func (s *SessionService) Undo(ctx context.Context) (bool, error) {
	return s.step(ctx, func(t *storage.UndoTree, cur *storage.UndoNode) *storage.UndoNode {
		if cur.ParentID == nil {
			return nil
		}
		return t.Node(*cur.ParentID)
	})
}

// Redo restores the design space of the current node's newest child.
func (s *SessionService) Redo(ctx context.Context) (bool, error) {
	return s.step(ctx, func(t *storage.UndoTree, cur *storage.UndoNode) *storage.UndoNode {
		return t.LatestChild(cur.ID)
	})
}

// GoToUndoNode restores the design space stored in any node of the tree.
func (s *SessionService) GoToUndoNode(ctx context.Context, nodeID string) (bool, error) {
	return s.step(ctx, func(t *storage.UndoTree, _ *storage.UndoNode) *storage.UndoNode {
		return t.Node(nodeID)
	})
}

func (s *SessionService) step(ctx context.Context, pick func(*storage.UndoTree, *storage.UndoNode) *storage.UndoNode) (bool, error) {
	sess, ctrl, err := s.current()
	if err != nil {
		return false, err
	}
	tree, err := s.undo.LoadTree(sess.ID)
	if err != nil || tree == nil {
		return false, err
	}
	cur := tree.Node(tree.CurrentID)
	if cur == nil {
		return false, nil
	}
	target := pick(tree, cur)
	if target == nil || target.ID == cur.ID {
		return false, nil
	}

	var space domain.DesignSpace
	if err := json.Unmarshal([]byte(target.SnapshotJSON), &space); err != nil {
		return false, fmt.Errorf("undo snapshot %s: %w", target.ID, err)
	}
	if err := ctrl.Restore(space); err != nil {
		return false, err
	}
	if err := s.undo.GoTo(sess.ID, target.ID); err != nil {
		return false, err
	}
	if err := s.store.UpdateDesignSpace(sess.ID, ctrl.DesignSpace()); err != nil {
		log.Printf("[SESSION] persist design space %s: %v", sess.ID, err)
	}
	s.emit(ctx, EventUndoChanged, map[string]string{"sessionId": sess.ID, "currentId": target.ID})
	return true, nil
}

func (s *SessionService) pushUndo(ctx context.Context, sessionID string, space domain.DesignSpace, label string) {
	snap, err := json.Marshal(space)
	if err != nil {
		return
	}
	parent := ""
	if tree, err := s.undo.LoadTree(sessionID); err == nil && tree != nil {
		if cur := tree.Node(tree.CurrentID); cur != nil && cur.SnapshotJSON == string(snap) {
			return
		}
		parent = tree.CurrentID
	}
	node, err := s.undo.PushNode(sessionID, uuid.New().String(), parent, label, string(snap))
	if err != nil {
		log.Printf("[SESSION] push undo %s: %v", sessionID, err)
		return
	}
	s.emit(ctx, EventUndoChanged, map[string]string{"sessionId": sessionID, "currentId": node.ID})
}

// ── External changes ───────────────────────────────────────

// ApplyExternalChange picks up a design space written to the store by
// another process (the standalone MCP server). It reports whether the
// controller changed.
func (s *SessionService) ApplyExternalChange(ctx context.Context) (bool, error) {
	sess, ctrl, err := s.current()
	if err != nil {
		return false, err
	}
	stored, err := s.store.GetSession(sess.ID)
	if err != nil {
		return false, err
	}
	if sameSpace(stored.DesignSpace, ctrl.DesignSpace()) {
		return false, nil
	}
	if err := ctrl.Restore(stored.DesignSpace); err != nil {
		return false, err
	}
	s.pushUndo(ctx, sess.ID, ctrl.DesignSpace(), "External edit")
	s.emit(ctx, EventSessionExternalEdit, map[string]string{"sessionId": sess.ID})
	log.Printf("[SESSION] picked up external change to %s", sess.ID)
	return true, nil
}

func sameSpace(a, b domain.DesignSpace) bool {
	if a.Axes == nil {
		a.Axes = []domain.Axis{}
	}
	if b.Axes == nil {
		b.Axes = []domain.Axis{}
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

// ── Events ─────────────────────────────────────────────────

func (s *SessionService) onChange(kind designspace.ChangeKind, st designspace.State) {
	ctx := context.Background()
	switch kind {
	case designspace.ChangeAxes:
		s.emit(ctx, EventDesignSpaceChanged, st)
	case designspace.ChangeGenerations:
		s.emit(ctx, EventGenerationsLoading, st.Loading)
	}
}

// publish renders st and announces it to the frontend, unless another
// session was opened while ctrl's request was in flight.
func (s *SessionService) publish(ctx context.Context, ctrl *designspace.Controller, sess domain.Session, st designspace.State) *SessionView {
	view := &SessionView{Session: sess, State: st, Grid: s.render(ctx, sess, st)}
	if !s.isOpen(ctrl) {
		log.Printf("[SESSION] %s is no longer open, result not published", sess.ID)
		return view
	}
	s.emit(ctx, EventGenerationsUpdated, view.Grid)
	return view
}

func (s *SessionService) isOpen(ctrl *designspace.Controller) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl == ctrl
}

func (s *SessionService) render(ctx context.Context, sess domain.Session, st designspace.State) presenter.GridView {
	in := presenter.Input{
		SessionID:   sess.ID,
		Domain:      sess.Domain,
		Space:       st.DesignSpace,
		Generations: st.Generations,
		Loading:     st.Loading,
	}
	if in.Domain == "" {
		in.Domain = st.DesignSpace.Domain
	}
	if s.feedback != nil && !st.Loading {
		in.Feedback = s.feedback.Counts(ctx, sess.ID, presenter.ItemIDs(sess.ID, st.Generations))
	}
	view, err := s.grid.Present(ctx, in)
	if err != nil {
		log.Printf("[SESSION] render %s: %v", sess.ID, err)
		return presenter.GridView{SessionID: sess.ID, Items: []presenter.Item{}, Message: err.Error()}
	}
	return view
}

func (s *SessionService) emit(ctx context.Context, event string, data any) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, event, data)
	}
}
