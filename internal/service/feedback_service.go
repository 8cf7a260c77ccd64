package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"galleries/internal/backend"
	"galleries/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Feedback Service — feedback, selection and saving
// ─────────────────────────────────────────────────────────────

var ErrEmptyFeedback = errors.New("feedback text is empty")

// FeedbackBackend is the part of the backend client FeedbackService uses.
type FeedbackBackend interface {
	PostFeedback(ctx context.Context, entry domain.FeedbackEntry) error
	GetFeedback(ctx context.Context, item string) ([]string, error)
	AllFeedback(ctx context.Context) (map[string][]string, error)
	Select(ctx context.Context, item string) error
	SaveSelected(ctx context.Context) (*backend.SaveResult, error)
}

const (
	feedbackCacheTTL = 30 * time.Second
	allFeedbackKey   = "\x00all"
	feedbackFetchMax = 4
)

// FeedbackService posts and reads feedback through the backend. Reads are
// cached briefly and concurrent reads of one item share a request. Every
// accepted entry is mirrored into the local store.
type FeedbackService struct {
	backend  FeedbackBackend
	store    domain.FeedbackStore
	sessions domain.SessionStore
	emitter  EventEmitter

	cache *gocache.Cache
	group singleflight.Group
}

// NewFeedbackService creates a FeedbackService.
func NewFeedbackService(b FeedbackBackend, store domain.FeedbackStore, sessions domain.SessionStore, emitter EventEmitter) *FeedbackService {
	return &FeedbackService{
		backend:  b,
		store:    store,
		sessions: sessions,
		emitter:  emitter,
		cache:    gocache.New(feedbackCacheTTL, 2*feedbackCacheTTL),
	}
}

// Submit posts one feedback entry. Blank feedback is rejected before any
// request is made.
func (s *FeedbackService) Submit(ctx context.Context, sessionID string, entry domain.FeedbackEntry) error {
	entry.Feedback = strings.TrimSpace(entry.Feedback)
	if entry.Feedback == "" {
		return ErrEmptyFeedback
	}
	if entry.Item == "" {
		return fmt.Errorf("feedback: item is required")
	}

	if err := s.backend.PostFeedback(ctx, entry); err != nil {
		log.Printf("[FEEDBACK] post %s failed: %v", entry.Item, err)
		emitStatus(ctx, s.emitter, "error", "Error saving feedback: "+err.Error())
		return fmt.Errorf("post feedback: %w", err)
	}

	rec := &domain.FeedbackRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Item:      entry.Item,
		Feedback:  entry.Feedback,
	}
	if err := s.store.AddFeedback(rec); err != nil {
		log.Printf("[FEEDBACK] mirror %s: %v", entry.Item, err)
	}

	s.cache.Delete(entry.Item)
	s.cache.Delete(allFeedbackKey)

	if s.emitter != nil {
		s.emitter.Emit(ctx, EventFeedbackUpdated, map[string]string{
			"item":     entry.Item,
			"feedback": entry.Feedback,
		})
	}
	emitStatus(ctx, s.emitter, "info", "Feedback saved")
	return nil
}

// Get returns the feedback recorded for item.
func (s *FeedbackService) Get(ctx context.Context, item string) ([]string, error) {
	if v, ok := s.cache.Get(item); ok {
		return v.([]string), nil
	}
	v, err, _ := s.group.Do(item, func() (any, error) {
		fb, err := s.backend.GetFeedback(ctx, item)
		if err != nil {
			return nil, err
		}
		s.cache.SetDefault(item, fb)
		return fb, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get feedback %s: %w", item, err)
	}
	return v.([]string), nil
}

// All returns the feedback of every item the backend knows about.
func (s *FeedbackService) All(ctx context.Context) (map[string][]string, error) {
	if v, ok := s.cache.Get(allFeedbackKey); ok {
		return v.(map[string][]string), nil
	}
	v, err, _ := s.group.Do(allFeedbackKey, func() (any, error) {
		all, err := s.backend.AllFeedback(ctx)
		if err != nil {
			return nil, err
		}
		if all == nil {
			all = map[string][]string{}
		}
		s.cache.SetDefault(allFeedbackKey, all)
		return all, nil
	})
	if err != nil {
		return nil, fmt.Errorf("all feedback: %w", err)
	}
	return v.(map[string][]string), nil
}

// Load fetches the feedback of each item in parallel.
func (s *FeedbackService) Load(ctx context.Context, items []string) (map[string][]string, error) {
	results := make([][]string, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(feedbackFetchMax)
	for i, item := range items {
		g.Go(func() error {
			fb, err := s.Get(ctx, item)
			if err != nil {
				return err
			}
			results[i] = fb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(items))
	for i, item := range items {
		out[item] = results[i]
	}
	return out, nil
}

// Counts returns feedback for the given items for display on tiles. It
// prefers the single all-feedback call, falls back to per-item reads, and
// finally to the local mirror so a flaky backend never blanks the grid.
func (s *FeedbackService) Counts(ctx context.Context, sessionID string, items []string) map[string][]string {
	all, err := s.All(ctx)
	if err == nil {
		return all
	}
	log.Printf("[FEEDBACK] all-feedback unavailable: %v", err)
	if byItem, err := s.Load(ctx, items); err == nil {
		return byItem
	}
	return s.local(sessionID)
}

// Local returns the mirrored feedback of a session keyed by item.
func (s *FeedbackService) Local(sessionID string) map[string][]string {
	return s.local(sessionID)
}

func (s *FeedbackService) local(sessionID string) map[string][]string {
	out := map[string][]string{}
	recs, err := s.store.ListSessionFeedback(sessionID)
	if err != nil {
		log.Printf("[FEEDBACK] local mirror: %v", err)
		return out
	}
	for _, r := range recs {
		out[r.Item] = append(out[r.Item], r.Feedback)
	}
	return out
}

// Select marks item as the session's selected artifact.
func (s *FeedbackService) Select(ctx context.Context, sessionID, item string) error {
	if item == "" {
		return fmt.Errorf("select: no item specified")
	}
	if err := s.backend.Select(ctx, item); err != nil {
		emitStatus(ctx, s.emitter, "error", "Error selecting item: "+err.Error())
		return fmt.Errorf("select %s: %w", item, err)
	}
	if sessionID != "" && s.sessions != nil {
		if err := s.sessions.SetSelectedItem(sessionID, item); err != nil {
			log.Printf("[FEEDBACK] remember selection: %v", err)
		}
	}
	return nil
}

// SaveSelected asks the backend to persist the selected artifact.
func (s *FeedbackService) SaveSelected(ctx context.Context) (*backend.SaveResult, error) {
	res, err := s.backend.SaveSelected(ctx)
	if err != nil {
		emitStatus(ctx, s.emitter, "error", "Error saving selection: "+err.Error())
		return nil, fmt.Errorf("save selected: %w", err)
	}
	if res.Success {
		emitStatus(ctx, s.emitter, "info", "Saved to "+res.Path)
	}
	return res, nil
}
