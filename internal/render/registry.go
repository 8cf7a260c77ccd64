package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"galleries/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Renderer Registry — one renderer per content domain
// ─────────────────────────────────────────────────────────────

var ErrUnknownDomain = errors.New("no renderer for content domain")

// Fragment is what a renderer hands to the frontend for one grid tile.
// Sandboxed fragments contain executable code and are wrapped in an
// iframe with sandbox="allow-scripts".
type Fragment struct {
	ContainerID string `json:"containerId"`
	Domain      string `json:"domain"`
	HTML        string `json:"html"`
	Sandboxed   bool   `json:"sandboxed"`
}

// TagChip is one clickable tag under a tile.
type TagChip struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
	// Selected is set when the tag's axis is constrained at this value.
	Selected bool `json:"selected"`
	// HasFeedback is set when the value was already recorded as feedback.
	HasFeedback bool `json:"hasFeedback"`
}

// Renderer turns a generation payload into markup. Content is opaque to
// everything but the renderer registered for its domain.
type Renderer interface {
	// Domain returns the content domain this renderer handles (e.g. "svg").
	Domain() string
	Render(containerID string, content json.RawMessage, label string) (Fragment, error)
}

// TagRenderer is implemented by renderers that lay out tag chips
// differently from DefaultTags.
type TagRenderer interface {
	Renderer
	RenderTags(gen domain.Generation, space domain.DesignSpace, feedback []string) []TagChip
}

// Registry maps content domains to renderers.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	cache     *Cache
}

// NewRegistry creates an empty registry. cache may be nil.
func NewRegistry(cache *Cache) *Registry {
	return &Registry{renderers: make(map[string]Renderer), cache: cache}
}

// Register adds a renderer. Panics on duplicate registration.
func (r *Registry) Register(p Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := p.Domain()
	if _, exists := r.renderers[d]; exists {
		panic(fmt.Sprintf("render registry: duplicate registration for domain %q", d))
	}
	r.renderers[d] = p
}

// Get returns the renderer for a domain.
func (r *Registry) Get(domainName string) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.renderers[domainName]
	return p, ok
}

// Domains lists the registered domains in sorted order.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.renderers))
	for d := range r.renderers {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Render dispatches to the renderer of domainName, going through the
// cache when one is configured.
func (r *Registry) Render(domainName, containerID string, content json.RawMessage, label string) (Fragment, error) {
	p, ok := r.Get(domainName)
	if !ok {
		return Fragment{}, fmt.Errorf("%w: %q", ErrUnknownDomain, domainName)
	}

	var key string
	if r.cache != nil {
		key = r.cache.Key(domainName, containerID, label, content)
		if f, ok := r.cache.Get(key); ok {
			return f, nil
		}
	}

	f, err := p.Render(containerID, content, label)
	if err != nil {
		return Fragment{}, fmt.Errorf("render %s %s: %w", domainName, containerID, err)
	}
	f.ContainerID = containerID
	f.Domain = domainName

	if r.cache != nil {
		r.cache.Set(key, f)
	}
	return f, nil
}

// Tags returns the tag chips for gen using its domain's TagRenderer when it
// has one.
func (r *Registry) Tags(domainName string, gen domain.Generation, space domain.DesignSpace, feedback []string) []TagChip {
	if p, ok := r.Get(domainName); ok {
		if tr, ok := p.(TagRenderer); ok {
			return tr.RenderTags(gen, space, feedback)
		}
	}
	return DefaultTags(gen, space)
}

// DefaultTags builds one chip per tag, selected when the tag's axis is
// constrained at the tag's value.
func DefaultTags(gen domain.Generation, space domain.DesignSpace) []TagChip {
	chips := make([]TagChip, 0, len(gen.Tags))
	for _, t := range gen.Tags {
		chip := TagChip{Dimension: t.Dimension, Value: t.Value}
		if a := space.Axis(t.Dimension); a != nil {
			chip.Selected = a.Status == domain.AxisConstrained && a.Value == t.Value
		}
		chips = append(chips, chip)
	}
	return chips
}
