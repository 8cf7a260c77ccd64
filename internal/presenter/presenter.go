package presenter

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"galleries/internal/domain"
	"galleries/internal/render"
)

// DefaultConcurrency is used when New is given a non-positive limit.
const DefaultConcurrency = 4

// LoadingMessage is shown while a regeneration is in flight.
const LoadingMessage = "Generating new designs..."

// Item is one tile of the grid. Feedback and selection are recorded under
// ItemID; ContainerID only names the DOM node.
type Item struct {
	Index         int              `json:"index"`
	ContainerID   string           `json:"containerId"`
	ItemID        string           `json:"itemId"`
	Label         string           `json:"label"`
	Fragment      render.Fragment  `json:"fragment"`
	Prompt        string           `json:"prompt"`
	Tags          []render.TagChip `json:"tags"`
	FeedbackCount int              `json:"feedbackCount"`
	// Error is set instead of Fragment when the tile could not be rendered.
	Error string `json:"error,omitempty"`
}

// GridView is everything the frontend needs to draw the gallery.
type GridView struct {
	SessionID string `json:"sessionId"`
	Loading   bool   `json:"loading"`
	Message   string `json:"message,omitempty"`
	Items     []Item `json:"items"`
}

// Input is one render pass over a set of generations.
type Input struct {
	SessionID string
	// Domain is used for generations that carry no domain of their own.
	Domain      string
	Space       domain.DesignSpace
	Generations []domain.Generation
	Loading     bool
	// Feedback maps item ids to the feedback recorded for them.
	Feedback map[string][]string
	// ItemID overrides how tiles are identified for feedback. Nil means
	// the package ItemID.
	ItemID func(i int, gen domain.Generation) string
}

func (in Input) itemID(i int, gen domain.Generation) string {
	if in.ItemID != nil {
		return in.ItemID(i, gen)
	}
	return ItemID(in.SessionID, i, gen)
}

// Presenter renders generations into grid tiles through the renderer
// registry.
type Presenter struct {
	registry    *render.Registry
	concurrency int
}

func New(registry *render.Registry, concurrency int) *Presenter {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Presenter{registry: registry, concurrency: concurrency}
}

// ContainerID returns the DOM id of the tile at index i. It is reused by
// every batch, so feedback is keyed by ItemID instead.
func ContainerID(i int) string {
	return fmt.Sprintf("preview-%d", i)
}

// ItemID identifies generation i of a batch across batches and sessions:
// the session, the position and a hash of what was generated.
func ItemID(sessionID string, i int, gen domain.Generation) string {
	d := xxhash.New()
	d.Write(gen.Content)
	d.WriteString(gen.Prompt)
	return fmt.Sprintf("%s-%d-%016x", sessionID, i, d.Sum64())
}

// ItemIDs returns the ItemID of every generation in order.
func ItemIDs(sessionID string, gens []domain.Generation) []string {
	ids := make([]string, len(gens))
	for i, g := range gens {
		ids[i] = ItemID(sessionID, i, g)
	}
	return ids
}

// Present renders every generation in parallel and returns the tiles in
// generation order. A generation that fails to render yields a tile with
// Error set; only context cancellation fails the whole pass.
func (p *Presenter) Present(ctx context.Context, in Input) (GridView, error) {
	view := GridView{SessionID: in.SessionID, Loading: in.Loading, Items: []Item{}}
	if in.Loading {
		view.Message = LoadingMessage
		return view, nil
	}

	items := make([]Item, len(in.Generations))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, gen := range in.Generations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			items[i] = p.tile(i, gen, in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GridView{}, err
	}

	view.Items = items
	if len(items) == 0 {
		view.Message = "No designs yet"
	}
	return view, nil
}

func (p *Presenter) tile(i int, gen domain.Generation, in Input) Item {
	id := ContainerID(i)
	item := Item{
		Index:       i,
		ContainerID: id,
		ItemID:      in.itemID(i, gen),
		Label:       fmt.Sprintf("Item %d", i+1),
		Prompt:      gen.Prompt,
	}

	domainName := gen.Domain
	if domainName == "" {
		domainName = in.Domain
	}
	feedback := in.Feedback[item.ItemID]
	item.FeedbackCount = len(feedback)
	item.Tags = p.registry.Tags(domainName, gen, in.Space, feedback)

	f, err := p.registry.Render(domainName, id, gen.Content, item.Label)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Fragment = f
	return item
}
