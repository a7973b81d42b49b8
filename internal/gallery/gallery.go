package gallery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/metrics"
)

// DefaultFeedLimit caps how many images a Gallery keeps.
const DefaultFeedLimit = 500

// PageHook receives every page a Gallery appends (deduplicated, never empty).
type PageHook func(ctx context.Context, page []domain.GalleryImage)

// Gallery is one feed: the running list of images for the current category.
//
// At most one fetch runs at a time. A fetch requested while another is in
// flight is dropped with ErrFetchInProgress, never queued. In-flight requests
// are not cancelled on a category change: their images land in whatever list
// is current when they complete.
type Gallery struct {
	loop    *Loop
	limit   int
	onPage  PageHook
	metrics *metrics.Metrics
	logger  logger.Logger

	inFlight atomic.Bool

	mu       sync.RWMutex
	category string
	images   []domain.GalleryImage
	seen     map[string]struct{}
}

// Option customizes a Gallery.
type Option func(*Gallery)

// WithFeedLimit bounds the running list; the oldest images are dropped first.
func WithFeedLimit(n int) Option {
	return func(g *Gallery) {
		if n > 0 {
			g.limit = n
		}
	}
}

func WithPageHook(h PageHook) Option {
	return func(g *Gallery) { g.onPage = h }
}

func WithGalleryMetrics(m *metrics.Metrics) Option {
	return func(g *Gallery) { g.metrics = m }
}

func New(loop *Loop, log logger.Logger, opts ...Option) *Gallery {
	g := &Gallery{
		loop:   loop,
		limit:  DefaultFeedLimit,
		logger: log,
		seen:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Snapshot is a point-in-time copy of the feed.
type Snapshot struct {
	Category string                `json:"category"`
	Loading  bool                  `json:"loading"`
	Images   []domain.GalleryImage `json:"images"`
}

// SetCategory switches the filter ("" clears it), empties the list and
// fetches a fresh page.
func (g *Gallery) SetCategory(ctx context.Context, category string) ([]domain.GalleryImage, error) {
	g.mu.Lock()
	g.category = category
	g.images = nil
	g.seen = make(map[string]struct{})
	g.mu.Unlock()

	return g.fetch(ctx, category)
}

// LoadMore appends the next page for the current category.
func (g *Gallery) LoadMore(ctx context.Context) ([]domain.GalleryImage, error) {
	return g.fetch(ctx, g.Category())
}

// Category returns the active filter.
func (g *Gallery) Category() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.category
}

// Loading reports whether a fetch is in flight.
func (g *Gallery) Loading() bool { return g.inFlight.Load() }

// Images returns a copy of the running list.
func (g *Gallery) Images() []domain.GalleryImage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.GalleryImage, len(g.images))
	copy(out, g.images)
	return out
}

func (g *Gallery) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	images := make([]domain.GalleryImage, len(g.images))
	copy(images, g.images)
	return Snapshot{Category: g.category, Loading: g.inFlight.Load(), Images: images}
}

func (g *Gallery) fetch(ctx context.Context, category string) (added []domain.GalleryImage, err error) {
	if !g.inFlight.CompareAndSwap(false, true) {
		g.metrics.PageFetched(metrics.OutcomeDropped)
		return nil, ErrFetchInProgress
	}
	defer g.inFlight.Store(false)

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("page fetch panicked", logger.String("panic", fmt.Sprint(r)))
			added, err = nil, fmt.Errorf("%w: %v", ErrPageFailed, r)
		}
	}()

	page, err := g.loop.FetchPage(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageFailed, err)
	}

	added = g.appendPage(page)
	if g.onPage != nil && len(added) > 0 {
		g.onPage(ctx, added)
	}
	return added, nil
}

// appendPage adds the unseen images of page and enforces the feed limit.
func (g *Gallery) appendPage(page []domain.GalleryImage) []domain.GalleryImage {
	g.mu.Lock()
	defer g.mu.Unlock()

	added := make([]domain.GalleryImage, 0, len(page))
	for _, img := range page {
		if _, dup := g.seen[img.URL]; dup {
			continue
		}
		g.seen[img.URL] = struct{}{}
		g.images = append(g.images, img)
		added = append(added, img)
	}

	if over := len(g.images) - g.limit; over > 0 {
		for _, old := range g.images[:over] {
			delete(g.seen, old.URL)
		}
		g.images = append([]domain.GalleryImage(nil), g.images[over:]...)
	}

	return added
}
