// Package gallery implements the image acquisition loop: it fills pages of
// normalized images from the upstream registry and owns the running feed.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/metrics"
	"github.com/MrSnakeDoc/nekogallery/internal/sources/upstream"
)

// DefaultPageSize is the number of upstream calls made per page.
const DefaultPageSize = 10

var (
	// ErrNoSources means the registry cannot serve the request at all.
	ErrNoSources = errors.New("no upstream source can serve the request")
	// ErrFetchInProgress is returned when a fetch arrives while another is in flight.
	ErrFetchInProgress = errors.New("a page fetch is already in flight")
	// ErrPageFailed wraps any failure that aborts a whole page.
	ErrPageFailed = errors.New("failed to load images")
)

// Picker supplies the randomness for source and category picks.
// *rand.Rand from math/rand/v2 satisfies it.
type Picker interface {
	IntN(n int) int
}

type lockedPicker struct {
	mu sync.Mutex
	p  Picker
}

func (l *lockedPicker) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.IntN(n)
}

// Loop fetches pages from the upstream registry. It holds no feed state and is
// safe for concurrent use.
type Loop struct {
	registry *upstream.Registry
	client   *http.Client
	pageSize int
	picker   Picker
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

func WithPageSize(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

func WithPicker(p Picker) LoopOption {
	return func(l *Loop) { l.picker = &lockedPicker{p: p} }
}

func WithHTTPClient(c *http.Client) LoopOption {
	return func(l *Loop) { l.client = c }
}

func WithMetrics(m *metrics.Metrics) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

// NewLoop builds a loop over registry. Upstream timeouts are left to the HTTP client.
func NewLoop(registry *upstream.Registry, log logger.Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		registry: registry,
		client:   &http.Client{},
		pageSize: DefaultPageSize,
		picker:   &lockedPicker{p: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))},
		logger:   log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PageSize returns the configured page size.
func (l *Loop) PageSize() int { return l.pageSize }

// FetchPage fetches one page for filter ("" means no filter).
func (l *Loop) FetchPage(ctx context.Context, filter string) ([]domain.GalleryImage, error) {
	return l.FetchN(ctx, l.pageSize, filter)
}

// FetchN makes n upstream calls and returns the images that resolved.
// A failing item is skipped; only a missing source or a cancelled context
// fails the page.
func (l *Loop) FetchN(ctx context.Context, n int, filter string) ([]domain.GalleryImage, error) {
	page := make([]domain.GalleryImage, 0, n)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			l.metrics.PageFetched(metrics.OutcomeError)
			return nil, err
		}

		src, category, err := l.pick(filter)
		if err != nil {
			l.metrics.PageFetched(metrics.OutcomeError)
			return nil, err
		}

		start := time.Now()
		img, err := upstream.Fetch(ctx, l.client, src, category)
		l.metrics.ObserveUpstream(string(src.Name()), outcomeOf(err), time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				l.metrics.PageFetched(metrics.OutcomeError)
				return nil, ctx.Err()
			}
			l.logger.Debug("skipping upstream item",
				logger.String("source", string(src.Name())),
				logger.String("category", category),
				logger.Error(err))
			continue
		}

		page = append(page, img)
	}

	if len(page) == 0 {
		l.metrics.PageFetched(metrics.OutcomeEmpty)
	} else {
		l.metrics.PageFetched(metrics.OutcomeOK)
	}
	return page, nil
}

// pick selects the source and stored-form category for one item.
// A filter always goes to nsfw_api, the only source with arbitrary categories.
func (l *Loop) pick(filter string) (upstream.Source, string, error) {
	if filter != "" {
		src, ok := l.registry.Get(domain.SourceNSFW)
		if !ok {
			return nil, "", fmt.Errorf("%w: category filter needs %s", ErrNoSources, domain.SourceNSFW)
		}
		return src, filter, nil
	}

	sources := l.registry.Sources()
	if len(sources) == 0 {
		return nil, "", ErrNoSources
	}
	src := sources[l.picker.IntN(len(sources))]

	category := ""
	if cats := src.Categories(); len(cats) > 0 {
		category = cats[l.picker.IntN(len(cats))]
	}
	return src, category, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, upstream.ErrStatus):
		return metrics.OutcomeStatus
	case errors.Is(err, upstream.ErrNoImage):
		return metrics.OutcomeNoImage
	default:
		return metrics.OutcomeError
	}
}
