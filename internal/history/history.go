// Package history keeps the bounded "recently viewed" list.
//
// Store owns the eviction policy and timestamps; a Backend only persists
// items keyed by URL and ordered by timestamp.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/metrics"
)

// DefaultMax is the bound used when none is configured.
const DefaultMax = 50

var (
	// ErrStorage wraps every failure reported by the backend.
	ErrStorage = errors.New("history storage failure")
	// ErrInvalidImage is returned when a record would break the image invariants.
	ErrInvalidImage = errors.New("invalid history image")
	// ErrInvalidMax is returned by SetMax for a bound below one.
	ErrInvalidMax = errors.New("history max must be at least 1")
)

// Backend persists history items keyed by URL.
type Backend interface {
	// Put inserts item or replaces the entry with the same URL.
	Put(ctx context.Context, item domain.HistoryItem) error
	Count(ctx context.Context) (int, error)
	// DeleteOldest removes up to n entries with the smallest timestamps and
	// returns how many were removed.
	DeleteOldest(ctx context.Context, n int) (int, error)
	// List returns every entry, newest first.
	List(ctx context.Context) ([]domain.HistoryItem, error)
	Clear(ctx context.Context) error
}

// Store is the bounded history. Writes are serialized, so the store behaves as
// a single logical writer even when several views are recorded concurrently.
type Store struct {
	backend Backend
	clock   func() time.Time
	metrics *metrics.Metrics
	logger  logger.Logger

	mu   sync.Mutex
	max  int
	last int64
	// slack is how far over max the store may stay because SetMax lowered the
	// bound. Any excess beyond it is trimmed on the next Record.
	slack int
}

type Option func(*Store)

func WithMax(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func NewStore(backend Backend, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		clock:   time.Now,
		max:     DefaultMax,
		logger:  log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record upserts img with a fresh timestamp, then evicts the oldest entry if
// the store is over its bound.
//
// When the insert succeeds but eviction fails, the stored item is returned
// together with an ErrStorage error. The next Record recounts the store and
// trims whatever is left over the bound.
func (s *Store) Record(ctx context.Context, img domain.GalleryImage) (domain.HistoryItem, error) {
	if err := img.Validate(); err != nil {
		return domain.HistoryItem{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := domain.HistoryItem{GalleryImage: img, Timestamp: s.nextTimestamp()}
	if err := s.backend.Put(ctx, item); err != nil {
		return domain.HistoryItem{}, fmt.Errorf("%w: put: %w", ErrStorage, err)
	}

	evicted, err := s.evict(ctx)
	s.metrics.HistoryRecorded(evicted)
	if err != nil {
		s.logger.Warn("history eviction failed",
			logger.String("url", img.URL),
			logger.Error(err))
		return item, fmt.Errorf("%w: evict: %w", ErrStorage, err)
	}
	return item, nil
}

// evict trims the store back to max plus the shrink slack, evicting at least
// one entry whenever it is over max. The excess is read from the backend, so
// a failed eviction or a restart never leaves the store over its bound for
// good. Must be called with mu held.
func (s *Store) evict(ctx context.Context) (int, error) {
	count, err := s.backend.Count(ctx)
	if err != nil {
		return 0, err
	}

	over := count - s.max
	if over <= 0 {
		s.slack = 0
		return 0, nil
	}

	n := max(1, over-s.slack)
	deleted, err := s.backend.DeleteOldest(ctx, n)
	s.slack = max(0, min(s.slack, over-deleted))
	return deleted, err
}

// nextTimestamp returns milliseconds since epoch, strictly greater than the
// previous value handed out by this store. Must be called with mu held.
func (s *Store) nextTimestamp() int64 {
	ts := s.clock().UnixMilli()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

// List returns every stored item, most recently viewed first.
func (s *Store) List(ctx context.Context) ([]domain.HistoryItem, error) {
	items, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStorage, err)
	}
	return items, nil
}

// Clear removes every stored item.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStorage, err)
	}
	s.slack = 0
	return nil
}

func (s *Store) Max() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// SetMax changes the bound. Lowering it does not trim existing entries: the
// difference becomes slack that later Record calls keep, evicting one entry
// each. Raising it uses up slack first.
func (s *Store) SetMax(n int) error {
	if n < 1 {
		return ErrInvalidMax
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < s.max {
		s.slack += s.max - n
	} else {
		s.slack = max(0, s.slack-(n-s.max))
	}
	s.max = n
	return nil
}
