// Package memory provides an in-process history backend. It is used when no
// persistent store is configured and as the fallback when one is unreachable.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

// HistoryBackend keeps history items in a map keyed by URL.
type HistoryBackend struct {
	mu    sync.RWMutex
	items map[string]domain.HistoryItem
}

func NewHistoryBackend() *HistoryBackend {
	return &HistoryBackend{items: make(map[string]domain.HistoryItem)}
}

func (b *HistoryBackend) Put(_ context.Context, item domain.HistoryItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[item.URL] = item
	return nil
}

func (b *HistoryBackend) Count(context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items), nil
}

func (b *HistoryBackend) DeleteOldest(_ context.Context, n int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ordered := b.sorted()
	if n > len(ordered) {
		n = len(ordered)
	}
	// sorted is newest first, so the oldest sit at the tail
	for _, item := range ordered[len(ordered)-n:] {
		delete(b.items, item.URL)
	}
	return n, nil
}

func (b *HistoryBackend) List(context.Context) ([]domain.HistoryItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sorted(), nil
}

func (b *HistoryBackend) Clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = make(map[string]domain.HistoryItem)
	return nil
}

// sorted returns the items newest first. Caller must hold the lock.
func (b *HistoryBackend) sorted() []domain.HistoryItem {
	out := make([]domain.HistoryItem, 0, len(b.items))
	for _, item := range b.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].URL < out[j].URL
	})
	return out
}
