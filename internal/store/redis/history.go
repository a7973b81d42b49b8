package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

// HistoryBackend stores history in a sorted set (URL scored by timestamp)
// plus a hash holding the encoded items. Both are written in one MULTI.
type HistoryBackend struct {
	store *Store
}

// NewHistoryBackend creates a history backend on top of store
func NewHistoryBackend(store *Store) *HistoryBackend {
	return &HistoryBackend{store: store}
}

// Put upserts an item; re-putting a URL moves it to its new score
func (b *HistoryBackend) Put(ctx context.Context, item domain.HistoryItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal history item: %w", err)
	}

	_, err = b.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, HistoryOrderKey(), redis.Z{Score: float64(item.Timestamp), Member: item.URL})
		pipe.HSet(ctx, HistoryItemsKey(), item.URL, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save history item: %w", err)
	}
	return nil
}

// Count returns the number of stored items
func (b *HistoryBackend) Count(ctx context.Context) (int, error) {
	n, err := b.store.client.ZCard(ctx, HistoryOrderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return int(n), nil
}

// DeleteOldest removes the n lowest-scored items
func (b *HistoryBackend) DeleteOldest(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	urls, err := b.store.client.ZRange(ctx, HistoryOrderKey(), 0, int64(n-1)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read oldest history entries: %w", err)
	}
	if len(urls) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}

	_, err = b.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, HistoryOrderKey(), members...)
		pipe.HDel(ctx, HistoryItemsKey(), urls...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to evict history entries: %w", err)
	}
	return len(urls), nil
}

// List returns all items, highest score first
func (b *HistoryBackend) List(ctx context.Context) ([]domain.HistoryItem, error) {
	urls, err := b.store.client.ZRevRange(ctx, HistoryOrderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history order: %w", err)
	}
	if len(urls) == 0 {
		return []domain.HistoryItem{}, nil
	}

	values, err := b.store.client.HMGet(ctx, HistoryItemsKey(), urls...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history items: %w", err)
	}

	return decodeHistory(values), nil
}

// Clear removes the whole history
func (b *HistoryBackend) Clear(ctx context.Context) error {
	if err := b.store.client.Del(ctx, HistoryOrderKey(), HistoryItemsKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// decodeHistory keeps the order of values and skips missing or corrupt entries.
func decodeHistory(values []interface{}) []domain.HistoryItem {
	items := make([]domain.HistoryItem, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var item domain.HistoryItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}
