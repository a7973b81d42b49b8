package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

func TestDecodeHistorySkipsBadEntries(t *testing.T) {
	values := []interface{}{
		`{"url":"https://b","apiSource":"nsfw_api","category":"neko","timestamp":2}`,
		nil,
		`not json`,
		`{"url":"https://a","apiSource":"nekos_moe_api","category":null,"timestamp":1}`,
	}

	items := decodeHistory(values)
	require.Len(t, items, 2)
	assert.Equal(t, "https://b", items[0].URL)
	assert.Equal(t, "neko", items[0].CategoryName())
	assert.Equal(t, int64(1), items[1].Timestamp)
	assert.Nil(t, items[1].Category)
}

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "gallery:history:order", HistoryOrderKey())
	assert.Equal(t, "gallery:history:items", HistoryItemsKey())
}

// newLiveBackend connects to GALLERY_TEST_REDIS_ADDR or skips.
func newLiveBackend(t *testing.T) *HistoryBackend {
	t.Helper()
	addr := os.Getenv("GALLERY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GALLERY_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store := NewStore(client)
	if err := store.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	b := NewHistoryBackend(store)
	require.NoError(t, b.Clear(ctx))
	t.Cleanup(func() { _ = b.Clear(context.Background()) })
	return b
}

func TestHistoryBackendLive(t *testing.T) {
	b := newLiveBackend(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		item := domain.HistoryItem{
			GalleryImage: domain.NewGalleryImage(fmt.Sprintf("https://%d", i), domain.SourceNSFW, "neko"),
			Timestamp:    int64(i),
		}
		require.NoError(t, b.Put(ctx, item))
	}

	// Re-put moves the oldest to the front without growing the set.
	first := domain.HistoryItem{
		GalleryImage: domain.NewGalleryImage("https://1", domain.SourceNSFW, "neko"),
		Timestamp:    10,
	}
	require.NoError(t, b.Put(ctx, first))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	deleted, err := b.DeleteOldest(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	items, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "https://1", items[0].URL)
	assert.Equal(t, "https://4", items[1].URL)
}
