package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

func item(url string, ts int64) domain.HistoryItem {
	return domain.HistoryItem{
		GalleryImage: domain.NewGalleryImage(url, domain.SourceNSFW, "neko"),
		Timestamp:    ts,
	}
}

func TestNewHistoryBackend(t *testing.T) {
	b := NewHistoryBackend()
	n, err := b.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("new backend should be empty, got %d", n)
	}
}

func TestPutOverwritesSameURL(t *testing.T) {
	ctx := context.Background()
	b := NewHistoryBackend()

	_ = b.Put(ctx, item("https://a", 1))
	_ = b.Put(ctx, item("https://a", 5))

	items, _ := b.List(ctx)
	if len(items) != 1 {
		t.Fatalf("Put() duplicated url, got %d items", len(items))
	}
	if items[0].Timestamp != 5 {
		t.Errorf("Put() kept timestamp %d, want 5", items[0].Timestamp)
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	b := NewHistoryBackend()

	_ = b.Put(ctx, item("https://b", 20))
	_ = b.Put(ctx, item("https://a", 10))
	_ = b.Put(ctx, item("https://c", 30))

	items, _ := b.List(ctx)
	want := []string{"https://c", "https://b", "https://a"}
	for i, url := range want {
		if items[i].URL != url {
			t.Errorf("List()[%d] = %s, want %s", i, items[i].URL, url)
		}
	}
}

func TestDeleteOldest(t *testing.T) {
	ctx := context.Background()
	b := NewHistoryBackend()
	for i := 1; i <= 4; i++ {
		_ = b.Put(ctx, item(fmt.Sprintf("https://%d", i), int64(i)))
	}

	deleted, err := b.DeleteOldest(ctx, 2)
	if err != nil {
		t.Fatalf("DeleteOldest() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteOldest() = %d, want 2", deleted)
	}

	items, _ := b.List(ctx)
	if len(items) != 2 || items[1].URL != "https://3" {
		t.Errorf("DeleteOldest() left %+v", items)
	}

	deleted, _ = b.DeleteOldest(ctx, 10)
	if deleted != 2 {
		t.Errorf("DeleteOldest() past size = %d, want 2", deleted)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	b := NewHistoryBackend()
	_ = b.Put(ctx, item("https://a", 1))

	if err := b.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := b.Count(ctx); n != 0 {
		t.Errorf("Clear() left %d items", n)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	b := NewHistoryBackend()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = b.Put(ctx, item(fmt.Sprintf("https://%d", i), int64(i)))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = b.List(ctx)
		}()
	}
	wg.Wait()

	if n, _ := b.Count(ctx); n != 10 {
		t.Errorf("Count() = %d, want 10", n)
	}
}
