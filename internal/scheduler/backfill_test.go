package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/nekogallery/internal/imageinfo"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/store/sqlite"
)

type fakeDimensionStore struct {
	mu      sync.Mutex
	images  []sqlite.Image
	updates map[uint][2]int
	listErr error
}

func (s *fakeDimensionStore) ImagesMissingDimensions(_ context.Context, limit int) ([]sqlite.Image, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if limit < len(s.images) {
		return s.images[:limit], nil
	}
	return s.images, nil
}

func (s *fakeDimensionStore) UpdateDimensions(_ context.Context, id uint, w, h int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = make(map[uint][2]int)
	}
	s.updates[id] = [2]int{w, h}
	return nil
}

type fakeInspector struct {
	infos map[string]imageinfo.Info
}

func (p *fakeInspector) Inspect(_ context.Context, url string) (imageinfo.Info, error) {
	info, ok := p.infos[url]
	if !ok {
		return imageinfo.Info{}, imageinfo.ErrUndecodable
	}
	return info, nil
}

func TestDimensionBackfillRun(t *testing.T) {
	store := &fakeDimensionStore{images: []sqlite.Image{
		{ID: 1, URL: "https://a"},
		{ID: 2, URL: "https://b"},
		{ID: 3, URL: "https://c"},
	}}
	inspector := &fakeInspector{infos: map[string]imageinfo.Info{
		"https://a": {Width: 800, Height: 600, Format: "jpeg"},
		"https://c": {Format: "webp"},
	}}

	b := NewDimensionBackfill(store, inspector, logger.NewNop(), time.Hour, 2, 10)
	resolved, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, resolved)
	assert.Equal(t, map[uint][2]int{1: {800, 600}, 2: {0, 0}, 3: {0, 0}}, store.updates)
}

func TestDimensionBackfillRespectsBatch(t *testing.T) {
	store := &fakeDimensionStore{images: []sqlite.Image{{ID: 1, URL: "https://a"}, {ID: 2, URL: "https://b"}}}
	b := NewDimensionBackfill(store, &fakeInspector{}, logger.NewNop(), time.Hour, 0, 1)

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.updates, 1)
}

func TestDimensionBackfillListError(t *testing.T) {
	store := &fakeDimensionStore{listErr: errors.New("no such table")}
	b := NewDimensionBackfill(store, &fakeInspector{}, logger.NewNop(), time.Hour, 1, 1)

	_, err := b.Run(context.Background())
	assert.Error(t, err)
}

func TestDimensionBackfillStartStop(t *testing.T) {
	store := &fakeDimensionStore{}
	b := NewDimensionBackfill(store, &fakeInspector{}, logger.NewNop(), 10*time.Millisecond, 1, 1)

	require.NoError(t, b.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	b.Stop()
}
