package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/gallery"
	"github.com/MrSnakeDoc/nekogallery/internal/history"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/metrics"
	"github.com/MrSnakeDoc/nekogallery/internal/sources/upstream"
	"github.com/MrSnakeDoc/nekogallery/internal/store/memory"
	"github.com/MrSnakeDoc/nekogallery/internal/store/sqlite"
)

type testEnv struct {
	handler  http.Handler
	deps     deps.Deps
	upstream *httpmock.MockTransport
	trigger  chan struct{}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "gallery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	var n atomic.Int32
	transport.RegisterResponder(http.MethodGet, `=~^https://nsfw\.test/`,
		func(*http.Request) (*http.Response, error) {
			return httpmock.NewStringResponse(http.StatusOK,
				fmt.Sprintf(`{"url_japan":"https://cdn.test/%d.jpg"}`, n.Add(1))), nil
		})

	registry := upstream.NewRegistry(upstream.NewNSFW("https://nsfw.test/", []string{"neko"}))
	loop := gallery.NewLoop(registry, log,
		gallery.WithPageSize(3),
		gallery.WithHTTPClient(&http.Client{Transport: transport}),
		gallery.WithMetrics(m),
	)
	feed := gallery.New(loop, log, gallery.WithPageHook(func(ctx context.Context, page []domain.GalleryImage) {
		_, _ = db.SaveImages(ctx, page)
	}))

	trigger := make(chan struct{}, 1)
	d := deps.Deps{
		Logger:         log,
		StartTime:      time.Now(),
		Version:        "test",
		RequestTimeout: 5 * time.Second,
		CORSOrigins:    []string{"*"},
		Registry:       registry,
		Loop:           loop,
		Gallery:        feed,
		History:        history.NewStore(memory.NewHistoryBackend(), log, history.WithMax(3)),
		HistoryBackend: "memory",
		Catalog:        db,
		CategoryCache:  cache.New(time.Minute, time.Minute),
		Metrics:        m,
		DownloadBurst:  100,
		DownloadPerMin: 100,
		RefreshTrigger: trigger,
	}

	return &testEnv{handler: NewRouter(log, d), deps: d, upstream: transport, trigger: trigger}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.EqualValues(t, 1, body["upstreams"])
}

func TestReadyzAndInfra(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/infra", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Mode       string                    `json:"mode"`
		Components map[string]map[string]any `json:"components"`
	}](t, rec)
	assert.Equal(t, "optimal", body.Mode)
	assert.Equal(t, "memory", body.Components["history"]["backend"])
	assert.Equal(t, "disabled", body.Components["prefetch"]["mode"])
}

func TestGalleryPageDoesNotTouchFeed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/gallery/page?category=neko", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Category string                `json:"category"`
		Images   []domain.GalleryImage `json:"images"`
	}](t, rec)
	assert.Equal(t, "neko", body.Category)
	assert.Len(t, body.Images, 3)
	assert.Empty(t, env.deps.Gallery.Images())
}

func TestGalleryFeedFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/gallery/more", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	more := decode[struct {
		Added []domain.GalleryImage `json:"added"`
		Total int                   `json:"total"`
	}](t, rec)
	assert.Len(t, more.Added, 3)
	assert.Equal(t, 3, more.Total)

	rec = env.do(t, http.MethodPut, "/api/gallery/category", map[string]string{"category": "neko"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/gallery", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[gallery.Snapshot](t, rec)
	assert.Equal(t, "neko", snap.Category)
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Images, 3, "category change resets the feed")

	// Both pages went through the page hook into the catalogue.
	rec = env.do(t, http.MethodGet, "/api/images?limit=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]sqlite.Image](t, rec), 6)
}

func TestGallerySetCategoryRejectsBadBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPut, "/api/gallery/category", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGalleryUpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.RegisterResponder(http.MethodGet, `=~^https://nsfw\.test/`,
		httpmock.NewErrorResponder(fmt.Errorf("connection refused")))

	rec := env.do(t, http.MethodPost, "/api/gallery/more", nil)
	require.Equal(t, http.StatusOK, rec.Code, "failed items are skipped, not fatal")
	assert.Equal(t, 0, decode[struct {
		Total int `json:"total"`
	}](t, rec).Total)
}

func TestImagesRejectsBadPaging(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"page=0", "page=abc", "limit=-1"} {
		rec := env.do(t, http.MethodGet, "/api/images?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestCategoriesAreCached(t *testing.T) {
	env := newTestEnv(t)
	db := env.deps.Catalog.(*sqlite.DB)
	_, err := db.PopulateCategories(t.Context())
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]sqlite.Category](t, rec), len(domain.DefaultCategories()))

	_, cached := env.deps.CategoryCache.Get("categories")
	assert.True(t, cached)
}

func TestHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	img := domain.NewGalleryImage("https://cdn.test/a.jpg", domain.SourceNSFW, "neko")
	rec := env.do(t, http.MethodPost, "/api/history", img)
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[domain.HistoryItem](t, rec)
	assert.Equal(t, img.URL, item.URL)
	assert.Positive(t, item.Timestamp)

	rec = env.do(t, http.MethodPost, "/api/history", domain.GalleryImage{URL: "https://cdn.test/b.jpg", APISource: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.HistoryItem](t, rec), 1)

	rec = env.do(t, http.MethodPut, "/api/history/max", map[string]int{"max": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/history/max", map[string]int{"max": 7})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/history/max", nil)
	assert.Equal(t, 7, decode[map[string]int](t, rec)["max"])

	rec = env.do(t, http.MethodDelete, "/api/history", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestRefreshTrigger(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "trigger already pending")

	<-env.trigger
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/history", nil)
	req.Header.Set("Origin", "https://gallery.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/gallery/page", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nsfw_api")
}
