package gallery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/metrics"
	"github.com/MrSnakeDoc/nekogallery/internal/sources/upstream"
)

// scriptedPicker replays fixed picks, then keeps returning 0.
type scriptedPicker struct {
	picks []int
	calls []int
}

func (p *scriptedPicker) IntN(n int) int {
	p.calls = append(p.calls, n)
	if len(p.picks) == 0 {
		return 0
	}
	v := p.picks[0]
	p.picks = p.picks[1:]
	return v
}

func newTransport() (*http.Client, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	return &http.Client{Transport: transport}, transport
}

// failEvery answers 500 on the listed call numbers (1-based) and a unique url_japan otherwise.
func failEvery(failing ...int) httpmock.Responder {
	var n atomic.Int32
	fail := make(map[int]bool, len(failing))
	for _, f := range failing {
		fail[f] = true
	}
	return func(*http.Request) (*http.Response, error) {
		call := int(n.Add(1))
		if fail[call] {
			return httpmock.NewStringResponse(http.StatusInternalServerError, "boom"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK,
			fmt.Sprintf(`{"url_japan":"https://cdn.example/%d.jpg"}`, call)), nil
	}
}

func TestFetchPageSkipsFailedItems(t *testing.T) {
	client, transport := newTransport()
	transport.RegisterResponder(http.MethodGet, "https://api.n-sfw.com/nsfw/neko", failEvery(2, 5, 8))

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	loop := NewLoop(upstream.DefaultRegistry(), logger.NewNop(), WithHTTPClient(client), WithMetrics(m))
	page, err := loop.FetchPage(context.Background(), "neko")
	require.NoError(t, err)

	assert.Equal(t, DefaultPageSize, transport.GetTotalCallCount())
	require.Len(t, page, 7)
	for _, img := range page {
		assert.Equal(t, domain.SourceNSFW, img.APISource)
		assert.Equal(t, "neko", img.CategoryName())
	}

	assert.InDelta(t, 3, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("nsfw_api", metrics.OutcomeStatus)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Pages.WithLabelValues(metrics.OutcomeOK)), 0)
}

func TestFetchPageAllFailedIsEmptyNotError(t *testing.T) {
	client, transport := newTransport()
	transport.RegisterResponder(http.MethodGet, "https://api.n-sfw.com/nsfw/neko",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	loop := NewLoop(upstream.DefaultRegistry(), logger.NewNop(), WithHTTPClient(client), WithPageSize(4))
	page, err := loop.FetchPage(context.Background(), "neko")
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, 4, transport.GetTotalCallCount())
}

func TestFetchPageUnfilteredPicks(t *testing.T) {
	client, transport := newTransport()
	transport.RegisterResponder(http.MethodGet, "https://api.waifu.pics/nsfw/blowjob",
		httpmock.NewStringResponder(http.StatusOK, `{"url":"https://i.waifu.pics/b.png"}`))
	transport.RegisterResponder(http.MethodGet, upstream.DefaultNekosMoeEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{"images":[{"id":"abc"}]}`))

	// Item 1: waifu_pics_api (index 1), category index 2 (blowjob).
	// Item 2: nekos_moe_api (index 2), which takes no category.
	picker := &scriptedPicker{picks: []int{1, 2, 2}}
	loop := NewLoop(upstream.DefaultRegistry(), logger.NewNop(),
		WithHTTPClient(client), WithPicker(picker), WithPageSize(2))

	page, err := loop.FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page, 2)

	assert.Equal(t, domain.SourceWaifuPics, page[0].APISource)
	assert.Equal(t, "waifu_blowjob", page[0].CategoryName())
	assert.Equal(t, domain.SourceNekosMoe, page[1].APISource)
	assert.Nil(t, page[1].Category)
	assert.Equal(t, "https://nekos.moe/image/abc.jpg", page[1].URL)

	assert.Equal(t, []int{3, 3, 3}, picker.calls)
}

func TestFetchPageFilterNeedsNSFW(t *testing.T) {
	loop := NewLoop(upstream.NewRegistry(upstream.NewWaifuPics("", nil)), logger.NewNop())
	_, err := loop.FetchPage(context.Background(), "neko")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestFetchPageEmptyRegistry(t *testing.T) {
	loop := NewLoop(upstream.NewRegistry(), logger.NewNop())
	_, err := loop.FetchPage(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestFetchPageCancelledContext(t *testing.T) {
	client, transport := newTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop(upstream.DefaultRegistry(), logger.NewNop(), WithHTTPClient(client))
	_, err := loop.FetchPage(ctx, "neko")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, transport.GetTotalCallCount())
}
