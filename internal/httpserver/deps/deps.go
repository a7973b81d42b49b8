package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/MrSnakeDoc/nekogallery/internal/gallery"
	"github.com/MrSnakeDoc/nekogallery/internal/history"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/metrics"
	"github.com/MrSnakeDoc/nekogallery/internal/sources/upstream"
	"github.com/MrSnakeDoc/nekogallery/internal/store/sqlite"
)

// Catalog is the persisted image catalogue.
type Catalog interface {
	Images(ctx context.Context, q sqlite.ImageQuery) ([]sqlite.Image, error)
	Categories(ctx context.Context) ([]sqlite.Category, error)
	Ping(ctx context.Context) error
}

// Prefetch is the background fetcher as seen by handlers.
type Prefetch interface {
	Opportunistic(ctx context.Context, category string)
	LastRun() time.Time
}

// Pinger is any storage component that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time // for testing, defaults to time.Now
	AllowedHosts   []string         // Host headers allowed to reach ops endpoints
	AllowedCIDRS   []string         // IPs allowed to reach ops endpoints
	CORSOrigins    []string         // browser origins allowed to call the API
	TrustProxy     bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RequestTimeout time.Duration    // per-request deadline

	Registry       *upstream.Registry // enabled upstream sources
	Loop           *gallery.Loop      // stateless page fetcher
	Gallery        *gallery.Gallery   // server-side feed
	History        *history.Store     // bounded view history
	HistoryBackend string             // backend name, reported by /infra
	Redis          Pinger             // nil unless the redis backend is in use
	Catalog        Catalog            // sqlite catalogue
	Prefetcher     Prefetch           // nil disables opportunistic fetches
	CategoryCache  *cache.Cache       // caches GET /api/categories
	Metrics        *metrics.Metrics   // nil disables /metrics
	DownloadClient *http.Client       // client used by the download proxy
	DownloadBurst  int                // download rate limit burst per IP
	DownloadPerMin int                // download rate limit refill per IP per minute
	RefreshTrigger chan struct{}      // Channel to trigger a manual prefetch
}

// Now returns d.TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
