package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/mw"
)

func init() { Register("download", registerDownload, downloadLimit) }

// downloadLimit shares one per-client bucket across both download paths.
func downloadLimit(d deps.Deps) Middleware {
	return mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.DownloadBurst,
		RefillPerIPPerMin: d.DownloadPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	})
}

func registerDownload(r chi.Router, d deps.Deps) {
	h := handlers.Download(d)
	r.Get("/download", h)
	r.Get("/api/download", h)
}
