package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/metrics"
	"github.com/MrSnakeDoc/nekogallery/internal/utils"
)

const maxRedirects = 10

// Download proxies an image so the browser can save it despite cross-origin
// restrictions. Redirects are followed by the client.
func Download(d deps.Deps) http.HandlerFunc {
	client := d.DownloadClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("url")
		if raw == "" {
			d.Metrics.Download(metrics.OutcomeInvalid)
			http.Error(w, "Image URL is required", http.StatusBadRequest)
			return
		}

		target, err := url.Parse(raw)
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
			d.Metrics.Download(metrics.OutcomeInvalid)
			http.Error(w, "Invalid image URL", http.StatusBadRequest)
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), http.NoBody)
		if err != nil {
			d.Metrics.Download(metrics.OutcomeInvalid)
			http.Error(w, "Invalid image URL", http.StatusBadRequest)
			return
		}

		// Copy the client per request to remember where redirects led.
		final := target
		c := *client
		c.CheckRedirect = func(next *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("stopped after too many redirects")
			}
			final = next.URL
			return nil
		}

		resp, err := c.Do(req)
		if err != nil {
			d.Metrics.Download(metrics.OutcomeError)
			d.Logger.Warn("error proxying download",
				logger.String("url", raw),
				logger.Error(err))
			http.Error(w, "Failed to download image.", http.StatusInternalServerError)
			return
		}
		defer utils.Close(resp.Body)

		if resp.StatusCode != http.StatusOK {
			d.Metrics.Download(metrics.OutcomeStatus)
			msg := "Failed to download image."
			if final != target {
				msg = "Failed to download image after redirect."
			}
			http.Error(w, msg, resp.StatusCode)
			return
		}

		h := w.Header()
		h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, downloadFilename(final, d.Now())))
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			h.Set("Content-Type", ct)
		}
		if resp.ContentLength >= 0 {
			h.Set("Content-Length", fmt.Sprint(resp.ContentLength))
		}
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, resp.Body); err != nil {
			d.Metrics.Download(metrics.OutcomeError)
			d.Logger.Debug("download stream interrupted", logger.String("url", raw), logger.Error(err))
			return
		}
		d.Metrics.Download(metrics.OutcomeOK)
	}
}

// downloadFilename uses the last path segment of u, or image-<ms>.jpg when
// the path has none. Quotes and control characters are dropped.
func downloadFilename(u *url.URL, now time.Time) string {
	name := path.Base(u.Path)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' || r == '\\' {
			return -1
		}
		return r
	}, name)

	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("image-%d.jpg", now.UnixMilli())
	}
	return name
}
