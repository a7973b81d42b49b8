package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/gallery"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
)

type pageResponse struct {
	Category string                `json:"category"`
	Images   []domain.GalleryImage `json:"images"`
}

type feedUpdateResponse struct {
	Category string                `json:"category"`
	Added    []domain.GalleryImage `json:"added"`
	Total    int                   `json:"total"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

// GalleryPage fetches one page straight from the upstreams without touching
// the server feed.
func GalleryPage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := strings.TrimSpace(r.URL.Query().Get("category"))

		images, err := d.Loop.FetchPage(r.Context(), category)
		if err != nil {
			d.Logger.Warn("page fetch failed", logger.String("category", category), logger.Error(err))
			writeError(d, w, http.StatusBadGateway, "Failed to load images")
			return
		}

		writeJSON(d, w, http.StatusOK, pageResponse{Category: category, Images: images})
	}
}

// GalleryFeed returns the server feed as it stands.
func GalleryFeed(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(d, w, http.StatusOK, d.Gallery.Snapshot())
	}
}

// GalleryMore appends the next page to the server feed.
func GalleryMore(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		added, err := d.Gallery.LoadMore(r.Context())
		writeFeedUpdate(d, w, added, err)
	}
}

// GallerySetCategory switches the feed's category and reloads it.
func GallerySetCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categoryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(d, w, http.StatusBadRequest, err.Error())
			return
		}

		added, err := d.Gallery.SetCategory(r.Context(), strings.TrimSpace(req.Category))
		writeFeedUpdate(d, w, added, err)
	}
}

func writeFeedUpdate(d deps.Deps, w http.ResponseWriter, added []domain.GalleryImage, err error) {
	switch {
	case errors.Is(err, gallery.ErrFetchInProgress):
		w.Header().Set("Retry-After", "1")
		writeError(d, w, http.StatusTooManyRequests, "A page is already loading")
		return
	case err != nil:
		d.Logger.Warn("feed update failed", logger.Error(err))
		writeError(d, w, http.StatusBadGateway, "Failed to load images")
		return
	}

	if added == nil {
		added = []domain.GalleryImage{}
	}
	snap := d.Gallery.Snapshot()
	writeJSON(d, w, http.StatusOK, feedUpdateResponse{
		Category: snap.Category,
		Added:    added,
		Total:    len(snap.Images),
	})
}
