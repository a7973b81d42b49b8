package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/store/sqlite"
)

// Images serves one page of the catalogue. A few fresh images are fetched and
// catalogued first so the listing keeps growing; that step never fails the request.
func Images(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, err := positiveInt(q.Get("page"), 1)
		if err != nil {
			writeError(d, w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		limit, err := positiveInt(q.Get("limit"), sqlite.DefaultImageLimit)
		if err != nil {
			writeError(d, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		query := sqlite.ImageQuery{
			Page:      page,
			Limit:     limit,
			Category:  strings.TrimSpace(q.Get("category")),
			SortBy:    q.Get("sortBy"),
			SortOrder: strings.ToLower(q.Get("sortOrder")),
		}

		if d.Prefetcher != nil {
			d.Prefetcher.Opportunistic(r.Context(), query.Category)
		}

		images, err := d.Catalog.Images(r.Context(), query)
		if err != nil {
			d.Logger.Error("failed to fetch images", logger.Error(err))
			writeError(d, w, http.StatusInternalServerError, "Failed to fetch images")
			return
		}

		if images == nil {
			images = []sqlite.Image{}
		}
		writeJSON(d, w, http.StatusOK, images)
	}
}

func positiveInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
