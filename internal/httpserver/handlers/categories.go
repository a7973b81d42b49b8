package handlers

import (
	"net/http"

	"github.com/patrickmn/go-cache"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/store/sqlite"
)

const categoriesCacheKey = "categories"

// Categories lists the catalogue's categories. The list only changes at
// startup, so it is served from cache.
func Categories(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.CategoryCache != nil {
			if cached, ok := d.CategoryCache.Get(categoriesCacheKey); ok {
				writeJSON(d, w, http.StatusOK, cached)
				return
			}
		}

		categories, err := d.Catalog.Categories(r.Context())
		if err != nil {
			d.Logger.Error("failed to fetch categories", logger.Error(err))
			writeError(d, w, http.StatusInternalServerError, "Failed to fetch categories")
			return
		}
		if categories == nil {
			categories = []sqlite.Category{}
		}

		if d.CategoryCache != nil {
			d.CategoryCache.Set(categoriesCacheKey, categories, cache.DefaultExpiration)
		}
		writeJSON(d, w, http.StatusOK, categories)
	}
}
