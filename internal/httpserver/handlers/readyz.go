package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready once the catalogue answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := d.Catalog.Ping(ctx); err != nil {
			d.Logger.Warn("readiness check failed", logger.Error(err))
			writeJSON(d, w, http.StatusServiceUnavailable, readyzResponse{Ready: false, Error: "catalog unavailable"})
			return
		}
		writeJSON(d, w, http.StatusOK, readyzResponse{Ready: true})
	}
}
