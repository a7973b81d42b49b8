package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/history"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
)

type maxPayload struct {
	Max int `json:"max"`
}

// HistoryList returns the history, most recently viewed first.
func HistoryList(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := d.History.List(r.Context())
		if err != nil {
			d.Logger.Error("failed to list history", logger.Error(err))
			writeError(d, w, http.StatusInternalServerError, "Failed to load history")
			return
		}
		if items == nil {
			items = []domain.HistoryItem{}
		}
		writeJSON(d, w, http.StatusOK, items)
	}
}

// HistoryRecord records that an image was viewed. Clients call it when an
// image first scrolls into view.
func HistoryRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var img domain.GalleryImage
		if err := decodeJSON(r, &img); err != nil {
			writeError(d, w, http.StatusBadRequest, err.Error())
			return
		}

		item, err := d.History.Record(r.Context(), img)
		switch {
		case errors.Is(err, history.ErrInvalidImage):
			writeError(d, w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			d.Logger.Error("failed to record history", logger.String("url", img.URL), logger.Error(err))
			writeError(d, w, http.StatusInternalServerError, "Failed to record history")
			return
		}

		writeJSON(d, w, http.StatusCreated, item)
	}
}

// HistoryClear removes every history entry.
func HistoryClear(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.History.Clear(r.Context()); err != nil {
			d.Logger.Error("failed to clear history", logger.Error(err))
			writeError(d, w, http.StatusInternalServerError, "Failed to clear history")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HistoryMax(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(d, w, http.StatusOK, maxPayload{Max: d.History.Max()})
	}
}

// HistorySetMax changes the bound for future evictions only.
func HistorySetMax(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req maxPayload
		if err := decodeJSON(r, &req); err != nil {
			writeError(d, w, http.StatusBadRequest, err.Error())
			return
		}
		if err := d.History.SetMax(req.Max); err != nil {
			writeError(d, w, http.StatusBadRequest, err.Error())
			return
		}
		d.Logger.Info("history bound changed", logger.Int("max", req.Max))
		writeJSON(d, w, http.StatusOK, maxPayload{Max: req.Max})
	}
}
