package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/handlers"
)

func init() { Register("history", registerHistory) }

func registerHistory(r chi.Router, d deps.Deps) {
	r.Route("/api/history", func(r chi.Router) {
		r.Get("/", handlers.HistoryList(d))
		r.Post("/", handlers.HistoryRecord(d))
		r.Delete("/", handlers.HistoryClear(d))
		r.Get("/max", handlers.HistoryMax(d))
		r.Put("/max", handlers.HistorySetMax(d))
	})
}
