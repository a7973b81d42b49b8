package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/handlers"
)

func init() { Register("catalog", registerCatalog) }

func registerCatalog(r chi.Router, d deps.Deps) {
	r.Get("/api/images", handlers.Images(d))
	r.Get("/api/categories", handlers.Categories(d))
}
