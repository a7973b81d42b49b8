package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/mw"
)

func init() { Register("gallery", registerGallery) }

func registerGallery(r chi.Router, d deps.Deps) {
	r.Route("/api/gallery", func(r chi.Router) {
		r.Get("/page", handlers.GalleryPage(d))
		r.Get("/", handlers.GalleryFeed(d))
		r.Post("/more", handlers.GalleryMore(d))
		r.Put("/category", handlers.GallerySetCategory(d))
	})

	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger)).Post("/api/refresh", handlers.Refresh(d))
}
