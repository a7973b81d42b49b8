package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
)

// Metrics exposes the gallery's prometheus registry.
func Metrics(d deps.Deps) http.Handler {
	return promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{})
}
