package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
	// MiddlewareFactory builds a group middleware once the deps are known,
	// e.g. a rate limiter sized from config.
	MiddlewareFactory func(d deps.Deps) Middleware
)

type group struct {
	name string
	reg  Registrar
	mws  []MiddlewareFactory
}

var registry []group

// Register adds a named route group with optional group middlewares.
// Group names are unique; a duplicate is a programming error.
func Register(name string, reg Registrar, mws ...MiddlewareFactory) {
	for _, g := range registry {
		if g.name == name {
			panic(fmt.Sprintf("routes: group %q registered twice", name))
		}
	}
	registry = append(registry, group{name: name, reg: reg, mws: mws})
}

// Groups returns the registered group names in registration order.
func Groups() []string {
	names := make([]string, len(registry))
	for i, g := range registry {
		names[i] = g.name
	}
	return names
}

// RegisterAll mounts every group on r. Called once from server.NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range registry {
		d.Logger.Debug("registering routes",
			logger.String("group", g.name),
			logger.Int("middlewares", len(g.mws)))

		if len(g.mws) == 0 {
			g.reg(r, d)
			continue
		}
		mws := make([]Middleware, len(g.mws))
		for i, f := range g.mws {
			mws[i] = f(d)
		}
		g.reg(r.With(mws...), d)
	}
}
