package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/nekogallery/internal/config"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Upstreams *int   `json:"upstreams,omitempty"`
	LastRun   string `json:"last_run,omitempty"`
	Backend   string `json:"backend,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Impact    string `json:"impact,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		upstreams := 0
		if d.Registry != nil {
			upstreams = d.Registry.Len()
		}

		components := map[string]componentStatus{
			"upstreams": {
				OK:        upstreams > 0,
				Upstreams: &upstreams,
			},
			"catalog":  pingStatus(ctx, d.Catalog, "images-unavailable"),
			"history":  historyStatus(ctx, d),
			"prefetch": prefetchStatus(d),
		}

		writeJSON(d, w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

// determineMode is critical without upstreams or catalogue, degraded when
// any other component is down.
func determineMode(components map[string]componentStatus) string {
	for _, name := range []string{"upstreams", "catalog"} {
		if c, ok := components[name]; ok && !c.OK {
			return "critical"
		}
	}
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "optimal"
}

func pingStatus(ctx context.Context, p deps.Pinger, impact string) componentStatus {
	if p == nil {
		return componentStatus{OK: false, Mode: "degraded", Impact: impact, Error: "not initialized"}
	}
	if err := p.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: "degraded", Impact: impact, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}

func historyStatus(ctx context.Context, d deps.Deps) componentStatus {
	var status componentStatus
	switch d.HistoryBackend {
	case config.HistoryRedis:
		status = pingStatus(ctx, d.Redis, "history-unavailable")
	case config.HistorySQLite:
		status = pingStatus(ctx, d.Catalog, "history-unavailable")
	default:
		status = componentStatus{OK: true, Mode: "volatile", Impact: "history-lost-on-restart"}
	}
	status.Backend = d.HistoryBackend
	return status
}

func prefetchStatus(d deps.Deps) componentStatus {
	if d.Prefetcher == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}
	lastRun := d.Prefetcher.LastRun()
	if lastRun.IsZero() {
		return componentStatus{OK: true, LastRun: "never"}
	}
	return componentStatus{OK: true, LastRun: lastRun.Format("2006-01-02 15:04:05")}
}
