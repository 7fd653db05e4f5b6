package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/provider"
)

// healthResponse is the JSON response for GET /health.
type healthResponse struct {
	Status   string `json:"status"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
	Store    string `json:"store,omitempty"`
}

// handleHealth reports gateway liveness. When the provider supports
// active probing, its state is included; a failing probe degrades the
// status but the gateway itself stays up.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}

	if g.provider == nil {
		resp.Status = "degraded"
		resp.Provider = "unconfigured"
	} else {
		resp.Model = g.provider.ModelName()
		resp.Provider = "ok"
		if checker, ok := g.provider.(provider.HealthChecker); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := checker.HealthCheck(ctx); err != nil {
				resp.Status = "degraded"
				resp.Provider = "unreachable"
			}
		}
	}

	if pinger, ok := g.store.(interface{ Ping(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = "unavailable"
		} else {
			resp.Store = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
