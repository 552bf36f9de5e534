package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "unconfigured"
	// Version is the build version, when known.
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

// handleHealth reports liveness. A relay without a secret still answers
// 200 but reports itself unconfigured.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: g.version,
			Uptime:  time.Since(g.startedAt).Round(time.Second).String(),
		}
		if g.config.Secret == "" {
			resp.Status = "unconfigured"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
