package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds  float64  `json:"uptime_seconds"`
	Sessions       int      `json:"sessions"`
	WebhookSources []string `json:"webhook_sources"`
}

// handleStatus reports process uptime, live session count, and the
// webhook sources with a registered handler.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds:  time.Since(g.startedAt).Round(time.Second).Seconds(),
			WebhookSources: g.dispatcher.Sources(),
		}

		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
