package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET / and GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// handleHealth always reports 200: the process being able to answer is
// the signal deployment platforms probe for.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
