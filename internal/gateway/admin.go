package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avass/gemgram/internal/memory"
)

// sessionJSON is a serializable session snapshot.
type sessionJSON struct {
	ID           string `json:"id"`
	Channel      string `json:"channel"`
	ChatID       string `json:"chat_id"`
	CreatedAt    string `json:"created_at"`
	LastActiveAt string `json:"last_active_at"`
	HistoryLen   int    `json:"history_len"`
}

// handleListSessions returns all active sessions as JSON.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := []sessionJSON{}

		if g.sessions != nil {
			g.sessions.Range(func(key memory.SessionKey, sess *memory.Session) bool {
				sessions = append(sessions, sessionJSON{
					ID:           sess.ID,
					Channel:      key.Channel,
					ChatID:       key.ChatID,
					CreatedAt:    sess.CreatedAt.UTC().Format(time.RFC3339),
					LastActiveAt: sess.LastActiveAt.UTC().Format(time.RFC3339),
					HistoryLen:   len(sess.History),
				})
				return true
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessions)
	}
}

// handleDeleteSession drops the in-memory session for a channel/chat pair.
// The equivalent of the user sending /new, available to operators.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.sessions == nil {
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}

		key := memory.SessionKey{
			Channel: chi.URLParam(r, "channel"),
			ChatID:  chi.URLParam(r, "chat"),
		}

		if g.sessions.Get(key) == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		g.sessions.Delete(key)
		g.logger.Info("session deleted via admin API",
			"channel", key.Channel,
			"chat_id", key.ChatID,
		)

		w.WriteHeader(http.StatusNoContent)
	}
}
