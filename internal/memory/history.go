package memory

import "github.com/avass/gemgram/internal/provider"

// HistoryStore persists session conversation history.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Append adds a message to the session's history.
	Append(sessionID string, msg provider.LLMMessage) error

	// GetRecent returns the n most recent messages for a session.
	// If fewer than n messages exist, all messages are returned.
	GetRecent(sessionID string, n int) ([]provider.LLMMessage, error)

	// GetAll returns all messages for a session.
	GetAll(sessionID string) ([]provider.LLMMessage, error)

	// Purge removes all history for a session.
	Purge(sessionID string) error

	// Len returns the number of messages stored for a session.
	Len(sessionID string) (int, error)
}
