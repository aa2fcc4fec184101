// Package memory provides conversation session storage and history
// persistence interfaces with in-memory implementations.
package memory

import (
	"time"

	"github.com/avass/gemgram/internal/provider"
	"github.com/avass/gemgram/pkg/message"
)

// SessionKey is the composite key for O(1) session lookups.
// It uniquely identifies a conversation by channel and chat.
type SessionKey struct {
	Channel string
	ChatID  string
}

// SessionKeyFromMessage derives a SessionKey from an inbound message.
// Messages in the same channel/chat share a session.
func SessionKeyFromMessage(msg message.InboundMessage) SessionKey {
	return SessionKey{
		Channel: msg.Channel,
		ChatID:  msg.Chat.ID,
	}
}

// Session represents an active conversation.
// It holds the conversation history needed to produce contextual responses.
type Session struct {
	ID           string
	Key          SessionKey
	CreatedAt    time.Time
	LastActiveAt time.Time
	History      []provider.LLMMessage
}

// ConversationStore manages session lifecycle.
// Implementations must be safe for concurrent use.
type ConversationStore interface {
	// GetOrCreate returns an existing session or creates a new one.
	// The bool return indicates whether the session was newly created.
	GetOrCreate(key SessionKey) (*Session, bool)

	// Get returns the session for the given key, or nil if none exists.
	Get(key SessionKey) *Session

	// Touch updates the session's LastActiveAt timestamp.
	Touch(key SessionKey)

	// Delete removes the session for the given key.
	Delete(key SessionKey)

	// Len returns the number of active sessions.
	Len() int

	// Range calls fn for each session. If fn returns false, iteration stops.
	Range(fn func(SessionKey, *Session) bool)
}
