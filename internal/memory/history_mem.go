package memory

import (
	"sync"

	"github.com/avass/gemgram/internal/provider"
)

// InMemoryHistoryStore is a thread-safe, in-memory implementation of
// HistoryStore. It is the default when no persistent history module is
// configured.
type InMemoryHistoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]provider.LLMMessage
}

// NewInMemoryHistoryStore creates a new empty history store.
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		sessions: make(map[string][]provider.LLMMessage),
	}
}

// Compile-time interface check.
var _ HistoryStore = (*InMemoryHistoryStore)(nil)

// Append adds a message to the session's history.
func (s *InMemoryHistoryStore) Append(sessionID string, msg provider.LLMMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

// GetRecent returns the n most recent messages for a session.
func (s *InMemoryHistoryStore) GetRecent(sessionID string, n int) ([]provider.LLMMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	if n >= len(msgs) {
		result := make([]provider.LLMMessage, len(msgs))
		copy(result, msgs)
		return result, nil
	}

	start := len(msgs) - n
	result := make([]provider.LLMMessage, n)
	copy(result, msgs[start:])
	return result, nil
}

// GetAll returns all messages for a session.
func (s *InMemoryHistoryStore) GetAll(sessionID string) ([]provider.LLMMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	result := make([]provider.LLMMessage, len(msgs))
	copy(result, msgs)
	return result, nil
}

// Purge removes all history for a session.
func (s *InMemoryHistoryStore) Purge(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of messages stored for a session.
func (s *InMemoryHistoryStore) Len(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}
