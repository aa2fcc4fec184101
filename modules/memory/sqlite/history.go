package sqlite

import (
	"context"
	"fmt"
	"slices"

	"github.com/avass/gemgram/internal/provider"
)

// Append adds a message to the session's history. The sequence number is
// assigned inside the INSERT so concurrent appends cannot collide.
func (h *historyStore) Append(sessionID string, msg provider.LLMMessage) error {
	// HistoryStore interface does not carry context; use TODO as placeholder.
	_, err := h.db.ExecContext(context.TODO(), `
		INSERT INTO messages (session_id, seq, role, content)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = ?), 0) + 1, ?, ?)`,
		sessionID, sessionID, string(msg.Role), msg.Content,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append message: %w", err)
	}
	return nil
}

// GetRecent returns the n most recent messages for a session in
// chronological order.
func (h *historyStore) GetRecent(sessionID string, n int) ([]provider.LLMMessage, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := h.db.QueryContext(context.TODO(), `
		SELECT role, content
		FROM messages
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []provider.LLMMessage
	for rows.Next() {
		var role string
		var msg provider.LLMMessage
		if err := rows.Scan(&role, &msg.Content); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		msg.Role = provider.MessageRole(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: get recent rows: %w", err)
	}

	// The query walked backwards; flip to chronological order.
	slices.Reverse(msgs)
	return msgs, nil
}

// GetAll returns all messages for a session in chronological order.
func (h *historyStore) GetAll(sessionID string) ([]provider.LLMMessage, error) {
	rows, err := h.db.QueryContext(context.TODO(), `
		SELECT role, content
		FROM messages
		WHERE session_id = ?
		ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get all: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []provider.LLMMessage
	for rows.Next() {
		var role string
		var msg provider.LLMMessage
		if err := rows.Scan(&role, &msg.Content); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		msg.Role = provider.MessageRole(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: get all rows: %w", err)
	}

	return msgs, nil
}

// Purge removes all history for a session.
func (h *historyStore) Purge(sessionID string) error {
	if _, err := h.db.ExecContext(context.TODO(),
		"DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: purge messages: %w", err)
	}
	return nil
}

// Len returns the number of messages stored for a session.
func (h *historyStore) Len(sessionID string) (int, error) {
	var count int
	err := h.db.QueryRowContext(context.TODO(),
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return count, nil
}
