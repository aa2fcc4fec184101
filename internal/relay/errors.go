// Package relay dispatches inbound messages to conversation sessions,
// managing session lifecycle, per-chat serialization, and generation.
package relay

import "errors"

// Sentinel errors for relay operations.
var (
	// ErrInboxFull indicates the relay's message inbox is at capacity
	// and the incoming message was dropped. Callers should back off or
	// alert the operator.
	ErrInboxFull = errors.New("relay: inbox full, message dropped")

	// ErrRelayStopped indicates the relay has been shut down and is
	// no longer accepting messages.
	ErrRelayStopped = errors.New("relay: stopped")

	// ErrNoProvider indicates no completion provider has been configured.
	ErrNoProvider = errors.New("relay: no provider configured")

	// ErrNoResponseSender indicates no response sender has been configured.
	// The relay cannot deliver outbound messages without one.
	ErrNoResponseSender = errors.New("relay: no response sender configured")
)
