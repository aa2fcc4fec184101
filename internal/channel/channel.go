// Package channel defines the bridge between messaging platforms and the relay.
// It provides the Channel interface, streaming support, typing indicators,
// message chunking, and allow-list filtering.
package channel

import (
	"context"

	"github.com/avass/gemgram/internal/core"
	"github.com/avass/gemgram/pkg/message"
)

// Channel is the bridge between a messaging platform and the relay.
// Every concrete channel (Telegram, etc.) must implement this interface.
//
// A channel receives messages from its platform, checks the allow-list, and
// pushes them to the relay via the inbox callback. It also receives outbound
// messages from the relay via Send().
//
// Channels may optionally implement StreamingChannel or TypingChannel for
// richer interactions.
type Channel interface {
	core.Module

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg message.OutboundMessage) error

	// SetInbox gives the channel a function to push inbound messages to the relay.
	// The relay calls this during wiring, before Start().
	SetInbox(fn func(msg message.InboundMessage) error)
}
