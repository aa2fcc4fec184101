package relay

import (
	"context"

	"github.com/avass/gemgram/internal/channel"
	"github.com/avass/gemgram/internal/memory"
	"github.com/avass/gemgram/internal/provider"
	"github.com/avass/gemgram/pkg/message"
)

// ResponseSender delivers outbound messages to a channel.
type ResponseSender interface {
	Send(ctx context.Context, msg message.OutboundMessage) error
}

// ChannelLookup resolves a channel by name. Implemented by channel.Dispatcher.
type ChannelLookup interface {
	Get(name string) (channel.Channel, bool)
}

// messageToLLM converts an inbound message to a user-role LLM message.
func messageToLLM(msg message.InboundMessage) provider.LLMMessage {
	return provider.LLMMessage{
		Role:    provider.MessageRoleUser,
		Content: msg.Text,
	}
}

// buildOutbound creates an outbound text response preserving reply context.
func buildOutbound(original message.InboundMessage, content string) message.OutboundMessage {
	out := message.NewTextMessage(original.Chat, content)
	out.Channel = original.Channel
	out.ReplyToID = original.ID
	return out
}

// persistenceKey derives the stable key used for persistent history.
// Unlike the in-memory session ID, it survives process restarts so a
// returning user gets their context back.
func persistenceKey(key memory.SessionKey) string {
	return key.Channel + ":" + key.ChatID
}
