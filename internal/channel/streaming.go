package channel

import (
	"context"
	"time"

	"github.com/avass/gemgram/pkg/message"
)

// StreamingChannel is implemented by channels that support streaming partial
// responses to the user as they are generated.
type StreamingChannel interface {
	Channel

	// SupportsStreaming reports whether this channel currently supports streaming.
	// A channel may dynamically disable streaming (e.g., repeated edit failures).
	SupportsStreaming() bool

	// SendStream delivers a stream of text fragments to the platform.
	// The channel should aggregate fragments and flush periodically.
	// The stream is closed by the caller when the response is complete.
	SendStream(ctx context.Context, chat message.Chat, stream <-chan string) error
}

// TypingChannel is implemented by channels that can show typing indicators
// to the user while a response is being generated.
type TypingChannel interface {
	Channel

	// SendTyping sends a single typing indicator to the platform.
	SendTyping(ctx context.Context, chat message.Chat) error
}

// StartTypingLoop launches a goroutine that sends typing indicators at the
// given interval until the context is cancelled. It is safe to call from
// multiple goroutines; the loop stops when ctx is done.
func StartTypingLoop(ctx context.Context, ch TypingChannel, chat message.Chat, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Send an initial typing indicator immediately.
		_ = ch.SendTyping(ctx, chat)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = ch.SendTyping(ctx, chat)
			}
		}
	}()
}
