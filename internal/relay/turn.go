package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avass/gemgram/internal/channel"
	"github.com/avass/gemgram/internal/memory"
	"github.com/avass/gemgram/internal/provider"
	"github.com/avass/gemgram/pkg/message"
)

// fragmentBuffer is the capacity of the channel feeding the stream renderer.
// It absorbs short provider bursts without blocking the chunk loop.
const fragmentBuffer = 16

// handleTurn runs one full conversation turn for an inbound message.
// The lane lock guarantees turns within the same chat never overlap.
func (r *Relay) handleTurn(ctx context.Context, env envelope) {
	r.logger.Info("relay: message received",
		"channel", env.Key.Channel,
		"chat_id", env.Key.ChatID,
	)

	r.laneLock.Acquire(env.Key)
	defer r.laneLock.Release(env.Key)

	if r.handleCommand(ctx, env) {
		return
	}

	start := time.Now()

	session, created := r.store.GetOrCreate(env.Key)
	if created {
		r.logger.Info("relay: new session created", "session_id", session.ID)
		r.restoreHistory(session, env.Key)
	}

	// Append the user message, trim, and persist write-behind.
	userMsg := messageToLLM(env.Message)
	session.History = append(session.History, userMsg)
	r.trimHistory(session)
	r.persist(env.Key, userMsg, session.ID)

	req := provider.CompletionRequest{Messages: r.withSystemPrompt(session.History)}

	// Typing indicator while generating.
	ch, _ := r.lookupChannel(env.Key.Channel)
	var cancelTyping context.CancelFunc
	if tc, ok := ch.(channel.TypingChannel); ok {
		typingCtx, cancel := context.WithCancel(ctx)
		cancelTyping = cancel
		channel.StartTypingLoop(typingCtx, tc, env.Message.Chat, 0)
	}

	content, genErr, sendErr := r.generate(ctx, req, ch, env.Message)

	if cancelTyping != nil {
		cancelTyping()
	}

	if genErr == nil && content == "" {
		// Empty completions (e.g. a fully filtered response) read as a
		// failure to the user; reply with the apology.
		genErr = provider.ErrSafetyBlocked
	}

	if genErr != nil {
		class := errorClass(genErr)
		r.logger.Error("relay: generation failed",
			"error", genErr,
			"class", class,
			"session_id", session.ID,
		)
		if r.config.Metrics != nil {
			r.config.Metrics.GenerationErrors.WithLabelValues(class).Inc()
			r.config.Metrics.CompletionsTotal.WithLabelValues(r.config.Provider.ModelName(), "error").Inc()
		}
		// The session keeps the user message so a retry has full context.
		r.sendText(ctx, env.Message, r.config.ApologyText)
		return
	}

	if sendErr != nil {
		r.logger.Error("relay: response delivery failed",
			"error", sendErr,
			"session_id", session.ID,
		)
		if r.config.Metrics != nil {
			r.config.Metrics.CompletionsTotal.WithLabelValues(r.config.Provider.ModelName(), "error").Inc()
		}
		r.sendText(ctx, env.Message, r.config.ApologyText)
		return
	}

	assistantMsg := provider.LLMMessage{
		Role:    provider.MessageRoleAssistant,
		Content: content,
	}
	session.History = append(session.History, assistantMsg)
	r.trimHistory(session)
	r.persist(env.Key, assistantMsg, session.ID)
	r.store.Touch(env.Key)

	if r.config.Metrics != nil {
		r.config.Metrics.CompletionsTotal.WithLabelValues(r.config.Provider.ModelName(), "ok").Inc()
		r.config.Metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}
}

// generate produces the assistant response, streaming it to the channel when
// supported. It returns the full response text, the generation error (if the
// provider failed), and the delivery error (if the channel failed).
func (r *Relay) generate(ctx context.Context, req provider.CompletionRequest, ch channel.Channel, inbound message.InboundMessage) (content string, genErr, sendErr error) {
	if sc, ok := ch.(channel.StreamingChannel); ok && sc.SupportsStreaming() {
		return r.generateStreaming(ctx, req, sc, inbound.Chat)
	}

	resp, err := r.config.Provider.Complete(ctx, req)
	if err != nil {
		return "", err, nil
	}
	if resp.Content == "" {
		// An empty completion is classified by the caller; the platform
		// would reject an empty outbound message anyway.
		return "", nil, nil
	}
	return resp.Content, nil, r.config.ResponseSender.Send(ctx, buildOutbound(inbound, resp.Content))
}

// generateStreaming forwards provider chunks to the channel's stream renderer
// while collecting the full text. On a mid-stream provider error the fragment
// channel is closed so the renderer performs a best-effort final flush of
// whatever accumulated, then the error is reported to the caller.
func (r *Relay) generateStreaming(ctx context.Context, req provider.CompletionRequest, sc channel.StreamingChannel, chat message.Chat) (string, error, error) {
	// A per-turn context ensures the provider goroutine is released as soon
	// as this turn ends, even when the chunk loop exits early.
	turnCtx, cancelTurn := context.WithCancel(ctx)
	defer cancelTurn()

	chunks, err := r.config.Provider.Stream(turnCtx, req)
	if err != nil {
		return "", err, nil
	}

	frags := make(chan string, fragmentBuffer)
	done := make(chan error, 1)
	go func() {
		done <- sc.SendStream(ctx, chat, frags)
	}()

	var full strings.Builder
	var genErr error
	for chunk := range chunks {
		if chunk.Err != nil {
			genErr = chunk.Err
			cancelTurn()
			break
		}
		if chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		select {
		case frags <- chunk.Content:
		case <-ctx.Done():
			genErr = ctx.Err()
		}
		if genErr != nil {
			break
		}
	}

	// Closing the fragment channel triggers the renderer's final flush.
	close(frags)
	sendErr := <-done

	if genErr != nil {
		return full.String(), genErr, nil
	}
	return full.String(), nil, sendErr
}

// handleCommand intercepts bot commands before generation. It reports
// whether the message was consumed.
func (r *Relay) handleCommand(ctx context.Context, env envelope) bool {
	switch parseCommand(env.Message.Text) {
	case "start":
		r.sendText(ctx, env.Message, r.config.WelcomeText)
		return true
	case "new":
		r.store.Delete(env.Key)
		if r.config.History != nil {
			if err := r.config.History.Purge(persistenceKey(env.Key)); err != nil {
				r.logger.Warn("relay: failed to purge persistent history",
					"chat_id", env.Key.ChatID, "error", err)
			}
		}
		r.logger.Info("relay: conversation reset", "chat_id", env.Key.ChatID)
		r.sendText(ctx, env.Message, r.config.ResetText)
		return true
	}
	return false
}

// parseCommand extracts the command name from a message like "/new" or
// "/start@my_bot arg". Returns "" when the message is not a command.
func parseCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// withSystemPrompt prepends the configured system prompt to the history.
func (r *Relay) withSystemPrompt(history []provider.LLMMessage) []provider.LLMMessage {
	if r.config.SystemPrompt == "" {
		return history
	}
	msgs := make([]provider.LLMMessage, 0, len(history)+1)
	msgs = append(msgs, provider.LLMMessage{
		Role:    provider.MessageRoleSystem,
		Content: r.config.SystemPrompt,
	})
	return append(msgs, history...)
}

// restoreHistory loads persisted messages into a freshly created session.
func (r *Relay) restoreHistory(session *memory.Session, key memory.SessionKey) {
	if r.config.History == nil {
		return
	}
	restored, err := r.config.History.GetRecent(persistenceKey(key), r.config.MaxHistory)
	if err != nil {
		r.logger.Warn("relay: failed to restore history",
			"session_id", session.ID, "error", err)
		return
	}
	if len(restored) > 0 {
		session.History = restored
		r.logger.Info("relay: restored history",
			"session_id", session.ID, "messages", len(restored))
	}
}

// persist writes a message to the persistent history store (write-behind,
// non-fatal).
func (r *Relay) persist(key memory.SessionKey, msg provider.LLMMessage, sessionID string) {
	if r.config.History == nil {
		return
	}
	if err := r.config.History.Append(persistenceKey(key), msg); err != nil {
		r.logger.Warn("relay: failed to persist message",
			"session_id", sessionID, "error", err)
	}
}

// trimHistory caps the session history at MaxHistory messages.
func (r *Relay) trimHistory(session *memory.Session) {
	if limit := r.config.MaxHistory; len(session.History) > limit {
		session.History = session.History[len(session.History)-limit:]
	}
}

// lookupChannel resolves the named channel, tolerating a nil lookup.
func (r *Relay) lookupChannel(name string) (channel.Channel, bool) {
	if r.config.ChannelLookup == nil {
		return nil, false
	}
	return r.config.ChannelLookup.Get(name)
}

// sendText sends a fixed text reply. Failures are logged, never escalated.
func (r *Relay) sendText(ctx context.Context, original message.InboundMessage, text string) {
	if err := r.config.ResponseSender.Send(ctx, buildOutbound(original, text)); err != nil {
		r.logger.Error("relay: failed to send reply", "error", err)
	}
}

// errorClass maps a provider error to its metrics label.
func errorClass(err error) string {
	switch {
	case errors.Is(err, provider.ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, provider.ErrProviderDown):
		return "provider_down"
	case errors.Is(err, provider.ErrContextLength):
		return "context_length"
	case errors.Is(err, provider.ErrSafetyBlocked):
		return "safety_blocked"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
