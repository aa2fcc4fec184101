package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avass/gemgram/internal/channel"
	"github.com/avass/gemgram/pkg/message"
)

// streamCursor is appended to intermediate edits so the user can see the
// response is still being generated.
const streamCursor = "▌"

// SupportsStreaming reports whether progressive edits are enabled. Streaming
// turns itself off for the rest of the process after repeated edit failures.
func (t *Telegram) SupportsStreaming() bool {
	return t.config.streamingEnabled() && !t.streamingDisabled.Load()
}

// SendStream renders a stream of text fragments as a single Telegram message
// that is progressively edited in place.
//
// The message is created lazily when the first fragment arrives, so an
// immediate generation failure never leaves an empty bubble in the chat.
// Fragments accumulate in a pending buffer that is flushed as an edit when
// either the flush interval elapses or the buffer crosses the size
// threshold. Intermediate edits escape all markup and end with a cursor
// marker; the final edit drops the cursor and falls back to plain text when
// Telegram rejects the formatting.
//
// SendStream always consumes the stream until it is closed, even after edit
// failures: the producer blocks on this channel and must never be stranded.
func (t *Telegram) SendStream(ctx context.Context, chat message.Chat, stream <-chan string) error {
	chatID, err := parseChatID(chat.ID)
	if err != nil {
		drainStream(stream)
		return err
	}

	r := &streamRenderer{
		t:             t,
		chat:          chat,
		chatID:        chatID,
		sizeThreshold: t.config.StreamSizeThreshold,
	}

	ticker := time.NewTicker(t.config.StreamFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainStream(stream)
			return ctx.Err()

		case frag, ok := <-stream:
			if !ok {
				return r.finalFlush(ctx)
			}
			if frag == "" {
				continue
			}
			// Check the size trigger before absorbing the new fragment:
			// a burst of fragments inside one interval then produces a
			// single intermediate edit instead of one per fragment.
			if len(r.pending) >= r.sizeThreshold {
				r.intermediateFlush(ctx)
			}
			if r.messageID == 0 {
				r.createPlaceholder(ctx)
			}
			r.pending += frag

		case <-ticker.C:
			if r.pending != "" {
				r.intermediateFlush(ctx)
			}
		}
	}
}

// drainStream consumes remaining fragments so the producer never blocks.
func drainStream(stream <-chan string) {
	for range stream {
	}
}

// streamRenderer tracks the edit state of one streamed message.
type streamRenderer struct {
	t             *Telegram
	chat          message.Chat
	chatID        int64
	sizeThreshold int

	messageID int    // 0 until the placeholder is created
	committed string // text confirmed shown by a successful edit
	pending   string // text accumulated since the last successful edit
	lastShown string // exact payload of the last successful edit

	consecutiveErrs int
}

// createPlaceholder sends the initial cursor-only message that subsequent
// flushes edit in place. Failure is tolerated: the next flush retries, and
// the final flush falls back to a regular send.
func (r *streamRenderer) createPlaceholder(ctx context.Context) {
	msg, err := r.t.client.SendMessage(ctx, SendMessageRequest{
		ChatID: r.chatID,
		Text:   streamCursor,
	})
	if err != nil {
		r.recordError(ctx, "create placeholder", err)
		return
	}
	r.messageID = msg.MessageID
	r.lastShown = streamCursor
}

// intermediateFlush edits the streamed message to show everything received
// so far, fully escaped, with the cursor appended. The pending buffer moves
// to committed only after a successful edit, so text rejected by Telegram is
// retried on the next flush together with newer fragments.
func (r *streamRenderer) intermediateFlush(ctx context.Context) {
	if r.messageID == 0 {
		r.createPlaceholder(ctx)
		if r.messageID == 0 {
			return
		}
	}

	text := EscapeMarkdownV2(r.committed + r.pending)
	if len(text)+len(streamCursor) > maxMessageLength {
		text = truncateUTF8(text, maxMessageLength-len(streamCursor))
	}
	text += streamCursor

	if text == r.lastShown {
		r.commitPending()
		return
	}

	err := r.edit(ctx, text, "MarkdownV2")
	switch {
	case err == nil, isNotModified(err):
		// "message is not modified" means Telegram already shows this
		// exact payload, which is as good as a successful edit.
		r.lastShown = text
		r.commitPending()
		r.consecutiveErrs = 0
		r.countFlush("intermediate")

	case isParseError(err):
		// The escaped snapshot ended on a half-finished escape sequence or
		// similar. Skip this edit; the next flush carries more text and a
		// fresh escape pass. Not counted toward the disable threshold.
		r.t.logger.Debug("intermediate edit rejected, deferring",
			slog.Int("message_id", r.messageID),
			slog.String("error", err.Error()))

	default:
		r.recordError(ctx, "edit", err)
	}
}

// finalFlush is invoked when the fragment stream closes. It rewrites the
// message one last time without the cursor, retrying as plain text when
// MarkdownV2 is rejected, and spills overflow into followup messages.
func (r *streamRenderer) finalFlush(ctx context.Context) error {
	full := r.committed + r.pending
	if full == "" {
		// Nothing was generated. Any placeholder shows only the cursor;
		// the relay follows up with an apology message.
		return nil
	}

	if r.messageID == 0 {
		// The placeholder never materialized; deliver in one shot.
		return r.t.sendOutbound(ctx, message.OutboundMessage{
			Channel: ChannelName,
			Chat:    r.chat,
			Text:    full,
		})
	}

	// Escaping at most doubles the byte count, so raw segments of half the
	// platform limit always fit after escaping.
	segments := channel.SplitMessage(message.OutboundMessage{Text: full}, channel.ChunkConfig{
		MaxLength:      maxMessageLength / 2,
		PreserveBlocks: true,
	})

	head := segments[0].Text
	if err := r.editFinal(ctx, head); err != nil {
		return err
	}
	r.countFlush("final")

	// Overflow beyond the first message is sent as regular followups.
	for _, seg := range segments[1:] {
		if err := r.t.sendOutbound(ctx, message.OutboundMessage{
			Channel: ChannelName,
			Chat:    r.chat,
			Text:    seg.Text,
		}); err != nil {
			return err
		}
	}

	return nil
}

// editFinal performs the cursor-free closing edit, falling back to plain
// text when the escaped form is rejected.
func (r *streamRenderer) editFinal(ctx context.Context, text string) error {
	err := r.edit(ctx, EscapeMarkdownV2(text), "MarkdownV2")
	if err == nil || isNotModified(err) {
		return nil
	}

	if isParseError(err) {
		r.t.logger.Warn("final edit rejected, retrying as plain text",
			slog.Int("message_id", r.messageID),
			slog.String("error", err.Error()))
		if m := r.t.metrics; m != nil {
			m.PlainTextFallbacks.Inc()
		}
		if err := r.edit(ctx, text, ""); err != nil && !isNotModified(err) {
			return fmt.Errorf("telegram: final edit (plain): %w", err)
		}
		return nil
	}

	return fmt.Errorf("telegram: final edit: %w", err)
}

// edit performs a single editMessageText call, honoring one rate-limit
// pause beyond the client's own retries.
func (r *streamRenderer) edit(ctx context.Context, text, parseMode string) error {
	req := EditMessageTextRequest{
		ChatID:    r.chatID,
		MessageID: r.messageID,
		Text:      text,
		ParseMode: parseMode,
	}

	_, err := r.t.client.EditMessageText(ctx, req)
	if ra := retryAfter(err); ra > 0 {
		timer := time.NewTimer(time.Duration(ra) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		_, err = r.t.client.EditMessageText(ctx, req)
	}
	return err
}

func (r *streamRenderer) commitPending() {
	r.committed += r.pending
	r.pending = ""
}

func (r *streamRenderer) countFlush(kind string) {
	if m := r.t.metrics; m != nil {
		m.StreamFlushes.WithLabelValues(kind).Inc()
	}
}

// recordError tracks consecutive hard failures; past the threshold the
// channel stops offering streaming for future turns.
func (r *streamRenderer) recordError(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}

	r.consecutiveErrs++
	if m := r.t.metrics; m != nil {
		m.StreamFlushErrors.Inc()
	}
	r.t.logger.Warn("streaming "+op+" failed",
		slog.Int("consecutive", r.consecutiveErrs),
		slog.String("error", err.Error()))

	if r.consecutiveErrs >= defaultStreamMaxErrors && !r.t.streamingDisabled.Swap(true) {
		r.t.logger.Warn("disabling streaming after repeated edit failures",
			slog.Int("failures", r.consecutiveErrs))
	}
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune, and
// without ending on an unpaired backslash. Escaped text ends with "\x" pairs;
// cutting between the backslash and its character produces a payload
// Telegram rejects as unparseable.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	// Count trailing backslashes; an odd run means the last one opens an
	// escape pair whose second half was cut off.
	bs := 0
	for i := cut - 1; i >= 0 && s[i] == '\\'; i-- {
		bs++
	}
	if bs%2 == 1 {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
