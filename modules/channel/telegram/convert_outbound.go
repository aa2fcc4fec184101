package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/avass/gemgram/internal/channel"
	"github.com/avass/gemgram/pkg/message"
)

// parseChatID converts the platform-agnostic chat ID back to Telegram's
// numeric form.
func parseChatID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat id %q: %w", id, err)
	}
	return n, nil
}

// sendOutbound delivers an outbound message, splitting it into chunks that
// fit Telegram's 4096-character limit. Each chunk is first sent as
// MarkdownV2; if Telegram rejects the formatting, the chunk is retried as
// plain text so the user always receives the content.
func (t *Telegram) sendOutbound(ctx context.Context, msg message.OutboundMessage) error {
	chatID, err := parseChatID(msg.Chat.ID)
	if err != nil {
		return err
	}

	// Escaping at most doubles the byte count, so raw chunks of half the
	// platform limit still fit after formatting.
	chunks := channel.SplitMessage(msg, channel.ChunkConfig{
		MaxLength:      maxMessageLength / 2,
		PreserveBlocks: true,
	})

	for _, chunk := range chunks {
		req := SendMessageRequest{
			ChatID:    chatID,
			Text:      FormatMarkdownV2(chunk.Text),
			ParseMode: "MarkdownV2",
		}
		if chunk.ReplyToID != "" {
			if id, err := strconv.Atoi(chunk.ReplyToID); err == nil {
				req.ReplyToMessageID = id
			}
		}
		if h := chunk.Hints; h != nil {
			req.DisableWebPagePreview = h.DisablePreview
			req.DisableNotification = h.DisableNotification
			if h.ParseMode != "" {
				req.ParseMode = h.ParseMode
				req.Text = chunk.Text
			}
		}

		if _, err := t.client.SendMessage(ctx, req); err != nil {
			if !isParseError(err) {
				return fmt.Errorf("telegram: send message: %w", err)
			}

			// Formatting rejected: deliver the raw text instead.
			t.logger.Warn("markdown rejected, retrying as plain text",
				slog.String("chat_id", msg.Chat.ID),
				slog.String("error", err.Error()))

			req.Text = chunk.Text
			req.ParseMode = ""
			if _, err := t.client.SendMessage(ctx, req); err != nil {
				return fmt.Errorf("telegram: send message (plain): %w", err)
			}
		}
	}

	return nil
}
