package telegram

import (
	"strconv"
	"strings"
	"time"

	"github.com/avass/gemgram/pkg/message"
)

// convertInbound maps a Telegram message to the platform-agnostic inbound
// model. Returns nil for messages this bot does not handle: empty text, or
// group messages that do not address the bot.
func convertInbound(msg *Message, botUsername string) *message.InboundMessage {
	if msg == nil || msg.From == nil {
		return nil
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// In groups, only react when explicitly addressed or replied to.
	if isGroupChat(msg.Chat.Type) && !isAddressed(msg, botUsername) {
		return nil
	}

	out := &message.InboundMessage{
		ID:        strconv.Itoa(msg.MessageID),
		Timestamp: time.Unix(int64(msg.Date), 0),
		Channel:   ChannelName,
		Sender: message.Sender{
			ID:          strconv.FormatInt(msg.From.ID, 10),
			Username:    msg.From.Username,
			DisplayName: displayName(msg.From),
		},
		Chat: message.Chat{
			ID:    strconv.FormatInt(msg.Chat.ID, 10),
			Type:  chatType(msg.Chat.Type),
			Title: msg.Chat.Title,
		},
		Text: text,
	}

	if msg.ReplyToMessage != nil {
		out.ReplyToID = strconv.Itoa(msg.ReplyToMessage.MessageID)
	}

	return out
}

func displayName(u *User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func chatType(t string) message.ChatType {
	switch t {
	case "group", "supergroup":
		return message.ChatGroup
	case "channel":
		return message.ChatBroadcast
	default:
		return message.ChatDM
	}
}

func isGroupChat(t string) bool {
	return t == "group" || t == "supergroup"
}

// isAddressed reports whether the message mentions the bot, is a command
// directed at it, or replies to one of its messages.
func isAddressed(msg *Message, botUsername string) bool {
	if botUsername == "" {
		return false
	}

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.Username == botUsername {
		return true
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	for _, ent := range msg.Entities {
		switch ent.Type {
		case "mention":
			if strings.EqualFold(extractEntityText(text, ent), "@"+botUsername) {
				return true
			}
		case "bot_command":
			cmd := extractEntityText(text, ent)
			// A bare "/cmd" counts; "/cmd@other_bot" does not.
			if at := strings.IndexByte(cmd, '@'); at < 0 || strings.EqualFold(cmd[at+1:], botUsername) {
				return true
			}
		}
	}

	return false
}

// extractEntityText slices the entity out of the text. Telegram entity
// offsets are in UTF-16 code units, not bytes.
func extractEntityText(text string, ent MessageEntity) string {
	utf16Pos := 0
	byteStart, byteEnd := -1, -1

	for i, r := range text {
		if utf16Pos == ent.Offset {
			byteStart = i
		}
		if utf16Pos == ent.Offset+ent.Length {
			byteEnd = i
			break
		}
		if r > 0xFFFF {
			utf16Pos += 2
		} else {
			utf16Pos++
		}
	}

	if byteStart < 0 {
		return ""
	}
	if byteEnd < 0 {
		byteEnd = len(text)
	}
	return text[byteStart:byteEnd]
}
