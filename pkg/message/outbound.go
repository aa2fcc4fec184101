package message

// OutboundMessage represents a message to be sent through a channel.
type OutboundMessage struct {
	Channel   string         `json:"channel"`
	Chat      Chat           `json:"chat"`
	ReplyToID string         `json:"reply_to_id,omitempty"`
	Text      string         `json:"text"`
	Hints     *OutboundHints `json:"hints,omitempty"`
}

// OutboundHints carries optional delivery hints for channels.
// Zero value means no hints are set.
type OutboundHints struct {
	DisablePreview      bool   `json:"disable_preview,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
	ParseMode           string `json:"parse_mode,omitempty"`
}

// NewTextMessage creates an outbound message with the given text.
func NewTextMessage(chat Chat, text string) OutboundMessage {
	return OutboundMessage{
		Chat: chat,
		Text: text,
	}
}
