package telegram

import (
	"testing"

	"github.com/avass/gemgram/pkg/message"
)

const testBotUsername = "gemgram_bot"

func dmMessage(text string) *Message {
	return &Message{
		MessageID: 10,
		From:      &User{ID: 111, Username: "alice", FirstName: "Alice"},
		Chat:      Chat{ID: 222, Type: "private"},
		Date:      1700000000,
		Text:      text,
	}
}

func TestConvertInbound_DirectMessage(t *testing.T) {
	t.Parallel()
	got := convertInbound(dmMessage("hello"), testBotUsername)
	if got == nil {
		t.Fatal("expected a converted message")
	}
	if got.Channel != ChannelName {
		t.Errorf("channel = %q", got.Channel)
	}
	if got.Text != "hello" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Sender.ID != "111" || got.Sender.Username != "alice" {
		t.Errorf("sender = %+v", got.Sender)
	}
	if got.Chat.ID != "222" || got.Chat.Type != message.ChatDM {
		t.Errorf("chat = %+v", got.Chat)
	}
	if got.ID != "10" {
		t.Errorf("id = %q", got.ID)
	}
}

func TestConvertInbound_CaptionFallback(t *testing.T) {
	t.Parallel()
	msg := dmMessage("")
	msg.Caption = "look at this"
	got := convertInbound(msg, testBotUsername)
	if got == nil || got.Text != "look at this" {
		t.Fatalf("caption should become the text, got %+v", got)
	}
}

func TestConvertInbound_Skipped(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		msg  *Message
	}{
		{"nil message", nil},
		{"no sender", &Message{Chat: Chat{ID: 1}, Text: "hi"}},
		{"empty text", dmMessage("")},
		{"whitespace only", dmMessage("   \n ")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := convertInbound(tc.msg, testBotUsername); got != nil {
				t.Errorf("expected nil, got %+v", got)
			}
		})
	}
}

func groupMessage(text string, entities ...MessageEntity) *Message {
	return &Message{
		MessageID: 11,
		From:      &User{ID: 111, Username: "alice"},
		Chat:      Chat{ID: -333, Type: "supergroup", Title: "devs"},
		Text:      text,
		Entities:  entities,
	}
}

func TestConvertInbound_GroupAddressing(t *testing.T) {
	t.Parallel()

	t.Run("unaddressed group message dropped", func(t *testing.T) {
		t.Parallel()
		if got := convertInbound(groupMessage("just chatting"), testBotUsername); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("mention accepted", func(t *testing.T) {
		t.Parallel()
		text := "@gemgram_bot what's up"
		msg := groupMessage(text, MessageEntity{Type: "mention", Offset: 0, Length: 12})
		got := convertInbound(msg, testBotUsername)
		if got == nil {
			t.Fatal("mentioned message should convert")
		}
		if got.Chat.Type != message.ChatGroup {
			t.Errorf("chat type = %q", got.Chat.Type)
		}
	})

	t.Run("bare command accepted", func(t *testing.T) {
		t.Parallel()
		msg := groupMessage("/new", MessageEntity{Type: "bot_command", Offset: 0, Length: 4})
		if convertInbound(msg, testBotUsername) == nil {
			t.Error("bare command should convert")
		}
	})

	t.Run("command for another bot dropped", func(t *testing.T) {
		t.Parallel()
		msg := groupMessage("/new@other_bot", MessageEntity{Type: "bot_command", Offset: 0, Length: 14})
		if got := convertInbound(msg, testBotUsername); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("reply to bot accepted", func(t *testing.T) {
		t.Parallel()
		msg := groupMessage("sounds good")
		msg.ReplyToMessage = &Message{
			MessageID: 5,
			From:      &User{ID: 42, IsBot: true, Username: testBotUsername},
		}
		got := convertInbound(msg, testBotUsername)
		if got == nil {
			t.Fatal("reply to the bot should convert")
		}
		if got.ReplyToID != "5" {
			t.Errorf("reply_to_id = %q", got.ReplyToID)
		}
	})
}

func TestExtractEntityText_UTF16Offsets(t *testing.T) {
	t.Parallel()
	// "👋 " is one astral rune (2 UTF-16 units) plus a space: the mention
	// starts at UTF-16 offset 3.
	text := "👋 @gemgram_bot hi"
	got := extractEntityText(text, MessageEntity{Type: "mention", Offset: 3, Length: 12})
	if got != "@gemgram_bot" {
		t.Errorf("extracted %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()
	if got := displayName(&User{FirstName: "Ada", LastName: "Lovelace"}); got != "Ada Lovelace" {
		t.Errorf("got %q", got)
	}
	if got := displayName(&User{FirstName: "Ada"}); got != "Ada" {
		t.Errorf("got %q", got)
	}
}
