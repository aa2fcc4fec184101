package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avass/gemgram/internal/channel"
	"github.com/avass/gemgram/internal/memory"
	"github.com/avass/gemgram/internal/provider"
	"github.com/avass/gemgram/pkg/message"
)

// fakeProvider is a scriptable provider for relay tests.
type fakeProvider struct {
	CompleteFunc func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	StreamFunc   func(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error)
}

func (p *fakeProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	if p.CompleteFunc == nil {
		return provider.CompletionResponse{Content: "ok", FinishReason: provider.FinishReasonStop}, nil
	}
	return p.CompleteFunc(ctx, req)
}

func (p *fakeProvider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	if p.StreamFunc == nil {
		ch := make(chan provider.StreamChunk, 1)
		ch <- provider.StreamChunk{Content: "ok", FinishReason: provider.FinishReasonStop}
		close(ch)
		return ch, nil
	}
	return p.StreamFunc(ctx, req)
}

func (p *fakeProvider) ContextWindowSize() int { return 4096 }
func (p *fakeProvider) ModelName() string      { return "test-model" }

// recordingSender records sent messages without side effects.
type recordingSender struct {
	mu   sync.Mutex
	sent []message.OutboundMessage
}

func (s *recordingSender) Send(_ context.Context, msg message.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Sent() []message.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]message.OutboundMessage, len(s.sent))
	copy(cp, s.sent)
	return cp
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestMessage creates an inbound message for relay tests.
func newTestMessage(id, text string) message.InboundMessage {
	return message.InboundMessage{
		ID:      id,
		Channel: "telegram",
		Sender:  message.Sender{ID: "user-1"},
		Chat:    message.Chat{ID: "C123", Type: message.ChatDM},
		Text:    text,
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestRelay(t *testing.T, cfg Config) (*Relay, func()) {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Start(context.Background())
	return r, func() { r.Stop(context.Background()) }
}

func TestNew_RequiresProvider(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ResponseSender: &recordingSender{}})
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("error = %v, want %v", err, ErrNoProvider)
	}
}

func TestNew_RequiresResponseSender(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Provider: &fakeProvider{}})
	if !errors.Is(err, ErrNoResponseSender) {
		t.Errorf("error = %v, want %v", err, ErrNoResponseSender)
	}
}

func TestRelay_CompleteTurn(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	prov := &fakeProvider{
		CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
			last := req.Messages[len(req.Messages)-1]
			return provider.CompletionResponse{
				Content:      "echo: " + last.Content,
				FinishReason: provider.FinishReasonStop,
			}, nil
		},
	}
	r, stop := newTestRelay(t, Config{Provider: prov, ResponseSender: sender})
	defer stop()

	if err := r.Submit(newTestMessage("m1", "hello")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, func() bool { return len(sender.Sent()) == 1 })
	if got := sender.Sent()[0].Text; got != "echo: hello" {
		t.Errorf("response = %q, want %q", got, "echo: hello")
	}

	// Session history holds the user and assistant messages.
	sess := r.Sessions().Get(memory.SessionKey{Channel: "telegram", ChatID: "C123"})
	if sess == nil {
		t.Fatal("session not created")
	}
	if len(sess.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(sess.History))
	}
	if sess.History[1].Role != provider.MessageRoleAssistant {
		t.Errorf("history[1].Role = %q, want assistant", sess.History[1].Role)
	}
}

func TestRelay_SystemPromptPrepended(t *testing.T) {
	t.Parallel()

	var gotFirst provider.LLMMessage
	sender := &recordingSender{}
	prov := &fakeProvider{
		CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
			gotFirst = req.Messages[0]
			return provider.CompletionResponse{Content: "ok"}, nil
		},
	}
	r, stop := newTestRelay(t, Config{
		Provider:       prov,
		ResponseSender: sender,
		SystemPrompt:   "be nice",
	})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "hello"))
	waitFor(t, func() bool { return len(sender.Sent()) == 1 })

	if gotFirst.Role != provider.MessageRoleSystem || gotFirst.Content != "be nice" {
		t.Errorf("first message = %+v, want system prompt", gotFirst)
	}
}

func TestRelay_StartCommand(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	r, stop := newTestRelay(t, Config{Provider: &fakeProvider{}, ResponseSender: sender})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "/start"))
	waitFor(t, func() bool { return len(sender.Sent()) == 1 })

	if got := sender.Sent()[0].Text; got != DefaultWelcomeText {
		t.Errorf("response = %q, want welcome text", got)
	}
	// No session is created for a bare /start.
	if r.Sessions().Len() != 0 {
		t.Errorf("sessions = %d, want 0", r.Sessions().Len())
	}
}

func TestRelay_NewCommandResetsConversation(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	history := memory.NewInMemoryHistoryStore()
	r, stop := newTestRelay(t, Config{
		Provider:       &fakeProvider{},
		ResponseSender: sender,
		History:        history,
	})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "hello"))
	waitFor(t, func() bool { return len(sender.Sent()) == 1 })
	if r.Sessions().Len() != 1 {
		t.Fatalf("sessions = %d, want 1", r.Sessions().Len())
	}

	_ = r.Submit(newTestMessage("m2", "/new"))
	waitFor(t, func() bool { return len(sender.Sent()) == 2 })

	if got := sender.Sent()[1].Text; got != DefaultResetText {
		t.Errorf("response = %q, want reset text", got)
	}
	if r.Sessions().Len() != 0 {
		t.Errorf("sessions after /new = %d, want 0", r.Sessions().Len())
	}
	n, _ := history.Len("telegram:C123")
	if n != 0 {
		t.Errorf("persistent history after /new = %d messages, want 0", n)
	}
}

func TestRelay_HistoryRestoredOnFirstContact(t *testing.T) {
	t.Parallel()

	history := memory.NewInMemoryHistoryStore()
	_ = history.Append("telegram:C123", provider.LLMMessage{Role: provider.MessageRoleUser, Content: "earlier"})
	_ = history.Append("telegram:C123", provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: "noted"})

	var gotLen int
	sender := &recordingSender{}
	prov := &fakeProvider{
		CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
			gotLen = len(req.Messages)
			return provider.CompletionResponse{Content: "ok"}, nil
		},
	}
	r, stop := newTestRelay(t, Config{Provider: prov, ResponseSender: sender, History: history})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "hello again"))
	waitFor(t, func() bool { return len(sender.Sent()) == 1 })

	// Two restored messages plus the new user message.
	if gotLen != 3 {
		t.Errorf("request message count = %d, want 3", gotLen)
	}
}

func TestRelay_GenerationErrorSendsApology(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	prov := &fakeProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, provider.ErrProviderDown
		},
	}
	r, stop := newTestRelay(t, Config{Provider: prov, ResponseSender: sender})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "hello"))
	waitFor(t, func() bool { return len(sender.Sent()) == 1 })

	if got := sender.Sent()[0].Text; got != DefaultApologyText {
		t.Errorf("response = %q, want apology", got)
	}

	// The session keeps the user message so a retry has context.
	sess := r.Sessions().Get(memory.SessionKey{Channel: "telegram", ChatID: "C123"})
	if sess == nil || len(sess.History) != 1 {
		t.Fatalf("session history = %+v, want the user message only", sess)
	}
}

func TestRelay_EmptyCompletionSendsApology(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	prov := &fakeProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{Content: "", FinishReason: provider.FinishReasonFiltering}, nil
		},
	}
	r, stop := newTestRelay(t, Config{Provider: prov, ResponseSender: sender})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "hello"))
	waitFor(t, func() bool { return len(sender.Sent()) >= 1 })

	// The apology must be the only outbound message: an empty completion is
	// never dispatched to the channel.
	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one outbound message, got %d", len(sent))
	}
	if got := sent[0].Text; got != DefaultApologyText {
		t.Errorf("response = %q, want apology", got)
	}
}

func TestRelay_StreamingTurn(t *testing.T) {
	t.Parallel()

	dispatcher := channel.NewDispatcher()
	mock := channel.NewMockStreamingChannel("telegram", channel.NewAllowList([]string{"user-1"}, nil))
	if err := dispatcher.Register("telegram", mock); err != nil {
		t.Fatalf("Register: %v", err)
	}

	prov := &fakeProvider{
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			ch := make(chan provider.StreamChunk, 3)
			ch <- provider.StreamChunk{Content: "Hello, "}
			ch <- provider.StreamChunk{Content: "world!"}
			ch <- provider.StreamChunk{FinishReason: provider.FinishReasonStop}
			close(ch)
			return ch, nil
		},
	}
	r, stop := newTestRelay(t, Config{
		Provider:       prov,
		ResponseSender: dispatcher,
		ChannelLookup:  dispatcher,
	})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "hi"))
	waitFor(t, func() bool { return len(mock.StreamChunks()) == 2 })

	if got := strings.Join(mock.StreamChunks(), ""); got != "Hello, world!" {
		t.Errorf("streamed text = %q, want %q", got, "Hello, world!")
	}

	// Full text lands in the session history.
	waitFor(t, func() bool {
		sess := r.Sessions().Get(memory.SessionKey{Channel: "telegram", ChatID: "C123"})
		return sess != nil && len(sess.History) == 2
	})
	sess := r.Sessions().Get(memory.SessionKey{Channel: "telegram", ChatID: "C123"})
	if sess.History[1].Content != "Hello, world!" {
		t.Errorf("assistant history = %q, want full text", sess.History[1].Content)
	}
}

func TestRelay_MidStreamErrorSendsApology(t *testing.T) {
	t.Parallel()

	dispatcher := channel.NewDispatcher()
	mock := channel.NewMockStreamingChannel("telegram", channel.NewAllowList([]string{"user-1"}, nil))
	_ = dispatcher.Register("telegram", mock)

	prov := &fakeProvider{
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			ch := make(chan provider.StreamChunk, 2)
			ch <- provider.StreamChunk{Content: "partial "}
			ch <- provider.StreamChunk{Err: provider.ErrProviderDown}
			close(ch)
			return ch, nil
		},
	}
	r, stop := newTestRelay(t, Config{
		Provider:       prov,
		ResponseSender: dispatcher,
		ChannelLookup:  dispatcher,
	})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "hi"))
	waitFor(t, func() bool { return len(mock.SentMessages()) == 1 })

	// The renderer received the partial fragment before the error.
	if got := strings.Join(mock.StreamChunks(), ""); got != "partial " {
		t.Errorf("streamed text = %q, want %q", got, "partial ")
	}
	if got := mock.SentMessages()[0].Text; got != DefaultApologyText {
		t.Errorf("follow-up = %q, want apology", got)
	}

	// No assistant message recorded.
	sess := r.Sessions().Get(memory.SessionKey{Channel: "telegram", ChatID: "C123"})
	if sess == nil || len(sess.History) != 1 {
		t.Fatalf("history = %+v, want the user message only", sess)
	}
}

func TestRelay_StreamingDisabledFallsBackToComplete(t *testing.T) {
	t.Parallel()

	dispatcher := channel.NewDispatcher()
	mock := channel.NewMockStreamingChannel("telegram", channel.NewAllowList([]string{"user-1"}, nil))
	mock.SupportsStreamingFunc = func() bool { return false }
	_ = dispatcher.Register("telegram", mock)

	r, stop := newTestRelay(t, Config{
		Provider:       &fakeProvider{},
		ResponseSender: dispatcher,
		ChannelLookup:  dispatcher,
	})
	defer stop()

	_ = r.Submit(newTestMessage("m1", "hi"))
	waitFor(t, func() bool { return len(mock.SentMessages()) == 1 })

	if len(mock.StreamChunks()) != 0 {
		t.Error("stream path should not be used when streaming is disabled")
	}
	if got := mock.SentMessages()[0].Text; got != "ok" {
		t.Errorf("response = %q, want %q", got, "ok")
	}
}

func TestRelay_HistoryTrimming(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	r, stop := newTestRelay(t, Config{
		Provider:       &fakeProvider{},
		ResponseSender: sender,
		MaxHistory:     4,
	})
	defer stop()

	for i := 0; i < 5; i++ {
		_ = r.Submit(newTestMessage(fmt.Sprintf("m%d", i), "msg"))
	}
	waitFor(t, func() bool { return len(sender.Sent()) == 5 })

	sess := r.Sessions().Get(memory.SessionKey{Channel: "telegram", ChatID: "C123"})
	if len(sess.History) > 4 {
		t.Errorf("history length = %d, want <= 4", len(sess.History))
	}
}

func TestRelay_SubmitAfterStop(t *testing.T) {
	t.Parallel()

	r, stop := newTestRelay(t, Config{Provider: &fakeProvider{}, ResponseSender: &recordingSender{}})
	stop()

	err := r.Submit(newTestMessage("m1", "hello"))
	if !errors.Is(err, ErrRelayStopped) {
		t.Errorf("Submit after Stop = %v, want %v", err, ErrRelayStopped)
	}
}

func TestRelay_InboxFull(t *testing.T) {
	t.Parallel()

	r, err := New(Config{
		Provider:       &fakeProvider{},
		ResponseSender: &recordingSender{},
		InboxSize:      1,
		Logger:         discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Not started: nothing drains the inbox.
	if err := r.Submit(newTestMessage("m1", "a")); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := r.Submit(newTestMessage("m2", "b")); !errors.Is(err, ErrInboxFull) {
		t.Errorf("second Submit = %v, want %v", err, ErrInboxFull)
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"/start", "start"},
		{"/new", "new"},
		{"/START", "start"},
		{"/new@my_bot", "new"},
		{"  /start  ", "start"},
		{"/start now", "start"},
		{"hello", ""},
		{"", ""},
		{"not /a command", ""},
	}
	for _, tt := range tests {
		if got := parseCommand(tt.text); got != tt.want {
			t.Errorf("parseCommand(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
