package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/avass/gemgram/internal/channel"
	"github.com/avass/gemgram/internal/core"
	"github.com/avass/gemgram/internal/gateway"
	"github.com/avass/gemgram/internal/metrics"
	"github.com/avass/gemgram/pkg/message"
)

// ChannelName is the canonical channel identifier used in inbound and
// outbound messages.
const ChannelName = "telegram"

func init() {
	core.RegisterModule(new(Telegram))
}

// Telegram bridges the Telegram Bot API to the relay.
type Telegram struct {
	config Config

	client    *Client
	logger    *slog.Logger
	appCtx    *core.AppContext
	metrics   *metrics.Metrics
	webhooks  *gateway.WebhookDispatcher
	allowList *channel.AllowList
	inbox     func(msg message.InboundMessage) error

	botUsername string

	streamingDisabled atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Interface guards.
var (
	_ channel.Channel          = (*Telegram)(nil)
	_ channel.StreamingChannel = (*Telegram)(nil)
	_ channel.TypingChannel    = (*Telegram)(nil)
	_ core.Configurable        = (*Telegram)(nil)
	_ core.Provisioner         = (*Telegram)(nil)
	_ core.Validator           = (*Telegram)(nil)
	_ core.Starter             = (*Telegram)(nil)
	_ core.Stopper             = (*Telegram)(nil)
	_ gateway.WebhookHandler   = (*Telegram)(nil)
)

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return new(Telegram) },
	}
}

// Configure decodes the module's YAML configuration.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	return nil
}

// Provision sets defaults, builds the API client, and resolves shared
// services.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.config.applyDefaults()
	t.logger = ctx.Logger
	t.client = NewClient(t.config.resolveToken(), t.config.BaseURL)
	t.allowList = channel.NewAllowList(t.config.AllowedUsers, t.config.AllowedGroups)

	if svc, ok := ctx.Service(metrics.ServiceName); ok {
		if m, ok := svc.(*metrics.Metrics); ok {
			t.metrics = m
		}
	}

	// The webhook dispatcher is resolved in Start: the gateway module may
	// provision after this one, and all modules are provisioned before any
	// Start runs.
	t.appCtx = ctx

	return nil
}

// Validate checks the configuration.
func (t *Telegram) Validate() error {
	return t.config.validate()
}

// SetInbox implements channel.Channel.
func (t *Telegram) SetInbox(fn func(msg message.InboundMessage) error) {
	t.inbox = fn
}

// Start identifies the bot and begins receiving updates in the configured
// mode.
func (t *Telegram) Start() error {
	if t.inbox == nil {
		return channel.ErrNoInbox
	}

	if t.config.Mode == "webhook" {
		svc, ok := t.appCtx.Service("gateway.webhook_dispatcher")
		if !ok {
			return fmt.Errorf("telegram: webhook mode requires the gateway module")
		}
		d, ok := svc.(*gateway.WebhookDispatcher)
		if !ok {
			return fmt.Errorf("telegram: unexpected webhook dispatcher type %T", svc)
		}
		t.webhooks = d
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	me, err := t.client.GetMe(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("telegram: getMe: %w", err)
	}
	t.botUsername = me.Username

	switch t.config.Mode {
	case "webhook":
		if err := t.registerWebhook(ctx); err != nil {
			cancel()
			return err
		}
		t.logger.Info("telegram channel started",
			slog.String("bot", me.Username),
			slog.String("mode", "webhook"))

	default:
		p := &poller{
			client:  t.client,
			logger:  t.logger,
			timeout: t.config.PollTimeout,
			limit:   t.config.PollLimit,
			handle:  t.handleUpdate,
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			p.run(ctx)
		}()
		t.logger.Info("telegram channel started",
			slog.String("bot", me.Username),
			slog.String("mode", "polling"))
	}

	return nil
}

// Stop cancels the receive loop and, in webhook mode, removes the webhook.
func (t *Telegram) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	if t.config.Mode == "webhook" && t.client != nil {
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("deleteWebhook failed", slog.String("error", err.Error()))
		}
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// handleUpdate converts a raw update, applies the allow-list, and pushes the
// result to the relay. Shared by the poller and the webhook receiver.
func (t *Telegram) handleUpdate(upd Update) {
	raw := upd.Message
	if raw == nil {
		return
	}

	msg := convertInbound(raw, t.botUsername)
	if msg == nil {
		return
	}

	if !t.allowList.IsAllowed(*msg) {
		t.logger.Debug("message denied by allow-list",
			slog.String("sender", msg.Sender.ID),
			slog.String("chat", msg.Chat.ID))
		return
	}

	if err := t.inbox(*msg); err != nil {
		t.logger.Warn("inbox rejected message",
			slog.String("chat", msg.Chat.ID),
			slog.String("error", err.Error()))
	}
}

// Send implements channel.Channel.
func (t *Telegram) Send(ctx context.Context, msg message.OutboundMessage) error {
	return t.sendOutbound(ctx, msg)
}

// SendTyping implements channel.TypingChannel.
func (t *Telegram) SendTyping(ctx context.Context, chat message.Chat) error {
	chatID, err := parseChatID(chat.ID)
	if err != nil {
		return err
	}
	return t.client.SendChatAction(ctx, chatID, "typing")
}
