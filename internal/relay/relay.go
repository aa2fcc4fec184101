package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/avass/gemgram/internal/memory"
	"github.com/avass/gemgram/internal/metrics"
	"github.com/avass/gemgram/internal/provider"
	"github.com/avass/gemgram/pkg/message"
)

const (
	defaultInboxSize  = 256
	defaultMaxHistory = 100
)

// Default user-facing texts, overridable via configuration.
const (
	DefaultWelcomeText = "Hi! Send me a message and I'll answer. Use /new to start a fresh conversation."
	DefaultResetText   = "Starting over. Previous conversation has been cleared."
	DefaultApologyText = "Sorry, I couldn't generate a response. Please try again."
)

// Config holds the configuration for a Relay.
type Config struct {
	WorkerCount int
	InboxSize   int

	// MaxHistory caps the number of LLM messages kept in a session's
	// history. When exceeded, the oldest entries are trimmed. Zero means
	// use the default (100).
	MaxHistory int

	// SystemPrompt is prepended to every completion request.
	SystemPrompt string

	// WelcomeText, ResetText, and ApologyText are the fixed replies for
	// /start, /new, and generation failures. Empty means use the defaults.
	WelcomeText string
	ResetText   string
	ApologyText string

	Provider       provider.Provider
	ResponseSender ResponseSender

	// ChannelLookup resolves channels by name, used to reach streaming
	// and typing capabilities. Nil means plain sends only.
	ChannelLookup ChannelLookup

	// History, if non-nil, persists conversation history across restarts.
	History memory.HistoryStore

	// Metrics, if non-nil, receives relay instrumentation.
	Metrics *metrics.Metrics

	Logger *slog.Logger
}

// withDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.InboxSize <= 0 {
		c.InboxSize = defaultInboxSize
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = defaultMaxHistory
	}
	if c.WelcomeText == "" {
		c.WelcomeText = DefaultWelcomeText
	}
	if c.ResetText == "" {
		c.ResetText = DefaultResetText
	}
	if c.ApologyText == "" {
		c.ApologyText = DefaultApologyText
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Relay is the central dispatch layer. It maintains sessions, runs inbound
// messages through the turn sequence, and sends responses back via the
// correct channel.
type Relay struct {
	config   Config
	inbox    chan envelope
	inboxMu  sync.RWMutex
	store    memory.ConversationStore
	laneLock *LaneLock
	pool     *WorkerPool
	cancel   context.CancelFunc
	stopOnce sync.Once
	logger   *slog.Logger
	stopped  atomic.Bool
}

// New creates a Relay with the given configuration.
func New(cfg Config) (*Relay, error) {
	cfg = cfg.withDefaults()

	if cfg.Provider == nil {
		return nil, ErrNoProvider
	}
	if cfg.ResponseSender == nil {
		return nil, ErrNoResponseSender
	}

	return &Relay{
		config:   cfg,
		inbox:    make(chan envelope, cfg.InboxSize),
		store:    memory.NewInMemoryConversationStore(),
		laneLock: NewLaneLock(),
		pool:     NewWorkerPool(cfg.WorkerCount),
		logger:   cfg.Logger,
	}, nil
}

// Start launches the worker pool and begins processing messages.
func (r *Relay) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.inboxMu.Lock()
	if r.stopped.Load() {
		r.inboxMu.Unlock()
		cancel()
		r.logger.Warn("relay: start ignored, relay already stopped")
		return
	}
	r.cancel = cancel
	r.inboxMu.Unlock()

	r.pool.Start(ctx, r.inbox, r.handleTurn)
	r.logger.Info("relay: started", "workers", r.config.WorkerCount, "inbox_size", r.config.InboxSize)
}

// Submit enqueues an inbound message for processing.
// If the inbox is full, the message is dropped with a warning log.
func (r *Relay) Submit(msg message.InboundMessage) error {
	r.inboxMu.RLock()
	defer r.inboxMu.RUnlock()

	if r.stopped.Load() {
		return ErrRelayStopped
	}

	key := memory.SessionKeyFromMessage(msg)
	env := envelope{Message: msg, Key: key}

	// Non-blocking send — drop with warning if inbox is full.
	select {
	case r.inbox <- env:
		if r.config.Metrics != nil {
			r.config.Metrics.MessagesReceived.WithLabelValues(msg.Channel).Inc()
		}
		return nil
	default:
		r.logger.Warn("relay: inbox full, message dropped",
			"channel", key.Channel,
			"chat_id", key.ChatID,
		)
		return ErrInboxFull
	}
}

// Stop gracefully shuts down the relay: closes inbox, drains workers, cancels context.
func (r *Relay) Stop(_ context.Context) {
	r.stopOnce.Do(func() {
		r.logger.Info("relay: stopping")

		r.inboxMu.Lock()
		r.stopped.Store(true)
		close(r.inbox)
		cancel := r.cancel
		r.inboxMu.Unlock()

		// Cancel before waiting so in-flight handlers can terminate.
		if cancel != nil {
			cancel()
		}

		r.pool.Wait()
		r.logger.Info("relay: stopped")
	})
}

// Sessions returns the conversation store for external inspection.
func (r *Relay) Sessions() memory.ConversationStore {
	return r.store
}
