package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avass/gemgram/internal/channel"
	"github.com/avass/gemgram/internal/config"
	"github.com/avass/gemgram/internal/core"
	"github.com/avass/gemgram/internal/cron"
	"github.com/avass/gemgram/internal/memory"
	"github.com/avass/gemgram/internal/metrics"
	"github.com/avass/gemgram/internal/provider"
	"github.com/avass/gemgram/internal/relay"
)

// relayModule wraps a *relay.Relay to satisfy core.Module, core.Starter,
// and core.Stopper, so the relay participates in the App lifecycle.
type relayModule struct {
	relay *relay.Relay
	ctx   context.Context
}

func (m *relayModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "relay"}
}

func (m *relayModule) Start() error {
	m.relay.Start(m.ctx)
	return nil
}

func (m *relayModule) Stop(ctx context.Context) error {
	m.relay.Stop(ctx)
	return nil
}

// cronModule wraps a *cron.Scheduler for the App lifecycle.
type cronModule struct {
	scheduler *cron.Scheduler
}

func (m *cronModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

func (m *cronModule) Start() error {
	return m.scheduler.Start()
}

func (m *cronModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// channelName derives the dispatch name from a module ID: the portion
// after the namespace ("channel.telegram" → "telegram"). Channels stamp
// this short name into InboundMessage.Channel.
func channelName(id string) string {
	if _, name, ok := strings.Cut(id, "."); ok {
		return name
	}
	return id
}

// wireRelay creates the Relay and Dispatcher, wires them to every loaded
// channel, and appends the relay to the app lifecycle. Must be called
// after LoadModules and before Start.
func wireRelay(
	app *core.App,
	appCtx *core.AppContext,
	ids []string,
	relayCfg config.RelayConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) error {
	dispatcher := channel.NewDispatcher()
	var channels []channel.Channel
	var llm provider.Provider

	for _, id := range ids {
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if ch, ok := mod.(channel.Channel); ok {
			name := channelName(id)
			if err := dispatcher.Register(name, ch); err != nil {
				return fmt.Errorf("registering channel %s: %w", name, err)
			}
			channels = append(channels, ch)
			logger.Info("relay: registered channel", "channel", name)
		}
		if p, ok := mod.(provider.Provider); ok {
			if llm != nil {
				return fmt.Errorf("relay: multiple provider modules loaded, configure exactly one")
			}
			llm = p
			logger.Info("relay: discovered provider", "module", id, "model", p.ModelName())
		}
	}

	if len(channels) == 0 {
		return fmt.Errorf("relay: at least one channel module is required")
	}
	if llm == nil {
		return fmt.Errorf("relay: a provider module is required")
	}

	// Persistent history is optional; without it conversations reset on
	// restart.
	var history memory.HistoryStore
	if svc, ok := appCtx.Service("memory.history"); ok {
		if h, ok := svc.(memory.HistoryStore); ok {
			history = h
			logger.Info("relay: persistent history enabled")
		}
	}

	r, err := relay.New(relay.Config{
		WorkerCount:    relayCfg.Workers,
		InboxSize:      relayCfg.InboxSize,
		MaxHistory:     relayCfg.MaxHistory,
		SystemPrompt:   relayCfg.SystemPrompt,
		WelcomeText:    relayCfg.WelcomeText,
		ResetText:      relayCfg.ResetText,
		ApologyText:    relayCfg.ApologyText,
		Provider:       llm,
		ResponseSender: dispatcher,
		ChannelLookup:  dispatcher,
		History:        history,
		Metrics:        m,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	for _, ch := range channels {
		ch.SetInbox(r.Submit)
	}

	app.AppendModule("relay", &relayModule{
		relay: r,
		ctx:   context.Background(),
	})

	// Register the session store for the gateway and metrics to discover.
	appCtx.RegisterService("relay.sessions", r.Sessions())

	logger.Info("relay: wired", "channels", len(channels))
	return nil
}

// wireCron collects maintenance jobs registered by modules under the
// "cron.job." service prefix, adds the metrics report job, and appends
// the scheduler to the app lifecycle.
func wireCron(
	app *core.App,
	appCtx *core.AppContext,
	m *metrics.Metrics,
	logger *slog.Logger,
) {
	scheduler := cron.NewScheduler(logger)

	for name, svc := range appCtx.ServicesByPrefix("cron.job.") {
		job, ok := svc.(cron.Job)
		if !ok {
			logger.Warn("cron: service is not a job, skipping", "service", name)
			continue
		}
		if err := scheduler.RegisterJob(job); err != nil {
			logger.Warn("cron: job registration failed", "job", job.Name(), "error", err)
			continue
		}
		logger.Info("cron: job registered", "job", job.Name(), "schedule", job.Schedule())
	}

	if err := scheduler.RegisterJob(&cron.MetricsReportJob{
		Metrics: m,
		Logger:  logger,
	}); err != nil {
		logger.Warn("cron: metrics report registration failed", "error", err)
	}

	app.AppendModule("cron", &cronModule{scheduler: scheduler})
}
