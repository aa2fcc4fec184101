// Package app provides the shared entry point for the gemgram binary.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/avass/gemgram/internal/config"
	"github.com/avass/gemgram/internal/core"
	"github.com/avass/gemgram/internal/memory"
	"github.com/avass/gemgram/internal/metrics"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal is received.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	}))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("config.path", cfgPath)

	// The shared metrics registry is created up front so modules can
	// resolve it during Provision. The session gauge reads through the
	// service registry because the relay is wired after LoadModules.
	m := metrics.New(func() int {
		if svc, ok := appCtx.Service("relay.sessions"); ok {
			if store, ok := svc.(memory.ConversationStore); ok {
				return store.Len()
			}
		}
		return 0
	})
	appCtx.RegisterService(metrics.ServiceName, m)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	// Wire the relay between LoadModules and Start: discover channels and
	// the provider, create the dispatcher, call SetInbox on every channel,
	// and append the relay to the app lifecycle.
	if err := wireRelay(application, appCtx, ids, cfg.Relay, m, logger); err != nil {
		return err
	}

	// The scheduler picks up maintenance jobs registered by modules
	// (e.g. the SQLite WAL checkpoint) plus the metrics report.
	wireCron(application, appCtx, m, logger)

	if err := application.Start(); err != nil {
		return err
	}
	logger.Info("gemgram running", "version", params.Version, "config", cfgPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())
	application.Stop()
	logger.Info("shutdown complete")
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/gemgram/gemgram.yaml →
// ~/.config/gemgram/gemgram.yaml → ./gemgram.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "gemgram", "gemgram.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "gemgram", "gemgram.yaml"))
	}

	candidates = append(candidates, "gemgram.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/gemgram if set, otherwise ~/.local/share/gemgram.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "gemgram")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "gemgram")
}
