// Package sqlite implements the memory.sqlite module: a persistent,
// SQLite-backed HistoryStore so conversations survive restarts. It uses
// modernc.org/sqlite (pure Go, no CGO) with WAL mode and registers a
// periodic WAL checkpoint job with the cron scheduler.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/avass/gemgram/internal/core"
	"github.com/avass/gemgram/internal/memory"

	_ "modernc.org/sqlite" // SQLite driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ memory.HistoryStore = (*historyStore)(nil)
	_ core.Configurable   = (*Module)(nil)
	_ core.Provisioner    = (*Module)(nil)
	_ core.Validator      = (*Module)(nil)
	_ core.Stopper        = (*Module)(nil)
)

// Module implements a SQLite-backed conversation history store.
type Module struct {
	config  Config
	db      *sql.DB
	logger  *slog.Logger
	history *historyStore
}

// historyStore implements memory.HistoryStore backed by SQLite.
type historyStore struct {
	db *sql.DB
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	if dir := filepath.Dir(m.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := openDB(m.config.Path, m.config.walEnabled(), m.config.BusyTimeout)
	if err != nil {
		return err
	}

	m.db = db
	m.history = &historyStore{db: db}

	ctx.RegisterService("memory.history", m.history)

	if m.config.walEnabled() {
		ctx.RegisterService("cron.job.sqlite_checkpoint", &CheckpointJob{
			DB:           db,
			Logger:       m.logger,
			ScheduleExpr: m.config.CheckpointSchedule,
		})
	}

	m.logger.Info("sqlite history store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}

	if err := m.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}

	var n int
	if err := m.db.QueryRowContext(context.TODO(), "SELECT count(*) FROM messages").Scan(&n); err != nil {
		return fmt.Errorf("sqlite: schema check failed: %w", err)
	}

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite history store stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// History returns the HistoryStore implementation.
func (m *Module) History() memory.HistoryStore {
	return m.history
}
