package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/five82/panelwatch/internal/config"
	"github.com/five82/panelwatch/internal/monitor"
	"github.com/five82/panelwatch/internal/prefs"
	"github.com/five82/panelwatch/internal/registration"
	"github.com/five82/panelwatch/internal/state"
	"github.com/five82/panelwatch/internal/sysstat"
	"github.com/five82/panelwatch/internal/ui"
)

// Mode selects how Run presents the dashboard.
type Mode int

const (
	// ModeTUI runs the interactive dashboard.
	ModeTUI Mode = iota
	// ModePlain prints a text snapshot every poll interval.
	ModePlain
	// ModeOnce runs one poll cycle and prints it as text.
	ModeOnce
	// ModeJSON runs one poll cycle and prints it as JSON.
	ModeJSON
)

// Options configure the panelwatch application.
type Options struct {
	ConfigPath  string
	PrefsPath   string // empty uses default ~/.config/panelwatch/prefs.toml
	RegistryDir string // overrides registry_dir from the config
	PollEvery   time.Duration
	Mode        Mode
	Out         io.Writer // plain and JSON output; defaults to stdout
}

// Run boots panelwatch until the context is cancelled or the UI exits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.RegistryDir != "" {
		dir, err := config.ExpandPath(opts.RegistryDir)
		if err != nil {
			return fmt.Errorf("resolve registry dir: %w", err)
		}
		cfg.RegistryDir = dir
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = opts.PollEvery
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	logger, err := newLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store := &state.Store{}
	poller := newPoller(cfg, store, logger)

	switch opts.Mode {
	case ModeOnce:
		_ = poller.refresh(ctx)
		return ui.PrintSnapshot(out, store.Snapshot(), time.Now())
	case ModeJSON:
		_ = poller.refresh(ctx)
		return writeJSON(out, store.Snapshot())
	}

	if err := os.MkdirAll(cfg.RegistryDir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	changes, err := registration.Watch(ctx, cfg.RegistryDir, logger.Named("watch"))
	if err != nil {
		logger.Warn("registry watch unavailable, rescanning every tick", zap.Error(err))
	} else {
		poller.Watch(changes)
	}

	// Populate the store before the first frame.
	_ = poller.refresh(ctx)
	StartPoller(ctx, poller, cfg.PollInterval)
	logger.Info("panelwatch started",
		zap.String("registry_dir", cfg.RegistryDir),
		zap.Duration("poll_interval", cfg.PollInterval))

	if opts.Mode == ModePlain {
		return runPlain(ctx, store, out, cfg.PollInterval)
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("load prefs", zap.Error(err))
	}
	return ui.Run(ui.Options{
		Context:   ctx,
		Store:     store,
		Reloader:  poller,
		PollTick:  cfg.PollInterval,
		ThemeName: userPrefs.Theme,
		Columns:   userPrefs.ColumnsPerRow,
		PrefsPath: opts.PrefsPath,
	})
}

func newPoller(cfg config.Config, store *state.Store, logger *zap.Logger) *Poller {
	registry := monitor.NewRegistry(
		monitor.WithLogger(logger.Named("monitor")),
		monitor.WithTimeout(cfg.InactiveTimeout),
		monitor.WithMaxConcurrentReads(cfg.MaxConcurrentReads),
		monitor.WithTailOptions(cfg.TailOptions()...),
	)
	p := NewPoller(registry, sysstat.NewSampler(), store, cfg.RegistryDir, logger.Named("poller"))
	p.SetForceReload(cfg.ForceReload)
	return p
}

// runPlain prints the store every interval until ctx ends.
func runPlain(ctx context.Context, store *state.Store, out io.Writer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := ui.PrintSnapshot(out, store.Snapshot(), time.Now()); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		if _, err := io.WriteString(out, "\n"); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// jsonSnapshot is the wire form printed by the snapshot command.
type jsonSnapshot struct {
	Scripts  []monitor.ScriptSnapshot `json:"scripts"`
	System   *sysstat.Stats           `json:"system,omitempty"`
	Warnings []string                 `json:"warnings,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

func writeJSON(w io.Writer, snap state.Snapshot) error {
	payload := jsonSnapshot{
		Scripts:  snap.Scripts,
		Warnings: snap.Warnings,
	}
	if payload.Scripts == nil {
		payload.Scripts = []monitor.ScriptSnapshot{}
	}
	if snap.HasSystem {
		sys := snap.System
		payload.System = &sys
	}
	if snap.LastError != nil {
		payload.Error = snap.LastError.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}
