// Package app provides the orchestration layer for panelwatch.
//
// # Overview
//
// This package wires together configuration, the monitor registry, the
// system sampler, state management and the UI. It is the composition root
// where all dependencies are initialized and connected.
//
// # Components
//
//   - app.go: Run and the output modes (TUI, plain, once, JSON)
//   - poller.go: background goroutine that rescans registrations, polls
//     logs and samples the host once per tick
//   - logger.go: zap logger writing JSON to the configured log file
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()          Read panelwatch config
//	       ├─────> newLogger()            File logger (the TUI owns stdout)
//	       ├─────> monitor.NewRegistry()  Per-script panel state
//	       ├─────> registration.Watch()   fsnotify on the registry dir
//	       ├─────> StartPoller()          Launch background updates
//	       └─────> ui.Run()               Start TUI (blocks)
//
//	Background Poller Loop:
//	┌─────────────────────────────────────────┐
//	│ StartPoller() goroutine                 │
//	│  ├─> registration.LoadDir() on change   │
//	│  ├─> Registry.PollAll()                 │
//	│  ├─> Sampler.Sample()                   │
//	│  └─> store.Update()  (atomic)           │
//	│      └─> UI reads store.Snapshot()      │
//	└─────────────────────────────────────────┘
//
// # Polling Behavior
//
// The poller ticks at poll_interval (default 1 second). Registrations are
// rescanned when the directory watcher fires, or on every tick if watching
// could not be set up. When force_reload is set, every script is cleared
// and its log re-read from the start at that cadence; the UI reload key
// does the same on demand.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid configuration file
//   - Logger or registry directory setup failure
//
// Recoverable errors (logged, polling continues):
//   - Unreadable registry directory, retried with exponential backoff
//     capped at 30 seconds; the store marks the dashboard offline
//   - Undecodable or unreadable log files, surfaced as warnings
//   - Partial system samples
//
// # Usage Example
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := app.Run(ctx, app.Options{Mode: app.ModeTUI}); err != nil {
//		log.Fatalf("panelwatch failed: %v", err)
//	}
package app
