// Package state provides thread-safe state management for the dashboard.
//
// # Overview
//
// The poller and the UI run on separate goroutines. The poller owns the
// monitor registry and the host sampler; the UI only ever sees copies
// handed out by a Store.
//
//	Producer (Poller):               Consumer (UI):
//	┌──────────────────────┐        ┌──────────────────┐
//	│ registry.PollAll()   │        │                  │
//	│ registry.Snapshots() │        │                  │
//	│ sampler.Sample()     │        │                  │
//	│      ↓               │        │                  │
//	│ store.Update()       │───────→│ store.Snapshot() │
//	└──────────────────────┘ (mutex)└──────────────────┘
//
// # Update Semantics
//
//	store.Update(scripts, &stats, nil)
//	→ Scripts, System replaced, LastError cleared, failures reset
//
//	store.Update(nil, nil, err)
//	→ previous Scripts and System kept
//	→ LastError = err, ConsecutiveFailures++
//
// Errors here mean a whole cycle failed, typically the registry directory
// could not be scanned. Per-script read problems never reach Update; they
// are recorded with Warn and shown as a short history.
//
// # Copying
//
// Update and Snapshot both deep-copy script and panel slices so the UI can
// hold a snapshot while the poller keeps going. The zero Store is ready to
// use.
package state
