package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/five82/panelwatch/internal/monitor"
	"github.com/five82/panelwatch/internal/panel"
	"github.com/five82/panelwatch/internal/sysstat"
)

// maxWarnings bounds the warning history kept for the UI.
const maxWarnings = 5

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Scripts             []monitor.ScriptSnapshot
	System              sysstat.Stats
	HasSystem           bool
	Warnings            []string // newest last
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed poll cycles
}

// IsOffline returns true when the registry has been unreadable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Active returns the active scripts sorted by name.
func (s Snapshot) Active() []monitor.ScriptSnapshot {
	var out []monitor.ScriptSnapshot
	for _, sc := range s.Scripts {
		if sc.Active {
			out = append(out, sc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Script looks up one script by id.
func (s Snapshot) Script(id string) (monitor.ScriptSnapshot, bool) {
	for _, sc := range s.Scripts {
		if sc.ID == id {
			return sc, true
		}
	}
	return monitor.ScriptSnapshot{}, false
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored snapshot. When err is non-nil the previous data is
// kept but the error is recorded for visibility. A nil system sample keeps
// the previous one.
func (s *Store) Update(scripts []monitor.ScriptSnapshot, system *sysstat.Stats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Scripts = cloneScripts(scripts)
	if system != nil {
		s.snapshot.System = *system
		s.snapshot.HasSystem = true
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Warn records a recoverable problem for display.
func (s *Store) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Warnings = append(s.snapshot.Warnings, msg)
	if over := len(s.snapshot.Warnings) - maxWarnings; over > 0 {
		s.snapshot.Warnings = append([]string(nil), s.snapshot.Warnings[over:]...)
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Scripts = cloneScripts(s.snapshot.Scripts)
	snap.Warnings = append([]string(nil), s.snapshot.Warnings...)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneScripts(scripts []monitor.ScriptSnapshot) []monitor.ScriptSnapshot {
	if len(scripts) == 0 {
		return nil
	}
	dup := make([]monitor.ScriptSnapshot, len(scripts))
	for i, sc := range scripts {
		dup[i] = sc
		dup[i].Panels = clonePanels(sc.Panels)
	}
	return dup
}

func clonePanels(panels []panel.Snapshot) []panel.Snapshot {
	if panels == nil {
		return nil
	}
	dup := make([]panel.Snapshot, len(panels))
	for i, p := range panels {
		dup[i] = p
		dup[i].Logs = append([]panel.Entry(nil), p.Logs...)
		dup[i].Bars = append([]panel.Bar(nil), p.Bars...)
	}
	return dup
}
