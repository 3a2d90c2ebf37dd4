package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/five82/panelwatch/internal/monitor"
	"github.com/five82/panelwatch/internal/panel"
	"github.com/five82/panelwatch/internal/state"
)

const plainBarWidth = 20

// PrintSnapshot writes a plain-text rendering of the active scripts.
// It is used when stdout is not a terminal and by watch --once.
func PrintSnapshot(w io.Writer, snap state.Snapshot, now time.Time) error {
	var b strings.Builder

	if snap.HasSystem {
		sys := snap.System
		fmt.Fprintf(&b, "system: cpu %.1f%%  mem %.1f%%  %s\n", sys.CPU, sys.Memory, diskRates(sys))
	}
	if snap.LastError != nil {
		fmt.Fprintf(&b, "error: %v\n", snap.LastError)
	}

	active := snap.Active()
	if len(active) == 0 {
		b.WriteString("no active scripts\n")
	}
	for i, s := range active {
		if i > 0 {
			b.WriteString("\n")
		}
		writeScript(&b, s, now)
	}

	for _, warn := range snap.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", warn)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeScript(b *strings.Builder, s monitor.ScriptSnapshot, now time.Time) {
	fmt.Fprintf(b, "== %s  elapsed %s", tabLabel(s.Name, s.Started), formatElapsed(s.Elapsed))
	if !s.LastUpdate.IsZero() {
		fmt.Fprintf(b, "  last event %s", humanize.RelTime(s.LastUpdate, now, "ago", "from now"))
	}
	b.WriteString("\n")

	for _, p := range s.Panels {
		if p.Kind == panel.KindSystem {
			continue
		}
		if len(p.Bars) == 0 && len(p.Logs) == 0 {
			continue
		}
		fmt.Fprintf(b, "-- %s\n", panelTitle(p.Name, p.Layout.Title, p.Layout.Icon))
		for _, bar := range p.Bars {
			fmt.Fprintf(b, "   %s %5.1f%% %s\n", textBar(bar.Percentage, plainBarWidth), bar.Percentage, bar.Text)
		}
		for _, e := range p.Logs {
			if e.Timestamp != "" {
				fmt.Fprintf(b, "   %s [%s] %s\n", e.Timestamp, e.Level, e.Content)
			} else {
				fmt.Fprintf(b, "   [%s] %s\n", e.Level, e.Content)
			}
		}
	}
}

// textBar renders pct (0-100) as "[#####.....]".
func textBar(pct float64, width int) string {
	filled := int(clampRatio(pct/100)*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
