package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// renderHeader renders the status bar: logo, host stats and poll state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	sep := "  "

	parts := []string{styles.Logo.Render("panelwatch")}

	if m.snapshot.IsOffline() {
		parts = append(parts, styles.DangerText.Render("REGISTRY UNREADABLE"))
	} else if m.snapshot.LastError != nil {
		parts = append(parts, styles.WarningText.Render("Retrying..."))
	}

	active := len(m.activeScripts())
	parts = append(parts,
		styles.MutedText.Render("Active:")+" "+styles.Text.Render(fmt.Sprintf("%d/%d", active, len(m.snapshot.Scripts))))

	if m.snapshot.HasSystem {
		sys := m.snapshot.System
		parts = append(parts,
			styles.MutedText.Render("CPU")+" "+styles.Text.Render(fmt.Sprintf("%.1f%%", sys.CPU)),
			styles.MutedText.Render("MEM")+" "+styles.Text.Render(fmt.Sprintf("%.1f%%", sys.Memory)),
			styles.MutedText.Render("R")+" "+styles.Text.Render(fmt.Sprintf("%.1f MB/s", sys.DiskReadMBps)),
			styles.MutedText.Render("W")+" "+styles.Text.Render(fmt.Sprintf("%.1f MB/s", sys.DiskWriteMBps)),
		)
	}

	if !m.lastUpdated.IsZero() {
		parts = append(parts, styles.FaintText.Render(m.lastUpdated.Format("15:04:05")))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// renderTabs renders one tab per active script.
func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	active := m.activeScripts()
	if len(active) == 0 {
		return ""
	}

	tabs := make([]string, 0, len(active))
	for _, s := range active {
		label := tabLabel(s.Name, s.Started)
		if s.ID == m.selected {
			tabs = append(tabs, styles.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, styles.Tab.Render(label))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return lipgloss.NewStyle().MaxWidth(m.width).Render(row)
}

// renderScriptLine summarises the selected script above its panels.
func (m Model) renderScriptLine() string {
	styles := m.theme.Styles()
	s, ok := m.current()
	if !ok {
		return ""
	}

	parts := []string{
		styles.AccentText.Bold(true).Render(s.Name),
		styles.MutedText.Render("elapsed") + " " + styles.Text.Render(formatElapsed(s.Elapsed)),
	}
	if !s.LastUpdate.IsZero() {
		parts = append(parts, styles.MutedText.Render("last event")+" "+
			styles.Text.Render(humanize.RelTime(s.LastUpdate, m.now(), "ago", "from now")))
	}
	parts = append(parts,
		styles.MutedText.Render("read")+" "+styles.Text.Render(humanize.Bytes(uint64(maxInt64(s.Offset, 0)))),
		styles.FaintText.Render(truncateMiddle(s.LogFile, 50)),
	)
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, "  "))
}

// renderFooter shows the short help plus the latest notice or warning.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	line := m.help.View(m.keys)

	msg := m.notice
	if n := len(m.snapshot.Warnings); n > 0 {
		msg = m.snapshot.Warnings[n-1]
	}
	if msg != "" {
		line += "  " + styles.WarningText.Render(truncate(msg, maxInt(m.width/2, 20)))
	}
	return styles.Footer.Width(m.width).Render(line)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
