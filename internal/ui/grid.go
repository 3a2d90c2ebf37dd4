package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/panelwatch/internal/panel"
	"github.com/five82/panelwatch/internal/sysstat"
)

const (
	minPanelWidth  = 24
	minPanelHeight = 6
	barLabelWidth  = 18
)

// renderContent renders the body between tabs and footer.
func (m Model) renderContent() string {
	styles := m.theme.Styles()
	bodyHeight := maxInt(m.height-4, 1)

	s, ok := m.current()
	if !ok {
		msg := styles.MutedText.Render("no active scripts")
		if m.snapshot.LastError != nil {
			msg += "\n" + styles.DangerText.Render(truncate(m.snapshot.LastError.Error(), maxInt(m.width-4, 10)))
		}
		return lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, msg)
	}

	info := m.renderScriptLine()
	gridHeight := maxInt(bodyHeight-1, minPanelHeight)
	return lipgloss.JoinVertical(lipgloss.Left, info, m.renderGrid(s.Panels, gridHeight))
}

// renderGrid lays panels out left to right, m.columns per row.
func (m Model) renderGrid(panels []panel.Snapshot, height int) string {
	if len(panels) == 0 {
		return m.theme.Styles().FaintText.Render("no panels")
	}

	cols := m.columns
	if cols > len(panels) {
		cols = len(panels)
	}
	rows := (len(panels) + cols - 1) / cols

	cellWidth := maxInt(m.width/cols, minPanelWidth)
	cellHeight := maxInt(height/rows, minPanelHeight)

	var lines []string
	for r := 0; r < rows; r++ {
		start := r * cols
		end := start + cols
		if end > len(panels) {
			end = len(panels)
		}
		cells := make([]string, 0, cols)
		for _, p := range panels[start:end] {
			cells = append(cells, m.renderPanel(p, cellWidth, cellHeight))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderPanel draws one bordered panel of the given outer size.
func (m Model) renderPanel(p panel.Snapshot, width, height int) string {
	styles := m.theme.Styles()
	box := styles.Panel
	if p.Kind == panel.KindSystem {
		box = styles.SystemPanel
	}

	// Border takes two columns and rows, padding two columns.
	inner := maxInt(width-4, 1)
	rows := maxInt(height-2, 1)

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.PanelColor(p.Layout.Style))).
		Bold(true)
	body := []string{titleStyle.Render(truncate(panelTitle(p.Name, p.Layout.Title, p.Layout.Icon), inner))}

	if p.Kind == panel.KindSystem {
		body = append(body, m.systemLines(inner)...)
	} else {
		body = append(body, m.barLines(p.Bars, inner)...)
		body = append(body, m.logLines(p.Logs, inner)...)
	}
	if len(body) > rows {
		body = body[:rows]
	}

	return box.
		Width(width - 2).
		Height(rows).
		MaxHeight(height).
		Render(strings.Join(body, "\n"))
}

// barLines renders progress bars in insertion order.
func (m Model) barLines(bars []panel.Bar, width int) []string {
	styles := m.theme.Styles()
	lines := make([]string, 0, len(bars))
	for _, b := range bars {
		label := truncate(b.Text, barLabelWidth)
		pct := fmt.Sprintf("%5.1f%%", b.Percentage)
		barWidth := maxInt(width-barLabelWidth-len(pct)-2, 4)

		color := m.theme.Accent
		if b.Complete {
			color = m.theme.Success
		}
		bar := progress.New(
			progress.WithSolidFill(color),
			progress.WithoutPercentage(),
			progress.WithWidth(barWidth),
		)
		line := fmt.Sprintf("%-*s %s %s",
			barLabelWidth, label, bar.ViewAs(clampRatio(b.Percentage/100)), styles.MutedText.Render(pct))
		lines = append(lines, line)
	}
	return lines
}

// logLines renders entries newest first, colored by level.
func (m Model) logLines(entries []panel.Entry, width int) []string {
	styles := m.theme.Styles()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.LevelColor(e.Level)))
		ts := ""
		if e.Timestamp != "" {
			ts = styles.FaintText.Render(e.Timestamp) + " "
		}
		content := truncate(strings.ReplaceAll(e.Content, "\n", " "), maxInt(width-len(e.Timestamp)-1, 1))
		lines = append(lines, ts+style.Render(content))
	}
	return lines
}

// systemLines renders host metrics for a system panel.
func (m Model) systemLines(width int) []string {
	styles := m.theme.Styles()
	if !m.snapshot.HasSystem {
		return []string{styles.FaintText.Render("sampling...")}
	}
	sys := m.snapshot.System
	gauge := func(label string, pct float64) string {
		bar := progress.New(
			progress.WithSolidFill(m.theme.Info),
			progress.WithoutPercentage(),
			progress.WithWidth(maxInt(width-12, 4)),
		)
		return fmt.Sprintf("%-4s %s %5.1f%%", label, bar.ViewAs(clampRatio(pct/100)), pct)
	}
	return []string{
		gauge("CPU", sys.CPU),
		gauge("MEM", sys.Memory),
		styles.MutedText.Render("disk ") + styles.Text.Render(diskRates(sys)),
	}
}

func diskRates(sys sysstat.Stats) string {
	return fmt.Sprintf("R %.1f MB/s  W %.1f MB/s", sys.DiskReadMBps, sys.DiskWriteMBps)
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
