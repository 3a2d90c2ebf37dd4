// Package ui provides the terminal dashboard for panelwatch.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model polls state.Store on a tick and
// renders the latest snapshot; it never touches log files or the monitor
// registry directly. The interface is read-only apart from the reload key,
// which asks the poller to drop cached script state.
//
// # Package Structure
//
//   - app.go: Model, Update loop, commands and Run
//   - header.go: status bar, script tabs, script summary line and footer
//   - grid.go: panel grid, progress bars, log lines and the system panel
//   - plain.go: PrintSnapshot for non-terminal output
//   - keys.go, help.go: key bindings and the help overlay
//   - theme.go: color themes and Lipgloss styles
//   - strings.go: truncation and time formatting helpers
//
// # Layout
//
// One tab is shown per active script, labelled "name@HH:MM:SS" with the
// script start time. The selected script's panels are laid out in a grid
// of 1 to 4 columns. Each panel lists its progress bars first, in the order
// they appeared, then its log entries newest first. Panels declared with
// kind "system" show host CPU, memory and disk rates instead.
//
// # Preferences
//
// Theme and column count changes are saved to the prefs file as soon as
// they are made, so the next session opens the same way.
package ui
