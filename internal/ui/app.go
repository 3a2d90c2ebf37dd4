package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/panelwatch/internal/monitor"
	"github.com/five82/panelwatch/internal/prefs"
	"github.com/five82/panelwatch/internal/state"
)

// Reloader discards cached script state so logs are re-read from the start.
type Reloader interface {
	RequestReload()
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Store     *state.Store
	Reloader  Reloader
	PollTick  time.Duration
	ThemeName string
	Columns   int
	PrefsPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	store     *state.Store
	reloader  Reloader
	prefsPath string
	pollTick  time.Duration
	now       func() time.Time

	// UI state
	theme    Theme
	keys     keyMap
	help     help.Model
	width    int
	height   int
	ready    bool
	showHelp bool
	columns  int
	notice   string

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time
	selected    string // id of the script whose tab is shown
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = time.Second
	}

	columns := opts.Columns
	if columns == 0 {
		columns = prefs.DefaultColumns
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	return Model{
		ctx:       ctx,
		store:     opts.Store,
		reloader:  opts.Reloader,
		prefsPath: prefsPath,
		pollTick:  pollTick,
		now:       time.Now,
		theme:     GetTheme(opts.ThemeName),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		columns:   prefs.ClampColumns(columns),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	// Fetch snapshot immediately on start
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.pollTick))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = m.now()
		m.ensureSelection()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.NextScript):
		m.moveSelection(1)

	case key.Matches(msg, m.keys.PrevScript):
		m.moveSelection(-1)

	case key.Matches(msg, m.keys.MoreColumns):
		m.setColumns(m.columns + 1)

	case key.Matches(msg, m.keys.FewerColumn):
		m.setColumns(m.columns - 1)

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()

	case key.Matches(msg, m.keys.Reload):
		if m.reloader != nil {
			m.reloader.RequestReload()
			m.notice = "cache cleared, re-reading logs"
		}
	}
	return m, nil
}

func (m *Model) setColumns(n int) {
	n = prefs.ClampColumns(n)
	if n == m.columns {
		return
	}
	m.columns = n
	m.savePrefs()
}

func (m *Model) savePrefs() {
	if m.prefsPath != "" {
		_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, ColumnsPerRow: m.columns})
	}
}

// activeScripts returns the scripts that get a tab.
func (m Model) activeScripts() []monitor.ScriptSnapshot {
	return m.snapshot.Active()
}

// ensureSelection keeps the selected tab on an active script.
func (m *Model) ensureSelection() {
	active := m.activeScripts()
	if len(active) == 0 {
		m.selected = ""
		return
	}
	for _, s := range active {
		if s.ID == m.selected {
			return
		}
	}
	m.selected = active[0].ID
}

func (m *Model) moveSelection(delta int) {
	active := m.activeScripts()
	if len(active) == 0 {
		return
	}
	idx := 0
	for i, s := range active {
		if s.ID == m.selected {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(active)) % len(active)
	m.selected = active[idx].ID
}

// current returns the script shown in the body.
func (m Model) current() (monitor.ScriptSnapshot, bool) {
	for _, s := range m.activeScripts() {
		if s.ID == m.selected {
			return s, true
		}
	}
	return monitor.ScriptSnapshot{}, false
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	programOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		programOpts = append(programOpts, tea.WithContext(opts.Context))
	}
	p := tea.NewProgram(m, programOpts...)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && opts.Context != nil && opts.Context.Err() != nil {
		return nil
	}
	return err
}
