package ui

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/panelwatch/internal/monitor"
	"github.com/five82/panelwatch/internal/panel"
	"github.com/five82/panelwatch/internal/prefs"
	"github.com/five82/panelwatch/internal/state"
)

type fakeReloader struct {
	calls int
}

func (f *fakeReloader) RequestReload() { f.calls++ }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testSnapshot() state.Snapshot {
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	return state.Snapshot{
		Scripts: []monitor.ScriptSnapshot{
			{ID: "b", Name: "beta", Active: true, Started: started},
			{ID: "a", Name: "alpha", Active: true, Started: started, Panels: []panel.Snapshot{
				{Name: "status", Layout: panel.Layout{Title: "Status"}, Logs: []panel.Entry{{Level: "info", Content: "hello world"}}},
				{Name: "progress", Layout: panel.Layout{Title: "Progress"}, Bars: []panel.Bar{{ID: "load", Percentage: 40, Text: "load 40.0%"}}},
			}},
			{ID: "z", Name: "zombie", Active: false, Started: started},
		},
	}
}

func newTestModel(t *testing.T, r Reloader) (Model, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.toml")
	m := New(Options{Reloader: r, PrefsPath: path, ThemeName: "Nightfox"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	next, _ = next.Update(snapshotMsg(testSnapshot()))
	return next.(Model), path
}

func TestModelSelectsFirstActiveScript(t *testing.T) {
	m, _ := newTestModel(t, nil)
	if m.selected != "a" {
		t.Fatalf("selected = %q, want a", m.selected)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.selected != "b" {
		t.Fatalf("after tab selected = %q, want b", m.selected)
	}

	// Inactive scripts are skipped, so tab wraps back to alpha.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.selected != "a" {
		t.Fatalf("after second tab selected = %q, want a", m.selected)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(Model)
	if m.selected != "b" {
		t.Fatalf("after shift+tab selected = %q, want b", m.selected)
	}
}

func TestModelKeepsSelectionAcrossSnapshots(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m.selected = "b"

	next, _ := m.Update(snapshotMsg(testSnapshot()))
	m = next.(Model)
	if m.selected != "b" {
		t.Fatalf("selected = %q, want b", m.selected)
	}

	snap := testSnapshot()
	snap.Scripts[0].Active = false
	next, _ = m.Update(snapshotMsg(snap))
	m = next.(Model)
	if m.selected != "a" {
		t.Fatalf("selected after beta went inactive = %q, want a", m.selected)
	}

	next, _ = m.Update(snapshotMsg(state.Snapshot{}))
	m = next.(Model)
	if m.selected != "" {
		t.Fatalf("selected with nothing active = %q, want empty", m.selected)
	}
}

func TestModelColumnsClampAndPersist(t *testing.T) {
	m, path := newTestModel(t, nil)
	if m.columns != prefs.DefaultColumns {
		t.Fatalf("columns = %d, want %d", m.columns, prefs.DefaultColumns)
	}

	for i := 0; i < 5; i++ {
		next, _ := m.Update(runes("+"))
		m = next.(Model)
	}
	if m.columns != prefs.MaxColumns {
		t.Fatalf("columns = %d, want %d", m.columns, prefs.MaxColumns)
	}

	saved, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if saved.ColumnsPerRow != prefs.MaxColumns {
		t.Fatalf("saved columns = %d, want %d", saved.ColumnsPerRow, prefs.MaxColumns)
	}

	for i := 0; i < 6; i++ {
		next, _ := m.Update(runes("-"))
		m = next.(Model)
	}
	if m.columns != prefs.MinColumns {
		t.Fatalf("columns = %d, want %d", m.columns, prefs.MinColumns)
	}
}

func TestModelCycleThemePersists(t *testing.T) {
	m, path := newTestModel(t, nil)

	next, _ := m.Update(runes("T"))
	m = next.(Model)
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", m.theme.Name)
	}

	saved, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if saved.Theme != "Kanagawa" {
		t.Fatalf("saved theme = %q, want Kanagawa", saved.Theme)
	}
}

func TestModelReloadKey(t *testing.T) {
	r := &fakeReloader{}
	m, _ := newTestModel(t, r)

	next, _ := m.Update(runes("c"))
	m = next.(Model)
	if r.calls != 1 {
		t.Fatalf("RequestReload calls = %d, want 1", r.calls)
	}
	if m.notice == "" {
		t.Fatal("expected a notice after reload")
	}
}

func TestModelHelpToggle(t *testing.T) {
	m, _ := newTestModel(t, nil)

	next, _ := m.Update(runes("?"))
	m = next.(Model)
	if !m.showHelp {
		t.Fatal("expected help to be shown")
	}
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatal("help view missing title")
	}

	// Any key closes help without acting on it.
	next, _ = m.Update(runes("q"))
	m = next.(Model)
	if m.showHelp {
		t.Fatal("expected help to be closed")
	}
}

func TestModelQuit(t *testing.T) {
	m, _ := newTestModel(t, nil)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestModelView(t *testing.T) {
	m, _ := newTestModel(t, nil)
	view := m.View()

	for _, want := range []string{"panelwatch", "alpha@09:00:00", "beta@09:00:00", "Status", "hello world", "load 40.0%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "zombie") {
		t.Error("inactive script rendered as tab")
	}

	next, _ := m.Update(snapshotMsg(state.Snapshot{}))
	if !strings.Contains(next.(Model).View(), "no active scripts") {
		t.Error("empty view missing placeholder")
	}
}

func TestModelLoadingBeforeResize(t *testing.T) {
	m := New(Options{PrefsPath: filepath.Join(t.TempDir(), "prefs.toml")})
	if got := m.View(); got != "Loading..." {
		t.Fatalf("View = %q, want Loading...", got)
	}
}
