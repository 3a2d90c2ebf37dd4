package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines colors and styles for the UI.
type Theme struct {
	Name string

	// Base colors
	Background string // Outermost background
	Surface    string // Header and footer bars
	SurfaceAlt string // Inactive tabs

	// Selection colors
	SelectionBg   string // Active tab background
	SelectionText string // Active tab text

	// Border colors
	Border      string // Panel border
	BorderFocus string // System panel border

	// Text colors
	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// PanelColors maps layout style names to title colors.
	PanelColors map[string]string
}

// PanelColor returns the title color for a layout style.
func (t Theme) PanelColor(style string) string {
	if c, ok := t.PanelColors[strings.ToLower(strings.TrimSpace(style))]; ok {
		return c
	}
	return t.Accent
}

// LevelColor returns the text color for a display level.
func (t Theme) LevelColor(level string) string {
	switch level {
	case "error":
		return t.Danger
	case "warning":
		return t.Warning
	case "debug":
		return t.Faint
	default:
		return t.Text
	}
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),

		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),

		FaintText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Faint)),

		AccentText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)),

		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),

		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),

		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),

		Logo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)).
			Bold(true),

		Tab: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SurfaceAlt)).
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),

		ActiveTab: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SelectionBg)).
			Foreground(lipgloss.Color(t.SelectionText)).
			Bold(true).
			Padding(0, 1),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),

		SystemPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.BorderFocus)).
			Padding(0, 1),
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	// Text
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style

	// Components
	Header      lipgloss.Style
	Footer      lipgloss.Style
	Logo        lipgloss.Style
	Tab         lipgloss.Style
	ActiveTab   lipgloss.Style
	Panel       lipgloss.Style
	SystemPanel lipgloss.Style
}

// Theme definitions

var themes = map[string]Theme{
	"Nightfox": nightfoxTheme(),
	"Kanagawa": kanagawaTheme(),
	"Slate":    slateTheme(),
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return nightfoxTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func nightfoxTheme() Theme {
	// Nightfox palette: https://github.com/EdenEast/nightfox.nvim
	return Theme{
		Name: "Nightfox",

		Background: "#131a24", // bg0
		Surface:    "#192330", // bg1
		SurfaceAlt: "#212e3f", // bg2

		SelectionBg:   "#2b3b51", // sel0
		SelectionText: "#cdcecf", // fg1

		Border:      "#39506d", // bg4
		BorderFocus: "#719cd6", // blue

		Text:    "#cdcecf", // fg1
		Muted:   "#738091", // comment
		Faint:   "#71839b", // fg3
		Accent:  "#719cd6", // blue
		Success: "#81b29a", // green
		Warning: "#dbc074", // yellow
		Danger:  "#c94f6d", // red
		Info:    "#63cdcf", // cyan

		PanelColors: map[string]string{
			"lightyellow":  "#e0c989", // yellow bright
			"lightcyan":    "#7ad5d6", // cyan bright
			"lightgreen":   "#8ebaa4", // green bright
			"lightorange":  "#f6a878", // orange bright
			"lightmagenta": "#baa1e2", // magenta bright
			"lightblue":    "#86abdc", // blue bright
			"yellow":       "#dbc074",
			"cyan":         "#63cdcf",
			"green":        "#81b29a",
			"orange":       "#f4a261",
			"magenta":      "#9d79d6",
			"blue":         "#719cd6",
			"red":          "#c94f6d",
		},
	}
}

func kanagawaTheme() Theme {
	// Kanagawa palette: https://github.com/rebelot/kanagawa.nvim
	return Theme{
		Name: "Kanagawa",

		Background: "#16161D", // sumiInk0
		Surface:    "#1F1F28", // sumiInk3
		SurfaceAlt: "#2A2A37", // sumiInk4

		SelectionBg:   "#2D4F67", // waveBlue1
		SelectionText: "#DCD7BA", // fujiWhite

		Border:      "#54546D", // sumiInk6
		BorderFocus: "#7E9CD8", // crystalBlue

		Text:    "#DCD7BA", // fujiWhite
		Muted:   "#C8C093", // oldWhite
		Faint:   "#727169", // fujiGray
		Accent:  "#7E9CD8", // crystalBlue
		Success: "#98BB6C", // springGreen
		Warning: "#E6C384", // carpYellow
		Danger:  "#E46876", // waveRed
		Info:    "#7FB4CA", // springBlue

		PanelColors: map[string]string{
			"lightyellow":  "#E6C384", // carpYellow
			"lightcyan":    "#7AA89F", // waveAqua2
			"lightgreen":   "#98BB6C", // springGreen
			"lightorange":  "#FFA066", // surimiOrange
			"lightmagenta": "#D27E99", // sakuraPink
			"lightblue":    "#7FB4CA", // springBlue
			"yellow":       "#C0A36E", // boatYellow2
			"cyan":         "#6A9589", // waveAqua1
			"green":        "#76946A", // autumnGreen
			"orange":       "#FF9E3B", // roninYellow
			"magenta":      "#957FB8", // oniViolet
			"blue":         "#7E9CD8", // crystalBlue
			"red":          "#E46876", // waveRed
		},
	}
}

func slateTheme() Theme {
	// Tailwind CSS Slate/Sky palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name: "Slate",

		Background: "#020617", // slate-950
		Surface:    "#0f172a", // slate-900
		SurfaceAlt: "#1e293b", // slate-800

		SelectionBg:   "#0284c7", // sky-600
		SelectionText: "#f8fafc", // slate-50

		Border:      "#334155", // slate-700
		BorderFocus: "#38bdf8", // sky-400

		Text:    "#f1f5f9", // slate-100
		Muted:   "#94a3b8", // slate-400
		Faint:   "#64748b", // slate-500
		Accent:  "#38bdf8", // sky-400
		Success: "#22c55e", // green-500
		Warning: "#f59e0b", // amber-500
		Danger:  "#ef4444", // red-500
		Info:    "#06b6d4", // cyan-500

		PanelColors: map[string]string{
			"lightyellow":  "#fde047", // yellow-300
			"lightcyan":    "#67e8f9", // cyan-300
			"lightgreen":   "#86efac", // green-300
			"lightorange":  "#fdba74", // orange-300
			"lightmagenta": "#f0abfc", // fuchsia-300
			"lightblue":    "#93c5fd", // blue-300
			"yellow":       "#eab308", // yellow-500
			"cyan":         "#06b6d4", // cyan-500
			"green":        "#22c55e", // green-500
			"orange":       "#f97316", // orange-500
			"magenta":      "#d946ef", // fuchsia-500
			"blue":         "#3b82f6", // blue-500
			"red":          "#ef4444", // red-500
		},
	}
}
