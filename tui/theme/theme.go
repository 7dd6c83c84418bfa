// Package theme holds the lipgloss styles shared by the CLI help and the
// watch TUI.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/notifsync/config"
)

const defaultThemeName = "kanagawa"

// --- Kanagawa palette ---
const (
	kanagawaDarkGreen      = "#98BB6C"
	kanagawaDarkYellow     = "#FF9E3B"
	kanagawaDarkRed        = "#FF5D62"
	kanagawaDarkOrange     = "#FFA066"
	kanagawaDarkCyan       = "#7E9CD8"
	kanagawaDarkBlue       = "#7FB4CA"
	kanagawaDarkViolet     = "#957FB8"
	kanagawaDarkBorder     = "#363646"
	kanagawaDarkSelectedBg = "#223249"

	kanagawaLightGreen      = "#4E7C5A"
	kanagawaLightYellow     = "#A68A64"
	kanagawaLightRed        = "#C34043"
	kanagawaLightOrange     = "#CC6B4E"
	kanagawaLightCyan       = "#5B8BBE"
	kanagawaLightBlue       = "#4F7CAC"
	kanagawaLightViolet     = "#674D7A"
	kanagawaLightBorder     = "#B5BDC5"
	kanagawaLightSelectedBg = "#E2E6F3"
)

// Colors is the palette a Theme is built from.
type Colors struct {
	Green      lipgloss.TerminalColor
	Yellow     lipgloss.TerminalColor
	Red        lipgloss.TerminalColor
	Orange     lipgloss.TerminalColor
	Cyan       lipgloss.TerminalColor
	Blue       lipgloss.TerminalColor
	Violet     lipgloss.TerminalColor
	Border     lipgloss.TerminalColor
	SelectedBg lipgloss.TerminalColor
}

// Theme holds the pre-configured styles.
type Theme struct {
	Colors Colors

	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Bold     lipgloss.Style
	Italic   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style

	// Notification rows
	Unread lipgloss.Style
	Read   lipgloss.Style
	Badge  lipgloss.Style
}

var palettes = map[string]func() Colors{
	"kanagawa": newKanagawaColors,
	"terminal": newTerminalColors,
}

// DefaultTheme is selected from NOTIFSYNC_THEME or the "tui" config section.
var DefaultTheme = NewThemeWithName(themeName())

// NewThemeWithName builds a theme from a palette name. Unknown names fall
// back to the default palette.
func NewThemeWithName(name string) *Theme {
	build, ok := palettes[normalize(name)]
	if !ok {
		build = palettes[defaultThemeName]
	}
	return newTheme(build())
}

// Connection renders a connection state label in its status color.
func (t *Theme) Connection(state string, connected bool) string {
	switch {
	case connected:
		return t.Success.Render(state)
	case state == "ERROR":
		return t.Error.Render(state)
	case state == "CONNECTING":
		return t.Warning.Render(state)
	default:
		return t.Muted.Render(state)
	}
}

func newTheme(c Colors) *Theme {
	return &Theme{
		Colors: c,

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(c.Orange),
		Success: lipgloss.NewStyle().Foreground(c.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(c.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(c.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(c.Cyan).Bold(true),

		Bold:   lipgloss.NewStyle().Bold(true),
		Italic: lipgloss.NewStyle().Italic(true),
		Muted:  lipgloss.NewStyle().Faint(true),
		Selected: lipgloss.NewStyle().
			Background(c.SelectedBg),

		Unread: lipgloss.NewStyle().Bold(true),
		Read:   lipgloss.NewStyle().Faint(true),
		Badge: lipgloss.NewStyle().
			Foreground(c.Violet).
			Bold(true),
	}
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "_", "-")
}

func themeName() string {
	if name := normalize(os.Getenv("NOTIFSYNC_THEME")); name != "" {
		return name
	}

	cfg, err := config.LoadDefault()
	if err != nil || cfg == nil {
		return defaultThemeName
	}
	var tuiCfg struct {
		Theme string `yaml:"theme"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err == nil {
		if name := normalize(tuiCfg.Theme); name != "" {
			return name
		}
	}
	return defaultThemeName
}

func newKanagawaColors() Colors {
	return Colors{
		Green:      lipgloss.AdaptiveColor{Light: kanagawaLightGreen, Dark: kanagawaDarkGreen},
		Yellow:     lipgloss.AdaptiveColor{Light: kanagawaLightYellow, Dark: kanagawaDarkYellow},
		Red:        lipgloss.AdaptiveColor{Light: kanagawaLightRed, Dark: kanagawaDarkRed},
		Orange:     lipgloss.AdaptiveColor{Light: kanagawaLightOrange, Dark: kanagawaDarkOrange},
		Cyan:       lipgloss.AdaptiveColor{Light: kanagawaLightCyan, Dark: kanagawaDarkCyan},
		Blue:       lipgloss.AdaptiveColor{Light: kanagawaLightBlue, Dark: kanagawaDarkBlue},
		Violet:     lipgloss.AdaptiveColor{Light: kanagawaLightViolet, Dark: kanagawaDarkViolet},
		Border:     lipgloss.AdaptiveColor{Light: kanagawaLightBorder, Dark: kanagawaDarkBorder},
		SelectedBg: lipgloss.AdaptiveColor{Light: kanagawaLightSelectedBg, Dark: kanagawaDarkSelectedBg},
	}
}

// newTerminalColors uses the 16 ANSI colors so the terminal's own scheme applies.
func newTerminalColors() Colors {
	return Colors{
		Green:      lipgloss.Color("2"),
		Yellow:     lipgloss.Color("3"),
		Red:        lipgloss.Color("1"),
		Orange:     lipgloss.Color("208"),
		Cyan:       lipgloss.Color("6"),
		Blue:       lipgloss.Color("4"),
		Violet:     lipgloss.Color("5"),
		Border:     lipgloss.Color("8"),
		SelectedBg: lipgloss.Color("8"),
	}
}
