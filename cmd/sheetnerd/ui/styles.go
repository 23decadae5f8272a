// Package ui provides the terminal styling for the sheetnerd CLI: theme
// detection, the status styles shared by every command, a small static
// table renderer, markdown report builders and the watch dashboard.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status colors, identical in both themes.
const (
	greenPass  = lipgloss.Color("#8BC34A")
	yellowWarn = lipgloss.Color("#FFC107")
	redFail    = lipgloss.Color("#e53935")
	blueNote   = lipgloss.Color("#2196F3")
)

// Theme holds the base palette.
type Theme struct {
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Accent     lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the palette for light terminals.
func LightTheme() Theme {
	return Theme{Foreground: "#101F38", Muted: "#6b7685", Accent: "#2196F3", Border: "#dce0e5"}
}

// DarkTheme returns the palette for dark terminals.
func DarkTheme() Theme {
	return Theme{Foreground: "#f2f2f2", Muted: "#8a93a5", Accent: "#8BC34A", Border: "#2a3850", IsDark: true}
}

// DetectTheme picks a theme from the environment. COLORFGBG carries
// "foreground;background"; ANSI backgrounds 0-6 and 8 count as dark.
func DetectTheme() Theme {
	if os.Getenv("SHEETNERD_DARK_MODE") == "1" {
		return DarkTheme()
	}
	if _, bg, ok := strings.Cut(os.Getenv("COLORFGBG"), ";"); ok {
		idx, err := strconv.Atoi(bg)
		if err == nil && idx >= 0 && (idx <= 6 || idx == 8) {
			return DarkTheme()
		}
	}
	return LightTheme()
}

// Styles holds the styled components every command shares.
type Styles struct {
	Theme Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Spinner lipgloss.Style
}

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

// NewStyles builds the style set for a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Theme:    t,
		Title:    fg(t.Accent).Bold(true),
		Subtitle: fg(t.Muted).Italic(true),
		Body:     fg(t.Foreground),
		Muted:    fg(t.Muted),
		Bold:     fg(t.Foreground).Bold(true),
		Success:  fg(greenPass).Bold(true),
		Error:    fg(redFail).Bold(true),
		Warning:  fg(yellowWarn).Bold(true),
		Info:     fg(blueNote),
		Spinner:  fg(t.Accent),
	}
}

// DefaultStyles builds styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// PlainStyles returns unstyled components for --no-color output and
// non-terminal destinations.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title: plain, Subtitle: plain, Body: plain, Muted: plain, Bold: plain,
		Success: plain, Error: plain, Warning: plain, Info: plain, Spinner: plain,
	}
}

// Verdict renders PASS/FAIL in the matching status style.
func (s Styles) Verdict(passed bool) string {
	if passed {
		return s.Success.Render("PASS")
	}
	return s.Error.Render("FAIL")
}
