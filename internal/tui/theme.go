package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines all colors used by the progress view.
type Theme struct {
	Primary   lipgloss.Color // title, spinner
	Secondary lipgloss.Color // movie headers
	Error     lipgloss.Color // failed verdicts, errors
	Warning   lipgloss.Color // incomplete verdicts, skipped tests
	Success   lipgloss.Color // passed verdicts, final score
	Text      lipgloss.Color // primary text
	TextMuted lipgloss.Color // hints, timestamps
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#fab283"),
		Secondary: lipgloss.Color("#5c9cf5"),
		Error:     lipgloss.Color("#e06c75"),
		Warning:   lipgloss.Color("#f5a742"),
		Success:   lipgloss.Color("#7fd88f"),
		Text:      lipgloss.Color("#eeeeee"),
		TextMuted: lipgloss.Color("#808080"),
	}
}

// LightTheme returns a light theme for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#b35c00"),
		Secondary: lipgloss.Color("#0550ae"),
		Error:     lipgloss.Color("#cf222e"),
		Warning:   lipgloss.Color("#bf8700"),
		Success:   lipgloss.Color("#116329"),
		Text:      lipgloss.Color("#1f2328"),
		TextMuted: lipgloss.Color("#656d76"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

// styles holds all lipgloss styles derived from a Theme.
type styles struct {
	title   lipgloss.Style
	movie   lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	warning lipgloss.Style
	text    lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		movie:   lipgloss.NewStyle().Bold(true).Foreground(t.Secondary),
		passed:  lipgloss.NewStyle().Foreground(t.Success),
		failed:  lipgloss.NewStyle().Foreground(t.Error),
		warning: lipgloss.NewStyle().Foreground(t.Warning),
		text:    lipgloss.NewStyle().Foreground(t.Text),
		dim:     lipgloss.NewStyle().Foreground(t.TextMuted),
	}
}
