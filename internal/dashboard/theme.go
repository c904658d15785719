package dashboard

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/pane-toggler/internal/registry"
)

// Theme defines all colors used by the dashboard.
type Theme struct {
	Primary        lipgloss.Color // title
	Secondary      lipgloss.Color // selected row text
	Error          lipgloss.Color // failures
	Warning        lipgloss.Color // in-flight transitions
	Success        lipgloss.Color // open panes
	Text           lipgloss.Color
	TextMuted      lipgloss.Color // closed panes, hints, timestamps
	BackgroundElem lipgloss.Color // selected row background
	Border         lipgloss.Color
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#fab283"),
		Secondary:      lipgloss.Color("#5c9cf5"),
		Error:          lipgloss.Color("#e06c75"),
		Warning:        lipgloss.Color("#f5a742"),
		Success:        lipgloss.Color("#7fd88f"),
		Text:           lipgloss.Color("#eeeeee"),
		TextMuted:      lipgloss.Color("#808080"),
		BackgroundElem: lipgloss.Color("#1e1e1e"),
		Border:         lipgloss.Color("#484848"),
	}
}

// LightTheme returns a light theme for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#b35c00"),
		Secondary:      lipgloss.Color("#0550ae"),
		Error:          lipgloss.Color("#cf222e"),
		Warning:        lipgloss.Color("#bf8700"),
		Success:        lipgloss.Color("#116329"),
		Text:           lipgloss.Color("#1f2328"),
		TextMuted:      lipgloss.Color("#656d76"),
		BackgroundElem: lipgloss.Color("#f6f8fa"),
		Border:         lipgloss.Color("#d0d7de"),
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
	section lipgloss.Style
	open    lipgloss.Style
	busy    lipgloss.Style
	closed  lipgloss.Style
	err     lipgloss.Style
	dim     lipgloss.Style
	text    lipgloss.Style
	table   table.Styles
}

func newStyles(t Theme) styles {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.Border).
		BorderBottom(true).
		Bold(true)
	ts.Selected = ts.Selected.
		Foreground(t.Secondary).
		Background(t.BackgroundElem).
		Bold(true)

	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		section: lipgloss.NewStyle().Foreground(t.Border),
		open:    lipgloss.NewStyle().Foreground(t.Success),
		busy:    lipgloss.NewStyle().Foreground(t.Warning),
		closed:  lipgloss.NewStyle().Foreground(t.TextMuted),
		err:     lipgloss.NewStyle().Foreground(t.Error),
		dim:     lipgloss.NewStyle().Foreground(t.TextMuted),
		text:    lipgloss.NewStyle().Foreground(t.Text),
		table:   ts,
	}
}

// stateStyle picks the style a state is rendered with.
func (s styles) stateStyle(st registry.State) lipgloss.Style {
	switch st {
	case registry.StateOpen:
		return s.open
	case registry.StateOpening, registry.StateClosing:
		return s.busy
	default:
		return s.closed
	}
}
