package tui

import "github.com/charmbracelet/lipgloss"

// BaseColors defines global UI colors.
type BaseColors struct {
	Foreground string
	Muted      string
	Accent     string
	Error      string
}

// MessageColors defines colors for thread bubbles by origin and state.
type MessageColors struct {
	Own     string
	Other   string
	Pending string
	Failed  string
}

// ChromeColors defines non-content UI colors.
type ChromeColors struct {
	Header       string
	Footer       string
	SelectedItem string
	UnreadBadge  string
}

// Theme defines the inbox TUI style tokens.
type Theme struct {
	Name    string
	Base    BaseColors
	Message MessageColors
	Chrome  ChromeColors
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default":       DefaultTheme,
	"high-contrast": HighContrastTheme,
}

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name: "default",
	Base: BaseColors{
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Error:      "203",
	},
	Message: MessageColors{
		Own:     "81",
		Other:   "147",
		Pending: "245",
		Failed:  "203",
	},
	Chrome: ChromeColors{
		Header:       "111",
		Footer:       "110",
		SelectedItem: "75",
		UnreadBadge:  "214",
	},
}

// HighContrastTheme trades subtlety for legibility on washed-out
// terminals.
var HighContrastTheme = Theme{
	Name: "high-contrast",
	Base: BaseColors{
		Foreground: "231",
		Muted:      "250",
		Accent:     "51",
		Error:      "196",
	},
	Message: MessageColors{
		Own:     "51",
		Other:   "226",
		Pending: "250",
		Failed:  "196",
	},
	Chrome: ChromeColors{
		Header:       "21",
		Footer:       "18",
		SelectedItem: "51",
		UnreadBadge:  "208",
	},
}

// themeByName falls back to the default palette for unknown names.
func themeByName(name string) Theme {
	if theme, ok := Themes[name]; ok {
		return theme
	}
	return DefaultTheme
}

func (t Theme) mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Muted))
}

func (t Theme) accentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Accent))
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Error))
}
