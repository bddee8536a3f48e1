package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) renderHeader() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Base.Foreground)).
		Background(lipgloss.Color(m.theme.Chrome.Header)).
		Bold(true).
		Padding(0, 1)

	left := "convo"
	center := "viewer: " + m.session.ViewerID()

	right := m.status
	if right == "" {
		if unread, err := m.session.UnreadTotal(); err == nil && unread > 0 {
			right = fmt.Sprintf("%d unread", unread)
		}
	}

	return style.Width(maxInt(0, m.width)).Render(joinHeader(left, center, right, m.width-2))
}

func (m *Model) renderFooter() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Base.Foreground)).
		Background(lipgloss.Color(m.theme.Chrome.Footer)).
		Padding(0, 1)

	hints := "enter send · esc back · ↑/↓ scroll · ctrl+c quit"
	if m.activeViewID() == ViewInbox {
		hints = "↑/↓ select · enter open · r refresh · o online · q quit · ? help"
		if m.showHelp {
			hints += "  (g/G jump, pgup/pgdn page)"
		}
	}
	return style.Width(maxInt(0, m.width)).Render(truncate(hints, maxInt(0, m.width-2)))
}

// joinHeader spreads three segments across one line, dropping the center
// first when space runs out.
func joinHeader(left, center, right string, width int) string {
	if width <= 0 {
		return left
	}

	space := width - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if space < 2 {
		line := left
		if right != "" {
			line = left + "  " + right
		}
		return truncate(line, width)
	}

	leftGap := space / 2
	rightGap := space - leftGap
	return left + spaces(leftGap) + center + spaces(rightGap) + right
}
