package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/placelet/convo/internal/models"
)

const inboxNameWidth = 22

// inboxView lists conversations by recency with unread badges and
// preview lines. Enter opens the selected thread.
type inboxView struct {
	session Session

	conversations []models.Conversation
	selected      int
	err           error
}

func newInboxView(session Session) *inboxView {
	return &inboxView{session: session}
}

func (v *inboxView) Init() tea.Cmd {
	v.refresh()
	return nil
}

// refresh repaints from the store snapshot. Selection sticks to the
// counterpart, not the row index, so reordering under the cursor does not
// silently change what enter opens.
func (v *inboxView) refresh() {
	selectedID := ""
	if conv, ok := v.current(); ok {
		selectedID = conv.CounterpartID
	}

	conversations, err := v.session.Conversations()
	if err != nil {
		v.err = err
		return
	}
	v.err = nil
	v.conversations = conversations

	if selectedID != "" {
		for i, conv := range conversations {
			if conv.CounterpartID == selectedID {
				v.selected = i
				return
			}
		}
	}
	if v.selected >= len(conversations) {
		v.selected = maxInt(0, len(conversations)-1)
	}
}

func (v *inboxView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case storeEventMsg:
		v.refresh()
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *inboxView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.conversations)-1 {
			v.selected++
		}
	case "g":
		v.selected = 0
	case "G":
		v.selected = maxInt(0, len(v.conversations)-1)
	case "enter":
		if conv, ok := v.current(); ok {
			return openThreadCmd(conv.CounterpartID)
		}
	}
	return nil
}

func (v *inboxView) current() (models.Conversation, bool) {
	if v.selected < 0 || v.selected >= len(v.conversations) {
		return models.Conversation{}, false
	}
	return v.conversations[v.selected], true
}

func (v *inboxView) View(width, height int, theme Theme) string {
	if v.err != nil {
		return theme.errorStyle().Render("inbox unavailable: " + v.err.Error())
	}
	if len(v.conversations) == 0 {
		return theme.mutedStyle().Render("No conversations yet. Run 'convo seed' for a demo inbox.")
	}

	now := time.Now()
	start, end := visibleWindow(len(v.conversations), v.selected, height)
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, v.renderRow(v.conversations[i], i == v.selected, width, now, theme))
	}
	return strings.Join(rows, "\n")
}

func (v *inboxView) renderRow(conv models.Conversation, selected bool, width int, now time.Time, theme Theme) string {
	marker := "  "
	if selected {
		marker = "> "
	}

	badge := ""
	if conv.UnreadCount > 0 {
		badge = fmt.Sprintf(" (%d)", conv.UnreadCount)
	}
	when := relativeTime(conv.LastMessageAt, now)

	name := padOrTruncate(conv.DisplayName, inboxNameWidth)
	previewWidth := width - len(marker) - inboxNameWidth - len([]rune(when)) - len(badge) - 4
	preview := padOrTruncate(conv.PreviewText, maxInt(previewWidth, 8))

	line := marker + name + "  " + preview + "  " + when

	base := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Foreground))
	if selected {
		base = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.SelectedItem)).Bold(true)
	} else if conv.UnreadCount > 0 {
		base = base.Bold(true)
	}

	rendered := base.Render(line)
	if badge != "" {
		rendered += lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Chrome.UnreadBadge)).
			Bold(true).
			Render(badge)
	}
	return rendered
}
