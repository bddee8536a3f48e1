package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/placelet/convo/internal/models"
	"github.com/placelet/convo/internal/outbox"
)

type resolvedMsg struct {
	summary models.ProfileSummary
}

type sendResultMsg struct {
	msg models.Message
	err error
}

// threadView shows one conversation oldest-first with a compose line at
// the bottom. Sends run as commands so the provisional entry shows up
// through the event feed while the durable write is still in flight.
type threadView struct {
	session        Session
	showTimestamps bool

	counterpartID string
	title         string
	focused       bool

	msgs    []models.Message
	scroll  int
	compose string
	sending bool
	errText string
}

func newThreadView(session Session, showTimestamps bool) *threadView {
	return &threadView{session: session, showTimestamps: showTimestamps}
}

// SetCounterpart points the view at one conversation, marks it read, and
// resolves the display identity.
func (v *threadView) SetCounterpart(counterpartID string) tea.Cmd {
	v.counterpartID = counterpartID
	v.title = models.PlaceholderProfile(counterpartID).DisplayName
	v.focused = true
	v.scroll = 0
	v.compose = ""
	v.sending = false
	v.errText = ""
	v.refresh()

	session := v.session
	return func() tea.Msg {
		_ = session.MarkRead(context.Background(), counterpartID)
		summary, err := session.Resolve(context.Background(), counterpartID)
		if err != nil {
			return resolvedMsg{summary: models.PlaceholderProfile(counterpartID)}
		}
		return resolvedMsg{summary: summary}
	}
}

func (v *threadView) blur() {
	v.focused = false
}

func (v *threadView) Init() tea.Cmd {
	v.refresh()
	return nil
}

func (v *threadView) refresh() {
	if v.counterpartID == "" {
		return
	}
	msgs, err := v.session.Thread(v.counterpartID)
	if err != nil {
		v.errText = err.Error()
		return
	}
	v.msgs = msgs
}

func (v *threadView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case storeEventMsg:
		v.refresh()
		// New activity while the thread is on screen counts as seen.
		if v.focused && v.unreadCount() > 0 {
			return v.markReadCmd()
		}
		return nil

	case resolvedMsg:
		if typed.summary.CounterpartID == v.counterpartID {
			v.title = typed.summary.DisplayName
		}
		return nil

	case sendResultMsg:
		v.sending = false
		if typed.err != nil {
			v.errText = "send failed: " + typed.err.Error()
		}
		v.refresh()
		return nil

	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *threadView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		if strings.TrimSpace(v.compose) != "" {
			v.compose = ""
			return nil
		}
		return popViewCmd()
	case "enter":
		return v.submit()
	case "backspace", "ctrl+h":
		if len(v.compose) > 0 {
			runes := []rune(v.compose)
			v.compose = string(runes[:len(runes)-1])
		}
		return nil
	case "ctrl+u":
		v.compose = ""
		return nil
	case "up":
		if v.scroll < maxInt(0, len(v.msgs)-1) {
			v.scroll++
		}
		return nil
	case "down":
		if v.scroll > 0 {
			v.scroll--
		}
		return nil
	case "pgup":
		v.scroll = minInt(v.scroll+10, maxInt(0, len(v.msgs)-1))
		return nil
	case "pgdown":
		v.scroll = maxInt(0, v.scroll-10)
		return nil
	}

	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		if len(msg.Runes) == 0 {
			v.compose += " "
			return nil
		}
		v.compose += string(msg.Runes)
		v.errText = ""
	}
	return nil
}

// submit fires the optimistic send and snaps the scroll to the bottom so
// the provisional entry is visible.
func (v *threadView) submit() tea.Cmd {
	body := strings.TrimSpace(v.compose)
	if body == "" || v.sending {
		return nil
	}
	v.compose = ""
	v.sending = true
	v.errText = ""
	v.scroll = 0

	session := v.session
	recipient := v.counterpartID
	return func() tea.Msg {
		msg, err := session.Send(context.Background(), outbox.Request{
			RecipientID: recipient,
			Body:        body,
		})
		return sendResultMsg{msg: msg, err: err}
	}
}

func (v *threadView) markReadCmd() tea.Cmd {
	session := v.session
	counterpartID := v.counterpartID
	return func() tea.Msg {
		_ = session.MarkRead(context.Background(), counterpartID)
		return nil
	}
}

func (v *threadView) unreadCount() int {
	conversations, err := v.session.Conversations()
	if err != nil {
		return 0
	}
	for _, conv := range conversations {
		if conv.CounterpartID == v.counterpartID {
			return conv.UnreadCount
		}
	}
	return 0
}

func (v *threadView) View(width, height int, theme Theme) string {
	header := theme.accentStyle().Bold(true).Render(truncate(v.title, maxInt(0, width-2))) +
		"  " + theme.mutedStyle().Render(v.counterpartID)

	composeLine := "> " + v.compose + "▌"
	if v.sending {
		composeLine += theme.mutedStyle().Render("  sending…")
	}
	composeLine = truncate(composeLine, maxInt(0, width))

	statusLine := ""
	if v.errText != "" {
		statusLine = theme.errorStyle().Render(truncate(v.errText, maxInt(0, width)))
	}

	listHeight := height - 3
	if statusLine != "" {
		listHeight--
	}

	lines := make([]string, 0, len(v.msgs))
	for _, msg := range v.msgs {
		lines = append(lines, v.renderMessage(msg, width, theme))
	}
	body := strings.Join(lastWindow(lines, listHeight, v.scroll), "\n")

	parts := []string{header, "", body, ""}
	if statusLine != "" {
		parts = append(parts, statusLine)
	}
	parts = append(parts, composeLine)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *threadView) renderMessage(msg models.Message, width int, theme Theme) string {
	who := v.title
	color := theme.Message.Other
	if msg.SenderID == v.session.ViewerID() {
		who = "You"
		color = theme.Message.Own
	}

	body := msg.Body
	if msg.Media != nil {
		label := "[" + string(msg.Media.Kind) + "]"
		if body == "" {
			body = label
		} else {
			body = label + " " + body
		}
	}

	line := who + ": " + body
	if v.showTimestamps && !msg.CreatedAt.IsZero() {
		line = msg.CreatedAt.Local().Format("15:04") + "  " + line
	}
	line = truncate(line, maxInt(0, width))

	switch msg.State {
	case models.MessageStatePending:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Pending)).Render(line + " …")
	case models.MessageStateFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Failed)).Render(line + "  ✗ failed")
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(line)
	}
}
