// Package tui renders the conversation inbox as a bubbletea program: a
// conversation list over a thread view with a compose line, repainted
// from store snapshots whenever the session's event feed fires.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/placelet/convo/internal/models"
	"github.com/placelet/convo/internal/outbox"
	"github.com/placelet/convo/internal/state"
)

// Session is the slice of a mounted engine session the TUI drives.
type Session interface {
	ViewerID() string
	Conversations() ([]models.Conversation, error)
	Thread(counterpartID string) ([]models.Message, error)
	UnreadTotal() (int, error)
	Send(ctx context.Context, req outbox.Request) (models.Message, error)
	MarkRead(ctx context.Context, counterpartID string) error
	Resolve(ctx context.Context, counterpartID string) (models.ProfileSummary, error)
	Wake(reason state.WakeReason) error
	Events() (<-chan state.Event, func(), error)
}

// Options tunes the program.
type Options struct {
	Theme          string
	ShowTimestamps bool
}

// ViewID names a screen.
type ViewID string

const (
	ViewInbox  ViewID = "inbox"
	ViewThread ViewID = "thread"
)

type viewModel interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int, theme Theme) string
}

type storeEventMsg struct {
	event state.Event
}

type feedClosedMsg struct{}

type openThreadMsg struct {
	counterpartID string
}

type popViewMsg struct{}

func openThreadCmd(counterpartID string) tea.Cmd {
	return func() tea.Msg {
		return openThreadMsg{counterpartID: counterpartID}
	}
}

func popViewCmd() tea.Cmd {
	return func() tea.Msg {
		return popViewMsg{}
	}
}

// Model is the program root: chrome, the view stack, and the bridge that
// turns store events into bubbletea messages.
type Model struct {
	session Session
	opts    Options
	theme   Theme

	events     <-chan state.Event
	stopEvents func()

	width    int
	height   int
	showHelp bool
	status   string

	viewStack []ViewID
	views     map[ViewID]viewModel

	inbox  *inboxView
	thread *threadView
}

// NewModel subscribes to the session's event feed and builds the views.
func NewModel(session Session, opts Options) (*Model, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}

	events, stop, err := session.Events()
	if err != nil {
		return nil, fmt.Errorf("subscribe to session events: %w", err)
	}

	m := &Model{
		session:    session,
		opts:       opts,
		theme:      themeByName(opts.Theme),
		events:     events,
		stopEvents: stop,
		viewStack:  []ViewID{ViewInbox},
		views:      make(map[ViewID]viewModel),
	}
	m.inbox = newInboxView(session)
	m.thread = newThreadView(session, opts.ShowTimestamps)
	m.views[ViewInbox] = m.inbox
	m.views[ViewThread] = m.thread
	return m, nil
}

// Run mounts the program over the alternate screen and blocks until quit.
func Run(session Session, opts Options) error {
	model, err := NewModel(session, opts)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// Close drops the event subscription.
func (m *Model) Close() {
	if m.stopEvents != nil {
		m.stopEvents()
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.activeView().Init())
}

// waitForEvent blocks on the feed and resurfaces as a bubbletea message;
// the Update arm re-arms it after every delivery.
func (m *Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return feedClosedMsg{}
		}
		return storeEventMsg{event: ev}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil

	case storeEventMsg:
		// Both views refresh so the one underneath is current when the
		// stack pops back to it.
		m.status = ""
		var cmds []tea.Cmd
		for _, view := range m.views {
			if cmd := view.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		cmds = append(cmds, m.waitForEvent())
		return m, tea.Batch(cmds...)

	case feedClosedMsg:
		// The session unmounted under us; nothing left to show.
		return m, tea.Quit

	case openThreadMsg:
		m.pushView(ViewThread)
		return m, m.thread.SetCounterpart(typed.counterpartID)

	case popViewMsg:
		if m.activeViewID() == ViewThread {
			m.thread.blur()
		}
		m.popView()
		return m, m.activeView().Init()

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(typed); handled {
			return m, cmd
		}
	}

	return m, m.activeView().Update(msg)
}

// handleGlobalKey owns quit and the inbox-level refresh keys. In the
// thread view every printable key belongs to the compose line, so only
// ctrl+c stays global there.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return tea.Quit, true
	}
	if m.activeViewID() != ViewInbox {
		return nil, false
	}

	switch msg.String() {
	case "q":
		return tea.Quit, true
	case "?":
		m.showHelp = !m.showHelp
		return nil, true
	case "r":
		m.status = "refreshing"
		return m.wakeCmd(state.WakeManual), true
	case "o":
		m.status = "reconnected"
		return m.wakeCmd(state.WakeOnline), true
	}
	return nil, false
}

func (m *Model) wakeCmd(reason state.WakeReason) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		_ = session.Wake(reason)
		return nil
	}
}

func (m *Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}
	body := m.activeView().View(m.width, contentHeight, m.theme)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) activeView() viewModel {
	return m.views[m.activeViewID()]
}

func (m *Model) activeViewID() ViewID {
	if len(m.viewStack) == 0 {
		return ViewInbox
	}
	return m.viewStack[len(m.viewStack)-1]
}

func (m *Model) pushView(id ViewID) {
	if _, ok := m.views[id]; !ok {
		return
	}
	if m.activeViewID() == id {
		return
	}
	m.viewStack = append(m.viewStack, id)
}

func (m *Model) popView() {
	if len(m.viewStack) <= 1 {
		return
	}
	m.viewStack = m.viewStack[:len(m.viewStack)-1]
}
