package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/placelet/convo/internal/models"
	"github.com/placelet/convo/internal/state"
)

func TestInboxNavigationAndOpen(t *testing.T) {
	session := newFakeSession("viewer-1")
	session.setConversations(demoConversations()...)
	view := newInboxView(session)
	view.Init()

	require.Equal(t, 0, view.selected)
	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 1, view.selected)
	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 1, view.selected)
	view.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, 0, view.selected)

	view.Update(runeKey('G'))
	require.Equal(t, 1, view.selected)
	view.Update(runeKey('g'))
	require.Equal(t, 0, view.selected)

	cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	opened, ok := cmd().(openThreadMsg)
	require.True(t, ok)
	require.Equal(t, "maya", opened.counterpartID)
}

func TestInboxSelectionFollowsCounterpartAcrossReorder(t *testing.T) {
	session := newFakeSession("viewer-1")
	session.setConversations(demoConversations()...)
	view := newInboxView(session)
	view.Init()

	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 1, view.selected) // jonas

	// Jonas moves to the top when his conversation gets fresh activity.
	session.setConversations(
		models.Conversation{CounterpartID: "jonas", DisplayName: "Jonas Moe", PreviewText: "new offer", LastMessageAt: time.Now(), UnreadCount: 1},
		models.Conversation{CounterpartID: "maya", DisplayName: "Maya Lindqvist", PreviewText: "Deal.", LastMessageAt: time.Now().Add(-time.Hour)},
	)
	view.Update(storeEventMsg{event: state.Event{Kind: state.EventConversations}})

	require.Equal(t, 0, view.selected)
	conv, ok := view.current()
	require.True(t, ok)
	require.Equal(t, "jonas", conv.CounterpartID)
}

func TestInboxSelectionClampsWhenListShrinks(t *testing.T) {
	session := newFakeSession("viewer-1")
	session.setConversations(demoConversations()...)
	view := newInboxView(session)
	view.Init()

	view.Update(runeKey('G'))
	require.Equal(t, 1, view.selected)

	session.setConversations(models.Conversation{CounterpartID: "maya", DisplayName: "Maya Lindqvist"})
	view.Update(storeEventMsg{event: state.Event{Kind: state.EventConversations}})
	require.Equal(t, 0, view.selected)
}

func TestInboxRenderShowsBadgesAndEmptyState(t *testing.T) {
	session := newFakeSession("viewer-1")
	view := newInboxView(session)
	view.Init()

	out := view.View(80, 20, DefaultTheme)
	require.Contains(t, out, "No conversations yet")

	session.setConversations(demoConversations()...)
	view.refresh()

	out = view.View(80, 20, DefaultTheme)
	require.Contains(t, out, "Maya Lindqvist")
	require.Contains(t, out, "Deal. Pickup works.")
	require.Contains(t, out, "(2)")
	require.Contains(t, out, "Jonas Moe")
}

func TestInboxEnterOnEmptyListIsNoop(t *testing.T) {
	session := newFakeSession("viewer-1")
	view := newInboxView(session)
	view.Init()

	require.Nil(t, view.Update(tea.KeyMsg{Type: tea.KeyEnter}))
}
