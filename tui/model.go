package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/solatis/mongofront/clipboard"
	"github.com/solatis/mongofront/tap"
)

type viewMode int

const (
	viewList viewMode = iota
	viewInspect
)

// Model is the Bubble Tea model for the live command inspector, subscribed
// directly to a tap.Broker rather than a network stream — this server's
// event source lives in the same process as the TUI.
type Model struct {
	events <-chan tap.Event
	unsub  func()

	seen          []tap.Event
	cursor        int
	follow        bool
	width, height int
	view          viewMode
	inspectScroll int
}

// New attaches a Model to broker, subscribing immediately.
func New(broker *tap.Broker) Model {
	ch, unsub := broker.Subscribe()
	return Model{events: ch, unsub: unsub, follow: true}
}

type eventMsg struct{ Event tap.Event }
type closedMsg struct{}

func waitEvent(ch <-chan tap.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg{Event: ev}
	}
}

// Init starts listening for events.
func (m Model) Init() tea.Cmd {
	return waitEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.seen = append(m.seen, msg.Event)
		if m.follow {
			m.cursor = len(m.seen) - 1
		}
		return m, waitEvent(m.events)

	case closedMsg:
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewInspect:
			return m.updateInspect(msg)
		case viewList:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.unsub()
		return m, tea.Quit
	case "enter":
		if len(m.seen) > 0 {
			m.view = viewInspect
			m.inspectScroll = 0
		}
		return m, nil
	case "j", "down":
		if m.cursor < len(m.seen)-1 {
			m.cursor++
			m.follow = m.cursor == len(m.seen)-1
		}
		return m, nil
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.follow = false
		}
		return m, nil
	case "g":
		m.follow = true
		m.cursor = max(len(m.seen)-1, 0)
		return m, nil
	}
	return m, nil
}

func (m Model) updateInspect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.unsub()
		return m, tea.Quit
	case "q", "esc":
		m.view = viewList
		return m, nil
	case "j", "down":
		m.inspectScroll++
		return m, nil
	case "k", "up":
		if m.inspectScroll > 0 {
			m.inspectScroll--
		}
		return m, nil
	case "c":
		return m.copyDocument(), nil
	}
	return m, nil
}

// copyDocument copies the currently selected event's command document, in
// the same rendered-JSON form the inspector displays, to the system
// clipboard.
func (m Model) copyDocument() Model {
	ev := m.cursorEvent()
	if ev == nil || ev.Document == nil {
		return m
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = clipboard.Copy(ctx, renderJSON(ev.Document))
	return m
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if len(m.seen) == 0 {
		return "Waiting for commands..."
	}

	switch m.view {
	case viewInspect:
		return m.renderInspector()
	case viewList:
	}

	footer := "  q: quit  j/k: navigate  enter: inspect  g: follow latest"
	listHeight := max(m.height-4, 3)

	return strings.Join([]string{
		m.renderList(listHeight),
		footer,
	}, "\n")
}

func (m Model) cursorEvent() *tap.Event {
	if m.cursor < 0 || m.cursor >= len(m.seen) {
		return nil
	}
	return &m.seen[m.cursor]
}
