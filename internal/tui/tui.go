// Package tui implements the interactive live trace viewer behind
// `rvemu debug`. Console raw-mode handling is an external collaborator
// the core never touches — the core only ever writes trace.Event
// values into a channel; bubbletea owns the terminal entirely.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zboralski/rvemu/internal/trace"
)

const maxLines = 2000

// ChanSink adapts a channel into an emulator.Sink: Emit pushes the
// event and never blocks the emulator on a full or closed viewer.
type ChanSink struct {
	Events chan trace.Event
}

// NewChanSink allocates a buffered channel sink sized for one screen's
// worth of burst traffic before the TUI catches up.
func NewChanSink() ChanSink {
	return ChanSink{Events: make(chan trace.Event, 4096)}
}

// Emit implements emulator.Sink.
func (s ChanSink) Emit(e trace.Event) {
	select {
	case s.Events <- e:
	default: // viewer is behind; drop rather than stall the guest
	}
}

type eventMsg trace.Event

func waitForEvent(events <-chan trace.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

type model struct {
	events   <-chan trace.Event
	lines    []string
	view     viewport.Model
	count    int
	haltedAt string
}

var (
	tagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	footStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// NewModel builds the bubbletea model driving the live viewer.
func NewModel(events <-chan trace.Event, width, height int) tea.Model {
	vp := viewport.New(width, height-1)
	return model{events: events, view: vp}
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		m.view.Height = msg.Height - 1
	case eventMsg:
		e := trace.Event(msg)
		m.count++
		line := fmt.Sprintf("%#016x %s %-12s %s", e.PC, tagStyle.Render(e.PrimaryTag()), e.Name, e.Detail)
		m.lines = append(m.lines, line)
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		m.view.SetContent(strings.Join(m.lines, "\n"))
		m.view.GotoBottom()
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m model) View() string {
	footer := footStyle.Render(fmt.Sprintf("%d events — q to quit", m.count))
	return m.view.View() + "\n" + footer
}

// Run drives the live viewer until the user quits; once events closes
// no further events arrive and the viewer stays open until then. It
// owns the terminal for its duration, per package doc.
func Run(events <-chan trace.Event) error {
	w, h := 100, 30
	p := tea.NewProgram(NewModel(events, w, h), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
