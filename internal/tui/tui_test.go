package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zboralski/rvemu/internal/trace"
)

func TestChanSinkDropsWhenFull(t *testing.T) {
	s := ChanSink{Events: make(chan trace.Event, 1)}
	s.Emit(*trace.NewEvent(1, "syscall", "a", ""))
	s.Emit(*trace.NewEvent(2, "syscall", "b", "")) // channel full; must not block

	got := <-s.Events
	if got.PC != 1 {
		t.Fatalf("PC = %d, want 1 (second emit should have been dropped)", got.PC)
	}
}

func TestModelAccumulatesEventLines(t *testing.T) {
	events := make(chan trace.Event, 1)
	m := NewModel(events, 80, 24)

	updated, _ := m.Update(eventMsg(*trace.NewEvent(0x1000, "syscall", "openat", "path=/x")))
	mm := updated.(model)
	if mm.count != 1 {
		t.Fatalf("count = %d, want 1", mm.count)
	}
	if len(mm.lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(mm.lines))
	}
}

func TestModelQuitsOnQ(t *testing.T) {
	m := NewModel(make(chan trace.Event), 80, 24)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected a quit command")
	}
}
