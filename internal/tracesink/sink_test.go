package tracesink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/zboralski/rvemu/internal/trace"
)

func TestWriterFormatsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := Writer{W: &buf}
	e := trace.NewEvent(0x1000, "syscall", "openat", "path=/tmp/x")
	w.Emit(*e)

	out := buf.String()
	if !strings.Contains(out, "0x") || !strings.Contains(out, "1000") {
		t.Fatalf("missing pc in output: %q", out)
	}
	if !strings.Contains(out, "openat") || !strings.Contains(out, "path=/tmp/x") {
		t.Fatalf("missing name/detail in output: %q", out)
	}
}

func TestFilterDropsDisallowedTags(t *testing.T) {
	var buf bytes.Buffer
	f := Filter{Next: Writer{W: &buf}, Allow: map[trace.Tag]bool{trace.Syscall: true}}

	f.Emit(*trace.NewEvent(0, "instr", "step", ""))
	if buf.Len() != 0 {
		t.Fatalf("instr event should have been filtered out, got %q", buf.String())
	}

	f.Emit(*trace.NewEvent(0, "syscall", "brk", ""))
	if buf.Len() == 0 {
		t.Fatalf("syscall event should have passed the filter")
	}
}

func TestFilterWithEmptyAllowPassesEverything(t *testing.T) {
	var buf bytes.Buffer
	f := Filter{Next: Writer{W: &buf}}
	f.Emit(*trace.NewEvent(0, "instr", "step", ""))
	if buf.Len() == 0 {
		t.Fatalf("expected event to pass through an empty allow set")
	}
}
