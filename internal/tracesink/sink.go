// Package tracesink provides external consumers for the trace.Event
// values the emulator core emits. Trace/log formatting sits entirely
// outside the core: the core only ever writes opaque events; everything
// here is a formatter or filter layered on top.
package tracesink

import (
	"fmt"
	"io"

	"github.com/zboralski/rvemu/internal/trace"
)

// Writer is the default sink: one line per event, to an io.Writer
// (typically os.Stdout for -t).
type Writer struct {
	W io.Writer
}

// Emit implements emulator.Sink.
func (s Writer) Emit(e trace.Event) {
	fmt.Fprintf(s.W, "%#016x %s %-12s %s\n", e.PC, e.PrimaryTag(), e.Name, e.Detail)
}

// Filter wraps a sink, only forwarding events whose primary tag is in
// allow. An empty allow set passes everything through, matching -t's
// default of tracing every category.
type Filter struct {
	Next  interface{ Emit(trace.Event) }
	Allow map[trace.Tag]bool
}

// Emit implements emulator.Sink.
func (f Filter) Emit(e trace.Event) {
	if len(f.Allow) == 0 || f.Allow[e.Tags.Primary()] {
		f.Next.Emit(e)
	}
}
