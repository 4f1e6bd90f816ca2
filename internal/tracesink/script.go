package tracesink

import (
	"fmt"
	"os"

	"github.com/dop251/goja"

	"github.com/zboralski/rvemu/internal/trace"
)

// Script is a sink backed by a user-supplied JavaScript file (--script
// path.js). The script must define a top-level function
// onEvent(event) that receives {pc, tag, name, detail, annotations}.
// A script error on one event is logged to stderr and otherwise
// ignored — a malformed sink must never take the emulator down with it.
type Script struct {
	vm    *goja.Runtime
	onEvt goja.Callable
	path  string
}

// LoadScript compiles path and resolves its onEvent function.
func LoadScript(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tracesink: read %s: %w", path, err)
	}

	vm := goja.New()
	if _, err := vm.RunString(string(src)); err != nil {
		return nil, fmt.Errorf("tracesink: run %s: %w", path, err)
	}

	fn, ok := goja.AssertFunction(vm.Get("onEvent"))
	if !ok {
		return nil, fmt.Errorf("tracesink: %s does not define onEvent(event)", path)
	}

	return &Script{vm: vm, onEvt: fn, path: path}, nil
}

// Emit implements emulator.Sink.
func (s *Script) Emit(e trace.Event) {
	obj := map[string]interface{}{
		"pc":          e.PC,
		"tag":         string(e.Tags.Primary()),
		"tags":        e.Tags.Raw(),
		"name":        e.Name,
		"detail":      e.Detail,
		"annotations": map[string]string(e.Annotations),
	}
	if _, err := s.onEvt(goja.Undefined(), s.vm.ToValue(obj)); err != nil {
		fmt.Fprintf(os.Stderr, "tracesink: %s: onEvent: %v\n", s.path, err)
	}
}
