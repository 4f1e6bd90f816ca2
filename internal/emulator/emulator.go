// Package emulator wires the RV64GC interpreter, a loaded process, and
// the Linux syscall dispatcher into one runnable unit, and formats the
// fatal diagnostic dump required when the guest trips an
// emulator-fatal error: out-of-range memory access, unknown opcode,
// unsupported syscall, or stack-pointer drift/misalignment.
package emulator

import (
	"debug/elf"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/zboralski/rvemu/internal/cpu"
	"github.com/zboralski/rvemu/internal/loader"
	"github.com/zboralski/rvemu/internal/rlog"
	"github.com/zboralski/rvemu/internal/rsyscall"
	"github.com/zboralski/rvemu/internal/trace"
)

// Sink receives one enriched trace.Event per traced instruction or
// syscall. internal/tracesink and internal/tui both implement it.
type Sink interface {
	Emit(trace.Event)
}

// Emulator owns a loaded process, its CPU state, and the syscall
// dispatcher bound to it. SessionID correlates a single run's log lines
// and fatal dump across restarts.
type Emulator struct {
	SessionID uuid.UUID

	Proc *loader.Process
	CPU  *cpu.CPU
	Sys  *rsyscall.Dispatcher
	Log  *rlog.Logger

	sink       Sink
	instrTrace bool
}

// New builds an Emulator from an already-loaded process: the register
// file is preset the way _start expects (sp at the top of the startup
// stack, pc at the entry point), and the CPU's ECALL hook is wired to a
// fresh syscall dispatcher bound to the same process.
func New(proc *loader.Process, log *rlog.Logger, osName string) *Emulator {
	if log == nil {
		log = rlog.NewNop()
	}
	sys := rsyscall.New(proc, log, osName, machineName(proc.Machine))

	c := cpu.New(proc.Image)
	c.PC = proc.Entry
	c.X[2] = proc.InitialSP
	c.Syscall = sys.Handle

	return &Emulator{
		SessionID: uuid.New(),
		Proc:      proc,
		CPU:       c,
		Sys:       sys,
		Log:       log,
	}
}

func machineName(m elf.Machine) string {
	switch m {
	case elf.EM_RISCV:
		return "riscv64"
	case elf.EM_AARCH64:
		return "aarch64"
	default:
		return "unknown"
	}
}

// EnableSink turns on trace collection: every rlog.Logger.Trace call from
// the rsyscall package becomes an enriched trace.Event delivered to
// sink. instr additionally asks the CPU (via CPU.OnTrace) to report one
// event per retired instruction.
func (e *Emulator) EnableSink(sink Sink, instr bool) {
	e.sink = sink
	e.instrTrace = instr
	e.Log.SetOnTrace(func(pc uint64, category, name, detail string) {
		ev := trace.NewEvent(pc, category, name, detail)
		trace.DefaultEnricher(ev)
		sink.Emit(*ev)
	})
	if instr {
		e.CPU.OnTrace = func(pc uint64, raw uint32, size uint64) {
			ev := trace.NewEvent(pc, string(trace.Instr), "step", fmt.Sprintf("raw=%#x size=%d", raw, size))
			sink.Emit(*ev)
		}
	}
}

// Close releases any host resources (open file descriptors) the guest
// acquired during Run.
func (e *Emulator) Close() {
	e.Sys.Close()
}

// Run steps the interpreter until it halts (exit/exit_group/tgkill), a
// cycle budget is exhausted, or a fatal fault occurs. maxCycles of 0
// means unbounded. It returns the guest exit code and, on a fatal fault,
// a non-nil *FatalError describing it.
func (e *Emulator) Run(maxCycles uint64) (int, error) {
	if maxCycles == 0 {
		maxCycles = ^uint64(0)
	}
	for n := uint64(0); n < maxCycles && !e.CPU.Halted; n++ {
		if err := e.checkInvariants(); err != nil {
			return 0, err
		}
		if err := e.CPU.Step(); err != nil {
			return 0, e.fatal(err)
		}
	}
	return e.CPU.ExitCode, nil
}

// checkInvariants enforces the two ABI invariants that are fatal
// rather than recoverable: sp stays inside the process's address
// space, and it remains 16-byte aligned between instructions.
func (e *Emulator) checkInvariants() error {
	sp := e.CPU.X[2]
	if sp%16 != 0 {
		return e.fatal(fmt.Errorf("stack pointer %#x is not 16-byte aligned", sp))
	}
	base := e.Proc.Image.Base()
	if sp < base || sp > base+e.Proc.Image.Size() {
		return e.fatal(fmt.Errorf("stack pointer %#x drifted outside the guest address space", sp))
	}
	return nil
}

// FatalError is an emulator-fatal condition: the guest cannot continue
// and no local recovery is attempted. Error() renders the same
// diagnostic dump Run's caller would print to stderr.
type FatalError struct {
	SessionID uuid.UUID
	PC        uint64
	Symbol    string
	Offset    uint64
	Machine   string
	Regs      [32]uint64
	Cause     error
}

func (f *FatalError) Error() string {
	return f.Dump(false)
}

func (f *FatalError) Unwrap() error { return f.Cause }

func (e *Emulator) fatal(cause error) *FatalError {
	name, off, ok := e.Proc.Symbols.Lookup(e.CPU.PC)
	if !ok {
		name = "?"
	}
	fe := &FatalError{
		SessionID: e.SessionID,
		PC:        e.CPU.PC,
		Symbol:    name,
		Offset:    off,
		Machine:   machineName(e.Proc.Machine),
		Regs:      e.CPU.X,
		Cause:     cause,
	}
	if e.sink != nil {
		ev := trace.NewEvent(e.CPU.PC, string(trace.Fatal), "fault", cause.Error())
		ev.Annotate("session", e.SessionID.String())
		e.sink.Emit(*ev)
	}
	return fe
}

var (
	dumpHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	dumpLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dumpValue  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Dump renders the fatal diagnostic: PC with nearest symbol and
// offset, all 32 integer registers, and the host/target identification
// string. color selects the lipgloss-styled form used for an
// interactive terminal; the plain form is used for log files.
func (f *FatalError) Dump(color bool) string {
	var b strings.Builder
	header := fmt.Sprintf("emulator fatal [%s]: %v", f.SessionID, f.Cause)
	pcLine := fmt.Sprintf("pc=%#016x (%s+%#x) target=%s", f.PC, f.Symbol, f.Offset, f.Machine)
	if color {
		header = dumpHeader.Render(header)
		pcLine = dumpLabel.Render("pc") + "=" + dumpValue.Render(fmt.Sprintf("%#016x (%s+%#x) target=%s", f.PC, f.Symbol, f.Offset, f.Machine))
	}
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString(pcLine)
	b.WriteByte('\n')
	for i := 0; i < 32; i += 4 {
		for j := 0; j < 4; j++ {
			reg := i + j
			label := fmt.Sprintf("x%-2d", reg)
			val := fmt.Sprintf("%#016x", f.Regs[reg])
			if color {
				b.WriteString(dumpLabel.Render(label))
				b.WriteByte('=')
				b.WriteString(dumpValue.Render(val))
			} else {
				b.WriteString(label)
				b.WriteByte('=')
				b.WriteString(val)
			}
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
