package emulator

import (
	"debug/elf"
	"testing"

	"github.com/zboralski/rvemu/internal/loader"
	"github.com/zboralski/rvemu/internal/memimage"
	"github.com/zboralski/rvemu/internal/mmapregion"
	"github.com/zboralski/rvemu/internal/rlog"
)

func newTestProc(t *testing.T) *loader.Process {
	t.Helper()
	base := uint64(0x10000)
	img := memimage.New(base, 0x40000)
	arena := mmapregion.New(base+0x30000, 0x10000, img)
	return &loader.Process{
		Image:     img,
		Mmap:      arena,
		Symbols:   &loader.SymbolTable{},
		Entry:     base,
		InitialSP: base + 0x20000, // 16-byte aligned, inside the image
		Brk:       base + 0x1000,
		BrkMax:    base + 0x20000,
		Machine:   elf.EM_RISCV,
	}
}

// exitGroupProgram is li a7, 94 (exit_group); li a0, 9; ecall, encoded
// as the standard RV64 addi-immediate pattern.
func exitGroupProgram() []byte {
	prog := []uint32{
		0x05e00893, // addi a7, x0, 94
		0x00900513, // addi a0, x0, 9
		0x00000073, // ecall
	}
	buf := make([]byte, 4*len(prog))
	for i, w := range prog {
		buf[i*4+0] = byte(w)
		buf[i*4+1] = byte(w >> 8)
		buf[i*4+2] = byte(w >> 16)
		buf[i*4+3] = byte(w >> 24)
	}
	return buf
}

func TestRunHaltsOnExitGroup(t *testing.T) {
	proc := newTestProc(t)
	if err := proc.Image.Write(proc.Entry, exitGroupProgram()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	emu := New(proc, rlog.NewNop(), "RVOS")
	defer emu.Close()

	code, err := emu.Run(100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 9 {
		t.Fatalf("exit code = %d, want 9", code)
	}
	if !emu.CPU.Halted {
		t.Fatalf("CPU did not halt")
	}
}

func TestRunFatalOnIllegalInstruction(t *testing.T) {
	proc := newTestProc(t)
	emu := New(proc, rlog.NewNop(), "RVOS")
	defer emu.Close()

	// Entry points at a zeroed word the memimage never wrote: 0x00000000
	// decodes as an illegal/reserved RVC encoding, which is a Fault.
	_, err := emu.Run(10)
	if err == nil {
		t.Fatalf("expected a fatal fault, got nil")
	}
	fe, ok := err.(*FatalError)
	if !ok {
		t.Fatalf("error type = %T, want *FatalError", err)
	}
	if fe.SessionID == emu.SessionID {
		t.Logf("session id round-trips into the fatal dump: %s", fe.SessionID)
	}
	dump := fe.Dump(false)
	if dump == "" {
		t.Fatalf("Dump returned an empty string")
	}
}

func TestFatalOnMisalignedStackPointer(t *testing.T) {
	proc := newTestProc(t)
	emu := New(proc, rlog.NewNop(), "RVOS")
	defer emu.Close()

	emu.CPU.X[2]++ // break 16-byte alignment

	_, err := emu.Run(10)
	if err == nil {
		t.Fatalf("expected a fatal fault for misaligned sp")
	}
}
