package rsyscall

import (
	"testing"

	"github.com/zboralski/rvemu/internal/cpu"
	"github.com/zboralski/rvemu/internal/loader"
	"github.com/zboralski/rvemu/internal/memimage"
	"github.com/zboralski/rvemu/internal/mmapregion"
)

func newTestProc(t *testing.T) *loader.Process {
	t.Helper()
	base := uint64(0x10000)
	img := memimage.New(base, 0x40000)
	arena := mmapregion.New(base+0x30000, 0x10000, img)
	return &loader.Process{
		Image:  img,
		Mmap:   arena,
		Entry:  base,
		Brk:    base + 0x1000,
		BrkMax: base + 0x20000,
	}
}

func newTestCPU(proc *loader.Process, d *Dispatcher) *cpu.CPU {
	c := cpu.New(proc.Image)
	c.Syscall = d.Handle
	c.PC = proc.Entry
	return c
}

func TestBrkGrowsWithinBounds(t *testing.T) {
	proc := newTestProc(t)
	d := New(proc, nil, "RVOS", "riscv64")
	c := newTestCPU(proc, d)

	c.X[17] = sysBrk
	c.X[10] = proc.Brk + 0x2000
	if err := d.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if c.X[10] != proc.Brk {
		t.Fatalf("brk result = %#x, want new brk %#x", c.X[10], proc.Brk)
	}
}

func TestBrkRejectsBeyondMax(t *testing.T) {
	proc := newTestProc(t)
	d := New(proc, nil, "RVOS", "riscv64")
	c := newTestCPU(proc, d)
	original := proc.Brk

	c.X[17] = sysBrk
	c.X[10] = proc.BrkMax + 0x1000
	if err := d.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if c.X[10] != original {
		t.Fatalf("brk result = %#x, want unchanged %#x", c.X[10], original)
	}
}

func TestMmapAllocateAndFree(t *testing.T) {
	proc := newTestProc(t)
	d := New(proc, nil, "RVOS", "riscv64")
	c := newTestCPU(proc, d)

	c.X[17] = sysMmap
	c.X[10], c.X[11], c.X[12], c.X[13], c.X[14], c.X[15] = 0, 4096, 0, 0, 0, 0
	if err := d.Handle(c); err != nil {
		t.Fatalf("Handle mmap: %v", err)
	}
	addr := c.X[10]
	if addr == 0 {
		t.Fatalf("mmap returned 0")
	}

	c.X[17] = sysMunmap
	c.X[10], c.X[11] = addr, 4096
	if err := d.Handle(c); err != nil {
		t.Fatalf("Handle munmap: %v", err)
	}
	if c.X[10] != 0 {
		t.Fatalf("munmap result = %#x, want 0", c.X[10])
	}
}

func TestExitHaltsCPU(t *testing.T) {
	proc := newTestProc(t)
	d := New(proc, nil, "RVOS", "riscv64")
	c := newTestCPU(proc, d)

	c.X[17] = sysExitGroup
	c.X[10] = 7
	if err := d.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !c.Halted {
		t.Fatalf("exit_group did not halt the CPU")
	}
	if c.ExitCode != 7 {
		t.Fatalf("ExitCode = %d, want 7", c.ExitCode)
	}
}

func TestPrivateRandAndExit(t *testing.T) {
	proc := newTestProc(t)
	d := New(proc, nil, "RVOS", "riscv64")
	c := newTestCPU(proc, d)

	c.X[17] = privRand
	if err := d.Handle(c); err != nil {
		t.Fatalf("Handle rand: %v", err)
	}

	c.X[17] = privExit
	c.X[10] = 3
	if err := d.Handle(c); err != nil {
		t.Fatalf("Handle exit: %v", err)
	}
	if !c.Halted || c.ExitCode != 3 {
		t.Fatalf("private exit did not halt with code 3: halted=%v code=%d", c.Halted, c.ExitCode)
	}
}

func TestFutexWaitMismatchReturnsEagain(t *testing.T) {
	proc := newTestProc(t)
	d := New(proc, nil, "RVOS", "riscv64")
	c := newTestCPU(proc, d)

	addr := proc.Image.Base() + 0x100
	if err := proc.Image.SetU32(addr, 5); err != nil {
		t.Fatalf("SetU32: %v", err)
	}

	c.X[17] = sysFutex
	c.X[10], c.X[11], c.X[12] = addr, futexWait, 9
	if err := d.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if c.X[10] != errnoResult(eagain) {
		t.Fatalf("futex wait result = %#x, want -EAGAIN", c.X[10])
	}
}
