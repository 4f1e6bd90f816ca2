// Package cpu implements an RV64IMAFDC+Zicsr decoder and executor:
// fetch, RVC expansion via internal/rvc, field decode, and opcode
// dispatch.
package cpu

import (
	"fmt"

	"github.com/zboralski/rvemu/internal/memimage"
	"github.com/zboralski/rvemu/internal/rvc"
)

// Fault reports an instruction the decoder could not execute: a
// malformed RVC halfword, or an opcode/funct
// combination outside the supported RV64GC+Zicsr set.
type Fault struct {
	PC  uint64
	Raw uint32
	Msg string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("cpu: fault at pc %#x (raw %#x): %s", f.PC, f.Raw, f.Msg)
}

// SyscallFunc services an ECALL. It receives the CPU so it can read
// a0-a7 and the guest memory image, and write a result back to a0.
type SyscallFunc func(c *CPU) error

// CPU holds the architectural state for a single RV64GC hart: 32
// integer registers (X[0] is always wired to zero), 32 floating
// registers (holding either a float32 or the bit pattern of a
// float64 — see fp.go for the accessors), the program counter, and
// a retired-instruction counter doubling as the cycle/instret CSR
// source (one cycle per instruction).
type CPU struct {
	X      [32]uint64
	F      [32]uint64
	PC     uint64
	Cycles uint64

	Image *memimage.Image

	// Syscall is invoked on ECALL (opcode_type 0x1c, funct3 0, csr
	// field 0x000). Left nil, ECALL is a Fault — emulator.New wires
	// this to the syscall dispatcher.
	Syscall SyscallFunc

	// OnTrace, if set, is called once per retired instruction before
	// architectural state updates land, for -t tracing. Kept off the
	// hot path when nil.
	OnTrace func(pc uint64, raw uint32, size uint64)

	// Halted is set by an exit/exit_group syscall or a fatal fault;
	// Run stops advancing once it's true.
	Halted   bool
	ExitCode int
}

// New returns a CPU bound to image with all registers and the program
// counter zero; the caller presets pc and sp (emulator.New does so
// from the loaded process).
func New(image *memimage.Image) *CPU {
	return &CPU{Image: image}
}

// fetch reads one instruction at pc, expanding it if compressed.
// Returns the 32-bit equivalent encoding and its size in bytes (2 or
// 4).
func (c *CPU) fetch(pc uint64) (uint32, uint64, error) {
	lo, err := c.Image.U16(pc)
	if err != nil {
		return 0, 0, fmt.Errorf("cpu: fetch at %#x: %w", pc, err)
	}
	if lo&0x3 != 0x3 {
		raw := rvc.Lookup(uint16(lo))
		if raw == 0 {
			return 0, 0, &Fault{PC: pc, Raw: uint32(lo), Msg: "illegal or reserved compressed encoding"}
		}
		return raw, 2, nil
	}
	word, err := c.Image.U32(pc)
	if err != nil {
		return 0, 0, fmt.Errorf("cpu: fetch at %#x: %w", pc, err)
	}
	return uint32(word), 4, nil
}

// Step fetches, decodes, and executes exactly one instruction.
func (c *CPU) Step() error {
	raw, size, err := c.fetch(c.PC)
	if err != nil {
		return err
	}

	if c.OnTrace != nil {
		c.OnTrace(c.PC, raw, size)
	}

	pcNext := c.PC + size
	pcNext, err = c.execute(raw, pcNext)
	if err != nil {
		return err
	}

	c.X[0] = 0
	c.PC = pcNext
	c.Cycles++
	return nil
}

// Run steps up to maxCycles instructions, stopping early if Halted
// becomes true or a Step returns an error. It returns the number of
// instructions actually retired, matching run()'s return value.
func (c *CPU) Run(maxCycles uint64) (uint64, error) {
	start := c.Cycles
	for c.Cycles-start < maxCycles && !c.Halted {
		if err := c.Step(); err != nil {
			return c.Cycles - start, err
		}
	}
	return c.Cycles - start, nil
}

func signExtend(x uint64, bits uint) int64 {
	m := uint64(1) << (bits - 1)
	return int64((x ^ m) - m)
}
