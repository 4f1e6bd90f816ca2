package rsyscall

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/zboralski/rvemu/internal/cpu"
)

// private implements the emulator-only syscall numbers in the 0x2000
// range: they let test programs drive the emulator without a C
// runtime, and must be idempotent and side-effect-free beyond the
// named action.
func (d *Dispatcher) private(c *cpu.CPU, num, a0, a1, a2, a3, a4, a5 uint64) error {
	switch num {
	case privExit:
		c.Halted = true
		c.ExitCode = int(int32(a0))
		return nil

	case privRand:
		c.X[10] = rand.Uint64()

	case privPrintInt64:
		fmt.Printf("%d", int64(a0))
		os.Stdout.Sync()
		c.X[10] = 0

	case privPrintChar:
		fmt.Printf("%c", rune(a0))
		c.X[10] = 0

	case privPrintText:
		s, err := c.Image.ReadCString(a0, 0)
		if err != nil {
			return err
		}
		fmt.Print(s)
		os.Stdout.Sync()
		c.X[10] = 0

	case privPrintDouble:
		fmt.Printf("%f", math.Float64frombits(a0))
		os.Stdout.Sync()
		c.X[10] = 0

	case privGetDatetime:
		now := time.Now()
		s := fmt.Sprintf("%02d:%02d:%02d.%03d", now.Hour(), now.Minute(), now.Second(), now.Nanosecond()/1e6)
		if err := c.Image.WriteCString(a0, s); err != nil {
			return err
		}
		c.X[10] = 0

	case privTraceInstructions:
		d.traceEnabled = a0 != 0
		if d.traceEnabled {
			c.X[10] = 1
		} else {
			c.X[10] = 0
		}

	default:
		d.Log.Trace(c.PC, "syscall", "private", "unhandled")
		c.X[10] = errnoResult(enosys)
	}
	return nil
}
