package rsyscall

import "github.com/zboralski/rvemu/internal/cpu"

const (
	futexWait = 0
	futexWake = 1
)

// futex is stubbed for the single-hart model of §5: WAIT returns EAGAIN
// if the observed value no longer matches (the only case a real futex
// could report synchronously); WAKE is a no-op success since no other
// hart could be waiting.
func (d *Dispatcher) futex(c *cpu.CPU, addr, op, val uint64) uint64 {
	switch op & 0x7f {
	case futexWait:
		cur, err := c.Image.U32(addr)
		if err != nil {
			return errnoResult(efault)
		}
		if cur != val {
			return errnoResult(eagain)
		}
		return 0
	case futexWake:
		return 0
	default:
		return 0
	}
}
