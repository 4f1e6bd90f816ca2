package rsyscall

import (
	"time"

	"github.com/zboralski/rvemu/internal/cpu"
)

const (
	clockRealtime  = 0
	clockMonotonic = 1
)

func writeTimespec(c *cpu.CPU, addr uint64, t time.Time) error {
	if err := c.Image.SetU64(addr, uint64(t.Unix())); err != nil {
		return err
	}
	return c.Image.SetU64(addr+8, uint64(t.Nanosecond()))
}

func (d *Dispatcher) clockGettime(c *cpu.CPU, clockID, addr uint64) uint64 {
	var t time.Time
	switch clockID {
	case clockMonotonic:
		t = time.Unix(0, 0).Add(time.Since(d.startedAt))
	default:
		t = time.Now()
	}
	if err := writeTimespec(c, addr, t); err != nil {
		return errnoResult(efault)
	}
	return 0
}

func (d *Dispatcher) gettimeofday(c *cpu.CPU, addr uint64) uint64 {
	now := time.Now()
	if err := c.Image.SetU64(addr, uint64(now.Unix())); err != nil {
		return errnoResult(efault)
	}
	if err := c.Image.SetU64(addr+8, uint64(now.Nanosecond()/1000)); err != nil {
		return errnoResult(efault)
	}
	return 0
}

// clockTicksPerSec matches sysconf(_SC_CLK_TCK) on essentially every
// Linux install; the guest has no other way to query it.
const clockTicksPerSec = 100

func (d *Dispatcher) times(c *cpu.CPU, addr uint64) uint64 {
	elapsed := time.Since(d.startedAt)
	ticks := uint64(elapsed.Seconds() * clockTicksPerSec)
	for i, v := range []uint64{ticks, 0, 0, 0} {
		if err := c.Image.SetU64(addr+uint64(i)*8, v); err != nil {
			return errnoResult(efault)
		}
	}
	return uint64(time.Since(d.startedAt).Milliseconds())
}

func (d *Dispatcher) nanosleep(c *cpu.CPU, reqAddr, remAddr uint64) uint64 {
	sec, err := c.Image.U64(reqAddr)
	if err != nil {
		return errnoResult(efault)
	}
	nsec, err := c.Image.U64(reqAddr + 8)
	if err != nil {
		return errnoResult(efault)
	}
	time.Sleep(time.Duration(sec)*time.Second + time.Duration(nsec)*time.Nanosecond)
	if remAddr != 0 {
		_ = c.Image.SetU64(remAddr, 0)
		_ = c.Image.SetU64(remAddr+8, 0)
	}
	return 0
}
