package rsyscall

import (
	"fmt"
	"time"

	"github.com/zboralski/rvemu/internal/cpu"
	"github.com/zboralski/rvemu/internal/loader"
	"github.com/zboralski/rvemu/internal/rlog"
)

// Dispatcher services ECALL traps against a loaded process: brk/mmap
// against the loader's address space, file descriptors against the
// host filesystem, and the small set of emulator-private numbers.
// It implements cpu.SyscallFunc via Handle.
type Dispatcher struct {
	Proc *loader.Process
	Log  *rlog.Logger

	fds       *fdTable
	startedAt time.Time
	osName    string
	machine   string // "riscv64" used to fill uname/private traps

	traceEnabled bool
}

// New builds a Dispatcher bound to proc. osName and machine feed the
// uname syscall and the synthesized environment.
func New(proc *loader.Process, log *rlog.Logger, osName, machine string) *Dispatcher {
	if log == nil {
		log = rlog.NewNop()
	}
	return &Dispatcher{
		Proc:      proc,
		Log:       log,
		fds:       newFDTable(),
		startedAt: time.Now(),
		osName:    osName,
		machine:   machine,
	}
}

// Close releases any host file descriptors the guest opened.
func (d *Dispatcher) Close() {
	d.fds.closeAll()
}

// Handle implements cpu.SyscallFunc: read the number and arguments from
// a7/a0-a5, run the matching syscall, and write the result (or -errno)
// into a0.
func (d *Dispatcher) Handle(c *cpu.CPU) error {
	num := c.X[17]
	a0, a1, a2, a3, a4, a5 := c.X[10], c.X[11], c.X[12], c.X[13], c.X[14], c.X[15]

	if num >= 0x2000 && num < 0x2100 {
		return d.private(c, num, a0, a1, a2, a3, a4, a5)
	}

	var result uint64
	switch num {
	case sysExit, sysExitGroup, sysTgkill:
		c.Halted = true
		c.ExitCode = int(int32(a0))
		return nil

	case sysSetTidAddress:
		result = 1 // gettid()
	case sysSetRobustList:
		result = 0
	case sysRseq:
		result = errnoResult(eperm)
	case sysGetpid:
		result = 1
	case sysGettid:
		result = 1
	case sysGetuid, sysGeteuid, sysGetgid, sysGetegid:
		result = 0
	case sysPrctl:
		result = 0
	case sysSchedYield:
		result = 0
	case sysSchedSetaffinity, sysSchedGetaffinity:
		result = 0
	case sysSigaction, sysRtSigprocmask, sysSignalstack:
		result = 0
	case sysFutex:
		result = d.futex(c, a0, a1, a2)
	case sysRiscvFlushIcache:
		result = 0

	case sysBrk:
		result = d.brk(a0)
	case sysMmap:
		result = d.mmap(a0, a1, a2, a3, a4, a5)
	case sysMunmap:
		result = d.munmap(a0, a1)
	case sysMremap:
		result = d.mremap(a0, a1, a2, a3)
	case sysMprotect, sysMadvise:
		result = 0

	case sysOpenat:
		result = d.openat(c, a0, a1, a2, a3)
	case sysOpenLegacy:
		fdcwd := int64(fdCWD)
		result = d.openat(c, uint64(fdcwd), a0, a1, a2)
	case sysClose:
		result = d.closeFD(a0)
	case sysRead:
		result = d.read(c, a0, a1, a2)
	case sysWrite:
		result = d.write(c, a0, a1, a2)
	case sysWritev:
		result = d.writev(c, a0, a1, a2)
	case sysLseek:
		result = d.lseek(a0, a1, a2)
	case sysNewfstat:
		result = d.fstat(c, a0, a1)
	case sysNewfstatat:
		result = d.fstatat(c, a0, a1, a2, a3)
	case sysStatx:
		result = d.statx(c, a1, a4)
	case sysFdatasync, sysFsync:
		result = d.fdatasync(a0)
	case sysGetdents64:
		result = d.getdents64(c, a0, a1, a2)
	case sysGetcwd:
		result = d.getcwd(c, a0, a1)
	case sysChdir:
		result = d.chdir(c, a0)
	case sysMkdirat:
		result = d.mkdirat(c, a0, a1, a2)
	case sysUnlinkat, sysUnlinkLegacy:
		result = d.unlinkat(c, a0, a1)
	case sysRenameat, sysRenameat2:
		result = d.renameat(c, a1, a2, a3, a4)
	case sysFaccessat:
		result = d.faccessat(c, a1, a2)
	case sysReadlinkat:
		result = d.readlinkat(c, a0, a1, a2, a3)
	case sysIoctl:
		result = d.ioctl(c, a0, a1, a2)
	case sysFcntl:
		result = d.fcntl(a0, a1, a2)

	case sysClockGettime:
		result = d.clockGettime(c, a0, a1)
	case sysGettimeofday:
		result = d.gettimeofday(c, a0)
	case sysTimes:
		result = d.times(c, a0)
	case sysClockNanosleep:
		result = d.nanosleep(c, a2, a3)

	case sysUname:
		result = d.uname(c, a0)
	case sysGetrandom:
		result = d.getrandom(c, a0, a1)
	case sysGetrusage:
		result = d.getrusage(c, a1)
	case sysSysinfo:
		result = d.sysinfo(c, a0)
	case sysPrlimit64:
		result = 0
	case sysPselect6, sysPpollTime32:
		result = 0
	case sysClone:
		result = errnoResult(eacces) // single-hart: no real thread creation

	default:
		d.Log.Trace(c.PC, "syscall", "unhandled", "num")
		return fmt.Errorf("rsyscall: unsupported syscall %d", num)
	}

	c.X[10] = result
	return nil
}

// errnoResult encodes a negative-errno failure the way the raw
// syscall ABI expects it, not libc's separate errno variable.
func errnoResult(errno uint64) uint64 {
	return ^errno + 1 // two's complement -errno
}
