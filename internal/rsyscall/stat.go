package rsyscall

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/zboralski/rvemu/internal/cpu"
)

// translateOSError maps a host os.PathError/os.LinkError into the errno
// a riscv64/Linux guest expects back in a0.
func translateOSError(err error) uint64 {
	switch {
	case os.IsNotExist(err):
		return enoent
	case os.IsPermission(err):
		return eacces
	case os.IsExist(err):
		return eexist
	default:
		return eio
	}
}

// writeStatLinuxSyscall marshals info into the 128-byte RISC-V struct
// stat layout (field order and the 8-byte st_rdev/st_size gap match
// the real glibc riscv64 ABI).
func writeStatLinuxSyscall(c *cpu.CPU, addr uint64, fi os.FileInfo) error {
	st, ok := fi.Sys().(*unix.Stat_t)
	var dev, ino, rdev uint64
	var nlink, uid, gid uint32
	var mode uint32
	var atim, mtim, ctim unix.Timespec
	if ok {
		dev, ino, rdev = uint64(st.Dev), st.Ino, uint64(st.Rdev)
		nlink, uid, gid = uint32(st.Nlink), st.Uid, st.Gid
		mode = st.Mode
		atim, mtim, ctim = st.Atim, st.Mtim, st.Ctim
	} else {
		mode = uint32(fi.Mode().Perm())
		if fi.IsDir() {
			mode |= 0040000
		} else {
			mode |= 0100000
		}
		nlink = 1
		nsec := fi.ModTime().UnixNano()
		ts := unix.Timespec{Sec: nsec / 1e9, Nsec: nsec % 1e9}
		atim, mtim, ctim = ts, ts, ts
	}

	buf := make([]byte, 128)
	putU64(buf[0:], dev)
	putU64(buf[8:], ino)
	putU32(buf[16:], mode)
	putU32(buf[20:], nlink)
	putU32(buf[24:], uid)
	putU32(buf[28:], gid)
	putU64(buf[32:], rdev)
	// [40:48) is the 8-byte padding gap before st_size.
	putU64(buf[48:], uint64(fi.Size()))
	putU32(buf[56:], 4096) // st_blksize
	putU64(buf[64:], uint64((fi.Size()+511)/512))
	putU64(buf[72:], uint64(atim.Sec))
	putU64(buf[80:], uint64(atim.Nsec))
	putU64(buf[88:], uint64(mtim.Sec))
	putU64(buf[96:], uint64(mtim.Nsec))
	putU64(buf[104:], uint64(ctim.Sec))
	putU64(buf[112:], uint64(ctim.Nsec))

	return c.Image.Write(addr, buf)
}

func putU32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func (d *Dispatcher) fstat(c *cpu.CPU, fdv, statAddr uint64) uint64 {
	f, ok := d.fds.get(int32(fdv))
	if !ok {
		return errnoResult(ebadf)
	}
	fi, err := f.Stat()
	if err != nil {
		return errnoResult(eio)
	}
	if err := writeStatLinuxSyscall(c, statAddr, fi); err != nil {
		return errnoResult(efault)
	}
	return 0
}

func (d *Dispatcher) fstatat(c *cpu.CPU, dirfd, pathAddr, statAddr, flags uint64) uint64 {
	path, err := c.Image.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	fi, serr := os.Stat(path)
	if serr != nil {
		return errnoResult(enoent)
	}
	if err := writeStatLinuxSyscall(c, statAddr, fi); err != nil {
		return errnoResult(efault)
	}
	return 0
}

// statx fills the subset of struct statx fields guest programs
// actually read, reusing the same host os.FileInfo path newfstatat
// takes.
func (d *Dispatcher) statx(c *cpu.CPU, pathAddr, bufAddr uint64) uint64 {
	path, err := c.Image.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	fi, serr := os.Stat(path)
	if serr != nil {
		return errnoResult(enoent)
	}
	buf := make([]byte, 256)
	putU32(buf[0:], 0x7ff) // stx_mask: STATX_BASIC_STATS
	putU32(buf[4:], 4096)  // stx_blksize
	mode := uint16(fi.Mode().Perm())
	if fi.IsDir() {
		mode |= 0040000
	} else {
		mode |= 0100000
	}
	buf[22], buf[23] = byte(mode), byte(mode>>8)
	putU64(buf[24:], 1) // stx_ino
	putU64(buf[32:], uint64(fi.Size()))
	putU64(buf[40:], uint64((fi.Size()+511)/512))
	if err := c.Image.Write(bufAddr, buf); err != nil {
		return errnoResult(efault)
	}
	return 0
}

// uname fills the 6x65-byte struct utsname with the dispatcher's own
// OS name and target machine string.
func (d *Dispatcher) uname(c *cpu.CPU, addr uint64) uint64 {
	const fieldLen = 65
	sysname := d.osName
	if sysname == "" {
		sysname = "syscall"
	}
	fields := []string{sysname, "localhost", "1.0.0", "#1", d.machine, "localdomain"}
	buf := make([]byte, fieldLen*6)
	for i, s := range fields {
		copy(buf[i*fieldLen:], s)
	}
	if err := c.Image.Write(addr, buf); err != nil {
		return errnoResult(efault)
	}
	return 0
}

func (d *Dispatcher) getrandom(c *cpu.CPU, bufAddr, length uint64) uint64 {
	buf, err := c.Image.Slice(bufAddr, length)
	if err != nil {
		return errnoResult(efault)
	}
	if _, rerr := unixGetrandom(buf); rerr != nil {
		for i := range buf {
			buf[i] = byte(time.Now().UnixNano() >> (uint(i) % 8 * 8))
		}
	}
	return length
}

func unixGetrandom(buf []byte) (int, error) {
	return unix.Getrandom(buf, 0)
}

func (d *Dispatcher) getrusage(c *cpu.CPU, addr uint64) uint64 {
	buf := make([]byte, 144) // struct rusage, zeroed; no real resource accounting is tracked
	if err := c.Image.Write(addr, buf); err != nil {
		return errnoResult(efault)
	}
	return 0
}

func (d *Dispatcher) sysinfo(c *cpu.CPU, addr uint64) uint64 {
	buf := make([]byte, 112) // struct sysinfo; only uptime is filled, loads and the rest left zero
	uptime := int64(time.Since(d.startedAt).Seconds())
	putU64(buf[0:], uint64(uptime))
	if err := c.Image.Write(addr, buf); err != nil {
		return errnoResult(efault)
	}
	return 0
}

func (d *Dispatcher) ioctl(c *cpu.CPU, fdv, req, argAddr uint64) uint64 {
	const tcgets = 0x5401
	const tcsets = 0x5402
	switch req {
	case tcgets:
		if t, err := unix.IoctlGetTermios(0, unix.TCGETS); err == nil {
			writeTermios(c, argAddr, t)
		}
		return 0
	case tcsets:
		return 0
	default:
		return 0
	}
}

// writeTermios marshals a host unix.Termios into the kernel_termios
// layout the guest expects (iflag/oflag/cflag/lflag as 32-bit words
// followed by the control-character array); bit definitions must
// present as Linux's regardless of host.
func writeTermios(c *cpu.CPU, addr uint64, t *unix.Termios) {
	buf := make([]byte, 4*4+1+19)
	putU32(buf[0:], uint32(t.Iflag))
	putU32(buf[4:], uint32(t.Oflag))
	putU32(buf[8:], uint32(t.Cflag))
	putU32(buf[12:], uint32(t.Lflag))
	buf[16] = 0 // c_line
	for i := 0; i < 19 && i < len(t.Cc); i++ {
		buf[17+i] = t.Cc[i]
	}
	_ = c.Image.Write(addr, buf)
}
