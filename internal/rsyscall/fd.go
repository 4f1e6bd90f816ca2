package rsyscall

import (
	"os"
	"sort"

	"github.com/zboralski/rvemu/internal/cpu"
)

// fdCWD is the guest's fake "current working directory" descriptor,
// mapped onto the host's AT_FDCWD.
const fdCWD = -100

const maxPathLen = 4096

// fdTable maps guest descriptors onto host *os.File handles. Guest fds
// 0/1/2 alias the emulator's own stdio.
type fdTable struct {
	files map[int32]*os.File
	next  int32
}

func newFDTable() *fdTable {
	return &fdTable{
		files: map[int32]*os.File{
			0: os.Stdin,
			1: os.Stdout,
			2: os.Stderr,
		},
		next: 3,
	}
}

func (t *fdTable) install(f *os.File) int32 {
	fd := t.next
	t.next++
	t.files[fd] = f
	return fd
}

func (t *fdTable) get(fd int32) (*os.File, bool) {
	f, ok := t.files[fd]
	return f, ok
}

func (t *fdTable) remove(fd int32) (*os.File, bool) {
	f, ok := t.files[fd]
	if ok {
		delete(t.files, fd)
	}
	return f, ok
}

func (t *fdTable) closeAll() {
	for fd, f := range t.files {
		if fd > 2 {
			f.Close()
		}
	}
}

func (d *Dispatcher) openat(c *cpu.CPU, dirfd, pathAddr, flags, mode uint64) uint64 {
	path, err := c.Image.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	// dirfd is always resolved relative to the emulator's own cwd.
	f, oerr := os.OpenFile(path, int(flags), os.FileMode(mode&0777))
	if oerr != nil {
		return errnoResult(translateOSError(oerr))
	}
	fd := d.fds.install(f)
	d.Log.Trace(c.PC, "syscall", "openat", path)
	return uint64(fd)
}

func (d *Dispatcher) closeFD(fdv uint64) uint64 {
	fd := int32(fdv)
	if fd <= 2 {
		return 0 // never actually close the emulator's own stdio
	}
	f, ok := d.fds.remove(fd)
	if !ok {
		return errnoResult(ebadf)
	}
	if err := f.Close(); err != nil {
		return errnoResult(eio)
	}
	return 0
}

func (d *Dispatcher) read(c *cpu.CPU, fdv, bufAddr, count uint64) uint64 {
	f, ok := d.fds.get(int32(fdv))
	if !ok {
		return errnoResult(ebadf)
	}
	buf, err := c.Image.Slice(bufAddr, count)
	if err != nil {
		return errnoResult(efault)
	}
	n, rerr := f.Read(buf)
	if n == 0 && rerr != nil {
		return 0 // EOF reads as a zero-length result, not an error
	}
	return uint64(n)
}

func (d *Dispatcher) write(c *cpu.CPU, fdv, bufAddr, count uint64) uint64 {
	f, ok := d.fds.get(int32(fdv))
	if !ok {
		return errnoResult(ebadf)
	}
	buf, err := c.Image.Slice(bufAddr, count)
	if err != nil {
		return errnoResult(efault)
	}
	n, werr := f.Write(buf)
	if werr != nil {
		return errnoResult(eio)
	}
	return uint64(n)
}

func (d *Dispatcher) writev(c *cpu.CPU, fdv, iovAddr, iovcnt uint64) uint64 {
	f, ok := d.fds.get(int32(fdv))
	if !ok {
		return errnoResult(ebadf)
	}
	var total uint64
	for i := uint64(0); i < iovcnt; i++ {
		base, err := c.Image.U64(iovAddr + i*16)
		if err != nil {
			return errnoResult(efault)
		}
		length, err := c.Image.U64(iovAddr + i*16 + 8)
		if err != nil {
			return errnoResult(efault)
		}
		buf, err := c.Image.Slice(base, length)
		if err != nil {
			return errnoResult(efault)
		}
		n, werr := f.Write(buf)
		total += uint64(n)
		if werr != nil {
			return errnoResult(eio)
		}
	}
	return total
}

func (d *Dispatcher) lseek(fdv, offset, whence uint64) uint64 {
	f, ok := d.fds.get(int32(fdv))
	if !ok {
		return errnoResult(ebadf)
	}
	pos, err := f.Seek(int64(offset), int(whence))
	if err != nil {
		return errnoResult(einval)
	}
	return uint64(pos)
}

func (d *Dispatcher) fdatasync(fdv uint64) uint64 {
	f, ok := d.fds.get(int32(fdv))
	if !ok {
		return errnoResult(ebadf)
	}
	if err := f.Sync(); err != nil {
		return errnoResult(eio)
	}
	return 0
}

func (d *Dispatcher) getcwd(c *cpu.CPU, bufAddr, size uint64) uint64 {
	cwd, err := os.Getwd()
	if err != nil {
		return errnoResult(eio)
	}
	if uint64(len(cwd)+1) > size {
		return errnoResult(einval)
	}
	if err := c.Image.WriteCString(bufAddr, cwd); err != nil {
		return errnoResult(efault)
	}
	return bufAddr
}

func (d *Dispatcher) chdir(c *cpu.CPU, pathAddr uint64) uint64 {
	path, err := c.Image.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	if err := os.Chdir(path); err != nil {
		return errnoResult(translateOSError(err))
	}
	return 0
}

func (d *Dispatcher) mkdirat(c *cpu.CPU, dirfd, pathAddr, mode uint64) uint64 {
	path, err := c.Image.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	if err := os.Mkdir(path, os.FileMode(mode&0777)); err != nil {
		return errnoResult(translateOSError(err))
	}
	return 0
}

func (d *Dispatcher) unlinkat(c *cpu.CPU, dirfd, pathAddr uint64) uint64 {
	path, err := c.Image.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	if err := os.Remove(path); err != nil {
		return errnoResult(translateOSError(err))
	}
	return 0
}

func (d *Dispatcher) renameat(c *cpu.CPU, oldPathAddr, newDirfd, newPathAddr, flags uint64) uint64 {
	oldPath, err := c.Image.ReadCString(oldPathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	newPath, err := c.Image.ReadCString(newPathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return errnoResult(translateOSError(err))
	}
	return 0
}

func (d *Dispatcher) faccessat(c *cpu.CPU, pathAddr, mode uint64) uint64 {
	path, err := c.Image.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	if _, err := os.Stat(path); err != nil {
		return errnoResult(enoent)
	}
	return 0
}

func (d *Dispatcher) readlinkat(c *cpu.CPU, dirfd, pathAddr, bufAddr, size uint64) uint64 {
	path, err := c.Image.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return errnoResult(efault)
	}
	target, rerr := os.Readlink(path)
	if rerr != nil {
		return errnoResult(enoent)
	}
	if uint64(len(target)) > size {
		target = target[:size]
	}
	if err := c.Image.Write(bufAddr, []byte(target)); err != nil {
		return errnoResult(efault)
	}
	return uint64(len(target))
}

func (d *Dispatcher) getdents64(c *cpu.CPU, fdv, bufAddr, size uint64) uint64 {
	f, ok := d.fds.get(int32(fdv))
	if !ok {
		return errnoResult(ebadf)
	}
	names, err := f.Readdirnames(-1)
	if err != nil {
		return errnoResult(enotdir)
	}
	sort.Strings(names)

	out, err := c.Image.Slice(bufAddr, size)
	if err != nil {
		return errnoResult(efault)
	}

	var off int
	var ino uint64 = 1
	for _, name := range names {
		reclen := (19 + len(name) + 1 + 7) &^ 7 // d_ino+d_off+d_reclen+d_type+name+NUL, 8-aligned
		if off+reclen > len(out) {
			break
		}
		putU64(out[off:], ino)
		putU64(out[off+8:], uint64(off+reclen))
		putU16(out[off+16:], uint16(reclen))
		out[off+18] = 8 // DT_REG; directory entry typing is not tracked precisely
		copy(out[off+19:], name)
		out[off+19+len(name)] = 0
		off += reclen
		ino++
	}
	return uint64(off)
}

func (d *Dispatcher) fcntl(fdv, cmd, arg uint64) uint64 {
	if _, ok := d.fds.get(int32(fdv)); !ok {
		return errnoResult(ebadf)
	}
	d.Log.TraceSimple("syscall", "fcntl", "stubbed")
	return 0
}

func putU16(b []byte, v uint16) { b[0], b[1] = byte(v), byte(v>>8) }
func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
