package rsyscall

const mmapPageSize = 4096

func roundUpPage(n uint64) uint64 {
	return (n + mmapPageSize - 1) &^ (mmapPageSize - 1)
}

// brk grows or queries the heap break. A new break is accepted when it
// lies within [image base, BrkMax], both ends inclusive; the lower bound
// is the start of the image, not the end of the loaded data, so a break
// below the data end is not rejected. A rejected request returns the
// unchanged break. ask==0 queries the current value, matching Linux's
// own brk(2) convention.
func (d *Dispatcher) brk(ask uint64) uint64 {
	if ask == 0 {
		return d.Proc.Brk
	}
	if ask < d.Proc.Image.Base() || ask > d.Proc.BrkMax {
		return d.Proc.Brk // reject; report the unchanged break like the reference
	}
	if ask > d.Proc.Brk {
		_ = d.Proc.Image.Zero(d.Proc.Brk, ask-d.Proc.Brk)
	}
	d.Proc.Brk = ask
	return d.Proc.Brk
}

// mmap supports only MAP_PRIVATE|MAP_ANONYMOUS with a zero address;
// length is rounded up to a page and delegated to the arena allocator.
func (d *Dispatcher) mmap(addr, length, prot, flags, fd, offset uint64) uint64 {
	if addr != 0 {
		return errnoResult(einval)
	}
	result := d.Proc.Mmap.Allocate(roundUpPage(length))
	if result == 0 {
		return errnoResult(enomem)
	}
	return result
}

func (d *Dispatcher) munmap(addr, length uint64) uint64 {
	if !d.Proc.Mmap.Free(addr, roundUpPage(length)) {
		return errnoResult(einval)
	}
	return 0
}

const mremapMayMove = 1

func (d *Dispatcher) mremap(addr, oldLen, newLen, flags uint64) uint64 {
	mayMove := flags&mremapMayMove != 0
	result := d.Proc.Mmap.Resize(addr, roundUpPage(oldLen), roundUpPage(newLen), mayMove)
	if result == 0 {
		return errnoResult(enomem)
	}
	return result
}
