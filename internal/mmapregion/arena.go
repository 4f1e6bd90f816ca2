// Package mmapregion implements a first-fit anonymous mmap arena
// carved out of the guest's flat address space.
package mmapregion

import (
	"sort"

	"github.com/zboralski/rvemu/internal/memimage"
)

const pageSize = 4096

// Entry is a single allocation: address and length, both page-aligned.
type Entry struct {
	Address uint64
	Length  uint64
}

// Arena serves mmap/munmap/mremap out of a single reserved region.
// Entries are kept strictly sorted by address and pairwise disjoint.
type Arena struct {
	base    uint64
	length  uint64
	peak    uint64
	image   *memimage.Image
	entries []Entry
}

// New reserves [base, base+length) for anonymous mmap allocations.
// image is the memory image to zero/copy bytes into on allocation moves.
func New(base, length uint64, image *memimage.Image) *Arena {
	return &Arena{base: base, length: length, image: image}
}

// Base returns the arena's reserved base address.
func (a *Arena) Base() uint64 { return a.base }

// Length returns the arena's reserved length.
func (a *Arena) Length() uint64 { return a.length }

// PeakUsage returns the high-water mark of bytes in use, for -p reporting.
func (a *Arena) PeakUsage() uint64 { return a.peak }

// Entries returns a defensive copy of the current allocation list, for
// diagnostics and tests.
func (a *Arena) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

func (a *Arena) search(addr uint64) int {
	i := sort.Search(len(a.entries), func(i int) bool { return a.entries[i].Address >= addr })
	if i < len(a.entries) && a.entries[i].Address == addr {
		return i
	}
	return -1
}

// Allocate reserves len bytes, returning the guest address or 0 on
// failure. Precondition: len % 4096 == 0 (callers round up first; see
// rsyscall's mmap handler, which does the rounding).
func (a *Arena) Allocate(length uint64) uint64 {
	if length == 0 || length%pageSize != 0 {
		return 0
	}

	if len(a.entries) == 0 {
		if length > a.length {
			return 0
		}
		a.entries = append(a.entries, Entry{Address: a.base, Length: length})
		a.zero(0)
		a.peak = length
		return a.base
	}

	for i := 0; i < len(a.entries)-1; i++ {
		gap := a.entries[i+1].Address - (a.entries[i].Address + a.entries[i].Length)
		if gap >= length {
			result := a.entries[i].Address + a.entries[i].Length
			a.insert(i+1, Entry{Address: result, Length: length})
			a.zero(i + 1)
			return result
		}
	}

	last := a.entries[len(a.entries)-1]
	freeOffset := last.Address + last.Length
	if length < a.length-(freeOffset-a.base) {
		a.entries = append(a.entries, Entry{Address: freeOffset, Length: length})
		a.zero(len(a.entries) - 1)
		if u := freeOffset - a.base + length; u > a.peak {
			a.peak = u
		}
		return freeOffset
	}

	return 0
}

func (a *Arena) zero(idx int) {
	e := a.entries[idx]
	if a.image != nil {
		_ = a.image.Zero(e.Address, e.Length)
	}
}

func (a *Arena) insert(idx int, e Entry) {
	a.entries = append(a.entries, Entry{})
	copy(a.entries[idx+1:], a.entries[idx:])
	a.entries[idx] = e
}

func (a *Arena) remove(idx int) {
	a.entries = append(a.entries[:idx], a.entries[idx+1:]...)
}

// Free releases (or shrinks) the entry starting at addr. Returns false
// if no entry starts exactly at addr — partial mid-range unmap is not
// supported.
func (a *Arena) Free(addr, length uint64) bool {
	idx := a.search(addr)
	if idx < 0 {
		return false
	}
	if length < a.entries[idx].Length {
		a.entries[idx].Length = length
	} else {
		a.remove(idx)
	}
	return true
}

// Resize grows or shrinks the entry at addr, optionally moving it if
// mayMove is set and no in-place growth is possible. Returns the (new)
// guest address, or 0 on failure.
func (a *Arena) Resize(addr, oldLen, newLen uint64, mayMove bool) uint64 {
	if newLen%pageSize != 0 {
		return 0
	}
	idx := a.search(addr)
	if idx < 0 {
		return 0
	}

	if newLen <= oldLen {
		a.entries[idx].Length = newLen
		return a.entries[idx].Address
	}

	last := idx == len(a.entries)-1
	canGrowInPlace := (last && a.entries[idx].Address+newLen <= a.base+a.length) ||
		(!last && a.entries[idx].Address+newLen < a.entries[idx+1].Address)
	if canGrowInPlace {
		a.entries[idx].Length = newLen
		return addr
	}

	if !mayMove {
		return 0
	}

	for i := 0; i < len(a.entries)-1; i++ {
		gap := a.entries[i+1].Address - (a.entries[i].Address + a.entries[i].Length)
		if gap >= newLen {
			result := a.entries[i].Address + a.entries[i].Length
			a.moveEntry(idx, result, newLen, i+1)
			return result
		}
	}

	last2 := a.entries[len(a.entries)-1]
	freeOffset := last2.Address + last2.Length
	if newLen < a.length-(freeOffset-a.base) {
		a.moveEntry(idx, freeOffset, newLen, -1)
		if u := freeOffset - a.base + newLen; u > a.peak {
			a.peak = u
		}
		return freeOffset
	}

	return 0
}

// moveEntry copies the entry at idx to a new address/length, inserting
// at insertBefore (or appending if insertBefore < 0), and removes the
// stale entry.
func (a *Arena) moveEntry(idx int, newAddr, newLen uint64, insertBefore int) {
	old := a.entries[idx]
	if a.image != nil {
		if src, err := a.image.Slice(old.Address, old.Length); err == nil {
			_ = a.image.Write(newAddr, src)
		}
		_ = a.image.Zero(newAddr+old.Length, newLen-old.Length)
	}

	if insertBefore < 0 {
		a.entries = append(a.entries, Entry{Address: newAddr, Length: newLen})
	} else {
		a.insert(insertBefore, Entry{Address: newAddr, Length: newLen})
		if insertBefore <= idx {
			idx++
		}
	}
	a.remove(idx)
}
