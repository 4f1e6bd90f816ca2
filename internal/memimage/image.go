// Package memimage implements the guest address space as a single
// contiguous byte buffer with additive offset translation, per the
// data model's "memory image": host_ptr(vaddr) = buffer + (vaddr - base).
package memimage

import (
	"fmt"
	"math"
)

// Image owns the guest's entire address space. It is exclusively owned
// by the emulator; the CPU and syscall dispatcher borrow it for the
// duration of a single access.
type Image struct {
	buf  []byte
	base uint64 // lowest guest virtual address, B
}

// New allocates a zeroed image of size bytes mapped starting at base.
func New(base uint64, size uint64) *Image {
	return &Image{buf: make([]byte, size), base: base}
}

// Base returns the lowest guest virtual address covered by the image.
func (m *Image) Base() uint64 { return m.base }

// Size returns the number of bytes covered by the image.
func (m *Image) Size() uint64 { return uint64(len(m.buf)) }

// End returns the first address past the image.
func (m *Image) End() uint64 { return m.base + uint64(len(m.buf)) }

// offset translates a guest virtual address into a buffer index,
// validating that [vaddr, vaddr+size) lies entirely within the image.
func (m *Image) offset(vaddr, size uint64) (uint64, error) {
	if vaddr < m.base {
		return 0, fmt.Errorf("memimage: address %#x below base %#x", vaddr, m.base)
	}
	off := vaddr - m.base
	end := off + size
	if end > uint64(len(m.buf)) || end < off {
		return 0, fmt.Errorf("memimage: access [%#x,%#x) beyond image end %#x", vaddr, vaddr+size, m.End())
	}
	return off, nil
}

// Valid reports whether [vaddr, vaddr+size) lies entirely in the image,
// without panicking.
func (m *Image) Valid(vaddr, size uint64) bool {
	_, err := m.offset(vaddr, size)
	return err == nil
}

// Slice returns a borrowed byte slice for an arbitrary-length guest
// range, used by syscalls to stage read/write buffers. The slice aliases
// the image; callers must not retain it past the syscall.
func (m *Image) Slice(vaddr, length uint64) ([]byte, error) {
	off, err := m.offset(vaddr, length)
	if err != nil {
		return nil, err
	}
	return m.buf[off : off+length], nil
}

// Zero fills [vaddr, vaddr+length) with zero bytes.
func (m *Image) Zero(vaddr, length uint64) error {
	s, err := m.Slice(vaddr, length)
	if err != nil {
		return err
	}
	for i := range s {
		s[i] = 0
	}
	return nil
}

// Write copies data into the image at vaddr.
func (m *Image) Write(vaddr uint64, data []byte) error {
	s, err := m.Slice(vaddr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(s, data)
	return nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	return uint64(le32(b[0:4])) | uint64(le32(b[4:8]))<<32
}

// U8 reads a zero-extended byte.
func (m *Image) U8(vaddr uint64) (uint64, error) {
	s, err := m.Slice(vaddr, 1)
	if err != nil {
		return 0, err
	}
	return uint64(s[0]), nil
}

// U16 reads a zero-extended little-endian halfword, unaligned-tolerant.
func (m *Image) U16(vaddr uint64) (uint64, error) {
	s, err := m.Slice(vaddr, 2)
	if err != nil {
		return 0, err
	}
	return uint64(le16(s)), nil
}

// U32 reads a zero-extended little-endian word, unaligned-tolerant.
func (m *Image) U32(vaddr uint64) (uint64, error) {
	s, err := m.Slice(vaddr, 4)
	if err != nil {
		return 0, err
	}
	return uint64(le32(s)), nil
}

// U64 reads a little-endian doubleword, unaligned-tolerant.
func (m *Image) U64(vaddr uint64) (uint64, error) {
	s, err := m.Slice(vaddr, 8)
	if err != nil {
		return 0, err
	}
	return le64(s), nil
}

// F32 reads an IEEE-754 single-precision float.
func (m *Image) F32(vaddr uint64) (float32, error) {
	v, err := m.U32(vaddr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// F64 reads an IEEE-754 double-precision float.
func (m *Image) F64(vaddr uint64) (float64, error) {
	v, err := m.U64(vaddr)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// SetU8 writes a single byte.
func (m *Image) SetU8(vaddr uint64, val uint8) error {
	s, err := m.Slice(vaddr, 1)
	if err != nil {
		return err
	}
	s[0] = val
	return nil
}

// SetU16 writes a little-endian halfword.
func (m *Image) SetU16(vaddr uint64, val uint16) error {
	s, err := m.Slice(vaddr, 2)
	if err != nil {
		return err
	}
	s[0], s[1] = byte(val), byte(val>>8)
	return nil
}

// SetU32 writes a little-endian word.
func (m *Image) SetU32(vaddr uint64, val uint32) error {
	s, err := m.Slice(vaddr, 4)
	if err != nil {
		return err
	}
	s[0], s[1], s[2], s[3] = byte(val), byte(val>>8), byte(val>>16), byte(val>>24)
	return nil
}

// SetU64 writes a little-endian doubleword.
func (m *Image) SetU64(vaddr uint64, val uint64) error {
	s, err := m.Slice(vaddr, 8)
	if err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		s[i] = byte(val >> (8 * i))
	}
	return nil
}

// SetF32 writes an IEEE-754 single-precision float.
func (m *Image) SetF32(vaddr uint64, val float32) error {
	return m.SetU32(vaddr, math.Float32bits(val))
}

// SetF64 writes an IEEE-754 double-precision float.
func (m *Image) SetF64(vaddr uint64, val float64) error {
	return m.SetU64(vaddr, math.Float64bits(val))
}

// ReadCString reads a NUL-terminated string, capped at maxLen bytes.
func (m *Image) ReadCString(vaddr uint64, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 4096
	}
	// Clamp to what's actually mapped so a string near the image end
	// doesn't fail outright; callers scan for the terminator.
	avail := m.End() - vaddr
	if vaddr < m.base {
		return "", fmt.Errorf("memimage: address %#x below base %#x", vaddr, m.base)
	}
	if uint64(maxLen) > avail {
		maxLen = int(avail)
	}
	s, err := m.Slice(vaddr, uint64(maxLen))
	if err != nil {
		return "", err
	}
	for i, b := range s {
		if b == 0 {
			return string(s[:i]), nil
		}
	}
	return string(s), nil
}

// WriteCString writes s followed by a NUL terminator.
func (m *Image) WriteCString(vaddr uint64, s string) error {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return m.Write(vaddr, buf)
}
