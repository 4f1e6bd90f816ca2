// Package armdec provides disassembly-only listing for AArch64 ELF
// executables. This repo executes RV64GC but only inspects AArch64 —
// there is no AArch64 interpreter here, just an `-e -v` listing path for
// binaries whose ELF header names EM_AARCH64.
package armdec

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// Instruction is one decoded (or undecodable) word at an address.
type Instruction struct {
	Addr uint64
	Raw  uint32
	Text string
}

// Disassemble decodes code (mapped starting at base) instruction by
// instruction, four bytes at a time. A word arm64asm can't decode is
// rendered as a raw .word directive rather than aborting the listing,
// since inspection must tolerate data mixed in with code.
func Disassemble(code []byte, base uint64) []Instruction {
	var out []Instruction
	for off := 0; off+4 <= len(code); off += 4 {
		raw := uint32(code[off]) | uint32(code[off+1])<<8 | uint32(code[off+2])<<16 | uint32(code[off+3])<<24
		addr := base + uint64(off)
		inst, err := arm64asm.Decode(code[off : off+4])
		text := fmt.Sprintf(".word 0x%08x", raw)
		if err == nil {
			text = inst.String()
		}
		out = append(out, Instruction{Addr: addr, Raw: raw, Text: text})
	}
	return out
}

// Listing renders a sequence of decoded instructions as the `-e -v`
// text format: address, raw word, disassembly.
func Listing(insts []Instruction) string {
	var b strings.Builder
	for _, in := range insts {
		fmt.Fprintf(&b, "%#016x  %08x  %s\n", in.Addr, in.Raw, in.Text)
	}
	return b.String()
}

// SymbolFor returns the nearest preceding name from an address-to-name
// symbol map, the same nearest-match convention the
// RV64 fatal dump uses, so `-e -v` output can annotate AArch64 listings
// with a containing function name.
func SymbolFor(addr uint64, names map[uint64]string) string {
	var best uint64
	found := false
	for v := range names {
		if v <= addr && (!found || v > best) {
			best, found = v, true
		}
	}
	if !found {
		return ""
	}
	return names[best]
}

// SortedAddrs returns the keys of names in ascending order, a small
// helper for callers that want a stable iteration order when building
// a full listing rather than single-address lookups.
func SortedAddrs(names map[uint64]string) []uint64 {
	addrs := make([]uint64, 0, len(names))
	for a := range names {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}
