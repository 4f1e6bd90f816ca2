// Package loader parses a static ELF64 executable and lays out the
// guest address space: program segments, an argv/envp string area, a
// brk-growable heap, a stack with the Linux argc/argv/envp/auxv ABI at
// its top, and an mmap arena above everything else.
package loader

import (
	"bytes"
	"crypto/rand"
	"debug/elf"
	"fmt"
	"io"
	"sort"

	"github.com/zboralski/rvemu/internal/memimage"
	"github.com/zboralski/rvemu/internal/mmapregion"
)

const (
	maxArgs            = 40
	argsCommitDefault  = 1024
	brkCommitDefault   = 40 * 1024 * 1024
	stackCommitDefault = 128 * 1024
	mmapCommitDefault  = 40 * 1024 * 1024
	pageSize           = 4096
)

// Options overrides the default region sizes, settable via the
// --heap-mib/-H (heap/brk) and --mmap-mib/-M (mmap) flags and
// internal/config's YAML file.
type Options struct {
	BrkCommit   uint64
	StackCommit uint64
	MmapCommit  uint64
	OSName      string // synthesized OS= environment value, e.g. "RVOS" or "ARMOS"
}

func (o Options) withDefaults() Options {
	if o.BrkCommit == 0 {
		o.BrkCommit = brkCommitDefault
	}
	if o.StackCommit == 0 {
		o.StackCommit = stackCommitDefault
	}
	if o.MmapCommit == 0 {
		o.MmapCommit = mmapCommitDefault
	}
	if o.OSName == "" {
		o.OSName = "RVOS"
	}
	return o
}

// Symbol is one entry of the sorted symbol table used for nearest-name
// lookups in -e -v listings and fatal-error dumps.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
}

// SymbolTable supports binary-search nearest-symbol lookup, the same
// algorithm the mmap arena uses for its entry list.
type SymbolTable struct {
	syms []Symbol // sorted by Value
}

// Lookup returns the symbol containing addr (name and offset from its
// start), or ("", 0, false) if none covers it.
func (t *SymbolTable) Lookup(addr uint64) (name string, offset uint64, ok bool) {
	i := sort.Search(len(t.syms), func(i int) bool { return t.syms[i].Value > addr }) - 1
	if i < 0 {
		return "", 0, false
	}
	s := t.syms[i]
	if s.Size != 0 && addr >= s.Value+s.Size {
		return "", 0, false
	}
	return s.Name, addr - s.Value, true
}

// Process is a fully laid-out, not-yet-running guest: memory image,
// mmap arena, symbol table, and the register values _start expects.
type Process struct {
	Image   *memimage.Image
	Mmap    *mmapregion.Arena
	Symbols *SymbolTable

	Entry     uint64
	InitialSP uint64

	Brk    uint64
	BrkMax uint64

	Machine elf.Machine
}

// Load reads path, validates it as a static ELF64 executable (PT_DYNAMIC
// segments are rejected — dynamic linking is a non-goal), and builds
// the full guest address space and startup stack.
func Load(path string, args, envExtra []string, opts Options) (*Process, error) {
	opts = opts.withDefaults()

	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("loader: %s is not a 64-bit ELF", path)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("loader: %s is not little-endian", path)
	}
	if f.Type != elf.ET_EXEC {
		return nil, fmt.Errorf("loader: %s is not a static executable (ET_EXEC); dynamic linking is unsupported", path)
	}
	for _, p := range f.Progs {
		if p.Type == elf.PT_DYNAMIC {
			return nil, fmt.Errorf("loader: %s has a PT_DYNAMIC segment; only statically-linked binaries are supported", path)
		}
	}

	var loads []*elf.Prog
	var base, end uint64
	base = ^uint64(0)
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}
		loads = append(loads, p)
		if p.Vaddr < base {
			base = p.Vaddr
		}
		if e := p.Vaddr + p.Memsz; e > end {
			end = e
		}
	}
	if len(loads) == 0 {
		return nil, fmt.Errorf("loader: %s has no PT_LOAD segments", path)
	}

	memorySize := end - base
	memorySize = roundUp(memorySize, 16)

	argDataOffset := memorySize
	memorySize += uint64(opts.sizedArgsCommit())

	brkOffset := memorySize
	memorySize += opts.BrkCommit

	bottomOfStack := memorySize
	memorySize += opts.StackCommit

	topOfAux := memorySize
	memorySize = roundUp(memorySize, pageSize)

	mmapOffset := memorySize
	memorySize += opts.MmapCommit

	image := memimage.New(base, memorySize)

	for _, p := range loads {
		if p.Filesz == 0 {
			continue
		}
		buf := make([]byte, p.Filesz)
		if _, err := io.ReadFull(p.Open(), buf); err != nil {
			return nil, fmt.Errorf("loader: reading segment at %#x: %w", p.Vaddr, err)
		}
		if err := image.Write(p.Vaddr, buf); err != nil {
			return nil, fmt.Errorf("loader: writing segment at %#x: %w", p.Vaddr, err)
		}
	}

	arena := mmapregion.New(base+mmapOffset, opts.MmapCommit, image)

	sp, err := writeStack(image, base, argDataOffset, topOfAux, args, envExtra, opts.OSName)
	if err != nil {
		return nil, fmt.Errorf("loader: building startup stack: %w", err)
	}

	return &Process{
		Image:     image,
		Mmap:      arena,
		Symbols:   loadSymbols(f),
		Entry:     f.Entry,
		InitialSP: sp,
		Brk:       base + brkOffset,
		BrkMax:    base + bottomOfStack,
		Machine:   f.Machine,
	}, nil
}

func (o Options) sizedArgsCommit() uint64 { return argsCommitDefault }

func roundUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// writeStack lays out argv pointers + string data at argDataOffset,
// then the Linux startup block (random guards, aux vector, envp,
// argv, argc) ending at topOfAux. It returns the initial stack
// pointer (16-byte aligned).
func writeStack(image *memimage.Image, base, argDataOffset, topOfAux uint64, args, envExtra []string, osName string) (uint64, error) {
	if len(args) > maxArgs {
		args = args[:maxArgs]
	}

	// argv pointer array (maxArgs slots) followed by the arg/env string bytes.
	stringsOffset := argDataOffset + uint64(maxArgs)*8
	var strs bytes.Buffer
	argPtrs := make([]uint64, len(args))
	for i, a := range args {
		argPtrs[i] = base + stringsOffset + uint64(strs.Len())
		strs.WriteString(a)
		strs.WriteByte(0)
	}

	osEnv := "OS=" + osName
	osAddr := base + stringsOffset + uint64(strs.Len())
	strs.WriteString(osEnv)
	strs.WriteByte(0)

	envAddrs := []uint64{osAddr}
	for _, e := range envExtra {
		addr := base + stringsOffset + uint64(strs.Len())
		strs.WriteString(e)
		strs.WriteByte(0)
		envAddrs = append(envAddrs, addr)
	}

	if err := image.Write(base+stringsOffset, strs.Bytes()); err != nil {
		return 0, err
	}
	for i, p := range argPtrs {
		if err := image.SetU64(base+argDataOffset+uint64(i)*8, p); err != nil {
			return 0, err
		}
	}

	envCount := uint64(len(envAddrs))
	argc := uint64(len(args))

	// Build the startup block from high to low: two random guard
	// qwords, alignment filler, AT_NULL, 8 aux records, envp
	// (reverse), argv (reverse), argc.
	var guard [16]byte
	_, _ = rand.Read(guard[:])
	rand0 := leU64(guard[0:8])
	rand1 := leU64(guard[8:16])

	randAddr := base + topOfAux - 16

	auxCount := uint64(8)
	// total qwords below the two guard words: [align?] AT_NULL(2) + aux(2*auxCount) + env(envCount+1) + argv(argc+1) + argc(1)
	bodyWords := 2 + 2*auxCount + (envCount + 1) + (argc + 1) + 1
	align := uint64(0)
	if (argc+envCount)%2 == 0 {
		align = 1
	}
	totalWords := bodyWords + align
	sp := base + topOfAux - 16 - totalWords*8

	cursor := sp
	write := func(v uint64) error {
		if err := image.SetU64(cursor, v); err != nil {
			return err
		}
		cursor += 8
		return nil
	}

	if err := write(argc); err != nil {
		return 0, err
	}
	for _, p := range argPtrs {
		if err := write(p); err != nil {
			return 0, err
		}
	}
	if err := write(0); err != nil { // argv terminator
		return 0, err
	}
	for _, e := range envAddrs {
		if err := write(e); err != nil {
			return 0, err
		}
	}
	if err := write(0); err != nil { // envp terminator
		return 0, err
	}

	auxPairs := [][2]uint64{
		{25, randAddr}, // AT_RANDOM
		{6, pageSize},  // AT_PAGESZ
		{16, 0x0},      // AT_HWCAP
		{26, 0},        // AT_HWCAP2
		{11, 0},        // AT_UID
		{12, 0},        // AT_EUID (12 per the Linux ABI)
		{13, 0},        // AT_GID
		{14, 0},        // AT_EGID
	}
	for _, p := range auxPairs {
		if err := write(p[0]); err != nil {
			return 0, err
		}
		if err := write(p[1]); err != nil {
			return 0, err
		}
	}
	if err := write(0); err != nil { // AT_NULL type
		return 0, err
	}
	if err := write(0); err != nil { // AT_NULL value
		return 0, err
	}
	if align == 1 {
		if err := write(0); err != nil {
			return 0, err
		}
	}

	if err := image.SetU64(randAddr, rand0); err != nil {
		return 0, err
	}
	if err := image.SetU64(randAddr+8, rand1); err != nil {
		return 0, err
	}

	return sp, nil
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}

func loadSymbols(f *elf.File) *SymbolTable {
	syms, err := f.Symbols()
	if err != nil {
		syms, _ = f.DynamicSymbols()
	}
	t := &SymbolTable{}
	for _, s := range syms {
		if s.Name == "" || s.Value == 0 {
			continue
		}
		t.syms = append(t.syms, Symbol{Name: s.Name, Value: s.Value, Size: s.Size})
	}
	sort.Slice(t.syms, func(i, j int) bool { return t.syms[i].Value < t.syms[j].Value })
	return t
}
