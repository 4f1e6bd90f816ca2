package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const testBase = 0x10000

// writeTestELF builds a minimal static ET_EXEC RV64 binary with a
// single PT_LOAD segment and no section headers, and returns its path.
func writeTestELF(t *testing.T, code []byte) string {
	t.Helper()

	const ehdrLen = 64
	const phdrLen = 56
	entry := uint64(testBase + ehdrLen + phdrLen)

	var buf bytes.Buffer

	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = 2 // ELFCLASS64
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = 1 // EV_CURRENT
	buf.Write(ident)

	write16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }
	write32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	write64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }

	write16(uint16(elf.ET_EXEC))
	write16(uint16(elf.EM_RISCV))
	write32(1) // e_version
	write64(entry)
	write64(ehdrLen) // e_phoff
	write64(0)       // e_shoff
	write32(0)       // e_flags
	write16(ehdrLen) // e_ehsize
	write16(phdrLen) // e_phentsize
	write16(1)       // e_phnum
	write16(0)       // e_shentsize
	write16(0)       // e_shnum
	write16(0)       // e_shstrndx

	filesz := uint64(ehdrLen + phdrLen + len(code))

	write32(uint32(elf.PT_LOAD))
	write32(uint32(elf.PF_X | elf.PF_R | elf.PF_W))
	write64(0)       // p_offset
	write64(testBase) // p_vaddr
	write64(testBase) // p_paddr
	write64(filesz)  // p_filesz
	write64(filesz)  // p_memsz
	write64(0x1000)  // p_align

	buf.Write(code)

	path := filepath.Join(t.TempDir(), "prog.elf")
	if err := os.WriteFile(path, buf.Bytes(), 0o755); err != nil {
		t.Fatalf("writing test ELF: %v", err)
	}
	return path
}

func TestLoadBuildsProcess(t *testing.T) {
	code := []byte{0x73, 0x00, 0x00, 0x00} // ecall
	path := writeTestELF(t, code)

	proc, err := Load(path, []string{path, "arg1"}, nil, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if proc.Machine != elf.EM_RISCV {
		t.Errorf("Machine = %v, want EM_RISCV", proc.Machine)
	}
	if proc.Entry == 0 {
		t.Errorf("Entry is zero")
	}
	if proc.InitialSP == 0 || proc.InitialSP%16 != 0 {
		t.Errorf("InitialSP = %#x, want nonzero and 16-byte aligned", proc.InitialSP)
	}
	if proc.Brk <= proc.Image.Base() {
		t.Errorf("Brk = %#x, want above image base %#x", proc.Brk, proc.Image.Base())
	}
	if proc.BrkMax <= proc.Brk {
		t.Errorf("BrkMax = %#x, want above Brk %#x", proc.BrkMax, proc.Brk)
	}
	if proc.Mmap == nil {
		t.Fatalf("Mmap arena is nil")
	}

	const ehdrLen, phdrLen = 64, 56
	codeAddr := proc.Image.Base() + ehdrLen + phdrLen
	got, err := proc.Image.Slice(codeAddr, uint64(len(code)))
	if err != nil {
		t.Fatalf("reading loaded segment: %v", err)
	}
	if !bytes.Equal(got, code) {
		t.Errorf("loaded segment at %#x = %x, want %x", codeAddr, got, code)
	}
}

func TestLoadDefaultsApplyWhenOptionsZero(t *testing.T) {
	path := writeTestELF(t, []byte{0x73, 0x00, 0x00, 0x00})

	withDefaults, err := Load(path, []string{path}, nil, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	explicit, err := Load(path, []string{path}, nil, Options{
		BrkCommit:   brkCommitDefault,
		StackCommit: stackCommitDefault,
		MmapCommit:  mmapCommitDefault,
		OSName:      "RVOS",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if withDefaults.Image.Size() != explicit.Image.Size() {
		t.Errorf("zero-value Options produced a different image size than explicit defaults: %d vs %d",
			withDefaults.Image.Size(), explicit.Image.Size())
	}
}

func TestLoadRejectsDynamicBinary(t *testing.T) {
	// A PT_DYNAMIC segment alongside the PT_LOAD one must be rejected.
	const ehdrLen = 64
	const phdrLen = 56
	code := []byte{0x73, 0x00, 0x00, 0x00}
	entry := uint64(testBase + ehdrLen + 2*phdrLen)

	var buf bytes.Buffer
	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4], ident[5], ident[6] = 2, 1, 1
	buf.Write(ident)

	write16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }
	write32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	write64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }

	write16(uint16(elf.ET_EXEC))
	write16(uint16(elf.EM_RISCV))
	write32(1)
	write64(entry)
	write64(ehdrLen)
	write64(0)
	write32(0)
	write16(ehdrLen)
	write16(phdrLen)
	write16(2)
	write16(0)
	write16(0)
	write16(0)

	filesz := uint64(ehdrLen + 2*phdrLen + len(code))

	write32(uint32(elf.PT_LOAD))
	write32(uint32(elf.PF_X | elf.PF_R | elf.PF_W))
	write64(0)
	write64(testBase)
	write64(testBase)
	write64(filesz)
	write64(filesz)
	write64(0x1000)

	write32(uint32(elf.PT_DYNAMIC))
	write32(uint32(elf.PF_R | elf.PF_W))
	write64(0)
	write64(testBase)
	write64(testBase)
	write64(0)
	write64(0)
	write64(8)

	buf.Write(code)

	path := filepath.Join(t.TempDir(), "dyn.elf")
	if err := os.WriteFile(path, buf.Bytes(), 0o755); err != nil {
		t.Fatalf("writing test ELF: %v", err)
	}

	if _, err := Load(path, []string{path}, nil, Options{}); err == nil {
		t.Fatalf("expected Load to reject a PT_DYNAMIC binary")
	}
}

func TestSymbolTableLookup(t *testing.T) {
	table := &SymbolTable{syms: []Symbol{
		{Name: "main", Value: 0x1000, Size: 0x100},
		{Name: "helper", Value: 0x2000, Size: 0},
	}}

	name, off, ok := table.Lookup(0x1050)
	if !ok || name != "main" || off != 0x50 {
		t.Errorf("Lookup(0x1050) = (%q, %#x, %v), want (main, 0x50, true)", name, off, ok)
	}

	if _, _, ok := table.Lookup(0x1100); ok {
		t.Errorf("Lookup(0x1100) should miss: outside main's sized range")
	}

	name, off, ok = table.Lookup(0x2500)
	if !ok || name != "helper" || off != 0x500 {
		t.Errorf("Lookup(0x2500) = (%q, %#x, %v), want (helper, 0x500, true) — unsized symbol covers everything after it", name, off, ok)
	}

	if _, _, ok := table.Lookup(0x500); ok {
		t.Errorf("Lookup(0x500) should miss: before any symbol")
	}
}
