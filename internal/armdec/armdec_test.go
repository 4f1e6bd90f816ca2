package armdec

import "testing"

func TestDisassembleKnownInstruction(t *testing.T) {
	// RET (0xd65f03c0), little-endian.
	code := []byte{0xc0, 0x03, 0x5f, 0xd6}
	insts := Disassemble(code, 0x1000)
	if len(insts) != 1 {
		t.Fatalf("got %d instructions, want 1", len(insts))
	}
	if insts[0].Addr != 0x1000 {
		t.Fatalf("addr = %#x, want 0x1000", insts[0].Addr)
	}
	if insts[0].Text == "" {
		t.Fatalf("empty disassembly text")
	}
}

func TestDisassembleUnknownWordFallsBackToWordDirective(t *testing.T) {
	code := []byte{0xff, 0xff, 0xff, 0xff}
	insts := Disassemble(code, 0)
	if len(insts) != 1 {
		t.Fatalf("got %d instructions, want 1", len(insts))
	}
	if insts[0].Text != ".word 0xffffffff" {
		t.Fatalf("text = %q, want .word fallback", insts[0].Text)
	}
}

func TestSymbolForNearestPreceding(t *testing.T) {
	names := map[uint64]string{0x1000: "main", 0x2000: "helper"}
	if got := SymbolFor(0x1500, names); got != "main" {
		t.Fatalf("SymbolFor(0x1500) = %q, want main", got)
	}
	if got := SymbolFor(0x2100, names); got != "helper" {
		t.Fatalf("SymbolFor(0x2100) = %q, want helper", got)
	}
	if got := SymbolFor(0x500, names); got != "" {
		t.Fatalf("SymbolFor(0x500) = %q, want empty", got)
	}
}
