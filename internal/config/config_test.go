package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingPathReturnsZeroValue(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BrkMiB != 0 || c.MmapMiB != 0 || c.OSName != "" || c.TraceTags != nil {
		t.Fatalf("expected zero-value Config, got %+v", c)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rvemu.yaml")
	body := "brkMiB: 64\nmmapMiB: 32\nosName: RVOS\ntraceTags: [syscall, brk]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BrkMiB != 64 || c.MmapMiB != 32 || c.OSName != "RVOS" {
		t.Fatalf("parsed config = %+v", c)
	}
	if len(c.TraceTags) != 2 || c.TraceTags[0] != "syscall" {
		t.Fatalf("traceTags = %v", c.TraceTags)
	}
}

func TestLoaderOptionsConvertsMiBToBytes(t *testing.T) {
	c := Config{BrkMiB: 4, MmapMiB: 8, OSName: "RVOS"}
	o := c.LoaderOptions()
	if o.BrkCommit != 4*1024*1024 {
		t.Fatalf("BrkCommit = %d", o.BrkCommit)
	}
	if o.MmapCommit != 8*1024*1024 {
		t.Fatalf("MmapCommit = %d", o.MmapCommit)
	}
	if o.OSName != "RVOS" {
		t.Fatalf("OSName = %q", o.OSName)
	}
}

func TestOverrideFlagsWinOverFileValues(t *testing.T) {
	base := Config{BrkMiB: 4, OSName: "RVOS"}.LoaderOptions()
	o := Override(base, 16, 0, "ARMOS")
	if o.BrkCommit != 16*1024*1024 {
		t.Fatalf("BrkCommit = %d, want override to win", o.BrkCommit)
	}
	if o.OSName != "ARMOS" {
		t.Fatalf("OSName = %q, want override to win", o.OSName)
	}
}
