// Package config loads optional YAML defaults for region sizes, the
// synthesized guest OS name, and which trace tags to enable by default.
// CLI flags always take precedence over a loaded file's values.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zboralski/rvemu/internal/loader"
)

// Config is the on-disk shape of an optional config file, e.g.:
//
//	brkMiB: 64
//	mmapMiB: 64
//	osName: RVOS
//	traceTags: [syscall, brk, mmap]
type Config struct {
	BrkMiB    uint64   `yaml:"brkMiB"`
	MmapMiB   uint64   `yaml:"mmapMiB"`
	OSName    string   `yaml:"osName"`
	TraceTags []string `yaml:"traceTags"`
}

// Load reads and parses a YAML config file. A missing path is not an
// error — it returns a zero-value Config, letting loader.Options'
// built-in defaults apply.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoaderOptions builds loader.Options from the config, applying MiB-to-
// byte conversion. Zero fields are left zero so loader.Options.withDefaults
// still supplies its own defaults.
func (c Config) LoaderOptions() loader.Options {
	var o loader.Options
	if c.BrkMiB != 0 {
		o.BrkCommit = c.BrkMiB * 1024 * 1024
	}
	if c.MmapMiB != 0 {
		o.MmapCommit = c.MmapMiB * 1024 * 1024
	}
	o.OSName = c.OSName
	return o
}

// Override applies non-zero CLI flag values on top of file-loaded
// options: flags always win.
func Override(base loader.Options, brkMiB, mmapMiB uint64, osName string) loader.Options {
	if brkMiB != 0 {
		base.BrkCommit = brkMiB * 1024 * 1024
	}
	if mmapMiB != 0 {
		base.MmapCommit = mmapMiB * 1024 * 1024
	}
	if osName != "" {
		base.OSName = osName
	}
	return base
}
