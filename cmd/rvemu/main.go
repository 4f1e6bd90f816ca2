// Command rvemu loads a statically-linked RV64GC (or, for inspection
// only, AArch64) ELF executable and runs it to completion, translating
// its Linux syscalls onto the host.
package main

import (
	"debug/elf"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zboralski/rvemu/internal/armdec"
	"github.com/zboralski/rvemu/internal/config"
	"github.com/zboralski/rvemu/internal/emulator"
	"github.com/zboralski/rvemu/internal/loader"
	"github.com/zboralski/rvemu/internal/rlog"
	"github.com/zboralski/rvemu/internal/tracesink"
	"github.com/zboralski/rvemu/internal/tui"
)

var (
	flagElfInfo bool
	flagVerbose bool
	flagHeapMiB uint64
	flagMmapMiB uint64
	flagTrace   bool
	flagInstr   bool
	flagPerf    bool
	flagConfig  string
	flagScript  string
	flagOSName  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rvemu <elf> [guest-args...]",
		Short: "Run a statically-linked RV64GC Linux executable",
		Long: `rvemu loads a statically-linked 64-bit ELF executable built for
RV64GC Linux and runs it to completion, translating its system calls
onto the host. A sibling AArch64 binary can be inspected (-e) but is
not executed — only RV64GC has an interpreter here.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRoot,
	}

	rootCmd.Flags().BoolVarP(&flagElfInfo, "elfinfo", "e", false, "print ELF header, program headers, section headers, then exit")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "with -e, also dump the symbol table")
	rootCmd.Flags().Uint64VarP(&flagHeapMiB, "heap-mib", "H", 0, "brk region size in MiB (0..1024, 0 = default)")
	rootCmd.Flags().Uint64VarP(&flagMmapMiB, "mmap-mib", "M", 0, "mmap region size in MiB (0..1024, 0 = default)")
	rootCmd.Flags().BoolVarP(&flagTrace, "trace", "t", false, "enable trace log to the sink")
	rootCmd.Flags().BoolVarP(&flagInstr, "instr", "i", false, "requires -t; also log each executed instruction")
	rootCmd.Flags().BoolVarP(&flagPerf, "perf", "p", false, "on exit, print elapsed ms, cycles, effective MHz, exit code")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "optional YAML config file for region-size/OS-name defaults")
	rootCmd.Flags().StringVar(&flagScript, "script", "", "optional JS trace-sink script (requires -t)")
	rootCmd.Flags().StringVar(&flagOSName, "os-name", "", "guest OS= environment value (default RVOS)")

	debugCmd := &cobra.Command{
		Use:   "debug <elf> [guest-args...]",
		Short: "Run with a live interactive trace viewer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDebug,
	}
	debugCmd.Flags().Uint64VarP(&flagHeapMiB, "heap-mib", "H", 0, "brk region size in MiB")
	debugCmd.Flags().Uint64VarP(&flagMmapMiB, "mmap-mib", "M", 0, "mmap region size in MiB")
	debugCmd.Flags().StringVar(&flagConfig, "config", "", "optional YAML config file")
	rootCmd.AddCommand(debugCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildOptions() (loader.Options, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return loader.Options{}, fmt.Errorf("rvemu: loading config: %w", err)
	}
	opts := config.Override(cfg.LoaderOptions(), flagHeapMiB, flagMmapMiB, flagOSName)
	return opts, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	path := args[0]
	guestArgs := args[1:]

	if flagElfInfo {
		return printELFInfo(path)
	}

	if flagInstr && !flagTrace {
		return fmt.Errorf("rvemu: -i requires -t")
	}

	opts, err := buildOptions()
	if err != nil {
		return err
	}

	proc, err := loader.Load(path, append([]string{path}, guestArgs...), envExtra(), opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := rlog.New(flagTrace)
	emu := emulator.New(proc, log, osNameOrDefault(opts.OSName))
	defer emu.Close()

	setupSink(emu)

	start := time.Now()
	code, runErr := emu.Run(0)
	elapsed := time.Since(start)

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}

	if flagPerf {
		printPerf(elapsed, emu.CPU.Cycles, code)
	}

	os.Exit(code)
	return nil
}

func runDebug(cmd *cobra.Command, args []string) error {
	path := args[0]
	guestArgs := args[1:]

	opts, err := buildOptions()
	if err != nil {
		return err
	}

	proc, err := loader.Load(path, append([]string{path}, guestArgs...), envExtra(), opts)
	if err != nil {
		return err
	}

	log := rlog.NewNop()
	emu := emulator.New(proc, log, osNameOrDefault(opts.OSName))
	defer emu.Close()

	chanSink := tui.NewChanSink()
	emu.EnableSink(chanSink, true)

	go func() {
		_, _ = emu.Run(0)
		close(chanSink.Events)
	}()

	return tui.Run(chanSink.Events)
}

func osNameOrDefault(name string) string {
	if name == "" {
		return "RVOS"
	}
	return name
}

func envExtra() []string {
	if _, err := os.Stat("/etc/localtime"); err == nil {
		return nil
	}
	name, offsetSec := time.Now().Zone()
	sign := "+"
	if offsetSec < 0 {
		sign = "-"
		offsetSec = -offsetSec
	}
	h := offsetSec / 3600
	m := (offsetSec % 3600) / 60
	tz := fmt.Sprintf("TZ=%s%s%d", name, sign, h)
	if m != 0 {
		tz = fmt.Sprintf("%s:%02d", tz, m)
	}
	return []string{tz}
}

func setupSink(emu *emulator.Emulator) {
	if !flagTrace {
		return
	}

	if flagScript != "" {
		s, err := tracesink.LoadScript(flagScript)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			emu.EnableSink(tracesink.Writer{W: os.Stdout}, flagInstr)
			return
		}
		emu.EnableSink(s, flagInstr)
		return
	}

	emu.EnableSink(tracesink.Writer{W: os.Stdout}, flagInstr)
}

func printPerf(elapsed time.Duration, cycles uint64, exitCode int) {
	ms := elapsed.Seconds() * 1000
	mhz := float64(cycles) / elapsed.Seconds() / 1e6
	fmt.Fprintf(os.Stderr, "elapsed=%.2fms cycles=%d mhz=%.2f exit=%d\n", ms, cycles, mhz, exitCode)
}

func printELFInfo(path string) error {
	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("rvemu: %w", err)
	}
	defer f.Close()

	fmt.Printf("Machine:    %s\n", f.Machine)
	fmt.Printf("Class:      %s\n", f.Class)
	fmt.Printf("Type:       %s\n", f.Type)
	fmt.Printf("Entry:      %#x\n", f.Entry)
	fmt.Println()

	fmt.Println("Program headers:")
	for _, p := range f.Progs {
		fmt.Printf("  %-10s off=%#08x vaddr=%#010x filesz=%#x memsz=%#x flags=%s\n",
			p.Type, p.Off, p.Vaddr, p.Filesz, p.Memsz, p.Flags)
	}
	fmt.Println()

	fmt.Println("Section headers:")
	for _, s := range f.Sections {
		fmt.Printf("  %-20s addr=%#010x size=%#x\n", s.Name, s.Addr, s.Size)
	}

	if flagVerbose {
		fmt.Println()
		fmt.Println("Symbols:")
		syms, serr := f.Symbols()
		if serr != nil {
			syms, _ = f.DynamicSymbols()
		}
		for _, s := range syms {
			if s.Name == "" {
				continue
			}
			fmt.Printf("  %#010x %8d %s\n", s.Value, s.Size, s.Name)
		}

		if f.Machine == elf.EM_AARCH64 {
			fmt.Println()
			fmt.Println("AArch64 disassembly (inspection only; not executed):")
			if sec := f.Section(".text"); sec != nil {
				data, derr := sec.Data()
				if derr == nil {
					insts := armdec.Disassemble(data, sec.Addr)
					fmt.Print(armdec.Listing(insts))
				}
			}
		}
	}

	return nil
}
