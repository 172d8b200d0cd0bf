// The bintrans tool translates binary executables into classified,
// terminator-annotated control flow, relying on an external dump oracle for
// block and function boundaries, exactly as the teacher's x tool relies on
// its own JSON oracles.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"sort"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"vexcore/bin"
	"vexcore/image"
	"vexcore/irexport"
	"vexcore/translate"
	"vexcore/x86lift"
)

var (
	// dbg is a logger which logs debug messages with "bintrans:" prefix to
	// standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("bintrans:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix to
	// standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// addrList collects repeated -func=0x... flags into a slice of addresses.
type addrList []bin.Addr

func (l *addrList) String() string {
	return fmt.Sprintf("%v", []bin.Addr(*l))
}

func (l *addrList) Set(s string) error {
	var addr bin.Addr
	if err := addr.Set(s); err != nil {
		return errors.WithStack(err)
	}
	*l = append(*l, addr)
	return nil
}

func main() {
	var (
		// quiet specifies whether to suppress non-error messages.
		quiet bool
		// formatName selects the Mapped Image backend.
		formatName string
		// onDemand, when set, translates only the functions named by -func
		// instead of eagerly translating every dump function.
		onDemand bool
		// exportIR, when set, additionally prints LLVM IR text for every
		// requested function.
		exportIR bool
		// funcs collects explicit -func=0x... entry addresses.
		funcs addrList
	)
	flag.BoolVar(&quiet, "q", false, "suppress non-error messages")
	flag.StringVar(&formatName, "format", "elf64", "binary file format (elf64 or pe64)")
	flag.BoolVar(&onDemand, "on-demand", false, "translate only the functions named by -func, instead of every dump function")
	flag.BoolVar(&exportIR, "export-ir", false, "print LLVM IR text for every requested function")
	flag.Var(&funcs, "func", "entry address to translate (repeatable); only meaningful with -on-demand")
	flag.Parse()

	if quiet {
		dbg.SetOutput(ioutil.Discard)
	}

	format, err := parseFileFormat(formatName)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	for _, binPath := range flag.Args() {
		if err := run(binPath, format, onDemand, exportIR, funcs); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

// parseFileFormat maps a -format flag value to an image.FileFormat.
func parseFileFormat(name string) (image.FileFormat, error) {
	switch name {
	case "elf64":
		return image.ELF64, nil
	case "pe64":
		return image.PE64, nil
	default:
		return 0, errors.Errorf("unrecognized file format %q", name)
	}
}

// run translates binPath and prints its results, following the requested
// mode (eager or on-demand over an explicit function list).
func run(binPath string, format image.FileFormat, onDemand, exportIR bool, funcs addrList) error {
	dbg.Printf("run(binPath = %q)", binPath)

	cfg := translate.Config{
		ParseOnDemand: onDemand,
		FileFormat:    format,
	}
	t, err := translate.New(binPath, x86lift.New(), cfg)
	if err != nil {
		return errors.WithStack(err)
	}
	defer t.Close()

	if !onDemand {
		return printAll(t)
	}

	if len(funcs) == 0 {
		warn.Printf("-on-demand set but no -func addresses given; nothing to do")
		return nil
	}
	for _, addr := range funcs {
		f, err := t.Get(addr)
		if err != nil {
			warn.Printf("translating function %v failed: %v", addr, err)
			continue
		}
		printFunction(f)
		if exportIR {
			if err := printIR(f); err != nil {
				warn.Printf("exporting IR for function %v failed: %v", addr, err)
			}
		}
	}
	return nil
}

// printAll prints every function the Translator already holds, in eager
// mode this is every dump function.
func printAll(t *translate.Translator) error {
	funcs, err := t.FunctionsMutable()
	if err != nil {
		return errors.WithStack(err)
	}
	entries := make(bin.Addrs, 0, len(funcs))
	for entry := range funcs {
		entries = append(entries, entry)
	}
	sort.Sort(entries)
	for _, entry := range entries {
		printFunction(funcs[entry])
	}
	return nil
}

// printFunction prints one line per block: address, terminator kind,
// target, fall-through, and tail flag.
func printFunction(f *translate.Function) {
	fmt.Printf("function %v\n", f.Entry())
	for _, addr := range f.SortedBlockAddrs() {
		block := f.Blocks()[addr]
		term := block.Terminator
		fmt.Printf("  block %v: %v target=%v fall_through=%v is_tail=%v\n",
			block.Address, term.Type, term.Target, term.FallThrough, term.IsTail)
	}
}

// printIR prints the irexport LLVM IR text rendering of f.
func printIR(f *translate.Function) error {
	m, err := irexport.RenderFunction(f)
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Println(m.String())
	return nil
}
