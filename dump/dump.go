// Package dump parses the auxiliary disassembler export (the "Dump Index"):
// a per-binary function table of block descriptors, and a side list of
// known non-returning callees.
//
// On disk, following the oracle-file convention already used by the lift
// ecosystem (side JSON files such as funcs.json/blocks.json), a binary at
// path "foo" is expected to have two siblings: "foo.dmp" (the function
// table) and "foo.dmp.no-return" (the non-returning set).
package dump

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"os"
	"sort"

	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"vexcore/bin"
)

var (
	// dbg is a logger which logs debug messages with "dump:" prefix to
	// standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("dump:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix to
	// standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// BlockDescriptor is one disassembler-declared basic block: a half-open
// address range [Start, End) together with the dump's own instruction
// count for that range (not derived from byte lengths). Start == End
// denotes an empty, skipped descriptor.
type BlockDescriptor struct {
	Start            bin.Addr
	End              bin.Addr
	InstructionCount int
}

// Empty reports whether d denotes an empty (skipped) descriptor.
func (d BlockDescriptor) Empty() bool {
	return d.Start == d.End
}

// Index is the parsed, immutable Dump Index: the function table and the
// non-returning set.
type Index struct {
	functions    map[bin.Addr][]BlockDescriptor
	nonReturning bin.Set
}

// New returns an Index directly from already-parsed tables, bypassing file
// I/O. Useful for callers that source dumps from somewhere other than the
// on-disk convention (e.g. tests, or an in-process disassembler).
func New(functions map[bin.Addr][]BlockDescriptor, nonReturning bin.Set) *Index {
	if nonReturning == nil {
		nonReturning = bin.NewSet()
	}
	return &Index{functions: functions, nonReturning: nonReturning}
}

// Functions returns the function table: entry address to its ordered block
// descriptors, exactly as they appear in the dump (the core never reorders
// them).
func (idx *Index) Functions() map[bin.Addr][]BlockDescriptor {
	return idx.functions
}

// NonReturning returns the set of entry addresses known never to return.
func (idx *Index) NonReturning() bin.Set {
	return idx.nonReturning
}

// dmpFile is the on-disk JSON shape of the <binary>.dmp function table.
type dmpFile struct {
	Functions []dmpFunction `json:"functions"`
}

type dmpFunction struct {
	Entry  bin.Addr   `json:"entry"`
	Blocks []dmpBlock `json:"blocks"`
}

type dmpBlock struct {
	Start        bin.Addr `json:"start"`
	End          bin.Addr `json:"end"`
	Instructions int      `json:"instructions"`
}

// Load derives "<binPath>.dmp" and "<binPath>.dmp.no-return" and parses
// both. A missing .dmp is fatal (the Translator cannot exist without a
// function table); a missing .dmp.no-return is tolerated, yielding an empty
// non-returning set, matching the teacher's parseJSON tolerance for a
// missing oracle file.
func Load(binPath string) (*Index, error) {
	dmpPath := binPath + ".dmp"
	noReturnPath := binPath + ".dmp.no-return"

	functions, err := loadFunctions(dmpPath)
	if err != nil {
		return nil, errors.Wrapf(err, "dump: loading function table from %q", dmpPath)
	}

	nonReturning, err := loadNonReturning(noReturnPath)
	if err != nil {
		return nil, errors.Wrapf(err, "dump: loading non-returning set from %q", noReturnPath)
	}

	return &Index{functions: functions, nonReturning: nonReturning}, nil
}

func loadFunctions(dmpPath string) (map[bin.Addr][]BlockDescriptor, error) {
	if !osutil.Exists(dmpPath) {
		return nil, errors.Errorf("required dump file %q does not exist", dmpPath)
	}
	dbg.Printf("loadFunctions(dmpPath = %q)", dmpPath)

	raw, err := ioutil.ReadFile(dmpPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var parsed dmpFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.WithStack(err)
	}

	functions := make(map[bin.Addr][]BlockDescriptor, len(parsed.Functions))
	for _, f := range parsed.Functions {
		descs := make([]BlockDescriptor, len(f.Blocks))
		for i, b := range f.Blocks {
			descs[i] = BlockDescriptor{
				Start:            b.Start,
				End:              b.End,
				InstructionCount: b.Instructions,
			}
		}
		functions[f.Entry] = descs
	}
	return functions, nil
}

func loadNonReturning(path string) (bin.Set, error) {
	if !osutil.Exists(path) {
		warn.Printf("unable to locate non-returning oracle file %q", path)
		return bin.NewSet(), nil
	}
	dbg.Printf("loadNonReturning(path = %q)", path)

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var addrs []bin.Addr
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return nil, errors.WithStack(err)
	}
	return bin.NewSet(addrs...), nil
}

// SortedEntries returns the function table's entry addresses in ascending
// order, used by eager (non-on-demand) translation to make its output
// deterministic across runs, matching the teacher's sort.Sort(l.funcAddrs)
// convention.
func (idx *Index) SortedEntries() bin.Addrs {
	entries := make(bin.Addrs, 0, len(idx.functions))
	for addr := range idx.functions {
		entries = append(entries, addr)
	}
	sort.Sort(entries)
	return entries
}
