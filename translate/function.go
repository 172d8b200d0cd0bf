package translate

import (
	"sort"

	"vexcore/bin"
)

// Function is a function's translated block graph: its entry address, the
// blocks reachable from disassembler-declared descriptors, and the
// cross-reference sets discovered elsewhere in the analysis.
//
// A Function is mutated freely until Finalize is called, after which its
// block set is read-only; the xref and vfunc-xref sets remain append-only
// even past finalization, since referrers are discovered across the whole
// analysis and do not invalidate block structure.
type Function struct {
	entry     bin.Addr
	blocks    map[bin.Addr]*Block
	xrefs     bin.Set
	vfuncXref bin.Set
	finalized bool
}

// newFunction returns a new, empty, mutable Function rooted at entry.
func newFunction(entry bin.Addr) *Function {
	return &Function{
		entry:     entry,
		blocks:    make(map[bin.Addr]*Block),
		xrefs:     bin.NewSet(),
		vfuncXref: bin.NewSet(),
	}
}

// NewFunction returns a new, empty, mutable Function rooted at entry, for
// callers outside this package (e.g. irexport's tests, or an alternative
// translation pipeline) that need to build a Function without going through
// a Translator's process_block machinery.
func NewFunction(entry bin.Addr) *Function {
	return newFunction(entry)
}

// AddBlock installs block under its own address. Only valid before
// Finalize.
func (f *Function) AddBlock(block *Block) {
	f.addBlock(block)
}

// Entry returns the function's entry address.
func (f *Function) Entry() bin.Addr {
	return f.entry
}

// Blocks returns the function's block map, keyed by block address. Callers
// must not mutate the returned map.
func (f *Function) Blocks() map[bin.Addr]*Block {
	return f.blocks
}

// SortedBlockAddrs returns the function's block addresses in ascending
// order, useful for deterministic iteration (e.g. printing, export).
func (f *Function) SortedBlockAddrs() bin.Addrs {
	addrs := make(bin.Addrs, 0, len(f.blocks))
	for addr := range f.blocks {
		addrs = append(addrs, addr)
	}
	sort.Sort(addrs)
	return addrs
}

// Contains reports whether addr falls within this function's block set
// (exact block-start match; the core does not model intra-block
// containment since block boundaries are authoritative).
func (f *Function) Contains(addr bin.Addr) bool {
	_, ok := f.blocks[addr]
	return ok
}

// Xrefs returns the set of addresses known to reference this function.
func (f *Function) Xrefs() bin.Set {
	return f.xrefs
}

// VFuncXrefs returns the set of addresses known to reference this function
// through a virtual-call-like indirection.
func (f *Function) VFuncXrefs() bin.Set {
	return f.vfuncXref
}

// Finalized reports whether Finalize has been called.
func (f *Function) Finalized() bool {
	return f.finalized
}

// addBlock installs block under its own address. Only valid before
// Finalize.
func (f *Function) addBlock(block *Block) {
	f.blocks[block.Address] = block
}

// addXref appends src to the function's xref set. Allowed even after
// Finalize.
func (f *Function) addXref(src bin.Addr) {
	f.xrefs.Add(src)
}

// addVfuncXref appends src to the function's vfunc-xref set. Allowed even
// after Finalize.
func (f *Function) addVfuncXref(src bin.Addr) {
	f.vfuncXref.Add(src)
}

// finalize seals the function's block set against further mutation. Tail
// jump detection must already have run by this point, since detect_tail_jumps
// needs to observe (and once observed, fix) every block's terminator before
// the function is handed out read-only.
func (f *Function) finalize() {
	f.finalized = true
}

// Finalize seals the function's block set against further mutation, for
// callers building a Function via NewFunction/AddBlock outside the
// Translator's own pipeline.
func (f *Function) Finalize() {
	f.finalize()
}
