// Package translate implements the binary translator core: it lifts
// disassembler-declared basic blocks into an owned IR representation
// (package irsb) via a pluggable IRLifter, reconciles boundary mismatches
// between the disassembler's blocks and the lifter's own splitting, and
// assembles the result into Function objects with classified Terminators.
package translate

import (
	"log"
	"os"
	"sync"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"vexcore/bin"
	"vexcore/dump"
	"vexcore/image"
	"vexcore/irsb"
)

var (
	// dbg is a logger which logs debug messages with "translate:" prefix to
	// standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("translate:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix
	// to standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// Config holds construction-time options for a Translator.
type Config struct {
	// ParseOnDemand, when false (the zero value), eagerly translates every
	// dump function at construction time. When true, functions are
	// translated lazily on first lookup.
	ParseOnDemand bool
	// FileFormat selects the Mapped Image backend.
	FileFormat image.FileFormat
}

// Translator owns every translated Function for one binary. It is safe for
// concurrent use: all public mutating and lookup operations are serialized
// under a single mutex.
type Translator struct {
	img  image.MappedImage
	idx  *dump.Index
	lift IRLifter

	mu          sync.Mutex
	functions   map[bin.Addr]*Function
	seenBlocks  bin.Set
	blockIndex  map[bin.Addr]*Block
	isFinalized bool
}

// New constructs a Translator for binPath, deriving "<binPath>.dmp" and
// "<binPath>.dmp.no-return" per package dump's convention, and opening the
// binary itself through the Mapped Image backend selected by cfg.FileFormat.
// lifter is the IRLifter to drive the Block Translator with; this module's
// default, x86lift.New(), is a reasonable choice for x86-64 binaries.
func New(binPath string, lifter IRLifter, cfg Config) (*Translator, error) {
	img, err := image.Open(binPath, cfg.FileFormat)
	if err != nil {
		if errors.Cause(err) == image.ErrFormatUnsupported {
			return nil, errors.Wrapf(ErrFormatUnsupported, "format %v", cfg.FileFormat)
		}
		return nil, errors.Wrap(err, "translate: opening mapped image")
	}

	idx, err := dump.Load(binPath)
	if err != nil {
		img.Close()
		return nil, errors.Wrap(err, "translate: loading dump index")
	}

	t := &Translator{
		img:        img,
		idx:        idx,
		lift:       lifter,
		functions:  make(map[bin.Addr]*Function),
		seenBlocks: bin.NewSet(),
		blockIndex: make(map[bin.Addr]*Block),
	}

	if !cfg.ParseOnDemand {
		for _, entry := range idx.SortedEntries() {
			if _, err := t.translateFunction(entry, idx.Functions()[entry]); err != nil {
				warn.Printf("eager translation of function %v failed: %v", entry, err)
			}
		}
	}

	return t, nil
}

// Close releases the underlying Mapped Image.
func (t *Translator) Close() error {
	return t.img.Close()
}

// Get returns the Function at addr, translating it on demand if it is not
// yet present but is known to the dump. It fails with ErrUnknownFunction if
// addr is absent from both.
func (t *Translator) Get(addr bin.Addr) (*Function, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maybeTranslate(addr)
}

// CGet returns the Function at addr without on-demand translation. It
// fails with ErrUnknownFunction if addr has not already been translated.
func (t *Translator) CGet(addr bin.Addr) (*Function, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.functions[addr]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFunction, "address %v", addr)
	}
	return f, nil
}

// MaybeGet returns the Function at addr, translating it on demand, or nil
// if addr is unknown to the dump. It never returns an error for a merely
// absent function, only for a translation failure.
func (t *Translator) MaybeGet(addr bin.Addr) (*Function, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := t.maybeTranslate(addr)
	if errors.Cause(err) == ErrUnknownFunction {
		return nil, nil
	}
	return f, err
}

// Containing returns the Function whose block set contains addr via a
// linear scan of every translated function. It fails with
// ErrUnknownFunction if no translated function contains addr.
//
// This is a linear scan, acceptable for the function counts this module is
// exercised against; a deployment translating large binaries should
// replace it with an interval tree keyed by (block.start, block.start+span)
// behind this same method signature.
func (t *Translator) Containing(addr bin.Addr) (*Function, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.functions {
		if f.Contains(addr) {
			return f, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownFunction, "no translated function contains %v", addr)
}

// AddXref appends src to fctAddr's xref set. It fails with
// ErrUnknownFunction if fctAddr is not a known, translated function. This
// is allowed even after Finalize.
func (t *Translator) AddXref(fctAddr, src bin.Addr) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.functions[fctAddr]
	if !ok {
		return errors.Wrapf(ErrUnknownFunction, "address %v", fctAddr)
	}
	f.addXref(src)
	return nil
}

// AddVFuncXref appends src to fctAddr's vfunc-xref set. It fails with
// ErrUnknownFunction if fctAddr is not a known, translated function. This
// is allowed even after Finalize.
func (t *Translator) AddVFuncXref(fctAddr, src bin.Addr) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.functions[fctAddr]
	if !ok {
		return errors.Wrapf(ErrUnknownFunction, "address %v", fctAddr)
	}
	f.addVfuncXref(src)
	return nil
}

// FunctionsMutable returns bulk, mutable access to every translated
// function, for neighbouring passes that need to walk or adjust function
// state directly. It fails with ErrAlreadyFinalized once Finalize has been
// called.
func (t *Translator) FunctionsMutable() (map[bin.Addr]*Function, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isFinalized {
		return nil, errors.WithStack(ErrAlreadyFinalized)
	}
	return t.functions, nil
}

// Finalize seals the Translator against FunctionsMutable access. The
// transition is one-shot and monotonic.
func (t *Translator) Finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isFinalized = true
}

// maybeTranslate returns the Function at addr, translating it on demand if
// absent. Callers must hold t.mu.
func (t *Translator) maybeTranslate(addr bin.Addr) (*Function, error) {
	if f, ok := t.functions[addr]; ok {
		return f, nil
	}
	descs, ok := t.idx.Functions()[addr]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFunction, "address %v", addr)
	}
	return t.translateFunction(addr, descs)
}

// translateFunction implements translate_function: it creates an empty
// Function, installs it, drives process_block over every descriptor in
// order, and on success runs tail-jump detection before finalizing.
// Callers must hold t.mu.
func (t *Translator) translateFunction(entry bin.Addr, descs []dump.BlockDescriptor) (*Function, error) {
	f := newFunction(entry)
	t.functions[entry] = f

	for _, desc := range descs {
		if err := t.processBlock(f, desc); err != nil {
			t.rollback(f)
			delete(t.functions, entry)
			return nil, errors.Wrapf(ErrTranslationFailed, "function %v: %v", entry, err)
		}
	}

	detectTailJumps(f)
	f.finalize()
	return f, nil
}

// rollback removes every block that processBlock added for f from the
// Translator-wide block index, keeping it consistent with the abandoned
// function's removal.
func (t *Translator) rollback(f *Function) {
	for addr := range f.blocks {
		delete(t.blockIndex, addr)
	}
}

// processBlock implements process_block: it lifts desc.Start via the
// IRLifter, reconciles any boundary mismatch against the dump's declared
// instruction count by recursive splitting, classifies the terminator, and
// installs the finalized block into f and into the Translator-wide block
// index.
func (t *Translator) processBlock(f *Function, desc dump.BlockDescriptor) error {
	if desc.Empty() {
		return nil
	}
	if t.seenBlocks.Contains(desc.Start) {
		return nil
	}

	r, err := t.img.BytesAt(desc.Start)
	if err != nil {
		return errors.Wrapf(err, "reading bytes at %v", desc.Start)
	}

	liftedIR, realEnd, err := t.lift.Lift(r, desc.Start, desc.InstructionCount)
	if err != nil {
		return errors.Wrapf(err, "lifting block at %v", desc.Start)
	}

	t.seenBlocks.Add(desc.Start)

	// The lifter's output is scratch-allocated; clone into heap ownership
	// before it is touched again.
	sb := liftedIR.Clone()

	headInstructions := len(sb.InstructionMarks())
	if headInstructions == 0 {
		return errors.New("lifter returned zero instruction marks")
	}

	switch {
	case headInstructions < desc.InstructionCount:
		// Under-shoot: the lifter covered only a prefix, typically splitting
		// at a call. Recurse on the remainder, then finalize the prefix.
		split := dump.BlockDescriptor{
			Start:            realEnd,
			End:              desc.End,
			InstructionCount: desc.InstructionCount - headInstructions,
		}
		if err := t.processBlock(f, split); err != nil {
			return err
		}
		return t.finalizeBlock(f, desc, sb)

	case headInstructions > desc.InstructionCount:
		// Over-shoot: the lifter continued past the disassembler's block
		// end. Drop everything from the (count+1)th instruction mark
		// onward, retaining exactly desc.InstructionCount marks, and
		// rewrite the terminator as NoDecode/Fallthrough pointing at the
		// excluded mark.
		sb.Truncate(desc.InstructionCount, cutAddr(sb, desc.InstructionCount+1))
	}

	return t.finalizeBlock(f, desc, sb)
}

// cutAddr returns the address of the nth instruction mark in sb (1-indexed),
// which Truncate uses as the fall-through address for the synthesized cut.
func cutAddr(sb *irsb.SuperBlock, n int) bin.Addr {
	marks := sb.InstructionMarks()
	if n-1 < len(marks) {
		return marks[n-1].Addr
	}
	if len(marks) > 0 {
		return marks[len(marks)-1].Addr
	}
	return 0
}

// finalizeBlock implements the non-returning override and installs the
// finished block into f and the Translator-wide block index.
func (t *Translator) finalizeBlock(f *Function, desc dump.BlockDescriptor, sb *irsb.SuperBlock) error {
	terminator := classifyTerminator(sb, desc.Start)

	switch terminator.Type {
	case Call, Jump:
		if t.idx.NonReturning().Contains(terminator.Target) {
			terminator.Type = NoReturn
		}
	}

	block := &Block{
		Address:    desc.Start,
		SuperBlock: sb,
		Terminator: terminator,
	}
	f.addBlock(block)
	t.blockIndex[desc.Start] = block
	return nil
}

// detectTailJumps implements the per-function post-pass: every block whose
// terminator is Jump has IsTail set according to whether its target leaves
// the function's own block set. This runs after every block has landed,
// since it needs the complete address set, and before the function is
// finalized, so the mutation never reaches past the "immutable" boundary.
func detectTailJumps(f *Function) {
	for _, block := range f.blocks {
		if block.Terminator.Type != Jump {
			continue
		}
		block.Terminator.IsTail = !f.Contains(block.Terminator.Target)
	}
}
