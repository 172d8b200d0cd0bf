package translate

import (
	"io"

	"vexcore/bin"
	"vexcore/irsb"
)

// IRLifter is the external collaborator that lifts a byte range starting at
// a virtual address into an IR super-block. Implementations may lift fewer
// or more instructions than requested; both cases are reconciled by the
// Block Translator (see Translator.processBlock).
//
// The returned super-block is treated as scratch: the Block Translator
// deep-clones it via SuperBlock.Clone before retaining any part of it, so
// an IRLifter is free to reuse internal buffers across calls.
type IRLifter interface {
	// Lift decodes up to maxInstructions instructions from r, which begins
	// at virtual address startVA, and returns the resulting super-block
	// along with realEnd: the virtual address one byte past the last
	// instruction actually consumed. realEnd may be less than
	// startVA+len(consumed requested bytes) when the lifter stops early
	// (e.g. at a call split).
	Lift(r io.Reader, startVA bin.Addr, maxInstructions int) (sb *irsb.SuperBlock, realEnd bin.Addr, err error)
}
