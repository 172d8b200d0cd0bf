package translate

import (
	"vexcore/bin"
	"vexcore/irsb"
)

// Block is one translated basic block, owned by its enclosing Function.
type Block struct {
	Address    bin.Addr
	SuperBlock *irsb.SuperBlock
	Terminator Terminator
}
