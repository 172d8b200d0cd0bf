package translate

import (
	"fmt"

	"vexcore/bin"
	"vexcore/irsb"
)

// TerminatorType classifies the exit behaviour of a translated block.
type TerminatorType int

const (
	// Unresolved is the fallback classification when none of the other
	// signals apply.
	Unresolved TerminatorType = iota
	// Call is a resolved, direct call.
	Call
	// CallUnresolved is a call whose target could not be resolved (e.g. an
	// indirect call).
	CallUnresolved
	// Jump is a resolved, unconditional jump.
	Jump
	// Jcc is a conditional branch: Target is taken, FallThrough is not
	// taken.
	Jcc
	// Return is a function return.
	Return
	// Fallthrough is a block whose only successor is the next address in
	// memory, with no explicit branch.
	Fallthrough
	// NoReturn is a Call or Jump promoted because its target is known never
	// to return.
	NoReturn
)

// String returns the name of the terminator type.
func (t TerminatorType) String() string {
	switch t {
	case Call:
		return "Call"
	case CallUnresolved:
		return "CallUnresolved"
	case Jump:
		return "Jump"
	case Jcc:
		return "Jcc"
	case Return:
		return "Return"
	case Fallthrough:
		return "Fallthrough"
	case NoReturn:
		return "NoReturn"
	case Unresolved:
		return "Unresolved"
	default:
		return fmt.Sprintf("TerminatorType(%d)", int(t))
	}
}

// Terminator is the classified exit behaviour of a translated block. Which
// of Target and FallThrough are set depends on Type; see classifyTerminator.
type Terminator struct {
	Type        TerminatorType
	Target      bin.Addr
	FallThrough bin.Addr
	// IsTail is meaningful only for Jump; it is set by detect_tail_jumps
	// once a function's full block set is known.
	IsTail bool
}

// classifyTerminator derives a Terminator from an IR super-block's
// statements, jump kind, and next expression, following the four-signal
// reconciliation described for the Block Translator: the last instruction
// mark (defines the baseline fall-through), the next expression's constant
// (if any), a trailing conditional Exit statement confined to the block's
// final source instruction, and the jump kind reported by the lifter.
func classifyTerminator(b *irsb.SuperBlock, blockStart bin.Addr) Terminator {
	var result Terminator

	var lastAddr bin.Addr
	if mark, ok := b.LastInstructionMark(); ok {
		lastAddr = mark.Addr
		result.FallThrough = mark.Addr + bin.Addr(mark.Len)
	}

	var jmpCallTarget bin.Addr
	if c, ok := irsb.AsConst(b.Next); ok {
		jmpCallTarget = c
	}

	isJmpCall := result.FallThrough != jmpCallTarget

	var jccTarget bin.Addr
	var isConditional bool
	for i := len(b.Stmts) - 1; jccTarget == 0 && i >= 0; i-- {
		stmt := b.Stmts[i]
		if _, ok := stmt.(irsb.IMark); ok {
			// Exit statements are only looked for within the final source
			// instruction; an IMark terminates the scan.
			break
		}
		if exit, ok := stmt.(irsb.Exit); ok {
			if c, ok := irsb.AsConst(exit.Dst); ok {
				jccTarget = c
				isConditional = true

				// Degenerate: the branch and fallthrough agree with the
				// jump/call target, so there is nothing conditional left
				// to report.
				if jccTarget == jmpCallTarget && result.FallThrough == jccTarget {
					jccTarget = 0
				}

				// Suppress false Jccs produced when the lifter
				// under-translates a long block: a target strictly inside
				// the current block (excluding its own start, since a loop
				// may legitimately target that) is not a real exit.
				if jccTarget > blockStart && jccTarget <= lastAddr {
					jccTarget = 0
					isConditional = false
				}
			}
		}
	}

	// The lifter's normal form sometimes swaps the taken/not-taken roles;
	// reconcile by adopting the jump/call target as the real jcc target
	// when the apparent jcc target is actually the fall-through.
	if isConditional && isJmpCall && jccTarget == result.FallThrough {
		jccTarget = jmpCallTarget
	}

	switch b.Jumpkind {
	case irsb.NoDecode:
		result.Type = Fallthrough
		result.FallThrough = jmpCallTarget

	case irsb.Ret:
		result.Type = Return
		result.Target = 0
		result.FallThrough = 0

	case irsb.Call:
		if jmpCallTarget != 0 {
			result.Type = Call
			result.Target = jmpCallTarget
		} else {
			result.Type = CallUnresolved
			result.Target = 0
		}

	case irsb.Boring:
		switch {
		case jccTarget != 0:
			result.Type = Jcc
			result.Target = jccTarget
		case jmpCallTarget == lastAddr:
			// Degenerate self-target from instructions like string-repeat.
			result.Type = Fallthrough
		case jmpCallTarget == result.FallThrough:
			// Under-translated long block; semantically a fall-through but
			// we preserve the jump label.
			result.Type = Jump
			result.Target = jmpCallTarget
			result.FallThrough = 0
		case jmpCallTarget != 0:
			result.Type = Jump
			result.Target = jmpCallTarget
			result.FallThrough = 0
		default:
			result.Type = Unresolved
			result.Target = 0
			result.FallThrough = 0
		}

	default:
		result.Type = Unresolved
		result.FallThrough = 0
	}

	return result
}
