// Package irsb models the owned, heap-allocated intermediate representation
// of a lifted basic block (a "super-block" in the lifter's own vocabulary).
//
// Values produced by an IRLifter are scratch-allocated and only valid for the
// duration of the lift call; callers must Clone before retaining them. None
// of the types here embed lifter-owned memory once cloned.
package irsb

import (
	"fmt"

	"vexcore/bin"
)

// JumpKind classifies how a super-block's control flow leaves the block, as
// reported by the lifter.
type JumpKind int

const (
	// Boring is an ordinary, non-call, non-return exit (a plain jump,
	// conditional jump, or straight-line fallthrough).
	Boring JumpKind = iota
	// Call is a call instruction.
	Call
	// Ret is a return instruction.
	Ret
	// NoDecode marks a block the lifter could not (or was truncated so as to
	// not) decode past a given point.
	NoDecode
)

// String returns the name of the jump kind.
func (k JumpKind) String() string {
	switch k {
	case Boring:
		return "Boring"
	case Call:
		return "Call"
	case Ret:
		return "Ret"
	case NoDecode:
		return "NoDecode"
	default:
		return fmt.Sprintf("JumpKind(%d)", int(k))
	}
}

// Expr is the next-address expression of a super-block, or the target
// operand of an Exit statement. It is either a Const (resolved address) or
// an opaque NonConst (unresolved, e.g. indirect through a register).
type Expr interface {
	// isExpr is a marker method restricting implementations to this package.
	isExpr()
}

// Const is a constant address operand.
type Const struct {
	Value bin.Addr
}

func (Const) isExpr() {}

// NonConst is an unresolved (non-constant) operand, e.g. an indirect jump or
// call through a register. It carries no payload the core ever inspects.
type NonConst struct{}

func (NonConst) isExpr() {}

// AsConst reports whether e is a Const and returns its value.
func AsConst(e Expr) (bin.Addr, bool) {
	c, ok := e.(Const)
	if !ok {
		return 0, false
	}
	return c.Value, true
}

// Stmt is one statement in a super-block's statement list. Implementations
// are IMark (instruction boundary marker), Exit (conditional-branch exit),
// and Opaque (any other statement the core does not interpret).
type Stmt interface {
	// isStmt is a marker method restricting implementations to this package.
	isStmt()
}

// IMark marks the start of a single source instruction: its address and
// byte length. The core relies exclusively on IMark statements to recover
// instruction boundaries; it never decodes bytes itself.
type IMark struct {
	Addr bin.Addr
	Len  uint8
}

func (IMark) isStmt() {}

// Exit is a conditional-branch exit embedded within the final instruction of
// a block: "if <cond> goto Dst" with implicit fallthrough otherwise. The
// core does not inspect the guard, only Dst.
type Exit struct {
	Dst Expr
}

func (Exit) isStmt() {}

// Opaque is any statement the core does not interpret (register writes,
// memory effects, etc). It is preserved verbatim across Clone and Truncate
// but carries no payload meaningful to translation.
type Opaque struct{}

func (Opaque) isStmt() {}

// SuperBlock is the owned representation of a lifted basic block.
type SuperBlock struct {
	// Stmts is the ordered statement list.
	Stmts []Stmt
	// Jumpkind classifies how control leaves the block.
	Jumpkind JumpKind
	// Next is the fallthrough/branch target expression.
	Next Expr
}

// New returns an empty super-block with the given jump kind and next
// expression.
func New(jumpkind JumpKind, next Expr) *SuperBlock {
	return &SuperBlock{Jumpkind: jumpkind, Next: next}
}

// Clone performs a deep copy of b into freshly heap-allocated storage. It is
// the core's only sanctioned way to retain an IR super-block beyond the
// lifetime of the lift call that produced it: every Stmt and Expr is a
// plain value type, so copying the slice and its elements is sufficient to
// sever any tie to the lifter's scratch allocator.
func (b *SuperBlock) Clone() *SuperBlock {
	if b == nil {
		return nil
	}
	clone := &SuperBlock{
		Jumpkind: b.Jumpkind,
		Next:     b.Next,
		Stmts:    make([]Stmt, len(b.Stmts)),
	}
	copy(clone.Stmts, b.Stmts)
	return clone
}

// InstructionMarks returns the IMark statements in b, in order.
func (b *SuperBlock) InstructionMarks() []IMark {
	var marks []IMark
	for _, s := range b.Stmts {
		if m, ok := s.(IMark); ok {
			marks = append(marks, m)
		}
	}
	return marks
}

// LastInstructionMark returns the final IMark statement in b, if any.
func (b *SuperBlock) LastInstructionMark() (IMark, bool) {
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		if m, ok := b.Stmts[i].(IMark); ok {
			return m, true
		}
	}
	return IMark{}, false
}

// Truncate implements the over-shoot correction described for the Block
// Translator: drop every statement at or after the (cutAfter+1)-th IMark,
// mark the block NoDecode, and rewrite Next to Const{fallAddr}, the address
// immediately following the retained instructions.
//
// cutAfter is the number of leading instructions to retain; the statements
// following each retained IMark are kept with it. If b has no more than
// cutAfter instruction marks, no statement is dropped.
func (b *SuperBlock) Truncate(cutAfter int, fallAddr bin.Addr) {
	seen := 0
	cutIdx := len(b.Stmts)
	for i, s := range b.Stmts {
		if _, ok := s.(IMark); ok {
			seen++
			if seen == cutAfter+1 {
				cutIdx = i
				break
			}
		}
	}
	b.Stmts = b.Stmts[:cutIdx]
	b.Jumpkind = NoDecode
	b.Next = Const{Value: fallAddr}
}
