// Package x86lift provides the default, swappable IRLifter implementation:
// an x86-64 decoder (golang.org/x/arch/x86/x86asm) folded into an
// irsb.SuperBlock, grounded in the teacher's own block-partitioning
// heuristic (decodeBlocks/isTerm).
//
// Production deployments of the translate package may supply any other
// IRLifter; this one exists so the module is usable out of the box and so
// the Block Translator's classification logic can be exercised end-to-end
// against real machine code in tests.
package x86lift

import (
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"vexcore/bin"
	"vexcore/irsb"
)

var (
	// dbg is a logger which logs debug messages with "x86lift:" prefix to
	// standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("x86lift:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix
	// to standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// cpuMode is the processor mode passed to x86asm.Decode; this lifter only
// targets 64-bit code.
const cpuMode = 64

// Lifter is a reference IRLifter backed by an x86-64 decoder.
type Lifter struct{}

// New returns a new x86-64 reference lifter.
func New() *Lifter {
	return &Lifter{}
}

// Lift decodes up to maxInstructions x86-64 instructions from r, starting
// at startVA, stopping early (an under-shoot, reported via realEnd) at any
// CALL instruction — mirroring the call-split behaviour production VEX-style
// lifters exhibit — or at any other terminator recognized by isTerm,
// whichever comes first.
func (l *Lifter) Lift(r io.Reader, startVA bin.Addr, maxInstructions int) (*irsb.SuperBlock, bin.Addr, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	sb := &irsb.SuperBlock{Jumpkind: irsb.Boring, Next: irsb.NonConst{}}

	addr := startVA
	offset := 0
	for i := 0; i < maxInstructions; i++ {
		if offset >= len(data) {
			warn.Printf("x86lift: ran out of bytes decoding block at %v after %d instructions", startVA, i)
			break
		}
		inst, err := x86asm.Decode(data[offset:], cpuMode)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "decoding instruction at %v", addr)
		}

		sb.Stmts = append(sb.Stmts, irsb.IMark{Addr: addr, Len: uint8(inst.Len)})

		if target, cond, ok := branchTarget(inst, addr); ok {
			if cond {
				sb.Stmts = append(sb.Stmts, irsb.Exit{Dst: irsb.Const{Value: target}})
				sb.Next = irsb.Const{Value: addr + bin.Addr(inst.Len)}
			} else {
				sb.Next = irsb.Const{Value: target}
			}
		}

		switch {
		case inst.Op == x86asm.CALL:
			sb.Jumpkind = irsb.Call
			if target, _, ok := branchTarget(inst, addr); ok {
				sb.Next = irsb.Const{Value: target}
			} else {
				sb.Next = irsb.NonConst{}
			}
			return sb, addr + bin.Addr(inst.Len), nil

		case inst.Op == x86asm.RET:
			sb.Jumpkind = irsb.Ret
			sb.Next = irsb.NonConst{}
			return sb, addr + bin.Addr(inst.Len), nil

		case isTerm(inst):
			sb.Jumpkind = irsb.Boring
			return sb, addr + bin.Addr(inst.Len), nil
		}

		addr += bin.Addr(inst.Len)
		offset += inst.Len
	}

	return sb, addr, nil
}

// branchTarget resolves the branch target of a relative-displacement jump
// or call, returning ok=false for indirect forms (register/memory
// operands) that this reference lifter leaves unresolved.
func branchTarget(inst x86asm.Inst, addr bin.Addr) (target bin.Addr, cond bool, ok bool) {
	if len(inst.Args) == 0 {
		return 0, false, false
	}
	rel, isRel := inst.Args[0].(x86asm.Rel)
	if !isRel {
		return 0, false, false
	}
	target = addr + bin.Addr(inst.Len) + bin.Addr(int64(rel))
	cond = isConditionalJump(inst.Op)
	return target, cond, true
}

// isConditionalJump reports whether op is a conditional jump form (as
// opposed to JMP, the unconditional form).
func isConditionalJump(op x86asm.Op) bool {
	switch op {
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS:
		return true
	}
	return false
}

// isTerm reports whether inst terminates a basic block, adapted from the
// teacher's block-partitioning heuristic (cmd/x/x86.go's isTerm): loop
// forms, conditional jumps, unconditional jumps, and returns. CALL is
// handled separately by Lift since it ends a block without necessarily
// terminating the function.
func isTerm(inst x86asm.Inst) bool {
	switch inst.Op {
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return true
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS:
		return true
	case x86asm.JMP:
		return true
	case x86asm.RET:
		return true
	}
	return false
}
