package translate

import (
	"testing"

	"vexcore/irsb"
)

// TestTerminatorSingleBlockReturn covers scenario 1: a function with one
// block ending in ret.
func TestTerminatorSingleBlockReturn(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts: []irsb.Stmt{
			irsb.IMark{Addr: 0x1000, Len: 4},
			irsb.IMark{Addr: 0x1004, Len: 4},
			irsb.IMark{Addr: 0x1008, Len: 4},
			irsb.IMark{Addr: 0x100C, Len: 2},
		},
		Jumpkind: irsb.Ret,
		Next:     irsb.Const{Value: 0},
	}

	term := classifyTerminator(sb, 0x1000)
	want := Terminator{Type: Return, Target: 0, FallThrough: 0}
	if term != want {
		t.Fatalf("got %+v, want %+v", term, want)
	}
}

// TestTerminatorConditionalBranchWithFallthrough covers scenario 2.
func TestTerminatorConditionalBranchWithFallthrough(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts: []irsb.Stmt{
			irsb.IMark{Addr: 0x201C, Len: 4},
			irsb.Exit{Dst: irsb.Const{Value: 0x3000}},
		},
		Jumpkind: irsb.Boring,
		Next:     irsb.Const{Value: 0x2020},
	}

	term := classifyTerminator(sb, 0x2000)
	want := Terminator{Type: Jcc, Target: 0x3000, FallThrough: 0x2020}
	if term != want {
		t.Fatalf("got %+v, want %+v", term, want)
	}
}

// TestTerminatorCallToNonReturning covers scenario 3 (the classification
// half; the promotion to NoReturn itself lives in finalizeBlock and is
// exercised in translator_test.go).
func TestTerminatorCallToNonReturning(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts: []irsb.Stmt{
			irsb.IMark{Addr: 0x3FF0, Len: 5},
		},
		Jumpkind: irsb.Call,
		Next:     irsb.Const{Value: 0x4000},
	}

	term := classifyTerminator(sb, 0x3FF0)
	want := Terminator{Type: Call, Target: 0x4000, FallThrough: 0x3FF5}
	if term != want {
		t.Fatalf("got %+v, want %+v", term, want)
	}
}

// TestTerminatorOvershootTruncation covers scenario 4: a block truncated to
// NoDecode classifies as Fallthrough with fall_through equal to the
// synthesized cut address.
func TestTerminatorOvershootTruncation(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts: []irsb.Stmt{
			irsb.IMark{Addr: 0x5000, Len: 2},
			irsb.IMark{Addr: 0x5002, Len: 2},
			irsb.IMark{Addr: 0x5004, Len: 2},
		},
		Jumpkind: irsb.Boring,
		Next:     irsb.NonConst{},
	}
	// Dump said 2 instructions; lifter produced 3. Truncate keeps the first
	// 2 (desc.InstructionCount) and points Next at the address of the
	// excluded 3rd mark.
	sb.Truncate(2, 0x5004)

	term := classifyTerminator(sb, 0x5000)
	want := Terminator{Type: Fallthrough, Target: 0, FallThrough: 0x5004}
	if term != want {
		t.Fatalf("got %+v, want %+v", term, want)
	}
}

// TestTerminatorSelfTargetingStringOp covers the Boring/self-target guard.
func TestTerminatorSelfTargetingStringOp(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts: []irsb.Stmt{
			irsb.IMark{Addr: 0x6000, Len: 3},
		},
		Jumpkind: irsb.Boring,
		Next:     irsb.Const{Value: 0x6000},
	}

	term := classifyTerminator(sb, 0x6000)
	if term.Type != Fallthrough {
		t.Fatalf("expected Fallthrough for self-targeting op, got %+v", term)
	}
}

// TestTerminatorUndertranslatedLongBlockLabeledAsJump covers the
// jmp_call_target == fall_through case.
func TestTerminatorUndertranslatedLongBlockLabeledAsJump(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts: []irsb.Stmt{
			irsb.IMark{Addr: 0x7000, Len: 4},
		},
		Jumpkind: irsb.Boring,
		Next:     irsb.Const{Value: 0x7004}, // equals fall_through
	}

	term := classifyTerminator(sb, 0x7000)
	want := Terminator{Type: Jump, Target: 0x7004, FallThrough: 0}
	if term != want {
		t.Fatalf("got %+v, want %+v", term, want)
	}
}

// TestTerminatorCallUnresolved covers an indirect call.
func TestTerminatorCallUnresolved(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts: []irsb.Stmt{
			irsb.IMark{Addr: 0x8000, Len: 3},
		},
		Jumpkind: irsb.Call,
		Next:     irsb.NonConst{},
	}

	term := classifyTerminator(sb, 0x8000)
	if term.Type != CallUnresolved || term.Target != 0 {
		t.Fatalf("expected CallUnresolved with zero target, got %+v", term)
	}
}

// TestTerminatorJccGuardSuppressesInteriorTarget covers the guard that
// drops a jcc target landing strictly inside the current block, which would
// otherwise falsely classify an under-translated long block as Jcc.
func TestTerminatorJccGuardSuppressesInteriorTarget(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts: []irsb.Stmt{
			irsb.IMark{Addr: 0x9000, Len: 4},
			irsb.IMark{Addr: 0x9004, Len: 4},
			irsb.Exit{Dst: irsb.Const{Value: 0x9002}}, // strictly inside [0x9000, 0x9008)
		},
		Jumpkind: irsb.Boring,
		Next:     irsb.NonConst{},
	}

	term := classifyTerminator(sb, 0x9000)
	if term.Type == Jcc {
		t.Fatalf("expected the interior jcc target to be suppressed, got %+v", term)
	}
}

func TestTerminatorNoDecodeFallsThroughToNext(t *testing.T) {
	sb := &irsb.SuperBlock{
		Stmts:    []irsb.Stmt{irsb.IMark{Addr: 0xA000, Len: 2}},
		Jumpkind: irsb.NoDecode,
		Next:     irsb.Const{Value: 0xA002},
	}
	term := classifyTerminator(sb, 0xA000)
	want := Terminator{Type: Fallthrough, Target: 0, FallThrough: 0xA002}
	if term != want {
		t.Fatalf("got %+v, want %+v", term, want)
	}
}
