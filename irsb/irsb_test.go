package irsb

import (
	"testing"

	"vexcore/bin"
)

func TestCloneSeversSharedStorage(t *testing.T) {
	orig := &SuperBlock{
		Stmts: []Stmt{
			IMark{Addr: 0x1000, Len: 4},
			Opaque{},
			IMark{Addr: 0x1004, Len: 2},
		},
		Jumpkind: Boring,
		Next:     Const{Value: 0x2000},
	}
	clone := orig.Clone()

	clone.Stmts[0] = IMark{Addr: 0xDEAD, Len: 1}
	if got := orig.Stmts[0].(IMark).Addr; got != 0x1000 {
		t.Fatalf("mutating clone affected original: got %v", got)
	}
}

func TestInstructionMarksAndLast(t *testing.T) {
	b := &SuperBlock{
		Stmts: []Stmt{
			IMark{Addr: 0x100, Len: 3},
			Opaque{},
			IMark{Addr: 0x103, Len: 2},
			Exit{Dst: Const{Value: 0x200}},
		},
	}
	marks := b.InstructionMarks()
	if len(marks) != 2 {
		t.Fatalf("expected 2 instruction marks, got %d", len(marks))
	}
	last, ok := b.LastInstructionMark()
	if !ok || last.Addr != 0x103 {
		t.Fatalf("expected last mark at 0x103, got %+v ok=%v", last, ok)
	}
}

func TestTruncateDropsTrailingStatementsAndRewritesNext(t *testing.T) {
	b := &SuperBlock{
		Stmts: []Stmt{
			IMark{Addr: 0x5000, Len: 2}, // 1st instruction
			IMark{Addr: 0x5002, Len: 2}, // 2nd instruction
			IMark{Addr: 0x5004, Len: 2}, // 3rd instruction, last retained
			Opaque{},                    // belongs to the 3rd instruction, kept
			IMark{Addr: 0x5006, Len: 2}, // 4th instruction (cut point), dropped
		},
		Jumpkind: Boring,
		Next:     NonConst{},
	}
	b.Truncate(3, 0x5006)

	if b.Jumpkind != NoDecode {
		t.Fatalf("expected NoDecode jumpkind, got %v", b.Jumpkind)
	}
	next, ok := AsConst(b.Next)
	if !ok || next != bin.Addr(0x5006) {
		t.Fatalf("expected Next to be Const(0x5006), got %+v ok=%v", b.Next, ok)
	}
	marks := b.InstructionMarks()
	if len(marks) != 3 {
		t.Fatalf("expected 3 retained instruction marks, got %d", len(marks))
	}
	if len(b.Stmts) != 4 {
		t.Fatalf("expected trailing statements dropped, stmts=%d", len(b.Stmts))
	}
}

func TestAsConstRejectsNonConst(t *testing.T) {
	if _, ok := AsConst(NonConst{}); ok {
		t.Fatal("expected AsConst to reject NonConst")
	}
}
