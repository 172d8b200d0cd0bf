package irexport

import (
	"strings"
	"testing"

	"github.com/kr/pretty"

	"vexcore/irsb"
	"vexcore/translate"
)

func TestRenderFunctionNilFunction(t *testing.T) {
	if _, err := RenderFunction(nil); err == nil {
		t.Fatal("expected an error for a nil function")
	}
}

func TestRenderFunctionBlockNaming(t *testing.T) {
	f := translate.NewFunction(0x401000)
	f.AddBlock(&translate.Block{
		Address: 0x401000,
		SuperBlock: &irsb.SuperBlock{
			Stmts:    []irsb.Stmt{irsb.IMark{Addr: 0x401000, Len: 5}},
			Jumpkind: irsb.Call,
			Next:     irsb.Const{Value: 0x402000},
		},
		Terminator: translate.Terminator{
			Type:        translate.Call,
			Target:      0x402000,
			FallThrough: 0x401005,
		},
	})
	f.AddBlock(&translate.Block{
		Address: 0x401005,
		SuperBlock: &irsb.SuperBlock{
			Stmts:    []irsb.Stmt{irsb.IMark{Addr: 0x401005, Len: 1}},
			Jumpkind: irsb.Ret,
			Next:     irsb.Const{Value: 0},
		},
		Terminator: translate.Terminator{Type: translate.Return},
	})
	f.Finalize()

	m, err := RenderFunction(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Funcs) != 1 {
		t.Fatalf("expected exactly one rendered function, got %d", len(m.Funcs))
	}
	fn := m.Funcs[0]
	if fn.Name() != "func_0000000000401000" {
		t.Fatalf("unexpected function name %q", fn.Name())
	}
	if len(fn.Blocks) != 2 {
		t.Fatalf("expected 2 rendered blocks, got %d: %s", len(fn.Blocks), pretty.Sprint(fn.Blocks))
	}

	wantNames := []string{"block_0000000000401000", "block_0000000000401005"}
	for i, llBlock := range fn.Blocks {
		if llBlock.Name() != wantNames[i] {
			t.Fatalf("block %d: got name %q, want %q\ndiff: %s", i, llBlock.Name(), wantNames[i],
				strings.Join(pretty.Diff(llBlock.Name(), wantNames[i]), "\n"))
		}
		if len(llBlock.Insts) != 1 {
			t.Fatalf("block %d: expected 1 placeholder instruction, got %d", i, len(llBlock.Insts))
		}
		if llBlock.Term == nil {
			t.Fatalf("block %d: expected a placeholder terminator, got none", i)
		}
	}
}

func TestRenderFunctionEmptyBlockSet(t *testing.T) {
	f := translate.NewFunction(0x500000)
	f.Finalize()

	m, err := RenderFunction(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(m.Funcs[0].Blocks); got != 0 {
		t.Fatalf("expected zero blocks for an empty function, got %d", got)
	}
}
