package main

import "testing"

func TestGlobalOptConstifiesSingleWriteGlobal(t *testing.T) {
	prog := &Program{
		Globals: []*VarDecl{
			{Name: "limit", Init: &IntLit{Value: 100}},
		},
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&ReturnStmt{Value: &Ident{Name: "limit"}},
			}},
		},
	}

	changed, err := (&GlobalOptPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed == 0 {
		t.Fatalf("expected the global to be constified")
	}

	ret := prog.Functions[0].Body[0].(*ReturnStmt)
	lit, ok := ret.Value.(*IntLit)
	if !ok || lit.Value != 100 {
		t.Fatalf("expected the return value to be replaced by the literal 100, got %#v", ret.Value)
	}
	if len(prog.Globals) != 0 {
		t.Fatalf("expected the now-dead global declaration to be removed")
	}
}

func TestGlobalOptSkipsAddressTakenGlobal(t *testing.T) {
	prog := &Program{
		Globals: []*VarDecl{
			{Name: "counter", Init: &IntLit{Value: 0}},
		},
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&ExprStmt{X: &CallExpr{Callee: &Ident{Name: "register"}, Args: []Expr{&Ident{Name: "counter"}}}},
			}},
		},
	}

	if _, err := (&GlobalOptPass{}).Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(prog.Globals) != 1 {
		t.Fatalf("expected the address-taken global to survive, got %d globals", len(prog.Globals))
	}
}
