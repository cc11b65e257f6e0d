package main

import "testing"

func TestPartialInliningSplitsGuardedFunction(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "abs", Params: []Param{{Name: "x"}}, Body: []Stmt{
				&IfStmt{
					Cond: &BinaryExpr{Op: "<", Left: &Ident{Name: "x"}, Right: &IntLit{Value: 0}},
					Then: []Stmt{&ReturnStmt{Value: &UnaryExpr{Op: "-", Operand: &Ident{Name: "x"}}}},
				},
				&ReturnStmt{Value: &Ident{Name: "x"}},
			}},
		},
	}

	changed, err := (&PartialInliningPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected one function to be split, got %d", changed)
	}
	if len(prog.Functions) != 2 {
		t.Fatalf("expected a new cold function to be appended, got %d functions", len(prog.Functions))
	}

	cold := prog.Functions[1]
	if cold.Name != "abs_cold" {
		t.Fatalf("expected the outlined function to be named abs_cold, got %q", cold.Name)
	}
	if len(cold.Body) != 1 {
		t.Fatalf("expected the cold function to hold the rest of the original body")
	}

	abs := prog.Functions[0]
	dispatch, ok := abs.Body[0].(*IfStmt)
	if !ok || len(dispatch.Else) != 1 {
		t.Fatalf("expected abs to dispatch to the guard or the cold function")
	}
	ret, ok := dispatch.Else[0].(*ReturnStmt)
	if !ok {
		t.Fatalf("expected the else branch to return the cold call")
	}
	call, ok := ret.Value.(*CallExpr)
	if !ok {
		t.Fatalf("expected the else branch to call the cold function")
	}
	callee := call.Callee.(*Ident)
	if callee.Name != "abs_cold" {
		t.Fatalf("expected dispatch to abs_cold, got %q", callee.Name)
	}
}

func TestPartialInliningSkipsFunctionWithoutGuard(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "plain", Body: []Stmt{&ReturnStmt{Value: &IntLit{Value: 1}}}},
		},
	}
	changed, err := (&PartialInliningPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected no split for a function without a guard-then-return prefix")
	}
	if len(prog.Functions) != 1 {
		t.Fatalf("expected no new function to be appended")
	}
}
