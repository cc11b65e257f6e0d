package main

import "testing"

func TestRunOptimizerO0RunsNoPasses(t *testing.T) {
	prog := &Program{
		Globals: []*VarDecl{{Name: "limit", Init: &IntLit{Value: 7}}},
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{&ReturnStmt{Value: &Ident{Name: "limit"}}}},
		},
	}

	if err := RunOptimizer(prog, O0); err != nil {
		t.Fatalf("RunOptimizer: %v", err)
	}
	// O0 disables the entire pipeline (spec.md §4.8): nothing should change.
	if len(prog.Globals) != 1 {
		t.Fatalf("expected no passes to run at O0, global count = %d", len(prog.Globals))
	}
}

func TestRunOptimizerO2ConstifiesGlobals(t *testing.T) {
	prog := &Program{
		Globals: []*VarDecl{{Name: "limit", Init: &IntLit{Value: 7}}},
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{&ReturnStmt{Value: &Ident{Name: "limit"}}}},
		},
	}

	if err := RunOptimizer(prog, O2); err != nil {
		t.Fatalf("RunOptimizer: %v", err)
	}
	if len(prog.Globals) != 0 {
		t.Fatalf("expected global-opt to constify and drop the now-dead global at O2")
	}
}

func TestRunOptimizerO3RunsPartialInlining(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&ExprStmt{X: &CallExpr{Callee: &Ident{Name: "abs"}, Args: []Expr{&IntLit{Value: -3}}}},
				&ReturnStmt{},
			}},
			{Name: "abs", Params: []Param{{Name: "x"}}, AddressTaken: true, Body: []Stmt{
				&IfStmt{
					Cond: &BinaryExpr{Op: "<", Left: &Ident{Name: "x"}, Right: &IntLit{Value: 0}},
					Then: []Stmt{&ReturnStmt{Value: &UnaryExpr{Op: "-", Operand: &Ident{Name: "x"}}}},
				},
				&ReturnStmt{Value: &Ident{Name: "x"}},
			}},
		},
	}

	if err := RunOptimizer(prog, O3); err != nil {
		t.Fatalf("RunOptimizer: %v", err)
	}
	found := false
	for _, fn := range prog.Functions {
		if fn.Name == "abs_cold" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected partial-inlining to run at O3 and produce abs_cold")
	}
}
