package main

import "testing"

func TestDCEDropsUnreachableFunction(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&ExprStmt{X: &CallExpr{Callee: &Ident{Name: "used"}}},
			}},
			{Name: "used", Body: []Stmt{&ReturnStmt{Value: &IntLit{Value: 1}}}},
			{Name: "unreachable", Body: []Stmt{&ReturnStmt{Value: &IntLit{Value: 2}}}},
		},
	}

	pass := &DCEPass{}
	changed, err := pass.Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed == 0 {
		t.Fatalf("expected at least one change")
	}
	for _, fn := range prog.Functions {
		if fn.Name == "unreachable" {
			t.Fatalf("expected unreachable function to be dropped")
		}
	}
}

func TestDCEKeepsAddressTakenFunction(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{&ReturnStmt{}}},
			{Name: "callback", AddressTaken: true, Body: []Stmt{&ReturnStmt{}}},
		},
	}

	if _, err := (&DCEPass{}).Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, fn := range prog.Functions {
		if fn.Name == "callback" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected address-taken function to survive DCE")
	}
}

func TestDCEDropsStatementsAfterReturn(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&ReturnStmt{Value: &IntLit{Value: 1}},
				&ExprStmt{X: &CallExpr{Callee: &Ident{Name: "dead"}}},
			}},
			{Name: "dead", Body: []Stmt{&ReturnStmt{}}},
		},
	}

	if _, err := (&DCEPass{}).Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	main := prog.Functions[0]
	if len(main.Body) != 1 {
		t.Fatalf("expected dead tail statement to be dropped, got %d statements", len(main.Body))
	}
}
