package main

import "testing"

func TestDeadArgElimDropsUnusedParamEverywhere(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "add", Params: []Param{{Name: "a"}, {Name: "unused"}, {Name: "b"}}, Body: []Stmt{
				&ReturnStmt{Value: &BinaryExpr{Op: "+", Left: &Ident{Name: "a"}, Right: &Ident{Name: "b"}}},
			}},
			{Name: "main", Body: []Stmt{
				&ReturnStmt{Value: &CallExpr{
					Callee: &Ident{Name: "add"},
					Args:   []Expr{&IntLit{Value: 1}, &IntLit{Value: 99}, &IntLit{Value: 2}},
				}},
			}},
		},
	}

	changed, err := (&DeadArgElimPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected one function to lose a parameter, got %d", changed)
	}

	add := prog.Functions[0]
	if len(add.Params) != 2 {
		t.Fatalf("expected 2 remaining params, got %d", len(add.Params))
	}

	call := prog.Functions[1].Body[0].(*ReturnStmt).Value.(*CallExpr)
	if len(call.Args) != 2 {
		t.Fatalf("expected the call site to drop the corresponding argument, got %d args", len(call.Args))
	}
	first := call.Args[0].(*IntLit)
	second := call.Args[1].(*IntLit)
	if first.Value != 1 || second.Value != 2 {
		t.Fatalf("expected the middle argument (99) to be dropped, got %d, %d", first.Value, second.Value)
	}
}

func TestDeadArgElimSkipsExternFunction(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "ExitProcess", IsExtern: true, Params: []Param{{Name: "code"}}, Body: nil},
		},
	}
	changed, err := (&DeadArgElimPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected extern functions to be left alone")
	}
	if len(prog.Functions[0].Params) != 1 {
		t.Fatalf("expected extern function's params untouched")
	}
}
