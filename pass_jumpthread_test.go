package main

import "testing"

func TestJumpThreadFoldsKnownConstantBranch(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&VarDecl{Name: "x", Init: &IntLit{Value: 5}},
				&IfStmt{
					Cond: &BinaryExpr{Op: "==", Left: &Ident{Name: "x"}, Right: &IntLit{Value: 5}},
					Then: []Stmt{&ReturnStmt{Value: &IntLit{Value: 1}}},
					Else: []Stmt{&ReturnStmt{Value: &IntLit{Value: 2}}},
				},
			}},
		},
	}

	changed, err := (&JumpThreadPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed == 0 {
		t.Fatalf("expected the known-true condition to be folded")
	}
}

func TestJumpThreadEliminatesDeadWhile(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&WhileStmt{
					Cond: &BoolLit{Value: false},
					Body: []Stmt{&ReturnStmt{Value: &IntLit{Value: 1}}},
				},
				&ReturnStmt{Value: &IntLit{Value: 0}},
			}},
		},
	}

	if _, err := (&JumpThreadPass{}).Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	main := prog.Functions[0]
	for _, s := range main.Body {
		if _, ok := s.(*WhileStmt); ok {
			t.Fatalf("expected a while(false) loop to be eliminated")
		}
	}
}
