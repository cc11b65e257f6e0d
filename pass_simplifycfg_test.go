package main

import "testing"

func TestSimplifyCFGDropsEmptyPureIf(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&IfStmt{Cond: &Ident{Name: "x"}},
				&ReturnStmt{Value: &IntLit{Value: 0}},
			}},
		},
	}

	changed, err := (&SimplifyCFGPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed == 0 {
		t.Fatalf("expected the empty if to be dropped")
	}
	main := prog.Functions[0]
	if len(main.Body) != 1 {
		t.Fatalf("expected only the return statement to remain, got %d", len(main.Body))
	}
}

func TestSimplifyCFGFlattensNestedIf(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "main", Body: []Stmt{
				&IfStmt{
					Cond: &Ident{Name: "a"},
					Then: []Stmt{
						&IfStmt{
							Cond: &Ident{Name: "b"},
							Then: []Stmt{&ReturnStmt{Value: &IntLit{Value: 1}}},
						},
					},
				},
			}},
		},
	}

	if _, err := (&SimplifyCFGPass{}).Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	outer, ok := prog.Functions[0].Body[0].(*IfStmt)
	if !ok {
		t.Fatalf("expected an IfStmt to remain")
	}
	if _, nested := outer.Cond.(*BinaryExpr); !nested {
		t.Fatalf("expected the nested if's condition to be folded into a && expression")
	}
	if len(outer.Then) != 1 {
		t.Fatalf("expected the inner if's body to become the outer if's body")
	}
}
