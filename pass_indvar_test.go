package main

import "testing"

func TestIndVarSimplifyReducesAccumulationLoop(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "sum_range", Body: []Stmt{
				&VarDecl{Name: "acc", Init: &IntLit{Value: 0}},
				&ForRangeStmt{
					Var:       "i",
					Lo:        &IntLit{Value: 1},
					Hi:        &IntLit{Value: 10},
					Inclusive: true,
					Body: []Stmt{
						&AssignStmt{Target: &Ident{Name: "acc"}, Op: "+=", Value: &Ident{Name: "i"}},
					},
				},
				&ReturnStmt{Value: &Ident{Name: "acc"}},
			}},
		},
	}

	changed, err := (&IndVarSimplifyPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected exactly one loop to be reduced, got %d", changed)
	}

	fn := prog.Functions[0]
	for _, s := range fn.Body {
		if _, ok := s.(*ForRangeStmt); ok {
			t.Fatalf("expected the loop to be replaced by a closed-form sum")
		}
	}
	assign, ok := fn.Body[1].(*AssignStmt)
	if !ok || assign.Op != "+=" {
		t.Fatalf("expected a single += statement in the loop's place, got %#v", fn.Body[1])
	}

	// Gauss's formula for 1..=10: 10*1 + 10*9/2 = 10 + 45 = 55.
	const want = 55
	if got := evalConstIntExpr(t, assign.Value); got != want {
		t.Fatalf("expected the closed-form sum to evaluate to %d, got %d", want, got)
	}
}

// evalConstIntExpr evaluates the all-constant BinaryExpr/IntLit tree
// tryClosedForm builds, to confirm the Gauss closed-form arithmetic itself
// is correct, not just its shape.
func evalConstIntExpr(t *testing.T, e Expr) int64 {
	t.Helper()
	switch n := e.(type) {
	case *IntLit:
		return n.Value
	case *BinaryExpr:
		l, r := evalConstIntExpr(t, n.Left), evalConstIntExpr(t, n.Right)
		switch n.Op {
		case "+":
			return l + r
		case "-":
			return l - r
		case "*":
			return l * r
		case "/":
			return l / r
		default:
			t.Fatalf("unexpected operator %q in closed-form expression", n.Op)
		}
	default:
		t.Fatalf("unexpected node %#v in closed-form expression", e)
	}
	return 0
}

func TestIndVarSimplifyLeavesNonAccumulationLoopAlone(t *testing.T) {
	prog := &Program{
		Functions: []*FuncDecl{
			{Name: "print_range", Body: []Stmt{
				&ForRangeStmt{
					Var: "i", Lo: &IntLit{Value: 0}, Hi: &IntLit{Value: 5},
					Body: []Stmt{
						&ExprStmt{X: &CallExpr{Callee: &Ident{Name: "print_int"}, Args: []Expr{&Ident{Name: "i"}}}},
					},
				},
			}},
		},
	}

	changed, err := (&IndVarSimplifyPass{}).Run(prog)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected no reduction for a non-accumulation loop body")
	}
}
