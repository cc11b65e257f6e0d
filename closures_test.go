package main

import "testing"

func TestLowerLambdaWithNoCapturesBuildsClosureObject(t *testing.T) {
	c := newTestCompiler()
	c.currentFunc = &FuncDecl{Name: "main"}
	lambda := &LambdaExpr{
		Params: nil,
		Body:   []Stmt{&ReturnStmt{Value: &IntLit{Value: 1}}},
	}
	if err := c.lowerLambda(lambda); err != nil {
		t.Fatalf("lowerLambda: %v", err)
	}
	if len(c.eb.Bytes()) == 0 {
		t.Fatalf("expected lowerLambda to emit both the lambda body and the allocation sequence")
	}
	if c.lastExprWasFloat {
		t.Fatalf("expected a closure pointer result, not a float")
	}
	if c.currentFunc.Name != "main" {
		t.Fatalf("expected the outer function context to be restored after lowering the lambda body")
	}
}

func TestLowerLambdaCopiesCapturedVariables(t *testing.T) {
	c := newTestCompiler()
	c.currentFunc = &FuncDecl{Name: "main"}
	c.frame.Alloc("n")
	lambda := &LambdaExpr{
		Captures: []string{"n"},
		Body:     []Stmt{&ReturnStmt{Value: &Ident{Name: "n"}}},
	}
	if err := c.lowerLambda(lambda); err != nil {
		t.Fatalf("lowerLambda: %v", err)
	}
	if len(c.eb.Bytes()) == 0 {
		t.Fatalf("expected code for the capture copy loop")
	}
}
