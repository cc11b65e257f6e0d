package main

import "testing"

func hasOpcodeByte(code []byte, b byte) bool {
	for _, c := range code {
		if c == b {
			return true
		}
	}
	return false
}

func TestEmitFunctionSkipsPrologueForZeroLocalLeaf(t *testing.T) {
	c := newTestCompiler()
	fn := &FuncDecl{Name: "answer", Body: []Stmt{&ReturnStmt{Value: &IntLit{Value: 42}}}}
	if err := c.emitFunction(fn); err != nil {
		t.Fatalf("emitFunction: %v", err)
	}
	code := c.eb.Bytes()
	if hasOpcodeByte(code, 0x55) {
		t.Fatalf("expected no push rbp (0x55) opcode for a zero-local, zero-call, zero-param leaf, got % X", code)
	}
	if !c.frame.noFrame {
		t.Fatalf("expected the frame to be planned as noFrame")
	}
}

func TestEmitFunctionKeepsPrologueWhenParametersExist(t *testing.T) {
	c := newTestCompiler()
	fn := &FuncDecl{
		Name:   "id",
		Params: []Param{{Name: "x"}},
		Body:   []Stmt{&ReturnStmt{Value: &Ident{Name: "x"}}},
	}
	if err := c.emitFunction(fn); err != nil {
		t.Fatalf("emitFunction: %v", err)
	}
	if c.frame.noFrame {
		t.Fatalf("expected a function with a parameter to keep its rbp prologue")
	}
	if !hasOpcodeByte(c.eb.Bytes(), 0x55) {
		t.Fatalf("expected a push rbp (0x55) opcode once the function has a parameter")
	}
}

func TestEmitFunctionKeepsPrologueWhenBodyHasLocalsOrCalls(t *testing.T) {
	c := newTestCompiler()
	fn := &FuncDecl{
		Name: "greet",
		Body: []Stmt{
			&ExprStmt{X: &CallExpr{Callee: &Ident{Name: "print_int"}, Args: []Expr{&IntLit{Value: 1}}}},
			&ReturnStmt{},
		},
	}
	if err := c.emitFunction(fn); err != nil {
		t.Fatalf("emitFunction: %v", err)
	}
	if c.frame.noFrame {
		t.Fatalf("expected a function with a call to keep its rbp prologue")
	}
}

func TestFramePlanNoFrameRequiresNoSavedRegs(t *testing.T) {
	f := NewFrame()
	f.Plan(nil, []string{"rbx"}, false, false)
	if f.noFrame {
		t.Fatalf("expected a function with callee-saved registers to keep its prologue")
	}
}
