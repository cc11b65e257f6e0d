package main

import "testing"

func newTestCompiler() *Compiler {
	return NewCompiler(&Program{}, CompileOptions{}, nil, nil, nil)
}

func TestBuiltinAbsFoldsConstantInt(t *testing.T) {
	c := newTestCompiler()
	if err := builtinAbs(c, &CallExpr{Args: []Expr{&IntLit{Value: -7}}}); err != nil {
		t.Fatalf("builtinAbs: %v", err)
	}
	if c.lastExprWasFloat {
		t.Fatalf("expected an int result")
	}
	if len(c.eb.Bytes()) == 0 {
		t.Fatalf("expected builtinAbs to emit a mov of the folded constant")
	}
}

func TestBuiltinAbsFoldsConstantFloat(t *testing.T) {
	c := newTestCompiler()
	if err := builtinAbs(c, &CallExpr{Args: []Expr{&FloatLit{Value: -2.5}}}); err != nil {
		t.Fatalf("builtinAbs: %v", err)
	}
	if !c.lastExprWasFloat {
		t.Fatalf("expected a float result")
	}
}

func TestBuiltinSqrtFoldsConstant(t *testing.T) {
	c := newTestCompiler()
	if err := builtinSqrt(c, &CallExpr{Args: []Expr{&FloatLit{Value: 9}}}); err != nil {
		t.Fatalf("builtinSqrt: %v", err)
	}
	if !c.lastExprWasFloat {
		t.Fatalf("expected a float result")
	}
}

func TestBuiltinSinRejectsNonConstantArgument(t *testing.T) {
	c := newTestCompiler()
	err := builtinSin(c, &CallExpr{Args: []Expr{&Ident{Name: "x"}}})
	if err == nil {
		t.Fatalf("expected sin of a non-constant argument to be rejected in this build")
	}
}

func TestBuiltinMinFoldsConstants(t *testing.T) {
	c := newTestCompiler()
	if err := builtinMin(c, &CallExpr{Args: []Expr{&IntLit{Value: 5}, &IntLit{Value: 2}}}); err != nil {
		t.Fatalf("builtinMin: %v", err)
	}
}

func TestBuiltinPowRejectsNegativeExponentOnRuntimeBase(t *testing.T) {
	c := newTestCompiler()
	err := builtinPow(c, &CallExpr{Args: []Expr{&Ident{Name: "x"}, &IntLit{Value: -1}}})
	if err == nil {
		t.Fatalf("expected a negative runtime exponent to be rejected")
	}
}

func TestGcdConstHandlesNegativeInputs(t *testing.T) {
	if got := gcdConst(-12, 18); got != 6 {
		t.Fatalf("gcdConst(-12, 18) = %d, want 6", got)
	}
}
