package main

import "testing"

func TestBuiltinLenRequiresOneArgument(t *testing.T) {
	c := newTestCompiler()
	if err := builtinLen(c, &CallExpr{}); err == nil {
		t.Fatalf("expected len to require exactly one argument")
	}
}

func TestBuiltinGetWithConstantIndexFoldsOffset(t *testing.T) {
	c := newTestCompiler()
	c.frame.Alloc("xs")
	err := builtinGet(c, &CallExpr{Args: []Expr{&Ident{Name: "xs"}, &IntLit{Value: 2}}})
	if err != nil {
		t.Fatalf("builtinGet: %v", err)
	}
	if len(c.eb.Bytes()) == 0 {
		t.Fatalf("expected builtinGet to emit code for a constant-index load")
	}
}

func TestBuiltinGetWithDynamicIndexEmitsIndexMath(t *testing.T) {
	c := newTestCompiler()
	c.frame.Alloc("xs")
	c.frame.Alloc("i")
	err := builtinGet(c, &CallExpr{Args: []Expr{&Ident{Name: "xs"}, &Ident{Name: "i"}}})
	if err != nil {
		t.Fatalf("builtinGet: %v", err)
	}
	if len(c.eb.Bytes()) == 0 {
		t.Fatalf("expected builtinGet to emit code for a dynamic-index load")
	}
}

func TestBuiltinSetRequiresThreeArguments(t *testing.T) {
	c := newTestCompiler()
	err := builtinSet(c, &CallExpr{Args: []Expr{&Ident{Name: "xs"}, &IntLit{Value: 0}}})
	if err == nil {
		t.Fatalf("expected set to require (list, index, value)")
	}
}
