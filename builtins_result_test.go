package main

import (
	"bytes"
	"testing"
)

func TestBuiltinOkAndErrTagBit(t *testing.T) {
	c := newTestCompiler()
	if err := builtinOk(c, &CallExpr{Args: []Expr{&IntLit{Value: 41}}}); err != nil {
		t.Fatalf("builtinOk: %v", err)
	}
	if len(c.eb.Bytes()) == 0 {
		t.Fatalf("expected builtinOk to emit a shift+or sequence")
	}
	// Ok ends with `or rax, 1`, setting the tag bit.
	if !bytes.HasSuffix(c.eb.Bytes(), []byte{0x48, 0x83, 0xC8, 0x01}) {
		t.Fatalf("expected builtinOk to end with `or rax, 1`, got % X", c.eb.Bytes())
	}

	c2 := newTestCompiler()
	if err := builtinErr(c2, &CallExpr{Args: []Expr{&IntLit{Value: 1}}}); err != nil {
		t.Fatalf("builtinErr: %v", err)
	}
	if len(c2.eb.Bytes()) == 0 {
		t.Fatalf("expected builtinErr to emit a shift-only sequence")
	}
	// Err ends with `shl rax, 1`, leaving the tag bit clear.
	if !bytes.HasSuffix(c2.eb.Bytes(), []byte{0x48, 0xD1, 0xE0}) {
		t.Fatalf("expected builtinErr to end with `shl rax, 1`, got % X", c2.eb.Bytes())
	}
}

func TestBuiltinResultArgCounts(t *testing.T) {
	c := newTestCompiler()
	if err := builtinUnwrapOr(c, &CallExpr{Args: []Expr{&IntLit{Value: 1}}}); err == nil {
		t.Fatalf("expected unwrap_or to require two arguments")
	}
	if err := builtinIsOk(c, &CallExpr{}); err == nil {
		t.Fatalf("expected is_ok to require one argument")
	}
}

func TestBuiltinUnwrapOrEmitsBothBranchLabels(t *testing.T) {
	c := newTestCompiler()
	err := builtinUnwrapOr(c, &CallExpr{Args: []Expr{&IntLit{Value: 3}, &IntLit{Value: 9}}})
	if err != nil {
		t.Fatalf("builtinUnwrapOr: %v", err)
	}
	if len(c.eb.Bytes()) == 0 {
		t.Fatalf("expected builtinUnwrapOr to emit code for both branches")
	}
}
