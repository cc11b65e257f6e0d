package main

import "testing"

func TestBuiltinMutexNewImportsCreateMutexA(t *testing.T) {
	c := NewCompiler(&Program{}, CompileOptions{}, nil, nil, nil)
	if err := builtinMutexNew(c, &CallExpr{}); err != nil {
		t.Fatalf("builtinMutexNew: %v", err)
	}
	if !c.hasImport("CreateMutexA") {
		t.Fatalf("expected CreateMutexA to be registered as a kernel32 import")
	}
	if dll := c.dllImports["__imp_CreateMutexA"]; dll != "kernel32.dll" {
		t.Fatalf("expected CreateMutexA to come from kernel32.dll, got %q", dll)
	}
	if len(c.eb.Bytes()) == 0 {
		t.Fatalf("expected builtinMutexNew to emit code")
	}
}

func TestBuiltinRwlockNewImportsInitializeSRWLock(t *testing.T) {
	c := NewCompiler(&Program{}, CompileOptions{}, nil, nil, nil)
	if err := builtinRwlockNew(c, &CallExpr{}); err != nil {
		t.Fatalf("builtinRwlockNew: %v", err)
	}
	if !c.hasImport("InitializeSRWLock") {
		t.Fatalf("expected InitializeSRWLock to be registered as a kernel32 import")
	}
}

func TestBuiltinLockRequiresExactlyOneArgument(t *testing.T) {
	c := NewCompiler(&Program{}, CompileOptions{}, nil, nil, nil)
	if err := builtinLock(c, &CallExpr{}); err == nil {
		t.Fatalf("expected an error when lock is called without a mutex argument")
	}
}
