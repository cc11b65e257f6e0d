package main

import "testing"

func TestEmitArenaBlockRestoresDepthAfterward(t *testing.T) {
	c := newTestCompiler()
	stmt := &ArenaStmt{Scope: ArenaBlock, Body: []Stmt{&ReturnStmt{}}}
	if _, err := c.emitArenaBlock(stmt); err != nil {
		t.Fatalf("emitArenaBlock: %v", err)
	}
	if c.currentArena != 0 {
		t.Fatalf("expected currentArena to be restored to 0 after the block, got %d", c.currentArena)
	}
}

func TestEmitArenaAllocBumpsCachedPointer(t *testing.T) {
	c := newTestCompiler()
	curLocal := "__arena_cur_1"
	c.frame.Alloc(curLocal)
	c.currentArena = 1
	before := len(c.eb.Bytes())
	c.emitArenaAlloc(64)
	if len(c.eb.Bytes()) <= before {
		t.Fatalf("expected emitArenaAlloc to emit the bump-pointer update")
	}
}

func TestEmitGCAllocRoutesThroughArenaWhenActive(t *testing.T) {
	c := newTestCompiler()
	c.frame.Alloc("__arena_cur_1")
	c.currentArena = 1
	if err := c.emitGCAlloc("gc_alloc_raw", 32); err != nil {
		t.Fatalf("emitGCAlloc: %v", err)
	}
	for _, s := range c.gcSymbolsUsed {
		if s == "gc_alloc_raw" {
			t.Fatalf("expected an active arena to bypass the gc_alloc_raw call entirely")
		}
	}
}
