package main

import "fmt"

// ArenaScope tags the lifetime an `arena { ... }` block is nominally
// attached to (SPEC_FULL.md §9 supplemented features). The emitter does not
// look at Scope: every scope is accepted without a special case, and a
// front end that asks for a frame- or function-wide arena gets the same
// bump-allocator behavior as a bare block.
type ArenaScope int

const (
	ArenaGlobal ArenaScope = iota
	ArenaFrame
	ArenaFunction
	ArenaBlock
)

// DefaultArenaSize is the single upfront gc_alloc_raw request an `arena {}`
// block makes; there is no growth path, trading the teacher's
// exponentially-growing arena (ArenaGrowthNumerator/Denominator) for one
// fixed region per block, consistent with this target's "nothing ever
// grows, nothing is ever freed early" GC story (builtins_gc.go).
const DefaultArenaSize = 1 * 1024 * 1024

// emitArenaBlock lowers `arena { ... }`: bump-allocates DefaultArenaSize
// bytes once via gc_alloc_raw, then lowers Body with every nested
// allocation (list/record/map/closure construction, and explicit
// gc_alloc_raw calls) routed through the arena's bump pointer instead of a
// fresh heap call — see emitGCAlloc's currentArena branch in
// builtins_gc.go. The arena is never explicitly freed: spec §9's "what
// does bulk free mean under a GC that never collects" is resolved by
// letting the backing allocation simply become unreachable once
// c.currentArena drops back below this block's depth; gc_collect is a
// no-op (runtime.go), so there is no separate release step to emit.
func (c *Compiler) emitArenaBlock(stmt *ArenaStmt) (bool, error) {
	depth := c.currentArena + 1
	curLocal := fmt.Sprintf("__arena_cur_%d", depth)
	c.frame.Alloc(curLocal)

	if err := c.emitGCAlloc("gc_alloc_raw", DefaultArenaSize); err != nil {
		return false, err
	}
	curOff, _ := c.frame.OffsetOf(curLocal)
	c.eb.MovRegToMem("rax", "rbp", curOff)

	c.currentArena = depth
	terminated, err := c.lowerStmts(stmt.Body)
	c.currentArena = depth - 1
	return terminated, err
}

// lowerArenaExpr lowers the expression-producing form: same bump-allocated
// region as emitArenaBlock, but its value is Result rather than a
// fall-through; the arena's own allocations and Body's statements are
// identical, only the trailing expression differs.
func (c *Compiler) lowerArenaExpr(n *ArenaExpr) error {
	depth := c.currentArena + 1
	curLocal := fmt.Sprintf("__arena_cur_%d", depth)
	c.frame.Alloc(curLocal)

	if err := c.emitGCAlloc("gc_alloc_raw", DefaultArenaSize); err != nil {
		return err
	}
	curOff, _ := c.frame.OffsetOf(curLocal)
	c.eb.MovRegToMem("rax", "rbp", curOff)

	c.currentArena = depth
	if _, err := c.lowerStmts(n.Body); err != nil {
		c.currentArena = depth - 1
		return err
	}
	err := c.lowerExpr(n.Result)
	c.currentArena = depth - 1
	return err
}

// emitArenaAlloc bump-allocates a compile-time-known size from the
// innermost active arena, leaving the allocation's pointer in rax. Arena
// exhaustion is not bounds-checked: spec §9 treats it as a program sizing
// error, not a condition this emitter inserts runtime checks for.
func (c *Compiler) emitArenaAlloc(size int) {
	curLocal := fmt.Sprintf("__arena_cur_%d", c.currentArena)
	curOff, _ := c.frame.OffsetOf(curLocal)
	c.eb.MovMemToReg("rax", "rbp", curOff)
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.AddImmToReg("rcx", int64(size))
	c.eb.MovRegToMem("rcx", "rbp", curOff)
}

// emitArenaAllocDynamic is emitArenaAlloc's counterpart for a
// runtime-computed size already sitting in rax (the gc_alloc_raw builtin
// called with a non-constant argument inside an arena block).
func (c *Compiler) emitArenaAllocDynamic() {
	curLocal := fmt.Sprintf("__arena_cur_%d", c.currentArena)
	curOff, _ := c.frame.OffsetOf(curLocal)
	c.eb.MovRegToReg("rdx", "rax")
	c.eb.MovMemToReg("rax", "rbp", curOff)
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.MovRegToMem("rcx", "rbp", curOff)
}
