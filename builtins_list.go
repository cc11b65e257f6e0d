package main

// builtins_list.go grounds its addressing math on
// codegen_call_builtins_list_ext.cpp's emitListFirst/Last/Get/Reverse,
// adapted from that file's headerless list (pointer straight at element
// 0) to this target's pinned `[size(8)][capacity(8)][elem0(8)]...` layout
// (call.go's listHeaderSize/listElemOffset).

func builtinLen(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "len expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.MovMemToReg("rax", "rax", 0)
	c.lastExprWasFloat = false
	return nil
}

func builtinFirst(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "first expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.MovMemToReg("rax", "rax", listElemOffset)
	c.lastExprWasFloat = false
	return nil
}

// builtinLast loads the size word at runtime and indexes element
// size-1, since this builtin has no access to a compile-time-known
// length the way call.go's lowerListLiteral would.
func builtinLast(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "last expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.MovMemToReg("rdx", "rcx", 0) // size
	c.eb.DecReg("rdx")
	c.eb.ShlRegImm("rdx", 3)
	c.eb.AddImmToReg("rdx", listElemOffset)
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.MovMemToReg("rax", "rcx", 0)
	c.lastExprWasFloat = false
	return nil
}

func builtinGet(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 2 {
		return badInput(n.Pos, "get expects (list, index)")
	}
	if idx, ok := tryConstInt(n.Args[1]); ok {
		if err := c.lowerExpr(n.Args[0]); err != nil {
			return err
		}
		c.eb.MovMemToReg("rax", "rax", int32(listElemOffset+idx*8))
		c.lastExprWasFloat = false
		return nil
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.PushReg("rax")
	if err := c.lowerExpr(n.Args[1]); err != nil {
		return err
	}
	c.eb.ShlRegImm("rax", 3)
	c.eb.PopReg("rcx")
	c.eb.AddRegToReg("rax", "rcx")
	c.eb.MovMemToReg("rax", "rax", listElemOffset)
	c.lastExprWasFloat = false
	return nil
}

// builtinSet implements `set(list, index, value)`, the assignment
// counterpart builtinGet's indexing math mirrors.
func builtinSet(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 3 {
		return badInput(n.Pos, "set expects (list, index, value)")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.PushReg("rax")
	if err := c.lowerExpr(n.Args[1]); err != nil {
		return err
	}
	c.eb.ShlRegImm("rax", 3)
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.PopReg("rax")
	c.eb.AddRegToReg("rax", "rcx")
	c.eb.MovRegToReg("r15", "rax")

	if err := c.lowerExpr(n.Args[2]); err != nil {
		return err
	}
	if c.lastExprWasFloat {
		c.eb.MovsdXmmToMem("xmm0", "r15", listElemOffset)
	} else {
		c.eb.MovRegToMem("rax", "r15", listElemOffset)
	}
	c.lastExprWasFloat = false
	return nil
}

// builtinPush appends to a list whose backing allocation already has
// spare capacity (call.go's lowerListLiteral over-allocates to
// `capacity`); pushing past capacity is a sizing error this emitter does
// not check for at runtime (spec §9).
func builtinPush(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 2 {
		return badInput(n.Pos, "push expects (list, value)")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.PushReg("rax")
	if err := c.lowerExpr(n.Args[1]); err != nil {
		return err
	}
	c.eb.PopReg("rcx") // list pointer
	c.eb.MovMemToReg("rdx", "rcx", 0) // size
	c.eb.MovRegToReg("r15", "rdx")
	c.eb.ShlRegImm("r15", 3)
	c.eb.AddImmToReg("r15", listElemOffset)
	c.eb.AddRegToReg("r15", "rcx")
	if c.lastExprWasFloat {
		c.eb.MovsdXmmToMem("xmm0", "r15", 0)
	} else {
		c.eb.MovRegToMem("rax", "r15", 0)
	}
	c.eb.IncReg("rdx")
	c.eb.MovRegToMem("rdx", "rcx", 0)
	c.eb.MovRegToReg("rax", "rcx")
	c.lastExprWasFloat = false
	return nil
}

// builtinPop removes and returns the last element, decrementing size.
func builtinPop(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "pop expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.MovMemToReg("rdx", "rcx", 0)
	c.eb.DecReg("rdx")
	c.eb.MovRegToMem("rdx", "rcx", 0)
	c.eb.ShlRegImm("rdx", 3)
	c.eb.AddImmToReg("rdx", listElemOffset)
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.MovMemToReg("rax", "rcx", 0)
	c.lastExprWasFloat = false
	return nil
}

// builtinReverse allocates a fresh list of the same size and copies
// elements back-to-front, the runtime-size counterpart of
// emitListReverse's compile-time-known-size path.
func builtinReverse(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "reverse expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	srcOff := c.frame.Alloc(tempName(c, "rev_src"))
	c.eb.MovRegToMem("rax", "rbp", srcOff)
	c.eb.MovMemToReg("rcx", "rax", 0) // size

	sizeOff := c.frame.Alloc(tempName(c, "rev_size"))
	c.eb.MovRegToMem("rcx", "rbp", sizeOff)
	c.eb.MovRegToReg("rax", "rcx")
	c.eb.ShlRegImm("rax", 3)
	c.eb.AddImmToReg("rax", listHeaderSize)
	if err := c.emitGCAllocDynamicSize(); err != nil {
		return err
	}
	dstOff := c.frame.Alloc(tempName(c, "rev_dst"))
	c.eb.MovRegToMem("rax", "rbp", dstOff)
	c.eb.MovMemToReg("rcx", "rbp", sizeOff)
	c.eb.MovRegToMem("rcx", "rax", 0)
	c.eb.MovRegToMem("rcx", "rax", 8)

	idxOff := c.frame.Alloc(tempName(c, "rev_idx"))
	c.eb.XorRegToReg("rax", "rax")
	c.eb.MovRegToMem("rax", "rbp", idxOff)

	loopLabel := c.newLabel("reverse_loop")
	doneLabel := c.newLabel("reverse_done")
	c.eb.Label(loopLabel)
	c.eb.MovMemToReg("rax", "rbp", idxOff)
	c.eb.MovMemToReg("rcx", "rbp", sizeOff)
	c.eb.CmpRegToReg("rax", "rcx")
	c.eb.JumpConditional(JumpGreaterOrEqual, doneLabel)

	c.eb.MovMemToReg("rcx", "rbp", sizeOff)
	c.eb.SubRegToReg("rcx", "rax")
	c.eb.DecReg("rcx") // size-1-idx
	c.eb.ShlRegImm("rcx", 3)
	c.eb.MovMemToReg("rdx", "rbp", srcOff)
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.MovMemToReg("rcx", "rcx", listElemOffset) // src[size-1-idx]

	c.eb.MovMemToReg("rdx", "rbp", idxOff)
	c.eb.ShlRegImm("rdx", 3)
	c.eb.MovMemToReg("rax", "rbp", dstOff)
	c.eb.AddRegToReg("rdx", "rax")
	c.eb.MovRegToMem("rcx", "rdx", listElemOffset)

	c.eb.MovMemToReg("rax", "rbp", idxOff)
	c.eb.IncReg("rax")
	c.eb.MovRegToMem("rax", "rbp", idxOff)
	c.eb.JumpUnconditional(loopLabel)
	c.eb.Label(doneLabel)

	c.eb.MovMemToReg("rax", "rbp", dstOff)
	c.lastExprWasFloat = false
	return nil
}

// builtinAppend concatenates two lists into a freshly allocated one.
func builtinAppend(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 2 {
		return badInput(n.Pos, "append expects (list, list)")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	aOff := c.frame.Alloc(tempName(c, "append_a"))
	c.eb.MovRegToMem("rax", "rbp", aOff)
	if err := c.lowerExpr(n.Args[1]); err != nil {
		return err
	}
	bOff := c.frame.Alloc(tempName(c, "append_b"))
	c.eb.MovRegToMem("rax", "rbp", bOff)

	c.eb.MovMemToReg("rax", "rbp", aOff)
	c.eb.MovMemToReg("rcx", "rax", 0)
	c.eb.MovMemToReg("rax", "rbp", bOff)
	c.eb.MovMemToReg("rdx", "rax", 0)
	totalOff := c.frame.Alloc(tempName(c, "append_total"))
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.MovRegToMem("rcx", "rbp", totalOff)

	c.eb.MovRegToReg("rax", "rcx")
	c.eb.ShlRegImm("rax", 3)
	c.eb.AddImmToReg("rax", listHeaderSize)
	if err := c.emitGCAllocDynamicSize(); err != nil {
		return err
	}
	dstOff := c.frame.Alloc(tempName(c, "append_dst"))
	c.eb.MovRegToMem("rax", "rbp", dstOff)
	c.eb.MovMemToReg("rcx", "rbp", totalOff)
	c.eb.MovRegToMem("rcx", "rax", 0)
	c.eb.MovRegToMem("rcx", "rax", 8)

	c.copyListSpan(aOff, dstOff, 0)
	c.eb.MovMemToReg("rcx", "rbp", aOff)
	c.eb.MovMemToReg("rcx", "rcx", 0) // len(a)
	offOff := c.frame.Alloc(tempName(c, "append_off"))
	c.eb.MovRegToMem("rcx", "rbp", offOff)
	c.copyListSpanDynamic(bOff, dstOff, offOff)

	c.eb.MovMemToReg("rax", "rbp", dstOff)
	c.lastExprWasFloat = false
	return nil
}

// copyListSpan copies every element of the list at srcOff into dst
// starting at element index startIdx (a compile-time constant).
func (c *Compiler) copyListSpan(srcOff, dstOff int32, startIdx int) {
	loopLabel := c.newLabel("copy_loop")
	doneLabel := c.newLabel("copy_done")
	idxOff := c.frame.Alloc(tempName(c, "copy_idx"))
	c.eb.XorRegToReg("rax", "rax")
	c.eb.MovRegToMem("rax", "rbp", idxOff)

	c.eb.Label(loopLabel)
	c.eb.MovMemToReg("rax", "rbp", idxOff)
	c.eb.MovMemToReg("rcx", "rbp", srcOff)
	c.eb.MovMemToReg("rcx", "rcx", 0)
	c.eb.CmpRegToReg("rax", "rcx")
	c.eb.JumpConditional(JumpGreaterOrEqual, doneLabel)

	c.eb.MovMemToReg("rcx", "rbp", idxOff)
	c.eb.ShlRegImm("rcx", 3)
	c.eb.MovMemToReg("rdx", "rbp", srcOff)
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.MovMemToReg("rcx", "rcx", listElemOffset)

	c.eb.MovMemToReg("rdx", "rbp", idxOff)
	c.eb.AddImmToReg("rdx", int64(startIdx))
	c.eb.ShlRegImm("rdx", 3)
	c.eb.MovMemToReg("rax", "rbp", dstOff)
	c.eb.AddRegToReg("rdx", "rax")
	c.eb.MovRegToMem("rcx", "rdx", listElemOffset)

	c.eb.MovMemToReg("rax", "rbp", idxOff)
	c.eb.IncReg("rax")
	c.eb.MovRegToMem("rax", "rbp", idxOff)
	c.eb.JumpUnconditional(loopLabel)
	c.eb.Label(doneLabel)
}

// copyListSpanDynamic is copyListSpan's counterpart for a runtime-valued
// starting offset held in the local named by startOff.
func (c *Compiler) copyListSpanDynamic(srcOff, dstOff, startOff int32) {
	loopLabel := c.newLabel("copy_dyn_loop")
	doneLabel := c.newLabel("copy_dyn_done")
	idxOff := c.frame.Alloc(tempName(c, "copy_dyn_idx"))
	c.eb.XorRegToReg("rax", "rax")
	c.eb.MovRegToMem("rax", "rbp", idxOff)

	c.eb.Label(loopLabel)
	c.eb.MovMemToReg("rax", "rbp", idxOff)
	c.eb.MovMemToReg("rcx", "rbp", srcOff)
	c.eb.MovMemToReg("rcx", "rcx", 0)
	c.eb.CmpRegToReg("rax", "rcx")
	c.eb.JumpConditional(JumpGreaterOrEqual, doneLabel)

	c.eb.MovMemToReg("rcx", "rbp", idxOff)
	c.eb.ShlRegImm("rcx", 3)
	c.eb.MovMemToReg("rdx", "rbp", srcOff)
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.MovMemToReg("rcx", "rcx", listElemOffset)

	c.eb.MovMemToReg("rdx", "rbp", idxOff)
	c.eb.MovMemToReg("rax", "rbp", startOff)
	c.eb.AddRegToReg("rdx", "rax")
	c.eb.ShlRegImm("rdx", 3)
	c.eb.MovMemToReg("rax", "rbp", dstOff)
	c.eb.AddRegToReg("rdx", "rax")
	c.eb.MovRegToMem("rcx", "rdx", listElemOffset)

	c.eb.MovMemToReg("rax", "rbp", idxOff)
	c.eb.IncReg("rax")
	c.eb.MovRegToMem("rax", "rbp", idxOff)
	c.eb.JumpUnconditional(loopLabel)
	c.eb.Label(doneLabel)
}

// copySliceSpan copies exactly countOff elements from src starting at
// index loOff into dst starting at index 0 — the bounded form slice()
// needs, where the span length is independent of either list's own
// stored size word.
func (c *Compiler) copySliceSpan(srcOff, dstOff, loOff, countOff int32) {
	loopLabel := c.newLabel("slice_copy_loop")
	doneLabel := c.newLabel("slice_copy_done")
	idxOff := c.frame.Alloc(tempName(c, "slice_copy_idx"))
	c.eb.XorRegToReg("rax", "rax")
	c.eb.MovRegToMem("rax", "rbp", idxOff)

	c.eb.Label(loopLabel)
	c.eb.MovMemToReg("rax", "rbp", idxOff)
	c.eb.MovMemToReg("rcx", "rbp", countOff)
	c.eb.CmpRegToReg("rax", "rcx")
	c.eb.JumpConditional(JumpGreaterOrEqual, doneLabel)

	c.eb.MovMemToReg("rcx", "rbp", idxOff)
	c.eb.MovMemToReg("rdx", "rbp", loOff)
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.ShlRegImm("rcx", 3)
	c.eb.MovMemToReg("rdx", "rbp", srcOff)
	c.eb.AddRegToReg("rcx", "rdx")
	c.eb.MovMemToReg("rcx", "rcx", listElemOffset)

	c.eb.MovMemToReg("rdx", "rbp", idxOff)
	c.eb.ShlRegImm("rdx", 3)
	c.eb.MovMemToReg("rax", "rbp", dstOff)
	c.eb.AddRegToReg("rdx", "rax")
	c.eb.MovRegToMem("rcx", "rdx", listElemOffset)

	c.eb.MovMemToReg("rax", "rbp", idxOff)
	c.eb.IncReg("rax")
	c.eb.MovRegToMem("rax", "rbp", idxOff)
	c.eb.JumpUnconditional(loopLabel)
	c.eb.Label(doneLabel)
}

// builtinSlice implements `slice(list, lo, hi)` (exclusive hi), copying
// the requested span into a fresh list.
func builtinSlice(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 3 {
		return badInput(n.Pos, "slice expects (list, lo, hi)")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	srcOff := c.frame.Alloc(tempName(c, "slice_src"))
	c.eb.MovRegToMem("rax", "rbp", srcOff)
	if err := c.lowerExpr(n.Args[1]); err != nil {
		return err
	}
	loOff := c.frame.Alloc(tempName(c, "slice_lo"))
	c.eb.MovRegToMem("rax", "rbp", loOff)
	if err := c.lowerExpr(n.Args[2]); err != nil {
		return err
	}
	hiOff := c.frame.Alloc(tempName(c, "slice_hi"))
	c.eb.MovRegToMem("rax", "rbp", hiOff)

	countOff := c.frame.Alloc(tempName(c, "slice_count"))
	c.eb.MovMemToReg("rax", "rbp", hiOff)
	c.eb.MovMemToReg("rcx", "rbp", loOff)
	c.eb.SubRegToReg("rax", "rcx")
	c.eb.MovRegToMem("rax", "rbp", countOff)
	c.eb.ShlRegImm("rax", 3)
	c.eb.AddImmToReg("rax", listHeaderSize)
	if err := c.emitGCAllocDynamicSize(); err != nil {
		return err
	}
	dstOff := c.frame.Alloc(tempName(c, "slice_dst"))
	c.eb.MovRegToMem("rax", "rbp", dstOff)
	c.eb.MovMemToReg("rcx", "rbp", countOff)
	c.eb.MovRegToMem("rcx", "rax", 0)
	c.eb.MovRegToMem("rcx", "rax", 8)

	c.copySliceSpan(srcOff, dstOff, loOff, countOff)
	c.eb.MovMemToReg("rax", "rbp", dstOff)
	c.lastExprWasFloat = false
	return nil
}

// emitGCAllocDynamicSize allocates a runtime-computed byte count already
// sitting in rax, the list/map/append/slice builtins' shared tail.
func (c *Compiler) emitGCAllocDynamicSize() error {
	if c.currentArena > 0 {
		c.emitArenaAllocDynamic()
		return nil
	}
	c.eb.MovRegToReg("rcx", "rax")
	symbol := c.gc.AllocSymbol("gc_alloc_list")
	c.markGCSymbolUsed(symbol)
	c.eb.CallSymbol(symbol)
	return nil
}
