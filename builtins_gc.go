package main

// GCRuntime is the external-but-inlined-as-stubs collaborator spec §3
// names: the emitter trampolines into a process-wide heap via
// gc_alloc_list/gc_alloc_record/gc_alloc_closure/gc_alloc_map/gc_alloc_raw
// and gc_collect. The actual allocator/collector implementation lives
// outside this repository; what this file owns is the calling convention
// and the object-header shape those stubs assume (spec §6: 16 bytes
// preceding the payload, a flags byte at offset -9 with bit 0 = pinned).
type GCRuntime interface {
	// AllocSymbol returns the runtime-exported symbol name for a given
	// allocation kind, so call.go/closures.go never hard-code a string.
	AllocSymbol(kind string) string
}

type defaultGCRuntime struct{}

func NewDefaultGCRuntime() GCRuntime { return defaultGCRuntime{} }

func (defaultGCRuntime) AllocSymbol(kind string) string {
	return kind // gc_alloc_list, gc_alloc_record, gc_alloc_closure, gc_alloc_map, gc_alloc_raw
}

// objectHeaderSize is the 16-byte header preceding every GC-allocated
// payload (spec §6).
const objectHeaderSize = 16

// flagsByteOffset is the flags byte's offset relative to the payload
// pointer a gc_alloc_* stub returns: -9, i.e. nine bytes before the
// payload, the last byte of the header's first 8-byte word (spec §6,
// bit 0 = pinned).
const flagsByteOffset = -9

// emitGCAlloc loads the requested payload size into RCX, calls the named
// allocation stub, and leaves the payload pointer in RAX. size excludes
// the 16-byte object header; the GC collaborator is responsible for
// prepending it.
func (c *Compiler) emitGCAlloc(kind string, size int) error {
	if c.currentArena > 0 {
		c.emitArenaAlloc(size)
		return nil
	}
	symbol := c.gc.AllocSymbol(kind)
	c.markGCSymbolUsed(symbol)
	c.eb.MovImmToReg("rcx", int64(size))
	c.eb.CallSymbol(symbol)
	return nil
}

// markGCSymbolUsed records that runtime.go must emit a body for symbol
// among the shared runtime snippets; gc_alloc_*/gc_collect are
// runtime-local labels bound directly in code, never PE imports, so they
// are tracked separately from c.importedFunctions/emitImportThunks.
func (c *Compiler) markGCSymbolUsed(symbol string) {
	for _, s := range c.gcSymbolsUsed {
		if s == symbol {
			return
		}
	}
	c.gcSymbolsUsed = append(c.gcSymbolsUsed, symbol)
}

// builtinGCAllocRaw is the `gc_alloc_raw` builtin: an untyped allocation of a
// caller-given byte count, used directly by arena.go's gc-backed arenas
// and by record/list/map/closure construction in call.go/closures.go.
func builtinGCAllocRaw(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "gc_alloc_raw expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	if c.currentArena > 0 {
		c.emitArenaAllocDynamic()
		c.lastExprWasFloat = false
		return nil
	}
	c.eb.MovRegToReg("rcx", "rax")
	symbol := c.gc.AllocSymbol("gc_alloc_raw")
	c.markGCSymbolUsed(symbol)
	c.eb.CallSymbol(symbol)
	c.lastExprWasFloat = false
	return nil
}

func builtinGCCollect(c *Compiler, n *CallExpr) error {
	c.markGCSymbolUsed("gc_collect")
	c.eb.CallSymbol("gc_collect")
	c.lastExprWasFloat = false
	return nil
}

// builtinGCAllocList is the front-end-callable form of `gc_alloc_list(n)`:
// allocate room for n elements under the list layout (call.go) and write
// the size/capacity header words.
func builtinGCAllocList(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "gc_alloc_list expects exactly one argument")
	}
	if count, ok := tryConstInt(n.Args[0]); ok {
		if err := c.emitGCAlloc("gc_alloc_list", listHeaderSize+int(count)*8); err != nil {
			return err
		}
		c.eb.MovImmToReg("rcx", 0)
		c.eb.MovRegToMem("rcx", "rax", 0)
		c.eb.MovImmToReg("rcx", count)
		c.eb.MovRegToMem("rcx", "rax", 8)
		c.lastExprWasFloat = false
		return nil
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.MovRegToReg("rdx", "rax")
	c.eb.ShlRegImm("rdx", 3)
	c.eb.AddImmToReg("rdx", listHeaderSize)
	c.eb.PushReg("rax") // requested capacity, for the header write below
	if c.currentArena > 0 {
		c.eb.MovRegToReg("rax", "rdx")
		c.emitArenaAllocDynamic()
	} else {
		c.eb.MovRegToReg("rcx", "rdx")
		symbol := c.gc.AllocSymbol("gc_alloc_list")
		c.markGCSymbolUsed(symbol)
		c.eb.CallSymbol(symbol)
	}
	c.eb.PopReg("rcx") // capacity
	c.eb.MovImmToReg("rdx", 0)
	c.eb.MovRegToMem("rdx", "rax", 0)
	c.eb.MovRegToMem("rcx", "rax", 8)
	c.lastExprWasFloat = false
	return nil
}

// builtinGCAllocMap allocates a chained-bucket map with the requested
// bucket count (call.go's emitMapInsert owns entry insertion).
func builtinGCAllocMap(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "gc_alloc_map expects exactly one argument")
	}
	if count, ok := tryConstInt(n.Args[0]); ok {
		if err := c.emitGCAlloc("gc_alloc_map", mapHeaderSize+int(count)*8); err != nil {
			return err
		}
		c.eb.MovImmToReg("rcx", count)
		c.eb.MovRegToMem("rcx", "rax", 0)
		c.eb.MovImmToReg("rcx", 0)
		c.eb.MovRegToMem("rcx", "rax", 8)
		c.lastExprWasFloat = false
		return nil
	}
	return badInput(n.Pos, "gc_alloc_map requires a compile-time-constant bucket count")
}

// builtinGCAllocRecord allocates size raw bytes (caller-given, matching
// the record layout's ComputeLayout total, types.go); distinguished from
// gc_alloc_raw only by GC bookkeeping symbol, not by shape.
func builtinGCAllocRecord(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "gc_alloc_record expects exactly one argument")
	}
	if size, ok := tryConstInt(n.Args[0]); ok {
		c.lastExprWasFloat = false
		return c.emitGCAlloc("gc_alloc_record", int(size))
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.lastExprWasFloat = false
	if c.currentArena > 0 {
		c.emitArenaAllocDynamic()
		return nil
	}
	c.eb.MovRegToReg("rcx", "rax")
	symbol := c.gc.AllocSymbol("gc_alloc_record")
	c.markGCSymbolUsed(symbol)
	c.eb.CallSymbol(symbol)
	return nil
}

// builtinGCAllocClosure mirrors builtinGCAllocRecord for explicit
// front-end closure allocation; lowerLambda (closures.go) is the implicit
// path most closures actually take.
func builtinGCAllocClosure(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "gc_alloc_closure expects exactly one argument")
	}
	if size, ok := tryConstInt(n.Args[0]); ok {
		c.lastExprWasFloat = false
		return c.emitGCAlloc("gc_alloc_closure", int(size))
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.lastExprWasFloat = false
	if c.currentArena > 0 {
		c.emitArenaAllocDynamic()
		return nil
	}
	c.eb.MovRegToReg("rcx", "rax")
	symbol := c.gc.AllocSymbol("gc_alloc_closure")
	c.markGCSymbolUsed(symbol)
	c.eb.CallSymbol(symbol)
	return nil
}
