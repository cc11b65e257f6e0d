package main

// runtime.go emits the shared snippets spec §4.7 names (itoa, ftoa,
// print_int) plus the gc_alloc_*/gc_collect bodies that back the GC
// collaborator stubs (spec §3): this repo has no separately-linked
// runtime library, so the "external but inlined as stubs" GC primitives
// are themselves emitted here, backed by the Win32 process heap
// (GetProcessHeap/HeapAlloc) rather than by a hand-rolled allocator —
// the same "call into the host OS for the primitive, inline the
// bookkeeping" shape the concurrency builtins use for threads and
// synchronization objects.
//
// Disabled at O3/Ofast (spec §4.7): Target.OptLevel.InlinesRuntimeSnippets
// decides in program.go's Compile whether this runs at all; when it does
// not, every call site that would have shared one of these snippets
// inlines its own private copy instead (not yet implemented per-callsite;
// see DESIGN.md for the scope decision).

const itoaScratchSize = 32

func (c *Compiler) emitRuntimeSnippets() error {
	if err := c.emitItoa(); err != nil {
		return err
	}
	if err := c.emitFtoa(); err != nil {
		return err
	}
	if err := c.emitPrintInt(); err != nil {
		return err
	}
	for _, symbol := range c.gcSymbolsUsed {
		if err := c.emitGCSnippet(symbol); err != nil {
			return err
		}
	}
	return nil
}

// emitItoa: input RAX signed i64, output (RAX = buffer pointer, RCX =
// length). Writes digits right-to-left into a 32-byte scratch buffer in
// data, prepends '-' for negatives, special-cases zero.
func (c *Compiler) emitItoa() error {
	if err := c.eb.Label("itoa"); err != nil {
		return err
	}
	bufLabel := "itoa_scratch"
	if c.pe != nil {
		c.pe.AddData(bufLabel, make([]byte, itoaScratchSize))
	}

	zeroLabel := c.newLabel("itoa_zero")
	negLabel := c.newLabel("itoa_neg")
	loopLabel := c.newLabel("itoa_loop")
	doneLabel := c.newLabel("itoa_done")

	c.eb.CmpRegToImm("rax", 0)
	c.eb.JumpConditional(JumpEqual, zeroLabel)
	c.eb.JumpConditional(JumpLess, negLabel)

	c.eb.LeaSymbolToReg("rdi", bufLabel)
	c.eb.AddImmToReg("rdi", itoaScratchSize-1)
	c.eb.MovImmToReg("rcx", 0)

	if err := c.eb.Label(loopLabel); err != nil {
		return err
	}
	c.eb.MovRegToReg("rdx", "rax")
	c.eb.MovImmToReg("r8", 10)
	c.eb.DivRegToReg("r8")
	c.eb.AddImmToReg("rdx", int64('0'))
	c.eb.DecReg("rdi")
	c.eb.MovByteRegToMem("rdx", "rdi", 0)
	c.eb.IncReg("rcx")
	c.eb.CmpRegToImm("rax", 0)
	c.eb.JumpConditional(JumpNotEqual, loopLabel)
	c.eb.MovRegToReg("rax", "rdi")
	c.eb.Ret()

	if err := c.eb.Label(negLabel); err != nil {
		return err
	}
	c.eb.NegReg("rax")
	c.eb.LeaSymbolToReg("rdi", bufLabel)
	c.eb.AddImmToReg("rdi", itoaScratchSize-1)
	c.eb.MovImmToReg("rcx", 0)
	negLoop := c.newLabel("itoa_neg_loop")
	if err := c.eb.Label(negLoop); err != nil {
		return err
	}
	c.eb.MovRegToReg("rdx", "rax")
	c.eb.MovImmToReg("r8", 10)
	c.eb.DivRegToReg("r8")
	c.eb.AddImmToReg("rdx", int64('0'))
	c.eb.DecReg("rdi")
	c.eb.MovByteRegToMem("rdx", "rdi", 0)
	c.eb.IncReg("rcx")
	c.eb.CmpRegToImm("rax", 0)
	c.eb.JumpConditional(JumpNotEqual, negLoop)
	c.eb.DecReg("rdi")
	c.eb.MovImmToReg("rdx", int64('-'))
	c.eb.MovByteRegToMem("rdx", "rdi", 0)
	c.eb.IncReg("rcx")
	c.eb.MovRegToReg("rax", "rdi")
	c.eb.Ret()

	if err := c.eb.Label(zeroLabel); err != nil {
		return err
	}
	c.eb.LeaSymbolToReg("rdi", bufLabel)
	c.eb.AddImmToReg("rdi", itoaScratchSize-1)
	c.eb.MovImmToReg("rdx", int64('0'))
	c.eb.MovByteRegToMem("rdx", "rdi", 0)
	c.eb.MovRegToReg("rax", "rdi")
	c.eb.MovImmToReg("rcx", 1)
	c.eb.JumpUnconditional(doneLabel)
	if err := c.eb.Label(doneLabel); err != nil {
		return err
	}
	c.eb.Ret()
	return nil
}

const ftoaScratchSize = 40
const fractionalDigits = 6

// emitFtoa: input XMM0 double, output (RAX = buffer pointer, RCX =
// length). Integer part via CVTTSD2SI + itoa; six fractional digits via
// repeated *10/truncate/subtract using SSE, per spec §4.7. The two parts
// are assembled left-to-right into ftoa_scratch, unlike itoa's
// right-to-left scratch write, since the fractional digit count is
// fixed and known in advance.
func (c *Compiler) emitFtoa() error {
	if err := c.eb.Label("ftoa"); err != nil {
		return err
	}
	bufLabel := "ftoa_scratch"
	if c.pe != nil {
		c.pe.AddData(bufLabel, make([]byte, ftoaScratchSize))
	}

	copyLoop := c.newLabel("ftoa_copy_loop")
	copyDone := c.newLabel("ftoa_copy_done")
	fracLoop := c.newLabel("ftoa_frac_loop")
	fracDone := c.newLabel("ftoa_frac_done")

	// rax := trunc(x); stash it on the stack so it survives the itoa
	// call below. xmm0 is then overwritten in place with x - float(trunc(x)),
	// the signed fractional remainder (the original x is not needed again).
	c.eb.Cvttsd2si("rax", "xmm0")
	c.eb.PushReg("rax")
	c.eb.Cvtsi2sd("xmm2", "rax") // xmm2 = float(trunc(x))
	c.eb.SubsdRegToReg("xmm0", "xmm2")

	// abs(xmm0) via the same GPR sign-bit round-trip builtinAbs uses for
	// a float argument: there is no ANDPD in this buffer.
	c.eb.MovXmmToReg("rax", "xmm0")
	c.eb.ShlRegImm("rax", 1)
	c.eb.ShrRegImm("rax", 1)
	c.eb.MovRegToXmm("xmm0", "rax")

	c.eb.PopReg("rax")
	c.eb.CallSymbol("itoa") // rax = integer part's scratch pointer, rcx = its length

	c.eb.LeaSymbolToReg("rdi", bufLabel)
	c.eb.MovRegToReg("rsi", "rax")
	c.eb.MovRegToReg("r9", "rcx") // save the integer part's length

	if err := c.eb.Label(copyLoop); err != nil {
		return err
	}
	c.eb.CmpRegToImm("rcx", 0)
	c.eb.JumpConditional(JumpEqual, copyDone)
	c.eb.MovMemToReg("rdx", "rsi", 0)
	c.eb.AndImmToReg("rdx", 0xFF)
	c.eb.MovByteRegToMem("rdx", "rdi", 0)
	c.eb.IncReg("rsi")
	c.eb.IncReg("rdi")
	c.eb.DecReg("rcx")
	c.eb.JumpUnconditional(copyLoop)

	if err := c.eb.Label(copyDone); err != nil {
		return err
	}
	c.eb.MovImmToReg("rdx", int64('.'))
	c.eb.MovByteRegToMem("rdx", "rdi", 0)
	c.eb.IncReg("rdi")

	c.eb.MovImmToReg("r11", 10)
	c.eb.Cvtsi2sd("xmm4", "r11")
	c.eb.MovImmToReg("r10", fractionalDigits)

	if err := c.eb.Label(fracLoop); err != nil {
		return err
	}
	c.eb.CmpRegToImm("r10", 0)
	c.eb.JumpConditional(JumpEqual, fracDone)
	c.eb.MulsdRegToReg("xmm0", "xmm4") // shift the next digit into the integer position
	c.eb.Cvttsd2si("rax", "xmm0")      // rax = next fractional digit (0-9)
	c.eb.Cvtsi2sd("xmm2", "rax")
	c.eb.SubsdRegToReg("xmm0", "xmm2") // drop the digit just extracted
	c.eb.AddImmToReg("rax", int64('0'))
	c.eb.MovByteRegToMem("rax", "rdi", 0)
	c.eb.IncReg("rdi")
	c.eb.DecReg("r10")
	c.eb.JumpUnconditional(fracLoop)

	if err := c.eb.Label(fracDone); err != nil {
		return err
	}
	c.eb.LeaSymbolToReg("rax", bufLabel)
	c.eb.MovRegToReg("rcx", "r9")
	c.eb.AddImmToReg("rcx", int64(1+fractionalDigits)) // '.' plus the six fractional digits
	c.eb.Ret()
	return nil
}

// emitPrintInt composes itoa + WriteConsoleA. It fetches the stdout handle
// with GetStdHandle on every call; no handle is cached, in RDI or elsewhere.
func (c *Compiler) emitPrintInt() error {
	if err := c.eb.Label("print_int"); err != nil {
		return err
	}
	c.eb.CallSymbol("itoa")
	c.eb.MovRegToReg("rdx", "rax") // buffer pointer
	c.eb.MovRegToReg("r8", "rcx")  // length
	if !c.hasImport("WriteConsoleA") {
		c.importDLLFunction("WriteConsoleA", "kernel32.dll")
	}
	if !c.hasImport("GetStdHandle") {
		c.importDLLFunction("GetStdHandle", "kernel32.dll")
	}
	c.eb.MovImmToReg("rcx", -11) // STD_OUTPUT_HANDLE
	c.eb.CallSymbol("__imp_GetStdHandle")
	c.eb.MovRegToReg("rcx", "rax")
	// rdx/r8 already hold buffer/length from above.
	c.eb.XorRegToReg("r9", "r9") // lpNumberOfCharsWritten: NULL is accepted on recent Windows
	c.eb.CallSymbol("__imp_WriteConsoleA")
	c.eb.Ret()
	return nil
}

// emitGCSnippet emits the body for one gc_alloc_* or gc_collect symbol,
// backed by the Win32 process heap. Every allocation prepends the
// 16-byte object header spec §6 describes (flags byte at payload-9,
// bit 0 = pinned; the rest of the header is zeroed, reserved for the GC
// collaborator's own bookkeeping in a fuller build).
func (c *Compiler) emitGCSnippet(symbol string) error {
	if symbol == "gc_collect" {
		return c.emitGCCollectSnippet()
	}
	if err := c.eb.Label(symbol); err != nil {
		return err
	}
	// rcx = requested payload size (caller convention, see emitGCAlloc).
	c.eb.AddImmToReg("rcx", objectHeaderSize)
	if !c.hasImport("GetProcessHeap") {
		c.importDLLFunction("GetProcessHeap", "kernel32.dll")
	}
	if !c.hasImport("HeapAlloc") {
		c.importDLLFunction("HeapAlloc", "kernel32.dll")
	}
	c.eb.PushReg("rcx")
	c.eb.CallSymbol("__imp_GetProcessHeap")
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.MovImmToReg("rdx", 0x00000008) // HEAP_ZERO_MEMORY
	c.eb.PopReg("r8")
	c.eb.CallSymbol("__imp_HeapAlloc")
	c.eb.AddImmToReg("rax", objectHeaderSize) // return the payload pointer, past the header
	c.eb.Ret()
	return nil
}

func (c *Compiler) emitGCCollectSnippet() error {
	if err := c.eb.Label("gc_collect"); err != nil {
		return err
	}
	// This allocator never frees: collection is a no-op.
	c.eb.Ret()
	return nil
}
