package main

// Closure layout (spec §4.6/§6): `[fn_ptr(8) | refcount(8) | capture0(8) |
// capture1(8) | ...]`.
const (
	closureFnPtrOffset   = 0
	closureRefcountOffset = 8
	closureCaptureBase   = 16
)

// lowerLambda materializes a closure: emits the lambda body as its own
// function under a synthetic label (its prologue copies each captured
// variable out of `[rcx+16+8*i]` into a local slot per spec §4.6's
// "Lambda/closure body" row), then builds the closure object and leaves
// its pointer in RAX.
func (c *Compiler) lowerLambda(n *LambdaExpr) error {
	label := c.newLabel("lambda")
	if err := c.emitLambdaBody(label, n); err != nil {
		return err
	}

	size := closureCaptureBase + len(n.Captures)*8
	if err := c.emitGCAlloc("gc_alloc_closure", size); err != nil {
		return err
	}
	c.eb.MovRegToReg("r14", "rax")
	c.eb.LeaSymbolToReg("rax", label)
	c.eb.MovRegToMem("rax", "r14", closureFnPtrOffset)
	c.eb.MovImmToReg("rax", 1)
	c.eb.MovRegToMem("rax", "r14", closureRefcountOffset)

	for i, capName := range n.Captures {
		if err := c.lowerIdent(&Ident{Name: capName}); err != nil {
			return err
		}
		off := int32(closureCaptureBase + i*8)
		if c.lastExprWasFloat {
			c.eb.MovsdXmmToMem("xmm0", "r14", off)
		} else {
			c.eb.MovRegToMem("rax", "r14", off)
		}
	}

	c.eb.MovRegToReg("rax", "r14")
	c.lastExprWasFloat = false
	return nil
}

// emitLambdaBody compiles the lambda body as an ordinary function whose
// first parameter (RCX) is the closure pointer rather than a user
// argument; the remaining parameters follow in RDX/R8/R9 per spec §4.6.
func (c *Compiler) emitLambdaBody(label string, n *LambdaExpr) error {
	savedFunc, savedFrame, savedTypes := c.currentFunc, c.frame, c.types

	fn := &FuncDecl{Name: label, Params: n.Params, Body: n.Body}
	c.currentFunc = fn
	c.types = NewTypeTables()
	c.frame = NewFrame()
	c.regs.AllocateFunctionLocal(n.Body)

	if err := c.eb.Label(label); err != nil {
		return err
	}

	closureOff := c.frame.Alloc("$closure")
	c.eb.MovRegToMem("rcx", "rbp", closureOff)

	for i, p := range n.Params {
		off := c.frame.Alloc(p.Name)
		if i+1 < len(argRegisters) {
			c.eb.MovRegToMem(argRegisters[i+1], "rbp", off)
		}
	}
	for i, capName := range n.Captures {
		off := c.frame.Alloc(capName)
		c.eb.MovMemToReg("rax", "rbp", closureOff)
		c.eb.MovMemToReg("rax", "rax", int32(closureCaptureBase+i*8))
		c.eb.MovRegToMem("rax", "rbp", off)
	}

	// A lambda body always has at least the closure-pointer slot spilled
	// ahead of Plan, so it never qualifies for the zero-locals/zero-params
	// no-prologue case even when n.Params/n.Captures are both empty.
	c.frame.Plan(n.Body, c.regs.UsedLocalRegisters(), false, true)
	c.emitPrologue()
	terminated, err := c.lowerStmts(n.Body)
	if err != nil {
		return err
	}
	if !terminated {
		c.emitReturn(nil)
	}

	c.currentFunc, c.frame, c.types = savedFunc, savedFrame, savedTypes
	return nil
}

// lowerClosureCall implements the "Function pointer / closure" row of
// spec §4.6's dispatch table: load the function pointer from `[closure+0]`
// and call it with RCX set to the closure pointer itself, shifting user
// arguments to RDX/R8/R9.
func (c *Compiler) lowerClosureCall(callee Expr, args []Expr) error {
	if err := c.lowerExpr(callee); err != nil {
		return err
	}
	c.eb.PushReg("rax") // closure pointer, kept safe across arg evaluation

	if err := c.loadCallArgs(args, argRegisters[1:], argXMMRegisters[1:], 0); err != nil {
		return err
	}

	c.eb.PopReg("r11")               // r11 = closure pointer
	c.eb.MovMemToReg("rax", "r11", closureFnPtrOffset)
	c.eb.MovRegToReg("rcx", "r11") // RCX = closure pointer (the receiver)
	c.eb.CallRegister("rax")
	c.lastExprWasFloat = false
	return nil
}
