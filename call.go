package main

// Resolved list/map/record layout (spec §9 Open Questions, pinned down
// here and documented in DESIGN.md): lists are `[size(8)][capacity(8)]
// [elem0(8)][elem1(8)]...`, with element i at `base+16+8*i`, applied
// uniformly by every builtin in builtins_list.go — no builtin is allowed
// to treat the list pointer as pointing directly at element 0.
const (
	listHeaderSize = 16
	listElemOffset = 16
	mapHeaderSize  = 16 // header word + count
)

// lowerMember lowers `obj.field`: a record field load when obj's static
// type names a record, or (detected in lowerCall) the receiver half of a
// method call.
func (c *Compiler) lowerMember(n *MemberExpr) error {
	typeName, ok := c.staticRecordType(n.Object)
	if !ok {
		return badInput(n.Pos, "member access %q on a value with no known record type", n.Field)
	}
	layout, ok := c.records.Lookup(typeName)
	if !ok {
		return badInput(n.Pos, "unknown record type %q", typeName)
	}
	offset, ok := layout.FieldOffsets[n.Field]
	if !ok {
		return badInput(n.Pos, "record %q has no field %q", typeName, n.Field)
	}

	if err := c.lowerExpr(n.Object); err != nil {
		return err
	}
	fieldType := layout.FieldTypes[n.Field]
	if bits := layout.FieldBitWidths[n.Field]; bits > 0 {
		return c.loadBitField(offset, bits, layout.FieldBitShifts[n.Field])
	}
	c.lastExprWasFloat = fieldType.IsFloat()
	if c.lastExprWasFloat {
		c.eb.MovsdMemToXmm("xmm0", "rax", int32(offset))
	} else {
		c.eb.MovMemToReg("rax", "rax", int32(offset))
	}
	return nil
}

// loadBitField reads a packed field by masking and shifting the 8-byte
// word at offset (spec §6: "read/write emit mask+shift").
func (c *Compiler) loadBitField(offset, bits, shift int) error {
	c.eb.MovMemToReg("rax", "rax", int32(offset))
	if shift > 0 {
		c.eb.ShrRegImm("rax", uint8(shift))
	}
	mask := int64((1 << uint(bits)) - 1)
	c.eb.AndImmToReg("rax", mask)
	c.lastExprWasFloat = false
	return nil
}

func (c *Compiler) staticRecordType(e Expr) (string, bool) {
	id, ok := e.(*Ident)
	if !ok {
		return "", false
	}
	return c.types.RecordTypeOf(id.Name)
}

// lowerIndex lowers `obj[index]` against the pinned list layout.
func (c *Compiler) lowerIndex(n *IndexExpr) error {
	if err := c.lowerExpr(n.Object); err != nil {
		return err
	}
	c.eb.PushReg("rax")
	if err := c.lowerExpr(n.Index); err != nil {
		return err
	}
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.PopReg("rax")
	// offset = rcx*8 + listElemOffset; computed with a shift+add since the
	// allocator has no general scaled-index addressing mode wired up.
	c.eb.ShlRegImm("rcx", 3)
	c.eb.AddRegToReg("rax", "rcx")
	c.eb.MovMemToReg("rax", "rax", listElemOffset)
	c.lastExprWasFloat = false
	return nil
}

func (c *Compiler) lowerListLiteral(n *ListExpr) error {
	size := len(n.Elements)
	if err := c.emitGCAlloc("gc_alloc_list", listHeaderSize+size*8); err != nil {
		return err
	}
	c.eb.MovRegToReg("r14", "rax")
	c.eb.MovImmToReg("rcx", int64(size))
	c.eb.MovRegToMem("rcx", "r14", 0) // size
	c.eb.MovRegToMem("rcx", "r14", 8) // capacity == size at construction

	for i, el := range n.Elements {
		if err := c.lowerExpr(el); err != nil {
			return err
		}
		off := int32(listElemOffset + i*8)
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

// lowerMapLiteral builds a chained-bucket map (spec §6): a header word, a
// count, and a bucket-pointer array sized to the literal's element count
// (load factor 1 at construction time; growth is a runtime concern this
// emitter does not need for literal construction).
func (c *Compiler) lowerMapLiteral(n *MapExpr) error {
	capacity := len(n.Keys)
	if capacity == 0 {
		capacity = 1
	}
	if err := c.emitGCAlloc("gc_alloc_map", mapHeaderSize+capacity*8); err != nil {
		return err
	}
	c.eb.MovRegToReg("r14", "rax")
	c.eb.MovImmToReg("rcx", int64(capacity))
	c.eb.MovRegToMem("rcx", "r14", 0)
	c.eb.XorRegToReg("rcx", "rcx")
	c.eb.MovRegToMem("rcx", "r14", 8) // count starts at 0

	for i := range n.Keys {
		if err := c.emitMapInsert("r14", n.Keys[i], n.Values[i], capacity); err != nil {
			return err
		}
	}
	c.eb.MovRegToReg("rax", "r14")
	c.lastExprWasFloat = false
	return nil
}

// emitMapInsert hashes the key with djb2 (spec §6) and links a freshly
// allocated bucket entry `[hash(8)|key(8)|value(8)|next(8)]` at the head
// of its chain.
func (c *Compiler) emitMapInsert(mapReg string, key, value Expr, capacity int) error {
	if err := c.emitGCAlloc("gc_alloc_raw", 32); err != nil {
		return err
	}
	c.eb.MovRegToReg("r15", "rax") // new bucket entry

	if err := c.lowerExpr(key); err != nil {
		return err
	}
	c.eb.MovRegToReg("rcx", "rax")
	c.emitDJB2Hash("rcx")
	c.eb.MovRegToMem("rcx", "r15", 0) // hash
	if err := c.lowerExpr(key); err != nil {
		return err
	}
	c.eb.MovRegToMem("rax", "r15", 8) // key
	if err := c.lowerExpr(value); err != nil {
		return err
	}
	if c.lastExprWasFloat {
		c.eb.MovsdXmmToMem("xmm0", "r15", 16)
	} else {
		c.eb.MovRegToMem("rax", "r15", 16)
	}

	// bucket index = hash % capacity, stored as bucket_ptrs[index] = entry,
	// entry.next = old bucket_ptrs[index].
	c.eb.MovMemToReg("rax", "r15", 0)
	c.eb.MovImmToReg("rcx", int64(capacity)) // not rdx: CQO overwrites it
	c.eb.DivRegToReg("rcx")
	c.eb.MovRegToReg("rcx", "rdx") // rcx = hash % capacity
	c.eb.ShlRegImm("rcx", 3)
	c.eb.LeaMemToReg("rdx", mapReg, mapHeaderSize)
	c.eb.AddRegToReg("rdx", "rcx") // rdx = &bucket_ptrs[index]
	c.eb.MovMemToReg("rax", "rdx", 0)
	c.eb.MovRegToMem("rax", "r15", 24) // entry.next = old head
	c.eb.MovRegToMem("r15", "rdx", 0)  // bucket_ptrs[index] = entry

	c.eb.MovMemToReg("rcx", mapReg, 8)
	c.eb.AddImmToReg("rcx", 1)
	c.eb.MovRegToMem("rcx", mapReg, 8) // count++
	return nil
}

// emitDJB2Hash computes djb2(reg-as-string-pointer) in place: hash = 5381;
// hash = hash*33 + c for every byte until a NUL. Uses rdi/rsi as scratch.
func (c *Compiler) emitDJB2Hash(reg string) {
	loopLabel := c.newLabel("djb2_loop")
	doneLabel := c.newLabel("djb2_done")
	c.eb.MovRegToReg("rsi", reg)
	c.eb.MovImmToReg("rdi", 5381)
	if err := c.eb.Label(loopLabel); err != nil {
		return
	}
	c.eb.MovMemToReg("rax", "rsi", 0)
	c.eb.AndImmToReg("rax", 0xFF)
	c.eb.CmpRegToImm("rax", 0)
	c.eb.JumpConditional(JumpEqual, doneLabel)
	c.eb.MovRegToReg("rcx", "rdi")
	c.eb.ShlRegImm("rdi", 5)
	c.eb.AddRegToReg("rdi", "rcx")
	c.eb.AddRegToReg("rdi", "rax")
	c.eb.IncReg("rsi")
	c.eb.JumpUnconditional(loopLabel)
	if err := c.eb.Label(doneLabel); err != nil {
		return
	}
	c.eb.MovRegToReg(reg, "rdi")
}

// ===== Calls =====

// lowerCall implements the dispatch table in spec §4.6: direct label call,
// extern import call, closure call, or trait-method (vtable) call,
// distinguished by what Callee statically resolves to.
func (c *Compiler) lowerCall(n *CallExpr) error {
	if member, ok := n.Callee.(*MemberExpr); ok {
		return c.lowerMethodCall(member, n.Args)
	}
	ident, ok := n.Callee.(*Ident)
	if !ok {
		return c.lowerClosureCall(n.Callee, n.Args)
	}

	if builtin, ok := builtinTable[ident.Name]; ok {
		return builtin(c, n)
	}

	if fn, ok := c.lookupFunction(ident.Name); ok {
		if fn.IsExtern {
			return c.lowerExternCall(fn, n.Args)
		}
		return c.lowerDirectCall(ident.Name, n.Args)
	}

	// Not a known function label: must be a local closure variable.
	return c.lowerClosureCall(n.Callee, n.Args)
}

// loadCallArgs implements spec §4.6's argument-loading rule: every argument
// is evaluated right-to-left and pushed, then the first four are popped into
// RCX/RDX/R8/R9, each also loaded into the matching XMM0-3 register for
// floats. There is no direct-load path: identifiers and constants go
// through the stack like any other argument.
func (c *Compiler) loadCallArgs(args []Expr, intRegs, xmmRegs []string, startIndex int) error {
	for i := len(args) - 1; i >= 0; i-- {
		if err := c.lowerExpr(args[i]); err != nil {
			return err
		}
		if c.lastExprWasFloat {
			c.eb.PushReg("rcx") // align: keep stack slot width uniform
			c.eb.MovsdXmmToMem("xmm0", "rsp", 0)
		} else {
			c.eb.PushReg("rax")
		}
	}
	for i := 0; i < len(args) && i+startIndex < len(intRegs); i++ {
		if i+startIndex < len(xmmRegs) {
			c.eb.MovsdMemToXmm(xmmRegs[i+startIndex], "rsp", 0)
		}
		c.eb.PopReg(intRegs[i+startIndex])
	}
	return nil
}

func (c *Compiler) lowerDirectCall(name string, args []Expr) error {
	if err := c.loadCallArgs(args, argRegisters, argXMMRegisters, 0); err != nil {
		return err
	}
	c.eb.CallSymbol(name)
	c.lastExprWasFloat = false
	return nil
}

func (c *Compiler) lowerExternCall(fn *FuncDecl, args []Expr) error {
	symbol := "__imp_" + fn.Name
	if !c.hasImport(fn.Name) {
		dll := fn.DLLName
		if dll == "" {
			dll = "kernel32.dll"
		}
		c.importDLLFunction(fn.Name, dll)
	}
	if err := c.loadCallArgs(args, argRegisters, argXMMRegisters, 0); err != nil {
		return err
	}
	c.eb.CallSymbol(symbol)
	c.lastExprWasFloat = fn.ReturnType.IsFloat()
	return nil
}

func (c *Compiler) lowerMethodCall(member *MemberExpr, args []Expr) error {
	typeName, ok := c.staticRecordType(member.Object)
	if !ok {
		return badInput(member.Pos, "method call on a value with no known record type")
	}

	if mangled, ok := c.traits.ResolveInherentMethod(typeName, member.Field); ok {
		allArgs := append([]Expr{member.Object}, args...)
		return c.lowerDirectCall(mangled, allArgs)
	}

	if idx, ok := c.traits.ResolveTraitMethodIndex(typeName, member.Field); ok {
		return c.lowerTraitCall(member.Object, idx, args)
	}
	return badInput(member.Pos, "type %q has no method %q", typeName, member.Field)
}
