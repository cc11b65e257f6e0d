package main

import "math"

// lowerExpr is the expression visitor: every case leaves its result in RAX
// (integers/pointers/bools) or XMM0 (floats), and sets c.lastExprWasFloat
// so the caller (an assignment, a return, a call argument) knows which
// register to read (spec §4.4).
func (c *Compiler) lowerExpr(e Expr) error {
	switch n := e.(type) {
	case *IntLit:
		c.lastExprWasFloat = false
		c.eb.MovImmToReg("rax", n.Value)
		return nil
	case *FloatLit:
		c.lastExprWasFloat = true
		return c.loadFloatConstant(n.Value)
	case *BoolLit:
		c.lastExprWasFloat = false
		v := int64(0)
		if n.Value {
			v = 1
		}
		c.eb.MovImmToReg("rax", v)
		return nil
	case *StringLit:
		c.lastExprWasFloat = false
		return c.loadStringConstant(n.Value)
	case *Ident:
		return c.lowerIdent(n)
	case *UnaryExpr:
		return c.lowerUnary(n)
	case *BinaryExpr:
		return c.lowerBinary(n)
	case *CallExpr:
		return c.lowerCall(n)
	case *MemberExpr:
		return c.lowerMember(n)
	case *IndexExpr:
		return c.lowerIndex(n)
	case *ListExpr:
		return c.lowerListLiteral(n)
	case *MapExpr:
		return c.lowerMapLiteral(n)
	case *LambdaExpr:
		return c.lowerLambda(n)
	case *OrBangExpr:
		return c.lowerOrBang(n)
	case *ArenaExpr:
		return c.lowerArenaExpr(n)
	case *TupleExpr:
		return c.lowerTupleLiteral(n)
	default:
		return badInput(Pos{}, "no lowering for expression node %T", e)
	}
}

func (c *Compiler) loadFloatConstant(v float64) error {
	label := c.newLabel("flt")
	if c.pe != nil {
		c.pe.AddData(label, f64Bytes(v))
	}
	c.eb.LeaSymbolToReg("rax", label)
	c.eb.MovsdMemToXmm("xmm0", "rax", 0)
	return nil
}

func (c *Compiler) loadStringConstant(s string) error {
	label := c.newLabel("str")
	if c.pe != nil {
		c.pe.AddString(label, s)
	}
	c.eb.LeaSymbolToReg("rax", label)
	return nil
}

func f64Bytes(v float64) []byte {
	bits := math.Float64bits(v)
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(bits >> (8 * i))
	}
	return out
}

func (c *Compiler) lowerIdent(n *Ident) error {
	c.lastExprWasFloat = c.types.IsFloat(n.Name)

	if v, ok := c.types.ConstInt(n.Name); ok {
		c.eb.MovImmToReg("rax", v)
		return nil
	}
	if v, ok := c.types.ConstFloat(n.Name); ok {
		return c.loadFloatConstant(v)
	}

	if reg, ok := c.regs.RegisterOf(n.Name); ok {
		if c.lastExprWasFloat {
			c.eb.MovRegToXmm("xmm0", reg)
		} else {
			c.eb.MovRegToReg("rax", reg)
		}
		return nil
	}
	off, ok := c.frame.OffsetOf(n.Name)
	if !ok {
		return badInput(Pos{}, "undeclared identifier %q", n.Name)
	}
	if c.lastExprWasFloat {
		c.eb.MovsdMemToXmm("xmm0", "rbp", off)
	} else {
		c.eb.MovMemToReg("rax", "rbp", off)
	}
	return nil
}

func (c *Compiler) lowerUnary(n *UnaryExpr) error {
	if err := c.lowerExpr(n.Operand); err != nil {
		return err
	}
	switch n.Op {
	case "-":
		if c.lastExprWasFloat {
			// Negate via 0.0 - x; there is no direct XMM sign-flip in this
			// emitter's opcode set.
			c.eb.XorRegToReg("rcx", "rcx")
			c.eb.Cvtsi2sd("xmm1", "rcx")
			c.eb.SubsdRegToReg("xmm1", "xmm0")
			c.eb.MovRegToReg("xmm0", "xmm1")
		} else {
			c.eb.NegReg("rax")
		}
		return nil
	case "!":
		c.eb.CmpRegToImm("rax", 0)
		c.eb.SetccToReg(JumpEqual, "rax")
		return nil
	default:
		return badInput(n.Pos, "unsupported unary operator %q", n.Op)
	}
}

// lowerBinary implements spec §4.4's inline optimizations: strength
// reduction on multiply/divide-by-constant, SSE for float-float operands
// with a CVTSI2SD conversion on the integer side for mixed-type operations,
// and conditional-jump lowering for && / || rather than arithmetic. Both
// operands always pass through RAX/XMM0, the left one held on the stack (or
// in xmm2) while the right one is lowered, even when both already live in
// registers.
func (c *Compiler) lowerBinary(n *BinaryExpr) error {
	switch n.Op {
	case "&&", "||":
		return c.lowerShortCircuit(n)
	}

	if lit, ok := n.Right.(*IntLit); ok && !isFloatExpr(c, n.Left) {
		if reduced, err := c.tryStrengthReduce(n.Op, n.Left, lit.Value); err != nil {
			return err
		} else if reduced {
			return nil
		}
	}

	if err := c.lowerExpr(n.Left); err != nil {
		return err
	}
	leftFloat := c.lastExprWasFloat
	if leftFloat {
		c.eb.MovRegToReg("xmm2", "xmm0")
	} else {
		c.eb.PushReg("rax")
	}

	if err := c.lowerExpr(n.Right); err != nil {
		return err
	}
	rightFloat := c.lastExprWasFloat

	useFloat := leftFloat || rightFloat
	if useFloat {
		if !rightFloat {
			c.eb.Cvtsi2sd("xmm0", "rax")
		}
		if !leftFloat {
			c.eb.PopReg("rax")
			c.eb.Cvtsi2sd("xmm1", "rax")
		} else {
			c.eb.MovRegToReg("xmm1", "xmm2")
		}
		return c.emitFloatBinary(n.Op, n.Pos)
	}

	c.eb.MovRegToReg("rcx", "rax")
	c.eb.PopReg("rax")
	c.lastExprWasFloat = false
	return c.emitIntBinary(n.Op, n.Pos)
}

func isFloatExpr(c *Compiler, e Expr) bool {
	switch n := e.(type) {
	case *FloatLit:
		return true
	case *Ident:
		return c.types.IsFloat(n.Name)
	default:
		return false
	}
}

// tryStrengthReduce implements spec §4.4's per-operation rewrites for an
// integer left-hand side against a literal right-hand side: powers of two
// become shifts, multiply-by-3 becomes x+x+x (two ADDs; no LEA is
// emitted), multiply by 0/1/-1
// elides the multiply. Returns (true, nil) when it fully handled the node
// (result already in RAX).
func (c *Compiler) tryStrengthReduce(op string, left Expr, imm int64) (bool, error) {
	switch op {
	case "*":
		switch imm {
		case 0:
			c.eb.XorRegToReg("rax", "rax")
			c.lastExprWasFloat = false
			return true, nil
		case 1:
			if err := c.lowerExpr(left); err != nil {
				return false, err
			}
			return true, nil
		case -1:
			if err := c.lowerExpr(left); err != nil {
				return false, err
			}
			c.eb.NegReg("rax")
			return true, nil
		case 3:
			// x*3 == x + x + x, cheaper than IMUL and needs no SIB byte
			// (a true `lea rax, [rcx+rcx*2]` would, which buffer.go's
			// memOperand helper does not encode).
			if err := c.lowerExpr(left); err != nil {
				return false, err
			}
			c.eb.MovRegToReg("rcx", "rax")
			c.eb.AddRegToReg("rax", "rcx")
			c.eb.AddRegToReg("rax", "rcx")
			return true, nil
		}
		if shift, ok := powerOfTwoShift(imm); ok {
			if err := c.lowerExpr(left); err != nil {
				return false, err
			}
			c.eb.ShlRegImm("rax", uint8(shift))
			return true, nil
		}
	case "/":
		if shift, ok := powerOfTwoShift(imm); ok && imm > 0 {
			if err := c.lowerExpr(left); err != nil {
				return false, err
			}
			c.eb.SarRegImm("rax", uint8(shift))
			return true, nil
		}
	}
	return false, nil
}

func powerOfTwoShift(v int64) (int, bool) {
	if v <= 0 {
		return 0, false
	}
	shift := 0
	for v > 1 {
		if v%2 != 0 {
			return 0, false
		}
		v /= 2
		shift++
	}
	return shift, true
}

func (c *Compiler) emitIntBinary(op string, pos Pos) error {
	switch op {
	case "+":
		c.eb.AddRegToReg("rax", "rcx")
	case "-":
		c.eb.SubRegToReg("rax", "rcx")
	case "*":
		c.eb.MulRegToReg("rax", "rcx")
	case "/":
		c.eb.DivRegToReg("rcx")
	case "%":
		c.eb.DivRegToReg("rcx")
		c.eb.MovRegToReg("rax", "rdx")
	case "==":
		c.eb.CmpRegToReg("rax", "rcx")
		c.eb.SetccToReg(JumpEqual, "rax")
	case "!=":
		c.eb.CmpRegToReg("rax", "rcx")
		c.eb.SetccToReg(JumpNotEqual, "rax")
	case "<":
		c.eb.CmpRegToReg("rax", "rcx")
		c.eb.SetccToReg(JumpLess, "rax")
	case "<=":
		c.eb.CmpRegToReg("rax", "rcx")
		c.eb.SetccToReg(JumpLessOrEqual, "rax")
	case ">":
		c.eb.CmpRegToReg("rax", "rcx")
		c.eb.SetccToReg(JumpGreater, "rax")
	case ">=":
		c.eb.CmpRegToReg("rax", "rcx")
		c.eb.SetccToReg(JumpGreaterOrEqual, "rax")
	default:
		return badInput(pos, "unsupported integer operator %q", op)
	}
	return nil
}

func (c *Compiler) emitFloatBinary(op string, pos Pos) error {
	c.lastExprWasFloat = true
	switch op {
	case "+":
		c.eb.AddsdRegToReg("xmm1", "xmm0")
		c.eb.MovRegToReg("xmm0", "xmm1")
	case "-":
		c.eb.SubsdRegToReg("xmm1", "xmm0")
		c.eb.MovRegToReg("xmm0", "xmm1")
	case "*":
		c.eb.MulsdRegToReg("xmm1", "xmm0")
		c.eb.MovRegToReg("xmm0", "xmm1")
	case "/":
		c.eb.DivsdRegToReg("xmm1", "xmm0")
		c.eb.MovRegToReg("xmm0", "xmm1")
	case "==", "!=", "<", "<=", ">", ">=":
		c.eb.UcomisdRegToReg("xmm1", "xmm0")
		c.lastExprWasFloat = false
		cond := map[string]JumpCondition{
			"==": JumpEqual, "!=": JumpNotEqual,
			"<": JumpBelow, "<=": JumpBelowOrEqual,
			">": JumpAbove, ">=": JumpAboveOrEqual,
		}[op]
		c.eb.SetccToReg(cond, "rax")
	default:
		return badInput(pos, "unsupported float operator %q", op)
	}
	return nil
}

func (c *Compiler) lowerShortCircuit(n *BinaryExpr) error {
	c.lastExprWasFloat = false
	endLabel := c.newLabel("sc_end")
	shortLabel := c.newLabel("sc_short")

	if err := c.lowerExpr(n.Left); err != nil {
		return err
	}
	c.eb.CmpRegToImm("rax", 0)
	if n.Op == "&&" {
		c.eb.JumpConditional(JumpEqual, shortLabel)
	} else {
		c.eb.JumpConditional(JumpNotEqual, shortLabel)
	}

	if err := c.lowerExpr(n.Right); err != nil {
		return err
	}
	c.eb.CmpRegToImm("rax", 0)
	c.eb.SetccToReg(JumpNotEqual, "rax")
	c.eb.JumpUnconditional(endLabel)

	if err := c.eb.Label(shortLabel); err != nil {
		return err
	}
	if n.Op == "&&" {
		c.eb.XorRegToReg("rax", "rax")
	} else {
		c.eb.MovImmToReg("rax", 1)
	}
	return c.eb.Label(endLabel)
}

// lowerOrBang implements `expr or! default` (SPEC_FULL.md §9): evaluate
// expr; if it is an Err-state Result (LSB clear, see builtins_result.go)
// branch to evaluating the default instead.
func (c *Compiler) lowerOrBang(n *OrBangExpr) error {
	endLabel := c.newLabel("orbang_end")
	fallbackLabel := c.newLabel("orbang_fallback")

	if err := c.lowerExpr(n.X); err != nil {
		return err
	}
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.AndImmToReg("rcx", 1)
	c.eb.CmpRegToImm("rcx", 0)
	c.eb.JumpConditional(JumpEqual, fallbackLabel)
	c.eb.ShrRegImm("rax", 1)
	c.eb.JumpUnconditional(endLabel)

	if err := c.eb.Label(fallbackLabel); err != nil {
		return err
	}
	if err := c.lowerExpr(n.Default); err != nil {
		return err
	}
	return c.eb.Label(endLabel)
}

func (c *Compiler) lowerTupleLiteral(n *TupleExpr) error {
	// Tuples are only ever consumed by destructuring (stmt.go); as a bare
	// r-value they behave like a record with positional fields, allocated
	// the same way list literals are.
	size := 8 + len(n.Elements)*8
	if err := c.emitGCAlloc("gc_alloc_record", size); err != nil {
		return err
	}
	c.eb.MovRegToReg("r14", "rax")
	for i, el := range n.Elements {
		if err := c.lowerExpr(el); err != nil {
			return err
		}
		if c.lastExprWasFloat {
			c.eb.MovsdXmmToMem("xmm0", "r14", int32(8+i*8))
		} else {
			c.eb.MovRegToMem("rax", "r14", int32(8+i*8))
		}
	}
	c.eb.MovRegToReg("rax", "r14")
	c.lastExprWasFloat = false
	return nil
}
