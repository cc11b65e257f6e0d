package main

// builtins_result.go grounds Result's encoding directly on
// codegen_call_builtins_result.cpp: a Result is a tagged i64, `(payload
// << 1) | tag`, tag 1 = Ok and tag 0 = Err (SPEC_FULL.md §9, and
// expr.go's lowerOrBang already assumes this exact shape for `or!`).

func builtinOk(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "Ok expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.ShlRegImm("rax", 1)
	c.eb.OrImmToReg("rax", 1)
	c.lastExprWasFloat = false
	return nil
}

func builtinErr(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "Err expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.ShlRegImm("rax", 1)
	c.lastExprWasFloat = false
	return nil
}

func builtinIsOk(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "is_ok expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.AndImmToReg("rax", 1)
	c.lastExprWasFloat = false
	return nil
}

func builtinIsErr(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "is_err expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.AndImmToReg("rax", 1)
	c.eb.XorImmToReg("rax", 1)
	c.lastExprWasFloat = false
	return nil
}

func builtinUnwrap(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "unwrap expects exactly one argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.ShrRegImm("rax", 1)
	c.lastExprWasFloat = false
	return nil
}

// builtinUnwrapOr mirrors emitResultUnwrapOr's push/test/pop shape:
// stash the tagged value, branch on the tag bit, and either shift it
// back down or fall through to evaluating the default expression.
func builtinUnwrapOr(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 2 {
		return badInput(n.Pos, "unwrap_or expects (result, default)")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.PushReg("rax")
	c.eb.AndImmToReg("rax", 1)

	okLabel := c.newLabel("unwrap_or_ok")
	endLabel := c.newLabel("unwrap_or_end")
	c.eb.CmpRegToImm("rax", 0)
	c.eb.JumpConditional(JumpNotEqual, okLabel)

	c.eb.PopReg("rax")
	if err := c.lowerExpr(n.Args[1]); err != nil {
		return err
	}
	c.eb.JumpUnconditional(endLabel)

	if err := c.eb.Label(okLabel); err != nil {
		return err
	}
	c.eb.PopReg("rax")
	c.eb.ShrRegImm("rax", 1)

	if err := c.eb.Label(endLabel); err != nil {
		return err
	}
	c.lastExprWasFloat = false
	return nil
}
