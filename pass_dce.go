package main

import "github.com/samber/lo"

// pass_dce.go grounds the reachability sweep on dead_code.cpp's
// buildCallGraph + computeReachableFunctions (a BFS from "main" over
// direct-call edges), and the per-function cleanup on its
// removeUnreachableCode (dropping statements after a terminator) and
// simplifyConstantConditions (folding an IfStmt with a literal-bool
// condition to its live branch). spec.md §4.8: "taking the address of a
// function marks it live" — tracked here via ast.go's FuncDecl.AddressTaken,
// set while walking for call targets.

type DCEPass struct{}

func (*DCEPass) Name() string { return "dce" }

func (p *DCEPass) Run(prog *Program) (int, error) {
	changed := 0

	reachable := p.reachableFunctions(prog)
	kept := make([]*FuncDecl, 0, len(prog.Functions))
	for _, fn := range prog.Functions {
		if fn.IsExtern || fn.Name == "main" || reachable[fn.Name] || fn.AddressTaken {
			kept = append(kept, fn)
			continue
		}
		changed++
	}
	prog.Functions = kept

	for _, fn := range prog.Functions {
		fn.Body = p.simplifyBlock(fn.Body, &changed)
	}
	return changed, nil
}

// reachableFunctions runs a BFS from "main" over direct-call edges,
// mirroring computeReachableFunctions's worklist loop.
func (p *DCEPass) reachableFunctions(prog *Program) map[string]bool {
	byName := make(map[string]*FuncDecl, len(prog.Functions))
	for _, fn := range prog.Functions {
		byName[fn.Name] = fn
	}

	reached := map[string]bool{"main": true}
	worklist := []string{"main"}
	for len(worklist) > 0 {
		name := worklist[0]
		worklist = worklist[1:]
		fn, ok := byName[name]
		if !ok {
			continue
		}
		for _, callee := range lo.Uniq(collectCalleeNames(fn.Body)) {
			if !reached[callee] {
				reached[callee] = true
				worklist = append(worklist, callee)
			}
		}
	}
	// A function whose address is taken anywhere is live regardless of a
	// direct call edge (spec §4.8).
	for _, fn := range prog.Functions {
		walkStmts(fn.Body, func(s Stmt) {
			walkExprsInStmt(s, func(e Expr) {
				if id, ok := e.(*Ident); ok {
					if target, ok2 := byName[id.Name]; ok2 && !reached[id.Name] {
						target.AddressTaken = true
					}
				}
			})
		})
	}
	return reached
}

// collectCalleeNames returns every plain-identifier call target directly
// reachable from body (fn(...) shapes only; method/trait dispatch is
// resolved at emission time and out of scope for this reachability pass).
func collectCalleeNames(body []Stmt) []string {
	var names []string
	walkStmts(body, func(s Stmt) {
		walkExprsInStmt(s, func(e Expr) {
			call, ok := e.(*CallExpr)
			if !ok {
				return
			}
			if id, ok := call.Callee.(*Ident); ok {
				names = append(names, id.Name)
			}
		})
	})
	return names
}

// simplifyBlock drops statements after a terminator (return/break/continue)
// and folds an IfStmt whose condition is a literal bool to its live
// branch, recursing into every nested block.
func (p *DCEPass) simplifyBlock(stmts []Stmt, changed *int) []Stmt {
	out := make([]Stmt, 0, len(stmts))
	terminated := false
	for _, s := range stmts {
		if terminated {
			*changed++
			continue
		}
		s = p.simplifyStmt(s, changed)
		if s == nil {
			*changed++
			continue
		}
		out = append(out, s)
		if isTerminator(s) {
			terminated = true
		}
	}
	return out
}

func isTerminator(s Stmt) bool {
	switch s.(type) {
	case *ReturnStmt, *BreakStmt, *ContinueStmt:
		return true
	}
	return false
}

func (p *DCEPass) simplifyStmt(s Stmt, changed *int) Stmt {
	switch n := s.(type) {
	case *IfStmt:
		if b, ok := boolLit(n.Cond); ok && len(n.Elif) == 0 {
			*changed++
			if b {
				return wrapBlock(p.simplifyBlock(n.Then, changed))
			}
			return wrapBlock(p.simplifyBlock(n.Else, changed))
		}
		n.Then = p.simplifyBlock(n.Then, changed)
		for i := range n.Elif {
			n.Elif[i].Body = p.simplifyBlock(n.Elif[i].Body, changed)
		}
		n.Else = p.simplifyBlock(n.Else, changed)
		return n
	case *WhileStmt:
		n.Body = p.simplifyBlock(n.Body, changed)
		return n
	case *ForRangeStmt:
		n.Body = p.simplifyBlock(n.Body, changed)
		return n
	case *ForCallStmt:
		n.Body = p.simplifyBlock(n.Body, changed)
		return n
	case *MatchStmt:
		for i := range n.Arms {
			n.Arms[i].Body = p.simplifyBlock(n.Arms[i].Body, changed)
		}
		return n
	case *ArenaStmt:
		n.Body = p.simplifyBlock(n.Body, changed)
		return n
	}
	return s
}

func boolLit(e Expr) (bool, bool) {
	if b, ok := e.(*BoolLit); ok {
		return b.Value, true
	}
	return false, false
}

// wrapBlock collapses a folded branch's statement list back into the
// parent block position: a single-statement block is spliced in place of
// the IfStmt by simplifyBlock treating a nil return as "statement
// removed" and a non-nil one as a single replacement, so a multi-statement
// branch needs a synthetic wrapper that preserves execution order.
func wrapBlock(stmts []Stmt) Stmt {
	if len(stmts) == 0 {
		return nil
	}
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &IfStmt{Cond: &BoolLit{Value: true}, Then: stmts}
}
