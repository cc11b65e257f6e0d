package main

// optimizer.go grounds the pipeline shape on
// _examples/original_source/src/semantic/optimizer/optimizer.h and
// dead_code.cpp's run(): a fixed linear sequence of AST-mutating passes,
// gated per optimization level, with a bounded fixed-point iteration for
// the idempotent subset (spec.md §8's "confluent on its inputs" property
// and §9's "implementer should make the iteration count explicit").

// maxFixedPointIterations bounds the jump-threading/simplify-CFG
// fixed-point loop (spec.md §9 Open Question, resolved here: 10
// iterations, matching the "e.g. 10 iterations" spec.md §8 suggests).
const maxFixedPointIterations = 10

// Pass is one AST-mutating optimizer stage. Reports the number of
// transformations it made; RunOptimizer uses the counts to iterate
// jump-threading and simplify-CFG to a fixed point, and runs every other
// pass (DCE and dead-arg-elim included) exactly once.
type Pass interface {
	Name() string
	Run(prog *Program) (changed int, err error)
}

// minOptLevel reports whether level is enabled at prog's current
// optimization setting (spec §4.8: "each pass is independently
// disable-able by optimization level").
func minOptLevel(opt, min OptLevel) bool {
	return opt >= min
}

// RunOptimizer runs the fixed pipeline order spec.md §4.8 names: DCE
// first (it shrinks the input other passes walk), then jump-threading +
// simplify-CFG iterated to a fixed point, then the induction-variable
// pass, then the interprocedural passes (global-opt, dead-arg-elim,
// partial-inlining). A pass that errors is logged and skipped, per
// spec.md §7 — optimizer failures never abort compilation.
func RunOptimizer(prog *Program, opt OptLevel) error {
	if opt == O0 {
		return nil
	}

	runOnce(prog, &DCEPass{}, opt, O1)

	for i := 0; i < maxFixedPointIterations; i++ {
		jt := runOnce(prog, &JumpThreadPass{}, opt, O1)
		sc := runOnce(prog, &SimplifyCFGPass{}, opt, O1)
		if jt+sc == 0 {
			break
		}
	}

	runOnce(prog, &IndVarSimplifyPass{}, opt, O2)
	runOnce(prog, &GlobalOptPass{}, opt, O2)
	runOnce(prog, &DeadArgElimPass{}, opt, O2)
	runOnce(prog, &PartialInliningPass{}, opt, O3)

	return nil
}

// runOnce applies pass if opt meets min, swallowing and logging any
// error (spec §7). Returns the transformation count (0 if skipped).
func runOnce(prog *Program, pass Pass, opt, min OptLevel) int {
	if !minOptLevel(opt, min) {
		return 0
	}
	n, err := pass.Run(prog)
	if err != nil {
		logf("optimizer: pass %s failed: %v (skipped)", pass.Name(), err)
		return 0
	}
	if n > 0 {
		logf("optimizer: pass %s made %d change(s)", pass.Name(), n)
	}
	return n
}

// walkStmts calls visit on every statement in stmts and recurses into
// every nested statement list (if/while/for/match/arena bodies), letting
// a pass gather information (used identifiers, call targets) across an
// entire function body in one traversal.
func walkStmts(stmts []Stmt, visit func(Stmt)) {
	for _, s := range stmts {
		visit(s)
		switch n := s.(type) {
		case *IfStmt:
			walkStmts(n.Then, visit)
			for _, e := range n.Elif {
				walkStmts(e.Body, visit)
			}
			walkStmts(n.Else, visit)
		case *WhileStmt:
			walkStmts(n.Body, visit)
		case *ForRangeStmt:
			walkStmts(n.Body, visit)
		case *ForCallStmt:
			walkStmts(n.Body, visit)
		case *MatchStmt:
			for _, arm := range n.Arms {
				walkStmts(arm.Body, visit)
			}
		case *ArenaStmt:
			walkStmts(n.Body, visit)
		}
	}
}

// walkExprsInStmt calls visit on every expression directly reachable
// from stmt (not recursing into nested statement lists — callers combine
// this with walkStmts for full-body coverage).
func walkExprsInStmt(s Stmt, visit func(Expr)) {
	switch n := s.(type) {
	case *VarDecl:
		if n.Init != nil {
			walkExpr(n.Init, visit)
		}
	case *DestructureStmt:
		walkExpr(n.Value, visit)
	case *AssignStmt:
		walkExpr(n.Target, visit)
		walkExpr(n.Value, visit)
	case *ExprStmt:
		walkExpr(n.X, visit)
	case *IfStmt:
		walkExpr(n.Cond, visit)
		for _, e := range n.Elif {
			walkExpr(e.Cond, visit)
		}
	case *WhileStmt:
		walkExpr(n.Cond, visit)
	case *ForRangeStmt:
		walkExpr(n.Lo, visit)
		walkExpr(n.Hi, visit)
	case *ForCallStmt:
		walkExpr(n.Iterable, visit)
	case *MatchStmt:
		walkExpr(n.Scrutinee, visit)
	case *ReturnStmt:
		if n.Value != nil {
			walkExpr(n.Value, visit)
		}
	case *DeferStmt:
		walkExpr(n.Call, visit)
	}
}

// walkExpr calls visit on e and recurses into every subexpression.
func walkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *BinaryExpr:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *UnaryExpr:
		walkExpr(n.Operand, visit)
	case *CallExpr:
		walkExpr(n.Callee, visit)
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case *MemberExpr:
		walkExpr(n.Object, visit)
	case *IndexExpr:
		walkExpr(n.Object, visit)
		walkExpr(n.Index, visit)
	case *ListExpr:
		for _, el := range n.Elements {
			walkExpr(el, visit)
		}
	case *MapExpr:
		for _, k := range n.Keys {
			walkExpr(k, visit)
		}
		for _, v := range n.Values {
			walkExpr(v, visit)
		}
	case *TupleExpr:
		for _, el := range n.Elements {
			walkExpr(el, visit)
		}
	case *LambdaExpr:
		walkStmts(n.Body, func(s Stmt) { walkExprsInStmt(s, visit) })
	case *OrBangExpr:
		walkExpr(n.X, visit)
		walkExpr(n.Default, visit)
	case *ArenaExpr:
		walkStmts(n.Body, func(s Stmt) { walkExprsInStmt(s, visit) })
		walkExpr(n.Result, visit)
	}
}
