package main

import "github.com/samber/lo"

// pass_globalopt.go implements spec.md §4.8's global-opt rule exactly:
// "variables at top level that are written exactly once with a constant
// initializer and whose address is never taken are constified — every
// load is replaced by the constant, and the variable itself is deleted
// if never read." Grounded on global_opt.cpp's three-phase shape
// (collect globals, analyze usage across the whole program, then
// rewrite), adapted to ast.go's flat Program.Globals/Functions rather
// than a statement-list AST with nested ModuleDecls.

type GlobalOptPass struct{}

func (*GlobalOptPass) Name() string { return "global-opt" }

func (p *GlobalOptPass) Run(prog *Program) (int, error) {
	if len(prog.Globals) == 0 {
		return 0, nil
	}
	changed := 0

	constVal := map[string]Expr{}
	writeCount := map[string]int{}
	readCount := map[string]int{}
	addressTaken := map[string]bool{}

	for _, g := range prog.Globals {
		if g.Init != nil && isConstLiteral(g.Init) {
			constVal[g.Name] = g.Init
			writeCount[g.Name] = 1
		}
	}

	for _, fn := range prog.Functions {
		walkStmts(fn.Body, func(s Stmt) {
			if assign, ok := s.(*AssignStmt); ok {
				if id, ok2 := assign.Target.(*Ident); ok2 {
					writeCount[id.Name]++
				}
			}
			walkExprsInStmt(s, func(e Expr) {
				if id, ok := e.(*Ident); ok {
					readCount[id.Name]++
				}
				// Any non-call, non-assignment-target occurrence of a
				// global's name passed where an address could escape
				// (e.g. as a bare callee-unrelated identifier used as a
				// value passed to a function parameter) is treated
				// conservatively: a CallExpr argument that is a bare
				// Ident naming a global marks it address-taken, matching
				// global_opt.cpp's conservative "could escape" handling.
				if call, ok := e.(*CallExpr); ok {
					for _, a := range call.Args {
						if id, ok2 := a.(*Ident); ok2 {
							addressTaken[id.Name] = true
						}
					}
				}
			})
		})
	}

	constifiable := lo.Filter(prog.Globals, func(g *VarDecl, _ int) bool {
		_, isConst := constVal[g.Name]
		return isConst && writeCount[g.Name] == 1 && !addressTaken[g.Name]
	})
	names := lo.Map(constifiable, func(g *VarDecl, _ int) string { return g.Name })

	if len(names) == 0 {
		return 0, nil
	}

	for _, fn := range prog.Functions {
		walkStmts(fn.Body, func(s Stmt) {
			substInStmt(s, constVal, names)
			walkExprsInStmt(s, func(e Expr) {
				replaceGlobalLoads(e, constVal, names)
			})
		})
	}
	changed += len(names)

	// Count reads again: the substitution above replaced the loads.
	readCount = map[string]int{}
	for _, fn := range prog.Functions {
		walkStmts(fn.Body, func(s Stmt) {
			walkExprsInStmt(s, func(e Expr) {
				if id, ok := e.(*Ident); ok {
					readCount[id.Name]++
				}
			})
		})
	}

	keep := make([]*VarDecl, 0, len(prog.Globals))
	for _, g := range prog.Globals {
		if lo.Contains(names, g.Name) && readCount[g.Name] == 0 {
			changed++
			continue
		}
		keep = append(keep, g)
	}
	prog.Globals = keep

	return changed, nil
}

func isConstLiteral(e Expr) bool {
	switch e.(type) {
	case *IntLit, *FloatLit, *StringLit, *BoolLit:
		return true
	}
	return false
}

// replaceGlobalLoads walks the immediate subexpressions of e (binary/
// unary/call/member/index operands) and swaps any bare Ident naming a
// constified global for its literal value in place. Expressions are
// mutable struct pointers in ast.go, so this can rewrite through the
// parent's field directly rather than returning a replacement.
func replaceGlobalLoads(e Expr, constVal map[string]Expr, names []string) {
	switch n := e.(type) {
	case *BinaryExpr:
		n.Left = substIdent(n.Left, constVal, names)
		n.Right = substIdent(n.Right, constVal, names)
	case *UnaryExpr:
		n.Operand = substIdent(n.Operand, constVal, names)
	case *CallExpr:
		for i, a := range n.Args {
			n.Args[i] = substIdent(a, constVal, names)
		}
	case *MemberExpr:
		n.Object = substIdent(n.Object, constVal, names)
	case *IndexExpr:
		n.Object = substIdent(n.Object, constVal, names)
		n.Index = substIdent(n.Index, constVal, names)
	case *OrBangExpr:
		n.X = substIdent(n.X, constVal, names)
		n.Default = substIdent(n.Default, constVal, names)
	}
}

// substInStmt substitutes a constified global referenced directly as a
// statement-level expression field (VarDecl.Init, AssignStmt.Value,
// ReturnStmt.Value, ...) — the one case replaceGlobalLoads' "parent
// rewrites child" shape can't reach, since there the global Ident IS the
// whole field rather than nested inside a binary/call/member expression.
func substInStmt(s Stmt, constVal map[string]Expr, names []string) {
	switch n := s.(type) {
	case *VarDecl:
		n.Init = substIdent(n.Init, constVal, names)
	case *AssignStmt:
		n.Value = substIdent(n.Value, constVal, names)
	case *ExprStmt:
		n.X = substIdent(n.X, constVal, names)
	case *IfStmt:
		n.Cond = substIdent(n.Cond, constVal, names)
		for i := range n.Elif {
			n.Elif[i].Cond = substIdent(n.Elif[i].Cond, constVal, names)
		}
	case *WhileStmt:
		n.Cond = substIdent(n.Cond, constVal, names)
	case *ForRangeStmt:
		n.Lo = substIdent(n.Lo, constVal, names)
		n.Hi = substIdent(n.Hi, constVal, names)
	case *ForCallStmt:
		n.Iterable = substIdent(n.Iterable, constVal, names)
	case *MatchStmt:
		n.Scrutinee = substIdent(n.Scrutinee, constVal, names)
	case *ReturnStmt:
		n.Value = substIdent(n.Value, constVal, names)
	case *DeferStmt:
		n.Call = substIdent(n.Call, constVal, names)
	}
}

func substIdent(e Expr, constVal map[string]Expr, names []string) Expr {
	if e == nil {
		return nil
	}
	id, ok := e.(*Ident)
	if !ok {
		return e
	}
	for _, n := range names {
		if n == id.Name {
			return constVal[n]
		}
	}
	return e
}
