package main

import "sort"

// RegisterAllocator holds the two disjoint tables spec §3/§4.2 describes:
// functionLocal (re-allocated per function) and global (process-wide,
// assigned once at program start). A variable is register-resident iff
// its table entry is non-empty; otherwise it is stack-resident.
type RegisterAllocator struct {
	functionLocal map[string]string
	global        map[string]string
	globalRegs    []string // the disjoint subset global allocation reserved
}

func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{
		functionLocal: make(map[string]string),
		global:        make(map[string]string),
	}
}

// weight is the per-identifier score the spec's function-local allocator
// ranks candidates by: reads + 2*writes, with any use inside a loop body
// counted 10x (spec §4.2).
type weight struct {
	name  string
	score int
}

// identUse tallies reads/writes of a name inside a function body, applying
// the 10x loop multiplier spec §4.2 specifies. It is a second shallow AST
// walk, deliberately independent of frame.go's walk: the two collect
// different facts (stack layout vs. register priority) and keeping them
// separate keeps each walk a direct transcription of its own spec clause.
func identUse(body []Stmt) map[string]weight {
	scores := make(map[string]weight)
	bump := func(name string, reads, writes int, loopDepth int) {
		mult := 1
		if loopDepth > 0 {
			mult = 10
		}
		w := scores[name]
		w.name = name
		w.score += (reads + 2*writes) * mult
		scores[name] = w
	}

	var walkExpr func(Expr, int)
	var walkStmts func([]Stmt, int)

	walkExpr = func(e Expr, depth int) {
		switch n := e.(type) {
		case nil:
			return
		case *Ident:
			bump(n.Name, 1, 0, depth)
		case *BinaryExpr:
			walkExpr(n.Left, depth)
			walkExpr(n.Right, depth)
		case *UnaryExpr:
			walkExpr(n.Operand, depth)
		case *CallExpr:
			walkExpr(n.Callee, depth)
			for _, a := range n.Args {
				walkExpr(a, depth)
			}
		case *MemberExpr:
			walkExpr(n.Object, depth)
		case *IndexExpr:
			walkExpr(n.Object, depth)
			walkExpr(n.Index, depth)
		case *ListExpr:
			for _, el := range n.Elements {
				walkExpr(el, depth)
			}
		case *MapExpr:
			for _, k := range n.Keys {
				walkExpr(k, depth)
			}
			for _, v := range n.Values {
				walkExpr(v, depth)
			}
		case *OrBangExpr:
			walkExpr(n.X, depth)
			walkExpr(n.Default, depth)
		case *TupleExpr:
			for _, el := range n.Elements {
				walkExpr(el, depth)
			}
		}
	}

	walkStmts = func(stmts []Stmt, depth int) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *VarDecl:
				bump(n.Name, 0, 1, depth)
				walkExpr(n.Init, depth)
			case *AssignStmt:
				if id, ok := n.Target.(*Ident); ok {
					bump(id.Name, 0, 1, depth)
				} else {
					walkExpr(n.Target, depth)
				}
				walkExpr(n.Value, depth)
			case *ExprStmt:
				walkExpr(n.X, depth)
			case *IfStmt:
				walkExpr(n.Cond, depth)
				walkStmts(n.Then, depth)
				for _, el := range n.Elif {
					walkExpr(el.Cond, depth)
					walkStmts(el.Body, depth)
				}
				walkStmts(n.Else, depth)
			case *WhileStmt:
				walkExpr(n.Cond, depth+1)
				walkStmts(n.Body, depth+1)
			case *ForRangeStmt:
				bump(n.Var, 0, 1, depth)
				walkExpr(n.Lo, depth)
				walkExpr(n.Hi, depth)
				walkStmts(n.Body, depth+1)
			case *ForCallStmt:
				bump(n.Var, 0, 1, depth)
				walkExpr(n.Iterable, depth)
				walkStmts(n.Body, depth+1)
			case *MatchStmt:
				walkExpr(n.Scrutinee, depth)
				for _, arm := range n.Arms {
					walkStmts(arm.Body, depth)
				}
			case *ReturnStmt:
				walkExpr(n.Value, depth)
			case *ArenaStmt:
				walkStmts(n.Body, depth)
			case *DeferStmt:
				walkExpr(n.Call, depth)
			}
		}
	}

	walkStmts(body, 0)
	return scores
}

// AllocateFunctionLocal runs at the start of each function body: scores
// every identifier and assigns the top-N to callee-saved registers not
// already reserved by global allocation, in priority order.
func (ra *RegisterAllocator) AllocateFunctionLocal(body []Stmt) {
	ra.functionLocal = make(map[string]string)

	scores := identUse(body)
	ranked := make([]weight, 0, len(scores))
	for _, w := range scores {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name // deterministic tie-break
	})

	available := make([]string, 0, len(calleeSavedRegisters))
	for _, r := range calleeSavedRegisters {
		reserved := false
		for _, g := range ra.globalRegs {
			if g == r {
				reserved = true
				break
			}
		}
		if !reserved {
			available = append(available, r)
		}
	}

	for i, w := range ranked {
		if i >= len(available) {
			break
		}
		ra.functionLocal[w.name] = available[i]
	}
}

// AllocateGlobal runs once at program start over every top-level variable
// declaration and reserves a disjoint subset of callee-saved registers for
// them. `_start` (program.go's emitEntryPoint) does not save or restore
// these registers.
func (ra *RegisterAllocator) AllocateGlobal(globals []*VarDecl) {
	ra.global = make(map[string]string)
	ra.globalRegs = nil

	n := len(globals)
	if n > len(calleeSavedRegisters) {
		n = len(calleeSavedRegisters)
	}
	for i := 0; i < n; i++ {
		reg := calleeSavedRegisters[i]
		ra.global[globals[i].Name] = reg
		ra.globalRegs = append(ra.globalRegs, reg)
	}
}

// RegisterOf resolves name to a register, preferring the function-local
// table; returns ("", false) when the variable is stack-resident.
func (ra *RegisterAllocator) RegisterOf(name string) (string, bool) {
	if r, ok := ra.functionLocal[name]; ok {
		return r, true
	}
	if r, ok := ra.global[name]; ok {
		return r, true
	}
	return "", false
}

// Spill removes name's register binding, modeling the "taking an address
// moves it to the stack for the rest of that function" invariant (spec
// §4.2: promotion to stack is monotonic within a function). Callers must
// write the register's value into the variable's stack home before
// calling this, so the spill preserves the semantic value.
func (ra *RegisterAllocator) Spill(name string) {
	delete(ra.functionLocal, name)
	delete(ra.global, name)
}

// UsedLocalRegisters returns the set this function's prologue saves, in
// table order — the callee-saved registers this function's local
// allocation actually assigned, without the global set. emitFunction
// passes only this set to the prologue, so no function saves the global
// registers, including one that writes a global.
func (ra *RegisterAllocator) UsedLocalRegisters() []string {
	seen := make(map[string]bool)
	var regs []string
	for _, r := range ra.functionLocal {
		if !seen[r] {
			seen[r] = true
			regs = append(regs, r)
		}
	}
	sort.Strings(regs)
	return regs
}

func (ra *RegisterAllocator) GlobalRegisters() []string {
	return ra.globalRegs
}
