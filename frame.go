package main

// Frame is the local frame descriptor spec §3 describes: a mapping from
// variable name to a negative rbp-relative offset, a running cursor that
// grows downward in 8-byte units, and the final 16-byte-aligned frame
// size computed by a pre-pass over the function body (§4.3).
type Frame struct {
	offsets      map[string]int32
	stackOffset  int32 // next free slot, grows downward (more negative)
	stackSize    int32 // function_stack_size, 16-byte aligned
	allocated    bool  // stack_allocated: false => leaf/scratch-window mode
	noFrame      bool  // true => spec §8's "no prologue at all" boundary case
	savedRegs    []string
	isGeneric    bool // specialized-generic bodies use the oversized base
}

const (
	frameBaseNormal  = 0x40
	frameBaseGeneric = 0x200
	shadowSpaceBytes = 32
)

func NewFrame() *Frame {
	return &Frame{
		offsets: make(map[string]int32),
	}
}

// Alloc reserves the next 8-byte slot for name and returns its rbp-relative
// offset. Plan sizes locals_bytes from the declarations walkForFrameStats
// counts; the slots Alloc hands out for parameters and compiler
// temporaries are not part of that count, and nothing here checks
// stackOffset against -stackSize + shadowSpaceBytes.
func (f *Frame) Alloc(name string) int32 {
	f.stackOffset -= 8
	f.offsets[name] = f.stackOffset
	return f.stackOffset
}

func (f *Frame) OffsetOf(name string) (int32, bool) {
	off, ok := f.offsets[name]
	return off, ok
}

// AllocBytes reserves a contiguous size-byte region (rounded up to 8)
// below the current cursor and returns its lowest rbp-relative offset,
// for builtins that need a real scratch buffer rather than a single
// 8-byte slot (builtins_io.go's read/readln, mirroring
// codegen_call_builtins_io.cpp's own raw stackOffset adjustment for the
// same two builtins).
func (f *Frame) AllocBytes(name string, size int32) int32 {
	size = alignUp(size, 8)
	f.stackOffset -= size
	f.offsets[name] = f.stackOffset
	return f.stackOffset
}

// bodyStats is the pre-pass result the frame planner walks the function
// body to collect (spec §4.3): the max shadow space any call site needs,
// a count of distinct locally declared names, and whether the function
// makes any call at all (leaf-function eligibility).
type bodyStats struct {
	maxCallArgShadow int32
	localCount       int
	hasCalls         bool
}

// walkForFrameStats is a shallow AST walk; it does not need to be a full
// visitor because only declaration counts and call arg counts feed the
// frame-size formula — everything else is handled at lowering time by
// expr.go/stmt.go, which call Frame.Alloc directly as they encounter new
// declarations.
func walkForFrameStats(body []Stmt) bodyStats {
	var stats bodyStats
	var walkStmts func([]Stmt)
	var walkExpr func(Expr)

	walkExpr = func(e Expr) {
		switch n := e.(type) {
		case nil:
			return
		case *CallExpr:
			stats.hasCalls = true
			shadow := int32(shadowSpaceBytes)
			if extra := len(n.Args) - 4; extra > 0 {
				shadow += int32(extra) * 8
			}
			if shadow > stats.maxCallArgShadow {
				stats.maxCallArgShadow = shadow
			}
			walkExpr(n.Callee)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *BinaryExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *UnaryExpr:
			walkExpr(n.Operand)
		case *MemberExpr:
			walkExpr(n.Object)
		case *IndexExpr:
			walkExpr(n.Object)
			walkExpr(n.Index)
		case *ListExpr:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *MapExpr:
			for _, k := range n.Keys {
				walkExpr(k)
			}
			for _, v := range n.Values {
				walkExpr(v)
			}
		case *LambdaExpr:
			walkStmts(n.Body)
		case *OrBangExpr:
			walkExpr(n.X)
			walkExpr(n.Default)
		case *ArenaExpr:
			walkStmts(n.Body)
			walkExpr(n.Result)
		case *TupleExpr:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		}
	}

	walkStmts = func(stmts []Stmt) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *VarDecl:
				stats.localCount++
				walkExpr(n.Init)
			case *DestructureStmt:
				stats.localCount += len(n.Names)
				walkExpr(n.Value)
			case *AssignStmt:
				walkExpr(n.Target)
				walkExpr(n.Value)
			case *ExprStmt:
				walkExpr(n.X)
			case *IfStmt:
				walkExpr(n.Cond)
				walkStmts(n.Then)
				for _, el := range n.Elif {
					walkExpr(el.Cond)
					walkStmts(el.Body)
				}
				walkStmts(n.Else)
			case *WhileStmt:
				walkExpr(n.Cond)
				walkStmts(n.Body)
			case *ForRangeStmt:
				stats.localCount++ // loop var
				walkExpr(n.Lo)
				walkExpr(n.Hi)
				walkStmts(n.Body)
			case *ForCallStmt:
				stats.localCount++
				walkExpr(n.Iterable)
				walkStmts(n.Body)
			case *MatchStmt:
				walkExpr(n.Scrutinee)
				stats.localCount++ // scrutinee spill slot
				for _, arm := range n.Arms {
					walkStmts(arm.Body)
				}
			case *ReturnStmt:
				walkExpr(n.Value)
			case *ArenaStmt:
				stats.localCount++ // arena pointer
				walkStmts(n.Body)
			case *DeferStmt:
				walkExpr(n.Call)
			}
		}
	}

	walkStmts(body)
	return stats
}

func alignUp(v, align int32) int32 {
	if v%align == 0 {
		return v
	}
	return v + (align - v%align)
}

// Plan computes function_stack_size per spec §4.3's formula and decides
// whether the function qualifies for leaf-function mode (no prologue RSP
// adjustment, scratch window below RSP instead) or, more narrowly, for
// spec §8's named boundary case: a function with zero locals, zero
// parameters, and zero calls emits no prologue/epilogue at all, not even
// the rbp push/mov pair. hasParams must reflect every rbp-addressed slot
// the caller allocates before calling Plan (ordinary parameters, plus, for
// a lambda body, its mandatory closure-pointer and capture slots).
func (f *Frame) Plan(body []Stmt, savedRegs []string, isGeneric bool, hasParams bool) {
	stats := walkForFrameStats(body)
	f.savedRegs = savedRegs
	f.isGeneric = isGeneric

	base := int32(frameBaseNormal)
	if isGeneric {
		base = frameBaseGeneric
	}
	localsBytes := int32(stats.localCount) * 8
	calleeSaveBytes := int32(len(savedRegs)) * 8

	if !stats.hasCalls && stats.localCount == 0 && !hasParams && len(savedRegs) == 0 {
		// Spec §8's named boundary case: a leaf function with zero locals
		// and zero calls emits no prologue at all, since there is nothing
		// to address relative to rbp and nothing below rsp to protect.
		f.noFrame = true
		f.allocated = false
		f.stackSize = 0
		return
	}

	if !stats.hasCalls && stats.localCount <= 4 {
		// Leaf function: skip the RSP adjustment entirely, use a small
		// scratch window below RSP for the handful of locals (spec §4.3).
		f.allocated = false
		f.stackSize = alignUp(localsBytes+calleeSaveBytes, 16)
		return
	}

	f.allocated = true
	f.stackSize = alignUp(base+localsBytes+stats.maxCallArgShadow, 16)
}

func (f *Frame) IsLeaf() bool { return !f.allocated }
func (f *Frame) Size() int32  { return f.stackSize }
