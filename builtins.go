package main

// builtinFunc lowers one builtin call, leaving its result in RAX/XMM0 like
// any other expression (spec §4.4/§4.9).
type builtinFunc func(c *Compiler, n *CallExpr) error

// builtinTable maps a builtin name straight to its lowering function, so
// call.go's lowerCall dispatch never grows a per-builtin switch arm: the
// representative subset spec §4.9 lists gets a real entry. A name missing
// from the table is not treated as a builtin: lowerCall resolves it as a
// function label, or else as a local closure variable.
var builtinTable = map[string]builtinFunc{
	// I/O (builtins_io.go)
	"print":   builtinPrint,
	"println": builtinPrintln,
	"open":    builtinOpen,
	"read":    builtinRead,
	"write":   builtinWrite,
	"close":   builtinClose,
	"readln":  builtinReadln,

	// List (builtins_list.go)
	"len":     builtinLen,
	"push":    builtinPush,
	"pop":     builtinPop,
	"first":   builtinFirst,
	"last":    builtinLast,
	"get":     builtinGet,
	"set":     builtinSet,
	"reverse": builtinReverse,
	"append":  builtinAppend,
	"slice":   builtinSlice,

	// Math (builtins_math.go)
	"sin":   builtinSin,
	"cos":   builtinCos,
	"sqrt":  builtinSqrt,
	"abs":   builtinAbs,
	"pow":   builtinPow,
	"gcd":   builtinGcd,
	"min":   builtinMin,
	"max":   builtinMax,
	"floor": builtinFloor,
	"ceil":  builtinCeil,

	// Result (builtins_result.go)
	"Ok":        builtinOk,
	"Err":       builtinErr,
	"is_ok":     builtinIsOk,
	"is_err":    builtinIsErr,
	"unwrap":    builtinUnwrap,
	"unwrap_or": builtinUnwrapOr,

	// Concurrency (builtins_concurrency.go)
	"chan_new":         builtinChanNew,
	"send":             builtinSend,
	"recv":             builtinRecv,
	"close_chan":       builtinCloseChan,
	"mutex_new":        builtinMutexNew,
	"lock":             builtinLock,
	"unlock":           builtinUnlock,
	"rwlock_new":       builtinRwlockNew,
	"read_lock":        builtinReadLock,
	"write_lock":       builtinWriteLock,
	"cond_new":         builtinCondNew,
	"wait":             builtinWait,
	"notify":           builtinNotify,
	"semaphore_new":    builtinSemaphoreNew,
	"acquire":          builtinAcquire,
	"release":          builtinRelease,
	"spawn":            builtinSpawn,
	"future_get":       builtinFutureGet,
	"cancel_token_new": builtinCancelTokenNew,
	"cancel":           builtinCancel,
	"is_cancelled":     builtinIsCancelled,
	"atomic_load":      builtinAtomicLoad,
	"atomic_store":     builtinAtomicStore,
	"atomic_swap":      builtinAtomicSwap,
	"atomic_cas":       builtinAtomicCas,
	"atomic_add":       builtinAtomicAdd,
	"atomic_sub":       builtinAtomicSub,
	"atomic_and":       builtinAtomicAnd,
	"atomic_or":        builtinAtomicOr,
	"atomic_xor":       builtinAtomicXor,

	// GC (builtins_gc.go)
	"gc_alloc_list":    builtinGCAllocList,
	"gc_alloc_record":  builtinGCAllocRecord,
	"gc_alloc_closure": builtinGCAllocClosure,
	"gc_alloc_map":     builtinGCAllocMap,
	"gc_alloc_raw":     builtinGCAllocRaw,
	"gc_collect":       builtinGCCollect,
}

// builtinNotImplemented builds a lowering that reports BadInput instead of
// emitting code. No builtinTable entry uses it, and lowerCall does not fall
// back to it for a name missing from the table.
func builtinNotImplemented(name string) builtinFunc {
	return func(c *Compiler, n *CallExpr) error {
		return badInput(n.Pos, "builtin %q not yet lowered", name)
	}
}

// tryConstInt reports whether e is a literal integer known at compile
// time, the same narrow test expr.go's tryStrengthReduce uses for its
// right-hand operand.
func tryConstInt(e Expr) (int64, bool) {
	if lit, ok := e.(*IntLit); ok {
		return lit.Value, true
	}
	return 0, false
}

func tryConstFloat(e Expr) (float64, bool) {
	switch lit := e.(type) {
	case *FloatLit:
		return lit.Value, true
	case *IntLit:
		return float64(lit.Value), true
	}
	return 0, false
}
