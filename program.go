package main

import "fmt"

// Verbose gates diagnostic output the way flapc's VerboseMode does: a
// compiler that emits raw machine code byte-by-byte has no use for a
// leveled logging library, so this is the whole of the ambient logging
// surface (SPEC_FULL.md §2).
var Verbose = false

func logf(format string, args ...any) {
	if Verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// Compiler is the top-level orchestrator: one instance per Compile call,
// owning the instruction buffer, the two register-allocation tables, the
// per-function frame, the type-classification side tables, the record
// layout table, and the external collaborators (PE writer, monomorphizer).
type Compiler struct {
	prog    *Program
	target  *Target
	opt     OptLevel
	eb      *InstructionBuffer
	regs    *RegisterAllocator
	frame   *Frame
	types   *TypeTables
	records *RecordTypeTable
	traits  *TraitTable
	pe      PEWriter
	mono    Monomorphizer
	gc      GCRuntime

	currentFunc       *FuncDecl
	importedFunctions []string
	dllImports        map[string]string // symbol -> dll name
	labelCounter      int
	loopLabels        []loopLabelPair
	deferStack        [][]Expr // one slice per lexically enclosing block
	currentArena      int
	gcSymbolsUsed     []string

	lastExprWasFloat bool
}

type loopLabelPair struct {
	continueLabel string
	breakLabel    string
	deferDepth    int // c.deferStack depth at loop entry; break/continue run frames down to this
}

// CompileOptions bundles the CLI-surface knobs (SPEC_FULL.md §6).
type CompileOptions struct {
	Output   OutputKind
	Opt      OptLevel
	DefFile  string
}

// NewCompiler wires a Compiler against the given collaborators. pe and mono
// may be nil in tests that only assert on emitted bytes/label tables; gc
// defaults to the built-in GCRuntime (builtins_gc.go) when nil.
func NewCompiler(prog *Program, opts CompileOptions, pe PEWriter, mono Monomorphizer, gc GCRuntime) *Compiler {
	if gc == nil {
		gc = NewDefaultGCRuntime()
	}
	target := NewTarget(opts.Output)
	target.DefFile = opts.DefFile
	return &Compiler{
		prog:       prog,
		target:     target,
		opt:        opts.Opt,
		eb:         NewInstructionBuffer(),
		regs:       NewRegisterAllocator(),
		frame:      NewFrame(),
		types:      NewTypeTables(),
		pe:         pe,
		mono:       mono,
		gc:         gc,
		dllImports: make(map[string]string),
	}
}

func (c *Compiler) newLabel(prefix string) string {
	c.labelCounter++
	return fmt.Sprintf("%s_%d", prefix, c.labelCounter)
}

// Compile runs the full pipeline: optimizer passes, then emission in the
// fixed order spec §2 names — `_start`, every function, specialized
// generics, impl methods, trait trampolines, then shared runtime snippets
// — then finalization and, if a PEWriter collaborator is present, the
// linker orchestration that produces the final file bytes.
//
// Emission is all-or-nothing: the first fatal error aborts before any
// bytes reach the PE writer (spec §7).
func (c *Compiler) Compile() ([]byte, error) {
	if err := RunOptimizer(c.prog, c.opt); err != nil {
		// Optimizer failures are non-fatal per spec §7: log and continue
		// with the (partially) unoptimized AST.
		logf("optimizer: %v (continuing unoptimized)", err)
	}

	c.records = BuildRecordTypeTable(c.prog)
	c.traits = BuildTraitTable(c.prog)
	c.regs.AllocateGlobal(c.prog.Globals)

	if err := c.emitEntryPoint(); err != nil {
		return nil, err
	}
	for _, fn := range c.prog.Functions {
		if fn.IsExtern {
			continue
		}
		if err := c.emitFunction(fn); err != nil {
			return nil, err
		}
	}
	if c.mono != nil {
		for _, spec := range c.mono.Specializations() {
			if err := c.emitSpecialization(spec); err != nil {
				return nil, err
			}
		}
	}
	for _, impl := range c.prog.Impls {
		for _, m := range impl.Methods {
			if err := c.emitFunction(m); err != nil {
				return nil, err
			}
		}
	}
	if err := c.emitTraitTrampolines(); err != nil {
		return nil, err
	}
	if !c.opt.InlinesRuntimeSnippets() {
		if err := c.emitRuntimeSnippets(); err != nil {
			return nil, err
		}
	}
	if err := c.emitImportThunks(); err != nil {
		return nil, err
	}

	if err := c.eb.Finalize(); err != nil {
		return nil, err
	}

	if c.pe == nil {
		return c.eb.Bytes(), nil
	}
	return LinkProgram(c)
}

// emitEntryPoint lowers `_start` (EXE) or `DllMain` (DLL): calls main if
// present, forwards its return value to ExitProcess (spec §6).
func (c *Compiler) emitEntryPoint() error {
	if err := c.eb.Label(c.target.EntrySymbol()); err != nil {
		return err
	}
	c.eb.PushReg("rbp")
	c.eb.MovRegToReg("rbp", "rsp")
	c.eb.SubImmFromReg("rsp", shadowSpaceBytes)

	var hasMain bool
	for _, fn := range c.prog.Functions {
		if fn.Name == "main" {
			hasMain = true
		}
	}
	if hasMain {
		c.eb.CallSymbol("main")
	} else {
		c.eb.XorRegToReg("rax", "rax")
	}

	if c.target.Kind == OutputEXE {
		c.eb.MovRegToReg("rcx", "rax")
		if !c.hasImport("ExitProcess") {
			c.importDLLFunction("ExitProcess", "kernel32.dll")
		}
		c.eb.CallSymbol("__imp_ExitProcess")
	} else {
		c.eb.AddImmToReg("rsp", shadowSpaceBytes)
		c.eb.PopReg("rbp")
		c.eb.Ret()
	}
	return nil
}

func (c *Compiler) hasImport(name string) bool {
	for _, f := range c.importedFunctions {
		if f == name {
			return true
		}
	}
	return false
}

func (c *Compiler) importDLLFunction(name, dll string) {
	c.importedFunctions = append(c.importedFunctions, name)
	c.dllImports["__imp_"+name] = dll
}

// emitFunction lowers one FuncDecl end to end: prologue, body, implicit
// return-zero if the body has no trailing terminator, epilogue.
func (c *Compiler) emitFunction(fn *FuncDecl) error {
	c.currentFunc = fn
	c.types.Reset()
	c.frame = NewFrame()
	c.regs.AllocateFunctionLocal(fn.Body)

	if err := c.eb.Label(fn.Name); err != nil {
		return err
	}

	for i, p := range fn.Params {
		c.frame.Alloc(p.Name)
		if p.Type.IsFloat() {
			c.types.RecordFloat(p.Name)
		}
		if i < len(argRegisters) {
			off, _ := c.frame.OffsetOf(p.Name)
			if p.Type.IsFloat() && i < len(argXMMRegisters) {
				c.eb.MovsdXmmToMem(argXMMRegisters[i], "rbp", off)
			} else {
				c.eb.MovRegToMem(argRegisters[i], "rbp", off)
			}
		}
	}

	c.frame.Plan(fn.Body, c.regs.UsedLocalRegisters(), len(fn.Generic) > 0, len(fn.Params) > 0)
	c.emitPrologue()

	terminated, err := c.lowerStmts(fn.Body)
	if err != nil {
		return err
	}
	if !terminated {
		c.emitReturn(nil)
	}
	return nil
}

func (c *Compiler) emitPrologue() {
	if c.frame.noFrame {
		return
	}
	c.eb.PushReg("rbp")
	c.eb.MovRegToReg("rbp", "rsp")
	for _, r := range c.frame.savedRegs {
		c.eb.PushReg(r)
	}
	if c.frame.allocated && c.frame.stackSize > 0 {
		c.eb.SubImmFromReg("rsp", int64(c.frame.stackSize))
	}
}

func (c *Compiler) emitEpilogue() {
	if c.frame.noFrame {
		return
	}
	if c.frame.allocated && c.frame.stackSize > 0 {
		c.eb.AddImmToReg("rsp", int64(c.frame.stackSize))
	}
	for i := len(c.frame.savedRegs) - 1; i >= 0; i-- {
		c.eb.PopReg(c.frame.savedRegs[i])
	}
	c.eb.PopReg("rbp")
}

// emitReturn lowers the common tail shared by ReturnStmt and the implicit
// return-zero: evaluate the value (leaving it in RAX/XMM0), tear down the
// frame, ret.
func (c *Compiler) emitReturn(value Expr) error {
	if value == nil {
		c.eb.XorRegToReg("rax", "rax")
	} else if err := c.lowerExpr(value); err != nil {
		return err
	}
	c.emitEpilogue()
	c.eb.Ret()
	return nil
}

func (c *Compiler) emitSpecialization(spec MonoSpec) error {
	fn, ok := c.lookupFunction(spec.GenericName)
	if !ok {
		return internalError("monomorphizer referenced unknown generic function %q", spec.GenericName)
	}
	specialized := *fn
	specialized.Name = spec.MangledName
	specialized.Generic = nil
	return c.emitFunction(&specialized)
}

func (c *Compiler) lookupFunction(name string) (*FuncDecl, bool) {
	for _, fn := range c.prog.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}
