package main

import (
	"bytes"
	"fmt"
)

// PCRelocation is a pending RIP-relative fix-up: a LEA or MOV that addressed
// a data symbol (string constant, float constant, vtable, import thunk)
// whose final RVA is only known once the PE writer lays out sections.
type PCRelocation struct {
	Offset     uint64 // byte offset of the 32-bit displacement field
	SymbolName string
}

// CallPatch is a pending rel32 fix-up for a CALL or JMP whose target is a
// label bound later in the same buffer (a forward function reference, or a
// backward edge that predates its own label binding in degenerate cases).
type CallPatch struct {
	Offset uint64
	Target string
}

// InstructionBuffer is the byte vector plus label table and fix-up list
// described in spec §3/§4.1. Every primitive emitter appends raw bytes and,
// for symbolic operands, records a fix-up instead of guessing an offset.
type InstructionBuffer struct {
	text          bytes.Buffer
	labels        map[string]uint64
	pcRelocations []PCRelocation
	callPatches   []CallPatch

	// dataRelocations mirrors pcRelocations but for references into the
	// PEWriter-owned data section (strings, float constants, vtables);
	// these are forwarded verbatim rather than resolved locally.
	dataRelocations []PCRelocation
}

func NewInstructionBuffer() *InstructionBuffer {
	return &InstructionBuffer{
		labels: make(map[string]uint64),
	}
}

func (eb *InstructionBuffer) write(b uint8) {
	eb.text.WriteByte(b)
}

func (eb *InstructionBuffer) writeUnsigned(v uint) {
	eb.text.WriteByte(uint8(v))
	eb.text.WriteByte(uint8(v >> 8))
	eb.text.WriteByte(uint8(v >> 16))
	eb.text.WriteByte(uint8(v >> 24))
}

func (eb *InstructionBuffer) Offset() uint64 {
	return uint64(eb.text.Len())
}

// Label binds name to the current offset. Re-binding an already-bound label
// is an Internal error: the caller asked for two program points to share one
// symbolic name, which is always a compiler bug rather than bad input.
func (eb *InstructionBuffer) Label(name string) error {
	if _, exists := eb.labels[name]; exists {
		return &CompileError{Kind: Internal, Message: fmt.Sprintf("label %q bound twice", name)}
	}
	eb.labels[name] = eb.Offset()
	return nil
}

// Finalize walks every pending fix-up and writes its resolved displacement
// in place. It must run exactly once, after every label in the program has
// been bound (entry points, functions, specialized generics, impl methods,
// trait trampolines, runtime snippets).
func (eb *InstructionBuffer) Finalize() error {
	raw := eb.text.Bytes()
	for _, patch := range eb.callPatches {
		target, ok := eb.labels[patch.Target]
		if !ok {
			return &CompileError{Kind: Internal, Message: fmt.Sprintf("unbound label %q at offset %d", patch.Target, patch.Offset)}
		}
		disp := int64(target) - int64(patch.Offset+4)
		if disp > 0x7FFFFFFF || disp < -0x80000000 {
			return &CompileError{Kind: OffsetOverflow, Message: fmt.Sprintf("displacement to %q does not fit in 32 bits", patch.Target)}
		}
		putRel32(raw, patch.Offset, int32(disp))
	}
	return nil
}

func putRel32(buf []byte, offset uint64, disp int32) {
	u := uint32(disp)
	buf[offset] = byte(u)
	buf[offset+1] = byte(u >> 8)
	buf[offset+2] = byte(u >> 16)
	buf[offset+3] = byte(u >> 24)
}

// Bytes returns the finalized code section. Callers must invoke Finalize
// first; Bytes does not re-resolve fix-ups.
func (eb *InstructionBuffer) Bytes() []byte {
	return eb.text.Bytes()
}

func regRex(base uint8, reg RegisterInfo, bit uint8) uint8 {
	if reg.Encoding >= 8 {
		base |= bit
	}
	return base
}

// ===== Control flow =====

func (eb *InstructionBuffer) Ret() {
	eb.write(0xC3)
}

// CallSymbol emits a call to an import-table thunk or runtime-local label
// resolved later via callPatches; both direct labels and PE import RVAs
// share this single call-site shape (call rel32), matching the ABI table
// in spec §4.6 where extern calls and direct calls differ only in what the
// fix-up ultimately resolves to.
func (eb *InstructionBuffer) CallSymbol(target string) {
	eb.write(0xE8)
	offset := eb.Offset()
	eb.callPatches = append(eb.callPatches, CallPatch{Offset: offset, Target: target})
	eb.writeUnsigned(0xDEADBEEF)
}

func (eb *InstructionBuffer) CallRelative(label string) {
	eb.CallSymbol(label)
}

// CallRegister emits `call reg`, used for closure and vtable dispatch.
func (eb *InstructionBuffer) CallRegister(reg string) {
	regInfo, ok := x86_64Registers[reg]
	if !ok {
		return
	}
	if regInfo.Encoding >= 8 {
		eb.write(0x41)
	}
	eb.write(0xFF)
	modrm := uint8(0xD0) | (regInfo.Encoding & 7)
	eb.write(modrm)
}

// JumpRegister emits `jmp reg`, used by import thunks to tail-jump through
// an IAT slot once it has been loaded into a register.
func (eb *InstructionBuffer) JumpRegister(reg string) {
	regInfo, ok := x86_64Registers[reg]
	if !ok {
		return
	}
	if regInfo.Encoding >= 8 {
		eb.write(0x41)
	}
	eb.write(0xFF)
	modrm := uint8(0xE0) | (regInfo.Encoding & 7)
	eb.write(modrm)
}

func (eb *InstructionBuffer) JumpUnconditional(label string) {
	eb.write(0xE9)
	offset := eb.Offset()
	eb.callPatches = append(eb.callPatches, CallPatch{Offset: offset, Target: label})
	eb.writeUnsigned(0xDEADBEEF)
}

// JumpCondition enumerates the Jcc condition codes used at branch sites.
type JumpCondition int

const (
	JumpEqual JumpCondition = iota
	JumpNotEqual
	JumpLess
	JumpLessOrEqual
	JumpGreater
	JumpGreaterOrEqual
	JumpAbove
	JumpAboveOrEqual
	JumpBelow
	JumpBelowOrEqual
)

var jccOpcodes = map[JumpCondition]uint8{
	JumpEqual:          0x84,
	JumpNotEqual:       0x85,
	JumpLess:           0x8C,
	JumpLessOrEqual:    0x8E,
	JumpGreater:        0x8F,
	JumpGreaterOrEqual: 0x8D,
	JumpAbove:          0x87,
	JumpAboveOrEqual:   0x83,
	JumpBelow:          0x82,
	JumpBelowOrEqual:   0x86,
}

func (eb *InstructionBuffer) JumpConditional(cond JumpCondition, label string) {
	op, ok := jccOpcodes[cond]
	if !ok {
		return
	}
	eb.write(0x0F)
	eb.write(op)
	offset := eb.Offset()
	eb.callPatches = append(eb.callPatches, CallPatch{Offset: offset, Target: label})
	eb.writeUnsigned(0xDEADBEEF)
}

// ===== Data movement =====

func (eb *InstructionBuffer) MovRegToReg(dst, src string) {
	dstReg, dstOk := x86_64Registers[dst]
	srcReg, srcOk := x86_64Registers[src]
	if !dstOk || !srcOk {
		return
	}
	if dstReg.IsXMM && srcReg.IsXMM {
		eb.write(0xF2)
		rex := regRex(0x40, dstReg, 0x04)
		rex = regRex(rex, srcReg, 0x01)
		if rex != 0x40 {
			eb.write(rex)
		}
		eb.write(0x0F)
		eb.write(0x10)
		modrm := uint8(0xC0) | ((dstReg.Encoding & 7) << 3) | (srcReg.Encoding & 7)
		eb.write(modrm)
		return
	}
	rex := regRex(0x48, dstReg, 0x01)
	rex = regRex(rex, srcReg, 0x04)
	eb.write(rex)
	eb.write(0x89)
	modrm := uint8(0xC0) | ((srcReg.Encoding & 7) << 3) | (dstReg.Encoding & 7)
	eb.write(modrm)
}

func (eb *InstructionBuffer) MovImmToReg(dst string, imm int64) {
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	rex := regRex(0x48, dstReg, 0x01)
	eb.write(rex)
	eb.write(0xC7)
	modrm := uint8(0xC0) | (dstReg.Encoding & 7)
	eb.write(modrm)
	eb.writeUnsigned(uint(uint32(imm)))
}

func modrmDisp(mod, reg, rm uint8) uint8 {
	return mod | (reg << 3) | rm
}

func (eb *InstructionBuffer) memOperand(regEnc uint8, baseReg RegisterInfo, offset int32) {
	base := baseReg.Encoding & 7
	needsSIB := base == 4
	switch {
	case offset == 0 && base != 5:
		eb.write(modrmDisp(0x00, regEnc, base))
		if needsSIB {
			eb.write(0x24)
		}
	case offset >= -128 && offset <= 127:
		eb.write(modrmDisp(0x40, regEnc, base))
		if needsSIB {
			eb.write(0x24)
		}
		eb.write(uint8(offset))
	default:
		eb.write(modrmDisp(0x80, regEnc, base))
		if needsSIB {
			eb.write(0x24)
		}
		eb.writeUnsigned(uint(uint32(offset)))
	}
}

func (eb *InstructionBuffer) MovMemToReg(dst, base string, offset int32) {
	dstReg, dstOk := x86_64Registers[dst]
	baseReg, baseOk := x86_64Registers[base]
	if !dstOk || !baseOk {
		return
	}
	rex := regRex(0x48, dstReg, 0x04)
	rex = regRex(rex, baseReg, 0x01)
	eb.write(rex)
	eb.write(0x8B)
	eb.memOperand(dstReg.Encoding&7, baseReg, offset)
}

func (eb *InstructionBuffer) MovRegToMem(src, base string, offset int32) {
	srcReg, srcOk := x86_64Registers[src]
	baseReg, baseOk := x86_64Registers[base]
	if !srcOk || !baseOk {
		return
	}
	rex := regRex(0x48, srcReg, 0x04)
	rex = regRex(rex, baseReg, 0x01)
	eb.write(rex)
	eb.write(0x89)
	eb.memOperand(srcReg.Encoding&7, baseReg, offset)
}

// MovByteRegToMem writes the low byte of src to [base+offset], used by the
// arena string-literal writer and by builtin string construction.
func (eb *InstructionBuffer) MovByteRegToMem(src, base string, offset int32) {
	srcReg, srcOk := x86_64Registers[src]
	baseReg, baseOk := x86_64Registers[base]
	if !srcOk || !baseOk {
		return
	}
	rex := regRex(0x40, srcReg, 0x04)
	rex = regRex(rex, baseReg, 0x01)
	if rex != 0x40 {
		eb.write(rex)
	}
	eb.write(0x88)
	eb.memOperand(srcReg.Encoding&7, baseReg, offset)
}

// LeaSymbolToReg emits `lea dst, [rip+symbol]`, recording a PCRelocation
// that the PE writer resolves once data-section RVAs are known.
func (eb *InstructionBuffer) LeaSymbolToReg(dst, symbol string) {
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	rex := regRex(0x48, dstReg, 0x04)
	eb.write(rex)
	eb.write(0x8D)
	modrm := uint8(0x05) | ((dstReg.Encoding & 7) << 3)
	eb.write(modrm)
	eb.dataRelocations = append(eb.dataRelocations, PCRelocation{Offset: eb.Offset(), SymbolName: symbol})
	eb.writeUnsigned(0xDEADBEEF)
}

func (eb *InstructionBuffer) LeaMemToReg(dst, base string, offset int32) {
	dstReg, dstOk := x86_64Registers[dst]
	baseReg, baseOk := x86_64Registers[base]
	if !dstOk || !baseOk {
		return
	}
	rex := regRex(0x48, dstReg, 0x04)
	rex = regRex(rex, baseReg, 0x01)
	eb.write(rex)
	eb.write(0x8D)
	eb.memOperand(dstReg.Encoding&7, baseReg, offset)
}

// ===== Integer arithmetic =====

func (eb *InstructionBuffer) regRegOp(opcode uint8, dst, src string) {
	dstReg, dstOk := x86_64Registers[dst]
	srcReg, srcOk := x86_64Registers[src]
	if !dstOk || !srcOk {
		return
	}
	rex := regRex(0x48, dstReg, 0x01)
	rex = regRex(rex, srcReg, 0x04)
	eb.write(rex)
	eb.write(opcode)
	modrm := uint8(0xC0) | ((srcReg.Encoding & 7) << 3) | (dstReg.Encoding & 7)
	eb.write(modrm)
}

// regImmOp emits the 0x83/0x81 immediate group, where extOpcode picks the
// ModRM reg-field extension (ADD=0, OR=1, AND=4, SUB=5, XOR=6, CMP=7).
func (eb *InstructionBuffer) regImmOp(extOpcode uint8, dst string, imm int64) {
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	rex := regRex(0x48, dstReg, 0x01)
	eb.write(rex)
	imm32 := int32(imm)
	if imm32 >= -128 && imm32 <= 127 {
		eb.write(0x83)
		eb.write(uint8(0xC0) | (extOpcode << 3) | (dstReg.Encoding & 7))
		eb.write(uint8(imm32))
	} else {
		eb.write(0x81)
		eb.write(uint8(0xC0) | (extOpcode << 3) | (dstReg.Encoding & 7))
		eb.writeUnsigned(uint(uint32(imm32)))
	}
}

func (eb *InstructionBuffer) AddRegToReg(dst, src string) { eb.regRegOp(0x01, dst, src) }
func (eb *InstructionBuffer) AddImmToReg(dst string, imm int64) {
	if imm == 0 {
		return
	}
	eb.regImmOp(0x00, dst, imm)
}

func (eb *InstructionBuffer) SubRegToReg(dst, src string) { eb.regRegOp(0x29, dst, src) }
func (eb *InstructionBuffer) SubImmFromReg(dst string, imm int64) {
	if imm == 0 {
		return
	}
	eb.regImmOp(0x05, dst, imm)
}

func (eb *InstructionBuffer) XorRegToReg(dst, src string) { eb.regRegOp(0x31, dst, src) }
func (eb *InstructionBuffer) XorImmToReg(dst string, imm int64) { eb.regImmOp(0x06, dst, imm) }
func (eb *InstructionBuffer) AndRegToReg(dst, src string)       { eb.regRegOp(0x21, dst, src) }
func (eb *InstructionBuffer) AndImmToReg(dst string, imm int64) { eb.regImmOp(0x04, dst, imm) }
func (eb *InstructionBuffer) OrRegToReg(dst, src string)        { eb.regRegOp(0x09, dst, src) }
func (eb *InstructionBuffer) OrImmToReg(dst string, imm int64)  { eb.regImmOp(0x01, dst, imm) }
func (eb *InstructionBuffer) CmpRegToReg(dst, src string)       { eb.regRegOp(0x39, dst, src) }
func (eb *InstructionBuffer) CmpRegToImm(dst string, imm int64) { eb.regImmOp(0x07, dst, imm) }

// unaryGroupF7 emits the F7 /n group (NOT=2, NEG=3, IDIV=7).
func (eb *InstructionBuffer) unaryGroupF7(ext uint8, dst string) {
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	rex := regRex(0x48, dstReg, 0x01)
	eb.write(rex)
	eb.write(0xF7)
	eb.write(uint8(0xC0) | (ext << 3) | (dstReg.Encoding & 7))
}

func (eb *InstructionBuffer) NotReg(dst string) { eb.unaryGroupF7(2, dst) }
func (eb *InstructionBuffer) NegReg(dst string) { eb.unaryGroupF7(3, dst) }

func (eb *InstructionBuffer) incDecFF(ext uint8, dst string) {
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	rex := regRex(0x48, dstReg, 0x01)
	eb.write(rex)
	eb.write(0xFF)
	eb.write(uint8(0xC0) | (ext << 3) | (dstReg.Encoding & 7))
}

func (eb *InstructionBuffer) IncReg(dst string) { eb.incDecFF(0, dst) }
func (eb *InstructionBuffer) DecReg(dst string) { eb.incDecFF(1, dst) }

// MulRegToReg emits signed IMUL dst, src (0F AF).
func (eb *InstructionBuffer) MulRegToReg(dst, src string) {
	dstReg, dstOk := x86_64Registers[dst]
	srcReg, srcOk := x86_64Registers[src]
	if !dstOk || !srcOk {
		return
	}
	rex := regRex(0x48, dstReg, 0x04)
	rex = regRex(rex, srcReg, 0x01)
	eb.write(rex)
	eb.write(0x0F)
	eb.write(0xAF)
	modrm := uint8(0xC0) | ((dstReg.Encoding & 7) << 3) | (srcReg.Encoding & 7)
	eb.write(modrm)
}

// DivRegToReg emits the signed-division sequence RAX:RDX/src -> quotient in
// RAX, remainder in RDX: `cqo; idiv src`. Caller is responsible for the
// dst==rax precondition; the lowerer (expr.go) enforces it before calling.
func (eb *InstructionBuffer) DivRegToReg(src string) {
	eb.write(0x48)
	eb.write(0x99) // CQO
	eb.unaryGroupF7(7, src)
}

// XchgMemToReg emits `xchg [mem], src` (atomic on x86-64 with no LOCK
// prefix needed): swaps src with the 8 bytes at [mem], old value left in
// src. Used by builtins_concurrency.go's atomic_swap.
func (eb *InstructionBuffer) XchgMemToReg(mem, src string) {
	memReg, memOk := x86_64Registers[mem]
	srcReg, srcOk := x86_64Registers[src]
	if !memOk || !srcOk {
		return
	}
	rex := regRex(0x48, memReg, 0x01)
	rex = regRex(rex, srcReg, 0x04)
	eb.write(rex)
	eb.write(0x87)
	eb.write(((srcReg.Encoding & 7) << 3) | (memReg.Encoding & 7))
}

// LockXaddMemToReg emits `lock xadd [mem], src`: atomically adds src to
// [mem], leaving the prior value of [mem] in src. Used by
// builtins_concurrency.go's atomic_add/atomic_sub.
func (eb *InstructionBuffer) LockXaddMemToReg(mem, src string) {
	memReg, memOk := x86_64Registers[mem]
	srcReg, srcOk := x86_64Registers[src]
	if !memOk || !srcOk {
		return
	}
	eb.write(0xF0) // LOCK
	rex := regRex(0x48, memReg, 0x01)
	rex = regRex(rex, srcReg, 0x04)
	eb.write(rex)
	eb.write(0x0F)
	eb.write(0xC1)
	eb.write(((srcReg.Encoding & 7) << 3) | (memReg.Encoding & 7))
}

// LockCmpxchgMemToReg emits `lock cmpxchg [mem], src`: compares RAX
// against [mem]; on a match, stores src into [mem] and sets ZF, else
// loads [mem] into RAX and clears ZF. Used by builtins_concurrency.go's
// compare-and-swap loops (atomic_cas, and the and/or/xor CAS retries),
// which always arrange RAX = expected before the call.
func (eb *InstructionBuffer) LockCmpxchgMemToReg(mem, src string) {
	memReg, memOk := x86_64Registers[mem]
	srcReg, srcOk := x86_64Registers[src]
	if !memOk || !srcOk {
		return
	}
	eb.write(0xF0) // LOCK
	rex := regRex(0x48, memReg, 0x01)
	rex = regRex(rex, srcReg, 0x04)
	eb.write(rex)
	eb.write(0x0F)
	eb.write(0xB1)
	eb.write(((srcReg.Encoding & 7) << 3) | (memReg.Encoding & 7))
}

// Mfence emits a full memory fence, used for SeqCst-ordered atomics.
func (eb *InstructionBuffer) Mfence() {
	eb.write(0x0F)
	eb.write(0xAE)
	eb.write(0xF0)
}

// ShlRegImm / SarRegImm implement strength-reduced multiply/divide by a
// power of two (spec §4.4).
func (eb *InstructionBuffer) shiftGroup(ext uint8, dst string, count uint8) {
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	rex := regRex(0x48, dstReg, 0x01)
	eb.write(rex)
	if count == 1 {
		eb.write(0xD1)
		eb.write(uint8(0xC0) | (ext << 3) | (dstReg.Encoding & 7))
		return
	}
	eb.write(0xC1)
	eb.write(uint8(0xC0) | (ext << 3) | (dstReg.Encoding & 7))
	eb.write(count)
}

func (eb *InstructionBuffer) ShlRegImm(dst string, count uint8) { eb.shiftGroup(4, dst, count) }
func (eb *InstructionBuffer) SarRegImm(dst string, count uint8) { eb.shiftGroup(7, dst, count) }
func (eb *InstructionBuffer) ShrRegImm(dst string, count uint8) { eb.shiftGroup(5, dst, count) }

// ===== Stack =====

func (eb *InstructionBuffer) PushReg(reg string) {
	regInfo, ok := x86_64Registers[reg]
	if !ok {
		return
	}
	if regInfo.Encoding >= 8 {
		eb.write(0x41)
		eb.write(0x50 + (regInfo.Encoding & 7))
	} else {
		eb.write(0x50 + regInfo.Encoding)
	}
}

func (eb *InstructionBuffer) PopReg(reg string) {
	regInfo, ok := x86_64Registers[reg]
	if !ok {
		return
	}
	if regInfo.Encoding >= 8 {
		eb.write(0x41)
		eb.write(0x58 + (regInfo.Encoding & 7))
	} else {
		eb.write(0x58 + regInfo.Encoding)
	}
}

// ===== Comparisons / condition codes =====

// SetccToReg emits SETcc al; movzx dst, al for the given condition.
func (eb *InstructionBuffer) SetccToReg(cond JumpCondition, dst string) {
	setccOp := map[JumpCondition]uint8{
		JumpEqual: 0x94, JumpNotEqual: 0x95,
		JumpLess: 0x9C, JumpLessOrEqual: 0x9E,
		JumpGreater: 0x9F, JumpGreaterOrEqual: 0x9D,
		JumpAbove: 0x97, JumpAboveOrEqual: 0x93,
		JumpBelow: 0x92, JumpBelowOrEqual: 0x96,
	}[cond]
	eb.write(0x0F)
	eb.write(setccOp)
	eb.write(0xC0) // setcc al
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	rex := regRex(0x48, dstReg, 0x04)
	eb.write(rex)
	eb.write(0x0F)
	eb.write(0xB6)
	modrm := uint8(0xC0) | ((dstReg.Encoding & 7) << 3)
	eb.write(modrm)
}

// ===== SSE floating point =====

func (eb *InstructionBuffer) xmmMemOp(prefix, opcode uint8, xmmReg, base string, offset int32) {
	var xmmNum int
	fmt.Sscanf(xmmReg, "xmm%d", &xmmNum)
	baseReg := x86_64Registers[base]

	eb.write(prefix)
	rex := uint8(0x48)
	if xmmNum >= 8 {
		rex |= 0x04
	}
	rex = regRex(rex, baseReg, 0x01)
	eb.write(rex)
	eb.write(0x0F)
	eb.write(opcode)
	eb.memOperand(uint8(xmmNum&7), baseReg, offset)
}

func (eb *InstructionBuffer) MovsdMemToXmm(dst, base string, offset int32) {
	eb.xmmMemOp(0xF2, 0x10, dst, base, offset)
}

func (eb *InstructionBuffer) MovsdXmmToMem(src, base string, offset int32) {
	eb.xmmMemOp(0xF2, 0x11, src, base, offset)
}

func (eb *InstructionBuffer) xmmRegRegOp(prefix uint8, opcode uint8, dst, src string) {
	var dstNum, srcNum int
	fmt.Sscanf(dst, "xmm%d", &dstNum)
	fmt.Sscanf(src, "xmm%d", &srcNum)
	if prefix != 0 {
		eb.write(prefix)
	}
	if dstNum >= 8 || srcNum >= 8 {
		rex := uint8(0x40)
		if dstNum >= 8 {
			rex |= 0x04
		}
		if srcNum >= 8 {
			rex |= 0x01
		}
		eb.write(rex)
	}
	eb.write(0x0F)
	eb.write(opcode)
	modrm := uint8(0xC0) | (uint8(dstNum&7) << 3) | uint8(srcNum&7)
	eb.write(modrm)
}

func (eb *InstructionBuffer) AddsdRegToReg(dst, src string)  { eb.xmmRegRegOp(0xF2, 0x58, dst, src) }
func (eb *InstructionBuffer) SubsdRegToReg(dst, src string)  { eb.xmmRegRegOp(0xF2, 0x5C, dst, src) }
func (eb *InstructionBuffer) MulsdRegToReg(dst, src string)  { eb.xmmRegRegOp(0xF2, 0x59, dst, src) }
func (eb *InstructionBuffer) DivsdRegToReg(dst, src string)  { eb.xmmRegRegOp(0xF2, 0x5E, dst, src) }
func (eb *InstructionBuffer) UcomisdRegToReg(a, b string)    { eb.xmmRegRegOp(0x66, 0x2E, a, b) }
func (eb *InstructionBuffer) SqrtsdRegToReg(dst, src string) { eb.xmmRegRegOp(0xF2, 0x51, dst, src) }

func (eb *InstructionBuffer) MovRegToXmm(dst, src string) {
	srcReg, ok := x86_64Registers[src]
	if !ok {
		return
	}
	var xmmNum int
	fmt.Sscanf(dst, "xmm%d", &xmmNum)
	eb.write(0x66)
	rex := uint8(0x48)
	if xmmNum >= 8 {
		rex |= 0x04
	}
	rex = regRex(rex, srcReg, 0x01)
	eb.write(rex)
	eb.write(0x0F)
	eb.write(0x6E)
	modrm := uint8(0xC0) | (uint8(xmmNum&7) << 3) | (srcReg.Encoding & 7)
	eb.write(modrm)
}

func (eb *InstructionBuffer) MovXmmToReg(dst, src string) {
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	var xmmNum int
	fmt.Sscanf(src, "xmm%d", &xmmNum)
	eb.write(0x66)
	rex := regRex(0x48, dstReg, 0x04)
	if xmmNum >= 8 {
		rex |= 0x01
	}
	eb.write(rex)
	eb.write(0x0F)
	eb.write(0x7E)
	modrm := uint8(0xC0) | ((dstReg.Encoding & 7) << 3) | uint8(xmmNum&7)
	eb.write(modrm)
}

func (eb *InstructionBuffer) Cvtsi2sd(dst, src string) {
	srcReg, ok := x86_64Registers[src]
	if !ok {
		return
	}
	var xmmNum int
	fmt.Sscanf(dst, "xmm%d", &xmmNum)
	eb.write(0xF2)
	rex := uint8(0x48)
	if xmmNum >= 8 {
		rex |= 0x04
	}
	rex = regRex(rex, srcReg, 0x01)
	eb.write(rex)
	eb.write(0x0F)
	eb.write(0x2A)
	modrm := uint8(0xC0) | (uint8(xmmNum&7) << 3) | (srcReg.Encoding & 7)
	eb.write(modrm)
}

func (eb *InstructionBuffer) Cvttsd2si(dst, src string) {
	dstReg, ok := x86_64Registers[dst]
	if !ok {
		return
	}
	var xmmNum int
	fmt.Sscanf(src, "xmm%d", &xmmNum)
	eb.write(0xF2)
	rex := regRex(0x48, dstReg, 0x04)
	if xmmNum >= 8 {
		rex |= 0x01
	}
	eb.write(rex)
	eb.write(0x0F)
	eb.write(0x2C)
	modrm := uint8(0xC0) | ((dstReg.Encoding & 7) << 3) | uint8(xmmNum&7)
	eb.write(modrm)
}
