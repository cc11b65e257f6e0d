package main

// RegisterInfo describes one of the sixteen general-purpose registers or
// eight XMM registers in terms of its ModRM/REX encoding.
type RegisterInfo struct {
	Name     string
	Encoding uint8 // 0-15; bit 3 (>=8) means the REX.R/X/B extension bit is set
	IsXMM    bool
}

// x86_64Registers is the full GPR + XMM encoding table. Every instruction
// emitter in buffer.go looks operands up here rather than hard-coding
// encodings inline.
var x86_64Registers = map[string]RegisterInfo{
	"rax": {"rax", 0, false},
	"rcx": {"rcx", 1, false},
	"rdx": {"rdx", 2, false},
	"rbx": {"rbx", 3, false},
	"rsp": {"rsp", 4, false},
	"rbp": {"rbp", 5, false},
	"rsi": {"rsi", 6, false},
	"rdi": {"rdi", 7, false},
	"r8":  {"r8", 8, false},
	"r9":  {"r9", 9, false},
	"r10": {"r10", 10, false},
	"r11": {"r11", 11, false},
	"r12": {"r12", 12, false},
	"r13": {"r13", 13, false},
	"r14": {"r14", 14, false},
	"r15": {"r15", 15, false},

	"xmm0": {"xmm0", 0, true},
	"xmm1": {"xmm1", 1, true},
	"xmm2": {"xmm2", 2, true},
	"xmm3": {"xmm3", 3, true},
	"xmm4": {"xmm4", 4, true},
	"xmm5": {"xmm5", 5, true},
	"xmm6": {"xmm6", 6, true},
	"xmm7": {"xmm7", 7, true},
}

// calleeSavedRegisters is the fixed set the register allocator draws from,
// per spec: RBX, R12-R15. RBP and RSP are reserved for the frame; the
// scratch registers RAX/RCX/RDX/R8-R11 are never allocator-assigned.
var calleeSavedRegisters = []string{"rbx", "r12", "r13", "r14", "r15"}

// argRegisters is the Win64 integer argument register order.
var argRegisters = []string{"rcx", "rdx", "r8", "r9"}

// argXMMRegisters is the Win64 floating-point argument register order;
// XMMn and the integer argument register of the same ordinal position are
// never both consumed by the same argument (Win64 uses position, not type,
// to pick the slot), but this codegen only needs the float side for pure
// float parameters, so the two tables are kept separate for lowering
// convenience in call.go.
var argXMMRegisters = []string{"xmm0", "xmm1", "xmm2", "xmm3"}

func isCalleeSaved(reg string) bool {
	for _, r := range calleeSavedRegisters {
		if r == reg {
			return true
		}
	}
	return false
}
