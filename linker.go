package main

import "bytes"

// emitImportThunks emits one tail-jump stub per distinct extern symbol
// referenced anywhere in the module: `lea rax, [rip+iat_slot]; mov rax,
// [rax]; jmp rax`. Every call site addresses the stub (not the IAT slot
// directly) via an ordinary rel32 CallSymbol, so the fix-up machinery in
// buffer.go needs no special case for extern calls versus direct calls —
// exactly the uniform dispatch spec §4.6's table describes.
func (c *Compiler) emitImportThunks() error {
	for _, name := range c.importedFunctions {
		dll := c.dllImports["__imp_"+name]
		if dll == "" {
			dll = "kernel32.dll"
		}
		iatLabel := "__iat_" + name
		if c.pe != nil {
			if _, err := c.pe.ImportRVA(dll, name); err != nil {
				return err
			}
			c.pe.AddData(iatLabel, make([]byte, 8))
		}
		if err := c.eb.Label("__imp_" + name); err != nil {
			return err
		}
		c.eb.LeaSymbolToReg("rax", iatLabel)
		c.eb.MovMemToReg("rax", "rax", 0)
		c.eb.JumpRegister("rax")
	}
	return nil
}

// LinkProgram hands the finalized instruction buffer to the PEWriter
// collaborator for section layout, producing the final file bytes (spec
// §2's "Linker orchestration": merges emitted sections, builds
// export/import directories).
func LinkProgram(c *Compiler) ([]byte, error) {
	return c.pe.Layout(c.eb, c.target)
}

// ImportLibraryWriter is the peripheral archive-format emitter spec.md §1
// calls out as out-of-scope in full generality; a minimal short-form COFF
// import record writer is kept here so DLL consumers linking against a
// produced DLL have something to link against, without implementing a
// general AR/DEF-file toolchain.
type ImportLibraryWriter struct {
	dllName string
	symbols []string
}

func NewImportLibraryWriter(dllName string) *ImportLibraryWriter {
	return &ImportLibraryWriter{dllName: dllName}
}

func (w *ImportLibraryWriter) AddExport(symbol string) {
	w.symbols = append(w.symbols, symbol)
}

// Bytes produces a short-form import-descriptor blob: not a full AR
// archive, just the DLL name (NUL-terminated, written once) followed by one
// record per symbol: its NUL-terminated name and a one-byte index. A real
// AR container is explicitly out of scope (spec.md §1).
func (w *ImportLibraryWriter) Bytes() []byte {
	var out bytes.Buffer
	out.WriteString(w.dllName)
	out.WriteByte(0)
	for i, sym := range w.symbols {
		out.WriteString(sym)
		out.WriteByte(0)
		out.WriteByte(byte(i))
	}
	return out.Bytes()
}
