package main

// builtins_io.go grounds its WriteConsoleA/CreateFileA/ReadFile/WriteFile
// calling conventions on original_source/'s codegen_call_builtins_io.cpp,
// adapted from that file's stdio-handle (__iob_func/fgets) story to this
// target's Win32-only one (GetStdHandle/ReadFile on a real console/file
// handle, no CRT).

const ioReadBufSize = 1024

func (c *Compiler) ensureKernel32(name string) {
	if !c.hasImport(name) {
		c.importDLLFunction(name, "kernel32.dll")
	}
}

// emitWriteConsoleString writes the NUL-terminated string pointer in RAX
// to the cached STD_OUTPUT_HANDLE, computing its length with a byte scan
// (no CRT strlen available).
func (c *Compiler) emitWriteConsoleString() {
	lenLoop := c.newLabel("strlen_loop")
	lenDone := c.newLabel("strlen_done")
	c.eb.MovRegToReg("rsi", "rax")
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.XorRegToReg("rax", "rax")
	c.eb.Label(lenLoop)
	c.eb.MovMemToReg("rdx", "rcx", 0)
	c.eb.AndImmToReg("rdx", 0xFF)
	c.eb.CmpRegToImm("rdx", 0)
	c.eb.JumpConditional(JumpEqual, lenDone)
	c.eb.IncReg("rax")
	c.eb.IncReg("rcx")
	c.eb.JumpUnconditional(lenLoop)
	c.eb.Label(lenDone)

	c.eb.MovRegToReg("r8", "rax") // length
	c.eb.MovRegToReg("rdx", "rsi") // buffer
	c.ensureKernel32("GetStdHandle")
	c.ensureKernel32("WriteConsoleA")
	c.eb.PushReg("rdx")
	c.eb.PushReg("r8")
	c.eb.MovImmToReg("rcx", -11)
	c.eb.CallSymbol("__imp_GetStdHandle")
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.PopReg("r8")
	c.eb.PopReg("rdx")
	c.eb.XorRegToReg("r9", "r9")
	c.eb.CallSymbol("__imp_WriteConsoleA")
}

// builtinPrint/builtinPrintln implement spec §4.9's print family: each
// argument is lowered, then written to stdout: floats via ftoa, string
// literals directly, and every other value via print_int (a string held
// in a variable is printed as an integer).
// builtinPrintln additionally appends "\r\n"; print does not.
func builtinPrint(c *Compiler, n *CallExpr) error {
	return c.emitPrintArgs(n.Args, false)
}

func builtinPrintln(c *Compiler, n *CallExpr) error {
	return c.emitPrintArgs(n.Args, true)
}

func (c *Compiler) emitPrintArgs(args []Expr, newline bool) error {
	for _, arg := range args {
		if err := c.lowerExpr(arg); err != nil {
			return err
		}
		if c.lastExprWasFloat {
			c.markGCSymbolUsed("itoa") // ftoa depends on itoa's scratch buffer
			c.eb.CallSymbol("ftoa")
			c.eb.MovRegToReg("rdx", "rax")
			c.eb.MovRegToReg("r8", "rcx")
			c.ensureKernel32("GetStdHandle")
			c.ensureKernel32("WriteConsoleA")
			c.eb.PushReg("rdx")
			c.eb.PushReg("r8")
			c.eb.MovImmToReg("rcx", -11)
			c.eb.CallSymbol("__imp_GetStdHandle")
			c.eb.MovRegToReg("rcx", "rax")
			c.eb.PopReg("r8")
			c.eb.PopReg("rdx")
			c.eb.XorRegToReg("r9", "r9")
			c.eb.CallSymbol("__imp_WriteConsoleA")
		} else if _, isStr := arg.(*StringLit); isStr {
			c.emitWriteConsoleString()
		} else {
			c.eb.CallSymbol("print_int")
		}
	}
	if newline {
		label := c.newLabel("nl")
		if c.pe != nil {
			c.pe.AddString(label, "\r\n")
		}
		c.eb.LeaSymbolToReg("rax", label)
		c.emitWriteConsoleString()
	}
	c.lastExprWasFloat = false
	return nil
}

// builtinOpen implements `open(path, mode)` via CreateFileA: mode is "r"
// (GENERIC_READ/OPEN_EXISTING, the default), "w" (GENERIC_WRITE/
// CREATE_ALWAYS), or "a" (FILE_APPEND_DATA/OPEN_ALWAYS), matching
// codegen_call_builtins_io.cpp's emitFileOpen.
func builtinOpen(c *Compiler, n *CallExpr) error {
	if len(n.Args) < 1 {
		return badInput(n.Pos, "open expects at least a filename argument")
	}
	mode := "r"
	if len(n.Args) > 1 {
		if lit, ok := n.Args[1].(*StringLit); ok {
			mode = lit.Value
		}
	}
	var desiredAccess int64 = 0x80000000
	var creationDisp int64 = 3
	switch mode {
	case "w":
		desiredAccess, creationDisp = 0x40000000, 2
	case "a":
		desiredAccess, creationDisp = 0x00000004, 4
	case "rw", "r+":
		desiredAccess, creationDisp = 0x80000000|0x40000000, 3
	}

	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.MovImmToReg("rdx", desiredAccess)
	c.eb.MovImmToReg("r8", 3) // FILE_SHARE_READ | FILE_SHARE_WRITE
	c.eb.XorRegToReg("r9", "r9")

	c.eb.SubImmFromReg("rsp", 0x40)
	c.eb.MovImmToReg("rax", creationDisp)
	c.eb.MovRegToMem("rax", "rsp", 0x20)
	c.eb.MovImmToReg("rax", 0x80) // FILE_ATTRIBUTE_NORMAL
	c.eb.MovRegToMem("rax", "rsp", 0x28)
	c.eb.XorRegToReg("rax", "rax")
	c.eb.MovRegToMem("rax", "rsp", 0x30)

	c.ensureKernel32("CreateFileA")
	c.eb.CallSymbol("__imp_CreateFileA")
	c.eb.AddImmToReg("rsp", 0x40)
	c.lastExprWasFloat = false
	return nil
}

// builtinRead implements `read(handle, size)` via ReadFile against a
// fixed 1024-byte stack scratch buffer (ioReadBufSize), capping the
// requested size the way emitFileRead does.
func builtinRead(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 2 {
		return badInput(n.Pos, "read expects (handle, size)")
	}
	bufOff := c.frame.AllocBytes(tempName(c, "read_buf"), ioReadBufSize)
	bytesReadOff := c.frame.Alloc(tempName(c, "bytes_read"))

	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.PushReg("rax")
	if err := c.lowerExpr(n.Args[1]); err != nil {
		return err
	}
	sizeOk := c.newLabel("read_size_ok")
	c.eb.CmpRegToImm("rax", ioReadBufSize)
	c.eb.JumpConditional(JumpLessOrEqual, sizeOk)
	c.eb.MovImmToReg("rax", ioReadBufSize)
	c.eb.Label(sizeOk)
	c.eb.MovRegToReg("r8", "rax")
	c.eb.PopReg("rcx")

	c.eb.LeaMemToReg("rdx", "rbp", bufOff)
	c.eb.LeaMemToReg("r9", "rbp", bytesReadOff)

	c.eb.SubImmFromReg("rsp", 0x30)
	c.eb.XorRegToReg("rax", "rax")
	c.eb.MovRegToMem("rax", "rsp", 0x20)
	c.ensureKernel32("ReadFile")
	c.eb.CallSymbol("__imp_ReadFile")
	c.eb.AddImmToReg("rsp", 0x30)

	c.eb.MovMemToReg("rax", "rbp", bytesReadOff)
	c.eb.LeaMemToReg("rcx", "rbp", bufOff)
	c.eb.AddRegToReg("rcx", "rax")
	c.eb.MovImmToReg("rdx", 0)
	c.eb.MovByteRegToMem("rdx", "rcx", 0)
	c.eb.LeaMemToReg("rax", "rbp", bufOff)
	c.lastExprWasFloat = false
	return nil
}

// builtinWrite implements `write(handle, data)` via WriteFile, computing
// data's length with the same byte scan emitWriteConsoleString uses.
func builtinWrite(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 2 {
		return badInput(n.Pos, "write expects (handle, data)")
	}
	bytesWrittenOff := c.frame.Alloc(tempName(c, "bytes_written"))

	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.PushReg("rax")
	if err := c.lowerExpr(n.Args[1]); err != nil {
		return err
	}
	c.eb.MovRegToReg("rsi", "rax")
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.XorRegToReg("rax", "rax")
	lenLoop := c.newLabel("write_len_loop")
	lenDone := c.newLabel("write_len_done")
	c.eb.Label(lenLoop)
	c.eb.MovMemToReg("rdx", "rcx", 0)
	c.eb.AndImmToReg("rdx", 0xFF)
	c.eb.CmpRegToImm("rdx", 0)
	c.eb.JumpConditional(JumpEqual, lenDone)
	c.eb.IncReg("rax")
	c.eb.IncReg("rcx")
	c.eb.JumpUnconditional(lenLoop)
	c.eb.Label(lenDone)

	c.eb.MovRegToReg("r8", "rax") // length
	c.eb.MovRegToReg("rdx", "rsi") // buffer
	c.eb.PopReg("rcx") // handle
	c.eb.LeaMemToReg("r9", "rbp", bytesWrittenOff)

	c.eb.SubImmFromReg("rsp", 0x30)
	c.eb.XorRegToReg("rax", "rax")
	c.eb.MovRegToMem("rax", "rsp", 0x20)
	c.ensureKernel32("WriteFile")
	c.eb.CallSymbol("__imp_WriteFile")
	c.eb.AddImmToReg("rsp", 0x30)

	c.eb.MovMemToReg("rax", "rbp", bytesWrittenOff)
	c.lastExprWasFloat = false
	return nil
}

func builtinClose(c *Compiler, n *CallExpr) error {
	if len(n.Args) != 1 {
		return badInput(n.Pos, "close expects a handle argument")
	}
	if err := c.lowerExpr(n.Args[0]); err != nil {
		return err
	}
	c.eb.MovRegToReg("rcx", "rax")
	c.ensureKernel32("CloseHandle")
	c.eb.SubImmFromReg("rsp", shadowSpaceBytes)
	c.eb.CallSymbol("__imp_CloseHandle")
	c.eb.AddImmToReg("rsp", shadowSpaceBytes)
	c.lastExprWasFloat = false
	return nil
}

// builtinReadln reads one line from stdin via ReadConsoleA into a
// fixed 256-byte scratch buffer, stripping the trailing CRLF.
func builtinReadln(c *Compiler, n *CallExpr) error {
	bufOff := c.frame.AllocBytes(tempName(c, "readln_buf"), 256)
	readOff := c.frame.Alloc(tempName(c, "readln_n"))

	c.ensureKernel32("GetStdHandle")
	c.ensureKernel32("ReadConsoleA")
	c.eb.MovImmToReg("rcx", -10) // STD_INPUT_HANDLE
	c.eb.SubImmFromReg("rsp", shadowSpaceBytes)
	c.eb.CallSymbol("__imp_GetStdHandle")
	c.eb.AddImmToReg("rsp", shadowSpaceBytes)
	c.eb.MovRegToReg("rcx", "rax")
	c.eb.LeaMemToReg("rdx", "rbp", bufOff)
	c.eb.MovImmToReg("r8", 255)
	c.eb.LeaMemToReg("r9", "rbp", readOff)
	c.eb.SubImmFromReg("rsp", 0x30)
	c.eb.XorRegToReg("rax", "rax")
	c.eb.MovRegToMem("rax", "rsp", 0x20)
	c.eb.CallSymbol("__imp_ReadConsoleA")
	c.eb.AddImmToReg("rsp", 0x30)

	// Trim a trailing CRLF/LF by walking backward from buf+n until a
	// non-CR/LF byte, or the buffer start, is found.
	stripLoop := c.newLabel("readln_strip")
	stripBack := c.newLabel("readln_strip_back")
	stripDone := c.newLabel("readln_strip_done")
	c.eb.MovMemToReg("rcx", "rbp", readOff)
	c.eb.LeaMemToReg("rdx", "rbp", bufOff)
	c.eb.AddRegToReg("rcx", "rdx") // rcx = end pointer, rdx = base pointer

	c.eb.Label(stripLoop)
	c.eb.CmpRegToReg("rcx", "rdx")
	c.eb.JumpConditional(JumpLessOrEqual, stripDone)
	c.eb.MovMemToReg("rax", "rcx", -1)
	c.eb.AndImmToReg("rax", 0xFF)
	c.eb.CmpRegToImm("rax", '\n')
	c.eb.JumpConditional(JumpEqual, stripBack)
	c.eb.CmpRegToImm("rax", '\r')
	c.eb.JumpConditional(JumpEqual, stripBack)
	c.eb.JumpUnconditional(stripDone)
	c.eb.Label(stripBack)
	c.eb.DecReg("rcx")
	c.eb.JumpUnconditional(stripLoop)

	c.eb.Label(stripDone)
	c.eb.MovImmToReg("rax", 0)
	c.eb.MovByteRegToMem("rax", "rcx", 0)
	c.eb.LeaMemToReg("rax", "rbp", bufOff)
	c.lastExprWasFloat = false
	return nil
}

func tempName(c *Compiler, prefix string) string {
	c.labelCounter++
	return "$" + prefix + "_" + itoaLabel(c.labelCounter)
}

func itoaLabel(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
