package main

import (
	"bytes"
	"testing"
)

// fakePEWriter records AddData calls without doing any real PE layout;
// just enough of the PEWriter surface for emitFtoa/emitItoa to run.
type fakePEWriter struct {
	data map[string][]byte
}

func newFakePEWriter() *fakePEWriter { return &fakePEWriter{data: make(map[string][]byte)} }

func (f *fakePEWriter) AddString(label, s string) uint64 { return 0 }
func (f *fakePEWriter) AddData(label string, b []byte) uint64 {
	f.data[label] = b
	return 0
}
func (f *fakePEWriter) ImportRVA(dll, symbol string) (uint64, error) { return 0, nil }
func (f *fakePEWriter) AddVtableFixup(vtableLabel string, slot int, targetLabel string) {}
func (f *fakePEWriter) Layout(eb *InstructionBuffer, target *Target) ([]byte, error) {
	return eb.Bytes(), nil
}

// countMulsd counts MULSD xmm,xmm occurrences (0xF2 0x0F 0x59) in the
// emitted code. The only one is the fractional-digit loop's "multiply by
// 10" step, which runs once per digit extracted (r10 counts the digits).
func countMulsd(code []byte) int {
	count := 0
	for i := 0; i+2 < len(code); i++ {
		if code[i] == 0xF2 && code[i+1] == 0x0F && code[i+2] == 0x59 {
			count++
		}
	}
	return count
}

func TestEmitFtoaLoopsOneMulsdOverEachFractionalDigit(t *testing.T) {
	pe := newFakePEWriter()
	c := NewCompiler(&Program{}, CompileOptions{}, pe, nil, nil)
	if err := c.emitFtoa(); err != nil {
		t.Fatalf("emitFtoa: %v", err)
	}
	code := c.eb.Bytes()
	if got := countMulsd(code); got != 1 {
		t.Fatalf("expected one MULSD op (the digit loop's multiply by 10), got %d", got)
	}
	// `mov r10, 6`: REX.W+B 0x49, MOV r/m64,imm32 0xC7, ModRM 0xC2 for r10.
	if !bytes.Contains(code, []byte{0x49, 0xC7, 0xC2, byte(fractionalDigits), 0, 0, 0}) {
		t.Fatalf("expected the digit loop counter r10 to start at %d", fractionalDigits)
	}
	if _, ok := pe.data["ftoa_scratch"]; !ok {
		t.Fatalf("expected emitFtoa to register its ftoa_scratch data buffer")
	}
	if len(pe.data["ftoa_scratch"]) != ftoaScratchSize {
		t.Fatalf("expected ftoa_scratch to be %d bytes, got %d", ftoaScratchSize, len(pe.data["ftoa_scratch"]))
	}
}

func TestEmitFtoaComputesLengthAsIntegerLengthPlusDotPlusSixDigits(t *testing.T) {
	pe := newFakePEWriter()
	c := NewCompiler(&Program{}, CompileOptions{}, pe, nil, nil)
	if err := c.emitFtoa(); err != nil {
		t.Fatalf("emitFtoa: %v", err)
	}
	// The final length computation is `mov rcx, r9; add rcx, 7` (REX.W 0x48,
	// ADD-imm8 0x83, ModRM 0xC1 for rcx, imm8 7), where r9 holds the integer
	// part's digit count and 7 is 1 ('.') plus fractionalDigits.
	want := []byte{0x48, 0x83, 0xC1, byte(1 + fractionalDigits)}
	code := c.eb.Bytes()
	found := false
	for i := 0; i+len(want) <= len(code); i++ {
		match := true
		for j, b := range want {
			if code[i+j] != b {
				match = false
				break
			}
		}
		if match {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected the emitted code to contain `add rcx, %d` for the final length", 1+fractionalDigits)
	}
}
