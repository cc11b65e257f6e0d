package main

import "testing"

func TestLockCmpxchgMemToRegEmitsLockPrefixAndOpcode(t *testing.T) {
	eb := NewInstructionBuffer()
	eb.LockCmpxchgMemToReg("rcx", "rdx")
	code := eb.Bytes()
	if len(code) < 4 {
		t.Fatalf("expected at least 4 bytes, got %d", len(code))
	}
	if code[0] != 0xF0 {
		t.Fatalf("expected a LOCK prefix (0xF0), got 0x%02X", code[0])
	}
	if code[2] != 0x0F || code[3] != 0xB1 {
		t.Fatalf("expected opcode 0F B1 (CMPXCHG), got %02X %02X", code[2], code[3])
	}
}

func TestLockXaddMemToRegEmitsLockPrefixAndOpcode(t *testing.T) {
	eb := NewInstructionBuffer()
	eb.LockXaddMemToReg("rcx", "rax")
	code := eb.Bytes()
	if code[0] != 0xF0 {
		t.Fatalf("expected a LOCK prefix (0xF0), got 0x%02X", code[0])
	}
	if code[2] != 0x0F || code[3] != 0xC1 {
		t.Fatalf("expected opcode 0F C1 (XADD), got %02X %02X", code[2], code[3])
	}
}

func TestMfenceEmitsExpectedBytes(t *testing.T) {
	eb := NewInstructionBuffer()
	eb.Mfence()
	code := eb.Bytes()
	want := []byte{0x0F, 0xAE, 0xF0}
	if len(code) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(code))
	}
	for i, b := range want {
		if code[i] != b {
			t.Fatalf("byte %d: expected 0x%02X, got 0x%02X", i, b, code[i])
		}
	}
}
