package main

import "testing"

func TestTypeTablesInvalidateClearsAllFacts(t *testing.T) {
	tt := NewTypeTables()
	tt.RecordConstInt("x", 5)
	tt.RecordConstFloat("x", 2.5)
	tt.Invalidate("x")
	if _, ok := tt.ConstInt("x"); ok {
		t.Fatalf("expected ConstInt to be cleared after Invalidate")
	}
	if _, ok := tt.ConstFloat("x"); ok {
		t.Fatalf("expected ConstFloat to be cleared after Invalidate")
	}
}

func TestTypeTablesRecordConstIntOverwritesFloatFact(t *testing.T) {
	tt := NewTypeTables()
	tt.RecordConstFloat("x", 1.5)
	tt.RecordConstInt("x", 3)
	if _, ok := tt.ConstFloat("x"); ok {
		t.Fatalf("expected RecordConstInt to invalidate the stale float fact")
	}
	v, ok := tt.ConstInt("x")
	if !ok || v != 3 {
		t.Fatalf("expected ConstInt(x) = 3, got %d, %v", v, ok)
	}
}

func TestComputeLayoutPacksBitFieldsIntoSharedWord(t *testing.T) {
	decl := &RecordDecl{
		Name: "flags",
		Fields: []FieldDecl{
			{Name: "a", Type: Type{Kind: TypeI64}, BitWidth: 4},
			{Name: "b", Type: Type{Kind: TypeI64}, BitWidth: 4},
			{Name: "c", Type: Type{Kind: TypeI64}},
		},
	}
	layout := &RecordLayout{}
	layout.ComputeLayout(decl)

	if layout.FieldOffsets["a"] != layout.FieldOffsets["b"] {
		t.Fatalf("expected bit-fields a and b to share the same word offset")
	}
	if layout.FieldBitShifts["a"] != 0 || layout.FieldBitShifts["b"] != 4 {
		t.Fatalf("expected sequential bit shifts, got a=%d b=%d", layout.FieldBitShifts["a"], layout.FieldBitShifts["b"])
	}
	if layout.FieldOffsets["c"] == layout.FieldOffsets["a"] {
		t.Fatalf("expected the whole-field c to get its own word, not share with the bit-field word")
	}
	if layout.TotalSize%8 != 0 {
		t.Fatalf("expected record size to be 8-byte aligned, got %d", layout.TotalSize)
	}
}

func TestComputeLayoutIsIdempotent(t *testing.T) {
	decl := &RecordDecl{Name: "point", Fields: []FieldDecl{
		{Name: "x", Type: Type{Kind: TypeI64}},
		{Name: "y", Type: Type{Kind: TypeI64}},
	}}
	layout := &RecordLayout{}
	layout.ComputeLayout(decl)
	first := layout.TotalSize
	layout.ComputeLayout(decl)
	if layout.TotalSize != first {
		t.Fatalf("expected a second ComputeLayout call to be a no-op")
	}
}

func TestBuildRecordTypeTableLooksUpByName(t *testing.T) {
	prog := &Program{Records: []*RecordDecl{
		{Name: "point", Fields: []FieldDecl{{Name: "x", Type: Type{Kind: TypeI64}}}},
	}}
	rt := BuildRecordTypeTable(prog)
	layout, ok := rt.Lookup("point")
	if !ok {
		t.Fatalf("expected to find the point record layout")
	}
	if layout.TypeID == 0 {
		t.Fatalf("expected a nonzero type ID")
	}
	if _, ok := rt.Lookup("missing"); ok {
		t.Fatalf("expected Lookup of an unknown record to fail")
	}
}
