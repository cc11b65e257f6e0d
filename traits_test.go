package main

import "testing"

func TestBuildTraitTableResolvesInherentAndTraitMethods(t *testing.T) {
	prog := &Program{
		Traits: []*TraitDecl{
			{Name: "Shape", Methods: []TraitMethod{{Name: "area"}, {Name: "perimeter"}}},
		},
		Impls: []*ImplDecl{
			{TraitName: "Shape", TypeName: "Circle", Methods: []*FuncDecl{
				{Name: "area"}, {Name: "perimeter"},
			}},
			{TypeName: "Circle", Methods: []*FuncDecl{
				{Name: "radius"},
			}},
		},
	}

	tt := BuildTraitTable(prog)

	label, ok := tt.ResolveInherentMethod("Circle", "radius")
	if !ok || label != "Circle$radius" {
		t.Fatalf("expected Circle.radius to resolve to Circle$radius, got %q, %v", label, ok)
	}

	idx, ok := tt.ResolveTraitMethodIndex("Circle", "perimeter")
	if !ok || idx != 1 {
		t.Fatalf("expected Circle.perimeter to resolve to vtable slot 1, got %d, %v", idx, ok)
	}

	if _, ok := tt.ResolveTraitMethodIndex("Circle", "missing"); ok {
		t.Fatalf("expected an unknown method to fail to resolve")
	}
}

func TestMangleMethodAndStripTypePrefixRoundTrip(t *testing.T) {
	mangled := mangleMethod("Circle", "area")
	if mangled != "Circle$area" {
		t.Fatalf("expected Circle$area, got %q", mangled)
	}
	if stripped := stripTypePrefix(mangled, "Circle"); stripped != "area" {
		t.Fatalf("expected stripTypePrefix to recover area, got %q", stripped)
	}
}
