package main

// TraitTable resolves method calls: inherent impl methods mangle to a
// direct label; trait methods resolve to a vtable slot index for dynamic
// dispatch through a fat pointer (spec §4.6).
type TraitTable struct {
	inherent map[string]map[string]string // typeName -> method -> mangled label
	traitIdx map[string]map[string]int    // traitName -> method -> vtable index
	typeImpl map[string]map[string]string // typeName -> traitName -> typeName (only the keys are read)
}

func mangleMethod(typeName, method string) string {
	return typeName + "$" + method
}

func BuildTraitTable(p *Program) *TraitTable {
	t := &TraitTable{
		inherent: make(map[string]map[string]string),
		traitIdx: make(map[string]map[string]int),
		typeImpl: make(map[string]map[string]string),
	}

	for _, trait := range p.Traits {
		idx := make(map[string]int)
		for i, m := range trait.Methods {
			idx[m.Name] = i
		}
		t.traitIdx[trait.Name] = idx
	}

	for _, impl := range p.Impls {
		if t.inherent[impl.TypeName] == nil {
			t.inherent[impl.TypeName] = make(map[string]string)
		}
		for _, m := range impl.Methods {
			mangled := mangleMethod(impl.TypeName, m.Name)
			m.Name = mangled
			t.inherent[impl.TypeName][stripTypePrefix(mangled, impl.TypeName)] = mangled
		}
		if impl.TraitName != "" {
			if t.typeImpl[impl.TypeName] == nil {
				t.typeImpl[impl.TypeName] = make(map[string]string)
			}
			t.typeImpl[impl.TypeName][impl.TraitName] = impl.TypeName
		}
	}
	return t
}

func stripTypePrefix(mangled, typeName string) string {
	prefix := typeName + "$"
	if len(mangled) > len(prefix) && mangled[:len(prefix)] == prefix {
		return mangled[len(prefix):]
	}
	return mangled
}

func (t *TraitTable) ResolveInherentMethod(typeName, method string) (string, bool) {
	methods, ok := t.inherent[typeName]
	if !ok {
		return "", false
	}
	mangled, ok := methods[method]
	return mangled, ok
}

// ResolveTraitMethodIndex returns the vtable slot a dynamic dispatch on
// `obj.method` resolves to, searching every trait typeName implements.
func (t *TraitTable) ResolveTraitMethodIndex(typeName, method string) (int, bool) {
	traitsImplemented, ok := t.typeImpl[typeName]
	if !ok {
		return 0, false
	}
	for traitName := range traitsImplemented {
		if idx, ok := t.traitIdx[traitName]; ok {
			if slot, ok := idx[method]; ok {
				return slot, true
			}
		}
	}
	return 0, false
}

// lowerTraitCall implements the "Trait method (dyn)" row: the object is a
// fat pointer `(data, vtable)`; load `[vtable+8*idx]`, call r11, RCX=data.
func (c *Compiler) lowerTraitCall(obj Expr, methodIdx int, args []Expr) error {
	if err := c.lowerExpr(obj); err != nil {
		return err
	}
	c.eb.PushReg("rax") // fat pointer's data half

	c.eb.MovMemToReg("r11", "rax", 8) // vtable pointer from the fat pointer's second word
	c.eb.MovMemToReg("r11", "r11", int32(methodIdx*8))
	c.eb.PushReg("r11")

	if err := c.loadCallArgs(args, argRegisters[1:], argXMMRegisters[1:], 0); err != nil {
		return err
	}

	c.eb.PopReg("r11")
	c.eb.PopReg("rcx") // RCX = data half (the receiver)
	c.eb.CallRegister("r11")
	c.lastExprWasFloat = false
	return nil
}

// emitVtableFixups registers, for each (type, trait) implementation pair,
// one fix-up per vtable slot via the PEWriter collaborator, resolving to
// each impl method's label (spec §4.6). It reserves no data-section storage
// for the vtable itself.
func (c *Compiler) emitVtableFixups() {
	if c.pe == nil {
		return
	}
	for _, impl := range c.prog.Impls {
		if impl.TraitName == "" {
			continue
		}
		trait := c.findTrait(impl.TraitName)
		if trait == nil {
			continue
		}
		vtableLabel := impl.TypeName + "$" + impl.TraitName + "$vtable"
		for slot, tm := range trait.Methods {
			label := mangleMethod(impl.TypeName, tm.Name)
			c.pe.AddVtableFixup(vtableLabel, slot, label)
		}
	}
}

func (c *Compiler) findTrait(name string) *TraitDecl {
	for _, t := range c.prog.Traits {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// emitTraitTrampolines is a no-op beyond vtable registration in this
// design: methods themselves are emitted as ordinary functions in
// program.go's Compile loop (over Program.Impls), and their addresses are
// patched into the vtable region by the PE writer at link time rather
// than through a separate thunk — matching how flapc's own trait support
// avoids a double-indirection trampoline when the vtable slot can be
// patched directly.
func (c *Compiler) emitTraitTrampolines() error {
	c.emitVtableFixups()
	return nil
}
