package main

// MonoSpec names one generic-function/concrete-type-args tuple the
// external monomorphizer wants a specialized body for (spec §3).
type MonoSpec struct {
	GenericName string
	TypeArgs    []Type
	MangledName string
}

// Monomorphizer is the external collaborator spec §1/§3 treats as
// out-of-scope: "only their outputs are consumed." The generic type
// checker that produces the (generic_function, concrete_type_args) set is
// never implemented here.
type Monomorphizer interface {
	Specializations() []MonoSpec
}

// staticMonomorphizer is a trivial in-memory Monomorphizer used by tests
// and by callers that already know their specialization set up front
// (e.g. a caller-constructed AST with no actual generic type inference
// behind it).
type staticMonomorphizer struct {
	specs []MonoSpec
}

func NewStaticMonomorphizer(specs []MonoSpec) Monomorphizer {
	return &staticMonomorphizer{specs: specs}
}

func (m *staticMonomorphizer) Specializations() []MonoSpec {
	return m.specs
}

// MangleGeneric produces the mangled_name for a (generic, type args) pair
// using a simple, stable, readable scheme: `name$T1$T2...`.
func MangleGeneric(name string, args []Type) string {
	mangled := name
	for _, t := range args {
		mangled += "$" + typeMangleToken(t)
	}
	return mangled
}

func typeMangleToken(t Type) string {
	switch t.Kind {
	case TypeI64:
		return "i64"
	case TypeF64:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeStr:
		return "str"
	case TypeRecord:
		return t.Name
	case TypeList:
		if t.Elem != nil {
			return "list_" + typeMangleToken(*t.Elem)
		}
		return "list"
	default:
		return "t"
	}
}
