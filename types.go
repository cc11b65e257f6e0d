package main

// TypeTables holds the flow-insensitive side tables spec §3/§9 describes as
// "effectively a tiny flow-insensitive abstract interpreter." Unlike the
// original source (which leaves const_str_vars stale across loop bodies
// "because strings are rarely modified"), every table here is invalidated
// on *every* assignment to a name — the cleaner design spec §9's Design
// Notes calls out explicitly.
type TypeTables struct {
	floatVars             map[string]bool
	constStrVars          map[string]string
	constIntVars          map[string]int64
	constFloatVars        map[string]float64
	listSizes             map[string]int
	constListVars         map[string]bool
	varRecordTypes        map[string]string
	stringReturningFuncs  map[string]bool
	inferredParamTypes    map[string]Type
}

func NewTypeTables() *TypeTables {
	return &TypeTables{
		floatVars:            make(map[string]bool),
		constStrVars:         make(map[string]string),
		constIntVars:         make(map[string]int64),
		constFloatVars:       make(map[string]float64),
		listSizes:            make(map[string]int),
		constListVars:        make(map[string]bool),
		varRecordTypes:       make(map[string]string),
		stringReturningFuncs: make(map[string]bool),
		inferredParamTypes:   make(map[string]Type),
	}
}

// Reset clears every per-function table; called at the start of each
// FuncDecl's lowering. The module-wide tables (stringReturningFuncs,
// inferredParamTypes) are not touched here.
func (t *TypeTables) Reset() {
	t.floatVars = make(map[string]bool)
	t.constStrVars = make(map[string]string)
	t.constIntVars = make(map[string]int64)
	t.constFloatVars = make(map[string]float64)
	t.listSizes = make(map[string]int)
	t.constListVars = make(map[string]bool)
	t.varRecordTypes = make(map[string]string)
}

// Invalidate drops every compile-time fact recorded about name. Called on
// every assignment statement before the new value's facts (if any) are
// recorded, so a variable can never carry stale constant-folding data past
// a reassignment.
func (t *TypeTables) Invalidate(name string) {
	delete(t.floatVars, name)
	delete(t.constStrVars, name)
	delete(t.constIntVars, name)
	delete(t.constFloatVars, name)
	delete(t.listSizes, name)
	delete(t.constListVars, name)
	delete(t.varRecordTypes, name)
}

func (t *TypeTables) RecordConstInt(name string, v int64) {
	t.Invalidate(name)
	t.constIntVars[name] = v
}

func (t *TypeTables) RecordConstFloat(name string, v float64) {
	t.Invalidate(name)
	t.constFloatVars[name] = v
	t.floatVars[name] = true
}

func (t *TypeTables) RecordConstStr(name string, v string) {
	t.Invalidate(name)
	t.constStrVars[name] = v
}

func (t *TypeTables) RecordFloat(name string) {
	t.floatVars[name] = true
}

func (t *TypeTables) RecordRecordType(name, typeName string) {
	t.Invalidate(name)
	t.varRecordTypes[name] = typeName
}

func (t *TypeTables) RecordListSize(name string, size int) {
	t.Invalidate(name)
	t.listSizes[name] = size
	t.constListVars[name] = true
}

func (t *TypeTables) IsFloat(name string) bool { return t.floatVars[name] }

func (t *TypeTables) ConstInt(name string) (int64, bool) {
	v, ok := t.constIntVars[name]
	return v, ok
}

func (t *TypeTables) ConstFloat(name string) (float64, bool) {
	v, ok := t.constFloatVars[name]
	return v, ok
}

func (t *TypeTables) ConstStr(name string) (string, bool) {
	v, ok := t.constStrVars[name]
	return v, ok
}

func (t *TypeTables) ListSize(name string) (int, bool) {
	v, ok := t.listSizes[name]
	return v, ok
}

func (t *TypeTables) RecordTypeOf(name string) (string, bool) {
	v, ok := t.varRecordTypes[name]
	return v, ok
}

// ===== Record layout =====

// RecordLayout is the computed field-offset table for one RecordDecl,
// lazily computed once (offsetsComputed latches true after the first
// call) per spec §3's "Record type descriptor".
type RecordLayout struct {
	Name            string
	TypeID          int
	FieldOffsets    map[string]int
	FieldTypes      map[string]Type
	FieldBitWidths  map[string]int
	FieldBitShifts  map[string]int
	TotalSize       int
	offsetsComputed bool
}

// typeIDCounter is the monotonic counter RTTI type-IDs are drawn from,
// starting at 1 (0 is reserved to mean "no record type" in a tagged
// union slot).
var typeIDCounter = 1

func nextTypeID() int {
	id := typeIDCounter
	typeIDCounter++
	return id
}

// alignOf returns the natural alignment, in bytes, of a scalar field type.
func alignOf(t Type) int {
	switch t.Kind {
	case TypeBool:
		return 1
	case TypeI64, TypeF64, TypeStr, TypeList, TypeMap, TypeFunc, TypeClosure, TypeTraitObject, TypeResult:
		return 8
	default:
		return 8
	}
}

func sizeOf(t Type) int {
	if t.Kind == TypeBool {
		return 1
	}
	return 8
}

// ComputeLayout assigns field offsets: `[type_id(8)][field0][field1]...`
// with natural alignment per field and end-padding to 8 bytes (spec §6).
// Bit-fields of nonzero BitWidth are packed into the preceding 8-byte word
// rather than given their own slot.
func (r *RecordLayout) ComputeLayout(decl *RecordDecl) {
	if r.offsetsComputed {
		return
	}
	r.Name = decl.Name
	r.TypeID = nextTypeID()
	r.FieldOffsets = make(map[string]int)
	r.FieldTypes = make(map[string]Type)
	r.FieldBitWidths = make(map[string]int)
	r.FieldBitShifts = make(map[string]int)

	offset := 8 // type_id header word
	bitCursor := 0
	bitWordOffset := -1
	for _, f := range decl.Fields {
		r.FieldTypes[f.Name] = f.Type
		r.FieldBitWidths[f.Name] = f.BitWidth
		if f.BitWidth > 0 {
			if bitWordOffset == -1 || bitCursor+f.BitWidth > 64 {
				bitWordOffset = offset
				offset += 8
				bitCursor = 0
			}
			r.FieldOffsets[f.Name] = bitWordOffset
			r.FieldBitShifts[f.Name] = bitCursor
			bitCursor += f.BitWidth
			continue
		}
		align := alignOf(f.Type)
		if offset%align != 0 {
			offset += align - (offset % align)
		}
		r.FieldOffsets[f.Name] = offset
		offset += sizeOf(f.Type)
	}
	if offset%8 != 0 {
		offset += 8 - (offset % 8)
	}
	r.TotalSize = offset
	r.offsetsComputed = true
}

// RecordTypeTable maps record name to its computed layout, built once at
// program start from Program.Records.
type RecordTypeTable struct {
	byName map[string]*RecordLayout
}

func BuildRecordTypeTable(p *Program) *RecordTypeTable {
	rt := &RecordTypeTable{byName: make(map[string]*RecordLayout)}
	for _, decl := range p.Records {
		layout := &RecordLayout{}
		layout.ComputeLayout(decl)
		rt.byName[decl.Name] = layout
	}
	return rt
}

func (rt *RecordTypeTable) Lookup(name string) (*RecordLayout, bool) {
	l, ok := rt.byName[name]
	return l, ok
}
