package ir

// Linkage controls how the assembler/linker bind a global symbol
// (spec.md §4.6/§4.7: .globl/.weak/.hidden/.local and GLOBAL/WEAK/
// DYNAMIC resolution rules).
type Linkage uint8

const (
	LinkageGlobal Linkage = iota
	LinkageLocal
	LinkageWeak
	LinkageExternDecl // declared, defined elsewhere (no initializer emitted)
)

// Global is a module-level variable, string literal, or tag-backed
// static object.
type Global struct {
	Name    string
	Type    Type
	Size    int64
	Align   int
	Linkage Linkage
	Init    *Const // nil for a tentative (SHN_COMMON-eligible) definition
	Hidden  bool
	ReadOnly bool // string literals and const-qualified globals live in .rodata
}

// StringLiteral is a module-level NUL-terminated (or sized, for wide
// strings) byte string destined for .rodata, deduplicated by content
// during lowering.
type StringLiteral struct {
	Symbol string
	Bytes  []byte
}

// TagField is one member of a struct/union tag definition, kept at
// module level for GEP offset computation and DWARF-adjacent debug
// info (not modeled further here — the core itself emits no DWARF).
type TagField struct {
	Name   string
	Type   Type
	Offset int64
}

// TagKind distinguishes struct, union, and enum tag definitions.
type TagKind uint8

const (
	TagStruct TagKind = iota
	TagUnion
	TagEnum
)

// Tag is a struct/union/enum definition, carried at module level so
// that GetElementPtr offsets and DynAlloca/Alloca sizes for aggregate
// locals can be recomputed by later passes without re-consulting the
// (external) AST.
type Tag struct {
	Name   string
	Kind   TagKind
	Size   int64
	Align  int
	Fields []TagField
}

// Module holds every function, global, string literal, and tag
// definition produced by lowering for one compilation (spec.md §3).
type Module struct {
	Functions []*Function
	Globals   []*Global
	Strings   []*StringLiteral
	Tags      []*Tag
}

// NewModule returns an empty Module.
func NewModule() *Module { return &Module{} }

// AddFunction appends fn in source order.
func (m *Module) AddFunction(fn *Function) { m.Functions = append(m.Functions, fn) }

// AddGlobal appends g.
func (m *Module) AddGlobal(g *Global) { m.Globals = append(m.Globals, g) }

// InternString adds (or reuses, by exact byte content) a string literal
// and returns its symbol name.
func (m *Module) InternString(symbolHint string, data []byte) string {
	for _, s := range m.Strings {
		if string(s.Bytes) == string(data) {
			return s.Symbol
		}
	}
	sym := symbolHint
	m.Strings = append(m.Strings, &StringLiteral{Symbol: sym, Bytes: data})
	return sym
}

// FindFunction looks up a function by name.
func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
