// Package scope implements the compile-time symbol table and the runtime
// storage scopes materialize into.
package scope

import (
	"clever/internal/value"
)

type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymType
	SymFunc
)

func (k SymbolKind) String() string {
	switch k {
	case SymType:
		return "type"
	case SymFunc:
		return "function"
	default:
		return "variable"
	}
}

// Symbol binds a name to a slot of the scope that declared it. Value and
// type slots are numbered independently.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Slot  int
	Scope *Scope

	Type *value.Type     // SymType
	Func *value.Function // SymFunc
}

// Scope is a node of the lexical scope tree. Slots are assigned
// monotonically and never reused.
type Scope struct {
	parent   *Scope
	children []*Scope
	id       int

	symbols []*Symbol
	index   map[string]*Symbol
	values  []value.Value
	types   []*value.Type

	// Owner is the index of the function whose activations own this scope,
	// or -1 for top-level code.
	Owner int
}

func New() *Scope {
	return &Scope{index: make(map[string]*Symbol), Owner: -1}
}

// Enter creates a child scope inheriting the owner.
func (s *Scope) Enter() *Scope {
	child := New()
	child.parent = s
	child.Owner = s.Owner
	s.children = append(s.children, child)
	return child
}

// Leave returns the parent scope.
func (s *Scope) Leave() *Scope   { return s.parent }
func (s *Scope) Parent() *Scope  { return s.parent }
func (s *Scope) Children() []*Scope {
	return s.children
}

func (s *Scope) ID() int      { return s.id }
func (s *Scope) SetID(id int) { s.id = id }

// Size is the number of value slots.
func (s *Scope) Size() int { return len(s.values) }

func (s *Scope) Symbols() []*Symbol { return s.symbols }

func (s *Scope) add(sym *Symbol) *Symbol {
	sym.Scope = s
	s.symbols = append(s.symbols, sym)
	s.index[sym.Name] = sym
	return sym
}

// PushValue declares a variable with an initial value and returns it.
// The scope takes ownership of v.
func (s *Scope) PushValue(name string, v value.Value) *Symbol {
	slot := len(s.values)
	v.Name = name
	s.values = append(s.values, v)
	return s.add(&Symbol{Name: name, Kind: SymVar, Slot: slot})
}

// PushType declares a type name in the type pool.
func (s *Scope) PushType(name string, t *value.Type) *Symbol {
	slot := len(s.types)
	s.types = append(s.types, t)
	return s.add(&Symbol{Name: name, Kind: SymType, Slot: slot, Type: t})
}

// PushFunc declares a function name. Functions occupy no storage slot.
func (s *Scope) PushFunc(name string, fn *value.Function) *Symbol {
	return s.add(&Symbol{Name: name, Kind: SymFunc, Slot: -1, Func: fn})
}

// LookupLocal searches this scope only.
func (s *Scope) LookupLocal(name string) *Symbol {
	return s.index[name]
}

// Lookup searches this scope, then each enclosing scope.
func (s *Scope) Lookup(name string) *Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym := sc.index[name]; sym != nil {
			return sym
		}
	}
	return nil
}

// ValueAt returns the initial value held in slot i.
func (s *Scope) ValueAt(i int) *value.Value {
	if i < 0 || i >= len(s.values) {
		return nil
	}
	return &s.values[i]
}

func (s *Scope) TypeAt(i int) *value.Type {
	if i < 0 || i >= len(s.types) {
		return nil
	}
	return s.types[i]
}

func (s *Scope) Types() []*value.Type { return s.types }

// Values copies the initial value pool.
func (s *Scope) Values() []value.Value {
	out := make([]value.Value, len(s.values))
	for i := range s.values {
		out[i].Copy(&s.values[i])
		out[i].Name = s.values[i].Name
	}
	return out
}

// Flatten lists the tree rooted at s in pre-order.
func (s *Scope) Flatten() []*Scope {
	out := []*Scope{s}
	for _, c := range s.children {
		out = append(out, c.Flatten()...)
	}
	return out
}

// Copy appends deep copies of src's values, types and symbols to s.
func (s *Scope) Copy(src *Scope) {
	valueBase := len(s.values)
	typeBase := len(s.types)
	for i := range src.values {
		var v value.Value
		v.Copy(&src.values[i])
		v.Name = src.values[i].Name
		v.Const = src.values[i].Const
		s.values = append(s.values, v)
	}
	s.types = append(s.types, src.types...)
	for _, sym := range src.symbols {
		dup := *sym
		switch dup.Kind {
		case SymVar:
			dup.Slot += valueBase
		case SymType:
			dup.Slot += typeBase
		}
		s.add(&dup)
	}
}

// Release drops the initial values held by s and its descendants.
func (s *Scope) Release() {
	for i := range s.values {
		s.values[i].Release()
	}
	for _, c := range s.children {
		c.Release()
	}
}
