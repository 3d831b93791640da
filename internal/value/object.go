package value

import (
	"sync/atomic"

	"clever/internal/diag"
)

// Object is a reference-counted heap payload shared by vector and object
// values. The destructor runs exactly once, when the count reaches zero.
type Object struct {
	refs atomic.Int32
	typ  *Type
	Data any
}

func newObject(t *Type, data any) *Object {
	o := &Object{typ: t, Data: data}
	o.refs.Store(1)
	return o
}

func (o *Object) Type() *Type { return o.typ }
func (o *Object) Refs() int32 { return o.refs.Load() }

func (o *Object) Retain() {
	o.refs.Add(1)
}

func (o *Object) Release() {
	n := o.refs.Add(-1)
	switch {
	case n == 0:
		o.destroy()
	case n < 0:
		panic("value: object released more often than retained")
	}
}

func (o *Object) destroy() {
	if o.typ != nil && o.typ.Dtor != nil {
		o.typ.Dtor(o)
	}
	switch d := o.Data.(type) {
	case *Vector:
		d.Clear()
	case *Map:
		d.Clear()
	}
	o.Data = nil
}

// Cells is a generation-tagged array of value slots. It backs both vectors
// and scope environments. Any structural change bumps the generation, which
// invalidates every Reference taken before it.
type Cells struct {
	slots []Value
	gen   uint64
}

func NewCells(n int) *Cells {
	return &Cells{slots: make([]Value, n)}
}

func (c *Cells) Len() int           { return len(c.slots) }
func (c *Cells) Generation() uint64 { return c.gen }
func (c *Cells) Slots() []Value     { return c.slots }

// At returns the slot at i, or nil when i is out of range.
func (c *Cells) At(i int) *Value {
	if i < 0 || i >= len(c.slots) {
		return nil
	}
	return &c.slots[i]
}

// Append takes ownership of v.
func (c *Cells) Append(v Value) {
	c.slots = append(c.slots, v)
	c.gen++
}

// Pop moves the last element out to the caller.
func (c *Cells) Pop() (Value, bool) {
	n := len(c.slots)
	if n == 0 {
		return Value{}, false
	}
	v := c.slots[n-1]
	c.slots[n-1] = Value{}
	c.slots = c.slots[:n-1]
	c.gen++
	return v, true
}

// Remove moves element i out to the caller, shifting the rest down.
func (c *Cells) Remove(i int) (Value, bool) {
	if i < 0 || i >= len(c.slots) {
		return Value{}, false
	}
	v := c.slots[i]
	copy(c.slots[i:], c.slots[i+1:])
	c.slots[len(c.slots)-1] = Value{}
	c.slots = c.slots[:len(c.slots)-1]
	c.gen++
	return v, true
}

// Clear releases every slot.
func (c *Cells) Clear() {
	slots := c.slots
	c.slots = nil
	c.gen++
	for i := range slots {
		slots[i].Release()
	}
}

// Clone returns a copy whose slots are copied with Copy semantics.
func (c *Cells) Clone() *Cells {
	out := NewCells(len(c.slots))
	for i := range c.slots {
		out.slots[i].Copy(&c.slots[i])
	}
	return out
}

// Ref returns a handle on slot i valid until the next structural change.
func (c *Cells) Ref(i int) (*Reference, error) {
	if i < 0 || i >= len(c.slots) {
		return nil, diag.ResourceErrorf("index %d out of range [0, %d)", i, len(c.slots))
	}
	return &Reference{cells: c, index: i, gen: c.gen}, nil
}

// Reference designates a slot of a Cells. Dereferencing fails once the
// target has been structurally modified or destroyed.
type Reference struct {
	cells *Cells
	index int
	gen   uint64
}

func (r *Reference) Get() (*Value, error) {
	if r.gen != r.cells.gen || r.index >= len(r.cells.slots) {
		return nil, diag.ResourceErrorf("dangling reference")
	}
	return &r.cells.slots[r.index], nil
}

type Vector struct {
	Cells
}

func NewVector(elems []Value) *Vector {
	return &Vector{Cells: Cells{slots: elems}}
}

// Map is an insertion-ordered string-keyed dictionary.
type Map struct {
	keys  []string
	index map[string]int
	vals  Cells
}

func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

func (m *Map) Len() int { return len(m.keys) }

func (m *Map) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *Map) Get(key string) (*Value, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.vals.At(i), true
}

// Set stores a copy of v under key.
func (m *Map) Set(key string, v *Value) {
	if i, ok := m.index[key]; ok {
		m.vals.At(i).Copy(v)
		return
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals.Append(v.Clone())
}

func (m *Map) Delete(key string) bool {
	i, ok := m.index[key]
	if !ok {
		return false
	}
	old, _ := m.vals.Remove(i)
	old.Release()
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	delete(m.index, key)
	for j := i; j < len(m.keys); j++ {
		m.index[m.keys[j]] = j
	}
	return true
}

func (m *Map) Clear() {
	m.keys = nil
	m.index = make(map[string]int)
	m.vals.Clear()
}
