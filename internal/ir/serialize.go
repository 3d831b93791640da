package ir

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"clever/internal/value"
)

var magicV1 = [4]byte{'C', 'V', 'C', '1'}

const (
	valNone uint8 = iota
	valInt
	valDouble
	valBool
	valString
	valByte
	valFunc   // index into Funcs
	valNative // native function by name
)

func WriteProgramToFile(filename string, p *Program) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteProgram(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadProgramFromFile loads a program written by WriteProgramToFile. Types and
// native functions are looked up by name in reg.
func ReadProgramFromFile(filename string, reg *value.Registry) (*Program, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadProgram(f, reg)
}

type writer struct {
	w     io.Writer
	err   error
	funcs map[*value.Function]int
}

func (w *writer) put(v interface{}) {
	if w.err == nil {
		w.err = binary.Write(w.w, binary.LittleEndian, v)
	}
}

func (w *writer) str(s string) {
	w.put(uint32(len(s)))
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) ints(xs []int) {
	w.put(uint32(len(xs)))
	for _, x := range xs {
		w.put(int32(x))
	}
}

func (w *writer) value(v *value.Value) {
	switch v.Kind() {
	case value.KindNone:
		w.put(valNone)
		return
	case value.KindPrimitive:
		switch v.Prim() {
		case value.PrimInt:
			w.put(valInt)
			w.put(v.Int())
		case value.PrimDouble:
			w.put(valDouble)
			w.put(math.Float64bits(v.Double()))
		case value.PrimBool:
			w.put(valBool)
			w.put(v.Bool())
		case value.PrimString:
			w.put(valString)
			w.str(v.Str())
		case value.PrimByte:
			w.put(valByte)
			w.put(v.Byte())
		}
		return
	}
	if fn := v.Function(); fn != nil {
		if fn.IsNative() {
			w.put(valNative)
			w.str(fn.Name)
			return
		}
		if i, ok := w.funcs[fn]; ok {
			w.put(valFunc)
			w.put(uint32(i))
			return
		}
	}
	if w.err == nil {
		w.err = fmt.Errorf("cannot serialize %s constant", v.TypeName())
	}
}

func (w *writer) operand(o Operand) {
	w.put(uint8(o.Kind))
	w.put(int32(o.Slot))
	w.put(int32(o.Scope))
}

func WriteProgram(out io.Writer, p *Program) error {
	w := &writer{w: out, funcs: make(map[*value.Function]int)}
	for i, fn := range p.Funcs {
		w.funcs[fn] = i
	}
	if _, err := out.Write(magicV1[:]); err != nil {
		return err
	}
	w.str(p.File)
	w.put(uint32(p.NumTemps))

	w.put(uint32(len(p.Funcs)))
	for _, fn := range p.Funcs {
		w.str(fn.Name)
		w.put(int32(fn.Addr))
		w.put(int32(fn.NumParams))
		w.put(int32(fn.ParamScope))
		w.put(int32(fn.NumTemps))
		w.ints(fn.Scopes)
	}

	w.put(uint32(len(p.Consts)))
	for i := range p.Consts {
		w.value(&p.Consts[i])
	}

	w.put(uint32(len(p.Scopes)))
	for _, s := range p.Scopes {
		w.put(int32(s.Size))
		w.put(int32(s.Owner))
		w.put(uint32(len(s.Init)))
		for i := range s.Init {
			w.value(&s.Init[i])
		}
		w.put(uint32(len(s.Types)))
		for _, t := range s.Types {
			w.str(t.Name)
		}
	}

	w.put(uint32(len(p.Threads)))
	for _, th := range p.Threads {
		w.str(th.Name)
		w.ints(th.Scopes)
	}

	w.put(uint32(len(p.Code)))
	for _, inst := range p.Code {
		w.put(uint8(inst.Op))
		w.operand(inst.Op1)
		w.operand(inst.Op2)
		w.operand(inst.Result)
		w.put(int32(inst.Pos.Line))
		w.put(int32(inst.Pos.Column))
	}
	return w.err
}

// Limits applied to lengths read from a file.
const (
	maxStringBytes = 1 << 26
	maxSlots       = 1 << 20
)

type reader struct {
	r     io.Reader
	err   error
	reg   *value.Registry
	funcs []*value.Function
}

func (r *reader) get(v interface{}) {
	if r.err == nil {
		r.err = binary.Read(r.r, binary.LittleEndian, v)
	}
}

func (r *reader) u32() int {
	var n uint32
	r.get(&n)
	return int(n)
}

func (r *reader) i32() int {
	var n int32
	r.get(&n)
	return int(n)
}

func (r *reader) str() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if n > maxStringBytes {
		r.err = fmt.Errorf("string of %d bytes exceeds limit", n)
		return ""
	}
	buf := make([]byte, n)
	_, r.err = io.ReadFull(r.r, buf)
	return string(buf)
}

func (r *reader) ints() []int {
	n := r.u32()
	if r.err != nil || n == 0 {
		return nil
	}
	if n > maxSlots {
		r.err = fmt.Errorf("list of %d entries exceeds limit", n)
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = r.i32()
	}
	return out
}

func (r *reader) value() value.Value {
	var tag uint8
	r.get(&tag)
	if r.err != nil {
		return value.Value{}
	}
	switch tag {
	case valNone:
		return value.Value{}
	case valInt:
		var n int64
		r.get(&n)
		return r.reg.Int(n)
	case valDouble:
		var bits uint64
		r.get(&bits)
		return r.reg.Double(math.Float64frombits(bits))
	case valBool:
		var b bool
		r.get(&b)
		return r.reg.Bool(b)
	case valString:
		return r.reg.String(r.str())
	case valByte:
		var b byte
		r.get(&b)
		return r.reg.Byte(b)
	case valFunc:
		i := r.u32()
		if r.err != nil {
			return value.Value{}
		}
		if i >= len(r.funcs) {
			r.err = fmt.Errorf("function index %d out of range", i)
			return value.Value{}
		}
		return r.reg.FunctionValue(r.funcs[i])
	case valNative:
		name := r.str()
		if r.err != nil {
			return value.Value{}
		}
		fn := r.reg.Native(name)
		if fn == nil {
			r.err = fmt.Errorf("unknown native function %s", name)
			return value.Value{}
		}
		return r.reg.FunctionValue(fn)
	}
	r.err = fmt.Errorf("unknown value tag %d", tag)
	return value.Value{}
}

func (r *reader) operand() Operand {
	var kind uint8
	r.get(&kind)
	return Operand{Kind: OperandKind(kind), Slot: r.i32(), Scope: r.i32()}
}

func ReadProgram(in io.Reader, reg *value.Registry) (*Program, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(in, hdr[:]); err != nil {
		return nil, err
	}
	if hdr != magicV1 {
		return nil, fmt.Errorf("invalid magic header: %q", string(hdr[:]))
	}
	r := &reader{r: in, reg: reg}
	p := &Program{}
	p.File = r.str()
	p.NumTemps = r.u32()

	for n := r.u32(); n > 0 && r.err == nil; n-- {
		fn := &value.Function{Name: r.str()}
		fn.Addr = r.i32()
		fn.NumParams = r.i32()
		fn.ParamScope = r.i32()
		fn.NumTemps = r.i32()
		fn.Scopes = r.ints()
		p.Funcs = append(p.Funcs, fn)
	}
	r.funcs = p.Funcs

	for n := r.u32(); n > 0 && r.err == nil; n-- {
		p.Consts = append(p.Consts, r.value())
	}

	for n := r.u32(); n > 0 && r.err == nil; n-- {
		s := ScopeInfo{Size: r.i32(), Owner: r.i32()}
		for k := r.u32(); k > 0 && r.err == nil; k-- {
			s.Init = append(s.Init, r.value())
		}
		for k := r.u32(); k > 0 && r.err == nil; k-- {
			name := r.str()
			t := reg.Lookup(name)
			if t == nil && r.err == nil {
				r.err = fmt.Errorf("unknown type %s", name)
			}
			s.Types = append(s.Types, t)
		}
		p.Scopes = append(p.Scopes, s)
	}

	for n := r.u32(); n > 0 && r.err == nil; n-- {
		p.Threads = append(p.Threads, ThreadInfo{Name: r.str(), Scopes: r.ints()})
	}

	for n := r.u32(); n > 0 && r.err == nil; n-- {
		var op uint8
		r.get(&op)
		inst := Instruction{Op: OpCode(op)}
		inst.Op1 = r.operand()
		inst.Op2 = r.operand()
		inst.Result = r.operand()
		inst.Pos.Line = r.i32()
		inst.Pos.Column = r.i32()
		p.Code = append(p.Code, inst)
	}

	if r.err != nil {
		p.Release()
		return nil, r.err
	}
	if err := p.Validate(); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}
