package ir

import (
	"fmt"

	"clever/internal/token"
	"clever/internal/value"
)

// OpCode is an opcode of the Clever three-address IR.
type OpCode uint8

const (
	OpNop OpCode = iota
	OpHalt

	OpAssign  // Result = Op1; an unused Op1 clears Result
	OpBindRef // Result = reference to element Op2 of Op1
	OpUnbind  // Result is cleared

	// Binary operators, in value.Operator order
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	OpNot    // Result = !Op1
	OpBitNot // Result = ~Op1
	OpNeg    // Result = -Op1
	OpPreInc // Op1 += 1; Result = Op1
	OpPreDec
	OpPostInc // Result = Op1; Op1 += 1
	OpPostDec

	OpJmp   // goto Op1
	OpJmpz  // Result = truthy(Op1); if falsy goto Op2
	OpJmpnz // Result = truthy(Op1); if truthy goto Op2

	OpSend   // push Op1 onto the argument list
	OpFCall  // Result = Op1(args)
	OpMCall  // Result = Op1.<Op2>(args)
	OpSMCall // Result = <type Op1>.<Op2>(args)
	OpNew    // Result = new <type Op1>(args)
	OpArray  // Result = [args]
	OpIndex  // Result = Op1[Op2]
	OpSetIndex
	OpSize // Result = number of elements of Op1

	OpRet   // return Op1
	OpLeave // end of function body

	OpTry     // push handler, catch dispatch at Op1
	OpCatch   // bind the pending exception to Result if it is an Op1; else goto Op2
	OpEtry    // pop handler
	OpThrow   // raise Op1
	OpRethrow // raise the pending exception again

	OpLock
	OpUnlock

	OpBThread // spawn Op2 threads of the block numbered by constant Result; the spawner continues at Op1
	OpEThread
	OpWait // join every thread of the block numbered by constant Op1

	numOpCodes
)

var opNames = [numOpCodes]string{
	"NOP", "HALT", "ASSIGN", "BINDREF", "UNBIND",
	"ADD", "SUB", "MUL", "DIV", "MOD", "BW_AND", "BW_OR", "XOR", "SHL", "SHR",
	"EQUAL", "NOTEQUAL", "LESS", "LESSEQUAL", "GREATER", "GREATEREQUAL",
	"NOT", "BW_NOT", "NEG", "PRE_INC", "PRE_DEC", "POS_INC", "POS_DEC",
	"JMP", "JMPZ", "JMPNZ",
	"SEND", "FCALL", "MCALL", "SMCALL", "NEW", "ARRAY", "INDEX", "SETINDEX", "SIZE",
	"RET", "LEAVE",
	"TRY", "CATCH", "ETRY", "THROW", "RETHROW",
	"LOCK", "UNLOCK",
	"BTHREAD", "ETHREAD", "WAIT",
}

func (op OpCode) String() string {
	if op < numOpCodes {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", int(op))
}

// BinaryOperator maps a binary opcode onto the descriptor operator table.
func (op OpCode) BinaryOperator() (value.Operator, bool) {
	if op < OpAdd || op > OpGreaterEqual {
		return 0, false
	}
	return value.Operator(op - OpAdd), true
}

// BinaryOpCode is the inverse of BinaryOperator.
func BinaryOpCode(o value.Operator) OpCode {
	return OpAdd + OpCode(o)
}

// OperandKind is the storage class of an operand.
type OperandKind uint8

const (
	Unused OperandKind = iota
	Const              // Slot indexes the constant pool
	Var                // Slot of scope Scope
	Temp               // Slot of the frame's temporary pool
	Jump               // Slot is an absolute instruction index
	TypeRef            // type Slot of scope Scope
)

func (k OperandKind) String() string {
	switch k {
	case Const:
		return "CONST"
	case Var:
		return "VAR"
	case Temp:
		return "TEMP"
	case Jump:
		return "JMP_ADDR"
	case TypeRef:
		return "TYPE"
	default:
		return "UNUSED"
	}
}

type Operand struct {
	Kind  OperandKind
	Slot  int
	Scope int
}

func ConstOp(i int) Operand          { return Operand{Kind: Const, Slot: i} }
func VarOp(slot, scope int) Operand  { return Operand{Kind: Var, Slot: slot, Scope: scope} }
func TempOp(i int) Operand           { return Operand{Kind: Temp, Slot: i} }
func JumpOp(addr int) Operand        { return Operand{Kind: Jump, Slot: addr} }
func TypeOp(slot, scope int) Operand { return Operand{Kind: TypeRef, Slot: slot, Scope: scope} }

func (o Operand) IsUsed() bool { return o.Kind != Unused }

func (o Operand) String() string {
	switch o.Kind {
	case Unused:
		return ""
	case Var, TypeRef:
		return fmt.Sprintf("(%s) %d:%d", o.Kind, o.Scope, o.Slot)
	default:
		return fmt.Sprintf("(%s) %d", o.Kind, o.Slot)
	}
}

// Instruction is one IR entry: an opcode with two inputs and one output.
type Instruction struct {
	Op     OpCode
	Op1    Operand
	Op2    Operand
	Result Operand
	Pos    token.Position
}

// ScopeInfo is the storage layout of one scope, indexed by scope id.
type ScopeInfo struct {
	Size  int
	Owner int // function index, or -1 for top-level storage
	Init  []value.Value
	Types []*value.Type
}

// ThreadInfo lists the scopes each thread of a spawn block duplicates.
type ThreadInfo struct {
	Name   string
	Scopes []int
}

// Program is a compiled unit: code, constant pool and storage layout.
type Program struct {
	File     string
	Code     []Instruction
	Consts   []value.Value
	Scopes   []ScopeInfo
	Funcs    []*value.Function
	Threads  []ThreadInfo
	NumTemps int // temporaries of top-level code
}

// Emit appends an instruction and returns its address.
func (p *Program) Emit(inst Instruction) int {
	p.Code = append(p.Code, inst)
	return len(p.Code) - 1
}

// AddConst takes ownership of v and returns its pool index.
func (p *Program) AddConst(v value.Value) int {
	p.Consts = append(p.Consts, v)
	return len(p.Consts) - 1
}

// Patch sets the jump target held by operand which of instruction at.
func (p *Program) Patch(at int, which int, target int) {
	inst := &p.Code[at]
	switch which {
	case 1:
		inst.Op1 = JumpOp(target)
	case 2:
		inst.Op2 = JumpOp(target)
	}
}

// Validate checks that every operand refers to valid storage and that the
// function, scope and thread tables agree with the code and each other.
func (p *Program) Validate() error {
	if p.NumTemps < 0 {
		return fmt.Errorf("negative temporary count %d", p.NumTemps)
	}
	for id, s := range p.Scopes {
		if s.Size < 0 || s.Size > maxSlots || len(s.Init) > s.Size {
			return fmt.Errorf("scope %d: invalid size %d (%d initial values)", id, s.Size, len(s.Init))
		}
		if s.Owner < -1 || s.Owner >= len(p.Funcs) {
			return fmt.Errorf("scope %d: owner %d out of range", id, s.Owner)
		}
	}
	for _, fn := range p.Funcs {
		if fn.Addr < 0 || fn.Addr >= len(p.Code) {
			return fmt.Errorf("function %s: entry %d out of range", fn.Name, fn.Addr)
		}
		if fn.NumTemps < 0 {
			return fmt.Errorf("function %s: negative temporary count %d", fn.Name, fn.NumTemps)
		}
		if err := p.checkScopes(fn.Scopes); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
		if fn.ParamScope < 0 || fn.ParamScope >= len(p.Scopes) {
			return fmt.Errorf("function %s: parameter scope %d out of range", fn.Name, fn.ParamScope)
		}
		if fn.NumParams < 0 || fn.NumParams > p.Scopes[fn.ParamScope].Size {
			return fmt.Errorf("function %s: %d parameters do not fit scope %d", fn.Name, fn.NumParams, fn.ParamScope)
		}
	}
	for id, ti := range p.Threads {
		if err := p.checkScopes(ti.Scopes); err != nil {
			return fmt.Errorf("thread block %d: %w", id, err)
		}
	}
	for addr, inst := range p.Code {
		for _, o := range [...]Operand{inst.Op1, inst.Op2, inst.Result} {
			if err := p.checkOperand(o); err != nil {
				return fmt.Errorf("[%03d] %s: %w", addr, inst.Op, err)
			}
		}
	}
	if n := len(p.Code); n == 0 || p.Code[n-1].Op != OpHalt {
		return fmt.Errorf("program does not end with HALT")
	}
	return nil
}

func (p *Program) checkScopes(ids []int) error {
	for _, id := range ids {
		if id < 0 || id >= len(p.Scopes) {
			return fmt.Errorf("scope %d out of range", id)
		}
	}
	return nil
}

func (p *Program) checkOperand(o Operand) error {
	switch o.Kind {
	case Unused:
	case Const:
		if o.Slot < 0 || o.Slot >= len(p.Consts) {
			return fmt.Errorf("constant %d out of range", o.Slot)
		}
	case Jump:
		if o.Slot < 0 || o.Slot >= len(p.Code) {
			return fmt.Errorf("jump target %d out of range", o.Slot)
		}
	case Var:
		if o.Scope < 0 || o.Scope >= len(p.Scopes) || o.Slot < 0 || o.Slot >= p.Scopes[o.Scope].Size {
			return fmt.Errorf("variable %d:%d out of range", o.Scope, o.Slot)
		}
	case TypeRef:
		if o.Scope < 0 || o.Scope >= len(p.Scopes) || o.Slot < 0 || o.Slot >= len(p.Scopes[o.Scope].Types) {
			return fmt.Errorf("type %d:%d out of range", o.Scope, o.Slot)
		}
	case Temp:
		if o.Slot < 0 {
			return fmt.Errorf("negative temporary %d", o.Slot)
		}
	default:
		return fmt.Errorf("unknown operand kind %d", o.Kind)
	}
	return nil
}

// Release drops the constant pool and initial scope values.
func (p *Program) Release() {
	for i := range p.Consts {
		p.Consts[i].Release()
	}
	for i := range p.Scopes {
		for j := range p.Scopes[i].Init {
			p.Scopes[i].Init[j].Release()
		}
	}
}
