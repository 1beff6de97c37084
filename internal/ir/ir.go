// Package ir implements the intermediate representation the local
// optimizer works on.
//
// WHAT IS IR?
// A linear, SSA-style representation of integer arithmetic and control flow:
// every instruction is defined exactly once and refers to its operands by
// reference. Instructions live in basic blocks, blocks live in functions and
// functions live in a module (the compilation unit).
//
// DEF-USE GRAPH:
// Every value keeps the set of instructions that use it. The graph is only
// ever changed through Instruction.SetOperand, which updates both the old and
// the new operand's use-list, so the two views never disagree.
//
// EXAMPLE:
//
//	define i32 @f(i32 %p) {
//	entry:
//	  %a = mul i32 %p, 8      ; %p is used by %a
//	  ret i32 %a              ; %a is used by the ret
//	}
package ir

import (
	"fmt"
	"strings"
)

// Opcode is the operation an instruction performs.
// The set is closed; code switching on it should handle every case.
type Opcode int

const (
	OpAdd  Opcode = iota // x + y
	OpSub                // x - y
	OpMul                // x * y
	OpSDiv               // x / y, signed
	OpShl                // x << y
	OpLShr               // x >> y, logical
	OpCall               // opaque call, may have side effects
	OpBr                 // unconditional branch
	OpRet                // return
)

var opcodeNames = [...]string{
	OpAdd:  "add",
	OpSub:  "sub",
	OpMul:  "mul",
	OpSDiv: "sdiv",
	OpShl:  "shl",
	OpLShr: "lshr",
	OpCall: "call",
	OpBr:   "br",
	OpRet:  "ret",
}

func (op Opcode) String() string {
	if op < 0 || int(op) >= len(opcodeNames) {
		return "?"
	}
	return opcodeNames[op]
}

// LookupOpcode returns the opcode spelled by mnemonic.
func LookupOpcode(mnemonic string) (Opcode, bool) {
	for op, name := range opcodeNames {
		if name == mnemonic {
			return Opcode(op), true
		}
	}
	return 0, false
}

// IsBinary reports whether op is a two-operand arithmetic or shift
// operator with no side effects.
func (op Opcode) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpSDiv, OpShl, OpLShr:
		return true
	default:
		return false
	}
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op == OpBr || op == OpRet
}

// Instruction is a single IR instruction. It is also a Value: the value it
// computes.
//
// Instructions are created through a Builder, which assigns the ID and a
// function-unique name and links the instruction into a block.
type Instruction struct {
	id       int
	name     string
	op       Opcode
	typ      IntType
	operands []Value

	// callee names the called function for OpCall.
	callee string

	// target is the destination block for OpBr.
	target *BasicBlock

	block  *BasicBlock
	users  useList
	erased bool
}

func (i *Instruction) ID() int               { return i.id }
func (i *Instruction) Name() string          { return i.name }
func (i *Instruction) Op() Opcode            { return i.op }
func (i *Instruction) Type() IntType         { return i.typ }
func (i *Instruction) Users() []*Instruction { return i.users.snapshot() }
func (i *Instruction) NumUses() int          { return i.users.len() }
func (i *Instruction) NumOperands() int      { return len(i.operands) }
func (i *Instruction) Operand(n int) Value   { return i.operands[n] }
func (i *Instruction) Callee() string        { return i.callee }
func (i *Instruction) Target() *BasicBlock   { return i.target }
func (i *Instruction) Block() *BasicBlock    { return i.block }
func (i *Instruction) Erased() bool          { return i.erased }
func (i *Instruction) IsBinaryOp() bool      { return i.op.IsBinary() }
func (i *Instruction) IsTerminator() bool    { return i.op.IsTerminator() }

func (i *Instruction) addUse(u *Instruction)    { i.users.add(u) }
func (i *Instruction) removeUse(u *Instruction) { i.users.remove(u) }

// Ref returns "%name". Instructions without a result have no reference.
func (i *Instruction) Ref() string {
	if i.name == "" {
		return "<void>"
	}
	return "%" + i.name
}

// Operands returns a copy of the operand list.
func (i *Instruction) Operands() []Value {
	ops := make([]Value, len(i.operands))
	copy(ops, i.operands)
	return ops
}

// references reports whether any operand slot of i holds v.
func (i *Instruction) references(v Value) bool {
	for _, op := range i.operands {
		if op == v {
			return true
		}
	}
	return false
}

// SetOperand replaces operand n with v and keeps both use-lists in sync.
// The old operand loses i as a user only when no other slot still refers
// to it.
func (i *Instruction) SetOperand(n int, v Value) {
	old := i.operands[n]
	if old == v {
		return
	}
	i.operands[n] = v
	if old != nil && !i.references(old) {
		old.removeUse(i)
	}
	if v != nil {
		v.addUse(i)
	}
}

// ReplaceAllUsesWith rewrites every user of i to use v instead. Afterwards
// i has no users; i itself stays in its block. Reports whether any operand
// was rewritten.
func (i *Instruction) ReplaceAllUsesWith(v Value) bool {
	if v == Value(i) {
		return false
	}
	changed := false
	for _, user := range i.users.snapshot() {
		for n, op := range user.operands {
			if op == Value(i) {
				user.SetOperand(n, v)
				changed = true
			}
		}
	}
	return changed
}

// EraseFromParent unlinks i from its block and drops its operand edges.
// It panics if i still has users: erasing a used value would leave dangling
// operands behind.
func (i *Instruction) EraseFromParent() {
	if i.erased {
		return
	}
	if n := i.users.len(); n > 0 {
		panic(fmt.Sprintf("ir: erasing %s which still has %d users", i.Ref(), n))
	}
	for n := range i.operands {
		i.SetOperand(n, nil)
	}
	i.operands = nil
	if i.block != nil {
		i.block.remove(i)
	}
	i.block = nil
	i.target = nil
	i.erased = true
}

// String returns the instruction in textual IR form.
func (i *Instruction) String() string {
	var sb strings.Builder
	if !i.typ.IsVoid() && i.name != "" {
		sb.WriteString(i.Ref())
		sb.WriteString(" = ")
	}
	sb.WriteString(i.op.String())

	switch i.op {
	case OpAdd, OpSub, OpMul, OpSDiv, OpShl, OpLShr:
		fmt.Fprintf(&sb, " %s %s, %s", i.typ, refOf(i.operandAt(0)), refOf(i.operandAt(1)))
	case OpCall:
		fmt.Fprintf(&sb, " %s @%s(", i.typ, i.callee)
		for n, arg := range i.operands {
			if n > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s %s", typeOf(arg), refOf(arg))
		}
		sb.WriteString(")")
	case OpBr:
		label := "<nil>"
		if i.target != nil {
			label = i.target.Label
		}
		fmt.Fprintf(&sb, " label %%%s", label)
	case OpRet:
		if len(i.operands) == 0 {
			sb.WriteString(" void")
		} else {
			fmt.Fprintf(&sb, " %s %s", typeOf(i.operands[0]), refOf(i.operands[0]))
		}
	}
	return sb.String()
}

// operandAt tolerates erased instructions, whose operand list is gone.
func (i *Instruction) operandAt(n int) Value {
	if n >= len(i.operands) {
		return nil
	}
	return i.operands[n]
}

func refOf(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Ref()
}

func typeOf(v Value) IntType {
	if v == nil {
		return Void
	}
	return v.Type()
}
