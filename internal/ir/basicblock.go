package ir

import (
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// BasicBlock represents a sequence of instructions with single entry and exit.
//
// WHAT IS A BASIC BLOCK?
// A basic block is a straight-line code sequence with:
// - One entry point (the first instruction)
// - One exit point (a br or ret)
// - No jumps in or out in the middle
//
// The instruction order is stable: insertion and removal never reorder the
// surviving instructions. Edits go through InsertAfter and
// Instruction.EraseFromParent so that each instruction's block pointer stays
// correct.
type BasicBlock struct {
	// Label is the unique name of this block within its function
	Label string

	// Parent is the function owning this block
	Parent *Function

	// Index is the position in the function's block list
	Index int

	instrs []*Instruction
}

// Instructions returns a snapshot of the block's instructions. Passes that
// insert or erase while walking iterate over the snapshot.
func (bb *BasicBlock) Instructions() []*Instruction {
	out := make([]*Instruction, len(bb.instrs))
	copy(out, bb.instrs)
	return out
}

// Len returns the number of instructions in the block.
func (bb *BasicBlock) Len() int {
	return len(bb.instrs)
}

// At returns the n-th instruction of the block.
func (bb *BasicBlock) At(n int) *Instruction {
	return bb.instrs[n]
}

// IndexOf returns the position of inst in the block, or -1.
func (bb *BasicBlock) IndexOf(inst *Instruction) int {
	for n, x := range bb.instrs {
		if x == inst {
			return n
		}
	}
	return -1
}

// append links inst at the end of the block.
func (bb *BasicBlock) append(inst *Instruction) {
	inst.block = bb
	bb.instrs = append(bb.instrs, inst)
}

// InsertAfter links inst immediately after anchor. It panics if anchor is
// not in this block.
func (bb *BasicBlock) InsertAfter(anchor, inst *Instruction) {
	pos := bb.IndexOf(anchor)
	if pos < 0 {
		panic(fmt.Sprintf("ir: %s is not in block %s", anchor, bb.Label))
	}
	inst.block = bb
	bb.instrs = append(bb.instrs, nil)
	copy(bb.instrs[pos+2:], bb.instrs[pos+1:])
	bb.instrs[pos+1] = inst
}

// remove unlinks inst, keeping the order of the rest.
func (bb *BasicBlock) remove(inst *Instruction) {
	pos := bb.IndexOf(inst)
	if pos < 0 {
		return
	}
	copy(bb.instrs[pos:], bb.instrs[pos+1:])
	bb.instrs[len(bb.instrs)-1] = nil
	bb.instrs = bb.instrs[:len(bb.instrs)-1]
}

// Terminator returns the last instruction if it is a br or ret.
func (bb *BasicBlock) Terminator() *Instruction {
	if len(bb.instrs) == 0 {
		return nil
	}
	last := bb.instrs[len(bb.instrs)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// IsTerminated returns true if this block has a terminator instruction.
func (bb *BasicBlock) IsTerminated() bool {
	return bb.Terminator() != nil
}

// Successors returns the blocks control can reach from the end of bb.
func (bb *BasicBlock) Successors() []*BasicBlock {
	term := bb.Terminator()
	if term == nil || term.op != OpBr || term.target == nil {
		return nil
	}
	return []*BasicBlock{term.target}
}

// String returns a human-readable representation of the basic block.
func (bb *BasicBlock) String() string {
	var sb strings.Builder

	sb.WriteString(bb.Label)
	sb.WriteString(":\n")
	for _, instr := range bb.instrs {
		sb.WriteString("  ")
		sb.WriteString(instr.String())
		sb.WriteString("\n")
	}

	return sb.String()
}

// Function represents a function in IR.
//
// The first block is the entry block. The function hands out instruction
// IDs and keeps names unique, so optimizer-created instructions can be
// printed and parsed back.
type Function struct {
	// Name is the function name
	Name string

	// Params are the function parameters
	Params []*Param

	// ReturnType is the function's return type
	ReturnType IntType

	// Blocks are all basic blocks in this function
	Blocks []*BasicBlock

	// names holds every %name in use (parameters, instructions, labels
	// share one namespace in the text form)
	names map[string]bool

	// nextValueID is used to generate unique value IDs
	nextValueID int
}

// NewFunction creates a function with no blocks.
func NewFunction(name string, returnType IntType) *Function {
	return &Function{
		Name:       name,
		ReturnType: returnType,
		names:      make(map[string]bool),
	}
}

// AddParam appends a parameter. An empty or taken name is made unique.
func (f *Function) AddParam(name string, typ IntType) *Param {
	p := &Param{id: f.newID(), name: f.uniqueName(name), typ: typ}
	f.Params = append(f.Params, p)
	return p
}

// AddBlock appends a new basic block.
func (f *Function) AddBlock(label string) *BasicBlock {
	bb := &BasicBlock{
		Label:  f.uniqueName(label),
		Parent: f,
		Index:  len(f.Blocks),
	}
	f.Blocks = append(f.Blocks, bb)
	return bb
}

// MoveBlockToEnd moves bb after every other block of f. The text parser
// uses it to place blocks that were referenced before their label appeared.
func (f *Function) MoveBlockToEnd(bb *BasicBlock) {
	for n, b := range f.Blocks {
		if b == bb {
			f.Blocks = append(f.Blocks[:n], f.Blocks[n+1:]...)
			break
		}
	}
	f.Blocks = append(f.Blocks, bb)
	for n, b := range f.Blocks {
		b.Index = n
	}
}

// Entry returns the entry block, or nil for a declaration-only function.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// HasName reports whether name is already taken in f.
func (f *Function) HasName(name string) bool {
	return f.names[name]
}

// NumInstructions counts the instructions of every block.
func (f *Function) NumInstructions() int {
	count := 0
	for _, block := range f.Blocks {
		count += block.Len()
	}
	return count
}

func (f *Function) newID() int {
	id := f.nextValueID
	f.nextValueID++
	return id
}

// uniqueName reserves base, or base.N for the first free N. An empty base
// becomes "t".
func (f *Function) uniqueName(base string) string {
	if base == "" {
		base = "t"
	}
	name := base
	for n := 1; f.names[name]; n++ {
		name = base + "." + strconv.Itoa(n)
	}
	f.names[name] = true
	return name
}

// String returns a human-readable representation of the function.
func (f *Function) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "define %s @%s(", f.ReturnType, f.Name)
	for i, param := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(param.String())
	}
	sb.WriteString(") {\n")

	for _, block := range f.Blocks {
		sb.WriteString(block.String())
	}

	sb.WriteString("}\n")
	return sb.String()
}

// Module represents a compilation unit (collection of functions).
type Module struct {
	// Name is the module name (typically the input file name)
	Name string

	// Functions are all functions in this module
	Functions []*Function
}

// NewModule creates a new module.
func NewModule(name string) *Module {
	return &Module{
		Name:      name,
		Functions: make([]*Function, 0),
	}
}

// AddFunction adds a function to the module.
func (m *Module) AddFunction(fn *Function) {
	m.Functions = append(m.Functions, fn)
}

// Function returns the function with the given name, or nil.
func (m *Module) Function(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// String returns a human-readable representation of the module.
func (m *Module) String() string {
	var sb strings.Builder

	sb.WriteString("; ModuleID = '")
	sb.WriteString(m.Name)
	sb.WriteString("'\n")

	for _, fn := range m.Functions {
		sb.WriteString("\n")
		sb.WriteString(fn.String())
	}

	return sb.String()
}

// Verify checks that the IR is well-formed.
// Returns a list of errors found.
//
// CHECKS:
// - Every block ends with exactly one terminator
// - Every instruction sits in the block it points back to, once
// - Binary operators have two operands of the instruction's type
// - Operand edges and use-lists mirror each other
// - No operand refers to an erased instruction
func (m *Module) Verify() []error {
	errors := make([]error, 0)

	for _, fn := range m.Functions {
		seen := mapset.NewThreadUnsafeSet[*Instruction]()

		for _, block := range fn.Blocks {
			if !block.IsTerminated() {
				errors = append(errors, fmt.Errorf(
					"block %s in function %s has no terminator",
					block.Label, fn.Name))
			}

			for n, inst := range block.instrs {
				where := fmt.Sprintf("%s/%s: %s", fn.Name, block.Label, inst)

				if !seen.Add(inst) {
					errors = append(errors, fmt.Errorf("%s: instruction linked twice", where))
				}
				if inst.erased {
					errors = append(errors, fmt.Errorf("%s: erased instruction still linked", where))
				}
				if inst.block != block {
					errors = append(errors, fmt.Errorf("%s: wrong parent block", where))
				}
				if inst.IsTerminator() && n != len(block.instrs)-1 {
					errors = append(errors, fmt.Errorf("%s: terminator in the middle of the block", where))
				}
				if inst.op == OpBr && (inst.target == nil || inst.target.Parent != fn) {
					errors = append(errors, fmt.Errorf("%s: branch to a block outside the function", where))
				}
				errors = append(errors, verifyOperands(inst, where)...)
				errors = append(errors, verifyUsers(inst, where)...)
			}
		}

		for _, param := range fn.Params {
			errors = append(errors, verifyUsers(param, fn.Name+": "+param.Ref())...)
		}
	}

	return errors
}

func verifyOperands(inst *Instruction, where string) []error {
	var errs []error

	if inst.IsBinaryOp() {
		if len(inst.operands) != 2 {
			return append(errs, fmt.Errorf("%s: binary operator needs 2 operands, has %d", where, len(inst.operands)))
		}
		for _, op := range inst.operands {
			if op != nil && op.Type() != inst.typ {
				errs = append(errs, fmt.Errorf("%s: operand %s has type %s, want %s", where, op.Ref(), op.Type(), inst.typ))
			}
		}
	}

	for _, op := range inst.operands {
		if op == nil {
			errs = append(errs, fmt.Errorf("%s: nil operand", where))
			continue
		}
		if def, ok := op.(*Instruction); ok && def.erased {
			errs = append(errs, fmt.Errorf("%s: operand %s was erased", where, def.Ref()))
		}
		if _, ok := op.(*Constant); ok {
			continue
		}
		if !usesOf(op).contains(inst) {
			errs = append(errs, fmt.Errorf("%s: missing from the use-list of %s", where, op.Ref()))
		}
	}
	return errs
}

func verifyUsers(v Value, where string) []error {
	var errs []error
	for _, user := range v.Users() {
		if user.erased {
			errs = append(errs, fmt.Errorf("%s: erased instruction %s still listed as a user", where, user.Ref()))
			continue
		}
		if !user.references(v) {
			errs = append(errs, fmt.Errorf("%s: use-list lists %s which does not use it", where, user.Ref()))
		}
	}
	return errs
}

func usesOf(v Value) *useList {
	switch v := v.(type) {
	case *Instruction:
		return &v.users
	case *Param:
		return &v.users
	default:
		return &useList{}
	}
}
