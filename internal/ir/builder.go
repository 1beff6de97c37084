package ir

// Builder creates instructions and links them into a function.
//
// A builder has an insertion point: either the end of a block
// (SetInsertPoint) or the slot right after an existing instruction
// (SetInsertPointAfter). In the second mode every created instruction
// becomes the new anchor, so
//
//	b.SetInsertPointAfter(mul)
//	shl := b.CreateShl("", x, k)
//	add := b.CreateAdd("", shl, x)
//
// produces mul, shl, add in that order.
type Builder struct {
	fn     *Function
	block  *BasicBlock
	anchor *Instruction
}

// NewBuilder creates a builder for fn with no insertion point.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn}
}

// Function returns the function the builder creates instructions in.
func (b *Builder) Function() *Function {
	return b.fn
}

// SetInsertPoint makes the builder append to the end of bb.
func (b *Builder) SetInsertPoint(bb *BasicBlock) {
	b.block = bb
	b.anchor = nil
}

// SetInsertPointAfter makes the builder insert right after inst.
func (b *Builder) SetInsertPointAfter(inst *Instruction) {
	b.block = inst.block
	b.anchor = inst
}

// Block returns the block the builder inserts into.
func (b *Builder) Block() *BasicBlock {
	return b.block
}

func (b *Builder) CreateAdd(name string, x, y Value) *Instruction {
	return b.CreateBinary(OpAdd, name, x, y)
}

func (b *Builder) CreateSub(name string, x, y Value) *Instruction {
	return b.CreateBinary(OpSub, name, x, y)
}

func (b *Builder) CreateMul(name string, x, y Value) *Instruction {
	return b.CreateBinary(OpMul, name, x, y)
}

func (b *Builder) CreateSDiv(name string, x, y Value) *Instruction {
	return b.CreateBinary(OpSDiv, name, x, y)
}

func (b *Builder) CreateShl(name string, x, y Value) *Instruction {
	return b.CreateBinary(OpShl, name, x, y)
}

func (b *Builder) CreateLShr(name string, x, y Value) *Instruction {
	return b.CreateBinary(OpLShr, name, x, y)
}

// CreateBinary creates `name = op x, y`. The result has the type of x.
func (b *Builder) CreateBinary(op Opcode, name string, x, y Value) *Instruction {
	return b.insert(&Instruction{op: op, typ: x.Type()}, name, x, y)
}

// CreateCall creates an opaque call. A void typ yields an unnamed
// instruction.
func (b *Builder) CreateCall(typ IntType, name, callee string, args ...Value) *Instruction {
	return b.insert(&Instruction{op: OpCall, typ: typ, callee: callee}, name, args...)
}

// CreateBr creates an unconditional branch to target.
func (b *Builder) CreateBr(target *BasicBlock) *Instruction {
	return b.insert(&Instruction{op: OpBr, target: target}, "")
}

// CreateRet creates a return of v, or `ret void` when v is nil.
func (b *Builder) CreateRet(v Value) *Instruction {
	if v == nil {
		return b.insert(&Instruction{op: OpRet}, "")
	}
	return b.insert(&Instruction{op: OpRet}, "", v)
}

func (b *Builder) insert(inst *Instruction, name string, operands ...Value) *Instruction {
	if b.block == nil {
		panic("ir: builder has no insertion point")
	}

	inst.id = b.fn.newID()
	if !inst.typ.IsVoid() {
		inst.name = b.fn.uniqueName(name)
	}
	inst.operands = make([]Value, len(operands))
	for n, v := range operands {
		inst.SetOperand(n, v)
	}

	if b.anchor != nil {
		b.block.InsertAfter(b.anchor, inst)
		b.anchor = inst
	} else {
		b.block.append(inst)
	}
	return inst
}
