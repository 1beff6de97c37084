package optimizer

import (
	"github.com/hassan/localopt/internal/ir"
)

// MultiInstructionPass cancels an add of a constant followed by a sub of
// the same constant, and the other way round.
//
// EXAMPLE:
//
//	Before:  %t = add i32 %x, 5
//	         %y = sub i32 %t, 5
//	         ret i32 %y
//	After:   %t = add i32 %x, 5
//	         %y = sub i32 %t, 5
//	         ret i32 %x
//
// Neither %t nor %y is erased: the users of %y are redirected to %x and
// DeadCodePass reclaims whatever became unused.
//
// A pair only cancels when the outer instruction really undoes the inner
// one:
//   - the outer instruction's variable operand is the inner instruction
//     itself (pointer identity, not structural equality);
//   - a sub takes part only as "v - c". "c - v" negates v, so adding or
//     subtracting c afterwards does not give v back.
//
// Users of the inner instruction are rewritten wherever they are, including
// blocks other than the one being processed.
type MultiInstructionPass struct{}

// Name returns the name of this optimization pass.
func (p *MultiInstructionPass) Name() string {
	return PassMultiInstruction
}

// RunOnBlock cancels opposite add/sub pairs rooted at the instructions of bb.
func (p *MultiInstructionPass) RunOnBlock(bb *ir.BasicBlock, ctx *PassContext) bool {
	changed := false

	for _, inst := range bb.Instructions() {
		if inst.Erased() {
			continue
		}
		opposite, ok := oppositeOp(inst.Op())
		if !ok {
			continue
		}
		c, x, ok := cancelOperands(inst)
		if !ok {
			continue
		}

		for _, user := range inst.Users() {
			if user.Op() != opposite {
				continue
			}
			c2, v, ok := cancelOperands(user)
			if !ok || v != ir.Value(inst) || !c.Equal(c2) {
				continue
			}

			before := user.String()
			if user.ReplaceAllUsesWith(x) {
				rule := ruleCancelAdd
				if inst.Op() == ir.OpSub {
					rule = ruleCancelSub
				}
				ctx.rewrite(p.Name(), bb, before, rule)
				ctx.Stats.Cancellations++
				changed = true
			}
		}
	}

	return changed
}

func oppositeOp(op ir.Opcode) (ir.Opcode, bool) {
	switch op {
	case ir.OpAdd:
		return ir.OpSub, true
	case ir.OpSub:
		return ir.OpAdd, true
	default:
		return 0, false
	}
}

// cancelOperands is classifyOperands restricted to the shapes that can
// cancel: a sub must have its constant as operand 1.
func cancelOperands(inst *ir.Instruction) (*ir.Constant, ir.Value, bool) {
	if inst.Op() == ir.OpSub {
		c, ok := inst.Operand(1).(*ir.Constant)
		if !ok {
			return nil, nil, false
		}
		return c, inst.Operand(0), true
	}
	return classifyOperands(inst)
}
