package optimizer

import (
	"github.com/hassan/localopt/internal/ir"
)

// DeadCodePass removes binary operators whose result is never used.
//
// WHAT IS DEAD CODE HERE?
// An add, sub, mul, sdiv, shl or lshr with an empty use-list. Calls, branches
// and returns are never removed, whether or not their result is used.
//
// EXAMPLE:
//
//	Before:  %a = mul i32 %p, 8     ; no users left after strength reduction
//	         %a.shl = shl i32 %p, 3
//	         ret i32 %a.shl
//	After:   %a.shl = shl i32 %p, 3
//	         ret i32 %a.shl
//
// ALGORITHM:
// One forward sweep with an index cursor. Erasing an instruction drops its
// operand edges and the sweep continues with the instruction that followed
// it. An operand that becomes unused this way is only removed if it comes
// later in the block; instructions already passed are left for the next
// invocation.
type DeadCodePass struct{}

// Name returns the name of this optimization pass.
func (d *DeadCodePass) Name() string {
	return PassDeadCode
}

// RunOnBlock erases the unused binary operators of bb.
func (d *DeadCodePass) RunOnBlock(bb *ir.BasicBlock, ctx *PassContext) bool {
	changed := false

	for n := 0; n < bb.Len(); {
		inst := bb.At(n)
		if !inst.IsBinaryOp() || inst.NumUses() > 0 {
			n++
			continue
		}

		ctx.rewrite(d.Name(), bb, inst.String(), ruleDeadBinary)
		inst.EraseFromParent()
		ctx.Stats.InstructionsRemoved++
		changed = true
	}

	return changed
}
