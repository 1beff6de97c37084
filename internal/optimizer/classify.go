package optimizer

import "github.com/hassan/localopt/internal/ir"

// classifyOperands splits a two-operand instruction into its constant
// operand and the other ("variable") operand.
//
// Operand 0 is tried first, so when both operands are constants operand 0
// is reported as the constant. Instructions without exactly two operands,
// or with no constant operand, are not classifiable.
func classifyOperands(inst *ir.Instruction) (*ir.Constant, ir.Value, bool) {
	if inst.NumOperands() != 2 {
		return nil, nil, false
	}
	if c, ok := inst.Operand(0).(*ir.Constant); ok {
		return c, inst.Operand(1), true
	}
	if c, ok := inst.Operand(1).(*ir.Constant); ok {
		return c, inst.Operand(0), true
	}
	return nil, nil, false
}
