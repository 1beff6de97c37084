package ir

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MaxIntWidth is the widest integer type the IR can represent.
// Constants are stored in a 256-bit word and masked to their width.
const MaxIntWidth = 256

// IntType is a fixed-width integer type such as i1, i32 or i64.
//
// The zero value is the void type: it is the type of instructions that
// do not produce a value (br, ret, calls without a result).
type IntType struct {
	Width uint
}

// Common types.
var (
	Void = IntType{}
	I1   = IntType{Width: 1}
	I8   = IntType{Width: 8}
	I16  = IntType{Width: 16}
	I32  = IntType{Width: 32}
	I64  = IntType{Width: 64}
)

// Int returns the integer type of the given width.
func Int(width uint) IntType {
	return IntType{Width: width}
}

// IsVoid reports whether t is the void type.
func (t IntType) IsVoid() bool {
	return t.Width == 0
}

// Valid reports whether t is void or an integer type the IR supports.
func (t IntType) Valid() bool {
	return t.Width <= MaxIntWidth
}

func (t IntType) String() string {
	if t.IsVoid() {
		return "void"
	}
	return fmt.Sprintf("i%d", t.Width)
}

// mask returns 2^Width - 1.
func (t IntType) mask() *uint256.Int {
	m := new(uint256.Int)
	if t.Width >= MaxIntWidth {
		return m.Not(m)
	}
	m.Lsh(uint256.NewInt(1), t.Width)
	return m.SubUint64(m, 1)
}
