package ir

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFunction builds
//
//	define i32 @f(i32 %p) {
//	entry:
//	  %a = mul i32 %p, 8
//	  %b = add i32 %a, %a
//	  ret i32 %b
//	}
func newTestFunction(t *testing.T) (*Function, *Instruction, *Instruction, *Instruction) {
	t.Helper()

	fn := NewFunction("f", I32)
	p := fn.AddParam("p", I32)
	entry := fn.AddBlock("entry")

	b := NewBuilder(fn)
	b.SetInsertPoint(entry)
	a := b.CreateMul("a", p, ConstInt(I32, 8))
	sum := b.CreateAdd("b", a, a)
	ret := b.CreateRet(sum)
	return fn, a, sum, ret
}

func TestConstInt(t *testing.T) {
	tests := []struct {
		name string
		typ  IntType
		in   int64
		want string
	}{
		{"positive", I32, 42, "42"},
		{"negative", I32, -1, "-1"},
		{"min i32", I32, -2147483648, "-2147483648"},
		{"truncated", I8, 300, "44"},
		{"wraps to negative", I8, 200, "-56"},
		{"i1 one", I1, 1, "-1"},
		{"min i64", I64, -9223372036854775808, "-9223372036854775808"},
		{"wide", Int(128), -5, "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ConstInt(tt.typ, tt.in)
			assert.Equal(t, tt.want, c.Ref())
			assert.Equal(t, tt.typ, c.Type())
		})
	}
}

func TestConstantPowerOf2(t *testing.T) {
	tests := []struct {
		name string
		c    *Constant
		pow2 bool
		log2 uint
	}{
		{"one", ConstInt(I32, 1), true, 0},
		{"eight", ConstInt(I32, 8), true, 3},
		{"zero", ConstInt(I32, 0), false, 0},
		{"nine", ConstInt(I32, 9), false, 0},
		{"minus one", ConstInt(I32, -1), false, 0},
		{"sign bit", ConstInt(I32, -2147483648), true, 31},
		{"2^100", ConstUint256(Int(128), new(uint256.Int).Lsh(uint256.NewInt(1), 100)), true, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pow2, tt.c.IsPowerOf2())
			if tt.pow2 {
				assert.Equal(t, tt.log2, tt.c.ExactLog2())
			}
		})
	}
}

func TestConstantArithmeticWraps(t *testing.T) {
	assert.True(t, ConstInt(I32, -1).AddOne().IsZero())
	assert.Equal(t, "-1", ConstInt(I32, 0).SubOne().Ref())
	assert.Equal(t, "-128", ConstInt(I8, 127).AddOne().Ref())
	assert.True(t, ConstInt(Int(256), -1).AddOne().IsZero())

	// 0 - 1 in i1 is 1, which is 2^0.
	assert.True(t, ConstInt(I1, 0).SubOne().IsPowerOf2())
}

func TestConstantEqual(t *testing.T) {
	assert.True(t, ConstInt(I32, 5).Equal(ConstInt(I32, 5)))
	assert.False(t, ConstInt(I32, 5).Equal(ConstInt(I64, 5)))
	assert.False(t, ConstInt(I32, 5).Equal(ConstInt(I32, -5)))
	assert.True(t, ConstInt(I8, -1).Equal(ConstInt(I8, 255)))
	assert.False(t, ConstInt(I8, 1).Equal(nil))
}

func TestConstantInt64(t *testing.T) {
	v, ok := ConstInt(I32, -7).Int64()
	require.True(t, ok)
	assert.Equal(t, int64(-7), v)

	v, ok = ConstInt(I64, -9223372036854775808).Int64()
	require.True(t, ok)
	assert.Equal(t, int64(-9223372036854775808), v)

	big := ConstUint256(Int(128), new(uint256.Int).Lsh(uint256.NewInt(1), 70))
	_, ok = big.Int64()
	assert.False(t, ok)
}

func TestParseConst(t *testing.T) {
	tests := []struct {
		name    string
		typ     IntType
		lit     string
		want    string
		wantErr bool
	}{
		{"small", I32, "12", "12", false},
		{"negative", I32, "-12", "-12", false},
		{"unsigned max", I8, "255", "-1", false},
		{"signed min", I8, "-128", "-128", false},
		{"too big", I8, "256", "", true},
		{"too small", I8, "-129", "", true},
		{"i1 true", I1, "1", "-1", false},
		{"i1 minus one", I1, "-1", "-1", false},
		{"garbage", I32, "12x", "", true},
		{"void", Void, "1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseConst(tt.typ, tt.lit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Ref())
		})
	}
}

func TestUseListsFollowOperands(t *testing.T) {
	fn, a, sum, ret := newTestFunction(t)
	p := fn.Params[0]

	assert.Equal(t, []*Instruction{a}, p.Users())
	assert.Equal(t, []*Instruction{sum}, a.Users())
	assert.Equal(t, []*Instruction{ret}, sum.Users())

	// %b uses %a twice; replacing one slot keeps the edge.
	sum.SetOperand(0, p)
	assert.Equal(t, []*Instruction{sum}, a.Users())
	assert.Equal(t, []*Instruction{a, sum}, p.Users())

	sum.SetOperand(1, p)
	assert.Zero(t, a.NumUses())
	assert.Equal(t, []*Instruction{a, sum}, p.Users())
}

func TestReplaceAllUsesWith(t *testing.T) {
	fn, a, sum, _ := newTestFunction(t)
	p := fn.Params[0]

	require.True(t, a.ReplaceAllUsesWith(p))
	assert.Zero(t, a.NumUses())
	assert.Same(t, p, sum.Operand(0).(*Param))
	assert.Same(t, p, sum.Operand(1).(*Param))
	assert.Contains(t, p.Users(), sum)

	// Nothing left to rewrite.
	assert.False(t, a.ReplaceAllUsesWith(p))
	// Self replacement is a no-op.
	assert.False(t, sum.ReplaceAllUsesWith(sum))

	m := NewModule("t")
	m.AddFunction(fn)
	assert.Empty(t, m.Verify())
}

func TestBuilderInsertAfter(t *testing.T) {
	fn, a, sum, ret := newTestFunction(t)
	p := fn.Params[0]

	b := NewBuilder(fn)
	b.SetInsertPointAfter(a)
	shl := b.CreateShl("a.shl", p, ConstInt(I32, 3))
	add := b.CreateAdd("", shl, p)

	entry := fn.Entry()
	assert.Equal(t, []*Instruction{a, shl, add, sum, ret}, entry.Instructions())
	assert.Equal(t, "t", add.Name())
	assert.Equal(t, entry, add.Block())

	// Taken names get a numeric suffix.
	again := b.CreateShl("a.shl", p, ConstInt(I32, 1))
	assert.Equal(t, "a.shl.1", again.Name())
	assert.Equal(t, 3, entry.IndexOf(again))
}

func TestEraseFromParent(t *testing.T) {
	fn, a, sum, ret := newTestFunction(t)
	p := fn.Params[0]

	assert.Panics(t, func() { a.EraseFromParent() })

	sum.ReplaceAllUsesWith(p)
	sum.EraseFromParent()
	assert.True(t, sum.Erased())
	assert.Nil(t, sum.Block())
	assert.Zero(t, a.NumUses())
	assert.Equal(t, []*Instruction{a, ret}, fn.Entry().Instructions())

	a.EraseFromParent()
	assert.Equal(t, []*Instruction{ret}, fn.Entry().Instructions())
	assert.Equal(t, []*Instruction{ret}, p.Users())

	// Erasing twice is harmless.
	a.EraseFromParent()
	assert.Equal(t, "%a = mul i32 <nil>, <nil>", a.String())
}

func TestInstructionString(t *testing.T) {
	fn := NewFunction("g", Void)
	p := fn.AddParam("p", I64)
	entry := fn.AddBlock("entry")
	exit := fn.AddBlock("exit")

	b := NewBuilder(fn)
	b.SetInsertPoint(entry)
	d := b.CreateSDiv("d", p, ConstInt(I64, -4))
	call := b.CreateCall(Void, "", "sink", d, ConstInt(I32, 1))
	br := b.CreateBr(exit)
	b.SetInsertPoint(exit)
	ret := b.CreateRet(nil)

	assert.Equal(t, "%d = sdiv i64 %p, -4", d.String())
	assert.Equal(t, "call void @sink(i64 %d, i32 1)", call.String())
	assert.Equal(t, "br label %exit", br.String())
	assert.Equal(t, "ret void", ret.String())
	assert.Equal(t, []*BasicBlock{exit}, entry.Successors())

	want := "define void @g(i64 %p) {\n" +
		"entry:\n" +
		"  %d = sdiv i64 %p, -4\n" +
		"  call void @sink(i64 %d, i32 1)\n" +
		"  br label %exit\n" +
		"exit:\n" +
		"  ret void\n" +
		"}\n"
	assert.Equal(t, want, fn.String())
}

func TestVerify(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		fn, _, _, _ := newTestFunction(t)
		m := NewModule("t")
		m.AddFunction(fn)
		assert.Empty(t, m.Verify())
	})

	t.Run("missing terminator", func(t *testing.T) {
		fn, _, _, ret := newTestFunction(t)
		ret.EraseFromParent()
		m := NewModule("t")
		m.AddFunction(fn)
		errs := m.Verify()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "has no terminator")
	})

	t.Run("broken use-list", func(t *testing.T) {
		fn, a, sum, _ := newTestFunction(t)
		a.users.remove(sum)
		m := NewModule("t")
		m.AddFunction(fn)
		errs := m.Verify()
		require.NotEmpty(t, errs)
		assert.Contains(t, errs[0].Error(), "missing from the use-list of %a")
	})

	t.Run("operand type mismatch", func(t *testing.T) {
		fn, _, sum, _ := newTestFunction(t)
		sum.SetOperand(1, ConstInt(I64, 1))
		m := NewModule("t")
		m.AddFunction(fn)
		errs := m.Verify()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "has type i64, want i32")
	})
}

func TestLookupOpcode(t *testing.T) {
	for _, op := range []Opcode{OpAdd, OpSub, OpMul, OpSDiv, OpShl, OpLShr, OpCall, OpBr, OpRet} {
		got, ok := LookupOpcode(op.String())
		require.True(t, ok)
		assert.Equal(t, op, got)
	}
	_, ok := LookupOpcode("udiv")
	assert.False(t, ok)

	assert.True(t, OpShl.IsBinary())
	assert.False(t, OpCall.IsBinary())
	assert.True(t, OpRet.IsTerminator())
}
