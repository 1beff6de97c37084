package ir

import (
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
)

// Value is anything an instruction can take as an operand: an *Instruction,
// a *Constant or a *Param.
//
// Values are referenced, never copied. Identity is pointer identity: two
// distinct *Param values with the same name are different values.
type Value interface {
	// Type returns the integer type of the value (void for instructions
	// that produce nothing).
	Type() IntType

	// Ref returns the operand spelling of the value, e.g. "%x" or "42".
	Ref() string

	// Users returns a snapshot of the instructions that use this value,
	// ordered by instruction ID. Constants are shared and do not track
	// their users, so they always return nil.
	Users() []*Instruction

	// NumUses returns the number of distinct instructions using the value.
	NumUses() int

	addUse(user *Instruction)
	removeUse(user *Instruction)
}

// useList is the inverse view of the def-use graph for one value.
// It holds each user once, however many operand slots refer to the value.
type useList struct {
	users mapset.Set[*Instruction]
}

func (u *useList) add(user *Instruction) {
	if u.users == nil {
		u.users = mapset.NewThreadUnsafeSet[*Instruction]()
	}
	u.users.Add(user)
}

func (u *useList) remove(user *Instruction) {
	if u.users != nil {
		u.users.Remove(user)
	}
}

func (u *useList) len() int {
	if u.users == nil {
		return 0
	}
	return u.users.Cardinality()
}

func (u *useList) contains(user *Instruction) bool {
	return u.users != nil && u.users.Contains(user)
}

// snapshot copies the users so callers may rewrite the graph while
// iterating.
func (u *useList) snapshot() []*Instruction {
	if u.len() == 0 {
		return nil
	}
	users := u.users.ToSlice()
	slices.SortFunc(users, func(a, b *Instruction) int { return a.id - b.id })
	return users
}

// Param is a function parameter: a value defined outside every block.
type Param struct {
	id    int
	name  string
	typ   IntType
	users useList
}

func (p *Param) ID() int               { return p.id }
func (p *Param) Name() string          { return p.name }
func (p *Param) Type() IntType         { return p.typ }
func (p *Param) Ref() string           { return "%" + p.name }
func (p *Param) Users() []*Instruction { return p.users.snapshot() }
func (p *Param) NumUses() int          { return p.users.len() }
func (p *Param) String() string        { return p.typ.String() + " " + p.Ref() }

func (p *Param) addUse(user *Instruction)    { p.users.add(user) }
func (p *Param) removeUse(user *Instruction) { p.users.remove(user) }

// Constant is an immutable integer of a fixed bit width.
//
// The bit pattern is kept in a 256-bit word masked to the type width, so
// arithmetic on constants wraps exactly like the machine operation would.
// Power-of-two tests and logarithms look at the unsigned bit pattern:
// in i32, -2147483648 is 2^31.
type Constant struct {
	typ IntType
	val uint256.Int
}

// ConstInt returns the constant of type t whose two's complement value is v
// truncated to the width of t.
func ConstInt(t IntType, v int64) *Constant {
	var x *uint256.Int
	if v < 0 {
		x = uint256.NewInt(uint64(-(v+1)) + 1)
		x.Neg(x)
	} else {
		x = uint256.NewInt(uint64(v))
	}
	return ConstUint256(t, x)
}

// ConstUint256 returns the constant of type t holding the low t.Width bits
// of x.
func ConstUint256(t IntType, x *uint256.Int) *Constant {
	c := &Constant{typ: t}
	c.val.And(x, t.mask())
	return c
}

// ParseConst parses a decimal literal, optionally negative, as a constant
// of type t. Literals are accepted when they fit the width either as an
// unsigned or as a signed number.
func ParseConst(t IntType, lit string) (*Constant, error) {
	if t.IsVoid() || !t.Valid() {
		return nil, fmt.Errorf("invalid constant type %s", t)
	}
	neg := strings.HasPrefix(lit, "-")
	digits := strings.TrimPrefix(lit, "-")
	mag, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("invalid integer literal %q: %v", lit, err)
	}
	if neg {
		// The most negative value has magnitude 2^(w-1).
		limit := new(uint256.Int).Lsh(uint256.NewInt(1), t.Width-1)
		if mag.Gt(limit) {
			return nil, fmt.Errorf("literal %s does not fit in %s", lit, t)
		}
		mag.Neg(mag)
	} else if uint(mag.BitLen()) > t.Width {
		return nil, fmt.Errorf("literal %s does not fit in %s", lit, t)
	}
	return ConstUint256(t, mag), nil
}

func (c *Constant) Type() IntType          { return c.typ }
func (c *Constant) Users() []*Instruction  { return nil }
func (c *Constant) NumUses() int           { return 0 }
func (c *Constant) Ref() string            { return c.signedString() }
func (c *Constant) String() string         { return c.typ.String() + " " + c.Ref() }
func (c *Constant) Uint256() *uint256.Int  { return new(uint256.Int).Set(&c.val) }
func (c *Constant) IsZero() bool           { return c.val.IsZero() }
func (c *Constant) IsOne() bool            { return c.val.Eq(uint256.NewInt(1)) }
func (c *Constant) addUse(*Instruction)    {}
func (c *Constant) removeUse(*Instruction) {}

func (c *Constant) isNegative() bool {
	return c.typ.Width > 0 && uint(c.val.BitLen()) == c.typ.Width
}

// Equal reports whether c and o have the same type and bit pattern.
func (c *Constant) Equal(o *Constant) bool {
	return o != nil && c.typ == o.typ && c.val.Eq(&o.val)
}

// Int64 returns the signed value of c and whether it fits in an int64.
func (c *Constant) Int64() (int64, bool) {
	if !c.isNegative() {
		if c.val.BitLen() > 63 {
			return 0, false
		}
		return int64(c.val.Uint64()), true
	}
	mag := new(uint256.Int).Neg(&c.val)
	mag.And(mag, c.typ.mask())
	if mag.BitLen() > 64 || (mag.BitLen() == 64 && mag.Uint64() != 1<<63) {
		return 0, false
	}
	return -int64(mag.Uint64()), true
}

// AddOne returns c+1, wrapping at the type width.
func (c *Constant) AddOne() *Constant {
	return ConstUint256(c.typ, new(uint256.Int).AddUint64(&c.val, 1))
}

// SubOne returns c-1, wrapping at the type width.
func (c *Constant) SubOne() *Constant {
	return ConstUint256(c.typ, new(uint256.Int).SubUint64(&c.val, 1))
}

// IsPowerOf2 reports whether the bit pattern of c has exactly one bit set.
func (c *Constant) IsPowerOf2() bool {
	if c.val.IsZero() {
		return false
	}
	below := new(uint256.Int).SubUint64(&c.val, 1)
	return below.And(below, &c.val).IsZero()
}

// ExactLog2 returns k such that c == 2^k. The result is only meaningful
// when IsPowerOf2 is true.
func (c *Constant) ExactLog2() uint {
	return uint(c.val.BitLen() - 1)
}

func (c *Constant) signedString() string {
	if !c.isNegative() {
		return c.val.ToBig().String()
	}
	mag := new(uint256.Int).Neg(&c.val)
	mag.And(mag, c.typ.mask())
	return "-" + mag.ToBig().String()
}
