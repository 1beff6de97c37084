package parser

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hassan/localopt/internal/ir"
)

func parseError(src string) string {
	_, err := ParseString("t.ir", src)
	Expect(err).To(HaveOccurred())
	return err.Error()
}

var _ = Describe("Parser", func() {
	Describe("round trip", func() {
		It("prints back exactly what it parsed", func() {
			src := `; ModuleID = 'roundtrip.ir'

define i32 @f(i32 %p, i32 %q) {
entry:
  %a = mul i32 %p, 8
  %b = add i32 -3, %a
  %a.shl = shl i32 %b, %q
  %c = call i32 @g(i32 %a.shl, i32 7)
  call void @h()
  br label %exit
exit:
  ret i32 %c
}

define void @h() {
entry:
  ret void
}
`
			m, err := ParseString("roundtrip.ir", src)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Verify()).To(BeEmpty())
			Expect(m.String()).To(Equal(src))
		})

		It("ignores comments and blank lines", func() {
			m, err := ParseString("t.ir", `
; leading comment
define i8 @f(i8 %x) {   ; header
entry:

  %y = sdiv i8 %x, -128 ; most negative i8
  ret i8 %y
}
`)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Function("f").String()).To(Equal(`define i8 @f(i8 %x) {
entry:
  %y = sdiv i8 %x, -128
  ret i8 %y
}
`))
		})
	})

	Describe("values", func() {
		var fn *ir.Function

		BeforeEach(func() {
			m, err := ParseString("t.ir", `define i32 @f(i32 %x) {
entry:
  %a = add i32 %x, 5
  %b = sub i32 %a, %a
  ret i32 %b
}
`)
			Expect(err).NotTo(HaveOccurred())
			fn = m.Function("f")
		})

		It("links operands to their definitions", func() {
			entry := fn.Entry()
			a, b := entry.At(0), entry.At(1)

			Expect(a.Operand(0)).To(BeIdenticalTo(ir.Value(fn.Params[0])))
			Expect(a.Operand(1)).To(BeAssignableToTypeOf(&ir.Constant{}))
			Expect(b.Operand(0)).To(BeIdenticalTo(ir.Value(a)))
			Expect(b.Operand(1)).To(BeIdenticalTo(ir.Value(a)))
		})

		It("builds use lists", func() {
			entry := fn.Entry()
			// %b refers to %a twice but is one user.
			Expect(entry.At(0).NumUses()).To(Equal(1))
			Expect(entry.At(1).Users()).To(ConsistOf(entry.Terminator()))
			Expect(fn.Params[0].NumUses()).To(Equal(1))
		})
	})

	Describe("blocks", func() {
		It("resolves branches to labels defined later", func() {
			m, err := ParseString("t.ir", `define i32 @f(i32 %x) {
entry:
  br label %b
a:
  br label %b
b:
  ret i32 %x
}
`)
			Expect(err).NotTo(HaveOccurred())

			fn := m.Function("f")
			var labels []string
			for _, block := range fn.Blocks {
				labels = append(labels, block.Label)
			}
			Expect(labels).To(Equal([]string{"entry", "a", "b"}))
			Expect(fn.Blocks[0].Successors()).To(ConsistOf(fn.Blocks[2]))
			Expect(fn.Blocks[1].Successors()).To(ConsistOf(fn.Blocks[2]))
			Expect(m.Verify()).To(BeEmpty())
		})

		It("resolves backward branches", func() {
			m, err := ParseString("t.ir", `define void @loop() {
entry:
  br label %body
body:
  br label %body
}
`)
			Expect(err).NotTo(HaveOccurred())
			body := m.Function("loop").Blocks[1]
			Expect(body.Successors()).To(ConsistOf(body))
		})
	})

	It("parses every function of a module", func() {
		m, err := ParseString("t.ir", `define void @a() {
entry:
  ret void
}
define i64 @b(i64 %x) {
entry:
  %r = call i64 @b(i64 %x)
  ret i64 %r
}
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Functions).To(HaveLen(2))
		Expect(m.Function("b").ReturnType).To(Equal(ir.I64))
		Expect(m.Function("b").Entry().At(0).Callee()).To(Equal("b"))
	})

	DescribeTable("reports errors",
		func(src, want string) {
			Expect(parseError(src)).To(ContainSubstring(want))
		},
		Entry("undefined value", `define i32 @f(i32 %x) {
entry:
  %a = add i32 %y, 1
  ret i32 %x
}`, "t.ir:3:16: undefined value %y"),
		Entry("use before definition", `define i32 @f(i32 %x) {
entry:
  %a = add i32 %a, 1
  ret i32 %x
}`, "undefined value %a"),
		Entry("operand type mismatch", `define i32 @f(i64 %x) {
entry:
  %a = add i32 %x, 1
  ret i32 %a
}`, "type mismatch: %x is i64, want i32"),
		Entry("literal out of range", `define i8 @f(i8 %x) {
entry:
  %a = add i8 %x, 300
  ret i8 %a
}`, "t.ir:3:19: literal 300 does not fit in i8"),
		Entry("unknown opcode", `define i32 @f(i32 %x) {
entry:
  %a = udiv i32 %x, 2
  ret i32 %x
}`, `t.ir:3:8: unknown opcode "udiv"`),
		Entry("unnamed binary result", `define i32 @f(i32 %x) {
entry:
  add i32 %x, 2
  ret i32 %x
}`, "result of add must be named"),
		Entry("missing terminator", `define i32 @f(i32 %x) {
entry:
  %a = add i32 %x, 1
}`, "t.ir:4:1: block entry does not end with br or ret"),
		Entry("missing terminator before a label", `define i32 @f(i32 %x) {
entry:
  %a = add i32 %x, 1
next:
  ret i32 %a
}`, "t.ir:4:1: block entry does not end with br or ret"),
		Entry("instruction after terminator", `define i32 @f(i32 %x) {
entry:
  ret i32 %x
  %a = add i32 %x, 1
}`, "t.ir:4:3: instruction after the terminator of block entry"),
		Entry("instruction before any label", `define i32 @f(i32 %x) {
  ret i32 %x
}`, "instruction outside a block; expected a label"),
		Entry("undefined label", `define void @f() {
entry:
  br label %nowhere
}`, "t.ir:3:12: undefined label %nowhere"),
		Entry("label used as a value", `define i32 @f(i32 %x) {
entry:
  br label %exit
exit:
  %a = add i32 %exit, 1
  ret i32 %a
}`, "%exit is a block, not a value"),
		Entry("value used as a label", `define i32 @f(i32 %x) {
entry:
  br label %x
}`, "%x is a parameter, not a block"),
		Entry("redefined value", `define i32 @f(i32 %x) {
entry:
  %a = add i32 %x, 1
  %a = add i32 %x, 2
  ret i32 %a
}`, "t.ir:4:3: a redefined; previous definition as value at t.ir:3:3"),
		Entry("redefined function", `define void @h() {
entry:
  ret void
}
define void @h() {
entry:
  ret void
}`, "h redefined; previous definition as function"),
		Entry("void call with a result", `define void @f() {
entry:
  %r = call void @h()
  ret void
}`, "void call cannot have a result"),
		Entry("unnamed call result", `define void @f() {
entry:
  call i32 @g()
  ret void
}`, "result of a i32 call must be named"),
		Entry("call with the wrong return type", `define void @h() {
entry:
  ret void
}
define void @f() {
entry:
  %r = call i32 @h()
  ret void
}`, "call of @h as i32, but it returns void"),
		Entry("ret void from an integer function", `define i32 @f() {
entry:
  ret void
}`, "ret void in a function returning i32"),
		Entry("ret of the wrong width", `define i32 @f(i64 %x) {
entry:
  ret i64 %x
}`, "ret i64 in a function returning i32"),
		Entry("unsupported width", `define i512 @f() {
entry:
  ret void
}`, "unsupported integer type i512"),
		Entry("missing closing brace", `define void @f() {
entry:
  ret void
`, "expected '}', found end of file"),
		Entry("top-level garbage", `entry:
`, "expected 'define', found \"entry\""),
		Entry("lexical error", `define i32 @f(i32 %x) {
entry:
  %a = add i32 %x, 12x
  ret i32 %x
}`, `t.ir:3:20: invalid integer literal "12x"`),
	)

	It("reports every error in the file", func() {
		msg := parseError(`define i32 @f(i32 %x) {
entry:
  %a = add i32 %y, 1
  %b = udiv i32 %x, 1
  %c = add i32 %x, 1
  ret i32 %c
}
define void @g() {
entry:
  br label %missing
}
`)
		lines := strings.Split(msg, "\n")
		Expect(lines).To(Equal([]string{
			"t.ir:3:16: undefined value %y",
			`t.ir:4:8: unknown opcode "udiv"`,
			"t.ir:10:12: undefined label %missing",
		}))
	})

	It("does not report an invalid token twice", func() {
		msg := parseError(`define i32 @f(i32 %x) {
entry:
  %a = add i32 %x, #
  ret i32 %x
}
`)
		Expect(strings.Split(msg, "\n")).To(HaveLen(1))
		Expect(msg).To(ContainSubstring(`unexpected character: '#'`))
	})

	It("returns the partial module with the errors", func() {
		m, err := ParseString("t.ir", `define void @ok() {
entry:
  ret void
}
define void @bad() {
entry:
  br label %missing
}
`)
		Expect(err).To(BeAssignableToTypeOf(ErrorList{}))
		Expect(err.(ErrorList)).To(HaveLen(1))
		Expect(m.Function("ok")).NotTo(BeNil())
	})
})
