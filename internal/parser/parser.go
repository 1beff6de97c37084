// Package parser implements a recursive descent parser for textual IR.
//
// GRAMMAR:
//
//	module      = function* EOF
//	function    = "define" type GLOBAL "(" [param {"," param}] ")" "{" block+ "}"
//	param       = INTTYPE LOCAL
//	block       = IDENTIFIER ":" instruction*
//	instruction = LOCAL "=" binop INTTYPE operand "," operand
//	            | [LOCAL "="] "call" type GLOBAL "(" [arg {"," arg}] ")"
//	            | "br" "label" LOCAL
//	            | "ret" ("void" | INTTYPE operand)
//	arg         = INTTYPE operand
//	operand     = LOCAL | INTEGER
//	type        = "void" | INTTYPE
//
// A %value must be defined before it is used, in text order. Branch
// targets may name blocks further down.
//
// ERROR HANDLING STRATEGY:
// Errors are reported with their position and parsing continues with the
// next line, so one run reports every problem in the file. Parse returns
// the errors together as an ErrorList.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hassan/localopt/internal/ir"
	"github.com/hassan/localopt/internal/lexer"
	"github.com/hassan/localopt/internal/symtab"
)

// ErrorList is the set of errors found in one file. Lexical errors come
// first.
type ErrorList []error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// bailout is the panic value used to abandon the current instruction or
// function after an error has been recorded.
type bailout struct{}

// Parser converts a stream of tokens into an ir.Module.
type Parser struct {
	// tokens is the lexed input, comments removed, ending with EOF
	tokens []lexer.Token

	// pos indexes the current token
	pos int

	// errors accumulates all parsing errors
	errors []error

	module      *ir.Module
	moduleScope *symtab.Scope

	// per-function state
	fn      *ir.Function
	scope   *symtab.Scope
	builder *ir.Builder
	block   *ir.BasicBlock
}

// New creates a parser for the given source. Lexical errors are recorded
// right away and reported by Parse.
func New(source, filename string) *Parser {
	tokens, errs := lexer.New(source, filename).Tokenize()
	return &Parser{
		tokens:      tokens,
		errors:      errs,
		module:      ir.NewModule(filename),
		moduleScope: symtab.NewScope(symtab.ScopeModule, nil),
	}
}

// ParseString parses source as a module named name.
func ParseString(name, source string) (*ir.Module, error) {
	return New(source, name).Parse()
}

// Parse parses the whole input. On error the module is returned anyway,
// holding whatever could be built, together with an ErrorList.
func (p *Parser) Parse() (*ir.Module, error) {
	for !p.isAtEnd() {
		if p.check(lexer.TokenDefine) {
			p.parseFunction()
			continue
		}
		p.errorAt(p.current(), "expected 'define', found %s", describe(p.current()))
		p.advance()
		p.skipFunction()
	}

	if len(p.errors) > 0 {
		return p.module, ErrorList(p.errors)
	}
	return p.module, nil
}

// parseFunction parses one function definition. An error in the header
// abandons the whole function; errors inside the body only abandon the
// current instruction.
func (p *Parser) parseFunction() {
	defer p.recoverTo(p.skipFunction)

	define := p.advance()
	retType := p.parseType()
	nameTok := p.expect(lexer.TokenGlobal, "function name")

	p.fn = ir.NewFunction(nameTok.Lexeme, retType)
	p.scope = symtab.NewScope(symtab.ScopeFunction, p.moduleScope)
	p.builder = ir.NewBuilder(p.fn)
	p.block = nil

	if _, err := p.moduleScope.Define(&symtab.Symbol{
		Name:     nameTok.Lexeme,
		Kind:     symtab.SymbolFunction,
		Pos:      nameTok.Position,
		Function: p.fn,
	}); err != nil {
		p.errors = append(p.errors, err)
	}

	p.expect(lexer.TokenLeftParen, "'('")
	if !p.check(lexer.TokenRightParen) {
		for {
			p.parseParam()
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.expect(lexer.TokenRightParen, "')'")
	p.expect(lexer.TokenLeftBrace, "'{'")

	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenDefine) && !p.isAtEnd() {
		p.parseBodyLine()
	}
	end := p.expect(lexer.TokenRightBrace, "'}'")

	p.finishBlock(end)
	if len(p.fn.Blocks) == 0 {
		p.errorAt(define, "function @%s has no body", p.fn.Name)
	}
	for _, symbol := range p.scope.Undefined() {
		p.errorAt(lexer.Token{Position: symbol.Pos}, "undefined label %%%s", symbol.Name)
	}

	p.module.AddFunction(p.fn)
}

func (p *Parser) parseParam() {
	typ := p.parseIntType()
	nameTok := p.expect(lexer.TokenLocal, "parameter name")
	param := p.fn.AddParam(nameTok.Lexeme, typ)
	if _, err := p.scope.Define(&symtab.Symbol{
		Name:  nameTok.Lexeme,
		Kind:  symtab.SymbolParameter,
		Pos:   nameTok.Position,
		Value: param,
	}); err != nil {
		p.errors = append(p.errors, err)
	}
}

// parseBodyLine parses a label or an instruction.
func (p *Parser) parseBodyLine() {
	start := p.pos
	defer p.recoverTo(func() { p.skipLine(start) })

	if p.check(lexer.TokenIdentifier) && p.peek(1).Type == lexer.TokenColon {
		p.parseLabel()
		return
	}

	switch {
	case p.block == nil:
		p.errorAt(p.current(), "instruction outside a block; expected a label")
		panic(bailout{})
	case p.block.IsTerminated():
		p.errorAt(p.current(), "instruction after the terminator of block %s", p.block.Label)
		panic(bailout{})
	}
	p.parseInstruction()
}

func (p *Parser) parseLabel() {
	labelTok := p.advance()
	p.advance() // ':'

	p.finishBlock(labelTok)

	symbol, err := p.scope.Define(&symtab.Symbol{
		Name: labelTok.Lexeme,
		Kind: symtab.SymbolBlock,
		Pos:  labelTok.Position,
	})
	if err != nil {
		p.errors = append(p.errors, err)
		panic(bailout{})
	}

	if symbol.Block == nil {
		symbol.Block = p.fn.AddBlock(labelTok.Lexeme)
	} else {
		// Created by an earlier branch; put it in text order.
		p.fn.MoveBlockToEnd(symbol.Block)
	}
	p.block = symbol.Block
	p.builder.SetInsertPoint(p.block)
}

// finishBlock checks that the block being closed at tok ends in a
// terminator.
func (p *Parser) finishBlock(tok lexer.Token) {
	if p.block != nil && !p.block.IsTerminated() {
		p.errorAt(tok, "block %s does not end with br or ret", p.block.Label)
	}
}

func (p *Parser) parseInstruction() {
	var result lexer.Token
	hasResult := false
	if p.check(lexer.TokenLocal) {
		result = p.advance()
		hasResult = true
		p.expect(lexer.TokenAssign, "'='")
	}

	opTok := p.expect(lexer.TokenIdentifier, "an instruction")
	op, ok := ir.LookupOpcode(opTok.Lexeme)
	if !ok {
		p.errorAt(opTok, "unknown opcode %q", opTok.Lexeme)
		panic(bailout{})
	}

	var inst *ir.Instruction
	switch {
	case op.IsBinary():
		if !hasResult {
			p.errorAt(opTok, "result of %s must be named", op)
			panic(bailout{})
		}
		typ := p.parseIntType()
		x := p.parseOperand(typ)
		p.expect(lexer.TokenComma, "','")
		y := p.parseOperand(typ)
		inst = p.builder.CreateBinary(op, result.Lexeme, x, y)

	case op == ir.OpCall:
		inst = p.parseCall(opTok, result, hasResult)

	case op == ir.OpBr:
		if hasResult {
			p.errorAt(result, "br has no result")
		}
		p.expect(lexer.TokenLabel, "'label'")
		inst = p.builder.CreateBr(p.branchTarget(p.expect(lexer.TokenLocal, "block name")))

	case op == ir.OpRet:
		if hasResult {
			p.errorAt(result, "ret has no result")
		}
		inst = p.parseRet(opTok)
	}

	if hasResult && inst != nil && !inst.Type().IsVoid() {
		p.defineValue(result, inst)
	}
}

func (p *Parser) parseCall(opTok, result lexer.Token, hasResult bool) *ir.Instruction {
	typ := p.parseType()
	calleeTok := p.expect(lexer.TokenGlobal, "callee")
	if callee := p.moduleScope.Lookup(calleeTok.Lexeme); callee != nil && callee.Function.ReturnType != typ {
		p.errorAt(calleeTok, "call of @%s as %s, but it returns %s", calleeTok.Lexeme, typ, callee.Function.ReturnType)
	}

	switch {
	case typ.IsVoid() && hasResult:
		p.errorAt(result, "void call cannot have a result")
	case !typ.IsVoid() && !hasResult:
		p.errorAt(opTok, "result of a %s call must be named", typ)
	}

	p.expect(lexer.TokenLeftParen, "'('")
	var args []ir.Value
	if !p.check(lexer.TokenRightParen) {
		for {
			argType := p.parseIntType()
			args = append(args, p.parseOperand(argType))
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.expect(lexer.TokenRightParen, "')'")

	return p.builder.CreateCall(typ, result.Lexeme, calleeTok.Lexeme, args...)
}

func (p *Parser) parseRet(opTok lexer.Token) *ir.Instruction {
	want := p.fn.ReturnType

	if p.match(lexer.TokenVoid) {
		if !want.IsVoid() {
			p.errorAt(opTok, "ret void in a function returning %s", want)
		}
		return p.builder.CreateRet(nil)
	}

	typTok := p.current()
	typ := p.parseIntType()
	if typ != want {
		p.errorAt(typTok, "ret %s in a function returning %s", typ, want)
	}
	return p.builder.CreateRet(p.parseOperand(typ))
}

// parseOperand parses a %value or an integer literal of type typ.
func (p *Parser) parseOperand(typ ir.IntType) ir.Value {
	tok := p.current()

	switch tok.Type {
	case lexer.TokenInteger:
		p.advance()
		c, err := ir.ParseConst(typ, tok.Lexeme)
		if err != nil {
			p.errors = append(p.errors, errors.Wrap(err, tok.Position.String()))
			panic(bailout{})
		}
		return c

	case lexer.TokenLocal:
		p.advance()
		symbol := p.lookupLocal(tok.Lexeme)
		if symbol == nil {
			p.errorAt(tok, "undefined value %%%s", tok.Lexeme)
			panic(bailout{})
		}
		if !symbol.IsValue() {
			p.errorAt(tok, "%%%s is a %s, not a value", tok.Lexeme, symbol.Kind)
			panic(bailout{})
		}
		if got := symbol.Value.Type(); got != typ {
			p.errorAt(tok, "type mismatch: %%%s is %s, want %s", tok.Lexeme, got, typ)
			panic(bailout{})
		}
		return symbol.Value

	default:
		p.errorAt(tok, "expected an operand, found %s", describe(tok))
		panic(bailout{})
	}
}

// branchTarget returns the block named by tok, creating it if this is the
// first reference.
func (p *Parser) branchTarget(tok lexer.Token) *ir.BasicBlock {
	if symbol := p.lookupLocal(tok.Lexeme); symbol != nil {
		if symbol.Kind != symtab.SymbolBlock {
			p.errorAt(tok, "%%%s is a %s, not a block", tok.Lexeme, symbol.Kind)
			panic(bailout{})
		}
		return symbol.Block
	}

	symbol := p.scope.Forward(&symtab.Symbol{
		Name:  tok.Lexeme,
		Kind:  symtab.SymbolBlock,
		Pos:   tok.Position,
		Block: p.fn.AddBlock(tok.Lexeme),
	})
	return symbol.Block
}

// lookupLocal resolves a %name. Functions live in the module scope and are
// only reachable through @names.
func (p *Parser) lookupLocal(name string) *symtab.Symbol {
	symbol := p.scope.LookupLocal(name)
	if symbol != nil {
		symbol.MarkUsed()
	}
	return symbol
}

func (p *Parser) defineValue(tok lexer.Token, inst *ir.Instruction) {
	if _, err := p.scope.Define(&symtab.Symbol{
		Name:  tok.Lexeme,
		Kind:  symtab.SymbolValue,
		Pos:   tok.Position,
		Value: inst,
	}); err != nil {
		p.errors = append(p.errors, err)
	}
}

func (p *Parser) parseType() ir.IntType {
	if p.match(lexer.TokenVoid) {
		return ir.Void
	}
	return p.parseIntType()
}

func (p *Parser) parseIntType() ir.IntType {
	tok := p.expect(lexer.TokenIntType, "an integer type")
	width, err := strconv.ParseUint(tok.Lexeme[1:], 10, 16)
	typ := ir.Int(uint(width))
	if err != nil || !typ.Valid() {
		p.errorAt(tok, "unsupported integer type %s (widths 1 to %d)", tok.Lexeme, ir.MaxIntWidth)
		panic(bailout{})
	}
	return typ
}

// Helper methods

func (p *Parser) current() lexer.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Type != lexer.TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) check(tokenType lexer.TokenType) bool {
	return p.current().Type == tokenType
}

func (p *Parser) match(tokenType lexer.TokenType) bool {
	if p.check(tokenType) {
		p.advance()
		return true
	}
	return false
}

// expect consumes a token of the given type or records an error and bails
// out.
func (p *Parser) expect(tokenType lexer.TokenType, what string) lexer.Token {
	if p.check(tokenType) {
		return p.advance()
	}
	p.errorAt(p.current(), "expected %s, found %s", what, describe(p.current()))
	panic(bailout{})
}

func (p *Parser) isAtEnd() bool {
	return p.check(lexer.TokenEOF)
}

// errorAt records an error at tok. Invalid tokens were already reported by
// the lexer.
func (p *Parser) errorAt(tok lexer.Token, format string, args ...interface{}) {
	if tok.Type == lexer.TokenInvalid {
		return
	}
	p.errors = append(p.errors, errors.Errorf("%s: %s", tok.Position, fmt.Sprintf(format, args...)))
}

// recoverTo turns a bailout into a call to skip. Other panics propagate.
func (p *Parser) recoverTo(skip func()) {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(bailout); !ok {
		panic(r)
	}
	skip()
}

// skipLine drops the rest of the line where the failed instruction ended,
// or the line it started on if nothing was consumed.
func (p *Parser) skipLine(start int) {
	line := p.tokens[start].Position.Line
	if p.pos > start {
		line = p.tokens[p.pos-1].Position.Line
	}
	for !p.isAtEnd() && !p.check(lexer.TokenRightBrace) && p.current().Position.Line <= line {
		p.advance()
	}
}

// skipFunction drops tokens up to the next "define".
func (p *Parser) skipFunction() {
	for !p.isAtEnd() && !p.check(lexer.TokenDefine) {
		p.advance()
	}
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokenEOF:
		return "end of file"
	case lexer.TokenLocal:
		return "%" + tok.Lexeme
	case lexer.TokenGlobal:
		return "@" + tok.Lexeme
	default:
		return strconv.Quote(tok.Lexeme)
	}
}
