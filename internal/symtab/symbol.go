// Package symtab tracks the names defined while parsing textual IR.
//
// SCOPES:
// A module scope holds @functions. Each function gets a child scope holding
// its parameters, instruction results and block labels, which share one
// namespace: "%x" may name a value or a block but not both.
package symtab

import (
	"github.com/hassan/localopt/internal/ir"
	"github.com/hassan/localopt/internal/lexer"
)

// SymbolKind represents what a name refers to.
type SymbolKind int

const (
	// SymbolFunction is an @name defined in the module.
	SymbolFunction SymbolKind = iota

	// SymbolParameter is a function parameter.
	SymbolParameter

	// SymbolValue is the result of an instruction.
	SymbolValue

	// SymbolBlock is a basic block label.
	SymbolBlock
)

func (sk SymbolKind) String() string {
	switch sk {
	case SymbolFunction:
		return "function"
	case SymbolParameter:
		return "parameter"
	case SymbolValue:
		return "value"
	case SymbolBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Symbol is a named entity in a scope.
type Symbol struct {
	// Name is the name without its sigil.
	Name string

	// Kind says which of the fields below is set.
	Kind SymbolKind

	// Pos is where the name was defined, or first referenced while it is
	// still a forward reference.
	Pos lexer.Position

	// Scope is the scope the symbol lives in.
	Scope *Scope

	// Defined is false for a block that has been branched to but whose
	// label has not appeared yet.
	Defined bool

	// Used is set by Lookup.
	Used bool

	// Value is the parameter or instruction for value symbols.
	Value ir.Value

	// Block is the basic block for block symbols.
	Block *ir.BasicBlock

	// Function is the function for function symbols.
	Function *ir.Function
}

// String returns "kind name at position".
func (s *Symbol) String() string {
	return s.Kind.String() + " " + s.Name + " at " + s.Pos.String()
}

// IsValue reports whether the symbol can be used as an operand.
func (s *Symbol) IsValue() bool {
	return s.Kind == SymbolParameter || s.Kind == SymbolValue
}

// IsGlobal returns true if the symbol is defined at module level.
func (s *Symbol) IsGlobal() bool {
	return s.Scope != nil && s.Scope.IsGlobal()
}

// MarkUsed marks this symbol as used.
func (s *Symbol) MarkUsed() {
	s.Used = true
}
