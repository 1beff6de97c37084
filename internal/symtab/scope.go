package symtab

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// ScopeKind represents the kind of a scope.
type ScopeKind int

const (
	// ScopeModule holds the functions of a module.
	ScopeModule ScopeKind = iota

	// ScopeFunction holds the %names of one function.
	ScopeFunction
)

func (sk ScopeKind) String() string {
	switch sk {
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Scope maps names to symbols. Lookups fall back to the parent scope.
type Scope struct {
	// Kind is the type of scope
	Kind ScopeKind

	// Parent is the enclosing scope (nil for the module scope)
	Parent *Scope

	// Symbols maps names to symbols in this scope
	Symbols map[string]*Symbol
}

// NewScope creates a new scope nested in parent.
func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{
		Kind:    kind,
		Parent:  parent,
		Symbols: make(map[string]*Symbol),
	}
}

// Define adds symbol to this scope and returns the symbol now bound to the
// name.
//
// Defining a block whose name is pending as a forward reference completes
// that reference: the existing symbol is marked defined, moved to the
// definition's position and returned, so the block created for the branch
// is reused. Any other clash is a redefinition error.
func (s *Scope) Define(symbol *Symbol) (*Symbol, error) {
	existing, ok := s.Symbols[symbol.Name]
	if !ok {
		s.Symbols[symbol.Name] = symbol
		symbol.Scope = s
		symbol.Defined = true
		return symbol, nil
	}

	if !existing.Defined && existing.Kind == SymbolBlock && symbol.Kind == SymbolBlock {
		existing.Defined = true
		existing.Pos = symbol.Pos
		return existing, nil
	}

	return nil, errors.Errorf("%s: %s redefined; previous definition as %s at %s",
		symbol.Pos, symbol.Name, existing.Kind, existing.Pos)
}

// Forward records a reference to a name that is not defined yet. Only
// blocks can be referenced before they are defined.
func (s *Scope) Forward(symbol *Symbol) *Symbol {
	symbol.Scope = s
	symbol.Defined = false
	symbol.Used = true
	s.Symbols[symbol.Name] = symbol
	return symbol
}

// Lookup finds a symbol by name, searching this scope and then its
// parents. Found symbols are marked used. Returns nil if not found.
func (s *Scope) Lookup(name string) *Symbol {
	if symbol, ok := s.Symbols[name]; ok {
		symbol.MarkUsed()
		return symbol
	}
	if s.Parent != nil {
		return s.Parent.Lookup(name)
	}
	return nil
}

// LookupLocal finds a symbol only in this scope, without marking it used.
func (s *Scope) LookupLocal(name string) *Symbol {
	return s.Symbols[name]
}

// IsGlobal returns true if this is the module scope.
func (s *Scope) IsGlobal() bool {
	return s.Kind == ScopeModule
}

// Undefined returns the forward references that were never defined,
// ordered by position.
func (s *Scope) Undefined() []*Symbol {
	var undefined []*Symbol
	for _, symbol := range s.Symbols {
		if !symbol.Defined {
			undefined = append(undefined, symbol)
		}
	}
	sortByPosition(undefined)
	return undefined
}

// String returns a human-readable representation of the scope.
func (s *Scope) String() string {
	return fmt.Sprintf("%s scope (%d symbols)", s.Kind, len(s.Symbols))
}

func sortByPosition(symbols []*Symbol) {
	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].Pos.Before(symbols[j].Pos)
	})
}
