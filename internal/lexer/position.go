// Package lexer splits textual IR into tokens for the parser.
package lexer

import "strconv"

// Position represents a location in an IR source file.
//
// Position is a value type: it is small, immutable once created, and the
// zero value stands for "no position".
type Position struct {
	// Filename is the name of the source file.
	Filename string

	// Line is the 1-based line number.
	Line int

	// Column is the 1-based column, counted in runes.
	Column int

	// Offset is the 0-based byte offset from the start of the file.
	Offset int
}

// String returns the position as "filename:line:column", the form editors
// and CI tools turn into links.
func (p Position) String() string {
	return p.Filename + ":" + strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// IsValid returns true if the position has a line number.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Before returns true if this position comes before the other position.
// Positions are compared by offset.
func (p Position) Before(other Position) bool {
	return p.Offset < other.Offset
}

// Span is the range of source covered by a token, from Start up to but not
// including End.
type Span struct {
	Start Position
	End   Position
}

// String returns "file:line:col-col" for single-line spans and
// "file:line:col-line:col" otherwise.
func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		return s.Start.String() + "-" + strconv.Itoa(s.End.Column)
	}
	return s.Start.String() + "-" + strconv.Itoa(s.End.Line) + ":" + strconv.Itoa(s.End.Column)
}

// Length returns the number of bytes covered by this span.
func (s Span) Length() int {
	if s.End.Before(s.Start) {
		return 0
	}
	return s.End.Offset - s.Start.Offset
}
