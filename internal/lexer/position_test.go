package lexer

import (
	"testing"
)

func TestPosition_String(t *testing.T) {
	tests := []struct {
		name     string
		pos      Position
		expected string
	}{
		{
			name:     "valid position",
			pos:      Position{Filename: "scale.ir", Line: 6, Column: 15, Offset: 120},
			expected: "scale.ir:6:15",
		},
		{
			name:     "zero position",
			pos:      Position{},
			expected: ":0:0",
		},
		{
			name:     "stdin",
			pos:      Position{Filename: "stdin", Line: 1, Column: 1},
			expected: "stdin:1:1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.pos.String(); result != tt.expected {
				t.Errorf("Position.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestPosition_IsValid(t *testing.T) {
	if (Position{}).IsValid() {
		t.Error("zero position should be invalid")
	}
	if !(Position{Line: 1, Column: 1}).IsValid() {
		t.Error("line 1 should be valid")
	}
}

func TestPosition_Before(t *testing.T) {
	a := Position{Line: 1, Column: 5, Offset: 4}
	b := Position{Line: 2, Column: 1, Offset: 10}

	if !a.Before(b) {
		t.Error("a should come before b")
	}
	if b.Before(a) || a.Before(a) {
		t.Error("Before must be strict")
	}
}

func TestSpan(t *testing.T) {
	tests := []struct {
		name   string
		span   Span
		str    string
		length int
	}{
		{
			name: "single line",
			span: Span{
				Start: Position{Filename: "f.ir", Line: 3, Column: 3, Offset: 30},
				End:   Position{Filename: "f.ir", Line: 3, Column: 5, Offset: 32},
			},
			str:    "f.ir:3:3-5",
			length: 2,
		},
		{
			name: "multi line",
			span: Span{
				Start: Position{Filename: "f.ir", Line: 1, Column: 20, Offset: 19},
				End:   Position{Filename: "f.ir", Line: 2, Column: 2, Offset: 24},
			},
			str:    "f.ir:1:20-2:2",
			length: 5,
		},
		{
			name: "reversed",
			span: Span{
				Start: Position{Line: 2, Column: 1, Offset: 10},
				End:   Position{Line: 1, Column: 1, Offset: 0},
			},
			str:    ":2:1-1:1",
			length: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.span.String(); got != tt.str {
				t.Errorf("Span.String() = %q, want %q", got, tt.str)
			}
			if got := tt.span.Length(); got != tt.length {
				t.Errorf("Span.Length() = %d, want %d", got, tt.length)
			}
		})
	}
}

func TestNextToken_Span(t *testing.T) {
	tok, err := New("  %a.shl = shl i32 %p, 3", "f.ir").NextToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	span := tok.Span()
	if got := span.String(); got != "f.ir:1:3-9" {
		t.Errorf("Span() = %s, want f.ir:1:3-9", got)
	}
	if span.Length() != len("%a.shl") {
		t.Errorf("Span().Length() = %d, want %d", span.Length(), len("%a.shl"))
	}
}
