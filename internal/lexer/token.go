package lexer

import "strconv"

// TokenType represents the type of a token.
type TokenType int

// Token type enumeration.
//
// ORGANIZATION:
// 1. Special tokens (EOF, Invalid, Comment)
// 2. Literals and names
// 3. Keywords
// 4. Punctuation
const (
	// Special tokens

	// TokenEOF marks the end of the input. It carries a position, which
	// "unexpected end of file" errors point at.
	TokenEOF TokenType = iota

	// TokenInvalid represents a lexical error. NextToken returns it together
	// with the error so the parser can report it and keep going.
	TokenInvalid

	// TokenComment is a ';' comment running to the end of the line.
	TokenComment

	// Literals and names

	// TokenInteger is a decimal integer literal, optionally negative.
	// The lexeme is kept as text; its width is only known once the parser
	// has seen the instruction's type.
	TokenInteger

	// TokenLocal is a %name: a parameter, an instruction result or a block
	// label used as a branch target. The lexeme excludes the '%'.
	TokenLocal

	// TokenGlobal is an @name: a function. The lexeme excludes the '@'.
	TokenGlobal

	// TokenIdentifier is a bare word: an opcode mnemonic or a block label.
	TokenIdentifier

	// Keywords

	TokenDefine  // define
	TokenLabel   // label
	TokenVoid    // void
	TokenIntType // i1, i8, i32, ...

	// Punctuation

	TokenAssign     // =
	TokenComma      // ,
	TokenColon      // :
	TokenLeftParen  // (
	TokenRightParen // )
	TokenLeftBrace  // {
	TokenRightBrace // }
)

var tokenNames = [...]string{
	TokenEOF:        "EOF",
	TokenInvalid:    "INVALID",
	TokenComment:    "COMMENT",
	TokenInteger:    "INTEGER",
	TokenLocal:      "LOCAL",
	TokenGlobal:     "GLOBAL",
	TokenIdentifier: "IDENTIFIER",
	TokenDefine:     "DEFINE",
	TokenLabel:      "LABEL",
	TokenVoid:       "VOID",
	TokenIntType:    "INTTYPE",
	TokenAssign:     "ASSIGN",
	TokenComma:      "COMMA",
	TokenColon:      "COLON",
	TokenLeftParen:  "LPAREN",
	TokenRightParen: "RPAREN",
	TokenLeftBrace:  "LBRACE",
	TokenRightBrace: "RBRACE",
}

// String returns the string representation of a token type.
func (tt TokenType) String() string {
	if tt < 0 || int(tt) >= len(tokenNames) {
		return "TokenType(" + strconv.Itoa(int(tt)) + ")"
	}
	return tokenNames[tt]
}

// keywords maps reserved words to their token types. Integer types are
// handled separately by LookupKeyword because their set is open (i1..i256).
var keywords = map[string]TokenType{
	"define": TokenDefine,
	"label":  TokenLabel,
	"void":   TokenVoid,
}

// LookupKeyword returns the token type for a bare word: a keyword, an
// integer type such as "i32", or TokenIdentifier.
func LookupKeyword(word string) TokenType {
	if tt, ok := keywords[word]; ok {
		return tt
	}
	if isIntTypeName(word) {
		return TokenIntType
	}
	return TokenIdentifier
}

// isIntTypeName reports whether word is 'i' followed by a decimal width
// without leading zeros.
func isIntTypeName(word string) bool {
	if len(word) < 2 || word[0] != 'i' || word[1] == '0' {
		return false
	}
	for _, ch := range word[1:] {
		if !isDigit(ch) {
			return false
		}
	}
	return true
}

// Token represents a single lexical token.
type Token struct {
	// Type is the token type.
	Type TokenType

	// Lexeme is the token text. For %local and @global names it is the
	// name without its sigil.
	Lexeme string

	// Position is where this token starts in the source.
	Position Position

	// Length is the length of the token in bytes, sigil included.
	Length int
}

// String returns "TYPE(lexeme) at position", for debugging and error
// messages.
func (t Token) String() string {
	return t.Type.String() + "(" + t.Lexeme + ") at " + t.Position.String()
}

// Span returns the source span covered by this token. Tokens never span
// lines.
func (t Token) Span() Span {
	end := t.Position
	end.Offset += t.Length
	end.Column += t.Length
	return Span{Start: t.Position, End: end}
}
