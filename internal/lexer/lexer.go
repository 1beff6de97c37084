package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Lexer converts IR source text into a stream of tokens.
//
// The lexer only recognizes words, names, integers and punctuation. It does
// not know which words are opcodes, and it does not check that an integer
// fits a type: both need context only the parser has.
//
// EXAMPLE:
//
//	%a = mul i32 %p, -8   ; comment
//
// lexes as LOCAL(a) ASSIGN IDENTIFIER(mul) INTTYPE(i32) LOCAL(p) COMMA
// INTEGER(-8) COMMENT.
type Lexer struct {
	// source is the complete source being lexed.
	source string

	// filename is the name of the source file (for error reporting).
	filename string

	// start is the byte offset of the token being scanned.
	start int

	// current is the byte offset we're currently examining.
	current int

	// line is the current line number (1-based).
	line int

	// lineStart is the byte offset where the current line started; columns
	// are computed from it.
	lineStart int
}

// New creates a new Lexer for the given source code.
func New(source, filename string) *Lexer {
	return &Lexer{
		source:   source,
		filename: filename,
		line:     1,
	}
}

// NextToken returns the next token from the source. At the end of input it
// keeps returning TokenEOF.
//
// On a lexical error it returns a TokenInvalid token (with the position of
// the offending text) and an error; the lexer has already moved past the
// bad input, so the caller may continue.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()
	l.start = l.current

	if l.isAtEnd() {
		return l.makeToken(TokenEOF, ""), nil
	}

	ch := l.advance()

	switch {
	case isLetter(ch):
		return l.scanWord(), nil
	case isDigit(ch):
		return l.scanInteger()
	}

	switch ch {
	case '=':
		return l.makeToken(TokenAssign, "="), nil
	case ',':
		return l.makeToken(TokenComma, ","), nil
	case ':':
		return l.makeToken(TokenColon, ":"), nil
	case '(':
		return l.makeToken(TokenLeftParen, "("), nil
	case ')':
		return l.makeToken(TokenRightParen, ")"), nil
	case '{':
		return l.makeToken(TokenLeftBrace, "{"), nil
	case '}':
		return l.makeToken(TokenRightBrace, "}"), nil
	case ';':
		return l.scanComment(), nil
	case '%':
		return l.scanName(TokenLocal, "%")
	case '@':
		return l.scanName(TokenGlobal, "@")
	case '-':
		if isDigit(l.peek()) {
			return l.scanInteger()
		}
		return l.makeToken(TokenInvalid, "-"), l.error("'-' must be followed by a digit")
	default:
		return l.makeToken(TokenInvalid, string(ch)), l.error(fmt.Sprintf("unexpected character: %q", ch))
	}
}

// Tokenize lexes the whole source, dropping comments. Lexical errors are
// collected; the returned slice always ends with TokenEOF.
func (l *Lexer) Tokenize() ([]Token, []error) {
	var (
		tokens []Token
		errs   []error
	)
	for {
		tok, err := l.NextToken()
		if err != nil {
			errs = append(errs, err)
		}
		if tok.Type == TokenComment {
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, errs
		}
	}
}

// advance reads and returns the next character.
func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch, size := utf8.DecodeRuneInString(l.source[l.current:])
	l.current += size
	return ch
}

// peek returns the current character without advancing, or 0 at the end.
func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	ch, _ := utf8.DecodeRuneInString(l.source[l.current:])
	return ch
}

// isAtEnd returns true if we've consumed all the source code.
func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// skipWhitespace skips blanks and tracks newlines for positions.
func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		switch l.peek() {
		case ' ', '\r', '\t':
			l.advance()
		case '\n':
			l.advance()
			l.line++
			l.lineStart = l.current
		default:
			return
		}
	}
}

// scanWord scans a keyword, an integer type, an opcode or a label.
func (l *Lexer) scanWord() Token {
	for isNameChar(l.peek()) {
		l.advance()
	}
	text := l.source[l.start:l.current]
	return l.makeToken(LookupKeyword(text), text)
}

// scanName scans the name after a '%' or '@' sigil. Names may start with a
// digit ("%0") and may contain '.', as in "%a.shl".
func (l *Lexer) scanName(tokenType TokenType, sigil string) (Token, error) {
	for isNameChar(l.peek()) {
		l.advance()
	}
	name := l.source[l.start+1 : l.current]
	if name == "" {
		return l.makeToken(TokenInvalid, sigil), l.error(fmt.Sprintf("expected a name after %q", sigil))
	}
	return l.makeToken(tokenType, name), nil
}

// scanInteger scans a decimal literal; the first digit or '-' has been
// consumed. A literal running into letters ("12x") is an error.
func (l *Lexer) scanInteger() (Token, error) {
	for isDigit(l.peek()) {
		l.advance()
	}
	if isNameChar(l.peek()) {
		for isNameChar(l.peek()) {
			l.advance()
		}
		text := l.source[l.start:l.current]
		return l.makeToken(TokenInvalid, text), l.error(fmt.Sprintf("invalid integer literal %q", text))
	}
	return l.makeToken(TokenInteger, l.source[l.start:l.current]), nil
}

// scanComment consumes a ';' comment up to the end of the line.
func (l *Lexer) scanComment() Token {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	return l.makeToken(TokenComment, l.source[l.start:l.current])
}

// makeToken creates a token with the current position information.
func (l *Lexer) makeToken(tokenType TokenType, lexeme string) Token {
	return Token{
		Type:     tokenType,
		Lexeme:   lexeme,
		Position: l.currentPosition(),
		Length:   l.current - l.start,
	}
}

// currentPosition returns the position of the token being scanned.
func (l *Lexer) currentPosition() Position {
	return Position{
		Filename: l.filename,
		Line:     l.line,
		Column:   utf8.RuneCountInString(l.source[l.lineStart:l.start]) + 1,
		Offset:   l.start,
	}
}

// error creates an error with the current position.
func (l *Lexer) error(message string) error {
	return errors.Errorf("%s: %s", l.currentPosition(), message)
}

// isLetter returns true for ASCII letters and underscore.
func isLetter(ch rune) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

// isDigit returns true if the rune is a decimal digit (0-9).
func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// isNameChar returns true for characters allowed after the first one of a
// word or name.
func isNameChar(ch rune) bool {
	return isLetter(ch) || isDigit(ch) || ch == '.' || ch == '$'
}
