package dsl

import (
	"strings"
	"unicode/utf8"

	"github.com/ccbrown/gqlcost/graphql/token"
)

// lexer tokenizes everything in a cost model source *except* predicate
// literals, which lexer.skipIgnored stops in front of and which the
// parser extracts as raw bytes for the vendored graphql/parser to handle.
type lexer struct {
	src    []byte
	offset int
	line   int
	column int

	token       tokenKind
	tokenValue  string
	tokenLine   int
	tokenColumn int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, line: 1, column: 1}
}

func (l *lexer) position() token.Position {
	return token.Position{Line: l.line, Column: l.column}
}

func (l *lexer) done() bool {
	return l.offset >= len(l.src)
}

func (l *lexer) peekRune() rune {
	if l.done() {
		return -1
	}
	r, _ := utf8.DecodeRune(l.src[l.offset:])
	return r
}

func (l *lexer) peekRuneAt(delta int) rune {
	o := l.offset + delta
	if o >= len(l.src) {
		return -1
	}
	r, _ := utf8.DecodeRune(l.src[o:])
	return r
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRune(l.src[l.offset:])
	l.offset += size
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

// skipIgnored consumes whitespace and "#"-to-end-of-line comments. It is
// exported to the parser so it can locate the start of a predicate literal
// without tokenizing it.
func (l *lexer) skipIgnored() {
	for !l.done() {
		switch r := l.peekRune(); {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '#':
			for !l.done() && l.peekRune() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func isNameStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isNameContinue(r rune) bool {
	return isNameStart(r) || (r >= '0' && r <= '9')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// next scans the next token, storing it for peek/consume in the parser.
func (l *lexer) next() (tokenKind, string) {
	l.skipIgnored()
	l.tokenLine, l.tokenColumn = l.line, l.column

	if l.done() {
		l.token, l.tokenValue = tokenEOF, ""
		return l.token, l.tokenValue
	}

	switch r := l.peekRune(); {
	case r == ';':
		l.advance()
		l.token = tokenSemicolon
	case r == '(':
		l.advance()
		l.token = tokenLParen
	case r == ')':
		l.advance()
		l.token = tokenRParen
	case r == '+':
		l.advance()
		l.token = tokenPlus
	case r == '-':
		l.advance()
		l.token = tokenMinus
	case r == '*':
		l.advance()
		l.token = tokenStar
	case r == '/':
		l.advance()
		l.token = tokenSlash
	case r == '=':
		l.advance()
		if l.peekRune() == '=' {
			l.advance()
			l.token = tokenEq
		} else if l.peekRune() == '>' {
			l.advance()
			l.token = tokenArrow
		} else {
			l.token = tokenInvalid
		}
	case r == '!':
		l.advance()
		if l.peekRune() == '=' {
			l.advance()
			l.token = tokenNe
		} else {
			l.token = tokenNot
		}
	case r == '<':
		l.advance()
		if l.peekRune() == '=' {
			l.advance()
			l.token = tokenLe
		} else {
			l.token = tokenLt
		}
	case r == '>':
		l.advance()
		if l.peekRune() == '=' {
			l.advance()
			l.token = tokenGe
		} else {
			l.token = tokenGt
		}
	case r == '&' && l.peekRuneAt(1) == '&':
		l.advance()
		l.advance()
		l.token = tokenAnd
	case r == '|' && l.peekRuneAt(1) == '|':
		l.advance()
		l.advance()
		l.token = tokenOr
	case r == '$':
		l.advance()
		start := l.offset
		if !isNameStart(l.peekRune()) {
			l.token = tokenInvalid
			break
		}
		for !l.done() && isNameContinue(l.peekRune()) {
			l.advance()
		}
		l.tokenValue = string(l.src[start:l.offset])
		l.token = tokenCapture
		return l.token, l.tokenValue
	case r == '"':
		l.tokenValue = l.scanString()
		l.token = tokenString
		return l.token, l.tokenValue
	case isDigit(r):
		start := l.offset
		l.scanNumber()
		l.tokenValue = string(l.src[start:l.offset])
		l.token = tokenNumber
		return l.token, l.tokenValue
	case isNameStart(r):
		start := l.offset
		for !l.done() && isNameContinue(l.peekRune()) {
			l.advance()
		}
		word := string(l.src[start:l.offset])
		switch word {
		case "when":
			l.token = tokenWhen
		case "default":
			l.token = tokenDefault
		case "true":
			l.token = tokenTrue
		case "false":
			l.token = tokenFalse
		default:
			l.token = tokenInvalid
			l.tokenValue = word
			return l.token, l.tokenValue
		}
	default:
		l.advance()
		l.token = tokenInvalid
	}

	l.tokenValue = ""
	return l.token, l.tokenValue
}

func (l *lexer) scanNumber() {
	for !l.done() && isDigit(l.peekRune()) {
		l.advance()
	}
	if l.peekRune() == '.' && isDigit(l.peekRuneAt(1)) {
		l.advance()
		for !l.done() && isDigit(l.peekRune()) {
			l.advance()
		}
	}
	if r := l.peekRune(); r == 'e' || r == 'E' {
		save := l.offset
		l.advance()
		if r := l.peekRune(); r == '+' || r == '-' {
			l.advance()
		}
		if isDigit(l.peekRune()) {
			for !l.done() && isDigit(l.peekRune()) {
				l.advance()
			}
		} else {
			l.offset = save
		}
	}
}

func (l *lexer) scanString() string {
	l.advance() // opening quote
	var b strings.Builder
	for !l.done() {
		r := l.peekRune()
		if r == '"' {
			l.advance()
			return b.String()
		}
		if r == '\\' {
			l.advance()
			switch e := l.peekRune(); e {
			case '"', '\\':
				b.WriteRune(e)
				l.advance()
			case 'n':
				b.WriteRune('\n')
				l.advance()
			case 't':
				b.WriteRune('\t')
				l.advance()
			default:
				b.WriteRune(e)
				l.advance()
			}
			continue
		}
		if r == '\n' {
			break
		}
		b.WriteRune(r)
		l.advance()
	}
	return b.String()
}
