package dsl

import (
	"unicode/utf8"

	"github.com/ccbrown/gqlcost/graphql/ast"
	"github.com/ccbrown/gqlcost/graphql/parser"
	"github.com/ccbrown/gqlcost/graphql/token"
)

// peekIsDefaultKeyword reports whether, after skipping whitespace and
// comments, the source at the lexer's current position is the bare keyword
// "default" (not a prefix of some longer identifier).
func (l *lexer) peekIsDefaultKeyword() bool {
	l.skipIgnored()
	const kw = "default"
	if l.offset+len(kw) > len(l.src) {
		return false
	}
	if string(l.src[l.offset:l.offset+len(kw)]) != kw {
		return false
	}
	if after := l.offset + len(kw); after < len(l.src) {
		r, _ := utf8.DecodeRune(l.src[after:])
		if isNameContinue(r) {
			return false
		}
	}
	return true
}

// consumeDefaultKeyword advances past a keyword already confirmed by
// peekIsDefaultKeyword.
func (l *lexer) consumeDefaultKeyword() {
	for i := 0; i < len("default"); i++ {
		l.advance()
	}
}

// consumePredicateLiteral scans forward from the lexer's current position to
// find the raw text of a predicate's GraphQL selection literal: an optional
// operation-type keyword and then a brace-balanced selection set. It never
// tokenizes the literal itself -- that's the vendored graphql/parser's job --
// it only finds where the literal ends, taking care not to be fooled by
// braces inside string values or comments.
func (l *lexer) consumePredicateLiteral() ([]byte, token.Position, *Error) {
	l.skipIgnored()
	start := l.offset
	startPos := l.position()

	depth := 0
	foundOpen := false
	for {
		if l.done() {
			if !foundOpen {
				return nil, startPos, &Error{message: "expected a predicate selection set", Line: startPos.Line, Column: startPos.Column}
			}
			return nil, startPos, &Error{message: "unterminated predicate selection set", Line: l.line, Column: l.column}
		}
		switch r := l.peekRune(); {
		case r == '"':
			l.skipGraphQLString()
		case r == '#':
			for !l.done() && l.peekRune() != '\n' {
				l.advance()
			}
		case r == '{':
			l.advance()
			depth++
			foundOpen = true
		case r == '}':
			l.advance()
			depth--
			if depth == 0 {
				return l.src[start:l.offset], startPos, nil
			}
			if depth < 0 {
				return nil, startPos, &Error{message: `unexpected "}"`, Line: l.line, Column: l.column}
			}
		case !foundOpen && (r == ';' || r == ')'):
			// We've wandered past the predicate without ever finding its
			// selection set (e.g. a bare operation-type keyword with nothing
			// following it).
			return nil, startPos, &Error{message: "expected a predicate selection set", Line: startPos.Line, Column: startPos.Column}
		default:
			l.advance()
		}
	}
}

// skipGraphQLString advances past a GraphQL string or block string value
// (the lexer's cursor is left just past the closing quote(s)), without
// decoding escapes -- it only needs to avoid miscounting braces that happen
// to appear inside a quoted value.
func (l *lexer) skipGraphQLString() {
	l.advance() // opening quote
	isBlock := false
	if l.peekRune() == '"' && l.peekRuneAt(1) == '"' {
		l.advance()
		l.advance()
		isBlock = true
	}
	for !l.done() {
		switch r := l.peekRune(); {
		case !isBlock && r == '\\':
			l.advance()
			if !l.done() {
				l.advance()
			}
		case r == '"':
			if isBlock {
				if l.peekRuneAt(1) == '"' && l.peekRuneAt(2) == '"' {
					l.advance()
					l.advance()
					l.advance()
					return
				}
				l.advance()
			} else {
				l.advance()
				return
			}
		case !isBlock && r == '\n':
			return // unterminated; the real parser will report it properly
		default:
			l.advance()
		}
	}
}

// parsePredicateLiteral extracts and parses a predicate's GraphQL selection
// literal, remapping the vendored parser's positions (which are relative to
// the extracted slice) back to positions within the full model source.
func parsePredicateLiteral(l *lexer) (*ast.SelectionSet, *Error) {
	text, startPos, err := l.consumePredicateLiteral()
	if err != nil {
		return nil, err
	}

	doc, errs := parser.ParseDocument(text)
	if len(errs) > 0 {
		e := errs[0]
		return nil, remapError(e.Error(), e.Line, e.Column, startPos)
	}
	if len(doc.Definitions) != 1 {
		return nil, &Error{message: "predicate must be a single GraphQL selection literal", Line: startPos.Line, Column: startPos.Column}
	}
	op, ok := doc.Definitions[0].(*ast.OperationDefinition)
	if !ok {
		return nil, &Error{message: "predicate must be a selection, not a fragment definition", Line: startPos.Line, Column: startPos.Column}
	}
	return op.SelectionSet, nil
}

func remapError(message string, line, column int, base token.Position) *Error {
	if line <= 1 {
		return &Error{message: message, Line: base.Line, Column: base.Column + column - 1}
	}
	return &Error{message: message, Line: base.Line + line - 1, Column: column}
}

// collectCaptureNames walks a predicate's selection set and counts how many
// positions bind each capture name, so the caller can reject predicates that
// statically reuse a name.
func collectCaptureNames(sel *ast.SelectionSet, counts map[string]int) {
	if sel == nil {
		return
	}
	for _, s := range sel.Selections {
		field, ok := s.(*ast.Field)
		if !ok {
			continue
		}
		for _, a := range field.Arguments {
			collectCaptureNamesFromValue(a.Value, counts)
		}
		collectCaptureNames(field.SelectionSet, counts)
	}
}

func collectCaptureNamesFromValue(v ast.Value, counts map[string]int) {
	switch t := v.(type) {
	case *ast.Variable:
		counts[t.Name.Name]++
	case *ast.ListValue:
		for _, e := range t.Values {
			collectCaptureNamesFromValue(e, counts)
		}
	case *ast.ObjectValue:
		for _, f := range t.Fields {
			collectCaptureNamesFromValue(f.Value, counts)
		}
	}
}
