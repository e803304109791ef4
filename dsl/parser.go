// Package dsl compiles cost model source into a sequence of statements, each
// pairing a GraphQL-selection-shaped predicate (or the literal keyword
// "default") with an optional "when" guard and a cost expression. It hands
// predicate literals straight to the vendored graphql/parser rather than
// reimplementing GraphQL grammar; only the arithmetic/boolean expression
// sublanguage is tokenized here.
package dsl

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/go-multierror"

	"github.com/ccbrown/gqlcost/expr"
	"github.com/ccbrown/gqlcost/graphql/ast"
	"github.com/ccbrown/gqlcost/graphql/token"
	"github.com/ccbrown/gqlcost/number"
)

// Error is a single DSL compile error, positioned within the model source.
type Error struct {
	message string
	Line    int
	Column  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.message)
}

// Statement is one compiled `predicate (when expr)? => expr;` clause, in
// source order.
type Statement struct {
	// Predicate is the single top-level selection the matcher tries against
	// each top-level query selection, or nil if IsDefault.
	Predicate ast.Selection
	IsDefault bool
	// When is nil if the statement has no guard.
	When expr.Expr
	Cost expr.Expr
}

// Compile parses a complete cost model source into its statements. Every
// error found across the whole source is collected and returned together as
// a *multierror.Error, rather than stopping at the first one found.
func Compile(src string) ([]*Statement, error) {
	p := &parser{lex: newLexer([]byte(src))}
	p.advance()

	var statements []*Statement
	var errs error

	for p.tok != tokenEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			errs = multierror.Append(errs, err)
			p.synchronize()
			continue
		}
		statements = append(statements, stmt)

		if p.tok == tokenSemicolon {
			p.advance()
		} else if p.tok != tokenEOF {
			errs = multierror.Append(errs, p.errorf(`expected ";" between statements`))
			p.synchronize()
		}
	}

	if errs != nil {
		return nil, errs
	}
	return statements, nil
}

type parser struct {
	lex        *lexer
	tok        tokenKind
	tokVal     string
	tokLine    int
	tokColumn  int
	// tokStart is the lexer state from just before tok was scanned, so a
	// statement can re-read its predicate literal from the first byte.
	tokStart lexer
}

func (p *parser) advance() {
	p.tokStart = *p.lex
	p.tok, p.tokVal = p.lex.next()
	p.tokLine, p.tokColumn = p.lex.tokenLine, p.lex.tokenColumn
}

func (p *parser) position() token.Position {
	return token.Position{Line: p.tokLine, Column: p.tokColumn}
}

func (p *parser) errorf(format string, args ...interface{}) *Error {
	return &Error{message: fmt.Sprintf(format, args...), Line: p.tokLine, Column: p.tokColumn}
}

// synchronize discards tokens up through the next statement separator (or
// EOF) so Compile can keep looking for more errors after one statement fails.
func (p *parser) synchronize() {
	for p.tok != tokenEOF && p.tok != tokenSemicolon {
		p.advance()
	}
	if p.tok == tokenSemicolon {
		p.advance()
	}
}

func (p *parser) parseStatement() (*Statement, error) {
	stmt := &Statement{}

	// The lookahead token has already been scanned; rewind to its start.
	*p.lex = p.tokStart
	if p.lex.peekIsDefaultKeyword() {
		p.lex.consumeDefaultKeyword()
		p.advance()
		stmt.IsDefault = true
	} else {
		sel, err := parsePredicateLiteral(p.lex)
		if err != nil {
			return nil, err
		}
		if len(sel.Selections) != 1 {
			return nil, p.errorf("predicate must contain exactly one top-level selection")
		}
		stmt.Predicate = sel.Selections[0]

		counts := map[string]int{}
		collectCaptureNames(sel, counts)
		for name, n := range counts {
			if n > 1 {
				return nil, p.errorf("capture $%s is bound more than once in this predicate", name)
			}
		}

		p.advance()
	}

	if p.tok == tokenWhen {
		if stmt.IsDefault {
			return nil, p.errorf(`"default" cannot be combined with a "when" clause`)
		}
		p.advance()
		when, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.When = when
	}

	if p.tok != tokenArrow {
		return nil, p.errorf(`expected "=>"`)
	}
	p.advance()

	cost, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	stmt.Cost = cost

	return stmt, nil
}

// Expr grammar, loosest to tightest:
//
//	expr       := or
//	or         := and ("||" and)*
//	and        := equality ("&&" equality)*
//	equality   := relational (("==" | "!=") relational)*
//	relational := additive (("<" | "<=" | ">" | ">=") additive)*
//	additive   := multiplicative (("+" | "-") multiplicative)*
//	multiplicative := unary (("*" | "/") unary)*
//	unary      := ("!" | "-") unary | primary
//	primary    := number | string | "true" | "false" | "$" ident | "(" expr ")"
func (p *parser) parseExpr() (expr.Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (expr.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok == tokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryOp{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.tok == tokenAnd {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryOp{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (expr.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.tok == tokenEq || p.tok == tokenNe {
		op := "=="
		if p.tok == tokenNe {
			op = "!="
		}
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (expr.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.tok {
		case tokenLt:
			op = "<"
		case tokenLe:
			op = "<="
		case tokenGt:
			op = ">"
		case tokenGe:
			op = ">="
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (expr.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok == tokenPlus || p.tok == tokenMinus {
		op := "+"
		if p.tok == tokenMinus {
			op = "-"
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (expr.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok == tokenStar || p.tok == tokenSlash {
		op := "*"
		if p.tok == tokenSlash {
			op = "/"
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (expr.Expr, error) {
	switch p.tok {
	case tokenNot:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.UnaryOp{Op: "!", Operand: operand}, nil
	case tokenMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.UnaryOp{Op: "-", Operand: operand}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *parser) parsePrimary() (expr.Expr, error) {
	switch p.tok {
	case tokenNumber:
		r, ok := new(big.Rat).SetString(p.tokVal)
		if !ok {
			err := p.errorf("invalid numeric literal %q", p.tokVal)
			p.advance()
			return nil, err
		}
		p.advance()
		return expr.NumberLit{Value: number.FromRat(r)}, nil
	case tokenString:
		v := p.tokVal
		p.advance()
		return expr.StringLit{Value: v}, nil
	case tokenTrue:
		p.advance()
		return expr.BoolLit{Value: true}, nil
	case tokenFalse:
		p.advance()
		return expr.BoolLit{Value: false}, nil
	case tokenCapture:
		name := p.tokVal
		p.advance()
		return expr.Ident{Name: name}, nil
	case tokenLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok != tokenRParen {
			return nil, p.errorf(`expected ")"`)
		}
		p.advance()
		return inner, nil
	default:
		err := p.errorf("expected an expression, found %s", p.tok)
		return nil, err
	}
}
