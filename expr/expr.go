// Package expr implements the arithmetic/boolean expression AST and its
// evaluator, operating against a capture-then-globals environment.
package expr

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/ccbrown/gqlcost/number"
	"github.com/ccbrown/gqlcost/value"
)

// Expr is the expression AST. Exactly one of the concrete node types below is
// used at any position in the tree.
type Expr interface {
	isExpr()
}

type NumberLit struct {
	Value number.Number
}

type BoolLit struct {
	Value bool
}

type StringLit struct {
	Value string
}

type Ident struct {
	Name string
}

type BinaryOp struct {
	Op          string // "+", "-", "*", "/", "==", "!=", "<", "<=", ">", ">=", "&&", "||"
	Left, Right Expr
}

type UnaryOp struct {
	Op      string // "-", "!"
	Operand Expr
}

func (NumberLit) isExpr() {}
func (BoolLit) isExpr()   {}
func (StringLit) isExpr() {}
func (Ident) isExpr()     {}
func (BinaryOp) isExpr()  {}
func (UnaryOp) isExpr()   {}

// BanName is the distinguished global whose truthy value forces a terminal
// failure whenever it is referenced, in any context.
const BanName = "BAN"

// Environment resolves identifiers, captures first, then globals.
type Environment struct {
	Captures *value.Captures
	Globals  value.Globals
}

func (e *Environment) lookup(name string) (value.Value, bool) {
	if e.Captures != nil {
		if v, ok := e.Captures.Lookup(name); ok {
			return v, true
		}
	}
	v, ok := e.Globals[name]
	return v, ok
}

func (e *Environment) resolve(name string) (value.Value, error) {
	v, ok := e.lookup(name)
	if !ok {
		return value.Value{}, errors.Errorf("expr: unresolved identifier %q", name)
	}
	if name == BanName && value.Truthy(v) {
		return value.Value{}, errors.New("expr: BAN referenced")
	}
	return v, nil
}

// EvalNumber evaluates expr as a Number.
func EvalNumber(e Expr, env *Environment) (number.Number, error) {
	switch n := e.(type) {
	case NumberLit:
		return n.Value, nil
	case Ident:
		v, err := env.resolve(n.Name)
		if err != nil {
			return number.Number{}, err
		}
		return valueToNumber(v)
	case UnaryOp:
		if n.Op != "-" {
			return number.Number{}, errors.Errorf("expr: %q is not a numeric unary operator", n.Op)
		}
		operand, err := EvalNumber(n.Operand, env)
		if err != nil {
			return number.Number{}, err
		}
		return number.Negate(operand), nil
	case BinaryOp:
		left, err := EvalNumber(n.Left, env)
		if err != nil {
			return number.Number{}, err
		}
		right, err := EvalNumber(n.Right, env)
		if err != nil {
			return number.Number{}, err
		}
		switch n.Op {
		case "+":
			return number.Add(left, right), nil
		case "-":
			return number.Sub(left, right), nil
		case "*":
			return number.Mul(left, right), nil
		case "/":
			return number.Div(left, right), nil
		default:
			return number.Number{}, errors.Errorf("expr: %q is not a numeric binary operator", n.Op)
		}
	default:
		return number.Number{}, errors.Errorf("expr: %T is not a numeric expression", e)
	}
}

// EvalBool evaluates expr as a boolean, applying JavaScript-style truthiness
// coercion wherever a boolean is required.
func EvalBool(e Expr, env *Environment) (bool, error) {
	switch n := e.(type) {
	case BoolLit:
		return n.Value, nil
	case Ident:
		v, err := env.resolve(n.Name)
		if err != nil {
			return false, err
		}
		return value.Truthy(v), nil
	case UnaryOp:
		if n.Op != "!" {
			return evalTruthy(e, env)
		}
		operand, err := evalTruthy(n.Operand, env)
		if err != nil {
			return false, err
		}
		return !operand, nil
	case BinaryOp:
		switch n.Op {
		case "&&":
			left, err := evalTruthy(n.Left, env)
			if err != nil {
				return false, err
			}
			if !left {
				return false, nil
			}
			return evalTruthy(n.Right, env)
		case "||":
			left, err := evalTruthy(n.Left, env)
			if err != nil {
				return false, err
			}
			if left {
				return true, nil
			}
			return evalTruthy(n.Right, env)
		case "==", "!=":
			return evalEquality(n, env)
		case "<", "<=", ">", ">=":
			return evalOrdering(n, env)
		default:
			return evalTruthy(e, env)
		}
	default:
		// Any other expression (e.g. a bare numeric/string sub-expression used
		// where a boolean is required) is evaluated and coerced via truthiness.
		return evalTruthy(e, env)
	}
}

// evalTruthy evaluates e as whatever type it naturally produces, then applies
// truthiness coercion to the result. This is how a nested arithmetic or
// string expression is allowed to appear as an operand of &&, ||, or !.
func evalTruthy(e Expr, env *Environment) (bool, error) {
	switch e.(type) {
	case BoolLit:
		return EvalBool(e, env)
	case UnaryOp, BinaryOp, NumberLit:
		if u, ok := e.(UnaryOp); ok && u.Op == "!" {
			return EvalBool(e, env)
		}
		if b, ok := e.(BinaryOp); ok && isBooleanOp(b.Op) {
			return EvalBool(e, env)
		}
		n, err := EvalNumber(e, env)
		if err != nil {
			return false, err
		}
		return numberTruthy(n)
	case StringLit:
		s := e.(StringLit)
		return s.Value != "", nil
	case Ident:
		v, err := env.resolve(e.(Ident).Name)
		if err != nil {
			return false, err
		}
		return value.Truthy(v), nil
	default:
		return false, errors.Errorf("expr: %T cannot be coerced to a boolean", e)
	}
}

func numberTruthy(n number.Number) (bool, error) {
	if n.IsNaN() {
		return false, errors.New("expr: NaN cannot be coerced to a boolean")
	}
	if n.IsInf() {
		return true, nil
	}
	zero, err := number.Compare(n, number.Zero)
	if err != nil {
		return false, err
	}
	return zero != 0, nil
}

func evalEquality(n BinaryOp, env *Environment) (bool, error) {
	lv, rv, err := evalOperandValues(n, env)
	if err != nil {
		return false, err
	}
	eq := valuesEqual(lv, rv)
	if n.Op == "!=" {
		return !eq, nil
	}
	return eq, nil
}

func evalOrdering(n BinaryOp, env *Environment) (bool, error) {
	left, err := EvalNumber(n.Left, env)
	if err != nil {
		return false, err
	}
	right, err := EvalNumber(n.Right, env)
	if err != nil {
		return false, err
	}
	cmp, err := number.Compare(left, right)
	if err != nil {
		return false, err
	}
	switch n.Op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, errors.Errorf("expr: %q is not an ordering operator", n.Op)
	}
}

// operandValue is a small tagged union letting == and != compare numbers,
// booleans, and strings across the few literal/identifier shapes the grammar
// produces without forcing both sides through the same evaluator.
type operandValue struct {
	isNumber bool
	number   number.Number
	isBool   bool
	boolean  bool
	isString bool
	str      string
}

func evalOperandValues(n BinaryOp, env *Environment) (operandValue, operandValue, error) {
	lv, err := evalOperand(n.Left, env)
	if err != nil {
		return operandValue{}, operandValue{}, err
	}
	rv, err := evalOperand(n.Right, env)
	if err != nil {
		return operandValue{}, operandValue{}, err
	}
	return lv, rv, nil
}

func evalOperand(e Expr, env *Environment) (operandValue, error) {
	switch t := e.(type) {
	case BoolLit:
		return operandValue{isBool: true, boolean: t.Value}, nil
	case StringLit:
		return operandValue{isString: true, str: t.Value}, nil
	case Ident:
		v, err := env.resolve(t.Name)
		if err != nil {
			return operandValue{}, err
		}
		return operandFromValue(v)
	case UnaryOp:
		if t.Op == "!" {
			b, err := EvalBool(t, env)
			if err != nil {
				return operandValue{}, err
			}
			return operandValue{isBool: true, boolean: b}, nil
		}
		n, err := EvalNumber(t, env)
		if err != nil {
			return operandValue{}, err
		}
		return operandValue{isNumber: true, number: n}, nil
	case BinaryOp:
		if isBooleanOp(t.Op) {
			b, err := EvalBool(t, env)
			if err != nil {
				return operandValue{}, err
			}
			return operandValue{isBool: true, boolean: b}, nil
		}
		n, err := EvalNumber(t, env)
		if err != nil {
			return operandValue{}, err
		}
		return operandValue{isNumber: true, number: n}, nil
	default:
		n, err := EvalNumber(e, env)
		if err != nil {
			return operandValue{}, err
		}
		return operandValue{isNumber: true, number: n}, nil
	}
}

// isBooleanOp reports whether a BinaryOp's operator produces a boolean
// rather than a Number, so evalOperand can route it through EvalBool
// instead of EvalNumber.
func isBooleanOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		return true
	default:
		return false
	}
}

func operandFromValue(v value.Value) (operandValue, error) {
	switch v.Kind {
	case value.KindBool:
		return operandValue{isBool: true, boolean: v.Bool}, nil
	case value.KindInt:
		return operandValue{isNumber: true, number: number.FromBigInt(v.Int)}, nil
	case value.KindFloat:
		r := new(big.Rat).SetFloat64(v.Float)
		if r == nil {
			return operandValue{}, errors.New("expr: non-finite float value")
		}
		return operandValue{isNumber: true, number: number.FromRat(r)}, nil
	case value.KindString, value.KindEnum:
		return operandValue{isString: true, str: v.String}, nil
	default:
		return operandValue{isBool: true, boolean: value.Truthy(v)}, nil
	}
}

func valuesEqual(a, b operandValue) bool {
	if a.isNumber && b.isNumber {
		return number.Equal(a.number, b.number)
	}
	if a.isBool && b.isBool {
		return a.boolean == b.boolean
	}
	if a.isString && b.isString {
		return a.str == b.str
	}
	return false
}

// valueToNumber converts a resolved Value to a Number for use in arithmetic
// position.
func valueToNumber(v value.Value) (number.Number, error) {
	switch v.Kind {
	case value.KindInt:
		return number.FromBigInt(v.Int), nil
	case value.KindFloat:
		r := new(big.Rat).SetFloat64(v.Float)
		if r == nil {
			return number.Number{}, errors.New("expr: non-finite float value")
		}
		return number.FromRat(r), nil
	default:
		return number.Number{}, errors.Errorf("expr: value of kind %v is not numeric", v.Kind)
	}
}
