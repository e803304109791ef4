// Package value implements the Value sum type shared by the DSL and by
// GraphQL argument literals, plus the Captures and Globals environments the
// matcher and evaluator operate on.
package value

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies which variant of Value is populated.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindNull
	KindEnum
	KindList
	KindObject
	KindVariable
)

// Value is the sum type used both for DSL literals and for resolved GraphQL
// argument values. Exactly one field is meaningful, selected by Kind.
type Value struct {
	Kind Kind

	Int    *big.Int
	Float  float64
	String string // also used for Enum symbol and Variable name
	Bool   bool
	List   []Value
	Object map[string]Value
}

func Int(v *big.Int) Value             { return Value{Kind: KindInt, Int: v} }
func IntFromInt64(v int64) Value       { return Value{Kind: KindInt, Int: big.NewInt(v)} }
func Float(v float64) Value            { return Value{Kind: KindFloat, Float: v} }
func String(v string) Value            { return Value{Kind: KindString, String: v} }
func Bool(v bool) Value                { return Value{Kind: KindBool, Bool: v} }
func Null() Value                      { return Value{Kind: KindNull} }
func Enum(v string) Value              { return Value{Kind: KindEnum, String: v} }
func List(v []Value) Value             { return Value{Kind: KindList, List: v} }
func Object(v map[string]Value) Value  { return Value{Kind: KindObject, Object: v} }
func Variable(name string) Value       { return Value{Kind: KindVariable, String: name} }

// Equal reports structural equality. Cross-kind comparisons are defined as
// not-equal rather than an error, since the DSL has no static type system to
// reject them ahead of time. Float equality is bitwise (float64 ==), not
// tolerant.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.Int.Cmp(b.Int) == 0
	case KindFloat:
		return a.Float == b.Float
	case KindString, KindEnum, KindVariable:
		return a.String == b.String
	case KindBool:
		return a.Bool == b.Bool
	case KindNull:
		return true
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Object) != len(b.Object) {
			return false
		}
		for k, av := range a.Object {
			bv, ok := b.Object[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Truthy applies JavaScript-style truthiness coercion: false, 0, "", and null
// are false; everything else (including empty lists/objects) is true.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int.Sign() != 0
	case KindFloat:
		return v.Float != 0
	case KindString, KindEnum:
		return v.String != ""
	case KindNull:
		return false
	default:
		return true
	}
}

// Captures is an insertion-mutable name -> Value environment scoped to a
// single statement-match attempt. Binding the same name twice with unequal
// values is a consistency failure.
type Captures struct {
	bindings map[string]Value
}

func NewCaptures() *Captures {
	return &Captures{bindings: map[string]Value{}}
}

// Bind records name -> v, or verifies consistency if name is already bound.
// It reports false if the binding is inconsistent with a prior one.
func (c *Captures) Bind(name string, v Value) bool {
	if existing, ok := c.bindings[name]; ok {
		return Equal(existing, v)
	}
	c.bindings[name] = v
	return true
}

func (c *Captures) Lookup(name string) (Value, bool) {
	v, ok := c.bindings[name]
	return v, ok
}

// Globals is the compile-time JSON globals bag, visible to every statement's
// expressions.
type Globals map[string]Value

// FromJSON parses a JSON object into Globals, using json.Number so integers
// of arbitrary width survive without precision loss.
func FromJSON(src string) (Globals, error) {
	if strings.TrimSpace(src) == "" {
		return Globals{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "value: failed to parse globals JSON")
	}
	out := make(Globals, len(raw))
	for k, v := range raw {
		cv, err := FromInterface(v)
		if err != nil {
			return nil, errors.Wrapf(err, "value: globals key %q", k)
		}
		out[k] = cv
	}
	return out, nil
}

// FromInterface converts a decoded JSON value (as produced by an
// UseNumber-enabled decoder) into a Value.
func FromInterface(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, ok := new(big.Int).SetString(t.String(), 10); ok {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, errors.Wrapf(err, "value: invalid number %q", t.String())
		}
		return Float(f), nil
	case []interface{}:
		out := make([]Value, len(t))
		for i, e := range t {
			cv, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = cv
		}
		return List(out), nil
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			cv, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			out[k] = cv
		}
		return Object(out), nil
	default:
		return Value{}, errors.Errorf("value: unsupported JSON type %T", v)
	}
}
