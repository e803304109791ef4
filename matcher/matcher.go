// Package matcher implements the structural matcher that tests whether a
// predicate GraphQL selection matches a query selection, binding named
// captures as a side effect.
package matcher

import (
	"math/big"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ccbrown/gqlcost/graphql/ast"
	"github.com/ccbrown/gqlcost/value"
)

// Match tests whether pred (a predicate-side selection) matches query (a
// selection from the actual request), resolving fragment spreads on the
// query side against fragments and GraphQL variables against vars. On a
// match, captures accumulates the bindings produced along the way.
//
// It returns (true, nil) on match, (false, nil) on a definitive non-match,
// and a non-nil error for an unsupported construct on either side (callers
// treat this identically to a non-match).
func Match(pred, query ast.Selection, fragments []*ast.FragmentDefinition, vars map[string]value.Value, captures *value.Captures) (bool, error) {
	if spread, ok := query.(*ast.FragmentSpread); ok {
		return matchFragmentSpread(pred, spread, fragments, vars, captures)
	}

	predField, ok1 := pred.(*ast.Field)
	queryField, ok2 := query.(*ast.Field)
	if !ok1 || !ok2 {
		return false, errors.Errorf("matcher: unsupported selection combination (%T vs %T)", pred, query)
	}
	return matchField(predField, queryField, fragments, vars, captures)
}

func matchFragmentSpread(pred ast.Selection, spread *ast.FragmentSpread, fragments []*ast.FragmentDefinition, vars map[string]value.Value, captures *value.Captures) (bool, error) {
	if len(spread.Directives) > 0 {
		return false, errors.New("matcher: fragment spreads with directives are not supported")
	}
	def := findFragment(fragments, spread.FragmentName.Name)
	if def == nil {
		return false, errors.Errorf("matcher: unresolved fragment %q", spread.FragmentName.Name)
	}
	if len(def.Directives) > 0 {
		return false, errors.New("matcher: fragment definitions with directives are not supported")
	}
	selections := def.SelectionSet.Selections
	return tryExistential(len(selections), func(i int) (bool, error) {
		return Match(pred, selections[i], fragments, vars, captures)
	})
}

func findFragment(fragments []*ast.FragmentDefinition, name string) *ast.FragmentDefinition {
	for _, f := range fragments {
		if f.Name.Name == name {
			return f
		}
	}
	return nil
}

func matchField(pred, query *ast.Field, fragments []*ast.FragmentDefinition, vars map[string]value.Value, captures *value.Captures) (bool, error) {
	if pred.Name.Name != query.Name.Name {
		return false, nil
	}

	for _, pa := range pred.Arguments {
		qas := query.Arguments
		ok, err := tryExistential(len(qas), func(i int) (bool, error) {
			qa := qas[i]
			if qa.Name.Name != pa.Name.Name {
				return false, nil
			}
			return matchValue(pa.Value, qa.Value, vars, captures)
		})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	var predSubs, querySubs []ast.Selection
	if pred.SelectionSet != nil {
		predSubs = pred.SelectionSet.Selections
	}
	if query.SelectionSet != nil {
		querySubs = query.SelectionSet.Selections
	}
	for _, ps := range predSubs {
		ok, err := tryExistential(len(querySubs), func(i int) (bool, error) {
			return Match(ps, querySubs[i], fragments, vars, captures)
		})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// tryExistential runs candidate for each index in [0, n) and succeeds as soon
// as one succeeds. If none succeed, it returns the first error encountered
// (if any), else a definitive non-match.
func tryExistential(n int, candidate func(i int) (bool, error)) (bool, error) {
	var firstErr error
	for i := 0; i < n; i++ {
		ok, err := candidate(i)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	if firstErr != nil {
		return false, firstErr
	}
	return false, nil
}

func matchValue(pred, query ast.Value, vars map[string]value.Value, captures *value.Captures) (bool, error) {
	pv, err := predToValue(pred)
	if err != nil {
		return false, err
	}
	qv, err := queryToValue(query, vars)
	if err != nil {
		return false, err
	}
	return matchValues(pv, qv, captures)
}

// matchValues compares a predicate-side Value (where KindVariable denotes a
// capture slot) against a fully-resolved query-side Value.
func matchValues(pred, query value.Value, captures *value.Captures) (bool, error) {
	if pred.Kind == value.KindVariable {
		switch query.Kind {
		case value.KindInt, value.KindBool:
			return captures.Bind(pred.String, query), nil
		default:
			// Matches, but the value isn't usable in expressions.
			return true, nil
		}
	}

	if pred.Kind != query.Kind {
		return false, nil
	}

	switch pred.Kind {
	case value.KindInt:
		return pred.Int.Cmp(query.Int) == 0, nil
	case value.KindFloat:
		return pred.Float == query.Float, nil
	case value.KindString, value.KindEnum:
		return pred.String == query.String, nil
	case value.KindBool:
		return pred.Bool == query.Bool, nil
	case value.KindNull:
		return true, nil
	case value.KindList:
		if len(pred.List) != len(query.List) {
			return false, nil
		}
		for i := range pred.List {
			ok, err := matchValues(pred.List[i], query.List[i], captures)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case value.KindObject:
		for k, pv := range pred.Object {
			qv, ok := query.Object[k]
			if !ok {
				return false, nil
			}
			ok2, err := matchValues(pv, qv, captures)
			if err != nil {
				return false, err
			}
			if !ok2 {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, errors.Errorf("matcher: unsupported value kind %v", pred.Kind)
	}
}

// predToValue converts a predicate-side literal into a Value, representing a
// $name capture slot at any nesting depth as value.Variable(name).
func predToValue(v ast.Value) (value.Value, error) {
	if variable, ok := v.(*ast.Variable); ok {
		return value.Variable(variable.Name.Name), nil
	}
	return convertValue(v, predToValue)
}

// queryToValue converts a query-side literal into a fully-resolved Value,
// resolving $name references (at any nesting depth) against the GraphQL
// variables bag.
func queryToValue(v ast.Value, vars map[string]value.Value) (value.Value, error) {
	if variable, ok := v.(*ast.Variable); ok {
		resolved, ok := vars[variable.Name.Name]
		if !ok {
			return value.Value{}, errors.Errorf("matcher: unresolved query variable $%s", variable.Name.Name)
		}
		return resolved, nil
	}
	return convertValue(v, func(e ast.Value) (value.Value, error) {
		return queryToValue(e, vars)
	})
}

// convertValue converts the non-Variable shapes shared by predToValue and
// queryToValue, recursing into list/object elements via convertChild (which
// differs between the two callers only in how they treat nested Variables).
func convertValue(v ast.Value, convertChild func(ast.Value) (value.Value, error)) (value.Value, error) {
	switch t := v.(type) {
	case *ast.IntValue:
		i, ok := new(big.Int).SetString(t.Value, 10)
		if !ok {
			return value.Value{}, errors.Errorf("matcher: invalid int literal %q", t.Value)
		}
		return value.Int(i), nil
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return value.Value{}, errors.Wrapf(err, "matcher: invalid float literal %q", t.Value)
		}
		return value.Float(f), nil
	case *ast.StringValue:
		return value.String(t.Value), nil
	case *ast.BooleanValue:
		return value.Bool(t.Value), nil
	case *ast.NullValue:
		return value.Null(), nil
	case *ast.EnumValue:
		return value.Enum(t.Value), nil
	case *ast.ListValue:
		vals := make([]value.Value, len(t.Values))
		for i, e := range t.Values {
			cv, err := convertChild(e)
			if err != nil {
				return value.Value{}, err
			}
			vals[i] = cv
		}
		return value.List(vals), nil
	case *ast.ObjectValue:
		obj := make(map[string]value.Value, len(t.Fields))
		for _, f := range t.Fields {
			cv, err := convertChild(f.Value)
			if err != nil {
				return value.Value{}, err
			}
			obj[f.Name.Name] = cv
		}
		return value.Object(obj), nil
	default:
		return value.Value{}, errors.Errorf("matcher: unsupported value type %T", v)
	}
}
