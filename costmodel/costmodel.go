// Package costmodel is the facade that ties the DSL compiler, matcher, and
// expression evaluator together: it compiles a cost model once and then
// prices incoming GraphQL queries against it.
package costmodel

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/ccbrown/gqlcost/dsl"
	"github.com/ccbrown/gqlcost/expr"
	"github.com/ccbrown/gqlcost/graphql/ast"
	"github.com/ccbrown/gqlcost/graphql/parser"
	"github.com/ccbrown/gqlcost/matcher"
	"github.com/ccbrown/gqlcost/number"
	"github.com/ccbrown/gqlcost/value"
)

// CostModel is a compiled cost model: an ordered list of statements plus the
// globals bag they were compiled against. It is immutable after Compile and
// safe for concurrent use by Cost.
type CostModel struct {
	statements []*dsl.Statement
	globals    value.Globals
}

// Compile parses modelSource's statements and globalsJSON's globals bag into
// an immutable CostModel. Empty globalsJSON is equivalent to "{}".
func Compile(modelSource, globalsJSON string) (*CostModel, error) {
	if err := validateGlobalsJSON(globalsJSON); err != nil {
		return nil, newError(CompileError, err)
	}

	globals, err := value.FromJSON(globalsJSON)
	if err != nil {
		return nil, newError(CompileError, errors.Wrap(err, "costmodel: invalid globals JSON"))
	}

	statements, err := dsl.Compile(modelSource)
	if err != nil {
		return nil, newError(CompileError, err)
	}

	return &CostModel{statements: statements, globals: globals}, nil
}

// Cost parses query and variablesJSON and sums the cost of each top-level
// selection, returning an unsigned integer in [0, number.MaxCost].
func (m *CostModel) Cost(query, variablesJSON string) (*big.Int, error) {
	doc, errs := parser.ParseDocument([]byte(query))
	if len(errs) > 0 {
		return nil, newError(FailedToParseQuery, errors.New(errs[0].Error()))
	}

	op, fragments, err := topLevelOperation(doc)
	if err != nil {
		return nil, newError(FailedToParseQuery, err)
	}

	vars, err := value.FromJSON(variablesJSON)
	if err != nil {
		return nil, newError(FailedToParseVariables, errors.Wrap(err, "costmodel: invalid variables JSON"))
	}

	total := number.Zero
	for _, selection := range op.SelectionSet.Selections {
		cost, err := m.costSelection(selection, fragments, vars)
		if err != nil {
			return nil, err
		}
		total = number.Add(total, cost)
	}

	result, err := total.ToCost()
	if err != nil {
		return nil, newError(CostModelFail, err)
	}
	return result, nil
}

// costSelection finds the first statement (in source order) whose predicate
// matches selection and whose "when" clause (if any) evaluates to true, then
// returns that statement's evaluated cost.
func (m *CostModel) costSelection(selection ast.Selection, fragments []*ast.FragmentDefinition, vars value.Globals) (number.Number, error) {
	for _, stmt := range m.statements {
		captures := value.NewCaptures()

		if !stmt.IsDefault {
			ok, err := matcher.Match(stmt.Predicate, selection, fragments, vars, captures)
			if err != nil || !ok {
				continue
			}
		}

		env := &expr.Environment{Captures: captures, Globals: m.globals}

		if stmt.When != nil {
			accepted, err := expr.EvalBool(stmt.When, env)
			if err != nil {
				return number.Number{}, newError(CostModelFail, err)
			}
			if !accepted {
				continue
			}
		}

		cost, err := expr.EvalNumber(stmt.Cost, env)
		if err != nil {
			return number.Number{}, newError(CostModelFail, err)
		}
		return cost, nil
	}

	return number.Number{}, newError(QueryNotCosted, errors.Errorf("costmodel: no statement matched selection %q", selectionName(selection)))
}

// topLevelOperation returns the document's sole operation definition and its
// sibling fragment definitions. Cost models price exactly one operation per
// request, matching the single-query-document convention of the upstream
// query-serving service this system fronts.
func topLevelOperation(doc *ast.Document) (*ast.OperationDefinition, []*ast.FragmentDefinition, error) {
	var op *ast.OperationDefinition
	var fragments []*ast.FragmentDefinition

	for _, d := range doc.Definitions {
		switch t := d.(type) {
		case *ast.OperationDefinition:
			if op != nil {
				return nil, nil, errors.New("costmodel: query document must contain exactly one operation")
			}
			op = t
		case *ast.FragmentDefinition:
			fragments = append(fragments, t)
		}
	}

	if op == nil {
		return nil, nil, errors.New("costmodel: query document contains no operation")
	}
	return op, fragments, nil
}

func selectionName(s ast.Selection) string {
	switch t := s.(type) {
	case *ast.Field:
		return t.Name.Name
	case *ast.FragmentSpread:
		return "..." + t.FragmentName.Name
	default:
		return "?"
	}
}
