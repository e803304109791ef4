package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccbrown/gqlcost/graphql/ast"
	"github.com/ccbrown/gqlcost/graphql/parser"
	"github.com/ccbrown/gqlcost/value"
)

func mustParse(t *testing.T, src string) *ast.Document {
	t.Helper()
	doc, errs := parser.ParseDocument([]byte(src))
	require.Empty(t, errs)
	require.NotNil(t, doc)
	return doc
}

func topSelections(doc *ast.Document) []ast.Selection {
	op := doc.Definitions[0].(*ast.OperationDefinition)
	return op.SelectionSet.Selections
}

func fragmentsOf(doc *ast.Document) []*ast.FragmentDefinition {
	var out []*ast.FragmentDefinition
	for _, d := range doc.Definitions {
		if f, ok := d.(*ast.FragmentDefinition); ok {
			out = append(out, f)
		}
	}
	return out
}

func TestMatchField_NameMismatch(t *testing.T) {
	pred := topSelections(mustParse(t, `query { a }`))[0]
	query := topSelections(mustParse(t, `query { b }`))[0]

	ok, err := Match(pred, query, nil, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchField_ExistentialArguments(t *testing.T) {
	pred := topSelections(mustParse(t, `query { a(skip: 10) }`))[0]
	query := topSelections(mustParse(t, `query { a(other: "x", skip: 10) }`))[0]

	ok, err := Match(pred, query, nil, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.True(t, ok, "query may have additional arguments not named in the predicate")
}

func TestMatchValue_ObjectIsSubset(t *testing.T) {
	pred := topSelections(mustParse(t, `query { a(o: {x: 1}) }`))[0]
	matching := topSelections(mustParse(t, `query { a(o: {x: 1, y: 2}) }`))[0]
	nonMatching := topSelections(mustParse(t, `query { a(o: {y: 2}) }`))[0]

	ok, err := Match(pred, matching, nil, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(pred, nonMatching, nil, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchValue_ListIsExact(t *testing.T) {
	pred := topSelections(mustParse(t, `query { a(l: [1, 2]) }`))[0]
	same := topSelections(mustParse(t, `query { a(l: [1, 2]) }`))[0]
	extra := topSelections(mustParse(t, `query { a(l: [1, 2, 3]) }`))[0]
	reordered := topSelections(mustParse(t, `query { a(l: [2, 1]) }`))[0]

	ok, err := Match(pred, same, nil, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(pred, extra, nil, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Match(pred, reordered, nil, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchValue_CaptureConsistency(t *testing.T) {
	pred := topSelections(mustParse(t, `query { a(x: $n, y: $n) }`))[0]
	consistent := topSelections(mustParse(t, `query { a(x: 5, y: 5) }`))[0]
	inconsistent := topSelections(mustParse(t, `query { a(x: 5, y: 6) }`))[0]

	captures := value.NewCaptures()
	ok, err := Match(pred, consistent, nil, nil, captures)
	require.NoError(t, err)
	require.True(t, ok)
	bound, ok := captures.Lookup("n")
	require.True(t, ok)
	assert.True(t, value.Equal(bound, value.IntFromInt64(5)))

	ok, err = Match(pred, inconsistent, nil, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchValue_NonScalarCaptureNotRecorded(t *testing.T) {
	pred := topSelections(mustParse(t, `query { a(s: $str) }`))[0]
	query := topSelections(mustParse(t, `query { a(s: "hello") }`))[0]

	captures := value.NewCaptures()
	ok, err := Match(pred, query, nil, nil, captures)
	require.NoError(t, err)
	require.True(t, ok)
	_, bound := captures.Lookup("str")
	assert.False(t, bound, "only Int and Bool concrete values are captured")
}

func TestMatchValue_QueryVariableResolution(t *testing.T) {
	pred := topSelections(mustParse(t, `query { a(skip: 10) }`))[0]
	query := topSelections(mustParse(t, `query($s: Int) { a(skip: $s) }`))[0]
	vars := map[string]value.Value{"s": value.IntFromInt64(10)}

	ok, err := Match(pred, query, nil, vars, value.NewCaptures())
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Match(pred, query, nil, map[string]value.Value{}, value.NewCaptures())
	assert.Error(t, err, "unresolved query variables are an error")
}

func TestMatchFragmentSpread_Transparency(t *testing.T) {
	doc := mustParse(t, `
		query { node { ...frag } }
		fragment frag on Node { id name }
	`)
	pred := topSelections(mustParse(t, `query { node { id } }`))[0]
	query := topSelections(doc)[0]
	fragments := fragmentsOf(doc)

	ok, err := Match(pred, query, fragments, nil, value.NewCaptures())
	require.NoError(t, err)
	assert.True(t, ok, "a fragment spread whose selection set contains a matching field must match")
}

func TestMatchFragmentSpread_WithDirectivesIsError(t *testing.T) {
	doc := mustParse(t, `
		query { node { ...frag @include(if: true) } }
		fragment frag on Node { id }
	`)
	pred := topSelections(mustParse(t, `query { node { id } }`))[0]
	query := topSelections(doc)[0]
	fragments := fragmentsOf(doc)

	_, err := Match(pred, query, fragments, nil, value.NewCaptures())
	assert.Error(t, err)
}

func TestMatch_InlineFragmentIsUnsupported(t *testing.T) {
	doc := mustParse(t, `query { node { ... on User { id } } }`)
	pred := topSelections(mustParse(t, `query { node { id } }`))[0]
	query := topSelections(doc)[0]

	// node vs node succeeds, but its subselection (inline fragment) is an
	// unsupported combination against the predicate's `id` subselection.
	_, err := Match(pred, query, nil, nil, value.NewCaptures())
	assert.Error(t, err)
}
