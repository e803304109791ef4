package costmodel

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccbrown/gqlcost/number"
)

func mustCompile(t *testing.T, model, globals string) *CostModel {
	t.Helper()
	m, err := Compile(model, globals)
	require.NoError(t, err)
	return m
}

func assertCost(t *testing.T, m *CostModel, query, vars string, want int64) {
	t.Helper()
	got, err := m.Cost(query, vars)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(want).String(), got.String())
}

func TestCost_FirstMatchWins(t *testing.T) {
	m := mustCompile(t, `query { a } when true => 11; query { b } when 1==1 => 2+2;`, "")
	assertCost(t, m, `query { a }`, "", 11)
	assertCost(t, m, `query { b }`, "", 4)
}

func TestCost_CaptureGuardedByWhen(t *testing.T) {
	m := mustCompile(t, `query { a(skip: $s) } when $s > 10 => $s * 2; query { a } => 55;`, "")
	assertCost(t, m, `query { a(skip: 11) }`, "", 22)
	assertCost(t, m, `query { a(skip: 9) }`, "", 55)
}

func TestCost_SumsAcrossTopLevelSelections(t *testing.T) {
	m := mustCompile(t, `query { a(skip: $s) } => $s; query { b(bob: $b) } => 10;`, "")
	assertCost(t, m, `{ a(skip:10), b(bob:5) }`, "", 20)

	_, err := m.Cost(`{ a(skip:10), b }`, "")
	require.Error(t, err)
	var cmErr *Error
	require.True(t, errors.As(err, &cmErr))
	assert.Equal(t, QueryNotCosted, cmErr.Kind)
}

func TestCost_LosslessAndSaturating(t *testing.T) {
	m := mustCompile(t, `default => 100 * (1/2);`, "")
	assertCost(t, m, `query { anything }`, "", 50)

	m = mustCompile(t, `default => 100 - 200;`, "")
	assertCost(t, m, `query { anything }`, "", 0)

	m = mustCompile(t, `default => ($MAX_COST-4) + 10;`, `{"MAX_COST": 115792089237316195423570985008687907853269984665640564039457584007913129639935}`)
	got, err := m.Cost(`query { anything }`, "")
	require.NoError(t, err)
	assert.Equal(t, number.MaxCost.String(), got.String())

	m = mustCompile(t, `default => (1/0) + (-1/0);`, "")
	_, err = m.Cost(`query { anything }`, "")
	require.Error(t, err)
	var cmErr *Error
	require.True(t, errors.As(err, &cmErr))
	assert.Equal(t, CostModelFail, cmErr.Kind)
}

// TestCost_ArbitraryWidthIntegerLiterals covers the arbitrary-width-integer
// requirement on the two code paths where the number actually appears as
// literal digits in source text, rather than arriving through globals JSON:
// a DSL expression literal (dsl/parser.go's tokenNumber) and a GraphQL
// argument literal matched structurally (matcher.go's convertValue, for
// *ast.IntValue). Both must accept a value far beyond int64 without
// truncating or panicking, which is the original bug this spec fixes.
func TestCost_ArbitraryWidthIntegerLiterals(t *testing.T) {
	const huge = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

	m := mustCompile(t, `default => `+huge+`;`, "")
	got, err := m.Cost(`query { anything }`, "")
	require.NoError(t, err)
	assert.Equal(t, huge, got.String())

	m = mustCompile(t, `query { a(skip: `+huge+`) } => 1; default => 2;`, "")
	assertCost(t, m, `query { a(skip: `+huge+`) }`, "", 1)
	assertCost(t, m, `query { a(skip: 1) }`, "", 2)
}

func TestCost_Globals(t *testing.T) {
	m := mustCompile(t, `query { a } when $COND => 1; default => 2;`, `{"COND": true}`)
	assertCost(t, m, `query { a }`, "", 1)

	m = mustCompile(t, `query { a } when $COND => 1; default => 2;`, `{"COND": 0}`)
	assertCost(t, m, `query { a }`, "", 2)

	m = mustCompile(t, `query { a } when $A => 1; default => 2;`, `{"A":"A"}`)
	assertCost(t, m, `query { a }`, "", 1)
}

func TestCost_CaptureShadowsGlobal(t *testing.T) {
	m := mustCompile(t, `query { a(first: $G) } => $G;`, `{"G":15}`)
	assertCost(t, m, `query { a(first: 30) }`, "", 30)
}

func TestCost_Ban(t *testing.T) {
	m := mustCompile(t, `default => $BAN;`, `{"BAN": true}`)
	_, err := m.Cost(`query { a }`, "")
	require.Error(t, err)
	var cmErr *Error
	require.True(t, errors.As(err, &cmErr))
	assert.Equal(t, CostModelFail, cmErr.Kind)
}

func TestCost_FailedToParseQuery(t *testing.T) {
	m := mustCompile(t, `default => 1;`, "")
	_, err := m.Cost(`query { `, "")
	require.Error(t, err)
	var cmErr *Error
	require.True(t, errors.As(err, &cmErr))
	assert.Equal(t, FailedToParseQuery, cmErr.Kind)
}

func TestCost_FailedToParseVariables(t *testing.T) {
	m := mustCompile(t, `default => 1;`, "")
	_, err := m.Cost(`query { a }`, `{not json`)
	require.Error(t, err)
	var cmErr *Error
	require.True(t, errors.As(err, &cmErr))
	assert.Equal(t, FailedToParseVariables, cmErr.Kind)
}

func TestCompile_InvalidGlobalsIsCompileError(t *testing.T) {
	_, err := Compile(`default => 1;`, `{not json`)
	require.Error(t, err)
	var cmErr *Error
	require.True(t, errors.As(err, &cmErr))
	assert.Equal(t, CompileError, cmErr.Kind)
}

func TestCompile_GlobalsMustBeAnObject(t *testing.T) {
	_, err := Compile(`default => 1;`, `[1,2,3]`)
	require.Error(t, err)
	var cmErr *Error
	require.True(t, errors.As(err, &cmErr))
	assert.Equal(t, CompileError, cmErr.Kind)
}

func TestCost_FragmentTransparency(t *testing.T) {
	m := mustCompile(t, `query { node { id } } => 7;`, "")
	inlined, err := m.Cost(`query { node { id } }`, "")
	require.NoError(t, err)

	spread, err := m.Cost(`query { node { ...frag } } fragment frag on Node { id }`, "")
	require.NoError(t, err)

	assert.Equal(t, inlined.String(), spread.String())
}
