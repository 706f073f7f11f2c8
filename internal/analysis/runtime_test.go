package analysis

import (
	"testing"

	"github.com/mcpilot/core/internal/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatsToAny(vals []float64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func TestRunAnalysisPlanScenario(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	store.Put(variable.Table("q1_sales", []map[string]any{
		{"revenue": 10.0}, {"revenue": 20.0}, {"revenue": 30.0},
	}, []string{"revenue"}))
	store.Put(variable.Table("q2_sales", []map[string]any{
		{"revenue": 15.0}, {"revenue": 25.0}, {"revenue": 35.0},
	}, []string{"revenue"}))

	ops := []Operation{
		{OutputVar: "q1_total", Op: OpSum, Args: []Arg{{Ref: "q1_sales", Field: "revenue"}}},
		{OutputVar: "q2_total", Op: OpSum, Args: []Arg{{Ref: "q2_sales", Field: "revenue"}}},
		{OutputVar: "growth", Op: OpPctChange, Args: []Arg{{Ref: "q1_total"}, {Ref: "q2_total"}}},
	}
	results := Run(store, ops)
	require.Len(t, results, 3)
	for _, r := range results {
		require.Empty(t, r.Err)
	}
	assert.Equal(t, 60.0, results[0].Value.Number)
	assert.Equal(t, 75.0, results[1].Value.Number)
	assert.Equal(t, 25.0, results[2].Value.Number)
}

func TestRunColumnArithmeticSizeMismatchTruncatesAndNotes(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	store.Put(variable.Column("a", floatsToAny([]float64{1, 2, 3, 4})))
	store.Put(variable.Column("b", floatsToAny([]float64{10, 20, 30})))

	results := Run(store, []Operation{
		{OutputVar: "sum_col", Op: OpAdd, Args: []Arg{{Ref: "a"}, {Ref: "b"}}},
	})
	require.Len(t, results, 1)
	require.Empty(t, results[0].Err)
	assert.Equal(t, []any{11.0, 22.0, 33.0}, results[0].Value.Column)
	assert.NotEmpty(t, results[0].Value.Note)
}

func TestRunRatioDivideByZeroFailsWithoutAbortingPlan(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	store.Put(variable.Number("zero", 0))
	store.Put(variable.Number("ten", 10))

	results := Run(store, []Operation{
		{OutputVar: "bad", Op: OpRatio, Args: []Arg{{Ref: "ten"}, {Ref: "zero"}}},
		{OutputVar: "ok", Op: OpSum, Args: []Arg{{Ref: "ten"}}},
	})
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Err, "CANNOT_DIVIDE_BY_ZERO")
	assert.Empty(t, results[1].Err)
}

func TestRunDifferenceIsAntisymmetric(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	store.Put(variable.Number("a", 7))
	store.Put(variable.Number("b", 3))

	results := Run(store, []Operation{
		{OutputVar: "ab", Op: OpDifference, Args: []Arg{{Ref: "a"}, {Ref: "b"}}},
		{OutputVar: "ba", Op: OpDifference, Args: []Arg{{Ref: "b"}, {Ref: "a"}}},
	})
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Value.Number, -results[1].Value.Number)
}

func TestRunFilterNumericComparison(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	store.Put(variable.Column("nums", floatsToAny([]float64{5, 15, 25, 35})))

	results := Run(store, []Operation{
		{OutputVar: "big", Op: OpFilter, Args: []Arg{{Ref: "nums"}, {FilterExpr: "> 20"}}},
	})
	require.Len(t, results, 1)
	require.Empty(t, results[0].Err)
	assert.Equal(t, []any{25.0, 35.0}, results[0].Value.Column)
}

func TestRunSortDescending(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	store.Put(variable.Column("nums", floatsToAny([]float64{3, 1, 4, 1, 5})))

	results := Run(store, []Operation{
		{OutputVar: "sorted", Op: OpSortDesc, Args: []Arg{{Ref: "nums"}}},
	})
	require.Len(t, results, 1)
	assert.Equal(t, []any{5.0, 4.0, 3.0, 1.0, 1.0}, results[0].Value.Column)
}

func TestRunScalarDivideByZeroSubstitutesZero(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	store.Put(variable.Column("nums", floatsToAny([]float64{10, 20})))

	results := Run(store, []Operation{
		{OutputVar: "divided", Op: OpDivide, Args: []Arg{{Ref: "nums"}, {Literal: 0, IsLiteral: true}}},
	})
	require.Len(t, results, 1)
	require.Empty(t, results[0].Err)
	assert.Equal(t, []any{0.0, 0.0}, results[0].Value.Column)
}

func TestRunTableBuildZipsColumnsByLabel(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	store.Put(variable.Column("a", floatsToAny([]float64{1, 2})))
	store.Put(variable.Column("b", floatsToAny([]float64{10, 20})))

	results := Run(store, []Operation{
		{OutputVar: "report", Op: OpTable, Args: []Arg{{Label: "A", Ref: "a"}, {Label: "B", Ref: "b"}}},
	})
	require.Len(t, results, 1)
	require.Empty(t, results[0].Err)
	require.Len(t, results[0].Value.Table, 2)
	assert.Equal(t, 1.0, results[0].Value.Table[0]["A"])
	assert.Equal(t, 10.0, results[0].Value.Table[0]["B"])
}

func TestRunUnknownVariableFailsWithColumnNotFound(t *testing.T) {
	t.Parallel()
	store := variable.NewAnalysisStore()
	results := Run(store, []Operation{
		{OutputVar: "x", Op: OpSum, Args: []Arg{{Ref: "missing"}}},
	})
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Err, "COLUMN_NOT_FOUND")
}
