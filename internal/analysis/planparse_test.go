package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanScenario5Lines(t *testing.T) {
	t.Parallel()
	ops, err := ParsePlan(`q1_total: sum(q1_sales[revenue])
q2_total: sum(q2_sales[revenue])
growth: pct_change(q1_total, q2_total)  # quarter over quarter`)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	assert.Equal(t, "q1_total", ops[0].OutputVar)
	assert.Equal(t, OpSum, ops[0].Op)
	require.Len(t, ops[0].Args, 1)
	assert.Equal(t, "q1_sales", ops[0].Args[0].Ref)
	assert.Equal(t, "revenue", ops[0].Args[0].Field)

	assert.Equal(t, "growth", ops[2].OutputVar)
	assert.Equal(t, OpPctChange, ops[2].Op)
	assert.Equal(t, "quarter over quarter", ops[2].Comment)
	require.Len(t, ops[2].Args, 2)
	assert.Equal(t, "q1_total", ops[2].Args[0].Ref)
	assert.Equal(t, "q2_total", ops[2].Args[1].Ref)
}

func TestParsePlanFilterWithQuotedExpr(t *testing.T) {
	t.Parallel()
	ops, err := ParsePlan(`big: filter(nums[value], "> 20")`)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Len(t, ops[0].Args, 2)
	assert.Equal(t, "> 20", ops[0].Args[1].FilterExpr)
}

func TestParsePlanScalarArithmeticLiteral(t *testing.T) {
	t.Parallel()
	ops, err := ParsePlan(`halved: divide(revenue[value], 2)`)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Len(t, ops[0].Args, 2)
	assert.True(t, ops[0].Args[1].IsLiteral)
	assert.Equal(t, 2.0, ops[0].Args[1].Literal)
}

func TestParsePlanTableBuild(t *testing.T) {
	t.Parallel()
	ops, err := ParsePlan(`report: table(Quarter: labels[value], Revenue: totals[value])`)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpTable, ops[0].Op)
	require.Len(t, ops[0].Args, 2)
	assert.Equal(t, "Quarter", ops[0].Args[0].Label)
	assert.Equal(t, "labels", ops[0].Args[0].Ref)
}

func TestParsePlanIgnoresBlankLines(t *testing.T) {
	t.Parallel()
	ops, err := ParsePlan("\n\nx: sum(a[v])\n\n")
	require.NoError(t, err)
	require.Len(t, ops, 1)
}

func TestParsePlanMalformedLineFails(t *testing.T) {
	t.Parallel()
	_, err := ParsePlan("not a valid plan line")
	assert.Error(t, err)
}
