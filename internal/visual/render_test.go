package visual

import (
	"testing"

	"github.com/mcpilot/core/internal/callsyntax"
	"github.com/mcpilot/core/internal/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCardResolvesAnalysisNumberAndEscapesNewlines(t *testing.T) {
	t.Parallel()
	aStore := variable.NewAnalysisStore()
	aStore.Put(variable.Number("q1_total", 60))

	v := Visual{Kind: "card", Args: []callsyntax.Arg{
		{Key: "title", Value: "Q1\nRevenue"},
		{Key: "value", Value: "q1_total"},
	}}
	dsl, err := Render(v, aStore, variable.NewStore())
	require.NoError(t, err)
	assert.Contains(t, dsl, `value="60.00"`)
	assert.Contains(t, dsl, `Q1\nRevenue`)
}

func TestRenderTableSerializesDirectTableVariable(t *testing.T) {
	t.Parallel()
	aStore := variable.NewAnalysisStore()
	aStore.Put(variable.Table("report_table", []map[string]any{
		{"Quarter": "Q1", "Revenue": 60.0},
		{"Quarter": "Q2", "Revenue": 75.0},
	}, []string{"Quarter", "Revenue"}))

	v := Visual{Kind: "table", Args: []callsyntax.Arg{{Key: "data", Value: "report_table"}}}
	dsl, err := Render(v, aStore, variable.NewStore())
	require.NoError(t, err)
	assert.Contains(t, dsl, "Quarter,Revenue")
	assert.Contains(t, dsl, "Q1,60")
}

func TestRenderTableZipsLabeledColumns(t *testing.T) {
	t.Parallel()
	aStore := variable.NewAnalysisStore()
	aStore.Put(variable.Column("labels", []any{"Q1", "Q2"}))
	aStore.Put(variable.Column("totals", []any{60.0, 75.0}))

	v := Visual{Kind: "table", Args: []callsyntax.Arg{
		{Key: "Quarter", Value: "labels"},
		{Key: "Revenue", Value: "totals"},
	}}
	dsl, err := Render(v, aStore, variable.NewStore())
	require.NoError(t, err)
	assert.Contains(t, dsl, "Quarter,Revenue")
}

func TestRenderLineChartResolvesColumnsByReference(t *testing.T) {
	t.Parallel()
	aStore := variable.NewAnalysisStore()
	aStore.Put(variable.Column("labels", []any{"Q1", "Q2"}))
	aStore.Put(variable.Column("totals", []any{60.0, 75.0}))

	v := Visual{Kind: "line-chart", Args: []callsyntax.Arg{
		{Key: "x", Value: "labels"},
		{Key: "y", Value: "totals"},
		{Key: "label", Value: "Revenue"},
	}}
	dsl, err := Render(v, aStore, variable.NewStore())
	require.NoError(t, err)
	assert.Contains(t, dsl, `x="Q1,Q2"`)
	assert.Contains(t, dsl, `y="60,75"`)
}

func TestRenderCardFallsBackToConversationalVariable(t *testing.T) {
	t.Parallel()
	vStore := variable.NewStore()
	vStore.Put(variable.Variable{Name: "properties", ActualData: map[string]any{"property_id": "123"}})

	v := Visual{Kind: "card", Args: []callsyntax.Arg{
		{Key: "title", Value: "Property"},
		{Key: "value", Value: "properties[property_id]"},
	}}
	dsl, err := Render(v, variable.NewAnalysisStore(), vStore)
	require.NoError(t, err)
	assert.Contains(t, dsl, `value="123"`)
}

func TestRenderUnknownReferenceFails(t *testing.T) {
	t.Parallel()
	v := Visual{Kind: "card", Args: []callsyntax.Arg{
		{Key: "title", Value: "X"},
		{Key: "value", Value: "missing[field]"},
	}}
	_, err := Render(v, variable.NewAnalysisStore(), variable.NewStore())
	assert.Error(t, err)
}
