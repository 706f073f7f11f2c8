package execagent

import (
	"context"
	"testing"

	"github.com/mcpilot/core/internal/mcpclient"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/subtool"
	"github.com/mcpilot/core/internal/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModelClient struct {
	responses []string
	i         int
}

func (f *fakeModelClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	r := f.responses[f.i]
	if f.i < len(f.responses)-1 {
		f.i++
	}
	return &model.Response{Text: r}, nil
}

func newCatalogWithSubTool() *subtool.Catalog {
	cat := subtool.NewCatalog()
	cat.Put("weather", subtool.CatalogFile{SubTools: []subtool.SubTool{
		{
			ID:         "weather__get_forecast",
			Name:       "get_forecast",
			ParentTool: "weather__get_forecast_raw",
			Inputs:     []subtool.Input{{Name: "city", MapToParentArg: "location.city", Required: true}},
			JSONPath:   "$.forecast",
			OutputFields: []subtool.OutputField{
				{Name: "summary", Path: "summary", Type: "string"},
			},
		},
	}})
	return cat
}

func TestDispatchSubToolCallStoresVariableAndReports(t *testing.T) {
	t.Parallel()
	cat := newCatalogWithSubTool()
	mcp := mcpclient.NewManagerForTest(func(name string, args []byte) (mcpclient.ToolCallResult, error) {
		text := `{"forecast":{"summary":"sunny"}}`
		return mcpclient.ToolCallResult{Content: []mcpclient.ContentItem{
			{Type: "text", Text: &text},
		}}, nil
	})
	d := &Dispatcher{Catalog: cat, SubTools: subtool.NewExecutor(cat, mcp)}
	vars := variable.NewStore()

	outcome, err := d.Dispatch(context.Background(), Call{
		ToolName: "get_forecast",
		Args:     []Arg{{Key: "city", Value: "Paris"}},
		VariableName: "forecast",
	}, vars)
	require.NoError(t, err)
	assert.Contains(t, outcome.Reply, "Stored in `forecast`")
	v, ok := vars.Get("forecast")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"summary": "sunny"}, v.ActualData)
}

func TestDispatchUnknownSubToolFails(t *testing.T) {
	t.Parallel()
	cat := subtool.NewCatalog()
	d := &Dispatcher{Catalog: cat, SubTools: subtool.NewExecutor(cat, mcpclient.NewManagerForTest(nil))}
	_, err := d.Dispatch(context.Background(), Call{ToolName: "nope"}, variable.NewStore())
	assert.Error(t, err)
}

func TestDispatchUICardRendersDirectly(t *testing.T) {
	t.Parallel()
	vars := variable.NewStore()
	vars.Put(variable.Variable{Name: "revenue", ActualData: map[string]any{"total": 42.0}})
	d := &Dispatcher{}
	outcome, err := d.Dispatch(context.Background(), Call{
		ToolName: "card",
		Args:     []Arg{{Key: "title", Value: "Revenue"}, {Key: "value", Value: "revenue[total]"}},
	}, vars)
	require.NoError(t, err)
	assert.Equal(t, "Displayed to user", outcome.Reply)
	require.Len(t, outcome.DSL, 1)
	assert.Contains(t, outcome.DSL[0], "42")
}

func TestDispatchExtractorStoresValue(t *testing.T) {
	t.Parallel()
	vars := variable.NewStore()
	vars.Put(variable.Variable{Name: "sales", ActualData: map[string]any{"total": 100.0}})
	d := &Dispatcher{Client: &fakeModelClient{responses: []string{"100"}}}
	outcome, err := d.Dispatch(context.Background(), Call{
		ToolName:     "extractor",
		VariableName: "total",
		Args:         []Arg{{Key: "data", Value: "[sales]"}, {Key: "extract", Value: "total revenue"}},
	}, vars)
	require.NoError(t, err)
	assert.Contains(t, outcome.Reply, "Stored in 'total'")
	v, ok := vars.Get("total")
	require.True(t, ok)
	assert.Equal(t, "100", v.ActualData)
}

func TestDispatchExtractorNotFound(t *testing.T) {
	t.Parallel()
	vars := variable.NewStore()
	vars.Put(variable.Variable{Name: "sales", ActualData: map[string]any{"total": 100.0}})
	d := &Dispatcher{Client: &fakeModelClient{responses: []string{"NOT_FOUND"}}}
	outcome, err := d.Dispatch(context.Background(), Call{
		ToolName: "extractor",
		Args:     []Arg{{Key: "data", Value: "[sales]"}, {Key: "extract", Value: "nonexistent field"}},
	}, vars)
	require.NoError(t, err)
	assert.Equal(t, "NOT_FOUND", outcome.Reply)
}

func TestDispatchAnalysisAgentReturnsSummaryAndDSL(t *testing.T) {
	t.Parallel()
	vars := variable.NewStore()
	vars.Put(variable.Variable{Name: "q1_sales", ActualData: []map[string]any{
		{"revenue": 10.0}, {"revenue": 20.0}, {"revenue": 30.0},
	}})
	d := &Dispatcher{Client: &fakeModelClient{responses: []string{
		"q1_total: sum(q1_sales[revenue])",
		"[report]\nVISUAL_1: card(title: \"Total\", value: q1_total)\n[/report]\n[summary]Total revenue is 60.[/summary]",
	}}}
	outcome, err := d.Dispatch(context.Background(), Call{
		ToolName: "llm",
		Args:     []Arg{{Key: "data", Value: "[q1_sales]"}, {Key: "question", Value: "what is total revenue?"}},
	}, vars)
	require.NoError(t, err)
	assert.Equal(t, "Total revenue is 60.", outcome.Reply)
	require.Len(t, outcome.DSL, 1)
	assert.Contains(t, outcome.DSL[0], "60.00")
}
