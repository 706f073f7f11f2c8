package subtool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpilot/core/internal/mcpclient"
)

func strPtr(s string) *string { return &s }

func TestExecutorAssemblesNestedArgsAndProjects(t *testing.T) {
	t.Parallel()
	mgr := mcpclient.NewManagerForTest(func(sanitizedName string, args []byte) (mcpclient.ToolCallResult, error) {
		assert.Equal(t, "analytics__run_report", sanitizedName)
		assert.JSONEq(t, `{"date_ranges":[{"start_date":"2025-11-01"}]}`, string(args))
		return mcpclient.ToolCallResult{
			Content: []mcpclient.ContentItem{{
				Type: "text",
				Text: strPtr(`{"properties":[{"display_name":"vibefam","property_id":"123"}]}`),
			}},
		}, nil
	})

	catalog := NewCatalog()
	catalog.Put("analytics", CatalogFile{SubTools: []SubTool{{
		ID:                "list_properties",
		ParentTool:        "analytics__run_report",
		ParentDefaultArgs: map[string]any{},
		Inputs: []Input{
			{Name: "start", MapToParentArg: "date_ranges[0].start_date", Required: true},
		},
		JSONPath: "$.properties[*]",
		OutputFields: []OutputField{
			{Name: "name", Path: "display_name"},
			{Name: "id", Path: "property_id"},
		},
	}}})

	ex := NewExecutor(catalog, mgr)
	result, err := ex.Execute(context.Background(), "list_properties", map[string]any{"start": "2025-11-01"})
	require.NoError(t, err)
	assert.False(t, result.ExtractionFallback)
	assert.Equal(t, []any{map[string]any{"name": "vibefam", "id": "123"}}, result.ActualData)
}

func TestExecutorFallsBackWhenExtractionMisses(t *testing.T) {
	t.Parallel()
	mgr := mcpclient.NewManagerForTest(func(sanitizedName string, args []byte) (mcpclient.ToolCallResult, error) {
		return mcpclient.ToolCallResult{
			Content: []mcpclient.ContentItem{{Type: "text", Text: strPtr(`{"unrelated":true}`)}},
		}, nil
	})
	catalog := NewCatalog()
	catalog.Put("svc", CatalogFile{SubTools: []SubTool{{
		ID:         "t1",
		ParentTool: "svc__tool",
		JSONPath:   "does.not.exist",
	}}})
	ex := NewExecutor(catalog, mgr)
	result, err := ex.Execute(context.Background(), "t1", map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.ExtractionFallback)
	assert.Equal(t, map[string]any{"unrelated": true}, result.ActualData)
}

func TestExecutorReportsMissingRequiredInput(t *testing.T) {
	t.Parallel()
	mgr := mcpclient.NewManagerForTest(func(string, []byte) (mcpclient.ToolCallResult, error) {
		t.Fatal("parent tool should not be called when a required input is missing")
		return mcpclient.ToolCallResult{}, nil
	})
	catalog := NewCatalog()
	catalog.Put("svc", CatalogFile{SubTools: []SubTool{{
		ID:         "t1",
		ParentTool: "svc__tool",
		Inputs:     []Input{{Name: "q", Required: true, MapToParentArg: "q"}},
	}}})
	ex := NewExecutor(catalog, mgr)
	_, err := ex.Execute(context.Background(), "t1", map[string]any{})
	assert.Error(t, err)
}

func TestExecutorUnknownSubToolFails(t *testing.T) {
	t.Parallel()
	ex := NewExecutor(NewCatalog(), mcpclient.NewManagerForTest(nil))
	_, err := ex.Execute(context.Background(), "missing", nil)
	assert.Error(t, err)
}
