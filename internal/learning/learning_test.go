package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/mcpclient"
	"github.com/mcpilot/core/internal/model"
)

type fakeClient struct {
	responses []string
	i         int
}

func (f *fakeClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	r := f.responses[f.i]
	if f.i < len(f.responses)-1 {
		f.i++
	}
	return &model.Response{Text: r}, nil
}

func TestRunDrivesCallToolThenSubToolThenComplete(t *testing.T) {
	t.Parallel()
	mcp := mcpclient.NewManagerForTest(func(name string, args []byte) (mcpclient.ToolCallResult, error) {
		text := `{"forecast":"sunny"}`
		return mcpclient.ToolCallResult{Content: []mcpclient.ContentItem{{Type: "text", Text: &text}}}, nil
	})
	client := &fakeClient{responses: []string{
		`[CALL_TOOL]{"tool": "weather__get_forecast_raw", "args": {"city": "Paris"}}[/CALL_TOOL]`,
		`[SUB_TOOL]{"name": "get_forecast", "description": "fetch a forecast", "parent_tool": "weather__get_forecast_raw", "json_path": "$.forecast", "inputs": [{"name": "city", "type": "string", "required": true, "map_to_parent_arg": "city"}], "output_fields": [{"name": "summary", "path": "", "type": "string"}]}[/SUB_TOOL]`,
		`[LEARNING_COMPLETE]{"insights": "forecast tool is reliable"}[/LEARNING_COMPLETE]`,
	}}

	var events []Event
	result, err := Run(context.Background(), client, mcp, "Learn the weather MCP.", func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)
	assert.Equal(t, "forecast tool is reliable", result.Insights)
	require.Len(t, result.SubTools, 1)
	assert.Equal(t, "get_forecast", result.SubTools[0].Name)
	assert.NotEmpty(t, result.SubTools[0].ID)

	var kinds []EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, EventToolCall)
	assert.Contains(t, kinds, EventToolResponse)
	assert.Contains(t, kinds, EventSubToolCreated)
}

func TestRunAccumulatesInputLearnedAndWorkflow(t *testing.T) {
	t.Parallel()
	mcp := mcpclient.NewManagerForTest(nil)
	client := &fakeClient{responses: []string{
		`[INPUT_LEARNED]{"name": "city", "type": "string", "required": true, "description": "city name", "map_to_parent_arg": "city"}[/INPUT_LEARNED]`,
		`[WORKFLOW]{"userTask": "get tomorrow's forecast", "category": "weather", "steps": ["get_forecast"]}[/WORKFLOW]`,
		`[LEARNING_COMPLETE]{}[/LEARNING_COMPLETE]`,
	}}
	result, err := Run(context.Background(), client, mcp, "Learn.", nil)
	require.NoError(t, err)
	require.Len(t, result.DocumentedInputs, 1)
	assert.Equal(t, "city", result.DocumentedInputs[0].Name)
	require.Len(t, result.Workflows, 1)
	assert.Equal(t, "get tomorrow's forecast", result.Workflows[0].UserTask)
}

func TestRunExceedsIterationBoundFailsWithStepCap(t *testing.T) {
	t.Parallel()
	mcp := mcpclient.NewManagerForTest(nil)
	client := &fakeClient{responses: []string{
		`[BROWSE_WEB]{"query": "nothing useful"}[/BROWSE_WEB]`,
	}}
	_, err := Run(context.Background(), client, mcp, "Learn.", nil)
	require.Error(t, err)
	assert.Equal(t, agenterr.StepCapReached, agenterr.KindOf(err))
}

func TestParseBlockPicksEarliestTag(t *testing.T) {
	t.Parallel()
	text := `some preamble [SUB_TOOL]{"name": "x"}[/SUB_TOOL] trailing [LEARNING_COMPLETE]{}[/LEARNING_COMPLETE]`
	b, ok, err := ParseBlock(text)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, BlockSubTool, b.Kind)
}

func TestParseBlockNoTagReturnsNotOK(t *testing.T) {
	t.Parallel()
	_, ok, err := ParseBlock("just plain text")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseBlockInvalidJSONFails(t *testing.T) {
	t.Parallel()
	_, _, err := ParseBlock(`[SUB_TOOL]not json[/SUB_TOOL]`)
	assert.Error(t, err)
}
