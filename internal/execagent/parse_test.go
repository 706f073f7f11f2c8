package execagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicCallWithVariableName(t *testing.T) {
	t.Parallel()
	c, err := Parse(`properties: analytics_list_properties(account: "123456")
DONE: fetched the property list`)
	require.NoError(t, err)
	assert.Equal(t, "properties", c.VariableName)
	assert.Equal(t, "analytics_list_properties", c.ToolName)
	require.Len(t, c.Args, 1)
	assert.Equal(t, "account", c.Args[0].Key)
	assert.Equal(t, "123456", c.Args[0].Value)
	assert.Equal(t, "fetched the property list", c.Report)
}

func TestParseWithoutVariableName(t *testing.T) {
	t.Parallel()
	c, err := Parse(`card(title: "Revenue", value: revenue[total])
DONE: displayed card`)
	require.NoError(t, err)
	assert.Empty(t, c.VariableName)
	assert.Equal(t, "card", c.ToolName)
	require.Len(t, c.Args, 2)
	assert.Equal(t, "value", c.Args[1].Key)
	assert.Equal(t, "revenue[total]", c.Args[1].Value)
}

func TestParseNestedBracketsInArgValue(t *testing.T) {
	t.Parallel()
	c, err := Parse(`chart(data: table(a, b), label: "x")
DONE: ok`)
	require.NoError(t, err)
	require.Len(t, c.Args, 2)
	assert.Equal(t, "table(a, b)", c.Args[0].Value)
}

func TestParseMultilineCall(t *testing.T) {
	t.Parallel()
	c, err := Parse("report: extractor(\n  data: [sales],\n  extract: \"total revenue\"\n)\nDONE: extracted total")
	require.NoError(t, err)
	assert.Equal(t, "report", c.VariableName)
	assert.Equal(t, "extractor", c.ToolName)
	require.Len(t, c.Args, 2)
	assert.Equal(t, "[sales]", c.Args[0].Value)
}

func TestParseMissingParenFails(t *testing.T) {
	t.Parallel()
	_, err := Parse("no call here\nDONE: nothing")
	assert.Error(t, err)
}

func TestParseUnterminatedCallFails(t *testing.T) {
	t.Parallel()
	_, err := Parse(`tool(a: 1`)
	assert.Error(t, err)
}

func TestIsReferenceDetectsFieldProjection(t *testing.T) {
	t.Parallel()
	varName, field, ok := IsReference("sales[revenue]")
	require.True(t, ok)
	assert.Equal(t, "sales", varName)
	assert.Equal(t, "revenue", field)

	_, _, ok = IsReference("plain_value")
	assert.False(t, ok)
}

func TestPositionalNamesMapsInOrder(t *testing.T) {
	t.Parallel()
	args := []Arg{{Value: "a"}, {Value: "b"}, {Key: "already", Value: "c"}}
	out := PositionalNames(args, []string{"first", "second"})
	assert.Equal(t, "first", out[0].Key)
	assert.Equal(t, "second", out[1].Key)
	assert.Equal(t, "already", out[2].Key)
}

func TestCandidateToolsMatchesSubstring(t *testing.T) {
	t.Parallel()
	got := CandidateTools("please render a line-chart of sales", []string{"sales_lookup"})
	assert.Contains(t, got, "line-chart")
}
