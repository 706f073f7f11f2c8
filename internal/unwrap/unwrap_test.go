package unwrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpilot/core/internal/mcpclient"
)

func textItem(s string) mcpclient.ContentItem {
	return mcpclient.ContentItem{Type: "text", Text: &s}
}

func TestUnwrapSingleTextItem(t *testing.T) {
	t.Parallel()
	got := Unwrap([]mcpclient.ContentItem{textItem(`{"ok":true}`)})
	assert.Equal(t, map[string]any{"ok": true}, got)
}

func TestUnwrapNonJSONTextPassesThrough(t *testing.T) {
	t.Parallel()
	got := Unwrap([]mcpclient.ContentItem{textItem("plain text")})
	assert.Equal(t, "plain text", got)
}

func TestUnwrapMultipleItemsReturnsList(t *testing.T) {
	t.Parallel()
	got := Unwrap([]mcpclient.ContentItem{textItem(`1`), textItem(`2`)})
	assert.Equal(t, []any{float64(1), float64(2)}, got)
}

func TestUnwrapDoubleEncodedJSONParsesTwice(t *testing.T) {
	t.Parallel()
	// The text content is itself a JSON string containing JSON.
	got := Unwrap([]mcpclient.ContentItem{textItem(`"{\"nested\":true}"`)})
	assert.Equal(t, map[string]any{"nested": true}, got)
}

func TestUnwrapValueNonEnvelopePassesThrough(t *testing.T) {
	t.Parallel()
	got := UnwrapValue([]byte(`{"totally":"unrelated"}`))
	assert.Equal(t, map[string]any{"totally": "unrelated"}, got)
}

func TestExtractPathEndToEndFromSpecScenario(t *testing.T) {
	t.Parallel()
	content := []mcpclient.ContentItem{textItem(`{"properties":[{"display_name":"vibefam","property_id":"123"},{"display_name":"other","property_id":"456"}]}`)}
	unwrapped := Unwrap(content)
	got, ok := ExtractPath(unwrapped, "$.properties[*].property_id")
	require.True(t, ok)
	assert.Equal(t, []any{"123", "456"}, got)
}

func TestExtractPathStripsResultPrefixes(t *testing.T) {
	t.Parallel()
	value := map[string]any{"x": 1}
	v1, ok1 := ExtractPath(value, "result.x")
	v2, ok2 := ExtractPath(value, "x")
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, v2, v1)
}

func TestExtractPathBareResultReturnsAsIs(t *testing.T) {
	t.Parallel()
	value := map[string]any{"x": 1}
	got, ok := ExtractPath(value, "result")
	require.True(t, ok)
	assert.Equal(t, value, got)
}

func TestExtractPathMissingSegmentFails(t *testing.T) {
	t.Parallel()
	_, ok := ExtractPath(map[string]any{"a": 1}, "b")
	assert.False(t, ok)
}

func TestExtractPathReappliesToArrayElements(t *testing.T) {
	t.Parallel()
	value := []any{
		map[string]any{"id": "1"},
		map[string]any{"id": "2"},
	}
	got, ok := ExtractPath(value, "id")
	require.True(t, ok)
	assert.Equal(t, []any{"1", "2"}, got)
}

func TestRenameFieldsOnArray(t *testing.T) {
	t.Parallel()
	extracted := []any{
		map[string]any{"display_name": "a", "property_id": "1"},
		map[string]any{"display_name": "b", "property_id": "2"},
	}
	fields := []OutputField{
		{Name: "name", Path: "display_name"},
		{Name: "id", Path: "property_id"},
	}
	got := RenameFields(extracted, fields)
	assert.Equal(t, []any{
		map[string]any{"name": "a", "id": "1"},
		map[string]any{"name": "b", "id": "2"},
	}, got)
}

func TestRenameFieldsWithNestedPath(t *testing.T) {
	t.Parallel()
	extracted := map[string]any{
		"dimension_values": []any{map[string]any{"value": "42"}},
	}
	fields := []OutputField{{Name: "value", Path: "dimension_values[0].value"}}
	got := RenameFields(extracted, fields)
	assert.Equal(t, map[string]any{"value": "42"}, got)
}
