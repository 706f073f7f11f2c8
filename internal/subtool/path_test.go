package subtool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetNestedBuildsArrayAndObject(t *testing.T) {
	t.Parallel()
	root := SetNested(map[string]any{}, "date_ranges[0].start_date", "2025-11-01")
	dateRanges, ok := root["date_ranges"].([]any)
	require.True(t, ok)
	require.Len(t, dateRanges, 1)
	entry, ok := dateRanges[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2025-11-01", entry["start_date"])
}

func TestSetNestedGrowsArrayToRequiredLength(t *testing.T) {
	t.Parallel()
	root := SetNested(map[string]any{}, "a.b[2].c", "x")
	b, ok := root["a"].(map[string]any)["b"].([]any)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(b), 3)
	assert.Equal(t, "x", b[2].(map[string]any)["c"])
}

func TestSetNestedPlainKeyOverwrites(t *testing.T) {
	t.Parallel()
	root := SetNested(map[string]any{"x": "old"}, "x", "new")
	assert.Equal(t, "new", root["x"])
}

func TestSetNestedPreservesSiblingKeys(t *testing.T) {
	t.Parallel()
	root := SetNested(map[string]any{"keep": 1}, "nested.value", 2)
	assert.Equal(t, 1, root["keep"])
	assert.Equal(t, 2, root["nested"].(map[string]any)["value"])
}
