package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReportExtractsVisualsAndSummary(t *testing.T) {
	t.Parallel()
	text := `[report]
VISUAL_1: card(title: "Q1 Revenue", value: q1_total)
VISUAL_2: table(data: report_table)
[/report]
[summary]
Revenue grew 25% quarter over quarter.
[/summary]`

	r, err := ParseReport(text)
	require.NoError(t, err)
	require.Len(t, r.Visuals, 2)
	assert.Equal(t, "VISUAL_1", r.Visuals[0].Label)
	assert.Equal(t, "card", r.Visuals[0].Kind)
	assert.Equal(t, "VISUAL_2", r.Visuals[1].Label)
	assert.Equal(t, "table", r.Visuals[1].Kind)
	assert.Equal(t, "Revenue grew 25% quarter over quarter.", r.Summary)
}

func TestParseReportHandlesMultilineVisualArgs(t *testing.T) {
	t.Parallel()
	text := "[report]\nVISUAL_1: line-chart(\n  x: labels,\n  y: totals,\n  label: \"Revenue\"\n)\n[/report]\n[summary]ok[/summary]"
	r, err := ParseReport(text)
	require.NoError(t, err)
	require.Len(t, r.Visuals, 1)
	assert.Equal(t, "line-chart", r.Visuals[0].Kind)
	require.Len(t, r.Visuals[0].Args, 3)
}

func TestParseReportNoVisualsStillParsesSummary(t *testing.T) {
	t.Parallel()
	text := "[report]\n[/report]\n[summary]nothing to show[/summary]"
	r, err := ParseReport(text)
	require.NoError(t, err)
	assert.Empty(t, r.Visuals)
	assert.Equal(t, "nothing to show", r.Summary)
}
