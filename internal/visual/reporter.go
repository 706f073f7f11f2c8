package visual

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/analysis"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/variable"
)

const reporterSystemPrompt = `You write a short report from data analysis execution results. Inline numbers
directly; refer to columns and tables by their variable name rather than repeating their values.
Respond with exactly this shape:

[report]
VISUAL_1: card(title: "…", value: …)
VISUAL_2: table(data: some_table_var)
VISUAL_3: line-chart(x: some_column, y: other_column, label: "…")
[/report]
[summary]
One or two sentences a user would read, in plain language.
[/summary]

Use as many or as few VISUAL_n blocks as the results warrant. Only reference variable names that
appear in the execution results below.`

// Generate asks client to write a report over question and the analysis
// Results, then parses its completion into a Report via ParseReport
// (spec.md §4.8 "Reporter pass").
func Generate(ctx context.Context, client model.Client, question string, results []analysis.Result) (Report, error) {
	resp, err := client.Complete(ctx, &model.Request{
		System: reporterSystemPrompt,
		Messages: []model.Message{
			{Role: model.RoleUser, Text: "Question: " + question + "\n\nExecution results:\n" + renderResults(results)},
		},
		ModelClass:  model.ModelClassDefault,
		Temperature: 0.3,
	})
	if err != nil {
		return Report{}, agenterr.Wrap(agenterr.LLMEmptyOrError, "reporter completion failed", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Report{}, agenterr.New(agenterr.LLMEmptyOrError, "reporter completion was empty")
	}
	return ParseReport(text)
}

// renderResults renders each operation result as a line the reporter model
// can read: numbers inlined, columns/tables referenced by name only, and
// failed operations surfaced as their error string (spec.md §4.8, §7).
func renderResults(results []analysis.Result) string {
	var b strings.Builder
	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(&b, "%s: ERROR (%s)\n", r.Op.OutputVar, r.Err)
			continue
		}
		switch r.Value.Kind {
		case variable.AnalysisNumber:
			fmt.Fprintf(&b, "%s = %.2f\n", r.Op.OutputVar, r.Value.Number)
		case variable.AnalysisColumn:
			fmt.Fprintf(&b, "%s: column (%d values)\n", r.Op.OutputVar, len(r.Value.Column))
		case variable.AnalysisTable:
			fmt.Fprintf(&b, "%s: table (%d rows, columns: %s)\n", r.Op.OutputVar, len(r.Value.Table), strings.Join(r.Value.Columns, ", "))
		}
		if r.Value.Note != "" {
			fmt.Fprintf(&b, "  note: %s\n", r.Value.Note)
		}
	}
	return b.String()
}
