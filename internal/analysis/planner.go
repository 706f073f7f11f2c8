package analysis

import (
	"context"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/variable"
)

const plannerSystemPrompt = `You are a data analysis planner. You receive table previews of the
variables available for this question and must emit a plan: exactly one operation per line, of
the form

  output_var: op(arg, …)  # optional comment

Supported operations:
  sum, average, max, min, count(var[col])            -> number
  difference, ratio, percentage, pct_change(a, b)     -> number
  filter(var[col], "<op> <value>")                    -> column   (op is one of > < >= <= = !=)
  sort_asc, sort_desc(var[col])                       -> column
  add, subtract, multiply, divide(var[col], number)   -> column
  add, subtract, multiply, divide(var1[c1], var2[c2]) -> column
  table(Label: ref, Label2: ref2, …)                  -> table

Reference a previously computed output_var directly by name (no [col]) when it is already a
number. Emit only the plan lines, nothing else.`

// Plan asks client to compile a data analysis plan for question over the
// given source variables, rendering a table preview of each for context, and
// parses the result into an ordered Operation list (spec.md §4.8 "Planner
// pass").
func Plan(ctx context.Context, client model.Client, question string, sources []variable.Variable) ([]Operation, error) {
	var previews strings.Builder
	for _, v := range sources {
		previews.WriteString(Preview(v))
		previews.WriteString("\n")
	}

	resp, err := client.Complete(ctx, &model.Request{
		System: plannerSystemPrompt,
		Messages: []model.Message{
			{Role: model.RoleUser, Text: previews.String() + "\nQuestion: " + question},
		},
		ModelClass:  model.ModelClassHighReasoning,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, agenterr.Wrap(agenterr.LLMEmptyOrError, "planner completion failed", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, agenterr.New(agenterr.LLMEmptyOrError, "planner completion was empty")
	}
	return ParsePlan(text)
}
