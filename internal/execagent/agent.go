package execagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/subtool"
)

// BuiltinTools are the tool names the Executor recognizes outside the
// learned sub-tool catalog (spec.md §4.7).
var BuiltinTools = []string{"llm", "extractor", "table", "line-chart", "card", "alert"}

// builtinDocs are the fixed one-line descriptions for the tools C7 recognizes
// without consulting the sub-tool catalog.
var builtinDocs = map[string]string{
	"llm":        "llm(data: [var, ...], question: \"...\") — run a data analysis question over one or more stored tables/columns, returns a summary and pushes any visualizations to the DSL channel.",
	"extractor":  "extractor(data: [var, ...], extract: \"...\") — pull a single described value out of stored data with one LLM call.",
	"table":      "table(Label: ref, ... | data: ref) — display a table, either zipping labeled column references or serializing a table variable directly.",
	"line-chart": "line-chart(x: ref, y: ref, label: \"...\") — display a line chart from two column references.",
	"card":       "card(title: \"...\", value: ref_or_literal) — display a single labeled value.",
	"alert":      "alert(severity: \"info|warning|error\", message: \"...\") — display a short banner.",
}

// RenderToolDocs renders one documentation line per name in names: the fixed
// builtin description when name is a builtin tool, otherwise a sub-tool's
// declared inputs when name matches a catalog entry. Unknown names are
// skipped.
func RenderToolDocs(names []string, catalog *subtool.Catalog) string {
	var b strings.Builder
	for _, name := range names {
		if doc, ok := builtinDocs[name]; ok {
			b.WriteString(doc)
			b.WriteString("\n")
			continue
		}
		if catalog == nil {
			continue
		}
		st, ok := catalog.FindByName(name)
		if !ok {
			continue
		}
		params := make([]string, len(st.Inputs))
		for i, in := range st.Inputs {
			params[i] = fmt.Sprintf("%s: %s", in.Name, in.Type)
		}
		fmt.Fprintf(&b, "%s(%s) — %s\n", st.Name, strings.Join(params, ", "), st.Description)
	}
	return b.String()
}

// CandidateTools returns the names among subToolNames and BuiltinTools that
// instruction plausibly mentions, via case-insensitive substring match.
func CandidateTools(instruction string, subToolNames []string) []string {
	lower := strings.ToLower(instruction)
	var out []string
	for _, name := range append(append([]string{}, subToolNames...), BuiltinTools...) {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			out = append(out, name)
		}
	}
	return out
}

// Translate asks client to translate a single Pilot instruction into the
// compact call syntax and parses the result. toolDocs is the rendered
// documentation for CandidateTools(instruction, ...), inlined into the
// system prompt so the model only ever sees tools plausibly relevant to
// this instruction.
func Translate(ctx context.Context, client model.Client, instruction string, toolDocs string) (Call, error) {
	sysPrompt := "You translate one instruction into exactly one tool call using this syntax:\n" +
		"[var_name:] tool_name(arg1: value1, arg2: value2, ...)\n" +
		"DONE: <brief report>\n\n" +
		"Values may be literals, quoted strings, or var_name[field] references to a known variable's field. " +
		"Emit nothing except the call and the DONE line.\n\n" +
		"Tools you may use:\n" + toolDocs

	resp, err := client.Complete(ctx, &model.Request{
		System:      sysPrompt,
		Messages:    []model.Message{{Role: model.RoleUser, Text: instruction}},
		ModelClass:  model.ModelClassSmall,
		Temperature: 0,
	})
	if err != nil {
		return Call{}, agenterr.Wrap(agenterr.LLMEmptyOrError, "executor completion failed", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Call{}, agenterr.New(agenterr.LLMEmptyOrError, "executor completion was empty")
	}
	return Parse(text)
}
