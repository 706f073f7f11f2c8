package execagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/analysis"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/subtool"
	"github.com/mcpilot/core/internal/variable"
	"github.com/mcpilot/core/internal/visual"
)

// uiToolNames are the built-in tools C10 renders directly (spec.md §4.7's
// "UI tool" dispatch branch).
var uiToolNames = map[string]bool{"table": true, "line-chart": true, "card": true, "alert": true}

// Dispatcher owns the backends an Executor call resolves against: the
// sub-tool catalog/executor (C3), and the model client used by the llm/
// extractor branches (C8/C9/C10).
type Dispatcher struct {
	Catalog  *subtool.Catalog
	SubTools *subtool.Executor
	Client   model.Client
}

// Outcome is what a dispatched Call produced: a reply for the Pilot, and
// zero or more rendered DSL strings pushed to the output channel (spec.md
// §4.7's data flow: "produces variable or DSL → back to C6").
type Outcome struct {
	Reply string
	DSL   []string
}

// Dispatch executes call against the right backend and mutates vars with
// whatever it stores, per spec.md §4.7's dispatch table.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call, vars *variable.Store) (Outcome, error) {
	switch {
	case call.ToolName == "llm":
		return d.dispatchAnalysis(ctx, call, vars)
	case call.ToolName == "extractor":
		return d.dispatchExtractor(ctx, call, vars)
	case uiToolNames[call.ToolName]:
		return d.dispatchUI(call, vars)
	default:
		return d.dispatchSubTool(ctx, call, vars)
	}
}

// --- sub-tool call ---

func (d *Dispatcher) dispatchSubTool(ctx context.Context, call Call, vars *variable.Store) (Outcome, error) {
	st, ok := d.Catalog.FindByName(call.ToolName)
	if !ok {
		return Outcome{}, agenterr.Errorf(agenterr.ToolNotFound, "no sub-tool named %q", call.ToolName)
	}
	declared := make([]string, len(st.Inputs))
	for i, in := range st.Inputs {
		declared[i] = in.Name
	}
	args := PositionalNames(call.Args, declared)

	inputs := make(map[string]any, len(args))
	for _, a := range args {
		inputs[a.Key] = coerceArgValue(a.Value, vars)
	}

	result, err := d.SubTools.Execute(ctx, st.ID, inputs)
	if err != nil {
		return Outcome{}, err
	}
	if call.VariableName == "" {
		return Outcome{Reply: "Done."}, nil
	}
	vars.Put(variable.Variable{
		Name:        call.VariableName,
		Schema:      toFieldSchema(result.Schema),
		ActualData:  result.ActualData,
		Description: "from " + st.Name,
		CreatedBy:   st.Name,
	})
	return Outcome{Reply: fmt.Sprintf("Stored in `%s`. Available: %s", call.VariableName, fieldList(call.VariableName, result.Schema))}, nil
}

func toFieldSchema(fields []subtool.OutputField) map[string]variable.FieldSchema {
	out := make(map[string]variable.FieldSchema, len(fields))
	for _, f := range fields {
		out[f.Name] = variable.FieldSchema{Description: f.Description, DataType: f.Type, SourcePath: f.Path}
	}
	return out
}

func fieldList(varName string, fields []subtool.OutputField) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s[%s]", varName, f.Name)
	}
	return strings.Join(parts, ", ")
}

// coerceArgValue resolves a reference argument against vars (projecting the
// referenced field), parses a numeric literal, or passes the raw string
// through unchanged.
func coerceArgValue(raw string, vars *variable.Store) any {
	if name, field, ok := IsReference(raw); ok {
		if v, found := vars.Get(name); found {
			return projectField(v.ActualData, field)
		}
		return raw
	}
	if n, ok := AsNumber(raw); ok {
		return n
	}
	return raw
}

func projectField(data any, field string) any {
	if field == "" {
		return data
	}
	if m, ok := data.(map[string]any); ok {
		return m[field]
	}
	return data
}

// --- data analysis agent (llm(...)) ---

func (d *Dispatcher) dispatchAnalysis(ctx context.Context, call Call, vars *variable.Store) (Outcome, error) {
	question := argValue(call.Args, "question")
	sources, err := resolveDataRefs(argValue(call.Args, "data"), vars)
	if err != nil {
		return Outcome{}, err
	}

	ops, err := analysis.Plan(ctx, d.Client, question, sources)
	if err != nil {
		return Outcome{}, err
	}

	aStore := variable.NewAnalysisStore()
	for _, v := range sources {
		aStore.Put(analysis.FromVariable(v))
	}
	results := analysis.Run(aStore, ops)

	report, err := visual.Generate(ctx, d.Client, question, results)
	if err != nil {
		return Outcome{}, err
	}
	dsl, err := visual.RenderAll(report, aStore, vars)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Reply: report.Summary, DSL: dsl}, nil
}

// --- single-shot extractor ---

func (d *Dispatcher) dispatchExtractor(ctx context.Context, call Call, vars *variable.Store) (Outcome, error) {
	extractText := argValue(call.Args, "extract")
	sources, err := resolveDataRefs(argValue(call.Args, "data"), vars)
	if err != nil {
		return Outcome{}, err
	}
	inlined := make(map[string]any, len(sources))
	for _, v := range sources {
		inlined[v.Name] = v.ActualData
	}
	payload, err := json.Marshal(inlined)
	if err != nil {
		return Outcome{}, agenterr.Wrap(agenterr.ParseFailed, "marshal extractor data", err)
	}

	resp, err := d.Client.Complete(ctx, &model.Request{
		System: "You extract a single value from the provided JSON data per the instruction. " +
			"Respond with only the extracted value as plain text, or exactly NOT_FOUND if it is not present.",
		Messages: []model.Message{
			{Role: model.RoleUser, Text: "Data: " + string(payload) + "\n\nExtract: " + extractText},
		},
		ModelClass:  model.ModelClassSmall,
		Temperature: 0,
	})
	if err != nil {
		return Outcome{}, agenterr.Wrap(agenterr.LLMEmptyOrError, "extractor completion failed", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" || text == "NOT_FOUND" {
		return Outcome{Reply: "NOT_FOUND"}, nil
	}
	if call.VariableName != "" {
		vars.Put(variable.Variable{Name: call.VariableName, ActualData: text, Description: "extracted: " + extractText, CreatedBy: "extractor"})
	}
	return Outcome{Reply: fmt.Sprintf("Stored in '%s'", call.VariableName)}, nil
}

// --- direct UI render ---

func (d *Dispatcher) dispatchUI(call Call, vars *variable.Store) (Outcome, error) {
	dsl, err := visual.Render(visual.Visual{Kind: call.ToolName, Args: call.Args}, variable.NewAnalysisStore(), vars)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Reply: "Displayed to user", DSL: []string{dsl}}, nil
}

// --- shared helpers ---

func argValue(args []Arg, key string) string {
	for _, a := range args {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// resolveDataRefs parses a `[name, name2]` or bare `name` data argument into
// the full conversational Variables it names.
func resolveDataRefs(raw string, vars *variable.Store) ([]variable.Variable, error) {
	raw = strings.TrimSpace(raw)
	var names []string
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		for _, n := range strings.Split(raw[1:len(raw)-1], ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	} else if raw != "" {
		names = []string{raw}
	}

	out := make([]variable.Variable, 0, len(names))
	for _, n := range names {
		v, ok := vars.Get(n)
		if !ok {
			return nil, agenterr.Errorf(agenterr.ColumnNotFound, "unknown data reference: %s", n)
		}
		out = append(out, v)
	}
	return out, nil
}
