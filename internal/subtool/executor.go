package subtool

import (
	"context"
	"encoding/json"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/mcpclient"
	"github.com/mcpilot/core/internal/unwrap"
)

// Result is the outcome of one sub-tool Execute call: the published schema
// plus the projected, field-renamed data. ExtractionFallback is set when
// json_path evaluation returned undefined and the unwrapped payload was
// returned as-is instead (spec.md §4.3 step 4).
type Result struct {
	Schema             []OutputField
	ActualData         any
	ExtractionFallback bool
}

// Executor runs sub-tool calls against a Catalog by dispatching to an MCP
// Client Manager and applying the unwrap + extraction + rename pipeline
// (C2) to the parent tool's response.
type Executor struct {
	catalog *Catalog
	mcp     *mcpclient.Manager
}

// NewExecutor builds an Executor bound to catalog and mcp.
func NewExecutor(catalog *Catalog, mcp *mcpclient.Manager) *Executor {
	return &Executor{catalog: catalog, mcp: mcp}
}

// Execute runs the sub-tool named subToolID with the caller-supplied args,
// following spec.md §4.3's six-step algorithm.
func (e *Executor) Execute(ctx context.Context, subToolID string, args map[string]any) (Result, error) {
	st, ok := e.catalog.Get(subToolID)
	if !ok {
		return Result{}, agenterr.Errorf(agenterr.ToolNotFound, "no sub-tool registered for id %q", subToolID)
	}

	// Step 1: deep-clone parent_default_args into parent_args.
	parentArgs := deepCloneMap(st.ParentDefaultArgs)

	// Step 2: assign each supplied input at its declared map_to_parent_arg
	// path. Every missing required input is reported; requires_first
	// entries are not auto-fulfilled.
	var missingRequired []string
	for _, in := range st.Inputs {
		val, supplied := args[in.Name]
		if !supplied {
			if in.Required {
				missingRequired = append(missingRequired, in.Name)
			}
			continue
		}
		parentArgs = SetNested(parentArgs, in.MapToParentArg, val)
	}
	if len(missingRequired) > 0 {
		return Result{}, agenterr.Errorf(agenterr.ParentCallFailed, "sub-tool %q missing required inputs: %v", subToolID, missingRequired)
	}

	payload, err := json.Marshal(parentArgs)
	if err != nil {
		return Result{}, agenterr.Wrap(agenterr.ParentCallFailed, "marshal parent args", err)
	}

	// Step 3: call the parent tool via the MCP Client Manager.
	callResult, err := e.mcp.Call(ctx, st.ParentTool, payload)
	if err != nil {
		return Result{}, agenterr.Wrap(agenterr.ParentCallFailed, "parent tool call failed for "+st.ParentTool, err)
	}

	// Step 4: unwrap, then apply json_path to the unwrapped payload (not
	// the envelope). Fall back to the unwrapped payload on a miss.
	unwrapped := unwrap.Unwrap(callResult.Content)
	extracted, found := unwrap.ExtractPath(unwrapped, st.JSONPath)
	fallback := false
	if !found {
		extracted = unwrapped
		fallback = true
	}

	// Step 5: apply field renaming using output_fields.
	renamed := unwrap.RenameFields(extracted, toUnwrapFields(st.OutputFields))

	// Step 6: return {schema, actual_data}.
	return Result{Schema: st.OutputFields, ActualData: renamed, ExtractionFallback: fallback}, nil
}

func toUnwrapFields(fields []OutputField) []unwrap.OutputField {
	out := make([]unwrap.OutputField, len(fields))
	for i, f := range fields {
		out[i] = unwrap.OutputField{Name: f.Name, Path: f.Path, Type: f.Type, Description: f.Description}
	}
	return out
}

// deepCloneMap performs a JSON-roundtrip deep clone of a map[string]any,
// which is sufficient for the JSON-shaped values sub-tool default args
// always hold.
func deepCloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	var clone map[string]any
	if err := json.Unmarshal(data, &clone); err != nil {
		return map[string]any{}
	}
	return clone
}
