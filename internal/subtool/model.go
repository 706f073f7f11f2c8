// Package subtool is the Sub-tool Catalog & Executor (C3): it loads the
// sub-tool catalog written by the Learning Agent (C4), merges caller-
// supplied inputs into a parent MCP tool's default arguments, invokes the
// parent through the MCP Client Manager (C1), and projects the unwrapped
// response (C2) down to a published schema.
package subtool

import "encoding/json"

// InputType enumerates the kinds of input a SubTool declares.
type InputType string

const (
	InputEnum      InputType = "enum"
	InputString    InputType = "string"
	InputNumber    InputType = "number"
	InputDate      InputType = "date"
	InputReference InputType = "reference"
	InputFormat    InputType = "format"
)

// InputSource documents where a reference-typed input's value is expected
// to come from: another sub-tool's output field.
type InputSource struct {
	Tool     string `json:"tool"`
	FromPath string `json:"from_path"`
}

// Input is one declared input of a SubTool.
type Input struct {
	Name          string      `json:"name"`
	Type          InputType   `json:"type"`
	Required      bool        `json:"required"`
	Description   string      `json:"description"`
	MapToParentArg string     `json:"map_to_parent_arg"`
	Options       []string    `json:"options,omitempty"`
	Format        string      `json:"format,omitempty"`
	Source        InputSource `json:"source,omitempty"`
	Default       any         `json:"default,omitempty"`
}

// RequiresFirst is one entry of a SubTool's informational dependency list:
// the executor does not auto-fulfill these; it reports every missing
// required input, whether or not it depends on one.
type RequiresFirst struct {
	SubTool     string `json:"sub_tool"`
	Reason      string `json:"reason"`
	ExtractField string `json:"extract_field"`
	FromPath    string `json:"from_path"`
}

// OutputField is one field of a SubTool's published output schema.
type OutputField struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SubTool is a learned, declarative wrapper around a parent MCP tool
// (spec.md §3 "SubTool"). It is immutable during a run; re-learning an
// MCP registers that MCP's new catalog file through Catalog.Put.
type SubTool struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	ParentTool        string          `json:"parent_tool"`
	ParentDefaultArgs map[string]any  `json:"parent_default_args"`
	RequiresFirst     []RequiresFirst `json:"requires_first"`
	Inputs            []Input         `json:"inputs"`
	JSONPath          string          `json:"json_path"`
	OutputFields      []OutputField   `json:"output_fields"`
	OutputExample     json.RawMessage `json:"output_example,omitempty"`
}

// DecisionPoint documents one branch a workflow's steps take depending on
// an earlier result (spec.md §6 learning file schema).
type DecisionPoint struct {
	AfterStep string `json:"after_step"`
	Condition string `json:"condition"`
	Then      string `json:"then"`
}

// Workflow is a learned multi-sub-tool sequence, persisted alongside
// sub-tools but not executed directly by this package (the Executor Agent,
// C7, and Learning Agent, C4, reference it for planning).
type Workflow struct {
	ID             string           `json:"id"`
	UserTask       string           `json:"userTask"`
	Category       string           `json:"category"`
	Steps          []string         `json:"steps"`
	AnswerTemplate string           `json:"answerTemplate,omitempty"`
	DecisionPoints []DecisionPoint  `json:"decisionPoints,omitempty"`
}

// OriginalTool is one MCP-native tool discovered via tools/list, recorded
// for reference alongside the sub-tools learned against it.
type OriginalTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CatalogFile is the per-MCP persisted shape written by the Learning Agent
// and read back on startup (spec.md §4.4/§6): `{mcpName, version, learnedAt,
// modelUsed, originalTools, subTools, documentedInputs, workflows,
// insights}`.
type CatalogFile struct {
	MCPName          string         `json:"mcpName"`
	Version          int            `json:"version"`
	LearnedAt        string         `json:"learnedAt"`
	ModelUsed        string         `json:"modelUsed"`
	OriginalTools    []OriginalTool `json:"originalTools"`
	SubTools         []SubTool      `json:"subTools"`
	DocumentedInputs []Input        `json:"documentedInputs"`
	Workflows        []Workflow     `json:"workflows"`
	Insights         string         `json:"insights"`
}
