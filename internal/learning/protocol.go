// Package learning is the Learning Agent (C4): it drives an LLM in a bounded
// loop against a strict tagged-block protocol, executing the tool calls the
// model requests, accumulating the sub-tools/inputs/workflows it emits, and
// on completion partitions and writes one catalog file per MCP server
// (spec.md §4.4). Grounded on the teacher's runtime/agent/planner package for
// the general "bounded loop, parse one block, dispatch, feed the result back
// as the next turn" shape; the tagged-block sum type follows the host's own
// design note (spec.md §9) to model the parsed output as
// {ToolCall, WebBrowse, InputLearned, SubToolEmitted, WorkflowEmitted, Complete}
// rather than keep loosely-typed maps around.
package learning

import (
	"encoding/json"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
)

// BlockKind discriminates the six tagged blocks the Learning Agent protocol
// allows the model to emit.
type BlockKind string

const (
	BlockCallTool      BlockKind = "CALL_TOOL"
	BlockBrowseWeb     BlockKind = "BROWSE_WEB"
	BlockInputLearned  BlockKind = "INPUT_LEARNED"
	BlockSubTool       BlockKind = "SUB_TOOL"
	BlockWorkflow      BlockKind = "WORKFLOW"
	BlockComplete      BlockKind = "LEARNING_COMPLETE"
)

// allKinds is the fixed dispatch order used when scanning a completion for
// its first tagged block: whichever tag appears earliest in the text wins,
// matching how a single-block-per-turn protocol is meant to be read.
var allKinds = []BlockKind{
	BlockCallTool, BlockBrowseWeb, BlockInputLearned, BlockSubTool, BlockWorkflow, BlockComplete,
}

// Block is one parsed tagged-block emission: its kind and the raw JSON body
// between its open/close tags, left undecoded until the caller knows which
// payload shape to expect.
type Block struct {
	Kind BlockKind
	Body json.RawMessage
}

// ParseBlock scans text for the earliest-occurring tagged block among the
// six the protocol defines and returns it. Returns ok=false when text
// contains none of the recognized tags (the caller treats this as a
// malformed turn and retries).
func ParseBlock(text string) (Block, bool, error) {
	bestIdx := -1
	var bestKind BlockKind
	for _, k := range allKinds {
		if idx := strings.Index(text, "["+string(k)+"]"); idx >= 0 {
			if bestIdx < 0 || idx < bestIdx {
				bestIdx = idx
				bestKind = k
			}
		}
	}
	if bestIdx < 0 {
		return Block{}, false, nil
	}
	open := "[" + string(bestKind) + "]"
	closeTag := "[/" + string(bestKind) + "]"
	body := text[bestIdx+len(open):]
	if ci := strings.Index(body, closeTag); ci >= 0 {
		body = body[:ci]
	}
	body = strings.TrimSpace(body)
	if bestKind == BlockComplete && body == "" {
		return Block{Kind: bestKind, Body: json.RawMessage("{}")}, true, nil
	}
	if !json.Valid([]byte(body)) {
		return Block{}, false, agenterr.New(agenterr.ParseFailed, "learning agent block ["+string(bestKind)+"] is not valid JSON")
	}
	return Block{Kind: bestKind, Body: json.RawMessage(body)}, true, nil
}

// --- payload shapes ---

// CallToolPayload is the body of a [CALL_TOOL] block: a sanitized tool name
// and its arguments.
type CallToolPayload struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// BrowseWebPayload is the body of a [BROWSE_WEB] block.
type BrowseWebPayload struct {
	Query string `json:"query"`
}

// InputLearnedPayload is the body of an [INPUT_LEARNED] block: a documented
// input shared across one or more sub-tools of the MCP under study.
type InputLearnedPayload struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Required       bool     `json:"required"`
	Description    string   `json:"description"`
	MapToParentArg string   `json:"map_to_parent_arg"`
	Options        []string `json:"options,omitempty"`
	Format         string   `json:"format,omitempty"`
}

// SubToolPayload is the body of a [SUB_TOOL] block: everything the model
// declares about a new learned sub-tool, minus the id the host assigns.
type SubToolPayload struct {
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	ParentTool        string         `json:"parent_tool"`
	ParentDefaultArgs map[string]any `json:"parent_default_args"`
	Inputs            []InputPayload `json:"inputs"`
	JSONPath          string         `json:"json_path"`
	OutputFields      []OutputFieldPayload `json:"output_fields"`
}

// InputPayload mirrors subtool.Input's JSON shape for a [SUB_TOOL] block's
// nested input declarations.
type InputPayload struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Required       bool     `json:"required"`
	Description    string   `json:"description"`
	MapToParentArg string   `json:"map_to_parent_arg"`
	Options        []string `json:"options,omitempty"`
	Format         string   `json:"format,omitempty"`
	Default        any      `json:"default,omitempty"`
}

// OutputFieldPayload mirrors subtool.OutputField's JSON shape.
type OutputFieldPayload struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// WorkflowPayload is the body of a [WORKFLOW] block.
type WorkflowPayload struct {
	UserTask       string                 `json:"userTask"`
	Category       string                 `json:"category"`
	Steps          []string               `json:"steps"`
	AnswerTemplate string                 `json:"answerTemplate,omitempty"`
	DecisionPoints []DecisionPointPayload `json:"decisionPoints,omitempty"`
}

// DecisionPointPayload mirrors subtool.DecisionPoint's JSON shape.
type DecisionPointPayload struct {
	AfterStep string `json:"after_step"`
	Condition string `json:"condition"`
	Then      string `json:"then"`
}

// CompletePayload is the body of a [LEARNING_COMPLETE] block: free-text
// insights about the MCP's behavior, gathered over the run.
type CompletePayload struct {
	Insights string `json:"insights,omitempty"`
}
