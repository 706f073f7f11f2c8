package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/mcpclient"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/subtool"
)

// maxIterations bounds the Learning Agent loop (spec.md §4.4: "≤ 50
// iterations").
const maxIterations = 50

// maxParseRetries bounds how many times, within one iteration, the host
// re-prompts after a completion that carried no recognizable tagged block,
// mirroring the Pilot's retry-on-unparseable-turn policy (spec.md §4.6).
const maxParseRetries = 3

// EventKind discriminates a Learning Agent progress event (spec.md §4.4).
type EventKind string

const (
	EventToolCall        EventKind = "tool_call"
	EventToolResponse     EventKind = "tool_response"
	EventSubToolCreated  EventKind = "subtool_created"
	EventInputDocumented EventKind = "input_documented"
)

// Event is one progress update emitted during a learning run.
type Event struct {
	Kind    EventKind
	Tool    string
	Name    string
	Message string
}

// Sink receives progress events as a learning run executes. Callers that do
// not need progress reporting may pass a nil Sink.
type Sink func(Event)

// Result is everything accumulated by one complete learning run, prior to
// per-MCP partitioning.
type Result struct {
	SubTools         []subtool.SubTool
	DocumentedInputs []subtool.Input
	Workflows        []subtool.Workflow
	Insights         string
}

// Run drives client through the Learning Agent protocol against mcp's tool
// catalog, starting from an initial prompt describing the MCP(s) to learn.
// It executes [CALL_TOOL] requests against mcp, accumulates
// [INPUT_LEARNED]/[SUB_TOOL]/[WORKFLOW] emissions, and returns once
// [LEARNING_COMPLETE] is observed or the iteration bound is reached.
func Run(ctx context.Context, client model.Client, mcp *mcpclient.Manager, initialPrompt string, sink Sink) (Result, error) {
	sysPrompt := buildSystemPrompt()
	messages := []model.Message{{Role: model.RoleUser, Text: initialPrompt}}

	var result Result

	for iter := 0; iter < maxIterations; iter++ {
		block, err := completeAndParse(ctx, client, sysPrompt, messages)
		if err != nil {
			return result, err
		}

		switch block.Kind {
		case BlockCallTool:
			var p CallToolPayload
			if err := json.Unmarshal(block.Body, &p); err != nil {
				messages = append(messages, errorTurn(block.Kind, err))
				continue
			}
			emit(sink, Event{Kind: EventToolCall, Tool: p.Tool})
			argsJSON, err := json.Marshal(p.Args)
			if err != nil {
				messages = append(messages, errorTurn(block.Kind, err))
				continue
			}
			callResult, callErr := mcp.Call(ctx, p.Tool, argsJSON)
			messages = append(messages, assistantTurn(block), toolResultTurn(p.Tool, callResult, callErr))
			emit(sink, Event{Kind: EventToolResponse, Tool: p.Tool})

		case BlockBrowseWeb:
			var p BrowseWebPayload
			_ = json.Unmarshal(block.Body, &p)
			messages = append(messages, assistantTurn(block),
				model.Message{Role: model.RoleUser, Text: "Web browsing is not available in this environment. Proceed using only the connected MCP tools."})

		case BlockInputLearned:
			var p InputLearnedPayload
			if err := json.Unmarshal(block.Body, &p); err != nil {
				messages = append(messages, errorTurn(block.Kind, err))
				continue
			}
			result.DocumentedInputs = append(result.DocumentedInputs, subtool.Input{
				Name: p.Name, Type: subtool.InputType(p.Type), Required: p.Required,
				Description: p.Description, MapToParentArg: p.MapToParentArg,
				Options: p.Options, Format: p.Format,
			})
			emit(sink, Event{Kind: EventInputDocumented, Name: p.Name})
			messages = append(messages, assistantTurn(block), ackTurn("Recorded input "+p.Name+"."))

		case BlockSubTool:
			var p SubToolPayload
			if err := json.Unmarshal(block.Body, &p); err != nil {
				messages = append(messages, errorTurn(block.Kind, err))
				continue
			}
			st := subtool.SubTool{
				ID:                uuid.NewString(),
				Name:              p.Name,
				Description:       p.Description,
				ParentTool:        p.ParentTool,
				ParentDefaultArgs: p.ParentDefaultArgs,
				JSONPath:          p.JSONPath,
			}
			for _, in := range p.Inputs {
				st.Inputs = append(st.Inputs, subtool.Input{
					Name: in.Name, Type: subtool.InputType(in.Type), Required: in.Required,
					Description: in.Description, MapToParentArg: in.MapToParentArg,
					Options: in.Options, Format: in.Format, Default: in.Default,
				})
			}
			for _, of := range p.OutputFields {
				st.OutputFields = append(st.OutputFields, subtool.OutputField{
					Name: of.Name, Path: of.Path, Type: of.Type, Description: of.Description,
				})
			}
			result.SubTools = append(result.SubTools, st)
			emit(sink, Event{Kind: EventSubToolCreated, Name: p.Name})
			messages = append(messages, assistantTurn(block), ackTurn("Sub-tool "+p.Name+" recorded."))

		case BlockWorkflow:
			var p WorkflowPayload
			if err := json.Unmarshal(block.Body, &p); err != nil {
				messages = append(messages, errorTurn(block.Kind, err))
				continue
			}
			wf := subtool.Workflow{
				ID: uuid.NewString(), UserTask: p.UserTask, Category: p.Category,
				Steps: p.Steps, AnswerTemplate: p.AnswerTemplate,
			}
			for _, dp := range p.DecisionPoints {
				wf.DecisionPoints = append(wf.DecisionPoints, subtool.DecisionPoint{
					AfterStep: dp.AfterStep, Condition: dp.Condition, Then: dp.Then,
				})
			}
			result.Workflows = append(result.Workflows, wf)
			messages = append(messages, assistantTurn(block), ackTurn("Workflow recorded."))

		case BlockComplete:
			var p CompletePayload
			_ = json.Unmarshal(block.Body, &p)
			result.Insights = p.Insights
			return result, nil
		}
	}
	return result, agenterr.New(agenterr.StepCapReached, "learning run exceeded the iteration bound without LEARNING_COMPLETE")
}

// completeAndParse requests one completion and parses its first tagged
// block, retrying (with the same history) up to maxParseRetries times on an
// empty, errored, or unparseable response.
func completeAndParse(ctx context.Context, client model.Client, sysPrompt string, messages []model.Message) (Block, error) {
	var lastErr error
	for attempt := 0; attempt < maxParseRetries; attempt++ {
		resp, err := client.Complete(ctx, &model.Request{
			System:      sysPrompt,
			Messages:    messages,
			ModelClass:  model.ModelClassDefault,
			Temperature: 0.2,
		})
		if err != nil {
			lastErr = err
			continue
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			lastErr = agenterr.New(agenterr.LLMEmptyOrError, "empty learning agent completion")
			continue
		}
		block, ok, err := ParseBlock(text)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			lastErr = agenterr.New(agenterr.ParseFailed, "no recognized tagged block in learning agent completion")
			continue
		}
		return block, nil
	}
	return Block{}, agenterr.Wrap(agenterr.LLMEmptyOrError, "learning agent completion failed after retries", lastErr)
}

func assistantTurn(b Block) model.Message {
	return model.Message{Role: model.RoleAssistant, Text: fmt.Sprintf("[%s]%s[/%s]", b.Kind, string(b.Body), b.Kind)}
}

func ackTurn(text string) model.Message {
	return model.Message{Role: model.RoleUser, Text: text}
}

func errorTurn(kind BlockKind, err error) model.Message {
	return model.Message{Role: model.RoleUser, Text: fmt.Sprintf("Your [%s] block could not be processed: %s. Please retry.", kind, err.Error())}
}

// toolResultTurn renders a [CALL_TOOL] result as the next user turn, a
// fenced JSON block carrying the full payload (spec.md §4.4: "injects the
// result as the next user turn").
func toolResultTurn(tool string, result mcpclient.ToolCallResult, callErr error) model.Message {
	if callErr != nil {
		return model.Message{Role: model.RoleUser, Text: fmt.Sprintf("Tool call to %q failed: %s", tool, callErr.Error())}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return model.Message{Role: model.RoleUser, Text: fmt.Sprintf("Tool call to %q succeeded but the result could not be serialized: %s", tool, err.Error())}
	}
	return model.Message{Role: model.RoleUser, Text: "```json\n" + string(data) + "\n```"}
}

func emit(sink Sink, e Event) {
	if sink != nil {
		sink(e)
	}
}

// buildSystemPrompt renders the Learning Agent's system prompt: the protocol
// grammar and the reminder that json_path is evaluated against the
// already-unwrapped payload (spec.md §4.4 edge case).
func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the Learning Agent. Explore the connected MCP server's tools by calling them, ")
	b.WriteString("then document reusable, focused sub-tools over them. Respond with exactly one tagged block per turn:\n\n")
	b.WriteString("[CALL_TOOL]{\"tool\": \"<sanitized tool name>\", \"args\": {...}}[/CALL_TOOL]\n")
	b.WriteString("[BROWSE_WEB]{\"query\": \"...\"}[/BROWSE_WEB]\n")
	b.WriteString("[INPUT_LEARNED]{\"name\", \"type\", \"required\", \"description\", \"map_to_parent_arg\", ...}[/INPUT_LEARNED]\n")
	b.WriteString("[SUB_TOOL]{\"name\", \"description\", \"parent_tool\", \"parent_default_args\", \"inputs\", \"json_path\", \"output_fields\"}[/SUB_TOOL]\n")
	b.WriteString("[WORKFLOW]{\"userTask\", \"category\", \"steps\", \"answerTemplate\", \"decisionPoints\"}[/WORKFLOW]\n")
	b.WriteString("[LEARNING_COMPLETE]{\"insights\": \"...\"}[/LEARNING_COMPLETE]\n\n")
	b.WriteString("IMPORTANT: json_path in a [SUB_TOOL] block is evaluated against the already-unwrapped tool response, never the raw MCP envelope.\n")
	return b.String()
}
