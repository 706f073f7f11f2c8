package orchestrator

import (
	"context"
	"time"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/execagent"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/pilot"
	"github.com/mcpilot/core/internal/subtool"
)

// dateOverrideKey lets tests pin CurrentDate for deterministic Pilot
// prompts; production callers never set it and get the wall-clock date.
type dateOverrideKey struct{}

// WithCurrentDate returns a context carrying a fixed date string for the
// Pilot's "today's date is ..." prompt line, bypassing the wall clock.
func WithCurrentDate(ctx context.Context, date string) context.Context {
	return context.WithValue(ctx, dateOverrideKey{}, date)
}

func currentDateRFC3339(ctx context.Context) string {
	if v, ok := ctx.Value(dateOverrideKey{}).(string); ok && v != "" {
		return v
	}
	return time.Now().UTC().Format("2006-01-02")
}

// maxPilotTurns bounds the Pilot/Executor cycle per incoming message
// (spec.md §4.6 "Budgeting": "maximum 10 Pilot turns per user message").
const maxPilotTurns = 10

const cannedStepCapMessage = "I wasn't able to finish this within my step budget. Here's what I have so far; let me know if you'd like me to keep going."

// Orchestrator drives the Pilot/Executor state machine described in
// spec.md §4.10 for one session at a time, dispatching Executor calls
// through Dispatcher and resolving candidate tool documentation from
// Catalog.
type Orchestrator struct {
	Sessions   *Manager
	Catalog    *subtool.Catalog
	Dispatcher *execagent.Dispatcher
	Client     model.Client
}

// Complete is the terminal result of one RunTurn invocation: the DSL
// accumulated across every Executor call this turn, the Pilot's final
// user-facing message, and the updated history (spec.md §6: the terminal
// event for `/tool-calling-agent` is `{type:"complete", dsl, message,
// history}`).
type Complete struct {
	DSL     []string
	Message string
	History []pilot.Turn
}

// RunTurn processes one inbound user message for sessionID. inboundHistoryLen
// is the length of the caller-supplied history for this request, used to
// detect a new session (spec.md §4.10 step 1: length ≤ 1 resets per-session
// stores). It drives the Pilot loop until REPLY or the step cap, emitting
// progress events to sink in causal order, and returns the accumulated
// result.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID string, inboundHistoryLen int, userMessage string, sink Sink) (Complete, error) {
	state := o.Sessions.Session(sessionID, inboundHistoryLen)

	toolNames := append([]string{}, execagent.BuiltinTools...)
	for _, st := range o.Catalog.All() {
		toolNames = append(toolNames, st.Name)
	}

	latest := userMessage
	var dsl []string

	for turn := 0; turn < maxPilotTurns; turn++ {
		emit(sink, EventPilotThinking, nil)

		decision, err := pilot.Decide(ctx, o.Client, pilot.Request{
			ToolNames:         toolNames,
			VariableSummaries: state.Vars.Summaries(),
			CurrentDate:       currentDateRFC3339(ctx),
			History:           state.History,
			Latest:            latest,
		})
		if err != nil {
			emit(sink, EventError, map[string]any{"message": err.Error()})
			return Complete{}, err
		}

		if decision.Kind == pilot.KindReply {
			state.History = append(state.History,
				pilot.Turn{Role: model.RoleUser, Text: latest},
				pilot.Turn{Role: model.RoleAssistant, Text: decision.Message})
			emit(sink, EventPilotResponse, map[string]any{"message": decision.Message})
			emit(sink, EventComplete, map[string]any{"dsl": dsl, "message": decision.Message})
			return Complete{DSL: dsl, Message: decision.Message, History: state.History}, nil
		}

		instruction := decision.Instruction
		emit(sink, EventPilotInstructingExecutor, map[string]any{"instruction": instruction})
		if !pilot.Validate(instruction) {
			latest = "Your instruction contained code syntax, which is not allowed. Restate it as one plain-language action."
			continue
		}

		candidates := execagent.CandidateTools(instruction, toolNames)
		docs := execagent.RenderToolDocs(candidates, o.Catalog)

		emit(sink, EventExecutorCallingTool, map[string]any{"instruction": instruction})
		call, err := execagent.Translate(ctx, o.Client, instruction, docs)
		if err != nil {
			latest = "EXECUTOR_ERROR: " + errString(err)
			emit(sink, EventExecutorToolResult, map[string]any{"error": latest})
			state.History = append(state.History,
				pilot.Turn{Role: model.RoleUser, Text: latest},
				pilot.Turn{Role: model.RoleAssistant, Text: instruction})
			continue
		}

		emit(sink, EventToolCalling, map[string]any{"tool": call.ToolName})
		if call.ToolName == "llm" {
			emit(sink, EventAnalysisPhase, map[string]any{"phase": "planning"})
		}

		outcome, dispatchErr := o.Dispatcher.Dispatch(ctx, call, state.Vars)
		if dispatchErr != nil {
			report := "TOOL_ERROR: " + errString(dispatchErr)
			emit(sink, EventToolError, map[string]any{"tool": call.ToolName, "error": report})
			latest = report
			state.History = append(state.History,
				pilot.Turn{Role: model.RoleUser, Text: instruction},
				pilot.Turn{Role: model.RoleAssistant, Text: report})
			continue
		}
		emit(sink, EventToolSuccess, map[string]any{"tool": call.ToolName, "report": outcome.Reply})

		if len(outcome.DSL) > 0 {
			for _, d := range outcome.DSL {
				emit(sink, EventUICreating, map[string]any{"dsl": d})
			}
			dsl = append(dsl, outcome.DSL...)
		}

		latest = outcome.Reply
		state.History = append(state.History,
			pilot.Turn{Role: model.RoleUser, Text: instruction},
			pilot.Turn{Role: model.RoleAssistant, Text: outcome.Reply})
	}

	emit(sink, EventComplete, map[string]any{"dsl": dsl, "message": cannedStepCapMessage})
	return Complete{DSL: dsl, Message: cannedStepCapMessage, History: state.History},
		agenterr.New(agenterr.StepCapReached, "pilot loop exceeded its per-message turn budget")
}

func errString(err error) string {
	if kind := agenterr.KindOf(err); kind != "" {
		return string(kind) + ": " + err.Error()
	}
	return err.Error()
}
