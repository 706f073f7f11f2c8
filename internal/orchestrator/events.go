package orchestrator

// EventKind enumerates the SSE event kinds the Orchestrator emits
// (spec.md §6 "SSE event envelope"). Causal order within one request is
// guaranteed per spec.md §5: pilot_thinking < pilot_response <
// executor_calling_tool < tool_success|tool_error < pilot_turn(next).
type EventKind string

const (
	EventPilotThinking            EventKind = "pilot_thinking"
	EventPilotResponse            EventKind = "pilot_response"
	EventPilotInstructingExecutor EventKind = "pilot_instructing_executor"
	EventExecutorCallingTool      EventKind = "executor_calling_tool"
	EventExecutorToolResult       EventKind = "executor_tool_result"
	EventToolCalling              EventKind = "tool_calling"
	EventToolSuccess              EventKind = "tool_success"
	EventToolError                EventKind = "tool_error"
	EventAnalysisPhase            EventKind = "analysis_phase"
	EventAnalysisOperationResult  EventKind = "analysis_operation_result"
	EventUICreating               EventKind = "ui_creating"
	EventComplete                 EventKind = "complete"
	EventError                    EventKind = "error"
)

// Event is one line-delimited envelope sent to the client: `data: {"type":
// <kind>, ...fields}\n\n` (spec.md §6). Fields carries the kind-specific
// payload; the wire encoder is left to internal/httpapi.
type Event struct {
	Type   EventKind
	Fields map[string]any
}

// Sink receives Events as a turn executes. A nil Sink is valid: RunTurn
// simply emits nothing.
type Sink func(Event)

func emit(sink Sink, kind EventKind, fields map[string]any) {
	if sink == nil {
		return
	}
	sink(Event{Type: kind, Fields: fields})
}
