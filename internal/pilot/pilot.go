// Package pilot is the Pilot Agent (C6): a single-step strategist that
// looks at the conversation so far, the available tools, and the current
// variable store, and decides exactly one next action — either hand a
// natural-language instruction to the Executor, or reply to the user and
// end the turn. Grounded on the teacher's runtime/agent/planner package for
// the general "bounded single-decision LLM turn with retry" shape, adapted
// to the tagged EXECUTOR:/REPLY: protocol spec.md §4.6 describes (rather
// than the teacher's native tool-use planner).
package pilot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/variable"
)

// Turn is one entry of the Pilot's conversation history.
type Turn struct {
	Role model.Role
	Text string
}

// Kind discriminates a Pilot Decision.
type Kind string

const (
	KindExecutor Kind = "executor"
	KindReply    Kind = "reply"
)

// Decision is the Pilot's single next action.
type Decision struct {
	Kind        Kind
	Instruction string // set when Kind == KindExecutor
	Message     string // set when Kind == KindReply
	Heuristic   bool   // true when no recognizable prefix was returned and a fallback rule decided
}

// maxRetries bounds retries on an empty or errored completion (spec.md
// §4.6: "Retry on empty or errored completion up to 3 times").
const maxRetries = 3

const cannedApology = "I'm sorry, I wasn't able to complete that request right now. Please try again."

// Request carries everything the Pilot needs to decide its next step.
type Request struct {
	ToolNames         []string
	VariableSummaries []variable.Summary
	CurrentDate       string
	History           []Turn
	Latest            string // the executor report or user message driving this turn
}

// Decide asks client for exactly one EXECUTOR/REPLY decision, retrying on
// empty or errored completions, and falling back to a heuristic when the
// response carries no recognizable prefix.
func Decide(ctx context.Context, client model.Client, req Request) (Decision, error) {
	sysPrompt := buildSystemPrompt(req)
	messages := make([]model.Message, 0, len(req.History)+1)
	for _, t := range req.History {
		messages = append(messages, model.Message{Role: t.Role, Text: t.Text})
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Text: req.Latest})

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := client.Complete(ctx, &model.Request{
			System:      sysPrompt,
			Messages:    messages,
			ModelClass:  model.ModelClassDefault,
			Temperature: 0.2,
		})
		if err != nil {
			continue
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			continue
		}
		return parseDecision(text, req.ToolNames), nil
	}
	return Decision{Kind: KindReply, Message: cannedApology}, nil
}

// parseDecision extracts the EXECUTOR:/REPLY: prefix from text, falling
// back to a heuristic (mention of a known tool name ⇒ EXECUTOR, else
// REPLY) when neither prefix is recognized.
func parseDecision(text string, toolNames []string) Decision {
	if rest, ok := cutPrefixCI(text, "EXECUTOR:"); ok {
		return Decision{Kind: KindExecutor, Instruction: strings.TrimSpace(rest)}
	}
	if rest, ok := cutPrefixCI(text, "REPLY:"); ok {
		return Decision{Kind: KindReply, Message: strings.TrimSpace(rest)}
	}
	for _, name := range toolNames {
		if name != "" && strings.Contains(text, name) {
			return Decision{Kind: KindExecutor, Instruction: text, Heuristic: true}
		}
	}
	return Decision{Kind: KindReply, Message: text, Heuristic: true}
}

func cutPrefixCI(text, prefix string) (string, bool) {
	if len(text) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(text[:len(prefix)], prefix) {
		return "", false
	}
	return text[len(prefix):], true
}

// buildSystemPrompt renders the Pilot's system prompt from tool summaries,
// variable summaries, and the current date, per spec.md §4.6. The prompt
// enforces the constraints the host separately validates: no code syntax
// or bracket notation, never invent data values, never combine steps.
func buildSystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are the Pilot of a tool-using assistant. Today's date is ")
	b.WriteString(req.CurrentDate)
	b.WriteString(".\n\n")
	b.WriteString("On every turn, decide exactly ONE next step:\n")
	b.WriteString("- EXECUTOR: <one natural-language instruction describing one action using one tool>\n")
	b.WriteString("- REPLY: <a final, user-facing message; the turn ends here>\n\n")
	b.WriteString("Rules: never write code, JSON, or bracket notation in your output; never invent data values not present in a tool result or variable; never combine more than one step into a single instruction.\n\n")
	if len(req.ToolNames) > 0 {
		b.WriteString("Available tools: ")
		b.WriteString(strings.Join(req.ToolNames, ", "))
		b.WriteString("\n")
	}
	if len(req.VariableSummaries) > 0 {
		b.WriteString("Known variables:\n")
		for _, v := range req.VariableSummaries {
			b.WriteString(fmt.Sprintf("- %s: %s (fields: %s)\n", v.Name, v.Description, strings.Join(v.SchemaKeys, ", ")))
		}
	}
	return b.String()
}

// Validate reports whether a Pilot EXECUTOR instruction satisfies the
// no-code-syntax constraint stated in the Pilot prompt: it returns false for
// a violation. It is a best-effort lint, not a hard parser: obvious
// bracket/brace/code markers are rejected so the orchestrator can re-prompt
// rather than hand a malformed instruction to the Executor.
func Validate(instruction string) bool {
	forbidden := []string{"{", "}", "[", "]", "```", "=>", "function("}
	for _, f := range forbidden {
		if strings.Contains(instruction, f) {
			return false
		}
	}
	return true
}
