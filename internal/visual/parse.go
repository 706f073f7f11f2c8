// Package visual is the Report Writer & Visual Renderer (C10): it parses a
// reporter-pass completion's `[report]`/`[summary]` tagged blocks into typed
// visual descriptors, then renders each descriptor into a DSL string with
// its data fully inlined and resolved against AnalysisVariables and
// Variables. Rendering is programmatic — no further LLM calls — per
// spec.md §4.9: the model decides *what* to show, this package decides *how*.
package visual

import (
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/callsyntax"
)

// Visual is one parsed VISUAL_n block: a label, a kind (card | table |
// line-chart), and its raw, not-yet-resolved arguments.
type Visual struct {
	Label string
	Kind  string
	Args  []callsyntax.Arg
}

// Report is the parsed result of one reporter-pass completion.
type Report struct {
	Visuals []Visual
	Summary string
}

// ParseReport extracts the `[report]`…`[/report]` and `[summary]`…
// `[/summary]` blocks from text and parses each VISUAL_n line within the
// report block using the Executor's compact call grammar (spec.md §4.8,
// §4.9): "VISUAL_1: card(title: …, value: …)" has exactly the shape
// "var_name: tool_name(args…)" the Executor already knows how to parse.
func ParseReport(text string) (Report, error) {
	reportBody := extractBlock(text, "report")
	summary := extractBlock(text, "summary")

	blocks := splitVisualBlocks(reportBody)
	visuals := make([]Visual, 0, len(blocks))
	for _, b := range blocks {
		call, err := callsyntax.Parse(b)
		if err != nil {
			return Report{}, agenterr.Wrap(agenterr.ParseFailed, "malformed visual block: "+b, err)
		}
		visuals = append(visuals, Visual{Label: call.VariableName, Kind: call.ToolName, Args: call.Args})
	}
	return Report{Visuals: visuals, Summary: summary}, nil
}

func extractBlock(text, tag string) string {
	open := "[" + tag + "]"
	closeTag := "[/" + tag + "]"
	oi := strings.Index(text, open)
	if oi < 0 {
		return ""
	}
	body := text[oi+len(open):]
	if ci := strings.Index(body, closeTag); ci >= 0 {
		body = body[:ci]
	}
	return strings.TrimSpace(body)
}

// splitVisualBlocks splits a report block's body into one chunk per VISUAL_n
// statement, tracking bracket/quote depth so a statement's argument list may
// span multiple lines without being cut at the wrong VISUAL_ occurrence.
func splitVisualBlocks(body string) []string {
	var marks []int
	depth := 0
	inQuote := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if inQuote {
			if c == '"' && (i == 0 || body[i-1] != '\\') {
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		}
		if depth == 0 && strings.HasPrefix(body[i:], "VISUAL_") {
			marks = append(marks, i)
		}
	}
	if len(marks) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(marks))
	for idx, m := range marks {
		end := len(body)
		if idx+1 < len(marks) {
			end = marks[idx+1]
		}
		blocks = append(blocks, strings.TrimSpace(body[m:end]))
	}
	return blocks
}
