// Package execagent is the Executor Agent (C7): it receives a single Pilot
// instruction, asks a small/cheap model to translate it into exactly one
// tool call in a compact call syntax, parses that syntax via
// internal/callsyntax, and dispatches the call to the right backend
// (sub-tool, LLM extractor, data-analysis agent, or UI renderer).
package execagent

import "github.com/mcpilot/core/internal/callsyntax"

// Arg, Call, and the parsing helpers are aliases of internal/callsyntax's
// shared tokenizer types: the Executor's compact call syntax and the Report
// Writer's VISUAL_n block syntax are the same grammar (spec.md §4.7, §4.9),
// so both packages parse through the one implementation rather than forking
// it.
type (
	Arg  = callsyntax.Arg
	Call = callsyntax.Call
)

// Parse reads the Executor's compact call syntax:
//
//	[var_name:] tool_name(arg1: value1, arg2: value2, …)
//	DONE: <brief report>
//
// supporting multi-line tool calls (the argument list may span lines, since
// splitting is bracket-depth aware rather than line-based).
func Parse(text string) (Call, error) {
	return callsyntax.Parse(text)
}

// IsReference reports whether value has the `var_name[field]` reference
// shape, returning the variable name and field when it does.
func IsReference(value string) (varName, field string, ok bool) {
	return callsyntax.IsReference(value)
}

// AsNumber attempts to parse value as a float64 literal.
func AsNumber(value string) (float64, bool) {
	return callsyntax.AsNumber(value)
}

// PositionalNames maps positional (unkeyed) args onto declared input names
// in order, for calls against a known sub-tool. Keyed args are left as-is.
func PositionalNames(args []Arg, declaredNames []string) []Arg {
	return callsyntax.PositionalNames(args, declaredNames)
}
