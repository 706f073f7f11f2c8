// Package callsyntax implements the hand-written, bracket-and-quote-depth
// tracking tokenizer shared by every tagged-block LLM protocol in this
// module that emits a single call in the shape
//
//	[var_name:] tool_name(arg1: value1, arg2: value2, …)
//
// The Executor Agent (C7) uses it to parse its translated tool call
// (spec.md §4.7); the Report Writer (C10) reuses it verbatim to parse each
// `VISUAL_n: kind(args…)` line out of a reporter completion (spec.md §4.9).
// Per spec.md §9's design note, this is a hand-written tokenizer rather than
// regex, which eliminates separate multi-line vs line-by-line code paths.
package callsyntax

import (
	"strconv"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
)

// Arg is one parsed argument of a Call: Key is empty for a positional
// argument. Value is the raw token with quotes already stripped for quoted
// string literals; reference tokens (`var[field]`) are left as-is for the
// caller to resolve against a variable store.
type Arg struct {
	Key   string
	Value string
}

// Call is one parsed invocation: `[var_name:] tool_name(args…)` plus an
// optional trailing `DONE: <report>` line.
type Call struct {
	VariableName string
	ToolName     string
	Args         []Arg
	Report       string // the DONE: line's text, if present
}

// Parse reads text in the shape:
//
//	[var_name:] tool_name(arg1: value1, arg2: value2, …)
//	[DONE: <brief report>]
//
// supporting multi-line calls (the argument list may span lines, since
// splitting is bracket-depth aware rather than line-based).
func Parse(text string) (Call, error) {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return Call{}, agenterr.New(agenterr.ParseFailed, "no call found: missing '('")
	}
	header := strings.TrimSpace(text[:open])
	varName, toolName := splitHeader(header)
	if toolName == "" {
		return Call{}, agenterr.New(agenterr.ParseFailed, "no tool name found before '('")
	}

	closeIdx, err := matchingClose(text, open)
	if err != nil {
		return Call{}, err
	}
	argsText := text[open+1 : closeIdx]
	args, err := parseArgs(argsText)
	if err != nil {
		return Call{}, err
	}

	remainder := strings.TrimSpace(text[closeIdx+1:])
	report := extractReport(remainder)

	return Call{VariableName: varName, ToolName: toolName, Args: args, Report: report}, nil
}

// splitHeader splits "var_name: tool_name" into ("var_name", "tool_name"),
// or, when there is no colon, returns ("", "tool_name").
func splitHeader(header string) (varName, toolName string) {
	idx := strings.IndexByte(header, ':')
	if idx < 0 {
		return "", strings.TrimSpace(header)
	}
	return strings.TrimSpace(header[:idx]), strings.TrimSpace(header[idx+1:])
}

// matchingClose finds the index in text of the ')' that closes the '(' at
// openIdx, tracking nested '(' '[' ')' ']' depth and skipping characters
// inside double-quoted strings.
func matchingClose(text string, openIdx int) (int, error) {
	depth := 0
	inQuote := false
	for i := openIdx; i < len(text); i++ {
		c := text[i]
		if inQuote {
			if c == '"' && (i == 0 || text[i-1] != '\\') {
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
			if depth == 0 && c == ')' {
				return i, nil
			}
		}
	}
	return 0, agenterr.New(agenterr.ParseFailed, "unterminated call: missing closing ')'")
}

// extractReport pulls the text following a "DONE:" marker, case-
// insensitively, from remainder. If no DONE: marker is present, remainder
// itself (trimmed) is used as the report.
func extractReport(remainder string) string {
	lower := strings.ToUpper(remainder)
	idx := strings.Index(lower, "DONE:")
	if idx < 0 {
		return remainder
	}
	return strings.TrimSpace(remainder[idx+len("DONE:"):])
}

// parseArgs splits argsText on top-level commas (bracket- and quote-aware)
// and parses each piece as a key:value / key=value pair, or a bare
// positional value when no separator is present at the top level of that
// piece.
func parseArgs(argsText string) ([]Arg, error) {
	pieces := splitTopLevel(argsText, ',')
	args := make([]Arg, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		key, value := splitKeyValue(piece)
		args = append(args, Arg{Key: key, Value: unquote(strings.TrimSpace(value))})
	}
	return args, nil
}

// splitTopLevel splits s on sep, ignoring occurrences inside ( ), [ ], or
// double-quoted strings.
func splitTopLevel(s string, sep byte) []string {
	var pieces []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			if c == '"' && (i == 0 || s[i-1] != '\\') {
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
		default:
			if c == sep && depth == 0 {
				pieces = append(pieces, s[start:i])
				start = i + 1
			}
		}
	}
	pieces = append(pieces, s[start:])
	return pieces
}

// splitKeyValue finds a top-level ':' or '=' separator in piece. If none is
// found, the whole piece is the value and key is empty (a positional arg).
func splitKeyValue(piece string) (key, value string) {
	depth := 0
	inQuote := false
	for i := 0; i < len(piece); i++ {
		c := piece[i]
		if inQuote {
			if c == '"' && (i == 0 || piece[i-1] != '\\') {
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
		case ':', '=':
			if depth == 0 {
				return strings.TrimSpace(piece[:i]), piece[i+1:]
			}
		}
	}
	return "", piece
}

// unquote strips a matching pair of surrounding double quotes, unescaping
// `\"` within. A value that isn't quoted is returned unchanged.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		return strings.ReplaceAll(inner, `\"`, `"`)
	}
	return s
}

// IsReference reports whether value has the `var_name[field]` reference
// shape, returning the variable name and field when it does.
func IsReference(value string) (varName, field string, ok bool) {
	open := strings.IndexByte(value, '[')
	if open <= 0 || !strings.HasSuffix(value, "]") {
		return "", "", false
	}
	return value[:open], value[open+1 : len(value)-1], true
}

// AsNumber attempts to parse value as a float64 literal.
func AsNumber(value string) (float64, bool) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// PositionalNames maps positional (unkeyed) args onto declared input names
// in order, for calls against a known sub-tool. Keyed args are left as-is.
func PositionalNames(args []Arg, declaredNames []string) []Arg {
	out := make([]Arg, len(args))
	pos := 0
	for i, a := range args {
		if a.Key != "" {
			out[i] = a
			continue
		}
		name := a.Key
		if pos < len(declaredNames) {
			name = declaredNames[pos]
		}
		pos++
		out[i] = Arg{Key: name, Value: a.Value}
	}
	return out
}
