package analysis

import (
	"strconv"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
)

// ParsePlan parses a planner completion into an ordered list of
// Operations, one per non-blank line, per spec.md §4.8: "one operation per
// line of the form `output_var: op(arg, …)  # comment`".
func ParsePlan(text string) ([]Operation, error) {
	var ops []Operation
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		op, ok, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		if ok {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func parseLine(line string) (Operation, bool, error) {
	body, comment := splitComment(line)
	body = strings.TrimSpace(body)
	if body == "" {
		return Operation{}, false, nil
	}
	colonIdx := strings.IndexByte(body, ':')
	open := strings.IndexByte(body, '(')
	if colonIdx < 0 || open < 0 || open < colonIdx {
		return Operation{}, false, agenterr.New(agenterr.ParseFailed, "malformed plan line: "+line)
	}
	outputVar := strings.TrimSpace(body[:colonIdx])
	opAndArgs := strings.TrimSpace(body[colonIdx+1:])
	opOpen := strings.IndexByte(opAndArgs, '(')
	if opOpen < 0 || !strings.HasSuffix(opAndArgs, ")") {
		return Operation{}, false, agenterr.New(agenterr.ParseFailed, "malformed plan line (missing parens): "+line)
	}
	opName := strings.TrimSpace(opAndArgs[:opOpen])
	argsText := opAndArgs[opOpen+1 : len(opAndArgs)-1]

	args, err := parseOpArgs(OpKind(opName), argsText)
	if err != nil {
		return Operation{}, false, err
	}
	return Operation{OutputVar: outputVar, Op: OpKind(opName), Args: args, Comment: comment}, true, nil
}

func splitComment(line string) (body, comment string) {
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '"' {
			inQuote = !inQuote
			continue
		}
		if c == '#' && !inQuote {
			return line[:i], strings.TrimSpace(line[i+1:])
		}
	}
	return line, ""
}

// parseOpArgs parses the comma-separated argument list of one operation.
// table() has a distinct "Label: value-list" shape from every other op's
// "ref[col]" / "ref" / number / quoted-filter-expr shape.
func parseOpArgs(op OpKind, argsText string) ([]Arg, error) {
	pieces := splitTopLevelComma(argsText)
	args := make([]Arg, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if op == OpTable {
			args = append(args, parseTableArg(piece))
			continue
		}
		args = append(args, parseScalarArg(piece))
	}
	return args, nil
}

func parseTableArg(piece string) Arg {
	idx := strings.IndexByte(piece, ':')
	if idx < 0 {
		return Arg{Label: piece}
	}
	label := strings.TrimSpace(piece[:idx])
	valueText := strings.TrimSpace(piece[idx+1:])
	if f, err := strconv.ParseFloat(valueText, 64); err == nil {
		return Arg{Label: label, Literal: f, IsLiteral: true}
	}
	ref, field := splitRefField(valueText)
	return Arg{Label: label, Ref: ref, Field: field}
}

func parseScalarArg(piece string) Arg {
	if len(piece) >= 2 && piece[0] == '"' && piece[len(piece)-1] == '"' {
		return Arg{FilterExpr: piece[1 : len(piece)-1]}
	}
	if f, err := strconv.ParseFloat(piece, 64); err == nil {
		return Arg{Literal: f, IsLiteral: true}
	}
	ref, field := splitRefField(piece)
	return Arg{Ref: ref, Field: field}
}

// splitRefField splits "var[col]" into ("var", "col"), or "var" into
// ("var", "").
func splitRefField(s string) (ref, field string) {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return s, ""
	}
	return s[:open], s[open+1 : len(s)-1]
}

func splitTopLevelComma(s string) []string {
	var pieces []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			if c == '"' {
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
		case ',':
			if depth == 0 {
				pieces = append(pieces, s[start:i])
				start = i + 1
			}
		}
	}
	pieces = append(pieces, s[start:])
	return pieces
}
