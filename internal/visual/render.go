package visual

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/callsyntax"
	"github.com/mcpilot/core/internal/variable"
)

// RenderAll resolves and renders every visual in r against the given stores,
// in order, returning one DSL string per visual. A resolution failure for
// one visual is returned immediately — the reporter pass is expected to only
// ever reference variables the runtime actually produced.
func RenderAll(r Report, aStore *variable.AnalysisStore, vStore *variable.Store) ([]string, error) {
	out := make([]string, 0, len(r.Visuals))
	for _, v := range r.Visuals {
		dsl, err := Render(v, aStore, vStore)
		if err != nil {
			return nil, err
		}
		out = append(out, dsl)
	}
	return out, nil
}

// Render dispatches v to its kind-specific renderer.
func Render(v Visual, aStore *variable.AnalysisStore, vStore *variable.Store) (string, error) {
	switch v.Kind {
	case "card":
		return renderCard(v, aStore, vStore)
	case "table":
		return renderTable(v, aStore, vStore)
	case "line-chart":
		return renderLineChart(v, aStore, vStore)
	case "alert":
		return renderAlert(v, aStore, vStore)
	default:
		return "", agenterr.New(agenterr.InvalidCondition, "unknown visual kind: "+v.Kind)
	}
}

func renderCard(v Visual, aStore *variable.AnalysisStore, vStore *variable.Store) (string, error) {
	title := argValue(v.Args, "title")
	valueRaw := argValue(v.Args, "value")
	value, err := resolveScalar(valueRaw, aStore, vStore)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[card title=%s value=%s]", quoteDSL(title), quoteDSL(escapeCardText(value))), nil
}

// renderTable serializes either a table-type AnalysisVariable referenced
// directly via `data: ref`, or a set of `Label: ref` pairs materialized
// row-wise by zipping each referenced column (spec.md §4.9).
func renderTable(v Visual, aStore *variable.AnalysisStore, vStore *variable.Store) (string, error) {
	if len(v.Args) == 1 && v.Args[0].Key == "data" {
		name, _, _ := callsyntax.IsReference(v.Args[0].Value)
		if name == "" {
			name = v.Args[0].Value
		}
		av, ok := aStore.Get(name)
		if !ok || av.Kind != variable.AnalysisTable {
			return "", agenterr.New(agenterr.ColumnNotFound, "table visual: unknown table variable "+name)
		}
		return renderTableDSL(av.Columns, av.Table), nil
	}

	labels := make([]string, 0, len(v.Args))
	cols := make([][]any, 0, len(v.Args))
	minLen := -1
	for _, a := range v.Args {
		col, err := resolveColumn(a.Value, aStore, vStore)
		if err != nil {
			return "", err
		}
		labels = append(labels, a.Key)
		cols = append(cols, col)
		if minLen < 0 || len(col) < minLen {
			minLen = len(col)
		}
	}
	if minLen < 0 {
		minLen = 0
	}
	rows := make([]map[string]any, minLen)
	for i := 0; i < minLen; i++ {
		row := make(map[string]any, len(labels))
		for j, label := range labels {
			row[label] = cols[j][i]
		}
		rows[i] = row
	}
	return renderTableDSL(labels, rows), nil
}

func renderTableDSL(columns []string, rows []map[string]any) string {
	var rowStrs []string
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = fmt.Sprint(row[c])
		}
		rowStrs = append(rowStrs, "["+strings.Join(cells, ",")+"]")
	}
	return fmt.Sprintf("[table columns=%s rows=%s]",
		quoteDSL(strings.Join(columns, ",")),
		quoteDSL("["+strings.Join(rowStrs, ",")+"]"))
}

func renderLineChart(v Visual, aStore *variable.AnalysisStore, vStore *variable.Store) (string, error) {
	xVals, err := resolveColumn(argValue(v.Args, "x"), aStore, vStore)
	if err != nil {
		return "", err
	}
	yVals, err := resolveColumn(argValue(v.Args, "y"), aStore, vStore)
	if err != nil {
		return "", err
	}
	label := argValue(v.Args, "label")
	return fmt.Sprintf("[line-chart x=%s y=%s label=%s]",
		quoteDSL(joinAny(xVals)), quoteDSL(joinAny(yVals)), quoteDSL(label)), nil
}

// renderAlert is the Executor's direct-call UI tool counterpart to card: a
// short, severity-tagged banner rather than a titled value.
func renderAlert(v Visual, aStore *variable.AnalysisStore, vStore *variable.Store) (string, error) {
	severity := argValue(v.Args, "severity")
	if severity == "" {
		severity = "info"
	}
	messageRaw := argValue(v.Args, "message")
	message, err := resolveScalar(messageRaw, aStore, vStore)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[alert severity=%s message=%s]", quoteDSL(severity), quoteDSL(escapeCardText(message))), nil
}

// --- resolution against AnalysisStore/Store ---

func argValue(args []callsyntax.Arg, key string) string {
	for _, a := range args {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// resolveScalar resolves a raw argument value to a displayable string: a
// variable reference (with or without a field projection), a bare variable
// name, or a literal passed through unchanged.
func resolveScalar(raw string, aStore *variable.AnalysisStore, vStore *variable.Store) (string, error) {
	name, field, isRef := callsyntax.IsReference(raw)
	if !isRef {
		name = raw
	}
	if av, ok := aStore.Get(name); ok {
		return analysisScalarString(av, field), nil
	}
	if v, ok := vStore.Get(name); ok {
		return variableFieldString(v, field), nil
	}
	if isRef {
		return "", agenterr.New(agenterr.ColumnNotFound, "unknown variable reference: "+raw)
	}
	return raw, nil
}

// resolveColumn resolves a raw argument value to a list of values; for a
// table variable the field projection selects the column whose per-row
// values are returned.
func resolveColumn(raw string, aStore *variable.AnalysisStore, vStore *variable.Store) ([]any, error) {
	name, field, isRef := callsyntax.IsReference(raw)
	if !isRef {
		name = raw
	}
	if av, ok := aStore.Get(name); ok {
		switch av.Kind {
		case variable.AnalysisColumn:
			return av.Column, nil
		case variable.AnalysisNumber:
			return []any{av.Number}, nil
		case variable.AnalysisTable:
			if field == "" {
				return nil, agenterr.New(agenterr.ColumnNotFound, "table variable "+name+" requires a column field")
			}
			out := make([]any, len(av.Table))
			for i, row := range av.Table {
				out[i] = row[field]
			}
			return out, nil
		}
	}
	if v, ok := vStore.Get(name); ok {
		return variableFieldColumn(v, field), nil
	}
	return nil, agenterr.New(agenterr.ColumnNotFound, "unknown column reference: "+raw)
}

func analysisScalarString(av variable.AnalysisVariable, field string) string {
	switch av.Kind {
	case variable.AnalysisNumber:
		return formatNumber(av.Number)
	case variable.AnalysisColumn:
		return joinAny(av.Column)
	case variable.AnalysisTable:
		if field == "" {
			return fmt.Sprintf("%d rows", len(av.Table))
		}
		col := make([]any, len(av.Table))
		for i, row := range av.Table {
			col[i] = row[field]
		}
		return joinAny(col)
	}
	return ""
}

// variableFieldString projects a single field out of a conversational
// Variable's actual_data, which may be a record, a list of records, or a
// bare scalar.
func variableFieldString(v variable.Variable, field string) string {
	if field == "" {
		return fmt.Sprint(v.ActualData)
	}
	switch data := v.ActualData.(type) {
	case map[string]any:
		return fmt.Sprint(data[field])
	case []any:
		vals := variableFieldColumn(v, field)
		return joinAny(vals)
	default:
		return fmt.Sprint(data)
	}
}

func variableFieldColumn(v variable.Variable, field string) []any {
	items, ok := v.ActualData.([]any)
	if !ok {
		if field == "" {
			return []any{v.ActualData}
		}
		return nil
	}
	if field == "" {
		return items
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m[field])
			continue
		}
		out = append(out, item)
	}
	return out
}

func joinAny(vals []any) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = fmt.Sprint(v)
	}
	return strings.Join(strs, ",")
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', 2, 64)
}

// escapeCardText escapes newlines for DSL safety (spec.md §4.9).
func escapeCardText(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

// quoteDSL normalizes a property value to a double-quoted, double-quote-
// escaped DSL literal.
func quoteDSL(s string) string {
	return strconv.Quote(s)
}
