package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mcpilot/core/internal/variable"
)

// Preview renders an ASCII table preview of a stored Variable's data for the
// planner's prompt: column names, inferred types, and up to the first 3 rows
// (spec.md §4.8). A single record renders as one row; a list of scalars or a
// bare scalar renders under a synthetic "value" column, one row per item.
func Preview(v variable.Variable) string {
	rows := toRecords(v.ActualData)
	if len(rows) == 0 {
		return fmt.Sprintf("%s: (no tabular data)\n", v.Name)
	}
	columns := columnNames(rows)
	types := inferTypes(rows, columns)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d rows)\n", v.Name, len(rows))
	for _, c := range columns {
		fmt.Fprintf(&b, "  %s: %s\n", c, types[c])
	}
	b.WriteString(strings.Join(columns, " | ") + "\n")
	limit := len(rows)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		cells := make([]string, len(columns))
		for j, c := range columns {
			cells[j] = fmt.Sprint(rows[i][c])
		}
		b.WriteString(strings.Join(cells, " | ") + "\n")
	}
	return b.String()
}

// FromVariable converts a conversational Variable's actual_data into an
// AnalysisVariable of the matching kind, seeding the Data Analysis Runtime
// with the sources a plan's operations reference by name (spec.md §4.8
// scenario 5 references a conversational variable like `q1_sales[revenue]`
// directly from a plan line).
func FromVariable(v variable.Variable) variable.AnalysisVariable {
	switch data := v.ActualData.(type) {
	case []map[string]any:
		return variable.Table(v.Name, data, columnNames(data))
	case map[string]any:
		rows := []map[string]any{data}
		return variable.Table(v.Name, rows, columnNames(rows))
	case []any:
		allScalar := true
		for _, item := range data {
			if _, ok := item.(map[string]any); ok {
				allScalar = false
				break
			}
		}
		if allScalar {
			return variable.Column(v.Name, data)
		}
		rows := toRecords(data)
		return variable.Table(v.Name, rows, columnNames(rows))
	default:
		if f, ok := toFloat(data); ok {
			return variable.Number(v.Name, f)
		}
		return variable.Column(v.Name, []any{data})
	}
}

// toRecords coerces a Variable's ActualData into a uniform []map[string]any,
// handling the shapes the MCP unwrap/rename pipeline can produce: a list of
// records, a single record, or a bare scalar/list of scalars (wrapped under
// a synthetic "value" column).
func toRecords(data any) []map[string]any {
	switch v := data.(type) {
	case []map[string]any:
		return v
	case map[string]any:
		return []map[string]any{v}
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
				continue
			}
			rows = append(rows, map[string]any{"value": item})
		}
		return rows
	case nil:
		return nil
	default:
		return []map[string]any{{"value": v}}
	}
}

func columnNames(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}

func inferTypes(rows []map[string]any, columns []string) map[string]string {
	types := make(map[string]string, len(columns))
	for _, c := range columns {
		types[c] = inferColumnType(rows, c)
	}
	return types
}

func inferColumnType(rows []map[string]any, column string) string {
	for _, row := range rows {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case float64, float32, int, int64:
			return "number"
		case bool:
			return "boolean"
		case string:
			return "string"
		default:
			return "object"
		}
	}
	return "unknown"
}
