package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/variable"
)

// Result is the outcome of running one Operation. On failure Err holds the
// error string that the reporter and logs see; per spec.md §4.8 a failed
// operation does not abort the remaining plan, so Run always executes every
// Operation regardless of earlier failures.
type Result struct {
	Op    Operation
	Value variable.AnalysisVariable
	Err   string
}

// Run executes ops in order against store, writing each successful result
// back into store under its OutputVar so later operations can reference it.
func Run(store *variable.AnalysisStore, ops []Operation) []Result {
	results := make([]Result, 0, len(ops))
	for _, op := range ops {
		v, err := execOne(store, op)
		if err != nil {
			results = append(results, Result{Op: op, Err: errString(err)})
			continue
		}
		v.Name = op.OutputVar
		store.Put(v)
		results = append(results, Result{Op: op, Value: v})
	}
	return results
}

func execOne(store *variable.AnalysisStore, op Operation) (variable.AnalysisVariable, error) {
	switch {
	case aggregationOps[op.Op]:
		return execAggregation(store, op)
	case comparisonOps[op.Op]:
		return execComparison(store, op)
	case op.Op == OpFilter:
		return execFilter(store, op)
	case op.Op == OpSortAsc || op.Op == OpSortDesc:
		return execSort(store, op)
	case arithmeticOps[op.Op]:
		return execArithmetic(store, op)
	case op.Op == OpTable:
		return execTable(store, op)
	default:
		return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, "unknown operation: "+string(op.Op))
	}
}

// --- aggregation ---

func execAggregation(store *variable.AnalysisStore, op Operation) (variable.AnalysisVariable, error) {
	if len(op.Args) != 1 {
		return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, string(op.Op)+" takes exactly one column argument")
	}
	vals, err := resolveFloats(store, op.Args[0])
	if err != nil {
		return variable.AnalysisVariable{}, err
	}
	var n float64
	switch op.Op {
	case OpSum:
		n = sum(vals)
	case OpAverage:
		if len(vals) == 0 {
			n = 0
		} else {
			n = sum(vals) / float64(len(vals))
		}
	case OpMax:
		n = maxOf(vals)
	case OpMin:
		n = minOf(vals)
	case OpCount:
		return variable.Number("", float64(len(vals))), nil
	}
	return variable.Number("", round2(n)), nil
}

// --- comparison ---

func execComparison(store *variable.AnalysisStore, op Operation) (variable.AnalysisVariable, error) {
	if len(op.Args) != 2 {
		return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, string(op.Op)+" takes exactly two arguments")
	}
	a, err := resolveNumber(store, op.Args[0])
	if err != nil {
		return variable.AnalysisVariable{}, err
	}
	b, err := resolveNumber(store, op.Args[1])
	if err != nil {
		return variable.AnalysisVariable{}, err
	}

	switch op.Op {
	case OpDifference:
		return variable.Number("", round2(a-b)), nil
	case OpRatio:
		if b == 0 {
			return variable.AnalysisVariable{}, agenterr.New(agenterr.CannotDivideByZero, "ratio: divisor is zero")
		}
		return variable.Number("", round2(a/b)), nil
	case OpPercentage:
		if b == 0 {
			return variable.AnalysisVariable{}, agenterr.New(agenterr.CannotDivideByZero, "percentage: divisor is zero")
		}
		return variable.Number("", round2((a/b)*100)), nil
	case OpPctChange:
		if a == 0 {
			return variable.AnalysisVariable{}, agenterr.New(agenterr.CannotDivideByZero, "pct_change: old value sums to zero")
		}
		return variable.Number("", round2(((b-a)/a)*100)), nil
	}
	return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, "unreachable comparison op")
}

// --- filter ---

func execFilter(store *variable.AnalysisStore, op Operation) (variable.AnalysisVariable, error) {
	if len(op.Args) != 2 {
		return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, "filter takes a column and a condition")
	}
	col, err := resolveColumn(store, op.Args[0])
	if err != nil {
		return variable.AnalysisVariable{}, err
	}
	condOp, condValue, err := parseFilterExpr(op.Args[1].FilterExpr)
	if err != nil {
		return variable.AnalysisVariable{}, err
	}
	out := make([]any, 0, len(col))
	for _, v := range col {
		ok, err := matchesCondition(v, condOp, condValue)
		if err != nil {
			return variable.AnalysisVariable{}, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return variable.Column("", out), nil
}

var filterOps = []string{">=", "<=", "!=", ">", "<", "="}

func parseFilterExpr(expr string) (op, value string, err error) {
	expr = strings.TrimSpace(expr)
	for _, candidate := range filterOps {
		if strings.HasPrefix(expr, candidate) {
			return candidate, strings.TrimSpace(strings.TrimPrefix(expr, candidate)), nil
		}
	}
	return "", "", agenterr.New(agenterr.InvalidCondition, "unrecognized filter condition: "+expr)
}

func matchesCondition(v any, op, valueStr string) (bool, error) {
	valueStr = strings.Trim(valueStr, `"`)
	vFloat, vIsNum := toFloat(v)
	valFloat, valErr := strconv.ParseFloat(valueStr, 64)
	if vIsNum && valErr == nil {
		switch op {
		case ">":
			return vFloat > valFloat, nil
		case "<":
			return vFloat < valFloat, nil
		case ">=":
			return vFloat >= valFloat, nil
		case "<=":
			return vFloat <= valFloat, nil
		case "=":
			return vFloat == valFloat, nil
		case "!=":
			return vFloat != valFloat, nil
		}
	}
	vStr := fmt.Sprint(v)
	switch op {
	case "=":
		return vStr == valueStr, nil
	case "!=":
		return vStr != valueStr, nil
	case ">":
		return vStr > valueStr, nil
	case "<":
		return vStr < valueStr, nil
	case ">=":
		return vStr >= valueStr, nil
	case "<=":
		return vStr <= valueStr, nil
	}
	return false, agenterr.New(agenterr.InvalidCondition, "unsupported filter operator: "+op)
}

// --- sort ---

func execSort(store *variable.AnalysisStore, op Operation) (variable.AnalysisVariable, error) {
	if len(op.Args) != 1 {
		return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, string(op.Op)+" takes exactly one column argument")
	}
	col, err := resolveColumn(store, op.Args[0])
	if err != nil {
		return variable.AnalysisVariable{}, err
	}
	out := append([]any{}, col...)
	ascending := op.Op == OpSortAsc
	sort.SliceStable(out, func(i, j int) bool {
		less, ok := lessAny(out[i], out[j])
		if !ok {
			less = fmt.Sprint(out[i]) < fmt.Sprint(out[j])
		}
		if ascending {
			return less
		}
		return !less
	})
	return variable.Column("", out), nil
}

func lessAny(a, b any) (bool, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf, true
	}
	return false, false
}

// --- arithmetic ---

func execArithmetic(store *variable.AnalysisStore, op Operation) (variable.AnalysisVariable, error) {
	if len(op.Args) != 2 {
		return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, string(op.Op)+" takes exactly two arguments")
	}
	left, err := resolveColumn(store, op.Args[0])
	if err != nil {
		return variable.AnalysisVariable{}, err
	}
	if op.Args[1].IsLiteral {
		return scalarArithmetic(op.Op, left, op.Args[1].Literal)
	}
	right, err := resolveColumn(store, op.Args[1])
	if err != nil {
		return variable.AnalysisVariable{}, err
	}
	return columnArithmetic(op.Op, left, right)
}

func scalarArithmetic(op OpKind, col []any, scalar float64) (variable.AnalysisVariable, error) {
	out := make([]any, len(col))
	for i, v := range col {
		f, ok := toFloat(v)
		if !ok {
			return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, fmt.Sprintf("value %v is not numeric", v))
		}
		out[i] = round2(applyArith(op, f, scalar))
	}
	return variable.Column("", out), nil
}

func columnArithmetic(op OpKind, left, right []any) (variable.AnalysisVariable, error) {
	n := len(left)
	note := ""
	if len(right) < n {
		n = len(right)
	}
	if len(left) != len(right) {
		note = fmt.Sprintf("columns truncated to %d rows (%d vs %d) to align lengths", n, len(left), len(right))
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		lf, lok := toFloat(left[i])
		rf, rok := toFloat(right[i])
		if !lok || !rok {
			return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, "column arithmetic requires numeric values")
		}
		out[i] = round2(applyArith(op, lf, rf))
	}
	v := variable.Column("", out)
	v.Note = note
	return v, nil
}

func applyArith(op OpKind, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSubtract:
		return a - b
	case OpMultiply:
		return a * b
	case OpDivide:
		if b == 0 {
			return 0
		}
		return a / b
	}
	return 0
}

// --- table build ---

func execTable(store *variable.AnalysisStore, op Operation) (variable.AnalysisVariable, error) {
	if len(op.Args) == 0 {
		return variable.AnalysisVariable{}, agenterr.New(agenterr.InvalidCondition, "table requires at least one labeled column")
	}
	labels := make([]string, len(op.Args))
	cols := make([][]any, len(op.Args))
	minLen := -1
	for i, a := range op.Args {
		labels[i] = a.Label
		vals, err := resolveListValue(store, a)
		if err != nil {
			return variable.AnalysisVariable{}, err
		}
		cols[i] = vals
		if minLen < 0 || len(vals) < minLen {
			minLen = len(vals)
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
	return variable.Table("", rows, labels), nil
}

// --- operand resolution ---

func resolveColumn(store *variable.AnalysisStore, a Arg) ([]any, error) {
	if a.IsLiteral {
		return []any{a.Literal}, nil
	}
	if a.Ref == "" {
		return nil, agenterr.New(agenterr.ColumnNotFound, "missing column reference")
	}
	av, ok := store.Get(a.Ref)
	if !ok {
		return nil, agenterr.New(agenterr.ColumnNotFound, "unknown variable: "+a.Ref)
	}
	switch av.Kind {
	case variable.AnalysisColumn:
		return av.Column, nil
	case variable.AnalysisNumber:
		return []any{av.Number}, nil
	case variable.AnalysisTable:
		if a.Field == "" {
			return nil, agenterr.New(agenterr.ColumnNotFound, "table variable "+a.Ref+" requires a column field")
		}
		out := make([]any, len(av.Table))
		for i, row := range av.Table {
			out[i] = row[a.Field]
		}
		return out, nil
	}
	return nil, agenterr.New(agenterr.ColumnNotFound, "unusable variable: "+a.Ref)
}

func resolveListValue(store *variable.AnalysisStore, a Arg) ([]any, error) {
	if a.IsLiteral {
		return []any{a.Literal}, nil
	}
	return resolveColumn(store, a)
}

func resolveFloats(store *variable.AnalysisStore, a Arg) ([]float64, error) {
	col, err := resolveColumn(store, a)
	if err != nil {
		return nil, err
	}
	return toFloatSlice(col)
}

func resolveNumber(store *variable.AnalysisStore, a Arg) (float64, error) {
	if a.IsLiteral {
		return a.Literal, nil
	}
	if a.Ref == "" {
		return 0, agenterr.New(agenterr.ColumnNotFound, "missing numeric reference")
	}
	av, ok := store.Get(a.Ref)
	if !ok {
		return 0, agenterr.New(agenterr.ColumnNotFound, "unknown variable: "+a.Ref)
	}
	switch av.Kind {
	case variable.AnalysisNumber:
		return av.Number, nil
	case variable.AnalysisColumn:
		vals, err := toFloatSlice(av.Column)
		if err != nil {
			return 0, err
		}
		return sum(vals), nil
	case variable.AnalysisTable:
		if a.Field == "" {
			return 0, agenterr.New(agenterr.ColumnNotFound, "table variable "+a.Ref+" requires a column field")
		}
		col, err := resolveColumn(store, a)
		if err != nil {
			return 0, err
		}
		vals, err := toFloatSlice(col)
		if err != nil {
			return 0, err
		}
		return sum(vals), nil
	}
	return 0, agenterr.New(agenterr.ColumnNotFound, "unusable variable: "+a.Ref)
}

// --- numeric helpers ---

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toFloatSlice(vals []any) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, ok := toFloat(v)
		if !ok {
			return nil, agenterr.New(agenterr.InvalidCondition, fmt.Sprintf("value %v is not numeric", v))
		}
		out[i] = f
	}
	return out, nil
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}

func maxOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// errString renders err as the reporter-facing error string: the behavioral
// Kind code (spec.md §4.8's table lists CANNOT_DIVIDE_BY_ZERO, COLUMN_NOT_FOUND,
// INVALID_CONDITION literally) followed by the human-readable detail.
func errString(err error) string {
	if kind := agenterr.KindOf(err); kind != "" {
		return string(kind) + ": " + err.Error()
	}
	return err.Error()
}
