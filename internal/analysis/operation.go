// Package analysis is the Data Analysis Planner (C8) and Runtime (C9): a
// two-pass pipeline where an LLM planner compiles a flat list of typed
// dataflow operations over AnalysisVariables, and a deterministic runtime
// executes them with exact, spec-mandated numeric semantics. No further LLM
// calls occur during execution — only the planner and, separately, the
// reporter (in internal/visual) touch the model.
package analysis

// OpKind names a supported runtime operation, grouped per spec.md §4.8's
// table.
type OpKind string

const (
	OpSum        OpKind = "sum"
	OpAverage    OpKind = "average"
	OpMax        OpKind = "max"
	OpMin        OpKind = "min"
	OpCount      OpKind = "count"
	OpDifference OpKind = "difference"
	OpRatio      OpKind = "ratio"
	OpPercentage OpKind = "percentage"
	OpPctChange  OpKind = "pct_change"
	OpFilter     OpKind = "filter"
	OpSortAsc    OpKind = "sort_asc"
	OpSortDesc   OpKind = "sort_desc"
	OpAdd        OpKind = "add"
	OpSubtract   OpKind = "subtract"
	OpMultiply   OpKind = "multiply"
	OpDivide     OpKind = "divide"
	OpTable      OpKind = "table"
)

// Arg is one operand of an Operation: either a variable[column] reference,
// a literal number, or (for table()) a labeled list.
type Arg struct {
	// Ref, when non-empty, names a variable whose Column is this operand's
	// input. Field, if set, is the column within a table variable.
	Ref   string
	Field string

	// Literal holds a bare numeric literal operand (e.g. divide(x, 2)).
	Literal    float64
	IsLiteral  bool

	// FilterExpr carries the raw `"<op> <value>"` string for filter().
	FilterExpr string

	// Label is set for table() operands: "Label: ref_or_literal_list".
	Label string
}

// Operation is one parsed plan line: `output_var: op(arg, …)  # comment`.
type Operation struct {
	OutputVar string
	Op        OpKind
	Args      []Arg
	Comment   string
}

// aggregationOps, comparisonOps, and columnOps partition OpKind by the
// runtime dispatch they need.
var aggregationOps = map[OpKind]bool{OpSum: true, OpAverage: true, OpMax: true, OpMin: true, OpCount: true}
var comparisonOps = map[OpKind]bool{OpDifference: true, OpRatio: true, OpPercentage: true, OpPctChange: true}
var arithmeticOps = map[OpKind]bool{OpAdd: true, OpSubtract: true, OpMultiply: true, OpDivide: true}
