// Package quality evaluates data-quality rules against a cleaned table and
// publishes the outcomes. The gate is advisory: it never stops the pipeline.
package quality

import (
	"fmt"
	"math"
	"strings"

	"creditetl/internal/config"
	"creditetl/internal/table"
	"creditetl/pkg/records"
)

// Op is a numeric comparison operator.
type Op string

const (
	OpGT Op = ">"
	OpGE Op = ">="
	OpLT Op = "<"
	OpLE Op = "<="
	OpEQ Op = "="
	OpNE Op = "!="
)

// ParseOp validates s. "==" is accepted as "=".
func ParseOp(s string) (Op, error) {
	switch op := Op(strings.TrimSpace(s)); op {
	case OpGT, OpGE, OpLT, OpLE, OpEQ, OpNE:
		return op, nil
	case "==":
		return OpEQ, nil
	default:
		return "", fmt.Errorf("quality: unknown operator %q", s)
	}
}

func (o Op) compare(actual, expected float64) bool {
	switch o {
	case OpGT:
		return actual > expected
	case OpGE:
		return actual >= expected
	case OpLT:
		return actual < expected
	case OpLE:
		return actual <= expected
	case OpEQ:
		return actual == expected
	case OpNE:
		return actual != expected
	}
	return false
}

// Outcome is the result of one rule.
type Outcome struct {
	Rule    string  `json:"rule"`
	Passed  bool    `json:"passed"`
	Actual  float64 `json:"actual"`
	Message string  `json:"message,omitempty"`
}

// Rule is a typed assertion over a table.
type Rule interface {
	String() string
	Evaluate(t *table.Table) Outcome
}

// ColumnCount asserts on the number of columns.
type ColumnCount struct {
	Op    Op
	Value float64
}

func (r ColumnCount) String() string { return fmt.Sprintf("ColumnCount %s %s", r.Op, num(r.Value)) }

func (r ColumnCount) Evaluate(t *table.Table) Outcome {
	return threshold(r.String(), float64(len(t.Columns())), r.Op, r.Value)
}

// RowCount asserts on the number of rows.
type RowCount struct {
	Op    Op
	Value float64
}

func (r RowCount) String() string { return fmt.Sprintf("RowCount %s %s", r.Op, num(r.Value)) }

func (r RowCount) Evaluate(t *table.Table) Outcome {
	return threshold(r.String(), float64(t.Count()), r.Op, r.Value)
}

// IsComplete asserts that Column exists and holds no NULL.
type IsComplete struct {
	Column string
}

func (r IsComplete) String() string { return fmt.Sprintf("IsComplete %q", r.Column) }

func (r IsComplete) Evaluate(t *table.Table) Outcome {
	if !t.HasColumn(r.Column) {
		return Outcome{Rule: r.String(), Message: "column not found"}
	}
	c := completeness(t.Partitions(), r.Column)
	o := Outcome{Rule: r.String(), Actual: c, Passed: c == 1}
	if !o.Passed {
		o.Message = fmt.Sprintf("completeness %s", num(c))
	}
	return o
}

// ColumnExists asserts that Column is part of the schema.
type ColumnExists struct {
	Column string
}

func (r ColumnExists) String() string { return fmt.Sprintf("ColumnExists %q", r.Column) }

func (r ColumnExists) Evaluate(t *table.Table) Outcome {
	if t.HasColumn(r.Column) {
		return Outcome{Rule: r.String(), Passed: true, Actual: 1}
	}
	return Outcome{Rule: r.String(), Message: "column not found"}
}

// DefaultRuleset is the standard rule set: the table must have at least one
// column.
func DefaultRuleset() []Rule {
	return []Rule{ColumnCount{Op: OpGT, Value: 0}}
}

// RulesFromConfig builds rules from their JSON configuration. An empty input
// yields DefaultRuleset.
func RulesFromConfig(in []config.Rule) ([]Rule, error) {
	if len(in) == 0 {
		return DefaultRuleset(), nil
	}
	out := make([]Rule, 0, len(in))
	for i, c := range in {
		kind := strings.ToLower(strings.TrimSpace(c.Kind))
		switch kind {
		case "column_count", "row_count":
			op, err := ParseOp(c.Op)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			if kind == "column_count" {
				out = append(out, ColumnCount{Op: op, Value: c.Value})
			} else {
				out = append(out, RowCount{Op: op, Value: c.Value})
			}
		case "is_complete", "column_exists":
			if c.Column == "" {
				return nil, fmt.Errorf("rule %d: %s needs a column", i, kind)
			}
			if kind == "is_complete" {
				out = append(out, IsComplete{Column: c.Column})
			} else {
				out = append(out, ColumnExists{Column: c.Column})
			}
		default:
			return nil, fmt.Errorf("rule %d: unknown kind %q", i, c.Kind)
		}
	}
	return out, nil
}

func threshold(name string, actual float64, op Op, want float64) Outcome {
	o := Outcome{Rule: name, Actual: actual, Passed: op.compare(actual, want)}
	if !o.Passed {
		o.Message = fmt.Sprintf("value %s does not satisfy %s %s", num(actual), op, num(want))
	}
	return o
}

// completeness is the share of non-null values; an empty table is complete.
func completeness(parts [][]records.Record, column string) float64 {
	total, nonNull := 0, 0
	for _, p := range parts {
		for _, r := range p {
			total++
			if !r.IsNull(column) {
				nonNull++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return float64(nonNull) / float64(total)
}

func num(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
