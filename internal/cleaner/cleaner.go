// Package cleaner applies the fixed cleaning sequence of the credit-risk job:
// exact-row de-duplication followed by a declarative list of column rules.
package cleaner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"creditetl/internal/table"
	"creditetl/internal/transformer"
	"creditetl/internal/transformer/builtin"
)

// ColumnRule binds a transform to the column it needs. The rule runs only when
// Column is part of the observed schema.
type ColumnRule struct {
	Column string
	Rule   transformer.Transformer
}

// DefaultRules returns the credit-risk rules in application order.
func DefaultRules() []ColumnRule {
	return []ColumnRule{
		{Column: "person_age", Rule: builtin.Between("person_age", 0, 100)},
		{Column: "person_income", Rule: builtin.Positive("person_income")},
		{Column: "loan_int_rate", Rule: builtin.FillNull{Column: "loan_int_rate", Value: 0.0}},
		{Column: "loan_amnt", Rule: builtin.FillNull{Column: "loan_amnt", Value: 0}},
		{Column: "loan_status", Rule: builtin.UpperTrim{Column: "loan_status"}},
	}
}

// Step records the effect of one cleaning step.
type Step struct {
	Name    string
	Column  string
	Skipped bool
	Before  int
	After   int
	Elapsed time.Duration
}

// Report summarises a Clean call.
type Report struct {
	Steps []Step
	In    int
	Out   int
}

// Dropped returns the number of rows removed by all steps.
func (r Report) Dropped() int { return r.In - r.Out }

// Cleaner runs de-duplication and then Rules in order. A nil Rules uses
// DefaultRules; an empty non-nil slice runs de-duplication only.
type Cleaner struct {
	Rules  []ColumnRule
	Logger *zap.Logger
}

// Clean returns the cleaned table. Any error from a step aborts the run.
func (c Cleaner) Clean(ctx context.Context, t *table.Table) (*table.Table, Report, error) {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rules := c.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	rep := Report{In: t.Count()}
	cur := t

	run := func(name, column string, tr transformer.Transformer) error {
		st := Step{Name: name, Column: column, Before: cur.Count()}
		if column != "" && !cur.HasColumn(column) {
			st.Skipped, st.After = true, st.Before
			rep.Steps = append(rep.Steps, st)
			log.Debug("cleaner: column absent, rule skipped", zap.String("column", column), zap.String("rule", name))
			return nil
		}
		start := time.Now()
		next, err := tr.Apply(ctx, cur)
		if err != nil {
			return fmt.Errorf("cleaner: %s: %w", name, err)
		}
		cur = next
		st.After, st.Elapsed = cur.Count(), time.Since(start)
		rep.Steps = append(rep.Steps, st)
		log.Debug("cleaner: step done",
			zap.String("rule", name),
			zap.String("column", column),
			zap.Int("before", st.Before),
			zap.Int("after", st.After),
		)
		return nil
	}

	if err := run("drop_duplicates", "", builtin.DropDuplicates{}); err != nil {
		return nil, rep, err
	}
	for _, r := range rules {
		if r.Rule == nil {
			continue
		}
		if err := run(ruleName(r.Rule), r.Column, r.Rule); err != nil {
			return nil, rep, err
		}
	}

	rep.Out = cur.Count()
	log.Info("cleaner: done", zap.Int("rows_in", rep.In), zap.Int("rows_out", rep.Out), zap.Int("steps", len(rep.Steps)))
	return cur, rep, nil
}

func ruleName(t transformer.Transformer) string {
	switch t.(type) {
	case builtin.Range:
		return "range"
	case builtin.FillNull:
		return "fill_null"
	case builtin.UpperTrim:
		return "upper_trim"
	case builtin.DropDuplicates:
		return "drop_duplicates"
	default:
		return fmt.Sprintf("%T", t)
	}
}
