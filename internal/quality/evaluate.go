package quality

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"creditetl/internal/table"
)

// Observation scopes.
const (
	ScopeAll  = "ALL"
	ScopeNone = "NONE"
)

// Observation is a metric computed alongside the rules.
type Observation struct {
	Name   string  `json:"name"`
	Column string  `json:"column,omitempty"`
	Value  float64 `json:"value"`
}

// Result is one evaluation of a rule set.
type Result struct {
	RunID        string        `json:"run_id"`
	Context      string        `json:"context"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
	Passed       bool          `json:"passed"`
	Outcomes     []Outcome     `json:"outcomes"`
	Observations []Observation `json:"observations,omitempty"`
}

// Failed returns the outcomes that did not pass.
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

// Evaluator runs Rules against a table under an evaluation context.
type Evaluator struct {
	Context string
	Rules   []Rule
	// Scope is ScopeAll or ScopeNone; empty means ScopeAll.
	Scope string
}

// Evaluate checks every rule. A nil Rules uses DefaultRuleset. The only error
// is ctx cancellation.
func (e Evaluator) Evaluate(ctx context.Context, t *table.Table) (Result, error) {
	rules := e.Rules
	if rules == nil {
		rules = DefaultRuleset()
	}
	res := Result{
		RunID:       uuid.NewString(),
		Context:     e.Context,
		EvaluatedAt: time.Now().UTC(),
		Passed:      true,
	}
	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		o := r.Evaluate(t)
		res.Outcomes = append(res.Outcomes, o)
		res.Passed = res.Passed && o.Passed
	}

	switch strings.ToUpper(e.Scope) {
	case "", ScopeAll:
		obs, err := observe(ctx, t)
		if err != nil {
			return res, err
		}
		res.Observations = obs
	case ScopeNone:
	default:
		return res, fmt.Errorf("quality: unknown observations scope %q", e.Scope)
	}
	return res, nil
}

// observe computes table-level counts plus completeness and distinct count
// for every column.
func observe(ctx context.Context, t *table.Table) ([]Observation, error) {
	obs := []Observation{
		{Name: "row_count", Value: float64(t.Count())},
		{Name: "column_count", Value: float64(len(t.Columns()))},
	}
	parts := t.Partitions()
	for _, col := range t.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		distinct := make(map[any]struct{})
		for _, p := range parts {
			for _, r := range p {
				if v := r[col]; v != nil {
					distinct[distinctKey(v)] = struct{}{}
				}
			}
		}
		obs = append(obs,
			Observation{Name: "completeness", Column: col, Value: completeness(parts, col)},
			Observation{Name: "distinct_count", Column: col, Value: float64(len(distinct))},
		)
	}
	return obs, nil
}

func distinctKey(v any) any {
	switch v.(type) {
	case string, int64, float64, bool, int, int32, float32:
		return v
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
