// Package dsl builds query states from code instead of the form: a typed
// builder and a YAML script evaluated through it.
package dsl

import (
	"errors"
	"fmt"
	"time"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/state"
)

var (
	ErrNoTable      = errors.New("query has no source table")
	ErrManyMetrics  = errors.New("only one aggregated column is supported")
	ErrBadWindow    = errors.New("window must be at least one second")
	ErrNegativeSize = errors.New("limit must not be negative")
)

// Expr is a selected column, plain or aggregated.
type Expr struct {
	Column string
	Rollup core.Rollup
	agg    bool
}

// Col selects a plain column as a key.
func Col(name string) Expr { return Expr{Column: name} }

// Agg aggregates a column with any rollup.
func Agg(name string, r core.Rollup) Expr { return Expr{Column: name, Rollup: r, agg: true} }

func Count(name string) Expr   { return Agg(name, core.RollupCount) }
func Sum(name string) Expr     { return Agg(name, core.RollupSum) }
func Min(name string) Expr     { return Agg(name, core.RollupMin) }
func Max(name string) Expr     { return Agg(name, core.RollupMax) }
func Avg(name string) Expr     { return Agg(name, core.RollupAvg) }
func CardEst(name string) Expr { return Agg(name, core.RollupCardEst) }
func P50(name string) Expr     { return Agg(name, core.RollupP50) }
func P90(name string) Expr     { return Agg(name, core.RollupP90) }
func P99(name string) Expr     { return Agg(name, core.RollupP99) }

// Filter helpers.
func Eq(col string, values ...string) state.FilterRule {
	return state.FilterRule{Column: col, Op: core.OpEQ, Values: values}
}

func Neq(col string, values ...string) state.FilterRule {
	return state.FilterRule{Column: col, Op: core.OpNEQ, Values: values}
}

func Gt(col, value string) state.FilterRule {
	return state.FilterRule{Column: col, Op: core.OpMore, Values: []string{value}}
}

func Lt(col, value string) state.FilterRule {
	return state.FilterRule{Column: col, Op: core.OpLess, Values: []string{value}}
}

func Like(col string, patterns ...string) state.FilterRule {
	return state.FilterRule{Column: col, Op: core.OpLike, Values: patterns}
}

func ILike(col string, patterns ...string) state.FilterRule {
	return state.FilterRule{Column: col, Op: core.OpILike, Values: patterns}
}

// Query accumulates a state. Misuse is recorded and reported by Build, so
// calls can be chained freely.
type Query struct {
	st   state.QueryState
	errs []error
}

// From starts a query on table. It defaults to a TABLE display sorted
// descending.
func From(table string) *Query {
	return &Query{st: state.QueryState{Table: table, Display: core.DisplayTable, Sort: core.OrderDesc}}
}

// Time sets the time range.
func (q *Query) Time(start, end time.Time) *Query {
	q.st.Start = start.UnixMilli()
	q.st.End = end.UnixMilli()
	return q
}

// Select adds keys and at most one aggregated column.
func (q *Query) Select(exprs ...Expr) *Query {
	for _, e := range exprs {
		if !e.agg {
			q.st.Keys = append(q.st.Keys, e.Column)
			continue
		}
		if q.st.Metrics != "" {
			q.errs = append(q.errs, fmt.Errorf("%w: %s and %s", ErrManyMetrics, q.st.Metrics, e.Column))
			continue
		}
		q.st.Metrics = e.Column
		q.st.Rollup = e.Rollup
	}
	return q
}

// Where requires every rule to match.
func (q *Query) Where(rules ...state.FilterRule) *Query {
	return q.filter(state.And, rules)
}

// WhereAny requires one rule to match.
func (q *Query) WhereAny(rules ...state.FilterRule) *Query {
	return q.filter(state.Or, rules)
}

func (q *Query) filter(logic state.Logic, rules []state.FilterRule) *Query {
	if q.st.Filter != nil {
		q.errs = append(q.errs, errors.New("only one filter group is supported"))
		return q
	}
	q.st.Filter = state.Build(rules, logic)
	return q
}

// Display picks the visualization.
func (q *Query) Display(d core.DisplayType) *Query {
	q.st.Display = d
	return q
}

// Samples returns raw rows instead of aggregates.
func (q *Query) Samples() *Query { return q.Display(core.DisplaySamples) }

// Timeline aggregates per time window.
func (q *Query) Timeline(window time.Duration) *Query {
	if window < time.Second {
		q.errs = append(q.errs, fmt.Errorf("%w: %s", ErrBadWindow, window))
	}
	q.st.Display = core.DisplayTimeline
	q.st.Window = int64(window / time.Second)
	return q
}

// SortBy orders on the aggregated column.
func (q *Query) SortBy(o core.OrderType) *Query {
	q.st.Sort = o
	return q
}

func (q *Query) Limit(n int) *Query {
	if n < 0 {
		q.errs = append(q.errs, fmt.Errorf("%w: %d", ErrNegativeSize, n))
	}
	q.st.Limit = n
	return q
}

// Validate reports builder misuse and then runs the same checks a state
// from the form goes through.
func (q *Query) Validate() error {
	if q.st.Table == "" {
		return ErrNoTable
	}
	if err := errors.Join(q.errs...); err != nil {
		return err
	}
	if err := state.CheckTimeRange(&q.st); err != nil {
		return err
	}
	return state.Validate(&q.st)
}

// Build validates and returns a copy of the accumulated state.
func (q *Query) Build() (*state.QueryState, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q.st.Clone(), nil
}
