package backend

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gigapi/gigapi-explorer/core"
)

var (
	ErrNoTable           = errors.New("request has no table")
	ErrUnsupportedRollup = errors.New("unsupported rollup")
	ErrEmptyPredicate    = errors.New("predicate has no values")
)

// MetricAlias is the result column name of an aggregated metric.
func MetricAlias(m core.Metric) string {
	return strings.ToLower(m.Method.String()) + "_" + m.Column
}

// BuildSQL compiles a request into a DuckDB statement and its arguments.
// Times compare against the epoch-seconds column _time_. Filter values are
// bound as numbers only for the columns in numeric, as text otherwise.
func BuildSQL(req *core.Request, numeric map[string]bool) (string, []any, error) {
	if req.Table == "" {
		return "", nil, ErrNoTable
	}

	var (
		sel     []string
		groupBy []string
		orderBy []string
		args    []any
	)
	for _, d := range req.Dimensions {
		sel = append(sel, quote(d))
	}

	aggregate := req.Display != core.DisplaySamples && len(req.Metrics) > 0
	if aggregate {
		groupBy = append(groupBy, sel...)
		for _, m := range req.Metrics {
			expr, err := rollupExpr(m)
			if err != nil {
				return "", nil, err
			}
			sel = append(sel, expr+" AS "+quote(MetricAlias(m)))
		}
		if req.Display == core.DisplayTimeline {
			window := req.Window
			if window <= 0 {
				window = max(req.End-req.Start, 1)
			}
			bucket := fmt.Sprintf("((%s - %d) // %d) * %d + %d",
				quote(core.TimeColumn), req.Start, window, window, req.Start)
			sel = append(sel, bucket+" AS "+quote(core.WindowColumn))
			groupBy = append(groupBy, quote(core.WindowColumn))
			orderBy = append(orderBy, quote(core.WindowColumn))
		}
		if o := req.Order; o != nil && o.Type != core.OrderNone {
			col := o.Column
			for _, m := range req.Metrics {
				if m.Column == o.Column {
					col = MetricAlias(m)
					break
				}
			}
			dir := "ASC"
			if o.Type == core.OrderDesc {
				dir = "DESC"
			}
			orderBy = append(orderBy, quote(col)+" "+dir)
		}
	}
	if len(sel) == 0 {
		sel = []string{"*"}
	}

	var where []string
	if req.End > 0 {
		where = append(where, quote(core.TimeColumn)+" >= ? AND "+quote(core.TimeColumn)+" <= ?")
		args = append(args, req.Start, req.End)
	}
	for _, g := range []struct {
		group *core.PredicateGroup
		join  string
	}{{req.FilterA, " AND "}, {req.FilterO, " OR "}} {
		if g.group == nil || len(g.group.Expressions) == 0 {
			continue
		}
		parts := make([]string, 0, len(g.group.Expressions))
		for _, p := range g.group.Expressions {
			expr, pargs, err := predicateExpr(p, numeric[p.Column])
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, expr)
			args = append(args, pargs...)
		}
		where = append(where, "("+strings.Join(parts, g.join)+")")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(sel, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quote(req.Table))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupBy, ", "))
	}
	if len(orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orderBy, ", "))
	}
	if req.Top > 0 {
		fmt.Fprintf(&b, " LIMIT %d", req.Top)
	}
	return b.String(), args, nil
}

func rollupExpr(m core.Metric) (string, error) {
	col := quote(m.Column)
	if q, ok := m.Method.Percentile(); ok {
		return fmt.Sprintf("quantile_cont(%s, %s)", col, strconv.FormatFloat(q, 'f', -1, 64)), nil
	}
	switch m.Method {
	case core.RollupCount:
		return "count(" + col + ")", nil
	case core.RollupSum:
		return "sum(" + col + ")", nil
	case core.RollupMin:
		return "min(" + col + ")", nil
	case core.RollupMax:
		return "max(" + col + ")", nil
	case core.RollupAvg:
		return "avg(" + col + ")", nil
	case core.RollupCardEst:
		return "approx_count_distinct(" + col + ")", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedRollup, m.Method)
}

func predicateExpr(p core.Predicate, numeric bool) (string, []any, error) {
	if len(p.Values) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrEmptyPredicate, p.Column)
	}
	col := quote(p.Column)
	args := make([]any, len(p.Values))
	for i, v := range p.Values {
		args[i] = v
		if numeric {
			args[i] = literal(v)
		}
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	switch p.Op {
	case core.OpEQ:
		return col + " IN (" + marks + ")", args, nil
	case core.OpNEQ:
		return col + " NOT IN (" + marks + ")", args, nil
	case core.OpMore:
		return col + " > ?", args[:1], nil
	case core.OpLess:
		return col + " < ?", args[:1], nil
	case core.OpLike, core.OpILike:
		op := " LIKE ?"
		if p.Op == core.OpILike {
			op = " ILIKE ?"
		}
		parts := make([]string, len(p.Values))
		for i, v := range p.Values {
			parts[i] = col + op
			args[i] = v
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}
	return "", nil, fmt.Errorf("unknown operation %s on %s", p.Op, p.Column)
}

// literal parses a value compared against a numeric column.
func literal(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if strings.ContainsAny(v, "nNiIxXpP_") {
		return v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
