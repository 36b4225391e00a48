// Package compiler translates a validated query state into a backend request.
package compiler

import (
	"encoding/json"
	"math"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/state"
)

// Compile maps s into a backend request. It never touches the network and
// never mutates s.
func Compile(s *state.QueryState) *core.Request {
	req := &core.Request{
		Table:   s.Table,
		Start:   Seconds(s.Start),
		End:     Seconds(s.End),
		Display: s.Display,
		Window:  s.Window,
		Top:     s.Limit,
	}

	if preds := predicates(s.Filter); len(preds) > 0 {
		switch s.Filter.Logic {
		case state.And:
			req.FilterA = &core.PredicateGroup{Expressions: preds}
		case state.Or:
			req.FilterO = &core.PredicateGroup{Expressions: preds}
		}
	}

	req.Dimensions = dimensions(s)

	// rollup and ordering are meaningless over raw samples
	if s.Display != core.DisplaySamples {
		req.Metrics = []core.Metric{{Column: s.Metrics, Method: s.Rollup}}
		req.Order = &core.Order{Column: s.Metrics, Type: s.Sort}
	}

	if b, err := json.Marshal(s); err == nil {
		req.Source = string(b)
	}
	return req
}

// Seconds converts epoch milliseconds to whole seconds.
func Seconds(ms int64) int64 {
	return int64(math.Round(float64(ms) / 1000))
}

func predicates(g *state.FilterGroup) []core.Predicate {
	rules := g.Active()
	if len(rules) == 0 {
		return nil
	}
	preds := make([]core.Predicate, 0, len(rules))
	for _, r := range rules {
		preds = append(preds, core.Predicate{
			Column: r.Column,
			Op:     r.Op,
			Values: append([]string(nil), r.Values...),
		})
	}
	return preds
}

// dimensions prepends the time column for samples so the backend always
// returns the sampled timestamps.
func dimensions(s *state.QueryState) []string {
	keys := make([]string, 0, len(s.Keys)+1)
	if s.Display == core.DisplaySamples && (len(s.Keys) == 0 || s.Keys[0] != core.TimeColumn) {
		keys = append(keys, core.TimeColumn)
	}
	return append(keys, s.Keys...)
}
