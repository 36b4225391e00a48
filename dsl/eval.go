package dsl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/state"
	"gopkg.in/yaml.v3"
)

// MaxScriptBytes bounds the size of a script.
const MaxScriptBytes = 64 << 10

var ErrScriptTooLarge = errors.New("script too large")

// scalar keeps the raw text of a YAML scalar whatever its resolved tag, so
// times and windows can be written with or without quotes.
type scalar string

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	*s = scalar(n.Value)
	return nil
}

type script struct {
	Source  string      `yaml:"source"`
	Start   scalar      `yaml:"start"`
	End     scalar      `yaml:"end"`
	Keys    []string    `yaml:"keys"`
	Metric  *metricSpec `yaml:"metric"`
	Where   *whereSpec  `yaml:"where"`
	Display string      `yaml:"display"`
	Window  scalar      `yaml:"window"`
	Sort    string      `yaml:"sort"`
	Limit   int         `yaml:"limit"`
}

type metricSpec struct {
	Column string `yaml:"column"`
	Rollup string `yaml:"rollup"`
}

type whereSpec struct {
	And []rule `yaml:"and"`
	Or  []rule `yaml:"or"`
}

type rule struct {
	Column string   `yaml:"column"`
	Op     string   `yaml:"op"`
	Values []string `yaml:"values"`
}

var opAliases = map[string]core.Operation{
	"=": core.OpEQ, "==": core.OpEQ, "eq": core.OpEQ,
	"!=": core.OpNEQ, "<>": core.OpNEQ, "neq": core.OpNEQ,
	">": core.OpMore, "gt": core.OpMore,
	"<": core.OpLess, "lt": core.OpLess,
}

// Eval runs a YAML query script through the builder. A script looks like:
//
//	source: nebula.test
//	start: 2019-02-01 00:00:00
//	end: 2019-05-01 00:00:00
//	keys: [country]
//	metric: {column: value, rollup: p99}
//	where:
//	  and:
//	    - {column: country, op: eq, values: [us, gb]}
//	display: timeline
//	window: 1h
//	sort: desc
//	limit: 100
//
// Unknown fields are rejected. The script text is kept in the state's Code.
func Eval(src string) (*state.QueryState, error) {
	if len(src) > MaxScriptBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrScriptTooLarge, len(src))
	}
	dec := yaml.NewDecoder(strings.NewReader(src))
	dec.KnownFields(true)
	var sc script
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	q := From(sc.Source)
	if sc.Start != "" || sc.End != "" {
		start, err := parseTime(string(sc.Start))
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		end, err := parseTime(string(sc.End))
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		q.Time(start, end)
	}
	for _, k := range sc.Keys {
		q.Select(Col(k))
	}
	if m := sc.Metric; m != nil {
		r, err := core.ParseRollup(m.Rollup)
		if err != nil {
			return nil, err
		}
		q.Select(Agg(m.Column, r))
	}
	if w := sc.Where; w != nil {
		if len(w.And) > 0 && len(w.Or) > 0 {
			return nil, errors.New("where: use either and or or")
		}
		rules, logic := w.And, state.And
		if len(w.Or) > 0 {
			rules, logic = w.Or, state.Or
		}
		built := make([]state.FilterRule, 0, len(rules))
		for _, r := range rules {
			op, err := parseOp(r.Op)
			if err != nil {
				return nil, err
			}
			built = append(built, state.FilterRule{Column: r.Column, Op: op, Values: r.Values})
		}
		q.filter(logic, built)
	}
	if sc.Window != "" {
		w, err := parseWindow(string(sc.Window))
		if err != nil {
			return nil, fmt.Errorf("window: %w", err)
		}
		q.Timeline(w)
	}
	if sc.Display != "" {
		d, err := core.ParseDisplayType(sc.Display)
		if err != nil {
			return nil, err
		}
		q.Display(d)
	}
	if sc.Sort != "" {
		o, err := core.ParseOrderType(sc.Sort)
		if err != nil {
			return nil, err
		}
		q.SortBy(o)
	}
	q.Limit(sc.Limit)

	st, err := q.Build()
	if err != nil {
		return nil, err
	}
	st.Code = src
	return st, nil
}

func parseOp(s string) (core.Operation, error) {
	if op, ok := opAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op, nil
	}
	return core.ParseOperation(s)
}

// parseTime accepts epoch milliseconds, the display layout or RFC3339.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	if t, err := time.ParseInLocation(core.TimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseWindow accepts a Go duration or a number of seconds.
func parseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
