// Package dispatch turns backend responses into render instructions and
// keeps the last result on screen across viewport changes.
package dispatch

import (
	"fmt"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/state"
)

// Kind selects the render variant.
type Kind int

const (
	KindFailed Kind = iota
	KindEmpty
	KindGrid
	KindTimeline
	KindChart
)

func (k Kind) String() string {
	switch k {
	case KindFailed:
		return "failed"
	case KindEmpty:
		return "empty"
	case KindGrid:
		return "grid"
	case KindTimeline:
		return "timeline"
	case KindChart:
		return "chart"
	}
	return "unknown"
}

// Series is a named group of timeline rows. The name is empty when the
// query has no dimension.
type Series struct {
	Name string
	Rows []Row
}

// Instruction is everything a renderer needs to draw one result.
type Instruction struct {
	Kind       Kind
	Display    core.DisplayType
	Error      string
	DurationMs int64

	Columns   []string
	Rows      []Row
	Dimension string
	Metric    string

	Series    []Series
	WindowKey string
	StartMs   int64
}

// Status is the short inline text shown next to the result.
func (i *Instruction) Status() string {
	if i.Kind == KindFailed {
		return fmt.Sprintf("[query: error=%s, latency=%d ms]", i.Error, i.DurationMs)
	}
	return fmt.Sprintf("[query time: %d ms]", i.DurationMs)
}

// Dispatch picks the render variant for resp according to the state that
// produced it.
func Dispatch(s *state.QueryState, resp *core.Response) *Instruction {
	if resp.Error != "" {
		return &Instruction{Kind: KindFailed, Display: s.Display, Error: resp.Error, DurationMs: resp.Duration}
	}

	rows, columns, err := DecodeRows(resp.Data)
	if err != nil {
		return &Instruction{Kind: KindFailed, Display: s.Display, Error: err.Error(), DurationMs: resp.Duration}
	}
	if len(rows) == 0 {
		return &Instruction{Kind: KindEmpty, Display: s.Display, DurationMs: resp.Duration}
	}

	dimension, metric := ExtractXY(columns, s.Keys)
	instr := &Instruction{
		Display:    s.Display,
		DurationMs: resp.Duration,
		Columns:    columns,
		Rows:       rows,
		Dimension:  dimension,
		Metric:     metric,
	}

	switch s.Display {
	case core.DisplayTable, core.DisplaySamples:
		instr.Kind = KindGrid
	case core.DisplayTimeline:
		instr.Kind = KindTimeline
		instr.WindowKey = core.WindowColumn
		instr.StartMs = s.Start
		if dimension != "" {
			instr.Series = GroupBy(rows, dimension)
		} else {
			instr.Series = []Series{{Rows: rows}}
		}
	default:
		instr.Kind = KindChart
	}
	return instr
}

// ExtractXY picks the display pair: the first key is the dimension and the
// first column of the first row that is not a key is the metric. Only
// single-dimension, single-metric results are guaranteed to come out right.
func ExtractXY(columns, keys []string) (dimension, metric string) {
	if len(keys) > 0 {
		dimension = keys[0]
	}
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	for _, c := range columns {
		if !isKey[c] {
			metric = c
			break
		}
	}
	return dimension, metric
}

// GroupBy splits rows into series by the value of column, in order of
// first appearance.
func GroupBy(rows []Row, column string) []Series {
	index := map[string]int{}
	var series []Series
	for _, r := range rows {
		name := Cell(r[column])
		i, ok := index[name]
		if !ok {
			i = len(series)
			index[name] = i
			series = append(series, Series{Name: name})
		}
		series[i].Rows = append(series[i].Rows, r)
	}
	return series
}
