package render

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/dispatch"
	"github.com/wcharczuk/go-chart/v2"
)

// Chart writes bar, pie, line, flame and timeline results as SVG. Grids,
// failures and empty results go to Fallback.
type Chart struct {
	W        io.Writer
	Fallback dispatch.Renderer
}

var _ dispatch.Renderer = (*Chart)(nil)

func (c *Chart) Render(instr *dispatch.Instruction, vp dispatch.Viewport) error {
	switch instr.Kind {
	case dispatch.KindTimeline:
		return c.timeline(instr, vp)
	case dispatch.KindChart:
		values := Values(instr.Rows, instr.Dimension, instr.Metric)
		if len(values) == 0 {
			return fmt.Errorf("no numeric values in column %q", instr.Metric)
		}
		switch instr.Display {
		case core.DisplayPie:
			return chart.PieChart{Width: vp.Width, Height: vp.Height, Values: values}.Render(chart.SVG, c.W)
		case core.DisplayLine:
			return c.line(values, vp)
		case core.DisplayFlame:
			// widest frames first
			sort.SliceStable(values, func(i, j int) bool { return values[i].Value > values[j].Value })
			return c.bar(values, vp)
		default:
			return c.bar(values, vp)
		}
	}
	if c.Fallback == nil {
		return fmt.Errorf("no renderer for %s results", instr.Kind)
	}
	return c.Fallback.Render(instr, vp)
}

func (c *Chart) bar(values []chart.Value, vp dispatch.Viewport) error {
	return chart.BarChart{
		Width:    vp.Width,
		Height:   vp.Height,
		BarWidth: 40,
		Bars:     values,
	}.Render(chart.SVG, c.W)
}

func (c *Chart) line(values []chart.Value, vp dispatch.Viewport) error {
	xs := make([]float64, len(values))
	ys := make([]float64, len(values))
	for i, v := range values {
		xs[i] = float64(i)
		ys[i] = v.Value
	}
	graph := chart.Chart{
		Width:  vp.Width,
		Height: vp.Height,
		Series: []chart.Series{
			chart.ContinuousSeries{XValues: xs, YValues: ys},
		},
	}
	return graph.Render(chart.SVG, c.W)
}

func (c *Chart) timeline(instr *dispatch.Instruction, vp dispatch.Viewport) error {
	series := make([]chart.Series, 0, len(instr.Series))
	for _, s := range instr.Series {
		ts := chart.TimeSeries{Name: s.Name}
		for _, r := range s.Rows {
			y, ok := dispatch.Number(r[instr.Metric])
			if !ok {
				continue
			}
			ts.XValues = append(ts.XValues, WindowTime(r[instr.WindowKey], instr.StartMs))
			ts.YValues = append(ts.YValues, y)
		}
		if len(ts.XValues) > 0 {
			series = append(series, ts)
		}
	}
	if len(series) == 0 {
		return fmt.Errorf("no numeric values in column %q", instr.Metric)
	}
	graph := chart.Chart{
		Width:  vp.Width,
		Height: vp.Height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(time.DateTime),
		},
		Series: series,
	}
	return graph.Render(chart.SVG, c.W)
}

// Values pairs each row's dimension label with its numeric metric. Rows
// whose metric is not numeric are skipped.
func Values(rows []dispatch.Row, dimension, metric string) []chart.Value {
	values := make([]chart.Value, 0, len(rows))
	for _, r := range rows {
		v, ok := dispatch.Number(r[metric])
		if !ok {
			continue
		}
		values = append(values, chart.Value{Label: dispatch.Cell(r[dimension]), Value: v})
	}
	return values
}
