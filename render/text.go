// Package render draws dispatch instructions as text tables or SVG charts.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/dispatch"
)

// NoResults is shown for an empty result set.
const NoResults = "NO RESULTS."

// Text writes instructions as aligned plain-text tables.
type Text struct {
	W io.Writer
}

var _ dispatch.Renderer = (*Text)(nil)

func (t *Text) Render(instr *dispatch.Instruction, vp dispatch.Viewport) error {
	switch instr.Kind {
	case dispatch.KindFailed:
		_, err := fmt.Fprintln(t.W, instr.Status())
		return err
	case dispatch.KindEmpty:
		_, err := fmt.Fprintf(t.W, "%s\n%s\n", instr.Status(), NoResults)
		return err
	case dispatch.KindGrid:
		return t.grid(instr.Status(), instr.Columns, instr.Rows, vp)
	case dispatch.KindTimeline:
		return t.timeline(instr, vp)
	case dispatch.KindChart:
		return t.grid(instr.Status(), []string{instr.Dimension, instr.Metric}, instr.Rows, vp)
	}
	return fmt.Errorf("unsupported instruction kind %s", instr.Kind)
}

func (t *Text) grid(status string, columns []string, rows []dispatch.Row, vp dispatch.Viewport) error {
	if _, err := fmt.Fprintln(t.W, status); err != nil {
		return err
	}
	width := cellWidth(vp, len(columns))
	tw := tabwriter.NewWriter(t.W, 0, 4, 2, ' ', 0)
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = clip(c, width)
	}
	fmt.Fprintln(tw, strings.Join(cells, "\t"))
	for _, r := range rows {
		for i, c := range columns {
			cells[i] = clip(dispatch.Cell(r[c]), width)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func (t *Text) timeline(instr *dispatch.Instruction, vp dispatch.Viewport) error {
	if _, err := fmt.Fprintln(t.W, instr.Status()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(t.W, 0, 4, 2, ' ', 0)
	for _, s := range instr.Series {
		name := s.Name
		if name == "" {
			name = "default"
		}
		fmt.Fprintf(tw, "== %s ==\n", name)
		for _, r := range s.Rows {
			fmt.Fprintf(tw, "%s\t%s\n", WindowTime(r[instr.WindowKey], instr.StartMs).UTC().Format(core.TimeLayout),
				dispatch.Cell(r[instr.Metric]))
		}
	}
	return tw.Flush()
}

// WindowTime resolves a window cell to a point in time. Values are epoch
// seconds; values smaller than the query start are offsets from it.
func WindowTime(v any, startMs int64) time.Time {
	f, ok := dispatch.Number(v)
	if !ok {
		return time.UnixMilli(startMs)
	}
	sec := int64(f)
	if sec < startMs/1000 {
		sec += startMs / 1000
	}
	return time.Unix(sec, 0)
}

func cellWidth(vp dispatch.Viewport, columns int) int {
	if vp.Width <= 0 || columns == 0 {
		return 0
	}
	w := vp.Width/columns - 2
	if w < 4 {
		w = 4
	}
	return w
}

func clip(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
