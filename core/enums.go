package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TimeColumn is the reserved timestamp column every table carries.
const TimeColumn = "_time_"

// WindowColumn is produced by the backend for time-bucketed results.
const WindowColumn = "_window_"

// DisplayType selects how a result set is presented.
type DisplayType int

const (
	DisplaySamples DisplayType = iota
	DisplayTable
	DisplayTimeline
	DisplayBar
	DisplayPie
	DisplayLine
	DisplayFlame
)

var displayNames = []string{"SAMPLES", "TABLE", "TIMELINE", "BAR", "PIE", "LINE", "FLAME"}

func (d DisplayType) String() string { return enumName(displayNames, int(d)) }

func (d DisplayType) MarshalJSON() ([]byte, error) { return json.Marshal(int(d)) }

func (d *DisplayType) UnmarshalJSON(b []byte) error {
	v, err := parseEnum(b, displayNames, "display")
	*d = DisplayType(v)
	return err
}

// ParseDisplayType accepts a name ("timeline") or its numeric value.
func ParseDisplayType(s string) (DisplayType, error) {
	v, err := lookupEnum(s, displayNames, "display")
	return DisplayType(v), err
}

// Rollup is the aggregation applied to a metric column.
type Rollup int

const (
	RollupCount Rollup = iota
	RollupSum
	RollupMin
	RollupMax
	RollupAvg
	RollupTreeMerge
	RollupCardEst
	RollupP10
	RollupP25
	RollupP50
	RollupP75
	RollupP90
	RollupP99
	RollupP99_9
	RollupP99_99
)

var rollupNames = []string{
	"COUNT", "SUM", "MIN", "MAX", "AVG", "TREEMERGE", "CARD_EST",
	"P10", "P25", "P50", "P75", "P90", "P99", "P99_9", "P99_99",
}

func (r Rollup) String() string { return enumName(rollupNames, int(r)) }

func (r Rollup) MarshalJSON() ([]byte, error) { return json.Marshal(int(r)) }

func (r *Rollup) UnmarshalJSON(b []byte) error {
	v, err := parseEnum(b, rollupNames, "rollup")
	*r = Rollup(v)
	return err
}

func ParseRollup(s string) (Rollup, error) {
	v, err := lookupEnum(s, rollupNames, "rollup")
	return Rollup(v), err
}

// Percentile returns the quantile a percentile rollup stands for.
func (r Rollup) Percentile() (float64, bool) {
	switch r {
	case RollupP10:
		return 0.10, true
	case RollupP25:
		return 0.25, true
	case RollupP50:
		return 0.50, true
	case RollupP75:
		return 0.75, true
	case RollupP90:
		return 0.90, true
	case RollupP99:
		return 0.99, true
	case RollupP99_9:
		return 0.999, true
	case RollupP99_99:
		return 0.9999, true
	}
	return 0, false
}

// OrderType is the sort direction on the metric column.
type OrderType int

const (
	OrderAsc OrderType = iota
	OrderDesc
	OrderNone
)

var orderNames = []string{"ASC", "DESC", "NONE"}

func (o OrderType) String() string { return enumName(orderNames, int(o)) }

func (o OrderType) MarshalJSON() ([]byte, error) { return json.Marshal(int(o)) }

func (o *OrderType) UnmarshalJSON(b []byte) error {
	v, err := parseEnum(b, orderNames, "sort")
	*o = OrderType(v)
	return err
}

func ParseOrderType(s string) (OrderType, error) {
	v, err := lookupEnum(s, orderNames, "sort")
	return OrderType(v), err
}

// Operation is a filter predicate operator.
type Operation int

const (
	OpEQ Operation = iota
	OpNEQ
	OpMore
	OpLess
	OpLike
	OpILike
)

var operationNames = []string{"EQ", "NEQ", "MORE", "LESS", "LIKE", "ILIKE"}

// Symbol is the operator as shown in the filter editor.
func (o Operation) Symbol() string {
	switch o {
	case OpEQ:
		return "="
	case OpNEQ:
		return "!="
	case OpMore:
		return ">"
	case OpLess:
		return "<"
	case OpLike:
		return "like"
	case OpILike:
		return "ilike"
	}
	return "?"
}

func (o Operation) String() string { return enumName(operationNames, int(o)) }

func (o Operation) MarshalJSON() ([]byte, error) { return json.Marshal(int(o)) }

func (o *Operation) UnmarshalJSON(b []byte) error {
	v, err := parseEnum(b, operationNames, "operation")
	*o = Operation(v)
	return err
}

func ParseOperation(s string) (Operation, error) {
	v, err := lookupEnum(s, operationNames, "operation")
	return Operation(v), err
}

func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("UNKNOWN(%d)", v)
	}
	return names[v]
}

// parseEnum accepts a JSON number, a numeric string (the legacy web form
// posted select values as strings) or a case-insensitive name.
func parseEnum(b []byte, names []string, kind string) (int, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		return lookupEnum(s, names, kind)
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return 0, fmt.Errorf("invalid %s value %s: %w", kind, b, err)
	}
	if n < 0 || n >= len(names) {
		return 0, fmt.Errorf("invalid %s value %d", kind, n)
	}
	return n, nil
}

func lookupEnum(s string, names []string, kind string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= len(names) {
			return 0, fmt.Errorf("invalid %s value %d", kind, n)
		}
		return n, nil
	}
	for i, name := range names {
		if strings.EqualFold(name, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}
