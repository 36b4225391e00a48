package core

import (
	"fmt"
	"math"
	"time"
)

// Predicate is a single column condition.
type Predicate struct {
	Column string    `json:"column"`
	Op     Operation `json:"op"`
	Values []string  `json:"values"`
}

// PredicateGroup combines predicates with one boolean operator.
type PredicateGroup struct {
	Expressions []Predicate `json:"expressions"`
}

// Metric is an aggregated column.
type Metric struct {
	Column string `json:"column"`
	Method Rollup `json:"method"`
}

// Order sorts results on a column.
type Order struct {
	Column string    `json:"column"`
	Type   OrderType `json:"type"`
}

// Request is the backend query compiled from a query state.
// At most one of FilterA and FilterO is set.
type Request struct {
	Table      string          `json:"table"`
	Start      int64           `json:"start"`
	End        int64           `json:"end"`
	FilterA    *PredicateGroup `json:"filtera,omitempty"`
	FilterO    *PredicateGroup `json:"filtero,omitempty"`
	Dimensions []string        `json:"dimensions"`
	Display    DisplayType     `json:"display"`
	Window     int64           `json:"window"`
	Metrics    []Metric        `json:"metrics,omitempty"`
	Order      *Order          `json:"order,omitempty"`
	Top        int             `json:"top"`

	// Source is the state JSON the request was compiled from. Proxy
	// transports forward it verbatim.
	Source string `json:"-"`
}

// Response is a backend answer. Error is set when the query itself failed;
// Data holds UTF-8 JSON rows otherwise.
type Response struct {
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"duration"`
	Data     []byte `json:"data"`
}

// TableSchema describes a table as reported by the backend.
// MinTime and MaxTime are epoch seconds.
type TableSchema struct {
	BlockCount  int64    `json:"bc"`
	RowCount    int64    `json:"rc"`
	MemoryBytes int64    `json:"ms"`
	MinTime     int64    `json:"mt"`
	MaxTime     int64    `json:"xt"`
	Dimensions  []string `json:"dl"`
	Metrics     []string `json:"ml"`
}

// TimeLayout is how timestamps are shown to users.
const TimeLayout = "2006-01-02 15:04:05"

// Summary renders the one-line table stats banner.
func (t *TableSchema) Summary() string {
	rows := math.Round(float64(t.RowCount)/10000) / 100
	mem := math.Round(float64(t.MemoryBytes)/10000000) / 100
	return fmt.Sprintf("[Blocks: %d, Rows: %vM, Mem: %vGB, Min T: %s, Max T: %s]",
		t.BlockCount, rows, mem,
		time.Unix(t.MinTime, 0).UTC().Format(TimeLayout),
		time.UnixMilli(t.MaxTime*1000+1).UTC().Format(TimeLayout))
}

// Columns lists dimensions then metrics, without the reserved time column.
func (t *TableSchema) Columns() []string {
	cols := make([]string, 0, len(t.Dimensions)+len(t.Metrics))
	for _, c := range t.Dimensions {
		if c != TimeColumn {
			cols = append(cols, c)
		}
	}
	for _, c := range t.Metrics {
		if c != TimeColumn {
			cols = append(cols, c)
		}
	}
	return cols
}

// User is the identity reported by the proxy.
type User struct {
	Auth bool   `json:"auth"`
	User string `json:"user,omitempty"`
}
