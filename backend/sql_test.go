package backend

import (
	"testing"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSQL(t *testing.T) {
	tests := []struct {
		name     string
		req      *core.Request
		numeric  map[string]bool
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "Samples select",
			req: &core.Request{
				Table: "trips", Start: 100, End: 200,
				Dimensions: []string{"_time_", "city"},
				Display:    core.DisplaySamples,
				Top:        5,
			},
			wantSQL:  `SELECT "_time_", "city" FROM "trips" WHERE "_time_" >= ? AND "_time_" <= ? LIMIT 5`,
			wantArgs: []any{int64(100), int64(200)},
		},
		{
			name: "Table aggregate with and-filter",
			req: &core.Request{
				Table: "trips", Start: 100, End: 200,
				Dimensions: []string{"city"},
				Display:    core.DisplayTable,
				Metrics:    []core.Metric{{Column: "fare", Method: core.RollupSum}},
				Order:      &core.Order{Column: "fare", Type: core.OrderDesc},
				Top:        10,
				FilterA: &core.PredicateGroup{Expressions: []core.Predicate{
					{Column: "city", Op: core.OpEQ, Values: []string{"a", "b"}},
					{Column: "n", Op: core.OpMore, Values: []string{"5"}},
				}},
			},
			numeric: map[string]bool{"n": true, "fare": true},
			wantSQL: `SELECT "city", sum("fare") AS "sum_fare" FROM "trips" WHERE "_time_" >= ? AND "_time_" <= ?` +
				` AND ("city" IN (?, ?) AND "n" > ?) GROUP BY "city" ORDER BY "sum_fare" DESC LIMIT 10`,
			wantArgs: []any{int64(100), int64(200), "a", "b", int64(5)},
		},
		{
			name: "Timeline buckets",
			req: &core.Request{
				Table: "t", Start: 100, End: 400,
				Display: core.DisplayTimeline,
				Window:  60,
				Metrics: []core.Metric{{Column: "v", Method: core.RollupCount}},
				Order:   &core.Order{Column: "v", Type: core.OrderNone},
			},
			wantSQL: `SELECT count("v") AS "count_v", (("_time_" - 100) // 60) * 60 + 100 AS "_window_"` +
				` FROM "t" WHERE "_time_" >= ? AND "_time_" <= ? GROUP BY "_window_" ORDER BY "_window_"`,
			wantArgs: []any{int64(100), int64(400)},
		},
		{
			name: "Or-filter with like and percentile",
			req: &core.Request{
				Table: "t", Start: 1, End: 2,
				Dimensions: []string{"a"},
				Display:    core.DisplayBar,
				Metrics:    []core.Metric{{Column: "lat", Method: core.RollupP99}},
				Order:      &core.Order{Column: "lat", Type: core.OrderAsc},
				FilterO: &core.PredicateGroup{Expressions: []core.Predicate{
					{Column: "a", Op: core.OpLike, Values: []string{"x%", "y%"}},
					{Column: "b", Op: core.OpNEQ, Values: []string{"1.5"}},
				}},
			},
			numeric: map[string]bool{"b": true},
			wantSQL: `SELECT "a", quantile_cont("lat", 0.99) AS "p99_lat" FROM "t" WHERE "_time_" >= ? AND "_time_" <= ?` +
				` AND (("a" LIKE ? OR "a" LIKE ?) OR "b" NOT IN (?)) GROUP BY "a" ORDER BY "p99_lat" ASC`,
			wantArgs: []any{int64(1), int64(2), "x%", "y%", 1.5},
		},
		{
			name: "Numeric looking values on a text column",
			req: &core.Request{
				Table:      "addr",
				Dimensions: []string{"zip"},
				Display:    core.DisplaySamples,
				FilterA: &core.PredicateGroup{Expressions: []core.Predicate{
					{Column: "zip", Op: core.OpEQ, Values: []string{"94107", "1e3"}},
					{Column: "floor", Op: core.OpLess, Values: []string{"3"}},
				}},
			},
			numeric: map[string]bool{"floor": true, "zip": false},
			wantSQL:  `SELECT "zip" FROM "addr" WHERE ("zip" IN (?, ?) AND "floor" < ?)`,
			wantArgs: []any{"94107", "1e3", int64(3)},
		},
		{
			name: "Quoted identifiers",
			req: &core.Request{
				Table:      `we"ird`,
				Dimensions: []string{`c"ol`},
				Display:    core.DisplaySamples,
			},
			wantSQL: `SELECT "c""ol" FROM "we""ird"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := BuildSQL(tt.req, tt.numeric)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSQLErrors(t *testing.T) {
	_, _, err := BuildSQL(&core.Request{}, nil)
	assert.ErrorIs(t, err, ErrNoTable)

	_, _, err = BuildSQL(&core.Request{
		Table:   "t",
		Display: core.DisplayTable,
		Metrics: []core.Metric{{Column: "v", Method: core.RollupTreeMerge}},
	}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedRollup)

	_, _, err = BuildSQL(&core.Request{
		Table:   "t",
		FilterA: &core.PredicateGroup{Expressions: []core.Predicate{{Column: "c", Op: core.OpEQ}}},
	}, nil)
	assert.ErrorIs(t, err, ErrEmptyPredicate)
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, int64(42), literal("42"))
	assert.Equal(t, 4.5, literal("4.5"))
	assert.Equal(t, "NaN", literal("NaN"))
	assert.Equal(t, "0x10", literal("0x10"))
	assert.Equal(t, "abc", literal("abc"))
}
