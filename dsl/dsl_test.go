package dsl

import (
	"strings"
	"testing"
	"time"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	feb = time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	may = time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)
)

func TestBuilder(t *testing.T) {
	st, err := From("nebula.test").
		Time(feb, may).
		Select(Col("country"), P99("value")).
		Where(Eq("country", "us", "gb"), Like("event", "%click%")).
		Timeline(24 * time.Hour).
		SortBy(core.OrderAsc).
		Limit(50).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "nebula.test", st.Table)
	assert.Equal(t, int64(1548979200000), st.Start)
	assert.Equal(t, int64(1556668800000), st.End)
	assert.Equal(t, []string{"country"}, st.Keys)
	assert.Equal(t, "value", st.Metrics)
	assert.Equal(t, core.RollupP99, st.Rollup)
	assert.Equal(t, core.DisplayTimeline, st.Display)
	assert.Equal(t, int64(86400), st.Window)
	assert.Equal(t, core.OrderAsc, st.Sort)
	assert.Equal(t, 50, st.Limit)
	require.NotNil(t, st.Filter)
	assert.Equal(t, state.And, st.Filter.Logic)
	assert.Len(t, st.Filter.Rules, 2)
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name    string
		q       *Query
		wantErr error
	}{
		{name: "No table", q: From("").Time(feb, may), wantErr: ErrNoTable},
		{name: "Two metrics", q: From("t").Time(feb, may).Select(Sum("a"), Count("b")), wantErr: ErrManyMetrics},
		{name: "Sub-second window", q: From("t").Time(feb, may).Timeline(time.Millisecond), wantErr: ErrBadWindow},
		{name: "Negative limit", q: From("t").Time(feb, may).Limit(-1), wantErr: ErrNegativeSize},
		{name: "No time range", q: From("t"), wantErr: state.ErrMissingTimeRange},
		{name: "Reversed time range", q: From("t").Time(may, feb), wantErr: state.ErrInvalidTimeRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.q.Build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := From("t").Time(feb, may).Samples().Build()
	var verr *state.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, state.MissingDimensions, verr.Reason)

	_, err = From("t").Time(feb, may).Timeline(time.Second).Build()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, state.TooManyBuckets, verr.Reason)
}

func TestBuildReturnsCopy(t *testing.T) {
	q := From("t").Time(feb, may).Select(Col("a"))
	st, err := q.Build()
	require.NoError(t, err)
	st.Keys[0] = "changed"

	again, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Keys)
}

func TestEval(t *testing.T) {
	src := `
source: nebula.test
start: 2019-02-01 00:00:00
end: "1556668800000"
keys: [country]
metric: {column: value, rollup: p99}
where:
  or:
    - {column: country, op: eq, values: [us, gb]}
    - {column: amount, op: ">", values: ["10"]}
window: 1d
sort: desc
limit: 100
`
	_, err := Eval(src)
	require.Error(t, err, "1d is not a Go duration")

	st, err := Eval(strings.Replace(src, "1d", "24h", 1))
	require.NoError(t, err)
	assert.Equal(t, "nebula.test", st.Table)
	assert.Equal(t, int64(1548979200000), st.Start)
	assert.Equal(t, int64(1556668800000), st.End)
	assert.Equal(t, core.DisplayTimeline, st.Display)
	assert.Equal(t, int64(86400), st.Window)
	assert.Equal(t, core.RollupP99, st.Rollup)
	assert.Equal(t, core.OrderDesc, st.Sort)
	require.NotNil(t, st.Filter)
	assert.Equal(t, state.Or, st.Filter.Logic)
	assert.Equal(t, core.OpMore, st.Filter.Rules[1].Op)
	assert.Contains(t, st.Code, "source: nebula.test")
}

func TestEvalDisplayWins(t *testing.T) {
	st, err := Eval(`
source: t
start: 2019-02-01T00:00:00Z
end: 2019-02-02T00:00:00Z
keys: [a]
display: table
window: 3600
`)
	require.NoError(t, err)
	assert.Equal(t, core.DisplayTable, st.Display)
	assert.Equal(t, int64(3600), st.Window)
}

func TestEvalRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "Unknown field", src: "source: t\nbogus: 1\n"},
		{name: "Bad rollup", src: "source: t\nstart: 1\nend: 2\nmetric: {column: v, rollup: median}\n"},
		{name: "Bad op", src: "source: t\nstart: 1\nend: 2\nwhere: {and: [{column: a, op: between, values: [x]}]}\n"},
		{name: "Both and and or", src: "source: t\nwhere: {and: [{column: a, op: eq, values: [x]}], or: [{column: b, op: eq, values: [y]}]}\n"},
		{name: "Bad time", src: "source: t\nstart: yesterday\nend: 2\n"},
		{name: "No table", src: "start: 1\nend: 2\n"},
		{name: "Empty", src: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.src)
			assert.Error(t, err)
		})
	}

	_, err := Eval("source: t\n" + strings.Repeat("#", MaxScriptBytes))
	assert.ErrorIs(t, err, ErrScriptTooLarge)
}
