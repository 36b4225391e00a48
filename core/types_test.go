package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    DisplayType
		wantErr bool
	}{
		{name: "Number", input: `2`, want: DisplayTimeline},
		{name: "Numeric string", input: `"3"`, want: DisplayBar},
		{name: "Name", input: `"pie"`, want: DisplayPie},
		{name: "Empty string", input: `""`, want: DisplaySamples},
		{name: "Out of range", input: `42`, wantErr: true},
		{name: "Unknown name", input: `"histogram"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d DisplayType
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestEnumMarshalAsNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		R Rollup    `json:"r"`
		O OrderType `json:"o"`
		P Operation `json:"p"`
	}{RollupAvg, OrderDesc, OpILike})
	require.NoError(t, err)
	assert.JSONEq(t, `{"r":4,"o":1,"p":5}`, string(b))
}

func TestRollupPercentile(t *testing.T) {
	q, ok := RollupP99_9.Percentile()
	assert.True(t, ok)
	assert.Equal(t, 0.999, q)

	_, ok = RollupSum.Percentile()
	assert.False(t, ok)
}

func TestParseHelpers(t *testing.T) {
	r, err := ParseRollup("p50")
	require.NoError(t, err)
	assert.Equal(t, RollupP50, r)

	o, err := ParseOrderType("desc")
	require.NoError(t, err)
	assert.Equal(t, OrderDesc, o)

	op, err := ParseOperation("1")
	require.NoError(t, err)
	assert.Equal(t, OpNEQ, op)
	assert.Equal(t, "!=", op.Symbol())

	assert.Equal(t, "UNKNOWN(99)", DisplayType(99).String())
}

func TestTableSchemaSummary(t *testing.T) {
	ts := &TableSchema{
		BlockCount:  12,
		RowCount:    12345678,
		MemoryBytes: 5000000000,
		MinTime:     1548979200,
		MaxTime:     1556668800,
		Dimensions:  []string{TimeColumn, "country", "event"},
		Metrics:     []string{"value"},
	}

	assert.Equal(t,
		"[Blocks: 12, Rows: 12.35M, Mem: 5GB, Min T: 2019-02-01 00:00:00, Max T: 2019-05-01 00:00:00]",
		ts.Summary())
	assert.Equal(t, []string{"country", "event", "value"}, ts.Columns())
}
