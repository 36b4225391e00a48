package state

import (
	"errors"
	"strings"
	"testing"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *QueryState {
	return &QueryState{
		Table: "nebula.test",
		Start: 1548979200000,
		End:   1556668800000,
		Filter: &FilterGroup{Logic: And, Rules: []FilterRule{
			{Column: "country", Op: core.OpEQ, Values: []string{"us", "gb & ie"}},
			{Column: "event", Op: core.OpLike, Values: []string{"%click%"}},
		}},
		Keys:    []string{"country", "event"},
		Window:  3600,
		Display: core.DisplayTimeline,
		Metrics: "value",
		Rollup:  core.RollupP99,
		Sort:    core.OrderDesc,
		Limit:   100,
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		state *QueryState
	}{
		{name: "Full state", state: sampleState()},
		{name: "Minimal state", state: &QueryState{Table: "t"}},
		{name: "With code and arch", state: func() *QueryState {
			s := sampleState()
			s.Code = "source: nebula.test\nlimit: 10 # 100% + ?"
			s.Arch = 1
			s.Filter = nil
			return s
		}()},
		{name: "Empty keys", state: func() *QueryState {
			s := sampleState()
			s.Keys = []string{}
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragment, err := Encode(tt.state)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(fragment, "#"))
			assert.NotContains(t, fragment, " ")
			assert.NotContains(t, fragment, "+")

			got, err := Decode(fragment)
			require.NoError(t, err)
			assert.Equal(t, tt.state, got)
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
	}{
		{name: "Absent", fragment: ""},
		{name: "Marker only", fragment: "#"},
		{name: "Too short", fragment: "#n"},
		{name: "Not JSON", fragment: "#hello%20world"},
		{name: "Bad escape", fragment: "#%7B%zz"},
		{name: "Missing table", fragment: "#" + escapeComponent(`{"keys":["a"]}`)},
		{name: "Bad enum", fragment: "#" + escapeComponent(`{"table":"t","display":"histogram"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode(tt.fragment)
			assert.Nil(t, s)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
		})
	}
}

func TestDecodeLegacyForm(t *testing.T) {
	// the browser form posted every value as a string
	raw := `{"table":"nebula.test","start":"2019-02-01 00:00:00","end":"2019-05-01 00:00:00",` +
		`"keys":["country"],"window":"60","display":"2","metrics":"value","rollup":"4",` +
		`"sort":"1","limit":"10","filter":{"l":"OR","r":[{"c":"country","o":"0","v":["us"]}]}}`

	s, err := Decode("#" + escapeComponent(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(1548979200000), s.Start)
	assert.Equal(t, int64(1556668800000), s.End)
	assert.Equal(t, int64(60), s.Window)
	assert.Equal(t, core.DisplayTimeline, s.Display)
	assert.Equal(t, core.RollupAvg, s.Rollup)
	assert.Equal(t, core.OrderDesc, s.Sort)
	assert.Equal(t, 10, s.Limit)
	assert.Equal(t, Or, s.Filter.Logic)
	assert.Equal(t, core.OpEQ, s.Filter.Rules[0].Op)
}

func TestDecodeRestoreFallback(t *testing.T) {
	s, err := Decode(`?{"table": "nebula.test"}`)
	require.NoError(t, err)
	assert.Equal(t, "nebula.test", s.Table)
}

func TestBuildFilter(t *testing.T) {
	t.Run("All rules empty", func(t *testing.T) {
		g := Build([]FilterRule{
			{Column: "a", Op: core.OpEQ},
			{Column: "b", Op: core.OpNEQ, Values: []string{}},
		}, And)
		assert.Nil(t, g)
	})

	t.Run("No rules", func(t *testing.T) {
		assert.Nil(t, Build(nil, Or))
	})

	t.Run("Drops empty rules", func(t *testing.T) {
		g := Build([]FilterRule{
			{Column: "a", Op: core.OpEQ},
			{Column: "b", Op: core.OpMore, Values: []string{"3"}},
		}, "or")
		require.NotNil(t, g)
		assert.Equal(t, Or, g.Logic)
		assert.Equal(t, []FilterRule{{Column: "b", Op: core.OpMore, Values: []string{"3"}}}, g.Rules)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		state      QueryState
		wantReason Reason
	}{
		{
			name:  "Exactly 1000 buckets",
			state: QueryState{Display: core.DisplayTimeline, Start: 0, End: 1_000_000_000, Window: 1_000_000},
		},
		{
			name:       "Just over 1000 buckets",
			state:      QueryState{Display: core.DisplayTimeline, Start: 0, End: 1_000_000_000, Window: 999_999},
			wantReason: TooManyBuckets,
		},
		{
			name:  "Auto window skips bucket check",
			state: QueryState{Display: core.DisplayTimeline, Start: 0, End: 1_000_000_000_000, Window: 0},
		},
		{
			name:  "Bucket check only for timeline",
			state: QueryState{Display: core.DisplayBar, Start: 0, End: 1_000_000_000_000, Window: 1},
		},
		{
			name:       "Samples without keys",
			state:      QueryState{Display: core.DisplaySamples},
			wantReason: MissingDimensions,
		},
		{
			name:  "Samples with keys",
			state: QueryState{Display: core.DisplaySamples, Keys: []string{"host"}},
		},
		{
			name:  "Table without keys",
			state: QueryState{Display: core.DisplayTable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.state)
			if tt.wantReason == 0 {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantReason, ve.Reason)
		})
	}
}

func TestTooManyBucketsMessage(t *testing.T) {
	err := Validate(&QueryState{Display: core.DisplayTimeline, Start: 0, End: 2_000_000_000, Window: 1_000})
	require.Error(t, err)
	assert.Equal(t, "Too many data points to return 2000, please increase window granularity.", err.Error())
	assert.Equal(t, float64(2000), err.(*ValidationError).Buckets)
}

func TestCheckTimeRange(t *testing.T) {
	assert.ErrorIs(t, CheckTimeRange(&QueryState{Start: 0, End: 10}), ErrMissingTimeRange)
	assert.ErrorIs(t, CheckTimeRange(&QueryState{Start: 10, End: 10}), ErrInvalidTimeRange)
	assert.NoError(t, CheckTimeRange(&QueryState{Start: 1, End: 10}))
}

func TestClone(t *testing.T) {
	s := sampleState()
	c := s.Clone()
	assert.Equal(t, s, c)

	c.Keys[0] = "changed"
	c.Filter.Rules[0].Values[0] = "changed"
	assert.Equal(t, "country", s.Keys[0])
	assert.Equal(t, "us", s.Filter.Rules[0].Values[0])
}
