package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC) // a Monday

func loadTestSet(t *testing.T) *PatternSet {
	t.Helper()
	set, err := LoadPatternSet(testPatternFile)
	require.NoError(t, err)
	return set
}

func sampleSeries(t *testing.T, set *PatternSet, meterID int, seed uint64, n int) []float64 {
	t.Helper()
	m, err := NewMeterModel(set, meterID, 0.1, seed)
	require.NoError(t, err)
	out := make([]float64, n)
	for i := range n {
		out[i] = m.Next(PeriodTime(testStart, 15*time.Minute, i))
	}
	return out
}

func TestNewMeterModel_Deterministic(t *testing.T) {
	set := loadTestSet(t)

	a, err := NewMeterModel(set, 7, 0.1, 42)
	require.NoError(t, err)
	b, err := NewMeterModel(set, 7, 0.1, 42)
	require.NoError(t, err)

	assert.Equal(t, a.Cluster, b.Cluster)
	assert.Equal(t, a.pattern.GMM.Means, b.pattern.GMM.Means)
	assert.Equal(t, sampleSeries(t, set, 7, 42, 500), sampleSeries(t, set, 7, 42, 500))
}

func TestNewMeterModel_SeedChangesSeries(t *testing.T) {
	set := loadTestSet(t)
	assert.NotEqual(t, sampleSeries(t, set, 1, 1, 200), sampleSeries(t, set, 1, 2, 200))
}

func TestNewMeterModel_Errors(t *testing.T) {
	set := loadTestSet(t)

	_, err := NewMeterModel(nil, 1, 0.1, 1)
	require.Error(t, err)

	_, err = NewMeterModel(set, 1, -0.5, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variation")

	_, err = NewMeterModel(&PatternSet{}, 1, 0.1, 1)
	require.Error(t, err)
}

func TestNewMeterModel_ClusterFromProbabilities(t *testing.T) {
	set, err := ParsePatternSet([]byte(`{
	  "cluster_probabilities": {"never": 0, "always": 1},
	  "patterns": {
	    "never":  {"gmm": {"means": [1], "weights": [1], "covars": [0]}},
	    "always": {"gmm": {"means": [1], "weights": [1], "covars": [0]}}
	  }
	}`))
	require.NoError(t, err)

	for id := 1; id <= 50; id++ {
		m, err := NewMeterModel(set, id, 0, 99)
		require.NoError(t, err)
		assert.Equal(t, "always", m.Cluster)
	}
}

func TestNewMeterModel_ZeroVariationKeepsMeans(t *testing.T) {
	set := loadTestSet(t)
	m, err := NewMeterModel(set, 3, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, set.Patterns[m.Cluster].GMM.Means, m.pattern.GMM.Means)
}

func TestNext_NonNegativeAndRounded(t *testing.T) {
	set := loadTestSet(t)
	for id := 1; id <= 20; id++ {
		for _, v := range sampleSeries(t, set, id, 2024, 4*96) {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.InDelta(t, round2(v), v, 1e-12)
		}
	}
}

func TestNext_AlwaysZeroTransitions(t *testing.T) {
	set, err := ParsePatternSet([]byte(`{
	  "cluster_probabilities": {"idle": 1},
	  "patterns": {"idle": {
	    "transitions": {"0": {"0": 1, "1": 0}, "1": {"0": 1, "1": 0}},
	    "gmm": {"means": [5], "weights": [1], "covars": [1]}
	  }}
	}`))
	require.NoError(t, err)

	m, err := NewMeterModel(set, 1, 0.1, 3)
	require.NoError(t, err)
	for i := range 200 {
		assert.Zero(t, m.Next(PeriodTime(testStart, 15*time.Minute, i)))
	}
}

func TestNext_ClampedToBasicStats(t *testing.T) {
	set, err := ParsePatternSet([]byte(`{
	  "cluster_probabilities": {"c": 1},
	  "patterns": {"c": {
	    "transitions": {"0": {"1": 1}, "1": {"1": 1}},
	    "gmm": {"means": [100], "weights": [1], "covars": [400]},
	    "basic_stats": {"mean": 3, "std": 1, "min": 2, "max": 4}
	  }}
	}`))
	require.NoError(t, err)

	m, err := NewMeterModel(set, 1, 0, 8)
	require.NoError(t, err)
	for i := range 200 {
		v := m.Next(PeriodTime(testStart, 15*time.Minute, i))
		assert.GreaterOrEqual(t, v, 2.0)
		assert.LessOrEqual(t, v, 4.0)
	}
}

func TestNext_CommonValueSnap(t *testing.T) {
	set, err := ParsePatternSet([]byte(`{
	  "cluster_probabilities": {"c": 1},
	  "patterns": {"c": {
	    "transitions": {"0": {"1": 1}, "1": {"1": 1}},
	    "gmm": {"means": [10], "weights": [1], "covars": [1]},
	    "common_value": 1.25,
	    "common_value_probability": 1
	  }}
	}`))
	require.NoError(t, err)

	m, err := NewMeterModel(set, 1, 0, 8)
	require.NoError(t, err)
	for i := range 50 {
		assert.InDelta(t, 1.25, m.Next(PeriodTime(testStart, 15*time.Minute, i)), 1e-9)
	}
}

func TestNext_ZeroPeriodsMostlyIdle(t *testing.T) {
	set, err := ParsePatternSet([]byte(`{
	  "cluster_probabilities": {"c": 1},
	  "patterns": {"c": {
	    "transitions": {"0": {"1": 1}, "1": {"1": 1}},
	    "gmm": {"means": [10], "weights": [1], "covars": [1]},
	    "daily_sequence": {"peak_times": [], "zero_periods": [0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11,
	      12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23]}
	  }}
	}`))
	require.NoError(t, err)

	m, err := NewMeterModel(set, 1, 0, 11)
	require.NoError(t, err)
	zeros := 0
	const n = 2000
	for i := range n {
		if m.Next(PeriodTime(testStart, 15*time.Minute, i)) == 0 {
			zeros++
		}
	}
	// Expected share of forced zeros is 0.8.
	assert.InDelta(t, 0.8, float64(zeros)/n, 0.05)
}

func TestNext_StateFollowsChainWhenValueFloorsToZero(t *testing.T) {
	set, err := ParsePatternSet([]byte(`{
	  "cluster_probabilities": {"c": 1},
	  "patterns": {"c": {
	    "transitions": {"0": {"0": 0.5, "1": 0.5}, "1": {"0": 0, "1": 1}},
	    "gmm": {"means": [0], "weights": [1], "covars": [0.01]}
	  }}
	}`))
	require.NoError(t, err)

	m, err := NewMeterModel(set, 1, 0, 5)
	require.NoError(t, err)

	absorbed, floored, escapes := false, 0, 0
	for i := range 20000 {
		v := m.Next(PeriodTime(testStart, 15*time.Minute, i))
		if !absorbed {
			absorbed = m.state == StateNonZero
			continue
		}
		if m.state != StateNonZero {
			escapes++
		}
		if v == 0 {
			floored++
		}
	}
	require.True(t, absorbed)
	assert.Zero(t, escapes, "non-zero state has no outgoing transition")
	assert.Positive(t, floored, "draws around 0 should floor to 0 without changing state")
}

func TestNext_PeakHoursRedrawZeros(t *testing.T) {
	set, err := ParsePatternSet([]byte(`{
	  "cluster_probabilities": {"c": 1},
	  "patterns": {"c": {
	    "transitions": {"0": {"0": 0.5, "1": 0.5}, "1": {"0": 0.5, "1": 0.5}},
	    "gmm": {"means": [10], "weights": [1], "covars": [1]},
	    "daily_sequence": {"peak_times": [0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11], "zero_periods": []}
	  }}
	}`))
	require.NoError(t, err)

	m, err := NewMeterModel(set, 1, 0, 13)
	require.NoError(t, err)

	var peak, peakZeros, offPeak, offPeakZeros int
	for i := range 40 * 96 {
		ts := PeriodTime(testStart, 15*time.Minute, i)
		v := m.Next(ts)
		if ts.Hour() < 12 {
			peak++
			if v == 0 {
				peakZeros++
			}
			continue
		}
		offPeak++
		if v == 0 {
			offPeakZeros++
		}
	}

	// A zero in a peak hour is re-drawn with probability 0.7.
	assert.InDelta(t, 0.5*(1-0.7*0.5), float64(peakZeros)/float64(peak), 0.05)
	assert.InDelta(t, 0.5, float64(offPeakZeros)/float64(offPeak), 0.05)
}

func TestMondayWeekday(t *testing.T) {
	assert.Equal(t, 0, mondayWeekday(testStart))
	assert.Equal(t, 5, mondayWeekday(testStart.AddDate(0, 0, 5)))
	assert.Equal(t, 6, mondayWeekday(testStart.AddDate(0, 0, 6)))
}

func TestParseStartDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-04", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"2024-03-04T06:15", time.Date(2024, 3, 4, 6, 15, 0, 0, time.UTC)},
		{"2024-03-04T06:15:30", time.Date(2024, 3, 4, 6, 15, 30, 0, time.UTC)},
		{"2024-03-04 06:15:30", time.Date(2024, 3, 4, 6, 15, 30, 0, time.UTC)},
		{"2024-03-04T06:15:30Z", time.Date(2024, 3, 4, 6, 15, 30, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseStartDate(tc.in)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseStartDate("yesterday")
	var sde *StartDateError
	require.ErrorAs(t, err, &sde)
	assert.Equal(t, "yesterday", sde.Value)
}

func TestDefaultStart_UsesClock(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 37, 12, 0, time.UTC)))
	defer SetClock(nil)

	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), DefaultStart(15*time.Minute))
	assert.Equal(t, time.Date(2024, 5, 1, 10, 37, 0, 0, time.UTC), DefaultStart(0))
}
