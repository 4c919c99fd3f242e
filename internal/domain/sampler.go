package domain

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// peakRedrawProbability is the chance a zero draw is re-drawn in a peak hour.
	peakRedrawProbability = 0.7
	// zeroHourProbability is the chance an idle hour is forced to zero.
	zeroHourProbability = 0.8
	// noiseSigma is the standard deviation of the additive noise on non-zero values.
	noiseSigma = 0.1
)

// MeterModel samples consecutive readings for a single meter.
// It is not safe for concurrent use.
type MeterModel struct {
	MeterID int
	Cluster string

	pattern Pattern
	src     rand.Source
	rng     *rand.Rand
	mixture distuv.Categorical
	noise   distuv.Normal
	peak    map[int]bool
	idle    map[int]bool
	state   string
}

// NewMeterModel assigns a cluster to the meter and derives its varied pattern.
// The same (set, meterID, variation, seed) always yields the same model.
func NewMeterModel(set *PatternSet, meterID int, variation float64, seed uint64) (*MeterModel, error) {
	if set == nil {
		return nil, errors.New("pattern set is nil")
	}
	if variation < 0 {
		return nil, fmt.Errorf("variation must be non-negative, got %g", variation)
	}

	src := rand.NewPCG(seed, uint64(meterID))
	clusters := set.Clusters()
	if len(clusters) == 0 {
		return nil, errors.New("pattern set has no clusters")
	}
	weights := make([]float64, len(clusters))
	for i, name := range clusters {
		weights[i] = set.ClusterProbabilities[name]
	}
	pick := distuv.NewCategorical(weights, src)
	cluster := clusters[int(pick.Rand())]

	base, ok := set.Patterns[cluster]
	if !ok {
		return nil, fmt.Errorf("cluster %q: no pattern defined", cluster)
	}

	m := &MeterModel{
		MeterID: meterID,
		Cluster: cluster,
		src:     src,
		rng:     rand.New(src),
		noise:   distuv.Normal{Mu: 0, Sigma: noiseSigma, Src: src},
		state:   StateZero,
	}
	m.pattern = varyPattern(base, distuv.Normal{Mu: 0, Sigma: variation, Src: src})
	m.mixture = distuv.NewCategorical(m.pattern.GMM.Weights, src)
	if seq := m.pattern.DailySequence; seq != nil {
		m.peak = hourSet(seq.PeakTimes)
		m.idle = hourSet(seq.ZeroPeriods)
	}
	return m, nil
}

// varyPattern copies p with its means and common value scaled by 1 + N(0, variation).
func varyPattern(p Pattern, jitter distuv.Normal) Pattern {
	means := make([]float64, len(p.GMM.Means))
	for i, mu := range p.GMM.Means {
		means[i] = mu * (1 + jitter.Rand())
	}
	p.GMM = GMM{Means: means, Weights: p.GMM.Weights, Covars: p.GMM.Covars}
	p.CommonValue *= 1 + jitter.Rand()
	return p
}

func hourSet(hours []int) map[int]bool {
	set := make(map[int]bool, len(hours))
	for _, h := range hours {
		set[h] = true
	}
	return set
}

// Next samples the consumption for the interval starting at ts and advances
// the meter's zero/non-zero state. The state follows the chain even when a
// non-zero draw floors to 0. The result is never negative.
func (m *MeterModel) Next(ts time.Time) float64 {
	hour := ts.Hour()
	day := mondayWeekday(ts)

	state, value := StateZero, 0.0
	switch {
	case m.peak[hour]:
		state, value = m.sample(hour, day)
		if value == 0 && m.rng.Float64() < peakRedrawProbability {
			state, value = m.sample(hour, day)
		}
	case m.idle[hour]:
		if m.rng.Float64() >= zeroHourProbability {
			state, value = m.sample(hour, day)
		}
	default:
		state, value = m.sample(hour, day)
	}

	m.state = state
	return value
}

// sample draws the next state from the current one and, for a non-zero
// state, a value. It does not commit the state.
func (m *MeterModel) sample(hour, day int) (string, float64) {
	state := m.nextState()
	if state == StateZero {
		return state, 0
	}
	return state, m.drawValue(hour, day)
}

func (m *MeterModel) nextState() string {
	pNonZero := 0.5
	if row, ok := m.pattern.Transitions[m.state]; ok {
		if total := row[StateZero] + row[StateNonZero]; total > 0 {
			pNonZero = row[StateNonZero] / total
		}
	}
	if m.rng.Float64() < pNonZero {
		return StateNonZero
	}
	return StateZero
}

func (m *MeterModel) drawValue(hour, day int) float64 {
	gmm := m.pattern.GMM
	k := int(m.mixture.Rand())
	component := distuv.Normal{Mu: gmm.Means[k], Sigma: math.Sqrt(gmm.Covars[k]), Src: m.src}

	factor := (m.pattern.Temporal.hourlyFactor(hour) + m.pattern.Temporal.weeklyFactor(day)) / 2
	value := component.Rand()*factor + m.noise.Rand()

	if stats := m.pattern.BasicStats; stats != nil && stats.Max > stats.Min {
		value = math.Max(stats.Min, math.Min(stats.Max, value))
	}
	if p := m.pattern.CommonValueProbability; p > 0 && m.rng.Float64() < p {
		value = m.pattern.CommonValue
	}
	return round2(math.Max(0, value))
}

// mondayWeekday maps time.Weekday (Sunday = 0) onto Monday = 0 .. Sunday = 6.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // normalize -0
	}
	return r
}
