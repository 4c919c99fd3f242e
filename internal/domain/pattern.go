package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
)

// Consumption states used as keys of a transition matrix.
const (
	StateZero    = "0"
	StateNonZero = "1"
)

// PatternSet is the decoded pattern file.
type PatternSet struct {
	ClusterProbabilities map[string]float64 `json:"cluster_probabilities"`
	Patterns             map[string]Pattern `json:"patterns"`
}

// Pattern describes the consumption distribution of one meter cluster.
type Pattern struct {
	Transitions            map[string]map[string]float64 `json:"transitions"`
	GMM                    GMM                           `json:"gmm"`
	Temporal               TemporalPatterns              `json:"temporal_patterns"`
	BasicStats             *BasicStats                   `json:"basic_stats,omitempty"`
	CommonValue            float64                       `json:"common_value,omitempty"`
	CommonValueProbability float64                       `json:"common_value_probability,omitempty"`
	DailySequence          *DailySequence                `json:"daily_sequence,omitempty"`
}

// GMM is a one-dimensional Gaussian mixture. Covars are variances.
type GMM struct {
	Means   []float64 `json:"means"`
	Weights []float64 `json:"weights"`
	Covars  []float64 `json:"covars"`
}

// TemporalPatterns holds multiplicative factors by hour of day ("0".."23")
// and by day of week ("0" = Monday .. "6" = Sunday).
type TemporalPatterns struct {
	Hourly map[string]Factor `json:"hourly_patterns,omitempty"`
	Weekly map[string]Factor `json:"weekly_patterns,omitempty"`
}

// Factor is a single temporal scaling entry.
type Factor struct {
	Mean float64 `json:"mean"`
}

// BasicStats are summary statistics of the observed consumption.
type BasicStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// DailySequence lists hours that are typically peak or idle.
type DailySequence struct {
	PeakTimes   []int `json:"peak_times"`
	ZeroPeriods []int `json:"zero_periods"`
}

// LoadPatternSet reads and validates a pattern file.
func LoadPatternSet(path string) (*PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern file: %w", err)
	}
	return ParsePatternSet(data)
}

// ParsePatternSet decodes and validates pattern JSON.
func ParsePatternSet(data []byte) (*PatternSet, error) {
	var set PatternSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse pattern file: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// Validate checks that every cluster can be sampled.
func (s *PatternSet) Validate() error {
	if len(s.ClusterProbabilities) == 0 {
		return errors.New("cluster_probabilities is required")
	}
	var total float64
	for _, name := range s.Clusters() {
		p := s.ClusterProbabilities[name]
		if p < 0 || math.IsNaN(p) {
			return fmt.Errorf("cluster %q: probability must be non-negative", name)
		}
		total += p
		pattern, ok := s.Patterns[name]
		if !ok {
			return fmt.Errorf("cluster %q: no pattern defined", name)
		}
		if err := pattern.Validate(); err != nil {
			return fmt.Errorf("cluster %q: %w", name, err)
		}
	}
	if total <= 0 {
		return errors.New("cluster_probabilities must sum to a positive value")
	}
	return nil
}

// Clusters returns the cluster names in a stable order.
func (s *PatternSet) Clusters() []string {
	names := make([]string, 0, len(s.ClusterProbabilities))
	for name := range s.ClusterProbabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a single pattern.
func (p *Pattern) Validate() error {
	if err := p.GMM.Validate(); err != nil {
		return fmt.Errorf("gmm: %w", err)
	}
	for from, row := range p.Transitions {
		if from != StateZero && from != StateNonZero {
			return fmt.Errorf("transitions: unknown state %q", from)
		}
		var sum float64
		for to, prob := range row {
			if to != StateZero && to != StateNonZero {
				return fmt.Errorf("transitions[%s]: unknown state %q", from, to)
			}
			if prob < 0 || math.IsNaN(prob) {
				return fmt.Errorf("transitions[%s][%s]: probability must be non-negative", from, to)
			}
			sum += prob
		}
		if sum <= 0 {
			return fmt.Errorf("transitions[%s]: probabilities must sum to a positive value", from)
		}
	}
	if p.CommonValueProbability < 0 || p.CommonValueProbability > 1 {
		return errors.New("common_value_probability must be within [0, 1]")
	}
	if p.BasicStats != nil && p.BasicStats.Max < p.BasicStats.Min {
		return errors.New("basic_stats: max is below min")
	}
	if err := p.Temporal.validate(); err != nil {
		return fmt.Errorf("temporal_patterns: %w", err)
	}
	if p.DailySequence != nil {
		for _, h := range slices.Concat(p.DailySequence.PeakTimes, p.DailySequence.ZeroPeriods) {
			if h < 0 || h > 23 {
				return fmt.Errorf("daily_sequence: hour %d out of range", h)
			}
		}
	}
	return nil
}

// Validate checks that the mixture has consistent, usable parameters.
func (g GMM) Validate() error {
	n := len(g.Means)
	if n == 0 {
		return errors.New("means is required")
	}
	if len(g.Weights) != n || len(g.Covars) != n {
		return fmt.Errorf("means, weights and covars must have equal length (got %d, %d, %d)",
			n, len(g.Weights), len(g.Covars))
	}
	var total float64
	for i := range n {
		if g.Weights[i] < 0 || math.IsNaN(g.Weights[i]) {
			return fmt.Errorf("weights[%d] must be non-negative", i)
		}
		if g.Covars[i] < 0 || math.IsNaN(g.Covars[i]) {
			return fmt.Errorf("covars[%d] must be non-negative", i)
		}
		total += g.Weights[i]
	}
	if total <= 0 {
		return errors.New("weights must sum to a positive value")
	}
	return nil
}

func (t TemporalPatterns) validate() error {
	for key := range t.Hourly {
		if h, err := strconv.Atoi(key); err != nil || h < 0 || h > 23 {
			return fmt.Errorf("hourly_patterns: invalid hour %q", key)
		}
	}
	for key := range t.Weekly {
		if d, err := strconv.Atoi(key); err != nil || d < 0 || d > 6 {
			return fmt.Errorf("weekly_patterns: invalid day %q", key)
		}
	}
	return nil
}

// hourlyFactor returns the factor for an hour of day, 1.0 when absent.
func (t TemporalPatterns) hourlyFactor(hour int) float64 {
	if f, ok := t.Hourly[strconv.Itoa(hour)]; ok {
		return f.Mean
	}
	return 1.0
}

// weeklyFactor returns the factor for a Monday-based weekday, 1.0 when absent.
func (t TemporalPatterns) weeklyFactor(day int) float64 {
	if f, ok := t.Weekly[strconv.Itoa(day)]; ok {
		return f.Mean
	}
	return 1.0
}
