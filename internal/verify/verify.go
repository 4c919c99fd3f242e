// Package verify checks a generated readings dataset against the run
// parameters that produced it.
package verify

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/water-data-generator/internal/domain"
)

// maxErrorsPerPhase caps how many errors a phase records.
const maxErrorsPerPhase = 20

// Expectation is what a dataset should look like.
type Expectation struct {
	NumMeters   int
	NumPeriods  int
	Interval    time.Duration
	BaseMeterID int
}

// Phase tracks pass/fail for one group of checks.
type Phase struct {
	Name    string
	Errors  []string
	dropped int
}

func (p *Phase) errorf(format string, args ...any) {
	if len(p.Errors) >= maxErrorsPerPhase {
		p.dropped++
		return
	}
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

// Passed reports whether the phase found no problems.
func (p *Phase) Passed() bool { return len(p.Errors) == 0 }

// Dropped is the number of errors beyond the per-phase cap.
func (p *Phase) Dropped() int { return p.dropped }

// Check runs all phases over readings.
func Check(readings []domain.Reading, want Expectation) []*Phase {
	byMeter := groupByMeter(readings)
	return []*Phase{
		checkRowCount(readings, want),
		checkMeterIDs(byMeter, want),
		checkTimestamps(byMeter, want),
		checkConsumption(readings),
		checkClusters(byMeter),
	}
}

// Passed reports whether every phase passed.
func Passed(phases []*Phase) bool {
	for _, p := range phases {
		if !p.Passed() {
			return false
		}
	}
	return true
}

// groupByMeter keeps each meter's readings in file order.
func groupByMeter(readings []domain.Reading) map[int][]domain.Reading {
	out := make(map[int][]domain.Reading)
	for _, r := range readings {
		out[r.MeterID] = append(out[r.MeterID], r)
	}
	return out
}

func checkRowCount(readings []domain.Reading, want Expectation) *Phase {
	p := &Phase{Name: "Row count"}
	if expected := want.NumMeters * want.NumPeriods; len(readings) != expected {
		p.errorf("expected %d rows (%d meters x %d periods), got %d",
			expected, want.NumMeters, want.NumPeriods, len(readings))
	}
	return p
}

func checkMeterIDs(byMeter map[int][]domain.Reading, want Expectation) *Phase {
	p := &Phase{Name: "Meter ids"}
	if len(byMeter) != want.NumMeters {
		p.errorf("expected %d meters, got %d", want.NumMeters, len(byMeter))
	}
	for id := want.BaseMeterID; id < want.BaseMeterID+want.NumMeters; id++ {
		if _, ok := byMeter[id]; !ok {
			p.errorf("meter %d missing", id)
		}
	}
	for id := range byMeter {
		if id < want.BaseMeterID || id >= want.BaseMeterID+want.NumMeters {
			p.errorf("unexpected meter %d", id)
		}
	}
	return p
}

func checkTimestamps(byMeter map[int][]domain.Reading, want Expectation) *Phase {
	p := &Phase{Name: "Timestamps"}
	for id, rows := range byMeter {
		if len(rows) != want.NumPeriods {
			p.errorf("meter %d: expected %d readings, got %d", id, want.NumPeriods, len(rows))
		}
		for i := 1; i < len(rows); i++ {
			gap := rows[i].Timestamp.Sub(rows[i-1].Timestamp)
			switch {
			case gap <= 0:
				p.errorf("meter %d: timestamp %s does not increase after %s", id,
					rows[i].Timestamp.Format(domain.TimestampLayout), rows[i-1].Timestamp.Format(domain.TimestampLayout))
			case gap != want.Interval:
				p.errorf("meter %d: gap %s before %s, want %s", id, gap,
					rows[i].Timestamp.Format(domain.TimestampLayout), want.Interval)
			}
		}
	}
	return p
}

func checkConsumption(readings []domain.Reading) *Phase {
	p := &Phase{Name: "Consumption values"}
	for i, r := range readings {
		switch {
		case math.IsNaN(r.Consumption) || math.IsInf(r.Consumption, 0):
			p.errorf("row %d (meter %d): consumption is not finite", i+1, r.MeterID)
		case r.Consumption < 0:
			p.errorf("row %d (meter %d): negative consumption %g", i+1, r.MeterID, r.Consumption)
		}
	}
	return p
}

func checkClusters(byMeter map[int][]domain.Reading) *Phase {
	p := &Phase{Name: "Cluster assignment"}
	for id, rows := range byMeter {
		for _, r := range rows {
			if r.Cluster == "" {
				p.errorf("meter %d: empty cluster at %s", id, r.Timestamp.Format(domain.TimestampLayout))
				break
			}
			if r.Cluster != rows[0].Cluster {
				p.errorf("meter %d: cluster changes from %q to %q", id, rows[0].Cluster, r.Cluster)
				break
			}
		}
	}
	return p
}
