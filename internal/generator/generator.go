package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/water-data-generator/internal/config"
	"github.com/couchcryptid/water-data-generator/internal/domain"
	"github.com/couchcryptid/water-data-generator/internal/observability"
	"golang.org/x/sync/errgroup"
)

// progressEvery controls how often meter progress is logged.
const progressEvery = 10

// Sink receives the generated readings.
type Sink interface {
	WriteReadings(ctx context.Context, readings []domain.Reading) error
}

// Params describes one generation run.
type Params struct {
	NumMeters       int
	NumPeriods      int
	Interval        time.Duration
	Start           time.Time
	Seed            uint64
	VariationFactor float64
	BaseMeterID     int
	Workers         int
	Order           string
}

// ParamsFromConfig resolves run parameters from configuration. An empty start
// date means now, truncated to the interval; a zero seed is derived from the
// clock so the effective seed can be logged and replayed.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	if err := cfg.Validate(); err != nil {
		return Params{}, err
	}

	interval := cfg.Interval()
	start := domain.DefaultStart(interval)
	if cfg.StartDate != "" {
		t, err := domain.ParseStartDate(cfg.StartDate)
		if err != nil {
			return Params{}, err
		}
		start = t
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(domain.Now().UnixNano())
	}

	p := Params{
		NumMeters:       cfg.NumMeters,
		NumPeriods:      cfg.NumPeriods,
		Interval:        interval,
		Start:           start,
		Seed:            seed,
		VariationFactor: cfg.VariationFactor,
		BaseMeterID:     cfg.BaseMeterID,
		Workers:         cfg.Workers,
		Order:           cfg.Order,
	}
	return p, p.Validate()
}

// Validate checks that the parameters describe a non-empty dataset.
func (p Params) Validate() error {
	switch {
	case p.NumMeters <= 0:
		return errors.New("number of meters must be positive")
	case p.NumPeriods <= 0:
		return errors.New("number of periods must be positive")
	case p.Interval <= 0:
		return errors.New("time interval must be positive")
	case p.VariationFactor < 0 || p.VariationFactor > 1:
		return errors.New("variation factor must be within [0, 1]")
	case p.Workers <= 0:
		return errors.New("workers must be positive")
	case p.Order != config.OrderMeter && p.Order != config.OrderTime:
		return fmt.Errorf("unknown row order %q", p.Order)
	}
	return nil
}

// Rows returns the number of readings the run produces.
func (p Params) Rows() int {
	return p.NumMeters * p.NumPeriods
}

// Summary reports what a run produced.
type Summary struct {
	Meters   int
	Rows     int
	Zeros    int
	Clusters map[string]int // meters per cluster
	First    time.Time
	Last     time.Time
	Mean     float64
	Max      float64
	Duration time.Duration
}

// Generator samples synthetic meter readings from a pattern set.
type Generator struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Generator with the given observability.
func New(logger *slog.Logger, metrics *observability.Metrics) *Generator {
	return &Generator{logger: logger, metrics: metrics}
}

// Run generates the dataset described by p and hands it to the sink.
func (g *Generator) Run(ctx context.Context, set *domain.PatternSet, p Params, sink Sink) (Summary, error) {
	start := domain.Now()

	readings, err := g.Generate(ctx, set, p)
	if err != nil {
		return Summary{}, err
	}

	if err := sink.WriteReadings(ctx, readings); err != nil {
		return Summary{}, fmt.Errorf("write readings: %w", err)
	}
	g.metrics.RowsWritten.Add(float64(len(readings)))

	summary := summarize(readings)
	summary.Duration = domain.Since(start)
	g.metrics.GenerationDuration.Set(summary.Duration.Seconds())
	g.metrics.LastSuccess.Set(float64(domain.Now().Unix()))

	return summary, nil
}

// Generate samples NumMeters × NumPeriods readings. Meters are independent,
// so with Workers > 1 they are generated concurrently; the result is the same
// for any worker count.
func (g *Generator) Generate(ctx context.Context, set *domain.PatternSet, p Params) ([]domain.Reading, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if set == nil {
		return nil, errors.New("pattern set is nil")
	}

	g.logger.Info("generating readings",
		"meters", p.NumMeters,
		"periods", p.NumPeriods,
		"interval", p.Interval,
		"start", p.Start.Format(domain.TimestampLayout),
		"seed", p.Seed,
		"workers", p.Workers,
	)

	perMeter := make([][]domain.Reading, p.NumMeters)
	var done atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.Workers)
	for i := range p.NumMeters {
		eg.Go(func() error {
			rows, err := g.generateMeter(egCtx, set, p, p.BaseMeterID+i)
			if err != nil {
				return err
			}
			perMeter[i] = rows
			if n := done.Add(1); n%progressEvery == 0 || int(n) == p.NumMeters {
				g.logger.Debug("meters generated", "done", n, "total", p.NumMeters)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return arrange(perMeter, p), nil
}

// generateMeter samples every period for one meter.
func (g *Generator) generateMeter(ctx context.Context, set *domain.PatternSet, p Params, meterID int) ([]domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, err := domain.NewMeterModel(set, meterID, p.VariationFactor, p.Seed)
	if err != nil {
		return nil, fmt.Errorf("meter %d: %w", meterID, err)
	}

	rows := make([]domain.Reading, p.NumPeriods)
	zeros := 0
	for j := range p.NumPeriods {
		ts := domain.PeriodTime(p.Start, p.Interval, j)
		v := model.Next(ts)
		rows[j] = domain.Reading{
			MeterID:     meterID,
			Timestamp:   ts,
			Consumption: v,
			Cluster:     model.Cluster,
		}
		if v == 0 {
			zeros++
		} else {
			g.metrics.Consumption.Observe(v)
		}
	}

	g.metrics.ReadingsGenerated.WithLabelValues(model.Cluster).Add(float64(p.NumPeriods))
	g.metrics.ZeroReadings.Add(float64(zeros))
	g.metrics.MetersGenerated.Inc()
	return rows, nil
}

// arrange flattens per-meter rows into the requested order. Meter-major keeps
// each meter's rows together; time-major interleaves meters per period, ties
// broken by meter id.
func arrange(perMeter [][]domain.Reading, p Params) []domain.Reading {
	out := make([]domain.Reading, 0, p.Rows())
	if p.Order == config.OrderTime {
		for j := range p.NumPeriods {
			for i := range perMeter {
				out = append(out, perMeter[i][j])
			}
		}
		return out
	}
	for _, rows := range perMeter {
		out = append(out, rows...)
	}
	return out
}

func summarize(readings []domain.Reading) Summary {
	s := Summary{Clusters: map[string]int{}}
	if len(readings) == 0 {
		return s
	}

	meters := map[int]string{}
	var total float64
	s.First = readings[0].Timestamp
	s.Last = readings[0].Timestamp
	s.Max = math.Inf(-1)
	for _, r := range readings {
		meters[r.MeterID] = r.Cluster
		total += r.Consumption
		if r.Consumption == 0 {
			s.Zeros++
		}
		s.Max = math.Max(s.Max, r.Consumption)
		if r.Timestamp.Before(s.First) {
			s.First = r.Timestamp
		}
		if r.Timestamp.After(s.Last) {
			s.Last = r.Timestamp
		}
	}
	for _, cluster := range meters {
		s.Clusters[cluster]++
	}
	s.Meters = len(meters)
	s.Rows = len(readings)
	s.Mean = total / float64(len(readings))
	return s
}
