package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "water_datagen"

// Metrics holds the Prometheus counters, histograms, and gauges for a
// generation run. A one-shot run has nothing to scrape, so metrics live in a
// private registry that is dumped to a textfile when the run ends.
type Metrics struct {
	Registry *prometheus.Registry

	MetersGenerated   prometheus.Counter
	ReadingsGenerated *prometheus.CounterVec // labels: cluster
	ZeroReadings      prometheus.Counter
	RowsWritten       prometheus.Counter
	Consumption       prometheus.Histogram

	GenerationDuration prometheus.Gauge
	LastSuccess        prometheus.Gauge
}

// NewMetrics creates all generator metrics on a fresh registry, so it is safe
// to call more than once in tests.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MetersGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meters_generated_total",
			Help:      "Meters whose readings were fully generated.",
		}),
		ReadingsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_generated_total",
			Help:      "Synthetic readings generated, by meter cluster.",
		}, []string{"cluster"}),
		ZeroReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zero_readings_total",
			Help:      "Generated readings with zero consumption.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to the output file.",
		}),
		Consumption: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consumption",
			Help:      "Distribution of non-zero generated consumption values.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 50, 100},
		}),
		GenerationDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of the last generation run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	m.Registry.MustRegister(
		m.MetersGenerated,
		m.ReadingsGenerated,
		m.ZeroReadings,
		m.RowsWritten,
		m.Consumption,
		m.GenerationDuration,
		m.LastSuccess,
	)

	return m
}

// WriteTextfile writes the registry in the Prometheus text format, suitable
// for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
