// Command generate produces a CSV of synthetic fixed-interval water meter
// readings sampled from a pattern file.
//
// Usage:
//
//	go run ./cmd/generate \
//	  -num-meters 50 -num-periods 672 -time-interval 15 \
//	  -start-date 2024-03-04 -seed 42 \
//	  data/sample_patterns.json out/readings.csv
//
// Settings may also come from GEN_* environment variables or a TOML file
// passed with -config. Flags win over the file, the file over the environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/couchcryptid/water-data-generator/internal/adapter/csvfile"
	"github.com/couchcryptid/water-data-generator/internal/config"
	"github.com/couchcryptid/water-data-generator/internal/domain"
	"github.com/couchcryptid/water-data-generator/internal/generator"
	"github.com/couchcryptid/water-data-generator/internal/observability"
	"github.com/google/uuid"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("generation failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg).With("run_id", uuid.NewString())

	params, err := generator.ParamsFromConfig(cfg)
	if err != nil {
		return err
	}

	set, err := domain.LoadPatternSet(cfg.PatternFile)
	if err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}
	logger.Info("loaded patterns", "path", cfg.PatternFile, "clusters", set.Clusters())

	metrics := observability.NewMetrics()
	gen := generator.New(logger, metrics)
	sink := csvfile.NewWriter(cfg.OutputPath, logger)

	summary, err := gen.Run(ctx, set, params, sink)
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
		logger.Info("wrote metrics", "path", cfg.MetricsFile)
	}

	logSummary(logger, summary, params)
	return nil
}

// parseArgs layers flags over an optional TOML file over the environment.
// Flags are parsed twice: once to find -config, and again after the file is
// applied so explicit flags still take precedence.
func parseArgs(args []string, stderr io.Writer) (*config.Config, error) {
	cfg, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: generate [flags] <pattern-file> [output-csv]")
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "optional TOML file with generator settings")
	fs.IntVar(&cfg.NumMeters, "num-meters", cfg.NumMeters, "number of meters to simulate")
	fs.IntVar(&cfg.NumPeriods, "num-periods", cfg.NumPeriods, "number of intervals per meter")
	fs.IntVar(&cfg.TimeInterval, "time-interval", cfg.TimeInterval, "interval length in minutes")
	fs.StringVar(&cfg.StartDate, "start-date", cfg.StartDate, "first timestamp (YYYY-MM-DD or YYYY-MM-DDTHH:MM[:SS]); default now")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed; 0 derives one from the clock")
	fs.Float64Var(&cfg.VariationFactor, "variation-factor", cfg.VariationFactor, "per-meter pattern variation (0-1)")
	fs.IntVar(&cfg.BaseMeterID, "base-meter-id", cfg.BaseMeterID, "id of the first meter")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "meters generated concurrently")
	fs.StringVar(&cfg.Order, "order", cfg.Order, "row order: meter or time")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus metrics to this file after the run")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *configPath != "" {
		if err := config.LoadFile(cfg, *configPath); err != nil {
			return nil, err
		}
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	switch rest := fs.Args(); len(rest) {
	case 2:
		cfg.OutputPath = rest[1]
		fallthrough
	case 1:
		cfg.PatternFile = rest[0]
	case 0:
	default:
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", rest[2:])
	}

	if cfg.PatternFile == "" {
		fs.Usage()
		return nil, errors.New("missing pattern file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func logSummary(logger *slog.Logger, s generator.Summary, p generator.Params) {
	logger.Info("generation complete",
		"meters", s.Meters,
		"rows", s.Rows,
		"zero_rows", s.Zeros,
		"first", s.First.Format(domain.TimestampLayout),
		"last", s.Last.Format(domain.TimestampLayout),
		"mean", fmt.Sprintf("%.2f", s.Mean),
		"max", s.Max,
		"seed", p.Seed,
		"duration", s.Duration,
	)

	clusters := make([]string, 0, len(s.Clusters))
	for c := range s.Clusters {
		clusters = append(clusters, c)
	}
	sort.Strings(clusters)
	for _, c := range clusters {
		logger.Info("cluster assignment", "cluster", c, "meters", s.Clusters[c])
	}
}
