// Command validate checks a generated readings CSV: row count, meter ids,
// timestamp spacing, non-negative consumption and cluster assignment.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input out/readings.csv \
//	  -num-meters 50 -num-periods 672 -time-interval 15
//
// Expectations default to the same GEN_* environment variables the generator
// reads, so a run and its validation can share one environment.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/water-data-generator/internal/adapter/csvfile"
	"github.com/couchcryptid/water-data-generator/internal/config"
	"github.com/couchcryptid/water-data-generator/internal/verify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", cfg.OutputPath, "path to the generated readings CSV")
	numMeters := fs.Int("num-meters", cfg.NumMeters, "expected number of meters")
	numPeriods := fs.Int("num-periods", cfg.NumPeriods, "expected readings per meter")
	interval := fs.Int("time-interval", cfg.TimeInterval, "expected interval in minutes")
	baseID := fs.Int("base-meter-id", cfg.BaseMeterID, "expected id of the first meter")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	readings, err := csvfile.ReadReadings(*input)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: load %s: %v\n", *input, err)
		return 1
	}

	phases := verify.Check(readings, verify.Expectation{
		NumMeters:   *numMeters,
		NumPeriods:  *numPeriods,
		Interval:    time.Duration(*interval) * time.Minute,
		BaseMeterID: *baseID,
	})

	fmt.Fprintln(stdout, "=== Synthetic Readings Validation ===")
	fmt.Fprintln(stdout)
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.Passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.Errors)+p.Dropped())
		}
		fmt.Fprintf(stdout, "  %-24s %s\n", p.Name, status)
	}
	fmt.Fprintf(stdout, "\nRecords: %d in %s\n", len(readings), *input)

	for _, p := range phases {
		if p.Passed() {
			continue
		}
		fmt.Fprintf(stdout, "\n--- %s ---\n", p.Name)
		for i, e := range p.Errors {
			fmt.Fprintf(stdout, "  [%d] %s\n", i+1, e)
		}
		if n := p.Dropped(); n > 0 {
			fmt.Fprintf(stdout, "  ... %d more\n", n)
		}
	}

	if verify.Passed(phases) {
		fmt.Fprintln(stdout, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(stdout, "\nValidation FAILED.")
	return 1
}
