package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Row orderings for the generated output.
const (
	OrderMeter = "meter"
	OrderTime  = "time"
)

// Config holds all generator settings. Values come from environment
// variables, an optional TOML file and command-line flags, in increasing
// order of precedence.
type Config struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	PatternFile string `toml:"pattern_file"`
	OutputPath  string `toml:"output"`
	MetricsFile string `toml:"metrics_file"`

	NumMeters       int     `toml:"num_meters"`
	NumPeriods      int     `toml:"num_periods"`
	TimeInterval    int     `toml:"time_interval"` // minutes
	StartDate       string  `toml:"start_date"`    // empty means now
	Seed            uint64  `toml:"seed"`          // 0 means derive from the clock
	VariationFactor float64 `toml:"variation_factor"`
	BaseMeterID     int     `toml:"base_meter_id"`
	Workers         int     `toml:"workers"`
	Order           string  `toml:"order"`
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates the result.
func Load() (*Config, error) {
	cfg, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv reads configuration from environment variables without range
// checks, for callers that layer a config file and flags on top and call
// Validate once at the end. Unparsable values are still reported.
func LoadEnv() (*Config, error) {
	numMeters, err := envInt("GEN_NUM_METERS", 100)
	if err != nil {
		return nil, err
	}
	numPeriods, err := envInt("GEN_NUM_PERIODS", 96)
	if err != nil {
		return nil, err
	}
	interval, err := envInt("GEN_TIME_INTERVAL", 15)
	if err != nil {
		return nil, err
	}
	baseID, err := envInt("GEN_BASE_METER_ID", 1)
	if err != nil {
		return nil, err
	}
	workers, err := envInt("GEN_WORKERS", 1)
	if err != nil {
		return nil, err
	}

	variation, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("GEN_VARIATION_FACTOR", "0.1"), 64)
	if err != nil {
		return nil, errors.New("invalid GEN_VARIATION_FACTOR")
	}
	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("GEN_SEED", "0"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid GEN_SEED")
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		PatternFile:     sharedcfg.EnvOrDefault("GEN_PATTERN_FILE", ""),
		OutputPath:      sharedcfg.EnvOrDefault("GEN_OUTPUT", "synthetic_consumption_data.csv"),
		MetricsFile:     sharedcfg.EnvOrDefault("GEN_METRICS_FILE", ""),
		NumMeters:       numMeters,
		NumPeriods:      numPeriods,
		TimeInterval:    interval,
		StartDate:       sharedcfg.EnvOrDefault("GEN_START_DATE", ""),
		Seed:            seed,
		VariationFactor: variation,
		BaseMeterID:     baseID,
		Workers:         workers,
		Order:           sharedcfg.EnvOrDefault("GEN_ORDER", OrderMeter),
	}
	return cfg, nil
}

// LoadFile overlays the settings present in a TOML file onto cfg.
// Keys missing from the file keep their current values.
func LoadFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks value ranges. It is called by Load and again after flags
// and config files have been applied.
func (c *Config) Validate() error {
	if c.OutputPath == "" {
		return errors.New("output (GEN_OUTPUT) is required")
	}
	if c.NumMeters <= 0 {
		return errors.New("num_meters (GEN_NUM_METERS) must be positive")
	}
	if c.NumPeriods <= 0 {
		return errors.New("num_periods (GEN_NUM_PERIODS) must be positive")
	}
	if c.TimeInterval <= 0 {
		return errors.New("time_interval (GEN_TIME_INTERVAL) must be positive")
	}
	if c.VariationFactor < 0 || c.VariationFactor > 1 {
		return errors.New("variation_factor (GEN_VARIATION_FACTOR) must be within [0, 1]")
	}
	if c.Workers <= 0 {
		return errors.New("workers (GEN_WORKERS) must be positive")
	}
	if c.Order != OrderMeter && c.Order != OrderTime {
		return fmt.Errorf("order (GEN_ORDER) must be %q or %q", OrderMeter, OrderTime)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.New("log_format (LOG_FORMAT) must be json or text")
	}
	return nil
}

// Interval returns the reading interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.TimeInterval) * time.Minute
}

func envInt(key string, def int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, s)
	}
	return n, nil
}
