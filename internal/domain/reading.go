package domain

import (
	"fmt"
	"time"
)

// TimestampLayout is the output format for reading timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

// Reading is one synthetic meter reading.
type Reading struct {
	MeterID     int       `json:"meter_id"`
	Timestamp   time.Time `json:"timestamp"`
	Consumption float64   `json:"consumption"`
	Cluster     string    `json:"cluster"`
}

// PeriodTime returns the timestamp of the i-th interval after start.
func PeriodTime(start time.Time, interval time.Duration, i int) time.Time {
	return start.Add(time.Duration(i) * interval)
}

// startLayouts are the accepted start date formats, most specific first.
var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseStartDate parses a start date. Values without a zone are UTC.
func ParseStartDate(s string) (time.Time, error) {
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &StartDateError{Value: s}
}

// StartDateError reports an unparsable start date.
type StartDateError struct {
	Value string
}

func (e *StartDateError) Error() string {
	return fmt.Sprintf("invalid start date %q (want YYYY-MM-DD or YYYY-MM-DDTHH:MM[:SS])", e.Value)
}
