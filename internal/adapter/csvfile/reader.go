package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/water-data-generator/internal/domain"
)

// ReadReadings parses a readings file written by Writer.
func ReadReadings(path string) ([]domain.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses readings CSV from r. Errors carry the 1-based line number.
func Decode(r io.Reader) ([]domain.Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %v (want %v)", header, Header)
	}

	var readings []domain.Reading
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return readings, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		reading, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readings = append(readings, reading)
	}
}

func parseRow(row []string) (domain.Reading, error) {
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return domain.Reading{}, fmt.Errorf("invalid MeterID %q", row[0])
	}
	ts, err := time.Parse(domain.TimestampLayout, row[1])
	if err != nil {
		return domain.Reading{}, fmt.Errorf("invalid TimeStamp %q", row[1])
	}
	v, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("invalid Consumption %q", row[2])
	}
	return domain.Reading{MeterID: id, Timestamp: ts, Consumption: v, Cluster: row[3]}, nil
}
