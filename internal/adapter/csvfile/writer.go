package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/water-data-generator/internal/domain"
)

// Header is the column layout of a readings file.
var Header = []string{"MeterID", "TimeStamp", "Consumption", "Cluster"}

// flushEvery bounds how many rows are buffered between context checks.
const flushEvery = 4096

// Writer writes readings to a CSV file.
// It implements generator.Sink.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer for the given output path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// WriteReadings writes the header and one row per reading. Output goes to a
// temporary file in the target directory that is renamed into place only
// after every row has been written, so a failed run leaves no partial file.
func (w *Writer) WriteReadings(ctx context.Context, readings []domain.Reading) (err error) {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()           //nolint:errcheck // already failing
			os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err := Encode(ctx, buf, readings); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}

	w.logger.Info("wrote readings", "path", w.path, "rows", len(readings))
	return nil
}

// Encode writes readings as CSV, header first, to any writer.
func Encode(ctx context.Context, out io.Writer, readings []domain.Reading) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(Header))
	for i, r := range readings {
		if i%flushEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		record[0] = strconv.Itoa(r.MeterID)
		record[1] = r.Timestamp.Format(domain.TimestampLayout)
		record[2] = strconv.FormatFloat(r.Consumption, 'f', -1, 64)
		record[3] = r.Cluster
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
