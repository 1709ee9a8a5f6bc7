package export

import (
	"LightCount/internal/model"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Header is the first record of every dump.
var Header = []string{"timestamp", "node", "vlan", "ip", "in_pps", "in_bps", "out_pps", "out_bps"}

// CSVWriter writes exported rows as CSV, optionally zstd-compressed.
// It implements the model.RowSink interface.
type CSVWriter struct {
	file io.Closer
	zw   *zstd.Encoder
	cw   *csv.Writer
	loc  *time.Location
	path string
	rows int
}

// NewCSVWriter creates path and writes the header. Paths ending in .zst are
// compressed with zstd. Timestamps are rendered in loc.
func NewCSVWriter(path string, loc *time.Location) (*CSVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create dump file '%s': %w", path, err)
	}
	w, err := newWriter(file, loc, strings.HasSuffix(path, ".zst"))
	if err != nil {
		file.Close()
		return nil, err
	}
	w.file = file
	w.path = path
	return w, nil
}

// NewStreamWriter writes to out, which is left open by Close.
func NewStreamWriter(out io.Writer, loc *time.Location, compress bool) (*CSVWriter, error) {
	return newWriter(out, loc, compress)
}

func newWriter(out io.Writer, loc *time.Location, compress bool) (*CSVWriter, error) {
	if loc == nil {
		loc = time.UTC
	}
	w := &CSVWriter{loc: loc, path: "stream"}
	if compress {
		zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("failed to create encoder: %w", err)
		}
		w.zw = zw
		out = zw
	}
	w.cw = csv.NewWriter(out)
	if err := w.cw.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return w, nil
}

// WriteRow appends one record.
func (w *CSVWriter) WriteRow(row model.ExportRow) error {
	record := []string{
		row.Time(w.loc).Format("2006-01-02 15:04:05"),
		row.NodeName,
		strconv.FormatUint(uint64(row.VlanID), 10),
		row.IP,
		strconv.FormatUint(row.InPps, 10),
		strconv.FormatUint(row.InBps, 10),
		strconv.FormatUint(row.OutPps, 10),
		strconv.FormatUint(row.OutBps, 10),
	}
	if err := w.cw.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of records written, header excluded.
func (w *CSVWriter) Rows() int {
	return w.rows
}

// Close flushes all buffered output and closes the file, if any. Every
// layer is closed even when an earlier one fails; the first error is
// returned.
func (w *CSVWriter) Close() error {
	var firstErr error
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		firstErr = fmt.Errorf("failed to flush csv: %w", err)
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to finish zstd stream: %w", err)
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close dump file: %w", err)
		}
	}
	if firstErr != nil {
		return firstErr
	}
	log.Printf("Successfully wrote %d rows to %s", w.rows, w.path)
	return nil
}
