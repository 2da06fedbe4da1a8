// Package output exports per-iteration benchmark results to files.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Header is the first line of every results file
var Header = []string{"run_id", "iteration", "timestamp", "latency_ms", "request_charge"}

// Row is one measured query execution
type Row struct {
	RunID         string
	Iteration     int
	Timestamp     time.Time
	LatencyMs     float64
	RequestCharge float64
}

func (r Row) record() []string {
	return []string{
		r.RunID,
		strconv.Itoa(r.Iteration),
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(r.LatencyMs, 'f', 3, 64),
		strconv.FormatFloat(r.RequestCharge, 'f', 2, 64),
	}
}

// CSVWriter appends rows to a CSV file, flushing after each row so that an
// interrupted run keeps everything recorded so far.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	closed bool
}

// NewCSVWriter creates (or truncates) the file at path and writes the header
func NewCSVWriter(path string) (*CSVWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create results directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create results file: %w", err)
	}

	w := &CSVWriter{file: f, writer: csv.NewWriter(f)}
	if err := w.writeRecord(Header); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Write appends a single row
func (w *CSVWriter) Write(row Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("results file already closed")
	}
	return w.writeRecord(row.record())
}

func (w *CSVWriter) writeRecord(rec []string) error {
	if err := w.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write results row: %w", err)
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush results row: %w", err)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.writer.Flush()
	flushErr := w.writer.Error()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close results file: %w", err)
	}
	return flushErr
}
