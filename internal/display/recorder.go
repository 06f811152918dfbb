package display

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CSVRecorder appends shown frames to a CSV file.
type CSVRecorder struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// OpenCSV opens path for appending. A new file starts with a header.
func OpenCSV(path string) (*CSVRecorder, error) {
	fileExists := false
	if _, err := os.Stat(path); err == nil {
		fileExists = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open frame log: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'

	if !fileExists {
		header := []string{"Time", "On", "Brightness", "Letter", "Bars", "Peaks"}
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write frame log header: %w", err)
		}
		w.Flush()
	}
	return &CSVRecorder{f: f, w: w}, nil
}

// Record writes one row.
func (r *CSVRecorder) Record(s Snapshot) error {
	record := []string{
		s.Shown.Format(time.RFC3339Nano),
		strconv.FormatBool(s.On),
		strconv.Itoa(int(s.Brightness)),
		strconv.Itoa(s.Letter),
		joinInts(s.Bars[:]),
		joinInts(s.Peaks[:]),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Write(record); err != nil {
		return fmt.Errorf("write frame log: %w", err)
	}
	r.w.Flush()
	return r.w.Error()
}

func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	return r.f.Close()
}

func joinInts[T uint8 | int](v []T) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(int(x))
	}
	return strings.Join(parts, ",")
}
