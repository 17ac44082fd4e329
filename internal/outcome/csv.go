package outcome

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CSV column layouts.
var (
	StepColumns  = []string{"timestamp", "run_id", "step_name", "action_type", "selector", "status", "error_message", "duration_ms", "context"}
	PriceColumns = []string{"timestamp", "dep_date", "ret_date", "price"}
)

// timestampLayouts are accepted when reading history, newest first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// CSVSink appends records to flat files, writing the header when a file is
// first created. Appends are serialized so concurrent flows can share a sink.
type CSVSink struct {
	stepsPath  string
	pricesPath string
	mu         sync.Mutex
}

// NewCSVSink creates a sink. An empty path disables that record kind.
func NewCSVSink(stepsPath, pricesPath string) *CSVSink {
	return &CSVSink{stepsPath: stepsPath, pricesPath: pricesPath}
}

func (s *CSVSink) WriteStep(_ context.Context, rec StepRecord) error {
	if s.stepsPath == "" {
		return nil
	}
	return s.appendRow(s.stepsPath, StepColumns, stepRow(rec))
}

func (s *CSVSink) WritePrice(_ context.Context, obs PriceObservation) error {
	if s.pricesPath == "" {
		return nil
	}
	return s.appendRow(s.pricesPath, PriceColumns, []string{
		obs.Timestamp.Format(time.RFC3339Nano),
		obs.DepartureDate,
		obs.ReturnDate,
		strconv.FormatFloat(obs.Price, 'f', -1, 64),
	})
}

// Close is a no-op; files are opened per append.
func (s *CSVSink) Close() error { return nil }

func (s *CSVSink) appendRow(path string, header, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func stepRow(rec StepRecord) []string {
	status := "0"
	if rec.Success {
		status = "1"
	}
	return []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.RunID,
		rec.StepName,
		rec.ActionType,
		rec.Selector,
		status,
		rec.ErrorMessage,
		strconv.FormatInt(rec.DurationMS, 10),
		rec.Context,
	}
}

// ReadSteps loads every step record in path. A missing file is an empty history.
func ReadSteps(path string) ([]StepRecord, error) {
	var out []StepRecord
	err := readRows(path, func(row map[string]string) error {
		rec, err := parseStep(row)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// ReadPrices loads every price observation in path. A missing file is an
// empty history.
func ReadPrices(path string) ([]PriceObservation, error) {
	var out []PriceObservation
	err := readRows(path, func(row map[string]string) error {
		ts, err := parseTimestamp(row["timestamp"])
		if err != nil {
			return err
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row["price"]), 64)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", row["price"], err)
		}
		out = append(out, PriceObservation{
			Timestamp:     ts,
			DepartureDate: row["dep_date"],
			ReturnDate:    row["ret_date"],
			Price:         price,
		})
		return nil
	})
	return out, err
}

func readRows(path string, fn func(map[string]string) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	for line := 2; ; line++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		if err := fn(row); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
}

func parseStep(row map[string]string) (StepRecord, error) {
	ts, err := parseTimestamp(row["timestamp"])
	if err != nil {
		return StepRecord{}, err
	}
	rec := StepRecord{
		Timestamp:    ts,
		RunID:        row["run_id"],
		StepName:     row["step_name"],
		ActionType:   row["action_type"],
		Selector:     row["selector"],
		Success:      strings.TrimSpace(row["status"]) == "1",
		ErrorMessage: row["error_message"],
		Context:      row["context"],
	}
	if d := strings.TrimSpace(row["duration_ms"]); d != "" {
		ms, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return StepRecord{}, fmt.Errorf("invalid duration %q: %w", d, err)
		}
		rec.DurationMS = int64(ms)
	}
	return rec, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ParseStepLine decodes a single CSV line of a steps file. The header line
// reports ok=false.
func ParseStepLine(line string) (StepRecord, bool, error) {
	fields, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return StepRecord{}, false, fmt.Errorf("invalid step line: %w", err)
	}
	if len(fields) > 0 && fields[0] == StepColumns[0] {
		return StepRecord{}, false, nil
	}
	row := make(map[string]string, len(StepColumns))
	for i, name := range StepColumns {
		if i < len(fields) {
			row[name] = fields[i]
		}
	}
	rec, err := parseStep(row)
	if err != nil {
		return StepRecord{}, false, err
	}
	return rec, true, nil
}
