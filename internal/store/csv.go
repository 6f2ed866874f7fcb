package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// MaxErrorsToLog throttles per-row CSV diagnostics.
const MaxErrorsToLog = 10

// Time layouts accepted in CSV cells, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseStats counts rows seen by ReadCSV.
type ParseStats struct {
	TotalRowsRead    int
	SkippedEmptyRows int
	FailedRows       int
}

// ReadCSV parses a headed CSV stream into a Frame. Column kinds are inferred
// from the cells: Float64 when every non-empty cell is a number, then Time,
// Duration and List ("[1,2,3]"), falling back to String. Empty cells are null.
// Rows with a different field count than the header are skipped and counted.
func ReadCSV(r io.Reader, logger *zap.Logger) (*frame.Frame, ParseStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stats ParseStats

	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, fmt.Errorf("csv: missing header")
	}
	if err != nil {
		return nil, stats, fmt.Errorf("csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	cells := make([][]string, len(header))
	errorCount := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		stats.TotalRowsRead++
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, stats, fmt.Errorf("csv read: %w", err)
			}
			stats.FailedRows++
			errorCount++
			if errorCount <= MaxErrorsToLog {
				logger.Warn("csv read error", zap.Int("row", stats.TotalRowsRead), zap.Error(err))
			}
			continue
		}
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			stats.SkippedEmptyRows++
			continue
		}
		if len(record) != len(header) {
			stats.FailedRows++
			errorCount++
			if errorCount <= MaxErrorsToLog {
				logger.Warn("csv field count mismatch",
					zap.Int("row", stats.TotalRowsRead),
					zap.Int("got", len(record)),
					zap.Int("want", len(header)))
			}
			continue
		}
		for j, cell := range record {
			cells[j] = append(cells[j], strings.TrimSpace(cell))
		}
	}
	if errorCount > MaxErrorsToLog {
		logger.Warn("csv errors suppressed", zap.Int("count", errorCount-MaxErrorsToLog))
	}

	cols := make([]*frame.Series, len(header))
	for j, name := range header {
		cols[j] = parseColumn(name, cells[j])
	}
	f, err := frame.New(cols...)
	if err != nil {
		return nil, stats, err
	}
	return f, stats, nil
}

func parseColumn(name string, cells []string) *frame.Series {
	valid := make([]bool, len(cells))
	for i, c := range cells {
		valid[i] = c != ""
	}
	withNulls := func(s *frame.Series) *frame.Series {
		for _, ok := range valid {
			if !ok {
				return s.WithNulls(valid)
			}
		}
		return s
	}

	if vals, ok := parseAll(cells, parseFloat64); ok {
		return withNulls(frame.NewFloat64(name, vals))
	}
	if vals, ok := parseAll(cells, parseTime); ok {
		return withNulls(frame.NewTime(name, vals))
	}
	if vals, ok := parseAll(cells, time.ParseDuration); ok {
		return withNulls(frame.NewDuration(name, vals))
	}
	if vals, ok := parseAll(cells, parseList); ok {
		return withNulls(frame.NewList(name, vals))
	}
	return withNulls(frame.NewString(name, cells))
}

// parseAll applies parse to every non-empty cell and fails if any cell does.
// An all-empty column therefore always parses as the first kind tried.
func parseAll[T any](cells []string, parse func(string) (T, error)) ([]T, bool) {
	out := make([]T, len(cells))
	for i, c := range cells {
		if c == "" {
			continue
		}
		v, err := parse(c)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func parseFloat64(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan":
		return math.NaN(), nil
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func parseList(s string) ([]float64, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("not a list: %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := parseFloat64(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteCSV writes f with a header row. Nulls are written as empty cells,
// times as RFC 3339 with nanoseconds and durations in Go notation.
func WriteCSV(w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return err
	}
	cols := f.Columns()
	record := make([]string, len(cols))
	for i := 0; i < f.Len(); i++ {
		for j, c := range cols {
			record[j] = formatCell(c, i)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(c *frame.Series, i int) string {
	switch v := c.Value(i).(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return v.String()
	case string:
		return v
	case []float64:
		parts := make([]string, len(v))
		for k, x := range v {
			parts[k] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return ""
}
