// Package store converts tables on disk (parquet, CSV, gzip CSV) and in
// ClickHouse to and from frame.Frame.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// Format is an on-disk table encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
	FormatCSVGzip Format = "csv.gz"
	FormatUnknown Format = "unknown"
)

// DetectFormat classifies path by extension.
func DetectFormat(path string) Format {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(base, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(base, ".csv.gz"), strings.HasSuffix(base, ".csv.gzip"):
		return FormatCSVGzip
	case strings.HasSuffix(base, ".csv"):
		return FormatCSV
	}
	return FormatUnknown
}

// ReadFile loads a table from path.
func ReadFile(path string, logger *zap.Logger) (*frame.Frame, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch DetectFormat(path) {
	case FormatParquet:
		f, _, err := ReadParquetFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return f, nil
	case FormatCSV, FormatCSVGzip:
		rc, err := Open(path)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		f, stats, err := ReadCSV(rc, logger.With(zap.String("file", filepath.Base(path))))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if stats.FailedRows > 0 {
			logger.Warn("skipped malformed rows",
				zap.String("file", path),
				zap.Int("failed", stats.FailedRows),
				zap.Int("read", stats.TotalRowsRead))
		}
		return f, nil
	}
	return nil, fmt.Errorf("%s: unrecognized table format", path)
}

type gzipFile struct {
	*pgzip.Reader
	f *os.File
}

func (g gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open returns a reader over path, decompressing .gz files in parallel.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") && !strings.HasSuffix(strings.ToLower(path), ".gzip") {
		return f, nil
	}
	gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return gzipFile{Reader: gz, f: f}, nil
}

// WriteFile stores f at path in the format implied by its extension. meta is
// only recorded by parquet output.
func WriteFile(path string, f *frame.Frame, meta map[string]string) (err error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return fmt.Errorf("%s: unrecognized table format", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	switch format {
	case FormatParquet:
		return WriteParquet(out, f, meta)
	case FormatCSVGzip:
		gz := gzip.NewWriter(out)
		if err := WriteCSV(gz, f); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	default:
		return WriteCSV(out, f)
	}
}
