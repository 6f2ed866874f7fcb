package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// BatchSize is the number of rows sent per native INSERT block.
const BatchSize = 100_000

// Doer executes a native-protocol query. *ch.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, q ch.Query) error
}

// DialClickHouse opens a native connection with LZ4 compression.
func DialClickHouse(ctx context.Context, addr, database, user, password string) (*ch.Client, error) {
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     addr,
		Database:    database,
		User:        user,
		Password:    password,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse dial %s: %w", addr, err)
	}
	return conn, nil
}

// ClickHouseWriter inserts frames into one table over the native protocol.
// Columns listed in orderBy form the MergeTree sorting key and are stored
// non-nullable; every other scalar column is Nullable.
type ClickHouseWriter struct {
	conn      Doer
	table     string
	orderBy   []string
	batchSize int
}

// NewClickHouseWriter returns a writer for the fully qualified table name.
func NewClickHouseWriter(conn Doer, table string, orderBy ...string) *ClickHouseWriter {
	return &ClickHouseWriter{conn: conn, table: table, orderBy: orderBy, batchSize: BatchSize}
}

type resettable interface {
	proto.ColInput
	Reset()
}

type chColumn struct {
	name   string
	ddl    string
	data   resettable
	append func(i int)
}

func (w *ClickHouseWriter) columns(f *frame.Frame) ([]chColumn, error) {
	out := make([]chColumn, 0, f.Width())
	for _, s := range f.Columns() {
		c, err := newChColumn(s, slices.Contains(w.orderBy, s.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func newChColumn(s *frame.Series, key bool) (chColumn, error) {
	c := chColumn{name: s.Name()}
	switch s.Kind() {
	case frame.KindFloat64:
		col := proto.NewColNullable[float64](new(proto.ColFloat64))
		c.ddl, c.data = "Nullable(Float64)", col
		c.append = func(i int) {
			if v, ok := s.Float(i); ok {
				col.Append(proto.NewNullable(v))
				return
			}
			col.Append(proto.Null[float64]())
		}
	case frame.KindFloat32:
		col := proto.NewColNullable[float32](new(proto.ColFloat32))
		c.ddl, c.data = "Nullable(Float32)", col
		c.append = func(i int) {
			if v, ok := s.Float(i); ok {
				col.Append(proto.NewNullable(float32(v)))
				return
			}
			col.Append(proto.Null[float32]())
		}
	case frame.KindInt64, frame.KindDuration:
		col := proto.NewColNullable[int64](new(proto.ColInt64))
		c.ddl, c.data = "Nullable(Int64)", col
		c.append = func(i int) {
			if s.IsNull(i) {
				col.Append(proto.Null[int64]())
				return
			}
			if d, ok := s.Duration(i); ok {
				col.Append(proto.NewNullable(int64(d)))
				return
			}
			col.Append(proto.NewNullable(s.Value(i).(int64)))
		}
	case frame.KindTime:
		dt := new(proto.ColDateTime64).WithPrecision(proto.PrecisionNano)
		if key {
			c.ddl, c.data = "DateTime64(9)", dt
			c.append = func(i int) {
				t, _ := s.Time(i)
				dt.Append(t)
			}
			break
		}
		col := proto.NewColNullable[time.Time](dt)
		c.ddl, c.data = "Nullable(DateTime64(9))", col
		c.append = func(i int) {
			if t, ok := s.Time(i); ok {
				col.Append(proto.NewNullable(t))
				return
			}
			col.Append(proto.Null[time.Time]())
		}
	case frame.KindString:
		str := new(proto.ColStr)
		if key {
			c.ddl, c.data = "String", str
			c.append = func(i int) {
				v, _ := s.Str(i)
				str.Append(v)
			}
			break
		}
		col := proto.NewColNullable[string](str)
		c.ddl, c.data = "Nullable(String)", col
		c.append = func(i int) {
			if v, ok := s.Str(i); ok {
				col.Append(proto.NewNullable(v))
				return
			}
			col.Append(proto.Null[string]())
		}
	case frame.KindList:
		col := new(proto.ColFloat64).Array()
		c.ddl, c.data = "Array(Float64)", col
		c.append = func(i int) {
			v, _ := s.List(i)
			col.Append(v)
		}
	default:
		return c, &frame.UnsupportedTypeError{Type: "column " + s.Name() + " of kind " + s.Kind().String()}
	}
	return c, nil
}

// CreateTable issues CREATE TABLE IF NOT EXISTS with a schema derived from f.
func (w *ClickHouseWriter) CreateTable(ctx context.Context, f *frame.Frame) error {
	cols, err := w.columns(f)
	if err != nil {
		return err
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("    `%s` %s", c.name, c.ddl)
	}
	order := "tuple()"
	if len(w.orderBy) > 0 {
		order = "(" + strings.Join(w.orderBy, ", ") + ")"
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n) ENGINE = MergeTree ORDER BY %s",
		w.table, strings.Join(defs, ",\n"), order)
	if err := w.conn.Do(ctx, ch.Query{Body: query}); err != nil {
		return fmt.Errorf("create %s: %w", w.table, err)
	}
	return nil
}

// Insert sends f in blocks of at most BatchSize rows and returns the number
// of rows written.
func (w *ClickHouseWriter) Insert(ctx context.Context, f *frame.Frame) (int, error) {
	for _, key := range w.orderBy {
		if c, ok := f.Column(key); ok && c.NullCount() > 0 {
			return 0, fmt.Errorf("insert %s: sort key %q: %w", w.table, key, frame.ErrUnsortable)
		}
	}
	cols, err := w.columns(f)
	if err != nil {
		return 0, err
	}
	input := make(proto.Input, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		input[i] = proto.InputColumn{Name: c.name, Data: c.data}
		names[i] = "`" + c.name + "`"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES", w.table, strings.Join(names, ", "))

	written := 0
	for start := 0; start < f.Len(); start += w.batchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := min(start+w.batchSize, f.Len())
		for _, c := range cols {
			c.data.Reset()
		}
		for i := start; i < end; i++ {
			for _, c := range cols {
				c.append(i)
			}
		}
		if err := w.conn.Do(ctx, ch.Query{Body: query, Input: input}); err != nil {
			return written, fmt.Errorf("insert %s: %w", w.table, err)
		}
		written += end - start
	}
	return written, nil
}
