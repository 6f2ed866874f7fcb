package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// SchemaVersion is written to every parquet file produced by this package.
const SchemaVersion = 1

// Key/value metadata keys.
const (
	MetaSchemaVersion = "ids.schema_version"
	MetaColumns       = "ids.columns"
	metaKindPrefix    = "ids.kind."
)

const rowBatch = 1024

func parquetNode(c *frame.Series) (parquet.Node, error) {
	switch c.Kind() {
	case frame.KindFloat64:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType)), nil
	case frame.KindFloat32:
		return parquet.Optional(parquet.Leaf(parquet.FloatType)), nil
	case frame.KindInt64, frame.KindDuration:
		return parquet.Optional(parquet.Int(64)), nil
	case frame.KindTime:
		return parquet.Optional(parquet.Timestamp(parquet.Nanosecond)), nil
	case frame.KindString:
		return parquet.Optional(parquet.String()), nil
	case frame.KindList:
		return parquet.Repeated(parquet.Leaf(parquet.DoubleType)), nil
	}
	return nil, &frame.UnsupportedTypeError{Type: "column " + c.Name() + " of kind " + c.Kind().String()}
}

// WriteParquet encodes f as a zstd-compressed parquet file. Column kinds and
// order are kept in key/value metadata so ReadParquet restores the frame
// exactly; meta entries are added alongside, except those reusing the
// reserved ids.* keys.
func WriteParquet(w io.Writer, f *frame.Frame, meta map[string]string) error {
	group := parquet.Group{}
	for _, c := range f.Columns() {
		node, err := parquetNode(c)
		if err != nil {
			return err
		}
		group[c.Name()] = node
	}
	schema := parquet.NewSchema("ids", group)

	// Group fields are laid out by name; map each frame column to its leaf.
	leaf := make(map[string]int, f.Width())
	for i, path := range schema.Columns() {
		leaf[path[0]] = i
	}
	cols := f.Columns()
	sort.Slice(cols, func(a, b int) bool { return leaf[cols[a].Name()] < leaf[cols[b].Name()] })

	order, err := json.Marshal(f.Names())
	if err != nil {
		return err
	}
	opts := []parquet.WriterOption{
		schema,
		parquet.Compression(&zstd.Codec{}),
		parquet.KeyValueMetadata(MetaSchemaVersion, fmt.Sprint(SchemaVersion)),
		parquet.KeyValueMetadata(MetaColumns, string(order)),
	}
	for _, c := range cols {
		opts = append(opts, parquet.KeyValueMetadata(metaKindPrefix+c.Name(), c.Kind().String()))
	}
	for _, k := range sortedKeys(meta) {
		if k == MetaSchemaVersion || k == MetaColumns || strings.HasPrefix(k, metaKindPrefix) {
			continue
		}
		opts = append(opts, parquet.KeyValueMetadata(k, meta[k]))
	}
	pw := parquet.NewWriter(w, opts...)

	rows := make([]parquet.Row, 0, rowBatch)
	for i := 0; i < f.Len(); i++ {
		row := make(parquet.Row, 0, len(cols))
		for _, c := range cols {
			row = appendValues(row, c, i, leaf[c.Name()])
		}
		rows = append(rows, row)
		if len(rows) == rowBatch {
			if _, err := pw.WriteRows(rows); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	return pw.Close()
}

func appendValues(row parquet.Row, c *frame.Series, i, col int) parquet.Row {
	if c.Kind() == frame.KindList {
		list, ok := c.List(i)
		if !ok || len(list) == 0 {
			return append(row, parquet.NullValue().Level(0, 0, col))
		}
		for k, x := range list {
			rep := 1
			if k == 0 {
				rep = 0
			}
			row = append(row, parquet.DoubleValue(x).Level(rep, 1, col))
		}
		return row
	}
	if c.IsNull(i) {
		return append(row, parquet.NullValue().Level(0, 0, col))
	}
	var v parquet.Value
	switch c.Kind() {
	case frame.KindFloat64:
		x, _ := c.Float(i)
		v = parquet.DoubleValue(x)
	case frame.KindFloat32:
		x, _ := c.Float(i)
		v = parquet.FloatValue(float32(x))
	case frame.KindInt64:
		v = parquet.Int64Value(c.Value(i).(int64))
	case frame.KindDuration:
		d, _ := c.Duration(i)
		v = parquet.Int64Value(int64(d))
	case frame.KindTime:
		t, _ := c.Time(i)
		v = parquet.Int64Value(t.UnixNano())
	case frame.KindString:
		s, _ := c.Str(i)
		v = parquet.ByteArrayValue([]byte(s))
	}
	return append(row, v.Level(0, 1, col))
}

// column accumulates decoded values for one leaf.
type column struct {
	name  string
	kind  frame.Kind
	unit  time.Duration // timestamp unit for KindTime
	nums  []float64
	ints  []int64
	strs  []string
	lists [][]float64
	valid []bool
}

func (c *column) add(v parquet.Value) {
	if c.kind == frame.KindList {
		if v.RepetitionLevel() == 0 {
			var entry []float64
			if !v.IsNull() {
				entry = []float64{v.Double()}
			}
			c.lists = append(c.lists, entry)
			c.valid = append(c.valid, !v.IsNull())
			return
		}
		last := len(c.lists) - 1
		c.lists[last] = append(c.lists[last], v.Double())
		return
	}
	null := v.IsNull()
	c.valid = append(c.valid, !null)
	switch c.kind {
	case frame.KindFloat64, frame.KindFloat32:
		x := 0.0
		if !null {
			if v.Kind() == parquet.Float {
				x = float64(v.Float())
			} else {
				x = v.Double()
			}
		}
		c.nums = append(c.nums, x)
	case frame.KindInt64, frame.KindDuration, frame.KindTime:
		var x int64
		if !null {
			switch v.Kind() {
			case parquet.Int32:
				x = int64(v.Int32())
			case parquet.Boolean:
				if v.Boolean() {
					x = 1
				}
			default:
				x = v.Int64()
			}
		}
		c.ints = append(c.ints, x)
	case frame.KindString:
		s := ""
		if !null {
			s = string(v.ByteArray())
		}
		c.strs = append(c.strs, s)
	}
}

func (c *column) series() *frame.Series {
	var s *frame.Series
	switch c.kind {
	case frame.KindFloat64:
		s = frame.NewFloat64(c.name, c.nums)
	case frame.KindFloat32:
		f32 := make([]float32, len(c.nums))
		for i, x := range c.nums {
			f32[i] = float32(x)
		}
		s = frame.NewFloat32(c.name, f32)
	case frame.KindInt64:
		s = frame.NewInt64(c.name, c.ints)
	case frame.KindDuration:
		durs := make([]time.Duration, len(c.ints))
		for i, x := range c.ints {
			durs[i] = time.Duration(x)
		}
		s = frame.NewDuration(c.name, durs)
	case frame.KindTime:
		ts := make([]time.Time, len(c.ints))
		for i, x := range c.ints {
			switch c.unit {
			case time.Millisecond:
				ts[i] = time.UnixMilli(x).UTC()
			case time.Microsecond:
				ts[i] = time.UnixMicro(x).UTC()
			default:
				ts[i] = time.Unix(0, x).UTC()
			}
		}
		s = frame.NewTime(c.name, ts)
	case frame.KindString:
		s = frame.NewString(c.name, c.strs)
	case frame.KindList:
		return frame.NewList(c.name, c.lists)
	}
	for _, ok := range c.valid {
		if !ok {
			return s.WithNulls(c.valid)
		}
	}
	return s
}

var kindsByName = map[string]frame.Kind{
	frame.KindFloat64.String():  frame.KindFloat64,
	frame.KindFloat32.String():  frame.KindFloat32,
	frame.KindInt64.String():    frame.KindInt64,
	frame.KindTime.String():     frame.KindTime,
	frame.KindDuration.String(): frame.KindDuration,
	frame.KindString.String():   frame.KindString,
	frame.KindList.String():     frame.KindList,
}

// leafKind decides the frame kind of a parquet leaf, preferring the kind
// recorded by WriteParquet.
func leafKind(pf *parquet.File, name string, leaf parquet.LeafColumn) (frame.Kind, time.Duration, error) {
	typ := leaf.Node.Type()
	unit := time.Nanosecond
	if lt := typ.LogicalType(); lt != nil && lt.Timestamp != nil {
		switch {
		case lt.Timestamp.Unit.Millis != nil:
			unit = time.Millisecond
		case lt.Timestamp.Unit.Micros != nil:
			unit = time.Microsecond
		}
		if _, tagged := pf.Lookup(metaKindPrefix + name); !tagged {
			return frame.KindTime, unit, nil
		}
	}
	if s, ok := pf.Lookup(metaKindPrefix + name); ok {
		if k, ok := kindsByName[s]; ok {
			return k, unit, nil
		}
	}
	if leaf.MaxRepetitionLevel > 0 {
		if typ.Kind() != parquet.Double {
			return frame.KindInvalid, 0, &frame.UnsupportedTypeError{Type: "repeated " + typ.String() + " column " + name}
		}
		return frame.KindList, unit, nil
	}
	switch typ.Kind() {
	case parquet.Double:
		return frame.KindFloat64, unit, nil
	case parquet.Float:
		return frame.KindFloat32, unit, nil
	case parquet.Int32, parquet.Int64, parquet.Boolean:
		return frame.KindInt64, unit, nil
	case parquet.ByteArray:
		return frame.KindString, unit, nil
	}
	return frame.KindInvalid, 0, &frame.UnsupportedTypeError{Type: typ.String() + " column " + name}
}

// ReadParquet decodes a parquet file into a Frame. Only flat schemas (plus
// repeated double leaves) are supported. The returned map holds the file's
// key/value metadata entries that are not internal to this package.
func ReadParquet(r io.ReaderAt, size int64) (*frame.Frame, map[string]string, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}
	schema := pf.Schema()
	paths := schema.Columns()
	cols := make([]*column, len(paths))
	for i, path := range paths {
		if len(path) != 1 {
			return nil, nil, &frame.UnsupportedTypeError{Type: "nested column " + strings.Join(path, ".")}
		}
		leaf, ok := schema.Lookup(path...)
		if !ok {
			return nil, nil, fmt.Errorf("parquet: column %q not in schema", path[0])
		}
		kind, unit, err := leafKind(pf, path[0], leaf)
		if err != nil {
			return nil, nil, err
		}
		cols[i] = &column{name: path[0], kind: kind, unit: unit}
	}

	buf := make([]parquet.Row, rowBatch)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for _, v := range row {
					cols[v.Column()].add(v)
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, nil, fmt.Errorf("read parquet rows: %w", err)
			}
			if n == 0 {
				break
			}
		}
		rows.Close()
	}

	byName := make(map[string]*frame.Series, len(cols))
	for _, c := range cols {
		byName[c.name] = c.series()
	}
	series := make([]*frame.Series, 0, len(cols))
	for _, name := range columnOrder(pf, cols) {
		series = append(series, byName[name])
	}
	f, err := frame.New(series...)
	if err != nil {
		return nil, nil, err
	}

	meta := make(map[string]string)
	for _, kv := range pf.Metadata().KeyValueMetadata {
		if kv.Key == MetaColumns || strings.HasPrefix(kv.Key, metaKindPrefix) {
			continue
		}
		meta[kv.Key] = kv.Value
	}
	return f, meta, nil
}

// columnOrder returns the frame column order recorded at write time, or leaf
// order when the metadata is absent or does not match the file's columns.
func columnOrder(pf *parquet.File, cols []*column) []string {
	leaves := make([]string, len(cols))
	present := make(map[string]bool, len(cols))
	for i, c := range cols {
		leaves[i] = c.name
		present[c.name] = true
	}
	s, ok := pf.Lookup(MetaColumns)
	if !ok || s == "" {
		return leaves
	}
	var order []string
	if err := json.Unmarshal([]byte(s), &order); err != nil || len(order) != len(leaves) {
		return leaves
	}
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if !present[name] || seen[name] {
			return leaves
		}
		seen[name] = true
	}
	return order
}

// ReadParquetFile opens and decodes path.
func ReadParquetFile(path string) (*frame.Frame, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	return ReadParquet(f, info.Size())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
