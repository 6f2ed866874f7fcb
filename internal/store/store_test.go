package store

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ids-finder/internal/frame"
)

var base = time.Date(2016, 7, 4, 3, 0, 0, 0, time.UTC)

func sample() *frame.Frame {
	return frame.MustNew(
		frame.NewTime("time", []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}),
		frame.NewFloat64("d_star", []float64{0.5, math.NaN(), 2}).WithNulls([]bool{true, true, false}),
		frame.NewFloat32("b_mag", []float32{4.5, 5, 5.5}),
		frame.NewInt64("n", []int64{1, 2, 3}),
		frame.NewDuration("duration", []time.Duration{4 * time.Second, 500 * time.Millisecond, 0}),
		frame.NewString("sat", []string{"JNO", "STA", "THB_sw"}),
		frame.NewList("b_vec", [][]float64{{1, 2, 3}, nil, {4}}),
	)
}

func assertSameFrame(t *testing.T, want, got *frame.Frame) {
	t.Helper()
	require.Equal(t, want.Names(), got.Names())
	require.Equal(t, want.Len(), got.Len())
	for _, name := range want.Names() {
		a, _ := want.Column(name)
		b, _ := got.Column(name)
		assert.Equal(t, a.Kind(), b.Kind(), name)
		for i := 0; i < a.Len(); i++ {
			av, bv := a.Value(i), b.Value(i)
			if x, ok := av.(float64); ok && math.IsNaN(x) {
				y, ok := bv.(float64)
				assert.True(t, ok && math.IsNaN(y), "%s[%d]", name, i)
				continue
			}
			assert.Equal(t, av, bv, "%s[%d]", name, i)
		}
	}
}

func TestParquetRoundTrip(t *testing.T) {
	f := sample()
	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, f, map[string]string{"run_id": "abc"}))

	got, meta, err := ReadParquet(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assertSameFrame(t, f, got)
	assert.Equal(t, "abc", meta["run_id"])
	assert.Equal(t, "1", meta[MetaSchemaVersion])
}

func TestParquetColumnNamesWithCommas(t *testing.T) {
	f := frame.MustNew(
		frame.NewFloat64("z", []float64{1}),
		frame.NewList("b, vec", [][]float64{{1, 2}}),
		frame.NewString("a", []string{"x"}),
	)
	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, f, map[string]string{MetaColumns: "z,a"}))

	got, _, err := ReadParquet(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assertSameFrame(t, f, got)
}

func TestCSVRoundTrip(t *testing.T) {
	f := sample()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))

	got, stats, err := ReadCSV(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRowsRead)

	// CSV has no width information: float32 and int64 come back as float64.
	assert.Equal(t, f.Names(), got.Names())
	d, _ := got.Column("d_star")
	assert.True(t, d.IsNull(2))
	v, ok := d.Float(1)
	assert.True(t, ok)
	assert.True(t, math.IsNaN(v))

	tc, _ := got.Column("time")
	require.Equal(t, frame.KindTime, tc.Kind())
	ts, _ := tc.Time(1)
	assert.True(t, ts.Equal(base.Add(time.Second)))

	dur, _ := got.Column("duration")
	require.Equal(t, frame.KindDuration, dur.Kind())
	dv, _ := dur.Duration(1)
	assert.Equal(t, 500*time.Millisecond, dv)

	sat, _ := got.Column("sat")
	assert.Equal(t, frame.KindString, sat.Kind())

	vec, _ := got.Column("b_vec")
	require.Equal(t, frame.KindList, vec.Kind())
	assert.True(t, vec.IsNull(1))
	l, _ := vec.List(0)
	assert.Equal(t, []float64{1, 2, 3}, l)
}

func TestReadCSVSkipsMalformedRows(t *testing.T) {
	in := "time,d_star\n2020-01-01T00:00:00Z,1\n2020-01-01T00:00:01Z\n\n2020-01-01T00:00:02Z,3\n"
	f, stats, err := ReadCSV(strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, 1, stats.FailedRows)
}

func TestReadCSVEmpty(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(""), nil)
	require.Error(t, err)
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.parquet", "out.csv", "nested/out.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			f := frame.MustNew(
				frame.NewTime("time", []time.Time{base}),
				frame.NewFloat64("x", []float64{1.25}),
			)
			require.NoError(t, WriteFile(path, f, nil))
			got, err := ReadFile(path, nil)
			require.NoError(t, err)
			assertSameFrame(t, f, got)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatParquet, DetectFormat("/a/b/THB_2011.parquet"))
	assert.Equal(t, FormatCSVGzip, DetectFormat("cands.CSV.GZ"))
	assert.Equal(t, FormatCSV, DetectFormat("cands.csv"))
	assert.Equal(t, FormatUnknown, DetectFormat("cands.cdf"))

	_, err := ReadFile("cands.cdf", nil)
	require.Error(t, err)
}

type fakeConn struct {
	queries []string
	rows    []int
	fail    error
}

func (c *fakeConn) Do(_ context.Context, q ch.Query) error {
	if c.fail != nil {
		return c.fail
	}
	c.queries = append(c.queries, q.Body)
	if len(q.Input) > 0 {
		c.rows = append(c.rows, q.Input[0].Data.Rows())
	}
	return nil
}

func TestClickHouseWriter(t *testing.T) {
	conn := &fakeConn{}
	w := NewClickHouseWriter(conn, "ids.catalog", "sat", "time")
	w.batchSize = 2

	f := sample()
	require.NoError(t, w.CreateTable(context.Background(), f))
	require.Len(t, conn.queries, 1)
	ddl := conn.queries[0]
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS ids.catalog")
	assert.Contains(t, ddl, "`time` DateTime64(9)")
	assert.Contains(t, ddl, "`sat` String")
	assert.Contains(t, ddl, "`d_star` Nullable(Float64)")
	assert.Contains(t, ddl, "`b_vec` Array(Float64)")
	assert.Contains(t, ddl, "ORDER BY (sat, time)")

	n, err := w.Insert(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{2, 1}, conn.rows)
	assert.True(t, strings.HasPrefix(conn.queries[1], "INSERT INTO ids.catalog (`time`, `d_star`"))
}

func TestClickHouseWriterErrors(t *testing.T) {
	boom := errors.New("boom")
	w := NewClickHouseWriter(&fakeConn{fail: boom}, "ids.catalog")
	_, err := w.Insert(context.Background(), sample())
	assert.ErrorIs(t, err, boom)

	nullKey := frame.MustNew(frame.NewString("sat", []string{"x"}).WithNulls([]bool{false}))
	_, err = NewClickHouseWriter(&fakeConn{}, "t", "sat").Insert(context.Background(), nullKey)
	assert.ErrorIs(t, err, frame.ErrUnsortable)
}
