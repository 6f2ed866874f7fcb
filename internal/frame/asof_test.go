package frame

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinAsofBackward(t *testing.T) {
	left := MustNew(
		NewTime("time", []time.Time{at(0), at(5), at(10), at(25)}),
		NewFloat64("x", []float64{1, 2, 3, 4}),
	)
	right := MustNew(
		NewTime("time", []time.Time{at(3), at(10), at(20)}),
		NewFloat64("y", []float64{30, 100, 200}),
		NewFloat64("x", []float64{-1, -2, -3}),
	)

	out, err := JoinAsof(left, right, "time")
	require.NoError(t, err)
	require.Equal(t, left.Len(), out.Len())
	assert.Equal(t, []string{"time", "x", "y", "x_right"}, out.Names())

	y, _ := out.Column("y")
	assert.True(t, y.IsNull(0), "no preceding state row")
	for i, want := range []float64{0, 30, 100, 200} {
		if i == 0 {
			continue
		}
		got, ok := y.Float(i)
		require.True(t, ok)
		assert.Equal(t, want, got, "row %d", i)
	}
}

func TestJoinAsofEmptyRight(t *testing.T) {
	left := MustNew(NewTime("time", []time.Time{at(0), at(1)}))
	right := MustNew(NewTime("time", nil), NewFloat64("y", nil))

	out, err := JoinAsof(left, right, "time")
	require.NoError(t, err)
	y, _ := out.Column("y")
	assert.Equal(t, 2, y.NullCount())
}

func TestJoinAsofSchemaErrors(t *testing.T) {
	good := MustNew(NewTime("time", []time.Time{at(0)}))
	noKey := MustNew(NewFloat64("y", []float64{1}))
	badKind := MustNew(NewFloat64("time", []float64{1}))

	_, err := JoinAsof(good, noKey, "time")
	assert.ErrorIs(t, err, ErrSchema)
	_, err = JoinAsof(badKind, good, "time")
	assert.ErrorIs(t, err, ErrSchema)
}

// Every matched right key is the greatest key not after the left key.
func TestJoinAsofRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		lt := randomTimes(rng, rng.Intn(40))
		rt := randomTimes(rng, rng.Intn(40))
		rkeys := make([]float64, len(rt))
		for i, ts := range rt {
			rkeys[i] = float64(ts.Sub(t0))
		}
		left := MustNew(NewTime("time", lt))
		right := MustNew(NewTime("time", rt), NewFloat64("rk", rkeys))

		out, err := JoinAsof(left, right, "time")
		require.NoError(t, err)
		require.Equal(t, len(lt), out.Len())

		rk, _ := out.Column("rk")
		for i, ts := range lt {
			want := -1.0
			for _, r := range rt {
				if !r.After(ts) {
					want = float64(r.Sub(t0))
				}
			}
			got, ok := rk.Float(i)
			if want < 0 {
				assert.False(t, ok)
				continue
			}
			assert.True(t, ok)
			assert.Equal(t, want, got)
		}
	}
}

func randomTimes(rng *rand.Rand, n int) []time.Time {
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = at(rng.Intn(100))
	}
	sort.Slice(ts, func(a, b int) bool { return ts[a].Before(ts[b]) })
	return ts
}
