package sorted

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

type rec struct {
	name string
	key  float64
}

func keyOf(r rec) float64 { return r.key }

func names(seq func(func(rec) bool)) []string {
	var out []string
	for r := range seq {
		out = append(out, r.name)
	}
	return out
}

func TestBuildStableOrder(t *testing.T) {
	ix, err := Build([]rec{
		{"c", 3}, {"a1", 1}, {"b", 2}, {"a2", 1}, {"a3", 1}, {"neg", -1},
	}, keyOf)
	require.NoError(t, err)
	require.Equal(t, 6, ix.Len())

	var got []string
	for i := 0; i < ix.Len(); i++ {
		_, r := ix.At(i)
		got = append(got, r.name)
	}
	assert.Equal(t, []string{"neg", "a1", "a2", "a3", "b", "c"}, got)
}

func TestBuildRejectsNaN(t *testing.T) {
	_, err := Build([]rec{{"ok", 1}, {"bad", math.NaN()}}, keyOf)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLowerBound(t *testing.T) {
	ix, err := Build([]rec{{"a", 1}, {"b", 2}, {"b2", 2}, {"c", 4}}, keyOf)
	require.NoError(t, err)

	tests := []struct {
		key  float64
		want int
	}{
		{0, 0},
		{1, 0},
		{1.5, 1},
		{2, 1},
		{3, 3},
		{4, 3},
		{5, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ix.LowerBound(tt.key), "key %v", tt.key)
	}
}

func TestScanFromStopsAtAbove(t *testing.T) {
	ix, err := Build([]rec{{"a", 1}, {"b", 2}, {"c", 3}, {"d", 4}, {"e", 5}}, keyOf)
	require.NoError(t, err)

	w := tolerance.Window{Lo: 2, Hi: 4}
	calls := 0
	seq := ix.ScanFrom(ix.LowerBound(w.Lo), func(key float64, _ rec) tolerance.Class {
		calls++
		return w.Classify(key)
	})

	assert.Equal(t, []string{"b", "c", "d"}, names(seq))
	assert.Equal(t, 4, calls, "scan must stop at the first record above the window")
}

func TestScanFromEarlyBreak(t *testing.T) {
	ix, err := Build([]rec{{"a", 1}, {"b", 2}, {"c", 3}}, keyOf)
	require.NoError(t, err)

	var got []string
	for r := range ix.Range(tolerance.Window{Lo: 0, Hi: 10}) {
		got = append(got, r.name)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRangeEmpty(t *testing.T) {
	ix, err := Build([]rec{{"a", 1}, {"b", 2}}, keyOf)
	require.NoError(t, err)

	assert.Empty(t, names(ix.Range(tolerance.Window{Lo: 5, Hi: 6})))
	assert.Empty(t, names(ix.Range(tolerance.Window{Lo: 1.2, Hi: 1.8})))
	assert.Empty(t, names(ix.Range(tolerance.Window{Lo: 3, Hi: 1})))

	empty, err := Build[rec](nil, keyOf)
	require.NoError(t, err)
	assert.Empty(t, names(empty.Range(tolerance.Window{Lo: 0, Hi: 100})))
}

func TestRangeKeepsDuplicates(t *testing.T) {
	ix, err := Build([]rec{{"x", 5}, {"y", 5}, {"z", 5}, {"w", 6}}, keyOf)
	require.NoError(t, err)

	got := names(ix.Range(tolerance.Window{Lo: 5, Hi: 5}))
	assert.Equal(t, []string{"x", "y", "z"}, got)
}

func TestScanFromPanicsOnNonMonotonicClassifier(t *testing.T) {
	ix, err := Build([]rec{{"a", 1}, {"b", 2}, {"c", 3}}, keyOf)
	require.NoError(t, err)

	broken := func(key float64, _ rec) tolerance.Class {
		if key == 2 {
			return tolerance.Below
		}
		return tolerance.Within
	}

	assert.Panics(t, func() {
		_ = slices.Collect(ix.ScanFrom(0, broken))
	})
}
