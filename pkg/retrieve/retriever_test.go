package retrieve

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/index/lanes"
	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

type entry struct {
	id string
	p  core.Precursor
}

func buildIndex(entries ...entry) *lanes.Index[core.Precursor, *entry] {
	recs := make([]*entry, len(entries))
	for i := range entries {
		recs[i] = &entries[i]
	}
	return lanes.Build(recs, func(e *entry) core.Precursor { return e.p }, core.Precursor.Less)
}

func ids(r *Retriever[*entry], q core.Precursor) []string {
	var out []string
	r.Query(q, func(e *entry) { out = append(out, e.id) })
	sort.Strings(out)
	return out
}

func absolute(t *testing.T, d float64) tolerance.Tolerance {
	t.Helper()
	tol, err := tolerance.NewAbsolute(d)
	require.NoError(t, err)
	return tol
}

func TestSymmetricQuery(t *testing.T) {
	ix := buildIndex(
		entry{"a", core.Precursor{MZ: 500.00, Charge: 2}},
		entry{"b", core.Precursor{MZ: 500.015, Charge: 2}},
		entry{"c", core.Precursor{MZ: 500.025, Charge: 2}},
		entry{"d", core.Precursor{MZ: 500.01, Charge: 3}},
		entry{"e", core.Precursor{MZ: 499.985, Charge: 2}},
	)
	r := New(ix, NewSymmetric(absolute(t, 0.02)))

	assert.Equal(t, []string{"a", "b", "e"}, ids(r, core.Precursor{MZ: 500.00, Charge: 2}))
	assert.Equal(t, []string{"d"}, ids(r, core.Precursor{MZ: 500.00, Charge: 3}))
	assert.Empty(t, ids(r, core.Precursor{MZ: 500.00, Charge: 4}))
	assert.Empty(t, ids(r, core.Precursor{MZ: 700.00, Charge: 2}))
}

func TestChargeIsPartOfTheKey(t *testing.T) {
	// Identical m/z at three charges: only the query charge is visited.
	ix := buildIndex(
		entry{"z1", core.Precursor{MZ: 600, Charge: 1}},
		entry{"z2", core.Precursor{MZ: 600, Charge: 2}},
		entry{"z3", core.Precursor{MZ: 600, Charge: 3}},
	)
	r := New(ix, NewSymmetric(absolute(t, 1000)))

	assert.Equal(t, []string{"z2"}, ids(r, core.Precursor{MZ: 600, Charge: 2}))
}

func TestDuplicateKeysAcrossLanes(t *testing.T) {
	ix := buildIndex(
		entry{"a", core.Precursor{MZ: 450.5, Charge: 2}},
		entry{"b", core.Precursor{MZ: 450.5, Charge: 2}},
		entry{"c", core.Precursor{MZ: 450.5, Charge: 2}},
		entry{"d", core.Precursor{MZ: 450.6, Charge: 2}},
	)
	require.Equal(t, 3, ix.Lanes())

	r := New(ix, NewSymmetric(absolute(t, 0)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(r, core.Precursor{MZ: 450.5, Charge: 2}))
}

func TestFixedOffsetQuery(t *testing.T) {
	ix := buildIndex(
		entry{"below", core.Precursor{MZ: 999.4, Charge: 2}},
		entry{"lo-edge", core.Precursor{MZ: 999.5, Charge: 2}},
		entry{"mid", core.Precursor{MZ: 1001.0, Charge: 2}},
		entry{"hi-edge", core.Precursor{MZ: 1002.5, Charge: 2}},
		entry{"above", core.Precursor{MZ: 1002.6, Charge: 2}},
	)
	s, err := NewFixedOffset(-0.5, 2.5)
	require.NoError(t, err)
	r := New(ix, s)

	assert.Equal(t, []string{"hi-edge", "lo-edge", "mid"}, ids(r, core.Precursor{MZ: 1000, Charge: 2}))

	lower, upper := s.Bounds()
	assert.Equal(t, -0.5, lower)
	assert.Equal(t, 2.5, upper)
}

func TestFixedOffsetRejectsInvertedBounds(t *testing.T) {
	_, err := NewFixedOffset(2, 1)
	assert.ErrorIs(t, err, tolerance.ErrInvalidTolerance)
}

func TestDiscreteOffsetsSingleMatch(t *testing.T) {
	ix := buildIndex(entry{"spec", core.Precursor{MZ: 1000.0, Charge: 2}})
	s, err := NewDiscreteOffsets([]float64{0, 1.0}, absolute(t, 0.01))
	require.NoError(t, err)
	r := New(ix, s)

	// Only the +1.0 window (999.99..1000.01) covers the spectrum.
	got := ids(r, core.Precursor{MZ: 999.0, Charge: 2})
	assert.Equal(t, []string{"spec"}, got)
}

func TestDiscreteOffsetsDeduplicates(t *testing.T) {
	ix := buildIndex(
		entry{"shared", core.Precursor{MZ: 1000.5, Charge: 2}},
		entry{"twin", core.Precursor{MZ: 1000.5, Charge: 2}},
		entry{"only-first", core.Precursor{MZ: 1000.1, Charge: 2}},
	)
	// Windows [999.7,1000.7] and [1000.3,1001.3] overlap on 1000.5.
	s, err := NewDiscreteOffsets([]float64{0.8, 0.2, 0.2}, absolute(t, 0.5))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.8}, s.Offsets())

	r := New(ix, s)
	counts := map[string]int{}
	n := r.Query(core.Precursor{MZ: 1000.0, Charge: 2}, func(e *entry) { counts[e.id]++ })

	assert.Equal(t, map[string]int{"shared": 1, "twin": 1, "only-first": 1}, counts)
	assert.Equal(t, 3, n)
}

func TestDiscreteOffsetsValidation(t *testing.T) {
	_, err := NewDiscreteOffsets(nil, absolute(t, 0.1))
	assert.ErrorIs(t, err, ErrNoOffsets)
}

func TestCollectAndConcurrentQueries(t *testing.T) {
	var entries []entry
	for i := 0; i < 200; i++ {
		entries = append(entries, entry{id: "x", p: core.Precursor{MZ: 400 + float64(i%50)*0.1, Charge: 2 + i%2}})
	}
	ix := buildIndex(entries...)
	s, err := NewDiscreteOffsets([]float64{0, core.IsotopeSpacing / 2}, absolute(t, 0.3))
	require.NoError(t, err)
	r := New(ix, s)

	q := core.Precursor{MZ: 402, Charge: 2}
	want := len(r.Collect(q))
	require.NotZero(t, want)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.Len(t, r.Collect(q), want)
			}
		}()
	}
	wg.Wait()
}
