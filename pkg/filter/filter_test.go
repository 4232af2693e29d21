package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MassKey/pkg/core"
)

func mzs(peaks []core.Peak) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = p.MZ
	}
	return out
}

func sample() *core.Spectrum {
	return &core.Spectrum{
		Sequence: "PEPTIDEK",
		Peaks: []core.Peak{
			{MZ: 100, Intensity: 5, Annotation: "b1"},
			{MZ: 200, Intensity: 50, Annotation: "y2"},
			{MZ: 300, Intensity: 100, Annotation: "b3^2"},
			{MZ: 400, Intensity: 50, Annotation: "y4"},
			{MZ: 500, Intensity: 0, Annotation: "IM"},
			{MZ: 600, Intensity: 20},
		},
	}
}

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []float64
	}{
		{"no filters", Config{}, []float64{100, 200, 300, 400, 500, 600}},
		{"ion types", Config{IonTypes: []string{"y"}}, []float64{200, 400}},
		{"intensity cutoff", Config{IntensityCutoff: 20}, []float64{200, 300, 400, 600}},
		{"top n", Config{TopN: 3}, []float64{200, 300, 400}},
		{"top n larger than spectrum", Config{TopN: 10}, []float64{100, 200, 300, 400, 500, 600}},
		{"combined", Config{IonTypes: []string{"b", "y"}, IntensityCutoff: 10, TopN: 2}, []float64{200, 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := sample()
			require.NoError(t, tt.cfg.Apply(spec))
			assert.Equal(t, tt.want, mzs(spec.Peaks))
			assert.True(t, spec.ArePeaksSorted())
		})
	}
}

func TestTopPeaksTiesKeepFirst(t *testing.T) {
	spec := sample()
	require.NoError(t, TopPeaks(spec, 2))
	// 200 and 400 tie at 50; 200 comes first.
	assert.Equal(t, []float64{300, 200}, mzs(spec.Peaks))
}

func TestEnabled(t *testing.T) {
	assert.False(t, (&Config{}).Enabled())
	assert.False(t, (&Config{OldModMass: 229.162932}).Enabled())
	assert.True(t, (&Config{TopN: 1}).Enabled())
	assert.True(t, (&Config{OldModMass: 229.162932, NewModMass: 304.207146}).Enabled())
}

func TestAdjustFragmentMasses(t *testing.T) {
	spec := &core.Spectrum{
		Sequence: "PEPTIDEK",
		// TMT on the N-terminus and on the C-terminal lysine.
		Modifications: []core.Modification{
			{Mass: 229.162932, Position: -1},
			{Mass: 229.162932, Position: 7},
			{Mass: 15.994915, Position: 2},
		},
		Peaks: []core.Peak{
			{MZ: 100, Annotation: "b2"},
			{MZ: 200, Annotation: "y1"},
			{MZ: 300, Annotation: "b7^2"},
			{MZ: 400, Annotation: "y7"},
			{MZ: 500, Annotation: "p"},
		},
	}
	cfg := Config{OldModMass: 229.162932, NewModMass: 304.207146}
	require.NoError(t, cfg.Apply(spec))

	delta := 304.207146 - 229.162932
	got := mzs(spec.Peaks)
	assert.InDelta(t, 100+delta, got[0], 1e-9, "b2 holds the N-terminal tag")
	assert.InDelta(t, 200+delta, got[1], 1e-9, "y1 holds the lysine tag")
	assert.InDelta(t, 300+delta/2, got[2], 1e-9, "b7 holds only the N-terminal tag")
	assert.InDelta(t, 400+delta, got[3], 1e-9, "y7 holds only the lysine tag")
	assert.Equal(t, 500.0, got[4])
}

func TestParseIonAnnotation(t *testing.T) {
	tests := []struct {
		in   string
		want ionAnnotation
		ok   bool
	}{
		{"y3", ionAnnotation{"y", 3, 1}, true},
		{"b2^2", ionAnnotation{"b", 2, 2}, true},
		{"y10^3-17", ionAnnotation{"y", 10, 3}, true},
		{"IM", ionAnnotation{}, false},
		{"", ionAnnotation{}, false},
		{"b2^0", ionAnnotation{}, false},
	}
	for _, tt := range tests {
		got, ok := parseIonAnnotation(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRemoveZeroIntensityPeaks(t *testing.T) {
	spec := sample()
	RemoveZeroIntensityPeaks(spec)
	assert.Equal(t, []float64{100, 200, 300, 400, 600}, mzs(spec.Peaks))
}
