// Package similarity scores library candidates against query spectra.
package similarity

import (
	"math"

	"github.com/ChrisMcGann/MassKey/pkg/core"
)

// DefaultBinWidth is the m/z bin width used when none is configured.
const DefaultBinWidth = 1.0005

// Func scores candidate against query. Higher is more similar.
type Func = func(candidate, query *core.Spectrum) float64

// Binned is a spectrum reduced to square-root intensities summed per m/z bin.
type Binned struct {
	bins map[int]float64
	norm float64 // squared
}

// Bin bins the peaks of s. Peaks without a positive finite m/z or a positive
// intensity are skipped.
func Bin(s *core.Spectrum, width float64) Binned {
	b := Binned{bins: make(map[int]float64, len(s.Peaks))}
	for _, p := range s.Peaks {
		if !(p.Intensity > 0) || !(p.MZ > 0) || math.IsInf(p.MZ, 1) || math.IsInf(p.Intensity, 1) {
			continue
		}
		b.bins[int(p.MZ/width)] += math.Sqrt(p.Intensity)
	}
	for _, x := range b.bins {
		b.norm += x * x
	}
	return b
}

// Cosine returns the normalized dot product of a and b, which must be binned
// with the same width.
func (a Binned) Cosine(b Binned) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	if len(a.bins) > len(b.bins) {
		a, b = b, a
	}
	dot := 0.0
	for k, v := range a.bins {
		dot += v * b.bins[k]
	}
	return min(dot/math.Sqrt(a.norm*b.norm), 1)
}

// CosineScorer scores candidates by cosine against a query binned once.
type CosineScorer struct {
	width float64
}

// NewCosine returns a CosineScorer. A non-positive binWidth selects
// DefaultBinWidth.
func NewCosine(binWidth float64) CosineScorer {
	return CosineScorer{width: binWidthOrDefault(binWidth)}
}

// Prepare bins query and returns its scoring function.
func (c CosineScorer) Prepare(query *core.Spectrum) func(candidate *core.Spectrum) float64 {
	q := Bin(query, c.width)
	return func(candidate *core.Spectrum) float64 {
		return Bin(candidate, c.width).Cosine(q)
	}
}

// Cosine returns the normalized dot product of the binned, square-root
// transformed peak intensities of two spectra. Scores lie in [0, 1]; a
// spectrum without positive intensity scores 0 against anything.
// A non-positive binWidth selects DefaultBinWidth.
func Cosine(binWidth float64) Func {
	width := binWidthOrDefault(binWidth)
	return func(candidate, query *core.Spectrum) float64 {
		return Bin(candidate, width).Cosine(Bin(query, width))
	}
}

func binWidthOrDefault(w float64) float64 {
	if !(w > 0) || math.IsInf(w, 1) {
		return DefaultBinWidth
	}
	return w
}
