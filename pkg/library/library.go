// Package library indexes library spectra by precursor (m/z, charge) and
// retrieves and ranks candidates for query spectra.
//
// A Library is built once from an immutable set of spectra and is read-only
// afterwards; any number of goroutines may query it. Spectra handed to Build
// belong to the library and must not be modified by the caller.
package library

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/index/lanes"
	"github.com/ChrisMcGann/MassKey/pkg/retrieve"
	"github.com/ChrisMcGann/MassKey/pkg/topk"
)

// ErrInvalidPrecursor is returned when a spectrum cannot be keyed by precursor.
var ErrInvalidPrecursor = errors.New("invalid precursor")

// SimilarityFunc scores a library candidate against a query spectrum. It
// must be pure; it is called at most once per candidate per query.
type SimilarityFunc func(candidate, query *core.Spectrum) float64

// Prepare binds f to query.
func (f SimilarityFunc) Prepare(query *core.Spectrum) func(candidate *core.Spectrum) float64 {
	return func(candidate *core.Spectrum) float64 { return f(candidate, query) }
}

// Similarity scores candidates against one query at a time. Prepare is
// called once per query, so per-query work such as binning the query peaks
// is done once and not per candidate.
type Similarity interface {
	Prepare(query *core.Spectrum) func(candidate *core.Spectrum) float64
}

// Match is a ranked library candidate.
type Match struct {
	Spectrum *core.Spectrum
	Score    float64
}

// Library is the precursor index over a spectral library. Spectra sharing a
// precursor key are kept in separate lanes.
type Library struct {
	index *lanes.Index[core.Precursor, *core.Spectrum]
}

// Build indexes spectra in input order. Every spectrum needs a positive
// charge and a finite positive precursor m/z.
func Build(spectra []*core.Spectrum) (*Library, error) {
	ix := lanes.New[core.Precursor, *core.Spectrum](core.Precursor.Less)
	for i, spec := range spectra {
		if spec == nil {
			return nil, fmt.Errorf("%w: spectrum %d is nil", ErrInvalidPrecursor, i)
		}
		if err := spec.ValidatePrecursor(); err != nil {
			return nil, fmt.Errorf("%w: spectrum %d (%s): %v", ErrInvalidPrecursor, i, spec.Name(), err)
		}
		ix.Insert(spec.Precursor(), spec)
	}
	return &Library{index: ix}, nil
}

// Len returns the number of indexed spectra.
func (l *Library) Len() int {
	return l.index.Len()
}

// Lanes returns the number of lanes, the largest number of spectra sharing
// one precursor key.
func (l *Library) Lanes() int {
	return l.index.Lanes()
}

// Query calls visit for every spectrum at q's charge whose precursor m/z
// falls in a window of strategy, and returns the number of calls.
func (l *Library) Query(q core.Precursor, strategy retrieve.Strategy, visit func(*core.Spectrum)) int {
	return retrieve.New(l.index, strategy).Query(q, visit)
}

// QueryTopK scores every candidate of Query with score and returns the k
// best, highest score first.
func (l *Library) QueryTopK(q core.Precursor, strategy retrieve.Strategy, score func(*core.Spectrum) float64, k int) ([]Match, error) {
	sel, err := topk.New[*core.Spectrum](k)
	if err != nil {
		return nil, err
	}
	l.Query(q, strategy, func(candidate *core.Spectrum) {
		sel.Consider(candidate, score(candidate))
	})
	return toMatches(sel.Drain()), nil
}

// ForEach calls fn for every indexed spectrum, lane by lane in ascending key
// order, until fn returns false.
func (l *Library) ForEach(fn func(*core.Spectrum) bool) {
	l.index.ForEachLane(func(_ int, lane *lanes.Lane[core.Precursor, *core.Spectrum]) bool {
		cont := true
		lane.Ascend(func(_ core.Precursor, spec *core.Spectrum) bool {
			cont = fn(spec)
			return cont
		})
		return cont
	})
}

func toMatches(cs []topk.Candidate[*core.Spectrum]) []Match {
	out := make([]Match, len(cs))
	for i, c := range cs {
		out[i] = Match{Spectrum: c.Record, Score: c.Score}
	}
	return out
}
