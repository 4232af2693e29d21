// Package retrieve runs precursor-tolerant range scans over a lane index keyed
// by core.Precursor.
//
// A Strategy turns the query m/z into one or more closed m/z windows. For each
// window the retriever fixes the charge at the query's charge, so the window
// becomes the key range [(charge, lo), (charge, hi)], and scans that range in
// every lane. Spectra at another charge are never visited.
//
// Queries never write to the index. De-duplication state for multi-window
// strategies is allocated per call, so one Retriever may serve any number of
// concurrent queries. Very wide tolerances make queries proportionally slower;
// bounding them is up to the caller.
package retrieve

import (
	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/index/lanes"
	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

// Retriever queries a lane index through a fixed window strategy.
type Retriever[T any] struct {
	index    *lanes.Index[core.Precursor, T]
	strategy Strategy
}

// New returns a Retriever over ix. strategy must not be nil.
func New[T any](ix *lanes.Index[core.Precursor, T], strategy Strategy) *Retriever[T] {
	return &Retriever[T]{index: ix, strategy: strategy}
}

// Strategy returns the window strategy of the retriever.
func (r *Retriever[T]) Strategy() Strategy {
	return r.strategy
}

// slot identifies one stored record: keys are unique within a lane.
type slot struct {
	lane int
	key  core.Precursor
}

// Query calls visit for every record whose charge equals q.Charge and whose
// m/z lies in one of the strategy's windows, and returns the number of calls.
//
// Within a lane records are visited in ascending m/z order. No order is
// guaranteed across lanes or across windows. When the strategy issues more
// than one window, a record matched by several windows is visited once.
func (r *Retriever[T]) Query(q core.Precursor, visit func(T)) int {
	windows := r.strategy.Windows(make([]tolerance.Window, 0, 4), q.MZ)

	var seen map[slot]struct{}
	if len(windows) > 1 {
		seen = make(map[slot]struct{})
	}

	visited := 0
	for _, w := range windows {
		if w.Empty() {
			continue
		}
		lo := core.Precursor{MZ: w.Lo, Charge: q.Charge}
		hi := core.Precursor{MZ: w.Hi, Charge: q.Charge}

		r.index.ForEachLane(func(lane int, l *lanes.Lane[core.Precursor, T]) bool {
			l.Range(lo, hi, func(key core.Precursor, rec T) bool {
				if seen != nil {
					s := slot{lane: lane, key: key}
					if _, dup := seen[s]; dup {
						return true
					}
					seen[s] = struct{}{}
				}
				visited++
				visit(rec)
				return true
			})
			return true
		})
	}
	return visited
}

// Collect returns every record Query would visit.
func (r *Retriever[T]) Collect(q core.Precursor) []T {
	var out []T
	r.Query(q, func(rec T) {
		out = append(out, rec)
	})
	return out
}
