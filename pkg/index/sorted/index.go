// Package sorted provides an immutable, key-ordered index over float64 keys
// that keeps duplicate keys in their original order.
package sorted

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"

	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

// ErrInvalidKey is returned by Build when a record has a NaN key.
var ErrInvalidKey = errors.New("invalid key")

// Index holds records in ascending key order. It is built once and is safe
// for concurrent readers afterwards.
type Index[T any] struct {
	keys    []float64
	records []T
}

// Build orders records by key. Records with equal keys keep their relative
// input order.
func Build[T any](records []T, keyOf func(T) float64) (*Index[T], error) {
	order := make([]int, len(records))
	keys := make([]float64, len(records))
	for i, rec := range records {
		k := keyOf(rec)
		if math.IsNaN(k) {
			return nil, fmt.Errorf("%w: record %d has NaN key", ErrInvalidKey, i)
		}
		order[i] = i
		keys[i] = k
	}

	sort.SliceStable(order, func(a, b int) bool {
		return keys[order[a]] < keys[order[b]]
	})

	ix := &Index[T]{
		keys:    make([]float64, len(records)),
		records: make([]T, len(records)),
	}
	for pos, src := range order {
		ix.keys[pos] = keys[src]
		ix.records[pos] = records[src]
	}
	return ix, nil
}

// Len returns the number of indexed records.
func (ix *Index[T]) Len() int {
	return len(ix.keys)
}

// At returns the key and record stored at position i.
func (ix *Index[T]) At(i int) (float64, T) {
	return ix.keys[i], ix.records[i]
}

// LowerBound returns the smallest position whose key is >= key, or Len() if
// every key is smaller.
func (ix *Index[T]) LowerBound(key float64) int {
	return sort.SearchFloat64s(ix.keys, key)
}

// ScanFrom yields records from position start in ascending key order until
// classify reports Above. Leading Below records are skipped; a Below after a
// Within means the classifier is not monotonic and panics.
func (ix *Index[T]) ScanFrom(start int, classify func(key float64, rec T) tolerance.Class) iter.Seq[T] {
	return func(yield func(T) bool) {
		inside := false
		for i := max(start, 0); i < len(ix.keys); i++ {
			switch classify(ix.keys[i], ix.records[i]) {
			case tolerance.Above:
				return
			case tolerance.Below:
				if inside {
					panic(fmt.Sprintf("sorted: classification went below after within at key %v (position %d)", ix.keys[i], i))
				}
				continue
			}
			inside = true
			if !yield(ix.records[i]) {
				return
			}
		}
	}
}

// Range yields the records whose key lies in the closed window w.
func (ix *Index[T]) Range(w tolerance.Window) iter.Seq[T] {
	if w.Empty() {
		return func(func(T) bool) {}
	}
	return ix.ScanFrom(ix.LowerBound(w.Lo), func(key float64, _ T) tolerance.Class {
		return w.Classify(key)
	})
}
