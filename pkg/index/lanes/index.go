// Package lanes implements an ordered multimap as a small vector of
// uniquely-keyed B-trees ("lanes").
//
// Ordered range structures want unique keys, while mass-keyed data routinely
// holds several records under an equal key. Insert places a record in the
// first lane that does not yet hold an equal key and opens a new lane when
// every lane collides, so the number of lanes equals the largest multiplicity
// of any key. A range query visits every lane.
//
// Lane assignment depends on insertion order: the same records inserted in a
// different order may land in different lanes.
//
// An Index is built single-threaded and must not be written while it is
// being read. Once built, any number of goroutines may query it.
package lanes

import (
	"github.com/google/btree"
)

// DefaultDegree is the B-tree degree used by New.
const DefaultDegree = 16

// Entry is a key and the record stored under it.
type Entry[K, T any] struct {
	Key    K
	Record T
}

// LessFunc orders keys. Two keys are equal when neither is less than the other.
type LessFunc[K any] func(a, b K) bool

// Lane is one uniquely-keyed ordered map.
type Lane[K, T any] struct {
	tree *btree.BTreeG[Entry[K, T]]
	less LessFunc[K]
}

// Len returns the number of entries in the lane.
func (l *Lane[K, T]) Len() int {
	return l.tree.Len()
}

// Has reports whether the lane holds an entry with a key equal to key.
func (l *Lane[K, T]) Has(key K) bool {
	return l.tree.Has(Entry[K, T]{Key: key})
}

// Range calls fn for every entry with lo <= key <= hi in ascending key order
// until fn returns false.
func (l *Lane[K, T]) Range(lo, hi K, fn func(key K, rec T) bool) {
	if l.less(hi, lo) {
		return
	}
	l.tree.AscendGreaterOrEqual(Entry[K, T]{Key: lo}, func(e Entry[K, T]) bool {
		if l.less(hi, e.Key) {
			return false
		}
		return fn(e.Key, e.Record)
	})
}

// Ascend calls fn for every entry in ascending key order until fn returns false.
func (l *Lane[K, T]) Ascend(fn func(key K, rec T) bool) {
	l.tree.Ascend(func(e Entry[K, T]) bool {
		return fn(e.Key, e.Record)
	})
}

// Index is a collection of lanes.
type Index[K, T any] struct {
	less   LessFunc[K]
	degree int
	lanes  []*Lane[K, T]
	size   int
}

// Option configures an Index.
type Option func(*options)

type options struct {
	degree int
}

// WithDegree sets the B-tree degree of every lane.
func WithDegree(degree int) Option {
	return func(o *options) {
		if degree >= 2 {
			o.degree = degree
		}
	}
}

// New returns an empty index ordered by less.
func New[K, T any](less LessFunc[K], opts ...Option) *Index[K, T] {
	o := options{degree: DefaultDegree}
	for _, fn := range opts {
		fn(&o)
	}
	return &Index[K, T]{less: less, degree: o.degree}
}

// Build inserts records in input order.
func Build[K, T any](records []T, keyOf func(T) K, less LessFunc[K], opts ...Option) *Index[K, T] {
	ix := New[K, T](less, opts...)
	for _, rec := range records {
		ix.Insert(keyOf(rec), rec)
	}
	return ix
}

// Insert stores rec in the first lane without an entry equal to key and
// returns the lane number it landed in.
func (ix *Index[K, T]) Insert(key K, rec T) int {
	e := Entry[K, T]{Key: key, Record: rec}
	for i, lane := range ix.lanes {
		if lane.tree.Has(e) {
			continue
		}
		lane.tree.ReplaceOrInsert(e)
		ix.size++
		return i
	}

	entryLess := func(a, b Entry[K, T]) bool { return ix.less(a.Key, b.Key) }
	lane := &Lane[K, T]{
		tree: btree.NewG[Entry[K, T]](ix.degree, entryLess),
		less: ix.less,
	}
	lane.tree.ReplaceOrInsert(e)
	ix.lanes = append(ix.lanes, lane)
	ix.size++
	return len(ix.lanes) - 1
}

// Len returns the total number of records across all lanes.
func (ix *Index[K, T]) Len() int {
	return ix.size
}

// Lanes returns the number of lanes.
func (ix *Index[K, T]) Lanes() int {
	return len(ix.lanes)
}

// Lane returns lane i.
func (ix *Index[K, T]) Lane(i int) *Lane[K, T] {
	return ix.lanes[i]
}

// ForEachLane calls fn with every lane in creation order until fn returns false.
func (ix *Index[K, T]) ForEachLane(fn func(i int, lane *Lane[K, T]) bool) {
	for i, lane := range ix.lanes {
		if !fn(i, lane) {
			return
		}
	}
}

// Count returns the number of records stored under a key equal to key.
func (ix *Index[K, T]) Count(key K) int {
	n := 0
	for _, lane := range ix.lanes {
		if lane.Has(key) {
			n++
		}
	}
	return n
}
