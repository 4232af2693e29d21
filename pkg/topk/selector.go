// Package topk keeps the K highest-scoring candidates of a stream in a
// bounded min-heap.
package topk

import (
	"container/heap"
	"errors"
	"math"
	"sort"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// Candidate is a record and its score.
type Candidate[T any] struct {
	Record T
	Score  float64
	seq    uint64 // arrival order, breaks score ties
}

// Selector retains the k best candidates seen so far. Equal scores are
// ranked by arrival: the earlier candidate wins. A Selector is owned by one
// query and is not safe for concurrent use.
type Selector[T any] struct {
	k    int
	h    minHeap[T]
	next uint64
}

// Compile time check to ensure minHeap satisfies the heap interface.
var _ heap.Interface = (*minHeap[int])(nil)

// New returns a Selector of capacity k.
func New[T any](k int) (*Selector[T], error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	return &Selector[T]{k: k, h: make(minHeap[T], 0, min(k, 1024))}, nil
}

// K returns the capacity of the selector.
func (s *Selector[T]) K() int { return s.k }

// Len returns the number of retained candidates.
func (s *Selector[T]) Len() int { return len(s.h) }

// Consider offers a candidate. It is kept if the selector is not full or if
// score is strictly greater than the current minimum, which it then
// replaces. NaN scores are ignored. Consider reports whether the candidate was
// kept.
func (s *Selector[T]) Consider(rec T, score float64) bool {
	if math.IsNaN(score) {
		return false
	}
	c := Candidate[T]{Record: rec, Score: score, seq: s.next}
	s.next++

	if len(s.h) < s.k {
		heap.Push(&s.h, c)
		return true
	}
	if score <= s.h[0].Score {
		return false
	}
	s.h[0] = c
	heap.Fix(&s.h, 0)
	return true
}

// Threshold returns the score a candidate must exceed to enter a full
// selector, or false while the selector still has room.
func (s *Selector[T]) Threshold() (float64, bool) {
	if len(s.h) < s.k {
		return 0, false
	}
	return s.h[0].Score, true
}

// Drain returns the retained candidates by descending score, earlier
// arrivals first among equal scores, and empties the selector.
func (s *Selector[T]) Drain() []Candidate[T] {
	out := []Candidate[T](s.h)
	s.h = nil
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

// better reports whether a ranks above b.
func better[T any](a, b Candidate[T]) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.seq < b.seq
}

// minHeap keeps the worst retained candidate at the root.
type minHeap[T any] []Candidate[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return better(h[j], h[i]) }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap[T]) Push(x any) {
	*h = append(*h, x.(Candidate[T]))
}

func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = Candidate[T]{}
	*h = old[:n-1]
	return item
}
