package library

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/retrieve"
	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
	"github.com/ChrisMcGann/MassKey/pkg/topk"
)

// Observer receives one call per completed query.
type Observer interface {
	ObserveQuery(strategy string, candidates int, elapsed time.Duration)
}

// Searcher is a Library bound to one window strategy.
type Searcher struct {
	lib      *Library
	r        *retrieve.Retriever[*core.Spectrum]
	observer Observer
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithObserver reports every query to o.
func WithObserver(o Observer) SearcherOption {
	return func(s *Searcher) {
		s.observer = o
	}
}

// NewSearcher binds lib to strategy.
func NewSearcher(lib *Library, strategy retrieve.Strategy, opts ...SearcherOption) *Searcher {
	s := &Searcher{lib: lib, r: retrieve.New(lib.index, strategy)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDefault returns a searcher with one symmetric tolerance window around
// the query m/z.
func NewDefault(lib *Library, tol tolerance.Tolerance, opts ...SearcherOption) *Searcher {
	return NewSearcher(lib, retrieve.NewSymmetric(tol), opts...)
}

// NewInterval returns a searcher over the window [mz+lower, mz+upper].
func NewInterval(lib *Library, lower, upper float64, opts ...SearcherOption) (*Searcher, error) {
	s, err := retrieve.NewFixedOffset(lower, upper)
	if err != nil {
		return nil, err
	}
	return NewSearcher(lib, s, opts...), nil
}

// NewDiscrete returns a searcher with one tolerance window per offset.
func NewDiscrete(lib *Library, offsets []float64, tol tolerance.Tolerance, opts ...SearcherOption) (*Searcher, error) {
	s, err := retrieve.NewDiscreteOffsets(offsets, tol)
	if err != nil {
		return nil, err
	}
	return NewSearcher(lib, s, opts...), nil
}

// Library returns the searched library.
func (s *Searcher) Library() *Library { return s.lib }

// Strategy returns the window strategy of the searcher.
func (s *Searcher) Strategy() retrieve.Strategy { return s.r.Strategy() }

// Query calls visit for every candidate of q and returns the number of calls.
func (s *Searcher) Query(q core.Precursor, visit func(*core.Spectrum)) int {
	start := time.Now()
	n := s.r.Query(q, visit)
	if s.observer != nil {
		s.observer.ObserveQuery(s.r.Strategy().Name(), n, time.Since(start))
	}
	return n
}

// Search ranks the candidates of query by sim and returns the k best.
func (s *Searcher) Search(query *core.Spectrum, sim Similarity, k int) ([]Match, error) {
	if query == nil {
		return nil, fmt.Errorf("%w: query is nil", ErrInvalidPrecursor)
	}
	if err := query.ValidatePrecursor(); err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrInvalidPrecursor, query.Name(), err)
	}
	sel, err := topk.New[*core.Spectrum](k)
	if err != nil {
		return nil, err
	}
	score := sim.Prepare(query)
	s.Query(query.Precursor(), func(candidate *core.Spectrum) {
		sel.Consider(candidate, score(candidate))
	})
	return toMatches(sel.Drain()), nil
}

// Result holds the matches of one query of SearchAll.
type Result struct {
	Query   *core.Spectrum
	Matches []Match
	Err     error // per-query failure, e.g. an invalid precursor
}

// SearchAll runs Search for every query on up to threads goroutines and
// returns the results in query order. It stops early only when ctx is done.
func (s *Searcher) SearchAll(ctx context.Context, queries []*core.Spectrum, sim Similarity, k, threads int) ([]Result, error) {
	if k <= 0 {
		return nil, topk.ErrInvalidK
	}
	results := make([]Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	if threads > 0 {
		g.SetLimit(threads)
	}
	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matches, err := s.Search(q, sim, k)
			results[i] = Result{Query: q, Matches: matches, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
