// Package modindex looks up modification definitions by mass shift within a
// tolerance.
package modindex

import (
	"iter"
	"math"
	"slices"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/index/sorted"
	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

// Index is an immutable mass-ordered view of a modification catalogue.
type Index struct {
	defs *sorted.Index[core.ModDefinition]
}

// New indexes defs by mass.
func New(defs []core.ModDefinition) (*Index, error) {
	ix, err := sorted.Build(defs, func(d core.ModDefinition) float64 { return d.Mass })
	if err != nil {
		return nil, err
	}
	return &Index{defs: ix}, nil
}

// FromDatabase indexes every definition of db.
func FromDatabase(db *core.ModDatabase) (*Index, error) {
	return New(db.Definitions())
}

// Len returns the number of indexed definitions.
func (ix *Index) Len() int {
	return ix.defs.Len()
}

// Scan yields, in ascending mass order, the definitions whose mass lies in
// the tolerance window around mass.
func (ix *Index) Scan(mass float64, tol tolerance.Tolerance) iter.Seq[core.ModDefinition] {
	w := tol.Window(mass)
	return ix.defs.ScanFrom(ix.defs.LowerBound(w.Lo), func(key float64, _ core.ModDefinition) tolerance.Class {
		return w.Classify(key)
	})
}

// Lookup returns the definitions whose mass lies in the tolerance window
// around mass, in ascending mass order. No match yields an empty result.
func (ix *Index) Lookup(mass float64, tol tolerance.Tolerance) []core.ModDefinition {
	return slices.Collect(ix.Scan(mass, tol))
}

// LookupWithSiteFilter is Lookup restricted to definitions that may occupy
// one of sites (residue codes, core.SiteNTerm or core.SiteCTerm). Empty
// sites match nothing.
func (ix *Index) LookupWithSiteFilter(mass float64, tol tolerance.Tolerance, sites string) []core.ModDefinition {
	var out []core.ModDefinition
	for d := range ix.Scan(mass, tol) {
		if d.AppliesTo(sites) {
			out = append(out, d)
		}
	}
	return out
}

// Closest returns the definition nearest to mass among those matching the
// tolerance and sites, or false if none match. Empty sites disable the site
// restriction.
func (ix *Index) Closest(mass float64, tol tolerance.Tolerance, sites string) (core.ModDefinition, bool) {
	var (
		best  core.ModDefinition
		found bool
	)
	for d := range ix.Scan(mass, tol) {
		if sites != "" && !d.AppliesTo(sites) {
			continue
		}
		if !found || math.Abs(d.Mass-mass) < math.Abs(best.Mass-mass) {
			best, found = d, true
		}
	}
	return best, found
}
