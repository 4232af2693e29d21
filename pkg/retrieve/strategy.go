package retrieve

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

// ErrNoOffsets is returned when a discrete-offset strategy is built without offsets.
var ErrNoOffsets = errors.New("discrete offsets: at least one offset is required")

// Strategy turns a query m/z into the m/z windows to scan.
type Strategy interface {
	// Windows appends the windows for value to dst and returns the result.
	Windows(dst []tolerance.Window, value float64) []tolerance.Window
	// Name identifies the strategy in logs and metrics.
	Name() string
}

// Symmetric issues one tolerance window centred on the query value.
type Symmetric struct {
	Tolerance tolerance.Tolerance
}

// NewSymmetric returns a strategy with a single window derived from tol.
func NewSymmetric(tol tolerance.Tolerance) Symmetric {
	return Symmetric{Tolerance: tol}
}

func (s Symmetric) Windows(dst []tolerance.Window, value float64) []tolerance.Window {
	return append(dst, s.Tolerance.Window(value))
}

func (s Symmetric) Name() string { return "symmetric" }

func (s Symmetric) String() string { return "symmetric(" + s.Tolerance.String() + ")" }

// FixedOffset issues the single window [value+Lower, value+Upper].
type FixedOffset struct {
	lower, upper float64
	tol          tolerance.Tolerance
}

// NewFixedOffset validates the offsets and returns the strategy.
func NewFixedOffset(lower, upper float64) (FixedOffset, error) {
	tol, err := tolerance.NewInterval(lower, upper)
	if err != nil {
		return FixedOffset{}, err
	}
	return FixedOffset{lower: lower, upper: upper, tol: tol}, nil
}

// Bounds returns the lower and upper offsets.
func (f FixedOffset) Bounds() (lower, upper float64) { return f.lower, f.upper }

func (f FixedOffset) Windows(dst []tolerance.Window, value float64) []tolerance.Window {
	return append(dst, f.tol.Window(value))
}

func (f FixedOffset) Name() string { return "interval" }

func (f FixedOffset) String() string { return "interval(" + f.tol.String() + ")" }

// DiscreteOffsets issues one tolerance window per offset, centred on
// value+offset. A record falling in several windows is delivered once.
type DiscreteOffsets struct {
	offsets []float64
	tol     tolerance.Tolerance
}

// NewDiscreteOffsets sorts and de-duplicates offsets. It fails if no offset
// is given or an offset is not finite.
func NewDiscreteOffsets(offsets []float64, tol tolerance.Tolerance) (DiscreteOffsets, error) {
	if len(offsets) == 0 {
		return DiscreteOffsets{}, ErrNoOffsets
	}
	for _, o := range offsets {
		if math.IsNaN(o) || math.IsInf(o, 0) {
			return DiscreteOffsets{}, fmt.Errorf("discrete offsets: offset %v is not finite", o)
		}
	}
	sorted := slices.Clone(offsets)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return DiscreteOffsets{offsets: sorted, tol: tol}, nil
}

// Offsets returns the ascending, de-duplicated offsets.
func (d DiscreteOffsets) Offsets() []float64 {
	return slices.Clone(d.offsets)
}

func (d DiscreteOffsets) Windows(dst []tolerance.Window, value float64) []tolerance.Window {
	for _, o := range d.offsets {
		dst = append(dst, d.tol.Window(value+o))
	}
	return dst
}

func (d DiscreteOffsets) Name() string { return "discrete" }

func (d DiscreteOffsets) String() string {
	parts := make([]string, len(d.offsets))
	for i, o := range d.offsets {
		parts[i] = fmt.Sprintf("%g", o)
	}
	return "discrete(" + strings.Join(parts, ",") + " ± " + d.tol.String() + ")"
}
