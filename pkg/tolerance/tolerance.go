// Package tolerance turns a mass tolerance declaration into a closed search
// window and classifies observed values against it.
package tolerance

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTolerance is returned when a tolerance cannot be constructed.
var ErrInvalidTolerance = errors.New("invalid tolerance")

// Kind identifies the tolerance model.
type Kind int

const (
	// Absolute is a symmetric window of +/- delta (Daltons or m/z units).
	Absolute Kind = iota
	// Relative is a symmetric window of +/- ppm parts per million.
	Relative
	// Interval is an asymmetric window of [value+low, value+high].
	Interval
)

func (k Kind) String() string {
	switch k {
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	case Interval:
		return "interval"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error describes why a tolerance declaration was rejected.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s tolerance: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return ErrInvalidTolerance }

// Tolerance is an immutable tolerance declaration. The zero value is an
// absolute tolerance of 0 (exact match).
type Tolerance struct {
	kind  Kind
	delta float64 // Absolute: Daltons, Relative: ppm
	low   float64 // Interval only
	high  float64 // Interval only
}

// NewAbsolute returns a tolerance of +/- delta around the query value.
func NewAbsolute(delta float64) (Tolerance, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta < 0 {
		return Tolerance{}, &Error{Kind: Absolute, Message: fmt.Sprintf("delta must be a finite value >= 0, got %v", delta)}
	}
	return Tolerance{kind: Absolute, delta: delta}, nil
}

// NewRelative returns a tolerance of +/- ppm parts per million of the query value.
func NewRelative(ppm float64) (Tolerance, error) {
	if math.IsNaN(ppm) || math.IsInf(ppm, 0) || ppm < 0 {
		return Tolerance{}, &Error{Kind: Relative, Message: fmt.Sprintf("ppm must be a finite value >= 0, got %v", ppm)}
	}
	return Tolerance{kind: Relative, delta: ppm}, nil
}

// NewInterval returns the window [value+low, value+high]. low must be
// strictly less than high.
func NewInterval(low, high float64) (Tolerance, error) {
	if math.IsNaN(low) || math.IsNaN(high) || math.IsInf(low, 0) || math.IsInf(high, 0) {
		return Tolerance{}, &Error{Kind: Interval, Message: "offsets must be finite"}
	}
	if low >= high {
		return Tolerance{}, &Error{Kind: Interval, Message: fmt.Sprintf("lower offset %v must be below upper offset %v", low, high)}
	}
	return Tolerance{kind: Interval, low: low, high: high}, nil
}

// Parse reads a tolerance written as "0.5Da", "0.5" (Daltons), "10ppm" or
// "-0.5:2.5" (interval offsets).
func Parse(s string) (Tolerance, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Tolerance{}, fmt.Errorf("%w: empty tolerance", ErrInvalidTolerance)
	}

	if lo, hi, ok := strings.Cut(s, ":"); ok {
		low, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		if err != nil {
			return Tolerance{}, fmt.Errorf("%w: lower offset %q: %v", ErrInvalidTolerance, lo, err)
		}
		high, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err != nil {
			return Tolerance{}, fmt.Errorf("%w: upper offset %q: %v", ErrInvalidTolerance, hi, err)
		}
		return NewInterval(low, high)
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "ppm"):
		v, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-3]), 64)
		if err != nil {
			return Tolerance{}, fmt.Errorf("%w: %q: %v", ErrInvalidTolerance, s, err)
		}
		return NewRelative(v)
	case strings.HasSuffix(lower, "da"):
		s = s[:len(s)-2]
	case strings.HasSuffix(lower, "th"):
		s = s[:len(s)-2]
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Tolerance{}, fmt.Errorf("%w: %q: %v", ErrInvalidTolerance, s, err)
	}
	return NewAbsolute(v)
}

// Kind returns the tolerance model.
func (t Tolerance) Kind() Kind { return t.kind }

// Window returns the closed window around value.
func (t Tolerance) Window(value float64) Window {
	switch t.kind {
	case Relative:
		f := t.delta * 1e-6
		lo, hi := value*(1-f), value*(1+f)
		// Negative values (mass shifts) flip the bounds.
		if lo > hi {
			lo, hi = hi, lo
		}
		return Window{Lo: lo, Hi: hi}
	case Interval:
		return Window{Lo: value + t.low, Hi: value + t.high}
	default:
		return Window{Lo: value - t.delta, Hi: value + t.delta}
	}
}

// Classify reports where observed lies relative to the window around value.
func (t Tolerance) Classify(value, observed float64) Class {
	return t.Window(value).Classify(observed)
}

func (t Tolerance) String() string {
	switch t.kind {
	case Relative:
		return strconv.FormatFloat(t.delta, 'g', -1, 64) + "ppm"
	case Interval:
		return strconv.FormatFloat(t.low, 'g', -1, 64) + ":" + strconv.FormatFloat(t.high, 'g', -1, 64)
	default:
		return strconv.FormatFloat(t.delta, 'g', -1, 64) + "Da"
	}
}
