package tolerance

import "fmt"

// Class is the position of an observed value relative to a window.
type Class int

const (
	Below Class = iota - 1
	Within
	Above
)

func (c Class) String() string {
	switch c {
	case Below:
		return "below"
	case Within:
		return "within"
	case Above:
		return "above"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Window is a closed interval [Lo, Hi]. It is derived per query and never stored.
type Window struct {
	Lo float64
	Hi float64
}

// Classify reports whether v is below, within or above the window. Both
// bounds are inclusive.
func (w Window) Classify(v float64) Class {
	switch {
	case v < w.Lo:
		return Below
	case v > w.Hi:
		return Above
	default:
		return Within
	}
}

// Contains reports whether v lies inside the window.
func (w Window) Contains(v float64) bool {
	return w.Classify(v) == Within
}

// Empty reports whether the window contains no value.
func (w Window) Empty() bool {
	return !(w.Lo <= w.Hi)
}

func (w Window) String() string {
	return fmt.Sprintf("[%.6f, %.6f]", w.Lo, w.Hi)
}
