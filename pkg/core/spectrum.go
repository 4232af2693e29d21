// Package core provides the spectrum, peak and modification models shared by
// the readers, the search indexes and the library store.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Spectrum represents a single mass spectrum with all associated metadata.
type Spectrum struct {
	// Required fields
	Sequence          string  // Peptide sequence
	Charge            int     // Precursor charge state
	PrecursorMZ       float64 // Precursor m/z
	Peaks             []Peak  // Fragment peaks
	FragmentationMode string  // HCD, CID, etc.
	MassAnalyzer      string  // FT, IT, etc.

	// Optional metadata
	RetentionTime   *float64 // RT or iRT
	CollisionEnergy *float64 // Normalized collision energy
	Modifications   []Modification
	Instrument      string
	MassOffset      float64 // For massOffset CSV support
	CompoundClass   string  // For compound class CSV support

	// Internal tracking
	ID           int // position in the source library, assigned by readers
	SourceFile   string
	SourceFormat string // msp, sptxt, db
}

// Precursor is the composite library key of a spectrum.
type Precursor struct {
	MZ     float64
	Charge int
}

// Less orders precursors by charge, then by m/z, so that every charge state
// occupies one contiguous key range.
func (p Precursor) Less(o Precursor) bool {
	if p.Charge != o.Charge {
		return p.Charge < o.Charge
	}
	return p.MZ < o.MZ
}

func (p Precursor) String() string {
	return fmt.Sprintf("%.4f/%d+", p.MZ, p.Charge)
}

// NeutralMass returns the uncharged mass implied by the precursor m/z.
func (p Precursor) NeutralMass() float64 {
	return (p.MZ - ProtonMass) * float64(p.Charge)
}

// Peak represents a single m/z, intensity pair with optional metadata.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // Ion annotation (e.g., "y3", "b2^2")
	Charge     int    // Fragment charge (if available)
}

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum meets all requirements for writing to a
// library database.
func (s *Spectrum) Validate() error {
	errs := s.precursorProblems()

	if s.Sequence == "" {
		errs = append(errs, "sequence is required")
	}
	if len(s.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}
	if s.FragmentationMode == "" {
		errs = append(errs, "fragmentation mode is required")
	}
	if s.MassAnalyzer == "" {
		errs = append(errs, "mass analyzer is required")
	}

	for i, peak := range s.Peaks {
		switch {
		case math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0):
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		case peak.MZ <= 0:
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		switch {
		case math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0):
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		case peak.Intensity < 0:
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	return validationError("Spectrum", errs)
}

// ValidatePrecursor checks only what is needed to index or query the
// spectrum by precursor: a positive charge and a finite positive m/z.
func (s *Spectrum) ValidatePrecursor() error {
	return validationError("Precursor", s.precursorProblems())
}

func (s *Spectrum) precursorProblems() []string {
	var errs []string
	if s.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if math.IsNaN(s.PrecursorMZ) || math.IsInf(s.PrecursorMZ, 0) || s.PrecursorMZ <= 0 {
		errs = append(errs, "precursor m/z must be positive and finite")
	}
	return errs
}

func validationError(field string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{
		Field:   field,
		Message: strings.Join(errs, "; "),
	}
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	sort.SliceStable(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// TotalModMass returns the sum of all modification masses.
func (s *Spectrum) TotalModMass() float64 {
	total := 0.0
	for _, mod := range s.Modifications {
		total += mod.Mass
	}
	return total
}

// ModString returns a string representation of modifications in format "mass@pos;mass@pos;..."
func (s *Spectrum) ModString() string {
	if len(s.Modifications) == 0 {
		return ""
	}

	var parts []string
	for _, mod := range s.Modifications {
		parts = append(parts, fmt.Sprintf("%.6f@%d", mod.Mass, mod.Position))
	}
	return strings.Join(parts, ";")
}

// Precursor returns the library key of the spectrum.
func (s *Spectrum) Precursor() Precursor {
	return Precursor{MZ: s.PrecursorMZ, Charge: s.Charge}
}

// BasePeak returns the most intense peak, or false if there are no peaks.
func (s *Spectrum) BasePeak() (Peak, bool) {
	if len(s.Peaks) == 0 {
		return Peak{}, false
	}
	best := s.Peaks[0]
	for _, p := range s.Peaks[1:] {
		if p.Intensity > best.Intensity {
			best = p
		}
	}
	return best, true
}

// Name returns the spectrum name in format "Sequence/Charge"
func (s *Spectrum) Name() string {
	return fmt.Sprintf("%s/%d", s.Sequence, s.Charge)
}
