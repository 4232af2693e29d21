// Package filter trims and adjusts the fragment peaks of library spectra
// before they are stored or scored.
package filter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/topk"
)

// modMassEpsilon is the precision modification masses are written with.
const modMassEpsilon = 5e-7

// Config holds filtering configuration
type Config struct {
	TopN            int      // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64  // Keep only peaks above this % of base peak (0 = no cutoff)
	IonTypes        []string // Keep only specified ion types (nil = all)
	OldModMass      float64  // Modification mass to replace on fragments
	NewModMass      float64  // Replacement modification mass
}

// Enabled reports whether Apply would change anything besides peak order.
func (c *Config) Enabled() bool {
	return c.TopN > 0 || c.IntensityCutoff > 0 || len(c.IonTypes) > 0 || c.adjusts()
}

func (c *Config) adjusts() bool {
	return c.OldModMass != 0 && c.NewModMass != 0
}

// Apply runs the ion type, intensity and top-N filters in that order, then
// the fragment mass adjustment, and leaves the peaks sorted by m/z.
func (c *Config) Apply(spec *core.Spectrum) error {
	if len(c.IonTypes) > 0 {
		spec.Peaks = keep(spec.Peaks, func(p core.Peak) bool {
			return matchesIonType(p.Annotation, c.IonTypes)
		})
	}
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}
	if c.TopN > 0 {
		if err := TopPeaks(spec, c.TopN); err != nil {
			return err
		}
	}
	if c.adjusts() {
		c.adjustFragmentMasses(spec)
	}
	spec.SortPeaks()
	return nil
}

func keep(peaks []core.Peak, pred func(core.Peak) bool) []core.Peak {
	var out []core.Peak
	for _, p := range peaks {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// matchesIonType reports whether the annotation starts with one of ionTypes,
// as "y3" and "b2^2" do for "y" and "b".
func matchesIonType(annotation string, ionTypes []string) bool {
	if annotation == "" {
		return false
	}
	for _, ionType := range ionTypes {
		if strings.HasPrefix(annotation, ionType) {
			return true
		}
	}
	return false
}

// filterByIntensity drops peaks below IntensityCutoff percent of the base peak.
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	base, ok := spec.BasePeak()
	if !ok {
		return
	}
	threshold := c.IntensityCutoff / 100.0 * base.Intensity
	spec.Peaks = keep(spec.Peaks, func(p core.Peak) bool {
		return p.Intensity >= threshold
	})
}

// TopPeaks keeps the n most intense peaks of spec. Among equally intense
// peaks the one listed first wins. The result is in descending intensity
// order; callers that need m/z order sort afterwards.
func TopPeaks(spec *core.Spectrum, n int) error {
	if len(spec.Peaks) <= n {
		return nil
	}
	sel, err := topk.New[core.Peak](n)
	if err != nil {
		return fmt.Errorf("top peaks: %w", err)
	}
	for _, p := range spec.Peaks {
		sel.Consider(p, p.Intensity)
	}
	top := sel.Drain()
	spec.Peaks = make([]core.Peak, len(top))
	for i, c := range top {
		spec.Peaks[i] = c.Record
	}
	return nil
}

// adjustFragmentMasses moves annotated b and y ions that carry a modification
// of OldModMass by the mass difference to NewModMass.
func (c *Config) adjustFragmentMasses(spec *core.Spectrum) {
	delta := c.NewModMass - c.OldModMass
	seqLen := len(spec.Sequence)

	for i := range spec.Peaks {
		peak := &spec.Peaks[i]
		ion, ok := parseIonAnnotation(peak.Annotation)
		if !ok {
			continue
		}
		for _, mod := range spec.Modifications {
			if math.Abs(mod.Mass-c.OldModMass) > modMassEpsilon {
				continue
			}
			// b_n holds residues [0, n), y_n holds [len-n, len).
			var covered bool
			switch ion.ionType {
			case "b":
				covered = mod.Position < ion.position
			case "y":
				covered = mod.Position >= seqLen-ion.position
			}
			if covered {
				peak.MZ += delta / float64(ion.charge)
			}
		}
	}
}

type ionAnnotation struct {
	ionType  string
	position int
	charge   int
}

var ionAnnotationRe = regexp.MustCompile(`^([a-z])(\d+)(?:\^(\d+))?`)

// parseIonAnnotation reads annotations like "y3", "b2^2" and "y10^3".
func parseIonAnnotation(annotation string) (ionAnnotation, bool) {
	m := ionAnnotationRe.FindStringSubmatch(annotation)
	if m == nil {
		return ionAnnotation{}, false
	}
	ion := ionAnnotation{ionType: m[1], charge: 1}
	ion.position, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		ion.charge, _ = strconv.Atoi(m[3])
	}
	if ion.charge <= 0 {
		return ionAnnotation{}, false
	}
	return ion, true
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	spec.Peaks = keep(spec.Peaks, func(p core.Peak) bool { return p.Intensity > 0 })
}
