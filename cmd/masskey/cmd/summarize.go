package cmd

import (
	"fmt"
	"io"
	"math"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/library"
)

var summaryFormat string

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize spectral library contents",
	Long: `Print summary statistics about a spectral library including spectrum count,
charge states, precursor m/z range, metadata coverage and the number of lanes
the precursor index needs for duplicate precursors.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summaryFormat, "from", "f", "", "Input format: msp, sptxt or db (auto-detect if not specified)")
}

// summary collects library statistics.
type summary struct {
	Spectra      int
	Charges      map[int]int
	MinMZ, MaxMZ float64
	Peaks        int
	WithRT       int
	WithCE       int
	Modified     int
	Lanes        int
	Indexed      int
}

func summarize(spectra []*core.Spectrum) (summary, error) {
	s := summary{Charges: map[int]int{}, MinMZ: math.Inf(1), MaxMZ: math.Inf(-1)}
	var indexable []*core.Spectrum
	for _, spec := range spectra {
		s.Spectra++
		s.Charges[spec.Charge]++
		s.Peaks += len(spec.Peaks)
		if spec.RetentionTime != nil {
			s.WithRT++
		}
		if spec.CollisionEnergy != nil {
			s.WithCE++
		}
		if len(spec.Modifications) > 0 {
			s.Modified++
		}
		if spec.ValidatePrecursor() == nil {
			s.MinMZ = min(s.MinMZ, spec.PrecursorMZ)
			s.MaxMZ = max(s.MaxMZ, spec.PrecursorMZ)
			indexable = append(indexable, spec)
		}
	}
	lib, err := library.Build(indexable)
	if err != nil {
		return s, err
	}
	s.Lanes, s.Indexed = lib.Lanes(), lib.Len()
	return s, nil
}

func (s summary) write(out io.Writer, path string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "File:\t%s\n", path)
	fmt.Fprintf(w, "Spectra:\t%d\n", s.Spectra)
	if s.Indexed > 0 {
		fmt.Fprintf(w, "Precursor m/z:\t%.4f - %.4f\n", s.MinMZ, s.MaxMZ)
	}
	if s.Spectra > 0 {
		fmt.Fprintf(w, "Mean peaks:\t%.1f\n", float64(s.Peaks)/float64(s.Spectra))
	}
	fmt.Fprintf(w, "Retention time:\t%d\n", s.WithRT)
	fmt.Fprintf(w, "Collision energy:\t%d\n", s.WithCE)
	fmt.Fprintf(w, "Modified:\t%d\n", s.Modified)
	fmt.Fprintf(w, "Indexed:\t%d\n", s.Indexed)
	fmt.Fprintf(w, "Index lanes:\t%d\n", s.Lanes)

	charges := make([]int, 0, len(s.Charges))
	for c := range s.Charges {
		charges = append(charges, c)
	}
	slices.Sort(charges)
	for _, c := range charges {
		fmt.Fprintf(w, "Charge %d:\t%d\n", c, s.Charges[c])
	}
	return w.Flush()
}

func runSummarize(cmd *cobra.Command, args []string) error {
	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	modTol, err := cfg.ModificationTolerance()
	if err != nil {
		return err
	}
	spectra, err := readSpectra(args[0], summaryFormat, modDB, modTol)
	if err != nil {
		return err
	}
	s, err := summarize(spectra)
	if err != nil {
		return err
	}
	return s.write(cmd.OutOrStdout(), args[0])
}
