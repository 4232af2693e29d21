package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/filter"
	"github.com/ChrisMcGann/MassKey/pkg/logger"
	"github.com/ChrisMcGann/MassKey/pkg/reader"
	"github.com/ChrisMcGann/MassKey/pkg/store/sqlite"
)

var (
	inputFile        string
	inputFormat      string
	outputFile       string
	fragmentation    string
	collisionEnergy  float64
	massAnalyzer     string
	topN             int
	cutoffPercent    float64
	ionTypes         string
	massOffsetCSV    string
	compoundClassCSV string
	oldModMass       float64
	newModMass       float64
	chunkSize        int
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert spectral library to SQLite database",
	Long: `Convert spectral libraries in MSP or SPTXT format to SQLite databases
compatible with RTLS and mzVault workflows.

Examples:
  # Convert MSP file with default settings
  masskey convert --in library.msp --out library.db

  # Convert with filtering and mass analyzer specification
  masskey convert --in library.msp --out library.db --top-n 150 --cutoff 1 --mass-analyzer FT

  # Convert with ion type filtering and fragment adjustment
  masskey convert --in library.msp --out library.db --ion-types b,y --adjust-fragments-old 229.16 --adjust-fragments-new 304.21`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input file path (required)")
	convertCmd.Flags().StringVarP(&inputFormat, "from", "f", "", "Input format: msp or sptxt (auto-detect if not specified)")
	convertCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	convertCmd.Flags().StringVar(&fragmentation, "fragmentation", "HCD", "Fragmentation mode: HCD, CID, or 'read' to read from file")
	convertCmd.Flags().Float64Var(&collisionEnergy, "collision-energy", 0, "Collision energy (0 = read from file)")
	convertCmd.Flags().StringVar(&massAnalyzer, "mass-analyzer", "FT", "Mass analyzer: FT or IT")
	convertCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	convertCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	convertCmd.Flags().StringVar(&ionTypes, "ion-types", "", "Comma-separated ion types to keep (e.g., 'b,y')")
	convertCmd.Flags().StringVar(&massOffsetCSV, "mass-offset", "", "Path to mass offset CSV file")
	convertCmd.Flags().StringVar(&compoundClassCSV, "compound-class", "", "Path to compound class CSV file")
	convertCmd.Flags().Float64Var(&oldModMass, "adjust-fragments-old", 0, "Old modification mass for fragment adjustment")
	convertCmd.Flags().Float64Var(&newModMass, "adjust-fragments-new", 0, "New modification mass for fragment adjustment")
	convertCmd.Flags().IntVar(&chunkSize, "chunk-size", sqlite.DefaultBatchSize, "Spectra written per database transaction")

	convertCmd.MarkFlagRequired("in")
	convertCmd.MarkFlagRequired("out")
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("convert")

	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}
	format, err := reader.ParseFormat(inputFormat, inputFile)
	if err != nil {
		return fmt.Errorf("%w, please specify --from msp or --from sptxt", err)
	}
	if format == reader.DB {
		return fmt.Errorf("input is already a database: %s", inputFile)
	}

	filterConfig := &filter.Config{
		TopN:            topN,
		IntensityCutoff: cutoffPercent,
		IonTypes:        splitList(ionTypes),
		OldModMass:      oldModMass,
		NewModMass:      newModMass,
	}

	massOffsets := map[string]float64{}
	if massOffsetCSV != "" {
		if massOffsets, err = loadMassOffsetCSV(massOffsetCSV); err != nil {
			return fmt.Errorf("failed to load mass offset CSV: %w", err)
		}
		log.Info("loaded mass offset mappings", "count", len(massOffsets))
	}
	compoundClasses := map[string]string{}
	if compoundClassCSV != "" {
		if compoundClasses, err = loadCompoundClassCSV(compoundClassCSV); err != nil {
			return fmt.Errorf("failed to load compound class CSV: %w", err)
		}
		log.Info("loaded compound class mappings", "count", len(compoundClasses))
	}

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	modTol, err := cfg.ModificationTolerance()
	if err != nil {
		return err
	}

	in, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	r, err := reader.NewReader(in, format, modDB, reader.WithSource(inputFile), reader.WithModTolerance(modTol))
	if err != nil {
		return err
	}
	w, err := sqlite.NewWriter(outputFile, sqlite.WithBatchSize(chunkSize))
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer w.Close()

	log.Info("converting", "in", inputFile, "out", outputFile, "format", format,
		"fragmentation", fragmentation, "mass_analyzer", massAnalyzer,
		"top_n", topN, "cutoff", cutoffPercent, "ion_types", ionTypes)

	count, skipped := 0, 0
	for r.Next() {
		spec := r.Spectrum()
		if offset, ok := massOffsets[spec.Sequence]; ok {
			spec.MassOffset = offset
		}
		if class, ok := compoundClasses[spec.Sequence]; ok {
			spec.CompoundClass = class
		}
		prepareForLibrary(spec)

		filter.RemoveZeroIntensityPeaks(spec)
		if err := filterConfig.Apply(spec); err != nil {
			log.Warn("failed to filter spectrum", "spectrum", spec.Name(), "error", err)
			skipped++
			continue
		}
		if err := spec.Validate(); err != nil {
			log.Warn("invalid spectrum", "spectrum", spec.Name(), "error", err)
			skipped++
			continue
		}
		if err := w.WriteSpectrum(spec); err != nil {
			return fmt.Errorf("failed to write spectrum %s: %w", spec.Name(), err)
		}

		count++
		if count%1000 == 0 {
			log.Info("processed spectra", "count", count)
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}
	if err := w.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	log.Info("conversion complete", "written", count, "skipped", skipped, "out", outputFile)
	fmt.Fprintf(cmd.OutOrStdout(), "Processed: %d spectra\n", count)
	if skipped > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped: %d spectra (validation errors)\n", skipped)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", outputFile)
	return nil
}

// prepareForLibrary fills instrument metadata from the flags and recomputes
// the precursor m/z from sequence, modifications and mass offset.
func prepareForLibrary(spec *core.Spectrum) {
	switch {
	case fragmentation != "" && fragmentation != "read":
		spec.FragmentationMode = fragmentation
	case spec.FragmentationMode == "":
		spec.FragmentationMode = "HCD"
	}
	switch {
	case massAnalyzer != "":
		spec.MassAnalyzer = massAnalyzer
	case spec.MassAnalyzer == "":
		spec.MassAnalyzer = "FT"
	}
	if collisionEnergy > 0 {
		ce := collisionEnergy
		spec.CollisionEnergy = &ce
	}

	if spec.Sequence != "" && spec.Charge > 0 {
		mz := core.CalculatePeptideMass(spec.Sequence, spec.Charge, spec.Modifications)
		if spec.MassOffset != 0 {
			mz += spec.MassOffset / float64(spec.Charge)
		}
		spec.PrecursorMZ = mz
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

