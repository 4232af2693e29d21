package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MassKey/pkg/logger"
)

var (
	validateFormat string
	maxReported    int
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate input file format and contents",
	Long: `Validate that an input file is properly formatted and that every spectrum
could be written to a library database with the convert defaults. Exits with
an error if any spectrum is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFormat, "from", "f", "", "Input format: msp, sptxt or db (auto-detect if not specified)")
	validateCmd.Flags().IntVar(&maxReported, "max-errors", 20, "Invalid spectra reported individually")
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("validate")

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	modTol, err := cfg.ModificationTolerance()
	if err != nil {
		return err
	}
	spectra, err := readSpectra(args[0], validateFormat, modDB, modTol)
	if err != nil {
		return err
	}

	invalid := 0
	for _, spec := range spectra {
		prepareForLibrary(spec)
		spec.SortPeaks()
		if err := spec.Validate(); err != nil {
			invalid++
			if invalid <= maxReported {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%v\n", spec.ID, spec.Name(), err)
			}
		}
	}
	log.Info("validation finished", "file", args[0], "spectra", len(spectra), "invalid", invalid)

	if invalid > 0 {
		return fmt.Errorf("%d of %d spectra are invalid", invalid, len(spectra))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d spectra, all valid\n", args[0], len(spectra))
	return nil
}
