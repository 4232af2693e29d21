package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/modindex"
	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

var (
	modMass      float64
	modTolerance string
	modSites     string
)

var modsCmd = &cobra.Command{
	Use:   "mods",
	Short: "Look up modifications by mass shift",
	Long: `List the catalogued modifications whose mass shift lies within a tolerance
of the given mass, in ascending mass order.

Examples:
  masskey mods --mass 29
  masskey mods --mass 42.01 --tolerance 20ppm --sites K`,
	RunE: runMods,
}

func init() {
	modsCmd.Flags().Float64VarP(&modMass, "mass", "m", 0, "Mass shift in Daltons (required)")
	modsCmd.Flags().StringVarP(&modTolerance, "tolerance", "t", "", "Tolerance, e.g. 0.5Da or 20ppm (default from config)")
	modsCmd.Flags().StringVar(&modSites, "sites", "", "Only modifications allowed on one of these residues; n and c are the termini")

	modsCmd.MarkFlagRequired("mass")
}

func runMods(cmd *cobra.Command, args []string) error {
	tol, err := cfg.ModificationTolerance()
	if err != nil {
		return err
	}
	if modTolerance != "" {
		if tol, err = tolerance.Parse(modTolerance); err != nil {
			return fmt.Errorf("--tolerance: %w", err)
		}
	}

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	ix, err := modindex.FromDatabase(modDB)
	if err != nil {
		return err
	}

	var found []core.ModDefinition
	if modSites != "" {
		found = ix.LookupWithSiteFilter(modMass, tol, modSites)
	} else {
		found = ix.Lookup(modMass, tol)
	}
	if len(found) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No modification within %s of %.6f\n", tol, modMass)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMASS\tDELTA\tSITES")
	for _, d := range found {
		fmt.Fprintf(w, "%s\t%.6f\t%+.6f\t%s\n", d.Name, d.Mass, d.Mass-modMass, d.Sites)
	}
	return w.Flush()
}
