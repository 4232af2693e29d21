package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MassKey/pkg/config"
	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/filter"
	"github.com/ChrisMcGann/MassKey/pkg/library"
	"github.com/ChrisMcGann/MassKey/pkg/logger"
	"github.com/ChrisMcGann/MassKey/pkg/metrics"
	"github.com/ChrisMcGann/MassKey/pkg/reader"
	"github.com/ChrisMcGann/MassKey/pkg/similarity"
	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

var (
	libraryFile     string
	libraryFormat   string
	queryFile       string
	queryFormat     string
	searchMode      string
	searchTolerance string
	searchOffsets   string
	lowerOffset     float64
	upperOffset     float64
	searchTopK      int
	searchThreads   int
	binWidth        float64
	topPeaks        int
	metricsTextfile string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search query spectra against a spectral library",
	Long: `Search every query spectrum against a library by precursor m/z and charge
and print the best matches by cosine similarity as tab separated values:

  query  rank  library  charge  precursor  score

Examples:
  # 10 ppm symmetric window
  masskey search --library library.db --queries run.msp --tolerance 10ppm

  # Fixed window from 0.5 Th below to 2.5 Th above the query
  masskey search --library library.db --queries run.msp --mode interval --lower-offset -0.5 --upper-offset 2.5

  # Monoisotopic peak and first isotope, each +/- 0.01 Th
  masskey search --library library.sptxt --queries run.msp --mode discrete --offsets 0,1.00335 --tolerance 0.01Da`,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVarP(&libraryFile, "library", "l", "", "Library file: msp, sptxt or db (required)")
	f.StringVar(&libraryFormat, "library-format", "", "Library format (auto-detect if not specified)")
	f.StringVarP(&queryFile, "queries", "q", "", "Query spectra file: msp, sptxt or db (required)")
	f.StringVar(&queryFormat, "query-format", "", "Query format (auto-detect if not specified)")
	f.StringVar(&searchMode, "mode", "", "Window strategy: symmetric, interval or discrete")
	f.StringVar(&searchTolerance, "tolerance", "", "Precursor tolerance, e.g. 10ppm or 0.02Da")
	f.StringVar(&searchOffsets, "offsets", "", "Comma-separated precursor offsets for discrete mode")
	f.Float64Var(&lowerOffset, "lower-offset", 0, "Lower window offset for interval mode")
	f.Float64Var(&upperOffset, "upper-offset", 0, "Upper window offset for interval mode")
	f.IntVarP(&searchTopK, "top-k", "k", 0, "Matches reported per query")
	f.IntVar(&searchThreads, "threads", 0, "Concurrent queries (0 = no limit)")
	f.Float64Var(&binWidth, "bin-width", 0, "m/z bin width of the cosine similarity")
	f.IntVar(&topPeaks, "top-peaks", 0, "Score only the N most intense peaks of each spectrum")
	f.StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the search")

	searchCmd.MarkFlagRequired("library")
	searchCmd.MarkFlagRequired("queries")
}

// applySearchFlags copies explicitly set flags over the configuration.
func applySearchFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("mode") {
		c.Search.Mode = searchMode
	}
	if f.Changed("tolerance") {
		c.Search.Tolerance = searchTolerance
	}
	if f.Changed("offsets") {
		offsets, err := config.ParseOffsets(searchOffsets)
		if err != nil {
			return fmt.Errorf("--offsets: %w", err)
		}
		c.Search.Offsets = offsets
	}
	if f.Changed("lower-offset") {
		c.Search.LowerOffset = lowerOffset
	}
	if f.Changed("upper-offset") {
		c.Search.UpperOffset = upperOffset
	}
	if f.Changed("top-k") {
		c.Search.TopK = searchTopK
	}
	if f.Changed("threads") {
		c.Search.Threads = searchThreads
	}
	if f.Changed("bin-width") {
		c.Search.BinWidth = binWidth
	}
	if f.Changed("top-peaks") {
		c.Search.TopPeaks = topPeaks
	}
	if f.Changed("metrics-textfile") {
		c.Metrics.Textfile = metricsTextfile
	}
	return c.Validate()
}

func runSearch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("search")

	if err := applySearchFlags(cmd, cfg); err != nil {
		return err
	}
	strategy, err := cfg.Strategy()
	if err != nil {
		return err
	}
	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	modTol, err := cfg.ModificationTolerance()
	if err != nil {
		return err
	}

	start := time.Now()
	libSpectra, err := readSpectra(libraryFile, libraryFormat, modDB, modTol)
	if err != nil {
		return err
	}
	libSpectra = prepareForSearch(log, "library", libSpectra, cfg.Search.TopPeaks)
	lib, err := library.Build(libSpectra)
	if err != nil {
		return err
	}
	log.Info("library indexed", "spectra", lib.Len(), "lanes", lib.Lanes(), "elapsed", time.Since(start))

	queries, err := readSpectra(queryFile, queryFormat, modDB, modTol)
	if err != nil {
		return err
	}
	queries = prepareForSearch(log, "query", queries, cfg.Search.TopPeaks)

	m := metrics.New()
	m.ObserveLibrary(lib.Len(), lib.Lanes())
	searcher := library.NewSearcher(lib, strategy, library.WithObserver(m))

	log.Info("searching", "queries", len(queries), "strategy", strategy, "top_k", cfg.Search.TopK, "threads", cfg.Search.Threads)
	start = time.Now()
	results, err := searcher.SearchAll(cmd.Context(), queries, similarity.NewCosine(cfg.Search.BinWidth), cfg.Search.TopK, cfg.Search.Threads)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	matched, err := writeResults(out, results)
	if err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}
	log.Info("search complete", "queries", len(queries), "matched", matched, "elapsed", time.Since(start))

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func readSpectra(path, formatName string, modDB *core.ModDatabase, modTol tolerance.Tolerance) ([]*core.Spectrum, error) {
	format, err := reader.ParseFormat(formatName, path)
	if err != nil {
		return nil, err
	}
	return reader.ReadFile(path, format, modDB, reader.WithModTolerance(modTol))
}

// prepareForSearch drops spectra without a usable precursor and trims and
// sorts the peaks of the rest.
func prepareForSearch(log *slog.Logger, role string, spectra []*core.Spectrum, peaks int) []*core.Spectrum {
	f := &filter.Config{TopN: peaks}
	kept := spectra[:0]
	for _, spec := range spectra {
		if err := spec.ValidatePrecursor(); err != nil {
			log.Warn("skipping spectrum", "role", role, "spectrum", spec.Name(), "error", err)
			continue
		}
		filter.RemoveZeroIntensityPeaks(spec)
		if err := f.Apply(spec); err != nil {
			log.Warn("skipping spectrum", "role", role, "spectrum", spec.Name(), "error", err)
			continue
		}
		kept = append(kept, spec)
	}
	return kept
}

// writeResults prints one row per match and returns the number of queries
// with at least one match.
func writeResults(w *bufio.Writer, results []library.Result) (int, error) {
	if _, err := fmt.Fprintln(w, "query\trank\tlibrary\tcharge\tprecursor\tscore"); err != nil {
		return 0, err
	}
	matched := 0
	for _, r := range results {
		if r.Err != nil {
			slog.Warn("query failed", "query", r.Query.Name(), "error", r.Err)
			continue
		}
		if len(r.Matches) > 0 {
			matched++
		}
		for rank, m := range r.Matches {
			_, err := fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%.4f\t%.4f\n",
				r.Query.Name(), rank+1, m.Spectrum.Name(), m.Spectrum.Charge, m.Spectrum.PrecursorMZ, m.Score)
			if err != nil {
				return matched, err
			}
		}
	}
	return matched, nil
}
