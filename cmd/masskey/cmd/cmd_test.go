package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/store/sqlite"
)

const testLibrary = `Name: PEPTIDEK/2
Comment: Parent=464.7347 Collision_energy=30 iRT=40.2
Num peaks: 3
147.1128	40	"y1"
244.1656	100	"y2"
359.1925	70	"y3"

Name: ELVISK/2
Comment: Parent=344.7156
Num peaks: 3
147.1128	30	"y1"
234.1448	100	"y2"
347.2289	50	"y3"
`

// resetFlags restores every flag of c and its subcommands to its default, so
// one run's flags do not leak into the next.
func resetFlags(t *testing.T, c *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(t, sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeLibrary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lib.msp")
	require.NoError(t, os.WriteFile(path, []byte(testLibrary), 0o644))
	return path
}

func TestConvertAndSummarize(t *testing.T) {
	in := writeLibrary(t)
	out := filepath.Join(t.TempDir(), "lib.db")

	stdout, err := execute(t, "convert", "--in", in, "--out", out, "--top-n", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Processed: 2 spectra")

	spectra, err := sqlite.Load(out)
	require.NoError(t, err)
	require.Len(t, spectra, 2)
	assert.Equal(t, "PEPTIDEK", spectra[0].Sequence)
	assert.Len(t, spectra[0].Peaks, 2)
	assert.Equal(t, "HCD", spectra[0].FragmentationMode)
	assert.InDelta(t, 464.7347, spectra[0].PrecursorMZ, 1e-3)

	stdout, err = execute(t, "summarize", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Spectra:")
	assert.Contains(t, stdout, "Charge 2:")
	assert.Contains(t, stdout, "Index lanes:")
}

func TestSearchSelfMatches(t *testing.T) {
	lib := writeLibrary(t)
	prom := filepath.Join(t.TempDir(), "masskey.prom")

	stdout, err := execute(t, "search", "--library", lib, "--queries", lib,
		"--tolerance", "20ppm", "--top-k", "3", "--threads", "2", "--metrics-textfile", prom)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "query\trank\tlibrary\tcharge\tprecursor\tscore", lines[0])
	assert.Equal(t, "PEPTIDEK/2\t1\tPEPTIDEK/2\t2\t464.7347\t1.0000", lines[1])
	assert.Equal(t, "ELVISK/2\t1\tELVISK/2\t2\t344.7156\t1.0000", lines[2])

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `masskey_queries_total{strategy="symmetric"} 2`)
}

func TestSearchDiscreteOffsets(t *testing.T) {
	lib := writeLibrary(t)

	// Queries one isotope below the library precursor only match through
	// the 1.00335 offset.
	shifted := strings.NewReplacer("Parent=464.7347", "Parent=463.7314", "Parent=344.7156", "Parent=343.7123").Replace(testLibrary)
	queries := filepath.Join(t.TempDir(), "queries.msp")
	require.NoError(t, os.WriteFile(queries, []byte(shifted), 0o644))

	stdout, err := execute(t, "search", "--library", lib, "--queries", queries,
		"--mode", "discrete", "--offsets", "0,1.00335", "--tolerance", "0.01Da", "--top-k", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "PEPTIDEK/2\t1\tPEPTIDEK/2\t2\t464.7347")
	assert.Contains(t, stdout, "ELVISK/2\t1\tELVISK/2\t2\t344.7156")

	_, err = execute(t, "search", "--library", lib, "--queries", queries,
		"--mode", "discrete", "--offsets", "", "--tolerance", "0.01Da")
	assert.Error(t, err)
}

func TestFlagsDoNotLeakBetweenRuns(t *testing.T) {
	lib := writeLibrary(t)
	prom := filepath.Join(t.TempDir(), "masskey.prom")

	_, err := execute(t, "search", "--library", lib, "--queries", lib, "--metrics-textfile", prom, "--top-k", "1")
	require.NoError(t, err)
	require.NoError(t, os.Remove(prom))

	_, err = execute(t, "search", "--library", lib, "--queries", lib)
	require.NoError(t, err)
	assert.NoFileExists(t, prom)
	assert.False(t, searchCmd.Flags().Changed("metrics-textfile"))
}

func TestModsLookup(t *testing.T) {
	stdout, err := execute(t, "mods", "--mass", "29", "--tolerance", "0.5Da", "--sites", "V")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "Val->Gln"))
	assert.True(t, strings.HasPrefix(lines[2], "Val->Lys"))
}

func TestValidate(t *testing.T) {
	lib := writeLibrary(t)
	stdout, err := execute(t, "validate", lib)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 spectra, all valid")

	bad := filepath.Join(t.TempDir(), "bad.msp")
	require.NoError(t, os.WriteFile(bad, []byte("Name: PEPTIDEK/0\nNum peaks: 1\n100 1\n"), 0o644))
	_, err = execute(t, "validate", bad)
	assert.ErrorContains(t, err, "1 of 1 spectra are invalid")
}

func TestLoadSequenceCSVs(t *testing.T) {
	dir := t.TempDir()
	offsets := filepath.Join(dir, "offsets.csv")
	require.NoError(t, os.WriteFile(offsets, []byte("Sequence,massOffset\nPEPTIDEK, 1.5\n\nELVISK,-2\n"), 0o644))

	got, err := loadMassOffsetCSV(offsets)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"PEPTIDEK": 1.5, "ELVISK": -2}, got)

	classes := filepath.Join(dir, "classes.csv")
	require.NoError(t, os.WriteFile(classes, []byte("Sequence,CompoundClass\nPEPTIDEK,target\n"), 0o644))
	cls, err := loadCompoundClassCSV(classes)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PEPTIDEK": "target"}, cls)

	broken := filepath.Join(dir, "broken.csv")
	require.NoError(t, os.WriteFile(broken, []byte("Sequence,massOffset\nPEPTIDEK,abc\n"), 0o644))
	_, err = loadMassOffsetCSV(broken)
	assert.ErrorContains(t, err, "line 2")
}

func TestSummarizeCountsLanes(t *testing.T) {
	spectra := []*core.Spectrum{
		{Sequence: "A", Charge: 2, PrecursorMZ: 500},
		{Sequence: "B", Charge: 2, PrecursorMZ: 500},
		{Sequence: "C", Charge: 3, PrecursorMZ: 400},
		{Sequence: "D", Charge: 0, PrecursorMZ: 300},
	}
	s, err := summarize(spectra)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Spectra)
	assert.Equal(t, 3, s.Indexed)
	assert.Equal(t, 2, s.Lanes)
	assert.Equal(t, map[int]int{0: 1, 2: 2, 3: 1}, s.Charges)
	assert.Equal(t, 400.0, s.MinMZ)
	assert.Equal(t, 500.0, s.MaxMZ)
}
