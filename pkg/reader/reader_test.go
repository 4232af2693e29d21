package reader

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/store/sqlite"
)

const mspLibrary = `Name: AAAAK/2
MW: 100
Comment: Parent=437.2345 Collision_energy=30 Mods=0 iRT=12.5
Num peaks: 2
147.11	100	"y1/0.1ppm"
218.15	50	"y2"

Name: PEPTIDEK/3
Comment: Parent=310.5 Mods=1/-1,P,TMTPro ModString=PEPTIDEK//TMTPro@P-1/3
Num peaks: 1
200.1	10
`

const sptxtLibrary = `### SpectraST spectral library
### ===

Name: n[305]AAC[160]K/2
LibID: 0
MW: 1000.5
PrecursorMZ: 500.25
Comment: Mods=2/-1,A,iTRAQ8plex/2,C,Carbamidomethyl RetentionTime=1200.5,1190.2,1210.0 CollisionEnergy=35
NumPeaks: 2
147.1128	1000	y1/0.001	2/2
250.0	200	b2

Name: PEPTIDEc[16]/2
PrecursorMZ: 400.7
Comment: Mods=0
NumPeaks: 0

Name: GK[999]/1
PrecursorMZ: 1000.1
NumPeaks: 1
100	1
`

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func readString(t *testing.T, text string, format Format) []*core.Spectrum {
	t.Helper()
	r, err := NewReader(strings.NewReader(text), format, nil, quiet())
	require.NoError(t, err)
	specs, err := ReadAll(r)
	require.NoError(t, err)
	return specs
}

func TestReadMSP(t *testing.T) {
	specs := readString(t, mspLibrary, MSP)
	require.Len(t, specs, 2)

	first := specs[0]
	assert.Equal(t, 0, first.ID)
	assert.Equal(t, "AAAAK", first.Sequence)
	assert.Equal(t, 2, first.Charge)
	assert.Equal(t, 437.2345, first.PrecursorMZ)
	require.NotNil(t, first.CollisionEnergy)
	assert.Equal(t, 30.0, *first.CollisionEnergy)
	require.NotNil(t, first.RetentionTime)
	assert.Equal(t, 12.5, *first.RetentionTime)
	assert.Equal(t, []core.Peak{
		{MZ: 147.11, Intensity: 100, Annotation: "y1"},
		{MZ: 218.15, Intensity: 50, Annotation: "y2"},
	}, first.Peaks)
	assert.Empty(t, first.Modifications)
	assert.Equal(t, "msp", first.SourceFormat)

	second := specs[1]
	assert.Equal(t, 1, second.ID)
	assert.Equal(t, 3, second.Charge)
	assert.Equal(t, []core.Modification{{Mass: 304.207146, Position: -1, Name: "TMTPro"}}, second.Modifications,
		"Mods and ModString describe the same modification")
}

func TestReadSPTXT(t *testing.T) {
	specs := readString(t, sptxtLibrary, SPTXT)
	require.Len(t, specs, 3)

	first := specs[0]
	assert.Equal(t, "AACK", first.Sequence)
	assert.Equal(t, 2, first.Charge)
	assert.Equal(t, 500.25, first.PrecursorMZ)
	require.NotNil(t, first.RetentionTime)
	assert.Equal(t, 1200.5, *first.RetentionTime)
	assert.Equal(t, []core.Modification{
		{Mass: 304.205360, Position: -1, Name: "iTRAQ8plex"},
		{Mass: 57.021464, Position: 2, Name: "Carbamidomethyl"},
	}, first.Modifications)
	require.Len(t, first.Peaks, 2)
	assert.Equal(t, "y1", first.Peaks[0].Annotation)

	second := specs[1]
	assert.Equal(t, "PEPTIDE", second.Sequence)
	assert.Empty(t, second.Peaks)
	assert.Equal(t, []core.Modification{{Mass: -0.984016, Position: 7, Name: "Amidated"}}, second.Modifications)

	third := specs[2]
	assert.Equal(t, "GK", third.Sequence)
	require.Len(t, third.Modifications, 1)
	assert.Equal(t, 1, third.Modifications[0].Position)
	assert.Equal(t, "871", third.Modifications[0].Name)
	assert.Equal(t, 2, third.ID)
}

func TestInlineModsFollowSiteFilter(t *testing.T) {
	r, err := NewReader(strings.NewReader(""), SPTXT, nil, quiet())
	require.NoError(t, err)

	// Both shifts are about 41.9 Da. Acetyl is closest but cannot sit on R.
	seq, mods, err := r.parseInlineModifications("K[170]R[198]")
	require.NoError(t, err)
	assert.Equal(t, "KR", seq)
	require.Len(t, mods, 2)
	assert.Equal(t, core.Modification{Mass: 42.010565, Position: 0, Name: "Acetyl"}, mods[0])
	assert.Equal(t, core.Modification{Mass: 42.04695, Position: 1, Name: "Trimethyl"}, mods[1])

	_, _, err = r.parseInlineModifications("B[100]")
	assert.Error(t, err)
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bad charge", "Name: PEPTIDE/x\nNum peaks: 0\n"},
		{"missing charge", "Name: PEPTIDE\nNum peaks: 0\n"},
		{"bad peak", "Name: PEPTIDE/2\nNum peaks: 1\n100 abc\n"},
		{"truncated peaks", "Name: PEPTIDE/2\nNum peaks: 3\n100 1\n200 2\n"},
		{"blank inside peaks", "Name: PEPTIDE/2\nNum peaks: 2\n100 1\n\n200 2\n"},
		{"no peak count", "Name: PEPTIDE/2\nComment: Parent=400\n"},
		{"not a header", "Name: PEPTIDE/2\ngarbage\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(strings.NewReader(tt.text), MSP, nil, quiet())
			require.NoError(t, err)
			_, err = ReadAll(r)
			assert.Error(t, err)
			assert.False(t, r.Next(), "reader stays failed")
		})
	}

	_, err := NewReader(strings.NewReader(""), Format("mgf"), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEmptyInput(t *testing.T) {
	assert.Empty(t, readString(t, "\n\n", MSP))
	assert.Empty(t, readString(t, "### header only\n", SPTXT))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name, path string
		want       Format
		wantErr    bool
	}{
		{"", "lib.msp", MSP, false},
		{"auto", "LIB.SPTXT", SPTXT, false},
		{"", "lib.db", DB, false},
		{"msp", "lib.txt", MSP, false},
		{"", "lib.txt", "", true},
		{"mgf", "lib.mgf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.name, tt.path)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownFormat, "%s %s", tt.name, tt.path)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	mspPath := filepath.Join(dir, "lib.msp")
	require.NoError(t, os.WriteFile(mspPath, []byte(mspLibrary), 0o644))

	specs, err := ReadFile(mspPath, MSP, nil, quiet())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, mspPath, specs[0].SourceFile)

	dbPath := filepath.Join(dir, "lib.db")
	w, err := sqlite.NewWriter(dbPath)
	require.NoError(t, err)
	for _, s := range specs {
		s.FragmentationMode, s.MassAnalyzer = "HCD", "FT"
		require.NoError(t, w.WriteSpectrum(s))
	}
	require.NoError(t, w.Finalize())

	loaded, err := ReadFile(dbPath, DB, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, specs[1].Precursor(), loaded[1].Precursor())

	_, err = ReadFile(filepath.Join(dir, "missing.msp"), MSP, nil)
	assert.Error(t, err)
}
