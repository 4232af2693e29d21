// Package sqlite stores spectral libraries in the mzVault SQLite layout and
// loads them back for searching.
package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/MassKey/pkg/core"
)

const driverName = "sqlite3"

const (
	// HeaderTable dates are ISO 8601.
	headerDateFormat = "2006-01-02"
	// MaintenanceTable dates are space separated, as mzVault writes them.
	maintenanceDateFormat = "2006 01 02"

	// mzVault header version.
	schemaVersion = 5
)

const schema = `
CREATE TABLE IF NOT EXISTS CompoundTable (
	CompoundId INTEGER PRIMARY KEY,
	Formula TEXT,
	Name TEXT,
	Synonyms BLOB_TEXT,
	Tag TEXT,
	Sequence TEXT,
	CASId TEXT,
	ChemSpiderId TEXT,
	HMDBId TEXT,
	KEGGId TEXT,
	PubChemId TEXT,
	Structure BLOB_TEXT,
	mzCloudId INTEGER,
	CompoundClass TEXT,
	SmilesDescription TEXT,
	InChiKey TEXT
);

CREATE TABLE IF NOT EXISTS SpectrumTable (
	SpectrumId INTEGER PRIMARY KEY,
	CompoundId INTEGER REFERENCES CompoundTable(CompoundId),
	mzCloudURL TEXT,
	ScanFilter TEXT,
	RetentionTime DOUBLE,
	ScanNumber INTEGER,
	PrecursorMass DOUBLE,
	NeutralMass DOUBLE,
	CollisionEnergy DOUBLE,
	Polarity TEXT,
	FragmentationMode TEXT,
	IonizationMode TEXT,
	MassAnalyzer TEXT,
	InstrumentName TEXT,
	InstrumentOperator TEXT,
	RawFileURL TEXT,
	blobMass BLOB,
	blobIntensity BLOB,
	blobAccuracy BLOB,
	blobResolution BLOB,
	blobNoises BLOB,
	blobFlags BLOB,
	blobTopPeaks BLOB,
	Version INTEGER,
	CreationDate TEXT,
	Curator TEXT,
	CurationType TEXT,
	PrecursorIonType TEXT,
	Accession TEXT
);

CREATE TABLE IF NOT EXISTS HeaderTable (
	version INTEGER NOT NULL DEFAULT 0,
	CreationDate TEXT,
	LastModifiedDate TEXT,
	Description TEXT,
	Company TEXT,
	ReadOnly BOOL,
	UserAccess TEXT,
	PartialEdits BOOL
);

CREATE TABLE IF NOT EXISTS MaintenanceTable (
	CreationDate TEXT,
	NoofCompoundsModified INTEGER,
	Description TEXT
);
`

// Only the columns masskey fills are listed; the rest stay NULL.
const insertCompound = `
INSERT INTO CompoundTable (CompoundId, Formula, Name, Synonyms, Tag, Sequence, CompoundClass)
VALUES (?, ?, ?, '', ?, ?, ?)`

const insertSpectrum = `
INSERT INTO SpectrumTable (
	SpectrumId, CompoundId, RetentionTime, ScanNumber, PrecursorMass, NeutralMass,
	CollisionEnergy, Polarity, FragmentationMode, IonizationMode, MassAnalyzer,
	InstrumentName, blobMass, blobIntensity
) VALUES (?, ?, ?, 0, ?, ?, ?, '+', ?, 'ESI', ?, ?, ?, ?)`

const selectSpectra = `
SELECT s.SpectrumId, c.Name, c.Sequence, c.Formula, c.Tag, c.CompoundClass,
	s.RetentionTime, s.PrecursorMass, s.CollisionEnergy, s.FragmentationMode,
	s.MassAnalyzer, s.InstrumentName, s.blobMass, s.blobIntensity
FROM SpectrumTable s JOIN CompoundTable c ON c.CompoundId = s.CompoundId
ORDER BY s.SpectrumId`

// encodeFloat64s packs values as little-endian float64.
func encodeFloat64s(peaks []core.Peak, value func(core.Peak) float64) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, p := range peaks {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value(p)))
	}
	return buf
}

func decodeFloat64s(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out, nil
}
