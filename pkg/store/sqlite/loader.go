package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/MassKey/pkg/core"
)

// Load reads every spectrum of the mzVault database at path in SpectrumId
// order. The charge is recovered from the "Sequence/charge" compound name.
func Load(path string) ([]*core.Spectrum, error) {
	db, err := sql.Open(driverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(selectSpectra)
	if err != nil {
		return nil, fmt.Errorf("failed to query spectra: %w", err)
	}
	defer rows.Close()

	var out []*core.Spectrum
	for rows.Next() {
		spec, err := scanSpectrum(rows)
		if err != nil {
			return nil, err
		}
		spec.ID = len(out)
		spec.SourceFile = path
		spec.SourceFormat = "db"
		out = append(out, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spectra: %w", err)
	}
	return out, nil
}

func scanSpectrum(rows *sql.Rows) (*core.Spectrum, error) {
	var (
		id                                  int64
		name, seq, formula, tag, class      sql.NullString
		rt, ce                              sql.NullFloat64
		precursor                           float64
		fragmentation, analyzer, instrument sql.NullString
		mzBlob, intensityBlob               []byte
	)
	err := rows.Scan(&id, &name, &seq, &formula, &tag, &class,
		&rt, &precursor, &ce, &fragmentation,
		&analyzer, &instrument, &mzBlob, &intensityBlob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan spectrum: %w", err)
	}

	spec := &core.Spectrum{
		Sequence:          seq.String,
		PrecursorMZ:       precursor,
		FragmentationMode: fragmentation.String,
		MassAnalyzer:      analyzer.String,
		Instrument:        instrument.String,
		CompoundClass:     class.String,
	}
	if rt.Valid {
		spec.RetentionTime = &rt.Float64
	}
	if ce.Valid {
		spec.CollisionEnergy = &ce.Float64
	}

	if spec.Charge, err = chargeFromName(name.String); err != nil {
		return nil, fmt.Errorf("spectrum %d: %w", id, err)
	}
	if spec.Modifications, err = parseModString(formula.String); err != nil {
		return nil, fmt.Errorf("spectrum %d: %w", id, err)
	}
	spec.MassOffset = massOffsetFromTag(tag.String)

	mz, err := decodeFloat64s(mzBlob)
	if err != nil {
		return nil, fmt.Errorf("spectrum %d blobMass: %w", id, err)
	}
	intensity, err := decodeFloat64s(intensityBlob)
	if err != nil {
		return nil, fmt.Errorf("spectrum %d blobIntensity: %w", id, err)
	}
	if len(mz) != len(intensity) {
		return nil, fmt.Errorf("spectrum %d: %d masses but %d intensities", id, len(mz), len(intensity))
	}
	spec.Peaks = make([]core.Peak, len(mz))
	for i := range mz {
		spec.Peaks[i] = core.Peak{MZ: mz[i], Intensity: intensity[i]}
	}
	return spec, nil
}

func chargeFromName(name string) (int, error) {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return 0, fmt.Errorf("compound name %q has no charge", name)
	}
	charge, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return 0, fmt.Errorf("compound name %q: invalid charge: %w", name, err)
	}
	return charge, nil
}

// parseModString reads the "mass@pos;mass@pos" form of core.Spectrum.ModString.
func parseModString(s string) ([]core.Modification, error) {
	if s == "" {
		return nil, nil
	}
	var mods []core.Modification
	for _, part := range strings.Split(s, ";") {
		massStr, posStr, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("invalid modification %q", part)
		}
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid modification mass %q: %w", massStr, err)
		}
		pos, err := strconv.Atoi(posStr)
		if err != nil {
			return nil, fmt.Errorf("invalid modification position %q: %w", posStr, err)
		}
		mods = append(mods, core.Modification{Mass: mass, Position: pos})
	}
	return mods, nil
}

func massOffsetFromTag(tag string) float64 {
	_, rest, ok := strings.Cut(tag, "massOffset:")
	if !ok {
		return 0
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}
