// Package reader streams spectra out of MSP (Prosit) and SPTXT (SpectraST)
// spectral libraries.
//
// Both formats are blocks of "Key: value" header lines ended by a peak count
// line and that many peak lines. They differ in how the Name line encodes
// modifications: MSP names are plain "SEQUENCE/charge", SPTXT names carry
// nominal inline masses such as "n[305]PEPC[160]TIDE/2".
package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/logger"
	"github.com/ChrisMcGann/MassKey/pkg/modindex"
	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

// Format names a spectral library format.
type Format string

// Supported formats. DB is only accepted by ReadFile.
const (
	MSP   Format = "msp"
	SPTXT Format = "sptxt"
	DB    Format = "db"
)

// ErrUnknownFormat is returned for a format that cannot be read.
var ErrUnknownFormat = errors.New("unknown library format")

// maxLineSize bounds a single line; peak annotations can be long.
const maxLineSize = 1 << 20

// Reader provides streaming access to a text spectral library.
type Reader struct {
	scanner *bufio.Scanner
	format  Format
	mods    *core.ModDatabase
	modTol  tolerance.Tolerance
	byMass  *modindex.Index
	log     *slog.Logger
	source  string

	lineNum int
	nextID  int
	current *core.Spectrum
	err     error
}

// Option configures a Reader.
type Option func(*Reader)

// WithModTolerance sets the tolerance used to name inline SPTXT masses.
func WithModTolerance(tol tolerance.Tolerance) Option {
	return func(r *Reader) { r.modTol = tol }
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) { r.log = l }
}

// WithSource records the file name on every spectrum.
func WithSource(path string) Option {
	return func(r *Reader) { r.source = path }
}

// NewReader returns a reader of format over src. mods resolves modification
// names; nil selects core.NewDefaultModDatabase.
func NewReader(src io.Reader, format Format, mods *core.ModDatabase, opts ...Option) (*Reader, error) {
	if format != MSP && format != SPTXT {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if mods == nil {
		mods = core.NewDefaultModDatabase()
	}
	// SPTXT inline masses are nominal.
	nominal, _ := tolerance.NewAbsolute(0.5)

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	r := &Reader{
		scanner: scanner,
		format:  format,
		mods:    mods,
		modTol:  nominal,
		log:     logger.WithComponent("reader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if format == SPTXT {
		ix, err := modindex.FromDatabase(mods)
		if err != nil {
			return nil, fmt.Errorf("indexing modifications: %w", err)
		}
		r.byMass = ix
	}
	return r, nil
}

// Next advances to the next spectrum. It returns false at the end of the
// input or on error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}
	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	spec.ID = r.nextID
	spec.SourceFile = r.source
	r.nextID++
	r.current = spec
	return true
}

// Spectrum returns the spectrum read by the last successful Next.
func (r *Reader) Spectrum() *core.Spectrum {
	return r.current
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// ReadAll drains r.
func ReadAll(r *Reader) ([]*core.Spectrum, error) {
	var out []*core.Spectrum
	for r.Next() {
		out = append(out, r.Spectrum())
	}
	return out, r.Err()
}

func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{SourceFormat: string(r.format)}
	started := false
	numPeaks := -1

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "###") {
			if started && numPeaks < 0 {
				continue
			}
			if started {
				return nil, fmt.Errorf("line %d: %d peaks missing", r.lineNum, numPeaks-len(spec.Peaks))
			}
			continue
		}
		started = true

		if numPeaks >= 0 {
			peak, err := parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
			if len(spec.Peaks) == numPeaks {
				return spec, nil
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 'Key: value', got %q", r.lineNum, line)
		}
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "Name":
			err = r.parseName(spec, value)
		case "Comment":
			r.parseComment(spec, value)
		case "PrecursorMZ":
			if mz, perr := strconv.ParseFloat(value, 64); perr == nil {
				spec.PrecursorMZ = mz
			}
		case "Num peaks", "NumPeaks":
			numPeaks, err = strconv.Atoi(value)
			if err == nil && numPeaks < 0 {
				err = fmt.Errorf("negative peak count %d", numPeaks)
			}
			if err == nil && numPeaks == 0 {
				return spec, nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", r.lineNum, key, err)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if !started {
		return nil, io.EOF
	}
	if numPeaks < 0 {
		return nil, fmt.Errorf("line %d: entry %q has no peak count", r.lineNum, spec.Name())
	}
	return nil, fmt.Errorf("line %d: entry %q ends after %d of %d peaks", r.lineNum, spec.Name(), len(spec.Peaks), numPeaks)
}

func (r *Reader) parseName(spec *core.Spectrum, name string) error {
	seq, chargeStr, ok := cutLast(name, "/")
	if !ok {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}
	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	spec.Charge = charge

	if r.format == SPTXT {
		spec.Sequence, spec.Modifications, err = r.parseInlineModifications(seq)
		return err
	}
	spec.Sequence = seq
	return nil
}

// parseComment reads the space separated key=value pairs of a Comment line.
// Unparseable values are skipped.
func (r *Reader) parseComment(spec *core.Spectrum, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				spec.PrecursorMZ = mz
			}
		case "Collision_energy", "CollisionEnergy":
			if ce, err := strconv.ParseFloat(value, 64); err == nil {
				spec.CollisionEnergy = &ce
			}
		case "iRT", "RetentionTime":
			// SpectraST lists several retention times; the first is the consensus.
			first, _, _ := strings.Cut(value, ",")
			if rt, err := strconv.ParseFloat(first, 64); err == nil {
				spec.RetentionTime = &rt
			}
		case "Mods":
			r.parseMods(spec, value)
		case "ModString":
			r.parseModString(spec, value)
		}
	}
}

// parseMods reads "count/pos,AA,Name/pos,AA,Name...", positions 0-based with
// -1 for the N-terminus.
func (r *Reader) parseMods(spec *core.Spectrum, value string) {
	parts := strings.Split(value, "/")
	for _, entry := range parts[1:] {
		fields := strings.Split(entry, ",")
		if len(fields) < 3 {
			continue
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		r.addNamedMod(spec, fields[2], pos)
	}
}

// parseModString reads "SEQUENCE//Name@Pos;Name@Pos/charge" with 1-based
// positions.
func (r *Reader) parseModString(spec *core.Spectrum, value string) {
	_, mods, ok := strings.Cut(value, "//")
	if !ok {
		return
	}
	mods, _, _ = strings.Cut(mods, "/")
	for _, m := range strings.Split(mods, ";") {
		name, posStr, ok := strings.Cut(strings.TrimSpace(m), "@")
		if !ok {
			continue
		}
		pos, err := core.ParsePosition(posStr)
		if err != nil {
			continue
		}
		r.addNamedMod(spec, name, pos)
	}
}

// addNamedMod names the modification at pos, adding it if no inline mass was
// seen there. Unknown names are skipped.
func (r *Reader) addNamedMod(spec *core.Spectrum, name string, pos int) {
	def, ok := r.mods.Get(name)
	if !ok {
		r.log.Debug("unknown modification", "name", name, "spectrum", spec.Name(), "line", r.lineNum)
		return
	}
	for i := range spec.Modifications {
		if spec.Modifications[i].Position == pos {
			spec.Modifications[i].Name = def.Name
			spec.Modifications[i].Mass = def.Mass
			return
		}
	}
	spec.Modifications = append(spec.Modifications, core.Modification{Mass: def.Mass, Position: pos, Name: def.Name})
}

// parsePeak reads "mz intensity [annotation ...]".
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}
	peak := core.Peak{MZ: mz, Intensity: intensity}
	if len(fields) >= 3 {
		// Drop the mass error suffix, as in "y3/0.5ppm".
		annotation := strings.Trim(fields[2], `"`)
		annotation, _, _ = strings.Cut(annotation, "/")
		peak.Annotation = annotation
	}
	return peak, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
