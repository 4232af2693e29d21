package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ChrisMcGann/MassKey/pkg/core"
)

// DefaultBatchSize is the number of spectra committed per transaction.
const DefaultBatchSize = 1000

// Writer appends spectra to an mzVault database. It is not safe for
// concurrent use.
type Writer struct {
	db        *sql.DB
	tx        *sql.Tx
	compound  *sql.Stmt
	spectrum  *sql.Stmt
	nextID    int
	pending   int
	written   int
	batchSize int
	closed    bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithBatchSize sets how many spectra share one transaction.
func WithBatchSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// NewWriter creates the schema at path and returns a writer for it.
func NewWriter(path string, opts ...WriterOption) (*Writer, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	w := &Writer{db: db, nextID: 1, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(w)
	}
	if err := db.QueryRow(`SELECT COALESCE(MAX(CompoundId), 0) + 1 FROM CompoundTable`).Scan(&w.nextID); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read next compound id: %w", err)
	}
	return w, nil
}

func (w *Writer) begin() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if w.compound, err = tx.Prepare(insertCompound); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare compound statement: %w", err)
	}
	if w.spectrum, err = tx.Prepare(insertSpectrum); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}
	w.tx = tx
	return nil
}

// rollback discards the open batch.
func (w *Writer) rollback() {
	if w.tx == nil {
		return
	}
	w.tx.Rollback()
	w.nextID -= w.pending
	w.written -= w.pending
	w.tx, w.compound, w.spectrum, w.pending = nil, nil, nil, 0
}

func (w *Writer) commit() error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx, w.compound, w.spectrum, w.pending = nil, nil, nil, 0
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// WriteSpectrum inserts spec as one compound and one spectrum row. Peaks are
// sorted by m/z first. A failed insert rolls back the open batch, so no
// compound is left without its spectrum.
func (w *Writer) WriteSpectrum(spec *core.Spectrum) error {
	if w.closed {
		return fmt.Errorf("write to closed writer")
	}
	if !spec.ArePeaksSorted() {
		spec.SortPeaks()
	}
	if w.tx == nil {
		if err := w.begin(); err != nil {
			return err
		}
	}

	mods := spec.ModString()
	tag := "mods:" + mods
	if spec.MassOffset != 0 {
		tag = fmt.Sprintf("%s massOffset:%.6f", tag, spec.MassOffset)
	}
	if _, err := w.compound.Exec(w.nextID, mods, spec.Name(), tag, spec.Sequence, spec.CompoundClass); err != nil {
		w.rollback()
		return fmt.Errorf("failed to insert compound: %w", err)
	}

	_, err := w.spectrum.Exec(
		w.nextID, // SpectrumId, 1:1 with CompoundId
		w.nextID,
		nullable(spec.RetentionTime),
		spec.PrecursorMZ,
		core.CalculateNeutralMass(spec.Sequence, spec.Modifications),
		nullable(spec.CollisionEnergy),
		spec.FragmentationMode,
		spec.MassAnalyzer,
		spec.Instrument,
		encodeFloat64s(spec.Peaks, func(p core.Peak) float64 { return p.MZ }),
		encodeFloat64s(spec.Peaks, func(p core.Peak) float64 { return p.Intensity }),
	)
	if err != nil {
		w.rollback()
		return fmt.Errorf("failed to insert spectrum: %w", err)
	}

	w.nextID++
	w.pending++
	w.written++
	if w.pending >= w.batchSize {
		return w.commit()
	}
	return nil
}

// Written returns the number of spectra written by this writer. Rows of a
// rolled back batch are not counted.
func (w *Writer) Written() int {
	return w.written
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Finalize commits pending rows, writes the header and maintenance tables
// and closes the database. Further calls are no-ops.
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.commit()
	if err == nil {
		now := time.Now()
		err = w.writeHeader(now.Format(headerDateFormat))
		if err == nil {
			_, err = w.db.Exec(`INSERT INTO MaintenanceTable (CreationDate, NoofCompoundsModified, Description) VALUES (?, NULL, '')`,
				now.Format(maintenanceDateFormat))
			if err != nil {
				err = fmt.Errorf("failed to insert maintenance: %w", err)
			}
		}
	}
	if cerr := w.db.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close database: %w", cerr)
	}
	return err
}

// writeHeader creates the single HeaderTable row, or bumps its
// LastModifiedDate when appending to an existing database.
func (w *Writer) writeHeader(date string) error {
	res, err := w.db.Exec(`UPDATE HeaderTable SET LastModifiedDate = ?`, date)
	if err != nil {
		return fmt.Errorf("failed to update header: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description, Company, ReadOnly, UserAccess, PartialEdits)
		VALUES (?, ?, ?, '', '', 0, '', 0)`,
		schemaVersion, date, date)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}
	return nil
}

// Close is Finalize.
func (w *Writer) Close() error {
	return w.Finalize()
}
