package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/store/sqlite"
)

// DetectFormat infers the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msp":
		return MSP, nil
	case ".sptxt":
		return SPTXT, nil
	case ".db", ".sqlite", ".db3":
		return DB, nil
	}
	return "", fmt.Errorf("%w: cannot infer format of %s", ErrUnknownFormat, path)
}

// ParseFormat accepts a format name; "" and "auto" detect it from path.
func ParseFormat(name, path string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "", "auto":
		return DetectFormat(path)
	case MSP, SPTXT, DB:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ReadFile reads every spectrum of the library at path. An mzVault database
// is loaded through the SQLite store.
func ReadFile(path string, format Format, mods *core.ModDatabase, opts ...Option) ([]*core.Spectrum, error) {
	if format == DB {
		return sqlite.Load(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	r, err := NewReader(f, format, mods, append(opts, WithSource(path))...)
	if err != nil {
		return nil, err
	}
	specs, err := ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}
