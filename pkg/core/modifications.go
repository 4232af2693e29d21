// Package core provides modification parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Site codes for terminal modifications. Residues use their one-letter code.
const (
	SiteNTerm = 'n'
	SiteCTerm = 'c'
)

// ModDefinition is a catalogue entry: a named mass shift and the sites it may
// occupy. An empty Sites string means the modification may sit anywhere.
type ModDefinition struct {
	Name  string
	Mass  float64 // monoisotopic mass shift in Daltons
	Sites string  // residue codes plus SiteNTerm/SiteCTerm
}

// AppliesTo reports whether the definition may sit on any of sites. No
// sites intersect nothing.
func (d ModDefinition) AppliesTo(sites string) bool {
	if sites == "" {
		return false
	}
	if d.Sites == "" {
		return true
	}
	return strings.ContainsAny(d.Sites, sites)
}

// ModDatabase stores modification definitions. It is built by the caller and
// passed to whatever needs it; there is no shared global catalogue.
type ModDatabase struct {
	defs   []ModDefinition
	byName map[string]int
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		byName: make(map[string]int),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift[,aa]).
// The aa column lists the residues the modification applies to, e.g. "STY".
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 || line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		name := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}
		if math.IsNaN(mass) || math.IsInf(mass, 0) {
			return fmt.Errorf("line %d: mass must be finite, got '%s'", lineNum, massStr)
		}

		sites := ""
		if len(parts) >= 3 {
			sites = normalizeSites(parts[2])
		}
		db.Add(name, mass, sites)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

func normalizeSites(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "n-term", "nterm", "protein n-term":
		return string(SiteNTerm)
	case "c-term", "cterm", "protein c-term":
		return string(SiteCTerm)
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r == SiteNTerm, r == SiteCTerm:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Add adds a modification, or updates the mass and merges the sites of an
// existing one with the same name.
func (db *ModDatabase) Add(name string, mass float64, sites string) {
	if i, ok := db.byName[name]; ok {
		d := &db.defs[i]
		d.Mass = mass
		for _, r := range sites {
			if !strings.ContainsRune(d.Sites, r) {
				d.Sites += string(r)
			}
		}
		return
	}
	db.byName[name] = len(db.defs)
	db.defs = append(db.defs, ModDefinition{Name: name, Mass: mass, Sites: sites})
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	d, ok := db.Get(name)
	return d.Mass, ok
}

// Get returns the definition registered under name.
func (db *ModDatabase) Get(name string) (ModDefinition, bool) {
	i, ok := db.byName[name]
	if !ok {
		return ModDefinition{}, false
	}
	return db.defs[i], true
}

// Definitions returns a copy of every definition in insertion order.
func (db *ModDatabase) Definitions() []ModDefinition {
	out := make([]ModDefinition, len(db.defs))
	copy(out, db.defs)
	return out
}

// Len returns the number of definitions.
func (db *ModDatabase) Len() int {
	return len(db.defs)
}

// ParseModString parses a modification string like "57.021464@2;15.994915@8" or "Carbamidomethyl@C2;Oxidation@M8"
func (db *ModDatabase) ParseModString(modStr string, sequence string) ([]Modification, error) {
	if modStr == "" {
		return nil, nil
	}

	var mods []Modification
	for _, part := range strings.Split(modStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		nameOrMass, posStr, ok := strings.Cut(part, "@")
		if !ok || strings.Contains(posStr, "@") {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name@position' or 'mass@position'", part)
		}
		nameOrMass = strings.TrimSpace(nameOrMass)

		mass, err := strconv.ParseFloat(nameOrMass, 64)
		if err != nil {
			var known bool
			mass, known = db.GetMass(nameOrMass)
			if !known {
				return nil, fmt.Errorf("unknown modification '%s'", nameOrMass)
			}
		}

		position, err := ParsePosition(posStr)
		if err != nil {
			return nil, fmt.Errorf("invalid position '%s': %w", posStr, err)
		}
		if len(sequence) > 0 && position > len(sequence) {
			return nil, fmt.Errorf("position '%s' is outside sequence %s", posStr, sequence)
		}

		mods = append(mods, Modification{
			Mass:     mass,
			Position: position,
			Name:     nameOrMass,
		})
	}

	return mods, nil
}

// ParsePosition parses a 1-based position that may carry a residue letter
// ("2", "C2") or mark the N-terminus ("-1", "R-1"). It returns a 0-based
// position, or -1 for the N-terminus.
func ParsePosition(posStr string) (int, error) {
	posStr = strings.TrimSpace(posStr)

	if strings.HasSuffix(posStr, "-1") {
		return -1, nil
	}

	posStr = strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTVWY")

	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return 0, fmt.Errorf("invalid position number: %w", err)
	}

	if pos > 0 {
		pos = pos - 1
	}

	return pos, nil
}

// NewDefaultModDatabase returns a new ModDatabase pre-loaded with common
// Unimod modifications. Every call returns an independent copy.
func NewDefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	for _, d := range defaultMods {
		db.Add(d.Name, d.Mass, d.Sites)
	}

	return db
}

var defaultMods = []ModDefinition{
	{"Acetyl", 42.010565, "nKSTC"},
	{"Amidated", -0.984016, "c"},
	{"Biotin", 226.077598, "nK"},
	{"Carbamidomethyl", 57.021464, "CKHDEn"},
	{"Carbamyl", 43.005814, "nKRCM"},
	{"Carboxymethyl", 58.005479, "CKWn"},
	{"Deamidated", 0.984016, "NQR"},
	{"Met->Hse", -29.992806, "M"},
	{"Met->Hsl", -48.003371, "M"},
	{"NIPCAM", 99.068414, "C"},
	{"Phospho", 79.966331, "STYHDCR"},
	{"Dehydrated", -18.010565, "STYDc"},
	{"Propionamide", 71.037114, "CKn"},
	{"Pyro-carbamidomethyl", 39.994915, "C"},
	{"Glu->pyro-Glu", -18.010565, "E"},
	{"Gln->pyro-Glu", -17.026549, "Q"},
	{"Cation:Na", 21.981943, "DEc"},
	{"Methyl", 14.01565, "KRHCDEnc"},
	{"Oxidation", 15.994915, "MWHC"},
	{"Dimethyl", 28.0313, "KRn"},
	{"Trimethyl", 42.04695, "KR"},
	{"Methylthio", 45.987721, "CKDNn"},
	{"Nitrosyl", 28.990164, "CY"},
	{"Val->Gln", 29.002740, "V"},
	{"Ethyl+Deamidated", 29.015316, "NQ"},
	{"Delta:H(5)C(2)", 29.039125, "P"},
	{"Val->Lys", 29.039611, "V"},
	{"Sulfo", 79.956815, "STYC"},
	{"Hex", 162.052824, "KNTW"},
	{"Lipoyl", 188.032956, "K"},
	{"HexNAc", 203.079373, "NST"},
	{"Farnesyl", 204.187801, "C"},
	{"Myristoyl", 210.198366, "CKn"},
	{"PyridoxalPhosphate", 229.014009, "K"},
	{"Palmitoyl", 238.229666, "CKST"},
	{"GeranylGeranyl", 272.250401, "C"},
	{"Phosphopantetheine", 340.085794, "S"},
	{"FAD", 783.141486, "CHY"},
	{"Guanidinyl", 42.021798, "Kn"},
	{"HNE", 156.11503, "CHK"},
	{"Glucuronyl", 176.032088, "nS"},
	{"Glutathione", 305.068156, "C"},
	{"Propionyl", 56.026215, "nKST"},
	{"TMT", 229.162932, "nKHST"},
	{"TMTPro", 304.207146, "nKHST"},
	{"TMT6plex", 229.162932, "nKHST"},
	{"TMT10plex", 229.162932, "nKHST"},
	{"TMT11plex", 229.162932, "nKHST"},
	{"TMT16plex", 304.207146, "nKHST"},
	{"iTRAQ4plex", 144.102063, "nKY"},
	{"iTRAQ8plex", 304.205360, "nKY"},
}
