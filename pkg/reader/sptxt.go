package reader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/MassKey/pkg/core"
)

// inlineMod matches an optional site letter followed by a bracketed mass.
var inlineMod = regexp.MustCompile(`([a-zA-Z]?)\[(\d+(?:\.\d+)?)\]`)

// Inline terminal masses include the terminal group.
const (
	nTermGroup = core.MassH
	cTermGroup = core.MassO + core.MassH
)

// parseInlineModifications strips the bracketed masses of an SPTXT sequence.
// A residue mass "C[160]" is the residue plus its modification and "n[305]"
// is the N-terminal hydrogen plus the modification. The mass shift is named
// through the modification index, restricted to the modified site.
func (r *Reader) parseInlineModifications(raw string) (string, []core.Modification, error) {
	var (
		seq  strings.Builder
		mods []core.Modification
		last int
	)
	for _, m := range inlineMod.FindAllStringSubmatchIndex(raw, -1) {
		seq.WriteString(raw[last:m[0]])
		last = m[1]

		site := raw[m[2]:m[3]]
		nominal, err := strconv.ParseFloat(raw[m[4]:m[5]], 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid modification mass '%s': %w", raw[m[4]:m[5]], err)
		}

		var (
			pos   int
			shift float64
			sites string
		)
		switch site {
		case "", "n":
			pos, shift, sites = -1, nominal-nTermGroup, string(core.SiteNTerm)
		case "c":
			pos, shift, sites = -2, nominal-cTermGroup, string(core.SiteCTerm)
		default:
			aa := rune(site[0])
			residue, ok := core.ResidueMass(aa)
			if !ok {
				return "", nil, fmt.Errorf("unknown residue '%s' in '%s'", site, raw)
			}
			pos = seq.Len()
			seq.WriteString(site)
			shift, sites = nominal-residue, site
		}
		mods = append(mods, r.resolveInline(raw, pos, shift, sites))
	}
	seq.WriteString(raw[last:])

	sequence := seq.String()
	for i := range mods {
		if mods[i].Position == -2 {
			mods[i].Position = len(sequence)
		}
	}
	return sequence, mods, nil
}

func (r *Reader) resolveInline(raw string, pos int, shift float64, sites string) core.Modification {
	def, ok := r.byMass.Closest(shift, r.modTol, sites)
	if !ok {
		r.log.Warn("unresolved inline modification", "sequence", raw, "site", sites, "shift", core.RoundFloat(shift, 4))
		return core.Modification{Mass: shift, Position: pos, Name: fmt.Sprintf("%.0f", shift)}
	}
	return core.Modification{Mass: def.Mass, Position: pos, Name: def.Name}
}
