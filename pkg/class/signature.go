package class

import (
	"sort"
	"strings"

	"github.com/justyntemme/gomedian/pkg/max"
)

// signatures is the closed set of argument kind tuples a named selector may
// take: every mix of ints and symbols up to the host's maximum arity, plus an
// all-float tuple of each length.
var signatures = buildSignatures()

func buildSignatures() map[string][]max.AtomType {
	table := make(map[string][]max.AtomType)
	for n := 1; n <= max.MaxTypedArgs; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			kinds := make([]max.AtomType, n)
			for i := range kinds {
				if mask&(1<<i) != 0 {
					kinds[i] = max.ASym
				} else {
					kinds[i] = max.ALong
				}
			}
			table[signatureKey(kinds)] = kinds
		}
		floats := make([]max.AtomType, n)
		for i := range floats {
			floats[i] = max.AFloat
		}
		table[signatureKey(floats)] = floats
	}
	return table
}

func signatureKey(kinds []max.AtomType) string {
	var b strings.Builder
	for _, k := range kinds {
		switch k.Base() {
		case max.ALong:
			b.WriteByte('i')
		case max.AFloat:
			b.WriteByte('f')
		case max.ASym:
			b.WriteByte('s')
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}

// Supported reports whether kinds is in the signature table. DEF* variants
// count as their base kind.
func Supported(kinds []max.AtomType) bool {
	_, ok := signatures[signatureKey(kinds)]
	return ok
}

// Signatures lists the table, shortest tuples first.
func Signatures() [][]max.AtomType {
	keys := make([]string, 0, len(signatures))
	for k := range signatures {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	out := make([][]max.AtomType, len(keys))
	for i, k := range keys {
		out[i] = append([]max.AtomType(nil), signatures[k]...)
	}
	return out
}
