package usecase

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hoopsync/hoopsync/internal/domain/roster"
)

// ReconcileDiagnostics reports how roster identities were matched against
// the statistics keyspace. Unmatched players are a diagnostic, not an error.
type ReconcileDiagnostics struct {
	MatchedExact      int      `json:"matchedExact"`
	MatchedNormalized int      `json:"matchedNormalized"`
	Unmatched         []string `json:"unmatched,omitempty"`
}

var nameFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var nameSuffixes = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {}, "v": {},
}

// ReconcileIdentities maps roster players onto stat bundles keyed by
// display name. Exact name lookup always wins; only players that miss get
// the normalized-name scan. The normalized index is built once per call and
// keeps the first bundle (in sorted keyspace order) for each folded name.
func ReconcileIdentities(players []roster.Player, keyspace map[string]StatBundle) (map[string]StatBundle, ReconcileDiagnostics) {
	matched := make(map[string]StatBundle, len(players))
	diag := ReconcileDiagnostics{}

	var normalizedIndex map[string]StatBundle
	for _, p := range players {
		if bundle, ok := keyspace[p.Name]; ok {
			matched[p.PlayerKey] = bundle
			diag.MatchedExact++
			continue
		}

		if normalizedIndex == nil {
			normalizedIndex = buildNormalizedIndex(keyspace)
		}
		if bundle, ok := normalizedIndex[normalizeName(p.Name)]; ok {
			matched[p.PlayerKey] = bundle
			diag.MatchedNormalized++
			continue
		}

		diag.Unmatched = append(diag.Unmatched, p.Name)
	}

	return matched, diag
}

func buildNormalizedIndex(keyspace map[string]StatBundle) map[string]StatBundle {
	names := make([]string, 0, len(keyspace))
	for name := range keyspace {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]StatBundle, len(names))
	for _, name := range names {
		folded := normalizeName(name)
		if folded == "" {
			continue
		}
		if _, exists := index[folded]; exists {
			continue
		}
		index[folded] = keyspace[name]
	}
	return index
}

// normalizeName lower-cases, folds diacritics, strips punctuation, drops
// generational suffixes and collapses whitespace.
func normalizeName(name string) string {
	folded, _, err := transform.String(nameFolder, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	parts := strings.Fields(b.String())
	if len(parts) > 1 {
		if _, isSuffix := nameSuffixes[parts[len(parts)-1]]; isSuffix {
			parts = parts[:len(parts)-1]
		}
	}
	return strings.Join(parts, " ")
}
