// Package suggest proposes existing aliases that look like an unmatched name.
//
// Suggestions are advisory output for operators. Nothing here writes aliases
// or feeds back into identity resolution.
package suggest

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/rickgao/pokerledger/internal/identity"
)

// Suggestion is a known alias close to an unmatched name.
type Suggestion struct {
	Alias    string
	Distance int
}

// DefaultLimit caps the number of suggestions per name.
const DefaultLimit = 3

// For returns up to limit known aliases resembling raw, closest first.
// An alias qualifies when one name is a subsequence of the other or the edit
// distance is within a third of the name length.
func For(raw string, aliases []string, limit int) []Suggestion {
	if limit <= 0 {
		limit = DefaultLimit
	}
	name := identity.Normalize(raw)
	if name == "" {
		return nil
	}
	maxDist := len([]rune(name)) / 3
	if maxDist < 1 {
		maxDist = 1
	}

	best := make(map[string]int)
	consider := func(alias string, dist int) {
		if d, ok := best[alias]; !ok || dist < d {
			best[alias] = dist
		}
	}

	for _, r := range fuzzy.RankFindNormalizedFold(name, aliases) {
		consider(r.Target, r.Distance)
	}
	for _, alias := range aliases {
		if fuzzy.MatchNormalizedFold(alias, name) {
			consider(alias, fuzzy.LevenshteinDistance(alias, name))
			continue
		}
		if d := fuzzy.LevenshteinDistance(name, alias); d <= maxDist {
			consider(alias, d)
		}
	}

	out := make([]Suggestion, 0, len(best))
	for alias, d := range best {
		if alias == name {
			continue
		}
		out = append(out, Suggestion{Alias: alias, Distance: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Alias < out[j].Alias
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
