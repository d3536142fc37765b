// Package resolve maps free-text spreadsheet values onto canonical taxonomy
// ids and onto the fixed employee categorical vocabularies.
//
// Roles are open vocabulary: an unknown role title is kept as typed.
// Locations and levels are closed: an unknown value resolves to nothing.
package resolve

import (
	"sort"
	"strings"

	"github.com/ignite/paybench/internal/datanorm"
	"github.com/ignite/paybench/internal/taxonomy"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Resolver is safe for concurrent use; it only reads its Index.
type Resolver struct {
	ix *taxonomy.Index
}

func New(ix *taxonomy.Index) *Resolver {
	return &Resolver{ix: ix}
}

// Index returns the taxonomy the resolver reads from.
func (r *Resolver) Index() *taxonomy.Index { return r.ix }

// Match resolves text to an entity id of kind: exact normalized lookup first,
// then the first alias in index order that contains the input or is
// contained by it.
func (r *Resolver) Match(kind taxonomy.Kind, text string) (string, bool) {
	key := datanorm.Normalize(text)
	if key == "" {
		return "", false
	}
	if e, ok := r.ix.Lookup(kind, key); ok {
		return e.ID, true
	}

	var id string
	r.ix.Scan(kind, func(a taxonomy.Alias) bool {
		if strings.Contains(a.Key, key) || strings.Contains(key, a.Key) {
			id = a.ID
			return false
		}
		return true
	})
	return id, id != ""
}

// MatchRole returns the canonical role id, or the trimmed input when no role
// matches. Empty input yields "".
func (r *Resolver) MatchRole(text string) string {
	if id, ok := r.Match(taxonomy.KindRole, text); ok {
		return id
	}
	return strings.TrimSpace(text)
}

// IsCanonicalRole reports whether id names a taxonomy role rather than a
// free-text title.
func (r *Resolver) IsCanonicalRole(id string) bool {
	_, ok := r.ix.Get(taxonomy.KindRole, id)
	return ok
}

func (r *Resolver) MatchLocation(text string) (string, bool) {
	return r.Match(taxonomy.KindLocation, text)
}

func (r *Resolver) MatchLevel(text string) (string, bool) {
	return r.Match(taxonomy.KindLevel, text)
}

// Location resolves text and returns the full location entity.
func (r *Resolver) Location(text string) (taxonomy.Entity, bool) {
	id, ok := r.MatchLocation(text)
	if !ok {
		return taxonomy.Entity{}, false
	}
	return r.ix.Get(taxonomy.KindLocation, id)
}

// Suggest returns up to limit display names of kind that look like text,
// closest first. Used to enrich "unknown location" style messages.
func (r *Resolver) Suggest(kind taxonomy.Kind, text string, limit int) []string {
	key := datanorm.Normalize(text)
	if key == "" || limit <= 0 {
		return nil
	}

	entities := r.ix.Entities(kind)
	type candidate struct {
		name  string
		dist  int
		order int
	}
	var out []candidate
	for i, e := range entities {
		name := datanorm.Normalize(e.DisplayName)
		dist := fuzzy.LevenshteinDistance(key, name)
		if fuzzy.MatchNormalizedFold(key, name) || dist <= maxEdits(key) {
			out = append(out, candidate{name: e.DisplayName, dist: dist, order: i})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].dist != out[j].dist {
			return out[i].dist < out[j].dist
		}
		return out[i].order < out[j].order
	})

	names := make([]string, 0, limit)
	for _, c := range out {
		if len(names) == limit {
			break
		}
		names = append(names, c.name)
	}
	return names
}

func maxEdits(key string) int {
	if n := len([]rune(key)) / 3; n > 2 {
		return n
	}
	return 2
}
