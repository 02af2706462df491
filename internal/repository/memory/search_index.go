package memory

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/repository/search"
)

// trigramIndex maps every three-rune window of a profile's folded email and display
// name to the profiles containing it. A query of n >= 3 runes can only match profiles
// holding all of its trigrams, so lookups intersect posting sets and then confirm with
// a substring check.
type trigramIndex struct {
	grams  map[string]map[uuid.UUID]struct{}
	fields map[uuid.UUID][]string
}

func newTrigramIndex() *trigramIndex {
	return &trigramIndex{
		grams:  make(map[string]map[uuid.UUID]struct{}),
		fields: make(map[uuid.UUID][]string),
	}
}

func (ix *trigramIndex) put(id uuid.UUID, fields ...string) {
	ix.remove(id)
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = search.Fold(f)
		for _, g := range search.Trigrams(folded[i]) {
			set, ok := ix.grams[g]
			if !ok {
				set = make(map[uuid.UUID]struct{})
				ix.grams[g] = set
			}
			set[id] = struct{}{}
		}
	}
	ix.fields[id] = folded
}

func (ix *trigramIndex) remove(id uuid.UUID) {
	for _, f := range ix.fields[id] {
		for _, g := range search.Trigrams(f) {
			if set, ok := ix.grams[g]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(ix.grams, g)
				}
			}
		}
	}
	delete(ix.fields, id)
}

// lookup returns the ids of every profile with a field containing query, sorted
// for stable output.
func (ix *trigramIndex) lookup(query string) []uuid.UUID {
	q := search.Fold(query)

	var candidates map[uuid.UUID]struct{}
	grams := search.Trigrams(q)
	if len(grams) == 0 {
		// too short to use the index
		candidates = make(map[uuid.UUID]struct{}, len(ix.fields))
		for id := range ix.fields {
			candidates[id] = struct{}{}
		}
	} else {
		// start from the rarest gram
		sort.Slice(grams, func(i, j int) bool {
			return len(ix.grams[grams[i]]) < len(ix.grams[grams[j]])
		})
		candidates = make(map[uuid.UUID]struct{}, len(ix.grams[grams[0]]))
		for id := range ix.grams[grams[0]] {
			candidates[id] = struct{}{}
		}
		for _, g := range grams[1:] {
			set := ix.grams[g]
			for id := range candidates {
				if _, ok := set[id]; !ok {
					delete(candidates, id)
				}
			}
		}
	}

	var ids []uuid.UUID
	for id := range candidates {
		for _, f := range ix.fields[id] {
			if strings.Contains(f, q) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return ix.fields[ids[i]][0] < ix.fields[ids[j]][0]
	})
	return ids
}
