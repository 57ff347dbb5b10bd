package inmemory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/schollz/closestmatch"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/similarity"
)

// Registry resolves names by scoring every entity.
type Registry struct {
	entities  []domain.RegistryEntity
	threshold float64
}

// NewRegistry copies entities. A threshold of zero selects
// similarity.DefaultThreshold.
func NewRegistry(entities []domain.RegistryEntity, threshold float64) *Registry {
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}
	return &Registry{entities: append([]domain.RegistryEntity(nil), entities...), threshold: threshold}
}

// ResolveByName returns the best entity at or above the threshold, or nil.
func (r *Registry) ResolveByName(ctx context.Context, name string) (*domain.RegistryMatch, error) {
	return similarity.Best(name, r.entities, r.threshold), nil
}

// Len returns the number of entities.
func (r *Registry) Len() int {
	return len(r.entities)
}

// IndexedRegistry shortlists candidates by character n-gram overlap and then
// scores only the shortlist with Jaro-Winkler. It trades exhaustiveness for
// speed on large registries: a name whose n-grams share little with the query
// can be missed even if its Jaro-Winkler score would pass.
type IndexedRegistry struct {
	threshold float64
	shortlist int
	byKey     map[string][]int
	entities  []domain.RegistryEntity

	mu    sync.Mutex
	index *closestmatch.ClosestMatch
}

// indexBagSizes are the n-gram lengths the index is built with.
var indexBagSizes = []int{2, 3}

// NewIndexedRegistry indexes the folded display and legal names of entities.
// shortlist is how many index keys are re-scored per query.
func NewIndexedRegistry(entities []domain.RegistryEntity, threshold float64, shortlist int) *IndexedRegistry {
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}
	if shortlist <= 0 {
		shortlist = 10
	}

	r := &IndexedRegistry{
		threshold: threshold,
		shortlist: shortlist,
		byKey:     make(map[string][]int),
		entities:  append([]domain.RegistryEntity(nil), entities...),
	}
	keys := make([]string, 0, 2*len(entities))
	for i, e := range r.entities {
		for _, name := range []string{e.DisplayName, e.LegalName} {
			key := similarity.Fold(name)
			if key == "" {
				continue
			}
			if _, ok := r.byKey[key]; !ok {
				keys = append(keys, key)
			}
			r.byKey[key] = appendUnique(r.byKey[key], i)
		}
	}
	r.index = closestmatch.New(keys, indexBagSizes)
	return r
}

// ResolveByName returns the best shortlisted entity at or above the
// threshold, or nil. Ties keep the entity listed first.
func (r *IndexedRegistry) ResolveByName(ctx context.Context, name string) (*domain.RegistryMatch, error) {
	query := similarity.Fold(name)
	if query == "" || len(r.entities) == 0 {
		return nil, nil
	}

	// closestmatch lowercases the keys it indexes but not the query.
	r.mu.Lock()
	keys := r.index.ClosestN(strings.ToLower(query), r.shortlist)
	r.mu.Unlock()

	var ids []int
	for _, k := range keys {
		for _, i := range r.byKey[k] {
			ids = appendUnique(ids, i)
		}
	}
	// Keep registry order so ties resolve the same way as the exhaustive scan.
	slices.Sort(ids)

	candidates := make([]domain.RegistryEntity, 0, len(ids))
	for _, i := range ids {
		candidates = append(candidates, r.entities[i])
	}
	return similarity.Best(query, candidates, r.threshold), nil
}

// Len returns the number of entities.
func (r *IndexedRegistry) Len() int {
	return len(r.entities)
}

func appendUnique(ids []int, id int) []int {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
