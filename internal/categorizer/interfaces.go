package categorizer

import (
	"context"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

// DictionaryProvider supplies the merchant dictionary for a classification
// pass. Implementations may read a static table or a persisted store; the
// categorizer loads entries once per pass and never mutates them.
type DictionaryProvider interface {
	// LoadDictionaryEntries returns every entry visible to scope. Order does
	// not matter: the matcher sorts by pattern length.
	LoadDictionaryEntries(ctx context.Context, scope string) ([]domain.DictionaryEntry, error)
}

// RegistryProvider resolves a normalized merchant name to a known business.
// It may be backed by a network or database call, so it takes a context and
// is allowed to fail; the categorizer treats failures as "no match".
type RegistryProvider interface {
	// ResolveByName returns the best entity at or above the provider's
	// similarity threshold, or nil when nothing is close enough.
	ResolveByName(ctx context.Context, name string) (*domain.RegistryMatch, error)
}

// ActivityMappingProvider is implemented by dictionary providers that also
// store the activity-code table. When the dictionary provider implements it
// and Options.ActivityMappings is nil, each pass loads the table from it.
type ActivityMappingProvider interface {
	LoadActivityMappings(ctx context.Context) ([]domain.ActivityMapping, error)
}
