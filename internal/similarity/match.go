package similarity

import (
	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

// DefaultThreshold is the minimum score a registry candidate needs to be
// accepted as a match.
const DefaultThreshold = 0.75

// Score compares a folded query against both names of an entity and keeps the
// better of the two.
func Score(query string, e domain.RegistryEntity) float64 {
	best := 0.0
	for _, name := range []string{e.DisplayName, e.LegalName} {
		if name == "" {
			continue
		}
		if s := JaroWinkler(query, Fold(name)); s > best {
			best = s
		}
	}
	return best
}

// Best scans every candidate and returns the highest scoring one, or nil when
// the best score is below threshold. Ties keep the earlier candidate.
func Best(query string, candidates []domain.RegistryEntity, threshold float64) *domain.RegistryMatch {
	query = Fold(query)
	if query == "" {
		return nil
	}

	var best *domain.RegistryMatch
	for _, c := range candidates {
		s := Score(query, c)
		if best == nil || s > best.Score {
			best = &domain.RegistryMatch{RegistryEntity: c, Score: s}
		}
	}
	if best == nil || best.Score < threshold {
		return nil
	}
	return best
}
