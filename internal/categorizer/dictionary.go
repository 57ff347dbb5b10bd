package categorizer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/similarity"
)

// minPartialTokenLen is the shortest word considered by the per-word pass.
const minPartialTokenLen = 4

// DictionaryMatch is the result of a dictionary lookup.
type DictionaryMatch struct {
	Name       string
	RegistryID string
	Category   string
	Score      float64
	Partial    bool
}

type dictionaryPattern struct {
	key   string
	entry domain.DictionaryEntry
}

// Dictionary is an immutable, length-ordered view of dictionary entries.
type Dictionary struct {
	patterns []dictionaryPattern
}

// NewDictionary folds every pattern and orders entries longest first so that
// specific patterns win over generic ones regardless of input order. Entries
// with an empty pattern are dropped.
func NewDictionary(entries []domain.DictionaryEntry) *Dictionary {
	patterns := make([]dictionaryPattern, 0, len(entries))
	for _, e := range entries {
		key := similarity.Fold(e.Pattern)
		if key == "" {
			continue
		}
		patterns = append(patterns, dictionaryPattern{key: key, entry: e})
	}
	sort.SliceStable(patterns, func(i, j int) bool {
		return utf8.RuneCountInString(patterns[i].key) > utf8.RuneCountInString(patterns[j].key)
	})
	return &Dictionary{patterns: patterns}
}

// Len returns the number of usable patterns.
func (d *Dictionary) Len() int {
	return len(d.patterns)
}

// Lookup searches text for a known merchant. A pattern contained in the text
// returns the entry's confidence; failing that, a word of at least four
// characters that contains or is contained in a pattern returns the entry
// with PartialMatchPenalty applied. It returns nil when neither pass matches.
func (d *Dictionary) Lookup(text string) *DictionaryMatch {
	key := similarity.Fold(text)
	if key == "" {
		return nil
	}

	for _, p := range d.patterns {
		if strings.Contains(key, p.key) {
			return newDictionaryMatch(p.entry, p.entry.Confidence, false)
		}
	}

	for _, token := range strings.Fields(key) {
		if utf8.RuneCountInString(token) < minPartialTokenLen {
			continue
		}
		for _, p := range d.patterns {
			if strings.Contains(token, p.key) || strings.Contains(p.key, token) {
				return newDictionaryMatch(p.entry, p.entry.Confidence*PartialMatchPenalty, true)
			}
		}
	}
	return nil
}

func newDictionaryMatch(e domain.DictionaryEntry, score float64, partial bool) *DictionaryMatch {
	return &DictionaryMatch{
		Name:       e.CanonicalName,
		RegistryID: e.RegistryID,
		Category:   e.Category,
		Score:      score,
		Partial:    partial,
	}
}
