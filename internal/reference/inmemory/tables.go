// Package inmemory provides static-table reference providers: the merchant
// dictionary and the business registry, loaded from built-in defaults or from
// a YAML file on disk or in Cloud Storage.
package inmemory

import (
	"fmt"

	"github.com/ghodss/yaml"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

// DefaultScope holds dictionary entries visible to every scope.
const DefaultScope = "default"

// Tables is the full set of reference data, keyed the way the YAML file is.
//
//	dictionary:
//	  default:
//	    - pattern: TONIN
//	      canonical_name: Tonin Supermercados
//	      category: Alimentação
//	      confidence: 0.98
//	registry:
//	  - registry_id: "11222333000181"
//	    display_name: Padaria Pão Dourado
//	    activity_code: 4721-1/02
//	activity_mappings:
//	  - code_prefix: "4721"
//	    category: Alimentação
type Tables struct {
	Dictionary       map[string][]domain.DictionaryEntry `json:"dictionary"`
	Registry         []domain.RegistryEntity             `json:"registry"`
	ActivityMappings []domain.ActivityMapping            `json:"activity_mappings,omitempty"`
}

// Stats summarizes table sizes.
type Stats struct {
	DictionaryEntries int            `json:"dictionary_entries"`
	Scopes            map[string]int `json:"scopes"`
	RegistryEntities  int            `json:"registry_entities"`
	ActivityMappings  int            `json:"activity_mappings"`
}

// ParseTables decodes YAML (or JSON) reference tables and validates them.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("ParseTables: decoding yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("ParseTables: %w", err)
	}
	return &t, nil
}

// Validate rejects entries the matchers cannot use.
func (t *Tables) Validate() error {
	for scope, entries := range t.Dictionary {
		for i, e := range entries {
			if e.Pattern == "" {
				return fmt.Errorf("dictionary %q entry %d: empty pattern", scope, i)
			}
			if e.CanonicalName == "" {
				return fmt.Errorf("dictionary %q entry %d (%s): empty canonical_name", scope, i, e.Pattern)
			}
			if e.Confidence <= 0 || e.Confidence > 1 {
				return fmt.Errorf("dictionary %q entry %d (%s): confidence %v out of (0,1]", scope, i, e.Pattern, e.Confidence)
			}
		}
	}
	for i, r := range t.Registry {
		if r.RegistryID == "" {
			return fmt.Errorf("registry entity %d: empty registry_id", i)
		}
		if r.DisplayName == "" && r.LegalName == "" {
			return fmt.Errorf("registry entity %s: no name", r.RegistryID)
		}
	}
	return nil
}

// Stats counts the entries in t.
func (t *Tables) Stats() Stats {
	s := Stats{
		Scopes:           make(map[string]int, len(t.Dictionary)),
		RegistryEntities: len(t.Registry),
		ActivityMappings: len(t.ActivityMappings),
	}
	for scope, entries := range t.Dictionary {
		s.Scopes[scope] = len(entries)
		s.DictionaryEntries += len(entries)
	}
	return s
}

// entriesFor returns scope's own entries followed by the shared ones.
func (t *Tables) entriesFor(scope string) []domain.DictionaryEntry {
	var out []domain.DictionaryEntry
	if scope != DefaultScope {
		out = append(out, t.Dictionary[scope]...)
	}
	return append(out, t.Dictionary[DefaultScope]...)
}
