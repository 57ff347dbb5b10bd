package bigquery

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/similarity"
)

const (
	dictionaryTable      = "merchant_dictionary"
	registryTable        = "business_registry"
	activityMappingTable = "activity_mappings"

	// minCandidateTokenLen is the shortest query word used to prefilter
	// registry candidates.
	minCandidateTokenLen = 3
)

// ListDictionaryEntriesWithClient returns the active entries of scope plus the
// shared "default" scope.
func ListDictionaryEntriesWithClient(ctx context.Context, client *bigquery.Client, dataset, scope string) ([]domain.DictionaryEntry, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  scope,
		  pattern,
		  canonical_name,
		  registry_id,
		  category,
		  confidence,
		  is_active
		FROM %s.%s
		WHERE scope IN (@scope, 'default')
		  AND IFNULL(is_active, TRUE)
		ORDER BY IF(scope = @scope, 0, 1), pattern
	`, dataset, dictionaryTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "scope", Value: scope},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListDictionaryEntries: query read: %w", err)
	}

	var entries []domain.DictionaryEntry
	for {
		var r DictionaryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListDictionaryEntries: iter next: %w", err)
		}
		entries = append(entries, r.ToDomain())
	}

	return entries, nil
}

// ListRegistryCandidatesWithClient returns up to limit registry rows whose
// search key shares at least one word with name.
func ListRegistryCandidatesWithClient(ctx context.Context, client *bigquery.Client, dataset, name string, limit int) ([]domain.RegistryEntity, error) {
	tokens := CandidateTokens(name)
	if len(tokens) == 0 {
		return nil, nil
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
		  registry_id,
		  display_name,
		  legal_name,
		  activity_code,
		  search_key
		FROM %s.%s r
		WHERE EXISTS (
		  SELECT 1 FROM UNNEST(@tokens) AS token
		  WHERE STRPOS(r.search_key, token) > 0
		)
		ORDER BY registry_id
		LIMIT @limit
	`, dataset, registryTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tokens", Value: tokens},
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRegistryCandidates: query read: %w", err)
	}

	var entities []domain.RegistryEntity
	for {
		var r RegistryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRegistryCandidates: iter next: %w", err)
		}
		entities = append(entities, r.ToDomain())
	}

	return entities, nil
}

// ListActivityMappingsWithClient returns the activity-code table in priority order.
func ListActivityMappingsWithClient(ctx context.Context, client *bigquery.Client, dataset string) ([]domain.ActivityMapping, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  code_prefix,
		  category,
		  priority
		FROM %s.%s
		ORDER BY priority, code_prefix
	`, dataset, activityMappingTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActivityMappings: query read: %w", err)
	}

	var mappings []domain.ActivityMapping
	for {
		var r ActivityMappingRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActivityMappings: iter next: %w", err)
		}
		mappings = append(mappings, domain.ActivityMapping{CodePrefix: r.CodePrefix, Category: r.Category})
	}

	return mappings, nil
}

// CandidateTokens splits the folded name into distinct words long enough to
// prefilter on.
func CandidateTokens(name string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(similarity.Fold(name)) {
		if utf8.RuneCountInString(tok) < minCandidateTokenLen || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}
