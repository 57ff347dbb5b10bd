package bigquery

import (
	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

// DictionaryRow is one row of the merchant_dictionary table.
type DictionaryRow struct {
	Scope         string              `bigquery:"scope"`          // REQUIRED
	Pattern       string              `bigquery:"pattern"`        // REQUIRED
	CanonicalName string              `bigquery:"canonical_name"` // REQUIRED
	RegistryID    bigquery.NullString `bigquery:"registry_id"`    // NULLABLE
	Category      bigquery.NullString `bigquery:"category"`       // NULLABLE
	Confidence    float64             `bigquery:"confidence"`     // REQUIRED
	IsActive      bigquery.NullBool   `bigquery:"is_active"`      // NULLABLE
}

// ToDomain converts the row to a DictionaryEntry.
func (r *DictionaryRow) ToDomain() domain.DictionaryEntry {
	return domain.DictionaryEntry{
		Pattern:       r.Pattern,
		CanonicalName: r.CanonicalName,
		RegistryID:    r.RegistryID.StringVal,
		Category:      r.Category.StringVal,
		Confidence:    r.Confidence,
	}
}

// RegistryRow is one row of the business_registry table. SearchKey holds the
// upper-cased, diacritic-free display and legal names used for prefiltering.
type RegistryRow struct {
	RegistryID   string              `bigquery:"registry_id"`   // REQUIRED
	DisplayName  string              `bigquery:"display_name"`  // REQUIRED
	LegalName    bigquery.NullString `bigquery:"legal_name"`    // NULLABLE
	ActivityCode bigquery.NullString `bigquery:"activity_code"` // NULLABLE
	SearchKey    string              `bigquery:"search_key"`    // REQUIRED
}

// ToDomain converts the row to a RegistryEntity.
func (r *RegistryRow) ToDomain() domain.RegistryEntity {
	return domain.RegistryEntity{
		RegistryID:   r.RegistryID,
		DisplayName:  r.DisplayName,
		LegalName:    r.LegalName.StringVal,
		ActivityCode: r.ActivityCode.StringVal,
	}
}

// ActivityMappingRow is one row of the activity_mappings table.
type ActivityMappingRow struct {
	CodePrefix string `bigquery:"code_prefix"` // REQUIRED
	Category   string `bigquery:"category"`    // REQUIRED
	Priority   int64  `bigquery:"priority"`    // REQUIRED, ascending
}
