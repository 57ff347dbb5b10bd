package domain

// DictionaryEntry maps a description substring to a known merchant.
type DictionaryEntry struct {
	Pattern       string  `json:"pattern"`
	CanonicalName string  `json:"canonical_name"`
	RegistryID    string  `json:"registry_id,omitempty"`
	Category      string  `json:"category,omitempty"`
	Confidence    float64 `json:"confidence"` // in (0,1]
}

// RegistryEntity is a business-registry record used for fuzzy name resolution.
type RegistryEntity struct {
	RegistryID   string `json:"registry_id"`
	DisplayName  string `json:"display_name"`
	LegalName    string `json:"legal_name"`
	ActivityCode string `json:"activity_code"`
}

// RegistryMatch is a RegistryEntity together with the similarity score that
// selected it.
type RegistryMatch struct {
	RegistryEntity
	Score float64 `json:"score"`
}

// ActivityMapping assigns a spending category to every activity code starting
// with CodePrefix.
type ActivityMapping struct {
	CodePrefix string `json:"code_prefix"`
	Category   string `json:"category"`
}
