package categorizer

import "errors"

// Default values for a classification pass. Thresholds can be overridden
// through Options.
const (
	// DefaultCategory is assigned when no stage produces a category.
	DefaultCategory = "Outros"

	// DefaultDictionarySkipThreshold is the dictionary confidence at which the
	// registry stage is skipped.
	DefaultDictionarySkipThreshold = 0.95

	// DefaultDictionaryScope is the scope key used when none is configured.
	DefaultDictionaryScope = "default"

	// FallbackConfidence is the confidence of the default category.
	FallbackConfidence = 0.4

	// ErrorConfidence is the confidence of a record whose classification failed.
	ErrorConfidence = 0.1

	// PartialMatchPenalty scales the confidence of a per-word dictionary match.
	PartialMatchPenalty = 0.80

	// KeywordConfidenceCap keeps keyword scores below the rule tier.
	KeywordConfidenceCap = 0.89

	// RuleConfidence is the score of the built-in deterministic rules.
	RuleConfidence = 0.9
)

// Stage names recorded in CategorizedRecord.EvidenceChain.
const (
	StageDictionary   = "dictionary"
	StageRegistry     = "registry"
	StageActivityCode = "activity_code"
	StageRules        = "rules"
	StageKeywords     = "keywords"
	StageFallback     = "fallback"
	StageError        = "error"
)

// Spending categories produced by the built-in tables.
const (
	CategoryFood          = "Alimentação"
	CategoryTransport     = "Transporte"
	CategoryHealth        = "Saúde"
	CategoryEducation     = "Educação"
	CategoryHousing       = "Moradia"
	CategoryLeisure       = "Lazer"
	CategoryShopping      = "Compras"
	CategoryServices      = "Serviços"
	CategorySubscriptions = "Assinaturas"
	CategoryBankFees      = "Tarifas Bancárias"
	CategoryTaxes         = "Impostos"
	CategoryTravel        = "Viagem"
)

var (
	// ErrReferenceLoad wraps any failure to load reference tables at the
	// start of a pass. Classification does not start when it is returned.
	ErrReferenceLoad = errors.New("reference data load failed")

	// ErrEmptyDictionary is returned when the dictionary provider yields no
	// entries and Options.AllowEmptyDictionary is false.
	ErrEmptyDictionary = errors.New("dictionary is empty")
)
