package categorizer

import (
	"context"
	"fmt"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
)

// Step is a single stage of the per-record classification pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *RecordState) error
}

// RecordState holds what the stages have learned about one record so far.
type RecordState struct {
	Record    domain.RawRecord
	Kind      domain.TransactionKind
	Direction domain.Direction
	Merchant  domain.NormalizedMerchant

	Category      string
	RegistryID    string
	CanonicalName string
	Confidence    float64
	Evidence      []string
}

// contribute records that stage changed the result. Confidence only goes up.
func (s *RecordState) contribute(stage string, score float64) {
	s.Evidence = append(s.Evidence, stage)
	if score > s.Confidence {
		s.Confidence = score
	}
}

// Step 1: AnalyzeStep derives kind and direction and normalizes the merchant.
type AnalyzeStep struct{}

func (s *AnalyzeStep) Name() string { return "analyze" }

func (s *AnalyzeStep) Execute(ctx context.Context, state *RecordState) error {
	state.Kind = DetectKind(state.Record.Description, state.Record.Amount)
	state.Direction = DeriveDirection(state.Kind, state.Record.Amount)
	state.Merchant = NormalizeForKind(state.Record.Description, state.Kind)
	return nil
}

// Step 2: DictionaryStep looks the merchant up in the pass's dictionary snapshot.
type DictionaryStep struct {
	Dictionary *Dictionary
}

func (s *DictionaryStep) Name() string { return StageDictionary }

func (s *DictionaryStep) Execute(ctx context.Context, state *RecordState) error {
	m := s.Dictionary.Lookup(state.Merchant.MatchKey)
	if m == nil {
		return nil
	}
	state.CanonicalName = m.Name
	state.RegistryID = m.RegistryID
	state.Category = m.Category
	state.contribute(StageDictionary, m.Score)
	return nil
}

// Step 3: RegistryStep resolves the merchant against the business registry and
// maps the entity's activity code to a category. It runs unless the dictionary
// already produced a category at or above SkipThreshold.
type RegistryStep struct {
	Registry      RegistryProvider
	Mapper        *ActivityMapper
	SkipThreshold float64
}

func (s *RegistryStep) Name() string { return StageRegistry }

func (s *RegistryStep) Execute(ctx context.Context, state *RecordState) error {
	if s.Registry == nil || state.Merchant.Empty() {
		return nil
	}
	if state.Category != "" && state.Confidence >= s.SkipThreshold {
		return nil
	}

	match, err := s.Registry.ResolveByName(ctx, state.Merchant.CanonicalName)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("RegistryStep: %w", ctx.Err())
		}
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("merchant", state.Merchant.CanonicalName).
			Msg("Registry lookup failed, continuing without it")
		return nil
	}
	if match == nil {
		return nil
	}

	prior := state.Confidence
	if state.RegistryID == "" {
		state.RegistryID = match.RegistryID
	}
	if state.CanonicalName == "" {
		state.CanonicalName = match.DisplayName
	}
	state.contribute(StageRegistry, match.Score)

	category := s.Mapper.CategoryFor(match.ActivityCode)
	if category != "" && (state.Category == "" || match.Score > prior) {
		state.Category = category
		state.contribute(StageActivityCode, match.Score)
	}
	return nil
}

// Step 4: RulesStep applies the deterministic rules when no category is set.
type RulesStep struct {
	Rules []Rule
}

func (s *RulesStep) Name() string { return StageRules }

func (s *RulesStep) Execute(ctx context.Context, state *RecordState) error {
	if state.Category != "" {
		return nil
	}
	if o := MatchRules(s.Rules, state.Merchant.MatchKey, state.Kind); o != nil {
		state.Category = o.Category
		state.contribute(StageRules, o.Score)
	}
	return nil
}

// Step 5: KeywordsStep scores weighted keywords when no category is set.
type KeywordsStep struct {
	Weights []KeywordWeight
}

func (s *KeywordsStep) Name() string { return StageKeywords }

func (s *KeywordsStep) Execute(ctx context.Context, state *RecordState) error {
	if state.Category != "" {
		return nil
	}
	if o := ScoreKeywords(s.Weights, state.Merchant.MatchKey); o != nil {
		state.Category = o.Category
		state.contribute(StageKeywords, o.Score)
	}
	return nil
}

// Step 6: FallbackStep assigns the default category when nothing else did.
type FallbackStep struct {
	DefaultCategory string
}

func (s *FallbackStep) Name() string { return StageFallback }

func (s *FallbackStep) Execute(ctx context.Context, state *RecordState) error {
	if state.Category != "" {
		return nil
	}
	state.Category = s.DefaultCategory
	state.contribute(StageFallback, FallbackConfidence)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *RecordState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// Result converts the state into the output record. The amount sign is made
// consistent with the direction.
func (s *RecordState) Result() domain.CategorizedRecord {
	canonical := s.CanonicalName
	if canonical == "" {
		canonical = s.Merchant.CanonicalName
	}
	var registryID *string
	if s.RegistryID != "" {
		id := s.RegistryID
		registryID = &id
	}
	evidence := make([]string, len(s.Evidence))
	copy(evidence, s.Evidence)

	return domain.CategorizedRecord{
		Date:                  s.Record.Date,
		RawDescription:        s.Record.Description,
		MerchantRaw:           s.Merchant.RawFragment,
		MerchantNormalized:    s.Merchant.CanonicalName,
		MerchantSlug:          s.Merchant.Slug,
		Kind:                  s.Kind,
		Direction:             s.Direction,
		Amount:                signedAmount(s.Record.Amount, s.Direction),
		Category:              s.Category,
		RegistryID:            registryID,
		CanonicalMerchantName: canonical,
		Confidence:            s.Confidence,
		EvidenceChain:         evidence,
		AccountRef:            s.Record.AccountRef,
		Balance:               s.Record.Balance,
	}
}
