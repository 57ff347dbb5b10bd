// Package categorizer assigns a merchant identity, a spending category and a
// confidence to raw bank-statement lines.
//
// A Categorizer is built once with its reference providers and options. Each
// batch runs in a Pass that holds a snapshot of the dictionary taken at the
// start of the batch, so a concurrent reload never changes results mid-batch.
package categorizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
)

// Options tune a Categorizer. Zero values select the defaults.
type Options struct {
	DefaultCategory         string
	DictionarySkipThreshold float64
	DictionaryScope         string

	// Workers bounds how many records of a batch are classified at once.
	// Values below 2 classify sequentially.
	Workers int

	// AllowEmptyDictionary lets a pass start with no dictionary entries.
	AllowEmptyDictionary bool

	ActivityMappings []domain.ActivityMapping
	Rules            []Rule
	KeywordWeights   []KeywordWeight
}

func (o Options) withDefaults() Options {
	if o.DefaultCategory == "" {
		o.DefaultCategory = DefaultCategory
	}
	if o.DictionarySkipThreshold <= 0 {
		o.DictionarySkipThreshold = DefaultDictionarySkipThreshold
	}
	if o.DictionaryScope == "" {
		o.DictionaryScope = DefaultDictionaryScope
	}
	if o.ActivityMappings == nil {
		o.ActivityMappings = DefaultActivityMappings
	}
	if o.Rules == nil {
		o.Rules = DefaultRules
	}
	if o.KeywordWeights == nil {
		o.KeywordWeights = DefaultKeywordWeights
	}
	return o
}

// Categorizer classifies RawRecords against swappable reference providers.
type Categorizer struct {
	dictionary DictionaryProvider
	registry   RegistryProvider
	mapper     *ActivityMapper
	opts       Options

	// mappings is non-nil when activity mappings are loaded per pass.
	mappings ActivityMappingProvider
}

// New creates a Categorizer. registry may be nil, in which case the registry
// stage never contributes.
func New(dictionary DictionaryProvider, registry RegistryProvider, opts Options) *Categorizer {
	c := &Categorizer{
		dictionary: dictionary,
		registry:   registry,
	}
	if amp, ok := dictionary.(ActivityMappingProvider); ok && opts.ActivityMappings == nil {
		c.mappings = amp
	}
	c.opts = opts.withDefaults()
	c.mapper = NewActivityMapper(c.opts.ActivityMappings)
	return c
}

// Pass is a classification pass bound to one dictionary snapshot.
type Pass struct {
	pipeline        *Pipeline
	defaultCategory string
	workers         int
	dictionarySize  int
}

// Prepare loads the dictionary and builds the stage pipeline. A load failure
// wraps ErrReferenceLoad; an empty dictionary returns ErrEmptyDictionary unless
// Options.AllowEmptyDictionary is set.
func (c *Categorizer) Prepare(ctx context.Context) (*Pass, error) {
	if c.dictionary == nil {
		return nil, fmt.Errorf("Prepare: no dictionary provider: %w", ErrReferenceLoad)
	}
	entries, err := c.dictionary.LoadDictionaryEntries(ctx, c.opts.DictionaryScope)
	if err != nil {
		return nil, fmt.Errorf("Prepare: loading dictionary %q: %w: %w", c.opts.DictionaryScope, ErrReferenceLoad, err)
	}
	dict := NewDictionary(entries)
	if dict.Len() == 0 && !c.opts.AllowEmptyDictionary {
		return nil, fmt.Errorf("Prepare: scope %q: %w", c.opts.DictionaryScope, ErrEmptyDictionary)
	}

	mapper := c.mapper
	if c.mappings != nil {
		mappings, err := c.mappings.LoadActivityMappings(ctx)
		if err != nil {
			return nil, fmt.Errorf("Prepare: loading activity mappings: %w: %w", ErrReferenceLoad, err)
		}
		if len(mappings) > 0 {
			mapper = NewActivityMapper(mappings)
		}
	}

	return &Pass{
		pipeline: NewPipeline(
			&AnalyzeStep{},
			&DictionaryStep{Dictionary: dict},
			&RegistryStep{Registry: c.registry, Mapper: mapper, SkipThreshold: c.opts.DictionarySkipThreshold},
			&RulesStep{Rules: c.opts.Rules},
			&KeywordsStep{Weights: c.opts.KeywordWeights},
			&FallbackStep{DefaultCategory: c.opts.DefaultCategory},
		),
		defaultCategory: c.opts.DefaultCategory,
		workers:         c.opts.Workers,
		dictionarySize:  dict.Len(),
	}, nil
}

// Classify runs a single record in a fresh pass.
func (c *Categorizer) Classify(ctx context.Context, rec domain.RawRecord) (domain.CategorizedRecord, error) {
	pass, err := c.Prepare(ctx)
	if err != nil {
		return domain.CategorizedRecord{}, err
	}
	return pass.Classify(ctx, rec)
}

// ClassifyBatch runs records in a fresh pass. See Pass.ClassifyBatch.
func (c *Categorizer) ClassifyBatch(ctx context.Context, recs []domain.RawRecord) ([]domain.CategorizedRecord, error) {
	pass, err := c.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return pass.ClassifyBatch(ctx, recs)
}

// Categories returns the sorted set of categories the built-in tables and the
// default can produce. Dictionary entries may add more.
func (c *Categorizer) Categories() []string {
	seen := map[string]bool{c.opts.DefaultCategory: true}
	for _, cat := range c.mapper.Categories() {
		seen[cat] = true
	}
	for _, r := range c.opts.Rules {
		seen[r.Category] = true
	}
	for _, kw := range c.opts.KeywordWeights {
		seen[kw.Category] = true
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		if cat != "" {
			out = append(out, cat)
		}
	}
	sort.Strings(out)
	return out
}

// DictionarySize is the number of dictionary patterns in the snapshot.
func (p *Pass) DictionarySize() int {
	return p.dictionarySize
}

// Classify produces the categorized record for rec. A panic inside a stage
// yields the error record instead. The only error returned is context
// cancellation.
func (p *Pass) Classify(ctx context.Context, rec domain.RawRecord) (domain.CategorizedRecord, error) {
	return p.classifyIsolated(ctx, rec)
}

// ClassifyBatch returns exactly one output per input, in input order. A
// record that fails is replaced by its error record and the batch continues.
// Only cancellation of ctx aborts the batch.
func (p *Pass) ClassifyBatch(ctx context.Context, recs []domain.RawRecord) ([]domain.CategorizedRecord, error) {
	batchID := uuid.NewString()
	ctx, log := logger.WithStr(ctx, "batch_id", batchID)
	start := time.Now()

	out := make([]domain.CategorizedRecord, len(recs))
	if p.workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for i, rec := range recs {
			i, rec := i, rec
			g.Go(func() error {
				res, err := p.classifyIsolated(gctx, rec)
				if err != nil {
					return err
				}
				out[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("ClassifyBatch: %w", err)
		}
	} else {
		for i, rec := range recs {
			res, err := p.classifyIsolated(ctx, rec)
			if err != nil {
				return nil, fmt.Errorf("ClassifyBatch: record %d: %w", i, err)
			}
			out[i] = res
		}
	}

	log.Info().
		Int("records", len(recs)).
		Int("failed", CountFailed(out)).
		Int("workers", max(p.workers, 1)).
		Dur("duration", time.Since(start)).
		Msg("Batch classified")
	return out, nil
}

func (p *Pass) classifyIsolated(ctx context.Context, rec domain.RawRecord) (result domain.CategorizedRecord, err error) {
	if err := ctx.Err(); err != nil {
		return domain.CategorizedRecord{}, err
	}

	log := logger.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("description", rec.Description).
				Msg("Record classification failed")
			result, err = p.errorRecord(rec), nil
		}
	}()

	state := &RecordState{Record: rec}
	if err := p.pipeline.Execute(ctx, state); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.CategorizedRecord{}, err
		}
		log.Error().
			Err(err).
			Str("description", rec.Description).
			Msg("Record classification failed")
		return p.errorRecord(rec), nil
	}

	log.Debug().
		Str("merchant", state.Merchant.CanonicalName).
		Str("kind", string(state.Kind)).
		Str("category", state.Category).
		Float64("confidence", state.Confidence).
		Strs("evidence", state.Evidence).
		Msg("Record classified")
	return state.Result(), nil
}

// CountFailed returns how many records are error records.
func CountFailed(recs []domain.CategorizedRecord) int {
	failed := 0
	for _, r := range recs {
		if len(r.EvidenceChain) == 1 && r.EvidenceChain[0] == StageError {
			failed++
		}
	}
	return failed
}

// errorRecord is the minimal output for a record whose classification failed.
func (p *Pass) errorRecord(rec domain.RawRecord) domain.CategorizedRecord {
	state := &RecordState{
		Record:     rec,
		Kind:       domain.KindOther,
		Direction:  DeriveDirection(domain.KindOther, rec.Amount),
		Category:   p.defaultCategory,
		Confidence: ErrorConfidence,
		Evidence:   []string{StageError},
	}
	state.Merchant = safeNormalize(rec.Description)
	return state.Result()
}

func safeNormalize(description string) (m domain.NormalizedMerchant) {
	defer func() {
		if recover() != nil {
			m = domain.NormalizedMerchant{RawFragment: description, CanonicalName: description}
		}
	}()
	return Normalize(description)
}
