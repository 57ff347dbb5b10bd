package categorizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
	"github.com/dvloznov/merchant-categorizer/internal/similarity"
)

// mockDictionary is a DictionaryProvider backed by a slice.
type mockDictionary struct {
	entries []domain.DictionaryEntry
	err     error
	scopes  []string
}

func (m *mockDictionary) LoadDictionaryEntries(ctx context.Context, scope string) ([]domain.DictionaryEntry, error) {
	m.scopes = append(m.scopes, scope)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.DictionaryEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

// mockRegistry resolves names with the exhaustive similarity search and lets
// tests inject failures.
type mockRegistry struct {
	entities  []domain.RegistryEntity
	threshold float64
	calls     atomic.Int32
	resolveFn func(name string) (*domain.RegistryMatch, error)
}

func (m *mockRegistry) ResolveByName(ctx context.Context, name string) (*domain.RegistryMatch, error) {
	m.calls.Add(1)
	if m.resolveFn != nil {
		return m.resolveFn(name)
	}
	threshold := m.threshold
	if threshold == 0 {
		threshold = similarity.DefaultThreshold
	}
	return similarity.Best(name, m.entities, threshold), nil
}

func testRegistryEntities() []domain.RegistryEntity {
	return []domain.RegistryEntity{
		{RegistryID: "1", DisplayName: "Auto Peças Brasília", LegalName: "Auto Pecas Brasilia Ltda", ActivityCode: "4530-7/03"},
		{RegistryID: "2", DisplayName: "Padaria Pão Dourado", LegalName: "Dourado Comercio de Alimentos Ltda", ActivityCode: "4721-1/02"},
	}
}

func newTestCategorizer(registry RegistryProvider, opts Options) *Categorizer {
	return New(&mockDictionary{entries: testDictionaryEntries()}, registry, opts)
}

func record(description, amount string) domain.RawRecord {
	return domain.RawRecord{
		Date:        "2024-03-01",
		Description: description,
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestClassify_DictionaryExactMatch(t *testing.T) {
	registry := &mockRegistry{entities: testRegistryEntities()}
	c := newTestCategorizer(registry, Options{})

	got, err := c.Classify(context.Background(), record("PAGAMENTO PIX TONIN SUPERMERCADOS 123456", "-150.00"))
	require.NoError(t, err)

	assert.Equal(t, domain.KindPixDebit, got.Kind)
	assert.Equal(t, domain.DirectionOutflow, got.Direction)
	assert.Contains(t, got.MerchantNormalized, "Tonin")
	assert.Equal(t, "Tonin Supermercados", got.CanonicalMerchantName)
	assert.Equal(t, CategoryFood, got.Category)
	assert.GreaterOrEqual(t, got.Confidence, 0.95)
	assert.Equal(t, "-150", got.Amount.String())
	assert.Equal(t, []string{StageDictionary}, got.EvidenceChain)
	assert.Nil(t, got.RegistryID)
	// A confident dictionary hit skips the registry.
	assert.Equal(t, int32(0), registry.calls.Load())
}

func TestClassify_FuzzyRegistryFallback(t *testing.T) {
	c := newTestCategorizer(&mockRegistry{entities: testRegistryEntities()}, Options{})

	got, err := c.Classify(context.Background(), record("COMPRA CARTAO PADARIA PAO DORADO", "-12.50"))
	require.NoError(t, err)

	assert.Equal(t, domain.KindCardPurchase, got.Kind)
	assert.Equal(t, CategoryFood, got.Category)
	assert.Equal(t, []string{StageRegistry, StageActivityCode}, got.EvidenceChain)
	require.NotNil(t, got.RegistryID)
	assert.Equal(t, "2", *got.RegistryID)
	assert.Equal(t, "Padaria Pão Dourado", got.CanonicalMerchantName)
	assert.Equal(t, "Padaria Pao Dorado", got.MerchantNormalized)
	assert.InDelta(t, 0.9895, got.Confidence, 1e-4)
}

func TestClassify_PureFallback(t *testing.T) {
	c := newTestCategorizer(&mockRegistry{entities: testRegistryEntities()}, Options{})

	got, err := c.Classify(context.Background(), record("XYZ UNKNOWN MERCHANT 000", "-10.00"))
	require.NoError(t, err)

	assert.Equal(t, DefaultCategory, got.Category)
	assert.Equal(t, FallbackConfidence, got.Confidence)
	assert.Equal(t, []string{StageFallback}, got.EvidenceChain)
	assert.Equal(t, domain.DirectionOutflow, got.Direction)
	assert.Equal(t, "-10", got.Amount.String())
}

func TestClassify_KeywordOnlyBelowRuleTier(t *testing.T) {
	c := newTestCategorizer(&mockRegistry{entities: testRegistryEntities()}, Options{})

	got, err := c.Classify(context.Background(), record("PANIFICADORA SANTA CLARA", "-8.00"))
	require.NoError(t, err)

	assert.Equal(t, CategoryFood, got.Category)
	assert.Equal(t, []string{StageKeywords}, got.EvidenceChain)
	assert.Less(t, got.Confidence, RuleConfidence)
	assert.LessOrEqual(t, got.Confidence, KeywordConfidenceCap)
}

func TestClassify_RuleMatch(t *testing.T) {
	c := newTestCategorizer(nil, Options{})

	got, err := c.Classify(context.Background(), record("COMPRA CARTAO POSTO SHELL LTDA 04/11", "-200"))
	require.NoError(t, err)

	assert.Equal(t, CategoryTransport, got.Category)
	assert.Equal(t, []string{StageRules}, got.EvidenceChain)
	assert.Equal(t, RuleConfidence, got.Confidence)
}

func TestClassify_RegistryFailureIsRecoverable(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))
	registry := &mockRegistry{resolveFn: func(string) (*domain.RegistryMatch, error) {
		return nil, errors.New("registry unavailable")
	}}
	c := newTestCategorizer(registry, Options{})

	got, err := c.Classify(ctx, record("COMPRA CARTAO POSTO SHELL LTDA", "-200"))
	require.NoError(t, err)

	assert.Equal(t, CategoryTransport, got.Category)
	assert.Equal(t, []string{StageRules}, got.EvidenceChain)
	assert.Equal(t, int32(1), registry.calls.Load())
	assert.Contains(t, buf.String(), "Registry lookup failed")
}

func TestClassify_RegistryOverridesWeakDictionaryMatch(t *testing.T) {
	registry := &mockRegistry{entities: []domain.RegistryEntity{
		{RegistryID: "99", DisplayName: "Drogaria Central", ActivityCode: "4772-5/00"},
	}}
	c := newTestCategorizer(registry, Options{})

	got, err := c.Classify(context.Background(), record("COMPRA CARTAO DROGARIA CENTRAL", "-40"))
	require.NoError(t, err)

	// Per-word dictionary match scores below the skip threshold.
	assert.Equal(t, []string{StageDictionary, StageRegistry, StageActivityCode}, got.EvidenceChain)
	assert.Equal(t, CategoryShopping, got.Category)
	assert.Equal(t, 1.0, got.Confidence)
	// Dictionary identity takes priority over the registry's.
	require.NotNil(t, got.RegistryID)
	assert.Equal(t, "61412110000155", *got.RegistryID)
	assert.Equal(t, "Drogaria São Paulo", got.CanonicalMerchantName)
}

func TestClassify_InflowNormalizesAmount(t *testing.T) {
	c := newTestCategorizer(nil, Options{})

	got, err := c.Classify(context.Background(), record("TED RECEBIDA EMPRESA XPTO SA", "1500.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.KindTransferIn, got.Kind)
	assert.Equal(t, domain.DirectionInflow, got.Direction)
	assert.Equal(t, "Empresa Xpto Sa", got.MerchantNormalized)
	assert.Equal(t, "EMPRESA XPTO SA", got.MerchantRaw)
	assert.Equal(t, "1500", got.Amount.String())

	// A card purchase with a positive amount is still an outflow.
	got, err = c.Classify(context.Background(), record("COMPRA CARTAO CARREFOUR", "99.90"))
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionOutflow, got.Direction)
	assert.Equal(t, "-99.9", got.Amount.String())
}

func TestClassify_DamagedRecordStillCategorized(t *testing.T) {
	c := newTestCategorizer(nil, Options{})

	got, err := c.Classify(context.Background(), domain.RawRecord{})
	require.NoError(t, err)
	assert.Equal(t, domain.KindOther, got.Kind)
	assert.Equal(t, domain.DirectionNeutral, got.Direction)
	assert.Equal(t, DefaultCategory, got.Category)
	assert.Equal(t, []string{StageFallback}, got.EvidenceChain)
	assert.Equal(t, "", got.MerchantNormalized)
}

func TestClassify_CustomOptions(t *testing.T) {
	registry := &mockRegistry{entities: testRegistryEntities()}
	c := newTestCategorizer(registry, Options{
		DefaultCategory:         "Uncategorized",
		DictionarySkipThreshold: 0.99,
		DictionaryScope:         "household",
	})

	got, err := c.Classify(context.Background(), record("XYZ UNKNOWN MERCHANT 000", "-1"))
	require.NoError(t, err)
	assert.Equal(t, "Uncategorized", got.Category)

	// 0.98 is below the raised threshold, so the registry is consulted.
	_, err = c.Classify(context.Background(), record("TONIN SUPERMERCADOS", "-1"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), registry.calls.Load())
}

func TestPrepare_ReferenceErrors(t *testing.T) {
	t.Run("load failure", func(t *testing.T) {
		c := New(&mockDictionary{err: errors.New("connection refused")}, nil, Options{})
		_, err := c.ClassifyBatch(context.Background(), []domain.RawRecord{record("X", "1")})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrReferenceLoad)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := New(nil, nil, Options{}).Prepare(context.Background())
		assert.ErrorIs(t, err, ErrReferenceLoad)
	})

	t.Run("empty dictionary", func(t *testing.T) {
		c := New(&mockDictionary{}, nil, Options{})
		_, err := c.Classify(context.Background(), record("X", "1"))
		assert.ErrorIs(t, err, ErrEmptyDictionary)
	})

	t.Run("empty dictionary allowed", func(t *testing.T) {
		c := New(&mockDictionary{}, nil, Options{AllowEmptyDictionary: true})
		got, err := c.Classify(context.Background(), record("X", "1"))
		require.NoError(t, err)
		assert.Equal(t, DefaultCategory, got.Category)
	})

	t.Run("scope forwarded", func(t *testing.T) {
		dict := &mockDictionary{entries: testDictionaryEntries()}
		_, err := New(dict, nil, Options{DictionaryScope: "acme"}).Prepare(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"acme"}, dict.scopes)
	})
}

// mappedDictionary also serves the activity-code table.
type mappedDictionary struct {
	mockDictionary
	mappings []domain.ActivityMapping
	err      error
	loads    int
}

func (m *mappedDictionary) LoadActivityMappings(ctx context.Context) ([]domain.ActivityMapping, error) {
	m.loads++
	return m.mappings, m.err
}

func TestPrepare_ActivityMappingsFromProvider(t *testing.T) {
	registry := &mockRegistry{entities: testRegistryEntities()}
	desc := "COMPRA CARTAO PADARIA PAO DORADO"

	t.Run("provider table is used", func(t *testing.T) {
		dict := &mappedDictionary{
			mockDictionary: mockDictionary{entries: testDictionaryEntries()},
			mappings:       []domain.ActivityMapping{{CodePrefix: "4721", Category: "Padarias"}},
		}
		got, err := New(dict, registry, Options{}).Classify(context.Background(), record(desc, "-12.50"))
		require.NoError(t, err)
		assert.Equal(t, "Padarias", got.Category)
		assert.Equal(t, 1, dict.loads)
	})

	t.Run("empty provider table keeps defaults", func(t *testing.T) {
		dict := &mappedDictionary{mockDictionary: mockDictionary{entries: testDictionaryEntries()}}
		got, err := New(dict, registry, Options{}).Classify(context.Background(), record(desc, "-12.50"))
		require.NoError(t, err)
		assert.Equal(t, CategoryFood, got.Category)
	})

	t.Run("explicit options win", func(t *testing.T) {
		dict := &mappedDictionary{
			mockDictionary: mockDictionary{entries: testDictionaryEntries()},
			mappings:       []domain.ActivityMapping{{CodePrefix: "4721", Category: "Padarias"}},
		}
		opts := Options{ActivityMappings: []domain.ActivityMapping{{CodePrefix: "47", Category: "Comércio"}}}
		got, err := New(dict, registry, opts).Classify(context.Background(), record(desc, "-12.50"))
		require.NoError(t, err)
		assert.Equal(t, "Comércio", got.Category)
		assert.Equal(t, 0, dict.loads)
	})

	t.Run("load failure", func(t *testing.T) {
		dict := &mappedDictionary{
			mockDictionary: mockDictionary{entries: testDictionaryEntries()},
			err:            errors.New("table not found"),
		}
		_, err := New(dict, registry, Options{}).Prepare(context.Background())
		assert.ErrorIs(t, err, ErrReferenceLoad)
	})
}

func TestPass_SnapshotIsolatedFromReload(t *testing.T) {
	dict := &mockDictionary{entries: testDictionaryEntries()}
	c := New(dict, nil, Options{})

	pass, err := c.Prepare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, pass.DictionarySize())

	dict.entries = []domain.DictionaryEntry{
		{Pattern: "TONIN", CanonicalName: "Someone Else", Category: CategoryLeisure, Confidence: 1},
	}

	got, err := pass.Classify(context.Background(), record("TONIN SUPERMERCADOS", "-1"))
	require.NoError(t, err)
	assert.Equal(t, CategoryFood, got.Category)

	got, err = c.Classify(context.Background(), record("TONIN SUPERMERCADOS", "-1"))
	require.NoError(t, err)
	assert.Equal(t, CategoryLeisure, got.Category)
}

func batchRecords() []domain.RawRecord {
	return []domain.RawRecord{
		record("PAGAMENTO PIX TONIN SUPERMERCADOS 123456", "-150.00"),
		record("COMPRA CARTAO PADARIA PAO DORADO", "-12.50"),
		record("COMPRA CARTAO BOOM LOJA", "-30"),
		record("XYZ UNKNOWN MERCHANT 000", "-10.00"),
		record("PANIFICADORA SANTA CLARA", "-8"),
		record("PIX RECEBIDO JOÃO DA SILVA", "250"),
		record("TARIFA BANCARIA CESTA SERV", "-39.90"),
		record("SALARIO EMPRESA XPTO", "5000"),
		record("AJUSTE", "0"),
		record("COMPRA CARTAO CARREFOUR", "99.90"),
	}
}

// boomRegistry panics for merchants containing BOOM.
func boomRegistry() *mockRegistry {
	entities := testRegistryEntities()
	return &mockRegistry{resolveFn: func(name string) (*domain.RegistryMatch, error) {
		if strings.Contains(strings.ToUpper(name), "BOOM") {
			panic("registry exploded")
		}
		return similarity.Best(name, entities, similarity.DefaultThreshold), nil
	}}
}

func TestClassifyBatch_FailingRecordIsIsolated(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))
	c := newTestCategorizer(boomRegistry(), Options{})
	recs := batchRecords()

	got, err := c.ClassifyBatch(ctx, recs)
	require.NoError(t, err)
	require.Len(t, got, len(recs))

	failed := got[2]
	assert.Equal(t, []string{StageError}, failed.EvidenceChain)
	assert.Equal(t, DefaultCategory, failed.Category)
	assert.Equal(t, ErrorConfidence, failed.Confidence)
	assert.Equal(t, "Boom Loja", failed.MerchantNormalized)
	assert.Equal(t, "COMPRA CARTAO BOOM LOJA", failed.RawDescription)

	// Neighbors are unaffected.
	assert.Equal(t, []string{StageDictionary}, got[0].EvidenceChain)
	assert.Equal(t, []string{StageRegistry, StageActivityCode}, got[1].EvidenceChain)
	assert.Equal(t, []string{StageFallback}, got[3].EvidenceChain)
	assert.Contains(t, buf.String(), "registry exploded")
}

func TestClassifyBatch_OutputShape(t *testing.T) {
	c := newTestCategorizer(boomRegistry(), Options{})
	recs := batchRecords()

	got, err := c.ClassifyBatch(context.Background(), recs)
	require.NoError(t, err)

	for i, r := range got {
		t.Run(fmt.Sprintf("%d %s", i, r.RawDescription), func(t *testing.T) {
			assert.NotEmpty(t, r.Category)
			assert.NotEmpty(t, r.EvidenceChain)
			assert.GreaterOrEqual(t, r.Confidence, 0.0)
			assert.LessOrEqual(t, r.Confidence, 1.0)
			assert.Equal(t, recs[i].Description, r.RawDescription)

			switch r.Direction {
			case domain.DirectionInflow:
				assert.False(t, r.Amount.IsNegative(), "inflow amount %s", r.Amount)
			case domain.DirectionOutflow:
				assert.False(t, r.Amount.IsPositive(), "outflow amount %s", r.Amount)
			case domain.DirectionNeutral:
				assert.True(t, r.Amount.Equal(recs[i].Amount))
			}
			assert.True(t, r.Amount.Abs().Equal(recs[i].Amount.Abs()))
		})
	}
}

func TestClassifyBatch_ParallelMatchesSequential(t *testing.T) {
	var recs []domain.RawRecord
	for i := 0; i < 5; i++ {
		recs = append(recs, batchRecords()...)
	}

	sequential, err := newTestCategorizer(boomRegistry(), Options{}).ClassifyBatch(context.Background(), recs)
	require.NoError(t, err)
	parallel, err := newTestCategorizer(boomRegistry(), Options{Workers: 4}).ClassifyBatch(context.Background(), recs)
	require.NoError(t, err)

	require.Len(t, parallel, len(sequential))
	for i := range sequential {
		assert.Equal(t, sequential[i].RawDescription, parallel[i].RawDescription)
		assert.Equal(t, sequential[i].Category, parallel[i].Category)
		assert.Equal(t, sequential[i].Confidence, parallel[i].Confidence)
		assert.Equal(t, sequential[i].EvidenceChain, parallel[i].EvidenceChain)
		assert.Equal(t, sequential[i].Amount.String(), parallel[i].Amount.String())
	}
}

func TestClassifyBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		_, err := newTestCategorizer(nil, Options{Workers: workers}).ClassifyBatch(ctx, batchRecords())
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestClassifyBatch_Empty(t *testing.T) {
	got, err := newTestCategorizer(nil, Options{}).ClassifyBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCategorizer_Categories(t *testing.T) {
	cats := newTestCategorizer(nil, Options{}).Categories()
	assert.Contains(t, cats, DefaultCategory)
	assert.Contains(t, cats, CategoryFood)
	assert.Contains(t, cats, CategoryBankFees)
	assert.IsIncreasing(t, cats)
}
