package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

const referenceYAML = `
dictionary:
  default:
    - pattern: PADOCA CENTRAL
      canonical_name: Padoca Central
      category: Alimentação
      confidence: 0.97
  acme:
    - pattern: ACME CANTINA
      canonical_name: Cantina Acme
      category: Alimentação
      confidence: 0.99
registry:
  - registry_id: "99887766000155"
    display_name: Mercearia Boa Vista
    legal_name: Boa Vista Comercio Ltda
    activity_code: 4712-1/00
activity_mappings:
  - code_prefix: "4712"
    category: Alimentação
`

// mockFetcher serves fixed bytes for any location.
type mockFetcher struct {
	data []byte
	err  error
}

func (m *mockFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	return m.data, m.err
}

func TestProvider_BuiltinTables(t *testing.T) {
	p := NewProvider(ProviderConfig{})

	entries, err := p.LoadDictionaryEntries(context.Background(), DefaultScope)
	require.NoError(t, err)
	assert.Len(t, entries, len(DefaultDictionary()))

	match, err := p.ResolveByName(context.Background(), "Padaria Pao Dorado")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "11222333000181", match.RegistryID)
	assert.InDelta(t, 0.9895, match.Score, 1e-4)

	match, err = p.ResolveByName(context.Background(), "Xyz Unknown Merchant 000")
	require.NoError(t, err)
	assert.Nil(t, match)

	stats := p.Stats()
	assert.Equal(t, len(DefaultRegistry()), stats.RegistryEntities)
	assert.Equal(t, len(categorizer.DefaultActivityMappings), stats.ActivityMappings)
}

func TestProvider_ReturnsCopies(t *testing.T) {
	p := NewProvider(ProviderConfig{})

	entries, err := p.LoadDictionaryEntries(context.Background(), DefaultScope)
	require.NoError(t, err)
	entries[0].Category = "changed"

	again, err := p.LoadDictionaryEntries(context.Background(), DefaultScope)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again[0].Category)
}

func TestProvider_ReloadFromSource(t *testing.T) {
	p := NewProvider(ProviderConfig{Source: "gs://bucket/reference.yaml", Fetcher: &mockFetcher{data: []byte(referenceYAML)}})
	require.NoError(t, p.Reload(context.Background()))

	entries, err := p.LoadDictionaryEntries(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ACME CANTINA", entries[0].Pattern)
	assert.Equal(t, "PADOCA CENTRAL", entries[1].Pattern)

	entries, err = p.LoadDictionaryEntries(context.Background(), "other")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	match, err := p.ResolveByName(context.Background(), "Mercearia Boa Vista")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "99887766000155", match.RegistryID)
	assert.Equal(t, 1.0, match.Score)

	assert.Equal(t, []domain.ActivityMapping{{CodePrefix: "4712", Category: categorizer.CategoryFood}}, p.ActivityMappings())
}

func TestProvider_ReloadFailureKeepsTables(t *testing.T) {
	fetcher := &mockFetcher{data: []byte(referenceYAML)}
	p := NewProvider(ProviderConfig{Source: "reference.yaml", Fetcher: fetcher})
	require.NoError(t, p.Reload(context.Background()))
	loadedAt := p.LoadedAt()

	fetcher.err = errors.New("bucket unavailable")
	err := p.Reload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")

	fetcher.err = nil
	fetcher.data = []byte("dictionary:\n  default:\n    - pattern: ''\n      canonical_name: x\n      confidence: 1\n")
	require.Error(t, p.Reload(context.Background()))

	assert.Equal(t, 1, p.Stats().RegistryEntities)
	assert.Equal(t, loadedAt, p.LoadedAt())
}

func TestProvider_ReloadWithoutSourceRestoresDefaults(t *testing.T) {
	tables, err := ParseTables([]byte(referenceYAML))
	require.NoError(t, err)

	p := NewProviderFromTables(tables, ProviderConfig{})
	assert.Equal(t, 1, p.Stats().RegistryEntities)

	require.NoError(t, p.Reload(context.Background()))
	assert.Equal(t, len(DefaultRegistry()), p.Stats().RegistryEntities)
}

func TestProvider_ReloadWithoutFetcher(t *testing.T) {
	p := NewProvider(ProviderConfig{Source: "reference.yaml"})
	assert.Error(t, p.Reload(context.Background()))
}

func TestProvider_ConcurrentReload(t *testing.T) {
	p := NewProvider(ProviderConfig{Source: "reference.yaml", Fetcher: &mockFetcher{data: []byte(referenceYAML)}, Indexed: true})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Reload(context.Background()))
		}()
		go func() {
			defer wg.Done()
			_, err := p.LoadDictionaryEntries(context.Background(), DefaultScope)
			assert.NoError(t, err)
			_, err = p.ResolveByName(context.Background(), "Mercearia Boa Vista")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestProvider_WorksWithCategorizer(t *testing.T) {
	p := NewProvider(ProviderConfig{Indexed: true})
	c := categorizer.New(p, p, categorizer.Options{ActivityMappings: p.ActivityMappings()})

	got, err := c.Classify(context.Background(), domain.RawRecord{
		Description: "COMPRA CARTAO PADARIA PAO DORADO",
	})
	require.NoError(t, err)
	assert.Equal(t, categorizer.CategoryFood, got.Category)
	assert.Equal(t, []string{categorizer.StageRegistry, categorizer.StageActivityCode}, got.EvidenceChain)
}

func TestParseTables_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "dictionary: [unclosed"},
		{"missing canonical name", "dictionary:\n  default:\n    - pattern: X\n      confidence: 0.9\n"},
		{"confidence out of range", "dictionary:\n  default:\n    - pattern: X\n      canonical_name: X\n      confidence: 1.5\n"},
		{"registry without id", "registry:\n  - display_name: X\n"},
		{"registry without name", "registry:\n  - registry_id: '1'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
