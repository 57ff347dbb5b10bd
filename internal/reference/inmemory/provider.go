package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
)

// Fetcher reads reference files from a local path or a gs:// URI.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	// Source is a YAML file path or gs:// URI. Empty means built-in tables.
	Source string
	// Fetcher reads Source. Required when Source is set.
	Fetcher Fetcher
	// Threshold is the minimum registry similarity; zero selects the default.
	Threshold float64
	// Indexed selects the n-gram indexed registry instead of a full scan.
	Indexed bool
}

type registryResolver interface {
	categorizer.RegistryProvider
	Len() int
}

type snapshot struct {
	tables   *Tables
	registry registryResolver
	loadedAt time.Time
}

// Provider serves the dictionary and the registry from memory. Reload swaps
// both tables at once; readers holding entries from a previous load keep
// them unchanged.
type Provider struct {
	cfg ProviderConfig

	mu      sync.RWMutex
	current *snapshot
}

var (
	_ categorizer.DictionaryProvider      = (*Provider)(nil)
	_ categorizer.RegistryProvider        = (*Provider)(nil)
	_ categorizer.ActivityMappingProvider = (*Provider)(nil)
	_ categorizer.RegistryProvider        = (*Registry)(nil)
	_ categorizer.RegistryProvider        = (*IndexedRegistry)(nil)
)

// NewProvider returns a Provider serving the built-in tables. Call Reload to
// read cfg.Source.
func NewProvider(cfg ProviderConfig) *Provider {
	p := &Provider{cfg: cfg}
	p.current = p.build(DefaultTables())
	return p
}

// NewProviderFromTables returns a Provider serving t.
func NewProviderFromTables(t *Tables, cfg ProviderConfig) *Provider {
	p := &Provider{cfg: cfg}
	p.current = p.build(t)
	return p
}

func (p *Provider) build(t *Tables) *snapshot {
	var reg registryResolver
	if p.cfg.Indexed {
		reg = NewIndexedRegistry(t.Registry, p.cfg.Threshold, 0)
	} else {
		reg = NewRegistry(t.Registry, p.cfg.Threshold)
	}
	return &snapshot{tables: t, registry: reg, loadedAt: time.Now()}
}

// Reload re-reads the configured source and swaps the tables. With no source
// configured it restores the built-in tables. On error the previous tables
// stay in place.
func (p *Provider) Reload(ctx context.Context) error {
	log := logger.FromContext(ctx)

	tables := DefaultTables()
	if p.cfg.Source != "" {
		if p.cfg.Fetcher == nil {
			return fmt.Errorf("Reload: no fetcher configured for %s", p.cfg.Source)
		}
		data, err := p.cfg.Fetcher.Fetch(ctx, p.cfg.Source)
		if err != nil {
			return fmt.Errorf("Reload: fetching %s: %w", p.cfg.Source, err)
		}
		tables, err = ParseTables(data)
		if err != nil {
			return fmt.Errorf("Reload: %s: %w", p.cfg.Source, err)
		}
		if tables.ActivityMappings == nil {
			tables.ActivityMappings = categorizer.DefaultActivityMappings
		}
	}

	next := p.build(tables)
	p.mu.Lock()
	p.current = next
	p.mu.Unlock()

	stats := tables.Stats()
	log.Info().
		Str("source", p.sourceName()).
		Int("dictionary_entries", stats.DictionaryEntries).
		Int("registry_entities", stats.RegistryEntities).
		Msg("Reference tables loaded")
	return nil
}

func (p *Provider) sourceName() string {
	if p.cfg.Source == "" {
		return "builtin"
	}
	return p.cfg.Source
}

func (p *Provider) snapshot() *snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// LoadDictionaryEntries returns a copy of the entries visible to scope: the
// scope's own entries plus those of DefaultScope.
func (p *Provider) LoadDictionaryEntries(ctx context.Context, scope string) ([]domain.DictionaryEntry, error) {
	return p.snapshot().tables.entriesFor(scope), nil
}

// ResolveByName resolves name against the current registry snapshot.
func (p *Provider) ResolveByName(ctx context.Context, name string) (*domain.RegistryMatch, error) {
	return p.snapshot().registry.ResolveByName(ctx, name)
}

// ActivityMappings returns the activity-code table of the current snapshot.
func (p *Provider) ActivityMappings() []domain.ActivityMapping {
	return p.snapshot().tables.ActivityMappings
}

// LoadActivityMappings returns the activity-code table of the current snapshot.
func (p *Provider) LoadActivityMappings(ctx context.Context) ([]domain.ActivityMapping, error) {
	return p.ActivityMappings(), nil
}

// Stats reports the sizes of the current tables.
func (p *Provider) Stats() Stats {
	return p.snapshot().tables.Stats()
}

// LoadedAt is when the current tables were installed.
func (p *Provider) LoadedAt() time.Time {
	return p.snapshot().loadedAt
}
