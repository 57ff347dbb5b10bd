// Package app wires configuration into a ready Categorizer with its reference
// providers and optional persistence. Both commands share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/config"
	"github.com/dvloznov/merchant-categorizer/internal/gcsuploader"
	"github.com/dvloznov/merchant-categorizer/internal/jobs"
	infraBQ "github.com/dvloznov/merchant-categorizer/internal/infra/bigquery"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
	"github.com/dvloznov/merchant-categorizer/internal/reference/inmemory"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config      *config.Config
	Categorizer *categorizer.Categorizer
	Storage     gcsuploader.StorageService

	// Static is set when REFERENCE_SOURCE=static.
	Static *inmemory.Provider
	// Reference is set when REFERENCE_SOURCE=bigquery.
	Reference *infraBQ.BigQueryReferenceRepository
	// Results is set when PERSIST_RESULTS is on.
	Results *infraBQ.BigQueryTransactionRepository
}

// New builds an App. storage may be nil, in which case Cloud Storage and the
// local filesystem are read directly.
func New(ctx context.Context, cfg *config.Config, storage gcsuploader.StorageService) (*App, error) {
	log := logger.FromContext(ctx)

	if storage == nil {
		storage = gcsuploader.NewGCSStorageService()
	}
	a := &App{Config: cfg, Storage: storage}

	var (
		dictionary categorizer.DictionaryProvider
		registry   categorizer.RegistryProvider
	)
	switch cfg.ReferenceSource {
	case config.ReferenceBigQuery:
		repo, err := infraBQ.NewBigQueryReferenceRepository(ctx, cfg.BQProject, cfg.BQDataset, cfg.RegistryThreshold)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Reference = repo
		dictionary, registry = repo, repo
	default:
		provider := inmemory.NewProvider(inmemory.ProviderConfig{
			Source:    cfg.ReferenceFile,
			Fetcher:   storage,
			Threshold: cfg.RegistryThreshold,
			Indexed:   cfg.RegistryIndexed,
		})
		if cfg.ReferenceFile != "" {
			if err := provider.Reload(ctx); err != nil {
				return nil, fmt.Errorf("app.New: %w", err)
			}
		}
		a.Static = provider
		dictionary, registry = provider, provider
	}

	if cfg.PersistResults {
		repo, err := infraBQ.NewBigQueryTransactionRepository(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Results = repo
	}

	a.Categorizer = categorizer.New(dictionary, registry, categorizer.Options{
		DefaultCategory:         cfg.DefaultCategory,
		DictionarySkipThreshold: cfg.DictionarySkipThreshold,
		DictionaryScope:         cfg.DictionaryScope,
		Workers:                 cfg.BatchWorkers,
	})

	log.Info().
		Str("reference_source", cfg.ReferenceSource).
		Str("dictionary_scope", cfg.DictionaryScope).
		Bool("persist_results", cfg.PersistResults).
		Int("batch_workers", cfg.BatchWorkers).
		Msg("Categorizer ready")
	return a, nil
}

// Sink returns the result sink for categorize jobs, or nil when results are
// not persisted.
func (a *App) Sink() jobs.ResultSink {
	if a.Results == nil {
		return nil
	}
	return a.Results
}

// Close releases the BigQuery clients.
func (a *App) Close() error {
	var errs []error
	if a.Reference != nil {
		errs = append(errs, a.Reference.Close())
	}
	if a.Results != nil {
		errs = append(errs, a.Results.Close())
	}
	return errors.Join(errs...)
}
