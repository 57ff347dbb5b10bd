package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/similarity"
)

// DefaultCandidateLimit caps the registry rows fetched per lookup.
const DefaultCandidateLimit = 200

var (
	_ categorizer.DictionaryProvider      = (*BigQueryReferenceRepository)(nil)
	_ categorizer.RegistryProvider        = (*BigQueryReferenceRepository)(nil)
	_ categorizer.ActivityMappingProvider = (*BigQueryReferenceRepository)(nil)
)

// BigQueryReferenceRepository serves the merchant dictionary and the business
// registry from BigQuery tables. It holds a shared client to avoid creating a
// new connection for each lookup.
type BigQueryReferenceRepository struct {
	client         *bigquery.Client
	dataset        string
	threshold      float64
	candidateLimit int
}

// NewBigQueryReferenceRepository creates a repository with its own client.
// A zero threshold selects similarity.DefaultThreshold.
func NewBigQueryReferenceRepository(ctx context.Context, projectID, dataset string, threshold float64) (*BigQueryReferenceRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryReferenceRepository: creating client: %w", err)
	}
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}
	return &BigQueryReferenceRepository{
		client:         client,
		dataset:        dataset,
		threshold:      threshold,
		candidateLimit: DefaultCandidateLimit,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryReferenceRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// LoadDictionaryEntries delegates to ListDictionaryEntriesWithClient.
func (r *BigQueryReferenceRepository) LoadDictionaryEntries(ctx context.Context, scope string) ([]domain.DictionaryEntry, error) {
	return ListDictionaryEntriesWithClient(ctx, r.client, r.dataset, scope)
}

// ResolveByName prefilters registry rows by shared words and scores the
// candidates locally.
func (r *BigQueryReferenceRepository) ResolveByName(ctx context.Context, name string) (*domain.RegistryMatch, error) {
	candidates, err := ListRegistryCandidatesWithClient(ctx, r.client, r.dataset, name, r.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("ResolveByName: %w", err)
	}
	return similarity.Best(name, candidates, r.threshold), nil
}

// LoadActivityMappings delegates to ListActivityMappingsWithClient.
func (r *BigQueryReferenceRepository) LoadActivityMappings(ctx context.Context) ([]domain.ActivityMapping, error) {
	return ListActivityMappingsWithClient(ctx, r.client, r.dataset)
}

// BigQueryTransactionRepository persists categorized batches together with
// their run bookkeeping.
type BigQueryTransactionRepository struct {
	client  *bigquery.Client
	dataset string
}

// NewBigQueryTransactionRepository creates a repository with its own client.
func NewBigQueryTransactionRepository(ctx context.Context, projectID, dataset string) (*BigQueryTransactionRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryTransactionRepository: creating client: %w", err)
	}
	return &BigQueryTransactionRepository{
		client:  client,
		dataset: dataset,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryTransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun delegates to StartRunWithClient.
func (r *BigQueryTransactionRepository) StartRun(ctx context.Context, runID, source string, records int) error {
	return StartRunWithClient(ctx, r.client, r.dataset, runID, source, records)
}

// MarkRunFailed delegates to MarkRunFailedWithClient.
func (r *BigQueryTransactionRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.dataset, runID, runErr)
}

// MarkRunSucceeded delegates to MarkRunSucceededWithClient.
func (r *BigQueryTransactionRepository) MarkRunSucceeded(ctx context.Context, runID string, failed int) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.dataset, runID, failed)
}

// InsertCategorized delegates to InsertCategorizedTransactionsWithClient.
func (r *BigQueryTransactionRepository) InsertCategorized(ctx context.Context, runID string, recs []domain.CategorizedRecord) error {
	return InsertCategorizedTransactionsWithClient(ctx, r.client, r.dataset, runID, recs)
}

// QueryByDateRange delegates to QueryCategorizedTransactionsByDateRangeWithClient.
func (r *BigQueryTransactionRepository) QueryByDateRange(ctx context.Context, startDate, endDate time.Time) ([]domain.CategorizedRecord, error) {
	return QueryCategorizedTransactionsByDateRangeWithClient(ctx, r.client, r.dataset, startDate, endDate)
}

// SaveBatch records a run, inserts its records and marks the run succeeded.
// On insert failure the run is marked failed and the error returned.
func (r *BigQueryTransactionRepository) SaveBatch(ctx context.Context, runID, source string, recs []domain.CategorizedRecord, failed int) error {
	if err := r.StartRun(ctx, runID, source, len(recs)); err != nil {
		return fmt.Errorf("SaveBatch: %w", err)
	}
	if err := r.InsertCategorized(ctx, runID, recs); err != nil {
		r.MarkRunFailed(ctx, runID, err)
		return fmt.Errorf("SaveBatch: %w", err)
	}
	if err := r.MarkRunSucceeded(ctx, runID, failed); err != nil {
		return fmt.Errorf("SaveBatch: %w", err)
	}
	return nil
}
