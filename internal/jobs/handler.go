package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
)

// BatchClassifier classifies a batch of records.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, recs []domain.RawRecord) ([]domain.CategorizedRecord, error)
}

// ResultSink persists a classified batch under runID.
type ResultSink interface {
	SaveBatch(ctx context.Context, runID, source string, recs []domain.CategorizedRecord, failed int) error
}

// NewCategorizeHandler returns a handler that classifies the job's records and
// stores the results on the job. sink may be nil.
//
// Only reference-data failures (load errors, an empty dictionary) and sink
// errors are retried; anything else is marked Permanent.
func NewCategorizeHandler(classifier BatchClassifier, sink ResultSink) JobHandler {
	return func(ctx context.Context, job Job) error {
		cj, ok := job.(*CategorizeJob)
		if !ok {
			return Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", cj.JobID).
			Str("source", cj.Source).
			Logger()
		ctx = logger.WithContext(ctx, log)

		log.Info().
			Int("records", len(cj.Records)).
			Int("attempt", cj.RetryCount+1).
			Msg("Processing categorize job")

		results, err := classifier.ClassifyBatch(ctx, cj.Records)
		if err != nil {
			log.Error().Err(err).Msg("Batch classification failed")
			// Reference data may still be loading.
			if errors.Is(err, categorizer.ErrReferenceLoad) || errors.Is(err, categorizer.ErrEmptyDictionary) {
				return err
			}
			return Permanent(err)
		}

		cj.Results = results
		cj.RecordCount = len(cj.Records)
		cj.FailedCount = categorizer.CountFailed(results)

		if sink != nil {
			if cj.RunID == "" {
				cj.RunID = uuid.NewString()
			}
			if err := sink.SaveBatch(ctx, cj.RunID, cj.Source, results, cj.FailedCount); err != nil {
				log.Error().Err(err).Str("run_id", cj.RunID).Msg("Persisting results failed")
				// Each attempt writes its own run.
				cj.RunID = ""
				return fmt.Errorf("persisting results: %w", err)
			}
		}

		log.Info().
			Int("records", cj.RecordCount).
			Int("failed", cj.FailedCount).
			Msg("Categorize job completed")
		return nil
	}
}
