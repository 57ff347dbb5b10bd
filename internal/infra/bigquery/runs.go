package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Run statuses stored in categorization_runs.status.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

type CategorizationRunRow struct {
	RunID  string `bigquery:"run_id"` // REQUIRED
	Source string `bigquery:"source"` // NULLABLE, e.g. api, cli, gs:// URI

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	RecordCount bigquery.NullInt64 `bigquery:"record_count"` // NULLABLE
	FailedCount bigquery.NullInt64 `bigquery:"failed_count"` // NULLABLE
}
