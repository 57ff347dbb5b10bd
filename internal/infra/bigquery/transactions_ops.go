package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

const (
	transactionsTable = "categorized_transactions"
	dateFormat        = "2006-01-02"
)

// InsertCategorizedTransactionsWithClient streams one row per record into the
// categorized_transactions table.
func InsertCategorizedTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset, runID string, recs []domain.CategorizedRecord) error {
	if len(recs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*CategorizedTransactionRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, NewCategorizedTransactionRow(runID, rec, now))
	}

	inserter := client.Dataset(dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertCategorizedTransactions: inserting rows: %w", err)
	}

	return nil
}

// QueryCategorizedTransactionsByDateRangeWithClient returns stored records
// within the date range, including only runs that succeeded.
func QueryCategorizedTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, dataset string, startDate, endDate time.Time) ([]domain.CategorizedRecord, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.run_id,
			t.account_ref,
			t.transaction_date,
			t.amount,
			t.balance_after,
			t.kind,
			t.direction,
			t.raw_description,
			t.merchant_raw,
			t.merchant_normalized,
			t.merchant_slug,
			t.canonical_merchant_name,
			t.category,
			t.registry_id,
			t.confidence,
			t.evidence_chain,
			t.created_ts
		FROM %[1]s.%[2]s t
		INNER JOIN %[1]s.%[3]s r
		  ON t.run_id = r.run_id
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		  AND r.status = 'SUCCESS'
		ORDER BY t.transaction_date, t.created_ts
	`, dataset, transactionsTable, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryCategorizedTransactionsByDateRange: query read: %w", err)
	}

	var recs []domain.CategorizedRecord
	for {
		var r CategorizedTransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryCategorizedTransactionsByDateRange: iter next: %w", err)
		}
		recs = append(recs, r.ToDomain())
	}

	return recs, nil
}
