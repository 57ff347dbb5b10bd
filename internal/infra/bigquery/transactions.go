package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

// CategorizedTransactionRow is one row of the categorized_transactions table.
type CategorizedTransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	RunID         string `bigquery:"run_id"`         // REQUIRED

	AccountRef bigquery.NullString `bigquery:"account_ref"` // NULLABLE

	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULLABLE, unparseable dates are NULL

	Amount       *big.Rat `bigquery:"amount"`        // REQUIRED NUMERIC
	BalanceAfter *big.Rat `bigquery:"balance_after"` // NULLABLE NUMERIC

	Kind      string `bigquery:"kind"`      // REQUIRED
	Direction string `bigquery:"direction"` // REQUIRED

	RawDescription        string `bigquery:"raw_description"`         // REQUIRED
	MerchantRaw           string `bigquery:"merchant_raw"`            // NULLABLE
	MerchantNormalized    string `bigquery:"merchant_normalized"`     // NULLABLE
	MerchantSlug          string `bigquery:"merchant_slug"`           // NULLABLE
	CanonicalMerchantName string `bigquery:"canonical_merchant_name"` // NULLABLE

	Category   string              `bigquery:"category"`    // REQUIRED
	RegistryID bigquery.NullString `bigquery:"registry_id"` // NULLABLE
	Confidence float64             `bigquery:"confidence"`  // REQUIRED

	EvidenceChain []string `bigquery:"evidence_chain"` // REPEATED STRING

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewCategorizedTransactionRow converts a categorized record for insertion.
func NewCategorizedTransactionRow(runID string, rec domain.CategorizedRecord, now time.Time) *CategorizedTransactionRow {
	row := &CategorizedTransactionRow{
		TransactionID:         uuid.NewString(),
		RunID:                 runID,
		AccountRef:            nullString(rec.AccountRef),
		Amount:                rec.Amount.Rat(),
		Kind:                  string(rec.Kind),
		Direction:             string(rec.Direction),
		RawDescription:        rec.RawDescription,
		MerchantRaw:           rec.MerchantRaw,
		MerchantNormalized:    rec.MerchantNormalized,
		MerchantSlug:          rec.MerchantSlug,
		CanonicalMerchantName: rec.CanonicalMerchantName,
		Category:              rec.Category,
		Confidence:            rec.Confidence,
		EvidenceChain:         rec.EvidenceChain,
		CreatedTS:             now,
	}
	if d, err := civil.ParseDate(rec.Date); err == nil {
		row.TransactionDate = bigquery.NullDate{Date: d, Valid: true}
	}
	if rec.Balance != nil {
		row.BalanceAfter = rec.Balance.Rat()
	}
	if rec.RegistryID != nil {
		row.RegistryID = nullString(*rec.RegistryID)
	}
	return row
}

// ToDomain converts a stored row back to a categorized record.
func (r *CategorizedTransactionRow) ToDomain() domain.CategorizedRecord {
	rec := domain.CategorizedRecord{
		RawDescription:        r.RawDescription,
		MerchantRaw:           r.MerchantRaw,
		MerchantNormalized:    r.MerchantNormalized,
		MerchantSlug:          r.MerchantSlug,
		Kind:                  domain.TransactionKind(r.Kind),
		Direction:             domain.Direction(r.Direction),
		Category:              r.Category,
		CanonicalMerchantName: r.CanonicalMerchantName,
		Confidence:            r.Confidence,
		EvidenceChain:         r.EvidenceChain,
		AccountRef:            r.AccountRef.StringVal,
	}
	if r.TransactionDate.Valid {
		rec.Date = r.TransactionDate.Date.String()
	}
	if r.Amount != nil {
		rec.Amount = decimal.NewFromBigRat(r.Amount, 2)
	}
	if r.BalanceAfter != nil {
		b := decimal.NewFromBigRat(r.BalanceAfter, 2)
		rec.Balance = &b
	}
	if r.RegistryID.Valid {
		id := r.RegistryID.StringVal
		rec.RegistryID = &id
	}
	return rec
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
