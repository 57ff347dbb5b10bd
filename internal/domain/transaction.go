package domain

import (
	"github.com/shopspring/decimal"
)

// RawRecord is one bank-statement line as it arrives from an import job or an
// API body. It is never modified by the categorizer.
type RawRecord struct {
	Date        string           `json:"date"`                  // ISO date, "YYYY-MM-DD"
	Description string           `json:"description"`           // free text as printed by the bank
	Amount      decimal.Decimal  `json:"amount"`                // signed; IN = positive, OUT = negative
	Balance     *decimal.Decimal `json:"balance,omitempty"`     // running balance or nil
	AccountRef  string           `json:"account_ref,omitempty"` // opaque account identifier
}

// TransactionKind is derived once per record from the description and the
// amount sign.
type TransactionKind string

const (
	KindPixDebit     TransactionKind = "pix_debit"
	KindPixCredit    TransactionKind = "pix_credit"
	KindCardPurchase TransactionKind = "card_purchase"
	KindTransferOut  TransactionKind = "transfer_out"
	KindTransferIn   TransactionKind = "transfer_in"
	KindBoleto       TransactionKind = "boleto"
	KindFee          TransactionKind = "fee"
	KindOther        TransactionKind = "other"
)

// IsTransfer reports whether the kind moves money between accounts over a
// payment rail (PIX or wire), where the description names the counterparty.
func (k TransactionKind) IsTransfer() bool {
	switch k {
	case KindPixDebit, KindPixCredit, KindTransferIn, KindTransferOut:
		return true
	}
	return false
}

// Direction is the direction money moved, from the account holder's view.
type Direction string

const (
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
	DirectionNeutral Direction = "neutral"
)

// NormalizedMerchant is the cleaned merchant name extracted from a description.
type NormalizedMerchant struct {
	RawFragment   string `json:"raw_fragment"`
	CanonicalName string `json:"canonical_name"` // title-cased, keeps diacritics
	Slug          string `json:"slug"`           // lowercase ASCII, hyphenated
	MatchKey      string `json:"match_key"`      // upper-case ASCII, used for matching
}

// Empty reports whether no merchant name survived normalization. Callers treat
// this as an unidentified merchant.
func (m NormalizedMerchant) Empty() bool {
	return m.CanonicalName == ""
}

// CategorizedRecord is the single output produced for every RawRecord.
type CategorizedRecord struct {
	Date                  string          `json:"date"`
	RawDescription        string          `json:"raw_description"`
	MerchantRaw           string          `json:"merchant_raw"`
	MerchantNormalized    string          `json:"merchant_normalized"`
	MerchantSlug          string          `json:"merchant_slug"`
	Kind                  TransactionKind `json:"kind"`
	Direction             Direction       `json:"direction"`
	Amount                decimal.Decimal `json:"amount"` // sign follows Direction
	Category              string          `json:"category"`
	RegistryID            *string         `json:"registry_id"`
	CanonicalMerchantName string          `json:"canonical_merchant_name"`
	Confidence            float64         `json:"confidence"`
	EvidenceChain         []string        `json:"evidence_chain"`

	AccountRef string           `json:"account_ref,omitempty"`
	Balance    *decimal.Decimal `json:"balance,omitempty"`
}
