package categorizer

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/similarity"
)

// amountSign restricts a kind rule to one side of the ledger.
type amountSign int

const (
	anySign amountSign = iota
	negative
	positive
)

func (s amountSign) accepts(amount decimal.Decimal) bool {
	switch s {
	case negative:
		return amount.IsNegative()
	case positive:
		return amount.IsPositive()
	}
	return true
}

// kindRule assigns kind when pattern matches the folded description and the
// amount has the required sign.
type kindRule struct {
	kind    domain.TransactionKind
	pattern *regexp.Regexp
	sign    amountSign
}

// Rules are evaluated in order; the first match wins.
var kindRules = []kindRule{
	{
		kind:    domain.KindPixDebit,
		pattern: regexp.MustCompile(`\b(?:ENVIAD[OA]|ENV|EMITID[OA]|ENVIO|PAGAMENTO|PAGTO|PGTO|QRS|SAIDA|DEBITO)\b.*\bPIX\b|\bPIX\b.*\b(?:ENVIAD[OA]|ENV|EMITID[OA]|ENVIO|QRS|SAIDA|DEBITO)\b`),
		sign:    negative,
	},
	{
		kind:    domain.KindPixCredit,
		pattern: regexp.MustCompile(`\b(?:RECEBID[OA]|REC|RECEBIMENTO|ENTRADA|CREDITO|DEVOLUCAO)\b.*\bPIX\b|\bPIX\b.*\b(?:RECEBID[OA]|REC|RECEBIMENTO|ENTRADA|CREDITO|DEVOLUCAO)\b`),
		sign:    positive,
	},
	{
		kind:    domain.KindCardPurchase,
		pattern: regexp.MustCompile(`\b(?:COMPRAS?|CARTAO|CARD|POS|VISA|MASTERCARD|ELO|MAESTRO|ELECTRON|DEBITO VISA|CRED VISA)\b`),
	},
	{
		kind:    domain.KindTransferOut,
		pattern: regexp.MustCompile(`\b(?:TED|DOC|TEF|TRANSF\w*)\b`),
		sign:    negative,
	},
	{
		kind:    domain.KindTransferIn,
		pattern: regexp.MustCompile(`\b(?:TED|DOC|TEF|TRANSF\w*)\b`),
		sign:    positive,
	},
	{
		kind:    domain.KindBoleto,
		pattern: regexp.MustCompile(`\b(?:BOLETO|BLT|TITULO|PAG TIT|COBRANCA)\b`),
	},
	{
		kind:    domain.KindFee,
		pattern: regexp.MustCompile(`\b(?:TARIFA|TAR|TAXA|ANUIDADE|CESTA|IOF|JUROS|ENCARGOS|MENSALIDADE PACOTE)\b`),
	},
}

// DetectKind classifies a record by its description and amount sign. It is a
// pure function; unmatched descriptions yield KindOther.
func DetectKind(description string, amount decimal.Decimal) domain.TransactionKind {
	folded := similarity.Fold(description)
	for _, r := range kindRules {
		if r.sign.accepts(amount) && r.pattern.MatchString(folded) {
			return r.kind
		}
	}
	return domain.KindOther
}

// DeriveDirection maps a kind to the direction money moved. KindOther has no
// fixed direction and follows the amount sign; a zero amount is neutral.
func DeriveDirection(kind domain.TransactionKind, amount decimal.Decimal) domain.Direction {
	switch kind {
	case domain.KindPixCredit, domain.KindTransferIn:
		return domain.DirectionInflow
	case domain.KindPixDebit, domain.KindTransferOut, domain.KindCardPurchase, domain.KindBoleto, domain.KindFee:
		return domain.DirectionOutflow
	}
	switch {
	case amount.IsPositive():
		return domain.DirectionInflow
	case amount.IsNegative():
		return domain.DirectionOutflow
	}
	return domain.DirectionNeutral
}

// signedAmount applies direction to the magnitude of amount.
func signedAmount(amount decimal.Decimal, d domain.Direction) decimal.Decimal {
	switch d {
	case domain.DirectionInflow:
		return amount.Abs()
	case domain.DirectionOutflow:
		return amount.Abs().Neg()
	}
	return amount
}
